package command_bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	promptPath     = "/get_prompt_response"
	defaultTimeout = 30 * time.Second
)

type clientImpl struct {
	client *resty.Client
	logger *zap.Logger
}

type Config struct {
	ApiHost string
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewClient(cfg *Config) (CommandBotAPI, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	if cfg.ApiHost == "" {
		return nil, errors.New("missing parameter: cfg.ApiHost")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("command_bot")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ApiHost, "/")).
		SetTimeout(timeout)

	return &clientImpl{
		client: client,
		logger: logger,
	}, nil
}

func (c *clientImpl) Dispatch(ctx context.Context, command string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("prompt", command).
		Get(promptPath)
	if err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("command bot returned HTTP %d", resp.StatusCode())
	}

	c.logger.Debug("command dispatched",
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()))

	return resp.String(), nil
}
