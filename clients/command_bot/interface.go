package command_bot

import "context"

type CommandBotAPI interface {
	// Dispatch forwards a verified command and returns the bot's reply.
	Dispatch(ctx context.Context, command string) (string, error)
}
