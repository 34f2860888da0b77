package command_bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&Config{})
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	t.Run("sends the command as the prompt query parameter", func(t *testing.T) {
		var gotPath, gotPrompt string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotPrompt = r.URL.Query().Get("prompt")

			_, _ = w.Write([]byte("lights are on"))
		}))
		defer srv.Close()

		client, err := NewClient(&Config{ApiHost: srv.URL + "/", Logger: zap.NewNop()})
		require.NoError(t, err)

		reply, err := client.Dispatch(context.Background(), "turn on the lights & fans")
		require.NoError(t, err)

		assert.Equal(t, "lights are on", reply)
		assert.Equal(t, "/get_prompt_response", gotPath)
		assert.Equal(t, "turn on the lights & fans", gotPrompt)
	})

	t.Run("a non-2xx status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client, err := NewClient(&Config{ApiHost: srv.URL, Logger: zap.NewNop()})
		require.NoError(t, err)

		_, err = client.Dispatch(context.Background(), "hello")
		assert.ErrorContains(t, err, "502")
	})

	t.Run("an unreachable host is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client, err := NewClient(&Config{ApiHost: url, Logger: zap.NewNop()})
		require.NoError(t, err)

		_, err = client.Dispatch(context.Background(), "hello")
		assert.Error(t, err)
	})
}
