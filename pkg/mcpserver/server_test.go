package mcpserver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/studiobridge/pkg/relay"
	"github.com/harun/studiobridge/pkg/studiotools"
	"github.com/harun/studiobridge/pkg/toolcall"
)

func newTestRegistry(t *testing.T) (*toolcall.Registry, *relay.Queue) {
	t.Helper()
	queue := relay.New(relay.Options{
		Timeout:      500 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	})
	registry := toolcall.NewRegistry(queue)
	require.NoError(t, studiotools.RegisterStudioTools(registry))
	return registry, queue
}

func respond(queue *relay.Queue, outcome func(relay.Dispatch) relay.Outcome) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for _, dispatch := range queue.ClaimPending() {
					queue.Resolve(dispatch.ID, outcome(dispatch))
				}
			}
		}
	}()
	return stop
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNew(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	t.Run("creates server with tools", func(t *testing.T) {
		registry, _ := newTestRegistry(t)
		server, err := New("studiobridge", registry, logger)
		require.NoError(t, err)
		assert.NotNil(t, server.mcpServer)
	})

	t.Run("requires a registry", func(t *testing.T) {
		_, err := New("studiobridge", nil, logger)
		assert.Error(t, err)
	})
}

func TestRunScriptHandler(t *testing.T) {
	t.Run("renders the relay result as JSON", func(t *testing.T) {
		registry, queue := newTestRegistry(t)

		stop := respond(queue, func(dispatch relay.Dispatch) relay.Outcome {
			assert.Equal(t, "run_script", dispatch.Tool)
			assert.Equal(t, "Plugin", dispatch.Args["context"])
			return relay.Outcome{Result: map[string]interface{}{"output": "2"}}
		})
		defer close(stop)

		handler := RunScriptHandler(registry)
		result, _, err := handler(context.Background(), nil, RunScriptInput{Code: "print(1 + 1)"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"output": "2"}`, textContent(t, result))
	})

	t.Run("explicit context overrides the default", func(t *testing.T) {
		registry, queue := newTestRegistry(t)

		stop := respond(queue, func(dispatch relay.Dispatch) relay.Outcome {
			assert.Equal(t, "Server", dispatch.Args["context"])
			return relay.Outcome{Result: map[string]interface{}{"output": ""}}
		})
		defer close(stop)

		handler := RunScriptHandler(registry)
		_, _, err := handler(context.Background(), nil, RunScriptInput{Code: "return nil", Context: "Server"})
		require.NoError(t, err)
	})

	t.Run("timeout surfaces as an error", func(t *testing.T) {
		registry, _ := newTestRegistry(t)

		handler := RunScriptHandler(registry)
		_, _, err := handler(context.Background(), nil, RunScriptInput{Code: "return nil"})
		assert.ErrorIs(t, err, relay.ErrTimeout)
	})
}

func TestGetScriptHandler(t *testing.T) {
	t.Run("source passes through as plain text", func(t *testing.T) {
		registry, queue := newTestRegistry(t)

		stop := respond(queue, func(relay.Dispatch) relay.Outcome {
			return relay.Outcome{Result: map[string]interface{}{"source": "print('hi')"}}
		})
		defer close(stop)

		handler := GetScriptHandler(registry)
		result, _, err := handler(context.Background(), nil, GetScriptInput{Path: "game.ServerScriptService.Main"})
		require.NoError(t, err)
		assert.Equal(t, "print('hi')", textContent(t, result))
	})

	t.Run("missing source yields the placeholder", func(t *testing.T) {
		registry, queue := newTestRegistry(t)

		stop := respond(queue, func(relay.Dispatch) relay.Outcome {
			return relay.Outcome{Result: map[string]interface{}{}}
		})
		defer close(stop)

		handler := GetScriptHandler(registry)
		result, _, err := handler(context.Background(), nil, GetScriptInput{Path: "game.ServerScriptService.Missing"})
		require.NoError(t, err)
		assert.Equal(t, studiotools.ScriptNotFoundPlaceholder, textContent(t, result))
	})
}

func TestListChildrenHandler(t *testing.T) {
	t.Run("empty path falls back to the game root", func(t *testing.T) {
		registry, queue := newTestRegistry(t)

		stop := respond(queue, func(dispatch relay.Dispatch) relay.Outcome {
			assert.Equal(t, "game", dispatch.Args["path"])
			return relay.Outcome{Result: map[string]interface{}{"children": []interface{}{}}}
		})
		defer close(stop)

		handler := ListChildrenHandler(registry)
		_, _, err := handler(context.Background(), nil, ListChildrenInput{})
		require.NoError(t, err)
	})
}

func TestSetPropertyHandler(t *testing.T) {
	t.Run("execution failure surfaces the plugin error", func(t *testing.T) {
		registry, queue := newTestRegistry(t)

		stop := respond(queue, func(relay.Dispatch) relay.Outcome {
			return relay.Outcome{Err: "instance not found"}
		})
		defer close(stop)

		handler := SetPropertyHandler(registry)
		_, _, err := handler(context.Background(), nil, SetPropertyInput{
			Path:     "game.Workspace.Ghost",
			Property: "Name",
			Value:    "Phantom",
		})

		var execErr *relay.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "instance not found", execErr.Message)
	})
}
