package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(WithOutput(&buf), WithService("notifykit"))
		log.Info("hello")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "notifykit", record["service"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(WithOutput(&buf), WithFormat(FormatText))
		log.Info("hello")

		assert.True(t, strings.Contains(buf.String(), "msg=hello"))
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(WithOutput(&buf), WithLevel(slog.LevelWarn))
		log.Info("dropped")
		assert.Empty(t, buf.String())

		log.Warn("kept")
		assert.NotEmpty(t, buf.String())
	})

	t.Run("development preset", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(WithDevelopment(), WithOutput(&buf))
		log.Debug("visible")
		assert.NotEmpty(t, buf.String())
	})
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Error(nil))
	assert.Equal(t, "error", Error(errors.New("x")).Key)
	assert.Equal(t, slog.Attr{}, UserID(nil))
	assert.Equal(t, "user_id", UserID("u1").Key)
	assert.Equal(t, "event_id", EventID("e1").Key)
	assert.Equal(t, "channel", Channel("email").Key)
	assert.Equal(t, "rule", Rule("chat.response").Key)
	assert.Equal(t, slog.Attr{}, Rule(""))
}
