package logs

import (
	"bytes"
	"log/slog"
	"testing"

	"gateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Env.Log.Level = "loud"

	_, err := New(Params{Config: cfg})
	assert.Error(t, err)
}

func TestRedactEmail(t *testing.T) {
	tests := map[string]string{
		"foobar@example.com":      "fo***@example.com",
		"ab@ex.com":               "***@ex.com",
		"a@ex.com":                "***@ex.com",
		"no-at-here":              "***",
		"a@b@c":                   "***",
		"":                        "***",
		"abc.def+tag@EXAMPLE.org": "ab***@EXAMPLE.org",
	}

	for in, want := range tests {
		assert.Equal(t, want, RedactEmail(in), in)
	}
}

func TestRedactAttr_HidesSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactAttr}))

	logger.Info("login",
		slog.String("email", "alice@example.com"),
		slog.String("password", "hunter2"),
		slog.String("refresh", "eyJhbGciOi"),
		slog.Int("attempt", 1),
	)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "email=al***@example.com")
	assert.Contains(t, out, "attempt=1")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "alice@")
}
