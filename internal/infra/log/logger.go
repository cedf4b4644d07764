package logs

import (
	"log/slog"
	"os"
	"strings"

	"gateway/config"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const redactedValue = "[REDACTED]"

// sensitiveKeys never reach the log output, whatever the call site passes.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"access":        {},
	"refresh":       {},
	"token":         {},
	"authorization": {},
	"secret":        {},
}

// Params defines the parameters required for the logger
type Params struct {
	fx.In

	Config *config.Config
}

// New creates and initializes slog.Logger
func New(params Params) (*slog.Logger, error) {
	level, err := parseLogLevel(params.Config.Env.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redactAttr}

	var logger *slog.Logger
	if params.Config.Env.Log.Pretty {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return logger.With(slog.String("service", params.Config.Env.ServiceName)), nil
}

// parseLogLevel converts string log level to slog.Level. An empty level means info.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level: %s", level)
	}
}

func redactAttr(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redactedValue)
	}
	if strings.EqualFold(attr.Key, "email") && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, RedactEmail(attr.Value.String()))
	}

	return attr
}

// RedactEmail masks the local part of an address, keeping its first two runes and the domain.
//
//	"foobar@example.com" -> "fo***@example.com"
//	"ab@ex.com"          -> "***@ex.com"
//	"no-at"              -> "***"
func RedactEmail(email string) string {
	if strings.Count(email, "@") != 1 {
		return "***"
	}

	local, domain, _ := strings.Cut(email, "@")
	runes := []rune(local)
	if len(runes) > 2 {
		return string(runes[:2]) + "***@" + domain
	}

	return "***@" + domain
}
