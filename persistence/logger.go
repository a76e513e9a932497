package persistence

import (
	"fmt"
	"strings"

	auth "github.com/goliatone/go-credentials"
)

// gooseLogger routes migration output through the service logger. Fatalf
// only logs, goose reports the failure through the returned error.
type gooseLogger struct {
	logger auth.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
