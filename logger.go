package auth

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// LoggerProvider hands out named loggers, *glog.BaseLogger satisfies it.
type LoggerProvider interface {
	GetLogger(name string) glog.Logger
}

// NewLogger builds a glog logger for the service. Errors logged under the
// "error" key have their code, text code and category expanded as fields.
// Fatal only logs, callers decide how to exit.
func NewLogger(opts ...glog.Option) *glog.BaseLogger {
	base := []glog.Option{
		glog.WithName("credentials"),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(glog.Info),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
		glog.WithFatalBehavior(glog.FatalBehaviorLogOnly),
	}
	return glog.NewLogger(append(base, opts...)...)
}

var _ Logger = (*glog.BaseLogger)(nil)

var defLogger Logger = NewLogger().GetLogger("auth")

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger
	}
	return l
}
