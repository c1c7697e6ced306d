// internal/browser/webclient/listeners.go
package webclient

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// ErrorListener is told about every script failure on the client's pages.
type ErrorListener interface {
	ScriptException(p *page.HtmlPage, exc *jsexec.ScriptException)
	TimeoutError(p *page.HtmlPage, allowed, elapsed time.Duration)
}

// LoggingErrorListener is the default listener: failures go to the log and nowhere else.
type LoggingErrorListener struct {
	Logger *zap.Logger
}

func (l LoggingErrorListener) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l LoggingErrorListener) ScriptException(p *page.HtmlPage, exc *jsexec.ScriptException) {
	l.logger().Error("Script error",
		zap.Stringer("page", p),
		zap.String("source", exc.SourceName),
		zap.Int("line", exc.Line),
		zap.Int("column", exc.Column),
		zap.String("message", exc.Message))
}

func (l LoggingErrorListener) TimeoutError(p *page.HtmlPage, allowed, elapsed time.Duration) {
	l.logger().Warn("Script timed out",
		zap.Stringer("page", p),
		zap.Duration("allowed", allowed),
		zap.Duration("elapsed", elapsed))
}

// AlertHandler receives window.alert messages.
type AlertHandler interface {
	HandleAlert(p *page.HtmlPage, message string)
}

// CollectingAlertHandler records alert messages in the order they were raised.
type CollectingAlertHandler struct {
	mu     sync.Mutex
	alerts []string
}

func NewCollectingAlertHandler() *CollectingAlertHandler {
	return &CollectingAlertHandler{}
}

func (h *CollectingAlertHandler) HandleAlert(_ *page.HtmlPage, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, message)
}

// Alerts returns a copy of the messages collected so far.
func (h *CollectingAlertHandler) Alerts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.alerts...)
}
