// internal/browser/jsexec/executor.go
package jsexec

import (
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// executor runs the timer jobs of every registered window on one event loop. The loop's
// own runtime is never used: each job calls into its page's runtime through
// CallFunction, so jobs are serialized with page scripts by the page lock.
type executor struct {
	e    *Engine
	loop *eventloop.EventLoop
}

func newExecutor(e *Engine) *executor {
	return &executor{e: e, loop: eventloop.NewEventLoop(eventloop.EnableConsole(false))}
}

func (x *executor) start() {
	x.loop.Start()
	x.e.logger.Debug("Job executor started")
}

// Schedule implements page.Scheduler. Zero-delay jobs are queued on the loop directly so
// they keep their submission order.
func (x *executor) Schedule(delay, period time.Duration, fire func()) (cancel func()) {
	run := func(*goja.Runtime) { fire() }
	switch {
	case period > 0:
		iv := x.loop.SetInterval(run, period)
		return func() { x.loop.ClearInterval(iv) }
	case delay <= 0:
		x.loop.RunOnLoop(run)
		return func() {}
	default:
		t := x.loop.SetTimeout(run, delay)
		return func() { x.loop.ClearTimeout(t) }
	}
}

// stop waits for a running job to return, then clears every timer left on the loop so
// none of its goroutines outlive it.
func (x *executor) stop() {
	x.loop.Terminate()
	x.e.logger.Debug("Job executor stopped")
}
