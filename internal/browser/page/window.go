// internal/browser/page/window.go
package page

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ScriptableWindow is the script-side object bound to a WebWindow.
type ScriptableWindow interface {
	// TriggerOnError runs the window's error handler for a script failure. An error is
	// returned only when the handler itself failed.
	TriggerOnError(err error) error
}

// WebWindow is a browser window: a named container whose enclosed page changes on
// navigation.
type WebWindow struct {
	id       string
	name     string
	enclosed atomic.Pointer[HtmlPage]

	mu         sync.RWMutex
	scriptable ScriptableWindow
	closed     bool

	jobs JobQueue
}

// NewWebWindow creates an empty window. An empty name gets a generated one.
func NewWebWindow(name string) *WebWindow {
	if name == "" {
		name = "window-" + uuid.NewString()[:8]
	}
	w := &WebWindow{
		id:   uuid.NewString(),
		name: name,
	}
	w.jobs.init()
	return w
}

func (w *WebWindow) ID() string   { return w.id }
func (w *WebWindow) Name() string { return w.name }

// EnclosedPage is the page currently displayed, or nil.
func (w *WebWindow) EnclosedPage() *HtmlPage { return w.enclosed.Load() }

// SetEnclosedPage attaches p to the window, making any previous page stale. Pending jobs
// of the previous page are dropped.
func (w *WebWindow) SetEnclosedPage(p *HtmlPage) {
	if p != nil {
		p.window.Store(w)
	}
	prev := w.enclosed.Swap(p)
	if prev != nil && prev != p {
		w.jobs.RemoveForPage(prev)
	}
}

// ScriptableObject is the script-side window, or nil when scripting never ran.
func (w *WebWindow) ScriptableObject() ScriptableWindow {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scriptable
}

func (w *WebWindow) SetScriptableObject(s ScriptableWindow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scriptable = s
}

// Close detaches the enclosed page and drops all pending jobs.
func (w *WebWindow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.SetEnclosedPage(nil)
	w.jobs.Clear()
}

func (w *WebWindow) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Jobs is the window's timer queue.
func (w *WebWindow) Jobs() *JobQueue { return &w.jobs }

// -- Jobs --

// Scheduler arms timers. Schedule runs fire once after delay, or every period when period
// is positive, until the returned cancel func is called.
type Scheduler interface {
	Schedule(delay, period time.Duration, fire func()) (cancel func())
}

// Job is a timer callback scheduled by a page.
type Job struct {
	ID     int
	Page   *HtmlPage
	Delay  time.Duration
	Period time.Duration // zero for one-shot jobs
	Run    func()

	cancel func()
}

// JobQueue tracks a window's timers. Jobs added before a scheduler is attached wait and
// are armed, in id order, once one is.
type JobQueue struct {
	mu        sync.Mutex
	jobs      map[int]*Job
	nextID    int
	scheduler Scheduler
}

func (q *JobQueue) init() {
	q.jobs = make(map[int]*Job)
}

// SetScheduler attaches s and arms every waiting job. A nil s disarms all jobs but keeps
// them.
func (q *JobQueue) SetScheduler(s Scheduler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs == nil {
		q.init()
	}
	for _, j := range q.jobs {
		q.disarm(j)
	}
	q.scheduler = s
	if s == nil {
		return
	}
	ids := make([]int, 0, len(q.jobs))
	for id := range q.jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		q.arm(q.jobs[id])
	}
}

// Add schedules run after delay on behalf of p and returns the job id. A positive period
// makes the job repeat.
func (q *JobQueue) Add(p *HtmlPage, delay, period time.Duration, run func()) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs == nil {
		q.init()
	}
	q.nextID++
	j := &Job{ID: q.nextID, Page: p, Delay: delay, Period: period, Run: run}
	q.jobs[j.ID] = j
	if q.scheduler != nil {
		q.arm(j)
	}
	return j.ID
}

func (q *JobQueue) arm(j *Job) {
	j.cancel = q.scheduler.Schedule(j.Delay, j.Period, func() { q.fire(j) })
}

func (q *JobQueue) disarm(j *Job) {
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
}

// fire runs j unless it was removed meanwhile. One-shot jobs are forgotten first, so
// the callback may schedule new timers freely.
func (q *JobQueue) fire(j *Job) {
	q.mu.Lock()
	if q.jobs[j.ID] != j {
		q.mu.Unlock()
		return
	}
	if j.Period <= 0 {
		delete(q.jobs, j.ID)
	}
	q.mu.Unlock()
	j.Run()
}

// Remove cancels a job. Unknown ids are ignored.
func (q *JobQueue) Remove(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok {
		q.disarm(j)
		delete(q.jobs, id)
	}
}

// RemoveForPage cancels every job scheduled by p.
func (q *JobQueue) RemoveForPage(p *HtmlPage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, j := range q.jobs {
		if j.Page == p {
			q.disarm(j)
			delete(q.jobs, id)
		}
	}
}

func (q *JobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		q.disarm(j)
	}
	q.jobs = make(map[int]*Job)
}

func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
