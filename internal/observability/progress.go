package observability

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// Progress receives one Increment per finished unit of work.
type Progress interface {
	Start(total int)
	Increment()
	Done()
}

type nopProgress struct{}

func (nopProgress) Start(int)  {}
func (nopProgress) Increment() {}
func (nopProgress) Done()      {}

func NewNopProgress() Progress {
	return nopProgress{}
}

// BarProgress renders a single tracker on out.
type BarProgress struct {
	message string
	writer  progress.Writer
	tracker *progress.Tracker
}

func NewBarProgress(out io.Writer, message string) *BarProgress {
	w := progress.NewWriter()
	w.SetOutputWriter(out)
	w.SetAutoStop(true)
	w.SetTrackerLength(40)
	w.SetUpdateFrequency(100 * time.Millisecond)
	w.SetStyle(progress.StyleDefault)
	w.Style().Visibility.ETA = true

	return &BarProgress{message: message, writer: w}
}

func (p *BarProgress) Start(total int) {
	p.tracker = &progress.Tracker{Message: p.message, Total: int64(total), Units: progress.UnitsDefault}
	p.writer.AppendTracker(p.tracker)
	go p.writer.Render()
	waitFor(time.Second, p.writer.IsRenderInProgress)
}

func (p *BarProgress) Increment() {
	if p.tracker != nil {
		p.tracker.Increment(1)
	}
}

func (p *BarProgress) Done() {
	if p.tracker == nil {
		return
	}
	p.tracker.MarkAsDone()
	// auto-stop draws the final state and then ends Render
	if !waitFor(2*time.Second, func() bool { return !p.writer.IsRenderInProgress() }) {
		p.writer.Stop()
	}
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}
