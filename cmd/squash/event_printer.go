package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"squash/internal/engine"
	"squash/internal/events"
)

// eventPrinter renders bus events as terminal lines. On a terminal the
// progress of the most recent job is redrawn in place; otherwise a line is
// written each time a job crosses a whole percent.
type eventPrinter struct {
	out      io.Writer
	live     bool
	colorize bool
	showLogs bool
	name     func(jobID string) string

	lastPercent map[string]int
	pending     bool
}

func newEventPrinter(out io.Writer, live bool, name func(string) string) *eventPrinter {
	if name == nil {
		name = shortID
	}
	return &eventPrinter{
		out:         out,
		live:        live,
		colorize:    live,
		name:        name,
		lastPercent: make(map[string]int),
	}
}

func (p *eventPrinter) print(evt events.Event) {
	switch evt.Type {
	case events.TypeProgress:
		if evt.Progress != nil {
			p.printProgress(evt.Progress)
		}
	case events.TypeState:
		if evt.State == nil || evt.State.From == "" {
			return
		}
		p.line(fmt.Sprintf("%s %s: %s -> %s", evt.Time.Local().Format(time.TimeOnly),
			p.name(evt.State.JobID), formatStatusLabel(evt.State.From),
			jobStatusCell(engine.Status(evt.State.To), p.colorize)))
	case events.TypeCompleted:
		if evt.Completion == nil {
			return
		}
		delete(p.lastPercent, evt.Completion.JobID)
		c := evt.Completion
		if c.Success {
			p.line(fmt.Sprintf("%s %s: %s", evt.Time.Local().Format(time.TimeOnly), p.name(c.JobID),
				jobStatusCell(engine.StatusCompleted, p.colorize)))
			return
		}
		p.line(fmt.Sprintf("%s %s: %s", evt.Time.Local().Format(time.TimeOnly), p.name(c.JobID), firstLine(c.Error)))
	case events.TypeLog:
		if !p.showLogs || evt.Log == nil {
			return
		}
		p.line(fmt.Sprintf("%s [%s] %s", evt.Log.Timestamp.Local().Format(time.TimeOnly),
			strings.ToUpper(evt.Log.Level), evt.Log.Message))
	}
}

func (p *eventPrinter) printProgress(prog *events.Progress) {
	percent := int(math.Floor(prog.Progress))
	if last, ok := p.lastPercent[prog.JobID]; ok && last == percent && !p.live {
		return
	}
	p.lastPercent[prog.JobID] = percent

	text := fmt.Sprintf("%s %s", p.name(prog.JobID), formatProgress(prog))
	if p.live {
		fmt.Fprintf(p.out, "\r\x1b[2K%s", text)
		p.pending = true
		return
	}
	fmt.Fprintln(p.out, text)
}

// line writes a full line, first terminating an in-place progress line.
func (p *eventPrinter) line(text string) {
	if p.pending {
		fmt.Fprint(p.out, "\r\x1b[2K")
		p.pending = false
	}
	fmt.Fprintln(p.out, text)
}

func (p *eventPrinter) finish() {
	if p.pending {
		fmt.Fprintln(p.out)
		p.pending = false
	}
}

func formatProgress(prog *events.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%5.1f%%", prog.Progress)
	if prog.Speed != nil {
		fmt.Fprintf(&b, "  %.2fx", *prog.Speed)
	}
	if prog.FPS != nil {
		fmt.Fprintf(&b, "  %.0f fps", *prog.FPS)
	}
	if prog.Size != "" {
		fmt.Fprintf(&b, "  %s", prog.Size)
	}
	if prog.ETA != nil && *prog.ETA >= 0 {
		fmt.Fprintf(&b, "  ETA %s", (time.Duration(*prog.ETA * float64(time.Second))).Round(time.Second))
	}
	return b.String()
}
