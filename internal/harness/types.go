package harness

import (
	"fmt"
	"strings"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

// Trace event kinds.
const (
	EventStart  = "start"
	EventPhase  = "phase"
	EventFinish = "finish"
)

// TraceEvent is one line of a scenario trace.
type TraceEvent struct {
	Run    string `json:"run"`
	Kind   string `json:"kind"`
	Phase  string `json:"phase,omitempty"`
	Status string `json:"status,omitempty"`
	Note   string `json:"note,omitempty"`
}

func (e TraceEvent) String() string {
	parts := []string{e.Run, e.Kind}
	for _, s := range []string{e.Phase, e.Status, e.Note} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists run starts, phase outcomes and run finishes in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Runs are the stored runs, one per run step. A step whose run was
	// never created has a nil entry.
	Runs []*drive.PipelineRun `json:"-"`

	// Invocations counts phase implementation calls over all runs.
	Invocations map[string]int `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		Invocations: make(map[string]int),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddErrorf is AddError with formatting.
func (r *Result) AddErrorf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
