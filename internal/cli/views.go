package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/engine"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// Views render as JSON through their fields and as text through String.

type runView struct {
	Run *drive.PipelineRun `json:"run"`
}

func (v runView) String() string {
	r := v.Run
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "pipeline\t%s\n", r.PipelineName)
	fmt.Fprintf(tw, "status\t%s (retry %d)\n", r.Status, r.RetryNumber)
	fmt.Fprintf(tw, "window\t%s (%s)\n", r.Window(), r.WindowDuration)
	if r.Duration != "" {
		fmt.Fprintf(tw, "duration\t%s\n", r.Duration)
	}
	tw.Flush()

	b.WriteString("\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tSTATUS\tDURATION\tNOTE")
	for _, name := range phaseOrder(r) {
		rec := r.Details[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, rec.Status, rec.ActualDuration, note(rec))
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// phaseOrder lists the run's phases in registry order. Phases outside the
// default registry follow in name order.
func phaseOrder(r *drive.PipelineRun) []string {
	var names []string
	for _, name := range phase.Default().Names() {
		if _, ok := r.Details[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range r.Details {
		if phase.Default().Index(name) < 0 {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func note(rec drive.PhaseRecord) string {
	switch {
	case rec.ErrorMessage != "":
		return rec.ErrorMessage
	case rec.SkipReason != "":
		return rec.SkipReason
	}
	return ""
}

type historyView struct {
	Pipeline string               `json:"pipeline"`
	Runs     []*drive.PipelineRun `json:"runs"`
}

func (v historyView) String() string {
	if len(v.Runs) == 0 {
		return fmt.Sprintf("no runs recorded for %s", v.Pipeline)
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tRETRY\tWINDOW\tSTARTED\tFAILED PHASE")
	for _, r := range v.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.RunID, r.Status, r.RetryNumber, r.Window(), r.StartedAt.Format(time.RFC3339), r.PhaseFailed())
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

type windowView struct {
	Pipeline          string          `json:"pipeline"`
	Next              window.Window   `json:"next"`
	LastSuccessfulEnd *time.Time      `json:"last_successful_end,omitempty"`
	Gaps              []window.Window `json:"gaps,omitempty"`
}

func (v windowView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "next window: %s", v.Next)
	if v.LastSuccessfulEnd == nil {
		b.WriteString("\nno successful run recorded")
	} else {
		fmt.Fprintf(&b, "\nlast successful window ended %s", v.LastSuccessfulEnd.Format(time.RFC3339))
	}
	if len(v.Gaps) > 0 {
		fmt.Fprintf(&b, "\n%d unprocessed gap(s):", len(v.Gaps))
		for _, g := range v.Gaps {
			fmt.Fprintf(&b, "\n  %s", g)
		}
	}
	return b.String()
}

type planView struct {
	Pipeline    string            `json:"pipeline"`
	Window      window.Window     `json:"window"`
	Fresh       bool              `json:"fresh"`
	RetryNumber int               `json:"retry_number"`
	PriorRunID  string            `json:"prior_run_id,omitempty"`
	Execute     []string          `json:"execute"`
	Skip        map[string]string `json:"skip,omitempty"`
	AllDisabled bool              `json:"all_disabled"`
}

func newPlanView(pipeline string, w window.Window, p engine.Plan) planView {
	v := planView{
		Pipeline:    pipeline,
		Window:      w,
		Fresh:       p.Resolution.Fresh,
		RetryNumber: p.Resolution.RetryNumber,
		Execute:     p.Execute,
		Skip:        p.Skip,
		AllDisabled: p.AllDisabled,
	}
	if p.Resolution.Prior != nil {
		v.PriorRunID = p.Resolution.Prior.RunID
	}
	return v
}

func (v planView) String() string {
	var b strings.Builder
	kind := "fresh run"
	if !v.Fresh {
		kind = "continuation of " + v.PriorRunID
	}
	fmt.Fprintf(&b, "%s %s: %s, retry %d", v.Pipeline, v.Window, kind, v.RetryNumber)
	if v.AllDisabled {
		b.WriteString("\nevery phase is disabled; the run would be SKIPPED")
		return b.String()
	}
	fmt.Fprintf(&b, "\nexecute: %s", strings.Join(v.Execute, ", "))
	names := make([]string, 0, len(v.Skip))
	for name := range v.Skip {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\nskip %s: %s", name, v.Skip[name])
	}
	return b.String()
}

type auditView struct {
	Report audit.Report `json:"report"`
}

func (v auditView) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOP\tUPSTREAM\tDOWNSTREAM\tLOSS %\tTOLERANCE %\tRESULT")
	for _, c := range v.Report.Checks {
		result := "pass"
		if !c.Passed {
			result = "FAIL " + string(c.Defect)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%.3f\t%s\n",
			c.Hop, c.Upstream, c.Downstream, c.LossPercent, c.TolerancePercent, result)
	}
	tw.Flush()
	if v.Report.Passed {
		b.WriteString("audit passed")
	} else {
		b.WriteString("audit failed: " + v.Report.Reason)
	}
	return b.String()
}
