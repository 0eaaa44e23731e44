// Package ui renders registry state for the terminal: records with their
// fault badges, fault transitions, resolution outcomes, install orders,
// criticality rankings, and observer updates.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/observer"
	"github.com/papapumpkin/semverx/internal/resolve"
)

// UI is the output surface used by the CLI.
type UI interface {
	Info(msg string)
	Success(msg string)
	Error(msg string)
	Record(rec index.Record)
	Listing(recs []index.Record)
	FaultChange(id string, tr fault.Transition, reason string)
	Outcome(o resolve.Outcome)
	InstallOrder(id string, order []string)
	Ranking(ranked []depgraph.Ranked)
	Tree(g *depgraph.Snapshot, root string) error
	Update(u observer.Update)
}

// Printer writes styled output to a writer.
type Printer struct {
	w io.Writer
	s styles
}

// New returns a Printer on stderr.
func New() *Printer {
	return NewWriter(os.Stderr)
}

// NewWriter returns a Printer on w. Color is used only when w is a
// color-capable terminal.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w, s: newStyles(lipgloss.NewRenderer(w))}
}

// Badge renders a fault level colored by its recovery band.
func (p *Printer) Badge(l fault.Level) string {
	return p.s.badge(l)
}

// Info prints a muted informational line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, p.s.muted.Render(msg))
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, p.s.ok.Render(iconOK)+" "+msg)
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, p.s.fail.Render(iconFail+" error:")+" "+msg)
}

// Record prints a package record as a labeled block.
func (p *Printer) Record(rec index.Record) {
	fmt.Fprintf(p.w, "%s %s %s\n", p.s.heading.Render(rec.PackageID), rec.Version, p.Badge(rec.Fault))

	rows := [][2]string{
		{"plain", rec.Version.Plain()},
		{"action", fault.ActionFor(rec.Fault).String()},
		{"tier", rec.Tier.String() + " / " + rec.Access.String()},
	}
	if rec.Metadata.Name != "" {
		rows = append(rows, [2]string{"name", rec.Metadata.Name})
	}
	if rec.Metadata.Description != "" {
		rows = append(rows, [2]string{"description", rec.Metadata.Description})
	}
	if rec.Metadata.License != "" {
		rows = append(rows, [2]string{"license", rec.Metadata.License})
	}
	if rec.Checksum != "" {
		rows = append(rows, [2]string{"checksum", rec.Checksum})
	}
	if rec.LastStable != nil {
		rows = append(rows, [2]string{"last stable", rec.LastStable.Version.String()})
	}
	var flags []string
	if rec.ReviewPending {
		flags = append(flags, "review pending")
	}
	if rec.Frozen {
		flags = append(flags, "frozen")
	}
	if len(flags) > 0 {
		rows = append(rows, [2]string{"flags", strings.Join(flags, ", ")})
	}
	rows = append(rows, [2]string{"updates", fmt.Sprintf("%d", rec.UpdateCount)})
	if !rec.LastUpdate.IsZero() {
		rows = append(rows, [2]string{"last update", rec.LastUpdate.UTC().Format(time.RFC3339)})
	}
	for _, d := range rec.Dependencies {
		dep := d.Target + " " + d.Range.String()
		if d.Optional {
			dep += " (optional)"
		}
		rows = append(rows, [2]string{"depends on", dep})
	}
	if ids := rec.DependentIDs(); len(ids) > 0 {
		rows = append(rows, [2]string{"dependents", strings.Join(ids, ", ")})
	}
	if n := len(rec.Observers); n > 0 {
		rows = append(rows, [2]string{"observers", fmt.Sprintf("%d", n)})
	}
	for _, r := range rows {
		fmt.Fprintf(p.w, "  %s %s\n", p.s.label.Render(fmt.Sprintf("%-12s", r[0]+":")), r[1])
	}
}

// Listing prints one line per record followed by a count per fault band.
func (p *Printer) Listing(recs []index.Record) {
	if len(recs) == 0 {
		p.Info("(no packages)")
		return
	}
	bands := make(map[fault.RecoveryAction]int)
	for _, rec := range recs {
		line := fmt.Sprintf("  %-24s %-40s %s", rec.PackageID, rec.Version, p.Badge(rec.Fault))
		if rec.Frozen {
			line += " " + p.s.muted.Render("frozen")
		} else if rec.ReviewPending {
			line += " " + p.s.muted.Render("review pending")
		}
		fmt.Fprintln(p.w, line)
		bands[fault.ActionFor(rec.Fault)]++
	}
	summary := []string{fmt.Sprintf("%d packages", len(recs))}
	for a := fault.NotifyObservers; a <= fault.SystemReset; a++ {
		if n := bands[a]; n > 0 {
			summary = append(summary, fmt.Sprintf("%d %s", n, a))
		}
	}
	fmt.Fprintln(p.w, p.s.label.Render(strings.Join(summary, ", ")))
}

// FaultChange prints one transition. Unchanged levels print as muted.
func (p *Printer) FaultChange(id string, tr fault.Transition, reason string) {
	if !tr.Escalated() {
		fmt.Fprintf(p.w, "%s %s unchanged at %s\n", p.s.muted.Render(iconDot), id, p.Badge(tr.To))
		return
	}
	line := fmt.Sprintf("%s %s %s %s", id, p.Badge(tr.From), iconArrow, p.Badge(tr.To))
	if tr.BandChanged() {
		line += " " + p.s.label.Render("("+tr.Action().String()+")")
	}
	if reason != "" {
		line += " " + p.s.muted.Render(reason)
	}
	fmt.Fprintln(p.w, line)
}

// Outcome prints a resolution result.
func (p *Printer) Outcome(o resolve.Outcome) {
	head := fmt.Sprintf("%s %s", p.s.ok.Render(iconOK), p.s.heading.Render(string(o.Strategy)))
	if o.Cached {
		head += " " + p.s.muted.Render("(cached)")
	}
	fmt.Fprintln(p.w, head)
	if o.Verdict != "" {
		fmt.Fprintf(p.w, "  %s %s\n", p.s.label.Render("verdict:"), o.Verdict)
	}
	if o.Path.Len() > 0 {
		fmt.Fprintf(p.w, "  %s %s\n", p.s.label.Render("path:"), strings.Join(o.Path.Nodes, " "+iconArrow+" "))
		fmt.Fprintf(p.w, "  %s %d\n", p.s.label.Render("cost:"), o.Path.Cost)
	}
	if o.Level != fault.Clean {
		fmt.Fprintf(p.w, "  %s %s\n", p.s.label.Render("fault:"), p.Badge(o.Level))
	}
	stages := make([]string, len(o.Stages))
	for i, s := range o.Stages {
		stages[i] = s.String()
	}
	if len(stages) > 0 {
		fmt.Fprintf(p.w, "  %s %s\n", p.s.label.Render("stages:"), p.s.muted.Render(strings.Join(stages, " "+iconArrow+" ")))
	}
}

// InstallOrder prints a numbered install sequence.
func (p *Printer) InstallOrder(id string, order []string) {
	fmt.Fprintf(p.w, "%s %s\n", p.s.heading.Render("install order for"), id)
	for i, pkg := range order {
		fmt.Fprintf(p.w, "  %2d. %s\n", i+1, pkg)
	}
}

// Ranking prints criticality scores, most critical first.
func (p *Printer) Ranking(ranked []depgraph.Ranked) {
	if len(ranked) == 0 {
		p.Info("(no packages)")
		return
	}
	fmt.Fprintln(p.w, p.s.label.Render(fmt.Sprintf("  %-24s %8s %8s %8s %5s", "package", "score", "pagerank", "between", "deps")))
	for _, r := range ranked {
		fmt.Fprintf(p.w, "  %-24s %8.4f %8.4f %8.4f %5d\n", r.ID, r.Score, r.PageRank, r.Betweenness, r.Dependents)
	}
}

// Update prints an observer update.
func (p *Printer) Update(u observer.Update) {
	style, ok := p.s.updates[u.Type]
	if !ok {
		style = p.s.label
	}
	line := fmt.Sprintf("%s %s", style.Render("["+u.Type.String()+"]"), u.PackageID)
	if u.OldVersion != nil {
		line += fmt.Sprintf(" %s %s %s", *u.OldVersion, iconArrow, u.NewVersion)
	} else {
		line += " " + u.NewVersion.String()
	}
	if u.Fault != fault.Clean {
		line += " " + p.Badge(u.Fault)
	}
	if u.Reason != "" {
		line += " " + p.s.muted.Render(u.Reason)
	}
	fmt.Fprintln(p.w, line)
}
