package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/observer"
)

// Semantic color palette, one color per recovery band plus accents.
var (
	colorClean   = lipgloss.Color("#00E676") // Green, NoAction band
	colorNotify  = lipgloss.Color("#5B8DEF") // Blue, observers notified
	colorReview  = lipgloss.Color("#FFD700") // Gold, manual review
	colorFreeze  = lipgloss.Color("#FF9F43") // Orange, updates frozen
	colorRevert  = lipgloss.Color("#FF5252") // Red, rolled back
	colorReset   = lipgloss.Color("#D500F9") // Magenta, system reset
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan, headings
	colorMuted   = lipgloss.Color("#8C8C8C") // Gray, labels
)

// Status icons.
const (
	iconOK    = "✓"
	iconFail  = "✗"
	iconArrow = "→"
	iconDot   = "·"
)

// styles are bound to one renderer so color output follows the writer's
// terminal capabilities.
type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	fail    lipgloss.Style
	badges  [fault.SystemReset + 1]lipgloss.Style
	updates map[observer.UpdateType]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	band := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().Foreground(c).Bold(true)
	}
	return styles{
		heading: r.NewStyle().Foreground(colorPrimary).Bold(true),
		label:   r.NewStyle().Foreground(colorMuted),
		muted:   r.NewStyle().Foreground(colorMuted).Faint(true),
		ok:      band(colorClean),
		fail:    band(colorRevert),
		badges: [...]lipgloss.Style{
			fault.NoAction:            band(colorClean),
			fault.NotifyObservers:     band(colorNotify),
			fault.RequestManualReview: band(colorReview),
			fault.FreezeUpdates:       band(colorFreeze),
			fault.RollbackToStable:    band(colorRevert),
			fault.SystemReset:         band(colorReset).Reverse(true),
		},
		updates: map[observer.UpdateType]lipgloss.Style{
			observer.OptIn:        band(colorNotify),
			observer.Mandatory:    band(colorFreeze),
			observer.StaleRelease: band(colorRevert),
		},
	}
}

// badge renders a fault level colored by its band, e.g. "[LowDanger]".
func (s styles) badge(l fault.Level) string {
	return s.badges[fault.ActionFor(l)].Render("[" + l.String() + "]")
}
