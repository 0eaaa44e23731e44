package observer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/semverx"
)

// ID identifies a registered observer.
type ID string

// NewID returns a random observer ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// UpdateType classifies a state change for consumers.
type UpdateType uint8

// Update types.
const (
	// OptIn updates may be applied at the consumer's discretion.
	OptIn UpdateType = iota
	// Mandatory updates must be applied, e.g. after a rollback.
	Mandatory
	// StaleRelease marks the current release as no longer fit for use.
	StaleRelease
)

// String returns the update type name.
func (t UpdateType) String() string {
	switch t {
	case OptIn:
		return "opt-in"
	case Mandatory:
		return "mandatory"
	case StaleRelease:
		return "stale-release"
	default:
		return fmt.Sprintf("update(%d)", uint8(t))
	}
}

// Update describes a change to a package's resolved state. It is an
// immutable value shared by every observer of one notification.
type Update struct {
	PackageID  string
	OldVersion *semverx.Version
	NewVersion semverx.Version
	Type       UpdateType
	Fault      fault.Level
	Action     fault.RecoveryAction
	Reason     string
	At         time.Time
}

// LogValue renders the update as structured log attributes.
func (u Update) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("package_id", u.PackageID),
		slog.String("new_version", u.NewVersion.String()),
		slog.String("type", u.Type.String()),
		slog.String("fault", u.Fault.String()),
	}
	if u.OldVersion != nil {
		attrs = append(attrs, slog.String("old_version", u.OldVersion.String()))
	}
	if u.Reason != "" {
		attrs = append(attrs, slog.String("reason", u.Reason))
	}
	return slog.GroupValue(attrs...)
}
