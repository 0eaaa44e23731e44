package index

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/semverx"
)

// AccessTier describes where a package's artifact is served from.
type AccessTier uint8

// Access tiers.
const (
	Live AccessTier = iota
	Local
	Remote
)

// String returns the tier name.
func (t AccessTier) String() string {
	switch t {
	case Live:
		return "live"
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// ParseAccessTier parses a tier name.
func ParseAccessTier(raw string) (AccessTier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live", "":
		return Live, nil
	case "local":
		return Local, nil
	case "remote":
		return Remote, nil
	default:
		return 0, fmt.Errorf("index: unknown access tier %q", raw)
	}
}

// AccessLevel controls who may fetch a package.
type AccessLevel uint8

// Access levels.
const (
	Public AccessLevel = iota
	Protected
	Private
)

// String returns the level name.
func (l AccessLevel) String() string {
	switch l {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("access(%d)", uint8(l))
	}
}

// ParseAccessLevel parses an access level name.
func ParseAccessLevel(raw string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "public", "":
		return Public, nil
	case "protected":
		return Protected, nil
	case "private":
		return Private, nil
	default:
		return 0, fmt.Errorf("index: unknown access level %q", raw)
	}
}

// Metadata is the descriptive part of a package record.
type Metadata struct {
	Name          string
	Description   string
	Author        string
	License       string
	TarballURL    string
	InstallScript string
}

// DependencyEdge is a declared dependency on another package.
type DependencyEdge struct {
	Target   string
	Range    semverx.Range
	Optional bool
}

// StableSnapshot is the last version and metadata published on the
// all-stable channel, kept for RollbackToStable.
type StableSnapshot struct {
	Version  semverx.Version
	Metadata Metadata
	Checksum string
}

// Record is the payload stored in the index, keyed by PackageID.
type Record struct {
	PackageID   string
	Version     semverx.Version
	Metadata    Metadata
	Tier        AccessTier
	Access      AccessLevel
	Fault       fault.Level
	Checksum    string
	Signature   string
	UpdateCount uint64
	LastUpdate  time.Time

	Dependencies []DependencyEdge
	Dependents   map[string]bool
	Observers    map[string]bool

	// Frozen rejects writes while set.
	Frozen bool
	// ReviewPending blocks automated promotion while set.
	ReviewPending bool
	// LastStable is nil until a stable version has been recorded.
	LastStable *StableSnapshot
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	c.Dependencies = slices.Clone(r.Dependencies)
	c.Dependents = maps.Clone(r.Dependents)
	c.Observers = maps.Clone(r.Observers)
	if r.LastStable != nil {
		s := *r.LastStable
		c.LastStable = &s
	}
	return c
}

// DependentIDs returns the dependents sorted.
func (r Record) DependentIDs() []string {
	return slices.Sorted(maps.Keys(r.Dependents))
}

// ObserverIDs returns the observer IDs sorted.
func (r Record) ObserverIDs() []string {
	return slices.Sorted(maps.Keys(r.Observers))
}

// RememberStable records the current version as the rollback target when
// it is on the all-stable channel.
func (r *Record) RememberStable() {
	if !r.Version.IsStable() {
		return
	}
	r.LastStable = &StableSnapshot{Version: r.Version, Metadata: r.Metadata, Checksum: r.Checksum}
}
