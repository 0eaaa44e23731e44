package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/semverx"
)

// recordRow is the JSON document stored per package. Observer
// registrations are live state and are not persisted.
type recordRow struct {
	PackageID     string          `json:"package_id"`
	Version       semverx.Version `json:"version"`
	Metadata      metadataRow     `json:"metadata"`
	Tier          string          `json:"tier"`
	Access        string          `json:"access"`
	Fault         uint8           `json:"fault"`
	Checksum      string          `json:"checksum,omitempty"`
	Signature     string          `json:"signature,omitempty"`
	UpdateCount   uint64          `json:"update_count"`
	LastUpdate    time.Time       `json:"last_update"`
	Dependencies  []edgeRow       `json:"dependencies,omitempty"`
	Dependents    []string        `json:"dependents,omitempty"`
	Frozen        bool            `json:"frozen,omitempty"`
	ReviewPending bool            `json:"review_pending,omitempty"`
	LastStable    *stableRow      `json:"last_stable,omitempty"`
}

type metadataRow struct {
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Author        string `json:"author,omitempty"`
	License       string `json:"license,omitempty"`
	TarballURL    string `json:"tarball_url,omitempty"`
	InstallScript string `json:"install_script,omitempty"`
}

type edgeRow struct {
	Target   string        `json:"target"`
	Range    semverx.Range `json:"range"`
	Optional bool          `json:"optional,omitempty"`
}

type stableRow struct {
	Version  semverx.Version `json:"version"`
	Metadata metadataRow     `json:"metadata"`
	Checksum string          `json:"checksum,omitempty"`
}

func encodeRecord(r index.Record) ([]byte, error) {
	row := recordRow{
		PackageID:     r.PackageID,
		Version:       r.Version,
		Metadata:      metadataRow(r.Metadata),
		Tier:          r.Tier.String(),
		Access:        r.Access.String(),
		Fault:         uint8(r.Fault),
		Checksum:      r.Checksum,
		Signature:     r.Signature,
		UpdateCount:   r.UpdateCount,
		LastUpdate:    r.LastUpdate,
		Dependents:    slices.Sorted(maps.Keys(r.Dependents)),
		Frozen:        r.Frozen,
		ReviewPending: r.ReviewPending,
	}
	for _, d := range r.Dependencies {
		row.Dependencies = append(row.Dependencies, edgeRow(d))
	}
	if r.LastStable != nil {
		row.LastStable = &stableRow{
			Version:  r.LastStable.Version,
			Metadata: metadataRow(r.LastStable.Metadata),
			Checksum: r.LastStable.Checksum,
		}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s: %w", r.PackageID, err)
	}
	return b, nil
}

func decodeRecord(b []byte) (index.Record, error) {
	var row recordRow
	if err := json.Unmarshal(b, &row); err != nil {
		return index.Record{}, fmt.Errorf("store: decode record: %w", err)
	}
	tier, err := index.ParseAccessTier(row.Tier)
	if err != nil {
		return index.Record{}, fmt.Errorf("store: %s: %w", row.PackageID, err)
	}
	access, err := index.ParseAccessLevel(row.Access)
	if err != nil {
		return index.Record{}, fmt.Errorf("store: %s: %w", row.PackageID, err)
	}
	lvl := fault.Level(row.Fault)
	if !lvl.Valid() {
		return index.Record{}, fmt.Errorf("store: %s: %w: %d", row.PackageID, fault.ErrInvalidLevel, row.Fault)
	}

	r := index.Record{
		PackageID:     row.PackageID,
		Version:       row.Version,
		Metadata:      index.Metadata(row.Metadata),
		Tier:          tier,
		Access:        access,
		Fault:         lvl,
		Checksum:      row.Checksum,
		Signature:     row.Signature,
		UpdateCount:   row.UpdateCount,
		LastUpdate:    row.LastUpdate,
		Frozen:        row.Frozen,
		ReviewPending: row.ReviewPending,
	}
	for _, d := range row.Dependencies {
		r.Dependencies = append(r.Dependencies, index.DependencyEdge(d))
	}
	if len(row.Dependents) > 0 {
		r.Dependents = make(map[string]bool, len(row.Dependents))
		for _, id := range row.Dependents {
			r.Dependents[id] = true
		}
	}
	if row.LastStable != nil {
		r.LastStable = &index.StableSnapshot{
			Version:  row.LastStable.Version,
			Metadata: index.Metadata(row.LastStable.Metadata),
			Checksum: row.LastStable.Checksum,
		}
	}
	return r, nil
}
