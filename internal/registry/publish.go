package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/observer"
	"github.com/papapumpkin/semverx/internal/seal"
	"github.com/papapumpkin/semverx/internal/semverx"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

// ErrNoChecksum is returned when verifying a package published without an
// artifact.
var ErrNoChecksum = errors.New("no checksum recorded")

// Artifact is the optional payload of a release. When Data is set it is
// checksummed, scored by the coherence gate against Corpus, and signed.
type Artifact struct {
	Data   []byte
	Corpus [][]byte
}

// Publish inserts a new package. The record starts Clean with its
// dependencies validated against already-published targets; a package
// that earlier releases declared as a dependency is checked against
// their ranges. Publishing an existing ID fails with index.ErrDuplicateKey.
func (r *Registry) Publish(ctx context.Context, rec index.Record, art Artifact) (index.Record, error) {
	ctx, span := r.ins.tracer.Start(ctx, "registry.Publish",
		trace.WithAttributes(attribute.String("package_id", rec.PackageID)))
	defer span.End()

	out, err := r.publish(ctx, rec, art)
	r.ins.published(ctx, "publish", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("publish rejected", "package_id", rec.PackageID, "error", err)
		return index.Record{}, err
	}
	return out, nil
}

func (r *Registry) publish(ctx context.Context, in index.Record, art Artifact) (index.Record, error) {
	if in.PackageID == "" {
		return index.Record{}, fmt.Errorf("registry: %w", ErrEmptyID)
	}
	for _, e := range in.Dependencies {
		if err := checkEdge(in.PackageID, e); err != nil {
			return index.Record{}, err
		}
	}
	checksum, sig, err := r.sealArtifact(ctx, art)
	if err != nil {
		return index.Record{}, err
	}

	rec := index.Record{
		PackageID:  in.PackageID,
		Version:    in.Version,
		Metadata:   in.Metadata,
		Tier:       in.Tier,
		Access:     in.Access,
		Fault:      fault.Clean,
		Checksum:   checksum,
		Signature:  sig,
		LastUpdate: r.now(),
		Dependents: map[string]bool{},
		Observers:  map[string]bool{},
	}
	for _, e := range in.Dependencies {
		i := slices.IndexFunc(rec.Dependencies, func(d index.DependencyEdge) bool { return d.Target == e.Target })
		if i >= 0 {
			rec.Dependencies[i] = e
			continue
		}
		rec.Dependencies = append(rec.Dependencies, e)
	}
	rec.RememberStable()

	r.mu.Lock()
	if err := r.index.Insert(rec); err != nil {
		r.mu.Unlock()
		return index.Record{}, fmt.Errorf("registry: publish: %w", err)
	}
	r.graph.AddNode(rec.PackageID)
	r.graph.SetVersion(rec.PackageID, rec.Version)
	r.hub.Track(rec.PackageID)

	var updates []observer.Update
	if deps, err := r.graph.Dependents(rec.PackageID); err == nil && len(deps) > 0 {
		_, _ = r.index.Update(rec.PackageID, func(x *index.Record) error {
			for _, d := range deps {
				x.Dependents[d] = true
			}
			return nil
		})
		_, more := r.checkDependentsLocked(ctx, rec.PackageID)
		updates = append(updates, more...)
	}
	for _, e := range rec.Dependencies {
		_, more, err := r.linkLocked(ctx, rec.PackageID, e)
		if err != nil {
			r.mu.Unlock()
			r.dispatch(ctx, updates)
			return index.Record{}, err
		}
		updates = append(updates, more...)
	}
	out, _ := r.index.Search(rec.PackageID)
	r.mu.Unlock()

	r.logger.Info("package published",
		"package_id", out.PackageID, "version", out.Version, "dependencies", len(out.Dependencies))
	r.emit(telemetry.KindPublish, out.PackageID, out.Fault, map[string]any{
		"version":  out.Version.String(),
		"checksum": out.Checksum,
	})
	r.dispatch(ctx, updates)
	return out, nil
}

// Promotion describes a new release of an existing package.
type Promotion struct {
	Version semverx.Version
	// Metadata replaces the record's metadata when non-nil.
	Metadata *index.Metadata
	Artifact Artifact
}

// Promote replaces the published release of id. It is refused with
// ErrFrozen or ErrManualReview when the record's fault band blocks
// updates. Observers receive an OptIn update and dependents are
// re-validated against the new version.
func (r *Registry) Promote(ctx context.Context, id string, p Promotion) (index.Record, error) {
	ctx, span := r.ins.tracer.Start(ctx, "registry.Promote",
		trace.WithAttributes(attribute.String("package_id", id)))
	defer span.End()

	out, err := r.promote(ctx, id, p)
	r.ins.published(ctx, "promote", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return index.Record{}, err
	}
	return out, nil
}

func (r *Registry) promote(ctx context.Context, id string, p Promotion) (index.Record, error) {
	checksum, sig, err := r.sealArtifact(ctx, p.Artifact)
	if err != nil {
		return index.Record{}, err
	}

	r.mu.Lock()
	var old semverx.Version
	rec, err := r.index.Update(id, func(rec *index.Record) error {
		switch {
		case rec.Frozen:
			return fmt.Errorf("%w: %s at %s", ErrFrozen, id, rec.Fault)
		case rec.ReviewPending:
			return fmt.Errorf("%w: %s at %s", ErrManualReview, id, rec.Fault)
		}
		old = rec.Version
		rec.Version = p.Version
		if p.Metadata != nil {
			rec.Metadata = *p.Metadata
		}
		if p.Artifact.Data != nil {
			rec.Checksum, rec.Signature = checksum, sig
		}
		rec.UpdateCount++
		rec.LastUpdate = r.now()
		rec.RememberStable()
		return nil
	})
	if err != nil {
		r.mu.Unlock()
		return index.Record{}, fmt.Errorf("registry: promote: %w", err)
	}
	r.graph.SetVersion(id, rec.Version)
	updates := []observer.Update{{
		PackageID:  id,
		OldVersion: &old,
		NewVersion: rec.Version,
		Type:       observer.OptIn,
		Fault:      rec.Fault,
		Reason:     "promoted",
		At:         rec.LastUpdate,
	}}
	_, more := r.checkDependentsLocked(ctx, id)
	updates = append(updates, more...)
	r.mu.Unlock()

	r.logger.Info("package promoted", "package_id", id, "from", old, "to", rec.Version)
	r.emit(telemetry.KindPromote, id, rec.Fault, map[string]any{
		"from": old.String(),
		"to":   rec.Version.String(),
	})
	r.dispatch(ctx, updates)
	return rec, nil
}

// sealArtifact checksums, gates, and signs an artifact. An empty artifact yields
// empty strings.
func (r *Registry) sealArtifact(ctx context.Context, art Artifact) (string, string, error) {
	if art.Data == nil {
		return "", "", nil
	}
	if r.gate != nil {
		score, err := r.gate.Admit(ctx, art.Data, art.Corpus)
		if err != nil {
			return "", "", fmt.Errorf("registry: gate (score %.3f): %w", score, err)
		}
	}
	checksum := seal.Checksum(art.Data)
	if r.signer == nil {
		return checksum, "", nil
	}
	sig, err := r.signer.Sign(ctx, checksum)
	if err != nil {
		return "", "", fmt.Errorf("registry: sign: %w", err)
	}
	return checksum, base64.StdEncoding.EncodeToString(sig), nil
}

// Fetch returns the record for id for installation. Packages at
// SystemPanic are refused with ErrRefused.
func (r *Registry) Fetch(_ context.Context, id string) (index.Record, error) {
	rec, err := r.Lookup(id)
	if err != nil {
		return index.Record{}, err
	}
	if rec.Fault >= fault.SystemPanic {
		return index.Record{}, fmt.Errorf("registry: fetch %s: %w", id, ErrRefused)
	}
	return rec, nil
}

// VerifyArtifact checks data against the checksum recorded for id.
func (r *Registry) VerifyArtifact(id string, data []byte) error {
	rec, err := r.Lookup(id)
	if err != nil {
		return err
	}
	if rec.Checksum == "" {
		return fmt.Errorf("registry: verify %s: %w", id, ErrNoChecksum)
	}
	if err := seal.Verify(data, rec.Checksum); err != nil {
		return fmt.Errorf("registry: verify %s: %w", id, err)
	}
	return nil
}
