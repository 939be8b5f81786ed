// Package engine implements the versioned feature write path: it loads the
// head, resolves conflicts, merges the payload, stamps the namespace and
// swaps the head atomically through a Backend.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/spacestore/internal/conflict"
	"github.com/persistorai/spacestore/internal/merge"
	"github.com/persistorai/spacestore/internal/metrics"
	"github.com/persistorai/spacestore/internal/models"
	"github.com/persistorai/spacestore/internal/namespace"
)

const defaultMaxAttempts = 3

// Options configures a Store.
type Options struct {
	// MaxAttempts bounds how often a write is retried after losing a race
	// on the head. Values below one mean the default.
	MaxAttempts int
	Merger      *merge.Merger
	Namespace   *namespace.Manager
}

// Store performs logical feature writes.
type Store struct {
	backend     Backend
	log         *logrus.Logger
	merger      *merge.Merger
	ns          *namespace.Manager
	maxAttempts int
}

// New creates a Store on top of backend.
func New(backend Backend, log *logrus.Logger, opts Options) *Store {
	s := &Store{
		backend:     backend,
		log:         log,
		merger:      opts.Merger,
		ns:          opts.Namespace,
		maxAttempts: opts.MaxAttempts,
	}
	if s.merger == nil {
		s.merger = merge.New(0)
	}
	if s.ns == nil {
		s.ns = namespace.New()
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = defaultMaxAttempts
	}

	return s
}

// Result describes the outcome of a successful write.
type Result struct {
	// Record is the version written, or the unchanged live head when the
	// write was retained. It is nil when a retained write found no feature.
	Record *models.VersionRecord
	// Previous is the head the write started from, if any.
	Previous    *models.VersionRecord
	Disposition conflict.Disposition
}

// Written reports whether a new version was persisted.
func (r *Result) Written() bool { return r.Disposition.Proceeds() }

// prepared is the request after validation and namespace stripping.
type prepared struct {
	req          models.WriteRequest
	feature      models.Feature
	incoming     namespace.Incoming
	baseVersion  *int64
	deleteIntent bool
}

// Write performs one logical write. Every failure is a *models.WriteError.
func (s *Store) Write(ctx context.Context, req models.WriteRequest) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, models.WrapWriteError(models.CodeIllegalArgument, req.SpaceID, req.Feature.ID, err)
	}

	props, incoming := namespace.Strip(req.Feature.Properties)
	p := prepared{
		req:          req,
		feature:      models.Feature{ID: req.Feature.ID, Geometry: req.Feature.Geometry, Properties: props},
		incoming:     incoming,
		baseVersion:  req.BaseVersion,
		deleteIntent: req.Delete || incoming.Deleted,
	}
	if p.baseVersion == nil {
		p.baseVersion = incoming.Version
	}

	for attempt := 1; ; attempt++ {
		res, err := s.attempt(ctx, &p)
		if err == nil {
			return res, nil
		}

		if errors.Is(err, ErrStaleHead) {
			if attempt < s.maxAttempts {
				metrics.StaleHeadRetries.Inc()
				s.log.WithFields(logrus.Fields{
					"space":   req.SpaceID,
					"feature": req.Feature.ID,
					"attempt": attempt,
				}).Debug("feature.write.stale_head")
				continue
			}

			return nil, models.WrapWriteError(models.CodeVersionConflict, req.SpaceID, req.Feature.ID, err)
		}

		var we *models.WriteError
		if errors.As(err, &we) {
			return nil, we
		}

		return nil, models.WrapWriteError(models.CodeException, req.SpaceID, req.Feature.ID, err)
	}
}

func (s *Store) attempt(ctx context.Context, p *prepared) (*Result, error) {
	var res *Result

	err := s.backend.InTx(ctx, p.req.SpaceID, func(ctx context.Context, tx Tx) error {
		head, err := tx.Head(ctx, p.req.SpaceID, p.feature.ID)
		if err != nil {
			return fmt.Errorf("loading head: %w", err)
		}

		in := conflict.Input{
			HeadExists:        head.Live(),
			BaseVersion:       p.baseVersion,
			OnNotExists:       p.req.OnNotExists,
			OnExists:          p.req.OnExists,
			OnVersionConflict: p.req.OnVersionConflict,
			DeleteIntent:      p.deleteIntent,
		}
		if head != nil {
			in.HeadVersion = head.Version
		}

		disp, err := conflict.Resolve(in)
		if err != nil {
			return s.describe(err, p, in)
		}

		res = &Result{Previous: head, Disposition: disp}
		if !disp.Proceeds() {
			if head.Live() {
				res.Record = head
			}
			return nil
		}

		version, err := tx.NextVersion(ctx, p.req.SpaceID)
		if err != nil {
			return fmt.Errorf("allocating version: %w", err)
		}

		rec := s.build(head, disp, version, p)

		if head != nil {
			if err := tx.Supersede(ctx, p.req.SpaceID, p.feature.ID, head.Version, version); err != nil {
				return fmt.Errorf("superseding version %d: %w", head.Version, err)
			}
		}

		if err := tx.Insert(ctx, p.req.SpaceID, rec); err != nil {
			return fmt.Errorf("inserting version %d: %w", version, err)
		}

		res.Record = rec

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// build assembles the new version for a proceeding disposition.
func (s *Store) build(head *models.VersionRecord, disp conflict.Disposition, version int64, p *prepared) *models.VersionRecord {
	rec := &models.VersionRecord{
		ID:          p.feature.ID,
		Version:     version,
		NextVersion: models.HeadVersion,
		Author:      p.req.Author,
	}

	switch disp {
	case conflict.Delete:
		rec.Operation = models.OpDelete
		// The tombstone keeps the last payload for the audit trail.
		rec.Properties = s.merger.Merge(head, models.Feature{}, true).Properties
		rec.Geometry = head.Geometry
	case conflict.Update:
		rec.Operation = models.OpUpdate
		merged := s.merger.Merge(head, p.feature, p.req.Partial)
		rec.Properties, rec.Geometry = merged.Properties, merged.Geometry
	default:
		rec.Operation = models.OpInsert
		merged := s.merger.Merge(nil, p.feature, p.req.Partial)
		rec.Properties, rec.Geometry = merged.Properties, merged.Geometry
	}

	rec.Namespace = s.ns.Stamp(head, namespace.StampInput{
		Version:   version,
		Operation: rec.Operation,
		Author:    p.req.Author,
		Space:     p.req.SpaceID,
		MUUID:     p.incoming.MUUID,
		Tags:      namespace.ResolveTags(head, p.incoming, p.req.AddTags, p.req.RemoveTags),
	})

	return rec
}

// describe fills the feature identity into a resolver failure.
func (s *Store) describe(err error, p *prepared, in conflict.Input) error {
	var we *models.WriteError
	if !errors.As(err, &we) {
		return err
	}

	we.SpaceID = p.req.SpaceID
	we.FeatureID = p.feature.ID
	if we.Code == models.CodeVersionConflict && in.BaseVersion != nil {
		we.Message = fmt.Sprintf("%s (head %d, base %d)", we.Message, in.HeadVersion, *in.BaseVersion)
	}

	return we
}
