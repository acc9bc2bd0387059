package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/secretvault/internal/client/adapters/remote"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/metrics"
)

// Orphans lists uploaded objects whose metadata was never written.
func (s *Session) Orphans() []remote.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.Pending(nil), s.orphans...)
}

func (s *Session) backoff() retry.Backoff {
	return retry.WithMaxRetries(s.m.cfg.RetryAttempts, retry.NewExponential(s.m.cfg.RetryBase))
}

// RetryOrphans re-runs the metadata phase for every orphan. Recovered
// records join the projection; the rest stay queued.
func (s *Session) RetryOrphans(ctx context.Context) (int, error) {
	return s.drainOrphans(ctx, "retry", func(ctx context.Context, h OrphanHandler, p remote.Pending) error {
		var rec models.FileRecord
		err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
			r, err := h.WriteMetadata(ctx, s.Namespace(), p)
			if err != nil {
				return retry.RetryableError(err)
			}
			rec = r
			return nil
		})
		if err != nil {
			return err
		}
		s.projection.Add(rec)
		return nil
	})
}

// PurgeOrphans deletes the orphaned objects.
func (s *Session) PurgeOrphans(ctx context.Context) (int, error) {
	return s.drainOrphans(ctx, "purge", func(ctx context.Context, h OrphanHandler, p remote.Pending) error {
		return retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
			if err := h.DiscardObject(ctx, p.StoragePath); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
	})
}

func (s *Session) drainOrphans(ctx context.Context, op string, fn func(context.Context, OrphanHandler, remote.Pending) error) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()

	h, ok := s.adapter.(OrphanHandler)
	if !ok || len(s.orphans) == 0 {
		return 0, nil
	}

	var (
		kept []remote.Pending
		errs []error
	)
	for _, p := range s.orphans {
		if err := fn(ctx, h, p); err != nil {
			kept = append(kept, p)
			errs = append(errs, fmt.Errorf("%s %s: %w", op, p.StoragePath, err))
		}
	}
	done := len(s.orphans) - len(kept)
	s.orphans = kept
	metrics.SetOrphans(len(kept))
	s.log.Info(ctx, "orphans processed", "op", op, "done", done, "left", len(kept))
	return done, errors.Join(errs...)
}
