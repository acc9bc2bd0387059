package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/secretvault/internal/client/adapters/remote"
	"github.com/dmitrijs2005/secretvault/internal/client/gallery"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
	"github.com/dmitrijs2005/secretvault/internal/metrics"
)

// Session is one signed-in (or local) user. Commands are serialized; once
// the session is closed every command returns common.ErrNoSession.
type Session struct {
	m          *Manager
	uid        string
	backend    models.Backend
	adapter    Adapter
	projection *gallery.Projection
	log        logging.Logger

	mu       sync.Mutex
	closed   bool
	identity models.Identity
	orphans  []remote.Pending
}

func (s *Session) Identity() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Backend() models.Backend { return s.backend }

// Namespace is the storage namespace of the session, the user id.
func (s *Session) Namespace() string { return s.uid }

// Gallery exposes the projection for rendering and selection.
func (s *Session) Gallery() *gallery.Projection { return s.projection }

func (s *Session) Records() []models.FileRecord { return s.projection.Records() }

func (s *Session) Count() int { return s.projection.Len() }

func (s *Session) CounterLabel() string { return s.projection.CounterLabel() }

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.projection.Clear()
	s.identity = models.Identity{}
	s.orphans = nil
	metrics.SetGallerySize(0)
	metrics.SetOrphans(0)
}

// lock acquires the command lock of an open session.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return common.ErrNoSession
	}
	return nil
}

func (s *Session) unlock() {
	metrics.SetGallerySize(s.projection.Len())
	s.mu.Unlock()
}

// Refresh rebuilds the projection from the active backend. On error the
// projection is left empty.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()
	return s.projection.Refresh(ctx, s.adapter, s.Namespace())
}

// SortBy reorders the projection. The backend order is unaffected.
func (s *Session) SortBy(key gallery.SortKey) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()
	return s.projection.SortBy(key)
}

// UploadOutcome is the result for one input file. Exactly one of Record and
// Err is set.
type UploadOutcome struct {
	Name   string
	Record *models.FileRecord
	Err    error
}

type UploadReport struct {
	Outcomes []UploadOutcome
}

func (r UploadReport) Stored() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Rejected lists the files the validation gate turned away.
func (r UploadReport) Rejected() []UploadOutcome {
	var out []UploadOutcome
	for _, o := range r.Outcomes {
		var ve *common.ValidationError
		if errors.As(o.Err, &ve) {
			out = append(out, o)
		}
	}
	return out
}

// Failed lists files that passed validation but were not stored.
func (r UploadReport) Failed() []UploadOutcome {
	var out []UploadOutcome
	for _, o := range r.Outcomes {
		var ve *common.ValidationError
		if o.Err != nil && !errors.As(o.Err, &ve) {
			out = append(out, o)
		}
	}
	return out
}

// UploadFiles validates every file and persists the accepted ones. Each
// stored record joins the projection; rejections and failures are reported
// per file and never abort the batch.
func (s *Session) UploadFiles(ctx context.Context, files []models.SourceFile) (UploadReport, error) {
	if err := s.lock(); err != nil {
		return UploadReport{}, err
	}
	defer s.unlock()

	report := UploadReport{Outcomes: make([]UploadOutcome, len(files))}
	var (
		items []remote.Item
		index []int
	)
	for i, f := range files {
		report.Outcomes[i].Name = f.Name
		kind, err := s.m.cfg.Upload.Validate(f)
		if err != nil {
			var ve *common.ValidationError
			if errors.As(err, &ve) {
				metrics.RecordRejection(ve.Reason.Error())
			}
			s.log.Info(ctx, "file rejected", "name", f.Name, "err", err)
			report.Outcomes[i].Err = err
			continue
		}
		items = append(items, remote.Item{File: f, Kind: kind})
		index = append(index, i)
	}

	ns := s.Namespace()
	if bp, ok := s.adapter.(batchPutter); ok && len(items) > 1 {
		bp.PutBatch(ctx, ns, items, func(j int, rec models.FileRecord, err error) {
			s.stored(ctx, &report.Outcomes[index[j]], rec, err)
		})
		return report, nil
	}
	for j, it := range items {
		rec, err := s.adapter.Put(ctx, ns, it.File, it.Kind)
		s.stored(ctx, &report.Outcomes[index[j]], rec, err)
	}
	return report, nil
}

func (s *Session) stored(ctx context.Context, out *UploadOutcome, rec models.FileRecord, err error) {
	if err == nil {
		s.projection.Add(rec)
		out.Record = &rec
		return
	}
	out.Err = err

	var oe *remote.OrphanError
	if errors.As(err, &oe) {
		s.orphans = append(s.orphans, oe.Pending)
		metrics.SetOrphans(len(s.orphans))
		s.log.Warn(ctx, "object orphaned", "name", out.Name, "path", oe.Pending.StoragePath, "err", err)
		return
	}
	s.log.Warn(ctx, "upload failed", "name", out.Name, "err", err)
}

// DeleteRecord removes one record from the backend and, on success, from
// the projection.
func (s *Session) DeleteRecord(ctx context.Context, id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	rec, ok := s.projection.Get(id)
	if !ok {
		return fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	return s.delete(ctx, rec)
}

func (s *Session) delete(ctx context.Context, rec models.FileRecord) error {
	err := s.adapter.Delete(ctx, s.Namespace(), rec)
	metrics.RecordDelete(string(s.backend), err)
	if err != nil {
		s.log.Warn(ctx, "delete failed", "id", rec.ID, "name", rec.Name, "err", err)
		return err
	}
	s.projection.Remove(rec.ID)
	return nil
}

// DeleteFailure is a record that could not be deleted.
type DeleteFailure struct {
	Record models.FileRecord
	Err    error
}

type DeleteReport struct {
	Deleted []models.FileRecord
	Failed  []DeleteFailure
}

// Err joins the individual failures, or returns nil.
func (r DeleteReport) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Record.Name, f.Err))
	}
	return errors.Join(errs...)
}

func (s *Session) deleteEach(ctx context.Context, recs []models.FileRecord) DeleteReport {
	var report DeleteReport
	for _, rec := range recs {
		if err := s.delete(ctx, rec); err != nil {
			report.Failed = append(report.Failed, DeleteFailure{Record: rec, Err: err})
			continue
		}
		report.Deleted = append(report.Deleted, rec)
	}
	return report
}

// DeleteSelected deletes the selected records one at a time. The projection
// keeps exactly the records whose deletion failed.
func (s *Session) DeleteSelected(ctx context.Context) (DeleteReport, error) {
	if err := s.lock(); err != nil {
		return DeleteReport{}, err
	}
	defer s.unlock()

	report := s.deleteEach(ctx, s.projection.Selected())
	s.log.Info(ctx, "bulk delete", "deleted", len(report.Deleted), "failed", len(report.Failed))
	return report, nil
}

// DeleteAll removes every record of the user. Local storage is cleared in
// one step; remote records are listed from the backend and deleted one by
// one.
func (s *Session) DeleteAll(ctx context.Context) (DeleteReport, error) {
	if err := s.lock(); err != nil {
		return DeleteReport{}, err
	}
	defer s.unlock()

	ns := s.Namespace()
	if c, ok := s.adapter.(clearer); ok {
		recs := s.projection.Records()
		if err := c.Clear(ctx, ns); err != nil {
			return DeleteReport{}, fmt.Errorf("clear %s: %w", ns, err)
		}
		s.projection.Clear()
		s.log.Info(ctx, "storage cleared")
		return DeleteReport{Deleted: recs}, nil
	}

	recs, err := s.adapter.List(ctx, ns)
	if err != nil {
		return DeleteReport{}, fmt.Errorf("list %s: %w", ns, err)
	}
	report := s.deleteEach(ctx, recs)
	s.log.Info(ctx, "delete all", "deleted", len(report.Deleted), "failed", len(report.Failed))
	return report, nil
}

// Download returns the content of a record in the projection.
func (s *Session) Download(ctx context.Context, id string) (models.FileRecord, []byte, error) {
	if err := s.lock(); err != nil {
		return models.FileRecord{}, nil, err
	}
	defer s.unlock()

	rec, ok := s.projection.Get(id)
	if !ok {
		return models.FileRecord{}, nil, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	data, err := s.adapter.Fetch(ctx, s.Namespace(), rec)
	if err != nil {
		return rec, nil, fmt.Errorf("download %s: %w", rec.Name, err)
	}
	return rec, data, nil
}
