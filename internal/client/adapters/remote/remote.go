// Package remote persists records in two stores: the bytes go to an object
// store and a metadata document pointing at them goes to a document store.
// A put runs three phases (upload, resolve URL, write metadata); a failure
// after the upload leaves an orphaned object, reported as *OrphanError.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/secretvault/internal/client/docstore"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/client/objectstore"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
	"github.com/dmitrijs2005/secretvault/internal/metrics"
)

// Phase is one step of the put pipeline.
type Phase int

const (
	PhaseUpload Phase = iota + 1
	PhaseResolve
	PhaseMetadata
)

func (p Phase) String() string {
	switch p {
	case PhaseUpload:
		return "upload"
	case PhaseResolve:
		return "resolve"
	case PhaseMetadata:
		return "metadata"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// PhaseEvent reports a finished phase. Err is nil on success.
type PhaseEvent struct {
	Name     string
	Phase    Phase
	Path     string
	Duration time.Duration
	Err      error
}

// Pending describes an uploaded object whose metadata was never written.
type Pending struct {
	Name        string
	ContentType string
	Size        int64
	Kind        models.MediaKind
	StoragePath string
	URL         string
	UploadedAt  time.Time
}

// OrphanError is returned when the object was uploaded but its metadata
// was not written. It unwraps to a *common.StorageError of kind
// ErrMetadataWriteFailed.
type OrphanError struct {
	Pending Pending
	err     *common.StorageError
}

func (e *OrphanError) Error() string { return e.err.Error() }
func (e *OrphanError) Unwrap() error { return e.err }

// Item is one input of PutBatch.
type Item struct {
	File models.SourceFile
	Kind models.MediaKind
}

type Adapter struct {
	objects objectstore.Store
	docs    docstore.Store
	log     logging.Logger
	now     func() time.Time
	desc    bool
	workers int
	observe func(PhaseEvent)

	mu     sync.Mutex
	lastTS int64
}

type Option func(*Adapter)

// WithDescending lists newest records first.
func WithDescending(v bool) Option { return func(a *Adapter) { a.desc = v } }

// WithWorkers bounds the number of concurrent uploads in PutBatch.
func WithWorkers(n int) Option { return func(a *Adapter) { a.workers = n } }

// WithPhaseObserver registers fn for every PhaseEvent. fn may be called
// from several goroutines during PutBatch.
func WithPhaseObserver(fn func(PhaseEvent)) Option { return func(a *Adapter) { a.observe = fn } }

func New(objects objectstore.Store, docs docstore.Store, log logging.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		objects: objects,
		docs:    docs,
		log:     log.With("backend", models.BackendRemote),
		now:     time.Now,
		workers: 1,
	}
	for _, o := range opts {
		o(a)
	}
	if a.workers < 1 {
		a.workers = 1
	}
	return a
}

func (a *Adapter) Backend() models.Backend { return models.BackendRemote }

// Descending reports whether List returns newest first.
func (a *Adapter) Descending() bool { return a.desc }

// timestampField holds the upload time in Unix milliseconds. It orders List
// and is the record's CreatedAt.
const timestampField = "timestamp"

// GalleryCollection is the metadata collection of uid.
func GalleryCollection(uid string) string {
	return docstore.Path("users", uid, "gallery")
}

// PhotoPath is the object path of a photo uploaded at ts.
func PhotoPath(uid string, ts time.Time, name string) string {
	return fmt.Sprintf("users/%s/photos/%d_%s", uid, ts.UnixMilli(), sanitizeName(name))
}

func sanitizeName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
	if name == "" {
		return "unnamed"
	}
	return name
}

// stamp returns a time whose millisecond value is unique for this adapter,
// so two uploads of the same name never share a path.
func (a *Adapter) stamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	ms := a.now().UnixMilli()
	if ms <= a.lastTS {
		ms = a.lastTS + 1
	}
	a.lastTS = ms
	return time.UnixMilli(ms)
}

func (a *Adapter) emit(ev PhaseEvent) {
	metrics.RecordPhase(ev.Phase.String(), ev.Duration, ev.Err)
	if a.observe != nil {
		a.observe(ev)
	}
}

// Put runs the whole pipeline for one file.
func (a *Adapter) Put(ctx context.Context, ns string, f models.SourceFile, kind models.MediaKind) (models.FileRecord, error) {
	p, err := a.upload(ctx, ns, f, kind)
	if err != nil {
		return models.FileRecord{}, err
	}
	return a.WriteMetadata(ctx, ns, p)
}

// PutBatch uploads items with up to the configured number of workers, then
// writes their metadata one by one in input order. fn is called once per
// item, in input order, with the record or the error.
func (a *Adapter) PutBatch(ctx context.Context, ns string, items []Item, fn func(i int, rec models.FileRecord, err error)) {
	type uploaded struct {
		pending Pending
		err     error
	}
	results := make([]uploaded, len(items))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, it := range items {
		g.Go(func() error {
			p, err := a.upload(ctx, ns, it.File, it.Kind)
			results[i] = uploaded{pending: p, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		if r.err != nil {
			fn(i, models.FileRecord{}, r.err)
			continue
		}
		rec, err := a.WriteMetadata(ctx, ns, r.pending)
		fn(i, rec, err)
	}
}

// upload runs the upload and resolve phases.
func (a *Adapter) upload(ctx context.Context, ns string, f models.SourceFile, kind models.MediaKind) (Pending, error) {
	ts := a.stamp()
	path := PhotoPath(ns, ts, f.Name)

	start := time.Now()
	ref, err := a.objects.Upload(ctx, path, f.ContentType, f.Data)
	a.emit(PhaseEvent{Name: f.Name, Phase: PhaseUpload, Path: path, Duration: time.Since(start), Err: err})
	if err != nil {
		a.log.Warn(ctx, "upload failed", "name", f.Name, "path", path, "err", err)
		return Pending{}, common.NewStorageError(common.ErrUploadFailed, path, err)
	}

	p := Pending{
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size(),
		Kind:        kind,
		StoragePath: path,
		UploadedAt:  ts,
	}

	start = time.Now()
	url, err := a.objects.URL(ctx, ref)
	a.emit(PhaseEvent{Name: f.Name, Phase: PhaseResolve, Path: path, Duration: time.Since(start), Err: err})
	if err != nil {
		a.log.Error(ctx, "url resolution failed, object orphaned", "name", f.Name, "path", path, "err", err)
		return Pending{}, &OrphanError{Pending: p, err: common.NewStorageError(common.ErrMetadataWriteFailed, path, err)}
	}
	p.URL = url
	return p, nil
}

// WriteMetadata runs the metadata phase for an uploaded object. It is also
// the retry path for orphans.
func (a *Adapter) WriteMetadata(ctx context.Context, ns string, p Pending) (models.FileRecord, error) {
	if p.URL == "" {
		url, err := a.objects.URL(ctx, objectstore.Reference{Path: p.StoragePath})
		if err != nil {
			return models.FileRecord{}, &OrphanError{Pending: p, err: common.NewStorageError(common.ErrMetadataWriteFailed, p.StoragePath, err)}
		}
		p.URL = url
	}

	start := time.Now()
	id, err := a.docs.Insert(ctx, GalleryCollection(ns), docstore.Fields{
		"name":         p.Name,
		"storagePath":  p.StoragePath,
		"url":          p.URL,
		"size":         p.Size,
		"contentType":  p.ContentType,
		"kind":         string(p.Kind),
		timestampField: p.UploadedAt.UnixMilli(),
	})
	a.emit(PhaseEvent{Name: p.Name, Phase: PhaseMetadata, Path: p.StoragePath, Duration: time.Since(start), Err: err})
	if err != nil {
		a.log.Error(ctx, "metadata write failed, object orphaned", "name", p.Name, "path", p.StoragePath, "err", err)
		return models.FileRecord{}, &OrphanError{Pending: p, err: common.NewStorageError(common.ErrMetadataWriteFailed, p.StoragePath, err)}
	}

	metrics.RecordStored(string(models.BackendRemote))
	return models.FileRecord{
		ID:        id,
		Name:      p.Name,
		Size:      p.Size,
		Kind:      p.Kind,
		CreatedAt: p.UploadedAt,
		Remote:    &models.RemoteContent{PreviewURL: p.URL, StoragePath: p.StoragePath},
	}, nil
}

// List reads ns's metadata documents ordered by upload time.
func (a *Adapter) List(ctx context.Context, ns string) ([]models.FileRecord, error) {
	docs, err := a.docs.Query(ctx, GalleryCollection(ns), docstore.OrderBy{Field: timestampField, Desc: a.desc})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", GalleryCollection(ns), err)
	}
	out := make([]models.FileRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, recordFrom(d))
	}
	return out, nil
}

func recordFrom(d docstore.Document) models.FileRecord {
	kind := models.MediaKind(d.Fields.String("kind"))
	if kind == "" {
		kind = models.KindImage
	}
	// the client stamp is what Put returned; the store time is only a fallback
	created := d.CreatedAt
	if _, ok := d.Fields[timestampField]; ok {
		created = d.Fields.Time(timestampField)
	}
	return models.FileRecord{
		ID:        d.ID,
		Name:      d.Fields.String("name"),
		Size:      d.Fields.Int64("size"),
		Kind:      kind,
		CreatedAt: created,
		Remote: &models.RemoteContent{
			PreviewURL:  d.Fields.String("url"),
			StoragePath: d.Fields.String("storagePath"),
		},
	}
}

// Delete removes the object, then the metadata document. A missing object
// is tolerated; a failed metadata delete is not.
func (a *Adapter) Delete(ctx context.Context, ns string, rec models.FileRecord) error {
	if rec.Remote == nil {
		return common.NewStorageError(common.ErrDeleteFailed, "", fmt.Errorf("record %s has no remote content", rec.ID))
	}
	path := rec.Remote.StoragePath

	if err := a.DiscardObject(ctx, path); err != nil {
		return common.NewStorageError(common.ErrDeleteFailed, path, err)
	}

	err := a.docs.Delete(ctx, GalleryCollection(ns), rec.ID)
	if errors.Is(err, common.ErrNotFound) {
		a.log.Info(ctx, "metadata already gone", "id", rec.ID)
		return nil
	}
	if err != nil {
		return common.NewStorageError(common.ErrDeleteFailed, path, err)
	}
	return nil
}

// DiscardObject deletes an object, treating a missing one as deleted.
func (a *Adapter) DiscardObject(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	err := a.objects.Delete(ctx, path)
	if errors.Is(err, common.ErrNotFound) {
		a.log.Warn(ctx, "object already missing", "path", path)
		return nil
	}
	return err
}

// Fetch downloads the bytes of rec.
func (a *Adapter) Fetch(ctx context.Context, _ string, rec models.FileRecord) ([]byte, error) {
	if rec.Remote == nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, common.ErrNotFound)
	}
	return a.objects.Get(ctx, rec.Remote.StoragePath)
}
