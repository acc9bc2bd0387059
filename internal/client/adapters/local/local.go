// Package local persists gallery records as a JSON array of data URIs under
// one key/value entry per user.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/secretvault/internal/client/kv"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
	"github.com/dmitrijs2005/secretvault/internal/metrics"
)

// KeyPrefix is the key/value namespace of the photo list.
const KeyPrefix = "sv_photos"

// Key returns the key holding ns's photo list.
func Key(ns string) string { return KeyPrefix + ":" + ns }

// item is the stored form of a record.
type item struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	DataURL   string `json:"dataUrl"`
	Size      int64  `json:"size,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type Adapter struct {
	store kv.Store
	log   logging.Logger
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func New(store kv.Store, log logging.Logger) *Adapter {
	return &Adapter{
		store: store,
		log:   log.With("backend", models.BackendLocal),
		now:   time.Now,
		newID: uuid.NewV7,
	}
}

func (a *Adapter) Backend() models.Backend { return models.BackendLocal }

// Put appends f to ns's list. The whole list is re-serialised on every call.
func (a *Adapter) Put(ctx context.Context, ns string, f models.SourceFile, kind models.MediaKind) (models.FileRecord, error) {
	items, err := a.load(ctx, ns)
	if err != nil {
		return models.FileRecord{}, common.NewStorageError(common.ErrUploadFailed, "", err)
	}

	id, err := a.newID()
	if err != nil {
		return models.FileRecord{}, common.NewStorageError(common.ErrUploadFailed, "", err)
	}
	it := item{
		ID:        id.String(),
		Name:      f.Name,
		DataURL:   models.DataURI(f.ContentType, f.Data),
		Size:      f.Size(),
		Kind:      string(kind),
		Timestamp: a.now().UnixMilli(),
	}
	items = append(items, it)

	if err := a.save(ctx, ns, items); err != nil {
		return models.FileRecord{}, common.NewStorageError(common.ErrUploadFailed, "", err)
	}
	metrics.RecordStored(string(models.BackendLocal))
	a.log.Debug(ctx, "stored locally", "name", f.Name, "id", it.ID, "count", len(items))
	return it.record(), nil
}

// List returns every stored record in insertion order. A corrupted list is
// reported as empty.
func (a *Adapter) List(ctx context.Context, ns string) ([]models.FileRecord, error) {
	items, err := a.load(ctx, ns)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileRecord, len(items))
	for i, it := range items {
		out[i] = it.record()
	}
	return out, nil
}

// DeleteAt removes the element at index.
func (a *Adapter) DeleteAt(ctx context.Context, ns string, index int) error {
	items, err := a.load(ctx, ns)
	if err != nil {
		return common.NewStorageError(common.ErrDeleteFailed, "", err)
	}
	if index < 0 || index >= len(items) {
		return common.NewStorageError(common.ErrDeleteFailed, "", fmt.Errorf("index %d: %w", index, common.ErrNotFound))
	}
	items = append(items[:index], items[index+1:]...)
	if err := a.save(ctx, ns, items); err != nil {
		return common.NewStorageError(common.ErrDeleteFailed, "", err)
	}
	return nil
}

// Delete removes rec, located by ID.
func (a *Adapter) Delete(ctx context.Context, ns string, rec models.FileRecord) error {
	items, err := a.load(ctx, ns)
	if err != nil {
		return common.NewStorageError(common.ErrDeleteFailed, "", err)
	}
	for i, it := range items {
		if it.record().ID == rec.ID {
			return a.DeleteAt(ctx, ns, i)
		}
	}
	return common.NewStorageError(common.ErrDeleteFailed, "", fmt.Errorf("record %s: %w", rec.ID, common.ErrNotFound))
}

// Clear drops ns's whole list in one write.
func (a *Adapter) Clear(ctx context.Context, ns string) error {
	if err := a.store.RemoveItem(ctx, Key(ns)); err != nil {
		return common.NewStorageError(common.ErrDeleteFailed, "", err)
	}
	return nil
}

// Fetch returns the original bytes of rec.
func (a *Adapter) Fetch(_ context.Context, _ string, rec models.FileRecord) ([]byte, error) {
	if rec.Local == nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, common.ErrNotFound)
	}
	_, data, err := models.DecodeDataURI(rec.Local.DataURI)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return data, nil
}

func (a *Adapter) load(ctx context.Context, ns string) ([]item, error) {
	raw, ok, err := a.store.GetItem(ctx, Key(ns))
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var items []item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		a.log.Warn(ctx, "local photo list unreadable, treating as empty", "ns", ns, "err", fmt.Errorf("%w: %v", common.ErrCorrupted, err))
		return nil, nil
	}
	if err := a.assignIDs(ctx, ns, items); err != nil {
		return nil, err
	}
	return items, nil
}

// assignIDs gives entries written without an id a fresh one and stores the
// list again, so the ids stay the same on the next load. A failed write is
// logged only: the ids are still unique for this load.
func (a *Adapter) assignIDs(ctx context.Context, ns string, items []item) error {
	assigned := 0
	for i := range items {
		if items[i].ID != "" {
			continue
		}
		id, err := a.newID()
		if err != nil {
			return fmt.Errorf("assign id: %w", err)
		}
		items[i].ID = id.String()
		assigned++
	}
	if assigned == 0 {
		return nil
	}
	if err := a.save(ctx, ns, items); err != nil {
		a.log.Warn(ctx, "assigned ids not stored", "ns", ns, "err", err)
		return nil
	}
	a.log.Info(ctx, "assigned ids to stored photos", "ns", ns, "count", assigned)
	return nil
}

func (a *Adapter) save(ctx context.Context, ns string, items []item) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return a.store.SetItem(ctx, Key(ns), string(b))
}

func (it item) record() models.FileRecord {
	rec := models.FileRecord{
		ID:        it.ID,
		Name:      it.Name,
		Size:      it.Size,
		Kind:      models.MediaKind(it.Kind),
		CreatedAt: time.UnixMilli(it.Timestamp),
		Local:     &models.LocalContent{DataURI: it.DataURL},
	}
	// entries written before sizes and kinds were stored
	if rec.Size == 0 || rec.Kind == "" {
		if ct, data, err := models.DecodeDataURI(it.DataURL); err == nil {
			if rec.Size == 0 {
				rec.Size = int64(len(data))
			}
			if rec.Kind == "" {
				rec.Kind = kindOf(ct)
			}
		}
	}
	return rec
}

func kindOf(contentType string) models.MediaKind {
	if strings.HasPrefix(contentType, "video/") {
		return models.KindVideo
	}
	return models.KindImage
}
