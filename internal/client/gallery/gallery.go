// Package gallery holds the in-memory projection of a user's records: the
// ordered list the UI renders, plus the current selection.
package gallery

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dmitrijs2005/secretvault/internal/client/models"
)

// SortKey is a user-facing sort order.
type SortKey string

const (
	SortName SortKey = "name" // ascending, locale-aware
	SortDate SortKey = "date" // newest first
	SortSize SortKey = "size" // largest first
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortName, SortDate, SortSize:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Lister is the read side of a persistence adapter.
type Lister interface {
	List(ctx context.Context, ns string) ([]models.FileRecord, error)
}

type Projection struct {
	mu       sync.RWMutex
	records  []models.FileRecord
	selected map[string]struct{}
	prepend  bool
	collator *collate.Collator
}

type Option func(*Projection)

// WithPrepend places added records first, matching a newest-first listing.
func WithPrepend(v bool) Option {
	return func(p *Projection) { p.prepend = v }
}

// WithLocale sets the collation used by SortName.
func WithLocale(tag language.Tag) Option {
	return func(p *Projection) { p.collator = collate.New(tag, collate.IgnoreCase) }
}

func New(opts ...Option) *Projection {
	p := &Projection{
		selected: make(map[string]struct{}),
		collator: collate.New(language.English, collate.IgnoreCase),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Refresh discards the projection and repopulates it from src. On error the
// projection stays empty.
func (p *Projection) Refresh(ctx context.Context, src Lister, ns string) error {
	p.Clear()
	records, err := src.List(ctx, ns)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.records = slices.Clone(records)
	p.mu.Unlock()
	return nil
}

// Add inserts a record that was just persisted.
func (p *Projection) Add(rec models.FileRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prepend {
		p.records = slices.Insert(p.records, 0, rec)
		return
	}
	p.records = append(p.records, rec)
}

// Remove drops the record with id and reports whether it was present.
func (p *Projection) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(id)
	if i < 0 {
		return false
	}
	p.records = slices.Delete(p.records, i, i+1)
	delete(p.selected, id)
	return true
}

func (p *Projection) Get(id string) (models.FileRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.index(id); i >= 0 {
		return p.records[i], true
	}
	return models.FileRecord{}, false
}

// Records returns a copy in display order.
func (p *Projection) Records() []models.FileRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.records)
}

func (p *Projection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

// Clear empties the projection and the selection.
func (p *Projection) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
	clear(p.selected)
}

// SortBy reorders the projection in place. Equal keys keep their order.
func (p *Projection) SortBy(key SortKey) error {
	var cmpFn func(a, b models.FileRecord) int
	switch key {
	case SortName:
		cmpFn = func(a, b models.FileRecord) int { return p.collator.CompareString(a.Name, b.Name) }
	case SortDate:
		cmpFn = func(a, b models.FileRecord) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case SortSize:
		cmpFn = func(a, b models.FileRecord) int {
			switch {
			case a.Size > b.Size:
				return -1
			case a.Size < b.Size:
				return 1
			}
			return 0
		}
	default:
		return fmt.Errorf("unknown sort key %q", key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	slices.SortStableFunc(p.records, cmpFn)
	return nil
}

// Select marks id as selected; it reports false for an unknown id.
func (p *Projection) Select(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index(id) < 0 {
		return false
	}
	p.selected[id] = struct{}{}
	return true
}

func (p *Projection) Deselect(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.selected, id)
}

// Toggle flips the selection of id and returns the new state.
func (p *Projection) Toggle(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.selected[id]; ok {
		delete(p.selected, id)
		return false
	}
	if p.index(id) < 0 {
		return false
	}
	p.selected[id] = struct{}{}
	return true
}

func (p *Projection) SelectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.records {
		p.selected[r.ID] = struct{}{}
	}
}

func (p *Projection) ClearSelection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.selected)
}

func (p *Projection) IsSelected(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.selected[id]
	return ok
}

// Selected returns the selected records in display order.
func (p *Projection) Selected() []models.FileRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []models.FileRecord
	for _, r := range p.records {
		if _, ok := p.selected[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// CounterLabel renders the record count, e.g. "3 photos stored". An empty
// projection has no label.
func (p *Projection) CounterLabel() string {
	switch n := p.Len(); n {
	case 0:
		return ""
	case 1:
		return "1 photo stored"
	default:
		return fmt.Sprintf("%d photos stored", n)
	}
}

func (p *Projection) index(id string) int {
	return slices.IndexFunc(p.records, func(r models.FileRecord) bool { return r.ID == id })
}
