package client

import (
	"context"
	"sort"
	"sync"

	"github.com/sbilibin2017/romako-counter/internal/models"
)

// ViewKind selects the ordering of an EntryView.
type ViewKind int

const (
	ListView    ViewKind = iota // updatedAt DESC
	RankingView                 // count DESC, updatedAt DESC
)

// EntryFetcher loads the full list for a view.
type EntryFetcher func(ctx context.Context) ([]models.Entry, error)

// MsgFetchFailed is shown inline when a view cannot be loaded.
const MsgFetchFailed = "データの取得に失敗しました"

// EntryView is a cached, locally merged copy of one server list.
type EntryView struct {
	kind  ViewKind
	fetch EntryFetcher

	mu      sync.Mutex
	entries []models.Entry
	loaded  bool
	err     string
	key     int // app refresh key at the last successful load
}

// NewEntryView creates an empty view.
func NewEntryView(kind ViewKind, fetch EntryFetcher) *EntryView {
	return &EntryView{kind: kind, fetch: fetch}
}

// Load fetches the list and records key as its freshness. A failure keeps the
// previous entries and sets Err.
func (v *EntryView) Load(ctx context.Context, key int) error {
	entries, err := v.fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err != nil {
		v.err = MsgFetchFailed
		return err
	}
	v.entries = entries
	sortEntries(v.kind, v.entries)
	v.loaded = true
	v.err = ""
	v.key = key
	return nil
}

// Retry is a manual reload after a failure.
func (v *EntryView) Retry(ctx context.Context, key int) error {
	return v.Load(ctx, key)
}

// Stale reports whether the view must be fetched before it is shown.
func (v *EntryView) Stale(key int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.loaded || v.key < key
}

// Merge applies a broadcast entry: same text replaces, otherwise it is inserted.
func (v *EntryView) Merge(entry models.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()

	replaced := false
	for i := range v.entries {
		if v.entries[i].Text == entry.Text {
			v.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		v.entries = append(v.entries, entry)
	}
	sortEntries(v.kind, v.entries)
}

// Entries returns a copy of the current entries.
func (v *EntryView) Entries() []models.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Err returns the inline error, or "".
func (v *EntryView) Err() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func sortEntries(kind ViewKind, entries []models.Entry) {
	switch kind {
	case RankingView:
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Count != entries[j].Count {
				return entries[i].Count > entries[j].Count
			}
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		})
	}
}
