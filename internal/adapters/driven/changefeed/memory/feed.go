// Package memory provides an in-process change feed backed by a change
// log held in memory. It is used for local development and for exercising
// the sync pipeline in tests without network access.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure Feed implements the interface.
var _ driven.ChangeFeed = (*Feed)(nil)

// DefaultBatchSize is the number of changes returned per poll.
const DefaultBatchSize = 100

type file struct {
	name    string
	content string
}

// Feed is a scriptable change feed. Files added or removed through its
// mutators are appended to an internal change log; the cursor is an
// offset into that log, so re-polling the same cursor replays the same
// changes.
type Feed struct {
	mu        sync.RWMutex
	log       []domain.ChangeItem
	files     map[string]file
	grants    map[string][]domain.AccessGrant
	batchSize int
}

var shared sync.Map

// Shared returns the process-wide feed for the given source, creating it
// on first use. Polling and content fetching must observe the same
// scripted corpus, so every caller for a source shares one instance.
func Shared(sourceID string) *Feed {
	feed, _ := shared.LoadOrStore(sourceID, NewFeed())
	return feed.(*Feed)
}

// NewFeed creates an empty in-memory feed.
func NewFeed() *Feed {
	return &Feed{
		files:     make(map[string]file),
		grants:    make(map[string][]domain.AccessGrant),
		batchSize: DefaultBatchSize,
	}
}

// Type returns the feed type identifier.
func (f *Feed) Type() string { return "memory" }

// Close releases resources.
func (f *Feed) Close() error { return nil }

// SetBatchSize overrides the per-poll change count.
func (f *Feed) SetBatchSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.batchSize = n
	}
}

// AddFile stores the file and records a change for it. Grants replace any
// previously recorded grants for the file.
func (f *Feed) AddFile(fileID, filename, content string, grants ...domain.AccessGrant) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := domain.ChangeAdded
	if _, exists := f.files[fileID]; exists {
		kind = domain.ChangeModified
	}

	f.files[fileID] = file{name: filename, content: content}
	f.grants[fileID] = append([]domain.AccessGrant(nil), grants...)
	f.log = append(f.log, domain.ChangeItem{Kind: kind, FileID: fileID, Filename: filename})
}

// RemoveFile drops the file and records a tombstone for it.
func (f *Feed) RemoveFile(fileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := f.files[fileID].name
	delete(f.files, fileID)
	delete(f.grants, fileID)
	f.log = append(f.log, domain.ChangeItem{Kind: domain.ChangeDeleted, FileID: fileID, Filename: name})
}

// Poll returns the next batch of changes after the cursor.
func (f *Feed) Poll(_ context.Context, cursor string) (*domain.ChangeBatch, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("memory: invalid cursor %q: %w", cursor, domain.ErrInvalidInput)
		}
		offset = n
	}
	if offset > len(f.log) {
		offset = len(f.log)
	}

	end := offset + f.batchSize
	if end > len(f.log) {
		end = len(f.log)
	}

	items := append([]domain.ChangeItem(nil), f.log[offset:end]...)
	return &domain.ChangeBatch{
		Items:      items,
		NextCursor: strconv.Itoa(end),
		HasMore:    end < len(f.log),
	}, nil
}

// List enumerates the files currently present.
func (f *Feed) List(_ context.Context) ([]domain.ChangeItem, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	items := make([]domain.ChangeItem, 0, len(f.files))
	for id, fl := range f.files {
		items = append(items, domain.ChangeItem{Kind: domain.ChangeAdded, FileID: id, Filename: fl.name})
	}
	return items, nil
}

// Grants returns the grants recorded for the file.
func (f *Feed) Grants(_ context.Context, fileID string) ([]domain.AccessGrant, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]domain.AccessGrant(nil), f.grants[fileID]...), nil
}

// Fetch returns the file's content.
func (f *Feed) Fetch(_ context.Context, fileID string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fl, ok := f.files[fileID]
	if !ok {
		return "", fmt.Errorf("memory: file %s: %w", fileID, domain.ErrNotFound)
	}
	return fl.content, nil
}
