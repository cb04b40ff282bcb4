// Package static provides a directory backed by a fixed group map, loaded
// from configuration. Suitable for small deployments and for sources
// whose permission model has no external directory.
package static

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

// Directory resolves groups from an in-memory map.
type Directory struct {
	mu     sync.RWMutex
	groups map[string]domain.GroupMembers
}

// New creates a static directory from a group map. The map is copied.
func New(groups map[string]domain.GroupMembers) *Directory {
	d := &Directory{groups: make(map[string]domain.GroupMembers, len(groups))}
	for id, members := range groups {
		d.groups[id] = copyMembers(members)
	}
	return d
}

// SetGroup adds or replaces a group definition.
func (d *Directory) SetGroup(groupID string, members domain.GroupMembers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[groupID] = copyMembers(members)
}

// RemoveGroup deletes a group definition.
func (d *Directory) RemoveGroup(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.groups, groupID)
}

// ResolveGroup returns the group's direct members.
func (d *Directory) ResolveGroup(_ context.Context, groupID string) (*domain.GroupMembers, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, ok := d.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("directory: group %s: %w", groupID, domain.ErrNotFound)
	}

	out := copyMembers(members)
	return &out, nil
}

func copyMembers(m domain.GroupMembers) domain.GroupMembers {
	return domain.GroupMembers{
		Users:  append([]string(nil), m.Users...),
		Groups: append([]string(nil), m.Groups...),
	}
}
