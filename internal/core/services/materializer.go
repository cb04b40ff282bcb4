package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// Ensure MaterializerService implements the interface.
var _ driving.Materializer = (*MaterializerService)(nil)

// DefaultGroupDepth caps nested group expansion. Grants whose groups nest
// deeper, or cycle, are excluded rather than traversed forever.
const DefaultGroupDepth = 5

// MaterializerService flattens the raw access grant graph into the
// queryable per-(file, principal) snapshot.
//
// Every rebuild is a full replace: a revoked grant can never leave a stale
// entry behind, because entries only exist if a currently effective grant
// produced them on this pass. The snapshot swap is atomic; queries running
// concurrently observe the old or new snapshot, never a mix.
type MaterializerService struct {
	grants    driven.GrantStore
	directory driven.Directory
	access    driven.AccessStore

	maxDepth int
	orgGroup string // when set, organization links also expand through this group
	now      func() time.Time

	mu    sync.Mutex // serialises rebuilds
	dirty atomic.Bool
}

// MaterializerOption configures the materialiser.
type MaterializerOption func(*MaterializerService)

// WithGroupDepth sets the nested group expansion cap.
func WithGroupDepth(depth int) MaterializerOption {
	return func(m *MaterializerService) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// WithOrganizationGroup makes organization-scope links expand into per-user
// entries through the given directory group, in addition to the file-level
// open flag. Off by default; enumeration of the whole tenant is an explicit
// operator choice.
func WithOrganizationGroup(groupID string) MaterializerOption {
	return func(m *MaterializerService) {
		m.orgGroup = groupID
	}
}

// WithClock overrides the time source. Used by tests to pin grant expiry.
func WithClock(now func() time.Time) MaterializerOption {
	return func(m *MaterializerService) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMaterializerService creates a new materialiser.
func NewMaterializerService(
	grants driven.GrantStore,
	directory driven.Directory,
	access driven.AccessStore,
	opts ...MaterializerOption,
) *MaterializerService {
	m := &MaterializerService{
		grants:    grants,
		directory: directory,
		access:    access,
		maxDepth:  DefaultGroupDepth,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// MarkDirty requests a rebuild on the next scheduler tick.
func (m *MaterializerService) MarkDirty() {
	m.dirty.Store(true)
}

// entryKey deduplicates entries across grants.
type entryKey struct {
	fileID    string
	principal string
	via       domain.AccessType
}

// Rebuild recomputes the access snapshot from currently effective grants
// and swaps it in atomically. Returns the number of materialised entries.
func (m *MaterializerService) Rebuild(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger.Section("Permission Rebuild")
	m.dirty.Store(false)

	grants, err := m.grants.ListGrants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list grants: %w", err)
	}

	now := m.now()
	entries := make(map[entryKey]domain.AccessEntry)
	open := make(map[string]map[domain.LinkScope]bool)
	skipped := 0

	for i := range grants {
		grant := &grants[i]
		if !grant.Effective(now) {
			continue
		}

		if err := m.applyGrant(ctx, grant, entries, open); err != nil {
			// A grant referencing an unresolvable subject is excluded;
			// the pass continues with the remaining grants.
			var ce *domain.ConsistencyError
			if errors.As(err, &ce) {
				logger.Warn("Excluding grant %s on file %s: %v", grant.GrantID, grant.FileID, err)
				skipped++
				continue
			}
			return 0, err
		}
	}

	snapshot := domain.AccessSnapshot{
		Entries: make([]domain.AccessEntry, 0, len(entries)),
		Open:    make([]domain.OpenFile, 0, len(open)),
		BuiltAt: now,
	}
	for _, e := range entries {
		snapshot.Entries = append(snapshot.Entries, e)
	}
	for fileID, scopes := range open {
		for scope := range scopes {
			snapshot.Open = append(snapshot.Open, domain.OpenFile{FileID: fileID, Scope: scope})
		}
	}

	if err := m.access.ReplaceAll(ctx, snapshot); err != nil {
		return 0, fmt.Errorf("replace access snapshot: %w", err)
	}

	logger.Info("Materialised %d entries, %d open files (%d grants excluded)",
		len(snapshot.Entries), len(snapshot.Open), skipped)
	return len(snapshot.Entries), nil
}

// Run rebuilds on the given interval, and sooner when marked dirty.
// Blocks until ctx is cancelled. The dirty check runs at interval/10 so a
// grant change is picked up well within one rebuild interval.
func (m *MaterializerService) Run(ctx context.Context, interval time.Duration) {
	tick := interval / 10
	if tick <= 0 {
		tick = time.Second
	}

	last := time.Time{}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.dirty.Load() && time.Since(last) < interval {
				continue
			}
			if _, err := m.Rebuild(ctx); err != nil {
				logger.Error("Permission rebuild failed: %v", err)
			}
			last = time.Now()
		}
	}
}

// applyGrant folds one effective grant into the entry and open-file maps.
func (m *MaterializerService) applyGrant(
	ctx context.Context,
	grant *domain.AccessGrant,
	entries map[entryKey]domain.AccessEntry,
	open map[string]map[domain.LinkScope]bool,
) error {
	switch grant.Kind {
	case domain.SubjectUser:
		addEntry(entries, grant.FileID, grant.SubjectID, domain.AccessDirect, grant.Role)
		return nil

	case domain.SubjectGroup:
		users, err := m.expandGroup(ctx, grant.SubjectID)
		if err != nil {
			return &domain.ConsistencyError{GrantID: grant.GrantID, Err: err}
		}
		for _, userID := range users {
			addEntry(entries, grant.FileID, userID, domain.AccessGroup, grant.Role)
		}
		return nil

	case domain.SubjectLink:
		return m.applyLink(ctx, grant, entries, open)

	default:
		return &domain.ConsistencyError{
			GrantID: grant.GrantID,
			Err:     fmt.Errorf("unknown subject kind %q", grant.Kind),
		}
	}
}

// applyLink resolves a link grant per its scope.
func (m *MaterializerService) applyLink(
	ctx context.Context,
	grant *domain.AccessGrant,
	entries map[entryKey]domain.AccessEntry,
	open map[string]map[domain.LinkScope]bool,
) error {
	switch grant.LinkScope {
	case domain.LinkScopeUsers:
		for _, userID := range grant.LinkUsers {
			addEntry(entries, grant.FileID, userID, domain.AccessLink, grant.Role)
		}
		return nil

	case domain.LinkScopeAnonymous, domain.LinkScopeOrganization:
		// No bounded principal set: exposed as file-level flags rather
		// than per-user entries. A file records every open scope it
		// carries; an anonymous link must not mask an organization link,
		// since the organization flag still applies when anonymous
		// access is switched off.
		if open[grant.FileID] == nil {
			open[grant.FileID] = make(map[domain.LinkScope]bool)
		}
		open[grant.FileID][grant.LinkScope] = true

		if grant.LinkScope == domain.LinkScopeOrganization && m.orgGroup != "" {
			users, err := m.expandGroup(ctx, m.orgGroup)
			if err != nil {
				return &domain.ConsistencyError{GrantID: grant.GrantID, Err: err}
			}
			for _, userID := range users {
				addEntry(entries, grant.FileID, userID, domain.AccessLink, grant.Role)
			}
		}
		return nil

	default:
		return &domain.ConsistencyError{
			GrantID: grant.GrantID,
			Err:     fmt.Errorf("unknown link scope %q", grant.LinkScope),
		}
	}
}

// expandGroup resolves a group to its user members, following nested
// groups breadth-first up to the depth cap. Cycles are cut by the visited
// set; exceeding the cap fails the expansion.
func (m *MaterializerService) expandGroup(ctx context.Context, groupID string) ([]string, error) {
	visited := map[string]bool{groupID: true}
	users := make(map[string]bool)
	frontier := []string{groupID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= m.maxDepth {
			return nil, fmt.Errorf("group %s nests deeper than %d levels", groupID, m.maxDepth)
		}

		var next []string
		for _, id := range frontier {
			members, err := m.directory.ResolveGroup(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("resolve group %s: %w", id, err)
			}
			for _, userID := range members.Users {
				users[userID] = true
			}
			for _, nested := range members.Groups {
				if visited[nested] {
					continue // cycle
				}
				visited[nested] = true
				next = append(next, nested)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(users))
	for userID := range users {
		out = append(out, userID)
	}
	return out, nil
}

// addEntry records an entry, keeping the strongest role when the same
// (file, principal, mechanism) appears more than once.
func addEntry(
	entries map[entryKey]domain.AccessEntry,
	fileID, principal string,
	via domain.AccessType,
	role domain.Role,
) {
	key := entryKey{fileID: fileID, principal: principal, via: via}
	if existing, ok := entries[key]; ok && !roleStronger(role, existing.Role) {
		return
	}
	entries[key] = domain.AccessEntry{
		FileID:      fileID,
		PrincipalID: principal,
		Via:         via,
		Role:        role,
	}
}

// roleStronger reports whether a outranks b.
func roleStronger(a, b domain.Role) bool {
	rank := map[domain.Role]int{domain.RoleRead: 0, domain.RoleWrite: 1, domain.RoleOwner: 2}
	return rank[a] > rank[b]
}
