package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

func TestAccessStore_AccessibleFiles(t *testing.T) {
	ctx := context.Background()
	store := NewAccessStore()

	err := store.ReplaceAll(ctx, domain.AccessSnapshot{
		Entries: []domain.AccessEntry{
			{FileID: "f1", PrincipalID: "alice", Via: domain.AccessDirect, Role: domain.RoleRead},
			{FileID: "f2", PrincipalID: "bob", Via: domain.AccessGroup, Role: domain.RoleRead},
		},
		Open: []domain.OpenFile{
			{FileID: "f3", Scope: domain.LinkScopeOrganization},
			{FileID: "f4", Scope: domain.LinkScopeAnonymous},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		principal string
		anonymous bool
		want      []string
	}{
		{
			name:      "direct entry plus org-open file",
			principal: "alice",
			want:      []string{"f1", "f3"},
		},
		{
			name:      "group entry plus org-open file",
			principal: "bob",
			want:      []string{"f2", "f3"},
		},
		{
			name:      "unknown principal still sees org-open files",
			principal: "mallory",
			want:      []string{"f3"},
		},
		{
			name:      "anonymous scope admitted only when enabled",
			principal: "alice",
			anonymous: true,
			want:      []string{"f1", "f3", "f4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := store.AccessibleFiles(ctx, tt.principal, tt.anonymous)
			require.NoError(t, err)
			assert.Len(t, files, len(tt.want))
			for _, id := range tt.want {
				assert.Contains(t, files, id)
			}
		})
	}
}

func TestAccessStore_ReplaceAllSwaps(t *testing.T) {
	ctx := context.Background()
	store := NewAccessStore()

	require.NoError(t, store.ReplaceAll(ctx, domain.AccessSnapshot{
		Entries: []domain.AccessEntry{{FileID: "f1", PrincipalID: "alice", Via: domain.AccessDirect}},
	}))
	require.NoError(t, store.ReplaceAll(ctx, domain.AccessSnapshot{
		Entries: []domain.AccessEntry{{FileID: "f2", PrincipalID: "alice", Via: domain.AccessDirect}},
	}))

	files, err := store.AccessibleFiles(ctx, "alice", false)
	require.NoError(t, err)
	assert.NotContains(t, files, "f1")
	assert.Contains(t, files, "f2")

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Entries, 1)
}
