package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
)

func TestDirectory_ResolveGroup(t *testing.T) {
	dir := New(map[string]domain.GroupMembers{
		"eng": {Users: []string{"alice", "bob"}, Groups: []string{"backend"}},
	})

	members, err := dir.ResolveGroup(context.Background(), "eng")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members.Users)
	assert.Equal(t, []string{"backend"}, members.Groups)
}

func TestDirectory_UnknownGroup(t *testing.T) {
	dir := New(nil)

	_, err := dir.ResolveGroup(context.Background(), "ghosts")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectory_SetAndRemove(t *testing.T) {
	dir := New(nil)
	dir.SetGroup("ops", domain.GroupMembers{Users: []string{"carol"}})

	members, err := dir.ResolveGroup(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, members.Users)

	dir.RemoveGroup("ops")
	_, err = dir.ResolveGroup(context.Background(), "ops")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectory_ResolveReturnsCopy(t *testing.T) {
	dir := New(map[string]domain.GroupMembers{
		"eng": {Users: []string{"alice"}},
	})

	members, err := dir.ResolveGroup(context.Background(), "eng")
	require.NoError(t, err)
	members.Users[0] = "mallory"

	again, err := dir.ResolveGroup(context.Background(), "eng")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, again.Users)
}
