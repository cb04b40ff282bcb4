package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	gdrive "google.golang.org/api/drive/v3"
)

func TestCursor_RoundTrip(t *testing.T) {
	cursor := NewCursor()
	cursor.PageToken = "changes-token-42"
	cursor.ListToken = "files-page-3"
	cursor.Listing = true

	decoded, err := DecodeCursor(cursor.Encode())
	require.NoError(t, err)

	assert.Equal(t, CursorVersion, decoded.Version)
	assert.Equal(t, "changes-token-42", decoded.PageToken)
	assert.Equal(t, "files-page-3", decoded.ListToken)
	assert.True(t, decoded.Listing)
}

func TestCursor_EmptyString(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)

	assert.True(t, cursor.IsEmpty())
	assert.Equal(t, CursorVersion, cursor.Version)
}

func TestCursor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not json", "bm90IGpzb24="},
		{"future version", `eyJ2Ijo5OSwicGFnZV90b2tlbiI6IngifQ==`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.input)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestCursor_IsEmpty(t *testing.T) {
	assert.True(t, NewCursor().IsEmpty())
	assert.False(t, (&Cursor{Version: CursorVersion, PageToken: "t"}).IsEmpty())
	assert.False(t, (&Cursor{Version: CursorVersion, Listing: true}).IsEmpty())
}

func TestParseConfig(t *testing.T) {
	source := domain.Source{Config: map[string]string{
		"drive_id":         "shared-1",
		"page_size":        "250",
		"max_content_size": "1024",
	}}

	cfg := ParseConfig(source)
	assert.Equal(t, "shared-1", cfg.DriveID)
	assert.Equal(t, int64(250), cfg.PageSize)
	assert.Equal(t, int64(1024), cfg.MaxContentSize)
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg := ParseConfig(domain.Source{Config: map[string]string{
		"page_size": "not-a-number",
	}})

	assert.Empty(t, cfg.DriveID)
	assert.Equal(t, int64(100), cfg.PageSize)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxContentSize)
}

func TestMapPermission(t *testing.T) {
	tests := []struct {
		name string
		perm *gdrive.Permission
		want domain.AccessGrant
		ok   bool
	}{
		{
			name: "user reader",
			perm: &gdrive.Permission{Id: "p1", Type: "user", Role: "reader", EmailAddress: "alice@example.com"},
			want: domain.AccessGrant{GrantID: "p1", Kind: domain.SubjectUser, SubjectID: "alice@example.com", Role: domain.RoleRead, Active: true},
			ok:   true,
		},
		{
			name: "group writer",
			perm: &gdrive.Permission{Id: "p2", Type: "group", Role: "writer", EmailAddress: "eng@example.com"},
			want: domain.AccessGrant{GrantID: "p2", Kind: domain.SubjectGroup, SubjectID: "eng@example.com", Role: domain.RoleWrite, Active: true},
			ok:   true,
		},
		{
			name: "domain commenter",
			perm: &gdrive.Permission{Id: "p3", Type: "domain", Role: "commenter", Domain: "example.com"},
			want: domain.AccessGrant{GrantID: "p3", Kind: domain.SubjectLink, LinkScope: domain.LinkScopeOrganization, Role: domain.RoleRead, Active: true},
			ok:   true,
		},
		{
			name: "anyone with link",
			perm: &gdrive.Permission{Id: "p4", Type: "anyone", Role: "reader"},
			want: domain.AccessGrant{GrantID: "p4", Kind: domain.SubjectLink, LinkScope: domain.LinkScopeAnonymous, Role: domain.RoleRead, Active: true},
			ok:   true,
		},
		{
			name: "organizer maps to write",
			perm: &gdrive.Permission{Id: "p5", Type: "user", Role: "fileOrganizer", EmailAddress: "bob@example.com"},
			want: domain.AccessGrant{GrantID: "p5", Kind: domain.SubjectUser, SubjectID: "bob@example.com", Role: domain.RoleWrite, Active: true},
			ok:   true,
		},
		{
			name: "deleted permission inactive",
			perm: &gdrive.Permission{Id: "p6", Type: "user", Role: "owner", EmailAddress: "carol@example.com", Deleted: true},
			want: domain.AccessGrant{GrantID: "p6", Kind: domain.SubjectUser, SubjectID: "carol@example.com", Role: domain.RoleOwner, Active: false},
			ok:   true,
		},
		{
			name: "unknown role skipped",
			perm: &gdrive.Permission{Id: "p7", Type: "user", Role: "published-viewer"},
			ok:   false,
		},
		{
			name: "unknown type skipped",
			perm: &gdrive.Permission{Id: "p8", Type: "serviceAccount", Role: "reader"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant, ok := mapPermission("f1", tt.perm)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, "f1", grant.FileID)
			assert.Equal(t, tt.want.GrantID, grant.GrantID)
			assert.Equal(t, tt.want.Kind, grant.Kind)
			assert.Equal(t, tt.want.SubjectID, grant.SubjectID)
			assert.Equal(t, tt.want.Role, grant.Role)
			assert.Equal(t, tt.want.LinkScope, grant.LinkScope)
			assert.Equal(t, tt.want.Active, grant.Active)
			assert.False(t, grant.UpdatedAt.IsZero())
		})
	}
}

func TestMapPermission_Expiry(t *testing.T) {
	grant, ok := mapPermission("f1", &gdrive.Permission{
		Id: "p1", Type: "user", Role: "reader",
		EmailAddress:   "alice@example.com",
		ExpirationTime: "2026-12-31T00:00:00Z",
	})
	require.True(t, ok)
	require.NotNil(t, grant.ExpiresAt)
	assert.Equal(t, 2026, grant.ExpiresAt.Year())
}

func TestIsTextMime(t *testing.T) {
	assert.True(t, isTextMime("text/plain"))
	assert.True(t, isTextMime("text/markdown"))
	assert.True(t, isTextMime("application/json"))
	assert.False(t, isTextMime("image/png"))
	assert.False(t, isTextMime("application/pdf"))
}
