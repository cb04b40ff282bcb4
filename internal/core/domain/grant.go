package domain

import "time"

// SubjectKind identifies who an access grant applies to.
type SubjectKind string

const (
	// SubjectUser is a grant to a single principal.
	SubjectUser SubjectKind = "user"

	// SubjectGroup is a grant to a directory group, expanded at
	// materialisation time.
	SubjectGroup SubjectKind = "group"

	// SubjectLink is a sharing link with a scope.
	SubjectLink SubjectKind = "link"
)

// Role is the permission level carried by a grant.
type Role string

const (
	// RoleRead grants read access.
	RoleRead Role = "read"

	// RoleWrite grants write access (implies read for retrieval).
	RoleWrite Role = "write"

	// RoleOwner marks the file owner.
	RoleOwner Role = "owner"
)

// LinkScope describes who a sharing link admits.
type LinkScope string

const (
	// LinkScopeAnonymous admits anyone holding the link. Exposed to
	// retrieval only when anonymous access is explicitly enabled.
	LinkScopeAnonymous LinkScope = "anonymous"

	// LinkScopeOrganization admits every principal in the tenant.
	// Not expanded per-user; surfaced as a file-level open flag.
	LinkScopeOrganization LinkScope = "organization"

	// LinkScopeUsers admits only the listed principals, like a
	// direct grant.
	LinkScopeUsers LinkScope = "specific-users"
)

// AccessGrant is one raw permission entry on a document, mirrored from the
// external permission source. Grants are soft-deleted via Active=false so
// re-applying the same permission snapshot is idempotent.
type AccessGrant struct {
	// GrantID is the permission identifier, unique per file.
	GrantID string

	// FileID is the document this grant applies to.
	FileID string

	// Kind is the subject variant: user, group or link.
	Kind SubjectKind

	// SubjectID is the user or group identifier. Empty for link grants.
	SubjectID string

	// Role is the granted permission level.
	Role Role

	// LinkScope is set for link grants only.
	LinkScope LinkScope

	// LinkUsers lists the admitted principals for specific-users links.
	LinkUsers []string

	// ExpiresAt is the optional expiry. Nil means the grant does not expire.
	ExpiresAt *time.Time

	// Active is false once the grant has been revoked upstream.
	Active bool

	// UpdatedAt is when the grant was last mirrored.
	UpdatedAt time.Time
}

// Effective reports whether the grant confers access at the given instant:
// it must be active and not expired.
func (g *AccessGrant) Effective(now time.Time) bool {
	if !g.Active {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return false
	}
	return true
}
