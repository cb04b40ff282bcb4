package domain

import "time"

// AccessType records the mechanism through which a materialised entry
// was derived.
type AccessType string

const (
	// AccessDirect derives from a user grant.
	AccessDirect AccessType = "direct"

	// AccessGroup derives from an expanded group grant.
	AccessGroup AccessType = "group"

	// AccessLink derives from a specific-users sharing link.
	AccessLink AccessType = "link"
)

// AccessEntry is a derived, queryable fact: principal may access file via
// mechanism with role. Entries are rebuilt in full on each materialisation
// pass; every entry traces back to at least one grant that was active and
// unexpired at materialisation time.
type AccessEntry struct {
	// FileID is the accessible document.
	FileID string

	// PrincipalID is the admitted principal.
	PrincipalID string

	// Via is the deriving mechanism.
	Via AccessType

	// Role is the effective permission level.
	Role Role
}

// OpenFile marks a file reachable through a link scope with no bounded
// principal set (anonymous or organization). Such links are not expanded
// into per-user entries.
type OpenFile struct {
	// FileID is the open document.
	FileID string

	// Scope is the widest open link scope on the file.
	Scope LinkScope
}

// GroupMembers is one level of a directory group's membership.
type GroupMembers struct {
	// Users are the direct user members.
	Users []string

	// Groups are the direct nested group members.
	Groups []string
}

// AccessSnapshot is the result of one materialisation pass. Stores swap the
// whole snapshot atomically so queries observe either the pre-rebuild or the
// post-rebuild state, never a mix.
type AccessSnapshot struct {
	// Entries are the per-(file, principal) facts.
	Entries []AccessEntry

	// Open are the file-level open-to-tenant and anonymous flags.
	Open []OpenFile

	// BuiltAt is when the snapshot was computed.
	BuiltAt time.Time
}
