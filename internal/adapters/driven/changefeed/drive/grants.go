package drive

import (
	"context"
	"fmt"
	"time"

	gdrive "google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/google"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

const permissionFields = "nextPageToken, permissions(id, type, role, emailAddress, domain, expirationTime, deleted)"

// Grants lists the file's permissions and maps them to access grants.
func (f *Feed) Grants(ctx context.Context, fileID string) ([]domain.AccessGrant, error) {
	var grants []domain.AccessGrant
	pageToken := ""

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := f.svc.Permissions.List(fileID).
			Fields(permissionFields).
			SupportsAllDrives(true).
			PageToken(pageToken).
			Context(ctx)

		list, err := call.Do()
		if err != nil {
			return nil, f.classify(fmt.Errorf("drive: list permissions: %w", google.WrapError(err)))
		}

		for _, perm := range list.Permissions {
			grant, ok := mapPermission(fileID, perm)
			if !ok {
				continue
			}
			grants = append(grants, grant)
		}

		if list.NextPageToken == "" {
			return grants, nil
		}
		pageToken = list.NextPageToken
	}
}

// mapPermission converts one Drive permission into a grant. Permission
// types without an indexable equivalent are skipped.
func mapPermission(fileID string, perm *gdrive.Permission) (domain.AccessGrant, bool) {
	role, ok := mapRole(perm.Role)
	if !ok {
		logger.Debug("Skipping permission %s with role %s on %s", perm.Id, perm.Role, fileID)
		return domain.AccessGrant{}, false
	}

	grant := domain.AccessGrant{
		FileID:    fileID,
		GrantID:   perm.Id,
		Role:      role,
		Active:    !perm.Deleted,
		UpdatedAt: time.Now().UTC(),
	}

	if perm.ExpirationTime != "" {
		if expires, err := time.Parse(time.RFC3339, perm.ExpirationTime); err == nil {
			grant.ExpiresAt = &expires
		} else {
			logger.Warn("Unparseable expiration %q on permission %s", perm.ExpirationTime, perm.Id)
		}
	}

	switch perm.Type {
	case "user":
		grant.Kind = domain.SubjectUser
		grant.SubjectID = perm.EmailAddress
	case "group":
		grant.Kind = domain.SubjectGroup
		grant.SubjectID = perm.EmailAddress
	case "domain":
		grant.Kind = domain.SubjectLink
		grant.LinkScope = domain.LinkScopeOrganization
	case "anyone":
		grant.Kind = domain.SubjectLink
		grant.LinkScope = domain.LinkScopeAnonymous
	default:
		logger.Debug("Skipping permission %s with type %s on %s", perm.Id, perm.Type, fileID)
		return domain.AccessGrant{}, false
	}

	return grant, true
}

// mapRole translates Drive roles onto the read/write/owner ladder.
func mapRole(role string) (domain.Role, bool) {
	switch role {
	case "owner":
		return domain.RoleOwner, true
	case "writer", "fileOrganizer", "organizer":
		return domain.RoleWrite, true
	case "reader", "commenter":
		return domain.RoleRead, true
	}
	return "", false
}
