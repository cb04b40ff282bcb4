// Package google resolves group membership through the Google Workspace
// Admin SDK Directory API.
package google

import (
	"context"
	"fmt"

	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/option"

	gfeed "github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/google"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// Ensure Directory implements the interface.
var _ driven.Directory = (*Directory)(nil)

const memberFields = "nextPageToken, members(id, email, type, status)"

// Directory lists group members via the Admin SDK.
type Directory struct {
	svc     *admin.Service
	limiter *gfeed.RateLimiter
}

// New creates a directory client from OAuth credentials. The token must
// carry the admin.directory.group.readonly scope.
func New(ctx context.Context, creds gfeed.Credentials) (*Directory, error) {
	svc, err := admin.NewService(ctx, option.WithTokenSource(gfeed.NewTokenSource(ctx, &creds)))
	if err != nil {
		return nil, fmt.Errorf("directory: create service: %w", err)
	}

	return &Directory{
		svc:     svc,
		limiter: gfeed.NewRateLimiter(gfeed.ServiceDirectory),
	}, nil
}

// ResolveGroup returns the group's direct members, split into users and
// nested groups. Nested groups are not expanded here.
func (d *Directory) ResolveGroup(ctx context.Context, groupID string) (*domain.GroupMembers, error) {
	members := &domain.GroupMembers{}
	pageToken := ""

	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := d.svc.Members.List(groupID).
			Fields(memberFields).
			PageToken(pageToken).
			Context(ctx)

		list, err := call.Do()
		if err != nil {
			return nil, d.classify(groupID, err)
		}

		for _, member := range list.Members {
			id := member.Email
			if id == "" {
				id = member.Id
			}

			switch member.Type {
			case "USER":
				if member.Status == "SUSPENDED" {
					continue
				}
				members.Users = append(members.Users, id)
			case "GROUP":
				members.Groups = append(members.Groups, id)
			default:
				logger.Debug("Skipping member %s of type %s in group %s", id, member.Type, groupID)
			}
		}

		if list.NextPageToken == "" {
			return members, nil
		}
		pageToken = list.NextPageToken
	}
}

func (d *Directory) classify(groupID string, err error) error {
	wrapped := gfeed.WrapError(err)
	if gfeed.IsRateLimited(wrapped) {
		d.limiter.RecordRateLimitError(0)
	}
	if gfeed.IsNotFound(wrapped) {
		return fmt.Errorf("directory: group %s: %w", groupID, domain.ErrNotFound)
	}
	if gfeed.Transient(wrapped) {
		return domain.Transient(fmt.Errorf("directory: group %s: %w", groupID, wrapped))
	}
	return fmt.Errorf("directory: group %s: %w", groupID, wrapped)
}
