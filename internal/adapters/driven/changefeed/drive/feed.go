// Package drive implements a change feed over the Google Drive Changes
// API. An empty cursor walks the corpus with the Files API first, handing
// over to a changes page token captured before the walk; afterwards each
// poll drains one page of changes.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/google"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
)

// Ensure Feed implements the interface.
var _ driven.ChangeFeed = (*Feed)(nil)

// Google Workspace MIME types that need exporting.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

const fileFields = "id, name, mimeType, size, trashed"

// Feed pulls change batches from one Google Drive corpus.
type Feed struct {
	svc     *gdrive.Service
	cfg     *Config
	limiter *google.RateLimiter
}

// New creates a Drive feed from the source's stored OAuth credentials.
func New(ctx context.Context, source domain.Source) (*Feed, error) {
	creds, err := google.CredentialsFromConfig(source.Config)
	if err != nil {
		return nil, err
	}

	svc, err := gdrive.NewService(ctx, option.WithTokenSource(google.NewTokenSource(ctx, creds)))
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}

	return &Feed{
		svc:     svc,
		cfg:     ParseConfig(source),
		limiter: google.NewRateLimiter(google.ServiceDrive),
	}, nil
}

// Type returns the feed type identifier.
func (f *Feed) Type() string { return "drive" }

// Close releases resources.
func (f *Feed) Close() error { return nil }

// Poll fetches the next batch of changes after the given cursor.
func (f *Feed) Poll(ctx context.Context, encoded string) (*domain.ChangeBatch, error) {
	cursor, err := DecodeCursor(encoded)
	if err != nil {
		return nil, err
	}

	if cursor.IsEmpty() {
		// Capture the changes token before walking, so edits made during
		// the walk are replayed once the walk finishes.
		token, err := f.startPageToken(ctx)
		if err != nil {
			return nil, err
		}
		cursor.PageToken = token
		cursor.Listing = true
		logger.Debug("Drive walk starting at changes token %s", token)
	}

	if cursor.Listing {
		return f.pollListing(ctx, cursor)
	}
	return f.pollChanges(ctx, cursor)
}

// pollListing emits one page of the initial corpus walk.
func (f *Feed) pollListing(ctx context.Context, cursor *Cursor) (*domain.ChangeBatch, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := f.svc.Files.List().
		Q("trashed = false").
		PageSize(f.cfg.PageSize).
		Fields("nextPageToken", "files(id, name, mimeType, trashed)").
		PageToken(cursor.ListToken).
		Context(ctx)
	if f.cfg.DriveID != "" {
		call = call.DriveId(f.cfg.DriveID).Corpora("drive").
			IncludeItemsFromAllDrives(true).SupportsAllDrives(true)
	}

	list, err := call.Do()
	if err != nil {
		return nil, f.classify(fmt.Errorf("drive: list files: %w", google.WrapError(err)))
	}

	items := make([]domain.ChangeItem, 0, len(list.Files))
	for _, file := range list.Files {
		if file.MimeType == MimeTypeFolder {
			continue
		}
		items = append(items, domain.ChangeItem{
			Kind:     domain.ChangeAdded,
			FileID:   file.Id,
			Filename: file.Name,
		})
	}

	next := *cursor
	next.ListToken = list.NextPageToken
	if list.NextPageToken == "" {
		next.Listing = false
	}

	return &domain.ChangeBatch{
		Items:      items,
		NextCursor: next.Encode(),
		HasMore:    next.Listing,
	}, nil
}

// pollChanges drains one page of the Changes API.
func (f *Feed) pollChanges(ctx context.Context, cursor *Cursor) (*domain.ChangeBatch, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := f.svc.Changes.List(cursor.PageToken).
		PageSize(f.cfg.PageSize).
		IncludeRemoved(true).
		Fields("nextPageToken", "newStartPageToken", "changes(fileId, removed, file(id, name, mimeType, trashed))").
		Context(ctx)
	if f.cfg.DriveID != "" {
		call = call.DriveId(f.cfg.DriveID).
			IncludeItemsFromAllDrives(true).SupportsAllDrives(true)
	}

	list, err := call.Do()
	if err != nil {
		return nil, f.classify(fmt.Errorf("drive: list changes: %w", google.WrapError(err)))
	}

	items := make([]domain.ChangeItem, 0, len(list.Changes))
	for _, change := range list.Changes {
		item := domain.ChangeItem{FileID: change.FileId}
		switch {
		case change.Removed || change.File == nil || change.File.Trashed:
			item.Kind = domain.ChangeDeleted
			if change.File != nil {
				item.Filename = change.File.Name
			}
		case change.File.MimeType == MimeTypeFolder:
			continue
		default:
			item.Kind = domain.ChangeModified
			item.Filename = change.File.Name
		}
		items = append(items, item)
	}

	next := *cursor
	switch {
	case list.NextPageToken != "":
		next.PageToken = list.NextPageToken
	case list.NewStartPageToken != "":
		next.PageToken = list.NewStartPageToken
	}

	return &domain.ChangeBatch{
		Items:      items,
		NextCursor: next.Encode(),
		HasMore:    list.NextPageToken != "",
	}, nil
}

// List enumerates the corpus's current files without touching cursor state.
func (f *Feed) List(ctx context.Context) ([]domain.ChangeItem, error) {
	var items []domain.ChangeItem
	pageToken := ""

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := f.svc.Files.List().
			Q("trashed = false").
			PageSize(f.cfg.PageSize).
			Fields("nextPageToken", "files(id, name, mimeType, trashed)").
			PageToken(pageToken).
			Context(ctx)
		if f.cfg.DriveID != "" {
			call = call.DriveId(f.cfg.DriveID).Corpora("drive").
				IncludeItemsFromAllDrives(true).SupportsAllDrives(true)
		}

		list, err := call.Do()
		if err != nil {
			return nil, f.classify(fmt.Errorf("drive: list files: %w", google.WrapError(err)))
		}

		for _, file := range list.Files {
			if file.MimeType == MimeTypeFolder {
				continue
			}
			items = append(items, domain.ChangeItem{
				Kind:     domain.ChangeAdded,
				FileID:   file.Id,
				Filename: file.Name,
			})
		}

		if list.NextPageToken == "" {
			return items, nil
		}
		pageToken = list.NextPageToken
	}
}

// Fetch downloads the file's content as plain text. Google Workspace
// files are exported; regular files are downloaded when their MIME type
// looks textual.
func (f *Feed) Fetch(ctx context.Context, fileID string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	file, err := f.svc.Files.Get(fileID).Fields(fileFields).
		SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", f.classify(fmt.Errorf("drive: get file: %w", google.WrapError(err)))
	}

	switch file.MimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return f.export(ctx, fileID, ExportMimeText)
	case MimeTypeGoogleSheet:
		return f.export(ctx, fileID, ExportMimeCSV)
	}

	if !isTextMime(file.MimeType) || file.Size > f.cfg.MaxContentSize {
		return "", nil
	}

	resp, err := f.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return "", f.classify(fmt.Errorf("drive: download file: %w", google.WrapError(err)))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxContentSize))
	if err != nil {
		return "", domain.Transient(fmt.Errorf("drive: read content: %w", err))
	}
	return string(data), nil
}

// export converts a Google Workspace file to the given format.
func (f *Feed) export(ctx context.Context, fileID, exportMime string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := f.svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return "", f.classify(fmt.Errorf("drive: export file: %w", google.WrapError(err)))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxContentSize))
	if err != nil {
		return "", domain.Transient(fmt.Errorf("drive: read export: %w", err))
	}
	return string(data), nil
}

// classify marks retryable failures as transient and records rate limit
// backoff.
func (f *Feed) classify(err error) error {
	if google.IsRateLimited(err) {
		f.limiter.RecordRateLimitError(0)
	}
	if google.Transient(err) {
		return domain.Transient(err)
	}
	return err
}

// isTextMime checks if a MIME type is likely text content.
func isTextMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}

	switch mimeType {
	case "application/json",
		"application/xml",
		"application/javascript",
		"application/x-yaml",
		"application/x-sh",
		"application/sql":
		return true
	}

	return false
}
