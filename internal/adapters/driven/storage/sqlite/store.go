package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to all
// metadata store interfaces through wrapper types.
//
// Multi-row swaps (chunk replace, access snapshot replace) run inside one
// transaction, so concurrent readers observe the pre-swap or post-swap
// rows, never a mix.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-indexd/data/index.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-indexd", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// WAL mode keeps readers unblocked during reconciliation writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SourceStore returns a SourceStore interface backed by this store.
func (s *Store) SourceStore() driven.SourceStore {
	return &sourceStore{store: s}
}

// SyncStateStore returns a SyncStateStore interface backed by this store.
func (s *Store) SyncStateStore() driven.SyncStateStore {
	return &syncStateStore{store: s}
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// GrantStore returns a GrantStore interface backed by this store.
func (s *Store) GrantStore() driven.GrantStore {
	return &grantStore{store: s}
}

// AccessStore returns an AccessStore interface backed by this store.
func (s *Store) AccessStore() driven.AccessStore {
	return &accessStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // skip files that don't match the pattern
		}

		if version <= currentVersion {
			continue // already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Source Store ====================

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

// Save stores or updates a source.
func (s *sourceStore) Save(ctx context.Context, source domain.Source) error {
	configJSON, err := json.Marshal(source.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, type, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, source.ID, source.Name, source.Type, string(configJSON),
		source.CreatedAt, source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, type, config, created_at, updated_at
		FROM sources WHERE id = ?
	`, id)

	return scanSource(row.Scan)
}

// Delete removes a source.
func (s *sourceStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return nil
}

// List returns all registered sources.
func (s *sourceStore) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, type, config, created_at, updated_at
		FROM sources ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source //nolint:prealloc // size unknown from query
	for rows.Next() {
		source, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	return sources, nil
}

// scanSource scans one source row via the given Scan function.
func scanSource(scan func(...any) error) (*domain.Source, error) {
	var source domain.Source
	var configJSON string
	var createdAt, updatedAt sql.NullTime
	if err := scan(&source.ID, &source.Name, &source.Type, &configJSON,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &source.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if createdAt.Valid {
		source.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		source.UpdatedAt = updatedAt.Time
	}

	return &source, nil
}

// ==================== Sync State Store ====================

// syncStateStore implements driven.SyncStateStore.
type syncStateStore struct {
	store *Store
}

var _ driven.SyncStateStore = (*syncStateStore)(nil)

// Save stores or updates a source's sync state.
func (s *syncStateStore) Save(ctx context.Context, state domain.SyncState) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_states (source_id, cursor, status, files_processed, chunks_created, last_error, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			cursor = excluded.cursor,
			status = excluded.status,
			files_processed = excluded.files_processed,
			chunks_created = excluded.chunks_created,
			last_error = excluded.last_error,
			last_sync = excluded.last_sync
	`, state.SourceID, state.Cursor, string(state.Status),
		state.FilesProcessed, state.ChunksCreated, state.LastError, nullTime(state.LastSync))

	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// Get retrieves a source's sync state.
func (s *syncStateStore) Get(ctx context.Context, sourceID string) (*domain.SyncState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_id, cursor, status, files_processed, chunks_created, last_error, last_sync
		FROM sync_states WHERE source_id = ?
	`, sourceID)

	var state domain.SyncState
	var status string
	var lastSync sql.NullTime
	if err := row.Scan(&state.SourceID, &state.Cursor, &status,
		&state.FilesProcessed, &state.ChunksCreated, &state.LastError, &lastSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sync state: %w", err)
	}

	state.Status = domain.SyncStatus(status)
	if lastSync.Valid {
		state.LastSync = lastSync.Time
	}

	return &state, nil
}

// Delete removes a source's sync state.
func (s *syncStateStore) Delete(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_states WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting sync state: %w", err)
	}
	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// ReplaceChunks upserts the document and swaps its entire chunk set in one
// transaction. A stored document already at doc.Version makes the call a
// no-op.
func (s *documentStore) ReplaceChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existingVersion string
	var existingCreated sql.NullTime
	row := tx.QueryRowContext(ctx,
		"SELECT version, created_at FROM documents WHERE file_id = ?", doc.FileID)
	switch err := row.Scan(&existingVersion, &existingCreated); {
	case err == nil:
		if existingVersion == doc.Version {
			return nil
		}
		if existingCreated.Valid {
			doc.CreatedAt = existingCreated.Time
		}
	case errors.Is(err, sql.ErrNoRows):
		// first ingestion
	default:
		return fmt.Errorf("checking document version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (file_id, source_id, filename, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			source_id = excluded.source_id,
			filename = excluded.filename,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, doc.FileID, doc.SourceID, doc.Filename, doc.Version, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", doc.FileID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (file_id, chunk_index, text, word_count, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.FileID, chunk.Index, chunk.Text,
			chunk.WordCount, float32SliceToBytes(chunk.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteFile removes the document and all of its chunks.
func (s *documentStore) DeleteFile(ctx context.Context, fileID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by file ID.
func (s *documentStore) GetDocument(ctx context.Context, fileID string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT file_id, source_id, filename, version, created_at, updated_at
		FROM documents WHERE file_id = ?
	`, fileID)

	var doc domain.Document
	if err := row.Scan(&doc.FileID, &doc.SourceID, &doc.Filename, &doc.Version,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	return &doc, nil
}

// ListDocuments returns the documents of a source.
func (s *documentStore) ListDocuments(ctx context.Context, sourceID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT file_id, source_id, filename, version, created_at, updated_at
		FROM documents WHERE source_id = ? ORDER BY file_id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.FileID, &doc.SourceID, &doc.Filename, &doc.Version,
			&doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Chunks returns a file's chunks ordered by index.
func (s *documentStore) Chunks(ctx context.Context, fileID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT file_id, chunk_index, text, word_count, embedding
		FROM chunks WHERE file_id = ?
		ORDER BY chunk_index
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// ChunksByFiles returns the chunks of the given files. Unknown file IDs
// contribute nothing. The IN clause is chunked to stay under SQLite's
// bound-parameter limit.
func (s *documentStore) ChunksByFiles(ctx context.Context, fileIDs []string) ([]domain.Chunk, error) {
	const batchSize = 500

	var all []domain.Chunk
	for start := 0; start < len(fileIDs); start += batchSize {
		end := start + batchSize
		if end > len(fileIDs) {
			end = len(fileIDs)
		}
		batch := fileIDs[start:end]

		placeholders := strings.Repeat("?,", len(batch)-1) + "?"
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT file_id, chunk_index, text, word_count, embedding
			FROM chunks WHERE file_id IN (%s)
			ORDER BY file_id, chunk_index
		`, placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("querying chunks: %w", err)
		}

		chunks, err := collectChunks(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}

	return all, nil
}

// collectChunks drains a chunk result set.
func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embedding []byte
		if err := rows.Scan(&chunk.FileID, &chunk.Index, &chunk.Text,
			&chunk.WordCount, &embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embedding)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// ==================== Grant Store ====================

// grantStore implements driven.GrantStore.
type grantStore struct {
	store *Store
}

var _ driven.GrantStore = (*grantStore)(nil)

// ReplaceFileGrants swaps all grant rows of a file in one transaction.
func (s *grantStore) ReplaceFileGrants(ctx context.Context, fileID string, grants []domain.AccessGrant) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM access_grants WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("clearing grants: %w", err)
	}

	for i := range grants {
		grants[i].FileID = fileID
		if err := upsertGrant(ctx, tx, grants[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveGrant upserts a single grant.
func (s *grantStore) SaveGrant(ctx context.Context, grant domain.AccessGrant) error {
	return upsertGrant(ctx, s.store.db, grant)
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertGrant(ctx context.Context, db execer, grant domain.AccessGrant) error {
	linkUsers, err := json.Marshal(grant.LinkUsers)
	if err != nil {
		return fmt.Errorf("marshalling link users: %w", err)
	}
	if grant.UpdatedAt.IsZero() {
		grant.UpdatedAt = time.Now().UTC()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO access_grants (file_id, grant_id, kind, subject_id, role, link_scope, link_users, expires_at, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, grant_id) DO UPDATE SET
			kind = excluded.kind,
			subject_id = excluded.subject_id,
			role = excluded.role,
			link_scope = excluded.link_scope,
			link_users = excluded.link_users,
			expires_at = excluded.expires_at,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, grant.FileID, grant.GrantID, string(grant.Kind), grant.SubjectID,
		string(grant.Role), string(grant.LinkScope), string(linkUsers),
		nullTimePtr(grant.ExpiresAt), grant.Active, grant.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving grant: %w", err)
	}
	return nil
}

// RevokeGrant marks a grant inactive. Unknown grants are not an error.
func (s *grantStore) RevokeGrant(ctx context.Context, fileID, grantID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE access_grants SET active = 0, updated_at = ?
		WHERE file_id = ? AND grant_id = ?
	`, time.Now().UTC(), fileID, grantID)
	if err != nil {
		return fmt.Errorf("revoking grant: %w", err)
	}
	return nil
}

// DeleteFileGrants removes all grant rows of a file.
func (s *grantStore) DeleteFileGrants(ctx context.Context, fileID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM access_grants WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("deleting grants: %w", err)
	}
	return nil
}

// ListGrants returns every stored grant, active or not.
func (s *grantStore) ListGrants(ctx context.Context) ([]domain.AccessGrant, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT file_id, grant_id, kind, subject_id, role, link_scope, link_users, expires_at, active, updated_at
		FROM access_grants ORDER BY file_id, grant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	return collectGrants(rows)
}

// ListFileGrants returns the grant rows of one file.
func (s *grantStore) ListFileGrants(ctx context.Context, fileID string) ([]domain.AccessGrant, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT file_id, grant_id, kind, subject_id, role, link_scope, link_users, expires_at, active, updated_at
		FROM access_grants WHERE file_id = ? ORDER BY grant_id
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	return collectGrants(rows)
}

// collectGrants drains a grant result set.
func collectGrants(rows *sql.Rows) ([]domain.AccessGrant, error) {
	var grants []domain.AccessGrant //nolint:prealloc // size unknown from query
	for rows.Next() {
		var grant domain.AccessGrant
		var kind, role, linkScope, linkUsers string
		var expiresAt sql.NullTime
		if err := rows.Scan(&grant.FileID, &grant.GrantID, &kind, &grant.SubjectID,
			&role, &linkScope, &linkUsers, &expiresAt, &grant.Active, &grant.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}

		grant.Kind = domain.SubjectKind(kind)
		grant.Role = domain.Role(role)
		grant.LinkScope = domain.LinkScope(linkScope)
		if err := json.Unmarshal([]byte(linkUsers), &grant.LinkUsers); err != nil {
			return nil, fmt.Errorf("unmarshalling link users: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			grant.ExpiresAt = &t
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grants: %w", err)
	}

	return grants, nil
}

// ==================== Access Store ====================

// accessStore implements driven.AccessStore.
type accessStore struct {
	store *Store
}

var _ driven.AccessStore = (*accessStore)(nil)

// ReplaceAll swaps the entire materialised snapshot in one transaction.
func (s *accessStore) ReplaceAll(ctx context.Context, snapshot domain.AccessSnapshot) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM access_entries"); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM open_files"); err != nil {
		return fmt.Errorf("clearing open files: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO access_entries (file_id, principal_id, via, role)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer entryStmt.Close()

	for _, entry := range snapshot.Entries {
		if _, err := entryStmt.ExecContext(ctx, entry.FileID, entry.PrincipalID,
			string(entry.Via), string(entry.Role)); err != nil {
			return fmt.Errorf("saving entry: %w", err)
		}
	}

	for _, open := range snapshot.Open {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO open_files (file_id, scope) VALUES (?, ?)",
			open.FileID, string(open.Scope)); err != nil {
			return fmt.Errorf("saving open file: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE access_meta SET built_at = ? WHERE id = 1", snapshot.BuiltAt); err != nil {
		return fmt.Errorf("recording build time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// AccessibleFiles returns the file IDs the principal may currently see.
func (s *accessStore) AccessibleFiles(ctx context.Context, principalID string, includeAnonymous bool) (map[string]struct{}, error) {
	scopes := []any{string(domain.LinkScopeOrganization)}
	scopeClause := "scope = ?"
	if includeAnonymous {
		scopes = append(scopes, string(domain.LinkScopeAnonymous))
		scopeClause = "scope IN (?, ?)"
	}

	args := append([]any{principalID}, scopes...)
	rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT file_id FROM access_entries WHERE principal_id = ?
		UNION
		SELECT file_id FROM open_files WHERE %s
	`, scopeClause), args...)
	if err != nil {
		return nil, fmt.Errorf("querying accessible files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]struct{})
	for rows.Next() {
		var fileID string
		if err := rows.Scan(&fileID); err != nil {
			return nil, fmt.Errorf("scanning file id: %w", err)
		}
		files[fileID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accessible files: %w", err)
	}

	return files, nil
}

// Snapshot returns the current materialised snapshot.
func (s *accessStore) Snapshot(ctx context.Context) (*domain.AccessSnapshot, error) {
	var snapshot domain.AccessSnapshot

	var builtAt sql.NullTime
	row := s.store.db.QueryRowContext(ctx, "SELECT built_at FROM access_meta WHERE id = 1")
	if err := row.Scan(&builtAt); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scanning build time: %w", err)
	}
	if builtAt.Valid {
		snapshot.BuiltAt = builtAt.Time
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT file_id, principal_id, via, role FROM access_entries
		ORDER BY file_id, principal_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.AccessEntry
		var via, role string
		if err := rows.Scan(&entry.FileID, &entry.PrincipalID, &via, &role); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entry.Via = domain.AccessType(via)
		entry.Role = domain.Role(role)
		snapshot.Entries = append(snapshot.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	openRows, err := s.store.db.QueryContext(ctx,
		"SELECT file_id, scope FROM open_files ORDER BY file_id")
	if err != nil {
		return nil, fmt.Errorf("querying open files: %w", err)
	}
	defer openRows.Close()

	for openRows.Next() {
		var open domain.OpenFile
		var scope string
		if err := openRows.Scan(&open.FileID, &scope); err != nil {
			return nil, fmt.Errorf("scanning open file: %w", err)
		}
		open.Scope = domain.LinkScope(scope)
		snapshot.Open = append(snapshot.Open, open)
	}
	if err := openRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating open files: %w", err)
	}

	return &snapshot, nil
}

// ==================== Helpers ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullTimePtr maps a nil pointer to NULL.
func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
