package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"coursecast/internal/database"
)

const assetColumns = "id, title, kind, file, file_extension, external_url, hls_status, hls_manifest_path, hls_error_message, hls_encoded_at, created_at, updated_at"

// Store persists video assets and their encoding state.
type Store struct {
	db *database.DB
}

// NewStore wraps an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*VideoAsset, error) {
	var (
		asset       VideoAsset
		kind        string
		file        sql.NullString
		extension   sql.NullString
		externalURL sql.NullString
		status      sql.NullString
		manifest    sql.NullString
		errMessage  sql.NullString
		encodedRaw  sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&asset.ID,
		&asset.Title,
		&kind,
		&file,
		&extension,
		&externalURL,
		&status,
		&manifest,
		&errMessage,
		&encodedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	asset.Kind = Kind(kind)
	asset.SourcePath = file.String
	asset.SourceExtension = extension.String
	asset.ExternalURL = externalURL.String
	asset.HLSStatus = HLSStatus(status.String)
	asset.HLSManifestPath = manifest.String
	asset.HLSErrorMessage = errMessage.String
	asset.HLSEncodedAt = database.ParseTimePtr(encodedRaw.String, encodedRaw.Valid)
	if created, err := database.ParseTime(createdRaw); err == nil {
		asset.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		asset.UpdatedAt = updated
	}
	return &asset, nil
}

// Insert registers a new asset with no encoding state.
func (s *Store) Insert(ctx context.Context, in NewAsset) (*VideoAsset, error) {
	kind := in.Kind
	if kind == "" {
		kind = KindFile
	}
	title := strings.TrimSpace(in.Title)
	var extension string
	switch kind {
	case KindFile:
		if strings.TrimSpace(in.SourcePath) == "" {
			return nil, errors.New("insert asset: file assets require a source path")
		}
		extension = ExtensionFromPath(in.SourcePath)
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(in.SourcePath), filepath.Ext(in.SourcePath))
		}
	case KindExternal:
		if strings.TrimSpace(in.ExternalURL) == "" {
			return nil, errors.New("insert asset: external assets require a url")
		}
		if title == "" {
			title = in.ExternalURL
		}
	default:
		return nil, fmt.Errorf("insert asset: unknown kind %q", kind)
	}

	now := database.Now()
	res, err := s.db.Exec(ctx,
		`INSERT INTO video_assets (title, kind, file, file_extension, external_url, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title,
		string(kind),
		database.NullableString(strings.TrimSpace(in.SourcePath)),
		database.NullableString(extension),
		database.NullableString(strings.TrimSpace(in.ExternalURL)),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an asset by identifier. A missing asset yields nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*VideoAsset, error) {
	row := s.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM video_assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// List returns every asset ordered by id.
func (s *Store) List(ctx context.Context) ([]*VideoAsset, error) {
	return s.query(ctx, `SELECT `+assetColumns+` FROM video_assets ORDER BY id`)
}

// SelectForConversion returns at most limit file-kind assets that carry a
// source path and extension and whose status is none or pending. With force,
// failed assets are included too. The extension allow-list is applied by the
// caller so disallowed files can be reported as skipped.
func (s *Store) SelectForConversion(ctx context.Context, limit int, force bool) ([]*VideoAsset, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("select for conversion: limit must be positive, got %d", limit)
	}
	statuses := []any{string(StatusPending)}
	if force {
		statuses = append(statuses, string(StatusFailed))
	}
	args := append(statuses, limit)
	return s.query(ctx,
		`SELECT `+assetColumns+` FROM video_assets
         WHERE kind = 'file'
           AND file IS NOT NULL AND file <> ''
           AND file_extension IS NOT NULL AND file_extension <> ''
           AND (hls_status IS NULL OR hls_status IN (`+database.Placeholders(len(statuses))+`))
         ORDER BY id
         LIMIT ?`,
		args...,
	)
}

// Summary counts file-kind assets by encoding status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.Query(ctx, `SELECT hls_status, COUNT(1) FROM video_assets WHERE kind = 'file' GROUP BY hls_status`)
	if err != nil {
		return Summary{}, fmt.Errorf("asset summary: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var (
			status sql.NullString
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		summary.Total += count
		switch HLSStatus(status.String) {
		case StatusNone:
			summary.NotStarted += count
		case StatusPending:
			summary.Pending += count
		case StatusProcessing:
			summary.Processing += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*VideoAsset, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets []*VideoAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}
