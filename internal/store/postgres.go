package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jgmarti84/radarlib/internal/domain"
)

// PostgresStore is the StateStore implementation backed by PostgreSQL. It
// serializes conflicting claim/record transitions by performing the status
// check and the status write in one conditional UPDATE (WHERE status = ...)
// and reading RowsAffected, relying on the row lock that UPDATE takes rather
// than on application-level mutexes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool against dsn, verifies
// connectivity, and ensures the catalogue schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("store: postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			filename TEXT PRIMARY KEY,
			remote_path TEXT NOT NULL,
			local_path TEXT NOT NULL,
			size BIGINT NOT NULL,
			digest TEXT NOT NULL,
			radar TEXT NOT NULL,
			field TEXT NOT NULL,
			vol_code TEXT NOT NULL,
			vol_num TEXT NOT NULL,
			observation_instant TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_radar_obs ON files(radar, observation_instant)`,
		`CREATE TABLE IF NOT EXISTS partial_downloads (
			filename TEXT PRIMARY KEY,
			remote_path TEXT NOT NULL,
			local_path TEXT NOT NULL,
			bytes_downloaded BIGINT NOT NULL DEFAULT 0,
			total_bytes BIGINT NOT NULL DEFAULT 0,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_attempt TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS volumes (
			volume_id TEXT PRIMARY KEY,
			radar TEXT NOT NULL,
			vol_code TEXT NOT NULL,
			vol_num TEXT NOT NULL,
			observation_instant TIMESTAMPTZ NOT NULL,
			expected_fields TEXT[] NOT NULL,
			downloaded_fields TEXT[] NOT NULL DEFAULT '{}',
			is_complete BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'pending',
			output_path TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_volumes_status ON volumes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_volumes_radar_obs ON volumes(radar, observation_instant)`,
		`CREATE TABLE IF NOT EXISTS products (
			volume_id TEXT NOT NULL REFERENCES volumes(volume_id) ON DELETE CASCADE,
			product_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			generated_at TIMESTAMPTZ,
			error_type TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (volume_id, product_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_status ON products(status)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) RecordCompletedFile(ctx context.Context, file domain.FileRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin record_completed_file: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO files (filename, remote_path, local_path, size, digest, radar, field, vol_code, vol_num, observation_instant, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'completed', $11)
		ON CONFLICT (filename) DO UPDATE SET
			remote_path = EXCLUDED.remote_path,
			local_path = EXCLUDED.local_path,
			size = EXCLUDED.size,
			digest = EXCLUDED.digest,
			status = 'completed',
			created_at = EXCLUDED.created_at
	`, file.Filename, file.RemotePath, file.LocalPath, file.Size, file.Digest,
		file.Radar, file.Field, file.VolumeCode, file.VolumeNumber, file.ObservationInstant, now)
	if err != nil {
		return fmt.Errorf("store: record_completed_file insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM partial_downloads WHERE filename = $1`, file.Filename); err != nil {
		return fmt.Errorf("store: record_completed_file delete partial: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) RecordPartial(ctx context.Context, partial domain.PartialDownload) error {
	completed, err := s.IsFileCompleted(ctx, partial.Filename)
	if err != nil {
		return err
	}
	if completed {
		return fmt.Errorf("store: record_partial: %s already has a completed file row", partial.Filename)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO partial_downloads (filename, remote_path, local_path, bytes_downloaded, total_bytes, attempt_count, last_attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (filename) DO UPDATE SET
			bytes_downloaded = EXCLUDED.bytes_downloaded,
			total_bytes = EXCLUDED.total_bytes,
			attempt_count = partial_downloads.attempt_count + 1,
			last_attempt = EXCLUDED.last_attempt
	`, partial.Filename, partial.RemotePath, partial.LocalPath, partial.BytesDownloaded,
		partial.TotalBytes, partial.AttemptCount, partial.LastAttempt)
	if err != nil {
		return fmt.Errorf("store: record_partial: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsFileCompleted(ctx context.Context, filename string) (bool, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM files WHERE filename = $1`, filename).Scan(&status)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: is_file_completed: %w", err)
	}
	return status == string(domain.FileCompleted), nil
}

func (s *PostgresStore) LatestObservationInstant(ctx context.Context, radar string) (time.Time, bool, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(observation_instant) FROM files WHERE radar = $1 AND status = 'completed'
	`, radar).Scan(&t)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: latest_observation_instant: %w", err)
	}
	if t == nil || t.IsZero() {
		return time.Time{}, false, nil
	}
	return *t, true, nil
}

func (s *PostgresStore) FilesForVolume(ctx context.Context, id domain.VolumeID) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT field, local_path FROM files
		WHERE radar = $1 AND vol_code = $2 AND vol_num = $3 AND observation_instant = $4 AND status = 'completed'
	`, id.Radar, id.VolumeCode, id.VolumeNumber, id.Observation)
	if err != nil {
		return nil, fmt.Errorf("store: files_for_volume: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, path string
		if err := rows.Scan(&field, &path); err != nil {
			return nil, fmt.Errorf("store: files_for_volume scan: %w", err)
		}
		out[field] = path
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertVolume(ctx context.Context, id domain.VolumeID, expectedFields []string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO volumes (volume_id, radar, vol_code, vol_num, observation_instant, expected_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (volume_id) DO NOTHING
	`, id.String(), id.Radar, id.VolumeCode, id.VolumeNumber, id.Observation, expectedFields, now)
	if err != nil {
		return fmt.Errorf("store: upsert_volume: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddFieldToVolume(ctx context.Context, id domain.VolumeID, field string) error {
	now := time.Now().UTC()
	ct, err := s.pool.Exec(ctx, `
		UPDATE volumes SET
			downloaded_fields = ARRAY(SELECT DISTINCT unnest(downloaded_fields || $2::text[])),
			is_complete = (expected_fields <@ ARRAY(SELECT DISTINCT unnest(downloaded_fields || $2::text[]))),
			updated_at = $3
		WHERE volume_id = $1
	`, id.String(), []string{field}, now)
	if err != nil {
		return fmt.Errorf("store: add_field_to_volume: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("store: add_field_to_volume: volume %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ListVolumesForProcessing(ctx context.Context) ([]domain.Volume, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT volume_id, radar, vol_code, vol_num, observation_instant,
		       expected_fields, downloaded_fields, is_complete, status,
		       output_path, error_message, created_at, updated_at
		FROM volumes
		WHERE status = 'pending' AND is_complete = TRUE
		ORDER BY observation_instant ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list_volumes_for_processing: %w", err)
	}
	defer rows.Close()

	var out []domain.Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list_volumes_for_processing scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClaimVolumeForProcessing(ctx context.Context, id domain.VolumeID) (bool, error) {
	now := time.Now().UTC()
	ct, err := s.pool.Exec(ctx, `
		UPDATE volumes SET status = 'processing', updated_at = $2
		WHERE volume_id = $1 AND status = 'pending' AND is_complete = TRUE
	`, id.String(), now)
	if err != nil {
		return false, fmt.Errorf("store: claim_volume_for_processing: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkVolumeProcessed(ctx context.Context, id domain.VolumeID, outputPath string) error {
	now := time.Now().UTC()
	ct, err := s.pool.Exec(ctx, `
		UPDATE volumes SET status = 'completed', output_path = $2, error_message = '', updated_at = $3
		WHERE volume_id = $1 AND status = 'processing'
	`, id.String(), outputPath, now)
	if err != nil {
		return fmt.Errorf("store: mark_volume_processed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("store: mark_volume_processed: volume %s is not processing", id)
	}
	return nil
}

func (s *PostgresStore) MarkVolumeFailed(ctx context.Context, id domain.VolumeID, stageErr *domain.StageError) error {
	now := time.Now().UTC()
	msg := stageErr.Class + ": " + stageErr.Message
	ct, err := s.pool.Exec(ctx, `
		UPDATE volumes SET status = 'failed', error_message = $2, updated_at = $3
		WHERE volume_id = $1 AND status = 'processing'
	`, id.String(), msg, now)
	if err != nil {
		return fmt.Errorf("store: mark_volume_failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("store: mark_volume_failed: volume %s is not processing", id)
	}
	return nil
}

func (s *PostgresStore) ListVolumesForRendering(ctx context.Context, productType domain.ProductType) ([]domain.Volume, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.volume_id, v.radar, v.vol_code, v.vol_num, v.observation_instant,
		       v.expected_fields, v.downloaded_fields, v.is_complete, v.status,
		       v.output_path, v.error_message, v.created_at, v.updated_at
		FROM volumes v
		LEFT JOIN products p ON p.volume_id = v.volume_id AND p.product_type = $1
		WHERE v.status = 'completed' AND (p.volume_id IS NULL OR p.status IN ('pending', 'failed'))
		ORDER BY v.observation_instant ASC
	`, string(productType))
	if err != nil {
		return nil, fmt.Errorf("store: list_volumes_for_rendering: %w", err)
	}
	defer rows.Close()

	var out []domain.Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list_volumes_for_rendering scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClaimProduct(ctx context.Context, id domain.VolumeID, productType domain.ProductType) (bool, error) {
	now := time.Now().UTC()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("store: begin claim_product: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO products (volume_id, product_type, status, created_at, updated_at)
		VALUES ($1, $2, 'pending', $3, $3)
		ON CONFLICT (volume_id, product_type) DO NOTHING
	`, id.String(), string(productType), now); err != nil {
		return false, fmt.Errorf("store: claim_product insert: %w", err)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE products SET status = 'processing', updated_at = $3
		WHERE volume_id = $1 AND product_type = $2 AND status IN ('pending', 'failed')
	`, id.String(), string(productType), now)
	if err != nil {
		return false, fmt.Errorf("store: claim_product update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("store: commit claim_product: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkProductStatus(ctx context.Context, id domain.VolumeID, productType domain.ProductType, status domain.ProductStatus, stageErr *domain.StageError) error {
	now := time.Now().UTC()
	errType, errMsg := "", ""
	if stageErr != nil {
		errType, errMsg = stageErr.Class, stageErr.Message
	}

	var generatedAt *time.Time
	if status == domain.ProductCompleted {
		generatedAt = &now
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE products SET status = $3, error_type = $4, error_message = $5, generated_at = COALESCE($6, generated_at), updated_at = $7
		WHERE volume_id = $1 AND product_type = $2
	`, id.String(), string(productType), string(status), errType, errMsg, generatedAt, now)
	if err != nil {
		return fmt.Errorf("store: mark_product_status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("store: mark_product_status: product %s/%s not found", id, productType)
	}
	return nil
}

func (s *PostgresStore) ResetStuck(ctx context.Context, entity Entity, olderThan time.Time) (int64, error) {
	table := string(entity)
	if table != string(EntityVolume) && table != string(EntityProduct) {
		return 0, fmt.Errorf("store: reset_stuck: unknown entity %q", entity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin reset_stuck: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.acquireRetentionSweepLock(ctx, tx); err != nil {
		return 0, err
	}

	ct, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`, table), olderThan)
	if err != nil {
		return 0, fmt.Errorf("store: reset_stuck(%s): %w", entity, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit reset_stuck(%s): %w", entity, err)
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE status = 'completed'),
			(SELECT COUNT(*) FROM partial_downloads),
			(SELECT COUNT(*) FROM volumes WHERE status = 'pending'),
			(SELECT COUNT(*) FROM volumes WHERE status = 'processing'),
			(SELECT COUNT(*) FROM volumes WHERE status = 'completed'),
			(SELECT COUNT(*) FROM volumes WHERE status = 'failed'),
			(SELECT COUNT(*) FROM products WHERE status = 'pending'),
			(SELECT COUNT(*) FROM products WHERE status = 'processing'),
			(SELECT COUNT(*) FROM products WHERE status = 'completed'),
			(SELECT COUNT(*) FROM products WHERE status = 'failed')
	`).Scan(
		&st.FilesCompleted, &st.PartialDownloads,
		&st.VolumesPending, &st.VolumesProcessing, &st.VolumesCompleted, &st.VolumesFailed,
		&st.ProductsPending, &st.ProductsProcessing, &st.ProductsCompleted, &st.ProductsFailed,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVolume(row rowScanner) (domain.Volume, error) {
	var v domain.Volume
	var volumeID string
	err := row.Scan(
		&volumeID, &v.ID.Radar, &v.ID.VolumeCode, &v.ID.VolumeNumber, &v.ID.Observation,
		&v.ExpectedFields, &v.DownloadedFields, &v.IsComplete, &v.Status,
		&v.OutputPath, &v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.Volume{}, err
	}
	return v, nil
}
