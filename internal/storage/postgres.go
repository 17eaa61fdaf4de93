package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/types"
)

type PostgresInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(info PostgresInfo) (*Postgres, error) {
	db, err := sql.Open("postgres", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		info.Host, info.Port, info.User, info.Password, info.Database,
	))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.migrate(pgMigration); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Registry() Registry {
	return Registry{
		Sources:  &PostgresSourceRepository{db: p.db},
		Moments:  &PostgresMomentRepository{db: p.db},
		Clips:    &PostgresClipRepository{db: p.db},
		Accounts: &PostgresAccountRepository{db: p.db},
		Jobs:     &PostgresJobRepository{db: p.db},
	}
}

func (p *Postgres) Close() error { return p.db.Close() }

// Enums are stored as plain strings for portability. Statuses index the hot
// selector queries (FindByStatus, Due).
var pgMigration = []string{
	`CREATE TABLE sources (
id BIGSERIAL PRIMARY KEY,
url TEXT NOT NULL DEFAULT '',
file_path TEXT NOT NULL DEFAULT '',
title TEXT NOT NULL DEFAULT '',
duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
transcript TEXT,
status VARCHAR(32) NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX idx_sources_status ON sources (status)`,
	`CREATE TABLE clip_moments (
id BIGSERIAL PRIMARY KEY,
source_id BIGINT NOT NULL REFERENCES sources(id),
start_sec DOUBLE PRECISION NOT NULL,
end_sec DOUBLE PRECISION NOT NULL,
viral_score INTEGER NOT NULL,
hook_text TEXT NOT NULL DEFAULT '',
caption_text TEXT NOT NULL DEFAULT '',
reasoning TEXT NOT NULL DEFAULT '',
status VARCHAR(32) NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX idx_moments_source_status ON clip_moments (source_id, status)`,
	`CREATE TABLE generated_clips (
id BIGSERIAL PRIMARY KEY,
moment_id BIGINT NOT NULL REFERENCES clip_moments(id),
file_path TEXT NOT NULL,
duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
resolution VARCHAR(20) NOT NULL DEFAULT '1080x1920',
caption_style VARCHAR(64) NOT NULL DEFAULT '',
hook_style VARCHAR(64) NOT NULL DEFAULT '',
variation INTEGER NOT NULL DEFAULT 1,
quality_passed BOOLEAN NOT NULL DEFAULT false,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE accounts (
id BIGSERIAL PRIMARY KEY,
platform VARCHAR(32) NOT NULL,
username VARCHAR(100) NOT NULL,
creds_sealed TEXT NOT NULL,
session_path TEXT NOT NULL DEFAULT '',
status VARCHAR(32) NOT NULL,
last_posted_at TIMESTAMPTZ,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE post_jobs (
id BIGSERIAL PRIMARY KEY,
clip_id BIGINT NOT NULL REFERENCES generated_clips(id),
account_id BIGINT NOT NULL REFERENCES accounts(id),
scheduled_at TIMESTAMPTZ NOT NULL,
posted_at TIMESTAMPTZ,
platform_post_id TEXT NOT NULL DEFAULT '',
status VARCHAR(32) NOT NULL,
error_message TEXT NOT NULL DEFAULT '',
caption TEXT NOT NULL DEFAULT '',
hashtags TEXT NOT NULL DEFAULT '',
retry_count INTEGER NOT NULL DEFAULT 0,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX idx_jobs_status_scheduled ON post_jobs (status, scheduled_at)`,
}

func (p *Postgres) migrate(wanted []string) error {
	if _, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`); err != nil {
		return err
	}

	rows, err := p.db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}
	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	for _, query := range missing {
		if _, err := p.db.Exec(query); err != nil {
			return err
		}
		if _, err := p.db.Exec(`INSERT INTO migration (query) VALUES ($1)`, query); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return nil, fmt.Errorf("not enough migrations")
	}
	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want != existing[i]:
			return nil, fmt.Errorf("incompatible migration: %v", want)
		}
	}
	return needed, nil
}

type PostgresSourceRepository struct {
	db *sql.DB
}

func (r *PostgresSourceRepository) Create(ctx context.Context, src *model.Source) error {
	transcript, err := marshalTranscript(src.Transcript)
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `
INSERT INTO sources (url, file_path, title, duration_sec, transcript, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`,
		src.URL, src.FilePath, src.Title, src.DurationSec, transcript, src.Status,
	).Scan(&src.ID, &src.CreatedAt)
}

func (r *PostgresSourceRepository) Get(ctx context.Context, id int64) (*model.Source, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, file_path, title, duration_sec, transcript, status, created_at
FROM sources WHERE id = $1`, id)
	return scanSource(row)
}

func (r *PostgresSourceRepository) Update(ctx context.Context, src *model.Source) error {
	transcript, err := marshalTranscript(src.Transcript)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE sources SET url = $1, file_path = $2, title = $3, duration_sec = $4, transcript = $5, status = $6
WHERE id = $7`,
		src.URL, src.FilePath, src.Title, src.DurationSec, transcript, src.Status, src.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresSourceRepository) FindByStatus(ctx context.Context, statuses ...model.SourceStatus) ([]*model.Source, error) {
	args := make([]string, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, file_path, title, duration_sec, transcript, status, created_at
FROM sources WHERE status = ANY($1) ORDER BY id`, pq.Array(args))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*model.Source, error) {
	var (
		src        model.Source
		transcript sql.NullString
	)
	err := row.Scan(&src.ID, &src.URL, &src.FilePath, &src.Title, &src.DurationSec,
		&transcript, &src.Status, &src.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if transcript.Valid && transcript.String != "" {
		var tr types.Transcript
		if err := json.Unmarshal([]byte(transcript.String), &tr); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		src.Transcript = &tr
	}
	return &src, nil
}

func marshalTranscript(tr *types.Transcript) (sql.NullString, error) {
	if tr == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tr)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode transcript: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type PostgresMomentRepository struct {
	db *sql.DB
}

func (r *PostgresMomentRepository) Create(ctx context.Context, m *model.ClipMoment) error {
	return r.db.QueryRowContext(ctx, `
INSERT INTO clip_moments (source_id, start_sec, end_sec, viral_score, hook_text, caption_text, reasoning, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at`,
		m.SourceID, m.StartSec, m.EndSec, m.ViralScore, m.HookText, m.CaptionText, m.Reasoning, m.Status,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *PostgresMomentRepository) Get(ctx context.Context, id int64) (*model.ClipMoment, error) {
	row := r.db.QueryRowContext(ctx, momentSelect+` WHERE id = $1`, id)
	return scanMoment(row)
}

func (r *PostgresMomentRepository) Update(ctx context.Context, m *model.ClipMoment) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE clip_moments SET start_sec = $1, end_sec = $2, viral_score = $3, hook_text = $4,
caption_text = $5, reasoning = $6, status = $7 WHERE id = $8`,
		m.StartSec, m.EndSec, m.ViralScore, m.HookText, m.CaptionText, m.Reasoning, m.Status, m.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresMomentRepository) FindBySource(ctx context.Context, sourceID int64) ([]*model.ClipMoment, error) {
	rows, err := r.db.QueryContext(ctx, momentSelect+` WHERE source_id = $1 ORDER BY viral_score DESC`, sourceID)
	if err != nil {
		return nil, err
	}
	return collectMoments(rows)
}

func (r *PostgresMomentRepository) FindByStatus(ctx context.Context, statuses ...model.MomentStatus) ([]*model.ClipMoment, error) {
	args := make([]string, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	rows, err := r.db.QueryContext(ctx, momentSelect+` WHERE status = ANY($1) ORDER BY id`, pq.Array(args))
	if err != nil {
		return nil, err
	}
	return collectMoments(rows)
}

func (r *PostgresMomentRepository) Stats(ctx context.Context, sourceID int64) (MomentStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT status, COUNT(*) FROM clip_moments WHERE source_id = $1 GROUP BY status`, sourceID)
	if err != nil {
		return MomentStats{}, err
	}
	defer rows.Close()
	var stats MomentStats
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return MomentStats{}, err
		}
		stats.Total += count
		switch model.MomentStatus(status) {
		case model.MomentGenerating:
			stats.Generating = count
		case model.MomentReady:
			stats.Ready = count
		case model.MomentPosted:
			stats.Posted = count
		case model.MomentFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

const momentSelect = `
SELECT id, source_id, start_sec, end_sec, viral_score, hook_text, caption_text, reasoning, status, created_at
FROM clip_moments`

func scanMoment(row rowScanner) (*model.ClipMoment, error) {
	var m model.ClipMoment
	err := row.Scan(&m.ID, &m.SourceID, &m.StartSec, &m.EndSec, &m.ViralScore,
		&m.HookText, &m.CaptionText, &m.Reasoning, &m.Status, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMoments(rows *sql.Rows) ([]*model.ClipMoment, error) {
	defer rows.Close()
	var out []*model.ClipMoment
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type PostgresClipRepository struct {
	db *sql.DB
}

func (r *PostgresClipRepository) Create(ctx context.Context, c *model.GeneratedClip) error {
	return r.db.QueryRowContext(ctx, `
INSERT INTO generated_clips (moment_id, file_path, duration_sec, resolution, caption_style, hook_style, variation, quality_passed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at`,
		c.MomentID, c.FilePath, c.DurationSec, c.Resolution, c.CaptionStyle, c.HookStyle, c.Variation, c.QualityPassed,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *PostgresClipRepository) Get(ctx context.Context, id int64) (*model.GeneratedClip, error) {
	row := r.db.QueryRowContext(ctx, clipSelect+` WHERE id = $1`, id)
	return scanClip(row)
}

func (r *PostgresClipRepository) FindByMoment(ctx context.Context, momentID int64) ([]*model.GeneratedClip, error) {
	rows, err := r.db.QueryContext(ctx, clipSelect+` WHERE moment_id = $1 ORDER BY variation`, momentID)
	if err != nil {
		return nil, err
	}
	return collectClips(rows)
}

func (r *PostgresClipRepository) FindPostable(ctx context.Context, limit int) ([]*model.GeneratedClip, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.moment_id, c.file_path, c.duration_sec, c.resolution, c.caption_style, c.hook_style, c.variation, c.quality_passed, c.created_at
FROM generated_clips c
JOIN clip_moments m ON m.id = c.moment_id
WHERE c.quality_passed AND m.status = $1
ORDER BY m.viral_score DESC, c.id
LIMIT $2`, model.MomentReady, limit)
	if err != nil {
		return nil, err
	}
	return collectClips(rows)
}

const clipSelect = `
SELECT id, moment_id, file_path, duration_sec, resolution, caption_style, hook_style, variation, quality_passed, created_at
FROM generated_clips`

func scanClip(row rowScanner) (*model.GeneratedClip, error) {
	var c model.GeneratedClip
	err := row.Scan(&c.ID, &c.MomentID, &c.FilePath, &c.DurationSec, &c.Resolution,
		&c.CaptionStyle, &c.HookStyle, &c.Variation, &c.QualityPassed, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectClips(rows *sql.Rows) ([]*model.GeneratedClip, error) {
	defer rows.Close()
	var out []*model.GeneratedClip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type PostgresAccountRepository struct {
	db *sql.DB
}

func (r *PostgresAccountRepository) Create(ctx context.Context, a *model.Account) error {
	return r.db.QueryRowContext(ctx, `
INSERT INTO accounts (platform, username, creds_sealed, session_path, status, last_posted_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`,
		a.Platform, a.Username, a.CredsSealed, a.SessionPath, a.Status, a.LastPostedAt,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *PostgresAccountRepository) Get(ctx context.Context, id int64) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx, accountSelect+` WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresAccountRepository) Update(ctx context.Context, a *model.Account) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE accounts SET platform = $1, username = $2, creds_sealed = $3, session_path = $4,
status = $5, last_posted_at = $6 WHERE id = $7`,
		a.Platform, a.Username, a.CredsSealed, a.SessionPath, a.Status, a.LastPostedAt, a.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresAccountRepository) FindActive(ctx context.Context) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx, accountSelect+` WHERE status = $1 ORDER BY id`, model.AccountActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const accountSelect = `
SELECT id, platform, username, creds_sealed, session_path, status, last_posted_at, created_at
FROM accounts`

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a          model.Account
		lastPosted sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Platform, &a.Username, &a.CredsSealed, &a.SessionPath,
		&a.Status, &lastPosted, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastPosted.Valid {
		t := lastPosted.Time
		a.LastPostedAt = &t
	}
	return &a, nil
}

type PostgresJobRepository struct {
	db *sql.DB
}

func (r *PostgresJobRepository) Create(ctx context.Context, j *model.PostJob) error {
	return r.db.QueryRowContext(ctx, `
INSERT INTO post_jobs (clip_id, account_id, scheduled_at, posted_at, platform_post_id, status, error_message, caption, hashtags, retry_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`,
		j.ClipID, j.AccountID, j.ScheduledAt, j.PostedAt, j.PlatformPostID, j.Status,
		j.ErrorMessage, j.Caption, j.Hashtags, j.RetryCount,
	).Scan(&j.ID, &j.CreatedAt)
}

func (r *PostgresJobRepository) Get(ctx context.Context, id int64) (*model.PostJob, error) {
	row := r.db.QueryRowContext(ctx, jobSelect+` WHERE id = $1`, id)
	return scanJob(row)
}

func (r *PostgresJobRepository) Update(ctx context.Context, j *model.PostJob) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE post_jobs SET scheduled_at = $1, posted_at = $2, platform_post_id = $3, status = $4,
error_message = $5, caption = $6, hashtags = $7, retry_count = $8 WHERE id = $9`,
		j.ScheduledAt, j.PostedAt, j.PlatformPostID, j.Status, j.ErrorMessage,
		j.Caption, j.Hashtags, j.RetryCount, j.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresJobRepository) Due(ctx context.Context, now time.Time, limit int) ([]*model.PostJob, error) {
	rows, err := r.db.QueryContext(ctx, jobSelect+`
WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at LIMIT $3`,
		model.PostQueued, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PostJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const jobSelect = `
SELECT id, clip_id, account_id, scheduled_at, posted_at, platform_post_id, status, error_message, caption, hashtags, retry_count, created_at
FROM post_jobs`

func scanJob(row rowScanner) (*model.PostJob, error) {
	var (
		j      model.PostJob
		posted sql.NullTime
	)
	err := row.Scan(&j.ID, &j.ClipID, &j.AccountID, &j.ScheduledAt, &posted, &j.PlatformPostID,
		&j.Status, &j.ErrorMessage, &j.Caption, &j.Hashtags, &j.RetryCount, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if posted.Valid {
		t := posted.Time
		j.PostedAt = &t
	}
	return &j, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
