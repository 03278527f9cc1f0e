package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// undefinedTable is the PostgreSQL SQLSTATE for a missing relation.
const undefinedTable = "42P01"

const punchColumns = `id, employee_code, device_id, punched_at, status, created_at`

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	device_id  TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	subject    TEXT NOT NULL,
	token      TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance_punches (
	id            UUID PRIMARY KEY,
	employee_code TEXT NOT NULL,
	device_id     TEXT NOT NULL,
	punched_at    TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_punches_employee_time ON attendance_punches (employee_code, punched_at);
CREATE INDEX IF NOT EXISTS idx_punches_time ON attendance_punches (punched_at);
`

// Repository persists punches, devices and refresh tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables the repository reads and writes.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// UpsertDevice ensures a device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// DeviceExists reports whether the device was registered.
func (r *Repository) DeviceExists(ctx context.Context, deviceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM devices WHERE device_id = $1)`, deviceID).Scan(&exists)
	return exists, err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (subject, token, expires_at)
		VALUES ($1, $2, $3)
	`, subject, token, expiresAt)
	return err
}

// RefreshTokenActive reports whether a token is stored, unrevoked and unexpired.
func (r *Repository) RefreshTokenActive(ctx context.Context, token string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refresh_tokens
			WHERE token = $1 AND NOT revoked AND expires_at > NOW()
		)
	`, token).Scan(&active)
	return active, err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// RecentPunch returns the latest punch of employee on device at or after since.
func (r *Repository) RecentPunch(ctx context.Context, employeeCode, deviceID string, since time.Time) (*Punch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+punchColumns+`
		FROM attendance_punches
		WHERE employee_code = $1 AND device_id = $2 AND punched_at >= $3
		ORDER BY punched_at DESC
		LIMIT 1
	`, employeeCode, deviceID, since)
	p, err := scanPunch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &p, nil
}

// InsertPunch writes a new punch, assigning an id when absent.
func (r *Repository) InsertPunch(ctx context.Context, p Punch) (Punch, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PunchPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_punches (id, employee_code, device_id, punched_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, p.ID, p.EmployeeCode, p.DeviceID, p.At, p.Status)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return Punch{}, mapError(err)
	}
	return p, nil
}

// GetPunch returns a single punch by id.
func (r *Repository) GetPunch(ctx context.Context, id string) (Punch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+punchColumns+` FROM attendance_punches WHERE id = $1`, id)
	p, err := scanPunch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Punch{}, ErrPunchNotFound
		}
		return Punch{}, mapError(err)
	}
	return p, nil
}

// UpdatePunchStatus records the outcome of punch processing.
func (r *Repository) UpdatePunchStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_punches SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPunchNotFound
	}
	return nil
}

// PunchesBetween returns the employee's non-rejected punches in [from, to].
func (r *Repository) PunchesBetween(ctx context.Context, employeeCode string, from, to time.Time) ([]Punch, error) {
	return r.queryPunches(ctx, `
		SELECT `+punchColumns+`
		FROM attendance_punches
		WHERE employee_code = $1 AND punched_at BETWEEN $2 AND $3 AND status <> $4
		ORDER BY punched_at
	`, employeeCode, from, to, PunchRejected)
}

// PunchesOn returns every employee's non-rejected punches in [from, to].
func (r *Repository) PunchesOn(ctx context.Context, from, to time.Time) ([]Punch, error) {
	return r.queryPunches(ctx, `
		SELECT `+punchColumns+`
		FROM attendance_punches
		WHERE punched_at BETWEEN $1 AND $2 AND status <> $3
		ORDER BY employee_code, punched_at
	`, from, to, PunchRejected)
}

func (r *Repository) queryPunches(ctx context.Context, query string, args ...any) ([]Punch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var res []Punch
	for rows.Next() {
		p, err := scanPunch(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, mapError(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPunch(s scanner) (Punch, error) {
	var p Punch
	err := s.Scan(&p.ID, &p.EmployeeCode, &p.DeviceID, &p.At, &p.Status, &p.CreatedAt)
	return p, err
}

// mapError translates driver errors the service distinguishes.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", ErrPeriodTableMissing, pgErr.Message)
	}
	return err
}
