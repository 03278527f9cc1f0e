package inspection

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS inspection_results (
	id           TEXT PRIMARY KEY,
	panel_serial TEXT NOT NULL,
	gate         INTEGER NOT NULL,
	result       TEXT NOT NULL,
	person_id    TEXT NOT NULL DEFAULT '',
	inspected_at INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inspection_time ON inspection_results(inspected_at);
CREATE INDEX IF NOT EXISTS idx_inspection_panel_gate ON inspection_results(panel_serial, gate);
`

// Store keeps inspection rows in the line's SQLite log. Timestamps are stored
// as Unix milliseconds so range predicates compare numerically.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open SQLite handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the inspection tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Insert writes one row, assigning an id when absent.
func (s *Store) Insert(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inspection_results (id, panel_serial, gate, result, person_id, inspected_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.PanelSerial, int(e.Gate), string(e.Result), e.InspectorID, e.InspectedAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// Between returns rows inspected in [from, to], oldest first and in insertion
// order on ties. A zero gate selects every gate.
func (s *Store) Between(ctx context.Context, from, to time.Time, gate Gate) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, panel_serial, gate, result, person_id, inspected_at
		FROM inspection_results
		WHERE inspected_at BETWEEN ? AND ? AND (? = 0 OR gate = ?)
		ORDER BY inspected_at, rowid
	`, from.UnixMilli(), to.UnixMilli(), int(gate), int(gate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			gateNo int
			result string
			millis int64
		)
		if err := rows.Scan(&e.ID, &e.PanelSerial, &gateNo, &result, &e.InspectorID, &millis); err != nil {
			return nil, err
		}
		e.Gate = Gate(gateNo)
		e.GateName = e.Gate.Name()
		e.Result = Result(result)
		e.InspectedAt = time.UnixMilli(millis).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
