// Package archive persists probabilistic state histories and the
// entanglement topology in SQLite so runs can be inspected offline. It
// layers on top of the in-memory store; the store itself never touches
// the database.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/probabilistic-state/internal/state"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS states (
	state_id    TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	state_id      TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	vector_json   TEXT NOT NULL,
	trigger_type  TEXT,
	collapsed_to  TEXT,
	created_at    TEXT NOT NULL,
	UNIQUE(state_id, seq),
	FOREIGN KEY (state_id) REFERENCES states(state_id)
);

CREATE TABLE IF NOT EXISTS edges (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id    TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	correlation  REAL NOT NULL,
	edge_type    TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE(source_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_state ON snapshots(state_id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
`

// #endregion schema

// #region types

// StateInfo summarizes one archived state.
type StateInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Snapshots int
}

// Edge is an archived entanglement edge.
type Edge struct {
	SourceID    string
	TargetID    string
	Correlation float64
	Type        string
}

// #endregion types

// #region archiver

// Archiver manages the archive database.
type Archiver struct {
	db *sql.DB
}

// NewArchiver opens a SQLite database and runs migrations.
func NewArchiver(dbPath string) (*Archiver, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Archiver{db: db}, nil
}

// NewArchiverWithDB wraps an existing connection. The caller is
// responsible for the schema. Used by tests.
func NewArchiverWithDB(db *sql.DB) *Archiver {
	return &Archiver{db: db}
}

// Close closes the underlying database connection.
func (a *Archiver) Close() error {
	return a.db.Close()
}

// #endregion archiver

// #region archive-state

// ArchiveState writes the state row, any history snapshots not yet
// archived, and the state's entanglement edges in one transaction.
// Calling it again after further mutations appends only the new
// snapshots, so it can be used write-through after every operation or
// once at the end of a run.
func (a *Archiver) ArchiveState(st *state.ProbabilisticState) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO states (state_id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(state_id) DO NOTHING`,
		st.ID, st.Name, st.Metadata.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRow(
		`SELECT MAX(seq) FROM snapshots WHERE state_id = ?`, st.ID,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("max seq: %w", err)
	}
	next := 0
	if maxSeq.Valid {
		next = int(maxSeq.Int64) + 1
	}

	for i := next; i < len(st.History); i++ {
		snap := st.History[i]
		vecJSON, err := json.Marshal(snap.Vector)
		if err != nil {
			return fmt.Errorf("marshal vector: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO snapshots (state_id, seq, vector_json, trigger_type, collapsed_to, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			st.ID, i, string(vecJSON),
			nullIfEmpty(snap.Trigger), nullIfEmpty(snap.CollapsedTo),
			snap.Timestamp.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %d: %w", i, err)
		}
	}

	for _, e := range st.Entanglements {
		_, err = tx.Exec(
			`INSERT INTO edges (source_id, target_id, correlation, edge_type, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(source_id, target_id) DO UPDATE SET
			   correlation = excluded.correlation,
			   edge_type = excluded.edge_type`,
			st.ID, e.TargetStateID, e.Correlation, string(e.Type),
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", st.ID, e.TargetStateID, err)
		}
	}

	return tx.Commit()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion archive-state

// #region history

// History returns the archived snapshots of a state in sequence order.
func (a *Archiver) History(stateID string) ([]state.Snapshot, error) {
	rows, err := a.db.Query(
		`SELECT vector_json, trigger_type, collapsed_to, created_at
		 FROM snapshots WHERE state_id = ? ORDER BY seq ASC`, stateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", stateID, err)
	}
	defer rows.Close()

	var history []state.Snapshot
	for rows.Next() {
		var vecJSON, createdStr string
		var trigger, collapsedTo sql.NullString

		if err := rows.Scan(&vecJSON, &trigger, &collapsedTo, &createdStr); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		var snap state.Snapshot
		if err := json.Unmarshal([]byte(vecJSON), &snap.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal vector: %w", err)
		}
		snap.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		if trigger.Valid {
			snap.Trigger = trigger.String
		}
		if collapsedTo.Valid {
			snap.CollapsedTo = collapsedTo.String
		}
		history = append(history, snap)
	}
	return history, rows.Err()
}

// #endregion history

// #region edges

// Edges returns the archived edges originating from a state.
func (a *Archiver) Edges(stateID string) ([]Edge, error) {
	rows, err := a.db.Query(
		`SELECT source_id, target_id, correlation, edge_type
		 FROM edges WHERE source_id = ? ORDER BY id ASC`, stateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query edges %s: %w", stateID, err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Correlation, &e.Type); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// #endregion edges

// #region list

// ListStates returns all archived states with their snapshot counts,
// most recently created first.
func (a *Archiver) ListStates() ([]StateInfo, error) {
	rows, err := a.db.Query(
		`SELECT s.state_id, s.name, s.created_at, COUNT(sn.id)
		 FROM states s LEFT JOIN snapshots sn ON sn.state_id = s.state_id
		 GROUP BY s.state_id ORDER BY s.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var infos []StateInfo
	for rows.Next() {
		var info StateInfo
		var createdStr string
		if err := rows.Scan(&info.ID, &info.Name, &createdStr, &info.Snapshots); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// #endregion list
