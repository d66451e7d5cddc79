// Package storage provides SQLite-backed persistence for reconciled
// market snapshots and their merged price series.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/price"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db           *sql.DB
	maxSnapshots int
}

// SnapshotInfo summarizes one stored snapshot.
type SnapshotInfo struct {
	ID       string
	MarketID string
	Question string
	Points   int
	TakenAt  time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/polyrecon/data.db.
func New(maxSnapshots int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "polyrecon", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxSnapshots: maxSnapshots}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id          TEXT PRIMARY KEY,
			market_id   TEXT NOT NULL,
			question    TEXT,
			event_id    TEXT,
			event_title TEXT,
			token_yes   TEXT,
			token_no    TEXT,
			active      INTEGER NOT NULL,
			closed      INTEGER NOT NULL,
			end_date    INTEGER,
			bid_yes     INTEGER,
			ask_yes     INTEGER,
			bid_no      INTEGER,
			ask_no      INTEGER,
			taken_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS series_points (
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			ts          INTEGER NOT NULL,
			yes_price   INTEGER NOT NULL,
			source      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_market ON snapshots(market_id, taken_at)`,
		`CREATE INDEX IF NOT EXISTS idx_points_snapshot ON series_points(snapshot_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores a market state together with its merged series
// and returns the snapshot id. Old snapshots beyond the configured
// cap are rotated out, oldest first.
func (s *Storage) SaveSnapshot(state *models.MarketState, series []models.SeriesPoint) (string, error) {
	if err := state.Validate(); err != nil {
		return "", fmt.Errorf("invalid market state: %w", err)
	}

	id := uuid.NewString()
	takenAt := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO snapshots
			(id, market_id, question, event_id, event_title, token_yes, token_no,
			 active, closed, end_date, bid_yes, ask_yes, bid_no, ask_no, taken_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, state.MarketID, state.Question, state.EventID, state.EventTitle,
		state.TokenYes, state.TokenNo,
		boolToInt(state.Active), boolToInt(state.Closed), timeToNull(state.EndDate),
		priceToNull(state.BidYes), priceToNull(state.AskYes),
		priceToNull(state.BidNo), priceToNull(state.AskNo),
		takenAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	for _, p := range series {
		if _, err := tx.Exec(`
			INSERT INTO series_points (snapshot_id, ts, yes_price, source)
			VALUES (?,?,?,?)`,
			id, p.Timestamp.Unix(), int64(p.YesPrice), p.Source.String(),
		); err != nil {
			return "", fmt.Errorf("failed to insert series point: %w", err)
		}
	}

	if _, err := tx.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC LIMIT ?
		)`, s.maxSnapshots); err != nil {
		return "", fmt.Errorf("failed to enforce snapshot cap: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot loads a stored snapshot and its series by id.
func (s *Storage) GetSnapshot(id string) (*models.MarketState, []models.SeriesPoint, error) {
	row := s.db.QueryRow(`
		SELECT market_id, question, event_id, event_title, token_yes, token_no,
		       active, closed, end_date, bid_yes, ask_yes, bid_no, ask_no, taken_at
		FROM snapshots WHERE id = ?`, id)

	var state models.MarketState
	var active, closed int
	var endDate, bidYes, askYes, bidNo, askNo sql.NullInt64
	var takenAtNano int64

	err := row.Scan(
		&state.MarketID, &state.Question, &state.EventID, &state.EventTitle,
		&state.TokenYes, &state.TokenNo,
		&active, &closed, &endDate,
		&bidYes, &askYes, &bidNo, &askNo,
		&takenAtNano,
	)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("snapshot not found: %s", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	state.Active = active != 0
	state.Closed = closed != 0
	state.EndDate = nullToTime(endDate)
	state.BidYes = nullToPrice(bidYes)
	state.AskYes = nullToPrice(askYes)
	state.BidNo = nullToPrice(bidNo)
	state.AskNo = nullToPrice(askNo)
	state.LastUpdated = time.Unix(0, takenAtNano)

	rows, err := s.db.Query(`
		SELECT ts, yes_price, source FROM series_points
		WHERE snapshot_id = ? ORDER BY ts ASC, rowid ASC`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query series points: %w", err)
	}
	defer rows.Close()

	var series []models.SeriesPoint
	for rows.Next() {
		var ts, yesPrice int64
		var source string
		if err := rows.Scan(&ts, &yesPrice, &source); err != nil {
			return nil, nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		leg := models.LegYes
		if source == models.LegNo.String() {
			leg = models.LegNo
		}
		series = append(series, models.SeriesPoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			YesPrice:  price.Price(yesPrice),
			Source:    leg,
		})
	}
	return &state, series, rows.Err()
}

// ListSnapshots returns stored snapshots for a market, newest first.
// An empty marketID lists snapshots across all markets.
func (s *Storage) ListSnapshots(marketID string, limit int) ([]SnapshotInfo, error) {
	query := `
		SELECT s.id, s.market_id, s.question, s.taken_at, COUNT(p.snapshot_id)
		FROM snapshots s LEFT JOIN series_points p ON p.snapshot_id = s.id
		WHERE (? = '' OR s.market_id = ?)
		GROUP BY s.id ORDER BY s.taken_at DESC LIMIT ?`

	rows, err := s.db.Query(query, marketID, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var takenAtNano int64
		if err := rows.Scan(&info.ID, &info.MarketID, &info.Question, &takenAtNano, &info.Points); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.TakenAt = time.Unix(0, takenAtNano)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func priceToNull(p *price.Price) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullToPrice(n sql.NullInt64) *price.Price {
	if !n.Valid {
		return nil
	}
	p := price.Price(n.Int64)
	return &p
}

func timeToNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullToTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}
