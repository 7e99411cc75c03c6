// Package history keeps validated transfers in SQLite for later lookup.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/transferguard/internal/safety"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("history: record not found")

// Record is one stored validation.
type Record struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Amount      uint64        `json:"amount,string"`
	Decimals    uint8         `json:"decimals"`
	Fingerprint string        `json:"fingerprint"`
	Decision    string        `json:"decision"`
	PolicyHash  string        `json:"policy_hash"`
	Report      safety.Report `json:"report"`
}

// Query selects records. Zero fields match everything.
type Query struct {
	Address  string
	Decision string
	Since    time.Time
	Limit    int
}

// Stats counts records per decision.
type Stats struct {
	Total   int `json:"total"`
	Approve int `json:"approve"`
	Confirm int `json:"confirm"`
	Block   int `json:"block"`
}

// Store persists records.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and creates the schema.
// If path is ":memory:", uses an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: SQLite has a single writer, and an in-memory
	// database or a per-connection pragma would not survive a second one
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			amount TEXT NOT NULL,
			decimals INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			decision TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			policy_hash TEXT NOT NULL DEFAULT '',
			report TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_created_at ON transfers(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_addr)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(to_addr)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_fingerprint ON transfers(fingerprint)`,
	}
	for i, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a record. CreatedAt defaults to now.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("history: record id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	report, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	// amount is stored as text: SQLite integers are signed 64-bit.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transfers
		(id, created_at, from_addr, to_addr, amount, decimals, fingerprint,
		 decision, risk_level, policy_hash, report)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.CreatedAt.UTC().Format(timeLayout), rec.From, rec.To,
		fmt.Sprintf("%d", rec.Amount), rec.Decimals, rec.Fingerprint,
		rec.Decision, rec.Report.RiskLevel.String(), rec.PolicyHash, string(report),
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// Get loads one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	var where []string
	var args []any
	if q.Address != "" {
		where = append(where, "(from_addr = ? OR to_addr = ?)")
		args = append(args, q.Address, q.Address)
	}
	if q.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, q.Decision)
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC().Format(timeLayout))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Stats counts all records per decision.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT decision, COUNT(*) FROM transfers GROUP BY decision`)
	if err != nil {
		return Stats{}, fmt.Errorf("count transfers: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			return Stats{}, err
		}
		st.Total += n
		switch safety.Decision(decision) {
		case safety.Approve:
			st.Approve = n
		case safety.Confirm:
			st.Confirm = n
		case safety.Block:
			st.Block = n
		}
	}
	return st, rows.Err()
}

const selectColumns = `SELECT id, created_at, from_addr, to_addr, amount, decimals,
	fingerprint, decision, policy_hash, report FROM transfers`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec       Record
		createdAt string
		amount    string
		report    string
	)
	if err := sc.Scan(&rec.ID, &createdAt, &rec.From, &rec.To, &amount, &rec.Decimals,
		&rec.Fingerprint, &rec.Decision, &rec.PolicyHash, &report); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t

	if _, err := fmt.Sscan(amount, &rec.Amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if err := json.Unmarshal([]byte(report), &rec.Report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rec, nil
}
