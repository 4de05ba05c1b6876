// Package audit provides an append-only SQLite-backed log of mint/burn/
// redeem events, persisted independently of the primary JSON-document
// store so a store rollback never erases a record that a mutation was
// attempted.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/pkg/logging"
)

// Log is an append-only audit trail.
type Log struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logging.Logger
}

// Config holds audit log configuration.
type Config struct {
	DataDir string
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	ticker       TEXT NOT NULL,
	wallet       TEXT NOT NULL,
	amount       REAL NOT NULL,
	reference_id TEXT,
	txid         TEXT,
	timestamp    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_ticker ON audit_events(ticker);
CREATE INDEX IF NOT EXISTS idx_audit_wallet ON audit_events(wallet);
CREATE INDEX IF NOT EXISTS idx_audit_reference ON audit_events(reference_id);
`

// New opens (creating if absent) the audit database under cfg.DataDir.
func New(cfg *Config) (*Log, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "audit.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}

	return &Log{db: db, log: logging.GetDefault().Component("audit")}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error { return l.db.Close() }

// Append records one audit event. A write failure is logged here (at
// error severity, with the full event so it isn't lost) rather than
// returned as fatal: the audit trail is a secondary record and must never
// block a mint/burn/redeem operation that already succeeded against the
// primary store — but it must never vanish silently either.
func (l *Log) Append(ev model.AuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.Exec(
		`INSERT INTO audit_events (id, kind, ticker, wallet, amount, reference_id, txid, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Ticker, ev.Wallet, ev.Amount, ev.ReferenceID, ev.TxID, ev.Timestamp.Unix(),
	); err != nil {
		l.log.Error("audit append failed", "id", ev.ID, "kind", ev.Kind, "ticker", ev.Ticker, "wallet", ev.Wallet,
			"amount", ev.Amount, "reference_id", ev.ReferenceID, "txid", ev.TxID, "timestamp", ev.Timestamp, "error", err)
	}
}

// ForWallet returns every recorded event for wallet, most recent first,
// used by operators investigating a discrepancy between the store and the
// chain.
func (l *Log) ForWallet(wallet string) ([]model.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(
		`SELECT id, kind, ticker, wallet, amount, reference_id, txid, timestamp
		 FROM audit_events WHERE wallet = ? ORDER BY timestamp DESC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("audit: query wallet events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var kind string
		var ts int64
		if err := rows.Scan(&ev.ID, &kind, &ev.Ticker, &ev.Wallet, &ev.Amount, &ev.ReferenceID, &ev.TxID, &ts); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		ev.Timestamp = time.Unix(ts, 0).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
