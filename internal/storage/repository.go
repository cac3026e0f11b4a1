// Package storage keeps dashboard sessions in SQLite. Nothing outlives its
// session: rows are removed on Delete and by the idle sweep.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spendalyzer/internal/budget"
	"spendalyzer/internal/core"
	"spendalyzer/internal/log"
	"spendalyzer/internal/session"

	_ "modernc.org/sqlite"
)

// SessionRepository implements session.Store on SQLite.
type SessionRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ session.Store = (*SessionRepository)(nil)

func NewSessionRepository(dbPath string, logger *log.Logger) (*SessionRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("SQLite session store ready",
		log.FieldPath, dbPath,
		log.FieldVersion, version)

	return &SessionRepository{db: db, logger: logger}, nil
}

func (r *SessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get loads a session with its rules and transactions.
func (r *SessionRepository) Get(ctx context.Context, id string) (session.Session, error) {
	var (
		s                  session.Session
		columns, period    string
		created, updated   int64
		overallBudgetCents int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source, columns, dropped, ledger_revision, overall_budget_cents, period, created_at, updated_at
		FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.Source, &columns, &s.Ledger.Dropped, &s.Revision, &overallBudgetCents, &period, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}

	s.OverallBudget = core.Money{Cents: overallBudgetCents}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.UpdatedAt = time.Unix(0, updated).UTC()
	if period != "" {
		p, err := core.ParsePeriod(period)
		if err != nil {
			return session.Session{}, fmt.Errorf("session %s: %w", id, err)
		}
		s.Period = p
	}
	if err := json.Unmarshal([]byte(columns), &s.Ledger.Columns); err != nil {
		return session.Session{}, fmt.Errorf("decode columns: %w", err)
	}

	if s.Rules, err = r.rules(ctx, id); err != nil {
		return session.Session{}, err
	}
	if s.Ledger.Transactions, err = r.transactions(ctx, id); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (r *SessionRepository) rules(ctx context.Context, id string) ([]budget.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, keywords, budget_cents FROM session_rules
		WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules := []budget.Rule{}
	for rows.Next() {
		var rule budget.Rule
		if err := rows.Scan(&rule.Category, &rule.Keywords, &rule.Budget.Cents); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *SessionRepository) transactions(ctx context.Context, id string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, amount_cents, description, extras FROM session_transactions
		WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx           core.Transaction
			date, extras string
		)
		if err := rows.Scan(&date, &tx.Amount.Cents, &tx.Description, &extras); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		tx.Date = core.DateOf(t)
		if extras != "" {
			if err := json.Unmarshal([]byte(extras), &tx.Extras); err != nil {
				return nil, fmt.Errorf("decode extras: %w", err)
			}
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Save upserts the session. Transactions are rewritten only when the
// ledger revision changed since the last save.
func (r *SessionRepository) Save(ctx context.Context, s session.Session) error {
	columns, err := json.Marshal(s.Ledger.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	period := ""
	if !s.Period.IsZero() {
		period = s.Period.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var storedRevision int64 = -1
	err = tx.QueryRowContext(ctx, `SELECT ledger_revision FROM sessions WHERE id = ?`, s.ID).Scan(&storedRevision)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read ledger revision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, source, columns, dropped, ledger_revision, overall_budget_cents, period, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			columns = excluded.columns,
			dropped = excluded.dropped,
			ledger_revision = excluded.ledger_revision,
			overall_budget_cents = excluded.overall_budget_cents,
			period = excluded.period,
			updated_at = excluded.updated_at`,
		s.ID, s.Source, string(columns), s.Ledger.Dropped, s.Revision, s.OverallBudget.Cents, period,
		s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_rules WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for i, rule := range s.Rules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_rules (session_id, position, category, keywords, budget_cents)
			VALUES (?, ?, ?, ?, ?)`, s.ID, i, rule.Category, rule.Keywords, rule.Budget.Cents); err != nil {
			return fmt.Errorf("insert rule %d: %w", i, err)
		}
	}

	if storedRevision != s.Revision {
		if err := writeTransactions(ctx, tx, s.ID, s.Ledger.Transactions); err != nil {
			return err
		}
		r.logger.DebugContext(ctx, "Ledger stored",
			log.FieldSessionID, s.ID,
			log.FieldRows, len(s.Ledger.Transactions))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func writeTransactions(ctx context.Context, tx *sql.Tx, id string, txs []core.Transaction) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_transactions WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_transactions (session_id, position, date, amount_cents, description, extras)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		extras := ""
		if len(t.Extras) > 0 {
			b, err := json.Marshal(t.Extras)
			if err != nil {
				return fmt.Errorf("encode extras: %w", err)
			}
			extras = string(b)
		}
		if _, err := stmt.ExecContext(ctx, id, i, t.Date.String(), t.Amount.Cents, t.Description, extras); err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteSessions(ctx, tx, `session_id = ?`, `id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Sweep removes every session idle since before the cutoff.
func (r *SessionRepository) Sweep(ctx context.Context, before time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := before.UnixNano()
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	orphans := `session_id NOT IN (SELECT id FROM sessions)`
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_rules WHERE `+orphans); err != nil {
		return 0, fmt.Errorf("sweep rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_transactions WHERE `+orphans); err != nil {
		return 0, fmt.Errorf("sweep transactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sweep: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func deleteSessions(ctx context.Context, tx *sql.Tx, childWhere, parentWhere string, args ...any) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_transactions WHERE `+childWhere, args...); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_rules WHERE `+childWhere, args...); err != nil {
		return fmt.Errorf("delete rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE `+parentWhere, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
