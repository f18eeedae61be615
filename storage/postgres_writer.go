package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"oos-analytics/models"
)

const batchSize = 500

// PostgresWriter mirrors the report views into PostgreSQL tables.
type PostgresWriter struct {
	db    *sql.DB
	runID string
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter. Every row it writes is tagged
// with runID.
func NewPostgresWriter(dsn, runID string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: runID}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_events (
			page         VARCHAR(8)  NOT NULL,
			date         DATE        NOT NULL,
			event_label  TEXT        NOT NULL,
			event_action TEXT        NOT NULL,
			total_events BIGINT      NOT NULL,
			run_id       UUID        NOT NULL,
			loaded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (page, date, event_label, event_action)
		);

		CREATE TABLE IF NOT EXISTS hourly_events (
			id           BIGSERIAL PRIMARY KEY,
			event_action TEXT        NOT NULL,
			event_label  TEXT        NOT NULL,
			date         DATE        NOT NULL,
			hour         SMALLINT    NOT NULL,
			page         VARCHAR(8)  NOT NULL,
			total_events BIGINT      NOT NULL,
			run_id       UUID        NOT NULL,
			loaded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_hourly_events_date ON hourly_events(date);
		CREATE INDEX IF NOT EXISTS idx_daily_events_date  ON daily_events(date);
	`)
	return err
}

// WriteDaily replaces every daily row of the dates present in rows, so a
// re-run leaves exactly the keys of the latest pull.
func (pw *PostgresWriter) WriteDaily(rows []models.DailyEvent) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyReport
	}
	dates := make([]string, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
	}

	err := pw.replace("daily_events", dates, len(rows), 6,
		`INSERT INTO daily_events (page, date, event_label, event_action, total_events, run_id) VALUES `,
		func(i int) []any {
			r := rows[i]
			return []any{r.Page, r.Date, r.EventLabel, r.EventAction, r.TotalEvents, pw.runID}
		})
	if err != nil {
		return "", err
	}
	return "postgres:daily_events", nil
}

// WriteHourly replaces every hourly row of the dates present in rows.
func (pw *PostgresWriter) WriteHourly(rows []models.FlatRecord) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyReport
	}
	dates := make([]string, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
	}

	err := pw.replace("hourly_events", dates, len(rows), 7,
		`INSERT INTO hourly_events (event_action, event_label, date, hour, page, total_events, run_id) VALUES `,
		func(i int) []any {
			r := rows[i]
			return []any{r.EventAction, r.EventLabel, r.Date, r.Hour, r.Page, r.TotalEvents, pw.runID}
		})
	if err != nil {
		return "", err
	}
	return "postgres:hourly_events", nil
}

// replace deletes the given dates from table and inserts n rows in batches,
// all in one transaction. args returns the width column values of row i.
func (pw *PostgresWriter) replace(table string, dates []string, n, width int, insert string, args func(i int) []any) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w: %w", models.ErrFileWrite, err)
	}
	defer tx.Rollback()

	seen := make(map[string]struct{})
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE date = $1`, d); err != nil {
			return fmt.Errorf("postgres: clear %s %s: %w: %w", table, d, models.ErrFileWrite, err)
		}
	}

	for i := 0; i < n; i += batchSize {
		end := min(i+batchSize, n)
		values := make([]any, 0, (end-i)*width)
		for j := i; j < end; j++ {
			values = append(values, args(j)...)
		}
		if _, err := tx.Exec(insert+placeholders(end-i, width), values...); err != nil {
			return fmt.Errorf("postgres: insert %s batch: %w: %w", table, models.ErrFileWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit %s: %w: %w", table, models.ErrFileWrite, err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// placeholders renders n value groups of width columns: ($1,$2),($3,$4)...
func placeholders(n, width int) string {
	groups := make([]string, n)
	cols := make([]string, width)
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			cols[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		groups[i] = "(" + strings.Join(cols, ",") + ")"
	}
	return strings.Join(groups, ",")
}
