// Package mysql stores the search audit log.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"freshlistings/internal/domain"
)

// row mirrors search_logs. JSON columns travel as strings.
type row struct {
	Query       string         `db:"query"`
	Model       string         `db:"model"`
	Strategy    string         `db:"strategy"`
	Filters     sql.NullString `db:"filters"`
	ResultCount int            `db:"result_count"`
	ListingIDs  string         `db:"listing_ids"`
	TookMs      int64          `db:"took_ms"`
	Reason      string         `db:"reason"`
	CreatedAt   time.Time      `db:"created_at"`
}

func valJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

type Repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) *Repo { return &Repo{db: db} }

// Open connects with the mysql driver and pings. The DSN needs parseTime=true.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect search log db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return New(db), nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) LogSearch(ctx context.Context, e domain.SearchLogEntry) error {
	ids := e.ListingIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err = r.db.NamedExecContext(ctx, insertSearchLogSQL, row{
		Query:       e.Query,
		Model:       e.Model,
		Strategy:    e.Strategy,
		Filters:     valJSON(e.Filters),
		ResultCount: e.ResultCount,
		ListingIDs:  string(idsJSON),
		TookMs:      e.TookMs,
		Reason:      e.Reason,
		CreatedAt:   e.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, recentSearchLogsSQL, limit); err != nil {
		return nil, fmt.Errorf("read search logs: %w", err)
	}
	out := make([]domain.SearchLogEntry, 0, len(rows))
	for _, x := range rows {
		e := domain.SearchLogEntry{
			Query:       x.Query,
			Model:       x.Model,
			Strategy:    x.Strategy,
			ResultCount: x.ResultCount,
			TookMs:      x.TookMs,
			Reason:      x.Reason,
			CreatedAt:   x.CreatedAt,
		}
		if x.Filters.Valid {
			e.Filters = []byte(x.Filters.String)
		}
		if err := json.Unmarshal([]byte(x.ListingIDs), &e.ListingIDs); err != nil {
			return nil, fmt.Errorf("decode listing ids: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
