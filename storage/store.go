package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

// recentScrapes is how many audit rows Stats reports.
const recentScrapes = 10

type dialect struct {
	driver   string
	schema   string
	dateExpr string
	dollar   bool
}

var dialects = map[string]dialect{
	"pgx": {
		driver:   "pgx",
		schema:   postgresSchema,
		dateExpr: "to_char(departure_date, 'YYYY-MM-DD')",
		dollar:   true,
	},
	"sqlite": {
		driver:   "sqlite",
		schema:   sqliteSchema,
		dateExpr: "departure_date",
	},
}

// rebind turns ? placeholders into $n for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store persists calendar prices and the scrape audit log. Postgres (pgx)
// is the production backend; SQLite serves local runs and tests.
type Store struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
	now     func() time.Time
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Store, error) {
	d, ok := dialects[cfg.DBDriver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := sql.Open(d.driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", d.driver, err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	if d.driver == "sqlite" {
		// One connection keeps :memory: databases alive and serialises writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}

	store := &Store{db: db, dialect: d, log: logger, now: time.Now}
	schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
	defer schemaCancel()
	if err := store.ensureSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("database ready", "driver", d.driver)
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Get returns the cached calendar of route when its newest row is at most
// maxAge old. A miss is reported through ok, not through err.
func (s *Store) Get(ctx context.Context, route models.Route, maxAge time.Duration) (models.CachedPrices, bool, error) {
	entries, err := s.Entries(ctx, route)
	if err != nil {
		return models.CachedPrices{}, false, err
	}
	if len(entries) == 0 {
		return models.CachedPrices{}, false, nil
	}

	cached := models.CachedPrices{Prices: make(models.PriceMap, len(entries))}
	for _, e := range entries {
		cached.Prices[e.Date] = e.Price
		if e.ScrapedAt.After(cached.ScrapedAt) {
			cached.ScrapedAt = e.ScrapedAt
		}
	}
	if s.now().Sub(cached.ScrapedAt) > maxAge {
		s.log.Debug("cache stale", "route", route.String(), "scraped_at", cached.ScrapedAt)
		return models.CachedPrices{}, false, nil
	}
	return cached, true, nil
}

// Entries lists every stored day of route in date order.
func (s *Store) Entries(ctx context.Context, route models.Route) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT `+s.dialect.dateExpr+`, price, currency, scraped_at
		FROM calendar_prices
		WHERE origin = ? AND destination = ?
		ORDER BY departure_date`), route.Origin, route.Destination)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", route, err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		e := models.CacheEntry{Origin: route.Origin, Destination: route.Destination}
		if err := rows.Scan(&e.Date, &e.Price, &e.Currency, &e.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices %s: %w", route, err)
	}
	return entries, nil
}

// Save replaces every stored day of route with prices in one transaction
// and returns the number of rows written.
func (s *Store) Save(ctx context.Context, route models.Route, prices models.PriceMap) (total int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.dialect.rebind(`
		DELETE FROM calendar_prices WHERE origin = ? AND destination = ?`),
		route.Origin, route.Destination); err != nil {
		return 0, fmt.Errorf("delete prices %s: %w", route, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(`
		INSERT INTO calendar_prices (origin, destination, departure_date, price, currency, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert statement: %w", err)
	}
	defer stmt.Close()

	scrapedAt := s.now().UTC()
	for _, date := range prices.Dates() {
		if _, err = stmt.ExecContext(ctx,
			route.Origin,
			route.Destination,
			date,
			prices[date],
			models.Currency,
			scrapedAt,
		); err != nil {
			return 0, fmt.Errorf("insert price %s %s: %w", route, date, err)
		}
		total++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	s.log.Debug("prices saved", "route", route.String(), "rows", total)
	return total, nil
}

// LogScrape appends one audit row.
func (s *Store) LogScrape(ctx context.Context, entry models.ScrapeLog) error {
	params := ""
	if len(entry.Params) > 0 {
		b, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("encode scrape params: %w", err)
		}
		params = string(b)
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO scrape_logs (scrape_type, origin, destination, success, results_count,
			error_message, started_at, completed_at, duration_seconds, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ScrapeType,
		entry.Origin,
		entry.Destination,
		entry.Success,
		entry.ResultsCount,
		entry.ErrorMessage,
		entry.StartedAt.UTC(),
		entry.CompletedAt.UTC(),
		entry.DurationSeconds,
		params,
	)
	if err != nil {
		return fmt.Errorf("insert scrape log: %w", err)
	}
	return nil
}

// ClearOlderThan deletes prices scraped and audit rows started more than
// age ago. It returns the number of price rows removed.
func (s *Store) ClearOlderThan(ctx context.Context, age time.Duration) (deleted int64, err error) {
	cutoff := s.now().Add(-age).UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM calendar_prices WHERE scraped_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old prices: %w", err)
	}
	if deleted, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("count deleted prices: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM scrape_logs WHERE started_at < ?`), cutoff); err != nil {
		return 0, fmt.Errorf("delete old scrape logs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	s.log.Info("cache cleared", "older_than", age, "deleted", deleted)
	return deleted, nil
}

// Stats summarises the cache and the latest audit rows.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var stats models.CacheStats

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calendar_prices`).Scan(&stats.TotalEntries); err != nil {
		return stats, fmt.Errorf("count prices: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT origin || '-' || destination) FROM calendar_prices`).Scan(&stats.TotalRoutes); err != nil {
		return stats, fmt.Errorf("count routes: %w", err)
	}

	var err error
	if stats.OldestEntry, err = s.scrapedAtEdge(ctx, "ASC"); err != nil {
		return stats, err
	}
	if stats.NewestEntry, err = s.scrapedAtEdge(ctx, "DESC"); err != nil {
		return stats, err
	}

	if stats.RecentScrapes, err = s.recentLogs(ctx, recentScrapes); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) scrapedAtEdge(ctx context.Context, order string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT scraped_at FROM calendar_prices ORDER BY scraped_at `+order+` LIMIT 1`).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query scraped_at %s: %w", strings.ToLower(order), err)
	}
	return &t, nil
}

func (s *Store) recentLogs(ctx context.Context, limit int) ([]models.ScrapeLog, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, scrape_type, origin, destination, success, results_count,
			error_message, started_at, completed_at, duration_seconds, params
		FROM scrape_logs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query scrape logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ScrapeLog{}
	for rows.Next() {
		var l models.ScrapeLog
		var params string
		if err := rows.Scan(&l.ID, &l.ScrapeType, &l.Origin, &l.Destination, &l.Success, &l.ResultsCount,
			&l.ErrorMessage, &l.StartedAt, &l.CompletedAt, &l.DurationSeconds, &params); err != nil {
			return nil, fmt.Errorf("scan scrape log: %w", err)
		}
		if params != "" {
			if err := json.Unmarshal([]byte(params), &l.Params); err != nil {
				return nil, fmt.Errorf("decode scrape params: %w", err)
			}
		}
		l.Origin = strings.TrimSpace(l.Origin)
		l.Destination = strings.TrimSpace(l.Destination)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape logs: %w", err)
	}
	return logs, nil
}
