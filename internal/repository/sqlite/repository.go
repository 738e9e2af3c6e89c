package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianbeese/mietcheck/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository stores analysis history, benchmark snapshots, cached results
// and the activity log
type Repository struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Repository, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	migration, err := migrationsFS.ReadFile("migrations/001_initial.sql")
	if err != nil {
		return err
	}
	_, err = r.db.Exec(string(migration))
	return err
}

// Cache methods

// Get implements cache.Cache
func (r *Repository) Get(ctx context.Context, key string, dst any) error {
	var value []byte
	var expiresAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("read cache %s: %w", key, err)
	}
	if time.Now().UnixNano() > expiresAt {
		return domain.ErrCacheMiss
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// Set implements cache.Cache
func (r *Repository) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, data, time.Now().Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes expired cache entries and returns how many were removed
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at < ?`, time.Now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Analysis methods

// SaveAnalysis stores an analysis result
func (r *Repository) SaveAnalysis(ctx context.Context, a *domain.AnalysisResult) error {
	record, err := json.Marshal(a.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analyses (id, url, portal, strategy, rent_monthly, rent_annual, rent_source, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.URL, a.Portal, string(a.Strategy),
		nullableFloat(a.Record.RentMonthly), nullableFloat(a.Record.RentAnnual),
		string(a.Record.RentSource), string(record), a.AnalyzedAt.UTC(),
	)
	return err
}

// RecentAnalyses returns the newest analyses first
func (r *Repository) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, portal, strategy, record, created_at
		FROM analyses ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// LatestAnalysis returns the newest analysis of url or domain.ErrNotFound
func (r *Repository) LatestAnalysis(ctx context.Context, url string) (*domain.AnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, portal, strategy, record, created_at
		FROM analyses WHERE url = ? ORDER BY created_at DESC LIMIT 1
	`, url)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.AnalysisResult, error) {
	var a domain.AnalysisResult
	var strategy sql.NullString
	var record string
	if err := row.Scan(&a.ID, &a.URL, &a.Portal, &strategy, &record, &a.AnalyzedAt); err != nil {
		return nil, err
	}
	a.Strategy = domain.FetchStrategy(strategy.String)
	if err := json.Unmarshal([]byte(record), &a.Record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", a.ID, err)
	}
	return &a, nil
}

// Benchmark methods

// SaveBenchmark appends a benchmark snapshot for a postal code
func (r *Repository) SaveBenchmark(ctx context.Context, m *domain.MarketRentResult) error {
	if m.Area == nil || m.Benchmark == nil {
		return fmt.Errorf("save benchmark %s: %w", m.PostalCode, domain.ErrInvalidInput)
	}
	b := m.Benchmark
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO benchmarks (postal_code, city, suburb, state, range_low, range_high,
			avg_per_sqm, source_url, provider, scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.PostalCode, m.Area.City, nullableString(m.Area.Suburb), nullableString(m.Area.State),
		nullableFloat(b.RangeLow), nullableFloat(b.RangeHigh), nullableFloat(b.Average),
		b.SourceURL, b.Provider, string(b.Scope),
	)
	return err
}

// LatestBenchmark returns the newest stored snapshot for a postal code or
// domain.ErrNotFound
func (r *Repository) LatestBenchmark(ctx context.Context, postalCode string) (*domain.MarketRentResult, error) {
	var city, sourceURL, provider, scope sql.NullString
	var suburb, state sql.NullString
	var low, high, avg sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT city, suburb, state, range_low, range_high, avg_per_sqm, source_url, provider, scope
		FROM benchmarks WHERE postal_code = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, postalCode).Scan(&city, &suburb, &state, &low, &high, &avg, &sourceURL, &provider, &scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.MarketRentResult{
		PostalCode: postalCode,
		Found:      true,
		Area: &domain.AreaDescriptor{
			PostalCode: postalCode,
			City:       city.String,
			Suburb:     nullStringPtr(suburb),
			State:      nullStringPtr(state),
		},
		Benchmark: &domain.RentBenchmark{
			SourceURL: sourceURL.String,
			Provider:  provider.String,
			RangeLow:  nullFloatPtr(low),
			RangeHigh: nullFloatPtr(high),
			Average:   nullFloatPtr(avg),
			Scope:     domain.BenchmarkScope(scope.String),
		},
	}, nil
}

// ActivityLog methods

// LogActivity records an activity
func (r *Repository) LogActivity(ctx context.Context, log *domain.ActivityLog) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (action, entity_type, entity_id, details, error_msg)
		VALUES (?, ?, ?, ?, ?)
	`, log.Action, log.EntityType, log.EntityID, log.Details, log.ErrorMsg)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id
	log.CreatedAt = time.Now()
	return nil
}

// CountActivity returns how often action was logged
func (r *Repository) CountActivity(ctx context.Context, action string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log WHERE action = ?`, action).Scan(&n)
	return n, err
}

// Helper functions

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
