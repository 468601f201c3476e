package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL flavour of a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLOptions tunes the connection pool.
type SQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore is a Repository over database/sql. Queries use $n placeholders,
// which both go-sqlite3 and lib/pq accept.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQLStore connects, verifies the connection and applies the schema.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string, opts SQLOptions) (*SQLStore, error) {
	driverName := "postgres"
	if dialect == DialectSQLite {
		driverName = "sqlite3"
		if !strings.Contains(dsn, "_foreign_keys") {
			dsn = appendDSNParam(dsn, "_foreign_keys=on")
		}
	} else if dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	store := NewSQLStore(db, dialect)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an existing connection. Call Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// Migrate creates the tables if they do not exist and brings older
// restaurant tables up to date with the city_key column.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := s.migrateCityKey(ctx); err != nil {
		return fmt.Errorf("migrate city key: %w", err)
	}
	return nil
}

// migrateCityKey adds and backfills city_key on tables created before it
// existed. The key is computed in Go so lookups do not depend on the
// database's case folding.
func (s *SQLStore) migrateCityKey(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `SELECT city_key FROM restaurants LIMIT 1`); err != nil {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE restaurants ADD COLUMN city_key TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, city FROM restaurants WHERE city_key = ''`)
	if err != nil {
		return err
	}
	type pending struct {
		id   int64
		city string
	}
	var stale []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.city); err != nil {
			_ = rows.Close()
			return err
		}
		stale = append(stale, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range stale {
		if _, err := s.db.ExecContext(ctx, `UPDATE restaurants SET city_key = $1 WHERE id = $2`, CityKey(p.city), p.id); err != nil {
			return err
		}
	}

	for _, stmt := range []string{
		`DROP INDEX IF EXISTS idx_restaurants_city`,
		`CREATE INDEX IF NOT EXISTS idx_restaurants_city_key ON restaurants (city_key)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func schema(d Dialect) []string {
	id, ts, float := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP", "REAL"
	if d == DialectPostgres {
		id, ts, float = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "DOUBLE PRECISION"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id ` + id + `,
			name TEXT NOT NULL,
			website TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL,
			city_key TEXT NOT NULL DEFAULT '',
			google_rating ` + float + `,
			price_range TEXT NOT NULL DEFAULT '',
			categories TEXT NOT NULL DEFAULT '[]',
			map_link TEXT NOT NULL DEFAULT '',
			mention_count INTEGER NOT NULL DEFAULT 0,
			last_mention_date ` + ts + `,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id ` + id + `,
			restaurant_id BIGINT NOT NULL REFERENCES restaurants (id),
			post_id TEXT NOT NULL DEFAULT '',
			comment_id TEXT NOT NULL DEFAULT '',
			subreddit TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			sentiment_score ` + float + ` CHECK (sentiment_score IS NULL OR (sentiment_score >= 0 AND sentiment_score <= 1)),
			sentiment_summary TEXT,
			post_date ` + ts + `,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_restaurant ON recommendations (restaurant_id)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id ` + id + `,
			query TEXT NOT NULL,
			city TEXT,
			created_at ` + ts + ` NOT NULL
		)`,
	}
}

const restaurantColumns = `id, name, website, address, city, google_rating, price_range,
	categories, map_link, mention_count, last_mention_date, created_at`

// GetRestaurant returns ErrNotFound for unknown ids.
func (s *SQLStore) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	r, err := scanRestaurant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant %d: %w", id, err)
	}
	return r, nil
}

// ListRestaurants returns every restaurant in insertion order.
func (s *SQLStore) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	return s.queryRestaurants(ctx, `SELECT `+restaurantColumns+` FROM restaurants ORDER BY id`)
}

// GetRestaurantsByCity matches the indexed city_key column.
func (s *SQLStore) GetRestaurantsByCity(ctx context.Context, city string) ([]Restaurant, error) {
	return s.queryRestaurants(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE city_key = $1 ORDER BY id`,
		CityKey(city))
}

// GetRestaurantsByCityAndQuery narrows the city set to names or categories containing query.
func (s *SQLStore) GetRestaurantsByCityAndQuery(ctx context.Context, city, query string) ([]Restaurant, error) {
	inCity, err := s.GetRestaurantsByCity(ctx, city)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Restaurant, 0, len(inCity))
	for _, r := range inCity {
		if matchesText(r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateRestaurant inserts and returns the stored row.
func (s *SQLStore) CreateRestaurant(ctx context.Context, in NewRestaurant) (*Restaurant, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	categories, err := json.Marshal(nonNil(in.Categories))
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}

	createdAt := s.now().UTC()
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO restaurants (name, website, address, city, city_key, google_rating, price_range,
			categories, map_link, mention_count, last_mention_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		in.Name, in.Website, in.Address, in.City, CityKey(in.City), nullFloat(in.GoogleRating), string(in.PriceRange),
		string(categories), in.MapLink, in.MentionCount, nullTime(in.LastMentionDate), createdAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert restaurant: %w", err)
	}

	return s.GetRestaurant(ctx, id)
}

// UpdateRestaurant applies the non-nil fields of update inside a transaction.
func (s *SQLStore) UpdateRestaurant(ctx context.Context, id int64, update RestaurantUpdate) (*Restaurant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanRestaurant(tx.QueryRowContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load restaurant %d: %w", id, err)
	}

	if err := update.Apply(r); err != nil {
		return nil, err
	}

	categories, err := json.Marshal(nonNil(r.Categories))
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE restaurants SET website = $1, address = $2, google_rating = $3, price_range = $4,
			categories = $5, map_link = $6, mention_count = $7, last_mention_date = $8
		WHERE id = $9`,
		r.Website, r.Address, nullFloat(r.GoogleRating), string(r.PriceRange),
		string(categories), r.MapLink, r.MentionCount, nullTime(r.LastMentionDate), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update restaurant %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r, nil
}

const recommendationColumns = `id, restaurant_id, post_id, comment_id, subreddit, content,
	sentiment_score, sentiment_summary, post_date, created_at`

// GetRecommendation returns ErrNotFound for unknown ids.
func (s *SQLStore) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1`, id)
	rec, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation %d: %w", id, err)
	}
	return rec, nil
}

// GetRecommendationsByRestaurant returns recommendations in insertion order.
func (s *SQLStore) GetRecommendationsByRestaurant(ctx context.Context, restaurantID int64) ([]Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE restaurant_id = $1 ORDER BY id`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	out := make([]Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CreateRecommendation rejects references to unknown restaurants.
func (s *SQLStore) CreateRecommendation(ctx context.Context, in NewRecommendation) (*Recommendation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM restaurants WHERE id = $1`, in.RestaurantID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check restaurant %d: %w", in.RestaurantID, err)
	}
	if exists == 0 {
		return nil, ErrInvalidReference
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO recommendations (restaurant_id, post_id, comment_id, subreddit, content,
			sentiment_score, sentiment_summary, post_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		in.RestaurantID, in.PostID, in.CommentID, in.Subreddit, in.Content,
		nullFloat(in.SentimentScore), nullString(in.SentimentSummary), nullTime(in.PostDate), s.now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert recommendation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetRecommendation(ctx, id)
}

// CreateSearchHistory appends to the search log.
func (s *SQLStore) CreateSearchHistory(ctx context.Context, query string, city *string) (*SearchHistoryEntry, error) {
	entry := SearchHistoryEntry{Query: query, City: city, CreatedAt: s.now().UTC()}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO search_history (query, city, created_at) VALUES ($1, $2, $3) RETURNING id`,
		query, nullString(city), entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("insert search history: %w", err)
	}
	return &entry, nil
}

// GetSearchHistory returns the newest entries first.
func (s *SQLStore) GetSearchHistory(ctx context.Context, limit int) ([]SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, city, created_at FROM search_history ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query search history: %w", err)
	}
	defer rows.Close()

	out := make([]SearchHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry SearchHistoryEntry
			city  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Query, &city, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		if city.Valid {
			entry.City = String(city.String)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLStore) queryRestaurants(ctx context.Context, query string, args ...interface{}) ([]Restaurant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query restaurants: %w", err)
	}
	defer rows.Close()

	out := make([]Restaurant, 0)
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRestaurant(row scanner) (*Restaurant, error) {
	var (
		r           Restaurant
		rating      sql.NullFloat64
		price       string
		categories  string
		lastMention sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Name, &r.Website, &r.Address, &r.City, &rating, &price,
		&categories, &r.MapLink, &r.MentionCount, &lastMention, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.PriceRange = PriceRange(price)
	if rating.Valid {
		r.GoogleRating = Float64(rating.Float64)
	}
	if lastMention.Valid {
		r.LastMentionDate = Time(lastMention.Time)
	}
	if err := json.Unmarshal([]byte(categories), &r.Categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	r.Categories = nonNil(r.Categories)
	return &r, nil
}

func scanRecommendation(row scanner) (*Recommendation, error) {
	var (
		rec      Recommendation
		score    sql.NullFloat64
		summary  sql.NullString
		postDate sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.RestaurantID, &rec.PostID, &rec.CommentID, &rec.Subreddit,
		&rec.Content, &score, &summary, &postDate, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		rec.SentimentScore = Float64(score.Float64)
	}
	if summary.Valid {
		rec.SentimentSummary = String(summary.String)
	}
	if postDate.Valid {
		rec.PostDate = Time(postDate.Time)
	}
	return &rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func appendDSNParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return "file:" + strings.TrimPrefix(dsn, "file:") + "?" + param
}

var _ Repository = (*SQLStore)(nil)
