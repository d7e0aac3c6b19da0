package snippets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/pkg/linkcodec"
	lru "github.com/hashicorp/golang-lru/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// DefaultCacheSize is the number of snippets kept in memory
	DefaultCacheSize = 1024

	// DefaultPurgeSchedule runs the expiry purge once an hour
	DefaultPurgeSchedule = "@hourly"

	idLength = 12
)

var (
	// ErrSnippetNotFound is returned for unknown or expired snippet IDs
	ErrSnippetNotFound = errors.New("snippet not found")

	// ErrPurgerRunning is returned when StartPurger is called twice
	ErrPurgerRunning = errors.New("purger already running")
)

// Snippet is a stored share link. Token is the link state without the
// leading '#'.
type Snippet struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"` // zero when the snippet never expires
}

// Link returns the snippet as a fragment, '#' included
func (s Snippet) Link() string {
	return linkcodec.FragmentMarker + s.Token
}

func (s Snippet) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Config holds snippet store configuration
type Config struct {
	DBPath    string
	TTL       time.Duration // zero keeps snippets forever
	CacheSize int
	Logger    zerolog.Logger
}

// Store persists share links in sqlite behind an LRU read cache
type Store struct {
	db     *sql.DB
	cache  *lru.Cache[string, Snippet]
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New opens or creates the snippet database
func New(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must not be negative, got %s", cfg.TTL)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	cache, err := lru.New[string, Snippet](cfg.CacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	s := &Store{
		db:     db,
		cache:  cache,
		ttl:    cfg.TTL,
		logger: cfg.Logger.With().Str("component", "snippets").Logger(),
		now:    time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.DBPath).Msg("Snippet store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snippets (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_snippets_expires_at ON snippets(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores link state and returns its snippet. The state must decode to
// a valid workspace.
func (s *Store) Save(ctx context.Context, link string) (*Snippet, error) {
	token := linkcodec.TokenFromLink(link)
	if _, err := linkcodec.Unmarshal(token); err != nil {
		return nil, fmt.Errorf("refusing to store invalid link: %w", err)
	}

	id, err := gonanoid.New(idLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate snippet id: %w", err)
	}

	now := s.now()
	snippet := Snippet{
		ID:        id,
		Token:     token,
		CreatedAt: now,
	}
	var expiresAt int64
	if s.ttl > 0 {
		snippet.ExpiresAt = now.Add(s.ttl)
		expiresAt = snippet.ExpiresAt.UnixMilli()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snippets (id, token, created_at, expires_at) VALUES (?, ?, ?, ?)",
		snippet.ID, snippet.Token, now.UnixMilli(), expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save snippet: %w", err)
	}

	s.cache.Add(snippet.ID, snippet)
	observability.RecordSnippetSaved()

	s.logger.Debug().
		Str("id", snippet.ID).
		Int("tokenSize", len(token)).
		Msg("Snippet saved")

	return &snippet, nil
}

// Load returns a live snippet by ID
func (s *Store) Load(ctx context.Context, id string) (*Snippet, error) {
	now := s.now()

	if snippet, ok := s.cache.Get(id); ok {
		if snippet.expired(now) {
			s.cache.Remove(id)
			return nil, fmt.Errorf("%w: %s", ErrSnippetNotFound, id)
		}
		observability.RecordSnippetLoaded("cache")
		return &snippet, nil
	}

	var (
		snippet   Snippet
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, token, created_at, expires_at FROM snippets WHERE id = ?", id,
	).Scan(&snippet.ID, &snippet.Token, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnippetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snippet: %w", err)
	}

	snippet.CreatedAt = time.UnixMilli(createdAt)
	if expiresAt > 0 {
		snippet.ExpiresAt = time.UnixMilli(expiresAt)
	}
	if snippet.expired(now) {
		return nil, fmt.Errorf("%w: %s", ErrSnippetNotFound, id)
	}

	s.cache.Add(snippet.ID, snippet)
	observability.RecordSnippetLoaded("db")
	return &snippet, nil
}

// PurgeExpired deletes every expired snippet and returns how many rows went
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM snippets WHERE expires_at > 0 AND expires_at <= ?", now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge snippets: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged snippets: %w", err)
	}

	for _, id := range s.cache.Keys() {
		if snippet, ok := s.cache.Peek(id); ok && snippet.expired(now) {
			s.cache.Remove(id)
		}
	}

	observability.RecordSnippetsPurged(int(affected))
	if affected > 0 {
		s.logger.Info().Int64("count", affected).Msg("Expired snippets purged")
	}
	return int(affected), nil
}

// StartPurger runs PurgeExpired on a cron schedule. Descriptors such as
// "@hourly" and "@every 10m" are accepted.
func (s *Store) StartPurger(spec string) error {
	if spec == "" {
		spec = DefaultPurgeSchedule
	}

	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if s.cron != nil {
		return ErrPurgerRunning
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, s.purgeJob); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info().Str("schedule", spec).Msg("Snippet purger started")
	return nil
}

func (s *Store) purgeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.PurgeExpired(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled purge failed")
	}
}

// StopPurger stops the schedule and waits for a running purge to finish
func (s *Store) StopPurger() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Close stops the purger and closes the database
func (s *Store) Close() error {
	s.StopPurger()
	return s.db.Close()
}
