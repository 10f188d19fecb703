// Package redisstore keeps browser session credentials in Redis so a rebuilt
// SessionManager can restore the session from any server instance.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/invencare/go-auth"
)

const (
	DefaultPrefix = "storeauth"
	DefaultTTL    = 30 * 24 * time.Hour
)

// Config for the Redis connection.
type Config struct {
	URL      string
	Password string
	DB       int
	Prefix   string
	// TTL of a stored bundle, renewed on every save.
	TTL time.Duration
}

// Store hands out per-session credential stores sharing one client.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// ForSession returns the credential store of one browser session.
func (s *Store) ForSession(sessionID string) *SessionStore {
	return &SessionStore{
		store: s,
		id:    sessionID,
	}
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) tokensKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:tokens", s.prefix, sessionID)
}

func (s *Store) flagKey(sessionID, flag string) string {
	return fmt.Sprintf("%s:session:%s:%s", s.prefix, sessionID, flag)
}

// SessionStore implements auth.CredentialStore and auth.LegacyFlagPurger for
// one session id.
type SessionStore struct {
	store *Store
	id    string
}

var (
	_ auth.CredentialStore  = (*SessionStore)(nil)
	_ auth.LegacyFlagPurger = (*SessionStore)(nil)
)

func (s *SessionStore) Load(ctx context.Context) (auth.Tokens, error) {
	key := s.store.tokensKey(s.id)

	data, err := s.store.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return auth.Tokens{}, nil
	} else if err != nil {
		return auth.Tokens{}, fmt.Errorf("redis get failed: %w", err)
	}

	var tokens auth.Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		// corrupt entries are dropped
		s.store.client.Del(ctx, key)
		return auth.Tokens{}, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	return tokens, nil
}

func (s *SessionStore) Save(ctx context.Context, tokens auth.Tokens) error {
	if tokens.IsZero() {
		return s.Clear(ctx)
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	return s.store.client.Set(ctx, s.store.tokensKey(s.id), data, s.store.ttl).Err()
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.store.client.Del(ctx, s.store.tokensKey(s.id)).Err()
}

// PurgeLegacyFlags deletes the demo flags stored next to the session and
// returns the ones that existed.
func (s *SessionStore) PurgeLegacyFlags(ctx context.Context) ([]string, error) {
	pipe := s.store.client.TxPipeline()
	cmds := make([]*redis.IntCmd, len(auth.LegacyDemoFlags))
	for i, flag := range auth.LegacyDemoFlags {
		cmds[i] = pipe.Del(ctx, s.store.flagKey(s.id, flag))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to purge legacy flags: %w", err)
	}

	var purged []string
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			purged = append(purged, auth.LegacyDemoFlags[i])
		}
	}
	return purged, nil
}
