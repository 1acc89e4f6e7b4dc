// Package preferences stores per-admin UI preferences.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Theme is the dashboard colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned for values other than light or dark.
var ErrInvalidTheme = errors.New("preferences: theme must be light or dark")

// ParseTheme accepts "light" or "dark" in any case.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", ErrInvalidTheme
}

// ThemeStore persists the chosen theme per admin email.
type ThemeStore interface {
	GetTheme(ctx context.Context, email string) (Theme, bool, error)
	SetTheme(ctx context.Context, email string, theme Theme) error
}

// Resolve returns the persisted theme, else the browser's
// Sec-CH-Prefers-Color-Scheme hint, else light.
func Resolve(ctx context.Context, store ThemeStore, email, hint string) (Theme, error) {
	if store != nil && email != "" {
		theme, ok, err := store.GetTheme(ctx, email)
		if err != nil {
			return ThemeLight, err
		}
		if ok {
			return theme, nil
		}
	}
	if t, err := ParseTheme(strings.Trim(hint, `"`)); err == nil {
		return t, nil
	}
	return ThemeLight, nil
}

// RedisThemeStore keeps themes under "prefs:theme:<email>".
type RedisThemeStore struct {
	redis *redis.Client
}

func NewRedisThemeStore(client *redis.Client) *RedisThemeStore {
	return &RedisThemeStore{redis: client}
}

func (s *RedisThemeStore) key(email string) string {
	return fmt.Sprintf("prefs:theme:%s", strings.ToLower(email))
}

func (s *RedisThemeStore) GetTheme(ctx context.Context, email string) (Theme, bool, error) {
	val, err := s.redis.Get(ctx, s.key(email)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("preferences: get theme: %w", err)
	}
	theme, err := ParseTheme(val)
	if err != nil {
		return "", false, nil
	}
	return theme, true, nil
}

func (s *RedisThemeStore) SetTheme(ctx context.Context, email string, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(email), string(theme), 0).Err(); err != nil {
		return fmt.Errorf("preferences: set theme: %w", err)
	}
	return nil
}

// MemoryThemeStore is used when Redis is not configured.
type MemoryThemeStore struct {
	mu     sync.RWMutex
	themes map[string]Theme
}

func NewMemoryThemeStore() *MemoryThemeStore {
	return &MemoryThemeStore{themes: make(map[string]Theme)}
}

func (s *MemoryThemeStore) GetTheme(_ context.Context, email string) (Theme, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[strings.ToLower(email)]
	return t, ok, nil
}

func (s *MemoryThemeStore) SetTheme(_ context.Context, email string, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes[strings.ToLower(email)] = theme
	return nil
}
