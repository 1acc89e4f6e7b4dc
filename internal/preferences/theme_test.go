package preferences

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTheme(t *testing.T) {
	theme, err := ParseTheme(" Dark ")
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	_, err = ParseTheme("sepia")
	assert.ErrorIs(t, err, ErrInvalidTheme)
}

func TestResolvePrefersPersistedThenHint(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryThemeStore()

	theme, err := Resolve(ctx, store, "a@b.es", "")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	theme, err = Resolve(ctx, store, "a@b.es", `"dark"`)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	require.NoError(t, store.SetTheme(ctx, "a@b.es", ThemeLight))
	theme, err = Resolve(ctx, store, "A@B.es", "dark")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestRedisThemeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisThemeStore(client)
	ctx := context.Background()

	_, ok, err := store.GetTheme(ctx, "dentista@clinica.es")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetTheme(ctx, "dentista@clinica.es", ThemeDark))
	theme, ok, err := store.GetTheme(ctx, "dentista@clinica.es")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ThemeDark, theme)

	got, err := mr.Get("prefs:theme:dentista@clinica.es")
	require.NoError(t, err)
	assert.Equal(t, "dark", got)

	assert.ErrorIs(t, store.SetTheme(ctx, "x", Theme("blue")), ErrInvalidTheme)
}
