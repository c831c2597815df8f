package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	p := NewPreferences(kv)

	favs, err := p.Favorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, favs.Len())

	on, err := p.ToggleFavorite(ctx, "payments")
	require.NoError(t, err)
	assert.True(t, on)
	_, err = p.ToggleFavorite(ctx, "billing")
	require.NoError(t, err)

	raw, err := kv.Get(ctx, KeyFavorites)
	require.NoError(t, err)
	assert.JSONEq(t, `["billing","payments"]`, string(raw))

	on, err = p.ToggleFavorite(ctx, "payments")
	require.NoError(t, err)
	assert.False(t, on)

	favs, err = p.Favorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, favs.UnsortedList())
}

func TestCorruptValuesReadAsDefaults(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, KeyFavorites, []byte("{not json")))
	require.NoError(t, kv.Set(ctx, KeyWrapLines, []byte("nope")))

	p := NewPreferences(kv)
	favs, err := p.Favorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, favs.Len())

	wrap, err := p.WrapLines(ctx)
	require.NoError(t, err)
	assert.True(t, wrap)
}

func TestToggles(t *testing.T) {
	ctx := context.Background()
	p := NewPreferences(NewMemory())

	only, err := p.ShowFavoritesOnly(ctx)
	require.NoError(t, err)
	assert.False(t, only)
	require.NoError(t, p.SetShowFavoritesOnly(ctx, true))
	only, err = p.ShowFavoritesOnly(ctx)
	require.NoError(t, err)
	assert.True(t, only)

	wrap, err := p.WrapLines(ctx)
	require.NoError(t, err)
	assert.True(t, wrap)
	require.NoError(t, p.SetWrapLines(ctx, false))
	wrap, err = p.WrapLines(ctx)
	require.NoError(t, err)
	assert.False(t, wrap)
}

func TestUIMode(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	p := NewPreferences(kv)

	m, err := p.UIMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, UIModeDark, m)

	require.NoError(t, p.SetUIMode(ctx, UIModeBright))
	raw, err := kv.Get(ctx, KeyUIMode)
	require.NoError(t, err)
	assert.Equal(t, "bright", string(raw))

	m, err = p.UIMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, UIModeBright, m)

	require.NoError(t, kv.Set(ctx, KeyUIMode, []byte("sepia")))
	m, err = p.UIMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, UIModeDark, m)
}
