package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	KeyFavorites         = "application-sets.favorites"
	KeyShowFavoritesOnly = "application-sets.showFavoritesOnly"
	KeyWrapLines         = "pretty-logs-wrap-lines"
	KeyUIMode            = "pretty-logs-ui-mode"
)

type UIMode string

const (
	UIModeDark   UIMode = "dark"
	UIModeBright UIMode = "bright"
)

// Preferences stores JSON-encoded UI state in a KV.
type Preferences struct {
	kv KV
	mu sync.Mutex
}

func NewPreferences(kv KV) *Preferences {
	return &Preferences{kv: kv}
}

// Favorites returns the favorite set names. Missing or corrupt values read as empty.
func (p *Preferences) Favorites(ctx context.Context) (sets.Set[string], error) {
	var names []string
	if err := p.load(ctx, KeyFavorites, &names); err != nil {
		return sets.New[string](), err
	}
	return sets.New(names...), nil
}

// ToggleFavorite flips name in the favorites list and reports whether it is now a favorite.
func (p *Preferences) ToggleFavorite(ctx context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	favs, err := p.Favorites(ctx)
	if err != nil {
		return false, err
	}
	now := !favs.Has(name)
	if now {
		favs.Insert(name)
	} else {
		favs.Delete(name)
	}
	names := favs.UnsortedList()
	slices.Sort(names)
	return now, p.save(ctx, KeyFavorites, names)
}

func (p *Preferences) ShowFavoritesOnly(ctx context.Context) (bool, error) {
	var v bool
	err := p.load(ctx, KeyShowFavoritesOnly, &v)
	return v, err
}

func (p *Preferences) SetShowFavoritesOnly(ctx context.Context, v bool) error {
	return p.save(ctx, KeyShowFavoritesOnly, v)
}

// WrapLines defaults to true.
func (p *Preferences) WrapLines(ctx context.Context) (bool, error) {
	v := true
	err := p.load(ctx, KeyWrapLines, &v)
	return v, err
}

func (p *Preferences) SetWrapLines(ctx context.Context, v bool) error {
	return p.save(ctx, KeyWrapLines, v)
}

// UIMode defaults to dark. The value is stored as a bare string.
func (p *Preferences) UIMode(ctx context.Context) (UIMode, error) {
	b, err := p.kv.Get(ctx, KeyUIMode)
	if errors.Is(err, ErrNotFound) {
		return UIModeDark, nil
	}
	if err != nil {
		return UIModeDark, fmt.Errorf("load %s: %w", KeyUIMode, err)
	}
	if UIMode(b) == UIModeBright {
		return UIModeBright, nil
	}
	return UIModeDark, nil
}

func (p *Preferences) SetUIMode(ctx context.Context, m UIMode) error {
	if err := p.kv.Set(ctx, KeyUIMode, []byte(m)); err != nil {
		return fmt.Errorf("save %s: %w", KeyUIMode, err)
	}
	return nil
}

func (p *Preferences) load(ctx context.Context, key string, out any) error {
	b, err := p.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	// corrupt values fall back to the zero value.
	_ = json.Unmarshal(b, out)
	return nil
}

func (p *Preferences) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.kv.Set(ctx, key, b); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
