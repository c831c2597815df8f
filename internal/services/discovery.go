package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/util/sets"
)

type DiscoveryService struct {
	api argocd.API
}

func NewDiscoveryService(api argocd.API) *DiscoveryService {
	return &DiscoveryService{api: api}
}

// ListSets returns every ApplicationSet sorted by name.
func (s *DiscoveryService) ListSets(ctx context.Context) ([]models.ApplicationSet, error) {
	out, err := s.api.ListApplicationSets(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b models.ApplicationSet) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// FindSet returns the set called name.
func (s *DiscoveryService) FindSet(ctx context.Context, name string) (models.ApplicationSet, error) {
	all, err := s.ListSets(ctx)
	if err != nil {
		return models.ApplicationSet{}, err
	}
	set, ok := lo.Find(all, func(a models.ApplicationSet) bool { return a.Name == name })
	if !ok {
		return models.ApplicationSet{}, fmt.Errorf("applicationset %q not found", name)
	}
	return set, nil
}

// TrackedKeys returns the child Application keys of set, sorted by name.
// A child without namespace inherits the set's namespace.
func TrackedKeys(set models.ApplicationSet) []models.ItemKey {
	var keys []models.ItemKey
	seen := sets.New[models.ItemKey]()
	for _, r := range set.Resources {
		if r.Kind != models.KindApplication {
			continue
		}
		k := models.ItemKey{Namespace: r.Namespace, Name: r.Name}
		if k.Namespace == "" {
			k.Namespace = set.Namespace
		}
		if seen.Has(k) {
			continue
		}
		seen.Insert(k)
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b models.ItemKey) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Namespace, b.Namespace)
	})
	return keys
}

// FilterSets keeps sets whose name contains search (case-insensitive),
// restricted to favorites when favoritesOnly is set.
func FilterSets(all []models.ApplicationSet, search string, favoritesOnly bool, favorites sets.Set[string]) []models.ApplicationSet {
	q := strings.ToLower(strings.TrimSpace(search))
	return lo.Filter(all, func(s models.ApplicationSet, _ int) bool {
		if favoritesOnly && !favorites.Has(s.Name) {
			return false
		}
		return q == "" || strings.Contains(strings.ToLower(s.Name), q)
	})
}
