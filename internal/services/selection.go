package services

import (
	"slices"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Predicate decides membership for predicate-based selection.
type Predicate func(models.ItemSnapshot) bool

func OutOfSync(s models.ItemSnapshot) bool {
	return s.App.SyncStatus != models.SyncSynced
}

func RolloutSuspended(s models.ItemSnapshot) bool {
	h, ok := s.App.RolloutHealth()
	return ok && h == models.HealthSuspended
}

func RolloutDegraded(s models.ItemSnapshot) bool {
	h, ok := s.App.RolloutHealth()
	return ok && h == models.HealthDegraded
}

func HasLabel(key, value string) Predicate {
	return func(s models.ItemSnapshot) bool {
		v, ok := s.App.Labels[key]
		return ok && v == value
	}
}

// Selection is the set of chosen tracked items.
// Keys are never dropped when their snapshot disappears.
type Selection struct {
	keys sets.Set[models.ItemKey]
}

func NewSelection(keys ...models.ItemKey) *Selection {
	return &Selection{keys: sets.New(keys...)}
}

func (s *Selection) SelectAll(tracked []models.ItemKey) {
	s.keys = sets.New(tracked...)
}

func (s *Selection) SelectNone() {
	s.keys = sets.New[models.ItemKey]()
}

// SelectBy replaces the selection with tracked items whose current snapshot matches pred.
// Items without a snapshot are not selected.
func (s *Selection) SelectBy(tracked []models.ItemKey, snapshots map[models.ItemKey]models.ItemSnapshot, pred Predicate) {
	next := sets.New[models.ItemKey]()
	for _, k := range tracked {
		snap, ok := snapshots[k]
		if ok && pred(snap) {
			next.Insert(k)
		}
	}
	s.keys = next
}

func (s *Selection) Toggle(k models.ItemKey) {
	if s.keys == nil {
		s.keys = sets.New[models.ItemKey]()
	}
	if s.keys.Has(k) {
		s.keys.Delete(k)
		return
	}
	s.keys.Insert(k)
}

func (s *Selection) Has(k models.ItemKey) bool {
	return s.keys.Has(k)
}

func (s *Selection) Len() int {
	return s.keys.Len()
}

// Keys returns the selected keys sorted by namespace then name.
func (s *Selection) Keys() []models.ItemKey {
	out := s.keys.UnsortedList()
	slices.SortFunc(out, CompareKeys)
	return out
}

func CompareKeys(a, b models.ItemKey) int {
	if c := strings.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}
