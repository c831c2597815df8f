package services

import (
	"context"
	"testing"

	"github.com/iamhalje/argo-appsets/internal/argocd/argocdtest"
	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

func TestTrackedKeys(t *testing.T) {
	set := models.ApplicationSet{
		Name:      "payments",
		Namespace: "argocd",
		Resources: []models.ResourceStatus{
			{ResourceRef: models.ResourceRef{Kind: models.KindApplication, Name: "payments-us"}},
			{ResourceRef: models.ResourceRef{Kind: models.KindApplication, Namespace: "team", Name: "payments-eu"}},
			{ResourceRef: models.ResourceRef{Kind: models.KindApplication, Name: "payments-us"}},
			{ResourceRef: models.ResourceRef{Kind: models.KindDeployment, Name: "ignored"}},
		},
	}
	assert.Equal(t, []models.ItemKey{
		{Namespace: "team", Name: "payments-eu"},
		{Namespace: "argocd", Name: "payments-us"},
	}, TrackedKeys(set))
}

func TestDiscoveryListAndFind(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("ListApplicationSets", mock.Anything).Return([]models.ApplicationSet{{Name: "zeta"}, {Name: "alpha"}}, nil)

	d := NewDiscoveryService(api)
	all, err := d.ListSets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alpha", all[0].Name)

	set, err := d.FindSet(context.Background(), "zeta")
	require.NoError(t, err)
	assert.Equal(t, "zeta", set.Name)

	_, err = d.FindSet(context.Background(), "missing")
	assert.EqualError(t, err, `applicationset "missing" not found`)
}

func TestFilterSets(t *testing.T) {
	all := []models.ApplicationSet{{Name: "payments"}, {Name: "Payroll"}, {Name: "search"}}
	favs := sets.New("search", "Payroll")

	names := func(in []models.ApplicationSet) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, s.Name)
		}
		return out
	}
	assert.Equal(t, []string{"payments", "Payroll"}, names(FilterSets(all, "PAY", false, favs)))
	assert.Equal(t, []string{"Payroll"}, names(FilterSets(all, "pay", true, favs)))
	assert.Equal(t, []string{"Payroll", "search"}, names(FilterSets(all, "", true, favs)))
	assert.Len(t, FilterSets(all, " ", false, nil), 3)
}
