package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, 24, c.Len())

	drill, ok := c.Lookup("drill-cordless-20v")
	require.True(t, ok)
	assert.Equal(t, "20V MAX Cordless Drill/Driver Kit", drill.Name)
	assert.Contains(t, drill.Attributes.Specs, "350 in-lbs max torque")
	assert.NotEmpty(t, drill.Attributes.Warranty)

	studs := c.MustLookup("lumber-2x4-stud-bundle")
	assert.True(t, studs.Attributes.IsPro)
	require.Len(t, studs.BulkPricing, 1)
	assert.Equal(t, 25, studs.BulkPricing[0].Qty)

	_, ok = c.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestEveryProductIsComplete(t *testing.T) {
	for _, p := range Default().All() {
		t.Run(p.ID, func(t *testing.T) {
			assert.NotEmpty(t, p.Name)
			assert.NotEmpty(t, p.Category)
			assert.Positive(t, p.Price)
			assert.Equal(t, "USD", p.Currency)
			assert.NotEmpty(t, p.Attributes.Specs)
		})
	}
}

func TestResolveKeepsOrderAndSkipsUnknown(t *testing.T) {
	got := Default().Resolve("stain-deck", "nope", "vanity-36in")
	require.Len(t, got, 2)
	assert.Equal(t, "stain-deck", got[0].ID)
	assert.Equal(t, "vanity-36in", got[1].ID)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New([]domain.Product{{ID: "a"}, {ID: "a"}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New([]domain.Product{{Name: "nameless"}})
	assert.ErrorContains(t, err, "no id")

	_, err = Parse([]byte("products: {"))
	assert.Error(t, err)
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Name = "mutated"
	assert.NotEqual(t, "mutated", c.All()[0].Name)
}
