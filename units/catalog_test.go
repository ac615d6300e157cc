package units_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/record/store"
	"github.com/ceplan/itpei/units"
)

func TestCatalog_SaveRefreshesSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveUnit(ctx, units.Unit{Code: "10", Name: "Ministerio de Educación"}))

	// GIVEN: A catalog loaded from the store
	c, err := units.NewCatalog(ctx, mem)
	require.NoError(t, err)
	before := c.Directory()
	assert.Equal(t, 1, before.Len())

	// WHEN: A unit is saved through the catalog
	saved, err := c.Save(ctx, units.Unit{Code: "23.0", Name: "Gobierno Regional de Tacna", Responsible: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "23", saved.Code)

	// THEN: New lookups see it; the old snapshot is untouched
	u, ok := c.Lookup(23)
	require.True(t, ok)
	assert.Equal(t, "Ana", u.Responsible)
	assert.Equal(t, 2, c.Directory().Len())
	assert.Equal(t, 1, before.Len())
}

func TestCatalog_SaveRejectsMissingCode(t *testing.T) {
	ctx := context.Background()
	c, err := units.NewCatalog(ctx, store.NewMemory())
	require.NoError(t, err)

	_, err = c.Save(ctx, units.Unit{Name: "sin código"})
	assert.Error(t, err)
	assert.Equal(t, 0, c.Directory().Len())
}
