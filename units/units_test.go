package units_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/units"
)

func testDirectory() *units.Directory {
	return units.NewDirectory([]units.Unit{
		{Code: "23.0", Name: " Gobierno Regional de Tacna ", Level: "Gobierno regional", Responsible: "Ana Quispe"},
		{Code: "10", Name: "Ministerio de Educación", Level: "Gobierno nacional", Responsible: "Luis Rojas"},
		{Code: "150101", Name: "Municipalidad de Lima", Level: "Municipalidad provincial", Responsible: "Ana Quispe"},
		{Code: "", Name: "sin código"},
	})
}

func TestDirectory_LookupByAnyCodeForm(t *testing.T) {
	d := testDirectory()
	require.Equal(t, 3, d.Len())

	for _, code := range []any{"23", "23.0", " 23 ", 23, 23.0} {
		u, ok := d.Lookup(code)
		require.True(t, ok, "code %#v", code)
		assert.Equal(t, "Gobierno Regional de Tacna", u.Name)
	}

	_, ok := d.Lookup("99")
	assert.False(t, ok)
}

func TestDirectory_Responsibles(t *testing.T) {
	d := testDirectory()
	assert.Equal(t, []string{"Ana Quispe", "Luis Rojas"}, d.Responsibles())

	mine := d.ByResponsible(" Ana Quispe")
	require.Len(t, mine, 2)
	assert.Equal(t, "150101", mine[0].Code)
	assert.Equal(t, "23", mine[1].Code)
}

func TestSearch_CodeOrNameAccentInsensitive(t *testing.T) {
	all := testDirectory().All()

	hits := units.Search(all, "educacion")
	require.Len(t, hits, 1)
	assert.Equal(t, "10", hits[0].Code)

	hits = units.Search(all, "1501")
	require.Len(t, hits, 1)
	assert.Equal(t, "150101 - Municipalidad de Lima", hits[0].Label())

	assert.Len(t, units.Search(all, ""), 3)
}

func TestArticulationOptions(t *testing.T) {
	assert.Equal(t, []string{"PEDN 2050", "PDRC"}, units.ArticulationOptions("Gobierno regional"))
	assert.Equal(t, []string{"PEDN 2050", "PESEM NO vigente", "PESEM vigente"}, units.ArticulationOptions("GOBIERNO NACIONAL"))
	assert.Equal(t, []string{"PEDN 2050", "PDRC", "PDLC Provincial", "PDLC Distrital"}, units.ArticulationOptions("municipalidad_distrital"))
	assert.Empty(t, units.ArticulationOptions("Mancomunidad"))
	assert.Empty(t, units.ArticulationOptions(""))
}
