package normalize_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ceplan/itpei/normalize"
)

// =============================================================================
// CODES
// =============================================================================

func TestCode_NumericVariantsCollapse(t *testing.T) {
	for _, in := range []any{"23.0", "23", " 23 ", 23, 23.0, int64(23), decimal.NewFromInt(23), "23.9"} {
		assert.Equal(t, "23", normalize.Code(in), "input %#v", in)
	}
}

func TestCode_NonNumericIsTrimmed(t *testing.T) {
	assert.Equal(t, "UE-001", normalize.Code("  UE-001 "))
	assert.Equal(t, "", normalize.Code(nil))
	assert.Equal(t, "", normalize.Code("   "))
	assert.Equal(t, "", normalize.Code(math.NaN()))
}

func TestCode_Idempotent(t *testing.T) {
	for _, in := range []any{"23.0", " 007 ", "1e3", "abc ", "-0.5", 150101.0, "", nil, "12 34"} {
		once := normalize.Code(in)
		assert.Equal(t, once, normalize.Code(once), "input %#v", in)
	}
}

// =============================================================================
// STRINGS AND INTEGERS
// =============================================================================

func TestString(t *testing.T) {
	assert.Equal(t, "hola", normalize.String("  hola\t"))
	assert.Equal(t, "", normalize.String(nil))
	assert.Equal(t, "2024-01-10", normalize.String(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "3", normalize.String(3))
}

func TestString_TypedNilPointersAreMissing(t *testing.T) {
	for _, in := range []any{(*time.Time)(nil), (*decimal.Decimal)(nil), (*string)(nil), (*int)(nil)} {
		assert.NotPanics(t, func() {
			assert.Equal(t, "", normalize.String(in), "input %#v", in)
		})
	}

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-10", normalize.String(&day))
}

func TestInt(t *testing.T) {
	n, ok := normalize.Int("4.0")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = normalize.Int(2.9)
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = normalize.Int("cuatro")
	assert.False(t, ok, "non-numeric is absent, not zero")

	_, ok = normalize.Int(nil)
	assert.False(t, ok)

	assert.Equal(t, 0, normalize.IntOr("", 0))
	assert.Equal(t, 7, normalize.IntOr(" 7 ", 0))
}

func TestInt_OutOfRangeIsAbsent(t *testing.T) {
	for _, in := range []any{"1e30", "-1e30", 1e30, "99999999999999999999"} {
		_, ok := normalize.Int(in)
		assert.False(t, ok, "input %#v", in)
	}

	n, ok := normalize.Int("9223372036854775807")
	assert.True(t, ok)
	assert.Equal(t, math.MaxInt64, n)
}

// =============================================================================
// DATES
// =============================================================================

func TestDate_Layouts(t *testing.T) {
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{
		"2024-01-10",
		"2024-01-10T15:30:00Z",
		"2024-01-10 08:00:00",
		"2024/01/10",
		"10/01/2024",
		"10-01-2024",
		"10-01-24",
		time.Date(2024, 1, 10, 23, 59, 0, 0, time.FixedZone("PET", -5*3600)),
		45301.0,
	} {
		got, ok := normalize.Date(in)
		if assert.True(t, ok, "input %#v", in) {
			assert.Equal(t, want, got, "input %#v", in)
		}
	}
}

func TestDate_TwoDigitYearIsDayFirst(t *testing.T) {
	got, ok := normalize.Date("03-04-24")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), got)
}

func TestDate_BlankOrGarbageIsAbsent(t *testing.T) {
	for _, in := range []any{nil, "", "  ", "no registrado", "2024-13-45", -3.0, time.Time{}, (*time.Time)(nil)} {
		_, ok := normalize.Date(in)
		assert.False(t, ok, "input %#v", in)
	}
}

// =============================================================================
// CHOICES
// =============================================================================

var validity = map[string]string{
	"sí": "Sí",
	"si": "Sí",
	"no": "No",
}

func TestChoice_CaseAndAccentTolerant(t *testing.T) {
	assert.Equal(t, "Sí", normalize.Choice("SI", validity, "No"))
	assert.Equal(t, "Sí", normalize.Choice("Sí", validity, "No"))
	assert.Equal(t, "Sí", normalize.Choice(" sÍ ", validity, "No"))
	assert.Equal(t, "No", normalize.Choice("NO", validity, "Sí"))
}

func TestChoice_UnmatchedReturnsDefault(t *testing.T) {
	assert.Equal(t, "No", normalize.Choice("quizás", validity, "No"))
	assert.Equal(t, "whatever", normalize.Choice(nil, validity, "whatever"))
}

func TestChoices_UnderscoresAndSpaces(t *testing.T) {
	status := normalize.NewChoices(map[string]string{
		"emitido":    "Emitido",
		"en proceso": "En proceso",
	})
	assert.Equal(t, "En proceso", status.Match("EN_PROCESO", ""))
	assert.Equal(t, "En proceso", status.Match("en    proceso", ""))
	assert.Equal(t, []string{"Emitido", "En proceso"}, status.Values())

	_, ok := status.Lookup("archivado")
	assert.False(t, ok)
}

func TestChoices_AccentOnlyInTable(t *testing.T) {
	stage := normalize.NewChoices(map[string]string{
		"revisión dncp": "Revisión DNCP",
	})
	assert.Equal(t, "Revisión DNCP", stage.Match("revision_dncp", ""))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "subsanacion del pliego", normalize.Fold("subsanación del pliego"))
	assert.Equal(t, "Peru", normalize.Fold("Perú"))
}
