package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkFields = Fields{
	Search: []string{"description", "counterparty", "number"},
	Date:   "date",
	Status: "status",
}

func sampleChecks() []Record {
	return []Record{
		{"id": float64(1), "description": "Pago proveedor ACME", "counterparty": "ACME SA", "number": float64(10234), "date": "2024-01-05", "status": "EN_CARTERA"},
		{"id": float64(2), "description": "Cobro cliente", "counterparty": "Lopez Hnos", "number": float64(10235), "date": "2024-01-20T10:00:00", "status": "DEPOSITADO"},
		{"id": float64(3), "description": nil, "counterparty": "Acme Norte", "number": "A-77", "date": "2024-02-01", "status": "EN_CARTERA"},
		{"id": float64(4), "description": "Sin fecha", "counterparty": "Varios", "number": float64(1), "date": "", "status": "RECHAZADO"},
		{"id": float64(5), "description": "Fecha rota", "counterparty": "Varios", "number": float64(2), "date": "31/12/2023", "status": "RECHAZADO"},
	}
}

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID())
	}
	return out
}

func TestApplySearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{Search: "  acme "})
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestApplySearchCoercesNonStrings(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{Search: "1023"})
	assert.Equal(t, []string{"1", "2"}, ids(got))

	got = Apply(sampleChecks(), checkFields, FilterState{Search: "a-77"})
	assert.Equal(t, []string{"3"}, ids(got))
}

func TestApplyDateRange(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{Dates: DateRange{Start: "2024-01-10"}})
	assert.Equal(t, []string{"2", "3"}, ids(got))

	got = Apply(sampleChecks(), checkFields, FilterState{Dates: DateRange{End: "2024-01-20"}})
	assert.Equal(t, []string{"1", "2"}, ids(got))

	got = Apply(sampleChecks(), checkFields, FilterState{Dates: DateRange{Start: "2024-01-20", End: "2024-01-20"}})
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestApplyKeepsUndatedRecordsWithoutRange(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{})
	assert.Len(t, got, 5)
}

func TestApplyMalformedBoundMatchesNothing(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{Dates: DateRange{Start: "ayer"}})
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestApplyStatus(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{Status: "RECHAZADO"})
	assert.Equal(t, []string{"4", "5"}, ids(got))

	got = Apply(sampleChecks(), checkFields, FilterState{Status: StatusAll})
	assert.Len(t, got, 5)

	got = Apply(sampleChecks(), Fields{Search: checkFields.Search}, FilterState{Status: "RECHAZADO"})
	assert.Len(t, got, 5, "status filter without a designated field is ignored")
}

func TestApplyCombinesPredicates(t *testing.T) {
	got := Apply(sampleChecks(), checkFields, FilterState{
		Search: "acme",
		Dates:  DateRange{Start: "2024-01-01", End: "2024-01-31"},
		Status: "EN_CARTERA",
	})
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestApplyIsPure(t *testing.T) {
	items := sampleChecks()
	before := make([]Record, len(items))
	for i, r := range items {
		before[i] = r.Clone()
	}
	state := FilterState{Search: "acme", Status: "EN_CARTERA"}

	first := Apply(items, checkFields, state)
	second := Apply(items, checkFields, state)

	require.Equal(t, first, second)
	require.Equal(t, before, items)
	require.Len(t, items, 5)
}

func TestApplyHandlesNilRecords(t *testing.T) {
	got := Apply([]Record{nil, {"id": "x"}}, checkFields, FilterState{})
	assert.Equal(t, []string{"x"}, ids(got))
}

func TestFilterStateActive(t *testing.T) {
	assert.False(t, FilterState{}.Active())
	assert.False(t, FilterState{Search: "  ", Status: StatusAll}.Active())
	assert.True(t, FilterState{Dates: DateRange{End: "2024-01-01"}}.Active())
}
