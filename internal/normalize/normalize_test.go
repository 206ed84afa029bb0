package normalize

import (
	"math"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountString(t *testing.T) {
	tests := []struct {
		input     string
		want      float64
		defaulted bool
	}{
		{"₪1,234.56", 1234.56, false},
		{"-1.234,56", -1234.56, false},
		{"12,50", 12.5, false},
		{"1,234", 1234, false},
		{"1,234,56", 1234.56, false},
		{"1.234.567", 1234567, false},
		{"100.00 NIS", 100, false},
		{"50.00-", -50, false},
		{"−75", -75, false},
		{"$ 3.5", 3.5, false},
		{"0.00", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmountString(tt.input)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
			assert.Equal(t, tt.defaulted, got.Defaulted)
		})
	}
}

func TestParseAmount_CellKinds(t *testing.T) {
	assert.Equal(t, Result[float64]{Value: -7.25}, ParseAmount(grid.NumberCell(-7.25)))
	assert.Equal(t, Result[float64]{Defaulted: true}, ParseAmount(grid.Cell{}))
	assert.Equal(t, Result[float64]{Defaulted: true}, ParseAmount(grid.DateCell(time.Now())))
	assert.InDelta(t, 99.9, ParseAmount(grid.TextCell("99.90")).Value, 1e-9)
}

func TestParseAmount_NonFiniteNumber(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got := ParseAmount(grid.NumberCell(v))
		assert.Equal(t, Result[float64]{Defaulted: true}, got, "input %v", v)
	}
}

var hostileAmounts = []string{
	"NaN", "nan", "Inf", "-Infinity", "+inf", "1e400", "-1e999",
	"0x1p3", "1_000", ".", ",", ",,,", "...", "-.-", "1.2.3,4,5", "1,2.3,4",
	"--5", "5--", "₪", "€€", "\x00", "\uFFFD", "١٢٣", "12\n34",
	strings.Repeat("9", 400), strings.Repeat("9", 400) + ".5", strings.Repeat(",", 1000),
}

func TestParseAmountString_HostileInput(t *testing.T) {
	for _, s := range hostileAmounts {
		var got Result[float64]
		require.NotPanics(t, func() { got = ParseAmountString(s) }, "input %q", s)
		assert.False(t, math.IsNaN(got.Value) || math.IsInf(got.Value, 0), "input %q gave %v", s, got.Value)
		if got.Defaulted {
			assert.Zero(t, got.Value, "input %q", s)
		}
	}
}

func FuzzParseAmountString(f *testing.F) {
	for _, s := range append(hostileAmounts, "₪1,234.56", "-1.234,56", "50.00-") {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		got := ParseAmountString(s)
		if math.IsNaN(got.Value) || math.IsInf(got.Value, 0) {
			t.Fatalf("ParseAmountString(%q) = %v", s, got.Value)
		}
		if got.Defaulted && got.Value != 0 {
			t.Fatalf("ParseAmountString(%q) defaulted with value %v", s, got.Value)
		}
	})
}

func TestParseDates_Formats(t *testing.T) {
	tests := []struct {
		input string
		want  civil.Date
	}{
		{"15-03-2024", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"15/03/2024", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"03/04/2024", civil.Date{Year: 2024, Month: time.April, Day: 3}},
		{"2024-03-15", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"15.03.2024", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"2024/03/15", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"15/03/24", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"2024-03-15 10:30:00", civil.Date{Year: 2024, Month: time.March, Day: 15}},
		{"15 Mar 2024", civil.Date{Year: 2024, Month: time.March, Day: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDate(grid.TextCell(tt.input))
			require.False(t, got.Defaulted)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestParseDates_Unparseable(t *testing.T) {
	got := ParseDates([]grid.Cell{grid.TextCell("not a date"), {}, grid.TextCell("31/31/2024")})
	for i, r := range got {
		assert.True(t, r.Defaulted, "row %d", i)
		assert.Equal(t, civil.Date{}, r.Value, "row %d", i)
	}
}

func TestParseDates_DateCellsPassThrough(t *testing.T) {
	ts := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	got := ParseDates([]grid.Cell{grid.DateCell(ts)})
	require.Len(t, got, 1)
	assert.False(t, got[0].Defaulted)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.December, Day: 31}, got[0].Value)
}

func TestParseDates_NoReparse(t *testing.T) {
	// 05/06/2024 is parsed day-first by an earlier layout; the month-first
	// layout later in the list must not overwrite it.
	cells := []grid.Cell{grid.TextCell("05/06/2024"), grid.TextCell("12/25/2024")}
	got := ParseDates(cells)

	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 5}, got[0].Value)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.December, Day: 25}, got[1].Value)
}

func TestParseDates_Idempotent(t *testing.T) {
	first := ParseDates([]grid.Cell{grid.TextCell("01.02.2024"), grid.TextCell("2024-11-30")})

	cells := make([]grid.Cell, len(first))
	for i, r := range first {
		cells[i] = grid.DateCell(r.Value.In(time.UTC))
	}
	second := ParseDates(cells)

	assert.Equal(t, first, second)
}

func TestText(t *testing.T) {
	assert.Equal(t, Result[string]{Value: "Coffee"}, Text("  Coffee ", "Unknown"))
	assert.Equal(t, Result[string]{Value: "Unknown", Defaulted: true}, Text("NaN", "Unknown"))
	assert.Equal(t, Result[string]{Value: "Unknown", Defaulted: true}, Text("None", "Unknown"))
	assert.Equal(t, Result[string]{Value: "Unknown", Defaulted: true}, Text("  ", "Unknown"))
}
