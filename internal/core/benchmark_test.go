package core

import (
	"fmt"
	"strings"
	"testing"
)

// benchCSV builds a rows x 4 table with a numeric, text, boolean and date
// column. Every seventh row has a missing numeric cell.
func benchCSV(rows int) []byte {
	var sb strings.Builder
	sb.WriteString("amount,region,active,booked\n")
	regions := []string{"north", "south", "east", "west"}
	for i := 0; i < rows; i++ {
		amount := fmt.Sprintf("%d.%02d", i%1000, i%100)
		if i%7 == 0 {
			amount = ""
		}
		fmt.Fprintf(&sb, "%s,%s,%t,2024-%02d-%02d\n", amount, regions[i%4], i%2 == 0, i%12+1, i%28+1)
	}
	return []byte(sb.String())
}

func benchTable(b *testing.B, rows int) *Table {
	b.Helper()
	t, err := Parse(benchCSV(rows), ".csv")
	if err != nil {
		b.Fatal(err)
	}
	return t
}

// ============================================================================
// Conversion Benchmarks
// ============================================================================

// BenchmarkParseNumber covers the hot path of dtype inference.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{"123", "-456.78", "1.5e3", "  999.99  ", "north"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			parseNumber(tc)
		}
	}
}

// BenchmarkParseDate tries formats in order, so late matches cost the most.
func BenchmarkParseDate(b *testing.B) {
	testCases := []string{"2024-01-15", "01/15/2024", "Jan 15, 2024", "1/5/24", "not a date"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			parseDate(tc)
		}
	}
}

// ============================================================================
// Codec Benchmarks
// ============================================================================

func BenchmarkParseCSV(b *testing.B) {
	for _, rows := range []int{100, 10000} {
		data := benchCSV(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := Parse(data, ".csv"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSerializeRoundTrip is the per-operation storage overhead.
func BenchmarkSerializeRoundTrip(b *testing.B) {
	t := benchTable(b, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := Serialize(t)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := Deserialize(s); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Operation Benchmarks
// ============================================================================

func BenchmarkFilter(b *testing.B) {
	t := benchTable(b, 10000)
	specs := []FilterSpec{
		{Column: "amount", Operator: OpGreater, Value: "500"},
		{Column: "region", Operator: OpContains, Value: "th"},
		{Column: "active", Operator: OpEqual, Value: "true"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, spec := range specs {
			if _, _, err := Filter(t, spec, FallbackText); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkFillMissing(b *testing.B) {
	t := benchTable(b, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := FillMissing(t, FillOptions{Strategy: FillMedian, Columns: []string{"amount"}}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeOneHot(b *testing.B) {
	t := benchTable(b, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(t, EncodeOneHot, []string{"region"}); err != nil {
			b.Fatal(err)
		}
	}
}
