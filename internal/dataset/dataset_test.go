package dataset

import (
	"math"
	"testing"
	"time"
)

func fruitDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New(
		&Column{Name: "id", Kind: Numeric, Values: []Value{NumberValue(0), NumberValue(1), NumberValue(2), NumberValue(3)}},
		&Column{Name: "str", Kind: String, Values: []Value{StringValue("apple"), StringValue("banana"), StringValue("cherry"), StringValue("banana")}},
		&Column{Name: "flt", Kind: Numeric, Values: []Value{NumberValue(1.0), NumberValue(2.5), NumberValue(3.8), NumberValue(2.5)}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ds
}

func TestNewRejectsRaggedColumns(t *testing.T) {
	_, err := New(
		&Column{Name: "a", Values: []Value{NumberValue(1)}},
		&Column{Name: "b", Values: []Value{NumberValue(1), NumberValue(2)}},
	)
	if err == nil {
		t.Fatalf("expected error for ragged columns")
	}
}

func TestNaNIsNull(t *testing.T) {
	if NumberValue(math.NaN()).Valid {
		t.Fatalf("NaN must be null")
	}
}

func TestCloneIsDeep(t *testing.T) {
	ds := fruitDataset(t)
	cp := ds.Clone()
	cp.Column("flt").Values[0] = NumberValue(99)
	if ds.Column("flt").Values[0].Num != 1.0 {
		t.Fatalf("clone shares storage with original")
	}
}

func TestFilterDropAndRowKey(t *testing.T) {
	ds := fruitDataset(t)
	skip := map[string]bool{"id": true}
	if ds.RowKey(1, skip) != ds.RowKey(3, skip) {
		t.Fatalf("rows 1 and 3 should share a key without id")
	}
	if ds.RowKey(1, nil) == ds.RowKey(3, nil) {
		t.Fatalf("rows 1 and 3 differ by id")
	}
	odd := ds.Filter(func(i int) bool { return i%2 == 1 })
	if odd.Len() != 2 || odd.Column("id").Values[1].Num != 3 {
		t.Fatalf("filter = %#v", odd.Row(1))
	}
	narrow := ds.Drop("id", "missing")
	if narrow.Width() != 2 || narrow.Has("id") {
		t.Fatalf("drop left %v", narrow.Names())
	}
	if ds.Width() != 3 {
		t.Fatalf("drop mutated the receiver")
	}
}

func TestSortStableNullsLast(t *testing.T) {
	ds, err := New(
		&Column{Name: "k", Kind: Numeric, Values: []Value{NumberValue(2), Null(), NumberValue(1), NumberValue(2)}},
		&Column{Name: "tag", Kind: String, Values: []Value{StringValue("a"), StringValue("b"), StringValue("c"), StringValue("d")}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sorted := ds.SortStable("k", "unknown")
	var got []string
	for i := 0; i < sorted.Len(); i++ {
		got = append(got, sorted.Column("tag").Values[i].Str)
	}
	want := []string{"c", "a", "d", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSetColumnAndFlags(t *testing.T) {
	ds := fruitDataset(t)
	flags := &Column{Name: DuplicateColumn, Kind: Bool, Values: []Value{BoolValue(false), BoolValue(false), BoolValue(false), BoolValue(true)}}
	if err := ds.SetColumn(flags); err != nil {
		t.Fatalf("SetColumn: %v", err)
	}
	if err := ds.SetColumn(&Column{Name: "bad", Values: []Value{Null()}}); err == nil {
		t.Fatalf("expected length error")
	}
	got := ds.Flags(DuplicateColumn)
	if len(got) != 4 || !got[3] || got[0] {
		t.Fatalf("flags = %v", got)
	}
	if ds.Flags(OutlierColumn) != nil {
		t.Fatalf("absent marker should give nil flags")
	}
	if !IsMarker(OutlierColumn) || IsMarker("id") {
		t.Fatalf("IsMarker misclassified")
	}
}

func TestFormat(t *testing.T) {
	day := time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		v    Value
		k    Kind
		want string
	}{
		{NumberValue(2.5), Numeric, "2.5"},
		{NumberValue(100), Numeric, "100"},
		{BoolValue(true), Bool, "true"},
		{TimeValue(day), Datetime, "2021-03-04"},
		{TimeValue(day.Add(90 * time.Minute)), Datetime, "2021-03-04T01:30:00Z"},
		{Null(), String, ""},
	}
	for _, c := range cases {
		if got := c.v.Format(c.k); got != c.want {
			t.Errorf("Format(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		nf   NumberFormat
		want float64
		ok   bool
	}{
		{"2.5", NumberFormat{}, 2.5, true},
		{"0,5", NumberFormat{}, 0.5, true},
		{"1.000,0", NumberFormat{}, 1000, true},
		{"1,234.5", NumberFormat{}, 1234.5, true},
		{"45%", NumberFormat{}, 45, true},
		{"1,5", NumberFormat{DecimalSeparator: ','}, 1.5, true},
		{"1.000,5", NumberFormat{DecimalSeparator: ',', ThousandsSeparator: '.'}, 1000.5, true},
		{"apple", NumberFormat{}, 0, false},
		{"inf", NumberFormat{}, 0, false},
		{"", NumberFormat{}, 0, false},
	}
	for _, c := range cases {
		got, ok := ParseNumber(c.in, c.nf)
		if ok != c.ok || (ok && math.Abs(got-c.want) > 1e-9) {
			t.Errorf("ParseNumber(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseTimeAndLooksLikeDate(t *testing.T) {
	if _, ok := ParseTime("2021-03-04"); !ok {
		t.Fatalf("iso date should parse")
	}
	if got, ok := ParseTime("03/04/2021"); !ok || got.Month() != time.March {
		t.Fatalf("month-first date = %v,%v", got, ok)
	}
	if _, ok := ParseTime("banana"); ok {
		t.Fatalf("banana parsed as date")
	}
	for _, h := range []string{"2021", "2021-03", "2021-03-04"} {
		if !LooksLikeDate(h) {
			t.Errorf("LooksLikeDate(%q) = false", h)
		}
	}
	if LooksLikeDate("price") {
		t.Fatalf("price looks like a date")
	}
}

func TestRowKeyDistinguishesRows(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b []Value // cells of the two rows, one per column
	}{
		{
			name: "separator inside a cell",
			a:    []Value{StringValue("x\x1fy"), StringValue("z")},
			b:    []Value{StringValue("x"), StringValue("y\x1fz")},
		},
		{
			name: "sub-second datetimes",
			a:    []Value{TimeValue(base)},
			b:    []Value{TimeValue(base.Add(250 * time.Millisecond))},
		},
		{
			name: "null against marker text",
			a:    []Value{Null()},
			b:    []Value{StringValue("-;")},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cols := make([]*Column, len(tc.a))
			for j := range tc.a {
				kind := String
				if !tc.a[j].T.IsZero() {
					kind = Datetime
				}
				cols[j] = &Column{Name: string(rune('a' + j)), Kind: kind, Values: []Value{tc.a[j], tc.b[j]}}
			}
			ds, err := New(cols...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if ds.RowKey(0, nil) == ds.RowKey(1, nil) {
				t.Fatalf("rows share key %q", ds.RowKey(0, nil))
			}
		})
	}
}
