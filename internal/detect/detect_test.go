package detect

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/isoforest"
)

func nums(vals ...float64) []dataset.Value {
	out := make([]dataset.Value, len(vals))
	for i, v := range vals {
		out[i] = dataset.NumberValue(v)
	}
	return out
}

func strs(vals ...string) []dataset.Value {
	out := make([]dataset.Value, len(vals))
	for i, v := range vals {
		out[i] = dataset.StringValue(v)
	}
	return out
}

func mustDataset(t *testing.T, cols ...*dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(cols...)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return ds
}

func duplicateFixture(t *testing.T) *dataset.Dataset {
	return mustDataset(t,
		&dataset.Column{Name: "id", Kind: dataset.Numeric, Values: nums(0, 1, 2, 3)},
		&dataset.Column{Name: "str", Kind: dataset.String, Values: strs("apple", "banana", "cherry", "banana")},
		&dataset.Column{Name: "flt", Kind: dataset.Numeric, Values: nums(1.0, 2.5, 3.8, 2.5)},
		&dataset.Column{Name: "int", Kind: dataset.Numeric, Values: nums(100, 200, 300, 200)},
	)
}

func missingFixture(t *testing.T) *dataset.Dataset {
	nan := math.NaN()
	return mustDataset(t,
		&dataset.Column{Name: "id", Kind: dataset.Numeric, Values: nums(nan, 1, 2, nan)},
		&dataset.Column{Name: "flt", Kind: dataset.Numeric, Values: nums(1.0, 2.5, 3.8, nan)},
		&dataset.Column{Name: "int", Kind: dataset.Numeric, Values: nums(100, nan, 300, 200)},
	)
}

func outlierFixture(t *testing.T) *dataset.Dataset {
	return mustDataset(t,
		&dataset.Column{Name: "id", Kind: dataset.Numeric, Values: nums(0, 1, 2, 3, 4, 5, 6)},
		&dataset.Column{Name: "str", Kind: dataset.String, Values: strs("apple", "banana", "cherry", "banana", "date", "elderberry", "fig")},
		&dataset.Column{Name: "flt", Kind: dataset.Numeric, Values: nums(1.0, 2.5, 3.8, 2.5, 5.9, 3.1, 0)},
		&dataset.Column{Name: "int", Kind: dataset.Numeric, Values: nums(100, 200, 300, 200, -2, 400, 250)},
	)
}

func columnMean(c *dataset.Column) float64 {
	return mean(c.Floats())
}

func TestDetectMissing(t *testing.T) {
	ds := missingFixture(t)
	rep, total := DetectMissing(ds)
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
	want := []int{2, 1, 1}
	for i, c := range rep {
		if c.Count != want[i] {
			t.Fatalf("report = %+v", rep)
		}
	}
	if _, again := DetectMissing(ds); again != total {
		t.Fatalf("detection not idempotent")
	}
	if MissingRows(ds).Len() != 3 {
		t.Fatalf("missing rows = %d, want 3", MissingRows(ds).Len())
	}
	complete := DropMissing(ds)
	if complete.Len() != 1 || complete.Column("int").Values[0].Num != 300 {
		t.Fatalf("complete rows = %d", complete.Len())
	}
}

func TestImputeSimple(t *testing.T) {
	ds := missingFixture(t)
	out, err := Impute(ds, MethodSimple, 0)
	if err != nil {
		t.Fatalf("Impute: %v", err)
	}
	if _, total := DetectMissing(out); total != 0 {
		t.Fatalf("missing after impute = %d", total)
	}
	if got := columnMean(out.Column("id")); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("id mean = %v, want 1.5", got)
	}
	if got := columnMean(out.Column("int")); math.Abs(got-200) > 1e-9 {
		t.Fatalf("int mean = %v, want 200", got)
	}
	if _, total := DetectMissing(ds); total != 4 {
		t.Fatalf("input was mutated")
	}
}

func TestImputeSimpleColumnMeans(t *testing.T) {
	nan := math.NaN()
	ds, err := dataset.New(
		&dataset.Column{Name: "a", Kind: dataset.Numeric, Values: nums(1, 2, nan, 4)},
		&dataset.Column{Name: "b", Kind: dataset.Numeric, Values: nums(nan, 2, 3, 4)},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rep, total := DetectMissing(ds)
	if total != 2 || rep[0].Count != 1 || rep[1].Count != 1 {
		t.Fatalf("missing = %d %+v, want 2 with a:1 b:1", total, rep)
	}
	out, err := Impute(ds, MethodSimple, 0)
	if err != nil {
		t.Fatalf("Impute: %v", err)
	}
	tests := []struct {
		col  string
		row  int
		want float64
	}{
		{"a", 2, 7.0 / 3},
		{"b", 0, 3},
		{"a", 0, 1},
	}
	for _, tc := range tests {
		if got := out.Column(tc.col).Values[tc.row].Num; math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s[%d] = %v, want %v", tc.col, tc.row, got, tc.want)
		}
	}
	if _, left := DetectMissing(out); left != 0 {
		t.Fatalf("missing after impute = %d", left)
	}
}

func TestImputeKNN(t *testing.T) {
	out, err := Impute(missingFixture(t), MethodKNN, 2)
	if err != nil {
		t.Fatalf("Impute: %v", err)
	}
	if _, total := DetectMissing(out); total != 0 {
		t.Fatalf("missing after impute = %d", total)
	}
	id := out.Column("id")
	if id.Values[0].Num != 1.5 || id.Values[3].Num != 2 {
		t.Fatalf("imputed ids = %v, %v", id.Values[0].Num, id.Values[3].Num)
	}
	if got := columnMean(id); math.Abs(got-1.625) > 1e-9 {
		t.Fatalf("id mean = %v, want 1.625", got)
	}
}

func TestImputeRejectsEmptyNumericColumn(t *testing.T) {
	ds := mustDataset(t,
		&dataset.Column{Name: "a", Kind: dataset.Numeric, Values: nums(1, 2)},
		&dataset.Column{Name: "b", Kind: dataset.Numeric, Values: []dataset.Value{dataset.Null(), dataset.Null()}},
	)
	_, err := Impute(ds, MethodSimple, 0)
	var de *DataError
	if !errors.As(err, &de) || de.Column != "b" {
		t.Fatalf("err = %v, want DataError on b", err)
	}
}

func TestImputeLeavesStringsAlone(t *testing.T) {
	ds := mustDataset(t,
		&dataset.Column{Name: "n", Kind: dataset.Numeric, Values: []dataset.Value{dataset.NumberValue(2), dataset.Null()}},
		&dataset.Column{Name: "s", Kind: dataset.String, Values: []dataset.Value{dataset.Null(), dataset.StringValue("x")}},
	)
	out, err := Impute(ds, ParseMethod("unknown"), 0)
	if err != nil {
		t.Fatalf("Impute: %v", err)
	}
	if _, total := DetectMissing(out); total != 1 {
		t.Fatalf("missing = %d, want 1 string gap", total)
	}
	if ParseMethod("knn") != MethodKNN {
		t.Fatalf("ParseMethod is case-insensitive")
	}
}

func TestDetectDuplicates(t *testing.T) {
	ds := duplicateFixture(t)
	first, n := DetectDuplicates(ds, KeepFirst, nil)
	if n != 1 {
		t.Fatalf("first mode count = %d, want 1", n)
	}
	flags := first.Flags(dataset.DuplicateColumn)
	if !flags[3] || flags[1] {
		t.Fatalf("first flags = %v", flags)
	}
	_, all := DetectDuplicates(ds, MarkAll, nil)
	if all != 2 {
		t.Fatalf("mark-all count = %d, want 2", all)
	}
	if _, withID := DetectDuplicates(ds, KeepFirst, []string{}); withID != 0 {
		t.Fatalf("id should make rows distinct when not ignored")
	}
	// a stale marker must not affect the comparison
	again, n2 := DetectDuplicates(first, KeepFirst, nil)
	if n2 != 1 || again.Width() != first.Width() {
		t.Fatalf("re-detect = %d width %d", n2, again.Width())
	}
}

func TestMarkAllCoversFirst(t *testing.T) {
	tests := []struct {
		name       string
		x, y       []float64
		first, all int
	}{
		{"no duplicates", []float64{1, 2, 3}, []float64{4, 5, 6}, 0, 0},
		{"one pair", []float64{1, 2, 1}, []float64{4, 5, 4}, 1, 2},
		{"triple", []float64{1, 1, 1, 2}, []float64{3, 3, 3, 4}, 2, 3},
		{"two groups", []float64{1, 2, 1, 2, 5}, []float64{7, 8, 7, 8, 9}, 2, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := dataset.New(
				&dataset.Column{Name: "x", Kind: dataset.Numeric, Values: nums(tc.x...)},
				&dataset.Column{Name: "y", Kind: dataset.Numeric, Values: nums(tc.y...)},
			)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, first := DetectDuplicates(ds, KeepFirst, nil)
			_, all := DetectDuplicates(ds, MarkAll, nil)
			if first != tc.first || all != tc.all {
				t.Fatalf("first=%d all=%d, want %d %d", first, all, tc.first, tc.all)
			}
			if all < first {
				t.Fatalf("mark-all %d < first %d", all, first)
			}
		})
	}
}

func TestHighlightAndDropDuplicates(t *testing.T) {
	ds := duplicateFixture(t)
	hl := HighlightDuplicates(ds, nil)
	if hl.Len() != 2 {
		t.Fatalf("highlight rows = %d", hl.Len())
	}
	for i := 0; i < hl.Len(); i++ {
		if hl.Column("str").Values[i].Str != "banana" {
			t.Fatalf("unexpected highlighted row %v", hl.Row(i))
		}
	}
	dd := DropDuplicates(ds, nil)
	if dd.Len() != 3 || dd.Has(dataset.DuplicateColumn) {
		t.Fatalf("drop = %d rows, cols %v", dd.Len(), dd.Names())
	}
}

func TestOutlierScenario(t *testing.T) {
	ds := outlierFixture(t)
	opt := OutlierOptions{Forest: isoforest.DefaultOptions()}
	res, err := TrainIsolationForest(ds, 0.2, []string{"flt", "int"}, opt)
	if err != nil {
		t.Fatalf("TrainIsolationForest: %v", err)
	}
	if res.Count < 1 || res.Count > 2 {
		t.Fatalf("count = %d, want 1..2", res.Count)
	}
	flags := res.Data.Flags(dataset.OutlierColumn)
	if !flags[4] {
		t.Fatalf("extreme row not flagged: %v (scores %v)", flags, res.Scores)
	}
	if flags[1] || flags[3] {
		t.Fatalf("identical central rows flagged: %v", flags)
	}
	if len(res.Intent) != 2 || res.Intent[0] != "flt" {
		t.Fatalf("intent = %v", res.Intent)
	}

	history := []float64{0.2}
	prev := res.Count
	for i := 0; i < 3; i++ {
		c := DetermineContamination(history, true)
		history = append(history, c)
		next, err := TrainIsolationForest(res.Data, c, nil, opt)
		if err != nil {
			t.Fatalf("more %d: %v", i, err)
		}
		if next.Count < prev {
			t.Fatalf("count fell from %d to %d at contamination %v", prev, next.Count, c)
		}
		prev = next.Count
	}

	again, _ := TrainIsolationForest(ds, 0.2, nil, opt)
	if again.Count != res.Count {
		t.Fatalf("same seed gave %d then %d", res.Count, again.Count)
	}
}

func TestContaminationClampAndDrop(t *testing.T) {
	for _, c := range []float64{0, -1, 0.6, math.NaN()} {
		if got := ClampContamination(c); got != FallbackContamination {
			t.Errorf("ClampContamination(%v) = %v", c, got)
		}
	}
	res, err := TrainIsolationForest(outlierFixture(t), 7, nil, OutlierOptions{})
	if err != nil {
		t.Fatalf("TrainIsolationForest: %v", err)
	}
	if res.Contamination != FallbackContamination {
		t.Fatalf("contamination = %v", res.Contamination)
	}
	kept := DropOutliers(res.Data)
	if kept.Len() != 7-res.Count || kept.Has(dataset.OutlierColumn) {
		t.Fatalf("drop = %d rows, cols %v", kept.Len(), kept.Names())
	}
}

func TestEncodeFeatures(t *testing.T) {
	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := mustDataset(t,
		&dataset.Column{Name: "id", Kind: dataset.Numeric, Values: nums(1, 2)},
		&dataset.Column{Name: "when", Kind: dataset.Datetime, Values: []dataset.Value{dataset.TimeValue(day), dataset.TimeValue(day.Add(time.Hour))}},
		&dataset.Column{Name: "ok", Kind: dataset.Bool, Values: []dataset.Value{dataset.BoolValue(true), dataset.BoolValue(false)}},
		&dataset.Column{Name: "2021", Kind: dataset.String, Values: strs("2019-05", "2020 Q1")},
		&dataset.Column{Name: "tag", Kind: dataset.String, Values: []dataset.Value{dataset.StringValue("b"), dataset.Null()}},
		&dataset.Column{Name: dataset.DuplicateColumn, Kind: dataset.Bool, Values: []dataset.Value{dataset.BoolValue(false), dataset.BoolValue(true)}},
	)
	x, names, err := EncodeFeatures(ds, nil)
	if err != nil {
		t.Fatalf("EncodeFeatures: %v", err)
	}
	if len(names) != 4 || names[0] != "when" {
		t.Fatalf("names = %v", names)
	}
	if x[1][0]-x[0][0] != 3600 || x[0][1] != 1 || x[0][2] != 2019 || x[1][2] != 2020 {
		t.Fatalf("rows = %v", x)
	}
	if x[0][3] != 0 || x[1][3] != 1 {
		t.Fatalf("null label = %v", x)
	}

	bad := mustDataset(t, &dataset.Column{Name: "v", Kind: dataset.Numeric, Values: []dataset.Value{dataset.NumberValue(1), dataset.Null()}})
	var fe *FeatureEncodingError
	if _, _, err := EncodeFeatures(bad, nil); !errors.As(err, &fe) || fe.Column != "v" {
		t.Fatalf("err = %v, want FeatureEncodingError on v", err)
	}
	year := mustDataset(t, &dataset.Column{Name: "2020-01", Kind: dataset.String, Values: strs("abcd")})
	if _, _, err := EncodeFeatures(year, nil); !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FeatureEncodingError for year prefix", err)
	}
	if _, _, err := EncodeFeatures(mustDataset(t, &dataset.Column{Name: "id", Values: nums(1)}), nil); !errors.As(err, &fe) {
		t.Fatalf("identifier-only dataset should not encode")
	}
}

func TestDetermineContamination(t *testing.T) {
	cases := []struct {
		name    string
		history []float64
		more    bool
		want    float64
	}{
		{"empty", nil, true, 0.15},
		{"empty less", nil, false, 0.15},
		{"more", []float64{0.15}, true, 0.21},
		{"cap", []float64{0.4}, true, 0.5},
		{"less", []float64{0.15}, false, 0.09},
		{"floor", []float64{0.01}, false, 0.01},
		{"rounded", []float64{0.21}, true, 0.294},
		{"tail only", []float64{0.5, 0.1}, true, 0.14},
	}
	for _, c := range cases {
		orig := append([]float64(nil), c.history...)
		if got := DetermineContamination(c.history, c.more); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
		for i := range orig {
			if orig[i] != c.history[i] {
				t.Errorf("%s: history mutated", c.name)
			}
		}
	}
}

func TestDirtiness(t *testing.T) {
	orig := duplicateFixture(t)
	if got := Dirtiness(orig, orig, nil); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("dirtiness = %v, want 0.25", got)
	}
	clean := DropDuplicates(orig, nil)
	if got := Dirtiness(orig, clean, nil); got != 0 {
		t.Fatalf("clean dirtiness = %v", got)
	}
	shifted := clean.Clone()
	shifted.Column("int").Values[0] = dataset.NumberValue(1000)
	if got := Dirtiness(orig, shifted, nil); math.Abs(got-1.0/3) > 1e-9 {
		t.Fatalf("out of range dirtiness = %v", got)
	}
}
