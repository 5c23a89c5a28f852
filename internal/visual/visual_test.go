package visual

import (
	"bytes"
	"errors"
	"testing"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
)

func sample(t *testing.T, withGap bool) *dataset.Dataset {
	t.Helper()
	flt := []dataset.Value{dataset.NumberValue(1), dataset.NumberValue(2.5), dataset.NumberValue(3.8), dataset.NumberValue(5.9)}
	if withGap {
		flt[2] = dataset.Null()
	}
	ds, err := dataset.New(
		&dataset.Column{Name: "id", Kind: dataset.Numeric, Values: []dataset.Value{dataset.NumberValue(0), dataset.NumberValue(1), dataset.NumberValue(2), dataset.NumberValue(3)}},
		&dataset.Column{Name: "str", Kind: dataset.String, Values: []dataset.Value{dataset.StringValue("a"), dataset.StringValue("b"), dataset.StringValue("a"), dataset.StringValue("c")}},
		&dataset.Column{Name: "flt", Kind: dataset.Numeric, Values: flt},
		&dataset.Column{Name: "int", Kind: dataset.Numeric, Values: []dataset.Value{dataset.NumberValue(100), dataset.NumberValue(200), dataset.NumberValue(300), dataset.NumberValue(-2)}},
		&dataset.Column{Name: dataset.OutlierColumn, Kind: dataset.Bool, Values: []dataset.Value{dataset.BoolValue(false), dataset.BoolValue(false), dataset.BoolValue(false), dataset.BoolValue(true)}},
	)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return ds
}

func TestRecommendFallsBackToContinuousPair(t *testing.T) {
	res := Recommender{}.Recommend(sample(t, false), nil, "")
	if res.Unavailable || res.MissingValues {
		t.Fatalf("flags = %+v", res)
	}
	if res.Spec.Mark != Scatter || res.Spec.X != "flt" || res.Spec.Y != "int" {
		t.Fatalf("spec = %+v", res.Spec)
	}
}

func TestRecommendHonoursIntentAndEnhance(t *testing.T) {
	res := Recommender{}.Recommend(sample(t, false), Intent{"str", "int"}, dataset.OutlierColumn)
	if res.Spec.Mark != Bar || res.Spec.X != "str" || res.Spec.Y != "int" {
		t.Fatalf("spec = %+v", res.Spec)
	}
	if res.Spec.Color != dataset.OutlierColumn || len(res.Spec.Columns) != 3 {
		t.Fatalf("color = %q columns %v", res.Spec.Color, res.Spec.Columns)
	}
	got := ExtractIntent(res.Spec)
	if len(got) != 2 || got[0] != "str" || got[1] != "int" {
		t.Fatalf("ExtractIntent = %v", got)
	}
	unknown := Recommender{}.Recommend(sample(t, false), Intent{"gone", "int"}, "duplicate")
	if unknown.Spec.X != "flt" || unknown.Spec.Color != "" {
		t.Fatalf("stale intent should fall back: %+v", unknown.Spec)
	}
}

func TestRecommendFlagsMissingValues(t *testing.T) {
	res := Recommender{}.Recommend(sample(t, true), nil, "")
	if !res.MissingValues {
		t.Fatalf("expected missing-value flag")
	}
}

func TestRecommendUnavailable(t *testing.T) {
	ds, _ := dataset.New(&dataset.Column{Name: "only", Kind: dataset.String, Values: []dataset.Value{dataset.StringValue("x")}})
	res := Recommender{}.Recommend(ds, nil, "")
	if !res.Unavailable {
		t.Fatalf("single text column should be unavailable")
	}
	if ExtractIntent(res.Spec) != nil {
		t.Fatalf("no intent from an empty spec")
	}
	if err := RenderPNG(ds, res.Spec, &bytes.Buffer{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRenderPNG(t *testing.T) {
	ds := sample(t, false)
	pngMagic := []byte("\x89PNG")
	for _, intent := range []Intent{nil, {"str", "int"}} {
		res := Recommender{}.Recommend(ds, intent, dataset.OutlierColumn)
		var buf bytes.Buffer
		if err := RenderPNG(ds, res.Spec, &buf); err != nil {
			t.Fatalf("RenderPNG(%s): %v", res.Spec.Mark, err)
		}
		if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
			t.Fatalf("%s output is not a PNG", res.Spec.Mark)
		}
	}
}
