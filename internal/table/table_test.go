package table

import (
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleTable() *Table {
	t := New()
	t.SetFloats("age", []float64{25, 40, 61})
	t.SetFloats("income", []float64{30000, 52000, 48000})
	t.SetStrings("city", []string{"oslo", "berlin", "oslo"})
	return t
}

func TestTable_ShapeAndColumns(t *testing.T) {
	tab := sampleTable()
	rows, cols := tab.Shape()
	if rows != 3 || cols != 3 {
		t.Fatalf("Shape() = (%d, %d), want (3, 3)", rows, cols)
	}
	want := []string{"age", "income", "city"}
	if diff := cmp.Diff(want, tab.Columns()); diff != "" {
		t.Fatalf("Columns() mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_MissingColumnPanics(t *testing.T) {
	tab := sampleTable()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for missing column")
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, `column "zzz" not found`) {
			t.Fatalf("panic = %v, want message naming the column", r)
		}
	}()
	tab.Floats("zzz")
}

func TestTable_CloneIsDeep(t *testing.T) {
	tab := sampleTable()
	clone := tab.Clone()
	clone.SetFloats("age", []float64{0, 0, 0})
	clone.Drop("city")

	if got := tab.Floats("age")[0]; got != 25 {
		t.Fatalf("original age[0] = %v after clone mutation, want 25", got)
	}
	if !tab.HasColumn("city") {
		t.Fatal("original lost a column after clone.Drop")
	}
}

func TestTable_FloatsCoercion(t *testing.T) {
	tab := New()
	tab.SetColumn("mixed", []any{int64(3), "4.5", nil, "abc", true})
	got := tab.Floats("mixed")

	if got[0] != 3 || got[1] != 4.5 || got[4] != 1 {
		t.Fatalf("coerced floats = %v", got)
	}
	if !math.IsNaN(got[2]) || !math.IsNaN(got[3]) {
		t.Fatalf("missing and non-numeric cells should be NaN, got %v", got)
	}
}

func TestTable_ColumnKind(t *testing.T) {
	tab := New()
	tab.SetColumn("ints", []any{int64(1), int64(2)})
	tab.SetColumn("floats", []any{1.5, nil})
	tab.SetColumn("promoted", []any{int64(1), 2.5})
	tab.SetColumn("mixed", []any{int64(1), "x"})
	tab.SetColumn("empty", []any{nil, nil})

	tests := []struct {
		col  string
		want Kind
	}{
		{"ints", KindInt},
		{"floats", KindFloat},
		{"promoted", KindFloat},
		{"mixed", KindMixed},
		{"empty", KindString},
	}
	for _, tt := range tests {
		if got := tab.ColumnKind(tt.col); got != tt.want {
			t.Errorf("ColumnKind(%q) = %v, want %v", tt.col, got, tt.want)
		}
	}
}

func TestTable_Stats(t *testing.T) {
	tab := New()
	tab.SetColumn("v", []any{int64(1), int64(1), nil, "x", int64(2)})

	if got := tab.MissingCount("v"); got != 1 {
		t.Fatalf("MissingCount = %d, want 1", got)
	}
	if got := tab.UniqueCount("v"); got != 3 {
		t.Fatalf("UniqueCount = %d, want 3", got)
	}
	counts := tab.ValueCounts("v")
	if counts["1"] != 2 || counts["x"] != 1 {
		t.Fatalf("ValueCounts = %v", counts)
	}
}

func TestDiff_SetDifference(t *testing.T) {
	before := sampleTable()
	after := before.Clone()
	after.SetFloats("age_bucket", []float64{0, 1, 2})
	after.SetFloats("ratio", []float64{1, 1, 1})
	after.Drop("age")

	added, removed := Diff(before, after)
	if diff := cmp.Diff([]string{"age_bucket", "ratio"}, added); diff != "" {
		t.Fatalf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"age"}, removed); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}

	// Identical snapshots produce empty deltas.
	added, removed = Diff(before, before.Clone())
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("Diff(x, x) = (%v, %v), want empty", added, removed)
	}

	if !sort.StringsAreSorted(added) || !sort.StringsAreSorted(removed) {
		t.Fatal("Diff output must be sorted")
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	in := "name,age,score,active\nalice,30,9.5,true\nbob,,7.1,false\n"
	tab, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if kind := tab.ColumnKind("age"); kind != KindInt {
		t.Fatalf("age kind = %v, want int64", kind)
	}
	if kind := tab.ColumnKind("score"); kind != KindFloat {
		t.Fatalf("score kind = %v, want float64", kind)
	}
	if kind := tab.ColumnKind("active"); kind != KindBool {
		t.Fatalf("active kind = %v, want bool", kind)
	}
	if got := tab.MissingCount("age"); got != 1 {
		t.Fatalf("empty cell should be missing, MissingCount = %d", got)
	}

	var out strings.Builder
	if err := tab.WriteCSV(&out); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got := out.String(); got != in {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", got, in)
	}
}
