package syntax

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func literalOf(t *testing.T, expr string) (any, error) {
	t.Helper()

	mod, err := Parse("x = " + expr + "\n")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", expr, err)
	}
	assign, ok := mod.Body[0].(*AssignStmt)
	if !ok {
		t.Fatalf("expected *AssignStmt, got %T", mod.Body[0])
	}
	return Literal(assign.Value)
}

func TestLiteral_Values(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{`'hi'`, "hi"},
		{`"a\tb"`, "a\tb"},
		{`r'a\n'`, `a\n`},
		{`'é'`, "é"},
		{`'a' 'b'`, "ab"},
		{`'\N{EM DASH}'`, "\u2014"},
		{`'caf\N{latin small letter e with acute}'`, "caf\u00e9"},
		{`'\N{CJK UNIFIED IDEOGRAPH-4E2D}'`, "\u4e2d"},
		{`b'\N{EM DASH}'`, []byte(`\N{EM DASH}`)},
		{`b'ab'`, []byte("ab")},
		{`42`, int64(42)},
		{`-7`, int64(-7)},
		{`+7`, int64(7)},
		{`-0`, int64(0)},
		{`0x1F`, int64(31)},
		{`0o17`, int64(15)},
		{`0b101`, int64(5)},
		{`1_000`, int64(1000)},
		{`3.5`, 3.5},
		{`-2.5e3`, -2500.0},
		{`.5`, 0.5},
		{`1.`, 1.0},
		{`True`, true},
		{`False`, false},
		{`None`, nil},
		{`[1, 'a', None]`, []any{int64(1), "a", nil}},
		{`[]`, []any{}},
		{`(1, 2)`, []any{int64(1), int64(2)}},
		{`()`, []any{}},
		{`{1, 1.0, 2}`, []any{int64(1), int64(2)}},
		{`set()`, []any{}},
		{`{}`, map[string]any{}},
		{`{'a': 1, 2: [True]}`, map[string]any{"a": int64(1), "2": []any{true}}},
		{`{1.5: 0, None: 'n'}`, map[string]any{"1.5": int64(0), "None": "n"}},
		{`{'nested': {'k': [1.0, -2]}}`, map[string]any{"nested": map[string]any{"k": []any{1.0, int64(-2)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := literalOf(t, tt.expr)
			if err != nil {
				t.Fatalf("Literal(%s) failed: %v", tt.expr, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Literal(%s) mismatch (-want +got):\n%s", tt.expr, diff)
			}
		})
	}
}

func TestLiteral_Overflow(t *testing.T) {
	got, err := literalOf(t, "1e400")
	if err != nil {
		t.Fatalf("Literal failed: %v", err)
	}
	if f, ok := got.(float64); !ok || !math.IsInf(f, 1) {
		t.Errorf("expected +Inf, got %v", got)
	}

	if _, err := literalOf(t, "99999999999999999999"); !errors.Is(err, ErrNotLiteral) {
		t.Errorf("expected ErrNotLiteral for int beyond int64, got %v", err)
	}
}

func TestLiteral_NotLiteral(t *testing.T) {
	exprs := []string{
		"x",
		"f(1)",
		"set([1])",
		"-True",
		"--1",
		"-'a'",
		"not 1",
		"1 + 2",
		"f'{x}'",
		"{**d}",
		"[x]",
		"[1, *rest]",
		"1j",
		"...",
		"a.b",
		"a[0]",
		"{[1], 2}",
		"{(1, 2): 3}",
		"lambda: 1",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			if _, err := literalOf(t, expr); !errors.Is(err, ErrNotLiteral) {
				t.Errorf("Literal(%s): expected ErrNotLiteral, got %v", expr, err)
			}
		})
	}
}

func TestFloatRepr(t *testing.T) {
	tests := map[float64]string{
		1.0:    "1.0",
		1.5:    "1.5",
		-0.25:  "-0.25",
		1e16:   "1e+16",
		1e-05:  "1e-05",
		123456: "123456.0",
		0:      "0.0",
	}
	for in, want := range tests {
		if got := FloatRepr(in); got != want {
			t.Errorf("FloatRepr(%v) = %q, want %q", in, got, want)
		}
	}
	if got := FloatRepr(math.Inf(-1)); got != "-inf" {
		t.Errorf("FloatRepr(-Inf) = %q", got)
	}
}
