package order

import (
	"testing"
)

func TestTotal(t *testing.T) {
	lines := []Line{
		{ID: 1, Name: "Café con leche", Quantity: 2, UnitPrice: 3500},
		{ID: 7, Name: "Medialuna", Quantity: 3, UnitPrice: 1200},
	}

	if got := Total(lines); got != 10600 {
		t.Errorf("expected total 10600, got %f", got)
	}
}

func TestTotal_Empty(t *testing.T) {
	if got := Total(nil); got != 0 {
		t.Errorf("expected total 0 for empty order, got %f", got)
	}
}

func TestTotal_Recomputed(t *testing.T) {
	lines := []Line{{ID: 1, Quantity: 1, UnitPrice: 100}}

	if got := Total(lines); got != 100 {
		t.Fatalf("expected 100, got %f", got)
	}

	lines[0].Quantity = 5
	if got := Total(lines); got != 500 {
		t.Errorf("expected total to track line changes, got %f", got)
	}
}

func TestSummary(t *testing.T) {
	lines := []Line{
		{ID: 1, Name: "Café con leche", Quantity: 2, UnitPrice: 3500},
		{ID: 7, Name: "Medialuna", Quantity: 1, UnitPrice: 1200},
	}

	want := "2 Café con leche, 1 Medialuna"
	if got := Summary(lines); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSummary_Empty(t *testing.T) {
	if got := Summary(nil); got != "" {
		t.Errorf("expected empty summary, got %q", got)
	}
}
