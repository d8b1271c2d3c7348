package menu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		wantErr bool
	}{
		{
			name:    "empty catalog",
			items:   nil,
			wantErr: true,
		},
		{
			name: "duplicate ids",
			items: []Item{
				{ID: 1, Name: "Café con leche", Price: 3500},
				{ID: 1, Name: "Espresso", Price: 2800},
			},
			wantErr: true,
		},
		{
			name: "negative price",
			items: []Item{
				{ID: 1, Name: "Café con leche", Price: -1},
			},
			wantErr: true,
		},
		{
			name: "valid",
			items: []Item{
				{ID: 1, Name: "Café con leche", Price: 3500, Available: true},
				{ID: 2, Name: "Espresso", Price: 2800, Available: true},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.items)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	cat := Default()

	it, ok := cat.Lookup(1)
	if !ok {
		t.Fatal("expected item 1 to exist")
	}
	if it.Name != "Café con leche" {
		t.Errorf("expected Café con leche, got %s", it.Name)
	}

	if _, ok := cat.Lookup(999); ok {
		t.Error("expected item 999 to be missing")
	}
}

func TestByCategory(t *testing.T) {
	cat, err := New([]Item{
		{ID: 1, Category: "Cafetería", Name: "Espresso", Price: 2800},
		{ID: 2, Category: "Pastelería", Name: "Medialuna", Price: 1200},
		{ID: 3, Category: "Cafetería", Name: "Cortado", Price: 3000},
	})
	if err != nil {
		t.Fatal(err)
	}

	grouped := cat.ByCategory()
	if len(grouped["Cafetería"]) != 2 {
		t.Errorf("expected 2 items in Cafetería, got %d", len(grouped["Cafetería"]))
	}
	if grouped["Cafetería"][0].Name != "Espresso" {
		t.Error("expected catalog order preserved within category")
	}

	cats := cat.Categories()
	if len(cats) != 2 || cats[0] != "Cafetería" || cats[1] != "Pastelería" {
		t.Errorf("unexpected categories: %v", cats)
	}
}

func TestJSON_WireNames(t *testing.T) {
	cat, err := New([]Item{
		{ID: 1, Category: "Cafetería", Name: "Café con leche", Price: 500, Available: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := cat.JSON()
	for _, field := range []string{`"id":1`, `"categoria"`, `"nombre"`, `"precio":500`, `"disponible":true`} {
		if !strings.Contains(out, field) {
			t.Errorf("serialized catalog missing %s: %s", field, out)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	content := `items:
  - id: 1
    categoria: Cafetería
    nombre: Café con leche
    precio: 3500
    disponible: true
  - id: 2
    categoria: Pastelería
    nombre: Medialuna
    precio: 1200
    disponible: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("expected 2 items, got %d", cat.Len())
	}

	it, ok := cat.Lookup(2)
	if !ok || it.Name != "Medialuna" || it.Price != 1200 {
		t.Errorf("unexpected item 2: %+v", it)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/menu.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cat := Default()
	if cat.Len() == 0 {
		t.Fatal("default catalog is empty")
	}

	unavailable := 0
	for _, it := range cat.Items() {
		if !it.Available {
			unavailable++
		}
	}
	if unavailable == 0 {
		t.Error("expected at least one unavailable item in the default catalog")
	}
}
