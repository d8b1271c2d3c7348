// Package menu holds the static catalog of orderable café items.
//
// The catalog is loaded once at startup and never mutated. Wire names are
// Spanish (categoria, nombre, precio, disponible) to match the order data
// the parser and the browser UI exchange.
package menu

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Item is a single orderable menu entry.
type Item struct {
	ID        int     `json:"id" yaml:"id"`
	Category  string  `json:"categoria" yaml:"categoria"`
	Name      string  `json:"nombre" yaml:"nombre"`
	Price     float64 `json:"precio" yaml:"precio"`
	Available bool    `json:"disponible" yaml:"disponible"`
}

// Catalog is an immutable collection of menu items.
type Catalog struct {
	items []Item
	byID  map[int]Item
}

// New builds a catalog from items. Item IDs must be unique and prices
// non-negative.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("menu: catalog is empty")
	}

	byID := make(map[int]Item, len(items))
	for _, it := range items {
		if it.Price < 0 {
			return nil, fmt.Errorf("menu: item %d (%s) has negative price", it.ID, it.Name)
		}
		if _, dup := byID[it.ID]; dup {
			return nil, fmt.Errorf("menu: duplicate item id %d", it.ID)
		}
		byID[it.ID] = it
	}

	copied := make([]Item, len(items))
	copy(copied, items)

	return &Catalog{items: copied, byID: byID}, nil
}

// LoadFile reads a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("menu: read %s: %w", path, err)
	}

	var file struct {
		Items []Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("menu: parse %s: %w", path, err)
	}

	return New(file.Items)
}

// Items returns a copy of all items.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id int) (Item, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Len returns the number of items in the catalog.
func (c *Catalog) Len() int {
	return len(c.items)
}

// ByCategory groups items by category, preserving catalog order within
// each group. Keys returns the category names sorted alphabetically.
func (c *Catalog) ByCategory() map[string][]Item {
	grouped := make(map[string][]Item)
	for _, it := range c.items {
		grouped[it.Category] = append(grouped[it.Category], it)
	}
	return grouped
}

// Categories returns the category names in sorted order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var names []string
	for _, it := range c.items {
		if !seen[it.Category] {
			seen[it.Category] = true
			names = append(names, it.Category)
		}
	}
	sort.Strings(names)
	return names
}

// JSON returns the catalog serialized as a JSON array, the form embedded
// in the order parser prompt.
func (c *Catalog) JSON() string {
	data, err := json.Marshal(c.items)
	if err != nil {
		// Item contains only plain scalar fields; Marshal cannot fail.
		return "[]"
	}
	return string(data)
}
