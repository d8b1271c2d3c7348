// Package order turns a finished voice transcript into order lines against
// the menu catalog, using a remote structured-generation call.
package order

import (
	"fmt"
	"strings"
)

// Line is one parsed order entry. Wire names match the JSON schema the
// generator is constrained to and the browser UI consumes.
type Line struct {
	ID        int     `json:"id"`
	Name      string  `json:"nombre"`
	Quantity  int     `json:"cantidad"`
	UnitPrice float64 `json:"precioUnitario"`
}

// Total sums quantity times unit price over all lines. It is recomputed on
// every call, never cached.
func Total(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		total += float64(l.Quantity) * l.UnitPrice
	}
	return total
}

// Summary renders lines as a short spoken-confirmation string, e.g.
// "2 Café con leche, 1 Medialuna".
func Summary(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%d %s", l.Quantity, l.Name))
	}
	return strings.Join(parts, ", ")
}
