package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cafevoz/cafevoz/pkg/menu"
)

// Generator is the remote structured-generation call the parser depends on.
// It must return a JSON document conforming to the supplied schema.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error)
}

// lineSchema constrains the generator output to an array of order lines.
var lineSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"id":             map[string]any{"type": "INTEGER"},
			"nombre":         map[string]any{"type": "STRING"},
			"cantidad":       map[string]any{"type": "INTEGER"},
			"precioUnitario": map[string]any{"type": "NUMBER"},
		},
		"required": []string{"id", "nombre", "cantidad", "precioUnitario"},
	},
}

// Parser converts transcripts into order lines.
//
// Parse fails soft: any generator error or malformed response yields an
// empty order, never an error. The caller distinguishes "nothing ordered"
// only through the empty result.
type Parser struct {
	gen    Generator
	logger *slog.Logger
}

// NewParser creates a parser backed by the given generator.
func NewParser(gen Generator, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{gen: gen, logger: logger.With("component", "order.parser")}
}

// Parse extracts order lines from a transcript. Items the generator
// reports that have no catalog match are dropped silently; name and unit
// price are taken from the catalog, not from the model output.
func (p *Parser) Parse(ctx context.Context, transcript string, cat *menu.Catalog) []Line {
	raw, err := p.gen.GenerateJSON(ctx, buildPrompt(transcript, cat), lineSchema)
	if err != nil {
		p.logger.Warn("order generation failed", "error", err)
		return nil
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		p.logger.Warn("order response is not a JSON array", "error", err)
		return nil
	}

	kept := lines[:0]
	for _, l := range lines {
		it, ok := cat.Lookup(l.ID)
		if !ok || l.Quantity <= 0 {
			p.logger.Debug("dropping unmatched order line", "id", l.ID, "nombre", l.Name, "cantidad", l.Quantity)
			continue
		}
		l.Name = it.Name
		l.UnitPrice = it.Price
		kept = append(kept, l)
	}
	return kept
}

// buildPrompt embeds the transcript and the serialized catalog, mirroring
// the instructions the schema constraint enforces.
func buildPrompt(transcript string, cat *menu.Catalog) string {
	return fmt.Sprintf(
		`Analiza el siguiente texto de un pedido y conviértelo en un formato JSON basado en el menú proporcionado. `+
			`El texto del pedido es: %q. El menú es: %s. `+
			`Devuelve solo un array de objetos JSON, donde cada objeto representa un ítem del pedido con "id", "nombre", "cantidad", y "precioUnitario". `+
			`Si un ítem mencionado no está en el menú, ignóralo. Si no se puede extraer ningún pedido, devuelve un array vacío.`,
		transcript, cat.JSON(),
	)
}
