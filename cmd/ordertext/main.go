// ordertext: parse a written order against the menu without the voice
// pipeline. Useful for prompt and menu debugging.
//
// Usage: GEMINI_API_KEY=... ordertext "dos cafés con leche y una medialuna"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cafevoz/cafevoz/internal/log"
	"github.com/cafevoz/cafevoz/pkg/menu"
	"github.com/cafevoz/cafevoz/pkg/order"
)

var (
	menuPath = flag.String("menu", "", "path to menu YAML (default: built-in menu)")
	model    = flag.String("model", "", "override the generation model")
	timeout  = flag.Duration("timeout", 30*time.Second, "request timeout")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ordertext [flags] \"transcript text\"")
		flag.PrintDefaults()
		os.Exit(2)
	}
	transcript := strings.Join(flag.Args(), " ")

	log.Init("info", "text")
	logger := log.L()

	catalog := menu.Default()
	if *menuPath != "" {
		var err error
		catalog, err = menu.LoadFile(*menuPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading menu:", err)
			os.Exit(1)
		}
	}

	opts := []order.GeminiOption{order.WithLogger(logger)}
	if *model != "" {
		opts = append(opts, order.WithModel(*model))
	}
	gen, err := order.NewGemini(os.Getenv("GEMINI_API_KEY"), opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	parser := order.NewParser(gen, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	lines := parser.Parse(ctx, transcript, catalog)
	if len(lines) == 0 {
		fmt.Println("No menu items matched.")
		os.Exit(1)
	}

	for _, l := range lines {
		fmt.Printf("%dx %-30s %10.2f\n", l.Quantity, l.Name, float64(l.Quantity)*l.UnitPrice)
	}
	fmt.Printf("%-33s %10.2f\n", "Total", order.Total(lines))
	fmt.Println()
	fmt.Println("Confirmación:", order.Summary(lines))
}
