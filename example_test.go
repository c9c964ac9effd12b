package agent2000_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agent2000/agent2000/pkg/apperr"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/agent2000/agent2000/pkg/packaging"
	"github.com/agent2000/agent2000/pkg/tokens"
)

// Render a recipe and check it against the runtime contract.
func Example_packaging() {
	for _, v := range packaging.Variants() {
		dockerfile, err := packaging.Render(v, packaging.DefaultRecipe())
		if err != nil {
			panic(err)
		}
		c, err := packaging.Inspect(strings.NewReader(dockerfile))
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s: port %v, %d violations\n", v.FileName(), c.ExposedPorts, len(packaging.Verify(c, packaging.DefaultRecipe())))
	}
	// Output:
	// Dockerfile: port [8080], 0 violations
	// Dockerfile.layered: port [8080], 0 violations
	// Dockerfile.helpers: port [8080], 0 violations
}

// Record and query history in memory.
func Example_history() {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	m := history.NewManager(history.Config{MaxEntries: 2, AutoPrune: true, PruneThreshold: 2}, history.WithClock(clock))

	for _, text := range []string{"one", "two", "three"} {
		if _, err := m.Add(ctx, "message", map[string]any{"text": text}, nil); err != nil {
			panic(err)
		}
	}
	for _, e := range m.List(history.Query{Reverse: true}) {
		fmt.Println(e.Data["text"])
	}
	// Output:
	// three
	// two
}

// Keep a prompt within budget.
func Example_tokens() {
	text := "hello world"
	fmt.Println(tokens.Estimate(text))
	head, _ := tokens.Truncate(text, 1, "gpt-4", false)
	fmt.Printf("%q\n", head)
	// Output:
	// 3
	// "hello"
}

// Errors carry a code that maps onto an HTTP status.
func Example_errors() {
	err := fmt.Errorf("lookup: %w", apperr.NotFound("entry"))
	fmt.Println(errors.Is(err, apperr.ErrNotFound), apperr.HTTPStatus(err))
	// Output:
	// true 404
}
