// Package pkg provides the core libraries of keyforge, a keyboard layout
// optimizer.
//
// # Overview
//
// Keyforge rates a keyboard layout by the biomechanical effort of typing a
// text corpus on it, using the carpalx effort model, and improves the layout
// by simulated annealing over the assignment of texts to buttons.
//
// # Architecture
//
// The data flow through keyforge:
//
//	text corpus
//	     ↓
//	[writer] (text → key combinations, like a ten-finger typist)
//	     ↓
//	[stats] (sliding window → triad counts)
//	     ↓
//	[carpalx] (triads → effort)  ←→  [optimize] (annealing over button swaps)
//	     ↓
//	optimized [layout], written as TOML
//
// # Quick Start
//
//	kb, _ := keyboard.Load(keyboard.NewRegistry(), "ibmpc105")
//	def, _ := layout.Load("qwerty")
//	l, _ := def.Specialize(kb)
//
//	// 1. Count triads
//	c := stats.NewCounter(kb)
//	_ = c.Count(ctx, writer.New(l), strings.NewReader(text))
//
//	// 2. Optimize
//	m, _ := carpalx.LoadModel("mod01")
//	o, _ := optimize.NewLayoutOptimizer(l, optimize.SortTriads(c.Triads, 0), optimize.Config{Model: m, Seed: 42})
//	res, _ := o.Run(ctx, 100000, false)
//
//	// 3. Write the new layout
//	nl, _ := optimize.ApplyButtonMap(l, res.Best.Mapping())
//	_ = nl.Definition().Encode(os.Stdout)
//
// [pipeline] wraps these steps with caching and is what the CLI and the
// HTTP server use.
//
// # Main Packages
//
// ## Domain
//
// [keyboard] - Physical keyboards: interned button names, button sets, rows,
// hands and fingers. The ibmpc105 keyboard is built in.
//
// [layout] - Layers of button texts selected by modifiers, combinations and
// triads, and TOML layout definitions (qwerty and null are built in).
//
// [writer] - Turns text into key combinations, choosing between alternatives
// by key count and hand balance.
//
// [stats] - Triad counting over corpus files, and the JSON triad file format.
//
// [carpalx] - The carpalx effort model: model parameters (mod01, salvo or
// TOML), stroke path classification and a memoizing cost evaluator.
//
// [optimize] - A generic annealer and the layout optimizer with pins,
// incremental energy updates and multi-start runs.
//
// ## Infrastructure
//
// [pipeline] - Stats and optimization with caching, shared by CLI and server.
//
// [cache] - Byte caches (file, Redis, null) and cache keys.
//
// [runstore] - History of optimization runs (file, MongoDB).
//
// [server] - HTTP API for effort evaluation and optimization.
//
// [config] - The TOML configuration file.
//
// [errors] - Coded errors and input validation.
//
// [observability] - Hooks for optimizer, cache and HTTP events.
//
// # Testing
//
//	go test ./pkg/...                                  # All tests
//	KEYFORGE_TEST_REDIS=localhost:6379 go test ./pkg/cache
//	KEYFORGE_TEST_MONGO=mongodb://localhost go test ./pkg/runstore
//
// [keyboard]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/keyboard
// [layout]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/layout
// [writer]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/writer
// [stats]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/stats
// [carpalx]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/carpalx
// [optimize]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/optimize
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/cache
// [runstore]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/runstore
// [server]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/server
// [config]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/keyforge/pkg/observability
package pkg
