package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/norn-lang/norn/internal/core"
	"github.com/norn-lang/norn/internal/symbols"
	"github.com/norn-lang/norn/internal/utils"
	"github.com/rs/zerolog"
)

// norn-inspect is a development tool: it builds a few contexts by hand, walks
// paths through them and dumps the results, so engine changes can be eyeballed
// without a full interpreter build.

type inspectEvaluator struct{}

func (inspectEvaluator) EvalGroup(g *core.Group) (core.Value, error) {
	if len(g.Elems) == 1 {
		return g.Elems[0], nil
	}
	return core.Nil, nil
}

func (inspectEvaluator) ApplyRefinements(a *core.Action, refs []*symbols.Symbol, label *symbols.Symbol) (core.Value, error) {
	return core.SpecializeAction(a, refs, label)
}

func main() {
	debug := flag.Bool("debug", false, "enable walk tracing")
	jsonOut := flag.Bool("json", false, "dump contexts as JSON")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	engine := core.NewEngine(inspectEvaluator{}, logger)

	body := core.NewBlock(
		core.NewSetWord(symbols.Intern("name")),
		core.Str("norn"),
		core.NewSetWord(symbols.Intern("sizes")),
		core.NewBlock(core.Int(1), core.Int(2), core.Int(3)),
	)
	obj, err := core.MakeFromDetected(core.ObjectKind, body, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("context construction failed")
	}

	if err := engine.SetPath(obj, []core.Value{core.NewWord(symbols.Intern("name"))}, core.Str("demo"), core.WalkOptions{}); err != nil {
		logger.Fatal().Err(err).Msg("set walk failed")
	}
	got, err := engine.GetPath(obj, []core.Value{core.NewWord(symbols.Intern("name"))}, core.WalkOptions{})
	if err != nil {
		logger.Fatal().Err(err).Msg("get walk failed")
	}
	fmt.Printf("name: %s\n", core.Inspect(got))

	if *jsonOut {
		fmt.Println(string(utils.Must(obj.DebugJSON())))
	}
}
