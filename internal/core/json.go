package core

import (
	"github.com/goccy/go-json"
)

type contextDump struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	ReadOnly bool     `json:"readOnly,omitempty"`
	Shared   bool     `json:"sharedKeylist,omitempty"`
	Words    []string `json:"words"`
	Values   []string `json:"values"`
}

// DebugJSON renders the context for diagnostics: every key including hidden
// and sealed ones, values in inspect notation. Not a persistence format.
func (ctx *Context) DebugJSON() ([]byte, error) {
	dump := contextDump{
		Kind:     ctx.kind.String(),
		ID:       ctx.id.String(),
		ReadOnly: ctx.readOnly,
		Shared:   ctx.keylist.IsShared(),
		Words:    make([]string, 0, ctx.NumBindings()),
		Values:   make([]string, 0, ctx.NumBindings()),
	}
	for i := 0; i < ctx.keylist.Len(); i++ {
		dump.Words = append(dump.Words, ctx.keylist.SymbolAt(i).Name())
		dump.Values = append(dump.Values, Inspect(ctx.vars[i+1]))
	}
	return json.Marshal(dump)
}
