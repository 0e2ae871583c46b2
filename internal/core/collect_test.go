package core

import (
	"testing"

	"github.com/norn-lang/norn/internal/symbols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectKeys(t *testing.T) {
	t.Run("collects set-words in appearance order", func(t *testing.T) {
		body := NewBlock(
			NewSetWord(symbols.Intern("x")), Int(1),
			NewSetWord(symbols.Intern("y")), Int(2),
			NewWord(symbols.Intern("print")),
		)

		kl, err := CollectKeys(body, nil, CollectOptions{SetWordsOnly: true})
		require.NoError(t, err)
		require.Equal(t, 2, kl.Len())
		assert.Equal(t, "x", kl.SymbolAt(0).Name())
		assert.Equal(t, "y", kl.SymbolAt(1).Name())
	})

	t.Run("collects all word references when not restricted", func(t *testing.T) {
		body := NewBlock(
			NewWord(symbols.Intern("print")),
			NewSetWord(symbols.Intern("x")),
			NewGetWord(symbols.Intern("y")),
		)

		kl, err := CollectKeys(body, nil, CollectOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, kl.Len())
	})

	t.Run("deduplicates repeated names", func(t *testing.T) {
		x := symbols.Intern("x")
		body := NewBlock(NewSetWord(x), Int(1), NewSetWord(x), Int(2))

		kl, err := CollectKeys(body, nil, CollectOptions{SetWordsOnly: true})
		require.NoError(t, err)
		assert.Equal(t, 1, kl.Len())
	})

	t.Run("recurses into nested blocks and groups when deep", func(t *testing.T) {
		body := NewBlock(
			NewSetWord(symbols.Intern("outer")),
			NewBlock(NewSetWord(symbols.Intern("inner"))),
			NewGroup(NewSetWord(symbols.Intern("grouped"))),
		)

		shallow, err := CollectKeys(body, nil, CollectOptions{SetWordsOnly: true})
		require.NoError(t, err)
		assert.Equal(t, 1, shallow.Len())

		deep, err := CollectKeys(body, nil, CollectOptions{SetWordsOnly: true, Deep: true})
		require.NoError(t, err)
		assert.Equal(t, 3, deep.Len())
	})

	t.Run("prior keys seed the scan", func(t *testing.T) {
		prior := AllocateContext(ObjectKind, 1)
		_, err := prior.AppendBinding(symbols.Intern("base"))
		require.NoError(t, err)

		body := NewBlock(
			NewSetWord(symbols.Intern("base")),
			NewSetWord(symbols.Intern("fresh")),
		)
		kl, err := CollectKeys(body, prior, CollectOptions{SetWordsOnly: true})
		require.NoError(t, err)
		require.Equal(t, 2, kl.Len())
		assert.Equal(t, "base", kl.SymbolAt(0).Name())
		assert.Equal(t, "fresh", kl.SymbolAt(1).Name())
		assert.NotSame(t, prior.Keylist(), kl)
	})

	t.Run("no new names returns the prior key list identity", func(t *testing.T) {
		prior := AllocateContext(ObjectKind, 1)
		_, err := prior.AppendBinding(symbols.Intern("base"))
		require.NoError(t, err)

		body := NewBlock(NewSetWord(symbols.Intern("base")), Int(1))
		kl, err := CollectKeys(body, prior, CollectOptions{SetWordsOnly: true})
		require.NoError(t, err)
		assert.Same(t, prior.Keylist(), kl)
	})

	t.Run("case variants dedupe to the first spelling", func(t *testing.T) {
		body := NewBlock(
			NewSetWord(symbols.Intern("Count")), Int(1),
			NewSetWord(symbols.Intern("count")), Int(2),
		)

		kl, err := CollectKeys(body, nil, CollectOptions{SetWordsOnly: true})
		require.NoError(t, err)
		require.Equal(t, 1, kl.Len())
		assert.Equal(t, "Count", kl.SymbolAt(0).Name())

		ctx, err := MakeFromDetected(ObjectKind, body, nil)
		require.NoError(t, err)
		idx, err := ctx.FindSymbol(symbols.Intern("count"), false)
		require.NoError(t, err)
		assert.Equal(t, 1, idx, "the collected key must stay reachable non-strictly")
	})

	t.Run("forbidding duplicates names the offending word", func(t *testing.T) {
		dup := symbols.Intern("twice")
		body := NewBlock(NewSetWord(dup), NewSetWord(dup))

		_, err := CollectKeys(body, nil, CollectOptions{SetWordsOnly: true, ForbidDuplicates: true})
		require.ErrorIs(t, err, ErrDuplicateKey)
		assert.Contains(t, err.Error(), "twice")
	})
}

func TestMakeFromDetected(t *testing.T) {
	t.Run("no parent", func(t *testing.T) {
		body := NewBlock(NewSetWord(symbols.Intern("a")), Int(1))
		ctx, err := MakeFromDetected(ObjectKind, body, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, ctx.NumBindings())
		assert.Equal(t, Unset, ctx.Var(1))
	})

	t.Run("no new keys shares the parent key list", func(t *testing.T) {
		parentBody := NewBlock(NewSetWord(symbols.Intern("a")), Int(1))
		parent, err := MakeFromDetected(ObjectKind, parentBody, nil)
		require.NoError(t, err)

		child, err := MakeFromDetected(ObjectKind, NewBlock(NewSetWord(symbols.Intern("a"))), parent)
		require.NoError(t, err)

		assert.Same(t, parent.Keylist(), child.Keylist())
		assert.True(t, parent.Keylist().IsShared())
	})

	t.Run("new keys derive a unique key list", func(t *testing.T) {
		parent, err := MakeFromDetected(ObjectKind, NewBlock(NewSetWord(symbols.Intern("a"))), nil)
		require.NoError(t, err)

		child, err := MakeFromDetected(ObjectKind, NewBlock(NewSetWord(symbols.Intern("b"))), parent)
		require.NoError(t, err)

		assert.NotSame(t, parent.Keylist(), child.Keylist())
		assert.True(t, child.Keylist().DerivesFrom(parent.Keylist()))
		assert.Equal(t, 2, child.NumBindings())
	})

	t.Run("parent values are deep-cloned", func(t *testing.T) {
		parent := AllocateContext(ObjectKind, 1)
		idx, err := parent.AppendBinding(symbols.Intern("items"))
		require.NoError(t, err)
		require.NoError(t, parent.SetVar(idx, NewBlock(Int(1), Int(2))))

		child, err := MakeFromDetected(ObjectKind, NewBlock(), parent)
		require.NoError(t, err)

		childBlock := child.Var(1).(*Block)
		childBlock.Elems[0] = Int(99)

		parentBlock := parent.Var(1).(*Block)
		assert.Equal(t, Int(1), parentBlock.Elems[0], "child mutation must not reach the parent")
	})

	t.Run("copied material is rebound to the child", func(t *testing.T) {
		parent := AllocateContext(ObjectKind, 2)
		selfSym := symbols.Intern("self-ref")
		idx, err := parent.AppendBinding(selfSym)
		require.NoError(t, err)

		wordVal := NewWord(selfSym)
		wordVal.BindTo(parent, idx)
		require.NoError(t, parent.SetVar(idx, NewBlock(wordVal)))

		child, err := MakeFromDetected(ObjectKind, NewBlock(), parent)
		require.NoError(t, err)

		childWord := child.Var(1).(*Block).Elems[0].(*Word)
		boundCtx, boundIdx := childWord.Binding()
		assert.Same(t, child, boundCtx)
		assert.Equal(t, idx, boundIdx)

		parentWord := parent.Var(1).(*Block).Elems[0].(*Word)
		boundCtx, _ = parentWord.Binding()
		assert.Same(t, parent, boundCtx)
	})
}

func TestMerge(t *testing.T) {
	makeParent := func(t *testing.T, entries map[string]Value) *Context {
		t.Helper()
		ctx := AllocateContext(ObjectKind, len(entries))
		for name, v := range entries {
			idx, err := ctx.AppendBinding(symbols.Intern(name))
			require.NoError(t, err)
			require.NoError(t, ctx.SetVar(idx, v))
		}
		return ctx
	}

	t.Run("disjoint keys are concatenated", func(t *testing.T) {
		p1 := makeParent(t, map[string]Value{"a": Int(1)})
		p2 := makeParent(t, map[string]Value{"b": Int(2)})

		merged, err := Merge(ObjectKind, p1, p2)
		require.NoError(t, err)
		assert.Equal(t, 2, merged.NumBindings())

		idx, err := merged.FindSymbol(symbols.Intern("a"), true)
		require.NoError(t, err)
		assert.Equal(t, Int(1), merged.Var(idx))

		idx, err = merged.FindSymbol(symbols.Intern("b"), true)
		require.NoError(t, err)
		assert.Equal(t, Int(2), merged.Var(idx))
	})

	t.Run("second parent wins on key collision", func(t *testing.T) {
		p1 := makeParent(t, map[string]Value{"shared": Int(1), "own": Int(10)})
		p2 := makeParent(t, map[string]Value{"shared": Int(2)})

		merged, err := Merge(ObjectKind, p1, p2)
		require.NoError(t, err)
		assert.Equal(t, 2, merged.NumBindings())

		idx, err := merged.FindSymbol(symbols.Intern("shared"), true)
		require.NoError(t, err)
		assert.Equal(t, Int(2), merged.Var(idx))
	})

	t.Run("case variants collide as one key", func(t *testing.T) {
		p1 := makeParent(t, map[string]Value{"Count": Int(1)})
		p2 := makeParent(t, map[string]Value{"count": Int(2)})

		merged, err := Merge(ObjectKind, p1, p2)
		require.NoError(t, err)
		require.Equal(t, 1, merged.NumBindings())
		assert.Equal(t, Int(2), merged.Var(1))
	})

	t.Run("merged key list carries the first parent's ancestry", func(t *testing.T) {
		p1 := makeParent(t, map[string]Value{"a": Int(1)})
		p2 := makeParent(t, map[string]Value{"b": Int(2)})

		merged, err := Merge(ObjectKind, p1, p2)
		require.NoError(t, err)
		assert.True(t, merged.Keylist().DerivesFrom(p1.Keylist()))
		assert.False(t, merged.Keylist().IsShared())
	})

	t.Run("first parent may be absent", func(t *testing.T) {
		p2 := makeParent(t, map[string]Value{"only": Int(5)})

		merged, err := Merge(ObjectKind, nil, p2)
		require.NoError(t, err)
		assert.Equal(t, 1, merged.NumBindings())
	})

	t.Run("a third source fails loudly", func(t *testing.T) {
		p1 := makeParent(t, map[string]Value{"a": Int(1)})
		p2 := makeParent(t, map[string]Value{"b": Int(2)})
		p3 := makeParent(t, map[string]Value{"c": Int(3)})

		_, err := Merge(ObjectKind, p1, p2, p3)
		assert.ErrorIs(t, err, ErrTooManySources)
	})
}

func TestResolve(t *testing.T) {
	build := func(t *testing.T, pairs ...any) *Context {
		t.Helper()
		ctx := AllocateContext(ObjectKind, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			idx, err := ctx.AppendBinding(symbols.Intern(pairs[i].(string)))
			require.NoError(t, err)
			if pairs[i+1] != nil {
				require.NoError(t, ctx.SetVar(idx, pairs[i+1].(Value)))
			}
		}
		return ctx
	}

	t.Run("all filter with overwrite copies every shared key", func(t *testing.T) {
		target := build(t, "a", Int(1), "b", Int(2))
		source := build(t, "a", Int(10), "b", Int(20), "c", Int(30))

		require.NoError(t, Resolve(target, source, ResolveAll{}, true, false))

		assert.Equal(t, Int(10), target.Var(1))
		assert.Equal(t, Int(20), target.Var(2))
		assert.Equal(t, 2, target.NumBindings(), "source-only keys ignored without expand")
	})

	t.Run("without overwrite only unset slots are filled", func(t *testing.T) {
		target := build(t, "a", Int(1), "b", nil)
		source := build(t, "a", Int(10), "b", Int(20))

		require.NoError(t, Resolve(target, source, ResolveAll{}, false, false))

		assert.Equal(t, Int(1), target.Var(1))
		assert.Equal(t, Int(20), target.Var(2))
	})

	t.Run("expand appends source-only keys", func(t *testing.T) {
		target := build(t, "a", Int(1))
		source := build(t, "a", Int(10), "extra", Int(42))

		require.NoError(t, Resolve(target, source, ResolveAll{}, true, true))

		assert.Equal(t, 2, target.NumBindings())
		idx, err := target.FindSymbol(symbols.Intern("extra"), true)
		require.NoError(t, err)
		assert.Equal(t, Int(42), target.Var(idx))
	})

	t.Run("beyond filter leaves keys at or before the cut alone", func(t *testing.T) {
		target := build(t, "a", Int(1), "b", Int(2))
		source := build(t, "a", Int(10), "b", Int(20))

		require.NoError(t, Resolve(target, source, ResolveBeyond{Cut: 1}, true, false))

		assert.Equal(t, Int(1), target.Var(1))
		assert.Equal(t, Int(20), target.Var(2))
	})

	t.Run("only filter restricts to the named keys", func(t *testing.T) {
		target := build(t, "a", Int(1), "b", Int(2))
		source := build(t, "a", Int(10), "b", Int(20))

		filter := ResolveOnly{Words: []*symbols.Symbol{symbols.Intern("b")}}
		require.NoError(t, Resolve(target, source, filter, true, false))

		assert.Equal(t, Int(1), target.Var(1))
		assert.Equal(t, Int(20), target.Var(2))
	})

	t.Run("only filter with expand adds a named missing key", func(t *testing.T) {
		target := build(t, "a", Int(1))
		source := build(t, "a", Int(10), "wanted", Int(7), "unwanted", Int(8))

		filter := ResolveOnly{Words: []*symbols.Symbol{symbols.Intern("wanted")}}
		require.NoError(t, Resolve(target, source, filter, true, true))

		assert.Equal(t, 2, target.NumBindings())
		idx, err := target.FindSymbol(symbols.Intern("wanted"), true)
		require.NoError(t, err)
		assert.Equal(t, Int(7), target.Var(idx))
	})

	t.Run("read-only target fails with no side effects", func(t *testing.T) {
		target := build(t, "a", Int(1))
		target.SetReadOnly()
		source := build(t, "a", Int(10))

		err := Resolve(target, source, ResolveAll{}, true, false)
		assert.ErrorIs(t, err, ErrReadOnlyContext)
		assert.Equal(t, Int(1), target.Var(1))
	})
}
