package bminor_test

import (
	"bminor"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integer() *bminor.Type { return bminor.NewAtomicType(bminor.IntegerKind) }

func TestScopeShadowing(t *testing.T) {
	global := bminor.NewGlobalScope()
	fn := global.Enter()
	outer, ok := fn.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "x", false))
	require.True(t, ok)

	block := fn.Enter()
	inner, ok := block.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "x", false))
	require.True(t, ok)
	assert.Same(t, inner, block.Lookup("x"))
	assert.Same(t, inner, block.LookupLocal("x"))
	assert.Same(t, fn, block.Parent())
	assert.Nil(t, fn.LookupLocal("y"))
	assert.NotEqual(t, outer.Offset, inner.Offset)

	assert.Same(t, fn, block.Exit())
	assert.Same(t, outer, fn.Lookup("x"))
	assert.Equal(t, 2, fn.NumLocals())
}

func TestScopeFrameLayout(t *testing.T) {
	global := bminor.NewGlobalScope()
	fn := global.Enter()

	var params []*bminor.Symbol
	for i := 1; i <= 8; i++ {
		sym, ok := fn.Bind(bminor.NewSymbol(bminor.SymbolParam, integer(), fmt.Sprintf("p%d", i), false))
		require.True(t, ok)
		params = append(params, sym)
	}
	for i := 0; i < 6; i++ {
		assert.Equal(t, i+1, params[i].Offset, "param %d", i+1)
	}
	assert.Equal(t, -2, params[6].Offset)
	assert.Equal(t, -3, params[7].Offset)

	a, _ := fn.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "a", false))
	block := fn.Enter()
	b, _ := block.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "b", false))
	block.Exit()
	assert.Equal(t, 7, a.Offset)
	assert.Equal(t, 8, b.Offset)
	assert.Equal(t, 2, fn.NumLocals())
}

func TestScopeLocalsAfterFewParams(t *testing.T) {
	fn := bminor.NewGlobalScope().Enter()
	p, _ := fn.Bind(bminor.NewSymbol(bminor.SymbolParam, integer(), "p", false))
	l, _ := fn.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "l", false))
	assert.Equal(t, 1, p.Offset)
	assert.Equal(t, 2, l.Offset)
}

func TestScopeSiblingBlocksDoNotShareSlots(t *testing.T) {
	fn := bminor.NewGlobalScope().Enter()
	first := fn.Enter()
	a, _ := first.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "a", false))
	first.Exit()
	second := fn.Enter()
	b, _ := second.Bind(bminor.NewSymbol(bminor.SymbolLocal, integer(), "b", false))
	second.Exit()
	assert.NotEqual(t, a.Offset, b.Offset)
	assert.Equal(t, 2, fn.NumLocals())
}

func TestScopeBindPrototypes(t *testing.T) {
	fnType := func() *bminor.Type {
		return bminor.NewFunctionType(integer(), []*bminor.Decl{bminor.NewVarDecl("a", integer(), nil)})
	}
	global := bminor.NewGlobalScope()

	proto, ok := global.Bind(bminor.NewSymbol(bminor.SymbolGlobal, fnType(), "f", false))
	require.True(t, ok)
	again, ok := global.Bind(bminor.NewSymbol(bminor.SymbolGlobal, fnType(), "f", false))
	require.True(t, ok)
	assert.Same(t, proto, again)
	assert.False(t, proto.Defined)

	def, ok := global.Bind(bminor.NewSymbol(bminor.SymbolGlobal, fnType(), "f", true))
	require.True(t, ok)
	assert.Same(t, proto, def)
	assert.True(t, proto.Defined)

	_, ok = global.Bind(bminor.NewSymbol(bminor.SymbolGlobal, fnType(), "f", true))
	assert.False(t, ok)

	_, ok = global.Bind(bminor.NewSymbol(bminor.SymbolGlobal, integer(), "x", false))
	require.True(t, ok)
	_, ok = global.Bind(bminor.NewSymbol(bminor.SymbolGlobal, integer(), "x", false))
	assert.False(t, ok)
}

func TestScopeExitGlobalPanics(t *testing.T) {
	assert.Panics(t, func() {
		bminor.NewGlobalScope().Exit()
	})
}
