package bminor_test

import (
	"bminor"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLower(t *testing.T) {
	decls := loadProgram(t, `
- {name: big, type: integer, value: {op: "^", left: 2, right: 8}}
- name: main
  type: {kind: function}
  body:
    - decl: {name: x, type: integer, value: {op: "^", left: big, right: 2}}
    - print: [x, {op: ">", left: x, right: 1}, {str: done}]
`)
	diag := bminor.NewDiagnostics(nil)
	require.Equal(t, 0, bminor.Resolve(decls, diag))
	require.Equal(t, 0, bminor.Typecheck(decls, diag))

	bminor.Lower(decls, bminor.DefaultTarget())
	var once strings.Builder
	require.NoError(t, bminor.PrintProgram(&once, decls))
	assert.Equal(t, `big: integer = 2 ^ 8;
main: function void () = {
	x: integer = integer_power(big, 2);
	{
		print_integer(x);
		print_boolean(x > 1);
		print_string("done");
	}
}
`, once.String())

	bminor.Lower(decls, bminor.DefaultTarget())
	var twice strings.Builder
	require.NoError(t, bminor.PrintProgram(&twice, decls))
	assert.Equal(t, once.String(), twice.String())

	call := decls[1].Body.Stmts[0].(*bminor.DeclStmt).Decl.Value.(*bminor.CallExpr)
	helper := call.Callee.(*bminor.Ident).Symbol
	require.NotNil(t, helper)
	assert.Equal(t, bminor.SymbolGlobal, helper.Kind)
	assert.Equal(t, "function integer (base: integer, exp: integer)", helper.Type.String())
}
