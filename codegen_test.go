package bminor_test

import (
	"bminor"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	decls := loadProgram(t, src)
	diag := bminor.NewDiagnostics(nil)
	require.Equal(t, 0, bminor.Resolve(decls, diag))
	require.Equal(t, 0, bminor.Typecheck(decls, diag))
	var out strings.Builder
	require.NoError(t, bminor.Codegen(decls, &out, bminor.DefaultTarget()))
	return out.String()
}

func TestCodegenFunction(t *testing.T) {
	asm := compile(t, `
- {name: x, type: integer, value: 5}
- name: main
  type: {kind: function, returns: integer}
  body:
    - return: {op: "+", left: x, right: 1}
`)
	assert.Equal(t, `.section .rodata
.data
.globl x
x:
	.quad 5
.text
.globl main
main:
	PUSHQ %rbp
	MOVQ %rsp, %rbp
	PUSHQ %rdi
	PUSHQ %rsi
	PUSHQ %rdx
	PUSHQ %rcx
	PUSHQ %r8
	PUSHQ %r9
	SUBQ $8, %rsp
	PUSHQ %rbx
	PUSHQ %r12
	PUSHQ %r13
	PUSHQ %r14
	PUSHQ %r15
	MOVQ x(%rip), %rbx
	MOVQ $1, %r10
	ADDQ %r10, %rbx
	MOVQ %rbx, %rax
	JMP .L0
.L0:
	LEAQ -96(%rbp), %rsp
	POPQ %r15
	POPQ %r14
	POPQ %r13
	POPQ %r12
	POPQ %rbx
	MOVQ %rbp, %rsp
	POPQ %rbp
	RET
`, asm)
}

func TestCodegenDeterministic(t *testing.T) {
	first := compile(t, wellTyped)
	second := compile(t, wellTyped)
	assert.Equal(t, first, second)

	decls := loadProgram(t, wellTyped)
	diag := bminor.NewDiagnostics(nil)
	require.Equal(t, 0, bminor.Resolve(decls, diag))
	require.Equal(t, 0, bminor.Typecheck(decls, diag))
	target := bminor.DefaultTarget()
	again := bminor.NewGenerator(target).Generate(decls)
	assert.Equal(t, first, again)
	assert.Equal(t, again, bminor.NewGenerator(target).Generate(decls))
}

func TestCodegenComparisons(t *testing.T) {
	flags := "\tCMPQ %r10, %rbx\n\tLAHF\n\tMOVB %ah, %al\n\tSHRB $7, %al\n\tSHLB $1, %ah\n\tSHRB $7, %ah\n"
	result := "\tMOVZBQ %al, %rbx\n\tANDQ $1, %rbx\n"
	tests := []struct {
		op      string
		combine string
	}{
		{"<", ""},
		{"<=", "\tORB %ah, %al\n"},
		{">", "\tORB %ah, %al\n\tNOTB %al\n"},
		{">=", "\tNOTB %al\n"},
		{"==", "\tMOVB %ah, %al\n"},
		{"!=", "\tMOVB %ah, %al\n\tNOTB %al\n"},
	}
	for _, test := range tests {
		asm := compile(t, `
- name: f
  type: {kind: function, returns: boolean, params: [{name: a, type: integer}, {name: b, type: integer}]}
  body:
    - return: {op: "`+test.op+`", left: a, right: b}
`)
		assert.Contains(t, asm, "\tMOVQ -8(%rbp), %rbx\n\tMOVQ -16(%rbp), %r10\n"+flags+test.combine+result, test.op)
	}
}

func TestCodegenArithmetic(t *testing.T) {
	asm := compile(t, `
- name: f
  type: {kind: function, returns: integer, params: [{name: a, type: integer}, {name: b, type: integer}]}
  body:
    - expr: {op: "*", left: a, right: b}
    - expr: {op: "/", left: a, right: b}
    - expr: {op: "%", left: a, right: b}
    - expr: {op: "!", operand: {op: "<", left: a, right: b}}
    - return: {op: "-", operand: a}
`)
	assert.Contains(t, asm, "\tMOVQ %rbx, %rax\n\tIMULQ %r10\n\tMOVQ %rax, %rbx\n")
	assert.Contains(t, asm, "\tMOVQ %rbx, %rax\n\tCQO\n\tIDIVQ %r10\n\tMOVQ %rax, %rbx\n")
	assert.Contains(t, asm, "\tMOVQ %rbx, %rax\n\tCQO\n\tIDIVQ %r10\n\tMOVQ %rdx, %rbx\n")
	assert.Contains(t, asm, "\tANDQ $1, %rbx\n\tXORQ $1, %rbx\n")
	assert.Contains(t, asm, "\tNEGQ %rbx\n")
}

func TestCodegenCallArguments(t *testing.T) {
	asm := compile(t, `
- name: f
  type:
    kind: function
    returns: integer
    params:
      - {name: p1, type: integer}
      - {name: p2, type: integer}
      - {name: p3, type: integer}
      - {name: p4, type: integer}
      - {name: p5, type: integer}
      - {name: p6, type: integer}
      - {name: p7, type: integer}
      - {name: p8, type: integer}
  body:
    - return: {op: "+", left: p7, right: p8}
- name: main
  type: {kind: function, returns: integer}
  body:
    - return: {call: f, args: [1, 2, 3, 4, 5, 6, 7, 8]}
`)
	// the seventh and eighth parameters live in the caller's frame
	assert.Contains(t, asm, "\tMOVQ 16(%rbp), %rbx\n\tMOVQ 24(%rbp), %r10\n")

	var pushes strings.Builder
	for i := 8; i >= 1; i-- {
		pushes.WriteString("\tMOVQ $" + string(rune('0'+i)) + ", %rbx\n\tPUSHQ %rbx\n")
	}
	assert.Contains(t, asm, "\tPUSHQ %r10\n\tPUSHQ %r11\n"+pushes.String()+
		"\tPOPQ %rdi\n\tPOPQ %rsi\n\tPOPQ %rdx\n\tPOPQ %rcx\n\tPOPQ %r8\n\tPOPQ %r9\n"+
		"\tCALL f\n\tADDQ $16, %rsp\n\tPOPQ %r11\n\tPOPQ %r10\n\tMOVQ %rax, %rbx\n")
}

func TestCodegenCallAlignment(t *testing.T) {
	asm := compile(t, `
- name: g
  type:
    kind: function
    returns: integer
    params:
      - {name: p1, type: integer}
      - {name: p2, type: integer}
      - {name: p3, type: integer}
      - {name: p4, type: integer}
      - {name: p5, type: integer}
      - {name: p6, type: integer}
      - {name: p7, type: integer}
- name: h
  type: {kind: function, returns: integer, params: [{name: a, type: integer}]}
- name: main
  type: {kind: function, returns: integer}
  body:
    - expr: {call: g, args: [1, 2, 3, 4, 5, 6, 7]}
    - return: {call: h, args: [{op: "+", left: 1, right: {call: h, args: [2]}}]}
`)
	// one argument on the stack needs a padding word to keep the call aligned
	assert.Contains(t, asm, "\tPUSHQ %r10\n\tPUSHQ %r11\n\tSUBQ $8, %rsp\n\tMOVQ $7, %rbx\n\tPUSHQ %rbx\n")
	assert.Contains(t, asm, "\tCALL g\n\tADDQ $16, %rsp\n\tPOPQ %r11\n\tPOPQ %r10\n")
	// the inner call runs with the outer call's saved registers pushed
	assert.Contains(t, asm, "\tPUSHQ %r10\n\tPUSHQ %r11\n\tMOVQ $1, %rbx\n\tPUSHQ %r10\n\tPUSHQ %r11\n\tMOVQ $2, %r10\n\tPUSHQ %r10\n\tPOPQ %rdi\n\tCALL h\n\tPOPQ %r11\n\tPOPQ %r10\n\tMOVQ %rax, %r10\n")
	assert.Equal(t, 2, strings.Count(asm, "CALL h"))
}

func TestCodegenPrint(t *testing.T) {
	asm := compile(t, `
- name: main
  type: {kind: function}
  body:
    - print: [1, {str: "hi\n"}, true, {char: c}]
`)
	assert.Contains(t, asm, ".section .rodata\n.LS0:\n\t.string \"hi\\n\"\n")
	assert.Contains(t, asm, "\tMOVQ $1, %rbx\n\tPUSHQ %rbx\n\tPOPQ %rdi\n\tCALL print_integer\n")
	assert.Contains(t, asm, "\tLEAQ .LS0(%rip), %rbx\n\tPUSHQ %rbx\n\tPOPQ %rdi\n\tCALL print_string\n")
	assert.Contains(t, asm, "\tCALL print_boolean\n")
	assert.Contains(t, asm, "\tMOVQ $99, %rbx\n\tPUSHQ %rbx\n\tPOPQ %rdi\n\tCALL print_char\n")
}

func TestCodegenPower(t *testing.T) {
	asm := compile(t, `
- name: f
  type: {kind: function, returns: integer, params: [{name: a, type: integer}]}
  body:
    - return: {op: "^", left: a, right: 3}
`)
	assert.Contains(t, asm, "\tMOVQ $3, %rbx\n\tPUSHQ %rbx\n\tMOVQ -8(%rbp), %rbx\n\tPUSHQ %rbx\n\tPOPQ %rdi\n\tPOPQ %rsi\n\tCALL integer_power\n")
}

func TestCodegenControlFlow(t *testing.T) {
	asm := compile(t, `
- name: f
  type: {kind: function, params: [{name: n, type: integer}]}
  body:
    - if: {op: "<", left: n, right: 0}
      then: [{expr: {op: "=", left: n, right: 0}}]
      else: [{expr: {op: "=", left: n, right: 1}}]
    - for: {cond: {op: ">", left: n, right: 0}, step: {op: "--", operand: n}}
      body: []
`)
	assert.Contains(t, asm, "\tCMPQ $0, %rbx\n\tJE .L1\n\tMOVQ $0, %rbx\n\tMOVQ %rbx, -8(%rbp)\n\tJMP .L2\n.L1:\n\tMOVQ $1, %rbx\n\tMOVQ %rbx, -8(%rbp)\n.L2:\n")
	assert.Contains(t, asm, ".L3:\n\tMOVQ -8(%rbp), %rbx\n")
	assert.Contains(t, asm, "\tCMPQ $0, %rbx\n\tJE .L4\n\tMOVQ -8(%rbp), %rbx\n\tDECQ -8(%rbp)\n\tJMP .L3\n.L4:\n")
}

func TestCodegenPostIncrementEvaluatesIndexOnce(t *testing.T) {
	asm := compile(t, `
- {name: c, type: integer}
- name: next
  type: {kind: function, returns: integer}
  body:
    - return: {op: "++", operand: c}
- name: main
  type: {kind: function, returns: integer}
  body:
    - decl: {name: xs, type: {kind: array, size: 3, elem: integer}, value: {elems: [10, 20, 30]}}
    - decl: {name: old, type: integer, value: {op: "++", operand: {array: xs, index: {call: next}}}}
    - return: old
`)
	assert.Equal(t, 1, strings.Count(asm, "CALL next"))
	assert.Contains(t, asm, "\tMOVQ c(%rip), %rbx\n\tINCQ c(%rip)\n")
	assert.Contains(t, asm, "\tLEAQ (%rbx,%r10,8), %rbx\n\tMOVQ (%rbx), %r10\n\tINCQ (%rbx)\n\tMOVQ %r10, -16(%rbp)\n")
}

func TestCodegenArrays(t *testing.T) {
	asm := compile(t, `
- {name: g, type: {kind: array, size: 3, elem: integer}, value: {elems: [1, 2, 3]}}
- name: main
  type: {kind: function, returns: integer}
  body:
    - decl: {name: a, type: {kind: array, size: 3, elem: integer}}
    - decl: {name: b, type: {kind: array, size: 2, elem: integer}, value: {elems: [4, 5]}}
    - expr: {op: "=", left: {array: a, index: 1}, right: {array: g, index: 2}}
    - return: {array: b, index: 0}
`)
	assert.Contains(t, asm, ".data\n.L0:\n\t.quad 1, 2, 3\n.globl g\ng:\n\t.quad .L0\n")
	// a and b take frame slots 1 and 2; their storage follows the locals
	assert.Contains(t, asm, "\tLEAQ -88(%rbp), %rdi\n\tMOVQ $3, %rcx\n\tXORQ %rax, %rax\n\tREP STOSQ\n\tLEAQ -88(%rbp), %rbx\n\tMOVQ %rbx, -8(%rbp)\n")
	assert.Contains(t, asm, "\tMOVQ $4, %rbx\n\tMOVQ %rbx, -104(%rbp)\n\tMOVQ $5, %rbx\n\tMOVQ %rbx, -96(%rbp)\n\tLEAQ -104(%rbp), %rbx\n\tMOVQ %rbx, -16(%rbp)\n")
	assert.Contains(t, asm, "\tMOVQ g(%rip), %rbx\n\tMOVQ $2, %r10\n\tMOVQ (%rbx,%r10,8), %rbx\n"+
		"\tMOVQ -8(%rbp), %r10\n\tMOVQ $1, %r11\n\tLEAQ (%r10,%r11,8), %r10\n\tMOVQ %rbx, (%r10)\n")
	// 2 locals and 5 words of storage
	assert.Contains(t, asm, "\tSUBQ $56, %rsp\n")
	assert.Contains(t, asm, "\tLEAQ -144(%rbp), %rsp\n")
}

func TestCodegenRegisterExhaustion(t *testing.T) {
	var e bminor.Expr = intLit(9)
	for i := 8; i >= 1; i-- {
		e = binary(bminor.OpAdd, intLit(int64(i)), e)
	}
	main := bminor.NewFuncDecl("main", bminor.NewFunctionType(integer(), nil), &bminor.BlockStmt{
		Stmts: []bminor.Stmt{&bminor.ReturnStmt{Value: e}},
	})
	decls := []*bminor.Decl{main}
	diag := bminor.NewDiagnostics(nil)
	require.Equal(t, 0, bminor.Resolve(decls, diag))
	require.Equal(t, 0, bminor.Typecheck(decls, diag))

	assert.PanicsWithError(t, "[ERROR|internal] all 7 scratch registers are in use", func() {
		_ = bminor.Codegen(decls, &strings.Builder{}, bminor.DefaultTarget())
	})
}

func TestCodegenIndirectCallPanics(t *testing.T) {
	f := bminor.NewFuncDecl("f", bminor.NewFunctionType(nil, nil), &bminor.BlockStmt{
		Stmts: []bminor.Stmt{&bminor.ExprStmt{Expr: &bminor.CallExpr{Callee: intLit(1)}}},
	})
	assert.Panics(t, func() {
		_ = bminor.Codegen([]*bminor.Decl{f}, &strings.Builder{}, bminor.DefaultTarget())
	})
}
