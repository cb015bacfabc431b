// Command bminorfold reads constant expressions in YAML flow form and
// prints what they fold to:
//
//	> {op: "+", left: 3, right: {op: "*", left: 4, right: 2}}
//	11 : integer
package main

import (
	"bminor"
	"bufio"
	"fmt"
	"os"
	"strings"
)

func main() {
	repl(bufio.NewScanner(os.Stdin))
}

var eval = bminor.NewEvaluator()

func repl(in *bufio.Scanner) {
	var buff strings.Builder
	depth := 0
	fmt.Print("> ")
	for in.Scan() {
		text := in.Text()
		for _, ch := range text {
			switch ch {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		buff.WriteString(text)
		buff.WriteString("\n")
		if depth > 0 {
			fmt.Print(". ")
			continue
		}
		if depth < 0 {
			fmt.Println("extra closing bracket")
		} else if strings.TrimSpace(buff.String()) != "" {
			fold(buff.String())
		}
		buff.Reset()
		depth = 0
		fmt.Print("> ")
	}
	fmt.Println()
}

func fold(src string) {
	e, err := bminor.LoadExpr([]byte(src))
	if err != nil {
		fmt.Println(err)
		return
	}
	if !bminor.IsConstExpr(e) {
		fmt.Printf("`%s` is not a constant expression\n", bminor.FormatExpr(e))
		return
	}
	diag := bminor.NewDiagnostics(os.Stdout)
	t := bminor.NewChecker(diag).ExprType(e)
	if diag.Count() > 0 {
		return
	}
	res, err := eval.Evaluate(e)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s : %s\n", bminor.FormatExpr(res), t)
}
