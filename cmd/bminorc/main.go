package main

import (
	"bminor"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"github.com/jessevdk/go-flags"
)

type options struct {
	Stage   string `long:"stage" default:"codegen" choice:"print" choice:"resolve" choice:"typecheck" choice:"codegen" description:"last pipeline stage to run"`
	Target  string `long:"target" description:"target description (properties file), the built-in x86-64 target by default"`
	Verbose bool   `short:"v" long:"verbose" description:"trace name resolution"`
	Output  string `short:"o" long:"output" description:"write the result here instead of stdout"`
	Args    struct {
		Source string `positional-arg-name:"source" description:"program as a YAML syntax tree"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(bminor.InternalError)
			if !ok {
				panic(r)
			}
			fmt.Fprintln(os.Stderr, ie)
			code = 2
		}
	}()

	var opts options
	if _, err := flags.ParseArgs(&opts, args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}

	source, err := os.ReadFile(opts.Args.Source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	decls, err := bminor.LoadProgram(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", opts.Args.Source, err)
		return 1
	}

	if opts.Stage == "print" {
		return emit(opts.Output, func(w io.Writer) error {
			return bminor.PrintProgram(w, decls)
		})
	}

	diag := bminor.NewDiagnostics(os.Stdout)
	diag.SetVerbose(opts.Verbose)
	if n := bminor.Resolve(decls, diag); n > 0 {
		fmt.Printf("Encountered %d name resolution errors\n", n)
		return 1
	}
	if opts.Stage == "resolve" {
		return 0
	}
	if n := bminor.Typecheck(decls, diag); n > 0 {
		fmt.Printf("Encountered %d type errors\n", n)
		return 1
	}
	if w := diag.Warnings(); w > 0 {
		fmt.Printf("Encountered %d type warnings\n", w)
	}
	if opts.Stage == "typecheck" {
		return 0
	}

	target := bminor.DefaultTarget()
	if opts.Target != "" {
		if target, err = bminor.LoadTarget(opts.Target); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return emit(opts.Output, func(w io.Writer) error {
		return bminor.Codegen(decls, w, target)
	})
}

// emit runs write against stdout, or against the output file while holding
// an exclusive lock next to it so concurrent builds never interleave.
func emit(output string, write func(io.Writer) error) int {
	if output == "" {
		if err := write(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	lock := flock.New(output + ".lock")
	if err := lock.Lock(); err != nil {
		fmt.Fprintf(os.Stderr, "lock %s: %s\n", output, err)
		return 1
	}
	defer lock.Unlock()

	var b strings.Builder
	if err := write(&b); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := os.WriteFile(output, []byte(b.String()), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
