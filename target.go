package bminor

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/magiconair/properties"
)

//go:embed target.properties
var defaultTarget string

// Target names the registers and runtime helpers the generator emits.
// Register names carry no % prefix.
type Target struct {
	Scratch     []string
	Arguments   []string
	CallerSaved []string
	CalleeSaved []string
	// PowFunc is the runtime helper `^` is lowered to.
	PowFunc string
	// PrintPrefix followed by a kind name is the print helper for that kind.
	PrintPrefix string
}

var errNoScratch = errors.New("target has no scratch registers")

// DefaultTarget returns the built-in x86-64 target.
func DefaultTarget() *Target {
	t, err := ParseTarget(defaultTarget)
	if err != nil {
		panic(internalErrorf("default target: %s", err))
	}
	return t
}

// LoadTarget reads a target description from a properties file.
func LoadTarget(path string) (*Target, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	return newTarget(p)
}

func ParseTarget(src string) (*Target, error) {
	p, err := properties.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	return newTarget(p)
}

func newTarget(p *properties.Properties) (*Target, error) {
	t := &Target{
		Scratch:     registerList(p, "scratch"),
		Arguments:   registerList(p, "arguments"),
		CallerSaved: registerList(p, "caller_saved"),
		CalleeSaved: registerList(p, "callee_saved"),
		PowFunc:     p.GetString("runtime.pow", "integer_power"),
		PrintPrefix: p.GetString("runtime.print_prefix", "print_"),
	}
	if len(t.Scratch) == 0 {
		return nil, errNoScratch
	}
	if len(t.Arguments) != ArgRegisters {
		return nil, fmt.Errorf("target has %d argument registers, the frame layout needs %d", len(t.Arguments), ArgRegisters)
	}
	return t, nil
}

func registerList(p *properties.Properties, key string) []string {
	var regs []string
	for _, r := range strings.Split(p.GetString(key, ""), ",") {
		if r = strings.TrimSpace(r); r != "" {
			regs = append(regs, r)
		}
	}
	return regs
}
