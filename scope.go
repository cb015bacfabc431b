package bminor

import (
	"fmt"

	"github.com/cznic/mathutil"
)

// ArgRegisters is the number of parameters passed in registers. The frame
// layout depends on it: those parameters are spilled into the first slots.
const ArgRegisters = 6

type SymbolKind int

const (
	SymbolGlobal SymbolKind = iota
	SymbolParam
	SymbolLocal
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolGlobal:
		return "global"
	case SymbolParam:
		return "param"
	case SymbolLocal:
		return "local"
	}
	return "unknown"
}

// Symbol is the resolved identity of a declared name. Offset is a frame slot
// index: slot n lives at -8n(%rbp), so parameters passed on the caller's
// stack get negative slots. Globals have no slot.
type Symbol struct {
	Kind    SymbolKind
	Type    *Type
	Name    string
	Offset  int
	Defined bool
}

func NewSymbol(kind SymbolKind, typ *Type, name string, defined bool) *Symbol {
	return &Symbol{
		Kind:    kind,
		Type:    typ,
		Name:    name,
		Defined: defined,
	}
}

func (s *Symbol) String() string {
	if s.Kind == SymbolGlobal {
		return "global " + s.Name
	}
	return fmt.Sprintf("%s at frame slot %d", s.Kind, s.Offset)
}

type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
	// frame is the function scope whose stack frame this scope allocates in.
	frame *Scope

	locals       int
	params       int
	nestedLocals int
	// slots counts locals handed out in the whole frame, frame scope only.
	slots int
}

func NewGlobalScope() *Scope {
	return &Scope{symbols: make(map[string]*Symbol)}
}

// Enter opens a child scope. A child of the global scope starts a new frame.
func (s *Scope) Enter() *Scope {
	child := &Scope{
		parent:  s,
		symbols: make(map[string]*Symbol),
		frame:   s.frame,
	}
	if s.IsGlobal() {
		child.frame = child
	}
	return child
}

// Exit closes the scope, folding its local footprint into the parent, and
// returns the parent.
func (s *Scope) Exit() *Scope {
	if s.parent == nil {
		panic(internalErrorf("cannot exit the global scope"))
	}
	s.parent.nestedLocals += s.NumLocals()
	return s.parent
}

func (s *Scope) IsGlobal() bool {
	return s.parent == nil
}

func (s *Scope) Parent() *Scope {
	return s.parent
}

// NumLocals is the number of locals declared in this scope and every scope
// nested in it.
func (s *Scope) NumLocals() int {
	return s.locals + s.nestedLocals
}

// Bind adds sym to the scope. When the name is taken, binding only succeeds
// for two function symbols of which at most one has a body: the existing
// symbol absorbs the defined flag and is returned. Its type is kept so the
// checker can compare it against the later declaration.
func (s *Scope) Bind(sym *Symbol) (*Symbol, bool) {
	if existing, ok := s.symbols[sym.Name]; ok {
		if existing.Type.Kind != FunctionKind || sym.Type.Kind != FunctionKind {
			return existing, false
		}
		if existing.Defined && sym.Defined {
			return existing, false
		}
		existing.Defined = existing.Defined || sym.Defined
		return existing, true
	}
	switch sym.Kind {
	case SymbolGlobal:
		sym.Offset = 0
	case SymbolParam:
		s.params++
		if s.params > ArgRegisters {
			// slot -1 is the return address
			sym.Offset = -(1 + s.params - ArgRegisters)
		} else {
			sym.Offset = s.params
		}
	case SymbolLocal:
		s.locals++
		frame := s.frame
		if frame == nil {
			frame = s
		}
		frame.slots++
		sym.Offset = mathutil.Min(ArgRegisters, frame.params) + frame.slots
	}
	s.symbols[sym.Name] = sym
	return sym, true
}

// Lookup finds name in this scope or the nearest enclosing one.
func (s *Scope) Lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

func (s *Scope) LookupLocal(name string) *Symbol {
	return s.symbols[name]
}
