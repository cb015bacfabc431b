package bminor

// Register is an index into a Registers pool.
type Register int

// Registers is the scratch register pool. Allocation never spills: running
// out is an InternalError.
type Registers struct {
	names []string
	inUse []bool
}

func NewRegisters(names []string) *Registers {
	return &Registers{
		names: names,
		inUse: make([]bool, len(names)),
	}
}

// Allocate returns the first free register.
func (rs *Registers) Allocate() Register {
	for i, used := range rs.inUse {
		if !used {
			rs.inUse[i] = true
			return Register(i)
		}
	}
	panic(internalErrorf("all %d scratch registers are in use", len(rs.names)))
}

func (rs *Registers) Free(r Register) {
	rs.check(r)
	rs.inUse[r] = false
}

// Name returns the operand form of r, e.g. %rbx.
func (rs *Registers) Name(r Register) string {
	rs.check(r)
	return "%" + rs.names[r]
}

// InUse returns the number of allocated registers.
func (rs *Registers) InUse() int {
	n := 0
	for _, used := range rs.inUse {
		if used {
			n++
		}
	}
	return n
}

func (rs *Registers) check(r Register) {
	if int(r) < 0 || int(r) >= len(rs.names) {
		panic(internalErrorf("no scratch register %d", r))
	}
}
