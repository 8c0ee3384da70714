package transform

import "github.com/kyleseneker/irfix/internal/irline"

// Verdict is the detector's classification of a store.
type Verdict int

const (
	OK Verdict = iota
	Mismatch
)

func (v Verdict) String() string {
	if v == Mismatch {
		return "mismatch"
	}
	return "ok"
}

// Resolver resolves a register to the chain ending at its allocation.
type Resolver interface {
	Resolve(reg string) (Chain, bool)
}

// Classify reports Mismatch when st writes a value wider than a byte
// through a pointer whose allocation has byte-wide elements. A destination
// with no known allocation is always OK.
func Classify(st irline.Store, r Resolver) Verdict {
	chain, ok := r.Resolve(st.Dst)
	if !ok {
		return OK
	}
	if irline.IsByteType(chain.Root().Origin.Elem) && !irline.IsByteType(st.ValueType) {
		return Mismatch
	}
	return OK
}
