package transform

import (
	"fmt"
	"strings"

	"github.com/kyleseneker/irfix/internal/irline"
)

// Kind tags an Origin.
type Kind int

const (
	KindAllocation Kind = iota + 1
	KindCast
	KindOffset
)

func (k Kind) String() string {
	switch k {
	case KindAllocation:
		return "allocation"
	case KindCast:
		return "cast"
	case KindOffset:
		return "offset"
	}
	return "unknown"
}

// Origin records how a pointer register was produced. Elem, Count and Array
// describe an allocation; Source names the register a cast or offset was
// derived from, and Bytes is the displacement of an offset.
type Origin struct {
	Kind   Kind
	Elem   string
	Count  int
	Array  bool
	Source string
	Bytes  int64
}

// Allocation returns the origin of a register produced by an alloca.
func Allocation(a irline.Alloca) Origin {
	return Origin{Kind: KindAllocation, Elem: a.Elem, Count: a.Count, Array: a.Array}
}

// CastOf returns the origin of a pointer reinterpretation of src.
func CastOf(src string) Origin {
	return Origin{Kind: KindCast, Source: src}
}

// OffsetOf returns the origin of a pointer bytes past src.
func OffsetOf(src string, bytes int64) Origin {
	return Origin{Kind: KindOffset, Source: src, Bytes: bytes}
}

// TypeString renders an allocation's type, e.g. "[16 x i8]".
func (o Origin) TypeString() string {
	return irline.Alloca{Elem: o.Elem, Count: o.Count, Array: o.Array}.TypeString()
}

// Table maps registers to their origins for a single scan. It only ever
// holds registers defined on lines already observed.
type Table struct {
	origins map[string]Origin
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{origins: make(map[string]Origin)}
}

// Observe records the origin defined by s, if any. Casts and offsets are
// only recorded when their source register is already tracked. It returns
// the destination register and whether an origin was recorded.
func (t *Table) Observe(s irline.Shape) (string, bool) {
	switch s := s.(type) {
	case irline.Alloca:
		t.origins[s.Dst] = Allocation(s)
		return s.Dst, true
	case irline.Cast:
		if _, ok := t.origins[s.Src]; ok {
			t.origins[s.Dst] = CastOf(s.Src)
			return s.Dst, true
		}
	case irline.Offset:
		if _, ok := t.origins[s.Src]; ok {
			t.origins[s.Dst] = OffsetOf(s.Src, s.Bytes)
			return s.Dst, true
		}
	}
	return "", false
}

// Lookup returns the recorded origin of reg.
func (t *Table) Lookup(reg string) (Origin, bool) {
	o, ok := t.origins[reg]
	return o, ok
}

// Len returns the number of tracked registers.
func (t *Table) Len() int {
	return len(t.origins)
}

// Link is one step of a resolved chain.
type Link struct {
	Register string
	Origin   Origin
}

// Chain is the path from a register back to its allocation. The first link
// is the register asked about, the last is the allocation.
type Chain []Link

// Root returns the terminal allocation.
func (c Chain) Root() Link {
	return c[len(c)-1]
}

// Offset returns the accumulated byte displacement from the allocation.
func (c Chain) Offset() int64 {
	var n int64
	for _, l := range c {
		if l.Origin.Kind == KindOffset {
			n += l.Origin.Bytes
		}
	}
	return n
}

// String describes the chain from the allocation forward, e.g.
// "%1 = alloca [16 x i8] -> %2 = bitcast %1 -> %3 = %2 + 4".
func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for i := len(c) - 1; i >= 0; i-- {
		l := c[i]
		switch l.Origin.Kind {
		case KindAllocation:
			parts = append(parts, fmt.Sprintf("%s = alloca %s", l.Register, l.Origin.TypeString()))
		case KindCast:
			parts = append(parts, fmt.Sprintf("%s = bitcast %s", l.Register, l.Origin.Source))
		case KindOffset:
			parts = append(parts, fmt.Sprintf("%s = %s + %d", l.Register, l.Origin.Source, l.Origin.Bytes))
		}
	}
	return strings.Join(parts, " -> ")
}

// Resolve follows cast and offset links from reg back to an allocation.
// It reports false when reg, or any register on the way, is untracked, and
// when the links form a cycle.
func (t *Table) Resolve(reg string) (Chain, bool) {
	var chain Chain
	seen := make(map[string]bool)
	for cur := reg; ; {
		if seen[cur] {
			return nil, false
		}
		seen[cur] = true
		o, ok := t.origins[cur]
		if !ok {
			return nil, false
		}
		chain = append(chain, Link{Register: cur, Origin: o})
		if o.Kind == KindAllocation {
			return chain, true
		}
		cur = o.Source
	}
}
