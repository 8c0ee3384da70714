package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/kyleseneker/irfix/internal/irline"
)

// pointerTypeFor returns the typed pointer a value of valueType is written
// through: ptr -> i8**, iN -> iN*.
func pointerTypeFor(valueType string) string {
	if valueType == "ptr" {
		return bytePtr + "*"
	}
	return valueType + "*"
}

// storedTypeFor returns the typed spelling of the stored value's type.
func storedTypeFor(valueType string) string {
	if valueType == "ptr" {
		return bytePtr
	}
	return valueType
}

// emitter builds output lines for the fix pass.
type emitter struct {
	mode  NormalizeMode
	names *nameAllocator
}

// passThrough returns line with pointer-keyword normalization applied.
func (e *emitter) passThrough(line string) string {
	return normalizePointers(line, e.mode)
}

// rewrite returns the conversion line and the corrected store for a
// mismatched store found at 0-based line index idx, plus the synthetic
// register the store now writes through. The conversion must precede the
// store in the output.
func (e *emitter) rewrite(idx int, st irline.Store) (conv, store, syn string) {
	syn = e.names.next(idx)
	ptrType := pointerTypeFor(st.ValueType)
	conv = fmt.Sprintf("%s%s = bitcast %s %s to %s", st.Indent, syn, bytePtr, st.Dst, ptrType)
	store = fmt.Sprintf("%sstore %s %s, %s %s%s%s",
		st.Indent, storedTypeFor(st.ValueType), retypeValue(st.Value), ptrType, syn, st.Align, st.Metadata)
	return conv, store, syn
}

const syntheticPrefix = "%bitcast."

var reRegister = regexp.MustCompile(`%[-\w$.]+`)

// nameAllocator hands out synthetic register names derived from a line
// index, skipping any name already present in the input.
type nameAllocator struct {
	taken map[string]bool
}

// newNameAllocator collects the existing registers that could collide with
// a synthetic name.
func newNameAllocator(lines []string) *nameAllocator {
	found := lo.FlatMap(lines, func(l string, _ int) []string {
		if !strings.Contains(l, syntheticPrefix) {
			return nil
		}
		return lo.Filter(reRegister.FindAllString(l, -1), func(r string, _ int) bool {
			return strings.HasPrefix(r, syntheticPrefix)
		})
	})
	taken := make(map[string]bool, len(found))
	for _, r := range found {
		taken[r] = true
	}
	return &nameAllocator{taken: taken}
}

// next returns "%bitcast.<idx>", or "%bitcast.<idx>.<n>" for the smallest
// n >= 1 that is still free, and reserves it.
func (a *nameAllocator) next(idx int) string {
	name := fmt.Sprintf("%s%d", syntheticPrefix, idx)
	for n := 1; a.taken[name]; n++ {
		name = fmt.Sprintf("%s%d.%d", syntheticPrefix, idx, n)
	}
	a.taken[name] = true
	return name
}
