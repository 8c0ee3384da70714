// Package irline classifies single lines of textual LLVM IR into the small
// set of shapes the rewrite pass cares about. It is deliberately not an IR
// parser: anything it does not recognize is Other, never an error.
package irline

import (
	"regexp"
	"strconv"
	"strings"
)

// Shape is one classified line: Alloca, Cast, Offset, Store, Load or Other.
type Shape interface {
	isShape()
}

// Alloca is "%d = alloca [N x T]" (Array, Count N) or "%d = alloca T" (Count 1).
type Alloca struct {
	Dst   string
	Elem  string
	Count int
	Array bool
}

// Cast is "%d = bitcast ptr %s to ptr".
type Cast struct {
	Dst string
	Src string
}

// Offset is "%d = getelementptr [inbounds] i8, ptr %s, i64 N".
type Offset struct {
	Dst   string
	Src   string
	Bytes int64
}

// Store is "store T value, ptr %d" with T an integer type or ptr. Align and
// Metadata hold the verbatim ", align N" and ", !..." suffixes, if present.
type Store struct {
	Indent    string
	ValueType string
	Value     string
	Dst       string
	Align     string
	Metadata  string
}

// Load is "%d = load T, ptr %s".
type Load struct {
	Dst       string
	ValueType string
	Src       string
}

// Other is any line with none of the shapes above.
type Other struct{}

func (Alloca) isShape() {}
func (Cast) isShape()   {}
func (Offset) isShape() {}
func (Store) isShape()  {}
func (Load) isShape()   {}
func (Other) isShape()  {}

// TypeString renders the allocated type the way it appears in IR.
func (a Alloca) TypeString() string {
	if a.Array {
		return "[" + strconv.Itoa(a.Count) + " x " + a.Elem + "]"
	}
	return a.Elem
}

const reg = `(%[-\w$.]+)`

var (
	reAlloca = regexp.MustCompile(
		`^\s*` + reg + `\s*=\s*alloca\s+(?:\[(\d+)\s+x\s+([^\[\],]+?)\]|(i\d+|ptr|half|float|double|%[-\w$.]+))\s*(?:,|$)`)
	reCast = regexp.MustCompile(
		`^\s*` + reg + `\s*=\s*bitcast\s+ptr\s+` + reg + `\s+to\s+ptr\s*(?:,\s*!.*)?$`)
	reOffset = regexp.MustCompile(
		`^\s*` + reg + `\s*=\s*getelementptr\s+(?:(?:inbounds|nuw|nusw)\s+)*i8,\s*ptr\s+` + reg + `,\s*i(?:64|32)\s+(-?\d+)\s*(?:,\s*!.*)?$`)
	reStore = regexp.MustCompile(
		`^(\s*)store\s+(i\d+|ptr)\s+(.*),\s*ptr\s+` + reg + `((?:\s*,.*)?)(?:\s*;.*)?\s*$`)
	reLoad = regexp.MustCompile(
		`^\s*` + reg + `\s*=\s*load\s+(?:volatile\s+)?([^,]+?),\s*ptr\s+` + reg)

	reAlign    = regexp.MustCompile(`, align \d+`)
	reMetadata = regexp.MustCompile(`, !.*`)
	reAssign   = regexp.MustCompile(`^(?:%[-\w$.]+|%"[^"]*")\s*=\s*`)
)

var callMarkers = map[string]bool{"tail": true, "musttail": true, "notail": true}

// parsers are tried in order; the substring guard skips the regexp for
// lines that cannot match.
var parsers = []struct {
	guard string
	parse func(string) (Shape, bool)
}{
	{"store", parseStore},
	{"alloca", parseAlloca},
	{"bitcast", parseCast},
	{"getelementptr", parseOffset},
	{"load", parseLoad},
}

// Parse classifies line. It never fails; unrecognized lines are Other.
func Parse(line string) Shape {
	for _, p := range parsers {
		if !strings.Contains(line, p.guard) {
			continue
		}
		if s, ok := p.parse(line); ok {
			return s
		}
	}
	return Other{}
}

func parseStore(line string) (Shape, bool) {
	m := reStore.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	suffix := m[5]
	return Store{
		Indent:    m[1],
		ValueType: m[2],
		Value:     strings.TrimSpace(m[3]),
		Dst:       m[4],
		Align:     reAlign.FindString(suffix),
		Metadata:  reMetadata.FindString(suffix),
	}, true
}

func parseAlloca(line string) (Shape, bool) {
	m := reAlloca.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	if m[2] == "" {
		return Alloca{Dst: m[1], Elem: m[4], Count: 1}, true
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, false
	}
	return Alloca{Dst: m[1], Elem: strings.TrimSpace(m[3]), Count: n, Array: true}, true
}

func parseCast(line string) (Shape, bool) {
	m := reCast.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	return Cast{Dst: m[1], Src: m[2]}, true
}

func parseOffset(line string) (Shape, bool) {
	m := reOffset.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	n, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return nil, false
	}
	return Offset{Dst: m[1], Src: m[2], Bytes: n}, true
}

func parseLoad(line string) (Shape, bool) {
	m := reLoad.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	return Load{Dst: m[1], ValueType: strings.TrimSpace(m[2]), Src: m[3]}, true
}

// Opcode returns the instruction opcode of line, skipping a "%x = " result
// assignment and call-site markers such as "tail". It returns "" for lines
// that are not instructions (labels, comments, blank lines, top-level entities).
func Opcode(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == ';' || trimmed[0] == '!' || trimmed[0] == '@' ||
		strings.HasSuffix(trimmed, ":") {
		return ""
	}
	trimmed = reAssign.ReplaceAllString(trimmed, "")
	fields := strings.Fields(trimmed)
	for len(fields) > 1 && callMarkers[fields[0]] {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsMemoryAccess reports whether line is a load or store instruction.
func IsMemoryAccess(line string) bool {
	switch Opcode(line) {
	case "load", "store":
		return true
	}
	return false
}

// IsByteType reports whether an IR type is single-byte-wide.
func IsByteType(t string) bool {
	return t == "i8"
}
