package transform

import (
	"fmt"
	"strings"
)

// NormalizeMode selects how bare "ptr" keywords on passed-through lines are
// respelled as "i8*".
type NormalizeMode string

const (
	// NormalizeLegacy rewrites every whole-word "ptr" that is not followed
	// by a register operand, wherever it occurs on the line, including
	// comments, strings and names such as %ptr.1.
	NormalizeLegacy NormalizeMode = "legacy"
	// NormalizeScoped behaves like NormalizeLegacy but leaves comments,
	// quoted strings, metadata lines and identifiers alone.
	NormalizeScoped NormalizeMode = "scoped"
	// NormalizeOff passes lines through unchanged.
	NormalizeOff NormalizeMode = "off"
)

// NormalizeModes lists the accepted modes in display order.
var NormalizeModes = []NormalizeMode{NormalizeLegacy, NormalizeScoped, NormalizeOff}

// ParseNormalizeMode validates a mode name. The empty string selects legacy.
func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch m := NormalizeMode(strings.TrimSpace(s)); m {
	case "":
		return NormalizeLegacy, nil
	case NormalizeLegacy, NormalizeScoped, NormalizeOff:
		return m, nil
	}
	return "", fmt.Errorf("invalid normalize mode %q: must be one of %v", s, NormalizeModes)
}

const bytePtr = "i8*"

// normalizePointers applies mode to one line.
func normalizePointers(line string, mode NormalizeMode) string {
	switch mode {
	case NormalizeOff:
		return line
	case NormalizeScoped:
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, ";") {
			return line
		}
		return rewritePtrKeywords(line, true, true)
	default:
		return rewritePtrKeywords(line, true, false)
	}
}

// retypeValue respells every "ptr" type keyword in a stored value expression,
// leaving identifiers and strings intact.
func retypeValue(expr string) string {
	return rewritePtrKeywords(expr, false, true)
}

// rewritePtrKeywords replaces whole-word "ptr" with "i8*". With keepBeforeReg
// an occurrence followed by optional whitespace and '%' is kept. With scoped,
// occurrences inside quotes, after a ';' comment marker, or attached to an
// identifier ("%ptr", "@ptr", "ptr.x") are kept.
func rewritePtrKeywords(s string, keepBeforeReg, scoped bool) string {
	if !strings.Contains(s, "ptr") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	inQuote := false
	for i := 0; i < len(s); {
		c := s[i]
		if scoped {
			if c == '"' {
				inQuote = !inQuote
			} else if c == ';' && !inQuote {
				b.WriteString(s[i:])
				break
			}
		}
		if c != 'p' || !strings.HasPrefix(s[i:], "ptr") || (scoped && inQuote) {
			b.WriteByte(c)
			i++
			continue
		}
		end := i + 3
		if (i > 0 && isWordByte(s[i-1])) || (end < len(s) && isWordByte(s[end])) {
			b.WriteByte(c)
			i++
			continue
		}
		keep := keepBeforeReg && followedByRegister(s[end:])
		if scoped && ((i > 0 && isIdentPunct(s[i-1])) || (end < len(s) && isIdentPunct(s[end]))) {
			keep = true
		}
		if keep {
			b.WriteString("ptr")
		} else {
			b.WriteString(bytePtr)
		}
		i = end
	}
	return b.String()
}

// followedByRegister reports whether rest, after leading whitespace, starts
// with a '%' register sigil.
func followedByRegister(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n\f\v")
	return strings.HasPrefix(rest, "%")
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isIdentPunct reports the non-word bytes that may sit inside or in front of
// an LLVM identifier.
func isIdentPunct(c byte) bool {
	switch c {
	case '%', '@', '.', '$', '-', '!', '#':
		return true
	}
	return false
}
