/*
Copyright 2016-2017 by Milo Christiansen

This software is provided 'as-is', without any express or implied warranty. In
no event will the authors be held liable for any damages arising from the use of
this software.

Permission is granted to anyone to use this software for any purpose, including
commercial applications, and to alter it and redistribute it freely, subject to
the following restrictions:

1. The origin of this software must not be misrepresented; you must not claim
that you wrote the original software. If you use this software in a product, an
acknowledgment in the product documentation would be appreciated but is not
required.

2. Altered source versions must be plainly marked as such, and must not be
misrepresented as being the original software.

3. This notice may not be removed or altered from any source distribution.
*/

package luautil

import "math"
import "strconv"
import "strings"

// FormatNumber formats a floating point Lua number the way it should appear in source.
// Integral values print without a fractional part, non-finite values print as the division that produces them.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "0/0"
	case math.IsInf(f, 1):
		return "1/0"
	case math.IsInf(f, -1):
		return "-1/0"
	}

	if f == math.Floor(f) && math.Abs(f) < 1e15 {
		if f == 0 && math.Signbit(f) {
			return "-0"
		}
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FormatInteger formats an integer Lua number.
func FormatInteger(i int64) string {
	return strconv.FormatInt(i, 10)
}

var keywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true, "end": true,
	"false": true, "for": true, "function": true, "goto": true, "if": true, "in": true,
	"local": true, "nil": true, "not": true, "or": true, "repeat": true, "return": true,
	"then": true, "true": true, "until": true, "while": true,
}

// IsIdentifier returns true if s can be used as a bare name in Lua source.
func IsIdentifier(s string) bool {
	if s == "" || keywords[s] {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// LongBracketLevel reports if s should be written as a long bracket string, and if so at which level.
//
// Long form is only used for strings made of printable characters that have more than one line break
// or a single line break that is not the last character.
func LongBracketLevel(s string) (int, bool) {
	newlines := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			newlines++
		} else if c < 32 && c != '\t' || c >= 127 {
			return 0, false
		}
	}
	if newlines == 0 || newlines == 1 && s[len(s)-1] == '\n' {
		return 0, false
	}

	// The opener swallows one newline, the closer must not appear inside (or straddle the end of) the text.
	level := 0
	if strings.Contains(s, "[[") {
		level = 1
	}
	for strings.Contains(s+"]", "]"+strings.Repeat("=", level)+"]") {
		level++
	}
	return level, true
}

// QuoteString formats s as a Lua string literal, choosing the long bracket form where it is more readable.
func QuoteString(s string) string {
	if level, ok := LongBracketLevel(s); ok {
		eq := strings.Repeat("=", level)
		return "[" + eq + "[\n" + s + "]" + eq + "]"
	}
	return QuoteShort(s)
}

// QuoteShort formats s as a double quoted Lua string literal.
func QuoteShort(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 7:
			out = append(out, `\a`...)
		case c == 8:
			out = append(out, `\b`...)
		case c == 9:
			out = append(out, `\t`...)
		case c == 10:
			out = append(out, `\n`...)
		case c == 11:
			out = append(out, `\v`...)
		case c == 12:
			out = append(out, `\f`...)
		case c == 13:
			out = append(out, `\r`...)
		case c == '"':
			out = append(out, `\"`...)
		case c == '\\':
			out = append(out, `\\`...)
		case c < 32 || c >= 127:
			dec := strconv.Itoa(int(c))
			out = append(out, '\\')
			out = append(out, strings.Repeat("0", 3-len(dec))...)
			out = append(out, dec...)
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '"'))
}
