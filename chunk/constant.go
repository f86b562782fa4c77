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

package chunk

import "math"

import "github.com/Elskom/luadec/luautil"

// ConstantType is the tag of a Constant.
type ConstantType byte

// Constant tags, numbered like the type bytes in a chunk.
const (
	TypNil     ConstantType = 0
	TypBoolean ConstantType = 1
	TypNumber  ConstantType = 3
	TypString  ConstantType = 4
)

// Constant is one entry of a constant pool, and more generally any literal value the decompiler prints.
//
// Numbers are either floating point (the usual case) or integers, for chunks from builds where
// lua_Number is an integral type.
type Constant struct {
	Type ConstantType

	Bool  bool
	Float float64
	Int   int64
	IsInt bool
	Str   string
}

func Nil() Constant             { return Constant{Type: TypNil} }
func Bool(b bool) Constant      { return Constant{Type: TypBoolean, Bool: b} }
func Number(f float64) Constant { return Constant{Type: TypNumber, Float: f} }
func Integer(i int64) Constant  { return Constant{Type: TypNumber, Int: i, IsInt: true} }
func String(s string) Constant  { return Constant{Type: TypString, Str: s} }

// IsNumber returns true for both number variants.
func (c Constant) IsNumber() bool { return c.Type == TypNumber }

// IsInteger returns true if the constant is a number with an integral value.
func (c Constant) IsInteger() bool {
	if c.Type != TypNumber {
		return false
	}
	return c.IsInt || c.Float == math.Floor(c.Float) && !math.IsInf(c.Float, 0)
}

// AsInteger returns the integral value of a number. Only meaningful if IsInteger is true.
func (c Constant) AsInteger() int64 {
	if c.IsInt {
		return c.Int
	}
	return int64(c.Float)
}

// IsIdentifier returns true if the constant is a string usable as a bare name.
func (c Constant) IsIdentifier() bool {
	return c.Type == TypString && luautil.IsIdentifier(c.Str)
}

// IsNegative is true for numbers that print with a leading minus sign.
func (c Constant) IsNegative() bool {
	if c.Type != TypNumber {
		return false
	}
	if c.IsInt {
		return c.Int < 0
	}
	return c.Float < 0 || c.Float == 0 && math.Signbit(c.Float) || math.IsInf(c.Float, -1)
}

// String formats the constant as Lua source.
func (c Constant) String() string {
	switch c.Type {
	case TypNil:
		return "nil"
	case TypBoolean:
		if c.Bool {
			return "true"
		}
		return "false"
	case TypNumber:
		if c.IsInt {
			return luautil.FormatInteger(c.Int)
		}
		return luautil.FormatNumber(c.Float)
	case TypString:
		return luautil.QuoteString(c.Str)
	}
	return "?"
}

// Equal compares two constants by value. NaN is never equal to anything.
func (c Constant) Equal(o Constant) bool {
	if c.Type != o.Type {
		return false
	}
	switch c.Type {
	case TypNil:
		return true
	case TypBoolean:
		return c.Bool == o.Bool
	case TypNumber:
		if c.IsInt && o.IsInt {
			return c.Int == o.Int
		}
		return c.number() == o.number()
	case TypString:
		return c.Str == o.Str
	}
	return false
}

func (c Constant) number() float64 {
	if c.IsInt {
		return float64(c.Int)
	}
	return c.Float
}
