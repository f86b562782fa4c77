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

// Package opcode decodes Lua 5.1 and 5.2 instruction words into a single version agnostic form.
package opcode

import "fmt"

import "github.com/Elskom/luadec/luautil"

// Version is the version byte from a chunk header.
type Version byte

const (
	Lua51 Version = 0x51
	Lua52 Version = 0x52
)

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v>>4, v&0xf)
}

// Supported returns true for the two instruction encodings this package understands.
func (v Version) Supported() bool {
	return v == Lua51 || v == Lua52
}

// TForTarget is the instruction a generic for setup jumps to.
func (v Version) TForTarget() Op {
	if v == Lua51 {
		return OpTForLoop
	}
	return OpTForCall
}

// OldLoadNil is true if LOADNIL clears A..B (5.1) instead of A..A+B (5.2).
func (v Version) OldLoadNil() bool {
	return v == Lua51
}

// InlineUpvalues is true if CLOSURE is followed by one pseudo-instruction per upvalue.
func (v Version) InlineUpvalues() bool {
	return v == Lua51
}

// IsBreakableLoopEnd reports if op can be the last instruction of a loop a break jumps out of.
func (v Version) IsBreakableLoopEnd(op Op) bool {
	switch op {
	case OpJmp, OpForLoop, OpTForLoop:
		return true
	}
	return false
}

// OuterScopeAdjustment is added to the end of the main block when matching local scopes.
// 5.1 closes the outer locals before the final return, 5.2 after it.
func (v Version) OuterScopeAdjustment() int {
	if v == Lua51 {
		return -1
	}
	return 0
}

// Op is the internal opcode enumeration, a union of both versions' opcodes.
type Op uint8

const (
	OpMove Op = iota
	OpLoadK
	OpLoadKX
	OpLoadBool
	OpLoadNil

	OpGetUpval
	OpGetGlobal
	OpGetTabUp
	OpGetTable

	OpSetGlobal
	OpSetTabUp
	OpSetUpval
	OpSetTable

	OpNewTable

	OpSelf

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen

	OpConcat

	OpJmp
	OpEq
	OpLt
	OpLe

	OpTest
	OpTestSet

	OpCall
	OpTailCall
	OpReturn

	OpForLoop
	OpForPrep

	OpTForCall
	OpTForLoop

	OpSetList

	OpClose
	OpClosure

	OpVararg

	OpExtraArg

	opCount int = iota
)

var opNames = [...]string{
	"MOVE",
	"LOADK",
	"LOADKX",
	"LOADBOOL",
	"LOADNIL",

	"GETUPVAL",
	"GETGLOBAL",
	"GETTABUP",
	"GETTABLE",

	"SETGLOBAL",
	"SETTABUP",
	"SETUPVAL",
	"SETTABLE",

	"NEWTABLE",

	"SELF",

	"ADD",
	"SUB",
	"MUL",
	"DIV",
	"MOD",
	"POW",
	"UNM",
	"NOT",
	"LEN",

	"CONCAT",

	"JMP",
	"EQ",
	"LT",
	"LE",

	"TEST",
	"TESTSET",

	"CALL",
	"TAILCALL",
	"RETURN",

	"FORLOOP",
	"FORPREP",

	"TFORCALL",
	"TFORLOOP",

	"SETLIST",

	"CLOSE",
	"CLOSURE",

	"VARARG",

	"EXTRAARG",
}

func (op Op) String() string {
	if int(op) >= opCount {
		return fmt.Sprintf("OP(%d)", op)
	}
	return opNames[op]
}

// The order the opcodes are numbered in by each version.
var order51 = []Op{
	OpMove, OpLoadK, OpLoadBool, OpLoadNil, OpGetUpval, OpGetGlobal, OpGetTable, OpSetGlobal,
	OpSetUpval, OpSetTable, OpNewTable, OpSelf, OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpUnm,
	OpNot, OpLen, OpConcat, OpJmp, OpEq, OpLt, OpLe, OpTest, OpTestSet, OpCall, OpTailCall,
	OpReturn, OpForLoop, OpForPrep, OpTForLoop, OpSetList, OpClose, OpClosure, OpVararg,
}

var order52 = []Op{
	OpMove, OpLoadK, OpLoadKX, OpLoadBool, OpLoadNil, OpGetUpval, OpGetTabUp, OpGetTable,
	OpSetTabUp, OpSetUpval, OpSetTable, OpNewTable, OpSelf, OpAdd, OpSub, OpMul, OpDiv, OpMod,
	OpPow, OpUnm, OpNot, OpLen, OpConcat, OpJmp, OpEq, OpLt, OpLe, OpTest, OpTestSet, OpCall,
	OpTailCall, OpReturn, OpForLoop, OpForPrep, OpTForCall, OpTForLoop, OpSetList, OpClosure,
	OpVararg, OpExtraArg,
}

func order(v Version) []Op {
	if v == Lua51 {
		return order51
	}
	return order52
}

// Raw returns the numeric opcode op has in version v, or -1 if v has no such instruction.
func Raw(v Version, op Op) int {
	for i, o := range order(v) {
		if o == op {
			return i
		}
	}
	return -1
}

const (
	sizeC  = 9
	sizeB  = 9
	sizeBx = sizeC + sizeB
	sizeA  = 8
	sizeAx = sizeC + sizeB + sizeA

	sizeOp = 6

	posOp = 0
	posA  = posOp + sizeOp
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC
	posAx = posA

	BitRK = 1 << (sizeB - 1)

	maxArgAx  = 1<<sizeAx - 1
	maxArgBx  = 1<<sizeBx - 1
	MaxArgSBx = maxArgBx >> 1
	maxArgA   = 1<<sizeA - 1
	maxArgB   = 1<<sizeB - 1
	maxArgC   = 1<<sizeC - 1

	// FieldsPerFlush is the number of list items a single SETLIST batch covers.
	FieldsPerFlush = 50
)

// IsK returns true if the RK operand x names a constant.
func IsK(x int) bool { return 0 != x&BitRK }

// IndexK returns the constant index an RK operand names.
func IndexK(r int) int { return r & ^BitRK }

// Instruction is one decoded instruction word. All operand fields are filled regardless of the opcode's format.
type Instruction struct {
	Op      Op
	Version Version
	Word    uint32

	A, B, C int
	Bx, SBx int
	Ax      int
}

// Decode maps a raw instruction word through the version's ordering table.
func Decode(v Version, word uint32) (Instruction, error) {
	tbl := order(v)
	raw := int(word >> posOp & (1<<sizeOp - 1))
	if raw >= len(tbl) {
		return Instruction{}, luautil.Error{Msg: fmt.Sprintf("Unknown opcode %d for Lua %v", raw, v), Type: luautil.ErrTypDecode}
	}

	bx := int(word >> posBx & maxArgBx)
	return Instruction{
		Op:      tbl[raw],
		Version: v,
		Word:    word,
		A:       int(word >> posA & maxArgA),
		B:       int(word >> posB & maxArgB),
		C:       int(word >> posC & maxArgC),
		Bx:      bx,
		SBx:     bx - MaxArgSBx,
		Ax:      int(word >> posAx & maxArgAx),
	}, nil
}

// Encoding, used to assemble code.

// ABC builds an instruction word for op in version v. It panics if v has no such instruction.
func ABC(v Version, op Op, a, b, c int) uint32 {
	return raw(v, op) | uint32(a)<<posA | uint32(b)<<posB | uint32(c)<<posC
}

// ABx builds an instruction word with an unsigned wide operand.
func ABx(v Version, op Op, a, bx int) uint32 {
	return raw(v, op) | uint32(a)<<posA | uint32(bx)<<posBx
}

// AsBx builds an instruction word with a signed wide operand.
func AsBx(v Version, op Op, a, sbx int) uint32 {
	return raw(v, op) | uint32(a)<<posA | uint32(sbx+MaxArgSBx)<<posBx
}

// Ax builds an EXTRAARG style instruction word.
func Ax(v Version, op Op, ax int) uint32 {
	return raw(v, op) | uint32(ax)<<posAx
}

func raw(v Version, op Op) uint32 {
	r := Raw(v, op)
	if r < 0 {
		panic(fmt.Sprintf("opcode: %v has no %v instruction", v, op))
	}
	return uint32(r)
}
