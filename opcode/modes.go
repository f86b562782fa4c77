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

package opcode

import "fmt"

type opType struct {
	a, ax, b, bx, sbx, c int8 // 0: unused, 1: used, 2: used RK
}

var opModes = [...]opType{
	//     a, ax, b, bx, sbx, c      Op
	opType{1, 0, 1, 0, 0, 0}, // OpMove
	opType{1, 0, 0, 1, 0, 0}, // OpLoadK
	opType{1, 0, 0, 0, 0, 0}, // OpLoadKX
	opType{1, 0, 1, 0, 0, 1}, // OpLoadBool
	opType{1, 0, 1, 0, 0, 0}, // OpLoadNil

	opType{1, 0, 1, 0, 0, 0}, // OpGetUpval
	opType{1, 0, 0, 1, 0, 0}, // OpGetGlobal
	opType{1, 0, 1, 0, 0, 2}, // OpGetTabUp
	opType{1, 0, 1, 0, 0, 2}, // OpGetTable

	opType{1, 0, 0, 1, 0, 0}, // OpSetGlobal
	opType{1, 0, 2, 0, 0, 2}, // OpSetTabUp
	opType{1, 0, 1, 0, 0, 0}, // OpSetUpval
	opType{1, 0, 2, 0, 0, 2}, // OpSetTable

	opType{1, 0, 1, 0, 0, 1}, // OpNewTable

	opType{1, 0, 1, 0, 0, 2}, // OpSelf

	opType{1, 0, 2, 0, 0, 2}, // OpAdd
	opType{1, 0, 2, 0, 0, 2}, // OpSub
	opType{1, 0, 2, 0, 0, 2}, // OpMul
	opType{1, 0, 2, 0, 0, 2}, // OpDiv
	opType{1, 0, 2, 0, 0, 2}, // OpMod
	opType{1, 0, 2, 0, 0, 2}, // OpPow
	opType{1, 0, 1, 0, 0, 0}, // OpUnm
	opType{1, 0, 1, 0, 0, 0}, // OpNot
	opType{1, 0, 1, 0, 0, 0}, // OpLen

	opType{1, 0, 1, 0, 0, 1}, // OpConcat

	opType{1, 0, 0, 0, 1, 0}, // OpJmp
	opType{1, 0, 2, 0, 0, 2}, // OpEq
	opType{1, 0, 2, 0, 0, 2}, // OpLt
	opType{1, 0, 2, 0, 0, 2}, // OpLe

	opType{1, 0, 0, 0, 0, 1}, // OpTest
	opType{1, 0, 1, 0, 0, 1}, // OpTestSet

	opType{1, 0, 1, 0, 0, 1}, // OpCall
	opType{1, 0, 1, 0, 0, 0}, // OpTailCall
	opType{1, 0, 1, 0, 0, 0}, // OpReturn

	opType{1, 0, 0, 0, 1, 0}, // OpForLoop
	opType{1, 0, 0, 0, 1, 0}, // OpForPrep

	opType{1, 0, 0, 0, 0, 1}, // OpTForCall
	opType{1, 0, 0, 0, 1, 0}, // OpTForLoop (A C in 5.1)

	opType{1, 0, 1, 0, 0, 1}, // OpSetList

	opType{1, 0, 0, 0, 0, 0}, // OpClose
	opType{1, 0, 0, 1, 0, 0}, // OpClosure

	opType{1, 0, 1, 0, 0, 0}, // OpVararg

	opType{0, 1, 0, 0, 0, 0}, // OpExtraArg
}

// String formats the instruction for a listing, version independent.
func (i Instruction) String() string {
	mode := opModes[i.Op]
	if i.Op == OpTForLoop && i.Version == Lua51 {
		mode = opType{a: 1, c: 1}
	}

	out := i.Op.String()
	if mode.a != 0 {
		out = fmt.Sprintf("%s\tA:%d", out, i.A)
	}
	if mode.ax != 0 {
		out = fmt.Sprintf("%s\tAX:%d", out, i.Ax)
	}

	switch mode.b {
	case 1:
		out = fmt.Sprintf("%s\tB:%d", out, i.B)
	case 2:
		out = fmt.Sprintf("%s\tB:%s", out, rk(i.B))
	}
	if mode.bx != 0 {
		out = fmt.Sprintf("%s\tBX:%d", out, i.Bx)
	}
	if mode.sbx != 0 {
		out = fmt.Sprintf("%s\tSBX:%d", out, i.SBx)
	}

	switch mode.c {
	case 1:
		out = fmt.Sprintf("%s\tC:%d", out, i.C)
	case 2:
		out = fmt.Sprintf("%s\tC:%s", out, rk(i.C))
	}
	return out
}

// Operands reports which operands an opcode uses: 0 unused, 1 used, 2 used as RK.
func (op Op) Operands() (a, b, c, bx, sbx int) {
	m := opModes[op]
	return int(m.a), int(m.b), int(m.c), int(m.bx), int(m.sbx)
}

func rk(x int) string {
	if IsK(x) {
		return fmt.Sprintf("k(%d)", IndexK(x))
	}
	return fmt.Sprintf("r(%d)", x)
}
