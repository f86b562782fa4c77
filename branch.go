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

package luadec

import "github.com/Elskom/luadec/ast"
import "github.com/Elskom/luadec/opcode"

type branchKind int

const (
	brEQ branchKind = iota
	brLT
	brLE
	brTest
	brTestSet
	brTrue
	brAssign
	brAnd
	brOr
)

// branch is a condition under which control falls into [begin, end).
//
// Leaves read their operands from the register state at line, composites take line and span from
// their right side.
type branch struct {
	kind branchKind

	line, begin, end int
	invert           bool

	// Comparisons use a and b as RK operands. Test uses a as the tested register, TestSet tests b and
	// copies into a. Assign uses a as the register the assigned value is read from.
	a, b int

	left, right *branch

	isSet        bool
	isCompareSet bool
	setTarget    int

	value ast.Expr // Assign only, the expression supplied by useExpression.
}

func newCompare(kind branchKind, left, right int, invert bool, line, begin, end int) *branch {
	return &branch{kind: kind, a: left, b: right, invert: invert, line: line, begin: begin, end: end, setTarget: -1}
}

func newTest(test int, invert bool, line, begin, end int) *branch {
	return &branch{kind: brTest, a: test, invert: invert, line: line, begin: begin, end: end, setTarget: -1}
}

func newTestSet(target, test int, invert bool, line, begin, end int) *branch {
	return &branch{kind: brTestSet, a: target, b: test, invert: invert, line: line, begin: begin, end: end, setTarget: target}
}

func newTrue(target int, invert bool, line, begin, end int) *branch {
	return &branch{kind: brTrue, invert: invert, line: line, begin: begin, end: end, setTarget: target}
}

func newAssign(target, line, begin, end int) *branch {
	return &branch{kind: brAssign, a: target, line: line, begin: begin, end: end, setTarget: target}
}

func newAnd(left, right *branch) *branch {
	return &branch{kind: brAnd, left: left, right: right, line: right.line, begin: right.begin, end: right.end, setTarget: -1}
}

func newOr(left, right *branch) *branch {
	return &branch{kind: brOr, left: left, right: right, line: right.line, begin: right.begin, end: right.end, setTarget: -1}
}

// inverted returns the branch with the opposite sense. The span swaps ends.
func (b *branch) inverted() *branch {
	switch b.kind {
	case brAnd:
		return newOr(b.left.inverted(), b.right.inverted())
	case brOr:
		return newAnd(b.left.inverted(), b.right.inverted())
	}
	n := *b
	n.invert = !b.invert
	n.begin, n.end = b.end, b.begin
	return &n
}

// useExpression provides the value Assign leaves evaluate to.
func (b *branch) useExpression(e ast.Expr) {
	switch b.kind {
	case brAnd, brOr:
		b.left.useExpression(e)
		b.right.useExpression(e)
	case brAssign:
		b.value = e
	}
}

func (b *branch) expression(r *registers) ast.Expr {
	switch b.kind {
	case brEQ:
		op := ast.OpEqual
		if b.invert {
			op = ast.OpNotEqual
		}
		return ast.Binary(op, r.kexpression(b.a, b.line), r.kexpression(b.b, b.line))
	case brLT:
		return b.ordered(r, false)
	case brLE:
		return b.ordered(r, true)
	case brTest:
		return b.maybeNot(r.expression(b.a, b.line))
	case brTestSet:
		return b.maybeNot(r.expression(b.b, b.line))
	case brTrue:
		if b.invert {
			return ast.True
		}
		return ast.False
	case brAssign:
		if b.value != nil {
			return b.value
		}
		return r.value(b.a, b.line+1)
	case brAnd:
		return ast.Binary(ast.OpAnd, b.left.expression(r), b.right.expression(r))
	case brOr:
		return ast.Binary(ast.OpOr, b.left.expression(r), b.right.expression(r))
	}
	panic("unreachable")
}

func (b *branch) maybeNot(e ast.Expr) ast.Expr {
	if b.invert {
		return ast.Unary(ast.OpNot, e)
	}
	return e
}

// ordered prints a < or <= comparison, transposed to > or >= when the operands were evaluated in
// the opposite order from the one the instruction reads them in.
func (b *branch) ordered(r *registers, orEqual bool) ast.Expr {
	left := r.kexpression(b.a, b.line)
	right := r.kexpression(b.b, b.line)

	var transpose bool
	if !opcode.IsK(b.a) && !opcode.IsK(b.b) {
		transpose = r.lastUpdate(b.a, b.line) > r.lastUpdate(b.b, b.line)
	} else {
		transpose = constantIndex(right) < constantIndex(left)
	}

	op := ast.OpLessThan
	if orEqual {
		op = ast.OpLessOrEqual
	}
	if transpose {
		op = ast.OpGreaterThan
		if orEqual {
			op = ast.OpGreaterOrEqual
		}
		left, right = right, left
	}
	return b.maybeNot(ast.Binary(op, left, right))
}

func constantIndex(e ast.Expr) int {
	if c, ok := e.(*ast.Constant); ok {
		return c.Index
	}
	return -1
}
