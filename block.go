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
import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

type blockKind int

const (
	blkOuter blockKind = iota
	blkDoEnd
	blkIfThenEnd
	blkIfThenElse
	blkElseEnd
	blkWhile
	blkAlwaysLoop
	blkRepeat
	blkFor
	blkTFor
	blkBreak
	blkBooleanIndicator
	blkCompare
	blkSet
)

var blockNames = [...]string{
	"outer",
	"do",
	"if-then",
	"if-then-else",
	"else",
	"while",
	"always-loop",
	"repeat",
	"for",
	"generic-for",
	"break",
	"boolean-indicator",
	"compare",
	"set",
}

func (k blockKind) String() string {
	return blockNames[k]
}

// block is a structured region of the function. Blocks nest by span: [begin, end).
//
// Blocks are statements, once processed they are added to the statement list of the enclosing block.
type block struct {
	ast.StmtBase

	kind blockKind
	d    *decompiler

	begin, end int

	cond   *branch
	backup []*branch // Leaves popped while building cond, if-then blocks only.

	register int // Loop base register, or the target of a compare/set.
	vars     int // Number of explicit generic for variables.

	// While and if-then-else: the original target of the jump at the end of the block.
	// Break: the jump target.
	tail int

	emptyElse bool

	stmts []ast.Stmt
}

func (d *decompiler) newBlock(kind blockKind, begin, end int) *block {
	return &block{kind: kind, d: d, begin: begin, end: end, register: -1}
}

func (b *block) contains(line int) bool {
	return b.begin <= line && line < b.end
}

func (b *block) containsBlock(o *block) bool {
	return b.begin <= o.begin && b.end >= o.end
}

func (b *block) isContainer() bool {
	switch b.kind {
	case blkBreak, blkBooleanIndicator:
		return false
	}
	return true
}

func (b *block) breakable() bool {
	switch b.kind {
	case blkWhile, blkAlwaysLoop, blkRepeat, blkFor, blkTFor:
		return true
	}
	return false
}

// unprotected blocks end in a jump that the compiler may have redirected to an enclosing target.
func (b *block) unprotected() bool {
	switch b.kind {
	case blkIfThenElse, blkWhile, blkAlwaysLoop:
		return true
	}
	return false
}

func (b *block) loopback() int {
	switch b.kind {
	case blkIfThenElse, blkWhile:
		return b.tail
	case blkAlwaysLoop:
		return b.begin
	}
	b.d.raise(b.begin, luautil.ErrTypMajorInternal, "Block kind %v has no loopback", b.kind)
	return 0
}

// scopeEnd is the last line a local declared directly in the block can be live at.
func (b *block) scopeEnd() int {
	switch b.kind {
	case blkOuter:
		return b.end - 1 + b.d.version.OuterScopeAdjustment()
	case blkIfThenElse, blkWhile, blkAlwaysLoop, blkFor:
		return b.end - 2
	case blkTFor:
		return b.end - 3
	}
	return b.end - 1
}

// keepsStatements is false for blocks that are folded into an expression.
func (b *block) keepsStatements() bool {
	switch b.kind {
	case blkCompare, blkSet, blkBreak, blkBooleanIndicator:
		return false
	}
	return true
}

func (b *block) addStatement(s ast.Stmt) {
	if b.keepsStatements() {
		b.stmts = append(b.stmts, s)
	}
}

// process is run when the block ends. It returns the operation that stands in for the block in the
// enclosing one, or nil.
func (b *block) process() operation {
	r := b.d.r
	switch b.kind {
	case blkBooleanIndicator:
		return nil

	case blkCompare:
		return &registerSet{line: b.end - 1, register: b.register, value: b.cond.expression(r)}

	case blkSet:
		return operationFunc(func(r *registers, _ *block) ast.Stmt {
			return b.processSet(r)
		})

	case blkIfThenEnd:
		if op := b.selfAssign(r); op != nil {
			return op
		}
	}
	return operationFunc(func(*registers, *block) ast.Stmt {
		return b
	})
}

func (b *block) processSet(r *registers) ast.Stmt {
	d := b.d
	line := b.end - 1
	reg := b.register

	// The value was materialized with a LOADBOOL pair, read the branch result from there.
	if lb := b.end - 2; d.op(lb) == opcode.OpLoadBool && d.ins(lb).C != 0 {
		reg = d.ins(lb).A
		if d.op(lb-1) == opcode.OpJmp && d.ins(lb-1).SBx == 2 {
			b.cond.useExpression(r.value(reg, lb))
		} else {
			b.cond.useExpression(r.value(reg, b.begin))
		}
	}
	if reg < 0 {
		d.raise(line, luautil.ErrTypStructure, "Conditional assignment has no target register")
	}

	e := b.cond.expression(r)
	r.setValue(reg, line, e)
	if r.isAssignable(reg, line) {
		return ast.NewAssignment(r.target(reg, line), e)
	}
	return nil
}

// selfAssign turns "if not x then x = v end" into "x = x or v" (and the "and" form likewise).
func (b *block) selfAssign(r *registers) operation {
	if len(b.stmts) != 1 || len(b.backup) != 1 || b.backup[0].kind != brTest {
		return nil
	}
	a, ok := b.stmts[0].(*ast.Assignment)
	if !ok || a.Declare || len(a.Targets) != 1 || len(a.Values) != 1 {
		return nil
	}
	vt, ok := a.Targets[0].(*ast.VariableTarget)
	if !ok {
		return nil
	}

	test := b.backup[0]
	decl, _ := vt.Decl.(*declaration)
	if decl == nil || r.declaration(test.a, test.line-1) != decl {
		return nil
	}

	op := ast.OpAnd
	if test.invert {
		op = ast.OpOr
	}
	value := ast.Binary(op, decl.expr, a.Values[0])
	return operationFunc(func(*registers, *block) ast.Stmt {
		return ast.NewAssignment(vt, value)
	})
}

func (b *block) Print(out *ast.Output) {
	r := b.d.r
	switch b.kind {
	case blkOuter:
		ast.PrintSequence(out, b.body())

	case blkDoEnd:
		out.Print("do")
		printBody(out, b.stmts, "end")

	case blkIfThenEnd:
		out.Print("if ")
		b.cond.expression(r).Print(out)
		out.Print(" then")
		printBody(out, b.stmts, "end")

	case blkIfThenElse:
		out.Print("if ")
		b.cond.expression(r).Print(out)
		out.Print(" then")
		out.Newline()
		out.Indent()
		ast.PrintSequence(out, b.stmts)
		out.Dedent()
		if b.emptyElse {
			out.Println("else")
			out.Print("end")
		}

	case blkElseEnd:
		out.Print("else")
		switch {
		case len(b.stmts) == 1 && isBlock(b.stmts[0], blkIfThenEnd):
			b.stmts[0].Print(out)
		case len(b.stmts) == 2 && isBlock(b.stmts[0], blkIfThenElse) && isBlock(b.stmts[1], blkElseEnd):
			b.stmts[0].Print(out)
			b.stmts[1].Print(out)
		default:
			printBody(out, b.stmts, "end")
		}

	case blkWhile:
		out.Print("while ")
		b.cond.expression(r).Print(out)
		out.Print(" do")
		printBody(out, b.stmts, "end")

	case blkAlwaysLoop:
		out.Print("while true do")
		printBody(out, b.stmts, "end")

	case blkRepeat:
		out.Print("repeat")
		printBody(out, b.stmts, "until")
		out.Print(" ")
		b.cond.expression(r).Print(out)

	case blkFor:
		out.Print("for ")
		r.target(b.register+3, b.begin-1).Print(out)
		out.Print(" = ")
		r.value(b.register, b.begin-1).Print(out)
		out.Print(", ")
		r.value(b.register+1, b.begin-1).Print(out)
		step := r.value(b.register+2, b.begin-1)
		if c, ok := step.(*ast.Constant); !ok || !c.Value.IsInteger() || c.Value.AsInteger() != 1 {
			out.Print(", ")
			step.Print(out)
		}
		out.Print(" do")
		printBody(out, b.stmts, "end")

	case blkTFor:
		out.Print("for ")
		for i := 0; i < b.vars; i++ {
			if i > 0 {
				out.Print(", ")
			}
			r.target(b.register+3+i, b.begin-1).Print(out)
		}
		out.Print(" in ")
		values := make([]ast.Expr, 3)
		for i := range values {
			values[i] = r.value(b.register+i, b.begin-1)
		}
		printValues(out, values)
		out.Print(" do")
		printBody(out, b.stmts, "end")

	case blkBreak:
		out.Print("break")

	default:
		out.Print("-- unhandled " + b.kind.String() + " block")
	}
}

// body returns the outer block's statements without the implicit final return.
func (b *block) body() []ast.Stmt {
	stmts := b.stmts
	if n := len(stmts); n > 0 {
		if ret, ok := stmts[n-1].(*ast.Return); ok && len(ret.Values) == 0 {
			stmts = stmts[:n-1]
		}
	}
	return stmts
}

func isBlock(s ast.Stmt, kind blockKind) bool {
	b, ok := s.(*block)
	return ok && b.kind == kind
}

// printBody prints a block body followed by the closing keyword. Empty bodies stay on one line.
func printBody(out *ast.Output, stmts []ast.Stmt, closer string) {
	if len(stmts) == 0 {
		out.Print(" " + closer)
		return
	}
	out.Newline()
	out.Indent()
	ast.PrintSequence(out, stmts)
	out.Dedent()
	out.Print(closer)
}

// printValues prints an expression list as is, stopping after a multiple result expression.
func printValues(out *ast.Output, values []ast.Expr) {
	for i, v := range values {
		if i > 0 {
			out.Print(", ")
		}
		v.Print(out)
		if v.IsMultiple() {
			return
		}
	}
}
