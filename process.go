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
import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// operation is a deferred effect of one instruction (or of a finished block) on the register state.
// Running it may produce a statement for the enclosing block.
type operation interface {
	process(r *registers, blk *block) ast.Stmt
}

type operationFunc func(r *registers, blk *block) ast.Stmt

func (f operationFunc) process(r *registers, blk *block) ast.Stmt {
	return f(r, blk)
}

// registerSet stores a value in a register. Stores to a live local become assignments.
type registerSet struct {
	line     int
	register int
	value    ast.Expr
}

func (op *registerSet) process(r *registers, blk *block) ast.Stmt {
	r.setValue(op.register, op.line, op.value)
	if r.isAssignable(op.register, op.line) {
		return ast.NewAssignment(r.target(op.register, op.line), op.value)
	}
	return nil
}

type globalSet struct {
	name, env string
	value     ast.Expr
}

func (op *globalSet) process(r *registers, blk *block) ast.Stmt {
	return ast.NewAssignment(&ast.GlobalTarget{Name: op.name, Env: op.env}, op.value)
}

type upvalueSet struct {
	name  string
	value ast.Expr
}

func (op *upvalueSet) process(r *registers, blk *block) ast.Stmt {
	return ast.NewAssignment(&ast.UpvalueTarget{Name: op.name}, op.value)
}

// tableSet stores into a table. Stores into a constructor that is still being built become entries.
type tableSet struct {
	line              int
	table, key, value ast.Expr
}

func (op *tableSet) process(r *registers, blk *block) ast.Stmt {
	if t, ok := op.table.(*ast.Table); ok {
		t.AddEntry(ast.TableEntry{Key: op.key, Value: op.value, Timestamp: op.line})
		return nil
	}
	return ast.NewAssignment(&ast.IndexTarget{Table: op.table, Key: op.key}, op.value)
}

type stmtOp struct {
	stmt ast.Stmt
}

func (op *stmtOp) process(r *registers, blk *block) ast.Stmt {
	return op.stmt
}

// processLine lowers the instruction at line to operations.
func (d *decompiler) processLine(line int) []operation {
	r := d.r
	ins := d.ins(line)
	a, b, c := ins.A, ins.B, ins.C

	var ops []operation
	set := func(reg int, v ast.Expr) {
		ops = append(ops, &registerSet{line: line, register: reg, value: v})
	}

	switch ins.Op {
	case opcode.OpMove:
		set(a, r.expression(b, line))
	case opcode.OpLoadK:
		set(a, d.constant(ins.Bx, line))
	case opcode.OpLoadKX:
		set(a, d.constant(d.code[line+1].Ax, line))
	case opcode.OpLoadBool:
		if b != 0 {
			set(a, ast.True)
		} else {
			set(a, ast.False)
		}
	case opcode.OpLoadNil:
		for reg := a; reg <= d.loadNilLast(ins); reg++ {
			set(reg, ast.Nil)
		}

	case opcode.OpGetUpval:
		set(a, &ast.Upvalue{Name: d.upvalueName(b, line)})
	case opcode.OpGetGlobal:
		set(a, &ast.Global{Name: d.globalName(ins.Bx, line), Env: d.env})
	case opcode.OpGetTabUp:
		if name, ok := d.envGlobal(b, c, line); ok {
			set(a, &ast.Global{Name: name, Env: d.env})
		} else {
			set(a, &ast.Index{Table: &ast.Upvalue{Name: d.upvalueName(b, line)}, Key: r.kexpression(c, line)})
		}
	case opcode.OpGetTable:
		set(a, &ast.Index{Table: r.expression(b, line), Key: r.kexpression(c, line)})

	case opcode.OpSetGlobal:
		ops = append(ops, &globalSet{name: d.globalName(ins.Bx, line), env: d.env, value: r.expression(a, line)})
	case opcode.OpSetUpval:
		ops = append(ops, &upvalueSet{name: d.upvalueName(b, line), value: r.expression(a, line)})
	case opcode.OpSetTabUp:
		if name, ok := d.envGlobal(a, b, line); ok {
			ops = append(ops, &globalSet{name: name, env: d.env, value: r.kexpression(c, line)})
		} else {
			ops = append(ops, &tableSet{
				line:  line,
				table: &ast.Upvalue{Name: d.upvalueName(a, line)},
				key:   r.kexpression(b, line),
				value: r.kexpression(c, line),
			})
		}
	case opcode.OpSetTable:
		ops = append(ops, &tableSet{
			line:  line,
			table: r.expression(a, line),
			key:   r.kexpression(b, line),
			value: r.kexpression(c, line),
		})

	case opcode.OpNewTable:
		set(a, &ast.Table{})

	case opcode.OpSelf:
		obj := r.expression(b, line)
		set(a+1, obj)
		set(a, &ast.Index{Table: obj, Key: r.kexpression(c, line)})

	case opcode.OpAdd, opcode.OpSub, opcode.OpMul, opcode.OpDiv, opcode.OpMod, opcode.OpPow:
		set(a, arithmetic(ins.Op, r.kexpression(b, line), r.kexpression(c, line)))
	case opcode.OpUnm:
		set(a, ast.Unary(ast.OpUMinus, r.expression(b, line)))
	case opcode.OpNot:
		set(a, ast.Unary(ast.OpNot, r.expression(b, line)))
	case opcode.OpLen:
		set(a, ast.Unary(ast.OpLength, r.expression(b, line)))

	case opcode.OpConcat:
		v := r.expression(c, line)
		for reg := c - 1; reg >= b; reg-- {
			v = ast.Binary(ast.OpConcat, r.expression(reg, line), v)
		}
		set(a, v)

	case opcode.OpCall:
		multiple := c >= 3 || c == 0
		if c == 0 {
			c = r.count - a + 1
		}
		call := d.call(ins, line, multiple)
		switch {
		case c == 1:
			ops = append(ops, &stmtOp{&ast.CallStmt{Call: call}})
		case c == 2 && !multiple:
			set(a, call)
		default:
			for reg := a; reg <= a+c-2; reg++ {
				set(reg, call)
			}
		}

	case opcode.OpTailCall:
		ops = append(ops, &stmtOp{&ast.Return{Values: []ast.Expr{d.call(ins, line, true)}}})
		d.skip[line+1] = true

	case opcode.OpReturn:
		if b == 0 {
			b = r.count - a + 1
		}
		values := make([]ast.Expr, 0, b-1)
		for reg := a; reg <= a+b-2; reg++ {
			values = append(values, r.expression(reg, line))
		}
		ops = append(ops, &stmtOp{&ast.Return{Values: values}})

	case opcode.OpSetList:
		if c == 0 {
			extra := d.code[line+1]
			if d.version == opcode.Lua51 {
				c = int(extra.Word)
			} else {
				c = extra.Ax
			}
		}
		if b == 0 {
			b = r.count - a - 1
		}
		t, ok := r.value(a, line).(*ast.Table)
		if !ok {
			d.raise(line, luautil.ErrTypStructure, "SETLIST target is not a table constructor")
		}
		for i := 1; i <= b; i++ {
			key := ast.NewConstant(chunk.Integer(int64((c-1)*opcode.FieldsPerFlush+i)), -1)
			t.AddEntry(ast.TableEntry{Key: key, Value: r.expression(a+i, line), IsList: true, Timestamp: line})
		}

	case opcode.OpClosure:
		set(a, &ast.Closure{Body: d.child(ins.Bx, line)})

	case opcode.OpVararg:
		multiple := b != 2
		if b == 0 {
			b = r.count - a + 1
		}
		for reg := a; reg <= a+b-2; reg++ {
			set(reg, &ast.Vararg{Multiple: multiple})
		}
	}
	return ops
}

func arithmetic(op opcode.Op, l, r ast.Expr) ast.Expr {
	switch op {
	case opcode.OpAdd:
		return ast.Binary(ast.OpAdd, l, r)
	case opcode.OpSub:
		return ast.Binary(ast.OpSub, l, r)
	case opcode.OpMul:
		return ast.Binary(ast.OpMul, l, r)
	case opcode.OpDiv:
		return ast.Binary(ast.OpDiv, l, r)
	case opcode.OpMod:
		return ast.Binary(ast.OpMod, l, r)
	}
	return ast.Binary(ast.OpPow, l, r)
}

func (d *decompiler) call(ins opcode.Instruction, line int, multiple bool) *ast.Call {
	r := d.r
	b := ins.B
	if b == 0 {
		b = r.count - ins.A
	}
	args := make([]ast.Expr, 0, b)
	for reg := ins.A + 1; reg <= ins.A+b-1; reg++ {
		args = append(args, r.expression(reg, line))
	}
	return &ast.Call{Func: r.expression(ins.A, line), Args: args, Multiple: multiple}
}

// envGlobal reports if upvalue[key] is a global variable access, returning the name if so.
func (d *decompiler) envGlobal(upval, key, line int) (string, bool) {
	if d.upvalueName(upval, line) != "_ENV" || !opcode.IsK(key) {
		return "", false
	}
	k := d.constant(opcode.IndexK(key), line)
	if k.Value.Type != chunk.TypString {
		return "", false
	}
	return k.Value.Str, true
}

// processSequence walks the lines from begin to end, feeding the statements into the block tree.
//
// A block that ends at a line is processed before the line itself, its operation is applied at the
// previous line so the values it produces are visible from then on.
func (d *decompiler) processSequence(begin, end int) {
	next := 1
	stack := []*block{d.outer}
	for line := begin; line <= end; line++ {
		var handler operation
		for len(stack) > 1 {
			top := stack[len(stack)-1]
			if top.end > line {
				break
			}
			stack = stack[:len(stack)-1]
			blk := stack[len(stack)-1]
			handler = top.process()
			if handler != nil {
				d.processOperations(blk, line-1, []operation{handler})
				break
			}
		}
		if handler != nil {
			line--
			continue
		}

		for next < len(d.blocks) && d.blocks[next].begin <= line {
			stack = append(stack, d.blocks[next])
			next++
		}

		blk := stack[len(stack)-1]
		d.r.startLine(line)
		if d.skip[line] || d.pseudo[line] {
			d.declareLocals(blk, line, nil)
			continue
		}
		d.processOperations(blk, line, d.processLine(line))
	}
}

// processOperations runs the operations of one line. Assignments the line produces are merged into
// a single statement.
func (d *decompiler) processOperations(blk *block, line int, ops []operation) {
	var assign *ast.Assignment
	for _, op := range ops {
		s := op.process(d.r, blk)
		if s == nil {
			continue
		}
		if a, ok := s.(*ast.Assignment); ok {
			if assign != nil {
				for i, t := range a.Targets {
					assign.AddLast(t, a.Values[i])
				}
				continue
			}
			assign = a
		}
		blk.addStatement(s)
	}
	if assign != nil && line >= 1 {
		d.moveIntoTarget(blk, assign, line)
	}
	d.declareLocals(blk, line, assign)
}

// declareLocals turns the assignment (if any) into a local declaration for the locals starting at
// line, or adds a separate declaration for them.
func (d *decompiler) declareLocals(blk *block, line int, assign *ast.Assignment) {
	if line < 1 {
		return
	}
	var locals []*declaration
	for _, decl := range d.r.newLocals(line) {
		if !d.declared[decl] {
			locals = append(locals, decl)
		}
	}
	if len(locals) == 0 {
		return
	}

	if assign != nil && !assign.Declare && targetsAmong(assign, locals) {
		values := map[*declaration]ast.Expr{}
		for i, t := range assign.Targets {
			values[t.(*ast.VariableTarget).Decl.(*declaration)] = assign.Values[i]
		}
		assign.Targets = assign.Targets[:0]
		assign.Values = assign.Values[:0]
		for _, decl := range locals {
			v, ok := values[decl]
			if !ok {
				v = d.r.value(decl.register, line+1)
			}
			assign.AddLast(decl.target(), v)
		}
		assign.Declare = true
	} else {
		a := &ast.Assignment{Declare: true}
		for _, decl := range locals {
			a.AddLast(decl.target(), d.r.value(decl.register, line+1))
		}
		blk.addStatement(a)
	}

	if blk.keepsStatements() {
		for _, decl := range locals {
			d.declared[decl] = true
		}
	}
}

func targetsAmong(a *ast.Assignment, locals []*declaration) bool {
	for _, t := range a.Targets {
		vt, ok := t.(*ast.VariableTarget)
		if !ok {
			return false
		}
		found := false
		for _, decl := range locals {
			if vt.Decl == decl {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// moveIntoTarget folds the stores that follow an assignment into it: "a, b = b, a" compiles to a
// computation followed by moves into the real targets.
func (d *decompiler) moveIntoTarget(blk *block, a *ast.Assignment, line int) {
	for next := line + 1; next < blk.end && next <= d.length; next++ {
		if d.skip[next] || d.pseudo[next] || d.blockStart[next] || !d.isMoveIntoTarget(next) {
			return
		}
		ins := d.ins(next)
		r := d.r
		// The folded lines are never processed on their own, carry the state up to them here.
		r.startLine(next - 1)
		switch ins.Op {
		case opcode.OpMove:
			a.AddFirst(r.target(ins.A, next), r.value(ins.B, next))
		case opcode.OpSetUpval:
			a.AddFirst(&ast.UpvalueTarget{Name: d.upvalueName(ins.B, next)}, r.expression(ins.A, next))
		case opcode.OpSetGlobal:
			a.AddFirst(&ast.GlobalTarget{Name: d.globalName(ins.Bx, next), Env: d.env}, r.expression(ins.A, next))
		case opcode.OpSetTable:
			t := &ast.IndexTarget{Table: r.expression(ins.A, next), Key: r.kexpression(ins.B, next)}
			a.AddFirst(t, r.expression(ins.C, next))
		case opcode.OpSetTabUp:
			name, _ := d.envGlobal(ins.A, ins.B, next)
			a.AddFirst(&ast.GlobalTarget{Name: name, Env: d.env}, r.expression(ins.C, next))
		}
		d.skip[next] = true
	}
}

func (d *decompiler) isMoveIntoTarget(line int) bool {
	ins := d.ins(line)
	r := d.r
	switch ins.Op {
	case opcode.OpMove:
		return r.isAssignable(ins.A, line) && !r.isLocal(ins.B, line)
	case opcode.OpSetUpval, opcode.OpSetGlobal:
		return !r.isLocal(ins.A, line)
	case opcode.OpSetTable:
		return !opcode.IsK(ins.C) && !r.isLocal(ins.C, line)
	case opcode.OpSetTabUp:
		_, ok := d.envGlobal(ins.A, ins.B, line)
		return ok && !opcode.IsK(ins.C) && !r.isLocal(ins.C, line)
	}
	return false
}
