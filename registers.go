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

import "fmt"

import "github.com/Elskom/luadec/ast"
import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// registers is the per-function data flow memory: for every register and line, the live declaration,
// the last known value, and the line that value was written at.
//
// Line 0 is the function entry state, lines 1..length are the instructions. All tables are flat
// slices indexed by line*count + register.
type registers struct {
	d *decompiler

	count  int
	length int

	decls   []*declaration
	values  []ast.Expr
	updated []int
	started []bool
}

func newRegisters(d *decompiler, count, length int, decls []*declaration) *registers {
	r := &registers{
		d:       d,
		count:   count,
		length:  length,
		decls:   make([]*declaration, count*(length+1)),
		values:  make([]ast.Expr, count*(length+1)),
		updated: make([]int, count*(length+1)),
		started: make([]bool, length+1),
	}

	for _, decl := range decls {
		if decl.begin < 0 || decl.begin > length {
			d.raise(0, luautil.ErrTypStructure, "Local %q begins outside the function (%v)", decl.name, decl.begin)
		}
		if decl.end < decl.begin || decl.end > d.outer.scopeEnd() {
			d.raise(decl.begin, luautil.ErrTypStructure, "Local %q ends outside the function (%v)", decl.name, decl.end)
		}

		reg := 0
		for reg < count && r.decls[r.index(reg, decl.begin)] != nil {
			reg++
		}
		if reg >= count {
			d.raise(decl.begin, luautil.ErrTypStructure, "No free register for local %q", decl.name)
		}
		decl.register = reg
		r.declare(decl, reg, decl.begin, decl.end)
	}

	for reg := 0; reg < count; reg++ {
		r.values[r.index(reg, 0)] = ast.Nil
	}
	return r
}

func (r *registers) index(reg, line int) int {
	return line*r.count + reg
}

func (r *registers) valid(reg, line int) bool {
	return reg >= 0 && reg < r.count && line >= 0 && line <= r.length
}

func (r *registers) declare(decl *declaration, reg, begin, end int) {
	for line := begin; line <= end && line <= r.length; line++ {
		r.decls[r.index(reg, line)] = decl
	}
}

func (r *registers) isLocal(reg, line int) bool {
	if !r.valid(reg, line) {
		return false
	}
	return r.decls[r.index(reg, line)] != nil
}

// isAssignable is true for registers that hold a local a statement can assign to.
func (r *registers) isAssignable(reg, line int) bool {
	return r.isLocal(reg, line) && !r.decls[r.index(reg, line)].forLoop
}

// isNewLocal is true if a local that needs a "local" statement starts at line.
func (r *registers) isNewLocal(reg, line int) bool {
	decl := r.declaration(reg, line)
	return decl != nil && decl.begin == line && !decl.forLoop && !decl.forLoopExplicit
}

func (r *registers) newLocals(line int) []*declaration {
	var locals []*declaration
	for reg := 0; reg < r.count; reg++ {
		if r.isNewLocal(reg, line) {
			locals = append(locals, r.declaration(reg, line))
		}
	}
	return locals
}

func (r *registers) declaration(reg, line int) *declaration {
	if !r.valid(reg, line) {
		return nil
	}
	return r.decls[r.index(reg, line)]
}

// startLine carries every register's state over from the previous line. Repeated calls are ignored.
func (r *registers) startLine(line int) {
	if line < 1 || line > r.length || r.started[line] {
		return
	}
	r.started[line] = true
	for reg := 0; reg < r.count; reg++ {
		r.values[r.index(reg, line)] = r.values[r.index(reg, line-1)]
		r.updated[r.index(reg, line)] = r.updated[r.index(reg, line-1)]
	}
}

// expression returns what an instruction at line sees when it reads reg: the local's name if one
// is live, else the value the register was last given.
func (r *registers) expression(reg, line int) ast.Expr {
	if r.isLocal(reg, line-1) {
		return r.decls[r.index(reg, line-1)].expr
	}
	return r.value(reg, line)
}

// kexpression is expression for RK operands.
func (r *registers) kexpression(x, line int) ast.Expr {
	if opcode.IsK(x) {
		return r.d.constant(opcode.IndexK(x), line)
	}
	return r.expression(x, line)
}

// value returns the value reg held before the instruction at line ran.
func (r *registers) value(reg, line int) ast.Expr {
	if !r.valid(reg, line-1) {
		r.d.raise(line, luautil.ErrTypStructure, "Register %v read out of range", reg)
	}
	v := r.values[r.index(reg, line-1)]
	if v == nil {
		return ast.Nil
	}
	return v
}

func (r *registers) lastUpdate(reg, line int) int {
	if !r.valid(reg, line) {
		return 0
	}
	return r.updated[r.index(reg, line)]
}

func (r *registers) setValue(reg, line int, v ast.Expr) {
	if !r.valid(reg, line) {
		r.d.raise(line, luautil.ErrTypStructure, "Register %v written out of range", reg)
	}
	r.values[r.index(reg, line)] = v
	r.updated[r.index(reg, line)] = line
}

func (r *registers) target(reg, line int) ast.Target {
	decl := r.declaration(reg, line)
	if decl == nil {
		r.d.raise(line, luautil.ErrTypStructure, "No declaration exists in register %v", reg)
	}
	return decl.target()
}

// setInternalLoopVariable marks the hidden control register of a loop, synthesizing a declaration if
// the function carries no debug info for it.
func (r *registers) setInternalLoopVariable(reg, begin, end int) {
	decl := r.declaration(reg, begin)
	if decl == nil {
		decl = r.synthesize("_FOR_", reg, begin, end)
	}
	decl.forLoop = true
}

// setExplicitLoopVariable marks a variable bound by a loop header.
func (r *registers) setExplicitLoopVariable(reg, begin, end int) {
	decl := r.declaration(reg, begin)
	if decl == nil {
		decl = r.synthesize(fmt.Sprintf("_FORV_%d_", reg), reg, begin, end)
	}
	decl.forLoopExplicit = true
}

func (r *registers) synthesize(name string, reg, begin, end int) *declaration {
	if !r.valid(reg, begin) {
		r.d.raise(begin, luautil.ErrTypStructure, "Loop variable register %v out of range", reg)
	}
	decl := newDeclaration(name, begin, end)
	decl.register = reg
	r.declare(decl, reg, begin, end)
	r.d.decls = append(r.d.decls, decl)
	return decl
}
