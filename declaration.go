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
import "github.com/Elskom/luadec/chunk"

// declaration is a named local with its live range. Lines are inclusive on both ends, begin is the
// line of the instruction that initialized the variable.
type declaration struct {
	name       string
	begin, end int
	register   int

	// Loop control variables. forLoop marks the hidden ones ("(for index)" and friends), forLoopExplicit
	// the names the loop header binds. Neither is ever declared with a "local" statement.
	forLoop         bool
	forLoopExplicit bool

	expr *ast.Local
}

func newDeclaration(name string, begin, end int) *declaration {
	d := &declaration{name: name, begin: begin, end: end, register: -1}
	d.expr = &ast.Local{Name: name, Decl: d}
	return d
}

func (d *declaration) target() ast.Target {
	return &ast.VariableTarget{Name: d.name, Decl: d}
}

func (d *declaration) String() string {
	return fmt.Sprintf("%v@r%v[%v,%v]", d.name, d.register, d.begin, d.end)
}

// declarations builds the declaration list for a function from its debug info. Stripped functions
// get synthesized parameter names so the header and body can still be printed.
func declarations(fn *chunk.Function, scopeEnd int) []*declaration {
	params := fn.NumParams
	if fn.HasArg() {
		params++
	}

	decls := make([]*declaration, 0, len(fn.Locals))
	for _, l := range fn.Locals {
		decls = append(decls, newDeclaration(l.Name, l.Start, l.End))
	}

	for i := len(decls); i < params; i++ {
		name := fmt.Sprintf("_ARG_%d_", i)
		if i == fn.NumParams {
			name = "arg"
		}
		decls = append(decls, newDeclaration(name, 0, scopeEnd))
	}
	return decls
}
