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
import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// rootUpvalues names the upvalues of a function that has no enclosing function to ask.
func rootUpvalues(fn *chunk.Function) []string {
	names := make([]string, len(fn.Upvalues))
	for i, u := range fn.Upvalues {
		switch {
		case u.Name != "":
			names[i] = u.Name
		case i == 0 && fn.Version() == opcode.Lua52:
			names[i] = "_ENV"
		default:
			names[i] = fmt.Sprintf("_UPVALUE%d_", i)
		}
	}
	return names
}

// childUpvalues names the upvalues of the closure created at line. Debug names win, otherwise the
// name of whatever the closure captures is used.
func (d *decompiler) childUpvalues(fn *chunk.Function, line int) []string {
	names := make([]string, len(fn.Upvalues))
	for i, u := range fn.Upvalues {
		if u.Name != "" {
			names[i] = u.Name
			continue
		}

		if d.version.InlineUpvalues() {
			capture := d.ins(line + 1 + i)
			switch capture.Op {
			case opcode.OpMove:
				names[i] = d.localName(capture.B, line)
			case opcode.OpGetUpval:
				names[i] = d.upvalueNameOr(capture.B)
			}
		} else if u.InStack {
			names[i] = d.localName(u.Index, line)
		} else {
			names[i] = d.upvalueNameOr(u.Index)
		}

		if names[i] == "" {
			names[i] = fmt.Sprintf("_UPVALUE%d_", i)
		}
	}
	return names
}

func (d *decompiler) localName(reg, line int) string {
	if decl := d.r.declaration(reg, line); decl != nil {
		return decl.name
	}
	return ""
}

func (d *decompiler) upvalueNameOr(idx int) string {
	if idx < 0 || idx >= len(d.upvalues) {
		return ""
	}
	return d.upvalues[idx]
}

// child decompiles nested function idx, created by the CLOSURE at line.
func (d *decompiler) child(idx, line int) ast.FunctionBody {
	fn := d.fn.Functions[idx]
	trace := fmt.Sprintf("%v/%v", d.trace, idx)
	body, err := decompileFunction(fn, trace, d.childUpvalues(fn, line), d.opts)
	if err != nil {
		if d.opts.SkipFailed {
			return &failedBody{fn: fn, err: err}
		}
		panic(err)
	}
	return body
}

// decompileFunction builds the block tree of a function. Nothing is printed yet.
func decompileFunction(fn *chunk.Function, trace string, upvalues []string, opts *Options) (d *decompiler, err error) {
	defer func() {
		if e := luautil.Recover(recover(), trace); e != nil {
			d, err = nil, e
		}
	}()

	d = newDecompiler(fn, trace, upvalues, opts)
	d.decompile()
	return d, nil
}

func (d *decompiler) Params() ([]string, bool) {
	names := make([]string, d.fn.NumParams)
	for i := range names {
		names[i] = d.decls[i].name
	}
	return names, d.fn.IsVararg()
}

func (d *decompiler) Empty() bool {
	return len(d.outer.body()) == 0
}

func (d *decompiler) PrintBody(out *ast.Output) {
	d.outer.Print(out)
}

// failedBody stands in for a nested function that could not be decompiled.
type failedBody struct {
	fn  *chunk.Function
	err error
}

func (b *failedBody) Params() ([]string, bool) {
	names := make([]string, b.fn.NumParams)
	for i := range names {
		if i < len(b.fn.Locals) {
			names[i] = b.fn.Locals[i].Name
		} else {
			names[i] = fmt.Sprintf("_ARG_%d_", i)
		}
	}
	return names, b.fn.IsVararg()
}

func (b *failedBody) Empty() bool {
	return false
}

func (b *failedBody) PrintBody(out *ast.Output) {
	(&ast.Comment{Text: "decompilation failed: " + b.err.Error()}).Print(out)
	out.Newline()
}
