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

import "bytes"
import "fmt"
import "text/tabwriter"

import "github.com/Elskom/luadec/opcode"

// Function is one compiled function prototype.
//
// Anything marked "Debug info" may or may not be set, stripped chunks carry none of it.
type Function struct {
	Header *Header

	Code      []uint32
	Constants []Constant
	Functions []*Function
	Upvalues  []Upvalue
	LineInfo  []int   // Debug info
	Locals    []Local // Debug info

	Source          string // Debug info
	LineDefined     int    // Debug info
	LastLineDefined int    // Debug info

	NumParams int
	MaxStack  int

	// 5.1: 1 = has arg, 2 = is vararg, 4 = needs arg. 5.2: non-zero = is vararg.
	VarargFlags byte
}

// Local is a local variable's debug range. Start and End are 0-based instruction indexes,
// the variable is live from Start up to but not including End.
type Local struct {
	Name  string
	Start int
	End   int
}

type Upvalue struct {
	// Is this upvalue a reference to one of its parent's registers? (Else it is a reference
	// to one of its parent's upvalues.) Only set for 5.2.
	InStack bool
	Index   int
	Name    string // Debug info
}

// Version is shorthand for the header's version.
func (f *Function) Version() opcode.Version {
	return f.Header.Version
}

// IsVararg returns true if the function takes "...".
func (f *Function) IsVararg() bool {
	if f.Version() == opcode.Lua51 {
		return f.VarargFlags&2 != 0
	}
	return f.VarargFlags != 0
}

// HasArg is true for 5.1 functions with the compatibility "arg" local.
func (f *Function) HasArg() bool {
	return f.Version() == opcode.Lua51 && f.VarargFlags&1 != 0
}

// Instruction decodes the instruction at the given 0-based index.
func (f *Function) Instruction(pc int) (opcode.Instruction, error) {
	return opcode.Decode(f.Version(), f.Code[pc])
}

func (f *Function) String() string {
	return f.str("")
}

func (f *Function) str(prefix string) string {
	out := new(bytes.Buffer)
	fmt.Fprintf(out, "%v:%v:%v (Lua %v)\n", f.Source, f.LineDefined, f.LastLineDefined, f.Version())
	fmt.Fprintf(out, "%v params: %v, vararg: %v, stack: %v\n", prefix, f.NumParams, f.IsVararg(), f.MaxStack)

	w := tabwriter.NewWriter(out, 2, 8, 2, ' ', 0)
	fmt.Fprintf(out, "%v Code:\n", prefix)
	for j, word := range f.Code {
		i, err := f.Instruction(j)
		if err != nil {
			fmt.Fprintf(w, "%v  [%v]\t0x%08x\t; %v\n", prefix, j+1, word, err)
			continue
		}

		extra := ""
		_, b, c, bx, sbx := i.Op.Operands()
		if b == 2 && opcode.IsK(i.B) {
			extra += " B=" + f.constant(opcode.IndexK(i.B))
		}
		if c == 2 && opcode.IsK(i.C) {
			extra += " C=" + f.constant(opcode.IndexK(i.C))
		}
		if bx != 0 && (i.Op == opcode.OpLoadK || i.Op == opcode.OpGetGlobal || i.Op == opcode.OpSetGlobal) {
			extra += " " + f.constant(i.Bx)
		}
		if sbx != 0 && !(i.Op == opcode.OpTForLoop && f.Version() == opcode.Lua51) {
			extra = fmt.Sprintf("%s to [%d]", extra, j+i.SBx+2)
		}

		if extra != "" {
			fmt.Fprintf(w, "%v  [%v]\t%v\t;%v\n", prefix, j+1, i, extra)
		} else {
			fmt.Fprintf(w, "%v  [%v]\t%v\t\n", prefix, j+1, i)
		}
	}
	w.Flush()

	fmt.Fprintf(out, "%v Locals:\n", prefix)
	if len(f.Locals) == 0 {
		fmt.Fprintf(out, "%v  None.\n", prefix)
	}
	for i, v := range f.Locals {
		fmt.Fprintf(w, "%v  [%v]\t%q:\t[%v,%v)\n", prefix, i, v.Name, v.Start, v.End)
	}
	w.Flush()

	fmt.Fprintf(out, "%v UpValues:\n", prefix)
	if len(f.Upvalues) == 0 {
		fmt.Fprintf(out, "%v  None.\n", prefix)
	}
	for i, v := range f.Upvalues {
		fmt.Fprintf(w, "%v  [%v]\t%q:\tIdx:%v\tInStack:%v\n", prefix, i, v.Name, v.Index, v.InStack)
	}
	w.Flush()

	fmt.Fprintf(out, "%v Constants:\n", prefix)
	if len(f.Constants) == 0 {
		fmt.Fprintf(out, "%v  None.\n", prefix)
	}
	for i, v := range f.Constants {
		fmt.Fprintf(w, "%v  [%v]\t%v\n", prefix, i, v)
	}
	w.Flush()

	fmt.Fprintf(out, "%v Closures:\n", prefix)
	if len(f.Functions) == 0 {
		fmt.Fprintf(out, "%v  None.\n", prefix)
	}
	for i, p := range f.Functions {
		fmt.Fprintf(out, "%v  [%v] %v\n", prefix, i, p.str(fmt.Sprintf("%v  [%v]", prefix, i)))
	}

	return string(bytes.TrimSpace(out.Bytes()))
}

func (f *Function) constant(i int) string {
	if i < 0 || i >= len(f.Constants) {
		return fmt.Sprintf("k(%d)?", i)
	}
	return f.Constants[i].String()
}

// Strip returns a copy of the function tree with all debug info removed.
func Strip(f *Function) *Function {
	n := *f
	n.LineInfo = nil
	n.Locals = nil
	n.Source = ""
	n.Upvalues = make([]Upvalue, len(f.Upvalues))
	for i, u := range f.Upvalues {
		n.Upvalues[i] = Upvalue{InStack: u.InStack, Index: u.Index}
	}
	n.Functions = make([]*Function, len(f.Functions))
	for i, p := range f.Functions {
		n.Functions[i] = Strip(p)
	}
	return &n
}
