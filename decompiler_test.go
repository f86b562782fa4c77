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

import "bytes"
import "strings"
import "testing"

import "github.com/yuin/gopher-lua"

import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"
import "github.com/Elskom/luadec/testhelp"

const v51 = opcode.Lua51

func abc(op opcode.Op, a, b, c int) uint32 { return opcode.ABC(v51, op, a, b, c) }
func abx(op opcode.Op, a, bx int) uint32   { return opcode.ABx(v51, op, a, bx) }
func asbx(op opcode.Op, a, sbx int) uint32 { return opcode.AsBx(v51, op, a, sbx) }

// k turns a constant index into an RK operand.
func k(i int) int { return i | opcode.BitRK }

func main51(consts []chunk.Constant, locals []chunk.Local, code ...uint32) *chunk.Function {
	return &chunk.Function{
		Header:      chunk.DefaultHeader(v51),
		Source:      "@test.lua",
		MaxStack:    4,
		VarargFlags: 2,
		Code:        code,
		Constants:   consts,
		Locals:      locals,
	}
}

func decompile(t *testing.T, fn *chunk.Function, opts *Options) (string, error) {
	t.Helper()
	data, err := chunk.Bytes(fn.Header, fn)
	if err != nil {
		t.Fatal(err)
	}
	buf := new(bytes.Buffer)
	err = Decompile(bytes.NewReader(data), buf, opts)
	return buf.String(), err
}

func mustDecompile(t *testing.T, fn *chunk.Function) string {
	t.Helper()
	src, err := decompile(t, fn, &Options{Verify: true})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func names(s ...string) []chunk.Constant {
	c := make([]chunk.Constant, len(s))
	for i := range s {
		c[i] = chunk.String(s[i])
	}
	return c
}

func TestNumericFor(t *testing.T) {
	fn := main51(
		[]chunk.Constant{chunk.Number(1), chunk.Number(10)},
		[]chunk.Local{
			{Name: "(for index)", Start: 3, End: 5},
			{Name: "(for limit)", Start: 3, End: 5},
			{Name: "(for step)", Start: 3, End: 5},
			{Name: "i", Start: 4, End: 4},
		},
		abx(opcode.OpLoadK, 0, 0),
		abx(opcode.OpLoadK, 1, 1),
		abx(opcode.OpLoadK, 2, 0),
		asbx(opcode.OpForPrep, 0, 0),
		asbx(opcode.OpForLoop, 0, -1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "for i = 1, 10 do end")
}

func TestIfAnd(t *testing.T) {
	fn := main51(names("a", "b", "f"), nil,
		abx(opcode.OpGetGlobal, 0, 0),
		abc(opcode.OpTest, 0, 0, 0),
		asbx(opcode.OpJmp, 0, 5),
		abx(opcode.OpGetGlobal, 0, 1),
		abc(opcode.OpTest, 0, 0, 0),
		asbx(opcode.OpJmp, 0, 2),
		abx(opcode.OpGetGlobal, 0, 2),
		abc(opcode.OpCall, 0, 1, 1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	src := mustDecompile(t, fn)
	testhelp.AssertSource(t, src, "if a and b then\n  f()\nend")

	// The output must behave like the original.
	for _, c := range []struct {
		a, b  lua.LValue
		calls int
	}{
		{lua.LTrue, lua.LTrue, 1},
		{lua.LTrue, lua.LFalse, 0},
		{lua.LNil, lua.LTrue, 0},
	} {
		calls := 0
		l := lua.NewState()
		l.SetGlobal("a", c.a)
		l.SetGlobal("b", c.b)
		l.SetGlobal("f", l.NewFunction(func(*lua.LState) int {
			calls++
			return 0
		}))
		if err := l.DoString(src); err != nil {
			t.Fatal(err)
		}
		l.Close()
		testhelp.Assertf(t, calls == c.calls, "a=%v b=%v: %v calls, want %v", c.a, c.b, calls, c.calls)
	}
}

func TestIfElse(t *testing.T) {
	fn := main51(names("a", "x", "y"), nil,
		abx(opcode.OpGetGlobal, 0, 0),
		abc(opcode.OpTest, 0, 0, 0),
		asbx(opcode.OpJmp, 0, 3),
		abx(opcode.OpGetGlobal, 0, 1),
		abc(opcode.OpCall, 0, 1, 1),
		asbx(opcode.OpJmp, 0, 2),
		abx(opcode.OpGetGlobal, 0, 2),
		abc(opcode.OpCall, 0, 1, 1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "if a then\n  x()\nelse\n  y()\nend")
}

func TestReturnConstant(t *testing.T) {
	fn := main51(names("x"), nil,
		abx(opcode.OpLoadK, 0, 0),
		abc(opcode.OpReturn, 0, 2, 0),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	src := mustDecompile(t, fn)
	testhelp.AssertSource(t, src, `return "x"`)

	l := lua.NewState()
	defer l.Close()
	if err := l.DoString(src); err != nil {
		t.Fatal(err)
	}
	testhelp.Assert(t, l.Get(-1).String() == "x", "wrong result", l.Get(-1))
}

func TestEmptyWhile(t *testing.T) {
	fn := main51(names("x"), nil,
		abx(opcode.OpGetGlobal, 0, 0),
		abc(opcode.OpTest, 0, 0, 0),
		asbx(opcode.OpJmp, 0, 1),
		asbx(opcode.OpJmp, 0, -4),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "while x do end")
}

func TestRepeat(t *testing.T) {
	fn := main51(names("f", "x"), nil,
		abx(opcode.OpGetGlobal, 0, 0),
		abc(opcode.OpCall, 0, 1, 1),
		abx(opcode.OpGetGlobal, 0, 1),
		abc(opcode.OpTest, 0, 0, 0),
		asbx(opcode.OpJmp, 0, -5),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "repeat\n  f()\nuntil x")
}

func TestLocalAnd(t *testing.T) {
	fn := main51(names("a", "b"), []chunk.Local{{Name: "x", Start: 4, End: 4}},
		abx(opcode.OpGetGlobal, 0, 0),
		abc(opcode.OpTest, 0, 0, 0),
		asbx(opcode.OpJmp, 0, 1),
		abx(opcode.OpGetGlobal, 0, 1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "local x = a and b")
}

func TestSwap(t *testing.T) {
	fn := main51([]chunk.Constant{chunk.Number(1), chunk.Number(2)},
		[]chunk.Local{{Name: "a", Start: 2, End: 5}, {Name: "b", Start: 2, End: 5}},
		abx(opcode.OpLoadK, 0, 0),
		abx(opcode.OpLoadK, 1, 1),
		abc(opcode.OpMove, 2, 1, 0),
		abc(opcode.OpMove, 1, 0, 0),
		abc(opcode.OpMove, 0, 2, 0),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "local a, b = 1, 2\na, b = b, a")
}

func TestTableConstructor(t *testing.T) {
	fn := main51([]chunk.Constant{chunk.Number(1), chunk.Number(2), chunk.Number(3)},
		[]chunk.Local{{Name: "t", Start: 5, End: 5}},
		abc(opcode.OpNewTable, 0, 3, 0),
		abx(opcode.OpLoadK, 1, 0),
		abx(opcode.OpLoadK, 2, 1),
		abx(opcode.OpLoadK, 3, 2),
		abc(opcode.OpSetList, 0, 3, 1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "local t = {1, 2, 3}")
}

func TestMethodCall(t *testing.T) {
	fn := main51([]chunk.Constant{chunk.String("obj"), chunk.String("m"), chunk.Number(1)}, nil,
		abx(opcode.OpGetGlobal, 0, 0),
		abc(opcode.OpSelf, 0, 0, k(1)),
		abx(opcode.OpLoadK, 2, 2),
		abc(opcode.OpCall, 0, 3, 1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	testhelp.AssertSource(t, mustDecompile(t, fn), "obj:m(1)")
}

func TestFunctionSugar(t *testing.T) {
	child := &chunk.Function{
		Header:    chunk.DefaultHeader(v51),
		NumParams: 1,
		MaxStack:  2,
		Code: []uint32{
			abc(opcode.OpReturn, 0, 2, 0),
			abc(opcode.OpReturn, 0, 1, 0),
		},
		Locals: []chunk.Local{{Name: "a", Start: 0, End: 1}},
	}
	fn := main51(names("f"), nil,
		abx(opcode.OpClosure, 0, 0),
		abx(opcode.OpSetGlobal, 0, 0),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	fn.Functions = []*chunk.Function{child}
	testhelp.AssertSource(t, mustDecompile(t, fn), "function f(a)\n  return a\nend")
}

func TestUpvalueNames(t *testing.T) {
	// The child is stripped, its upvalue is named after the local the closure captures.
	child := &chunk.Function{
		Header:   chunk.DefaultHeader(v51),
		MaxStack: 2,
		Code: []uint32{
			abc(opcode.OpGetUpval, 0, 0, 0),
			abc(opcode.OpReturn, 0, 2, 0),
			abc(opcode.OpReturn, 0, 1, 0),
		},
		Upvalues: []chunk.Upvalue{{}},
	}
	fn := main51([]chunk.Constant{chunk.Number(1), chunk.String("g")},
		[]chunk.Local{{Name: "x", Start: 1, End: 4}},
		abx(opcode.OpLoadK, 0, 0),
		abx(opcode.OpClosure, 1, 0),
		abc(opcode.OpMove, 0, 0, 0),
		abx(opcode.OpSetGlobal, 1, 1),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	fn.Functions = []*chunk.Function{child}
	testhelp.AssertSource(t, mustDecompile(t, fn), "local x = 1\nfunction g()\n  return x\nend")
}

func TestGlobals52(t *testing.T) {
	v := opcode.Lua52
	fn := &chunk.Function{
		Header:      chunk.DefaultHeader(v),
		Source:      "@test.lua",
		MaxStack:    2,
		VarargFlags: 1,
		Code: []uint32{
			opcode.ABC(v, opcode.OpGetTabUp, 0, 0, k(0)),
			opcode.ABx(v, opcode.OpLoadK, 1, 1),
			opcode.ABC(v, opcode.OpCall, 0, 2, 1),
			opcode.ABC(v, opcode.OpReturn, 0, 1, 0),
		},
		Constants: names("print", "hi"),
		Upvalues:  []chunk.Upvalue{{InStack: true, Index: 0}},
	}
	testhelp.AssertSource(t, mustDecompile(t, fn), `print("hi")`)
}

func brokenChild() *chunk.Function {
	return &chunk.Function{
		Header:   chunk.DefaultHeader(v51),
		MaxStack: 4,
		Code: []uint32{
			asbx(opcode.OpForLoop, 0, -1),
			abc(opcode.OpReturn, 0, 1, 0),
		},
	}
}

func TestStructureError(t *testing.T) {
	fn := main51(names("f"), nil,
		abx(opcode.OpClosure, 0, 0),
		abx(opcode.OpSetGlobal, 0, 0),
		abc(opcode.OpReturn, 0, 1, 0),
	)
	fn.Functions = []*chunk.Function{brokenChild()}

	_, err := decompile(t, fn, nil)
	testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypStructure, "expected structure error, got %v", err)
	if e, ok := err.(luautil.Error); ok {
		testhelp.Assert(t, e.Trace == "main/0", "wrong trace", e.Trace)
		testhelp.Assert(t, e.Line == 1, "wrong line", e.Line)
	}

	src, err := decompile(t, fn, &Options{SkipFailed: true})
	if err != nil {
		t.Fatal(err)
	}
	testhelp.Assert(t, strings.HasPrefix(src, "function f()\n  -- decompilation failed: "), "no stub for the failed function:\n", src)
}

func TestBadHeader(t *testing.T) {
	fn := main51(nil, nil, abc(opcode.OpReturn, 0, 1, 0))
	data, err := chunk.Bytes(fn.Header, fn)
	if err != nil {
		t.Fatal(err)
	}
	data[1] = 'X'

	buf := new(bytes.Buffer)
	err = Decompile(bytes.NewReader(data), buf, nil)
	testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypHeader, "expected header error, got %v", err)
	testhelp.Assert(t, buf.Len() == 0, "output written for a bad chunk")
}

func TestStrippedParams(t *testing.T) {
	fn := &chunk.Function{NumParams: 2, VarargFlags: 1 | 2 | 4, Header: chunk.DefaultHeader(v51)}
	decls := declarations(fn, 3)
	testhelp.Assert(t, len(decls) == 3, "wrong count", len(decls))
	testhelp.Assert(t, decls[0].name == "_ARG_0_" && decls[1].name == "_ARG_1_", "wrong names", decls)
	testhelp.Assert(t, decls[2].name == "arg" && decls[2].end == 3, "missing arg", decls[2])
}
