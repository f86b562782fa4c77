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

package main

import "bytes"
import "os"
import "path/filepath"
import "strings"
import "testing"

import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/opcode"
import "github.com/Elskom/luadec/testhelp"

func writeChunk(t *testing.T) (string, []byte) {
	t.Helper()
	v := opcode.Lua51
	child := &chunk.Function{
		Header:   chunk.DefaultHeader(v),
		MaxStack: 2,
		Code: []uint32{
			opcode.ABx(v, opcode.OpLoadK, 0, 0),
			opcode.ABC(v, opcode.OpReturn, 0, 2, 0),
			opcode.ABC(v, opcode.OpReturn, 0, 1, 0),
		},
		Constants: []chunk.Constant{chunk.Number(42)},
	}
	fn := &chunk.Function{
		Header:      chunk.DefaultHeader(v),
		Source:      "@answer.lua",
		MaxStack:    2,
		VarargFlags: 2,
		Code: []uint32{
			opcode.ABx(v, opcode.OpClosure, 0, 0),
			opcode.ABx(v, opcode.OpSetGlobal, 0, 0),
			opcode.ABC(v, opcode.OpReturn, 0, 1, 0),
		},
		Constants: []chunk.Constant{chunk.String("answer")},
		Functions: []*chunk.Function{child},
	}

	data, err := chunk.Bytes(fn.Header, fn)
	if err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "answer.luac")
	if err := os.WriteFile(name, data, 0o666); err != nil {
		t.Fatal(err)
	}
	return name, data
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecompileCommand(t *testing.T) {
	name, data := writeChunk(t)

	out, err := run(t, "decompile", "--verify", name)
	if err != nil {
		t.Fatal(err)
	}
	testhelp.AssertSource(t, out, "function answer()\n  return 42\nend")

	out, err = run(t, "decompile", "--header", name)
	if err != nil {
		t.Fatal(err)
	}
	testhelp.Assert(t, strings.Contains(out, "-- sha3-256: "+chunk.Fingerprint(data)), "missing fingerprint:\n", out)
}

func TestInfoCommand(t *testing.T) {
	name, data := writeChunk(t)
	out, err := run(t, "info", name)
	if err != nil {
		t.Fatal(err)
	}
	testhelp.Assert(t, strings.Contains(out, "functions: 2"), "wrong function count:\n", out)
	testhelp.Assert(t, strings.Contains(out, chunk.Fingerprint(data)), "missing fingerprint:\n", out)
}

func TestStripCommand(t *testing.T) {
	name, _ := writeChunk(t)
	stripped := filepath.Join(t.TempDir(), "stripped.luac")
	if _, err := run(t, "strip", "-o", stripped, name); err != nil {
		t.Fatal(err)
	}

	_, c, err := load(stripped)
	if err != nil {
		t.Fatal(err)
	}
	// A chunk without a source name reads back with the "=?" placeholder.
	testhelp.Assert(t, c.Main.Source == "=?", "source survived stripping", c.Main.Source)
	testhelp.Assert(t, len(c.Main.Locals) == 0, "locals survived stripping")
	testhelp.Assert(t, len(c.Main.Functions) == 1, "nested function lost")
}

func TestFunctionAt(t *testing.T) {
	name, _ := writeChunk(t)
	_, c, err := load(name)
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"", "main", "/"} {
		fn, err := functionAt(c.Main, path)
		testhelp.Assert(t, err == nil && fn == c.Main, "path", path, err)
	}
	fn, err := functionAt(c.Main, "main/0")
	testhelp.Assert(t, err == nil && fn == c.Main.Functions[0], "main/0", err)
	_, err = functionAt(c.Main, "0/1")
	testhelp.Assert(t, err != nil, "expected an error for a missing function")
}

func TestSession(t *testing.T) {
	name, _ := writeChunk(t)
	s := &session{}
	out := new(bytes.Buffer)

	testhelp.Assert(t, !s.exec(out, "src"), "src exited")
	testhelp.Assert(t, strings.Contains(out.String(), "no chunk loaded"), "src without a chunk:\n", out)

	out.Reset()
	s.exec(out, "load "+name)
	s.exec(out, "src 0")
	testhelp.Assert(t, strings.Contains(out.String(), "return 42"), "src 0:\n", out)

	testhelp.Assert(t, s.exec(out, "quit"), "quit did not exit")
}
