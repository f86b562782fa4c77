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
import "testing"

import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"
import "github.com/Elskom/luadec/testhelp"

func sample(h *Header) *Function {
	v := h.Version
	child := &Function{
		Header:    h,
		NumParams: 1,
		MaxStack:  2,
		Code: []uint32{
			opcode.ABC(v, opcode.OpReturn, 0, 2, 0),
			opcode.ABC(v, opcode.OpReturn, 0, 1, 0),
		},
		Locals:   []Local{{Name: "x", Start: 0, End: 2}},
		Upvalues: []Upvalue{{InStack: true, Index: 0, Name: "up"}},
	}
	return &Function{
		Header:      h,
		Source:      "@test.lua",
		MaxStack:    2,
		VarargFlags: 2,
		Code: []uint32{
			opcode.ABx(v, opcode.OpLoadK, 0, 0),
			opcode.ABx(v, opcode.OpLoadK, 1, 1),
			opcode.ABC(v, opcode.OpReturn, 0, 1, 0),
		},
		Constants: []Constant{Number(1.5), String("hello"), Bool(true), Nil()},
		Functions: []*Function{child},
		LineInfo:  []int{1, 1, 1},
		Locals:    []Local{{Name: "a", Start: 1, End: 3}},
	}
}

func TestRoundTrip(t *testing.T) {
	headers := []*Header{
		DefaultHeader(opcode.Lua51),
		DefaultHeader(opcode.Lua52),
		{Version: opcode.Lua51, IntSize: 4, SizeTSize: 4, InstructionSize: 4, NumberSize: 8},
		{Version: opcode.Lua52, LittleEndian: true, IntSize: 4, SizeTSize: 4, InstructionSize: 4, NumberSize: 4, Integral: true},
	}

	for _, h := range headers {
		fn := sample(h)
		if h.Integral {
			fn.Constants[0] = Integer(-7)
		}

		data, err := Bytes(h, fn)
		if err != nil {
			t.Fatal(err)
		}

		c, err := ReadBytes(data)
		if err != nil {
			t.Fatalf("%v: %v", h, err)
		}

		testhelp.Assertf(t, *c.Header == *h, "header mismatch: %v vs %v", c.Header, h)
		m := c.Main
		testhelp.Assert(t, m.Source == "@test.lua", "source", m.Source)
		testhelp.Assert(t, len(m.Code) == 3 && m.Code[1] == fn.Code[1], "code")
		testhelp.Assert(t, len(m.Constants) == 4, "constants")
		for i := range m.Constants {
			testhelp.Assertf(t, m.Constants[i].Equal(fn.Constants[i]), "constant %d: %v vs %v", i, m.Constants[i], fn.Constants[i])
		}
		testhelp.Assert(t, m.IsVararg(), "vararg flag lost")
		testhelp.Assert(t, len(m.Locals) == 1 && m.Locals[0] == fn.Locals[0], "locals")
		testhelp.Assert(t, len(m.Functions) == 1, "protos")

		p := m.Functions[0]
		testhelp.Assert(t, p.Source == "@test.lua", "child should inherit the source", p.Source)
		testhelp.Assert(t, p.NumParams == 1 && len(p.Upvalues) == 1 && p.Upvalues[0].Name == "up", "child upvalues")
		if h.Version == opcode.Lua52 {
			testhelp.Assert(t, p.Upvalues[0].InStack, "5.2 instack flag lost")
		}
	}
}

func TestChildSource(t *testing.T) {
	for _, v := range []opcode.Version{opcode.Lua51, opcode.Lua52} {
		h := DefaultHeader(v)
		fn := sample(h)
		fn.Functions[0].Source = fn.Source

		data, err := Bytes(h, fn)
		if err != nil {
			t.Fatal(err)
		}
		c, err := ReadBytes(data)
		if err != nil {
			t.Fatalf("%v: %v", v, err)
		}
		testhelp.Assertf(t, c.Main.Functions[0].Source == "@test.lua", "%v: child source %q", v, c.Main.Functions[0].Source)

		// 5.2 writes the source of every function, 5.1 only where it differs from the parent.
		want := 1
		if v == opcode.Lua52 {
			want = 2
		}
		n := bytes.Count(data, []byte("@test.lua"))
		testhelp.Assertf(t, n == want, "%v: source written %v times, want %v", v, n, want)

		fn.Functions[0].Source = "@other.lua"
		data, err = Bytes(h, fn)
		if err != nil {
			t.Fatal(err)
		}
		c, err = ReadBytes(data)
		if err != nil {
			t.Fatalf("%v: %v", v, err)
		}
		testhelp.Assertf(t, c.Main.Functions[0].Source == "@other.lua", "%v: child source %q", v, c.Main.Functions[0].Source)
	}
}

func TestBadSignature(t *testing.T) {
	data, err := Bytes(DefaultHeader(opcode.Lua51), sample(DefaultHeader(opcode.Lua51)))
	if err != nil {
		t.Fatal(err)
	}
	data[1] = 'X'

	c, err := Read(bytes.NewReader(data))
	testhelp.Assert(t, c == nil, "partial chunk returned")
	testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypHeader, "expected header error, got %v", err)
}

func TestHeaderErrors(t *testing.T) {
	base := func() []byte {
		return []byte("\x1bLua\x51\x00\x01\x04\x08\x04\x08\x00")
	}

	mutations := []struct {
		name string
		at   int
		val  byte
	}{
		{"version", 4, 0x53},
		{"format", 5, 1},
		{"endianness", 6, 2},
		{"instruction size", 9, 8},
		{"number size", 10, 3},
		{"integral flag", 11, 5},
	}
	for _, m := range mutations {
		data := base()
		data[m.at] = m.val
		_, _, err := ReadHeader(data)
		testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypHeader, "%v: expected header error, got %v", m.name, err)
	}

	_, _, err := ReadHeader(base()[:7])
	testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypHeader, "truncated: expected header error, got %v", err)

	h, _, err := ReadHeader(base())
	testhelp.Assert(t, err == nil, err)
	testhelp.Assert(t, h != nil && h.Version == opcode.Lua51 && h.LittleEndian && h.SizeTSize == 8, "header fields")

	// 5.2 needs the conversion check bytes.
	data := base()
	data[4] = 0x52
	_, _, err = ReadHeader(append(data, "\x19\x93\r\n\x1a\x00"...))
	testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypHeader, "bad tail: expected header error, got %v", err)
}

func TestTruncatedBody(t *testing.T) {
	data, err := Bytes(DefaultHeader(opcode.Lua52), sample(DefaultHeader(opcode.Lua52)))
	if err != nil {
		t.Fatal(err)
	}

	_, err = ReadBytes(data[:len(data)-3])
	testhelp.Assertf(t, luautil.TypeOf(err) == luautil.ErrTypDecode, "expected decode error, got %v", err)
}

func TestStrip(t *testing.T) {
	fn := Strip(sample(DefaultHeader(opcode.Lua51)))
	testhelp.Assert(t, len(fn.Locals) == 0 && fn.Source == "" && len(fn.LineInfo) == 0, "debug info kept")
	testhelp.Assert(t, len(fn.Functions[0].Upvalues) == 1 && fn.Functions[0].Upvalues[0].Name == "", "upvalue names kept")
	testhelp.Assert(t, len(fn.Functions[0].Locals) == 0, "child locals kept")
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("abc"))
	testhelp.Assert(t, len(a) == 64, "digest length")
	testhelp.Assert(t, a == Fingerprint([]byte("abc")) && a != Fingerprint([]byte("abd")), "digest stability")
}

func TestListing(t *testing.T) {
	s := sample(DefaultHeader(opcode.Lua51)).String()
	testhelp.Assert(t, bytes.Contains([]byte(s), []byte("LOADK")), s)
	testhelp.Assert(t, bytes.Contains([]byte(s), []byte(`"hello"`)), s)
}
