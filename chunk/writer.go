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

import "encoding/binary"
import "io"
import "math"

import "golang.org/x/crypto/cryptobyte"

import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// dumper mirrors reader.
type dumper struct {
	b     *cryptobyte.Builder
	h     *Header
	order binary.ByteOrder
}

func (d *dumper) uint(size int, v uint64) {
	buf := make([]byte, 8)
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		d.order.PutUint16(buf, uint16(v))
	case 4:
		d.order.PutUint32(buf, uint32(v))
	default:
		d.order.PutUint64(buf, v)
	}
	d.b.AddBytes(buf[:size])
}

func (d *dumper) int(v int) {
	d.uint(d.h.IntSize, uint64(v))
}

func (d *dumper) string(s string, present bool) {
	if !present {
		d.uint(d.h.SizeTSize, 0)
		return
	}
	d.uint(d.h.SizeTSize, uint64(len(s)+1))
	d.b.AddBytes([]byte(s))
	d.b.AddUint8(0)
}

func (d *dumper) number(c Constant) {
	switch {
	case d.h.Integral:
		d.uint(d.h.NumberSize, uint64(c.AsInteger()))
	case d.h.NumberSize == 4:
		d.uint(4, uint64(math.Float32bits(float32(c.number()))))
	default:
		d.uint(8, math.Float64bits(c.number()))
	}
}

func (d *dumper) constants(fn *Function) {
	d.int(len(fn.Constants))
	for _, c := range fn.Constants {
		d.b.AddUint8(byte(c.Type))
		switch c.Type {
		case TypBoolean:
			if c.Bool {
				d.b.AddUint8(1)
			} else {
				d.b.AddUint8(0)
			}
		case TypNumber:
			d.number(c)
		case TypString:
			d.string(c.Str, true)
		}
	}
}

func (d *dumper) debug(fn *Function) {
	d.int(len(fn.LineInfo))
	for _, l := range fn.LineInfo {
		d.int(l)
	}

	d.int(len(fn.Locals))
	for _, l := range fn.Locals {
		d.string(l.Name, true)
		d.int(l.Start)
		d.int(l.End)
	}

	names := 0
	for i, u := range fn.Upvalues {
		if u.Name != "" {
			names = i + 1
		}
	}
	d.int(names)
	for _, u := range fn.Upvalues[:names] {
		d.string(u.Name, true)
	}
}

func (d *dumper) function(fn *Function, psrc string) {
	// 5.1 children inherit the parent's source, 5.2 reads it after the nested functions so every
	// function carries its own.
	src := fn.Source
	if src == psrc && d.h.Version == opcode.Lua51 {
		src = ""
	}

	if d.h.Version == opcode.Lua51 {
		d.string(src, src != "")
	}
	d.int(fn.LineDefined)
	d.int(fn.LastLineDefined)
	if d.h.Version == opcode.Lua51 {
		d.b.AddUint8(uint8(len(fn.Upvalues)))
	}
	d.b.AddUint8(uint8(fn.NumParams))
	d.b.AddUint8(fn.VarargFlags)
	d.b.AddUint8(uint8(fn.MaxStack))

	d.int(len(fn.Code))
	for _, w := range fn.Code {
		d.uint(4, uint64(w))
	}

	d.constants(fn)
	d.int(len(fn.Functions))
	for _, p := range fn.Functions {
		d.function(p, fn.Source)
	}

	if d.h.Version == opcode.Lua52 {
		d.int(len(fn.Upvalues))
		for _, u := range fn.Upvalues {
			if u.InStack {
				d.b.AddUint8(1)
			} else {
				d.b.AddUint8(0)
			}
			d.b.AddUint8(uint8(u.Index))
		}
		d.string(src, src != "")
	}
	d.debug(fn)
}

// Bytes encodes a function tree as a binary chunk with the given header.
func Bytes(h *Header, fn *Function) ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddBytes([]byte(Signature))
	endian := byte(0)
	if h.LittleEndian {
		endian = 1
	}
	integral := byte(0)
	if h.Integral {
		integral = 1
	}
	b.AddBytes([]byte{
		byte(h.Version), h.Format, endian,
		byte(h.IntSize), byte(h.SizeTSize), byte(h.InstructionSize), byte(h.NumberSize), integral,
	})
	if h.Version == opcode.Lua52 {
		b.AddBytes([]byte(tail52))
	}

	d := &dumper{b: b, h: h, order: h.Order()}
	d.function(fn, "")

	out, err := b.Bytes()
	if err != nil {
		return nil, luautil.Error{Msg: "Chunk writer", Err: err, Type: luautil.ErrTypWrapped}
	}
	return out, nil
}

// Write encodes a function tree as a binary chunk and writes it to w.
func Write(w io.Writer, h *Header, fn *Function) error {
	out, err := Bytes(h, fn)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
