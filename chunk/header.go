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

// Package chunk reads and writes compiled Lua 5.1 and 5.2 binary chunks.
package chunk

import "encoding/binary"
import "fmt"

import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// The fixed part of the header, standard for every chunk:
//
//   - 4 bytes: magic prefix (<ESC>Lua)
//   - 1 byte: hex version (0x51 or 0x52)
//   - 1 byte: format (0 is the official format)
//   - 1 byte: endianness (0 big, 1 little)
//   - 1 byte: int size in bytes
//   - 1 byte: size_t size in bytes
//   - 1 byte: instruction size in bytes (always 4)
//   - 1 byte: lua_Number size in bytes
//   - 1 byte: integral flag (1 if lua_Number is an integer type)
//   - 6 bytes: (5.2 only) the LUAC_TAIL conversion check
const Signature = "\x1bLua"

const tail52 = "\x19\x93\r\n\x1a\n"

// Header is the parsed chunk header. It is shared read-only by every Function read from the same chunk.
type Header struct {
	Version      opcode.Version
	Format       byte
	LittleEndian bool

	IntSize         int
	SizeTSize       int
	InstructionSize int
	NumberSize      int
	Integral        bool
}

// DefaultHeader returns the header the reference compiler writes on a common 64 bit little endian machine.
func DefaultHeader(v opcode.Version) *Header {
	return &Header{
		Version:         v,
		LittleEndian:    true,
		IntSize:         4,
		SizeTSize:       8,
		InstructionSize: 4,
		NumberSize:      8,
	}
}

// Order returns the byte order the chunk was written in.
func (h *Header) Order() binary.ByteOrder {
	if h.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (h *Header) String() string {
	endian := "big"
	if h.LittleEndian {
		endian = "little"
	}
	num := "float"
	if h.Integral {
		num = "integral"
	}
	return fmt.Sprintf("Lua %v, format %d, %v endian, int %d, size_t %d, instruction %d, number %d (%v)",
		h.Version, h.Format, endian, h.IntSize, h.SizeTSize, h.InstructionSize, h.NumberSize, num)
}

func headerErr(format string, v ...interface{}) error {
	return luautil.Error{Msg: "Header: " + fmt.Sprintf(format, v...), Type: luautil.ErrTypHeader}
}

// validate checks the fields that the rest of the reader depends on.
func (h *Header) validate() error {
	if !h.Version.Supported() {
		return headerErr("Unsupported version 0x%02x", byte(h.Version))
	}
	if h.Format != 0 {
		return headerErr("Unsupported format %d", h.Format)
	}
	if h.InstructionSize != 4 {
		return headerErr("Unsupported instruction size %d", h.InstructionSize)
	}
	if !validWidth(h.IntSize) || !validWidth(h.SizeTSize) {
		return headerErr("Unsupported int/size_t width %d/%d", h.IntSize, h.SizeTSize)
	}
	if h.Integral {
		if !validWidth(h.NumberSize) {
			return headerErr("Unsupported integral number width %d", h.NumberSize)
		}
	} else if h.NumberSize != 4 && h.NumberSize != 8 {
		return headerErr("Unsupported floating point number width %d", h.NumberSize)
	}
	return nil
}

func validWidth(n int) bool {
	return n == 1 || n == 2 || n == 4 || n == 8
}
