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
import "encoding/hex"
import "fmt"
import "io"
import "math"

import "golang.org/x/crypto/cryptobyte"
import "golang.org/x/crypto/sha3"

import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// Chunk is a parsed binary chunk: its header and the main function.
type Chunk struct {
	Header *Header
	Main   *Function
}

var errTruncated = io.ErrUnexpectedEOF

type reader struct {
	s     cryptobyte.String
	h     *Header
	order binary.ByteOrder
}

func (r *reader) byte() (byte, error) {
	var b uint8
	if !r.s.ReadUint8(&b) {
		return 0, errTruncated
	}
	return b, nil
}

func (r *reader) bytes(n uint64) ([]byte, error) {
	if n > uint64(len(r.s)) {
		return nil, errTruncated
	}
	var b []byte
	if !r.s.ReadBytes(&b, int(n)) {
		return nil, errTruncated
	}
	return b, nil
}

// uint reads an unsigned value of the given width in the chunk's byte order.
func (r *reader) uint(size int) (uint64, error) {
	b, err := r.bytes(uint64(size))
	if err != nil {
		return 0, err
	}

	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(r.order.Uint16(b)), nil
	case 4:
		return uint64(r.order.Uint32(b)), nil
	default:
		return r.order.Uint64(b), nil
	}
}

// sint reads a signed value of the given width.
func (r *reader) sint(size int) (int64, error) {
	u, err := r.uint(size)
	if err != nil {
		return 0, err
	}

	shift := uint(64 - 8*size)
	return int64(u<<shift) >> shift, nil
}

func (r *reader) readInt() (int, error) {
	i, err := r.sint(r.h.IntSize)
	return int(i), err
}

// readCount reads an int used as an element count, each element taking at least min bytes.
func (r *reader) readCount(min int) (int, error) {
	n, err := r.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 || uint64(n)*uint64(min) > uint64(len(r.s)) {
		return 0, luautil.Error{Msg: fmt.Sprintf("Chunk: Invalid element count %d", n), Type: luautil.ErrTypDecode}
	}
	return n, nil
}

// readString reads a size_t prefixed string. A zero size means no string at all.
func (r *reader) readString() (string, error) {
	size, err := r.uint(r.h.SizeTSize)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}

	b, err := r.bytes(size)
	if err != nil {
		return "", err
	}
	return string(b[:len(b)-1]), nil
}

func (r *reader) readNumber() (Constant, error) {
	if r.h.Integral {
		i, err := r.sint(r.h.NumberSize)
		return Integer(i), err
	}

	u, err := r.uint(r.h.NumberSize)
	if err != nil {
		return Constant{}, err
	}
	if r.h.NumberSize == 4 {
		return Number(float64(math.Float32frombits(uint32(u)))), nil
	}
	return Number(math.Float64frombits(u)), nil
}

func (r *reader) readCode(fn *Function) error {
	n, err := r.readCount(4)
	if err != nil {
		return err
	}

	fn.Code = make([]uint32, n)
	for i := range fn.Code {
		w, err := r.uint(4)
		if err != nil {
			return err
		}
		fn.Code[i] = uint32(w)
	}
	return nil
}

func (r *reader) readConstants(fn *Function) error {
	n, err := r.readCount(1)
	if err != nil {
		return err
	}

	fn.Constants = make([]Constant, n)
	for i := range fn.Constants {
		t, err := r.byte()
		if err != nil {
			return err
		}

		switch ConstantType(t) {
		case TypNil:
			fn.Constants[i] = Nil()

		case TypBoolean:
			b, err := r.byte()
			if err != nil {
				return err
			}
			fn.Constants[i] = Bool(b != 0)

		case TypNumber:
			fn.Constants[i], err = r.readNumber()
			if err != nil {
				return err
			}

		case TypString:
			s, err := r.readString()
			if err != nil {
				return err
			}
			fn.Constants[i] = String(s)

		default:
			return luautil.Error{Msg: fmt.Sprintf("Chunk: Invalid constant type %d", t), Type: luautil.ErrTypDecode}
		}
	}
	return nil
}

func (r *reader) readProtos(fn *Function) error {
	n, err := r.readCount(1)
	if err != nil {
		return err
	}

	fn.Functions = make([]*Function, n)
	for i := range fn.Functions {
		fn.Functions[i], err = r.readFunction(fn.Source)
		if err != nil {
			return err
		}
	}
	return nil
}

// readUpvalues reads the 5.2 upvalue descriptors.
func (r *reader) readUpvalues(fn *Function) error {
	n, err := r.readCount(2)
	if err != nil {
		return err
	}

	fn.Upvalues = make([]Upvalue, n)
	for i := range fn.Upvalues {
		b, err := r.bytes(2)
		if err != nil {
			return err
		}
		fn.Upvalues[i].InStack = b[0] != 0
		fn.Upvalues[i].Index = int(b[1])
	}
	return nil
}

func (r *reader) readDebug(fn *Function) error {
	n, err := r.readCount(r.h.IntSize)
	if err != nil {
		return err
	}

	fn.LineInfo = make([]int, n)
	for i := range fn.LineInfo {
		fn.LineInfo[i], err = r.readInt()
		if err != nil {
			return err
		}
	}

	n, err = r.readCount(1)
	if err != nil {
		return err
	}

	fn.Locals = make([]Local, n)
	for i := range fn.Locals {
		fn.Locals[i].Name, err = r.readString()
		if err != nil {
			return err
		}
		fn.Locals[i].Start, err = r.readInt()
		if err != nil {
			return err
		}
		fn.Locals[i].End, err = r.readInt()
		if err != nil {
			return err
		}
	}

	n, err = r.readCount(1)
	if err != nil {
		return err
	}

	// The upvalue count comes from the function header (5.1) or the descriptor list (5.2).
	if n > len(fn.Upvalues) {
		return luautil.Error{Msg: "Chunk: More upvalue names than upvalues", Type: luautil.ErrTypDecode}
	}
	for i := 0; i < n; i++ {
		fn.Upvalues[i].Name, err = r.readString()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) readFunction(psrc string) (*Function, error) {
	fn := &Function{Header: r.h}

	var err error
	if r.h.Version == opcode.Lua51 {
		fn.Source, err = r.readString()
		if err != nil {
			return nil, err
		}
	}

	fn.LineDefined, err = r.readInt()
	if err != nil {
		return nil, err
	}
	fn.LastLineDefined, err = r.readInt()
	if err != nil {
		return nil, err
	}

	var b []byte
	if r.h.Version == opcode.Lua51 {
		b, err = r.bytes(4)
		if err != nil {
			return nil, err
		}
		fn.Upvalues = make([]Upvalue, b[0])
		b = b[1:]
	} else {
		b, err = r.bytes(3)
		if err != nil {
			return nil, err
		}
	}
	fn.NumParams = int(b[0])
	fn.VarargFlags = b[1]
	fn.MaxStack = int(b[2])

	if err = r.readCode(fn); err != nil {
		return nil, err
	}
	if err = r.readConstants(fn); err != nil {
		return nil, err
	}

	if err = r.readProtos(fn); err != nil {
		return nil, err
	}

	if r.h.Version == opcode.Lua52 {
		if err = r.readUpvalues(fn); err != nil {
			return nil, err
		}
		fn.Source, err = r.readString()
		if err != nil {
			return nil, err
		}
	}

	if err = r.readDebug(fn); err != nil {
		return nil, err
	}

	if fn.Source == "" {
		fn.Source = psrc
	}
	if r.h.Version == opcode.Lua52 {
		for _, p := range fn.Functions {
			if p.Source == "" {
				p.Source = fn.Source
			}
		}
	}
	return fn, nil
}

// ReadHeader parses and validates the chunk header, returning it and the remaining bytes.
func ReadHeader(data []byte) (*Header, []byte, error) {
	s := cryptobyte.String(data)

	var sig []byte
	if !s.ReadBytes(&sig, len(Signature)) || string(sig) != Signature {
		return nil, nil, headerErr("Bad signature, not a binary chunk")
	}

	var f [8]byte
	if !s.CopyBytes(f[:]) {
		return nil, nil, headerErr("Truncated header")
	}

	h := &Header{
		Version:         opcode.Version(f[0]),
		Format:          f[1],
		IntSize:         int(f[3]),
		SizeTSize:       int(f[4]),
		InstructionSize: int(f[5]),
		NumberSize:      int(f[6]),
		Integral:        f[7] != 0,
	}
	switch f[2] {
	case 0:
	case 1:
		h.LittleEndian = true
	default:
		return nil, nil, headerErr("Invalid endianness flag %d", f[2])
	}
	if f[7] > 1 {
		return nil, nil, headerErr("Invalid integral flag %d", f[7])
	}
	if err := h.validate(); err != nil {
		return nil, nil, err
	}

	if h.Version == opcode.Lua52 {
		var tail []byte
		if !s.ReadBytes(&tail, len(tail52)) || string(tail) != tail52 {
			return nil, nil, headerErr("Corrupted conversion check")
		}
	}
	return h, s, nil
}

// ReadBytes parses a whole chunk from memory.
func ReadBytes(data []byte) (*Chunk, error) {
	h, rest, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	r := &reader{s: rest, h: h, order: h.Order()}
	fn, err := r.readFunction("=?")
	if err != nil {
		if _, ok := err.(luautil.Error); !ok {
			return nil, luautil.Error{Msg: "Chunk", Err: err, Type: luautil.ErrTypDecode}
		}
		return nil, err
	}
	return &Chunk{Header: h, Main: fn}, nil
}

// Read parses a whole chunk from a reader.
func Read(in io.Reader) (*Chunk, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, luautil.Error{Msg: "Chunk", Err: err, Type: luautil.ErrTypWrapped}
	}
	return ReadBytes(data)
}

// Fingerprint returns the hex encoded SHA3-256 digest of a chunk's bytes.
func Fingerprint(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
