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

// Luadec - A decompiler for Lua 5.1 and 5.2 binary chunks.
//
// Give it the output of luac (or string.dump) and it gives you back Lua source that compiles to the
// same thing, or something very close to it. Local names, parameter names and upvalue names come from
// the debug info if the chunk has it. Stripped chunks work too, but you get names like "_ARG_0_" and
// "_UPVALUE1_" instead.
//
// The decompiler does not run anything. It decodes the instructions, works out where the blocks
// (loops, ifs, breaks) are from the jump structure, and then replays the instructions over a model
// of the registers to rebuild the expressions. This works very well for code produced by the reference
// compiler. Hand written bytecode, or bytecode from other compilers, may well produce an error (or odd
// looking, but equivalent, code).
//
// Errors are always returned, never panicked, from the functions in this package. Use luautil.TypeOf to
// find out what kind of error you got. A header error means the input is not a chunk this package can
// read at all, a structure error means some function has a jump pattern the decompiler does not
// understand. If you would rather get the rest of the chunk in that case set Options.SkipFailed.
package luadec

import "bytes"
import "io"

import "github.com/yuin/gopher-lua/parse"

import "github.com/Elskom/luadec/ast"
import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/luautil"

// Options controls how a chunk is decompiled. The zero value is fine.
type Options struct {
	// If set a nested function that fails to decompile is printed as a stub holding a comment with
	// the error, and the rest of the chunk is decompiled as usual.
	SkipFailed bool

	// If set the output is parsed again before it is written. Nothing is written if that fails.
	Verify bool
}

// Decompile reads a binary chunk from r and writes its source to w.
func Decompile(r io.Reader, w io.Writer, opts *Options) error {
	c, err := chunk.Read(r)
	if err != nil {
		return err
	}
	return DecompileChunk(c, ast.NewOutput(w), opts)
}

// DecompileChunk prints the source of an already loaded chunk.
func DecompileChunk(c *chunk.Chunk, out *ast.Output, opts *Options) error {
	return DecompileFunction(c.Main, out, opts)
}

// DecompileFunction prints the source of a single function prototype, as if it were the main function of a
// chunk. Nested functions are printed as part of it.
func DecompileFunction(fn *chunk.Function, out *ast.Output, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}

	d, err := decompileFunction(fn, "main", rootUpvalues(fn), opts)
	if err != nil {
		return err
	}

	if opts.Verify {
		buf := new(bytes.Buffer)
		if err := d.print(ast.NewOutput(buf)); err != nil {
			return err
		}
		if _, err := parse.Parse(bytes.NewReader(buf.Bytes()), fn.Source); err != nil {
			return luautil.Error{Msg: "Decompiled source does not parse", Err: err, Type: luautil.ErrTypWrapped, Trace: d.trace}
		}
	}

	if err := d.print(out); err != nil {
		return err
	}
	return out.Err()
}

func (d *decompiler) print(out *ast.Output) (err error) {
	defer func() {
		err = luautil.Recover(recover(), d.trace)
	}()

	d.outer.Print(out)
	return nil
}
