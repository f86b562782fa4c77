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

package ast

import "io"
import "strings"

// Output is the indentation tracking text sink everything is printed through.
//
// Indentation is written lazily, the first time something is printed on a new line.
// The first write error is kept, later writes are dropped.
type Output struct {
	w      io.Writer
	level  int
	inLine bool
	err    error
}

const indentUnit = "  "

func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) write(s string) {
	if o.err != nil || s == "" {
		return
	}
	_, o.err = io.WriteString(o.w, s)
}

// Print writes s to the current line. s is written as is, line breaks inside it get no indentation.
func (o *Output) Print(s string) {
	if s == "" {
		return
	}
	if !o.inLine {
		o.write(strings.Repeat(indentUnit, o.level))
		o.inLine = true
	}
	o.write(s)
}

// Println writes s and ends the line.
func (o *Output) Println(s string) {
	o.Print(s)
	o.Newline()
}

// Newline ends the current line. Nothing happens if the line is still empty, so statements that
// already end their own last line do not leave blank lines behind.
func (o *Output) Newline() {
	if !o.inLine {
		return
	}
	o.write("\n")
	o.inLine = false
}

func (o *Output) Indent() {
	o.level++
}

func (o *Output) Dedent() {
	if o.level > 0 {
		o.level--
	}
}

// Level returns the current indentation level.
func (o *Output) Level() int {
	return o.level
}

// Err returns the first error the underlying writer reported.
func (o *Output) Err() error {
	return o.err
}

// String prints a node to a string, handy for tests and error messages.
func String(n Node) string {
	b := new(strings.Builder)
	n.Print(NewOutput(b))
	return b.String()
}
