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

import "strings"

import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/luautil"

// VariableTarget is a local variable on the left side of an assignment.
type VariableTarget struct {
	targetBase

	Name string
	Decl interface{}
}

func (t *VariableTarget) Print(out *Output) {
	out.Print(t.Name)
}

// GlobalTarget is a global variable on the left side of an assignment.
type GlobalTarget struct {
	targetBase

	Name string
	Env  string
}

func (t *GlobalTarget) Print(out *Output) {
	printGlobal(out, t.Name, t.Env)
}

// UpvalueTarget is a captured variable on the left side of an assignment.
type UpvalueTarget struct {
	targetBase

	Name string
}

func (t *UpvalueTarget) Print(out *Output) {
	out.Print(t.Name)
}

// IndexTarget is a table field on the left side of an assignment.
type IndexTarget struct {
	targetBase

	Table Expr
	Key   Expr
}

func (t *IndexTarget) Print(out *Output) {
	printIndex(out, t.Table, t.Key)
}

// Assignment represents an assignment statement, possibly a local declaration.
type Assignment struct {
	StmtBase

	Targets []Target
	Values  []Expr // May be shorter than Targets if the last value is multiple.

	Declare bool
}

// NewAssignment creates a single target assignment.
func NewAssignment(t Target, v Expr) *Assignment {
	return &Assignment{Targets: []Target{t}, Values: []Expr{v}}
}

// AddFirst prepends a target/value pair.
func (s *Assignment) AddFirst(t Target, v Expr) {
	s.Targets = append([]Target{t}, s.Targets...)
	s.Values = append([]Expr{v}, s.Values...)
}

// AddLast appends a target/value pair.
func (s *Assignment) AddLast(t Target, v Expr) {
	s.Targets = append(s.Targets, t)
	s.Values = append(s.Values, v)
}

// FirstTarget returns the first target.
func (s *Assignment) FirstTarget() Target {
	return s.Targets[0]
}

// FirstValue returns the first value, or nil if there are none.
func (s *Assignment) FirstValue() Expr {
	if len(s.Values) == 0 {
		return nil
	}
	return s.Values[0]
}

func (s *Assignment) allNil() bool {
	for _, v := range s.Values {
		c, ok := v.(*Constant)
		if !ok || c.Value.Type != chunk.TypNil {
			return false
		}
	}
	return true
}

func (s *Assignment) Print(out *Output) {
	if len(s.Targets) == 1 && len(s.Values) == 1 {
		if f, ok := s.Values[0].(*Closure); ok && s.printFunction(out, f) {
			return
		}
	}

	if s.Declare {
		out.Print("local ")
	}
	for i, t := range s.Targets {
		if i > 0 {
			out.Print(", ")
		}
		t.Print(out)
	}
	if s.Declare && s.allNil() {
		return
	}

	out.Print(" = ")
	for i, v := range s.Values {
		if i > 0 {
			out.Print(", ")
		}
		v.Print(out)
		if v.IsMultiple() {
			break
		}
	}
}

// printFunction handles the "function name()" forms, returns false if the target has no such form.
func (s *Assignment) printFunction(out *Output, f *Closure) bool {
	if s.Declare {
		v, ok := s.Targets[0].(*VariableTarget)
		if !ok {
			return false
		}
		f.print(out, "local function "+v.Name, false)
		return true
	}

	var parts []string
	switch t := s.Targets[0].(type) {
	case *GlobalTarget:
		if !luautil.IsIdentifier(t.Name) {
			return false
		}
		parts = []string{t.Name}
	case *IndexTarget:
		var ok bool
		parts, ok = nameChain(t.Table)
		if !ok {
			return false
		}
		key, ok := identifier(t.Key)
		if !ok {
			return false
		}
		parts = append(parts, key)
	default:
		return false
	}

	name := strings.Join(parts, ".")
	params, _ := f.Body.Params()
	method := len(parts) > 1 && len(params) > 0 && params[0] == "self"
	if method {
		name = strings.Join(parts[:len(parts)-1], ".") + ":" + parts[len(parts)-1]
	}
	f.print(out, "function "+name, method)
	return true
}

// nameChain returns the dotted name an expression is written as, if it is a simple chain of names.
func nameChain(e Expr) ([]string, bool) {
	switch ee := e.(type) {
	case *Global:
		if !luautil.IsIdentifier(ee.Name) {
			return nil, false
		}
		return []string{ee.Name}, true
	case *Local:
		return []string{ee.Name}, true
	case *Upvalue:
		return []string{ee.Name}, true
	case *Index:
		parts, ok := nameChain(ee.Table)
		if !ok {
			return nil, false
		}
		key, ok := identifier(ee.Key)
		if !ok {
			return nil, false
		}
		return append(parts, key), true
	}
	return nil, false
}

// Return represents a return statement.
type Return struct {
	StmtBase

	Values []Expr
}

func (s *Return) Print(out *Output) {
	out.Print("return")
	if len(s.Values) > 0 {
		out.Print(" ")
		PrintList(out, s.Values)
	}
}

// CallStmt is a function call used as a statement.
type CallStmt struct {
	StmtBase

	Call *Call
}

func (s *CallStmt) Print(out *Output) {
	s.Call.Print(out)
}

// Declare is a "local a, b, c" statement with no values.
type Declare struct {
	StmtBase

	Names []string
}

func (s *Declare) Print(out *Output) {
	out.Print("local " + strings.Join(s.Names, ", "))
}

// Comment is a line comment. Text with line breaks prints as one comment line per line.
type Comment struct {
	StmtBase

	Text string
}

func (s *Comment) Print(out *Output) {
	lines := strings.FieldsFunc(s.Text, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	if len(lines) == 0 {
		out.Print("--")
		return
	}
	for i, line := range lines {
		if i > 0 {
			out.Newline()
		}
		out.Print("-- " + line)
	}
}

// BeginsWithParen returns true if the statement would start with a '(' when printed. Such
// statements need a ';' in front of them or they would be parsed as a call on the previous line.
func BeginsWithParen(s Stmt) bool {
	switch ss := s.(type) {
	case *CallStmt:
		return exprBeginsWithParen(ss.Call)
	case *Assignment:
		if len(ss.Targets) == 0 {
			return false
		}
		if t, ok := ss.Targets[0].(*IndexTarget); ok {
			return !IsPrefix(t.Table) || exprBeginsWithParen(t.Table)
		}
	}
	return false
}

func exprBeginsWithParen(e Expr) bool {
	switch ee := e.(type) {
	case *Call:
		if idx, ok := ee.method(); ok {
			return !IsPrefix(idx.Table) || exprBeginsWithParen(idx.Table)
		}
		return !IsPrefix(ee.Func) || exprBeginsWithParen(ee.Func)
	case *Index:
		return !IsPrefix(ee.Table) || exprBeginsWithParen(ee.Table)
	}
	return false
}

// PrintSequence prints a list of statements, one per line.
func PrintSequence(out *Output, stmts []Stmt) {
	for _, s := range stmts {
		if BeginsWithParen(s) {
			out.Print(";")
		}
		s.Print(out)
		out.Newline()
	}
}
