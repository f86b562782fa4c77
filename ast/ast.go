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

// Package ast is the expression and statement model the decompiler rebuilds, along with the
// rules for printing it back out as Lua source.
package ast

// Node represents an item in the tree. Every node knows how to print itself.
type Node interface {
	Print(out *Output)
}

// Expr represents an expression element Node.
type Expr interface {
	Node
	exprMark()

	// Precedence is used to decide where parenthesis are needed.
	Precedence() int

	// IsMultiple is true for calls and varargs that may produce more than one value.
	IsMultiple() bool
}

type exprBase struct{}

func (e *exprBase) exprMark()        {}
func (e *exprBase) Precedence() int  { return PrecAtomic }
func (e *exprBase) IsMultiple() bool { return false }

// Stmt represents a statement Node.
//
// Blocks are built outside this package, they embed StmtBase to become statements.
type Stmt interface {
	Node
	stmtMark()
}

// StmtBase is embedded by anything that wants to be a Stmt.
type StmtBase struct{}

func (s *StmtBase) stmtMark() {}

// Target represents the left hand side of an assignment.
type Target interface {
	Node
	targetMark()
}

type targetBase struct{}

func (t *targetBase) targetMark() {}

// Operator precedence, higher binds tighter.
const (
	PrecOr = iota + 1
	PrecAnd
	PrecCompare
	PrecConcat
	PrecAdd
	PrecMul
	PrecUnary
	PrecPow
	PrecAtomic
)

// Assoc is an operator's associativity.
type Assoc int

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
)

// Visitor is used with Walk.
type Visitor interface {
	Visit(n Node) Visitor
}

type basicVisitor func(n Node) Visitor

func (f basicVisitor) Visit(n Node) Visitor { return f(n) }

// NewVisitor takes a simple function and turns it into a basic Visitor, ready to use with Walk.
func NewVisitor(f func(n Node) Visitor) Visitor {
	return basicVisitor(f)
}

// Walk traverses the given node and it's children in depth-first order.
// For each node it calls the visitor for that level and then uses the returned visitor for the
// child nodes (if any). If the visitor for a given node returns nil that node's children will
// not be visited. Once all of a node's children are visited the visitor for that level is called
// one final time with nil as its argument.
//
// Closure bodies and statements that live outside this package (blocks) are not descended into.
func Walk(v Visitor, n Node) {
	v = v.Visit(n)
	if v == nil {
		return
	}

	switch nn := n.(type) {
	case *Assignment:
		for _, nnn := range nn.Targets {
			Walk(v, nnn)
		}
		for _, nnn := range nn.Values {
			Walk(v, nnn)
		}
	case *Return:
		for _, nnn := range nn.Values {
			Walk(v, nnn)
		}
	case *CallStmt:
		Walk(v, nn.Call)
	case *IndexTarget:
		Walk(v, nn.Table)
		Walk(v, nn.Key)
	case *Operator:
		if nn.Left != nil {
			Walk(v, nn.Left)
		}
		Walk(v, nn.Right)
	case *Call:
		Walk(v, nn.Func)
		for _, nnn := range nn.Args {
			Walk(v, nnn)
		}
	case *Index:
		Walk(v, nn.Table)
		Walk(v, nn.Key)
	case *Table:
		for _, e := range nn.Entries {
			Walk(v, e.Key)
			Walk(v, e.Value)
		}
	}
	v.Visit(nil)
}

type inspector func(Node) bool

func (f inspector) Visit(n Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

// Inspect is exactly like Walk, except f is called for each node only if a call to f
// returns true for that node's parent (f is always called for the root node).
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}
