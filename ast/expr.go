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

import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/luautil"

// Unexported to make it hard to generate impossible operators.
type opTyp int

// Operator type for use with the Operator Expr Node.
const (
	OpAdd opTyp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUMinus
	OpNot
	OpLength
	OpConcat

	OpEqual
	OpNotEqual
	OpLessThan
	OpGreaterThan
	OpLessOrEqual
	OpGreaterOrEqual

	OpAnd
	OpOr
)

var operators = [...]struct {
	text  string
	prec  int
	assoc Assoc
}{
	{"+", PrecAdd, AssocLeft},
	{"-", PrecAdd, AssocLeft},
	{"*", PrecMul, AssocLeft},
	{"/", PrecMul, AssocLeft},
	{"%", PrecMul, AssocLeft},
	{"^", PrecPow, AssocRight},
	{"-", PrecUnary, AssocNone},
	{"not ", PrecUnary, AssocNone},
	{"#", PrecUnary, AssocNone},
	{"..", PrecConcat, AssocRight},

	{"==", PrecCompare, AssocLeft},
	{"~=", PrecCompare, AssocLeft},
	{"<", PrecCompare, AssocLeft},
	{">", PrecCompare, AssocLeft},
	{"<=", PrecCompare, AssocLeft},
	{">=", PrecCompare, AssocLeft},

	{"and", PrecAnd, AssocLeft},
	{"or", PrecOr, AssocLeft},
}

func (op opTyp) String() string {
	return operators[op].text
}

// IsUnary returns true for operators that take a single operand.
func (op opTyp) IsUnary() bool {
	return op == OpUMinus || op == OpNot || op == OpLength
}

// Operator represents an operator and it's operands.
type Operator struct {
	exprBase

	Op    opTyp
	Left  Expr // Nil if operator is unary
	Right Expr
}

// Binary creates a binary operator node.
func Binary(op opTyp, l, r Expr) *Operator {
	return &Operator{Op: op, Left: l, Right: r}
}

// Unary creates a unary operator node.
func Unary(op opTyp, e Expr) *Operator {
	return &Operator{Op: op, Right: e}
}

func (e *Operator) Precedence() int {
	return operators[e.Op].prec
}

func (e *Operator) Print(out *Output) {
	prec := e.Precedence()
	assoc := operators[e.Op].assoc

	if e.Left == nil {
		out.Print(e.Op.String())
		if e.Op == OpUMinus && startsWithMinus(e.Right) {
			// "--" would start a comment.
			out.Print(" ")
		}
		printGrouped(out, e.Right, prec > e.Right.Precedence())
		return
	}

	lp, rp := e.Left.Precedence(), e.Right.Precedence()
	printGrouped(out, e.Left, prec > lp || prec == lp && assoc == AssocRight)
	out.Print(" " + e.Op.String() + " ")
	printGrouped(out, e.Right, prec > rp || prec == rp && assoc == AssocLeft)
}

func printGrouped(out *Output, e Expr, group bool) {
	if group {
		out.Print("(")
	}
	e.Print(out)
	if group {
		out.Print(")")
	}
}

func startsWithMinus(e Expr) bool {
	switch ee := e.(type) {
	case *Operator:
		return ee.Left == nil && ee.Op == OpUMinus
	case *Constant:
		return ee.Value.IsNegative()
	}
	return false
}

// Constant is a literal value.
type Constant struct {
	exprBase

	Value chunk.Constant

	// Index into the constant pool the value came from, -1 if it did not come from the pool.
	Index int
}

var (
	Nil   = &Constant{Value: chunk.Nil(), Index: -1}
	True  = &Constant{Value: chunk.Bool(true), Index: -1}
	False = &Constant{Value: chunk.Bool(false), Index: -1}
)

// NewConstant wraps a pool entry.
func NewConstant(c chunk.Constant, index int) *Constant {
	return &Constant{Value: c, Index: index}
}

func (e *Constant) Precedence() int {
	v := e.Value
	if v.IsNumber() && !v.IsInt && (v.Float != v.Float || v.Float-v.Float != 0) {
		// Printed as a division.
		return PrecMul
	}
	if v.IsNegative() {
		return PrecUnary
	}
	return PrecAtomic
}

func (e *Constant) Print(out *Output) {
	out.Print(e.Value.String())
}

// isBrief is true for constants that fit comfortably in a one line table.
func (e *Constant) isBrief() bool {
	return e.Value.Type != chunk.TypString || len(e.Value.Str) <= 10
}

// Local is a reference to a named local variable.
type Local struct {
	exprBase

	Name string
	Decl interface{} // Identity of the declaration, owned by the decompiler.
}

func (e *Local) Print(out *Output) {
	out.Print(e.Name)
}

// Global is a reference to a global variable.
type Global struct {
	exprBase

	Name string
	Env  string // Table name used when Name is not a valid identifier.
}

func (e *Global) Print(out *Output) {
	printGlobal(out, e.Name, e.Env)
}

func printGlobal(out *Output, name, env string) {
	if luautil.IsIdentifier(name) {
		out.Print(name)
		return
	}
	out.Print(env + "[" + luautil.QuoteString(name) + "]")
}

// Upvalue is a reference to a variable captured from an enclosing function.
type Upvalue struct {
	exprBase

	Name string
}

func (e *Upvalue) Print(out *Output) {
	out.Print(e.Name)
}

// Index represents a table access expression, one of `a.b` or `a[b]`.
type Index struct {
	exprBase

	Table Expr
	Key   Expr
}

func (e *Index) Print(out *Output) {
	printIndex(out, e.Table, e.Key)
}

func printIndex(out *Output, table, key Expr) {
	printGrouped(out, table, !IsPrefix(table))
	if name, ok := identifier(key); ok {
		out.Print("." + name)
		return
	}
	out.Print("[")
	key.Print(out)
	out.Print("]")
}

// Call represents a function call.
type Call struct {
	exprBase

	Func     Expr
	Args     []Expr
	Multiple bool
}

func (e *Call) IsMultiple() bool { return e.Multiple }

// method reports if the call can be written with ':' syntax.
func (e *Call) method() (*Index, bool) {
	idx, ok := e.Func.(*Index)
	if !ok || len(e.Args) == 0 || idx.Table != e.Args[0] {
		return nil, false
	}
	if _, ok := identifier(idx.Key); !ok {
		return nil, false
	}
	return idx, true
}

func (e *Call) Print(out *Output) {
	args := e.Args
	if idx, ok := e.method(); ok {
		printGrouped(out, idx.Table, !IsPrefix(idx.Table))
		name, _ := identifier(idx.Key)
		out.Print(":" + name)
		args = args[1:]
	} else {
		printGrouped(out, e.Func, !IsPrefix(e.Func))
	}
	out.Print("(")
	PrintList(out, args)
	out.Print(")")
}

// Vararg is the "..." expression.
type Vararg struct {
	exprBase

	Multiple bool
}

func (e *Vararg) IsMultiple() bool { return e.Multiple }

func (e *Vararg) Print(out *Output) {
	out.Print("...")
}

// FunctionBody is a decompiled function, printed inside a Closure.
type FunctionBody interface {
	// Params returns the parameter names and if the function is variadic.
	Params() ([]string, bool)

	// Empty is true if the body has no statements.
	Empty() bool

	// PrintBody prints the statements of the function at the current indentation.
	PrintBody(out *Output)
}

// Closure is a function constructor.
type Closure struct {
	exprBase

	Body FunctionBody
}

func (e *Closure) Print(out *Output) {
	e.print(out, "function", false)
}

// print writes the closure as "<head>(params) body end", dropping the first parameter if method is set.
func (e *Closure) print(out *Output, head string, method bool) {
	params, vararg := e.Body.Params()
	if method && len(params) > 0 {
		params = params[1:]
	}
	if vararg {
		params = append(append([]string(nil), params...), "...")
	}

	out.Print(head + "(")
	for i, p := range params {
		if i > 0 {
			out.Print(", ")
		}
		out.Print(p)
	}
	out.Print(")")

	if e.Body.Empty() {
		out.Print(" end")
		return
	}
	out.Newline()
	out.Indent()
	e.Body.PrintBody(out)
	out.Dedent()
	out.Print("end")
}

// IsPrefix returns true for expressions that can be called or indexed without parenthesis.
func IsPrefix(e Expr) bool {
	switch e.(type) {
	case *Local, *Global, *Upvalue, *Index, *Call:
		return true
	}
	return false
}

// IsBrief returns true for expressions short enough to keep a table literal on one line.
func IsBrief(e Expr) bool {
	switch ee := e.(type) {
	case *Constant:
		return ee.isBrief()
	case *Local, *Global, *Upvalue, *Vararg:
		return true
	}
	return false
}

// identifier returns the name a key expression stands for, if it can be written as `.name`.
func identifier(e Expr) (string, bool) {
	c, ok := e.(*Constant)
	if !ok || !c.Value.IsIdentifier() {
		return "", false
	}
	return c.Value.Str, true
}

// PrintList prints a comma separated expression list.
//
// Printing stops after a multiple result expression (it always comes last, the entries after it
// are the extra registers it filled). A call or vararg in last place that was truncated to one
// value is wrapped in parenthesis to keep it truncated.
func PrintList(out *Output, exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			out.Print(", ")
		}
		if e.IsMultiple() {
			e.Print(out)
			return
		}
		last := i == len(exprs)-1
		switch e.(type) {
		case *Call, *Vararg:
			printGrouped(out, e, last)
		default:
			e.Print(out)
		}
	}
}
