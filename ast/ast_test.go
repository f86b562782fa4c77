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

import "math"
import "math/rand"
import "strings"
import "testing"
import "testing/quick"

import "github.com/yuin/gopher-lua"

import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/testhelp"

func num(f float64) *Constant { return NewConstant(chunk.Number(f), -1) }
func str(s string) *Constant  { return NewConstant(chunk.String(s), -1) }
func global(n string) *Global { return &Global{Name: n, Env: "_G"} }
func local(n string) *Local   { return &Local{Name: n} }

type stubBody struct {
	params []string
	vararg bool
	stmts  []Stmt
}

func (b *stubBody) Params() ([]string, bool) { return b.params, b.vararg }
func (b *stubBody) Empty() bool              { return len(b.stmts) == 0 }
func (b *stubBody) PrintBody(out *Output)    { PrintSequence(out, b.stmts) }

func TestOperatorGrouping(t *testing.T) {
	a, b, c := global("a"), global("b"), global("c")
	cases := []struct {
		e    Expr
		want string
	}{
		{Binary(OpSub, a, Binary(OpSub, b, c)), "a - (b - c)"},
		{Binary(OpSub, Binary(OpSub, a, b), c), "a - b - c"},
		{Binary(OpConcat, Binary(OpConcat, a, b), c), "(a .. b) .. c"},
		{Binary(OpConcat, a, Binary(OpConcat, b, c)), "a .. b .. c"},
		{Binary(OpPow, Binary(OpPow, a, b), c), "(a ^ b) ^ c"},
		{Binary(OpPow, a, Binary(OpPow, b, c)), "a ^ b ^ c"},
		{Binary(OpMul, Binary(OpAdd, a, b), c), "(a + b) * c"},
		{Binary(OpAdd, a, Binary(OpMul, b, c)), "a + b * c"},
		{Unary(OpUMinus, Unary(OpUMinus, a)), "- -a"},
		{Unary(OpUMinus, num(-1)), "- -1"},
		{Unary(OpNot, Binary(OpEqual, a, b)), "not (a == b)"},
		{Binary(OpPow, Unary(OpUMinus, a), num(2)), "(-a) ^ 2"},
		{Unary(OpUMinus, Binary(OpPow, a, num(2))), "-a ^ 2"},
		{Binary(OpAnd, Binary(OpOr, a, b), c), "(a or b) and c"},
		{Binary(OpOr, a, Binary(OpAnd, b, c)), "a or b and c"},
		{Unary(OpLength, &Index{Table: a, Key: str("x")}), "#a.x"},
		{&Index{Table: str("s"), Key: str("len")}, `("s").len`},
		{&Index{Table: a, Key: str("not")}, `a["not"]`},
		{&Index{Table: a, Key: num(1)}, "a[1]"},
		{global("my var"), `_G["my var"]`},
		{Binary(OpMul, num(2), num(math.Inf(1))), "2 * (1/0)"},
	}

	for i, c := range cases {
		got := String(c.e)
		testhelp.Assertf(t, got == c.want, "Case %d: got %q, want %q", i, got, c.want)
	}
}

// randomArith builds a random arithmetic tree from small integer constants and computes its value.
func randomArith(r *rand.Rand, depth int) (Expr, float64) {
	if depth == 0 || r.Intn(4) == 0 {
		v := float64(r.Intn(9) - 4)
		return num(v), v
	}

	if r.Intn(6) == 0 {
		e, v := randomArith(r, depth-1)
		return Unary(OpUMinus, e), -v
	}

	l, lv := randomArith(r, depth-1)
	rr, rv := randomArith(r, depth-1)
	switch r.Intn(4) {
	case 0:
		return Binary(OpAdd, l, rr), lv + rv
	case 1:
		return Binary(OpSub, l, rr), lv - rv
	case 2:
		return Binary(OpMul, l, rr), lv * rv
	default:
		return Binary(OpPow, l, rr), math.Pow(lv, rv)
	}
}

func sameFloat(a, b float64) bool {
	return a == b || a != a && b != b
}

func TestArithmeticRoundTrip(t *testing.T) {
	l := lua.NewState()
	defer l.Close()

	check := func(seed int64) bool {
		e, want := randomArith(rand.New(rand.NewSource(seed)), 5)
		src := String(e)
		if err := l.DoString("return " + src); err != nil {
			t.Logf("%v: %v", src, err)
			return false
		}
		got := l.Get(-1)
		l.Pop(1)
		n, ok := got.(lua.LNumber)
		if !ok || !sameFloat(float64(n), want) {
			t.Logf("%v: got %v, want %v", src, got, want)
			return false
		}
		return true
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}
}

func randomLogic(r *rand.Rand, depth int) (Expr, bool) {
	if depth == 0 || r.Intn(4) == 0 {
		if r.Intn(2) == 0 {
			return True, true
		}
		return False, false
	}

	if r.Intn(5) == 0 {
		e, v := randomLogic(r, depth-1)
		return Unary(OpNot, e), !v
	}

	l, lv := randomLogic(r, depth-1)
	rr, rv := randomLogic(r, depth-1)
	switch r.Intn(3) {
	case 0:
		return Binary(OpAnd, l, rr), lv && rv
	case 1:
		return Binary(OpOr, l, rr), lv || rv
	default:
		return Binary(OpEqual, l, rr), lv == rv
	}
}

func TestLogicRoundTrip(t *testing.T) {
	l := lua.NewState()
	defer l.Close()

	check := func(seed int64) bool {
		e, want := randomLogic(rand.New(rand.NewSource(seed)), 5)
		src := String(e)
		if err := l.DoString("return " + src); err != nil {
			t.Logf("%v: %v", src, err)
			return false
		}
		got := l.Get(-1)
		l.Pop(1)
		if got != lua.LBool(want) {
			t.Logf("%v: got %v, want %v", src, got, want)
			return false
		}
		return true
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}
}

func TestCalls(t *testing.T) {
	obj := local("obj")
	method := &Call{Func: &Index{Table: obj, Key: str("m")}, Args: []Expr{obj, num(1)}}
	testhelp.AssertSource(t, String(method), "obj:m(1)")

	// Not the same object, no method sugar.
	plain := &Call{Func: &Index{Table: obj, Key: str("m")}, Args: []Expr{local("obj"), num(1)}}
	testhelp.AssertSource(t, String(plain), "obj.m(obj, 1)")

	f := global("f")
	one := &Call{Func: f}
	many := &Call{Func: f, Multiple: true}
	testhelp.AssertSource(t, String(&Return{Values: []Expr{one}}), "return (f())")
	testhelp.AssertSource(t, String(&Return{Values: []Expr{many}}), "return f()")
	testhelp.AssertSource(t, String(&Return{Values: []Expr{one, num(1)}}), "return f(), 1")
	testhelp.AssertSource(t, String(&Return{Values: []Expr{&Vararg{Multiple: true}, num(1)}}), "return ...")
	testhelp.AssertSource(t, String(&Return{}), "return")
}

func TestAssignment(t *testing.T) {
	decl := &Assignment{
		Targets: []Target{&VariableTarget{Name: "a"}, &VariableTarget{Name: "b"}},
		Values:  []Expr{Nil, Nil},
		Declare: true,
	}
	testhelp.AssertSource(t, String(decl), "local a, b")

	multi := &Assignment{
		Targets: []Target{&VariableTarget{Name: "a"}, &VariableTarget{Name: "b"}},
		Values:  []Expr{&Call{Func: global("f"), Multiple: true}},
		Declare: true,
	}
	testhelp.AssertSource(t, String(multi), "local a, b = f()")

	s := NewAssignment(&GlobalTarget{Name: "x", Env: "_ENV"}, num(1))
	s.AddFirst(&IndexTarget{Table: global("t"), Key: str("k")}, str("v"))
	testhelp.AssertSource(t, String(s), `t.k, x = "v", 1`)
	testhelp.Assert(t, String(s.FirstValue()) == `"v"`, "FirstValue should return the prepended value")

	odd := NewAssignment(&GlobalTarget{Name: "end", Env: "_ENV"}, Nil)
	testhelp.AssertSource(t, String(odd), `_ENV["end"] = nil`)
}

func TestFunctionSugar(t *testing.T) {
	body := &stubBody{params: []string{"self", "x"}}
	target := &IndexTarget{Table: &Index{Table: global("a"), Key: str("b")}, Key: str("c")}
	testhelp.AssertSource(t, String(NewAssignment(target, &Closure{Body: body})), "function a.b:c(x) end")

	body = &stubBody{params: []string{"x"}, vararg: true}
	testhelp.AssertSource(t, String(NewAssignment(&GlobalTarget{Name: "f"}, &Closure{Body: body})), "function f(x, ...) end")

	body = &stubBody{stmts: []Stmt{&Return{Values: []Expr{num(1)}}}}
	s := NewAssignment(&VariableTarget{Name: "g"}, &Closure{Body: body})
	s.Declare = true
	testhelp.AssertSource(t, String(s), "local function g()\n  return 1\nend")

	// Keys that are not names get a plain assignment.
	target = &IndexTarget{Table: global("t"), Key: num(1)}
	testhelp.AssertSource(t, String(NewAssignment(target, &Closure{Body: &stubBody{}})), "t[1] = function() end")
}

func TestTables(t *testing.T) {
	testhelp.AssertSource(t, String(&Table{}), "{}")

	list := &Table{}
	for i := 1; i <= 3; i++ {
		list.AddEntry(TableEntry{Key: num(float64(i)), Value: num(float64(i * 10)), IsList: true, Timestamp: 10 - i})
	}
	// Sorted by timestamp, only the entry that lands in sequence prints without a key.
	testhelp.AssertSource(t, String(list), "{[3] = 30, [2] = 20, 10}")

	list = &Table{}
	for i := 1; i <= 6; i++ {
		list.AddEntry(TableEntry{Key: num(float64(i)), Value: num(float64(i)), IsList: true, Timestamp: i})
	}
	testhelp.AssertSource(t, String(list), "{\n  1,\n  2,\n  3,\n  4,\n  5,\n  6\n}")

	hash := &Table{}
	hash.AddEntry(TableEntry{Key: str("a"), Value: num(1), Timestamp: 1})
	hash.AddEntry(TableEntry{Key: num(2), Value: str("x"), Timestamp: 2})
	testhelp.AssertSource(t, String(hash), `{a = 1, [2] = "x"}`)

	hash.AddEntry(TableEntry{Key: str("c"), Value: True, Timestamp: 3})
	testhelp.AssertSource(t, String(hash), "{\n  a = 1,\n  [2] = \"x\",\n  c = true\n}")

	calls := &Table{}
	calls.AddEntry(TableEntry{Key: num(1), Value: &Call{Func: global("f"), Multiple: true}, IsList: true, Timestamp: 1})
	testhelp.AssertSource(t, String(calls), "{\n  f()\n}")

	calls = &Table{}
	calls.AddEntry(TableEntry{Key: num(1), Value: &Call{Func: global("f")}, IsList: true, Timestamp: 1})
	testhelp.AssertSource(t, String(calls), "{\n  (f())\n}")
}

func TestSequence(t *testing.T) {
	stmts := []Stmt{
		&CallStmt{Call: &Call{Func: global("print")}},
		&CallStmt{Call: &Call{Func: Binary(OpOr, global("f"), global("g"))}},
		&Declare{Names: []string{"x", "y"}},
		&Comment{Text: "note"},
		&Comment{Text: "two\nlines\r\n"},
	}

	b := new(strings.Builder)
	out := NewOutput(b)
	out.Indent()
	PrintSequence(out, stmts)
	testhelp.Assert(t, out.Err() == nil, "Unexpected write error:", out.Err())

	want := "  print()\n  ;(f or g)()\n  local x, y\n  -- note\n  -- two\n  -- lines\n"
	testhelp.Assertf(t, b.String() == want, "got %q, want %q", b.String(), want)
}

func TestWalk(t *testing.T) {
	e := Binary(OpAdd, global("a"), &Call{Func: global("f"), Args: []Expr{num(1), local("b")}})

	names := []string{}
	Inspect(e, func(n Node) bool {
		switch nn := n.(type) {
		case *Global:
			names = append(names, nn.Name)
		case *Local:
			names = append(names, nn.Name)
		}
		return true
	})
	testhelp.Assertf(t, strings.Join(names, ",") == "a,f,b", "Unexpected visit order: %v", names)
}
