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

package luadec

import "fmt"
import "math"
import "sort"

import "github.com/Elskom/luadec/ast"
import "github.com/Elskom/luadec/chunk"
import "github.com/Elskom/luadec/luautil"
import "github.com/Elskom/luadec/opcode"

// opNone is what the code accessors return for lines that are out of range or hold data words.
const opNone = opcode.Op(255)

var noInstruction = opcode.Instruction{Op: opNone}

// decompiler holds the state for one function prototype. Nested functions get their own.
type decompiler struct {
	fn      *chunk.Function
	version opcode.Version
	opts    *Options
	trace   string

	length int
	code   []opcode.Instruction // 1-based
	pseudo []bool               // Lines that are operands of the previous instruction.

	upvalues []string
	env      string

	decls    []*declaration
	declared map[*declaration]bool
	r        *registers

	outer  *block
	blocks []*block

	skip          []bool
	reverseTarget []bool
	isBreak       []bool
	loopRemoved   []bool
	blockStart    []bool
}

func newDecompiler(fn *chunk.Function, trace string, upvalues []string, opts *Options) *decompiler {
	d := &decompiler{
		fn:       fn,
		version:  fn.Version(),
		opts:     opts,
		trace:    trace,
		length:   len(fn.Code),
		upvalues: upvalues,
		declared: map[*declaration]bool{},
		env:      "_G",
	}
	if d.version == opcode.Lua52 {
		d.env = "_ENV"
	}

	n := d.length + 2
	d.code = make([]opcode.Instruction, n)
	d.pseudo = make([]bool, n)
	d.skip = make([]bool, n)
	d.reverseTarget = make([]bool, n)
	d.isBreak = make([]bool, n)
	d.loopRemoved = make([]bool, n)
	d.blockStart = make([]bool, n)
	d.decode()

	d.outer = d.newBlock(blkOuter, 0, d.length+1)
	d.blocks = []*block{d.outer}

	d.decls = declarations(fn, d.outer.scopeEnd())
	d.r = newRegisters(d, fn.MaxStack, d.length, d.decls)
	return d
}

func (d *decompiler) raise(line int, typ luautil.ErrType, format string, v ...interface{}) {
	panic(luautil.Error{Msg: fmt.Sprintf(format, v...), Type: typ, Trace: d.trace, Line: line})
}

// decode decodes every instruction up front, marking the words that are really operands.
func (d *decompiler) decode() {
	captureEnd := 0
	for line := 1; line <= d.length; line++ {
		word := d.fn.Code[line-1]
		if d.pseudo[line] && line > captureEnd {
			d.code[line] = opcode.Instruction{Op: opNone, Version: d.version, Word: word, Ax: int(word >> 6)}
			continue
		}

		ins, err := opcode.Decode(d.version, word)
		if err != nil {
			d.raise(line, luautil.ErrTypDecode, "%v", err)
		}
		d.code[line] = ins
		if d.pseudo[line] {
			// 5.1 upvalue captures, these are real instructions.
			continue
		}

		switch ins.Op {
		case opcode.OpSetList:
			if ins.C == 0 {
				d.markPseudo(line+1, 1)
			}
		case opcode.OpLoadKX:
			d.markPseudo(line+1, 1)
		case opcode.OpClosure:
			if ins.Bx >= len(d.fn.Functions) {
				d.raise(line, luautil.ErrTypDecode, "Closure index %v out of range", ins.Bx)
			}
			if d.version.InlineUpvalues() {
				n := len(d.fn.Functions[ins.Bx].Upvalues)
				d.markPseudo(line+1, n)
				captureEnd = line + n
			}
		}
	}
}

func (d *decompiler) markPseudo(line, count int) {
	if line+count-1 > d.length {
		d.raise(line-1, luautil.ErrTypDecode, "Instruction operands run past the end of the code")
	}
	for i := 0; i < count; i++ {
		d.pseudo[line+i] = true
	}
}

func (d *decompiler) ins(line int) opcode.Instruction {
	if line < 1 || line > d.length {
		return noInstruction
	}
	return d.code[line]
}

func (d *decompiler) op(line int) opcode.Op {
	return d.ins(line).Op
}

func (d *decompiler) isLoadTrue(line int) bool {
	return d.op(line) == opcode.OpLoadBool && d.ins(line).C != 0
}

func (d *decompiler) isJmp2(line int) bool {
	return d.op(line) == opcode.OpJmp && d.ins(line).SBx == 2
}

// isClose is true for a 5.2 jump that only closes upvalues. It lands where falling through would
// take control anyway: on the next line, or on the target of a jump on the next line.
func (d *decompiler) isClose(line int) bool {
	ins := d.ins(line)
	if d.version != opcode.Lua52 || ins.Op != opcode.OpJmp || ins.A == 0 {
		return false
	}
	if ins.SBx == 0 {
		return true
	}
	next := d.ins(line + 1)
	return next.Op == opcode.OpJmp && line+1+ins.SBx == line+2+next.SBx
}

func (d *decompiler) constant(idx, line int) *ast.Constant {
	if idx < 0 || idx >= len(d.fn.Constants) {
		d.raise(line, luautil.ErrTypDecode, "Constant index %v out of range", idx)
	}
	return ast.NewConstant(d.fn.Constants[idx], idx)
}

func (d *decompiler) globalName(idx, line int) string {
	c := d.constant(idx, line)
	if c.Value.Type != chunk.TypString {
		d.raise(line, luautil.ErrTypDecode, "Global name constant %v is not a string", idx)
	}
	return c.Value.Str
}

func (d *decompiler) upvalueName(idx, line int) string {
	if idx < 0 || idx >= len(d.upvalues) {
		d.raise(line, luautil.ErrTypDecode, "Upvalue index %v out of range", idx)
	}
	return d.upvalues[idx]
}

// decompile runs both block passes and then lowers the instructions into the block tree.
func (d *decompiler) decompile() {
	d.findReverseTargets()
	d.handleBranches(true)
	d.handleBranches(false)
	d.declareInitial()
	d.processSequence(1, d.length)
}

func (d *decompiler) findReverseTargets() {
	for line := 1; line <= d.length; line++ {
		ins := d.ins(line)
		switch ins.Op {
		case opcode.OpJmp, opcode.OpForLoop:
		case opcode.OpTForLoop:
			if d.version == opcode.Lua51 {
				continue
			}
		default:
			continue
		}
		if t := line + 1 + ins.SBx; ins.SBx < 0 && t >= 1 {
			d.reverseTarget[t] = true
		}
	}
}

// declareInitial emits "local a, b" for locals that are live from the first instruction but are not parameters.
func (d *decompiler) declareInitial() {
	params := d.fn.NumParams
	if d.fn.HasArg() {
		params++
	}

	var names []string
	for i, decl := range d.decls {
		if i < params || decl.begin != 0 || decl.forLoop || decl.forLoopExplicit {
			continue
		}
		names = append(names, decl.name)
		d.declared[decl] = true
	}
	if len(names) > 0 {
		d.outer.addStatement(&ast.Declare{Names: names})
	}
}

// handleBranches finds the blocks of the function. The first pass only finds loops and breaks, the
// second pass uses them to classify everything else.
func (d *decompiler) handleBranches(first bool) {
	old := d.blocks
	d.blocks = []*block{d.outer}
	if !first {
		for _, b := range old {
			switch b.kind {
			case blkAlwaysLoop:
				d.blocks = append(d.blocks, b)
			case blkBreak:
				d.blocks = append(d.blocks, b)
				d.isBreak[b.begin] = true
			case blkRepeat:
				// Known early so breaks inside can find it. Dropped again unless its condition
				// is classified the same way.
				b.cond = nil
				d.blocks = append(d.blocks, b)
			}
		}
		d.removeDuplicateLoops()
	}
	for i := range d.skip {
		d.skip[i] = false
	}

	var stack []*branch
	reduce := false
	testset := false
	testsetEnd := -1

	for line := 1; line <= d.length; line++ {
		if !d.skip[line] && !d.pseudo[line] {
			ins := d.ins(line)
			switch ins.Op {
			case opcode.OpEq, opcode.OpLt, opcode.OpLe:
				kind := brEQ
				switch ins.Op {
				case opcode.OpLt:
					kind = brLT
				case opcode.OpLe:
					kind = brLE
				}
				node := newCompare(kind, ins.B, ins.C, ins.A != 0, line, line+2, line+2+d.ins(line+1).SBx)
				stack = append(stack, node)
				d.skip[line+1] = true
				if d.op(node.end) == opcode.OpLoadBool {
					if d.ins(node.end).C != 0 || d.isLoadTrue(node.end-1) {
						node.isCompareSet = true
						node.setTarget = d.ins(node.end).A
					}
				}
				continue

			case opcode.OpTest:
				stack = append(stack, newTest(ins.A, ins.C != 0, line, line+2, line+2+d.ins(line+1).SBx))
				d.skip[line+1] = true
				continue

			case opcode.OpTestSet:
				testset = true
				testsetEnd = line + 2 + d.ins(line+1).SBx
				stack = append(stack, newTestSet(ins.A, ins.B, ins.C != 0, line, line+2, testsetEnd))
				d.skip[line+1] = true
				continue

			case opcode.OpJmp:
				if !d.isClose(line) {
					d.handleJump(&stack, line, first)
					reduce = true
				}

			case opcode.OpForPrep:
				reduce = true
				end := line + 2 + ins.SBx
				if d.op(end-1) != opcode.OpForLoop {
					d.raise(line, luautil.ErrTypStructure, "FORPREP does not jump to a FORLOOP")
				}
				b := d.newBlock(blkFor, line+1, end)
				b.register = ins.A
				d.blocks = append(d.blocks, b)
				d.skip[end-1] = true
				d.r.setInternalLoopVariable(ins.A, line, end)
				d.r.setInternalLoopVariable(ins.A+1, line, end)
				d.r.setInternalLoopVariable(ins.A+2, line, end)
				d.r.setExplicitLoopVariable(ins.A+3, line, end-1)

			case opcode.OpForLoop:
				d.raise(line, luautil.ErrTypStructure, "FORLOOP without a matching FORPREP")

			default:
				reduce = d.isStatement(line)
			}
		}

		if line+1 <= d.length && d.reverseTarget[line+1] {
			reduce = true
		}
		if testset && testsetEnd == line+1 {
			reduce = true
		}
		if len(stack) == 0 {
			reduce = false
		}
		if reduce {
			reduce = false
			d.reduce(&stack)
		}
	}

	if !first {
		d.repairScopes()
	}

	blocks := d.blocks[:0]
	for _, b := range d.blocks {
		if b.kind == blkBreak && d.skip[b.begin] {
			continue
		}
		if b.kind == blkRepeat && b.cond == nil {
			continue
		}
		blocks = append(blocks, b)
	}
	d.blocks = blocks

	sort.SliceStable(d.blocks, func(i, j int) bool {
		a, b := d.blocks[i], d.blocks[j]
		if a.begin != b.begin {
			return a.begin < b.begin
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.isContainer() && !b.isContainer()
	})

	for i := range d.blockStart {
		d.blockStart[i] = false
	}
	for _, b := range d.blocks[1:] {
		if b.begin >= 0 && b.begin < len(d.blockStart) {
			d.blockStart[b.begin] = true
		}
	}
}

// handleJump classifies an unconditional jump.
func (d *decompiler) handleJump(stack *[]*branch, line int, first bool) {
	ins := d.ins(line)
	tline := line + 1 + ins.SBx
	trueNode := tline >= 2 && d.isLoadTrue(tline-1)

	// A jump right at the start of a branch body is the tail of that branch (an empty loop body or
	// an empty "then"). Resolve the branch first so the jump is seen the way the branch claims it.
	if !trueNode && len(*stack) > 0 {
		d.reduce(stack)
		if d.skip[line] {
			return
		}
	}

	switch {
	case trueNode:
		*stack = append(*stack, newTrue(d.ins(tline-1).A, false, line, line+1, tline))

	case d.op(tline) == d.version.TForTarget() && !d.skip[tline]:
		t := d.ins(tline)
		d.r.setInternalLoopVariable(t.A, line, tline+1)
		d.r.setInternalLoopVariable(t.A+1, line, tline+1)
		d.r.setInternalLoopVariable(t.A+2, line, tline+1)
		for i := 1; i <= t.C; i++ {
			d.r.setExplicitLoopVariable(t.A+2+i, line, tline+2)
		}
		d.skip[tline] = true
		d.skip[tline+1] = true
		b := d.newBlock(blkTFor, line+1, tline+2)
		b.register = t.A
		b.vars = t.C
		d.blocks = append(d.blocks, b)

	case ins.SBx == 2 && d.isLoadTrue(line+1):
		// Tail of a boolean set with a compare and an assignment.
		d.blocks = append(d.blocks, d.newBlock(blkBooleanIndicator, line, line))

	case first || d.loopRemoved[line]:
		if tline > line {
			d.isBreak[line] = true
			b := d.newBlock(blkBreak, line, line+1)
			b.tail = tline
			d.blocks = append(d.blocks, b)
			return
		}

		enclosing := d.enclosingBreakableBlock(line)
		if enclosing != nil && d.op(enclosing.end) == opcode.OpJmp && enclosing.end+1+d.ins(enclosing.end).SBx == tline {
			b := d.newBlock(blkBreak, line, line+1)
			b.tail = enclosing.end
			d.blocks = append(d.blocks, b)
			return
		}
		d.blocks = append(d.blocks, d.newBlock(blkAlwaysLoop, tline, line+1))
	}
}

func (d *decompiler) removeDuplicateLoops() {
	for i := 0; i < len(d.blocks); i++ {
		a := d.blocks[i]
		if a.kind != blkAlwaysLoop {
			continue
		}
		for j := i + 1; j < len(d.blocks); j++ {
			b := d.blocks[j]
			if b.kind != blkAlwaysLoop || a.begin != b.begin {
				continue
			}
			if a.end < b.end {
				d.loopRemoved[a.end-1] = true
				d.blocks = append(d.blocks[:i], d.blocks[i+1:]...)
				i--
				break
			}
			d.loopRemoved[b.end-1] = true
			d.blocks = append(d.blocks[:j], d.blocks[j+1:]...)
			j--
		}
	}
}

// repairScopes wraps locals whose range no block accounts for in a do ... end block.
func (d *decompiler) repairScopes() {
	for _, decl := range d.decls {
		if decl.forLoop || decl.forLoopExplicit {
			continue
		}
		needed := true
		for _, b := range d.blocks {
			if b.contains(decl.begin) && b.scopeEnd() == decl.end {
				needed = false
				break
			}
		}
		if needed {
			d.blocks = append(d.blocks, d.newBlock(blkDoEnd, decl.begin, decl.end+1))
		}
	}
}

type pendingCondition struct {
	cond   *branch
	backup []*branch
}

// reduce empties the branch stack, combining the branches into conditions and classifying each.
func (d *decompiler) reduce(stack *[]*branch) {
	var conds []pendingCondition
	for len(*stack) > 0 {
		top := (*stack)[len(*stack)-1]
		isAssign := top.kind == brTestSet
		assignEnd := top.end
		target := top.setTarget
		compareCorrect := false

		switch {
		case top.kind == brTrue:
			isAssign = true
			compareCorrect = true
			assignEnd += d.loadBoolWidth(assignEnd)

		case top.isCompareSet:
			if !d.isLoadTrue(top.begin) {
				isAssign = true
				compareCorrect = true
				assignEnd += d.loadBoolWidth(assignEnd)
			}

		case assignEnd-3 >= 1 && d.isLoadTrue(assignEnd-2) && d.isJmp2(assignEnd-3):
			if top.kind == brTest && top.a == d.ins(assignEnd-2).A {
				isAssign = true
			}

		case assignEnd-2 >= 1 && d.isLoadTrue(assignEnd-1) && d.isJmp2(assignEnd-2):
			if top.kind == brTest {
				isAssign = true
				assignEnd++
			}

		case assignEnd-1 >= 1 && d.isLoadTrue(assignEnd) && d.isJmp2(assignEnd-1):
			if top.kind == brTest {
				isAssign = true
				assignEnd += 2
			}

		case assignEnd-1 >= 1 && assignEnd > top.line:
			// A local that starts with the last instruction of the branch: "local x = a and b".
			reg := d.assignment(assignEnd - 1)
			if decl := d.r.declaration(reg, assignEnd-1); decl != nil && decl.begin == assignEnd-1 {
				isAssign = true
				target = reg
			}
		}

		switch {
		case !compareCorrect && assignEnd-1 == top.begin && d.isLoadTrue(top.begin):
			begin := top.begin
			assignEnd = begin + 2
			target = d.ins(begin).A
			cond := d.popCompareSetCondition(stack, assignEnd, target)
			cond.setTarget = target
			cond.begin = begin
			cond.end = assignEnd
			conds = append(conds, pendingCondition{cond: cond})

		case isAssign:
			begin := top.begin
			cond := d.popSetCondition(stack, assignEnd, target)
			cond.setTarget = target
			cond.begin = begin
			cond.end = assignEnd
			conds = append(conds, pendingCondition{cond: cond})

		default:
			cond, backup := d.popCondition(stack)
			conds = append(conds, pendingCondition{cond: cond, backup: backup})
		}
	}

	for i := len(conds) - 1; i >= 0; i-- {
		d.classify(conds[i].cond, conds[i].backup)
	}
}

func (d *decompiler) loadBoolWidth(line int) int {
	if d.ins(line).C != 0 {
		return 2
	}
	return 1
}

// popCondition pops one condition off the stack, merging the branches below it into and/or trees.
// The leaves it consumed are returned alongside it.
func (d *decompiler) popCondition(stack *[]*branch) (*branch, []*branch) {
	var backup []*branch
	b := d.popConditionInto(stack, &backup)
	return b, backup
}

func (d *decompiler) popConditionInto(stack *[]*branch, backup *[]*branch) *branch {
	b := pop(stack)
	*backup = append(*backup, b)
	if b.kind == brTestSet {
		d.raise(b.line, luautil.ErrTypStructure, "Conditional copy used as a plain condition")
	}

	begin := b.begin
	if d.op(b.begin) == opcode.OpJmp {
		begin += 1 + d.ins(b.begin).SBx
	}

	for len(*stack) > 0 {
		next := (*stack)[len(*stack)-1]
		if next.kind == brTestSet {
			break
		}
		switch {
		case next.end == begin:
			b = newOr(d.popConditionInto(stack, backup).inverted(), b)
		case next.end == b.end:
			b = newAnd(d.popConditionInto(stack, backup), b)
		default:
			return b
		}
	}
	return b
}

func (d *decompiler) popSetCondition(stack *[]*branch, assignEnd, target int) *branch {
	*stack = append(*stack, newAssign(target, assignEnd-1, assignEnd, assignEnd))
	return d.popSetHelper(stack, false, assignEnd, target)
}

func (d *decompiler) popCompareSetCondition(stack *[]*branch, assignEnd, target int) *branch {
	top := pop(stack)
	invert := d.ins(top.begin).B == 0
	top.begin = assignEnd
	top.end = assignEnd
	*stack = append(*stack, top)
	return d.popSetHelper(stack, invert, assignEnd, target)
}

func (d *decompiler) popSetHelper(stack *[]*branch, invert bool, assignEnd, target int) *branch {
	b := pop(stack)
	begin, end := b.begin, b.end
	if invert {
		b = b.inverted()
	}
	if d.op(begin) == opcode.OpLoadBool {
		begin += d.loadBoolWidth(begin)
	}
	if d.op(end) == opcode.OpLoadBool {
		end += d.loadBoolWidth(end)
	}

	for len(*stack) > 0 {
		next := (*stack)[len(*stack)-1]
		nend := next.end
		var ninvert bool
		switch {
		case d.op(next.end) == opcode.OpLoadBool:
			ninvert = d.ins(next.end).B != 0
			nend += d.loadBoolWidth(next.end)
		case next.kind == brTestSet, next.kind == brTest:
			ninvert = next.invert
		default:
			ninvert = false
		}
		if nend >= assignEnd && d.op(next.end) != opcode.OpLoadBool && next.kind != brTestSet && next.kind != brTest {
			break
		}

		addr := begin
		if ninvert == invert {
			addr = end
		}
		if addr != nend {
			if b.kind != brTestSet {
				*stack = append(*stack, b)
				b, _ = d.popCondition(stack)
			}
			break
		}

		if ninvert {
			b = newOr(d.popSetHelper(stack, ninvert, assignEnd, target), b)
		} else {
			b = newAnd(d.popSetHelper(stack, ninvert, assignEnd, target), b)
		}
		b.end = nend
	}

	b.isSet = true
	b.setTarget = target
	return b
}

func pop(stack *[]*branch) *branch {
	s := *stack
	b := s[len(s)-1]
	*stack = s[:len(s)-1]
	return b
}

// classify turns a resolved condition into a block.
func (d *decompiler) classify(cond *branch, backup []*branch) {
	if exit := d.breakTarget(cond.begin); exit >= 1 {
		target := exit
		if d.op(target) == opcode.OpJmp {
			target += 1 + d.ins(target).SBx
		}
		direct := cond.end == exit
		if target == cond.end {
			immediate := d.enclosingBlock(cond.begin)
			loopStart := immediate.end
			if immediate == d.enclosingBreakableBlock(cond.begin) {
				loopStart--
			}
			low := cond.begin
			if immediate.begin > low {
				low = immediate.begin
			}
			for l := loopStart; l >= low; l-- {
				if d.op(l) == opcode.OpJmp && l+1+d.ins(l).SBx == target {
					cond.end = l
					direct = false
					break
				}
			}
		}

		// The branch jumps out of the loop by itself ("if c then break end" in 5.2).
		if direct && !cond.isSet && !d.isLoadTrue(cond.begin) {
			d.addConditionalBreak(cond)
			return
		}
	}

	// A branch has a tail if the instruction just before its end is a jump.
	tailOf := func() (bool, int) {
		if cond.end >= 2 && d.op(cond.end-1) == opcode.OpJmp && !d.isClose(cond.end-1) {
			return true, cond.end + d.ins(cond.end-1).SBx
		}
		return false, -1
	}
	hasTail, tail := tailOf()
	originalTail := tail

	// Undo jump redirection done by the compiler for an enclosing unprotected block.
	if enclosing := d.enclosingUnprotectedBlock(cond.begin); enclosing != nil {
		if enclosing.loopback() == cond.end {
			cond.end = enclosing.end - 1
			hasTail, tail = tailOf()
		}
		if hasTail && enclosing.loopback() == tail {
			tail = enclosing.end - 1
		}
	}

	switch {
	case cond.isSet:
		b := d.newBlock(blkSet, cond.begin, cond.end)
		b.cond = cond
		b.register = cond.setTarget
		d.blocks = append(d.blocks, b)

	case d.isLoadTrue(cond.begin):
		begin := cond.begin
		if d.ins(begin).B == 0 {
			cond = cond.inverted()
		}
		b := d.newBlock(blkCompare, begin, begin+2)
		b.cond = cond
		b.register = d.ins(begin).A
		d.blocks = append(d.blocks, b)

	case cond.end < cond.begin:
		if cond.end >= 1 && d.isBreak[cond.end-1] {
			d.skip[cond.end-1] = true
			inv := cond.inverted()
			b := d.newBlock(blkWhile, inv.begin, inv.end)
			b.cond = inv
			b.tail = originalTail
			d.blocks = append(d.blocks, b)
			return
		}
		if b := d.findBlock(blkRepeat, cond.end, cond.begin); b != nil {
			b.cond = cond
			return
		}
		b := d.newBlock(blkRepeat, cond.end, cond.begin)
		b.cond = cond
		d.blocks = append(d.blocks, b)

	case hasTail:
		endOp := d.op(cond.end - 2)
		isEndCondJump := endOp == opcode.OpEq || endOp == opcode.OpLe || endOp == opcode.OpLt ||
			endOp == opcode.OpTest || endOp == opcode.OpTestSet

		if tail > cond.end || tail == cond.end && !isEndCondJump {
			op := d.op(tail - 1)
			loopback := tail + d.ins(tail-1).SBx
			if d.version.IsBreakableLoopEnd(op) && loopback <= cond.begin && !d.isBreak[tail-1] {
				// The "then" part ends with a break.
				d.addIfThenEnd(cond, backup)
				return
			}

			d.skip[cond.end-1] = true
			emptyElse := tail == cond.end
			b := d.newBlock(blkIfThenElse, cond.begin, cond.end)
			b.cond = cond
			b.tail = originalTail
			b.emptyElse = emptyElse
			d.blocks = append(d.blocks, b)
			if !emptyElse {
				d.blocks = append(d.blocks, d.newBlock(blkElseEnd, cond.end, tail))
			}
			return
		}

		// A statement between the jump target and the condition means the target is not a loop head.
		loopback := tail
		statement := false
		for l := loopback; l < cond.begin; l++ {
			if l >= 1 && !d.skip[l] && d.isStatement(l) {
				statement = true
				break
			}
		}
		if loopback >= cond.begin || statement {
			d.addIfThenEnd(cond, backup)
			return
		}
		d.skip[cond.end-1] = true
		b := d.newBlock(blkWhile, cond.begin, cond.end)
		b.cond = cond
		b.tail = originalTail
		d.blocks = append(d.blocks, b)

	default:
		d.addIfThenEnd(cond, backup)
	}
}

// addConditionalBreak adds an if-then block around the jump that ends the condition, holding a break.
func (d *decompiler) addConditionalBreak(cond *branch) {
	jump := cond.begin - 1
	b := d.newBlock(blkIfThenEnd, jump, jump+1)
	b.cond = cond.inverted()
	b.stmts = []ast.Stmt{d.newBlock(blkBreak, jump, jump+1)}
	d.blocks = append(d.blocks, b)
}

func (d *decompiler) findBlock(kind blockKind, begin, end int) *block {
	for _, b := range d.blocks {
		if b.kind == kind && b.begin == begin && b.end == end {
			return b
		}
	}
	return nil
}

func (d *decompiler) addIfThenEnd(cond *branch, backup []*branch) {
	b := d.newBlock(blkIfThenEnd, cond.begin, cond.end)
	b.cond = cond
	b.backup = backup
	d.blocks = append(d.blocks, b)
}

// breakTarget returns the end of the innermost breakable block containing line, or -1.
func (d *decompiler) breakTarget(line int) int {
	target := math.MaxInt32
	for _, b := range d.blocks {
		if b.breakable() && b.contains(line) && b.end < target {
			target = b.end
		}
	}
	if target == math.MaxInt32 {
		return -1
	}
	return target
}

func (d *decompiler) enclosingBlock(line int) *block {
	enclosing := d.outer
	for _, b := range d.blocks[1:] {
		if b.isContainer() && enclosing.containsBlock(b) && b.contains(line) {
			enclosing = b
		}
	}
	return enclosing
}

func (d *decompiler) enclosingBreakableBlock(line int) *block {
	enclosing := d.outer
	for _, b := range d.blocks[1:] {
		if enclosing.containsBlock(b) && b.contains(line) && b.breakable() {
			enclosing = b
		}
	}
	if enclosing == d.outer {
		return nil
	}
	return enclosing
}

func (d *decompiler) enclosingUnprotectedBlock(line int) *block {
	enclosing := d.outer
	for _, b := range d.blocks[1:] {
		if enclosing.containsBlock(b) && b.contains(line) && b.unprotected() {
			enclosing = b
		}
	}
	if enclosing == d.outer {
		return nil
	}
	return enclosing
}

// assignment returns the register the instruction at line assigns a single value to, or -1.
func (d *decompiler) assignment(line int) int {
	ins := d.ins(line)
	switch ins.Op {
	case opcode.OpMove, opcode.OpLoadK, opcode.OpLoadKX, opcode.OpLoadBool, opcode.OpGetUpval,
		opcode.OpGetTable, opcode.OpGetGlobal, opcode.OpGetTabUp, opcode.OpNewTable,
		opcode.OpAdd, opcode.OpSub, opcode.OpMul, opcode.OpDiv, opcode.OpMod, opcode.OpPow,
		opcode.OpUnm, opcode.OpNot, opcode.OpLen, opcode.OpConcat, opcode.OpClosure:
		return ins.A
	case opcode.OpLoadNil:
		if d.loadNilLast(ins) == ins.A {
			return ins.A
		}
	case opcode.OpCall:
		if ins.C == 2 {
			return ins.A
		}
	case opcode.OpVararg:
		if ins.B == 2 {
			return ins.A
		}
	}
	return -1
}

// loadNilLast returns the last register a LOADNIL clears.
func (d *decompiler) loadNilLast(ins opcode.Instruction) int {
	if d.version.OldLoadNil() {
		return ins.B
	}
	return ins.A + ins.B
}

// isStatement reports if the instruction at line produces a statement, as opposed to a temporary.
func (d *decompiler) isStatement(line int) bool {
	if d.pseudo[line] {
		return false
	}
	ins := d.ins(line)
	r := d.r
	switch ins.Op {
	case opcode.OpMove, opcode.OpLoadK, opcode.OpLoadKX, opcode.OpLoadBool, opcode.OpGetUpval,
		opcode.OpGetTable, opcode.OpGetGlobal, opcode.OpGetTabUp, opcode.OpNewTable,
		opcode.OpAdd, opcode.OpSub, opcode.OpMul, opcode.OpDiv, opcode.OpMod, opcode.OpPow,
		opcode.OpUnm, opcode.OpNot, opcode.OpLen, opcode.OpConcat, opcode.OpClosure:
		return r.isLocal(ins.A, line)
	case opcode.OpLoadNil:
		for reg := ins.A; reg <= d.loadNilLast(ins); reg++ {
			if r.isLocal(reg, line) {
				return true
			}
		}
		return false
	case opcode.OpJmp:
		return !d.isClose(line)
	case opcode.OpSetGlobal, opcode.OpSetUpval, opcode.OpSetTable, opcode.OpSetTabUp,
		opcode.OpTailCall, opcode.OpReturn, opcode.OpForLoop, opcode.OpForPrep,
		opcode.OpTForCall, opcode.OpTForLoop, opcode.OpClose:
		return true
	case opcode.OpSelf:
		return r.isLocal(ins.A, line) || r.isLocal(ins.A+1, line)
	case opcode.OpEq, opcode.OpLt, opcode.OpLe, opcode.OpTest, opcode.OpTestSet, opcode.OpSetList, opcode.OpExtraArg:
		return false
	case opcode.OpCall:
		if ins.C == 1 {
			return true
		}
		c := ins.C
		if c == 0 {
			c = r.count - ins.A + 1
		}
		for reg := ins.A; reg < ins.A+c-1; reg++ {
			if r.isLocal(reg, line) {
				return true
			}
		}
		return false
	case opcode.OpVararg:
		b := ins.B
		if b == 0 {
			b = r.count - ins.A + 1
		}
		for reg := ins.A; reg < ins.A+b-1; reg++ {
			if r.isLocal(reg, line) {
				return true
			}
		}
		return false
	}
	d.raise(line, luautil.ErrTypDecode, "Illegal opcode %v", ins.Op)
	return false
}
