package decompiler

import (
	"fmt"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Structuring: blocks to statements
// ---------------------------------------------------------------------------

// context describes where control goes from inside a region. Addresses
// are -1 when absent.
type context struct {
	brk      int // target of break
	cont     int // target of continue
	follow   int // where control goes when the region runs off its end
	skipLoop int // loop header already being structured
}

func labelName(addr int) string { return fmt.Sprintf("label_%d", addr) }

func label(addr int) compiler.Stmt { return &compiler.LabelStmt{Name: labelName(addr)} }

// region structures the blocks in [lo, hi). Every block start gets a label
// statement; tidy removes the ones no goto refers to.
func (pd *procDecompiler) region(lo, hi int, ctx context) []compiler.Stmt {
	var out []compiler.Stmt
	for addr := lo; addr < hi; {
		b := pd.byStart[addr]
		if b == nil {
			pd.broken = true
			return out
		}
		out = append(out, label(addr))
		stmts, next := pd.structured(b, hi, ctx)
		out = append(out, stmts...)
		addr = next
		ctx.skipLoop = -1
	}
	return out
}

// structured matches a loop, switch or conditional starting at b. Each
// recognizer returns the statements and the address where the region
// continues. A block nothing matches is rendered plainly.
func (pd *procDecompiler) structured(b *block, hi int, ctx context) ([]compiler.Stmt, int) {
	if stmts, next, ok := pd.loop(b, hi, ctx); ok {
		return stmts, next
	}
	if stmts, next, ok := pd.switchStmt(b, hi, ctx); ok {
		return stmts, next
	}
	if stmts, next, ok := pd.conditional(b, hi, ctx); ok {
		return stmts, next
	}
	return pd.plain(b, hi, ctx), b.end
}

// exits reports whether control arriving at addr is the same as control
// leaving a statement that ends the region at its last position.
func exits(addr, hi int, ctx context) bool {
	return addr < hi || (addr == hi && addr == ctx.follow)
}

// plain renders a block as its statements followed by its terminator.
func (pd *procDecompiler) plain(b *block, hi int, ctx context) []compiler.Stmt {
	stmts := append([]compiler.Stmt(nil), b.stmts...)
	switch b.term {
	case termJump:
		if s := jumpStmt(b.target, b.end, hi, ctx); s != nil {
			stmts = append(stmts, s)
		}
	case termBranch:
		then := &compiler.Block{}
		if s := jumpStmt(b.target, b.end, hi, ctx); s != nil {
			then.Stmts = []compiler.Stmt{s}
		}
		stmts = append(stmts, &compiler.If{Cond: b.taken(), Then: then})
	}
	return stmts
}

// jumpStmt renders a jump to t from a block ending at next. It returns nil
// when the jump only goes where control would flow anyway.
func jumpStmt(t, next, hi int, ctx context) compiler.Stmt {
	switch {
	case t == next && next < hi:
		return nil
	case next == hi && t == ctx.follow:
		return nil
	case t == ctx.brk:
		return &compiler.Break{}
	case t == ctx.cont:
		return &compiler.Continue{}
	}
	return &compiler.Goto{Label: labelName(t)}
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// loop matches a block that is the target of a later unconditional jump
// inside the region. The furthest such jump is the back edge and the
// address after it is the exit.
//
//	top: cond; jump-if-false exit; body; [step:] step; jump top; exit:
//
// A header that only tests a condition against the exit becomes a while
// (or a for when a step precedes the back edge); any other header makes
// an infinite for.
func (pd *procDecompiler) loop(b *block, hi int, ctx context) ([]compiler.Stmt, int, bool) {
	if ctx.skipLoop == b.start {
		return nil, 0, false
	}
	back := -1
	for _, e := range pd.edges {
		if e.to == b.start && e.from >= b.start && e.from < hi && pd.code[e.from].Op == bytecode.OpJump && e.from > back {
			back = e.from
		}
	}
	if back < 0 {
		return nil, 0, false
	}
	exit := back + 1
	if !exits(exit, hi, ctx) {
		return nil, 0, false
	}
	tail := pd.byEnd[exit]

	inner := context{brk: exit, cont: b.start, follow: b.start, skipLoop: -1}
	var cond compiler.Expr
	bodyStart := b.start
	if len(b.stmts) == 0 && b.term == termBranch && b.target == exit {
		cond = b.fallen()
		bodyStart = b.end
	} else {
		inner.skipLoop = b.start
	}

	// A step block that continue statements jump to.
	if tail.start > bodyStart && len(tail.stmts) == 1 && isStep(tail.stmts[0]) && pd.targeted(tail.start, bodyStart, tail.start) {
		inner.cont, inner.follow = tail.start, tail.start
		body := pd.region(bodyStart, tail.start, inner)
		return []compiler.Stmt{&compiler.For{
			Cond: cond,
			Step: tail.stmts[0].(*compiler.ExprStmt).X,
			Body: &compiler.Block{Stmts: body},
		}}, exit, true
	}

	body := pd.region(bodyStart, exit, inner)
	if cond == nil {
		return []compiler.Stmt{&compiler.For{Body: &compiler.Block{Stmts: body}}}, exit, true
	}
	if n := len(body); n > 0 && len(tail.stmts) > 0 && body[n-1] == tail.stmts[len(tail.stmts)-1] && isStep(body[n-1]) {
		return []compiler.Stmt{&compiler.For{
			Cond: cond,
			Step: body[n-1].(*compiler.ExprStmt).X,
			Body: &compiler.Block{Stmts: body[:n-1]},
		}}, exit, true
	}
	return []compiler.Stmt{&compiler.While{Cond: cond, Body: &compiler.Block{Stmts: body}}}, exit, true
}

// isStep reports whether s can serve as a for-loop step: an assignment or
// increment.
func isStep(s compiler.Stmt) bool {
	es, ok := s.(*compiler.ExprStmt)
	if !ok {
		return false
	}
	switch x := es.X.(type) {
	case *compiler.Assign:
		return true
	case *compiler.Unary:
		return x.Op >= compiler.UnaryPreInc
	}
	return false
}

// targeted reports whether a jump located in [lo, hi) lands on addr.
func (pd *procDecompiler) targeted(addr, lo, hi int) bool {
	for _, e := range pd.edges {
		if e.to == addr && e.from >= lo && e.from < hi {
			return true
		}
	}
	return false
}

// jumpedTo reports whether any jump lands on addr.
func (pd *procDecompiler) jumpedTo(addr int) bool {
	return pd.targeted(addr, 0, len(pd.code))
}

// ---------------------------------------------------------------------------
// Switch
// ---------------------------------------------------------------------------

// caseArm is one case test of a switch dispatch chain.
type caseArm struct {
	value  compiler.Expr
	target int
}

// switchStmt matches the dispatch chain the compiler emits for a switch:
//
//	tag; store tmp
//	load tmp; push c0; eq; jump-if-true body0
//	...
//	jump default-or-end
//
// followed by the bodies in source order, each ending in a jump to the
// end unless it returns or jumps elsewhere.
func (pd *procDecompiler) switchStmt(b *block, hi int, ctx context) ([]compiler.Stmt, int, bool) {
	if b.term != termBranch || !b.sense || len(b.stmts) == 0 {
		return nil, 0, false
	}
	slot, value, ok := pd.caseTest(b.cond, -1)
	if !ok || slot < int(pd.proc.ParamCount) {
		return nil, 0, false
	}
	set, ok := b.stmts[len(b.stmts)-1].(*compiler.ExprStmt)
	if !ok {
		return nil, 0, false
	}
	assign, ok := set.X.(*compiler.Assign)
	if !ok || assign.Op != compiler.AssignSet || pd.slots[assign.Target] != slot || assign.Target.Name != pd.localName(slot) {
		return nil, 0, false
	}

	arms := []caseArm{{value: value, target: b.target}}
	cur := b
	dflt := -1
	for dflt < 0 {
		next := pd.byStart[cur.end]
		if next == nil || len(next.stmts) != 0 || len(next.preds) != 1 || next.preds[0] != cur || pd.jumpedTo(next.start) {
			return nil, 0, false
		}
		switch next.term {
		case termBranch:
			_, v, ok := pd.caseTest(next.cond, slot)
			if !ok || !next.sense {
				return nil, 0, false
			}
			arms = append(arms, caseArm{value: v, target: next.target})
		case termJump:
			dflt = next.target
		default:
			return nil, 0, false
		}
		cur = next
	}
	chainEnd := cur.end
	if pd.loads[slot] != len(arms) || pd.stores[slot] != 1 {
		return nil, 0, false
	}

	isCase := make(map[int]bool, len(arms))
	targets := []int{dflt}
	for _, a := range arms {
		isCase[a.target] = true
		targets = append(targets, a.target)
	}
	starts := sortedUnique(targets)
	last := starts[len(starts)-1]

	// The end is where the bodies' trailing jumps go, and they must all
	// agree. Jumps to the enclosing loop are continue and break statements.
	end := -1
	for i := 0; i+1 < len(starts); i++ {
		blk := pd.byEnd[starts[i+1]]
		if blk == nil || blk.term != termJump || blk.target < last || blk.target == ctx.cont || blk.target == ctx.brk {
			continue
		}
		if end >= 0 && blk.target != end {
			return nil, 0, false
		}
		end = blk.target
	}
	switch {
	case !isCase[dflt] && dflt == last && (end < 0 || end == last):
		end = dflt
		dflt = -1
		starts = starts[:len(starts)-1]
	case end > last:
	case end < 0:
		end = hi
	default:
		return nil, 0, false
	}
	if len(starts) > 0 && starts[0] != chainEnd || len(starts) == 0 && end != chainEnd {
		return nil, 0, false
	}
	if end > hi || !exits(end, hi, ctx) {
		return nil, 0, false
	}

	sw := &compiler.Switch{Tag: assign.Value}
	inner := context{brk: end, cont: ctx.cont, follow: end, skipLoop: -1}
	for i, start := range starts {
		stop := end
		if i+1 < len(starts) {
			stop = starts[i+1]
		}
		sec := &compiler.SwitchSection{}
		for _, a := range arms {
			if a.target == start {
				sec.Labels = append(sec.Labels, &compiler.CaseLabel{Value: a.value})
			}
		}
		if start == dflt {
			sec.Labels = append(sec.Labels, &compiler.CaseLabel{})
		}
		sec.Body = pd.region(start, stop, inner)
		sw.Sections = append(sw.Sections, sec)
	}

	stmts := append([]compiler.Stmt(nil), b.stmts[:len(b.stmts)-1]...)
	return append(stmts, sw), end, true
}

// caseTest matches tmp == constant, where tmp may be converted to float.
// When slot is not -1 the temporary must be that slot.
func (pd *procDecompiler) caseTest(cond compiler.Expr, slot int) (int, compiler.Expr, bool) {
	eq, ok := cond.(*compiler.Binary)
	if !ok || eq.Op != compiler.BinaryEq {
		return 0, nil, false
	}
	l := eq.Left
	if c, ok := l.(*compiler.Cast); ok && c.Type == bytecode.TypeFloat {
		l = c.Operand
	}
	id, ok := l.(*compiler.Identifier)
	if !ok {
		return 0, nil, false
	}
	s, ok := pd.slots[id]
	if !ok || (slot >= 0 && s != slot) {
		return 0, nil, false
	}
	switch eq.Right.(type) {
	case *compiler.IntLiteral, *compiler.FloatLiteral, *compiler.BoolLiteral, *compiler.StringLiteral:
		return s, eq.Right, true
	}
	return 0, nil, false
}

// ---------------------------------------------------------------------------
// Conditionals
// ---------------------------------------------------------------------------

// conditional matches a forward branch. When the then-part ends in an
// unconditional forward jump past the branch target the shape is an
// if/else:
//
//	cond; jump-if-false else; then; jump join; else: ...; join:
//
// otherwise it is an if whose then-part runs up to the branch target.
func (pd *procDecompiler) conditional(b *block, hi int, ctx context) ([]compiler.Stmt, int, bool) {
	if b.term != termBranch {
		return nil, 0, false
	}
	t := b.target
	if t < b.end || t > hi || !exits(t, hi, ctx) {
		return nil, 0, false
	}
	stmts := append([]compiler.Stmt(nil), b.stmts...)

	if tail := pd.byEnd[t]; t > b.end && tail != nil && tail.term == termJump {
		j := tail.target
		if j > t && j <= hi && exits(j, hi, ctx) && j != ctx.brk && j != ctx.cont {
			inner := ctx
			inner.follow, inner.skipLoop = j, -1
			then := pd.region(b.end, t, inner)
			els := pd.region(t, j, inner)
			return append(stmts, &compiler.If{
				Cond: b.fallen(),
				Then: &compiler.Block{Stmts: then},
				Else: &compiler.Block{Stmts: els},
			}), j, true
		}
	}

	inner := ctx
	inner.follow, inner.skipLoop = t, -1
	then := pd.region(b.end, t, inner)
	return append(stmts, &compiler.If{Cond: b.fallen(), Then: &compiler.Block{Stmts: then}}), t, true
}
