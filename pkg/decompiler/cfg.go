package decompiler

import (
	"sort"

	"github.com/chazu/flowscript/compiler"
	"github.com/chazu/flowscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Control-flow graph
// ---------------------------------------------------------------------------

// op is one instruction, or a folded short-circuit expression covering
// several. Addresses are relative to the procedure entry.
type op struct {
	addr  int
	size  int
	in    bytecode.Instruction
	logic *logical
}

func (o *op) end() int { return o.addr + o.size }

// logical is A && B or A || B: the left operand is already on the stack
// and right evaluates B.
type logical struct {
	or    bool
	right []op
}

// edge is a jump from one relative address to another.
type edge struct{ from, to int }

type termKind int

const (
	termFall termKind = iota
	termJump
	termBranch
	termReturn
)

type block struct {
	start, end int
	ops        []op
	succs      []*block
	preds      []*block
	depth      int // stack depth on entry
	reached    bool

	// Filled in by simulation.
	stmts  []compiler.Stmt
	term   termKind
	target int           // jump or branch destination
	cond   compiler.Expr // branch condition
	sense  bool          // branch is taken when cond is true
}

// taken returns the condition under which the branch jumps.
func (b *block) taken() compiler.Expr {
	if b.sense {
		return b.cond
	}
	return negate(b.cond)
}

// fallen returns the condition under which the branch falls through.
func (b *block) fallen() compiler.Expr {
	if b.sense {
		return negate(b.cond)
	}
	return b.cond
}

// relocate validates the body of p and returns it with jump operands made
// relative to the entry, plus every jump edge. Bodies must end in a jump
// or return.
func relocate(p *bytecode.Procedure, body []bytecode.Instruction) ([]bytecode.Instruction, []edge, error) {
	code := make([]bytecode.Instruction, len(body))
	var edges []edge
	for i, in := range body {
		if in.Op.IsJump() {
			if !p.Contains(in.Operand) {
				return nil, nil, malformed("instruction %d jumps to %d outside [%d, %d)",
					p.Entry+uint32(i), in.Operand, p.Entry, p.End())
			}
			in.Operand -= p.Entry
			edges = append(edges, edge{from: i, to: int(in.Operand)})
		}
		code[i] = in
	}
	if last := code[len(code)-1].Op; last != bytecode.OpJump && last != bytecode.OpReturn {
		return nil, nil, malformed("control falls off the end of %q", p.Name)
	}
	return code, edges, nil
}

// fold replaces every short-circuit region
//
//	dup; jump-if-false/true L; pop; B; L:
//
// with a single logical op. Regions are folded innermost first and only
// when B is a pure expression that no outside jump enters.
func fold(code []bytecode.Instruction, edges []edge) []op {
	seq := make([]op, len(code))
	for i, in := range code {
		seq[i] = op{addr: i, size: 1, in: in}
	}
	for k := len(seq) - 3; k >= 0; k-- {
		dup, br, pop := seq[k], seq[k+1], seq[k+2]
		if dup.logic != nil || dup.in.Op != bytecode.OpDup ||
			br.logic != nil || !br.in.Op.IsConditionalJump() ||
			pop.logic != nil || pop.in.Op != bytecode.OpPop {
			continue
		}
		to := int(br.in.Operand)
		m := k + 3
		for m < len(seq) && seq[m].addr < to {
			m++
		}
		if m == k+3 || m == len(seq) || seq[m].addr != to {
			continue
		}
		if !pureExpr(seq[k+3:m]) || entered(edges, dup.addr, to) {
			continue
		}
		folded := op{
			addr: dup.addr,
			size: to - dup.addr,
			in:   dup.in,
			logic: &logical{
				or:    br.in.Op == bytecode.OpJumpIfTrue,
				right: append([]op(nil), seq[k+3:m]...),
			},
		}
		seq = append(seq[:k+1], seq[m:]...)
		seq[k] = folded
	}
	return seq
}

// effect returns how many values in pops and pushes.
func effect(in bytecode.Instruction) (pop, push int) {
	info, _ := bytecode.GetOpcodeInfo(in.Op)
	pop, push = info.StackPop, info.StackPush
	if pop < 0 {
		pop = int(in.Aux)
	}
	return pop, push
}

// pureExpr reports whether ops push exactly one value without emitting a
// statement. Stores are allowed only as dup; store (assignment used as a
// value).
func pureExpr(ops []op) bool {
	depth := 0
	for i, o := range ops {
		if o.logic != nil {
			if depth < 1 {
				return false
			}
			continue
		}
		in := o.in
		switch {
		case in.Op == bytecode.OpPop, in.Op.EndsBlock():
			return false
		case in.Op == bytecode.OpDup:
			if i+1 >= len(ops) || ops[i+1].logic != nil || !ops[i+1].in.Op.IsStore() {
				return false
			}
		case in.Op.IsStore():
			if i == 0 || ops[i-1].logic != nil || ops[i-1].in.Op != bytecode.OpDup {
				return false
			}
		}
		pop, push := effect(in)
		if depth < pop {
			return false
		}
		depth += push - pop
	}
	return depth == 1
}

// entered reports whether a jump from outside [start, end) lands strictly
// inside it.
func entered(edges []edge, start, end int) bool {
	for _, e := range edges {
		if e.to > start && e.to < end && (e.from < start || e.from >= end) {
			return true
		}
	}
	return false
}

// split cuts the folded sequence into basic blocks at jump targets and
// after jumps and returns.
func split(seq []op) ([]*block, error) {
	leaders := map[int]bool{0: true}
	for i, o := range seq {
		if o.logic != nil || !o.in.Op.EndsBlock() {
			continue
		}
		if o.in.Op.IsJump() {
			leaders[int(o.in.Operand)] = true
		}
		if i+1 < len(seq) {
			leaders[seq[i+1].addr] = true
		}
	}

	var blocks []*block
	byStart := make(map[int]*block)
	for _, o := range seq {
		if leaders[o.addr] {
			b := &block{start: o.addr}
			blocks = append(blocks, b)
			byStart[o.addr] = b
		}
		b := blocks[len(blocks)-1]
		b.ops = append(b.ops, o)
		b.end = o.end()
	}
	for addr := range leaders {
		if byStart[addr] == nil {
			return nil, malformed("jump into the middle of an expression at %d", addr)
		}
	}

	link := func(from, to *block) {
		from.succs = append(from.succs, to)
		to.preds = append(to.preds, from)
	}
	for i, b := range blocks {
		last := b.ops[len(b.ops)-1]
		fall := last.logic != nil || !last.in.Op.EndsBlock() || last.in.Op.IsConditionalJump()
		if last.logic == nil && last.in.Op.IsJump() {
			link(b, byStart[int(last.in.Operand)])
		}
		if fall && i+1 < len(blocks) {
			link(b, blocks[i+1])
		}
	}
	return blocks, nil
}

// depths computes the stack depth on entry to every block. Reachable
// blocks must agree on the depth along every edge; unreachable blocks are
// assumed to start empty.
func depths(blocks []*block) error {
	exit := func(b *block) (int, error) {
		depth := b.depth
		for _, o := range b.ops {
			pop, push := 1, 1
			if o.logic == nil {
				pop, push = effect(o.in)
			}
			if depth < pop {
				return 0, malformed("stack underflow at %d", o.addr)
			}
			depth += push - pop
		}
		return depth, nil
	}

	blocks[0].reached = true
	work := []*block{blocks[0]}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		out, err := exit(b)
		if err != nil {
			return err
		}
		for _, s := range b.succs {
			if !s.reached {
				s.reached = true
				s.depth = out
				work = append(work, s)
			} else if s.depth != out {
				return malformed("inconsistent stack depth at %d: %d and %d", s.start, s.depth, out)
			}
		}
	}
	for _, b := range blocks {
		if !b.reached {
			if _, err := exit(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortedUnique returns the distinct values of xs in increasing order.
func sortedUnique(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	var out []int
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}
