package compiler

import (
	"github.com/chazu/flowscript/pkg/bytecode"
)

// label identifies a jump target within one compilation unit. Zero means
// "no label".
type label int

// labelDef describes a minted label. User labels keep their source name
// for diagnostics; synthetic ones have none.
type labelDef struct {
	name string
	pos  Position // first reference, for unresolved-label errors
}

// item is one entry of the lowered stream: either an instruction, whose
// operand may still be a symbolic label, or a label definition mark.
type item struct {
	in     bytecode.Instruction
	target label // symbolic jump operand
	define label // label definition mark; in is unused
}

func (it item) isMark() bool { return it.define != 0 }

// stream is the flat lowered code of a unit plus its label namespace.
type stream struct {
	items  []item
	labels []labelDef // index = label-1
}

func (s *stream) newLabel(name string, pos Position) label {
	s.labels = append(s.labels, labelDef{name: name, pos: pos})
	return label(len(s.labels))
}

func (s *stream) emit(in bytecode.Instruction) {
	s.items = append(s.items, item{in: in})
}

func (s *stream) jump(op bytecode.Opcode, l label) {
	s.items = append(s.items, item{in: bytecode.Instruction{Op: op}, target: l})
}

func (s *stream) mark(l label) {
	s.items = append(s.items, item{define: l})
}

// endsInReturn reports whether control cannot fall off the end of the
// stream: the last item is a return and no label follows it.
func (s *stream) endsInReturn() bool {
	if len(s.items) == 0 {
		return false
	}
	last := s.items[len(s.items)-1]
	return !last.isMark() && last.in.Op == bytecode.OpReturn
}

// backpatch resolves labels to instruction indices. The first pass records
// each definition's index; the second rewrites every symbolic operand.
// Every label that is referenced but never defined is reported, and no
// code is produced in that case.
func backpatch(s *stream) ([]bytecode.Instruction, []uint32, ErrorList) {
	addrs := make([]uint32, len(s.labels))
	defined := make([]bool, len(s.labels))
	var n uint32
	for _, it := range s.items {
		if it.isMark() {
			addrs[it.define-1] = n
			defined[it.define-1] = true
			continue
		}
		n++
	}

	var errs ErrorList
	reported := make(map[label]bool)
	code := make([]bytecode.Instruction, 0, n)
	for _, it := range s.items {
		if it.isMark() {
			continue
		}
		in := it.in
		if it.target != 0 {
			if !defined[it.target-1] {
				if !reported[it.target] {
					def := s.labels[it.target-1]
					errs.add(ErrUnresolvedLabel, def.pos, "label %s is never defined", def.name)
					reported[it.target] = true
				}
				continue
			}
			in.Operand = addrs[it.target-1]
		}
		code = append(code, in)
	}
	if len(errs) > 0 {
		return nil, nil, errs
	}
	return code, addrs, nil
}
