package decompiler

import "github.com/chazu/flowscript/compiler"

// tidy removes labels no goto refers to, turns else { if ... } into else
// if, and moves the assignment preceding a for loop into its init clause
// when the step updates the same variable.
func (pd *procDecompiler) tidy(body []compiler.Stmt) []compiler.Stmt {
	referenced := make(map[string]bool)
	walk(body, func(n compiler.Node) {
		if g, ok := n.(*compiler.Goto); ok {
			referenced[g.Label] = true
		}
	})
	return tidyList(body, referenced)
}

func tidyList(stmts []compiler.Stmt, referenced map[string]bool) []compiler.Stmt {
	out := stmts[:0]
	for _, s := range stmts {
		if l, ok := s.(*compiler.LabelStmt); ok && !referenced[l.Name] {
			continue
		}
		tidyStmt(s, referenced)
		if f, ok := s.(*compiler.For); ok && f.Init == nil && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*compiler.ExprStmt); ok && initializes(prev, f.Step) {
				f.Init = prev
				out = out[:len(out)-1]
			}
		}
		out = append(out, s)
	}
	return out
}

func tidyStmt(s compiler.Stmt, referenced map[string]bool) {
	switch s := s.(type) {
	case *compiler.Block:
		s.Stmts = tidyList(s.Stmts, referenced)
	case *compiler.If:
		tidyStmt(s.Then, referenced)
		if s.Else == nil {
			return
		}
		tidyStmt(s.Else, referenced)
		if b, ok := s.Else.(*compiler.Block); ok && len(b.Stmts) == 1 {
			if inner, ok := b.Stmts[0].(*compiler.If); ok {
				s.Else = inner
			}
		}
	case *compiler.While:
		tidyStmt(s.Body, referenced)
	case *compiler.For:
		tidyStmt(s.Body, referenced)
	case *compiler.Switch:
		for _, sec := range s.Sections {
			sec.Body = tidyList(sec.Body, referenced)
		}
	}
}

// initializes reports whether s assigns the variable step updates.
func initializes(s *compiler.ExprStmt, step compiler.Expr) bool {
	a, ok := s.X.(*compiler.Assign)
	if !ok || a.Op != compiler.AssignSet {
		return false
	}
	switch x := step.(type) {
	case *compiler.Assign:
		return x.Target.Name == a.Target.Name
	case *compiler.Unary:
		id, ok := x.Operand.(*compiler.Identifier)
		return ok && id.Name == a.Target.Name
	}
	return false
}

// labelsResolve reports whether every goto names exactly one label.
func labelsResolve(body []compiler.Stmt) bool {
	defined := make(map[string]int)
	var gotos []string
	walk(body, func(n compiler.Node) {
		switch n := n.(type) {
		case *compiler.LabelStmt:
			defined[n.Name]++
		case *compiler.Goto:
			gotos = append(gotos, n.Label)
		}
	})
	for _, g := range gotos {
		if defined[g] != 1 {
			return false
		}
	}
	return true
}

// walk calls fn for every statement and expression in stmts.
func walk(stmts []compiler.Stmt, fn func(compiler.Node)) {
	for _, s := range stmts {
		walkStmt(s, fn)
	}
}

func walkStmt(s compiler.Stmt, fn func(compiler.Node)) {
	if s == nil {
		return
	}
	fn(s)
	switch s := s.(type) {
	case *compiler.Block:
		walk(s.Stmts, fn)
	case *compiler.ExprStmt:
		walkExpr(s.X, fn)
	case *compiler.VarDecl:
		walkExpr(s.Init, fn)
	case *compiler.If:
		walkExpr(s.Cond, fn)
		walkStmt(s.Then, fn)
		walkStmt(s.Else, fn)
	case *compiler.While:
		walkExpr(s.Cond, fn)
		walkStmt(s.Body, fn)
	case *compiler.For:
		walkStmt(s.Init, fn)
		walkExpr(s.Cond, fn)
		walkExpr(s.Step, fn)
		walkStmt(s.Body, fn)
	case *compiler.Switch:
		walkExpr(s.Tag, fn)
		for _, sec := range s.Sections {
			for _, l := range sec.Labels {
				walkExpr(l.Value, fn)
			}
			walk(sec.Body, fn)
		}
	case *compiler.Return:
		walkExpr(s.Value, fn)
	}
}

func walkExpr(e compiler.Expr, fn func(compiler.Node)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *compiler.Call:
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	case *compiler.Unary:
		walkExpr(e.Operand, fn)
	case *compiler.Binary:
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	case *compiler.Assign:
		walkExpr(e.Target, fn)
		walkExpr(e.Value, fn)
	case *compiler.Cast:
		walkExpr(e.Operand, fn)
	}
}
