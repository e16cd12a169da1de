package btrc

// Walk traverses every node reachable from the given node in source
// order, calling visit on each one before descending. Codegen's
// detection passes (lambda lifting, include discovery, helper-suite
// selection) are all built on it.
func Walk(node Node, visit func(Node)) {
	if node == nil {
		return
	}
	visit(node)

	switch n := node.(type) {
	// ---- declarations ----
	case *ClassDecl:
		for _, m := range n.Members {
			Walk(m, visit)
		}
	case *FunctionDecl:
		for _, p := range n.Params {
			Walk(p, visit)
		}
		walkBlock(n.Body, visit)
	case *FieldDecl:
		walkExpr(n.Initializer, visit)
	case *MethodDecl:
		for _, p := range n.Params {
			Walk(p, visit)
		}
		walkBlock(n.Body, visit)
	case *PropertyDecl:
		walkBlock(n.GetterBody, visit)
		walkBlock(n.SetterBody, visit)
	case *Param:
		walkExpr(n.Default, visit)
	case *EnumDecl:
		for _, v := range n.Values {
			walkExpr(v.Value, visit)
		}

	// ---- statements ----
	case *Block:
		for _, s := range n.Statements {
			Walk(s, visit)
		}
	case *VarDeclStmt:
		walkExpr(n.Initializer, visit)
	case *ReturnStmt:
		walkExpr(n.Value, visit)
	case *IfStmt:
		walkExpr(n.Cond, visit)
		walkBlock(n.Then, visit)
		if n.Else != nil {
			Walk(n.Else, visit)
		}
	case *WhileStmt:
		walkExpr(n.Cond, visit)
		walkBlock(n.Body, visit)
	case *DoWhileStmt:
		walkBlock(n.Body, visit)
		walkExpr(n.Cond, visit)
	case *CForStmt:
		if n.Init != nil {
			Walk(n.Init, visit)
		}
		walkExpr(n.Cond, visit)
		walkExpr(n.Update, visit)
		walkBlock(n.Body, visit)
	case *ForInStmt:
		walkExpr(n.Iterable, visit)
		walkBlock(n.Body, visit)
	case *ParallelForStmt:
		walkExpr(n.Iterable, visit)
		walkBlock(n.Body, visit)
	case *SwitchStmt:
		walkExpr(n.Value, visit)
		for _, cs := range n.Cases {
			walkExpr(cs.Value, visit)
			for _, s := range cs.Body {
				Walk(s, visit)
			}
		}
	case *ExprStmt:
		walkExpr(n.Expr, visit)
	case *DeleteStmt:
		walkExpr(n.Expr, visit)
	case *TryCatchStmt:
		walkBlock(n.TryBlock, visit)
		walkBlock(n.CatchBlock, visit)
	case *ThrowStmt:
		walkExpr(n.Expr, visit)

	// ---- expressions ----
	case *BinaryExpr:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *UnaryExpr:
		walkExpr(n.Operand, visit)
	case *TernaryExpr:
		walkExpr(n.Cond, visit)
		walkExpr(n.TrueExpr, visit)
		walkExpr(n.FalseExpr, visit)
	case *AssignExpr:
		walkExpr(n.Target, visit)
		walkExpr(n.Value, visit)
	case *CallExpr:
		walkExpr(n.Callee, visit)
		for _, arg := range n.Args {
			walkExpr(arg, visit)
		}
	case *IndexExpr:
		walkExpr(n.Obj, visit)
		walkExpr(n.Index, visit)
	case *FieldAccessExpr:
		walkExpr(n.Obj, visit)
	case *CastExpr:
		walkExpr(n.Expr, visit)
	case *SizeofExpr:
		walkExpr(n.ExprOperand, visit)
	case *NewExpr:
		for _, arg := range n.Args {
			walkExpr(arg, visit)
		}
	case *ListLiteral:
		for _, el := range n.Elements {
			walkExpr(el, visit)
		}
	case *MapLiteral:
		for _, entry := range n.Entries {
			walkExpr(entry.Key, visit)
			walkExpr(entry.Value, visit)
		}
	case *TupleLiteral:
		for _, el := range n.Elements {
			walkExpr(el, visit)
		}
	case *BraceInitializer:
		for _, el := range n.Elements {
			walkExpr(el, visit)
		}
	case *FStringLiteral:
		for _, part := range n.Parts {
			if part.IsExpr() {
				walkExpr(part.Expr, visit)
			}
		}
	case *LambdaExpr:
		for _, p := range n.Params {
			Walk(p, visit)
		}
		walkBlock(n.Body, visit)
	}
}

// WalkProgram visits every declaration of the program.
func WalkProgram(prog *Program, visit func(Node)) {
	for _, decl := range prog.Declarations {
		Walk(decl, visit)
	}
}

func walkBlock(b *Block, visit func(Node)) {
	if b != nil {
		Walk(b, visit)
	}
}

func walkExpr(e Expr, visit func(Node)) {
	if e != nil {
		Walk(e, visit)
	}
}
