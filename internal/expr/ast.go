package expr

import (
	"strconv"
	"strings"
)

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeType() string
	Pos() int // byte offset in source
	String() string
}

// Op is a binary arithmetic operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
)

// String returns the operator symbol.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return "?"
	}
}

// ── Literals ────────────────────────────────────────────────────────────────

// NumberLit is a numeric constant. All numbers evaluate as float64.
type NumberLit struct {
	TokenPos int
	Value    float64
}

func (n *NumberLit) nodeType() string { return "NumberLit" }
func (n *NumberLit) Pos() int         { return n.TokenPos }
func (n *NumberLit) String() string   { return strconv.FormatFloat(n.Value, 'f', -1, 64) }

// StringLit is a quoted string constant.
type StringLit struct {
	TokenPos int
	Value    string
}

func (n *StringLit) nodeType() string { return "StringLit" }
func (n *StringLit) Pos() int         { return n.TokenPos }
func (n *StringLit) String() string   { return strconv.Quote(n.Value) }

// BoolLit is true or false.
type BoolLit struct {
	TokenPos int
	Value    bool
}

func (n *BoolLit) nodeType() string { return "BoolLit" }
func (n *BoolLit) Pos() int         { return n.TokenPos }
func (n *BoolLit) String() string   { return strconv.FormatBool(n.Value) }

// NullLit is the null constant.
type NullLit struct {
	TokenPos int
}

func (n *NullLit) nodeType() string { return "NullLit" }
func (n *NullLit) Pos() int         { return n.TokenPos }
func (n *NullLit) String() string   { return "null" }

// ── References and operators ────────────────────────────────────────────────

// Ident references a value in the evaluation context by name.
type Ident struct {
	TokenPos int
	Name     string
}

func (n *Ident) nodeType() string { return "Ident" }
func (n *Ident) Pos() int         { return n.TokenPos }
func (n *Ident) String() string {
	if n.Name == "" || LookupKeyword(n.Name) != TokenIdent ||
		strings.HasSuffix(n.Name, ".") || strings.Contains(n.Name, "..") {
		return "`" + n.Name + "`"
	}
	for i, r := range n.Name {
		if (i == 0 && !isIdentStart(r)) || (i > 0 && !isIdentPart(r) && r != '.') {
			return "`" + n.Name + "`"
		}
	}
	return n.Name
}

// UnaryExpr is a negation: -operand.
type UnaryExpr struct {
	TokenPos int
	Operand  Node
}

func (n *UnaryExpr) nodeType() string { return "UnaryExpr" }
func (n *UnaryExpr) Pos() int         { return n.TokenPos }
func (n *UnaryExpr) String() string   { return "-" + n.Operand.String() }

// BinaryExpr is "left op right".
type BinaryExpr struct {
	TokenPos int
	Op       Op
	Left     Node
	Right    Node
}

func (n *BinaryExpr) nodeType() string { return "BinaryExpr" }
func (n *BinaryExpr) Pos() int         { return n.TokenPos }
func (n *BinaryExpr) String() string {
	return "(" + n.Left.String() + " " + n.Op.String() + " " + n.Right.String() + ")"
}

// CallExpr is a call to a registered function: name(arg, ...).
type CallExpr struct {
	TokenPos int
	Name     string
	Args     []Node
}

func (n *CallExpr) nodeType() string { return "CallExpr" }
func (n *CallExpr) Pos() int         { return n.TokenPos }
func (n *CallExpr) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

// Walk calls fn for node and every node beneath it, parents first.
// Returning false from fn skips the node's children.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *UnaryExpr:
		Walk(n.Operand, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *CallExpr:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}
