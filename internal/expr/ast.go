package expr

import (
	"sort"
	"strconv"
	"strings"
)

// Node is an expression tree node.
type Node interface {
	Pos() Position
	String() string
}

// NumberLit is a numeric literal.
type NumberLit struct {
	At    Position
	Value float64
}

// Ident is a bare identifier: a column name or an allow-listed constant.
type Ident struct {
	At   Position
	Name string
}

// UnaryExpr is a prefix sign.
type UnaryExpr struct {
	At      Position
	Op      TokenType
	Operand Node
}

// BinaryExpr is an infix arithmetic operation.
type BinaryExpr struct {
	At          Position
	Op          TokenType
	Left, Right Node
}

// CallExpr is an allow-listed function call.
type CallExpr struct {
	At   Position
	Name string
	Args []Node
}

func (n *NumberLit) Pos() Position  { return n.At }
func (n *Ident) Pos() Position      { return n.At }
func (n *UnaryExpr) Pos() Position  { return n.At }
func (n *BinaryExpr) Pos() Position { return n.At }
func (n *CallExpr) Pos() Position   { return n.At }

func (n *NumberLit) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *Ident) String() string     { return n.Name }
func (n *UnaryExpr) String() string { return "(" + n.Op.String() + n.Operand.String() + ")" }
func (n *BinaryExpr) String() string {
	return "(" + n.Left.String() + " " + n.Op.String() + " " + n.Right.String() + ")"
}
func (n *CallExpr) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

// Walk visits n and its children depth-first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch v := n.(type) {
	case *UnaryExpr:
		Walk(v.Operand, fn)
	case *BinaryExpr:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *CallExpr:
		for _, a := range v.Args {
			Walk(a, fn)
		}
	}
}

// Identifiers returns the sorted, unique bare identifiers and called function names.
func Identifiers(n Node) (idents, calls []string) {
	seenIdent := map[string]bool{}
	seenCall := map[string]bool{}
	Walk(n, func(node Node) {
		switch v := node.(type) {
		case *Ident:
			if !seenIdent[v.Name] {
				seenIdent[v.Name] = true
				idents = append(idents, v.Name)
			}
		case *CallExpr:
			if !seenCall[v.Name] {
				seenCall[v.Name] = true
				calls = append(calls, v.Name)
			}
		}
	})
	sort.Strings(idents)
	sort.Strings(calls)
	return idents, calls
}
