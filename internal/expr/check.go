package expr

import (
	"errors"
	"fmt"
	"strings"
)

// CheckFunctions verifies every function called in node exists in reg with
// a valid argument count. The returned *ParseError carries the byte offset
// of the offending call; Check fills in its line and column.
func CheckFunctions(node Node, reg Registry) error {
	var perr *ParseError
	Walk(node, func(n Node) bool {
		if perr != nil {
			return false
		}
		call, ok := n.(*CallExpr)
		if !ok {
			return true
		}
		fn, ok := reg[call.Name]
		if !ok {
			perr = &ParseError{
				Message:    fmt.Sprintf("unknown function '%s'", call.Name),
				Pos:        call.Pos(),
				Suggestion: SuggestFrom(call.Name, reg.Names(), 3),
			}
			return false
		}
		if err := fn.checkArity(len(call.Args)); err != nil {
			perr = &ParseError{
				Message: fmt.Sprintf("%s: %v", call.Name, err),
				Pos:     call.Pos(),
			}
			return false
		}
		return true
	})
	if perr != nil {
		return perr
	}
	return nil
}

// Check parses text and runs CheckFunctions over the result. Problems are
// reported as *ParseError so they block saving the rule that contains them.
func Check(text string, reg Registry) (Node, error) {
	node, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := CheckFunctions(node, reg); err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Line, perr.Col = position(text, perr.Pos)
		}
		return nil, err
	}
	return node, nil
}

// position converts a byte offset into a 1-based line and column.
func position(text string, pos int) (line, col int) {
	if pos > len(text) {
		pos = len(text)
	}
	before := text[:pos]
	line = strings.Count(before, "\n") + 1
	col = len([]rune(before[strings.LastIndex(before, "\n")+1:])) + 1
	return line, col
}
