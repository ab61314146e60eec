// Package expr implements the lexer, parser, AST and evaluator for the
// expressions embedded in form definitions (autofill values, bounds,
// initial values and condition comparands).
package expr

import "strings"

// TokenType identifies the kind of lexical token.
type TokenType int

const (
	// Literals and identifiers
	TokenEOF    TokenType = iota
	TokenIdent            // linkId or local constant name
	TokenString           // "quoted string"
	TokenNumber           // 12 or 1.5
	TokenBool             // true / false
	TokenNull             // null

	// Operators
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // * or ×
	TokenSlash // / or ÷
	TokenComma // ,

	// Grouping
	TokenLParen // (
	TokenRParen // )

	TokenIllegal
)

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of expression"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBool:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenComma:
		return ","
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return "illegal"
	}
}

// Token represents a single lexical token in an expression.
type Token struct {
	Type    TokenType
	Literal string // raw text, or the unquoted value for strings and quoted identifiers
	Pos     int    // byte offset in source
	Line    int    // 1-based line number
	Col     int    // 1-based column number
}

var keywords = map[string]TokenType{
	"true":  TokenBool,
	"false": TokenBool,
	"null":  TokenNull,
}

// LookupKeyword returns the keyword token type for an identifier, or
// TokenIdent if the identifier is not a keyword. Lookup is case-insensitive.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return TokenIdent
}

// BinaryOp reports the arithmetic operator a token stands for.
func (t TokenType) BinaryOp() (Op, bool) {
	switch t {
	case TokenPlus:
		return OpAdd, true
	case TokenMinus:
		return OpSub, true
	case TokenStar:
		return OpMul, true
	case TokenSlash:
		return OpDiv, true
	}
	return 0, false
}
