package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser implements a recursive descent parser for expressions.
type Parser struct {
	tokens []Token
	pos    int
	errors []*ParseError
}

// NewParser creates a parser from a token slice (typically from Lexer.Tokenize).
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses text into an AST. The first lexical or syntax
// error is returned as a *ParseError.
func Parse(text string) (Node, error) {
	tokens, lexErrs := NewLexer(text).Tokenize()
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	node, parseErrs := NewParser(tokens).Parse()
	if len(parseErrs) > 0 {
		return nil, parseErrs[0]
	}
	return node, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level expressions known to be valid.
func MustParse(text string) Node {
	n, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("expr.MustParse(%q): %v", text, err))
	}
	return n
}

// Parse parses the token stream into a single expression.
func (p *Parser) Parse() (Node, []*ParseError) {
	if p.atEnd() {
		p.addError(p.peek(), "empty expression")
		return nil, p.errors
	}
	node := p.parseAdditive()
	if node != nil && !p.atEnd() {
		tok := p.peek()
		p.addError(tok, fmt.Sprintf("unexpected %s after end of expression", describe(tok)))
	}
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return node, nil
}

// ── Token navigation ────────────────────────────────────────────────────────

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t TokenType) (Token, bool) {
	if p.check(t) {
		return p.advance(), true
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("expected %s, got %s", t, describe(tok)))
	return tok, false
}

func (p *Parser) addError(tok Token, msg string) {
	p.errors = append(p.errors, newParseError(tok, msg))
}

// ── Grammar ─────────────────────────────────────────────────────────────────

func (p *Parser) parseAdditive() Node {
	left := p.parseTerm()
	if left == nil {
		return nil
	}
	for p.check(TokenPlus) || p.check(TokenMinus) {
		opTok := p.advance()
		op, _ := opTok.Type.BinaryOp()
		right := p.parseTerm()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{TokenPos: opTok.Pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseTerm() Node {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for p.check(TokenStar) || p.check(TokenSlash) {
		opTok := p.advance()
		op, _ := opTok.Type.BinaryOp()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{TokenPos: opTok.Pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Node {
	if p.check(TokenMinus) {
		tok := p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{TokenPos: tok.Pos, Operand: operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Node {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(tok, fmt.Sprintf("invalid number %q", tok.Literal))
			return nil
		}
		return &NumberLit{TokenPos: tok.Pos, Value: v}
	case TokenString:
		p.advance()
		return &StringLit{TokenPos: tok.Pos, Value: tok.Literal}
	case TokenBool:
		p.advance()
		b, _ := strconv.ParseBool(strings.ToLower(tok.Literal))
		return &BoolLit{TokenPos: tok.Pos, Value: b}
	case TokenNull:
		p.advance()
		return &NullLit{TokenPos: tok.Pos}
	case TokenIdent:
		p.advance()
		if p.check(TokenLParen) {
			return p.parseCall(tok)
		}
		return &Ident{TokenPos: tok.Pos, Name: tok.Literal}
	case TokenLParen:
		p.advance()
		inner := p.parseAdditive()
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(TokenRParen); !ok {
			return nil
		}
		return inner
	default:
		p.addError(tok, fmt.Sprintf("expected a value, got %s", describe(tok)))
		return nil
	}
}

// parseCall parses the argument list following a function name.
func (p *Parser) parseCall(name Token) Node {
	p.advance() // consume '('
	call := &CallExpr{TokenPos: name.Pos, Name: name.Literal}
	if p.check(TokenRParen) {
		p.advance()
		return call
	}
	for {
		arg := p.parseAdditive()
		if arg == nil {
			return nil
		}
		call.Args = append(call.Args, arg)
		if p.check(TokenComma) {
			p.advance()
			continue
		}
		if _, ok := p.expect(TokenRParen); !ok {
			return nil
		}
		return call
	}
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return tok.Type.String()
	case TokenIdent, TokenNumber:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	default:
		return fmt.Sprintf("%q", tok.Literal)
	}
}
