package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes expression source text.
type Lexer struct {
	input  string
	pos    int // current byte position
	line   int // 1-based
	col    int // 1-based
	tokens []Token
	errors []*ParseError
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

// Tokenize scans the entire input and returns all tokens plus any errors.
func (l *Lexer) Tokenize() ([]Token, []*ParseError) {
	for {
		tok := l.next()
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return l.tokens, l.errors
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) peekAt(offset int) rune {
	p := l.pos + offset
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

// advance moves forward by one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r := l.peek()
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			l.advance()
		} else {
			break
		}
	}
}

func (l *Lexer) next() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos, Line: l.line, Col: l.col}
	}

	startPos, startLine, startCol := l.pos, l.line, l.col
	r := l.peek()

	if r == '"' || r == '\'' {
		return l.scanString(startPos, startLine, startCol)
	}
	if r == '`' {
		return l.scanQuotedIdent(startPos, startLine, startCol)
	}
	if isDigit(r) || (r == '.' && isDigit(l.peekAt(1))) {
		return l.scanNumber(startPos, startLine, startCol)
	}
	if isIdentStart(r) {
		return l.scanIdent(startPos, startLine, startCol)
	}

	l.advance()
	tok := Token{Literal: string(r), Pos: startPos, Line: startLine, Col: startCol}
	switch r {
	case '+':
		tok.Type = TokenPlus
	case '-':
		tok.Type = TokenMinus
	case '*', '×':
		tok.Type = TokenStar
	case '/', '÷':
		tok.Type = TokenSlash
	case ',':
		tok.Type = TokenComma
	case '(':
		tok.Type = TokenLParen
	case ')':
		tok.Type = TokenRParen
	default:
		tok.Type = TokenIllegal
		l.errors = append(l.errors, &ParseError{
			Message: fmt.Sprintf("unexpected character %q", r),
			Line:    startLine,
			Col:     startCol,
			Pos:     startPos,
		})
	}
	return tok
}

// scanString reads a quoted string literal.
func (l *Lexer) scanString(startPos, startLine, startCol int) Token {
	quote := l.advance()
	var b strings.Builder
	for l.pos < len(l.input) {
		r := l.advance()
		if r == quote {
			return Token{Type: TokenString, Literal: b.String(), Pos: startPos, Line: startLine, Col: startCol}
		}
		if r == '\\' {
			next := l.advance()
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteRune(next)
			default:
				b.WriteByte('\\')
				b.WriteRune(next)
			}
			continue
		}
		b.WriteRune(r)
	}
	l.errors = append(l.errors, &ParseError{Message: "unterminated string", Line: startLine, Col: startCol, Pos: startPos})
	return Token{Type: TokenIllegal, Literal: b.String(), Pos: startPos, Line: startLine, Col: startCol}
}

// scanQuotedIdent reads a `backquoted` identifier, which may contain any
// character except a backquote. Used for linkIds that are not plain words.
func (l *Lexer) scanQuotedIdent(startPos, startLine, startCol int) Token {
	l.advance()
	start := l.pos
	for l.pos < len(l.input) {
		if l.peek() == '`' {
			lit := l.input[start:l.pos]
			l.advance()
			if lit == "" {
				l.errors = append(l.errors, &ParseError{Message: "empty quoted identifier", Line: startLine, Col: startCol, Pos: startPos})
				return Token{Type: TokenIllegal, Pos: startPos, Line: startLine, Col: startCol}
			}
			return Token{Type: TokenIdent, Literal: lit, Pos: startPos, Line: startLine, Col: startCol}
		}
		l.advance()
	}
	l.errors = append(l.errors, &ParseError{Message: "unterminated quoted identifier", Line: startLine, Col: startCol, Pos: startPos})
	return Token{Type: TokenIllegal, Literal: l.input[start:], Pos: startPos, Line: startLine, Col: startCol}
}

// scanNumber reads an integer or decimal literal.
func (l *Lexer) scanNumber(startPos, startLine, startCol int) Token {
	start := l.pos
	seenDot := false
	for l.pos < len(l.input) {
		r := l.peek()
		if isDigit(r) {
			l.advance()
		} else if r == '.' && !seenDot && isDigit(l.peekAt(1)) {
			seenDot = true
			l.advance()
		} else {
			break
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: startPos, Line: startLine, Col: startCol}
}

// scanIdent reads an identifier or keyword. Dots are allowed after the
// first character so that dotted linkIds ("income.total") read as one name.
func (l *Lexer) scanIdent(startPos, startLine, startCol int) Token {
	start := l.pos
	for l.pos < len(l.input) {
		r := l.peek()
		if isIdentPart(r) || (r == '.' && isIdentPart(l.peekAt(1))) {
			l.advance()
		} else {
			break
		}
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupKeyword(lit), Literal: lit, Pos: startPos, Line: startLine, Col: startCol}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
