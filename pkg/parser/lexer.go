package parser

import (
	"strings"

	"github.com/leapstack-labs/ezql/pkg/token"
)

// Lexer tokenizes MySQL-like statement text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// Comments collected during lexing
	Comments []*token.Comment
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Tokenize returns every token of input up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	var tok Token

	switch l.ch {
	case 0:
		if l.pos >= len(l.input) {
			return Token{Type: token.EOF, Pos: pos}
		}
		tok = l.newToken(token.ILLEGAL, string(l.ch))
	case '+':
		tok = l.newToken(token.PLUS, "+")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			if l.peekChar() == '>' {
				l.readChar()
				tok = Token{Type: token.OP, Literal: "->>", Pos: pos}
			} else {
				tok = Token{Type: token.OP, Literal: "->", Pos: pos}
			}
		} else {
			tok = l.newToken(token.MINUS, "-")
		}
	case '*':
		tok = l.newToken(token.STAR, "*")
	case '/':
		tok = l.newToken(token.SLASH, "/")
	case '%':
		tok = l.newToken(token.PERCENT, "%")
	case '=':
		tok = l.newToken(token.EQ, "=")
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			if l.peekChar() == '>' {
				l.readChar()
				tok = Token{Type: token.NSEQ, Literal: "<=>", Pos: pos}
			} else {
				tok = Token{Type: token.LE, Literal: "<=", Pos: pos}
			}
		case '>':
			l.readChar()
			tok = Token{Type: token.NE, Literal: "<>", Pos: pos}
		case '<':
			l.readChar()
			tok = Token{Type: token.OP, Literal: "<<", Pos: pos}
		default:
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: token.GE, Literal: ">=", Pos: pos}
		case '>':
			l.readChar()
			tok = Token{Type: token.OP, Literal: ">>", Pos: pos}
		default:
			tok = l.newToken(token.GT, ">")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(token.OP, "!")
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: token.DPIPE, Literal: "||", Pos: pos}
		} else {
			tok = l.newToken(token.OP, "|")
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = Token{Type: token.DAMP, Literal: "&&", Pos: pos}
		} else {
			tok = l.newToken(token.OP, "&")
		}
	case ':':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.ASSIGN, Literal: ":=", Pos: pos}
		} else {
			tok = l.newToken(token.OP, ":")
		}
	case '^', '~', '?', '$':
		tok = l.newToken(token.OP, string(l.ch))
	case '.':
		if isDigit(l.peekChar()) {
			return Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		tok = l.newToken(token.DOT, ".")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case ';':
		tok = l.newToken(token.SEMICOLON, ";")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '\'', '"':
		lit, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: token.ILLEGAL, Literal: lit, Pos: pos}
		}
		return Token{Type: token.STRING, Literal: lit, Pos: pos}
	case '`':
		return Token{Type: token.IDENT, Literal: l.readQuotedIdentifier(), Pos: pos}
	case '@':
		return Token{Type: token.VARIABLE, Literal: l.readVariable(), Pos: pos}
	default:
		switch {
		case isDigit(l.ch):
			return l.readNumberOrIdent(pos)
		case isIdentStart(l.ch):
			lit := l.readIdentifier()
			return Token{Type: token.LookupIdent(strings.ToUpper(lit)), Literal: lit, Pos: pos}
		default:
			tok = l.newToken(token.ILLEGAL, string(l.ch))
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, literal string) Token {
	return Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespaceAndComments skips whitespace and collects comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}

		switch {
		case l.ch == '-' && l.peekChar() == '-':
			l.collectLineComment()
		case l.ch == '#':
			l.collectLineComment()
		case l.ch == '/' && l.peekChar() == '*':
			l.collectBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) collectLineComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.LineComment,
		Text: l.input[startOffset:l.pos],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

func (l *Lexer) collectBlockComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	l.readChar() // skip '/'
	l.readChar() // skip '*'

	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // skip '*'
			l.readChar() // skip '/'
			break
		}
		l.readChar()
	}

	end := l.pos
	if end > len(l.input) {
		end = len(l.input)
	}
	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.BlockComment,
		Text: l.input[startOffset:end],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

// readString reads a quoted string literal and returns it with its quotes.
// Doubled quotes and backslash escapes stay inside the literal.
// The second result is false when the input ends before the closing quote.
func (l *Lexer) readString(quote byte) (string, bool) {
	start := l.pos
	l.readChar() // skip opening quote

	for l.pos < len(l.input) {
		switch {
		case l.ch == '\\':
			l.readChar()
			l.readChar()
		case l.ch == quote && l.peekChar() == quote:
			l.readChar()
			l.readChar()
		case l.ch == quote:
			l.readChar() // skip closing quote
			return l.input[start:l.pos], true
		default:
			l.readChar()
		}
	}
	return l.input[start:], false
}

// readQuotedIdentifier reads a backtick-quoted identifier without its quotes.
// Handles doubled backticks as escape: `col``name` -> col`name
func (l *Lexer) readQuotedIdentifier() string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.pos < len(l.input) {
		if l.ch == '`' {
			if l.peekChar() == '`' {
				result.WriteByte('`')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String()
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readVariable reads @name, @@name and @@scope.name variables.
func (l *Lexer) readVariable() string {
	start := l.pos
	l.readChar() // skip '@'
	if l.ch == '@' {
		l.readChar()
	}
	if l.ch == '\'' || l.ch == '"' {
		if _, ok := l.readString(l.ch); !ok {
			return l.input[start:]
		}
		return l.input[start:l.pos]
	}
	for isIdentPart(l.ch) || (l.ch == '.' && isIdentStart(l.peekChar())) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == '.' && start == l.pos {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[start:l.pos]
}

// readNumberOrIdent handles words starting with a digit. MySQL allows
// identifiers such as 1ST_QUARTER, and hex literals such as 0x1F.
func (l *Lexer) readNumberOrIdent(pos Position) Token {
	start := l.pos
	lit := l.readNumber()
	if isIdentPart(l.ch) {
		for isIdentPart(l.ch) {
			l.readChar()
		}
		word := l.input[start:l.pos]
		upper := strings.ToUpper(word)
		if strings.HasPrefix(upper, "0X") || strings.HasPrefix(upper, "0B") {
			return Token{Type: token.NUMBER, Literal: word, Pos: pos}
		}
		return Token{Type: token.IDENT, Literal: word, Pos: pos}
	}
	return Token{Type: token.NUMBER, Literal: lit, Pos: pos}
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
