// Package parser provides a recursive descent parser for the data-changing
// statements of a MySQL-like dialect. It produces a concrete syntax tree:
// every token of the statement survives as a Terminal node and every grammar
// production becomes a Kind-tagged Node.
//
// # Usage
//
//	tree, err := parser.Parse(parser.EntryInsert, "INSERT INTO t (a) SELECT a FROM s;")
//	if err != nil {
//	    // handle error, tree holds what was parsed so far
//	}
//
// Parsing stops at the end of the requested statement. Whatever follows it
// (a delimiter, a trailing statement) is ignored.
//
// # Grammar Overview
//
//	insert   → INSERT [modifiers] [INTO] table_name [PARTITION (uid_list)]
//	           ( ['(' uid_list ')'] insert_value | SET updated_elements )
//	           [ON DUPLICATE KEY UPDATE updated_elements]
//	replace  → REPLACE [modifiers] [INTO] table_name ... (as insert)
//	update   → UPDATE [modifiers] table_sources SET updated_elements
//	           [WHERE expr] [ORDER BY ...] [LIMIT ...]
//	delete   → DELETE [modifiers] delete_value
//	create   → CREATE [TEMPORARY] TABLE [IF NOT EXISTS] table_name
//	           ( LIKE table_name | create_definitions [options] [select] | [options] select )
//	drop     → DROP [TEMPORARY] TABLE [IF EXISTS] tables [RESTRICT|CASCADE]
//	truncate → TRUNCATE [TABLE] table_name
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ezql/pkg/token"
)

// Entry selects the statement production a parse starts from.
type Entry int

// Entry points, one per statement kind the extractor understands.
const (
	EntryInsert Entry = iota
	EntryReplace
	EntryUpdate
	EntryDelete
	EntryCreateTable
	EntryDropTable
	EntryTruncate
)

var entryNames = map[Entry]string{
	EntryInsert:      "insert",
	EntryReplace:     "replace",
	EntryUpdate:      "update",
	EntryDelete:      "delete",
	EntryCreateTable: "create table",
	EntryDropTable:   "drop table",
	EntryTruncate:    "truncate",
}

func (e Entry) String() string {
	if name, ok := entryNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Entry(%d)", int(e))
}

// Parser parses one statement into a syntax tree.
type Parser struct {
	tokens []Token
	pos    int
	token  Token // current token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{tokens: Tokenize(sql)}
	p.token = p.tokens[0]
	return p
}

// Parse parses sql starting from the given entry point. On failure it
// returns the first error together with the partial tree.
func Parse(entry Entry, sql string) (*Node, error) {
	p := NewParser(sql)
	n := p.ParseEntry(entry)
	if len(p.errors) > 0 {
		return n, p.errors[0]
	}
	return n, nil
}

// ParseEntry parses one statement from the given entry point.
func (p *Parser) ParseEntry(entry Entry) *Node {
	if p.check(token.EOF) || p.check(token.SEMICOLON) {
		p.addError(ErrEmptyStatement)
		return newNode(KindError)
	}
	switch entry {
	case EntryInsert:
		return p.parseInsert()
	case EntryReplace:
		return p.parseReplace()
	case EntryUpdate:
		return p.parseUpdate()
	case EntryDelete:
		return p.parseDelete()
	case EntryCreateTable:
		return p.parseCreateTable()
	case EntryDropTable:
		return p.parseDropTable()
	case EntryTruncate:
		return p.parseTruncate()
	}
	p.addError(fmt.Sprintf(ErrUnknownEntry, int(entry)))
	return newNode(KindError)
}

// Errors returns every error recorded during parsing.
func (p *Parser) Errors() []error {
	return p.errors
}

// ---------- Token Helpers ----------

// nextToken advances to the next token. EOF is sticky.
func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.token = p.tokens[p.pos]
}

// peekAt returns the token n positions ahead of the current one.
func (p *Parser) peekAt(n int) Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peekAt(1).Type == t
}

// checkWord reports whether the current token is the unreserved word w.
func (p *Parser) checkWord(w string) bool {
	return p.token.Type == token.IDENT && strings.EqualFold(p.token.Literal, w)
}

func (p *Parser) atEnd() bool {
	return p.check(token.EOF) || p.check(token.SEMICOLON)
}

// consume turns the current token into a Terminal node and advances.
func (p *Parser) consume() *Node {
	n := &Node{Kind: KindTerminal, Token: p.token}
	p.nextToken()
	return n
}

// accept consumes the current token into n if it has type t.
func (p *Parser) accept(n *Node, t TokenType) bool {
	if p.check(t) {
		n.add(p.consume())
		return true
	}
	return false
}

// acceptAny consumes the current token into n if it matches any of types.
func (p *Parser) acceptAny(n *Node, types ...TokenType) bool {
	for _, t := range types {
		if p.accept(n, t) {
			return true
		}
	}
	return false
}

// expect consumes the current token into n if it has type t. Otherwise it
// records an error and attaches an empty Error node in its place.
func (p *Parser) expect(n *Node, t TokenType) bool {
	if p.accept(n, t) {
		return true
	}
	p.errorf(n, ErrUnexpectedToken, p.describe(), t)
	return false
}

// errorf records an error at the current token and marks the spot in n.
func (p *Parser) errorf(n *Node, format string, args ...any) {
	p.addError(fmt.Sprintf(format, args...))
	n.add(&Node{Kind: KindError, Token: Token{Type: token.ILLEGAL, Pos: p.token.Pos}})
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

func (p *Parser) describe() string {
	if p.check(token.IDENT) || p.check(token.STRING) || p.check(token.NUMBER) {
		return fmt.Sprintf("%s %q", p.token.Type, p.token.Literal)
	}
	return p.token.Type.String()
}

// ---------- Keyword Helpers ----------

// isUid returns true if tok can name a table, column or alias.
func isUid(tok Token) bool {
	return tok.Type == token.IDENT || (token.IsKeyword(tok.Type) && !token.IsReserved(tok.Type))
}

// isJoinStart returns true if the current token opens a join part.
func (p *Parser) isJoinStart() bool {
	switch p.token.Type {
	case token.JOIN, token.INNER, token.CROSS, token.STRAIGHT_JOIN, token.NATURAL:
		return true
	case token.LEFT, token.RIGHT:
		return !p.checkPeek(token.LPAREN)
	}
	return false
}

// startsSelect reports whether the tokens from the current one open a
// (possibly parenthesized) SELECT.
func (p *Parser) startsSelect() bool {
	for i := 0; ; i++ {
		switch p.peekAt(i).Type {
		case token.LPAREN:
			continue
		case token.SELECT:
			return true
		default:
			return false
		}
	}
}

// skipBalanced consumes tokens into n until stop reports true at paren
// depth zero, an unmatched ')' is reached, or the statement ends.
func (p *Parser) skipBalanced(n *Node, stop func() bool) {
	depth := 0
	for !p.atEnd() {
		if depth == 0 && (stop() || p.check(token.RPAREN)) {
			return
		}
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		n.add(p.consume())
	}
	if depth > 0 {
		p.errorf(n, ErrUnbalancedParens)
	}
}
