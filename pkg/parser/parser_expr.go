package parser

import (
	"fmt"

	"github.com/leapstack-labs/ezql/pkg/token"
)

// Expressions are not parsed into operator trees. An Expression node keeps
// its tokens flat and only gives structure to parenthesized groups, so that
// subqueries nested anywhere in an expression become QueryExpression nodes
// the walkers can reach.
//
//	expr  → (token | group)+            up to ',' ')' or a stop token
//	group → '(' select ')' | '(' [expr (',' expr)*] ')'

// stopClause reports whether the current token begins a clause that ends an
// expression written at clause level.
func stopClause(p *Parser) bool {
	switch p.token.Type {
	case token.FROM, token.WHERE, token.GROUP, token.HAVING, token.ORDER,
		token.LIMIT, token.UNION, token.INTO, token.ON, token.USING,
		token.SET, token.FOR, token.LOCK, token.WINDOW:
		return true
	}
	return p.isJoinStart()
}

// stopSelectElement is stopClause plus the AS before a select alias.
func stopSelectElement(p *Parser) bool {
	return p.check(token.AS) || stopClause(p)
}

// parseExpression consumes one expression. A nil stop means the expression
// lives inside parentheses, where only ',' and ')' end it.
func (p *Parser) parseExpression(stop func(*Parser) bool) *Node {
	n := newNode(KindExpression)
	for !p.atEnd() && !p.check(token.COMMA) && !p.check(token.RPAREN) {
		if stop != nil && stop(p) {
			break
		}
		switch p.token.Type {
		case token.LPAREN:
			p.parseGroup(n)
		case token.ILLEGAL:
			if len(p.token.Literal) > 0 && (p.token.Literal[0] == '\'' || p.token.Literal[0] == '"') {
				p.addError(ErrUnterminatedString)
			} else {
				p.addError(fmt.Sprintf(ErrUnexpectedInput, p.token.Type, p.token.Literal))
			}
			n.add(&Node{Kind: KindError, Token: p.token})
			p.nextToken()
		default:
			n.add(p.consume())
		}
	}
	if len(n.Children) == 0 {
		p.errorf(n, ErrUnexpectedToken, p.describe(), "expression")
	}
	return n
}

// parseExpressionList parses expr (',' expr)* into n.
func (p *Parser) parseExpressionList(n *Node, stop func(*Parser) bool) {
	n.add(p.parseExpression(stop))
	for p.accept(n, token.COMMA) {
		n.add(p.parseExpression(stop))
	}
}

// parseGroup parses a parenthesized group into n.
func (p *Parser) parseGroup(n *Node) {
	if p.startsSelect() {
		n.add(p.parseQueryExpression())
		return
	}
	n.add(p.consume()) // '('
	if !p.check(token.RPAREN) {
		p.parseExpressionList(n, nil)
	}
	p.expect(n, token.RPAREN)
}
