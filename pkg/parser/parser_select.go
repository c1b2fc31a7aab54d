package parser

import (
	"strings"

	"github.com/leapstack-labs/ezql/pkg/token"
)

// SELECT grammar:
//
//	select_stmt     → query_term (UNION [ALL|DISTINCT] query_term)* [order_by] [limit]
//	query_term      → query_spec | query_expr
//	query_expr      → '(' select_stmt ')'
//	query_spec      → SELECT [spec]* select_elements [into] [from_clause]
//	                  [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	                  [WINDOW ...] [order_by] [limit] [into] [lock]
//	select_elements → ('*' | select_element) (',' select_element)*
//	select_element  → expr [[AS] alias]

func (p *Parser) parseSelectStatement() *Node {
	n := newNode(KindSelectStatement)
	n.add(p.parseQueryTerm())
	for p.accept(n, token.UNION) {
		p.acceptAny(n, token.ALL, token.DISTINCT)
		n.add(p.parseQueryTerm())
	}
	if p.check(token.ORDER) {
		n.add(p.parseOrderByClause())
	}
	if p.check(token.LIMIT) {
		n.add(p.parseLimitClause())
	}
	return n
}

func (p *Parser) parseQueryTerm() *Node {
	switch {
	case p.check(token.LPAREN):
		return p.parseQueryExpression()
	case p.check(token.SELECT):
		return p.parseQuerySpecification()
	}
	n := newNode(KindError)
	p.errorf(n, ErrUnexpectedToken, p.describe(), "SELECT")
	return n
}

// parseQueryExpression parses '(' select_stmt ')'. A plain inner query is
// attached directly, so "(SELECT ...)" holds its QuerySpecification.
func (p *Parser) parseQueryExpression() *Node {
	n := newNode(KindQueryExpression)
	p.expect(n, token.LPAREN)
	inner := p.parseSelectStatement()
	if len(inner.Children) == 1 {
		n.add(inner.Children[0])
	} else {
		n.add(inner)
	}
	p.expect(n, token.RPAREN)
	return n
}

func (p *Parser) parseQuerySpecification() *Node {
	n := newNode(KindQuerySpecification)
	p.expect(n, token.SELECT)
	for p.isSelectSpec() {
		n.add(p.consume())
	}
	n.add(p.parseSelectElements())

	if p.check(token.INTO) {
		n.add(p.parseSelectInto())
	}
	if p.check(token.FROM) {
		n.add(p.parseFromClause())
	}
	if p.check(token.WHERE) {
		n.add(p.parseWhereClause())
	}
	if p.check(token.GROUP) {
		n.add(p.parseGroupByClause())
	}
	if p.check(token.HAVING) {
		n.add(p.parseHavingClause())
	}
	if p.check(token.WINDOW) {
		w := newNode(KindExpression, p.consume())
		p.skipBalanced(w, func() bool {
			return p.check(token.ORDER) || p.check(token.LIMIT) || stopLock(p)
		})
		n.add(w)
	}
	if p.check(token.ORDER) {
		n.add(p.parseOrderByClause())
	}
	if p.check(token.LIMIT) {
		n.add(p.parseLimitClause())
	}
	if p.check(token.INTO) {
		n.add(p.parseSelectInto())
	}
	if stopLock(p) {
		n.add(p.parseLockClause())
	}
	return n
}

func (p *Parser) isSelectSpec() bool {
	switch p.token.Type {
	case token.ALL, token.DISTINCT, token.DISTINCTROW, token.HIGH_PRIORITY, token.STRAIGHT_JOIN:
		return true
	case token.IDENT:
		return strings.HasPrefix(strings.ToUpper(p.token.Literal), "SQL_")
	}
	return false
}

func (p *Parser) parseSelectElements() *Node {
	n := newNode(KindSelectElements)
	n.add(p.parseSelectElement())
	for p.accept(n, token.COMMA) {
		n.add(p.parseSelectElement())
	}
	return n
}

func (p *Parser) parseSelectElement() *Node {
	n := newNode(KindSelectElement)
	n.add(p.parseExpression(stopSelectElement))
	if p.accept(n, token.AS) {
		n.add(p.parseUid())
	}
	return n
}

// parseSelectInto parses INTO @var, ... and INTO OUTFILE|DUMPFILE '...'.
func (p *Parser) parseSelectInto() *Node {
	n := newNode(KindSelectInto)
	p.expect(n, token.INTO)
	p.skipBalanced(n, func() bool { return stopClause(p) })
	return n
}

func (p *Parser) parseWhereClause() *Node {
	n := newNode(KindWhereClause)
	p.expect(n, token.WHERE)
	n.add(p.parseExpression(stopClause))
	return n
}

func (p *Parser) parseGroupByClause() *Node {
	n := newNode(KindGroupByClause)
	p.expect(n, token.GROUP)
	p.expect(n, token.BY)
	p.parseExpressionList(n, stopClause)
	return n
}

func (p *Parser) parseHavingClause() *Node {
	n := newNode(KindHavingClause)
	p.expect(n, token.HAVING)
	n.add(p.parseExpression(stopClause))
	return n
}

func (p *Parser) parseOrderByClause() *Node {
	n := newNode(KindOrderByClause)
	p.expect(n, token.ORDER)
	p.expect(n, token.BY)
	p.parseExpressionList(n, stopClause)
	return n
}

// parseLimitClause parses LIMIT n, LIMIT offset, n and LIMIT n OFFSET m.
func (p *Parser) parseLimitClause() *Node {
	n := newNode(KindLimitClause)
	p.expect(n, token.LIMIT)
	p.parseExpressionList(n, stopClause)
	return n
}

func stopLock(p *Parser) bool {
	return p.check(token.FOR) || p.check(token.LOCK)
}

// parseLockClause parses FOR UPDATE [...] or LOCK IN SHARE MODE.
func (p *Parser) parseLockClause() *Node {
	n := newNode(KindLockClause)
	p.skipBalanced(n, func() bool {
		return p.check(token.UNION) || p.check(token.ON)
	})
	return n
}
