package parser

import "github.com/leapstack-labs/ezql/pkg/token"

// FROM clause grammar:
//
//	from_clause   → FROM table_sources
//	table_sources → table_source (',' table_source)*
//	table_source  → table_item join_part* | '(' table_item join_part* ')'
//	table_item    → table_name [PARTITION '(' uid_list ')'] [[AS] alias] [index_hint*]
//	              | '(' select ')' [AS] alias
//	              | '(' table_sources ')'
//	join_part     → [INNER|CROSS] JOIN table_item [ON expr | USING '(' uid_list ')']
//	              | STRAIGHT_JOIN table_item [ON expr]
//	              | (LEFT|RIGHT) [OUTER] JOIN table_item (ON expr | USING '(' uid_list ')')
//	              | NATURAL [(LEFT|RIGHT) [OUTER]] JOIN table_item
//	table_name    → uid ['.' uid]

// parseFromClause parses FROM table_sources.
func (p *Parser) parseFromClause() *Node {
	n := newNode(KindFromClause)
	p.expect(n, token.FROM)
	n.add(p.parseTableSources())
	return n
}

func (p *Parser) parseTableSources() *Node {
	n := newNode(KindTableSources)
	n.add(p.parseTableSource())
	for p.accept(n, token.COMMA) {
		n.add(p.parseTableSource())
	}
	return n
}

// parseTableSource parses one comma-separated FROM entry with its joins.
func (p *Parser) parseTableSource() *Node {
	n := newNode(KindTableSource)

	if p.check(token.LPAREN) && !p.startsSelect() && p.parenHoldsSingleSource() {
		n.add(p.consume())
		n.add(p.parseTableSourceItem())
		for p.isJoinStart() {
			n.add(p.parseJoinPart())
		}
		p.expect(n, token.RPAREN)
		return n
	}

	n.add(p.parseTableSourceItem())
	for p.isJoinStart() {
		n.add(p.parseJoinPart())
	}
	return n
}

// parenHoldsSingleSource distinguishes "(a JOIN b)" from "(a, b)". The
// first is a nested table source, the second a nested table list.
func (p *Parser) parenHoldsSingleSource() bool {
	depth := 0
	for i := 0; ; i++ {
		switch p.peekAt(i).Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				return true
			}
		case token.COMMA:
			if depth == 1 {
				return false
			}
		case token.EOF, token.SEMICOLON:
			return true
		}
	}
}

func (p *Parser) parseTableSourceItem() *Node {
	n := newNode(KindTableSourceItem)

	if p.check(token.LPAREN) {
		if p.startsSelect() {
			n.add(p.parseQueryExpression())
			p.parseAlias(n)
			return n
		}
		n.add(p.consume())
		n.add(p.parseTableSources())
		p.expect(n, token.RPAREN)
		return n
	}

	n.add(p.parseTableName())
	if p.check(token.PARTITION) && p.checkPeek(token.LPAREN) {
		n.add(p.consume())
		n.add(p.consume())
		n.add(p.parseUidList())
		p.expect(n, token.RPAREN)
	}
	p.parseAlias(n)
	for p.isIndexHint() {
		p.parseIndexHint(n)
	}
	return n
}

// parseAlias consumes an optional [AS] alias into n.
func (p *Parser) parseAlias(n *Node) {
	if p.accept(n, token.AS) {
		if isUid(p.token) || p.check(token.STRING) {
			n.add(p.parseUid())
			return
		}
		p.errorf(n, ErrUnexpectedToken, p.describe(), "alias")
		return
	}
	if isUid(p.token) && !p.isIndexHint() {
		n.add(p.parseUid())
	}
}

func (p *Parser) isIndexHint() bool {
	if !(p.checkWord("USE") || p.checkWord("FORCE") || p.check(token.IGNORE)) {
		return false
	}
	next := p.peekAt(1).Type
	return next == token.INDEX || next == token.KEY
}

// parseIndexHint consumes USE|IGNORE|FORCE INDEX|KEY [FOR ...] '(' ... ')'.
func (p *Parser) parseIndexHint(n *Node) {
	for !p.atEnd() && !p.check(token.LPAREN) {
		n.add(p.consume())
	}
	if p.accept(n, token.LPAREN) {
		p.skipBalanced(n, func() bool { return false })
		p.expect(n, token.RPAREN)
	}
}

func (p *Parser) parseJoinPart() *Node {
	n := newNode(KindJoinPart)

	switch p.token.Type {
	case token.NATURAL:
		n.add(p.consume())
		if p.acceptAny(n, token.LEFT, token.RIGHT) {
			p.accept(n, token.OUTER)
		}
		p.expect(n, token.JOIN)
		n.add(p.parseTableSourceItem())
		return n
	case token.STRAIGHT_JOIN:
		n.add(p.consume())
	case token.LEFT, token.RIGHT:
		n.add(p.consume())
		p.accept(n, token.OUTER)
		p.expect(n, token.JOIN)
	default:
		p.acceptAny(n, token.INNER, token.CROSS)
		p.expect(n, token.JOIN)
	}

	n.add(p.parseTableSourceItem())
	p.parseJoinCondition(n)
	return n
}

// parseJoinCondition parses ON expr or USING (uid_list) into n.
func (p *Parser) parseJoinCondition(n *Node) {
	switch {
	case p.accept(n, token.ON):
		n.add(p.parseExpression(stopClause))
	case p.accept(n, token.USING):
		p.expect(n, token.LPAREN)
		n.add(p.parseUidList())
		p.expect(n, token.RPAREN)
	}
}

// parseTableName parses uid ['.' uid].
func (p *Parser) parseTableName() *Node {
	n := newNode(KindTableName)
	n.add(p.parseUid())
	if p.check(token.DOT) && isUid(p.peekAt(1)) {
		n.add(p.consume())
		n.add(p.parseUid())
	}
	return n
}

// parseTables parses table_name (',' table_name)*.
func (p *Parser) parseTables() *Node {
	n := newNode(KindTables)
	n.add(p.parseTableName())
	for p.accept(n, token.COMMA) {
		n.add(p.parseTableName())
	}
	return n
}

func (p *Parser) parseUid() *Node {
	n := newNode(KindUid)
	if isUid(p.token) || p.check(token.STRING) {
		n.add(p.consume())
		return n
	}
	p.errorf(n, ErrUnexpectedToken, p.describe(), "identifier")
	return n
}

// parseUidList parses uid (',' uid)*.
func (p *Parser) parseUidList() *Node {
	n := newNode(KindUidList)
	n.add(p.parseUid())
	for p.accept(n, token.COMMA) {
		n.add(p.parseUid())
	}
	return n
}

// parseFullColumnName parses uid ('.' uid)*.
func (p *Parser) parseFullColumnName() *Node {
	n := newNode(KindFullColumnName)
	n.add(p.parseUid())
	for p.accept(n, token.DOT) {
		n.add(p.parseUid())
	}
	return n
}
