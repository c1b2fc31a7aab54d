package parser

import "github.com/leapstack-labs/ezql/pkg/token"

// Statement grammar:
//
//	insert_value    → select_stmt | (VALUES|VALUE) row (',' row)*
//	row             → ['ROW'] '(' [expr (',' expr)*] ')'
//	updated_element → full_column_name '=' expr
//	delete_value    → FROM delete_target [[AS] alias] [PARTITION ...] [where] [order_by] [limit]
//	                | FROM delete_target (',' delete_target)* USING table_sources [where]
//	                | delete_target (',' delete_target)* FROM table_sources [where]
//	delete_target   → table_name ['.' '*']
//	create_defs     → '(' create_def (',' create_def)* ')'
//	create_def      → column_decl | table_constraint

func (p *Parser) parseInsert() *Node {
	n := newNode(KindInsertStatement)
	p.expect(n, token.INSERT)
	p.acceptAny(n, token.LOW_PRIORITY, token.DELAYED, token.HIGH_PRIORITY)
	p.accept(n, token.IGNORE)
	p.accept(n, token.INTO)
	n.add(p.parseTableName())
	p.parseInsertTail(n)
	return n
}

func (p *Parser) parseReplace() *Node {
	n := newNode(KindReplaceStatement)
	p.expect(n, token.REPLACE)
	p.acceptAny(n, token.LOW_PRIORITY, token.DELAYED)
	p.accept(n, token.INTO)
	n.add(p.parseTableName())
	p.parseInsertTail(n)
	return n
}

// parseInsertTail parses everything after the target of INSERT and REPLACE.
// The column list stays an immediate child of the statement.
func (p *Parser) parseInsertTail(n *Node) {
	// Partition names are added as bare uids so that the only UidList
	// directly under the statement is the inserted column list.
	if p.check(token.PARTITION) {
		n.add(p.consume())
		p.expect(n, token.LPAREN)
		if !p.check(token.RPAREN) {
			n.add(p.parseUid())
			for p.accept(n, token.COMMA) {
				n.add(p.parseUid())
			}
		}
		p.expect(n, token.RPAREN)
	}

	if p.accept(n, token.SET) {
		p.parseUpdatedElements(n)
	} else {
		if p.check(token.LPAREN) && !p.startsSelect() {
			n.add(p.consume())
			if !p.check(token.RPAREN) {
				n.add(p.parseUidList())
			}
			p.expect(n, token.RPAREN)
		}
		n.add(p.parseInsertStatementValue())
	}

	// MySQL 8 row alias: ... AS new [(a, b)]
	if p.accept(n, token.AS) {
		n.add(p.parseUid())
		if p.accept(n, token.LPAREN) {
			n.add(p.parseUidList())
			p.expect(n, token.RPAREN)
		}
	}
	if p.check(token.ON) {
		n.add(p.parseDuplicateKeyUpdate())
	}
}

func (p *Parser) parseInsertStatementValue() *Node {
	n := newNode(KindInsertStatementValue)
	switch {
	case p.acceptAny(n, token.VALUES, token.VALUE):
		p.parseValueRow(n)
		for p.accept(n, token.COMMA) {
			p.parseValueRow(n)
		}
	case p.startsSelect():
		n.add(p.parseSelectStatement())
	default:
		p.errorf(n, ErrUnexpectedToken, p.describe(), "VALUES or SELECT")
	}
	return n
}

func (p *Parser) parseValueRow(n *Node) {
	if p.checkWord("ROW") {
		n.add(p.consume())
	}
	p.expect(n, token.LPAREN)
	if !p.check(token.RPAREN) {
		p.parseExpressionList(n, nil)
	}
	p.expect(n, token.RPAREN)
}

func (p *Parser) parseDuplicateKeyUpdate() *Node {
	n := newNode(KindDuplicateKeyUpdate)
	p.expect(n, token.ON)
	p.expect(n, token.DUPLICATE)
	p.expect(n, token.KEY)
	p.expect(n, token.UPDATE)
	p.parseUpdatedElements(n)
	return n
}

func (p *Parser) parseUpdatedElements(n *Node) {
	n.add(p.parseUpdatedElement())
	for p.accept(n, token.COMMA) {
		n.add(p.parseUpdatedElement())
	}
}

func (p *Parser) parseUpdatedElement() *Node {
	n := newNode(KindUpdatedElement)
	n.add(p.parseFullColumnName())
	p.expect(n, token.EQ)
	n.add(p.parseExpression(stopClause))
	return n
}

func (p *Parser) parseUpdate() *Node {
	n := newNode(KindUpdateStatement)
	p.expect(n, token.UPDATE)
	p.accept(n, token.LOW_PRIORITY)
	p.accept(n, token.IGNORE)
	n.add(p.parseTableSources())
	if !p.expect(n, token.SET) {
		return n
	}
	p.parseUpdatedElements(n)
	p.parseTrailingClauses(n)
	return n
}

// parseTrailingClauses parses [WHERE expr] [ORDER BY ...] [LIMIT ...].
func (p *Parser) parseTrailingClauses(n *Node) {
	if p.check(token.WHERE) {
		n.add(p.parseWhereClause())
	}
	if p.check(token.ORDER) {
		n.add(p.parseOrderByClause())
	}
	if p.check(token.LIMIT) {
		n.add(p.parseLimitClause())
	}
}

func (p *Parser) parseDelete() *Node {
	n := newNode(KindDeleteStatement)
	p.expect(n, token.DELETE)
	p.accept(n, token.LOW_PRIORITY)
	p.accept(n, token.QUICK)
	p.accept(n, token.IGNORE)
	n.add(p.parseDeleteStatementValue())
	return n
}

func (p *Parser) parseDeleteStatementValue() *Node {
	n := newNode(KindDeleteStatementValue)

	if !p.accept(n, token.FROM) {
		// DELETE t1, t2 FROM table_sources
		p.parseDeleteTargets(n)
		if p.expect(n, token.FROM) {
			n.add(p.parseTableSources())
		}
		p.parseTrailingClauses(n)
		return n
	}

	p.parseDeleteTargets(n)
	if p.accept(n, token.USING) {
		n.add(p.parseTableSources())
		p.parseTrailingClauses(n)
		return n
	}

	p.parseAlias(n)
	if p.check(token.PARTITION) {
		n.add(p.consume())
		p.expect(n, token.LPAREN)
		n.add(p.parseUidList())
		p.expect(n, token.RPAREN)
	}
	p.parseTrailingClauses(n)
	return n
}

// parseDeleteTargets parses delete_target (',' delete_target)*.
func (p *Parser) parseDeleteTargets(n *Node) {
	p.parseDeleteTarget(n)
	for p.accept(n, token.COMMA) {
		p.parseDeleteTarget(n)
	}
}

func (p *Parser) parseDeleteTarget(n *Node) {
	n.add(p.parseTableName())
	if p.check(token.DOT) && p.checkPeek(token.STAR) {
		n.add(p.consume())
		n.add(p.consume())
	}
}

func (p *Parser) parseTruncate() *Node {
	n := newNode(KindTruncateTable)
	p.expect(n, token.TRUNCATE)
	p.accept(n, token.TABLE)
	n.add(p.parseTableName())
	return n
}

func (p *Parser) parseDropTable() *Node {
	n := newNode(KindDropTable)
	p.expect(n, token.DROP)
	p.accept(n, token.TEMPORARY)
	p.expect(n, token.TABLE)
	if p.accept(n, token.IF) {
		p.expect(n, token.EXISTS)
	}
	n.add(p.parseTables())
	p.acceptAny(n, token.RESTRICT, token.CASCADE)
	return n
}

// parseCreateTable parses the three CREATE TABLE forms. The node kind is
// settled once the tokens after the table name are known.
func (p *Parser) parseCreateTable() *Node {
	n := newNode(KindColumnCreateTable)
	p.expect(n, token.CREATE)
	p.accept(n, token.TEMPORARY)
	p.expect(n, token.TABLE)
	if p.accept(n, token.IF) {
		p.expect(n, token.NOT)
		p.expect(n, token.EXISTS)
	}
	n.add(p.parseTableName())

	switch {
	case p.check(token.LIKE):
		n.Kind = KindCopyCreateTable
		n.add(p.consume())
		n.add(p.parseTableName())
		return n
	case p.check(token.LPAREN) && p.checkPeek(token.LIKE):
		n.Kind = KindCopyCreateTable
		n.add(p.consume())
		n.add(p.consume())
		n.add(p.parseTableName())
		p.expect(n, token.RPAREN)
		return n
	}

	hasDefinitions := false
	if p.check(token.LPAREN) && !p.startsSelect() {
		n.add(p.parseCreateDefinitions())
		hasDefinitions = true
	}

	opts := newNode(KindTableOptions)
	p.skipBalanced(opts, func() bool {
		return p.check(token.AS) || p.check(token.SELECT) || p.check(token.IGNORE) ||
			p.check(token.REPLACE) || (p.check(token.LPAREN) && p.startsSelect())
	})
	if len(opts.Children) > 0 {
		n.add(opts)
	}

	p.acceptAny(n, token.IGNORE, token.REPLACE)
	p.accept(n, token.AS)
	if p.startsSelect() {
		n.Kind = KindQueryCreateTable
		n.add(p.parseSelectStatement())
		return n
	}
	if !hasDefinitions {
		p.errorf(n, ErrUnexpectedToken, p.describe(), "column definitions or SELECT")
	}
	return n
}

func (p *Parser) parseCreateDefinitions() *Node {
	n := newNode(KindCreateDefinitions)
	p.expect(n, token.LPAREN)
	n.add(p.parseCreateDefinition())
	for p.accept(n, token.COMMA) {
		n.add(p.parseCreateDefinition())
	}
	p.expect(n, token.RPAREN)
	return n
}

func (p *Parser) parseCreateDefinition() *Node {
	atComma := func() bool { return p.check(token.COMMA) }

	switch p.token.Type {
	case token.PRIMARY, token.KEY, token.INDEX, token.UNIQUE, token.CONSTRAINT,
		token.FOREIGN, token.FULLTEXT, token.SPATIAL, token.CHECK:
		n := newNode(KindTableConstraint)
		p.skipBalanced(n, atComma)
		return n
	}

	n := newNode(KindColumnDeclaration)
	if token.IsKeyword(p.token.Type) {
		// The position is unambiguous, so reserved words name columns too.
		n.add(newNode(KindUid, p.consume()))
	} else {
		n.add(p.parseUid())
	}
	p.skipBalanced(n, atComma)
	return n
}
