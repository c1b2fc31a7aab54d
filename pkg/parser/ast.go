package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ezql/pkg/token"
)

// Kind tags a syntax tree node. The set is closed: walkers switch over it
// instead of probing node types.
type Kind int

// Node kinds. Leaves are Terminal or Error; everything else is a grammar
// production and only has children.
const (
	KindTerminal Kind = iota
	KindError

	// Names
	KindUid
	KindUidList
	KindTableName
	KindTables
	KindFullColumnName

	// Statements
	KindInsertStatement
	KindReplaceStatement
	KindUpdateStatement
	KindDeleteStatement
	KindTruncateTable
	KindDropTable
	KindColumnCreateTable
	KindQueryCreateTable
	KindCopyCreateTable

	// Statement parts
	KindInsertStatementValue
	KindDeleteStatementValue
	KindDuplicateKeyUpdate
	KindUpdatedElement
	KindCreateDefinitions
	KindColumnDeclaration
	KindTableConstraint
	KindTableOptions

	// Queries
	KindSelectStatement
	KindQueryExpression
	KindQuerySpecification
	KindSelectElements
	KindSelectElement
	KindSelectInto
	KindFromClause
	KindTableSources
	KindTableSource
	KindTableSourceItem
	KindJoinPart
	KindWhereClause
	KindGroupByClause
	KindHavingClause
	KindOrderByClause
	KindLimitClause
	KindLockClause

	KindExpression
)

var kindNames = map[Kind]string{
	KindTerminal:             "Terminal",
	KindError:                "Error",
	KindUid:                  "Uid",
	KindUidList:              "UidList",
	KindTableName:            "TableName",
	KindTables:               "Tables",
	KindFullColumnName:       "FullColumnName",
	KindInsertStatement:      "InsertStatement",
	KindReplaceStatement:     "ReplaceStatement",
	KindUpdateStatement:      "UpdateStatement",
	KindDeleteStatement:      "DeleteStatement",
	KindTruncateTable:        "TruncateTable",
	KindDropTable:            "DropTable",
	KindColumnCreateTable:    "ColumnCreateTable",
	KindQueryCreateTable:     "QueryCreateTable",
	KindCopyCreateTable:      "CopyCreateTable",
	KindInsertStatementValue: "InsertStatementValue",
	KindDeleteStatementValue: "DeleteStatementValue",
	KindDuplicateKeyUpdate:   "DuplicateKeyUpdate",
	KindUpdatedElement:       "UpdatedElement",
	KindCreateDefinitions:    "CreateDefinitions",
	KindColumnDeclaration:    "ColumnDeclaration",
	KindTableConstraint:      "TableConstraint",
	KindTableOptions:         "TableOptions",
	KindSelectStatement:      "SelectStatement",
	KindQueryExpression:      "QueryExpression",
	KindQuerySpecification:   "QuerySpecification",
	KindSelectElements:       "SelectElements",
	KindSelectElement:        "SelectElement",
	KindSelectInto:           "SelectInto",
	KindFromClause:           "FromClause",
	KindTableSources:         "TableSources",
	KindTableSource:          "TableSource",
	KindTableSourceItem:      "TableSourceItem",
	KindJoinPart:             "JoinPart",
	KindWhereClause:          "WhereClause",
	KindGroupByClause:        "GroupByClause",
	KindHavingClause:         "HavingClause",
	KindOrderByClause:        "OrderByClause",
	KindLimitClause:          "LimitClause",
	KindLockClause:           "LockClause",
	KindExpression:           "Expression",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is a concrete syntax tree node. Terminal and Error nodes carry the
// token they were built from; production nodes carry ordered children.
type Node struct {
	Kind     Kind
	Token    Token
	Children []*Node
}

func newNode(kind Kind, children ...*Node) *Node {
	n := &Node{Kind: kind}
	for _, c := range children {
		n.add(c)
	}
	return n
}

func (n *Node) add(child *Node) {
	if child != nil {
		n.Children = append(n.Children, child)
	}
}

// IsLeaf reports whether n is a Terminal or Error node.
func (n *Node) IsLeaf() bool {
	return n.Kind == KindTerminal || n.Kind == KindError
}

// Child returns the first immediate child of the given kind, or nil.
func (n *Node) Child(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOf returns every immediate child of the given kind.
func (n *Node) ChildrenOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first node of the given kind in depth-first order,
// including n itself.
func (n *Node) Find(kind Kind) *Node {
	if n.Kind == kind {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(kind); found != nil {
			return found
		}
	}
	return nil
}

// Tokens returns the tokens under n in source order, error tokens included.
func (n *Node) Tokens() []Token {
	var toks []Token
	n.collectTokens(&toks)
	return toks
}

func (n *Node) collectTokens(toks *[]Token) {
	if n.IsLeaf() {
		if n.Token.Type != token.EOF {
			*toks = append(*toks, n.Token)
		}
		return
	}
	for _, c := range n.Children {
		c.collectTokens(toks)
	}
}

// Text renders the tokens under n back to text. Tokens are concatenated,
// with a single space only before a word token that follows a word or a
// closing parenthesis, so "T.A = B" renders as "T.A=B" while "X AS Y" and
// "COUNT(*) N" keep their spaces.
func (n *Node) Text() string {
	var sb strings.Builder
	var prev TokenType = token.ILLEGAL
	for i, tok := range n.Tokens() {
		if i > 0 && token.IsWord(tok.Type) && (token.IsWord(prev) || prev == token.RPAREN) {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Literal)
		prev = tok.Type
	}
	return sb.String()
}

// String renders the tree as an indented outline, one node per line.
func (n *Node) String() string {
	var sb strings.Builder
	n.dump(&sb, 0)
	return sb.String()
}

func (n *Node) dump(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if n.IsLeaf() {
		fmt.Fprintf(sb, "%s %q\n", n.Kind, n.Token.Literal)
		return
	}
	sb.WriteString(n.Kind.String())
	sb.WriteByte('\n')
	for _, c := range n.Children {
		c.dump(sb, depth+1)
	}
}
