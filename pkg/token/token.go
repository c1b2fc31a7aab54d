// Package token defines the lexical tokens of the MySQL-like dialect that
// ezql reads.
//
// Only the keywords the statement grammar branches on get their own token
// type. Every other word is an IDENT, which keeps column names such as
// STATUS or NAME usable without quoting.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT    // identifier
	NUMBER   // 123, 45.67, 1e10, 0x1F
	STRING   // 'hello' or "hello", quotes kept
	VARIABLE // @var, @@session.var

	// Operators and punctuation
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	NSEQ      // <=>
	ASSIGN    // :=
	DPIPE     // ||
	DAMP      // &&
	OP        // any other operator character (& | ^ ~ ! ? :)
	DOT       // .
	COMMA     // ,
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )

	// Keywords (alphabetical)
	ALL
	AND
	AS
	ASC
	BETWEEN
	BY
	CASCADE
	CASE
	CHECK
	CONSTRAINT
	CREATE
	CROSS
	DEFAULT
	DELAYED
	DELETE
	DESC
	DISTINCT
	DISTINCTROW
	DROP
	DUPLICATE
	ELSE
	END
	EXISTS
	FOR
	FOREIGN
	FROM
	FULLTEXT
	GROUP
	HAVING
	HIGH_PRIORITY
	IF
	IGNORE
	IN
	INDEX
	INNER
	INSERT
	INTERVAL
	INTO
	IS
	JOIN
	KEY
	LEFT
	LIKE
	LIMIT
	LOCK
	LOW_PRIORITY
	NATURAL
	NOT
	NULL
	OFFSET
	ON
	OR
	ORDER
	OUTER
	PARTITION
	PRIMARY
	PROCEDURE
	QUICK
	REPLACE
	RESTRICT
	RIGHT
	SELECT
	SET
	SPATIAL
	STRAIGHT_JOIN
	TABLE
	TEMPORARY
	THEN
	TRUNCATE
	UNION
	UNIQUE
	UPDATE
	USING
	VALUE
	VALUES
	WHEN
	WHERE
	WINDOW
	WITH
	XOR
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	if IsKeyword(t) {
		for word, kw := range keywords {
			if kw == t {
				return word
			}
		}
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:    "IDENT",
	NUMBER:   "NUMBER",
	STRING:   "STRING",
	VARIABLE: "VARIABLE",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	NSEQ:      "<=>",
	ASSIGN:    ":=",
	DPIPE:     "||",
	DAMP:      "&&",
	OP:        "OP",
	DOT:       ".",
	COMMA:     ",",
	SEMICOLON: ";",
	LPAREN:    "(",
	RPAREN:    ")",
}

// keywords maps upper-case keyword strings to their token types.
var keywords = map[string]TokenType{
	"ALL":           ALL,
	"AND":           AND,
	"AS":            AS,
	"ASC":           ASC,
	"BETWEEN":       BETWEEN,
	"BY":            BY,
	"CASCADE":       CASCADE,
	"CASE":          CASE,
	"CHECK":         CHECK,
	"CONSTRAINT":    CONSTRAINT,
	"CREATE":        CREATE,
	"CROSS":         CROSS,
	"DEFAULT":       DEFAULT,
	"DELAYED":       DELAYED,
	"DELETE":        DELETE,
	"DESC":          DESC,
	"DISTINCT":      DISTINCT,
	"DISTINCTROW":   DISTINCTROW,
	"DROP":          DROP,
	"DUPLICATE":     DUPLICATE,
	"ELSE":          ELSE,
	"END":           END,
	"EXISTS":        EXISTS,
	"FOR":           FOR,
	"FOREIGN":       FOREIGN,
	"FROM":          FROM,
	"FULLTEXT":      FULLTEXT,
	"GROUP":         GROUP,
	"HAVING":        HAVING,
	"HIGH_PRIORITY": HIGH_PRIORITY,
	"IF":            IF,
	"IGNORE":        IGNORE,
	"IN":            IN,
	"INDEX":         INDEX,
	"INNER":         INNER,
	"INSERT":        INSERT,
	"INTERVAL":      INTERVAL,
	"INTO":          INTO,
	"IS":            IS,
	"JOIN":          JOIN,
	"KEY":           KEY,
	"LEFT":          LEFT,
	"LIKE":          LIKE,
	"LIMIT":         LIMIT,
	"LOCK":          LOCK,
	"LOW_PRIORITY":  LOW_PRIORITY,
	"NATURAL":       NATURAL,
	"NOT":           NOT,
	"NULL":          NULL,
	"OFFSET":        OFFSET,
	"ON":            ON,
	"OR":            OR,
	"ORDER":         ORDER,
	"OUTER":         OUTER,
	"PARTITION":     PARTITION,
	"PRIMARY":       PRIMARY,
	"PROCEDURE":     PROCEDURE,
	"QUICK":         QUICK,
	"REPLACE":       REPLACE,
	"RESTRICT":      RESTRICT,
	"RIGHT":         RIGHT,
	"SELECT":        SELECT,
	"SET":           SET,
	"SPATIAL":       SPATIAL,
	"STRAIGHT_JOIN": STRAIGHT_JOIN,
	"TABLE":         TABLE,
	"TEMPORARY":     TEMPORARY,
	"THEN":          THEN,
	"TRUNCATE":      TRUNCATE,
	"UNION":         UNION,
	"UNIQUE":        UNIQUE,
	"UPDATE":        UPDATE,
	"USING":         USING,
	"VALUE":         VALUE,
	"VALUES":        VALUES,
	"WHEN":          WHEN,
	"WHERE":         WHERE,
	"WINDOW":        WINDOW,
	"WITH":          WITH,
	"XOR":           XOR,
}

// nonReserved lists keywords MySQL still accepts as plain identifiers.
var nonReserved = map[TokenType]bool{
	DUPLICATE: true,
	END:       true,
	OFFSET:    true,
	QUICK:     true,
	TEMPORARY: true,
	TRUNCATE:  true,
	VALUE:     true,
}

// LookupIdent returns the token type for the given word.
// The lookup expects upper-case input; anything that is not a keyword is
// an IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= XOR
}

// IsReserved reports whether t is a keyword that cannot be used as an
// identifier without quoting.
func IsReserved(t TokenType) bool {
	return IsKeyword(t) && !nonReserved[t]
}

// IsWord reports whether tokens of type t are written as words, so that two
// adjacent ones need a separating space when rendered back to text.
func IsWord(t TokenType) bool {
	switch t {
	case IDENT, NUMBER, STRING, VARIABLE:
		return true
	}
	return IsKeyword(t)
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
