package parser

import (
	"strings"

	"github.com/leapstack-labs/ezql/pkg/token"
)

// StripComments removes "-- ", "#" and "/* */" comments from sql. Comment
// markers inside quoted strings and backtick identifiers are left alone.
// A block comment is replaced by a single space so the tokens around it
// stay apart; a line comment keeps its newline.
func StripComments(sql string) (string, []*token.Comment) {
	var (
		sb       strings.Builder
		comments []*token.Comment
		line     = 1
		col      = 1
	)
	sb.Grow(len(sql))

	pos := func(offset int) token.Position {
		return token.Position{Line: line, Column: col, Offset: offset}
	}
	advance := func(s string) {
		for i := 0; i < len(s); i++ {
			if s[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
	}

	i := 0
	for i < len(sql) {
		ch := sql[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			end := quotedEnd(sql, i)
			sb.WriteString(sql[i:end])
			advance(sql[i:end])
			i = end

		case ch == '#' || isDashComment(sql, i):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i
			}
			start := pos(i)
			advance(sql[i:end])
			comments = append(comments, &token.Comment{
				Kind: token.LineComment,
				Text: sql[i:end],
				Span: token.Span{Start: start, End: pos(end)},
			})
			i = end

		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 4
			}
			start := pos(i)
			advance(sql[i:end])
			comments = append(comments, &token.Comment{
				Kind: token.BlockComment,
				Text: sql[i:end],
				Span: token.Span{Start: start, End: pos(end)},
			})
			sb.WriteByte(' ')
			i = end

		default:
			sb.WriteByte(ch)
			advance(sql[i : i+1])
			i++
		}
	}
	return sb.String(), comments
}

// isDashComment reports whether a "--" comment starts at i. MySQL requires
// whitespace (or the end of input) after the dashes.
func isDashComment(sql string, i int) bool {
	if i+1 >= len(sql) || sql[i] != '-' || sql[i+1] != '-' {
		return false
	}
	if i+2 >= len(sql) {
		return true
	}
	switch sql[i+2] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// quotedEnd returns the offset just past the quoted run starting at i, or
// len(sql) when the quote is never closed.
func quotedEnd(sql string, i int) int {
	quote := sql[i]
	j := i + 1
	for j < len(sql) {
		switch {
		case sql[j] == '\\' && quote != '`':
			j += 2
		case sql[j] == quote && j+1 < len(sql) && sql[j+1] == quote:
			j += 2
		case sql[j] == quote:
			return j + 1
		default:
			j++
		}
	}
	return len(sql)
}

// IndexDelimiter returns the offset of the first delim in sql at or after
// from that is not inside a quoted string or backtick identifier, or -1.
func IndexDelimiter(sql string, from int, delim string) int {
	if delim == "" {
		return -1
	}
	for i := from; i < len(sql); {
		switch sql[i] {
		case '\'', '"', '`':
			i = quotedEnd(sql, i)
			continue
		}
		if strings.HasPrefix(sql[i:], delim) {
			return i
		}
		i++
	}
	return -1
}
