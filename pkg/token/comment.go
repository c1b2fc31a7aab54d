package token

// CommentKind distinguishes line vs block comments.
type CommentKind int

// Comment kinds.
const (
	LineComment  CommentKind = iota // -- comment or # comment
	BlockComment                    // /* comment */
)

// Comment represents a SQL comment removed from the input.
type Comment struct {
	Kind CommentKind
	Text string // includes delimiters (--, # or /* */)
	Span Span
}

// IsLineComment returns true if this is a line comment.
func (c *Comment) IsLineComment() bool {
	return c.Kind == LineComment
}
