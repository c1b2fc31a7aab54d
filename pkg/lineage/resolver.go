package lineage

import "strings"

// Resolver splits object names into schema and name.
type Resolver struct {
	// DefaultSchema is used for names written without a schema.
	DefaultSchema string
}

// Resolve splits name on its first '.'. Without a dot the schema is the
// default schema. No quoting rules apply.
func (r Resolver) Resolve(name string) (schema, object string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return r.DefaultSchema, name
}

// Table lower-cases text and resolves it into a Table.
func (r Resolver) Table(text string) Table {
	schema, name := r.Resolve(strings.ToLower(text))
	return Table{Schema: schema, Name: name}
}
