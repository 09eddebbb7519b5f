package schema

import "strings"

// DDL returns the idempotent creation statement for the table, naming every
// declared column (header-sourced ones included) with its physical type.
// Re-running it against an existing database is a no-op.
func (t *Table) DDL() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS "`)
	b.WriteString(t.Name)
	b.WriteString(`" (`)
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('"')
		b.WriteString(c.Name)
		b.WriteString(`" `)
		b.WriteString(c.Type.SQLType())
		if c.Required {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteByte(')')
	return b.String()
}
