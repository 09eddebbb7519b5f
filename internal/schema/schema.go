// Package schema holds the immutable catalog of apps and tables, built once
// at startup from a YAML document and shared read-only by every request.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/attolytics/attolytics/internal/types"
)

// Column is one named, typed field of a table. A column with FromHeader set
// is populated from that request header; otherwise it is read from the event
// body field of the same name.
type Column struct {
	Name       string
	Type       types.Type
	Required   bool
	FromHeader string
}

// Table is a named, ordered row schema.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the named column, if declared.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// App is a tenant: authenticated by a shared secret, authorized for a subset
// of the table catalog.
type App struct {
	ID            string
	SecretKey     string
	AllowedOrigin string
	Tables        map[string]struct{}
}

// Authorized reports whether the app may write to the named table.
func (a *App) Authorized(table string) bool {
	_, ok := a.Tables[table]
	return ok
}

// Schema is the full catalog. It is never mutated after Parse returns, so it
// needs no locking and may be shared across concurrent requests.
type Schema struct {
	Apps   map[string]*App
	Tables map[string]*Table
}

// TableField is the reserved event field naming the destination table.
const TableField = "_t"

type document struct {
	Apps   map[string]appDoc   `yaml:"apps"`
	Tables map[string]tableDoc `yaml:"tables"`
}

type appDoc struct {
	SecretKey     string   `yaml:"secret_key"`
	AllowedOrigin string   `yaml:"access_control_allow_origin"`
	Tables        []string `yaml:"tables"`
}

type tableDoc struct {
	Columns []columnDoc `yaml:"columns"`
}

type columnDoc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Required   bool   `yaml:"required"`
	FromHeader string `yaml:"from_header"`
}

// Load reads and parses a schema document from disk.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return s, nil
}

// Parse builds a Schema from a YAML document. Construction is all-or-nothing:
// any inconsistency rejects the whole document.
func Parse(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("schema declares no tables")
	}

	s := &Schema{
		Apps:   make(map[string]*App, len(doc.Apps)),
		Tables: make(map[string]*Table, len(doc.Tables)),
	}

	for name, td := range doc.Tables {
		table, err := buildTable(name, td)
		if err != nil {
			return nil, err
		}
		s.Tables[name] = table
	}

	for id, ad := range doc.Apps {
		app, err := buildApp(id, ad, s.Tables)
		if err != nil {
			return nil, err
		}
		s.Apps[id] = app
	}

	return s, nil
}

func buildTable(name string, td tableDoc) (*Table, error) {
	if !validIdent(name) {
		return nil, fmt.Errorf("table %q: invalid name", name)
	}
	if len(td.Columns) == 0 {
		return nil, fmt.Errorf("table %q declares no columns", name)
	}

	table := &Table{Name: name, Columns: make([]Column, 0, len(td.Columns))}
	seen := make(map[string]struct{}, len(td.Columns))
	for _, cd := range td.Columns {
		if cd.Name == TableField {
			return nil, fmt.Errorf("table %q: column name %q is reserved", name, TableField)
		}
		if !validIdent(cd.Name) {
			return nil, fmt.Errorf("table %q: invalid column name %q", name, cd.Name)
		}
		if _, dup := seen[cd.Name]; dup {
			return nil, fmt.Errorf("table %q: duplicate column %q", name, cd.Name)
		}
		seen[cd.Name] = struct{}{}

		typ := types.Default
		if cd.Type != "" {
			var err error
			typ, err = types.Parse(cd.Type)
			if err != nil {
				return nil, fmt.Errorf("table %q, column %q: %w", name, cd.Name, err)
			}
		}
		table.Columns = append(table.Columns, Column{
			Name:       cd.Name,
			Type:       typ,
			Required:   cd.Required,
			FromHeader: cd.FromHeader,
		})
	}
	return table, nil
}

func buildApp(id string, ad appDoc, tables map[string]*Table) (*App, error) {
	if id == "" {
		return nil, fmt.Errorf("app with empty id")
	}
	if ad.SecretKey == "" {
		return nil, fmt.Errorf("app %q: secret_key is required", id)
	}
	if ad.AllowedOrigin == "" {
		return nil, fmt.Errorf("app %q: access_control_allow_origin is required", id)
	}

	app := &App{
		ID:            id,
		SecretKey:     ad.SecretKey,
		AllowedOrigin: ad.AllowedOrigin,
		Tables:        make(map[string]struct{}, len(ad.Tables)),
	}
	for _, t := range ad.Tables {
		if _, ok := tables[t]; !ok {
			return nil, fmt.Errorf("app %q references unknown table %q", id, t)
		}
		app.Tables[t] = struct{}{}
	}
	return app, nil
}

// validIdent accepts the identifiers we are willing to interpolate into DDL:
// a letter or underscore followed by letters, digits, or underscores.
func validIdent(name string) bool {
	if len(name) == 0 || len(name) > 100 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
