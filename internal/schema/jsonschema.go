package schema

import (
	"bytes"
	"encoding/json"

	"tabnorm/internal/table"
)

// Draft is the JSON Schema dialect URI written into every document.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// DefaultTitle is used when JSONSchemaFor gets an empty title.
const DefaultTitle = "NormalizedData"

// Property is the schema of one column.
type Property struct {
	Type      []string `json:"type"`
	Format    string   `json:"format,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

// NamedProperty keeps a property together with its column name so the
// document can preserve column order.
type NamedProperty struct {
	Name     string
	Property Property
}

// JSONSchema is an object schema whose properties keep column order when
// marshalled.
type JSONSchema struct {
	Schema     string
	Title      string
	Type       string
	Properties []NamedProperty
	Required   []string
}

// Lookup returns the property for a column name.
func (s JSONSchema) Lookup(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Property, true
		}
	}
	return Property{}, false
}

// MarshalJSON writes keys in the order $schema, title, type, properties,
// required; "required" is omitted when empty.
func (s JSONSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeKV := func(key string, v any, first bool) error {
		if !first {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if err := writeKV("$schema", s.Schema, true); err != nil {
		return nil, err
	}
	if err := writeKV("title", s.Title, false); err != nil {
		return nil, err
	}
	if err := writeKV("type", s.Type, false); err != nil {
		return nil, err
	}

	buf.WriteString(`,"properties":{`)
	for i, p := range s.Properties {
		if err := writeKV(p.Name, p.Property, i == 0); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	if len(s.Required) > 0 {
		if err := writeKV("required", s.Required, false); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PropertyFor maps a column to its JSON Schema property. Every type is
// nullable; dates are date-time strings; strings carry maxLength when at least
// one value is present.
func PropertyFor(col table.TypedColumn) Property {
	switch col.Type {
	case table.Boolean:
		return Property{Type: []string{"boolean", "null"}}
	case table.Integer:
		return Property{Type: []string{"integer", "null"}}
	case table.Float:
		return Property{Type: []string{"number", "null"}}
	case table.Date:
		return Property{Type: []string{"string", "null"}, Format: "date-time"}
	default:
		p := Property{Type: []string{"string", "null"}}
		if n, ok := col.MaxTextLen(); ok {
			p.MaxLength = &n
		}
		return p
	}
}

// JSONSchemaFor describes t as an object schema. Columns with no missing
// values are listed in required, in column order.
func JSONSchemaFor(t table.TypedTable, title string) JSONSchema {
	if title == "" {
		title = DefaultTitle
	}
	s := JSONSchema{
		Schema:     Draft,
		Title:      title,
		Type:       "object",
		Properties: make([]NamedProperty, len(t.Columns)),
	}
	for i, c := range t.Columns {
		s.Properties[i] = NamedProperty{Name: c.Name, Property: PropertyFor(c)}
		if !c.Nullable() {
			s.Required = append(s.Required, c.Name)
		}
	}
	return s
}
