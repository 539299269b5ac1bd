// Package tenant binds each organization to its own set of tables, one per
// entity kind, and provisions those tables and their indexes.
package tenant

import (
	"sort"
	"sync"

	"github.com/smallbiznis/moiledger/internal/apperr"
	editlogdomain "github.com/smallbiznis/moiledger/internal/editlog/domain"
	functiondomain "github.com/smallbiznis/moiledger/internal/function/domain"
	payerdomain "github.com/smallbiznis/moiledger/internal/payer/domain"
	"gorm.io/gorm/schema"
)

type EntityKind string

const (
	KindFunctions     EntityKind = "functions"
	KindPayers        EntityKind = "payers"
	KindPayerProfiles EntityKind = "payer_profiles"
	KindEditLogs      EntityKind = "edit_logs"
)

// Kinds returns every entity kind in provisioning order.
func Kinds() []EntityKind {
	return []EntityKind{KindFunctions, KindPayers, KindPayerProfiles, KindEditLogs}
}

// Field describes one column of an entity schema.
type Field struct {
	Name       string
	Column     string
	DataType   string
	Required   bool
	PrimaryKey bool
	Default    string
}

// Schema is the immutable template of an entity kind. It is shared by every
// tenant table of that kind.
type Schema struct {
	kind EntityKind
	newModel func() any
	fields   []Field
	byColumn map[string]Field
}

func (s *Schema) Kind() EntityKind { return s.kind }

// New returns a pointer to a zero model of the kind.
func (s *Schema) New() any { return s.newModel() }

func (s *Schema) HasColumn(column string) bool {
	_, ok := s.byColumn[column]
	return ok
}

// Required lists the columns that have neither a default nor a generated value.
func (s *Schema) Required() []string {
	var out []string
	for _, f := range s.fields {
		if f.Required {
			out = append(out, f.Column)
		}
	}
	return out
}

// Registry maps entity kinds to their schema templates. It is built once and
// never mutated afterwards.
type Registry struct {
	schemas map[EntityKind]*Schema
}

var models = map[EntityKind]func() any{
	KindFunctions:     func() any { return &functiondomain.Function{} },
	KindPayers:        func() any { return &payerdomain.Payer{} },
	KindPayerProfiles: func() any { return &payerdomain.PayerProfile{} },
	KindEditLogs:      func() any { return &editlogdomain.EditLog{} },
}

func NewRegistry() (*Registry, error) {
	cache := &sync.Map{}
	reg := &Registry{schemas: make(map[EntityKind]*Schema, len(models))}
	for kind, factory := range models {
		parsed, err := schema.Parse(factory(), cache, schema.NamingStrategy{})
		if err != nil {
			return nil, apperr.Internal(err, "parse %s schema", kind)
		}
		reg.schemas[kind] = newSchema(kind, factory, parsed)
	}
	return reg, nil
}

func newSchema(kind EntityKind, factory func() any, parsed *schema.Schema) *Schema {
	s := &Schema{
		kind:     kind,
		newModel: factory,
		byColumn: make(map[string]Field, len(parsed.Fields)),
	}
	for _, f := range parsed.Fields {
		if f.DBName == "" {
			continue
		}
		field := Field{
			Name:       f.Name,
			Column:     f.DBName,
			DataType:   string(f.DataType),
			PrimaryKey: f.PrimaryKey,
			Default:    f.DefaultValue,
			Required:   f.NotNull && !f.HasDefaultValue && !f.PrimaryKey && f.AutoCreateTime == 0 && f.AutoUpdateTime == 0,
		}
		s.fields = append(s.fields, field)
		s.byColumn[field.Column] = field
	}
	return s
}

// Lookup returns the schema of kind, or a configuration error for unknown kinds.
func (r *Registry) Lookup(kind EntityKind) (*Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return nil, apperr.Configuration("unknown_entity_kind", "unknown entity kind %q", kind)
	}
	return s, nil
}

func (r *Registry) Kinds() []EntityKind {
	out := make([]EntityKind, 0, len(r.schemas))
	for kind := range r.schemas {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
