package export

import (
	"fmt"

	"github.com/stixgraph/stixgraph/queue"
	"github.com/stixgraph/stixgraph/store"
)

// FieldMappings translates list-query vocabulary between the internal
// attribute names and the connector-facing names carried in dispatch
// messages. The table is bidirectional and checked for consistency at
// construction; keys absent from the table pass through unchanged.
type FieldMappings struct {
	filters  map[string]string
	ordering map[string]string
}

// NewFieldMappings builds and validates a mapping table. Each map goes from
// the internal name to the connector-facing name.
func NewFieldMappings(filters, ordering map[string]string) (*FieldMappings, error) {
	m := &FieldMappings{filters: filters, ordering: ordering}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultFieldMappings returns the standard observable export vocabulary.
func DefaultFieldMappings() *FieldMappings {
	m, err := NewFieldMappings(
		map[string]string{
			"entity_type":      "entityType",
			"observable_value": "observableValue",
			"created_at":       "created",
			"updated_at":       "modified",
			"object_marking":   "markedBy",
			"object_label":     "labelledBy",
		},
		map[string]string{
			"entity_type":      "entity_type",
			"observable_value": "observable_value",
			"created_at":       "created",
			"updated_at":       "modified",
		},
	)
	if err != nil {
		// The default table is static; a failure here is a programming error.
		panic(err)
	}
	return m
}

// Validate checks that no two internal keys map to the same connector-facing
// name, which would make the translation ambiguous for connectors mapping
// results back.
func (m *FieldMappings) Validate() error {
	if err := validateInjective("filter", m.filters); err != nil {
		return err
	}
	return validateInjective("ordering", m.ordering)
}

func validateInjective(kind string, mapping map[string]string) error {
	seen := make(map[string]string, len(mapping))
	for internal, external := range mapping {
		if external == "" {
			return fmt.Errorf("%s mapping for %q is empty", kind, internal)
		}
		if prev, dup := seen[external]; dup {
			return fmt.Errorf("%s mappings %q and %q collide on %q", kind, prev, internal, external)
		}
		seen[external] = internal
	}
	return nil
}

// FilterKey translates one internal filter key, passing unmapped keys
// through unchanged.
func (m *FieldMappings) FilterKey(internal string) string {
	if external, ok := m.filters[internal]; ok {
		return external
	}
	return internal
}

// OrderKey translates one internal ordering key, passing unmapped keys
// through unchanged.
func (m *FieldMappings) OrderKey(internal string) string {
	if external, ok := m.ordering[internal]; ok {
		return external
	}
	return internal
}

// RewriteListArgs produces the connector-facing snapshot of a list query.
// Only filter keys and the ordering key are translated; types, pagination
// and date bounds carry over as-is so connectors export exactly the
// population the caller scoped. A nil input yields nil: bulk-export
// semantics are signaled by the presence of list arguments.
func (m *FieldMappings) RewriteListArgs(args *store.ListArgs) *queue.ListArgs {
	if args == nil {
		return nil
	}
	out := &queue.ListArgs{
		Types:     args.Types,
		OrderBy:   m.OrderKey(args.OrderBy),
		OrderMode: args.OrderMode,
		Search:    args.Search,
		First:     args.First,
		After:     args.After,
		StartDate: args.StartDate,
		EndDate:   args.EndDate,
	}
	if args.OrderBy == "" {
		out.OrderBy = ""
	}
	for _, f := range args.Filters {
		out.Filters = append(out.Filters, store.Filter{
			Key:    m.FilterKey(f.Key),
			Values: f.Values,
		})
	}
	return out
}
