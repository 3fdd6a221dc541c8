package tube

import "context"

// Record is a read-only view of one source row. The engine never mutates it.
type Record interface {
	// Field returns the named field's value and whether the field exists
	// on this record.
	Field(name string) (any, bool)
	// SourceID identifies the record in run reports.
	SourceID() string
}

// SourceQueryable streams source records in a stable, store-defined order
// (typically primary-key ascending). An empty page means the source is
// exhausted. A fetch error is fatal to the running tube.
type SourceQueryable interface {
	Fetch(ctx context.Context, offset, limit int) ([]Record, error)
}

// FieldLister is optionally implemented by sources whose schema can be
// introspected up front. When available, source-field rules are validated at
// construction time; otherwise a missing field surfaces per record.
type FieldLister interface {
	ListFields(ctx context.Context) ([]string, error)
}

// Counter is optionally implemented by sources that can report their total
// record count. The count feeds progress reporting and the skipped tally
// after a stop-on-error halt.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Descriptor declares the fields of a target entity. The engine uses it only
// to validate mapping and default keys.
type Descriptor struct {
	Entity string     `json:"entity"`
	Fields []FieldDef `json:"fields"`
}

// FieldDef is one declared target field.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Has reports whether the descriptor declares a field with the given name.
func (d Descriptor) Has(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// DescriptorProvider resolves a target entity identifier to its descriptor.
// Stores that cannot introspect their schema (document stores) do not
// implement it; callers then declare the descriptor themselves.
type DescriptorProvider interface {
	Describe(ctx context.Context, entity string) (Descriptor, error)
}

// TargetStore opens a run-scoped writer for one target entity. The tube
// acquires the writer at run start and closes it on every exit path.
type TargetStore interface {
	Open(ctx context.Context, target Descriptor) (TargetWriter, error)
}

// TargetWriter persists transformed value bags for one tube run.
type TargetWriter interface {
	// Insert creates a new target entity from values.
	Insert(ctx context.Context, values map[string]any) error
	// Upsert updates the entity whose keyField matches values[keyField],
	// inserting it when absent. It reports whether a new entity was created.
	Upsert(ctx context.Context, keyField string, values map[string]any) (created bool, err error)
	Close() error
}

// MapRecord is a Record backed by a plain map, the shape row and document
// sources naturally produce.
type MapRecord struct {
	ID     string
	Values map[string]any
}

func (r MapRecord) Field(name string) (any, bool) {
	v, ok := r.Values[name]
	return v, ok
}

func (r MapRecord) SourceID() string { return r.ID }
