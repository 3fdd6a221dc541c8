package tube

import "fmt"

// transform evaluates every resolved rule against one source record and
// backfills defaults for fields the mapping did not produce. Each field is
// evaluated independently; a rule never sees the partially built bag.
func (rm *resolvedMapping) transform(rec Record) (map[string]any, error) {
	bag := make(map[string]any, len(rm.rules)+len(rm.defaults))

	for _, entry := range rm.rules {
		switch entry.Rule.kind {
		case ruleSourceField:
			v, ok := rec.Field(entry.Rule.field)
			if !ok {
				return nil, &TransformError{
					Kind:  MissingSourceField,
					Field: entry.Field,
					Cause: fmt.Errorf("source field %q not present on record %s", entry.Rule.field, rec.SourceID()),
				}
			}
			bag[entry.Field] = v
		case ruleComputed:
			v, err := entry.Rule.fn(rec)
			if err != nil {
				return nil, &TransformError{Kind: RuleFailed, Field: entry.Field, Cause: err}
			}
			bag[entry.Field] = v
		case ruleStatic:
			bag[entry.Field] = entry.Rule.value
		}
	}

	for _, d := range rm.defaults {
		if _, ok := bag[d.field]; !ok {
			bag[d.field] = d.value
		}
	}
	return bag, nil
}
