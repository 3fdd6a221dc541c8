package tube

import "sort"

// resolvedMapping is a validated mapping ready for per-record evaluation.
// Rules keep the mapping's declared order; defaults iterate in sorted key
// order so every run evaluates fields the same way.
type resolvedMapping struct {
	rules    []MappingEntry
	defaults []defaultEntry
}

type defaultEntry struct {
	field string
	value any
}

// resolveMapping validates the mapping and defaults against the target
// descriptor. When sourceFields is non-nil, source-field rules are also
// checked against it; when nil that check is deferred to per-record
// evaluation.
func resolveMapping(desc Descriptor, sourceFields []string, mapping Mapping, defaults Defaults) (*resolvedMapping, error) {
	var unknown, dupes, unknownSrc []string
	seen := make(map[string]bool, len(mapping))

	var sourceSet map[string]bool
	if sourceFields != nil {
		sourceSet = make(map[string]bool, len(sourceFields))
		for _, f := range sourceFields {
			sourceSet[f] = true
		}
	}

	for _, entry := range mapping {
		if seen[entry.Field] {
			dupes = append(dupes, entry.Field)
			continue
		}
		seen[entry.Field] = true
		if !desc.Has(entry.Field) {
			unknown = append(unknown, entry.Field)
		}
		if entry.Rule.kind == ruleSourceField && sourceSet != nil && !sourceSet[entry.Rule.field] {
			unknownSrc = append(unknownSrc, entry.Rule.field)
		}
	}
	for field := range defaults {
		if !desc.Has(field) {
			unknown = append(unknown, field)
		}
	}

	switch {
	case len(dupes) > 0:
		sort.Strings(dupes)
		return nil, &ConfigError{Kind: DuplicateField, Fields: dupes}
	case len(unknown) > 0:
		sort.Strings(unknown)
		return nil, &ConfigError{Kind: UnknownField, Fields: unknown}
	case len(unknownSrc) > 0:
		sort.Strings(unknownSrc)
		return nil, &ConfigError{Kind: UnknownSourceField, Fields: unknownSrc}
	}

	rm := &resolvedMapping{rules: append(Mapping(nil), mapping...)}
	for field, value := range defaults {
		rm.defaults = append(rm.defaults, defaultEntry{field: field, value: value})
	}
	sort.Slice(rm.defaults, func(i, j int) bool { return rm.defaults[i].field < rm.defaults[j].field })
	return rm, nil
}

// autoMapped returns implicit copy rules for every target field that also
// exists on the source and is not already covered by an explicit rule. A
// default on a shared field does not suppress the implicit rule: the source
// value wins, and defaults backfill only fields the source cannot supply.
// The result is sorted by field name.
func autoMapped(desc Descriptor, sourceFields []string, mapping Mapping) Mapping {
	covered := make(map[string]bool, len(mapping))
	for _, entry := range mapping {
		covered[entry.Field] = true
	}
	sourceSet := make(map[string]bool, len(sourceFields))
	for _, f := range sourceFields {
		sourceSet[f] = true
	}

	var implicit Mapping
	for _, f := range desc.Fields {
		if sourceSet[f.Name] && !covered[f.Name] {
			implicit = append(implicit, MappingEntry{Field: f.Name, Rule: From(f.Name)})
		}
	}
	sort.Slice(implicit, func(i, j int) bool { return implicit[i].Field < implicit[j].Field })
	return implicit
}
