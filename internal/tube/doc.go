// Package tube implements the record-migration engine: per-field mapping
// rules, the single-migration run loop (Tube) and the ordered multi-migration
// sequencer (TubeSet). Stores are supplied by the caller through the small
// SourceQueryable and TargetStore interfaces.
package tube
