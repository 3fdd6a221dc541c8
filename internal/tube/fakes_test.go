package tube

import (
	"context"
	"errors"
	"fmt"
)

// fakeSource pages over an in-memory record slice. It deliberately does not
// implement FieldLister or Counter; wrap it when a test needs those.
type fakeSource struct {
	records    []Record
	failAtPage int // 1-based page index whose fetch fails; 0 disables
	fetches    int
}

func (s *fakeSource) Fetch(ctx context.Context, offset, limit int) ([]Record, error) {
	s.fetches++
	if s.failAtPage > 0 && s.fetches == s.failAtPage {
		return nil, errors.New("connection reset")
	}
	if offset >= len(s.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

type introspectableSource struct {
	*fakeSource
	fields []string
}

func (s *introspectableSource) ListFields(ctx context.Context) ([]string, error) {
	return s.fields, nil
}

type countableSource struct {
	*fakeSource
}

func (s *countableSource) Count(ctx context.Context) (int, error) {
	return len(s.records), nil
}

// fakeStore hands out a single fakeWriter and tracks that the tube closed it.
type fakeStore struct {
	writer  *fakeWriter
	openErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{writer: &fakeWriter{rows: map[string]map[string]any{}}}
}

func (s *fakeStore) Open(ctx context.Context, target Descriptor) (TargetWriter, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.writer, nil
}

// fakeWriter stores value bags keyed by identity value; create-only inserts
// get synthetic keys so duplicates stay visible.
type fakeWriter struct {
	rows     map[string]map[string]any
	inserted int
	updated  int
	closed   bool

	// failOn maps a field value of the incoming bag ("email" typically) to
	// a fault to return.
	failField string
	failOn    map[any]error
}

func (w *fakeWriter) faultFor(values map[string]any) error {
	if w.failOn == nil {
		return nil
	}
	if err, ok := w.failOn[values[w.failField]]; ok {
		return err
	}
	return nil
}

func (w *fakeWriter) Insert(ctx context.Context, values map[string]any) error {
	if err := w.faultFor(values); err != nil {
		return err
	}
	w.inserted++
	w.rows[fmt.Sprintf("row-%d", len(w.rows)+1)] = values
	return nil
}

func (w *fakeWriter) Upsert(ctx context.Context, keyField string, values map[string]any) (bool, error) {
	if err := w.faultFor(values); err != nil {
		return false, err
	}
	key := fmt.Sprintf("%v", values[keyField])
	if _, ok := w.rows[key]; ok {
		w.updated++
		w.rows[key] = values
		return false, nil
	}
	w.inserted++
	w.rows[key] = values
	return true, nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func userRecords(n int) []Record {
	records := make([]Record, n)
	for i := 0; i < n; i++ {
		records[i] = MapRecord{
			ID: fmt.Sprintf("%d", i+1),
			Values: map[string]any{
				"id":    i + 1,
				"email": fmt.Sprintf("user%d@x.com", i+1),
				"age":   30 + i,
			},
		}
	}
	return records
}

func userDescriptor() Descriptor {
	return Descriptor{
		Entity: "core_user",
		Fields: []FieldDef{
			{Name: "username", Type: "varchar"},
			{Name: "email", Type: "varchar"},
			{Name: "age", Type: "int"},
			{Name: "is_admin", Type: "bool"},
			{Name: "create_datetime", Type: "timestamp"},
		},
	}
}
