package tube

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userMapping() Mapping {
	return Mapping{
		{Field: "username", Rule: From("email")},
		{Field: "email", Rule: From("email")},
		{Field: "age", Rule: Compute(func(r Record) (any, error) {
			v, ok := r.Field("age")
			if !ok {
				return nil, errors.New("no age")
			}
			return v.(int) + 1, nil
		})},
	}
}

func TestRunMigratesEveryRecord(t *testing.T) {
	source := &fakeSource{records: []Record{
		MapRecord{ID: "1", Values: map[string]any{"email": "a@x.com", "age": 30}},
		MapRecord{ID: "2", Values: map[string]any{"email": "b@x.com", "age": 41}},
	}}
	store := newFakeStore()

	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), Defaults{"is_admin": false}, Options{})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 0, report.Failed)
	assert.False(t, report.Abnormal)
	assert.True(t, store.writer.closed)

	var bags []map[string]any
	for _, bag := range store.writer.rows {
		bags = append(bags, bag)
	}
	require.Len(t, bags, 2)
	for _, bag := range bags {
		assert.Equal(t, false, bag["is_admin"])
		switch bag["username"] {
		case "a@x.com":
			assert.Equal(t, 31, bag["age"])
		case "b@x.com":
			assert.Equal(t, 42, bag["age"])
		default:
			t.Fatalf("unexpected row %v", bag)
		}
	}
}

func TestRunContinuesPastFailuresWhenNotStopping(t *testing.T) {
	const n = 7
	records := userRecords(n)
	// Record 3 has no age, so its computed rule fails.
	records[2] = MapRecord{ID: "3", Values: map[string]any{"id": 3, "email": "user3@x.com"}}

	source := &fakeSource{records: records}
	store := newFakeStore()
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{StopOnError: false, BatchSize: 3})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, n)
	assert.Equal(t, n-1, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StatusFailed, report.Outcomes[2].Status)
	assert.Equal(t, "3", report.Outcomes[2].SourceID)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	const n, k = 10, 4
	records := userRecords(n)
	records[k-1] = MapRecord{ID: fmt.Sprintf("%d", k), Values: map[string]any{"id": k, "email": "broken@x.com"}}

	source := &countableSource{fakeSource: &fakeSource{records: records}}
	store := newFakeStore()
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{StopOnError: true, BatchSize: 3})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, k)
	assert.Equal(t, StatusFailed, report.Outcomes[k-1].Status)
	assert.Equal(t, n-k, report.Skipped)
	assert.Equal(t, k-1, store.writer.inserted, "no record after the failure may be persisted")
	assert.False(t, report.Abnormal)
	assert.True(t, store.writer.closed)
}

func TestRunWithIdentityKeyIsIdempotent(t *testing.T) {
	source := &fakeSource{records: userRecords(3)}
	store := newFakeStore()

	mapping := append(userMapping(), MappingEntry{Field: "create_datetime", Rule: From("id")})
	newTube := func() *Tube {
		tb, err := New(context.Background(), "users", source, store, userDescriptor(), mapping, nil, Options{IdentityKey: "email"})
		require.NoError(t, err)
		return tb
	}

	first, err := newTube().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.Updated)

	second, err := newTube().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)
	assert.Len(t, store.writer.rows, 3, "re-run must not duplicate entities")
}

func TestRunWithoutIdentityKeyDuplicatesOnRerun(t *testing.T) {
	source := &fakeSource{records: userRecords(2)}
	store := newFakeStore()
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{})
	require.NoError(t, err)

	_, err = tb.Run(context.Background())
	require.NoError(t, err)
	_, err = tb.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.writer.rows, 4, "create-only re-runs insert fresh entities")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	source := &fakeSource{records: userRecords(4)}
	store := newFakeStore()
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{DryRun: true})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created)
	assert.Empty(t, store.writer.rows)
	assert.Equal(t, 0, store.writer.inserted)
}

func TestRunDryRunWithIdentityKeyReportsCreated(t *testing.T) {
	source := &fakeSource{records: userRecords(2)}
	store := newFakeStore()
	// Pre-existing rows a live run would update; a dry run performs no
	// identity lookup and reports created regardless.
	store.writer.rows["user1@x.com"] = map[string]any{"email": "user1@x.com"}
	store.writer.rows["user2@x.com"] = map[string]any{"email": "user2@x.com"}

	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{DryRun: true, IdentityKey: "email"})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, store.writer.updated)
	assert.Equal(t, 0, store.writer.inserted)
}

func TestRunRecoverableStoreFaultIsRecorded(t *testing.T) {
	source := &fakeSource{records: userRecords(3)}
	store := newFakeStore()
	store.writer.failField = "email"
	store.writer.failOn = map[any]error{
		"user2@x.com": &StoreFault{Recoverable: true, Err: errors.New("unique constraint violated")},
	}

	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Outcomes[1].Err, "unique constraint")
}

func TestRunFatalStoreFaultAbortsWithPartialReport(t *testing.T) {
	source := &fakeSource{records: userRecords(5)}
	store := newFakeStore()
	store.writer.failField = "email"
	store.writer.failOn = map[any]error{
		"user3@x.com": &StoreFault{Recoverable: false, Err: errors.New("connection lost")},
	}

	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.Error(t, err)
	assert.True(t, report.Abnormal)
	require.Len(t, report.Outcomes, 3, "the faulting record is still visible in the report")
	assert.Equal(t, StatusFailed, report.Outcomes[2].Status)
	assert.True(t, store.writer.closed, "the writer must be released on the abort path")
}

func TestRunSourceFetchFaultIsFatal(t *testing.T) {
	source := &fakeSource{records: userRecords(9), failAtPage: 2}
	store := newFakeStore()
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{BatchSize: 4})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.Error(t, err)
	assert.True(t, report.Abnormal)
	assert.Len(t, report.Outcomes, 4, "outcomes of the completed first page remain")
	assert.True(t, store.writer.closed)
}

func TestRunReportsProgress(t *testing.T) {
	source := &countableSource{fakeSource: &fakeSource{records: userRecords(5)}}
	store := newFakeStore()

	var dones []int
	total := -1
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), userMapping(), nil, Options{
		Progress: func(done, n int) {
			dones = append(dones, done)
			total = n
		},
	})
	require.NoError(t, err)

	_, err = tb.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, dones)
	assert.Equal(t, 5, total)
}

func TestRunAutoMapCopiesSharedFields(t *testing.T) {
	source := &introspectableSource{
		fakeSource: &fakeSource{records: []Record{
			MapRecord{ID: "1", Values: map[string]any{"id": 1, "email": "a@x.com", "age": 33}},
		}},
		fields: []string{"id", "email", "age"},
	}
	store := newFakeStore()

	tb, err := New(context.Background(), "users", source, store, userDescriptor(), nil, Defaults{"is_admin": false}, Options{AutoMap: true})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	require.Len(t, store.writer.rows, 1)
	for _, bag := range store.writer.rows {
		assert.Equal(t, "a@x.com", bag["email"])
		assert.Equal(t, 33, bag["age"])
		assert.Equal(t, false, bag["is_admin"])
		_, hasUsername := bag["username"]
		assert.False(t, hasUsername, "fields absent from the source stay unmapped")
	}
}

func TestRunAutoMapSourceValueBeatsDefault(t *testing.T) {
	source := &introspectableSource{
		fakeSource: &fakeSource{records: []Record{
			MapRecord{ID: "1", Values: map[string]any{"id": 1, "email": "real@x.com"}},
		}},
		fields: []string{"id", "email"},
	}
	store := newFakeStore()

	// email is shared between source and target, so the implicit copy rule
	// must win; the default only covers fields the source cannot supply.
	tb, err := New(context.Background(), "users", source, store, userDescriptor(), nil,
		Defaults{"email": "default@x.com", "is_admin": false}, Options{AutoMap: true})
	require.NoError(t, err)

	report, err := tb.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	require.Len(t, store.writer.rows, 1)
	for _, bag := range store.writer.rows {
		assert.Equal(t, "real@x.com", bag["email"])
		assert.Equal(t, false, bag["is_admin"])
	}
}
