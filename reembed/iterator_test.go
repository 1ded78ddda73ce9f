package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/membank/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIterator_Basic(t *testing.T) {
	table := setupTestTable(t)
	addRecords(t, table, 3)

	// Iterate all records
	iter := NewRecordIterator(table, 2) // Batch size of 2
	count := 0
	var ids []string

	err := iter.ForEach(context.Background(), func(records []*core.Record) error {
		count += len(records)
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, count, "should iterate all 3 records")
	assert.ElementsMatch(t, []string{"rec-00", "rec-01", "rec-02"}, ids)
}

func TestRecordIterator_BatchSizes(t *testing.T) {
	tests := []struct {
		batchSize int
		want      []int
	}{
		{batchSize: 1, want: []int{1, 1, 1, 1, 1}},
		{batchSize: 2, want: []int{2, 2, 1}},
		{batchSize: 5, want: []int{5}},
		{batchSize: 10, want: []int{5}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("batch size %d", tt.batchSize), func(t *testing.T) {
			table := setupTestTable(t)
			addRecords(t, table, 5)

			var sizes []int
			err := NewRecordIterator(table, tt.batchSize).ForEach(context.Background(), func(records []*core.Record) error {
				sizes = append(sizes, len(records))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestRecordIterator_EmptyTable(t *testing.T) {
	iter := NewRecordIterator(setupTestTable(t), 10)
	called := false

	err := iter.ForEach(context.Background(), func(records []*core.Record) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called, "callback should not be called for empty table")
}

func TestRecordIterator_ErrorHandling(t *testing.T) {
	table := setupTestTable(t)
	addRecords(t, table, 2)

	iter := NewRecordIterator(table, 1)
	called := 0

	expectedErr := assert.AnError
	err := iter.ForEach(context.Background(), func(records []*core.Record) error {
		called++
		if called == 1 {
			return expectedErr
		}
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return callback error")
	assert.Equal(t, 1, called, "should stop on first error")
}

func TestRecordIterator_ContextCancellation(t *testing.T) {
	table := setupTestTable(t)
	addRecords(t, table, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	iter := NewRecordIterator(table, 1)
	called := 0

	err := iter.ForEach(ctx, func(records []*core.Record) error {
		called++
		if called == 2 {
			cancel()
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, called, "should process until context canceled")
}

func TestRecordIterator_InvalidBatchSize(t *testing.T) {
	table := setupTestTable(t)

	// Zero batch size should be handled gracefully
	iter := NewRecordIterator(table, 0)
	assert.Equal(t, DefaultBatchSize, iter.batchSize, "should use default batch size for invalid input")

	// Negative batch size
	iter = NewRecordIterator(table, -10)
	assert.Equal(t, DefaultBatchSize, iter.batchSize, "should use default batch size for negative input")
}
