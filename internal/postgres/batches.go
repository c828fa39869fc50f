package postgres

import "math"

// Batch sizing
const (
	DefaultBatchSize = 500
	// PostgreSQL caps bind parameters per statement at 65535.
	maxBindParameters = math.MaxUint16
)

// batch is a contiguous slice of rows written by one statement.
type batch struct {
	Index  int
	Offset int
	Limit  int
}

// effectiveBatchSize clamps the requested size so one statement never
// exceeds the bind parameter limit.
func effectiveBatchSize(requested, columnsPerRow int) int {
	if requested <= 0 {
		requested = DefaultBatchSize
	}
	if columnsPerRow <= 0 {
		return requested
	}
	if limit := maxBindParameters / columnsPerRow; requested > limit {
		return limit
	}
	return requested
}

// planBatches splits rowCount rows into offset/limit ranges. The last batch
// carries the remainder.
func planBatches(rowCount, columnsPerRow, batchSize int) []batch {
	if rowCount <= 0 {
		return nil
	}

	size := effectiveBatchSize(batchSize, columnsPerRow)
	numBatches := int(math.Ceil(float64(rowCount) / float64(size)))
	batches := make([]batch, 0, numBatches)

	for i := 0; i < numBatches; i++ {
		offset := i * size
		limit := size

		if i == numBatches-1 {
			limit = rowCount - offset
		}

		batches = append(batches, batch{Index: i, Offset: offset, Limit: limit})
	}

	return batches
}
