package simulate

import "fmt"

// StepRange is an inclusive range of step indexes.
type StepRange struct {
	From int
	To   int
}

// SplitSteps splits n steps into batches of size batchSize. Events and
// failures are flushed once per batch.
func SplitSteps(n, batchSize int) ([]StepRange, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if n < 0 {
		return nil, fmt.Errorf("step count must not be negative")
	}

	ranges := make([]StepRange, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize - 1
		if end >= n {
			end = n - 1
		}
		ranges = append(ranges, StepRange{From: start, To: end})
	}
	return ranges, nil
}
