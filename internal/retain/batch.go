package retain

import "context"

// BatchItem is one input within a retain_batch call.
type BatchItem struct {
	Options Options
}

// BatchResult pairs a batch item's index with its outcome; Err is set
// instead of Results when that single item failed, so one bad input does
// not abort the whole batch (SPEC_FULL.md §4.5's retain_batch operation).
type BatchResult struct {
	Index   int
	Results []*Result
	Err     error
}

// RetainBatch runs every item through Retain independently, collecting
// per-item results and errors rather than failing the whole call on one
// bad input.
func (p *Pipeline) RetainBatch(ctx context.Context, items []BatchItem) []BatchResult {
	out := make([]BatchResult, len(items))
	for i, item := range items {
		results, err := p.Retain(ctx, item.Options)
		out[i] = BatchResult{Index: i, Results: results, Err: err}
	}
	return out
}
