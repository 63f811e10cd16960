package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one request of a batch.
type BatchItem struct {
	Request Request `json:"request"`
	Result  *Result `json:"result,omitempty"`
	Err     error   `json:"-"`
	Error   string  `json:"error,omitempty"`
}

// ConvertAll runs reqs with at most limit conversions in flight. One
// failed request does not stop the others. Items keep the order of reqs.
func (c *Coordinator) ConvertAll(ctx context.Context, reqs []Request, limit int) []BatchItem {
	if limit <= 0 {
		limit = 1
	}
	items := make([]BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := c.Convert(ctx, req)
			items[i] = BatchItem{Request: req, Result: res, Err: err}
			if err != nil {
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait()
	return items
}
