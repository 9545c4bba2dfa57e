package browser

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MaxBatchOps bounds one Execute call.
const MaxBatchOps = 10

// Op is one page operation in a batch. Extract is the only action the
// research core requires; screenshot and pdf are opt-in extras.
type Op struct {
	URL              string `json:"url"`
	Extract          bool   `json:"extract"`
	Screenshot       bool   `json:"screenshot"`
	PDF              bool   `json:"pdf"`
	InterceptNetwork bool   `json:"intercept_network"`
}

// OpResult is the outcome of one batch operation. Error is set when the op
// failed; the rest of the batch is unaffected.
type OpResult struct {
	URL        string     `json:"url"`
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content,omitempty"`
	Fragments  []Fragment `json:"fragments,omitempty"`
	Screenshot []byte     `json:"screenshot,omitempty"`
	PDF        []byte     `json:"pdf,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Execute runs up to MaxBatchOps operations through a worker group bounded
// by the pool's MaxConcurrency. A single op failure never aborts the batch;
// it is recorded in that op's result.
func (p *Pool) Execute(ctx context.Context, ops []Op) ([]OpResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	if len(ops) > MaxBatchOps {
		return nil, fmt.Errorf("batch of %d exceeds limit of %d", len(ops), MaxBatchOps)
	}

	results := make([]OpResult, len(ops))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.config.MaxConcurrency)

	for i, op := range ops {
		group.Go(func() error {
			results[i] = p.runOp(groupCtx, op)
			return nil // op failures stay in the result row
		})
	}
	_ = group.Wait()
	return results, nil
}

func (p *Pool) runOp(ctx context.Context, op Op) OpResult {
	result := OpResult{URL: op.URL}
	if op.URL == "" {
		result.Error = "op has no url"
		return result
	}
	if op.InterceptNetwork {
		result.Error = "intercept_network is not supported"
		return result
	}

	err := p.WithView(ctx, CategoryEvidence, func(v View) error {
		p.softLoad(ctx, v, op.URL)

		if title, err := v.Title(ctx); err == nil {
			result.Title = title
		}
		if op.Extract {
			text, err := v.Text(ctx)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			result.Content = Compress(text, p.config.MaxContentChars)

			if html, err := v.HTML(ctx); err == nil {
				if fragments, err := ExtractFragments(html); err == nil {
					result.Fragments = fragments
				}
			}
		}
		if op.Screenshot {
			data, err := v.Screenshot(ctx)
			if err != nil {
				return fmt.Errorf("screenshot: %w", err)
			}
			result.Screenshot = data
		}
		if op.PDF {
			data, err := v.PDF(ctx)
			if err != nil {
				return fmt.Errorf("pdf: %w", err)
			}
			result.PDF = data
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
	}
	return result
}
