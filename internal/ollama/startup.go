package ollama

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady verifies the server is up and embedModel is installed,
// pulling it when missing. Pull progress goes to w, one line per whole
// percent change so long downloads stay readable.
func EnsureReady(ctx context.Context, c *Client, embedModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running at %s (start it with `ollama serve` or set EMBEDDING_PROVIDER=openai)", c.baseURL)
	}
	if c.HasModel(ctx, embedModel) {
		fmt.Fprintf(w, "model %s: ready\n", embedModel)
		return nil
	}

	fmt.Fprintf(w, "model %s: not installed, pulling\n", embedModel)
	last := -1
	err := c.PullModel(ctx, embedModel, func(p PullProgress) {
		if p.Total <= 0 {
			fmt.Fprintf(w, "  %s\n", p.Status)
			return
		}
		pct := int(p.Completed * 100 / p.Total)
		if pct != last {
			last = pct
			fmt.Fprintf(w, "  %s %d%%\n", p.Status, pct)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", embedModel, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", embedModel)
	return nil
}
