package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
)

// hashWorkers bounds the fan-out for key computation. Hashing is cheap per
// row; the pool exists so hundred-thousand-row files don't serialize on one
// core.
const hashWorkers = 8

// Keys computes idempotency keys for every draft that is not skipped, fanning
// out across a worker pool and fanning back in before returning. The result
// maps draft row index to key. Order independence is safe: each key depends
// only on its own row.
func Keys(ctx context.Context, drafts []activity.Draft) map[int]string {
	type keyed struct {
		row int
		key string
	}

	workers := hashWorkers
	if len(drafts) < workers {
		workers = len(drafts)
	}
	if workers == 0 {
		return map[int]string{}
	}

	jobs := make(chan int)
	results := make(chan keyed)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- keyed{row: drafts[idx].RowIndex, key: FromDraft(drafts[idx]).Key()}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range drafts {
			if drafts[i].Status == activity.StatusSkipped {
				continue
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	keys := make(map[int]string, len(drafts))
	for r := range results {
		keys[r.row] = r.key
	}
	return keys
}

// Ledger is the slice of the ledger client the checker needs: one batched
// lookup from idempotency key to existing activity id.
type Ledger interface {
	CheckExistingDuplicates(ctx context.Context, keys []string) (map[string]string, error)
}

// Checker cross-references draft keys against the ledger's existing-hash
// index.
type Checker struct {
	ledger Ledger
	logger *slog.Logger
}

// NewChecker creates a duplicate checker over a ledger client.
func NewChecker(ledger Ledger, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{ledger: ledger, logger: logger}
}

// MarkDuplicates computes keys for all non-skipped drafts, batches them into
// one ledger lookup, and returns a new draft slice where found rows carry
// status duplicate and the existing record's id. Duplicate status is
// advisory: the review step can still force such a row into the commit set.
// The returned key map feeds the wizard's duplicates view.
func (c *Checker) MarkDuplicates(ctx context.Context, drafts []activity.Draft) ([]activity.Draft, map[string]string, error) {
	keysByRow := Keys(ctx, drafts)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	keys := make([]string, 0, len(keysByRow))
	seen := make(map[string]bool, len(keysByRow))
	for _, key := range keysByRow {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return append([]activity.Draft(nil), drafts...), map[string]string{}, nil
	}

	existing, err := c.ledger.CheckExistingDuplicates(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("check existing duplicates: %w", err)
	}

	out := make([]activity.Draft, len(drafts))
	marked := 0
	for i, d := range drafts {
		out[i] = d.Clone()
		key, hashed := keysByRow[d.RowIndex]
		if !hashed {
			continue
		}
		if id, dup := existing[key]; dup {
			out[i].Status = activity.StatusDuplicate
			out[i].DuplicateOfID = id
			marked++
		}
	}

	c.logger.DebugContext(ctx, "duplicate check complete",
		slog.Int("drafts", len(drafts)),
		slog.Int("keys", len(keys)),
		slog.Int("duplicates", marked),
	)
	return out, existing, nil
}
