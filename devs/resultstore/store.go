// Package resultstore persists experiment run outcomes — the per-model,
// per-observer Finish results a devs.Experiment produces — so a run's
// results survive past the process that produced them and can be queried
// across variants and iterations.
package resultstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/quaylabs/devsim/devs"
)

// ErrNotFound is returned when a requested run has no stored results.
var ErrNotFound = errors.New("resultstore: not found")

// Record is one (variant, iteration, model, observer) result row.
type Record struct {
	Variant   uint64
	Iteration uint64
	Model     string
	Observer  string
	Result    json.RawMessage
}

// Store persists and retrieves RunOutcome results for one experiment.
//
// Implementations: SQLiteStore (single-process, file-backed; cmd/devsim
// uses it in both single and multi mode) and MySQLStore (shared, for
// workers that may span processes or machines).
type Store interface {
	// SaveOutcome persists every result a single run produced. Results
	// that don't JSON-marshal are skipped and their marshal errors are not
	// reported; the run's other results are still saved.
	SaveOutcome(ctx context.Context, outcome devs.RunOutcome) error

	// LoadVariant retrieves every stored record for one variant across
	// all its iterations, ordered by iteration then model then observer.
	LoadVariant(ctx context.Context, variant uint64) ([]Record, error)

	Close() error
}

func toRecords(outcome devs.RunOutcome) ([]Record, []error) {
	var records []Record
	var errs []error
	for model, byObserver := range outcome.Result.Models {
		for observer, result := range byObserver {
			data, err := json.Marshal(result)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			records = append(records, Record{
				Variant:   outcome.Variant,
				Iteration: outcome.Iteration,
				Model:     model,
				Observer:  observer,
				Result:    data,
			})
		}
	}
	return records, errs
}
