// Package store keeps a history of score runs so results can be listed,
// exported and audited after the fact.
package store

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/coronary-score-server/internal/domain"
)

// Run is one scored standard for one patient.
type Run struct {
	ID             string            `json:"id"`
	PatientID      string            `json:"patient_id"`
	Calculator     domain.Calculator `json:"calculator"`
	TotalScore     float64           `json:"total_score"`
	Classification string            `json:"classification"`
	Result         json.RawMessage   `json:"result"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Store defines the interface for score-run storage operations.
type Store interface {
	// Save stores a run. An empty ID is filled with a new UUID.
	Save(ctx context.Context, run *Run) error

	// Get retrieves a run by ID, or nil when absent.
	Get(ctx context.Context, id string) (*Run, error)

	// ListByPatient returns a patient's runs, newest first.
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Run, error)

	// List returns all runs with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Run, error)

	// Count returns the total number of runs.
	Count(ctx context.Context) (int64, error)

	// Delete removes a run by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all runs to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports runs from a JSON reader, skipping IDs already present.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// RunExport represents the JSON export format.
type RunExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Runs       []*Run    `json:"runs"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// RunsFromBundle flattens a score bundle into one run per included standard.
func RunsFromBundle(b *domain.ScoreBundle) ([]*Run, error) {
	var runs []*Run
	add := func(calc domain.Calculator, total float64, class string, report any) error {
		raw, err := json.Marshal(report)
		if err != nil {
			return err
		}
		runs = append(runs, &Run{
			ID:             uuid.NewString(),
			PatientID:      b.PatientID,
			Calculator:     calc,
			TotalScore:     total,
			Classification: class,
			Result:         raw,
			CreatedAt:      b.ScoredAt,
		})
		return nil
	}

	if b.Syntax != nil {
		r := b.Syntax.Result
		if err := add(domain.CalculatorSyntax, r.TotalScore, string(r.RiskCategory), b.Syntax); err != nil {
			return nil, err
		}
	}
	if b.Gensini != nil {
		r := b.Gensini.Result
		if err := add(domain.CalculatorGensini, r.TotalScore, string(r.Severity), b.Gensini); err != nil {
			return nil, err
		}
	}
	if b.CadRads != nil {
		r := b.CadRads.Result
		if err := add(domain.CalculatorCadRads, float64(r.OverallGrade), r.Label, b.CadRads); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func prepare(run *Run) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Result) == 0 {
		run.Result = json.RawMessage("{}")
	}
}

func writeExport(writer io.Writer, runs []*Run) error {
	export := &RunExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(runs),
		Runs:       runs,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importRuns(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export RunExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, err
	}

	for _, run := range export.Runs {
		if run.ID != "" {
			existing, err := s.Get(ctx, run.ID)
			if err != nil {
				return imported, skipped, err
			}
			if existing != nil {
				skipped++
				continue
			}
		}
		if err := s.Save(ctx, run); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}
