package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coronary-score-server/internal/domain"
)

// ScoreBatch scores patients concurrently with at most BatchWorkers in
// flight. Items come back in input order and a failing patient never affects
// the others.
func (s *ScoringService) ScoreBatch(ctx context.Context, patients []domain.PatientRecord, calc domain.Calculator) []domain.BatchItem {
	items := make([]domain.BatchItem, len(patients))
	if len(patients) == 0 {
		return items
	}

	s.logger.WithFields(logrus.Fields{
		"batch_size": len(patients),
		"workers":    s.config.BatchWorkers,
		"calculator": calc,
	}).Info("Starting batch scoring")

	var g errgroup.Group
	g.SetLimit(s.config.BatchWorkers)

	for i := range patients {
		g.Go(func() error {
			p := &patients[i]
			item := domain.BatchItem{Index: i, PatientID: p.ID}

			bundle, err := s.Score(ctx, p, calc)
			if err != nil {
				item.Err = err
				item.Error = err.Error()
			} else {
				item.Bundle = bundle
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"batch_size": len(patients),
		"successful": len(patients) - failed,
		"failed":     failed,
	}).Info("Completed batch scoring")

	return items
}
