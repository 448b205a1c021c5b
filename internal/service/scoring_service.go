package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coronary-score-server/internal/cache"
	"github.com/coronary-score-server/internal/domain"
	"github.com/coronary-score-server/internal/store"
	"github.com/coronary-score-server/internal/validation"
)

// RunRecorder persists score runs. store.Store satisfies it.
type RunRecorder interface {
	Save(ctx context.Context, run *store.Run) error
}

// ScoringService orchestrates validation, the three scorers, report
// assembly, the result cache and run recording.
type ScoringService struct {
	logger    *logrus.Logger
	syntax    *SyntaxScorer
	gensini   *GensiniScorer
	cadrads   *CadRadsScorer
	reports   *ReportAssembler
	cache     *cache.ResultCache
	recorder  RunRecorder
	config    domain.ScoringConfig
	dominance domain.Dominance
}

// NewScoringService creates a scoring service. results and recorder may be
// nil, which disables caching and run recording respectively.
func NewScoringService(
	logger *logrus.Logger,
	results *cache.ResultCache,
	recorder RunRecorder,
	config domain.ScoringConfig,
) (*ScoringService, error) {
	dominant, err := domain.ParseDominance(config.DefaultDominance)
	if err != nil {
		return nil, fmt.Errorf("invalid default dominance: %w", err)
	}
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = 4
	}

	return &ScoringService{
		logger:    logger,
		syntax:    NewSyntaxScorer(),
		gensini:   NewGensiniScorer(),
		cadrads:   NewCadRadsScorer(),
		reports:   NewReportAssembler(),
		cache:     results,
		recorder:  recorder,
		config:    config,
		dominance: dominant,
	}, nil
}

// ScoreSyntax scores the SYNTAX standard only.
func (s *ScoringService) ScoreSyntax(ctx context.Context, p *domain.PatientRecord) (*domain.SyntaxReport, error) {
	b, err := s.Score(ctx, p, domain.CalculatorSyntax)
	if err != nil {
		return nil, err
	}
	return b.Syntax, nil
}

// ScoreGensini scores the Gensini standard only.
func (s *ScoringService) ScoreGensini(ctx context.Context, p *domain.PatientRecord) (*domain.GensiniReport, error) {
	b, err := s.Score(ctx, p, domain.CalculatorGensini)
	if err != nil {
		return nil, err
	}
	return b.Gensini, nil
}

// ScoreCadRads scores the CAD-RADS standard only.
func (s *ScoringService) ScoreCadRads(ctx context.Context, p *domain.PatientRecord) (*domain.CadRadsReport, error) {
	b, err := s.Score(ctx, p, domain.CalculatorCadRads)
	if err != nil {
		return nil, err
	}
	return b.CadRads, nil
}

// ScoreAll scores all three standards.
func (s *ScoringService) ScoreAll(ctx context.Context, p *domain.PatientRecord) (*domain.ScoreBundle, error) {
	return s.Score(ctx, p, domain.CalculatorAll)
}

// Score runs the requested standards for one patient. Patient-level field
// errors abort scoring; lesion-level problems surface as warnings.
func (s *ScoringService) Score(ctx context.Context, p *domain.PatientRecord, calc domain.Calculator) (*domain.ScoreBundle, error) {
	if p == nil {
		return nil, domain.NewValidationError("patient", "patient record is required", nil)
	}
	parsed, err := domain.ParseCalculator(string(calc))
	if err != nil {
		return nil, domain.NewValidationError("calculator", err.Error(), calc)
	}
	calc = parsed
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validation.CheckPatientFields(p); err != nil {
		s.logger.WithFields(logrus.Fields{
			"patient_id": p.Label(),
			"error":      err.Error(),
		}).Warn("Patient rejected before scoring")
		return nil, err
	}

	patient := s.withDefaults(p)
	startTime := time.Now()

	key := ""
	if s.cache != nil {
		if key, err = cache.Key(patient, calc); err != nil {
			s.logger.WithError(err).Warn("Failed to derive cache key, scoring without cache")
		} else if cached, ok := s.cache.Get(ctx, key); ok {
			s.logger.WithFields(logrus.Fields{
				"patient_id": patient.Label(),
				"calculator": calc,
			}).Debug("Score served from cache")
			return cached, nil
		}
	}

	bundle := s.compute(patient, calc)

	if key != "" {
		s.cache.Set(ctx, key, bundle)
	}
	s.record(ctx, bundle)

	fields := logrus.Fields{
		"patient_id":      patient.Label(),
		"calculator":      calc,
		"lesions":         len(patient.Lesions),
		"warnings":        len(bundle.Warnings()),
		"processing_time": time.Since(startTime),
	}
	if bundle.Syntax != nil {
		fields["syntax"] = bundle.Syntax.Result.TotalScore
	}
	if bundle.Gensini != nil {
		fields["gensini"] = bundle.Gensini.Result.TotalScore
	}
	if bundle.CadRads != nil {
		fields["cadrads"] = bundle.CadRads.Result.Label
	}
	s.logger.WithFields(fields).Info("Patient scoring completed")

	return bundle, nil
}

func (s *ScoringService) compute(p *domain.PatientRecord, calc domain.Calculator) *domain.ScoreBundle {
	bundle := &domain.ScoreBundle{
		PatientID: p.ID,
		ScoredAt:  time.Now().UTC(),
	}
	for _, c := range calc.Expand() {
		switch c {
		case domain.CalculatorSyntax:
			bundle.Syntax = s.reports.SyntaxReport(p, s.syntax.Score(p))
		case domain.CalculatorGensini:
			bundle.Gensini = s.reports.GensiniReport(p, s.gensini.Score(p))
		case domain.CalculatorCadRads:
			bundle.CadRads = s.reports.CadRadsReport(p, s.cadrads.Score(p))
		}
	}
	return bundle
}

// withDefaults returns p, or a shallow copy carrying the configured default
// dominance when p names none. The caller's record is never modified.
func (s *ScoringService) withDefaults(p *domain.PatientRecord) *domain.PatientRecord {
	if p.Dominance != "" {
		return p
	}
	cp := *p
	cp.Dominance = s.dominance
	return &cp
}

func (s *ScoringService) record(ctx context.Context, bundle *domain.ScoreBundle) {
	if s.recorder == nil {
		return
	}
	runs, err := store.RunsFromBundle(bundle)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode score runs")
		return
	}
	for _, run := range runs {
		if err := s.recorder.Save(ctx, run); err != nil {
			s.logger.WithFields(logrus.Fields{
				"patient_id": bundle.PatientID,
				"calculator": run.Calculator,
				"error":      err.Error(),
			}).Warn("Failed to record score run")
		}
	}
}

// Validate runs full upstream validation without scoring.
func (s *ScoringService) Validate(p *domain.PatientRecord) *validation.Report {
	return validation.NewValidator(s.logger).Validate(p)
}
