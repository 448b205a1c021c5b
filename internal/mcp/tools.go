package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/coronary-score-server/internal/catalog"
	"github.com/coronary-score-server/internal/dataio"
	"github.com/coronary-score-server/internal/domain"
	"github.com/coronary-score-server/internal/store"
)

// PatientParams carries one patient record in the import JSON shape.
type PatientParams struct {
	Patient map[string]any `json:"patient" jsonschema:"patient record: patient_id, age, gender, risk factors, dominance and a lesions array"`
}

// SegmentsParams defines parameters for the list_segments tool
type SegmentsParams struct {
	Dominance string `json:"dominance,omitempty" jsonschema:"right, left or balanced; defaults to right"`
}

// SegmentsResult lists the segment catalogue for one dominance.
type SegmentsResult struct {
	Dominance domain.Dominance      `json:"dominance"`
	Segments  []catalog.SegmentInfo `json:"segments"`
}

// ScoreFileParams defines parameters for the score_file tool
type ScoreFileParams struct {
	Path       string `json:"path" jsonschema:"JSON, CSV or Excel file of patient records"`
	Calculator string `json:"calculator,omitempty" jsonschema:"syntax, gensini, cadrads or all; defaults to all"`
	Output     string `json:"output,omitempty" jsonschema:"optional .json, .csv or .xlsx results file; relative paths resolve in the export directory"`
}

// ScoreFileResult summarises a scored file.
type ScoreFileResult struct {
	File       string             `json:"file"`
	Patients   int                `json:"patients"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Summary    []dataio.Summary   `json:"summary"`
	Written    []string           `json:"written,omitempty"`
	Results    []domain.BatchItem `json:"results"`
}

// RunsParams defines parameters for the list_runs tool
type RunsParams struct {
	PatientID string `json:"patient_id,omitempty" jsonschema:"only runs of this patient"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum runs to return; defaults to 20"`
}

// RunsResult is a page of recorded score runs.
type RunsResult struct {
	Total int64        `json:"total"`
	Runs  []*store.Run `json:"runs"`
}

func (s *Server) registerTools() {
	scoreTools := []struct {
		name        string
		calc        domain.Calculator
		description string
	}{
		{"score_syntax", domain.CalculatorSyntax, "Compute the SYNTAX score (anatomical, clinical and SYNTAX II) with per-lesion breakdown and risk tertile"},
		{"score_gensini", domain.CalculatorGensini, "Compute the Gensini score with per-vessel sub-scores, severity, risk assessment and prognosis"},
		{"score_cadrads", domain.CalculatorCadRads, "Grade the patient with CAD-RADS 2.0 including modifiers and management recommendation"},
		{"score_all", domain.CalculatorAll, "Run SYNTAX, CAD-RADS and Gensini for one patient"},
	}
	for _, t := range scoreTools {
		mcp.AddTool(s.mcpServer, &mcp.Tool{Name: t.name, Description: t.description},
			withDeadline(s, s.scoreHandler(t.name, t.calc)))
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_patient",
		Description: "Check a patient record for range and consistency errors without scoring it",
	}, withDeadline(s, s.handleValidatePatient))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_segments",
		Description: "List the coronary segment catalogue with SYNTAX weights for a dominance pattern",
	}, withDeadline(s, s.handleListSegments))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "score_file",
		Description: "Import patients from a JSON, CSV or Excel file, score them all and optionally export the results",
	}, withDeadline(s, s.handleScoreFile))

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_runs",
		Description: "List previously recorded score runs, newest first",
	}, withDeadline(s, s.handleListRuns))

	s.logger.WithField("tool_count", len(scoreTools)+4).Info("Successfully registered all tools")
}

// withDeadline bounds each call by the configured tool timeout.
func withDeadline[In any](s *Server, h mcp.ToolHandlerFor[In, any]) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, params In) (*mcp.CallToolResult, any, error) {
		if s.config.ToolTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.ToolTimeout)
			defer cancel()
		}
		return h(ctx, req, params)
	}
}

func patientFromParams(params PatientParams) (*domain.PatientRecord, error) {
	if params.Patient == nil {
		return nil, errors.New("patient is required")
	}
	raw, err := json.Marshal(params.Patient)
	if err != nil {
		return nil, fmt.Errorf("encoding patient: %w", err)
	}
	patients, err := dataio.ParseJSON("patient", raw)
	if err != nil {
		return nil, err
	}
	return &patients[0], nil
}

func (s *Server) scoreHandler(tool string, calc domain.Calculator) mcp.ToolHandlerFor[PatientParams, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, params PatientParams) (*mcp.CallToolResult, any, error) {
		s.logger.WithField("tool", tool).Info("Tool invoked")

		patient, err := patientFromParams(params)
		if err != nil {
			return nil, nil, err
		}
		bundle, err := s.scoring.Score(ctx, patient, calc)
		if err != nil {
			return nil, nil, err
		}
		return nil, bundle, nil
	}
}

func (s *Server) handleValidatePatient(ctx context.Context, req *mcp.CallToolRequest, params PatientParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "validate_patient").Info("Tool invoked")

	patient, err := patientFromParams(params)
	if err != nil {
		return nil, nil, err
	}
	return nil, s.scoring.Validate(patient), nil
}

func (s *Server) handleListSegments(ctx context.Context, req *mcp.CallToolRequest, params SegmentsParams) (*mcp.CallToolResult, any, error) {
	dominance, err := domain.ParseDominance(params.Dominance)
	if err != nil {
		return nil, nil, err
	}
	return nil, SegmentsResult{Dominance: dominance, Segments: catalog.List(dominance)}, nil
}

func (s *Server) handleScoreFile(ctx context.Context, req *mcp.CallToolRequest, params ScoreFileParams) (*mcp.CallToolResult, any, error) {
	startTime := time.Now()
	if params.Path == "" {
		return nil, nil, errors.New("path is required")
	}
	calc, err := domain.ParseCalculator(params.Calculator)
	if err != nil {
		return nil, nil, err
	}

	patients, err := s.importer.ImportFile(params.Path)
	if err != nil {
		return nil, nil, err
	}
	items := s.scoring.ScoreBatch(ctx, patients, calc)

	result := ScoreFileResult{
		File:     params.Path,
		Patients: len(items),
		Summary:  dataio.Summarize(items),
		Results:  items,
	}
	for i := range items {
		if items[i].Err != nil {
			result.Failed++
			continue
		}
		result.Successful++
	}

	if params.Output != "" {
		output := params.Output
		if !filepath.IsAbs(output) {
			output = filepath.Join(s.config.ExportDir(), output)
		}
		written, err := dataio.ExportResults(output, items)
		if err != nil {
			return nil, nil, fmt.Errorf("exporting results: %w", err)
		}
		result.Written = written
	}

	s.logger.WithFields(logrus.Fields{
		"tool":            "score_file",
		"file":            params.Path,
		"patients":        result.Patients,
		"failed":          result.Failed,
		"processing_time": time.Since(startTime),
	}).Info("File scoring completed")
	return nil, result, nil
}

func (s *Server) handleListRuns(ctx context.Context, req *mcp.CallToolRequest, params RunsParams) (*mcp.CallToolResult, any, error) {
	if s.runs == nil {
		return nil, nil, errors.New("score-run history is disabled (CORONARY_RECORD_RUNS=false)")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		result RunsResult
		err    error
	)
	if params.PatientID != "" {
		result.Runs, err = s.runs.ListByPatient(ctx, params.PatientID, limit, 0)
	} else {
		result.Runs, err = s.runs.List(ctx, limit, 0)
	}
	if err != nil {
		return nil, nil, err
	}
	if result.Total, err = s.runs.Count(ctx); err != nil {
		return nil, nil, err
	}
	if result.Runs == nil {
		result.Runs = []*store.Run{}
	}
	return nil, result, nil
}
