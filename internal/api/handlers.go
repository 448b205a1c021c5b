package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coronary-score-server/internal/catalog"
	"github.com/coronary-score-server/internal/dataio"
	"github.com/coronary-score-server/internal/domain"
	"github.com/coronary-score-server/internal/middleware"
	"github.com/coronary-score-server/internal/store"
)

const (
	maxBodyBytes    = 10 << 20
	defaultPageSize = 50
	maxPageSize     = 500
)

// BatchResponse is the body returned by the batch endpoint.
type BatchResponse struct {
	Count      int                `json:"count"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Items      []domain.BatchItem `json:"items"`
}

// RunsResponse is one page of score-run history.
type RunsResponse struct {
	Total  int64        `json:"total,omitempty"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Runs   []*store.Run `json:"runs"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	components := make(map[string]string, len(s.health))
	for _, h := range s.health {
		if err := h.Check(ctx); err != nil {
			components[h.Name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[h.Name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"components": components,
	})
}

// readPatient decodes one patient, accepting the same aliases as file import.
func readPatient(c *gin.Context) (*domain.PatientRecord, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	return parsePatient("request", body)
}

// parsePatient decodes exactly one patient record. ParseJSON also accepts
// arrays, so an empty or multi-record array is rejected here.
func parsePatient(name string, raw []byte) (*domain.PatientRecord, error) {
	patients, err := dataio.ParseJSON(name, raw)
	if err != nil {
		return nil, err
	}
	if len(patients) != 1 {
		return nil, domain.NewValidationError("body", "expected a single patient object", len(patients))
	}
	return &patients[0], nil
}

func calculatorParam(raw string) (domain.Calculator, error) {
	if raw == "" {
		return domain.CalculatorAll, nil
	}
	calc, err := domain.ParseCalculator(raw)
	if err != nil {
		return "", domain.NewValidationError("calculator", err.Error(), raw)
	}
	return calc, nil
}

func (s *Server) handleScore(c *gin.Context) {
	calc, err := calculatorParam(c.Param("calculator"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	patient, err := readPatient(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	bundle, err := s.scoring.Score(c.Request.Context(), patient, calc)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleBatch(c *gin.Context) {
	calc, err := calculatorParam(c.Query("calculator"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		s.writeError(c, err)
		return
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		s.writeError(c, domain.NewValidationError("body", "expected an array of patients", err.Error()))
		return
	}
	if limit := s.configManager.GetServerConfig().MaxBatchSize; limit > 0 && len(raws) > limit {
		s.writeError(c, domain.NewValidationError("body", fmt.Sprintf("batch exceeds %d patients", limit), len(raws)))
		return
	}

	// Records that fail to decode become failed items; the rest are scored.
	items := make([]domain.BatchItem, len(raws))
	var (
		patients []domain.PatientRecord
		indexes  []int
	)
	for i, raw := range raws {
		patient, err := parsePatient(fmt.Sprintf("item %d", i), raw)
		if err != nil {
			items[i] = domain.BatchItem{Index: i, Err: err, Error: err.Error()}
			continue
		}
		patients = append(patients, *patient)
		indexes = append(indexes, i)
	}
	for j, item := range s.scoring.ScoreBatch(c.Request.Context(), patients, calc) {
		item.Index = indexes[j]
		items[indexes[j]] = item
	}

	resp := BatchResponse{Count: len(items), Items: items}
	for _, item := range items {
		if item.Bundle != nil {
			resp.Successful++
		} else {
			resp.Failed++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleValidate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	patient, err := readPatient(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.scoring.Validate(patient))
}

func (s *Server) handleSegments(c *gin.Context) {
	dominance, err := domain.ParseDominance(c.Query("dominance"))
	if err != nil {
		s.writeError(c, domain.NewValidationError("dominance", err.Error(), c.Query("dominance")))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dominance": dominance,
		"segments":  catalog.List(dominance),
	})
}

func (s *Server) requireRuns(c *gin.Context) {
	if s.runs == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrUnavailable, "Score-run history is disabled", "", c.GetString(middleware.CorrelationKey)))
		return
	}
	c.Next()
}

func (s *Server) requirePatients(c *gin.Context) {
	if s.patients == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrUnavailable, "Patient storage requires a configured database", "", c.GetString(middleware.CorrelationKey)))
		return
	}
	c.Next()
}

func pagination(c *gin.Context) (int, int, error) {
	limit, offset := defaultPageSize, 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, 0, domain.NewValidationError("limit", "must be a positive integer", raw)
		}
		limit = min(n, maxPageSize)
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, domain.NewValidationError("offset", "must be a non-negative integer", raw)
		}
		offset = n
	}
	return limit, offset, nil
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	ctx := c.Request.Context()

	resp := RunsResponse{Limit: limit, Offset: offset}
	if patientID := c.Query("patient_id"); patientID != "" {
		resp.Runs, err = s.runs.ListByPatient(ctx, patientID, limit, offset)
	} else {
		resp.Runs, err = s.runs.List(ctx, limit, offset)
		if err == nil {
			resp.Total, err = s.runs.Count(ctx)
		}
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	if resp.Runs == nil {
		resp.Runs = []*store.Run{}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if run == nil {
		s.writeError(c, fmt.Errorf("run %s: %w", c.Param("id"), domain.ErrRecordNotFound))
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := s.runs.Get(ctx, c.Param("id"))
	if err == nil && run == nil {
		err = fmt.Errorf("run %s: %w", c.Param("id"), domain.ErrRecordNotFound)
	}
	if err == nil {
		err = s.runs.Delete(ctx, run.ID)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreatePatient(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	patient, err := readPatient(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if report := s.scoring.Validate(patient); !report.Valid {
		c.JSON(http.StatusUnprocessableEntity, report)
		return
	}
	if err := s.patients.Create(c.Request.Context(), patient); err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Location", "/api/v1/patients/"+patient.ID)
	c.JSON(http.StatusCreated, patient)
}

func (s *Server) handleListPatients(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	patients, err := s.patients.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if patients == nil {
		patients = []*domain.PatientRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"limit": limit, "offset": offset, "patients": patients})
}

func (s *Server) handleGetPatient(c *gin.Context) {
	patient, err := s.patients.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (s *Server) handleDeletePatient(c *gin.Context) {
	if err := s.patients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleScoreStoredPatient(c *gin.Context) {
	calc, err := calculatorParam(c.Query("calculator"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	patient, err := s.patients.GetByID(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	bundle, err := s.scoring.Score(ctx, patient, calc)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// writeError maps domain errors onto status codes and the APIError envelope.
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationKey)

	var (
		validationErr *domain.ValidationError
		patientErr    *domain.PatientError
		importErr     *domain.ImportError
		maxBytesErr   *http.MaxBytesError
	)
	status, code := http.StatusInternalServerError, domain.ErrInternalServer
	message := "Internal server error"

	switch {
	case errors.As(err, &patientErr):
		status, code, message = http.StatusUnprocessableEntity, domain.ErrValidation, "Patient cannot be scored"
	case errors.As(err, &importErr):
		status, code, message = http.StatusBadRequest, domain.ErrImport, "Invalid patient record"
	case errors.As(err, &validationErr):
		status, code, message = http.StatusBadRequest, domain.ErrValidation, "Invalid request"
	case errors.As(err, &maxBytesErr):
		status, code, message = http.StatusRequestEntityTooLarge, domain.ErrInvalidInput, "Request body too large"
	case errors.Is(err, domain.ErrRecordNotFound):
		status, code, message = http.StatusNotFound, domain.ErrNotFound, "Record not found"
	case errors.Is(err, domain.ErrRecordExists):
		status, code, message = http.StatusConflict, domain.ErrConflict, "Record already exists"
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, domain.ErrUnavailable, "Request timed out"
	}

	details := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
		details = ""
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, requestID))
}
