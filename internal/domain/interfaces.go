package domain

import (
	"context"
)

// PatientScorer is the orchestration surface shared by the CLI, HTTP and MCP
// front ends.
type PatientScorer interface {
	Score(ctx context.Context, patient *PatientRecord, calc Calculator) (*ScoreBundle, error)
	ScoreBatch(ctx context.Context, patients []PatientRecord, calc Calculator) []BatchItem
}

// BatchItem is the outcome of one patient in a batch. Exactly one of Bundle
// and Err is set.
type BatchItem struct {
	Index     int          `json:"index"`
	PatientID string       `json:"patient_id,omitempty"`
	Bundle    *ScoreBundle `json:"result,omitempty"`
	Err       error        `json:"-"`
	Error     string       `json:"error,omitempty"`
}

// PatientRepository defines the interface for patient record persistence
type PatientRepository interface {
	Create(ctx context.Context, patient *PatientRecord) error
	GetByID(ctx context.Context, id string) (*PatientRecord, error)
	List(ctx context.Context, limit, offset int) ([]*PatientRecord, error)
	Delete(ctx context.Context, id string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
