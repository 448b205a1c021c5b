package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/coronary-score-server/internal/domain"
)

const uniqueViolation = "23505"

// PatientRepository handles patient record persistence
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

// lesionAttributes holds the lesion fields kept in the JSONB column.
type lesionAttributes struct {
	IsBifurcation           bool     `json:"is_bifurcation,omitempty"`
	IsOstial                bool     `json:"is_ostial,omitempty"`
	IsCalcified             bool     `json:"is_calcified,omitempty"`
	IsTortuous              bool     `json:"is_tortuous,omitempty"`
	IsCTO                   bool     `json:"is_cto,omitempty"`
	ThrombusPresent         bool     `json:"thrombus_present,omitempty"`
	IsTreated               bool     `json:"is_treated,omitempty"`
	TreatmentMethod         string   `json:"treatment_method,omitempty"`
	OcclusionOver3Months    bool     `json:"occlusion_over_3_months,omitempty"`
	BluntStump              bool     `json:"blunt_stump,omitempty"`
	BridgingCollaterals     bool     `json:"bridging_collaterals,omitempty"`
	FirstSegmentInvisible   bool     `json:"first_segment_invisible,omitempty"`
	SideBranchesAtOcclusion int      `json:"side_branches_at_occlusion,omitempty"`
	TrifurcationSegments    int      `json:"trifurcation_diseased_segments,omitempty"`
	DiffuseSmallVessel      int      `json:"diffuse_small_vessel_segments,omitempty"`
	Medina                  string   `json:"medina,omitempty"`
	BifurcationAngleDeg     *float64 `json:"bifurcation_angle_deg,omitempty"`
	NonDiagnostic           bool     `json:"non_diagnostic,omitempty"`
}

func attributesOf(l domain.Lesion) lesionAttributes {
	return lesionAttributes{
		IsBifurcation:           l.IsBifurcation,
		IsOstial:                l.IsOstial,
		IsCalcified:             l.IsCalcified,
		IsTortuous:              l.IsTortuous,
		IsCTO:                   l.IsCTO,
		ThrombusPresent:         l.ThrombusPresent,
		IsTreated:               l.IsTreated,
		TreatmentMethod:         l.TreatmentMethod,
		OcclusionOver3Months:    l.OcclusionOver3Months,
		BluntStump:              l.BluntStump,
		BridgingCollaterals:     l.BridgingCollaterals,
		FirstSegmentInvisible:   l.FirstSegmentInvisible,
		SideBranchesAtOcclusion: l.SideBranchesAtOcclusion,
		TrifurcationSegments:    l.TrifurcationSegments,
		DiffuseSmallVessel:      l.DiffuseSmallVessel,
		Medina:                  l.Medina,
		BifurcationAngleDeg:     l.BifurcationAngleDeg,
		NonDiagnostic:           l.NonDiagnostic,
	}
}

func (a lesionAttributes) applyTo(l *domain.Lesion) {
	l.IsBifurcation = a.IsBifurcation
	l.IsOstial = a.IsOstial
	l.IsCalcified = a.IsCalcified
	l.IsTortuous = a.IsTortuous
	l.IsCTO = a.IsCTO
	l.ThrombusPresent = a.ThrombusPresent
	l.IsTreated = a.IsTreated
	l.TreatmentMethod = a.TreatmentMethod
	l.OcclusionOver3Months = a.OcclusionOver3Months
	l.BluntStump = a.BluntStump
	l.BridgingCollaterals = a.BridgingCollaterals
	l.FirstSegmentInvisible = a.FirstSegmentInvisible
	l.SideBranchesAtOcclusion = a.SideBranchesAtOcclusion
	l.TrifurcationSegments = a.TrifurcationSegments
	l.DiffuseSmallVessel = a.DiffuseSmallVessel
	l.Medina = a.Medina
	l.BifurcationAngleDeg = a.BifurcationAngleDeg
	l.NonDiagnostic = a.NonDiagnostic
}

// Create inserts a patient and its lesions in one transaction. An empty ID
// is filled with a new UUID.
func (r *PatientRepository) Create(ctx context.Context, patient *domain.PatientRecord) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (
				id, age, sex, dominance, diabetes, hypertension, hyperlipidemia,
				smoking, family_history, creatinine_mg_dl, ldl_cholesterol,
				ejection_fraction, examination_date, examination_type
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			patient.ID,
			patient.Age,
			string(patient.Sex),
			string(patient.Dominance),
			patient.Diabetes,
			patient.Hypertension,
			patient.Hyperlipidemia,
			patient.Smoking,
			patient.FamilyHistory,
			patient.CreatinineMgDL,
			patient.LDLCholesterol,
			patient.EjectionFrac,
			patient.ExaminationDate,
			patient.ExaminationType,
		)
		if err != nil {
			return err
		}

		for i, l := range patient.Lesions {
			attrs, err := json.Marshal(attributesOf(l))
			if err != nil {
				return fmt.Errorf("encoding lesion attributes: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO lesions (
					id, patient_id, position, lesion_id, vessel, segment_id,
					stenosis_percent, location, length_mm, morphology, attributes
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				uuid.New(),
				patient.ID,
				i,
				l.ID,
				string(l.Vessel),
				l.SegmentID,
				l.StenosisPercent,
				string(l.Location),
				l.LengthMM,
				string(l.Morphology),
				attrs,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("patient %s: %w", patient.ID, domain.ErrRecordExists)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": patient.ID,
			"error":      err,
		}).Error("Failed to create patient")
		return fmt.Errorf("creating patient: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": patient.ID,
		"lesions":    len(patient.Lesions),
	}).Info("Patient created successfully")

	return nil
}

const selectPatient = `
	SELECT id, age, sex, dominance, diabetes, hypertension, hyperlipidemia,
		   smoking, family_history, creatinine_mg_dl, ldl_cholesterol,
		   ejection_fraction, examination_date, examination_type
	FROM patients`

func scanPatient(row pgx.Row) (*domain.PatientRecord, error) {
	var p domain.PatientRecord
	var sex, dominance string
	err := row.Scan(
		&p.ID,
		&p.Age,
		&sex,
		&dominance,
		&p.Diabetes,
		&p.Hypertension,
		&p.Hyperlipidemia,
		&p.Smoking,
		&p.FamilyHistory,
		&p.CreatinineMgDL,
		&p.LDLCholesterol,
		&p.EjectionFrac,
		&p.ExaminationDate,
		&p.ExaminationType,
	)
	if err != nil {
		return nil, err
	}
	p.Sex = domain.Sex(sex)
	p.Dominance = domain.Dominance(dominance)
	p.Lesions = []domain.Lesion{}
	return &p, nil
}

// GetByID retrieves a patient and its lesions
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*domain.PatientRecord, error) {
	patient, err := scanPatient(r.db.QueryRow(ctx, selectPatient+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %s: %w", id, domain.ErrRecordNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient by ID")
		return nil, fmt.Errorf("getting patient by ID: %w", err)
	}

	if err := r.loadLesions(ctx, []*domain.PatientRecord{patient}); err != nil {
		return nil, err
	}
	return patient, nil
}

// List retrieves patients with pagination, newest first
func (r *PatientRepository) List(ctx context.Context, limit, offset int) ([]*domain.PatientRecord, error) {
	rows, err := r.db.Query(ctx, selectPatient+` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		r.log.WithError(err).Error("Failed to list patients")
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var patients []*domain.PatientRecord
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient rows: %w", err)
	}

	if err := r.loadLesions(ctx, patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// loadLesions fills the lesions of patients with a single query.
func (r *PatientRepository) loadLesions(ctx context.Context, patients []*domain.PatientRecord) error {
	if len(patients) == 0 {
		return nil
	}
	ids := make([]string, len(patients))
	byID := make(map[string]*domain.PatientRecord, len(patients))
	for i, p := range patients {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := r.db.Query(ctx, `
		SELECT patient_id, lesion_id, vessel, segment_id, stenosis_percent,
			   location, length_mm, morphology, attributes
		FROM lesions
		WHERE patient_id = ANY($1)
		ORDER BY patient_id, position`, ids)
	if err != nil {
		return fmt.Errorf("loading lesions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			patientID, vessel, location, morphology string
			l                                       domain.Lesion
			attrs                                   []byte
		)
		if err := rows.Scan(&patientID, &l.ID, &vessel, &l.SegmentID, &l.StenosisPercent,
			&location, &l.LengthMM, &morphology, &attrs); err != nil {
			return fmt.Errorf("scanning lesion row: %w", err)
		}
		l.Vessel = domain.Vessel(vessel)
		l.Location = domain.Location(location)
		l.Morphology = domain.Morphology(morphology)

		var a lesionAttributes
		if err := json.Unmarshal(attrs, &a); err != nil {
			return fmt.Errorf("decoding lesion attributes: %w", err)
		}
		a.applyTo(&l)

		if p, ok := byID[patientID]; ok {
			p.Lesions = append(p.Lesions, l)
		}
	}
	return rows.Err()
}

// Delete removes a patient; its lesions go with it
func (r *PatientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to delete patient")
		return fmt.Errorf("deleting patient: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("patient %s: %w", id, domain.ErrRecordNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": id,
	}).Info("Patient deleted successfully")

	return nil
}

var _ domain.PatientRepository = (*PatientRepository)(nil)
