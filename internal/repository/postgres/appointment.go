package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/pkg/errors"
)

const appointmentColumns = `
	id, patient_id, doctor_id, doctor_name, patient_name,
	appointment_date, time_slot, status, symptoms, prescription,
	created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, doctor_name, patient_name,
			appointment_date, time_slot, status, symptoms, prescription,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := q(ctx, r.db).ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.DoctorName,
		appointment.PatientName,
		appointment.AppointmentDate,
		appointment.TimeSlot,
		appointment.Status,
		appointment.Symptoms,
		appointment.Prescription,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the appointment row for the rest of the ambient
// transaction. The engine takes this lock before mutating an appointment
// or issuing a bill against it, which serializes concurrent visit
// completions on the same appointment.
func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *appointmentRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1` + suffix

	var appointment model.Appointment
	err := sqlx.GetContext(ctx, q(ctx, r.db), &appointment, query, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("appointment")
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// Update refuses to touch a row that was cancelled underneath the caller.
// Zero rows affected means the appointment vanished or was cancelled
// concurrently, and both read as a conflict to the retry loop.
func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, symptoms = $2, prescription = $3, updated_at = $4
		WHERE id = $5 AND status <> $6
	`
	appointment.UpdatedAt = time.Now()

	result, err := q(ctx, r.db).ExecContext(ctx, query,
		appointment.Status,
		appointment.Symptoms,
		appointment.Prescription,
		appointment.UpdatedAt,
		appointment.ID,
		model.AppointmentStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.Conflict("appointment was cancelled or removed concurrently", nil)
	}
	return nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date ASC, time_slot ASC`

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, q(ctx, r.db), &appointments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY appointment_date ASC, time_slot ASC`

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, q(ctx, r.db), &appointments, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q(ctx, r.db), &count,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, fmt.Errorf("failed to count patient appointments: %w", err)
	}
	return count, nil
}
