package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a scheduled or past visit between one patient and one
// doctor. DoctorName and PatientName are snapshots taken at booking time;
// they are never resynced and exist so bills can be matched back to the
// appointment even when the source records change.
type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	DoctorName      string            `db:"doctor_name" json:"doctor_name"`
	PatientName     string            `db:"patient_name" json:"patient_name"`
	AppointmentDate time.Time         `db:"appointment_date" json:"appointment_date"`
	TimeSlot        string            `db:"time_slot" json:"time_slot"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Symptoms        string            `db:"symptoms" json:"symptoms,omitempty"`
	Prescription    string            `db:"prescription" json:"prescription,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

type BookAppointmentRequest struct {
	DoctorID        string    `json:"doctor_id" validate:"required,uuid"`
	AppointmentDate time.Time `json:"appointment_date" validate:"required"`
	TimeSlot        string    `json:"time_slot" validate:"required"`
	Symptoms        string    `json:"symptoms" validate:"max=2000"`
	PatientName     string    `json:"patient_name" validate:"max=200"`
}
