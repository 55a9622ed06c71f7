package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/repository"
	"github.com/clinicdesk/clinic-api/pkg/errors"
)

type Service struct {
	repo     repository.AppointmentRepository
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
}

func NewService(repo repository.AppointmentRepository, doctors repository.DoctorRepository, patients repository.PatientRepository) *Service {
	return &Service{repo: repo, doctors: doctors, patients: patients}
}

// Book creates a pending appointment for the acting patient with an
// available doctor. Doctor and patient names are copied onto the record as
// booking-time snapshots.
func (s *Service) Book(ctx context.Context, actor model.Actor, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if !actor.IsPatient() {
		return nil, errors.Forbidden("only a patient can book an appointment")
	}

	patient, err := s.patients.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, errors.Validation("invalid doctor id")
	}
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsAvailable {
		return nil, errors.Validation("this doctor is currently unavailable, please select another doctor")
	}

	patientName := strings.TrimSpace(req.PatientName)
	if patientName == "" {
		patientName = patient.Name
	}

	appt := &model.Appointment{
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		PatientName:     patientName,
		AppointmentDate: req.AppointmentDate,
		TimeSlot:        req.TimeSlot,
		Status:          model.AppointmentStatusPending,
		Symptoms:        req.Symptoms,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsPatient() && appt.PatientID != actor.ID {
		return nil, errors.Forbidden("appointment belongs to another patient")
	}
	return appt, nil
}
