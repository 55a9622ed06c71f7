package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/repository"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/security"
)

type Service struct {
	repo         repository.PatientRepository
	appointments repository.AppointmentRepository
	hasher       security.PasswordHasher
}

func NewService(repo repository.PatientRepository, appointments repository.AppointmentRepository, hasher security.PasswordHasher) *Service {
	return &Service{repo: repo, appointments: appointments, hasher: hasher}
}

func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	patient := &model.Patient{
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  hash,
		ContactNumber: req.ContactNumber,
		Address:       req.Address,
		Gender:        req.Gender,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*model.Patient, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.ContactNumber != nil {
		patient.ContactNumber = *req.ContactNumber
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return patient, nil
}

// Delete removes a patient record. Patients with appointment history cannot
// be deleted; that history anchors billing reconciliation.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := s.appointments.CountByPatient(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.Validation("cannot delete a patient with existing appointments")
	}
	return s.repo.Delete(ctx, id)
}
