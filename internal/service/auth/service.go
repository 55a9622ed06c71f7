package auth

import (
	"context"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/repository"
	"github.com/clinicdesk/clinic-api/pkg/auth"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/security"
)

type Service struct {
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	hasher   security.PasswordHasher
	tokens   *auth.TokenManager
}

func NewService(patients repository.PatientRepository, doctors repository.DoctorRepository, hasher security.PasswordHasher, tokens *auth.TokenManager) *Service {
	return &Service{patients: patients, doctors: doctors, hasher: hasher, tokens: tokens}
}

// Login authenticates by email and password within the requested role and
// returns a signed token for subsequent requests. A wrong password and an
// unknown email are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	actor, hash, err := s.resolve(ctx, req)
	if err != nil {
		return nil, errors.Unauthorized("invalid credentials")
	}
	if err := s.hasher.Compare(hash, req.Password); err != nil {
		return nil, errors.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.Generate(actor)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &model.LoginResponse{Token: token, Actor: actor}, nil
}

func (s *Service) resolve(ctx context.Context, req *model.LoginRequest) (model.Actor, string, error) {
	switch model.ActorRole(req.Role) {
	case model.ActorRolePatient:
		p, err := s.patients.GetByEmail(ctx, req.Email)
		if err != nil {
			return model.Actor{}, "", err
		}
		return model.Actor{ID: p.ID, Role: model.ActorRolePatient, Name: p.Name}, p.PasswordHash, nil
	case model.ActorRoleDoctor, model.ActorRoleAdmin:
		d, err := s.doctors.GetByEmail(ctx, req.Email)
		if err != nil {
			return model.Actor{}, "", err
		}
		return model.Actor{ID: d.ID, Role: model.ActorRole(req.Role), Name: d.Name}, d.PasswordHash, nil
	default:
		return model.Actor{}, "", errors.Validation("unknown role")
	}
}
