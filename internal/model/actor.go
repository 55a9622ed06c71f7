package model

import "github.com/google/uuid"

type ActorRole string

const (
	ActorRolePatient ActorRole = "patient"
	ActorRoleDoctor  ActorRole = "doctor"
	ActorRoleAdmin   ActorRole = "admin"
)

// Actor identifies who is performing an operation. It is resolved from the
// request by middleware and passed explicitly into every service call; no
// service reads identity from ambient state.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role ActorRole `json:"role"`
	Name string    `json:"name,omitempty"`
}

func (a Actor) IsPatient() bool { return a.Role == ActorRolePatient }
func (a Actor) IsDoctor() bool  { return a.Role == ActorRoleDoctor }
func (a Actor) IsAdmin() bool   { return a.Role == ActorRoleAdmin }

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=patient doctor admin"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Actor Actor  `json:"actor"`
}
