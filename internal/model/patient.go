package model

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	ContactNumber string    `db:"contact_number" json:"contact_number,omitempty"`
	Address       string    `db:"address" json:"address,omitempty"`
	Gender        string    `db:"gender" json:"gender,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type CreatePatientRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	ContactNumber string `json:"contact_number" validate:"max=20"`
	Address       string `json:"address" validate:"max=500"`
	Gender        string `json:"gender" validate:"omitempty,oneof=male female other"`
}

type UpdatePatientRequest struct {
	Name          *string `json:"name" validate:"omitempty,max=200"`
	Email         *string `json:"email" validate:"omitempty,email"`
	ContactNumber *string `json:"contact_number" validate:"omitempty,max=20"`
	Address       *string `json:"address" validate:"omitempty,max=500"`
	Gender        *string `json:"gender" validate:"omitempty,oneof=male female other"`
}
