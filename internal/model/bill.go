package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodOnline PaymentMethod = "Online"
)

// Bill is a charge record for a visit, lifecycled independently from the
// appointment that produced it. AppointmentID may be absent on legacy
// records; the nullable echo fields (AppointmentDate, DoctorName, TimeSlot,
// PatientName) are creation-time snapshots used to match such bills back to
// their appointment. The prescription field carries the clinical text plus,
// by convention, a payment-method suffix tag once the bill is paid.
type Bill struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	PatientID       uuid.UUID     `db:"patient_id" json:"patient_id"`
	AppointmentID   *uuid.UUID    `db:"appointment_id" json:"appointment_id,omitempty"`
	AppointmentDate *time.Time    `db:"appointment_date" json:"appointment_date,omitempty"`
	DoctorName      *string       `db:"doctor_name" json:"doctor_name,omitempty"`
	TimeSlot        *string       `db:"time_slot" json:"time_slot,omitempty"`
	PatientName     *string       `db:"patient_name" json:"patient_name,omitempty"`
	TotalAmount     float64       `db:"total_amount" json:"total_amount"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	BillDate        time.Time     `db:"bill_date" json:"bill_date"`
	Prescription    string        `db:"prescription" json:"prescription,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentTag returns the marker appended to a bill's prescription when the
// bill is paid. Online payments are settled over UPI, so the tag records
// the realized rail rather than the generic method name.
func PaymentTag(method PaymentMethod) string {
	if method == PaymentMethodOnline {
		return "[PAYMENT: UPI]"
	}
	return "[PAYMENT: Cash]"
}

type CompleteVisitRequest struct {
	TotalAmount  float64 `json:"total_amount" validate:"required,gt=0"`
	Prescription string  `json:"prescription" validate:"max=4000"`
}

type PayBillRequest struct {
	Method PaymentMethod `json:"method" validate:"required,oneof=Cash Online"`
	UPIRef string        `json:"upi_ref" validate:"max=200"`
}
