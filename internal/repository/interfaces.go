package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
)

// Transactor runs a closure as a single serializable unit against the
// store. Repository calls made with the context passed to fn join the same
// transaction. Write conflicts surface as conflict errors.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	// AppointmentRepository persists appointments. GetForUpdate locks the
	// row for the rest of the ambient transaction; Update refuses to touch
	// a row that was cancelled underneath the caller and reports that as a
	// conflict.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	}

	// BillRepository persists bills. Update performs the single
	// unpaid-to-paid transition and reports a conflict when the row is no
	// longer unpaid; Delete only ever removes unpaid rows, so paid history
	// cannot be erased by a stale caller.
	BillRepository interface {
		Create(ctx context.Context, bill *model.Bill) error
		Get(ctx context.Context, id uuid.UUID) (*model.Bill, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bill, error)
		Update(ctx context.Context, bill *model.Bill) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error)
		ListUnpaidByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error)
		ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*model.Bill, error)
		DeleteStaleUnpaid(ctx context.Context, doctorName string, cutoff time.Time) (int64, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
