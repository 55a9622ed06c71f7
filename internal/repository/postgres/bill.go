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

const billColumns = `
	id, patient_id, appointment_id, appointment_date, doctor_name,
	time_slot, patient_name, total_amount, payment_status, bill_date,
	prescription, created_at, updated_at`

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	query := `
		INSERT INTO bills (
			id, patient_id, appointment_id, appointment_date, doctor_name,
			time_slot, patient_name, total_amount, payment_status, bill_date,
			prescription, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	bill.CreatedAt = time.Now()
	bill.UpdatedAt = time.Now()

	_, err := q(ctx, r.db).ExecContext(ctx, query,
		bill.ID,
		bill.PatientID,
		bill.AppointmentID,
		bill.AppointmentDate,
		bill.DoctorName,
		bill.TimeSlot,
		bill.PatientName,
		bill.TotalAmount,
		bill.PaymentStatus,
		bill.BillDate,
		bill.Prescription,
		bill.CreatedAt,
		bill.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}
	return nil
}

func (r *billRepository) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate locks the bill row until the ambient transaction ends, so a
// concurrent payment on the same bill waits here and then sees the
// committed state instead of a stale snapshot.
func (r *billRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *billRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1` + suffix

	var bill model.Bill
	err := sqlx.GetContext(ctx, q(ctx, r.db), &bill, query, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("bill")
		}
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return &bill, nil
}

// Update is the unpaid-to-paid transition. The status predicate makes the
// row itself enforce a single transition: a bill that was paid or removed
// underneath the caller matches zero rows, which surfaces as a conflict so
// the engine re-reads and takes its replay path.
func (r *billRepository) Update(ctx context.Context, bill *model.Bill) error {
	query := `
		UPDATE bills
		SET payment_status = $1, bill_date = $2, prescription = $3, updated_at = $4
		WHERE id = $5 AND payment_status = $6
	`
	bill.UpdatedAt = time.Now()

	result, err := q(ctx, r.db).ExecContext(ctx, query,
		bill.PaymentStatus,
		bill.BillDate,
		bill.Prescription,
		bill.UpdatedAt,
		bill.ID,
		model.PaymentStatusUnpaid,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.Conflict("bill is no longer unpaid", nil)
	}
	return nil
}

// Delete only removes unpaid rows; paid history is immutable even against
// a caller holding a stale read.
func (r *billRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := q(ctx, r.db).ExecContext(ctx,
		`DELETE FROM bills WHERE id = $1 AND payment_status = $2`,
		id, model.PaymentStatusUnpaid)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("bill")
	}
	return nil
}

func (r *billRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	query := `SELECT ` + billColumns + `
		FROM bills
		WHERE patient_id = $1
		ORDER BY bill_date DESC`

	var bills []*model.Bill
	if err := sqlx.SelectContext(ctx, q(ctx, r.db), &bills, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient bills: %w", err)
	}
	return bills, nil
}

func (r *billRepository) ListUnpaidByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	query := `SELECT ` + billColumns + `
		FROM bills
		WHERE patient_id = $1 AND payment_status = $2
		ORDER BY bill_date DESC`

	var bills []*model.Bill
	if err := sqlx.SelectContext(ctx, q(ctx, r.db), &bills, query, patientID, model.PaymentStatusUnpaid); err != nil {
		return nil, fmt.Errorf("failed to list unpaid bills: %w", err)
	}
	return bills, nil
}

func (r *billRepository) ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*model.Bill, error) {
	if len(patientIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+billColumns+`
		FROM bills
		WHERE patient_id IN (?)
		ORDER BY bill_date DESC`, patientIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build bill query: %w", err)
	}
	query = r.db.Rebind(query)

	var bills []*model.Bill
	if err := sqlx.SelectContext(ctx, q(ctx, r.db), &bills, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

func (r *billRepository) DeleteStaleUnpaid(ctx context.Context, doctorName string, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM bills
		WHERE doctor_name = $1 AND payment_status = $2 AND bill_date < $3
	`
	result, err := q(ctx, r.db).ExecContext(ctx, query, doctorName, model.PaymentStatusUnpaid, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale unpaid bills: %w", err)
	}
	return result.RowsAffected()
}
