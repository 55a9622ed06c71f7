package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/repository"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/logger"
	"github.com/clinicdesk/clinic-api/pkg/metrics"
)

// Service is the appointment-billing lifecycle engine. It owns the state
// transitions of appointments and bills and the invariants linking them.
// The engine is stateless between calls; every operation takes the acting
// identity explicitly and runs as one transactional unit against the store.
type Service struct {
	appointments repository.AppointmentRepository
	bills        repository.BillRepository
	outbox       repository.OutboxRepository
	tx           repository.Transactor
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewService(
	appointments repository.AppointmentRepository,
	bills repository.BillRepository,
	outbox repository.OutboxRepository,
	tx repository.Transactor,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		bills:        bills,
		outbox:       outbox,
		tx:           tx,
		metrics:      m,
		logger:       l,
	}
}

// CompleteVisit records the clinical outcome of a visit: it voids any
// unpaid bill already associated with the appointment, stores the
// prescription, and issues a fresh unpaid bill carrying a snapshot of the
// appointment. The appointment itself stays pending until the bill is paid,
// so the patient still sees it as payable rather than archived. Replaying
// the call never accumulates duplicate unpaid charges.
func (s *Service) CompleteVisit(ctx context.Context, actor model.Actor, appointmentID uuid.UUID, totalAmount float64, prescription string) (uuid.UUID, error) {
	if !actor.IsDoctor() && !actor.IsAdmin() {
		return uuid.Nil, errors.Forbidden("only a doctor can complete a visit")
	}
	if totalAmount <= 0 {
		return uuid.Nil, errors.Validation("total amount must be positive")
	}

	var billID uuid.UUID
	err := s.inTxWithRetry(ctx, "complete_visit", func(ctx context.Context) error {
		appt, err := s.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status == model.AppointmentStatusCancelled {
			return errors.InvalidTransition("cannot complete a cancelled appointment")
		}

		if err := s.removeMatchedUnpaid(ctx, appt); err != nil {
			return err
		}

		if prescription != "" {
			appt.Prescription = prescription
			if err := s.appointments.Update(ctx, appt); err != nil {
				return err
			}
		}

		bill := newBillFor(appt, totalAmount)
		if err := s.bills.Create(ctx, bill); err != nil {
			return err
		}
		billID = bill.ID

		return s.emit(ctx, model.EventBillCreated, billEventPayload{
			BillID:        bill.ID,
			AppointmentID: &appt.ID,
			PatientID:     appt.PatientID,
			TotalAmount:   totalAmount,
		})
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.metrics.VisitsCompleted.Inc()
	s.logger.Info("visit completed",
		"appointment_id", appointmentID.String(), "bill_id", billID.String())
	return billID, nil
}

// Pay settles a bill. Paying an already-paid bill succeeds without
// modification, except that the linked appointment is still driven to
// completed; this absorbs duplicate confirm-payment submissions without
// double-charging. A bill whose appointment was cancelled cannot be paid.
func (s *Service) Pay(ctx context.Context, actor model.Actor, billID uuid.UUID, method model.PaymentMethod, methodDetail string) error {
	switch method {
	case model.PaymentMethodCash:
	case model.PaymentMethodOnline:
		if strings.TrimSpace(methodDetail) == "" {
			return errors.Validation("payment reference is required for online payment")
		}
	default:
		return errors.Validation(fmt.Sprintf("unknown payment method %q", method))
	}

	err := s.inTxWithRetry(ctx, "pay", func(ctx context.Context) error {
		bill, err := s.bills.GetForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if err := s.authorizeBillAccess(actor, bill); err != nil {
			return err
		}

		if bill.PaymentStatus == model.PaymentStatusPaid {
			// Replay: the money already moved, only make sure the
			// appointment caught up.
			return s.completeLinkedAppointment(ctx, bill, false)
		}

		if err := s.completeLinkedAppointment(ctx, bill, true); err != nil {
			return err
		}

		bill.PaymentStatus = model.PaymentStatusPaid
		bill.Prescription = appendPaymentTag(bill.Prescription, method)
		bill.BillDate = time.Now()
		if err := s.bills.Update(ctx, bill); err != nil {
			return err
		}

		return s.emit(ctx, model.EventBillPaid, billEventPayload{
			BillID:        bill.ID,
			AppointmentID: bill.AppointmentID,
			PatientID:     bill.PatientID,
			TotalAmount:   bill.TotalAmount,
			Method:        string(method),
		})
	})
	if err != nil {
		return err
	}

	s.metrics.PaymentsTotal.WithLabelValues(string(method)).Inc()
	s.logger.Info("bill paid", "bill_id", billID.String(), "method", string(method))
	return nil
}

// CancelAppointment voids a pending visit. Every unpaid bill the matcher
// associates with the appointment is removed so a cancelled visit never
// leaves a payable charge behind; paid bills are immutable history and stay.
func (s *Service) CancelAppointment(ctx context.Context, actor model.Actor, appointmentID uuid.UUID) error {
	err := s.inTxWithRetry(ctx, "cancel_appointment", func(ctx context.Context) error {
		appt, err := s.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := s.authorizeAppointmentAccess(actor, appt); err != nil {
			return err
		}
		if appt.Status == model.AppointmentStatusCancelled {
			return errors.InvalidTransition("appointment is already cancelled")
		}
		if appt.Status == model.AppointmentStatusCompleted {
			return errors.InvalidTransition("cannot cancel a completed appointment")
		}

		appt.Status = model.AppointmentStatusCancelled
		if err := s.appointments.Update(ctx, appt); err != nil {
			return err
		}

		if err := s.removeMatchedUnpaid(ctx, appt); err != nil {
			return err
		}

		return s.emit(ctx, model.EventAppointmentCancelled, appointmentEventPayload{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.AppointmentsCancelled.Inc()
	s.logger.Info("appointment cancelled", "appointment_id", appointmentID.String())
	return nil
}

// CancelUnpaidBill removes a single stray unpaid bill by id, used when a
// doctor voids a charge without cancelling the visit. Paid or absent bills
// are left untouched and the call succeeds: deletion here must never erase
// paid history. The read and the delete share one transaction, and the
// delete itself only matches unpaid rows, so a payment landing mid-call
// turns the void into a no-op rather than a lost payment.
func (s *Service) CancelUnpaidBill(ctx context.Context, actor model.Actor, billID uuid.UUID) error {
	if !actor.IsDoctor() && !actor.IsAdmin() {
		return errors.Forbidden("only a doctor can void a bill")
	}

	var voided bool
	err := s.inTxWithRetry(ctx, "cancel_unpaid_bill", func(ctx context.Context) error {
		voided = false

		bill, err := s.bills.GetForUpdate(ctx, billID)
		if err != nil {
			if errors.IsKind(err, errors.KindNotFound) {
				return nil
			}
			return err
		}
		if bill.PaymentStatus == model.PaymentStatusPaid {
			return nil
		}

		if err := s.bills.Delete(ctx, billID); err != nil {
			// The store refuses to delete anything but an unpaid row, so a
			// payment racing this void shows up here as not-found.
			if errors.IsKind(err, errors.KindNotFound) {
				return nil
			}
			return err
		}
		voided = true
		return nil
	})
	if err != nil {
		return err
	}

	if voided {
		s.metrics.BillsVoided.Inc()
		s.logger.Info("unpaid bill voided", "bill_id", billID.String())
	}
	return nil
}

// removeMatchedUnpaid deletes every unpaid bill the matcher ties to the
// appointment. Only the exact-key and composite tiers participate: the
// legacy tier is for completed historical data, not cleanup.
func (s *Service) removeMatchedUnpaid(ctx context.Context, appt *model.Appointment) error {
	unpaid, err := s.bills.ListUnpaidByPatient(ctx, appt.PatientID)
	if err != nil {
		return err
	}

	claimed := NewClaimedSet()
	for {
		match := MatchBill(appt, unpaid, claimed, MatchTierComposite)
		if !match.Found() {
			return nil
		}
		if err := s.bills.Delete(ctx, match.Bill.ID); err != nil {
			// A bill paid in the window between the list and the delete is
			// no longer voidable; the claimed set already excludes it from
			// the next round.
			if errors.IsKind(err, errors.KindNotFound) {
				continue
			}
			return err
		}
	}
}

// completeLinkedAppointment drives the bill's appointment to completed.
// With strict set, paying a bill attached to a cancelled appointment is
// rejected; on the idempotent replay path the cancelled state is left alone.
func (s *Service) completeLinkedAppointment(ctx context.Context, bill *model.Bill, strict bool) error {
	if bill.AppointmentID == nil {
		return nil
	}

	appt, err := s.appointments.GetForUpdate(ctx, *bill.AppointmentID)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			// Legacy bill pointing at an administratively removed
			// appointment; the payment itself still stands.
			return nil
		}
		return err
	}

	switch appt.Status {
	case model.AppointmentStatusCompleted:
		return nil
	case model.AppointmentStatusCancelled:
		if strict {
			return errors.InvalidTransition("cannot pay a bill for a cancelled appointment")
		}
		return nil
	}

	appt.Status = model.AppointmentStatusCompleted
	return s.appointments.Update(ctx, appt)
}

func (s *Service) authorizeBillAccess(actor model.Actor, bill *model.Bill) error {
	if actor.IsPatient() && bill.PatientID != actor.ID {
		return errors.Forbidden("bill belongs to another patient")
	}
	return nil
}

func (s *Service) authorizeAppointmentAccess(actor model.Actor, appt *model.Appointment) error {
	if actor.IsPatient() && appt.PatientID != actor.ID {
		return errors.Forbidden("appointment belongs to another patient")
	}
	return nil
}

// inTxWithRetry runs fn transactionally and retries exactly once when the
// store reports a write conflict. fn must be safe to re-run from scratch;
// every operation here re-reads its state inside the closure.
func (s *Service) inTxWithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer func() {
		s.metrics.EngineOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	err := s.tx.InTx(ctx, fn)
	if err != nil && errors.IsKind(err, errors.KindConflict) {
		s.metrics.ConflictRetries.Inc()
		s.logger.Warn("write conflict, retrying once", "operation", operation)
		err = s.tx.InTx(ctx, fn)
	}
	return err
}

func (s *Service) emit(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   raw,
	})
}

func newBillFor(appt *model.Appointment, totalAmount float64) *model.Bill {
	apptID := appt.ID
	apptDate := appt.AppointmentDate
	doctorName := appt.DoctorName
	timeSlot := appt.TimeSlot
	patientName := appt.PatientName

	return &model.Bill{
		PatientID:       appt.PatientID,
		AppointmentID:   &apptID,
		AppointmentDate: &apptDate,
		DoctorName:      &doctorName,
		TimeSlot:        &timeSlot,
		PatientName:     &patientName,
		TotalAmount:     totalAmount,
		PaymentStatus:   model.PaymentStatusUnpaid,
		BillDate:        time.Now(),
	}
}

// appendPaymentTag records the realized payment method on the bill without
// clobbering the clinical prescription text.
func appendPaymentTag(prescription string, method model.PaymentMethod) string {
	tag := model.PaymentTag(method)
	if strings.TrimSpace(prescription) == "" {
		return tag
	}
	return prescription + " " + tag
}

type billEventPayload struct {
	BillID        uuid.UUID  `json:"bill_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PatientID     uuid.UUID  `json:"patient_id"`
	TotalAmount   float64    `json:"total_amount"`
	Method        string     `json:"method,omitempty"`
}

type appointmentEventPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
}
