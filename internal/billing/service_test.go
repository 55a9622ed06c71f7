package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/logger"
	"github.com/clinicdesk/clinic-api/pkg/metrics"
)

func TestCompleteVisitIssuesBill(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "rest and fluids")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, billID)

	bill, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, bill.PaymentStatus)
	assert.Equal(t, 500.0, bill.TotalAmount)
	require.NotNil(t, bill.AppointmentID)
	assert.Equal(t, appt.ID, *bill.AppointmentID)
	require.NotNil(t, bill.DoctorName)
	assert.Equal(t, appt.DoctorName, *bill.DoctorName)

	// The visit stays pending until the bill is paid.
	got, err := f.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, got.Status)
	assert.Equal(t, "rest and fluids", got.Prescription)

	assert.Equal(t, []string{model.EventBillCreated}, f.outbox.typesEmitted())
}

func TestCompleteVisitReplaceNotAccumulate(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")
	actor := doctorActor()

	first, err := f.service.CompleteVisit(context.Background(), actor, appt.ID, 500, "rx")
	require.NoError(t, err)
	second, err := f.service.CompleteVisit(context.Background(), actor, appt.ID, 700, "rx updated")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	unpaid, err := f.bills.ListUnpaidByPatient(context.Background(), appt.PatientID)
	require.NoError(t, err)
	require.Len(t, unpaid, 1, "replaying completion must never stack unpaid charges")
	assert.Equal(t, second, unpaid[0].ID)
	assert.Equal(t, 700.0, unpaid[0].TotalAmount)
}

func TestCompleteVisitRejections(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusCancelled, visitDay(), "10:00-10:30")

	_, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	assert.True(t, errors.IsKind(err, errors.KindInvalidTransition))

	_, err = f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 0, "")
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.service.CompleteVisit(context.Background(), patientActor(appt.PatientID), appt.ID, 500, "")
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	_, err = f.service.CompleteVisit(context.Background(), doctorActor(), uuid.New(), 500, "")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestPayCompletesAppointmentAndTagsBill(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "rx")
	require.NoError(t, err)

	err = f.service.Pay(context.Background(), patientActor(appt.PatientID), billID, model.PaymentMethodCash, "")
	require.NoError(t, err)

	bill, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, bill.PaymentStatus)
	assert.Contains(t, bill.Prescription, "[PAYMENT: Cash]")

	got, err := f.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, got.Status)

	assert.Equal(t, []string{model.EventBillCreated, model.EventBillPaid}, f.outbox.typesEmitted())
}

func TestPayOnlineTagsUPI(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	require.NoError(t, err)

	err = f.service.Pay(context.Background(), patientActor(appt.PatientID), billID, model.PaymentMethodOnline, "upi-txn-991")
	require.NoError(t, err)

	bill, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, "[PAYMENT: UPI]", bill.Prescription)
}

func TestPayOnlineRequiresReference(t *testing.T) {
	f := newEngineFixture()
	err := f.service.Pay(context.Background(), doctorActor(), uuid.New(), model.PaymentMethodOnline, "   ")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestPayIsIdempotent(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")
	payer := patientActor(appt.PatientID)

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "rx")
	require.NoError(t, err)

	require.NoError(t, f.service.Pay(context.Background(), payer, billID, model.PaymentMethodCash, ""))
	before, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)

	require.NoError(t, f.service.Pay(context.Background(), payer, billID, model.PaymentMethodCash, ""))
	after, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)

	assert.Equal(t, before.Prescription, after.Prescription, "replay must not append a second tag")
	assert.Equal(t, before.BillDate, after.BillDate)
	assert.Equal(t, []string{model.EventBillCreated, model.EventBillPaid}, f.outbox.typesEmitted(),
		"replay must not emit a second paid event")
}

func TestPayRacingDuplicateSettlesOnce(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")
	payer := patientActor(appt.PatientID)

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "rx")
	require.NoError(t, err)
	require.NoError(t, f.service.Pay(context.Background(), payer, billID, model.PaymentMethodCash, ""))

	// A second confirm-payment snuck in before the first commit became
	// visible to it: its read still shows the bill as unpaid. The guarded
	// unpaid-to-paid update must reject the stale write so the retry
	// re-reads and lands on the replay path.
	bills := &staleUnpaidBillRepo{fakeBillRepo: f.bills, staleID: billID}
	svc := NewService(f.appointments, bills, f.outbox, fakeTransactor{}, metrics.New("test"), logger.New(nil))

	require.NoError(t, svc.Pay(context.Background(), payer, billID, model.PaymentMethodCash, ""))

	assert.Equal(t, []string{model.EventBillCreated, model.EventBillPaid}, f.outbox.typesEmitted(),
		"a racing duplicate must not emit a second paid event")

	bill, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, bill.PaymentStatus)
	assert.Equal(t, "[PAYMENT: Cash]", bill.Prescription, "only one payment tag after the duplicate")
}

func TestPayRejectsCancelledAppointment(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	require.NoError(t, err)

	// Cancel behind the bill's back.
	stored, err := f.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	stored.Status = model.AppointmentStatusCancelled
	require.NoError(t, f.appointments.Update(context.Background(), stored))

	err = f.service.Pay(context.Background(), patientActor(appt.PatientID), billID, model.PaymentMethodCash, "")
	assert.True(t, errors.IsKind(err, errors.KindInvalidTransition))

	bill, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, bill.PaymentStatus)
}

func TestPayForeignBillForbidden(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	require.NoError(t, err)

	err = f.service.Pay(context.Background(), patientActor(uuid.New()), billID, model.PaymentMethodCash, "")
	assert.True(t, errors.IsKind(err, errors.KindForbidden))
}

func TestCancelAppointmentClearsUnpaidKeepsPaid(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	// One paid historical bill the matcher would tie to the appointment.
	paid := &model.Bill{
		PatientID:       appt.PatientID,
		AppointmentID:   &appt.ID,
		AppointmentDate: timeptr(appt.AppointmentDate),
		DoctorName:      strptr(appt.DoctorName),
		TimeSlot:        strptr(appt.TimeSlot),
		PatientName:     strptr(appt.PatientName),
		PaymentStatus:   model.PaymentStatusPaid,
		TotalAmount:     300,
		BillDate:        time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, f.bills.Create(context.Background(), paid))

	// And one unpaid charge from a completion.
	unpaidID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	require.NoError(t, err)

	err = f.service.CancelAppointment(context.Background(), patientActor(appt.PatientID), appt.ID)
	require.NoError(t, err)

	got, err := f.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)

	_, err = f.bills.Get(context.Background(), unpaidID)
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "unpaid charge must be voided")

	kept, err := f.bills.Get(context.Background(), paid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, kept.PaymentStatus, "paid history is immutable")
}

func TestCancelAppointmentTransitions(t *testing.T) {
	f := newEngineFixture()

	cancelled := f.addAppointment(model.AppointmentStatusCancelled, visitDay(), "10:00-10:30")
	err := f.service.CancelAppointment(context.Background(), doctorActor(), cancelled.ID)
	assert.True(t, errors.IsKind(err, errors.KindInvalidTransition))

	completed := f.addAppointment(model.AppointmentStatusCompleted, visitDay(), "11:00-11:30")
	err = f.service.CancelAppointment(context.Background(), doctorActor(), completed.ID)
	assert.True(t, errors.IsKind(err, errors.KindInvalidTransition))

	foreign := f.addAppointment(model.AppointmentStatusPending, visitDay(), "12:00-12:30")
	err = f.service.CancelAppointment(context.Background(), patientActor(uuid.New()), foreign.ID)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))
}

func TestCancelUnpaidBillNoopOnPaidOrAbsent(t *testing.T) {
	f := newEngineFixture()
	actor := doctorActor()

	// Absent bill: success without effect.
	require.NoError(t, f.service.CancelUnpaidBill(context.Background(), actor, uuid.New()))

	paid := &model.Bill{
		PatientID:     uuid.New(),
		PaymentStatus: model.PaymentStatusPaid,
		TotalAmount:   300,
		BillDate:      time.Now(),
	}
	require.NoError(t, f.bills.Create(context.Background(), paid))
	require.NoError(t, f.service.CancelUnpaidBill(context.Background(), actor, paid.ID))

	kept, err := f.bills.Get(context.Background(), paid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, kept.PaymentStatus)

	unpaid := &model.Bill{
		PatientID:     uuid.New(),
		PaymentStatus: model.PaymentStatusUnpaid,
		TotalAmount:   300,
		BillDate:      time.Now(),
	}
	require.NoError(t, f.bills.Create(context.Background(), unpaid))
	require.NoError(t, f.service.CancelUnpaidBill(context.Background(), actor, unpaid.ID))

	_, err = f.bills.Get(context.Background(), unpaid.ID)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestCancelUnpaidBillKeepsConcurrentlyPaidBill(t *testing.T) {
	f := newEngineFixture()
	appt := f.addAppointment(model.AppointmentStatusPending, visitDay(), "10:00-10:30")

	billID, err := f.service.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	require.NoError(t, err)
	require.NoError(t, f.service.Pay(context.Background(), patientActor(appt.PatientID), billID, model.PaymentMethodCash, ""))

	// The doctor's void read the bill before the payment committed. The
	// delete only matches unpaid rows, so the paid bill must survive and
	// the void degrades to a no-op.
	bills := &staleUnpaidBillRepo{fakeBillRepo: f.bills, staleID: billID}
	svc := NewService(f.appointments, bills, f.outbox, fakeTransactor{}, metrics.New("test"), logger.New(nil))

	require.NoError(t, svc.CancelUnpaidBill(context.Background(), doctorActor(), billID))

	kept, err := f.bills.Get(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, kept.PaymentStatus, "a void must never erase a settled bill")
}

func TestCancelUnpaidBillRequiresStaff(t *testing.T) {
	f := newEngineFixture()
	err := f.service.CancelUnpaidBill(context.Background(), patientActor(uuid.New()), uuid.New())
	assert.True(t, errors.IsKind(err, errors.KindForbidden))
}

func TestEngineRetriesOnceOnConflict(t *testing.T) {
	appointments := newFakeAppointmentRepo()
	bills := newFakeBillRepo()
	outbox := newFakeOutboxRepo()
	tx := &conflictOnceTransactor{}
	svc := NewService(appointments, bills, outbox, tx, metrics.New("test"), logger.New(nil))

	appt := &model.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		DoctorName:      "Dr. Mehta",
		PatientName:     "Asha Rao",
		AppointmentDate: visitDay(),
		TimeSlot:        "10:00-10:30",
		Status:          model.AppointmentStatusPending,
	}
	appointments.items[appt.ID] = appt

	_, err := svc.CompleteVisit(context.Background(), doctorActor(), appt.ID, 500, "")
	require.NoError(t, err, "a single write conflict is absorbed by the retry")
	assert.Equal(t, 2, tx.calls)
}
