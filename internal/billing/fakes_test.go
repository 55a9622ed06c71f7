package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/logger"
	"github.com/clinicdesk/clinic-api/pkg/metrics"
)

// In-memory repositories backing the engine tests. They mirror the store's
// observable behavior: not-found errors, copy-on-read, no shared pointers.

type fakeAppointmentRepo struct {
	items map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{items: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	a, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *fakeAppointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	stored, ok := r.items[a.ID]
	if !ok || stored.Status == model.AppointmentStatusCancelled {
		return errors.Conflict("appointment was cancelled or removed concurrently", nil)
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *fakeAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(func(a *model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *fakeAppointmentRepo) CountByPatient(_ context.Context, patientID uuid.UUID) (int, error) {
	return len(r.list(func(a *model.Appointment) bool { return a.PatientID == patientID })), nil
}

func (r *fakeAppointmentRepo) list(keep func(*model.Appointment) bool) []*model.Appointment {
	var out []*model.Appointment
	for _, a := range r.items {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

type fakeBillRepo struct {
	items map[uuid.UUID]*model.Bill
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{items: make(map[uuid.UUID]*model.Bill)}
}

func (r *fakeBillRepo) Create(_ context.Context, b *model.Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *fakeBillRepo) Get(_ context.Context, id uuid.UUID) (*model.Bill, error) {
	b, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("bill")
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBillRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return r.Get(ctx, id)
}

func (r *fakeBillRepo) Update(_ context.Context, b *model.Bill) error {
	stored, ok := r.items[b.ID]
	if !ok || stored.PaymentStatus != model.PaymentStatusUnpaid {
		return errors.Conflict("bill is no longer unpaid", nil)
	}
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *fakeBillRepo) Delete(_ context.Context, id uuid.UUID) error {
	stored, ok := r.items[id]
	if !ok || stored.PaymentStatus != model.PaymentStatusUnpaid {
		return errors.NotFound("bill")
	}
	delete(r.items, id)
	return nil
}

func (r *fakeBillRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	return r.list(func(b *model.Bill) bool { return b.PatientID == patientID }), nil
}

func (r *fakeBillRepo) ListUnpaidByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	return r.list(func(b *model.Bill) bool {
		return b.PatientID == patientID && b.PaymentStatus == model.PaymentStatusUnpaid
	}), nil
}

func (r *fakeBillRepo) ListByPatients(_ context.Context, patientIDs []uuid.UUID) ([]*model.Bill, error) {
	want := make(map[uuid.UUID]struct{}, len(patientIDs))
	for _, id := range patientIDs {
		want[id] = struct{}{}
	}
	return r.list(func(b *model.Bill) bool {
		_, ok := want[b.PatientID]
		return ok
	}), nil
}

func (r *fakeBillRepo) DeleteStaleUnpaid(_ context.Context, doctorName string, cutoff time.Time) (int64, error) {
	var n int64
	for id, b := range r.items {
		if b.PaymentStatus != model.PaymentStatusUnpaid {
			continue
		}
		if b.DoctorName == nil || *b.DoctorName != doctorName {
			continue
		}
		if !b.BillDate.Before(cutoff) {
			continue
		}
		delete(r.items, id)
		n++
	}
	return n, nil
}

func (r *fakeBillRepo) list(keep func(*model.Bill) bool) []*model.Bill {
	var out []*model.Bill
	for _, b := range r.items {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// staleUnpaidBillRepo serves one read of the target bill as an unpaid
// snapshot even though the stored row is already paid. It reproduces a
// second request racing a payment: the caller acts on the stale view and
// the store's guards have to catch it.
type staleUnpaidBillRepo struct {
	*fakeBillRepo
	staleID uuid.UUID
	served  bool
}

func (r *staleUnpaidBillRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	b, err := r.fakeBillRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if id == r.staleID && !r.served {
		r.served = true
		b.PaymentStatus = model.PaymentStatusUnpaid
	}
	return b, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func newFakeOutboxRepo() *fakeOutboxRepo { return &fakeOutboxRepo{} }

func (r *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = model.OutboxStatusPending
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	for _, e := range r.events {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	for _, e := range r.events {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errorMessage
			return nil
		}
	}
	return errors.NotFound("outbox event")
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []*model.OutboxEvent
	var n int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return n, nil
}

func (r *fakeOutboxRepo) typesEmitted() []string {
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeTransactor runs the closure directly; the fakes have no transactions
// to join.
type fakeTransactor struct{}

func (fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// conflictOnceTransactor fails the first invocation with a write conflict,
// then behaves normally.
type conflictOnceTransactor struct {
	failed bool
	calls  int
}

func (t *conflictOnceTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if !t.failed {
		t.failed = true
		return errors.Conflict("serialization failure", nil)
	}
	return fn(ctx)
}

type engineFixture struct {
	appointments *fakeAppointmentRepo
	bills        *fakeBillRepo
	outbox       *fakeOutboxRepo
	service      *Service
}

func newEngineFixture() *engineFixture {
	appointments := newFakeAppointmentRepo()
	bills := newFakeBillRepo()
	outbox := newFakeOutboxRepo()
	svc := NewService(appointments, bills, outbox, fakeTransactor{}, metrics.New("test"), logger.New(nil))
	return &engineFixture{
		appointments: appointments,
		bills:        bills,
		outbox:       outbox,
		service:      svc,
	}
}

func (f *engineFixture) addAppointment(status model.AppointmentStatus, date time.Time, slot string) *model.Appointment {
	appt := &model.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		DoctorName:      "Dr. Mehta",
		PatientName:     "Asha Rao",
		AppointmentDate: date,
		TimeSlot:        slot,
		Status:          status,
	}
	f.appointments.items[appt.ID] = appt
	return appt
}

func doctorActor() model.Actor {
	return model.Actor{ID: uuid.New(), Role: model.ActorRoleDoctor, Name: "Dr. Mehta"}
}

func patientActor(id uuid.UUID) model.Actor {
	return model.Actor{ID: id, Role: model.ActorRolePatient, Name: "Asha Rao"}
}

func strptr(s string) *string { return &s }

func timeptr(t time.Time) *time.Time { return &t }
