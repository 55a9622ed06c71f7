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
)

func TestReconcileForPatientNewestFirst(t *testing.T) {
	f := newEngineFixture()
	patientID := uuid.New()

	older := &model.Appointment{
		ID: uuid.New(), PatientID: patientID, DoctorID: uuid.New(),
		DoctorName: "Dr. Mehta", PatientName: "Asha Rao",
		AppointmentDate: visitDay().AddDate(0, 0, -7), TimeSlot: "09:00-09:30",
		Status: model.AppointmentStatusCompleted,
	}
	newer := &model.Appointment{
		ID: uuid.New(), PatientID: patientID, DoctorID: older.DoctorID,
		DoctorName: "Dr. Mehta", PatientName: "Asha Rao",
		AppointmentDate: visitDay(), TimeSlot: "10:00-10:30",
		Status: model.AppointmentStatusPending,
	}
	f.appointments.items[older.ID] = older
	f.appointments.items[newer.ID] = newer

	rows, err := f.service.ReconcileForPatient(context.Background(), patientActor(patientID), patientID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].Appointment.ID)
	assert.Equal(t, older.ID, rows[1].Appointment.ID)
}

func TestReconcileForPatientOwnershipEnforced(t *testing.T) {
	f := newEngineFixture()
	_, err := f.service.ReconcileForPatient(context.Background(), patientActor(uuid.New()), uuid.New())
	assert.True(t, errors.IsKind(err, errors.KindForbidden))
}

func TestReconcileBillClaimedByOneAppointmentOnly(t *testing.T) {
	f := newEngineFixture()
	patientID := uuid.New()
	doctorID := uuid.New()

	// Two completed visits in the same slot on consecutive weeks, one
	// key-less paid bill that echoes only the earlier one by date.
	day := visitDay()
	early := &model.Appointment{
		ID: uuid.New(), PatientID: patientID, DoctorID: doctorID,
		DoctorName: "Dr. Mehta", PatientName: "Asha Rao",
		AppointmentDate: day, TimeSlot: "10:00-10:30",
		Status: model.AppointmentStatusCompleted, Prescription: "rx",
	}
	late := &model.Appointment{
		ID: uuid.New(), PatientID: patientID, DoctorID: doctorID,
		DoctorName: "Dr. Mehta", PatientName: "Asha Rao",
		AppointmentDate: day, TimeSlot: "11:00-11:30",
		Status: model.AppointmentStatusCompleted, Prescription: "rx",
	}
	f.appointments.items[early.ID] = early
	f.appointments.items[late.ID] = late

	bill := &model.Bill{
		PatientID:       patientID,
		AppointmentDate: timeptr(day),
		DoctorName:      strptr("Dr. Mehta"),
		TimeSlot:        strptr("10:00-10:30"),
		PatientName:     strptr("Asha Rao"),
		PaymentStatus:   model.PaymentStatusPaid,
		TotalAmount:     500,
		BillDate:        time.Now(),
	}
	require.NoError(t, f.bills.Create(context.Background(), bill))

	rows, err := f.service.ReconcileForPatient(context.Background(), patientActor(patientID), patientID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var matched int
	for _, row := range rows {
		if row.Bill != nil {
			matched++
			assert.Equal(t, bill.ID, row.Bill.ID)
			assert.Equal(t, early.ID, row.Appointment.ID, "bill belongs to the slot it echoes")
		}
	}
	assert.Equal(t, 1, matched, "one bill must appear under exactly one appointment")
}

func TestReconcileForDoctorFilters(t *testing.T) {
	f := newEngineFixture()
	doctorID := uuid.New()
	patientID := uuid.New()

	mk := func(status model.AppointmentStatus, date time.Time) *model.Appointment {
		a := &model.Appointment{
			ID: uuid.New(), PatientID: patientID, DoctorID: doctorID,
			DoctorName: "Dr. Mehta", PatientName: "Asha Rao",
			AppointmentDate: date, TimeSlot: "10:00-10:30", Status: status,
		}
		f.appointments.items[a.ID] = a
		return a
	}

	pastPending := mk(model.AppointmentStatusPending, time.Now().AddDate(0, 0, -3))
	futurePending := mk(model.AppointmentStatusPending, time.Now().AddDate(0, 0, 3))
	completed := mk(model.AppointmentStatusCompleted, time.Now().AddDate(0, 0, -1))
	cancelled := mk(model.AppointmentStatusCancelled, time.Now().AddDate(0, 0, 1))

	actor := model.Actor{ID: doctorID, Role: model.ActorRoleDoctor, Name: "Dr. Mehta"}

	cases := []struct {
		filter DoctorFilter
		want   []uuid.UUID
	}{
		{FilterAll, []uuid.UUID{pastPending.ID, futurePending.ID, completed.ID, cancelled.ID}},
		{FilterUpcoming, []uuid.UUID{futurePending.ID}},
		{FilterPending, []uuid.UUID{pastPending.ID, futurePending.ID}},
		{FilterCompleted, []uuid.UUID{completed.ID}},
		{FilterCancelled, []uuid.UUID{cancelled.ID}},
	}
	for _, tc := range cases {
		rows, err := f.service.ReconcileForDoctor(context.Background(), actor, doctorID, tc.filter)
		require.NoError(t, err, "filter %s", tc.filter)

		got := make(map[uuid.UUID]bool, len(rows))
		for _, row := range rows {
			got[row.Appointment.ID] = true
		}
		assert.Len(t, rows, len(tc.want), "filter %s", tc.filter)
		for _, id := range tc.want {
			assert.True(t, got[id], "filter %s missing appointment", tc.filter)
		}
	}
}

func TestReconcileForDoctorRejectsPatients(t *testing.T) {
	f := newEngineFixture()
	_, err := f.service.ReconcileForDoctor(context.Background(), patientActor(uuid.New()), uuid.New(), FilterAll)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))
}

func TestParseDoctorFilter(t *testing.T) {
	got, err := ParseDoctorFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, got)

	got, err = ParseDoctorFilter("upcoming")
	require.NoError(t, err)
	assert.Equal(t, FilterUpcoming, got)

	_, err = ParseDoctorFilter("bogus")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}
