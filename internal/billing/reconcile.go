package billing

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/pkg/errors"
)

// ReconciledAppointment pairs an appointment with its currently matched
// bill, if any. MatchTier reports how confident the association is.
type ReconciledAppointment struct {
	Appointment *model.Appointment `json:"appointment"`
	Bill        *model.Bill        `json:"bill,omitempty"`
	MatchTier   MatchTier          `json:"match_tier,omitempty"`
}

// DoctorFilter narrows a doctor's reconciled roster.
type DoctorFilter string

const (
	FilterUpcoming  DoctorFilter = "upcoming"
	FilterPending   DoctorFilter = "pending"
	FilterCompleted DoctorFilter = "completed"
	FilterCancelled DoctorFilter = "cancelled"
	FilterAll       DoctorFilter = "all"
)

func ParseDoctorFilter(s string) (DoctorFilter, error) {
	switch DoctorFilter(s) {
	case FilterUpcoming, FilterPending, FilterCompleted, FilterCancelled, FilterAll:
		return DoctorFilter(s), nil
	case "":
		return FilterAll, nil
	default:
		return "", errors.Validation("unknown filter: " + s)
	}
}

// ReconcileForPatient returns every appointment of the patient paired with
// its matched bill, newest appointment first. Read-only: nothing is
// persisted, the matching happens per request.
func (s *Service) ReconcileForPatient(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]ReconciledAppointment, error) {
	if actor.IsPatient() && actor.ID != patientID {
		return nil, errors.Forbidden("cannot view another patient's appointments")
	}

	appointments, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	bills, err := s.bills.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return s.reconcile(appointments, bills), nil
}

// ReconcileForDoctor returns the doctor's roster, optionally filtered,
// paired with matched bills.
func (s *Service) ReconcileForDoctor(ctx context.Context, actor model.Actor, doctorID uuid.UUID, filter DoctorFilter) ([]ReconciledAppointment, error) {
	if actor.IsPatient() {
		return nil, errors.Forbidden("patients cannot view a doctor roster")
	}

	appointments, err := s.appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	appointments = filterAppointments(appointments, filter)

	bills, err := s.bills.ListByPatients(ctx, patientIDsOf(appointments))
	if err != nil {
		return nil, err
	}

	return s.reconcile(appointments, bills), nil
}

// reconcile matches each appointment against the bill pool with one shared
// claimed set, so no bill appears under two appointments in a single view.
// Appointments are processed oldest-first because older appointments are
// the ones with unambiguous legacy-tier matches; the rendered order is
// newest-first.
func (s *Service) reconcile(appointments []*model.Appointment, bills []*model.Bill) []ReconciledAppointment {
	ordered := make([]*model.Appointment, len(appointments))
	copy(ordered, appointments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].AppointmentDate.Equal(ordered[j].AppointmentDate) {
			return ordered[i].AppointmentDate.Before(ordered[j].AppointmentDate)
		}
		return ordered[i].TimeSlot < ordered[j].TimeSlot
	})

	claimed := NewClaimedSet()
	rows := make([]ReconciledAppointment, 0, len(ordered))
	for _, appt := range ordered {
		match := MatchBill(appt, bills, claimed, MatchTierLegacy)
		if match.Found() {
			s.metrics.BillMatches.WithLabelValues(strconv.Itoa(int(match.Tier))).Inc()
		}
		rows = append(rows, ReconciledAppointment{
			Appointment: appt,
			Bill:        match.Bill,
			MatchTier:   match.Tier,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ai, aj := rows[i].Appointment, rows[j].Appointment
		if !ai.AppointmentDate.Equal(aj.AppointmentDate) {
			return ai.AppointmentDate.After(aj.AppointmentDate)
		}
		return ai.TimeSlot > aj.TimeSlot
	})
	return rows
}

func filterAppointments(appointments []*model.Appointment, filter DoctorFilter) []*model.Appointment {
	if filter == FilterAll || filter == "" {
		return appointments
	}

	today := startOfDay(time.Now())
	var out []*model.Appointment
	for _, appt := range appointments {
		switch filter {
		case FilterUpcoming:
			if appt.Status == model.AppointmentStatusPending && !appt.AppointmentDate.Before(today) {
				out = append(out, appt)
			}
		case FilterPending:
			if appt.Status == model.AppointmentStatusPending {
				out = append(out, appt)
			}
		case FilterCompleted:
			if appt.Status == model.AppointmentStatusCompleted {
				out = append(out, appt)
			}
		case FilterCancelled:
			if appt.Status == model.AppointmentStatusCancelled {
				out = append(out, appt)
			}
		}
	}
	return out
}

func patientIDsOf(appointments []*model.Appointment) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(appointments))
	var ids []uuid.UUID
	for _, appt := range appointments {
		if _, ok := seen[appt.PatientID]; ok {
			continue
		}
		seen[appt.PatientID] = struct{}{}
		ids = append(ids, appt.PatientID)
	}
	return ids
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
