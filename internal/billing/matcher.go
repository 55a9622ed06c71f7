package billing

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/model"
)

// MatchTier identifies which strategy produced a bill match. Lower tiers
// are more precise; the matcher tries them in order and stops at the first
// hit. The policy is precision over recall: no match beats a wrong match.
type MatchTier int

const (
	MatchTierNone MatchTier = iota
	// MatchTierExactKey: the bill carries the appointment's id.
	MatchTierExactKey
	// MatchTierComposite: the bill's echo fields (date, doctor, slot,
	// patient) all line up with the appointment, and the appointment has
	// been worked on.
	MatchTierComposite
	// MatchTierLegacy: key-less paid bills on completed appointments,
	// matched by date, patient and doctor, newest first.
	MatchTierLegacy
)

// Match is the result of reconciling one appointment against a bill pool.
type Match struct {
	Bill *model.Bill
	Tier MatchTier
}

func (m Match) Found() bool { return m.Bill != nil }

// ClaimedSet tracks bills already attached to an appointment within one
// reconciliation pass, so no bill is ever matched twice.
type ClaimedSet map[uuid.UUID]struct{}

func NewClaimedSet() ClaimedSet { return make(ClaimedSet) }

func (s ClaimedSet) Claimed(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s ClaimedSet) Claim(id uuid.UUID) { s[id] = struct{}{} }

// MatchBill finds the bill in the pool that represents the same billing
// event as the appointment, trying tiers up to and including maxTier. A
// found bill is claimed in the set before returning. The persisted state is
// never touched; the result is a pure function of the appointment, the
// pool, and the claimed set.
func MatchBill(appt *model.Appointment, bills []*model.Bill, claimed ClaimedSet, maxTier MatchTier) Match {
	if appt == nil {
		return Match{}
	}

	if bill := matchExactKey(appt, bills, claimed); bill != nil {
		claimed.Claim(bill.ID)
		return Match{Bill: bill, Tier: MatchTierExactKey}
	}

	if maxTier >= MatchTierComposite {
		if bill := matchComposite(appt, bills, claimed); bill != nil {
			claimed.Claim(bill.ID)
			return Match{Bill: bill, Tier: MatchTierComposite}
		}
	}

	if maxTier >= MatchTierLegacy && appt.Status == model.AppointmentStatusCompleted {
		if bill := matchLegacy(appt, bills, claimed); bill != nil {
			claimed.Claim(bill.ID)
			return Match{Bill: bill, Tier: MatchTierLegacy}
		}
	}

	return Match{}
}

func matchExactKey(appt *model.Appointment, bills []*model.Bill, claimed ClaimedSet) *model.Bill {
	for _, bill := range bills {
		if claimed.Claimed(bill.ID) {
			continue
		}
		if bill.AppointmentID != nil && *bill.AppointmentID == appt.ID {
			return bill
		}
	}
	return nil
}

func matchComposite(appt *model.Appointment, bills []*model.Bill, claimed ClaimedSet) *model.Bill {
	// Only match an appointment that has actually been worked on: a
	// completed visit or one that already carries a prescription. This
	// keeps a freshly booked appointment from stealing an older key-less
	// bill that merely shares the slot.
	if appt.Status != model.AppointmentStatusCompleted && appt.Prescription == "" {
		return nil
	}

	for _, bill := range bills {
		if claimed.Claimed(bill.ID) {
			continue
		}
		if bill.AppointmentDate == nil {
			continue
		}
		if !sameDay(*bill.AppointmentDate, appt.AppointmentDate) {
			continue
		}
		if !strEq(bill.DoctorName, appt.DoctorName) ||
			!strEq(bill.TimeSlot, appt.TimeSlot) ||
			!strEq(bill.PatientName, appt.PatientName) {
			continue
		}
		return bill
	}
	return nil
}

func matchLegacy(appt *model.Appointment, bills []*model.Bill, claimed ClaimedSet) *model.Bill {
	var candidates []*model.Bill
	for _, bill := range bills {
		if claimed.Claimed(bill.ID) {
			continue
		}
		if bill.PaymentStatus != model.PaymentStatusPaid {
			continue
		}
		if bill.AppointmentDate == nil || !sameDay(*bill.AppointmentDate, appt.AppointmentDate) {
			continue
		}
		if !strEq(bill.PatientName, appt.PatientName) || !strEq(bill.DoctorName, appt.DoctorName) {
			continue
		}
		candidates = append(candidates, bill)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BillDate.After(candidates[j].BillDate)
	})
	return candidates[0]
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func strEq(p *string, s string) bool {
	return p != nil && *p == s
}
