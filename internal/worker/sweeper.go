package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/repository"
	"github.com/clinicdesk/clinic-api/pkg/logger"
	"github.com/clinicdesk/clinic-api/pkg/metrics"
)

// BillSweeper reclaims unpaid bills that were issued by a visit completion
// but abandoned. It runs opportunistically when a doctor's dashboard is
// loaded, not on a schedule, and is hygiene rather than correctness: a
// missed sweep only leaves stale unpaid charges in listings.
type BillSweeper struct {
	bills     repository.BillRepository
	doctors   repository.DoctorRepository
	retention time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewBillSweeper(
	bills repository.BillRepository,
	doctors repository.DoctorRepository,
	retention time.Duration,
	l *logger.Logger,
	m *metrics.Metrics,
) *BillSweeper {
	if retention <= 0 {
		retention = time.Hour
	}
	return &BillSweeper{
		bills:     bills,
		doctors:   doctors,
		retention: retention,
		logger:    l,
		metrics:   m,
	}
}

// SweepDoctor removes the doctor's unpaid bills older than the retention
// window.
func (w *BillSweeper) SweepDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	doctor, err := w.doctors.Get(ctx, doctorID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve doctor for sweep: %w", err)
	}

	cutoff := time.Now().Add(-w.retention)
	swept, err := w.bills.DeleteStaleUnpaid(ctx, doctor.Name, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale bills: %w", err)
	}

	if swept > 0 {
		w.metrics.BillsSwept.Add(float64(swept))
		w.logger.Info("swept stale unpaid bills",
			"doctor_id", doctorID.String(), "count", swept)
	}
	return swept, nil
}

// SweepDoctorAsync fires a best-effort sweep in the background. The caller
// is never blocked and failures are only logged.
func (w *BillSweeper) SweepDoctorAsync(doctorID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := w.SweepDoctor(ctx, doctorID); err != nil {
			w.logger.Error(err, "background bill sweep failed",
				"doctor_id", doctorID.String())
		}
	}()
}
