// services/scheduler.go
package services

import (
	"log"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartAutoConfirmSweep runs the overdue-confirmation sweep periodically.
// The lazy guard on reads already enforces the 5-day rule; the sweep only
// adds timeliness for requests nobody is reading. Set AUTO_CONFIRM_SWEEP=off
// to rely on the lazy guard alone.
func (s *ReferralService) StartAutoConfirmSweep() {
	if os.Getenv("AUTO_CONFIRM_SWEEP") == "off" {
		log.Println("⏸️  Auto-confirm sweep disabled (AUTO_CONFIRM_SWEEP=off)")
		return
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			n, err := s.AutoConfirmOverdue()
			if err != nil {
				log.Printf("[Sweep] DB error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("✅ Sweep auto-confirmed %d referral request(s)", n)
			}
		}),
	)
}
