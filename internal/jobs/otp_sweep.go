package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/metrics"
)

type OTPSweeper interface {
	DeleteExpiredOTPSessions(ctx context.Context, before time.Time) (int64, error)
}

// StartOTPSweepJob removes OTP sessions that expired more than retention ago,
// every interval until ctx is cancelled. Younger expired sessions are left for
// verification to report. The returned channel is closed once the job has
// stopped.
func StartOTPSweepJob(ctx context.Context, store OTPSweeper, interval, retention, timeout time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				removed, err := store.DeleteExpiredOTPSessions(tickCtx, time.Now().UTC().Add(-retention))
				cancel()
				if err != nil {
					logger.Error("otp sweep failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					metrics.OTPSessionsSwept.Add(float64(removed))
					logger.Info("otp sweep removed expired sessions", zap.Int64("removed", removed))
				}
			}
		}
	}()
	return done
}
