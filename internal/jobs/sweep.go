package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/repository"
)

// SweepJob periodically deletes consumed and expired pairing sessions,
// freeing their PIN values for reissue, and prunes stale admin
// sessions. It is an owned task: callers start it and must stop it.
type SweepJob struct {
	sessionRepo      repository.PairingSessionRepository
	adminSessionRepo repository.AdminSessionRepository
	interval         time.Duration
	done             chan struct{}
}

func NewSweepJob(
	sessionRepo repository.PairingSessionRepository,
	adminSessionRepo repository.AdminSessionRepository,
	interval time.Duration,
) *SweepJob {
	return &SweepJob{
		sessionRepo:      sessionRepo,
		adminSessionRepo: adminSessionRepo,
		interval:         interval,
		done:             make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runSweep(ctx, "pairing sessions", j.sessionRepo.DeleteExpiredOrUsed)
	if j.adminSessionRepo != nil {
		j.runSweep(ctx, "admin sessions", j.adminSessionRepo.DeleteExpired)
	}
}

func (j *SweepJob) runSweep(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to sweep %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("swept %s", name)
	}
}
