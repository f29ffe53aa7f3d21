package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/homelink/hub-go/internal/model"
	"github.com/homelink/hub-go/internal/repository"
)

type mockPairingSessionRepo struct {
	deleteCalls atomic.Int64
	deleteCount int64
}

func (m *mockPairingSessionRepo) FindLiveByPin(ctx context.Context, pin string) (*model.PairingSession, error) {
	return nil, nil
}

func (m *mockPairingSessionRepo) Create(ctx context.Context, params model.CreatePairingSessionParams) (*model.PairingSession, error) {
	return nil, nil
}

func (m *mockPairingSessionRepo) MarkUsed(ctx context.Context, pin string) (int64, error) {
	return 0, nil
}

func (m *mockPairingSessionRepo) DeleteExpiredOrUsed(ctx context.Context) (int64, error) {
	m.deleteCalls.Add(1)
	return m.deleteCount, nil
}

func (m *mockPairingSessionRepo) WithTx(tx *sqlx.Tx) repository.PairingSessionRepository {
	return m
}

type mockAdminSessionRepo struct {
	deleteCalls atomic.Int64
}

func (m *mockAdminSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	return nil, nil
}

func (m *mockAdminSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	return nil, nil
}

func (m *mockAdminSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return nil
}

func (m *mockAdminSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.deleteCalls.Add(1)
	return 0, nil
}

func TestSweepJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewSweepJob(nil, nil, time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, time.Minute, job.interval)
	})

	t.Run("sweeps immediately on start", func(t *testing.T) {
		sessions := &mockPairingSessionRepo{deleteCount: 3}
		admin := &mockAdminSessionRepo{}

		job := NewSweepJob(sessions, admin, time.Hour)
		job.Start()
		time.Sleep(20 * time.Millisecond)
		job.Stop()

		assert.Equal(t, int64(1), sessions.deleteCalls.Load())
		assert.Equal(t, int64(1), admin.deleteCalls.Load())
	})

	t.Run("sweeps again on each tick", func(t *testing.T) {
		sessions := &mockPairingSessionRepo{}

		job := NewSweepJob(sessions, nil, 30*time.Millisecond)
		job.Start()
		time.Sleep(100 * time.Millisecond)
		job.Stop()

		assert.GreaterOrEqual(t, sessions.deleteCalls.Load(), int64(3))
	})

	t.Run("stops after stop", func(t *testing.T) {
		sessions := &mockPairingSessionRepo{}

		job := NewSweepJob(sessions, nil, 20*time.Millisecond)
		job.Start()
		time.Sleep(30 * time.Millisecond)
		job.Stop()

		calls := sessions.deleteCalls.Load()
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, calls, sessions.deleteCalls.Load())
	})
}
