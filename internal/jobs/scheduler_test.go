package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"freezefit/pkg/config"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppointments struct {
	reminders atomic.Int32
	expired   atomic.Int32
	err       error

	started chan struct{}
	release chan struct{}
}

func (f *fakeAppointments) SendReminders(ctx context.Context) (int, error) {
	f.reminders.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("job ran without deadline")
	}
	return 4, f.err
}

func (f *fakeAppointments) ExpirePending(context.Context) (int, error) {
	f.expired.Add(1)
	return 2, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Log:                   logger.Discard(),
		ReminderSchedule:      "*/15 * * * *",
		PendingExpirySchedule: "0 * * * *",
		InternalSecret:        "internal-secret",
	}
}

func TestNewScheduler_RejectsInvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.PendingExpirySchedule = "every hour"

	_, err := NewScheduler(cfg, &fakeAppointments{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), JobExpirePending)
}

func TestScheduler_Names(t *testing.T) {
	s, err := NewScheduler(testConfig(), &fakeAppointments{})
	require.NoError(t, err)

	assert.Equal(t, []string{JobAppointmentReminders, JobExpirePending}, s.Names())
}

func TestScheduler_Run(t *testing.T) {
	apps := &fakeAppointments{}
	s, err := NewScheduler(testConfig(), apps)
	require.NoError(t, err)

	n, err := s.Run(context.Background(), JobAppointmentReminders)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int32(1), apps.reminders.Load())

	n, err = s.Run(context.Background(), JobExpirePending)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), apps.expired.Load())
}

func TestScheduler_RunUnknown(t *testing.T) {
	s, err := NewScheduler(testConfig(), &fakeAppointments{})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), "vacuum")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_RunPropagatesFailure(t *testing.T) {
	boom := errors.New("database is down")
	s, err := NewScheduler(testConfig(), &fakeAppointments{err: boom})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), JobExpirePending)
	assert.ErrorIs(t, err, boom)
}

// blockReminders starts a reminder run that stays in progress until the
// returned release func is called. The run's result arrives on the channel.
func blockReminders(t *testing.T, s *Scheduler, apps *fakeAppointments) (<-chan error, func()) {
	t.Helper()
	apps.started = make(chan struct{}, 1)
	apps.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), JobAppointmentReminders)
		done <- err
	}()

	select {
	case <-apps.started:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder run did not start")
	}
	return done, func() { close(apps.release) }
}

func TestScheduler_RunSkipsOverlap(t *testing.T) {
	apps := &fakeAppointments{}
	s, err := NewScheduler(testConfig(), apps)
	require.NoError(t, err)

	done, release := blockReminders(t, s, apps)

	n, err := s.Run(context.Background(), JobAppointmentReminders)
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), apps.reminders.Load())

	n, err = s.Run(context.Background(), JobExpirePending)
	require.NoError(t, err, "other jobs are not blocked")
	assert.Equal(t, 2, n)

	release()
	require.NoError(t, <-done)

	n, err = s.Run(context.Background(), JobAppointmentReminders)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int32(2), apps.reminders.Load())
}

func TestScheduler_StartStopsOnCancel(t *testing.T) {
	s, err := NewScheduler(testConfig(), &fakeAppointments{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func serve(t *testing.T, h *TriggerHandler, path, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	router := httprouter.New()
	h.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if signature != "" {
		req.Header.Set(middleware.SignatureHeader, "sha256="+signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTriggerHandler(t *testing.T) {
	cfg := testConfig()
	apps := &fakeAppointments{}
	s, err := NewScheduler(cfg, apps)
	require.NoError(t, err)
	h := NewTriggerHandler(s, cfg.InternalSecret, cfg.Log)

	body := `{}`
	valid := middleware.Sign([]byte(body), cfg.InternalSecret)

	t.Run("runs the job", func(t *testing.T) {
		rec := serve(t, h, "/internal/jobs/expire-pending", body, valid)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data RunResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, RunResult{Job: JobExpirePending, Processed: 2}, resp.Data)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := serve(t, h, "/internal/jobs/vacuum", body, valid)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		before := apps.expired.Load()
		rec := serve(t, h, "/internal/jobs/expire-pending", body, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, before, apps.expired.Load())
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec := serve(t, h, "/internal/jobs/expire-pending", body, middleware.Sign([]byte(body), "other"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("already running", func(t *testing.T) {
		done, release := blockReminders(t, s, apps)
		defer func() {
			release()
			<-done
		}()

		rec := serve(t, h, "/internal/jobs/appointment-reminders", body, valid)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
