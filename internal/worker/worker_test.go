package worker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/scheduler"
)

type fakeStore struct {
	runs     map[int64]*domain.TimetableRun
	statuses []domain.TimetableRunStatus
	results  []*domain.TimetableResult
}

func (s *fakeStore) GetTimetableRunByID(id int64) (*domain.TimetableRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *run
	return &copied, nil
}

func (s *fakeStore) UpdateTimetableRunStatus(run *domain.TimetableRun) error {
	s.statuses = append(s.statuses, run.Status)
	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

func (s *fakeStore) InsertTimetableResult(result *domain.TimetableResult) error {
	run, ok := s.runs[result.RunID]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = domain.TimetableRunCompleted
	s.results = append(s.results, result)
	return nil
}

const trivialCatalogue = `[
	{"prof": {"id": 1, "name": "张伟"}},
	{"prof": {"id": 2, "name": "李娜"}},
	{"course": {"id": 1, "name": "高等数学"}},
	{"room": {"name": "A101", "size": 60}},
	{"group": {"id": 1, "name": "计科一班", "size": 30}},
	{"group": {"id": 2, "name": "计科二班", "size": 30}},
	{"class": {"professor": 1, "course": 1, "group": 1}},
	{"class": {"professor": 2, "course": 1, "group": 2}}
]`

func testParameters() domain.OptimizerParameters {
	return domain.OptimizerParameters{
		PopulationSize:          10,
		MaxGenerations:          200,
		MinFitness:              0.3,
		MaxRepeat:               9999,
		NumberOfCrossoverPoints: 1,
		MutationSize:            1,
		CrossoverProbability:    80,
		MutationProbability:     3,
		CrossoverMode:           "kpoint",
		ScaleFactor:             0.5,
		Seed:                    42,
	}
}

func newStore(run *domain.TimetableRun) *fakeStore {
	return &fakeStore{runs: map[int64]*domain.TimetableRun{run.ID: run}}
}

func TestProcessCompletesRun(t *testing.T) {
	store := newStore(&domain.TimetableRun{
		ID:          1,
		Name:        "2024 秋季学期",
		NotifyEmail: "planner@example.com",
		Catalogue:   []byte(trivialCatalogue),
		Parameters:  testParameters(),
		Status:      domain.TimetableRunPending,
	})

	var mails []domain.MailMessage
	var reported []int
	closed := false

	w := New(store, 5, 8, time.Minute,
		WithNotifier(func(msg domain.MailMessage) error {
			mails = append(mails, msg)
			return nil
		}),
		WithReporterFactory(func(runID int64) (scheduler.Reporter, func()) {
			assert.Equal(t, int64(1), runID)
			return scheduler.ReporterFunc(func(_ float64, generation int) {
				reported = append(reported, generation)
			}), func() { closed = true }
		}),
		WithLogEvery(0),
	)

	require.NoError(t, w.Process(context.Background(), domain.TimetableJob{RunID: 1}))

	assert.Equal(t, []domain.TimetableRunStatus{domain.TimetableRunRunning}, store.statuses)
	require.Len(t, store.results, 1)
	result := store.results[0]
	assert.Greater(t, result.Fitness, 0.3)
	assert.Len(t, result.Reservations, 2)
	assert.Len(t, reported, result.Generations)
	assert.True(t, closed)

	require.Len(t, mails, 1)
	assert.Equal(t, "timetable_completed", mails[0].Type)
	assert.Equal(t, "planner@example.com", mails[0].To)
}

func TestProcessMarksInvalidCatalogueAsFailed(t *testing.T) {
	store := newStore(&domain.TimetableRun{
		ID:          2,
		Name:        "坏配置",
		NotifyEmail: "planner@example.com",
		Catalogue:   []byte(`{"professors": [], "classes": []}`),
		Parameters:  testParameters(),
		Status:      domain.TimetableRunPending,
	})

	var mails []domain.MailMessage
	w := New(store, 5, 8, time.Minute, WithNotifier(func(msg domain.MailMessage) error {
		mails = append(mails, msg)
		return nil
	}))

	require.NoError(t, w.Process(context.Background(), domain.TimetableJob{RunID: 2}))

	assert.Equal(t, []domain.TimetableRunStatus{domain.TimetableRunRunning, domain.TimetableRunFailed}, store.statuses)
	assert.NotEmpty(t, store.runs[2].ErrorMessage)
	assert.Empty(t, store.results)
	require.Len(t, mails, 1)
	assert.Equal(t, "timetable_failed", mails[0].Type)
}

func TestProcessSkipsMissingAndFinishedRuns(t *testing.T) {
	store := newStore(&domain.TimetableRun{ID: 3, Status: domain.TimetableRunCompleted})
	w := New(store, 5, 8, time.Minute)

	assert.NoError(t, w.Process(context.Background(), domain.TimetableJob{RunID: 99}))
	assert.NoError(t, w.Process(context.Background(), domain.TimetableJob{RunID: 3}))
	assert.Empty(t, store.statuses)
}

func TestProcessRequeuesWhenInterrupted(t *testing.T) {
	store := newStore(&domain.TimetableRun{
		ID:         4,
		Catalogue:  []byte(trivialCatalogue),
		Parameters: testParameters(),
		Status:     domain.TimetableRunPending,
	})
	w := New(store, 5, 8, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Process(ctx, domain.TimetableJob{RunID: 4})
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.Equal(t, []domain.TimetableRunStatus{domain.TimetableRunRunning, domain.TimetableRunPending}, store.statuses)
	assert.Empty(t, store.results)
}

func TestProcessWithoutNotifyEmailSendsNothing(t *testing.T) {
	store := newStore(&domain.TimetableRun{
		ID:         5,
		Catalogue:  []byte(trivialCatalogue),
		Parameters: testParameters(),
		Status:     domain.TimetableRunPending,
	})

	sent := 0
	w := New(store, 5, 8, time.Minute, WithNotifier(func(domain.MailMessage) error {
		sent++
		return nil
	}))

	require.NoError(t, w.Process(context.Background(), domain.TimetableJob{RunID: 5}))
	assert.Len(t, store.results, 1)
	assert.Zero(t, sent)
}
