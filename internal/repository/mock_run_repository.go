package repository

import (
	"context"
	"sync"

	"github.com/hydronote/groundwatch/internal/task"
)

// MockRunRepository records calls for engine tests.
type MockRunRepository struct {
	mu               sync.Mutex
	SaveRunCalls     []string
	MarkRunningCalls []string
	CompleteCalls    []CompleteCall
	FailCalls        []FailCall
	LogEventCalls    []LogEventCall
	SaveRunError     error
	CompleteError    error
	FailError        error
}

type CompleteCall struct {
	TaskID     string
	DurationMs int
}

type FailCall struct {
	TaskID     string
	Reason     string
	DurationMs int
}

type LogEventCall struct {
	TaskID  string
	Step    string
	Status  string
	Message string
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{}
}

func (m *MockRunRepository) SaveRun(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveRunCalls = append(m.SaveRunCalls, t.ID)
	return m.SaveRunError
}

func (m *MockRunRepository) MarkRunning(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkRunningCalls = append(m.MarkRunningCalls, taskID)
	return nil
}

func (m *MockRunRepository) CompleteRun(ctx context.Context, taskID string, durationMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{TaskID: taskID, DurationMs: durationMs})
	return m.CompleteError
}

func (m *MockRunRepository) FailRun(ctx context.Context, taskID, reason string, durationMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FailCalls = append(m.FailCalls, FailCall{TaskID: taskID, Reason: reason, DurationMs: durationMs})
	return m.FailError
}

func (m *MockRunRepository) LogEvent(ctx context.Context, taskID, step, status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LogEventCalls = append(m.LogEventCalls, LogEventCall{TaskID: taskID, Step: step, Status: status, Message: message})
	return nil
}

func (m *MockRunRepository) GetRunStats(ctx context.Context, hours int) ([]RunStats, error) {
	return nil, nil
}

func (m *MockRunRepository) GetRecentRuns(ctx context.Context, limit int) ([]RecentRun, error) {
	return nil, nil
}

func (m *MockRunRepository) Close() error {
	return nil
}

func (m *MockRunRepository) CompleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.CompleteCalls)
}

func (m *MockRunRepository) FailCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.FailCalls)
}
