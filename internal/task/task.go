// Package task defines the stepped background-task domain model driven by the engine.
// A task owns an ordered list of named steps, a monotonic progress estimate,
// and an append-only event log.
package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type (
	Status string
	Kind   string
)

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

const (
	KindForecastRun    Kind = "forecast_run"
	KindModelTrain     Kind = "model_train"
	KindScenarioRun    Kind = "scenario_run"
	KindReportGenerate Kind = "report_generate"
)

// Step is one named unit of work within a task. Steps share the task's
// status enum and progress strictly left to right.
type Step struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

type Task struct {
	ID         string         `json:"id"`
	OrgID      string         `json:"org_id"`
	Kind       Kind           `json:"kind"`
	Status     Status         `json:"status"`
	Steps      []Step         `json:"steps"`
	Progress   int            `json:"progress"`
	Log        []LogEntry     `json:"log"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// New allocates a queued task with one queued step per name and an initial
// log entry. The result seed, if any, is carried verbatim until completion.
func New(orgID string, kind Kind, stepNames []string, resultSeed map[string]any) *Task {
	steps := make([]Step, 0, len(stepNames))
	for _, name := range stepNames {
		steps = append(steps, Step{Name: name, Status: StatusQueued})
	}

	t := &Task{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Kind:      kind,
		Status:    StatusQueued,
		Steps:     steps,
		Result:    resultSeed,
		CreatedAt: time.Now().UTC(),
	}
	t.AppendLog("queued")

	return t
}

func (t *Task) AppendLog(message string) {
	t.Log = append(t.Log, LogEntry{At: time.Now().UTC(), Message: message})
}

// Terminal reports whether the task reached success or failed.
func (t *Task) Terminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// RunningStep returns the index of the step currently running, or -1 when
// no step is running.
func (t *Task) RunningStep() int {
	for i, s := range t.Steps {
		if s.Status == StatusRunning {
			return i
		}
	}

	return -1
}

// Duration is the wall-clock time between start and finish, zero until both
// timestamps are set.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}

	return t.FinishedAt.Sub(*t.StartedAt)
}

func (t *Task) ToJSON() (string, error) {
	data, err := json.Marshal(t)
	return string(data), err
}

func FromJSON(data string) (*Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}

	return &t, nil
}
