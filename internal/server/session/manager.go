// Package session implements the arithmetic task flows: per-user tasks held
// in process memory and broadcast tasks shared through the database. The
// two flows never run at the same time; config.TaskMode picks one.
package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/dbx"
	"github.com/kpawlak/taskgrid/internal/logging"
	"github.com/kpawlak/taskgrid/internal/server/models"
	"github.com/kpawlak/taskgrid/internal/server/repositories/repomanager"
)

// Verdict is the outcome of a submitted answer.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// resultEpsilon is the tolerance for comparing submitted answers against
// the stored expected result. Division operands are constructed so the
// exact quotient always fits well inside it.
const resultEpsilon = 1e-4

// operandMax bounds the operands of non-division tasks: both are drawn
// uniformly from [1, operandMax].
const operandMax = 100

var operations = []string{"+", "-", "*", "/"}

var operationVerbs = map[string]string{
	"+": "Add",
	"-": "Subtract",
	"*": "Multiply",
	"/": "Divide",
}

// perUserTask is one outstanding challenge for one user. Only the server
// knows the expected sum.
type perUserTask struct {
	A, B int
	Sum  int
}

// Manager owns both task flows plus the login session log.
//
// Per-user state is process-local: a user's outstanding task lives in a
// mutex-guarded map and both the check-create and the compare-delete
// sequences run inside one critical section, so two concurrent requests
// for the same user cannot race a task into existence twice or answer it
// twice. Broadcast state lives in the database where a unique constraint
// provides the same exactly-once property across instances.
type Manager struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	mode        string

	mu    sync.Mutex
	tasks map[string]perUserTask
}

func NewManager(db *sql.DB, m repomanager.RepositoryManager, mode string, logger logging.Logger) *Manager {
	return &Manager{
		db:          db,
		repomanager: m,
		logger:      logger,
		mode:        mode,
		tasks:       make(map[string]perUserTask),
	}
}

// Mode returns the configured task flow, "peruser" or "broadcast".
func (s *Manager) Mode() string {
	return s.mode
}

// GetOrCreateTask returns the user's outstanding task, creating one with
// fresh random operands when none exists. The expected sum never leaves
// the server.
func (s *Manager) GetOrCreateTask(username string) (a, b int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[username]; ok {
		return task.A, task.B
	}

	task := perUserTask{A: randInt(operandMax), B: randInt(operandMax)}
	task.Sum = task.A + task.B
	s.tasks[username] = task

	return task.A, task.B
}

// SubmitResult checks the submitted sum against the user's outstanding
// task. The task is deleted whatever the verdict: one answer per task.
// common.ErrorNoActiveTask when the user has nothing outstanding.
func (s *Manager) SubmitResult(username string, sum int) (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[username]
	if !ok {
		return "", common.ErrorNoActiveTask
	}
	delete(s.tasks, username)

	if sum == task.Sum {
		return VerdictCorrect, nil
	}
	return VerdictIncorrect, nil
}

// CreateBroadcastTask generates one shared task with a uniformly chosen
// operation and persists it. Division operands are constructed backwards
// from the quotient so the expected result is always exact: b in [1,9],
// quotient in [1,10], a = b * quotient.
func (s *Manager) CreateBroadcastTask(ctx context.Context) (*models.BroadcastTask, error) {
	op := operations[randInt(len(operations))-1]

	var a, b int
	var expected float64
	switch op {
	case "+":
		a, b = randInt(operandMax), randInt(operandMax)
		expected = float64(a + b)
	case "-":
		a, b = randInt(operandMax), randInt(operandMax)
		expected = float64(a - b)
	case "*":
		a, b = randInt(operandMax), randInt(operandMax)
		expected = float64(a * b)
	case "/":
		b = randInt(9)
		a = b * randInt(10)
		expected = float64(a) / float64(b)
	}

	task := &models.BroadcastTask{
		ID:             uuid.NewString(),
		Content:        fmt.Sprintf("%s %d and %d", operationVerbs[op], a, b),
		A:              a,
		B:              b,
		Operation:      op,
		ExpectedResult: expected,
	}

	if err := s.repomanager.Broadcasts(s.db).Create(ctx, task); err != nil {
		return nil, fmt.Errorf("error creating broadcast task: %w", err)
	}

	return task, nil
}

// LatestBroadcastTask returns the newest shared task, or
// common.ErrorNotFound when none was ever created.
func (s *Manager) LatestBroadcastTask(ctx context.Context) (*models.BroadcastTask, error) {
	return s.repomanager.Broadcasts(s.db).Latest(ctx)
}

// SubmitBroadcastResult grades one user's answer to one shared task and
// records it. Lookup and insert run in one transaction so a grade is never
// recorded against a task that vanished in between. The repository's
// unique constraint makes a second submission by the same user surface as
// common.ErrorAlreadySubmitted; unknown task ids yield
// common.ErrorNotFound. A recorded verdict is immutable.
func (s *Manager) SubmitBroadcastResult(ctx context.Context, taskID string, value float64, username string) (Verdict, error) {
	var verdict Verdict

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Broadcasts(tx)

		task, err := repo.Find(ctx, taskID)
		if err != nil {
			return err
		}

		diff := value - task.ExpectedResult
		correct := diff > -resultEpsilon && diff < resultEpsilon

		result := &models.BroadcastTaskResult{
			ID:        uuid.NewString(),
			TaskID:    taskID,
			Username:  username,
			Answer:    value,
			IsCorrect: correct,
		}
		if err := repo.InsertResult(ctx, result); err != nil {
			return err
		}

		verdict = VerdictIncorrect
		if correct {
			verdict = VerdictCorrect
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return verdict, nil
}

// BroadcastHistory returns every shared task, newest first, with its
// submission aggregates.
func (s *Manager) BroadcastHistory(ctx context.Context) ([]models.BroadcastTaskStats, error) {
	return s.repomanager.Broadcasts(s.db).History(ctx)
}

// RecordActiveSession appends one login record to the session log.
func (s *Manager) RecordActiveSession(ctx context.Context, username, sourceAddr string) error {
	return s.repomanager.ActiveSessions(s.db).Append(ctx, username, sourceAddr)
}

// ListActiveSessions returns the latest login record per username.
func (s *Manager) ListActiveSessions(ctx context.Context) ([]models.ActiveSession, error) {
	return s.repomanager.ActiveSessions(s.db).ListLatest(ctx)
}

// randInt returns a uniform random integer in [1, n] from the system
// CSPRNG. Like common.GenerateRandByteArray it panics when the source
// fails, which only happens on a broken platform.
func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64()) + 1
}
