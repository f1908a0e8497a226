package models

import "time"

// BroadcastTask is a single arithmetic challenge visible to all users at
// once. ExpectedResult is stored as a float because division tasks are
// checked with an epsilon tolerance; the operands are constructed so the
// quotient is always exact (see session.Manager).
type BroadcastTask struct {
	ID             string
	Content        string
	A              int
	B              int
	Operation      string
	ExpectedResult float64
	CreatedAt      time.Time
}

// BroadcastTaskResult records one user's submission against one broadcast
// task. A (TaskID, Username) pair exists at most once (the table carries a
// unique constraint) and a row is never mutated after insertion.
type BroadcastTaskResult struct {
	ID          string
	TaskID      string
	Username    string
	Answer      float64
	IsCorrect   bool
	SubmittedAt time.Time
}

// BroadcastTaskStats is one row of the task history aggregate: the task
// itself plus per-task submission counters.
type BroadcastTaskStats struct {
	BroadcastTask
	TotalSubmissions int
	CorrectCount     int
	IncorrectCount   int
}

// Accuracy returns the share of correct submissions as a percentage,
// rounded to two decimals. Zero submissions yield zero.
func (s BroadcastTaskStats) Accuracy() float64 {
	if s.TotalSubmissions == 0 {
		return 0
	}
	return float64(int(float64(s.CorrectCount)/float64(s.TotalSubmissions)*100*100+0.5)) / 100
}
