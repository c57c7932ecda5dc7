package model

// JobState represents the lifecycle state of a grading job.
type JobState string

const (
	StatePending  JobState = "Pending"
	StateRunning  JobState = "Running"
	StateFinished JobState = "Finished"
	StateFailed   JobState = "Failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// JobStatus is the queryable status record for one grading job.
type JobStatus struct {
	JobID               string   `json:"job_id"`
	State               JobState `json:"state"`
	Strategy            string   `json:"strategy,omitempty"`
	TotalPointsAchieved float64  `json:"total_points_achieved"`
	MaxTotalPoints      float64  `json:"max_total_points"`
	Error               string   `json:"error,omitempty"`
	ReceivedAt          int64    `json:"received_at"`
	FinishedAt          int64    `json:"finished_at,omitempty"`
}

// StatusEventFinal marks an event for a job that reached a terminal state.
const StatusEventFinal = "job.final"

// StatusEvent is the Kafka payload published when a job finishes.
type StatusEvent struct {
	Type      string    `json:"type"`
	Status    JobStatus `json:"status"`
	CreatedAt int64     `json:"created_at"`
}
