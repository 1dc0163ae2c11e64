package domain

import "time"

// BatchStatus enumerates social batch lifecycle states.
type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "QUEUED"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusSucceeded BatchStatus = "SUCCEEDED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

// SocialBatch is a persisted request to generate a batch of social posts.
type SocialBatch struct {
	ID           string      `json:"id"`
	Target       int         `json:"target"`
	Platforms    []string    `json:"platforms"`
	Language     string      `json:"language"`
	Status       BatchStatus `json:"status"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
