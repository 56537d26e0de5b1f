package gql

import "github.com/savaki/release-pipeline/internal/dao/rundao"

// RunStatus represents the GraphQL RunStatus enum
type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailed     RunStatus = "FAILED"
)

// FromModelRunStatus converts a rundao.RunStatus to gql.RunStatus
func FromModelRunStatus(status rundao.RunStatus) RunStatus {
	return RunStatus(status)
}

// ToModelRunStatus converts a gql.RunStatus to rundao.RunStatus
func (s RunStatus) ToModelRunStatus() rundao.RunStatus {
	return rundao.RunStatus(s)
}
