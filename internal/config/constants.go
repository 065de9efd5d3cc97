package config

import "slices"

type SyncStatus string

type SyncType string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

const (
	SyncTypeScheduled SyncType = "scheduled"
	SyncTypeManual    SyncType = "manual"
	SyncTypeWebhook   SyncType = "webhook"
)

var (
	AllowedSyncTypes = []SyncType{SyncTypeScheduled, SyncTypeManual, SyncTypeWebhook}

	// ActiveStatuses occupy a slot. At most one job per slot may be in one of these.
	ActiveStatuses = []SyncStatus{SyncStatusPending, SyncStatusRunning}

	TerminalStatuses = []SyncStatus{SyncStatusCompleted, SyncStatusFailed}
)

// transitions lists every status a job may move to from a given status.
// Terminal statuses have no outgoing edges.
var transitions = map[SyncStatus][]SyncStatus{
	SyncStatusPending: {SyncStatusRunning},
	SyncStatusRunning: {SyncStatusCompleted, SyncStatusPending, SyncStatusFailed},
}

// CanTransitionTo reports whether a job in status s may move to next.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	return slices.Contains(transitions[s], next)
}

func (s SyncStatus) IsActive() bool {
	return slices.Contains(ActiveStatuses, s)
}

func (s SyncStatus) IsTerminal() bool {
	return slices.Contains(TerminalStatuses, s)
}

func (s SyncStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

func (t SyncType) Valid() bool {
	return slices.Contains(AllowedSyncTypes, t)
}
