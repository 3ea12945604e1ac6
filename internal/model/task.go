package model

import "time"

// TaskType is the kind of cleaning job.
type TaskType string

const (
	TaskCheckout TaskType = "Checkout"
	TaskStayover TaskType = "Stayover"
	TaskDirty    TaskType = "Dirty"
)

// TaskStatus is the progress of a cleaning job.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "InProgress"
	TaskDone       TaskStatus = "Done"
)

// Priority orders jobs within the same status.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)

// DeclineNote is the note carried by a task recording a guest who declined
// stay-over cleaning.
const DeclineNote = "guest declined"

// Workload weights per task type.
const (
	PointsCheckout = 4
	PointsDirty    = 2
	PointsStayover = 1
	PointsVacant   = 0
)

// Weight returns the workload points of a task type.
func Weight(t TaskType) int {
	switch t {
	case TaskCheckout:
		return PointsCheckout
	case TaskDirty:
		return PointsDirty
	case TaskStayover:
		return PointsStayover
	}
	return PointsVacant
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskCheckout, TaskStayover, TaskDirty:
		return true
	}
	return false
}

// Rank orders task types: Checkout < Dirty < Stayover.
func (t TaskType) Rank() int {
	switch t {
	case TaskCheckout:
		return 0
	case TaskDirty:
		return 1
	case TaskStayover:
		return 2
	}
	return 3
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Rank orders statuses: InProgress < Pending < Done.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskInProgress:
		return 0
	case TaskPending:
		return 1
	case TaskDone:
		return 2
	}
	return 3
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities: High < Normal < Low. Unknown values rank as Normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	}
	return 1
}

// HousekeepingTask is a persisted cleaning job. At most one non-Done task
// exists per (FacilityID, RoomCode).
type HousekeepingTask struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	FacilityID     string     `gorm:"size:64;not null;index:idx_task_room,priority:1" json:"facility_id"`
	RoomCode       string     `gorm:"size:32;not null;index:idx_task_room,priority:2" json:"room_code"`
	TaskType       TaskType   `gorm:"size:32;not null" json:"task_type"`
	Status         TaskStatus `gorm:"size:32;not null;index" json:"status"`
	Priority       Priority   `gorm:"size:16;not null" json:"priority"`
	Assignee       *string    `gorm:"size:128;index" json:"assignee"`
	Points         int        `gorm:"not null" json:"points"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Note           string     `gorm:"type:text" json:"note"`
	Suppressed     bool       `gorm:"not null" json:"suppressed"`
	LinenExchanged int        `gorm:"not null" json:"linen_exchanged"`
}

// Key returns the room the task belongs to.
func (t HousekeepingTask) Key() RoomKey {
	return RoomKey{FacilityID: t.FacilityID, RoomCode: t.RoomCode}
}

// IsSuppressed reports whether the task hides its room for the day. Rows
// written before the Suppressed column existed are recognised by note.
func (t HousekeepingTask) IsSuppressed() bool {
	return t.Suppressed || (t.Status == TaskDone && t.Note == DeclineNote)
}

// AssigneeName returns the assignee or "".
func (t HousekeepingTask) AssigneeName() string {
	if t.Assignee == nil {
		return ""
	}
	return *t.Assignee
}
