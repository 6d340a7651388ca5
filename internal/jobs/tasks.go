// Package jobs runs the scheduled background work: nightly history
// snapshots and the morning activity report. Tasks go through an asynq
// queue so a restart mid-run retries instead of losing the day.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeDailySnapshot = "history:snapshot"
	TaskTypeDailyReport   = "history:report"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// DailySnapshotPayload selects the guild whose counters are copied into the
// history tables.
type DailySnapshotPayload struct {
	GuildID int64 `json:"guild_id"`
}

// DailyReportPayload selects the guild and day the report covers.
type DailyReportPayload struct {
	GuildID int64     `json:"guild_id"`
	Day     time.Time `json:"day"`
}

func NewDailySnapshotTask(guildID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(DailySnapshotPayload{GuildID: guildID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDailySnapshot, payload, asynq.Queue(QueueDefault)), nil
}

func NewDailyReportTask(guildID int64, day time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(DailyReportPayload{GuildID: guildID, Day: day})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDailyReport, payload, asynq.Queue(QueueLow)), nil
}
