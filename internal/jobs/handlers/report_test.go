package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkade-labs/guildxp/internal/domain"
	"github.com/arkade-labs/guildxp/internal/guildconfig"
	"github.com/arkade-labs/guildxp/internal/jobs"
	"github.com/arkade-labs/guildxp/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	snapshotUsers  int
	snapshotServer int
	serverRows     []domain.DailyServerStats
}

func (f *fakeHistory) SnapshotUsers(context.Context, int64) (int64, error) {
	f.snapshotUsers++
	return 3, nil
}

func (f *fakeHistory) SnapshotServer(context.Context, int64) error {
	f.snapshotServer++
	return nil
}

func (f *fakeHistory) UserHistory(context.Context, int64, int64, int) ([]domain.DailyUserStats, error) {
	return nil, nil
}

func (f *fakeHistory) ServerHistory(context.Context, int64, int) ([]domain.DailyServerStats, error) {
	return f.serverRows, nil
}

type fakeActivity struct {
	topMessages []domain.LeaderboardEntry
	topVoice    []domain.LeaderboardEntry
}

func (f *fakeActivity) IncrementMessages(context.Context, int64) (int64, error) { return 0, nil }

func (f *fakeActivity) IncrementVoiceMinutes(context.Context, int64, int64) (int64, error) {
	return 0, nil
}

func (f *fakeActivity) GetStats(context.Context, int64) (domain.UserStats, error) {
	return domain.UserStats{}, nil
}

func (f *fakeActivity) TopByMessages(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return f.topMessages, nil
}

func (f *fakeActivity) TopByVoice(context.Context, int) ([]domain.LeaderboardEntry, error) {
	return f.topVoice, nil
}

type fakeGuilds struct {
	cfg guildconfig.Config
}

func (f *fakeGuilds) Get(context.Context, int64) guildconfig.Config { return f.cfg }

type fakeNotifier struct {
	reports []notify.DailyReportEvent
}

func (f *fakeNotifier) TierChanged(context.Context, notify.TierChangeEvent) error { return nil }

func (f *fakeNotifier) DailyReport(_ context.Context, event notify.DailyReportEvent) error {
	f.reports = append(f.reports, event)
	return nil
}

func TestReportHandler_BuildsAndDeliversReport(t *testing.T) {
	history := &fakeHistory{
		serverRows: []domain.DailyServerStats{
			{GuildID: 42, TotalMessages: 120, TotalVoiceMinutes: 340, ActiveUsers: 7},
		},
	}
	activity := &fakeActivity{
		topMessages: []domain.LeaderboardEntry{{UserID: 1, Value: 80}, {UserID: 2, Value: 40}},
		topVoice:    []domain.LeaderboardEntry{{UserID: 3, Value: 200}},
	}
	notifier := &fakeNotifier{}
	guilds := &fakeGuilds{cfg: guildconfig.Defaults(42)}

	handler := NewReportHandler(history, activity, guilds, notifier, testLogger())

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	task, err := jobs.NewDailyReportTask(42, day)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))

	require.Len(t, notifier.reports, 1)
	report := notifier.reports[0]
	assert.NotEmpty(t, report.EventID)
	assert.Equal(t, int64(42), report.GuildID)
	assert.True(t, report.Day.Equal(day))
	assert.Equal(t, int64(120), report.TotalMessages)
	assert.Equal(t, int64(340), report.TotalVoiceMinutes)
	assert.Equal(t, int64(7), report.ActiveUsers)
	assert.Len(t, report.TopChatters, 2)
	assert.Len(t, report.TopVoice, 1)
	assert.Equal(t, int64(80), report.TopChatters[0].Value)
}

func TestReportHandler_SkipsWhenReportDisabled(t *testing.T) {
	cfg := guildconfig.Defaults(42)
	cfg.DailyReport = false

	notifier := &fakeNotifier{}
	handler := NewReportHandler(&fakeHistory{}, &fakeActivity{}, &fakeGuilds{cfg: cfg}, notifier, testLogger())

	task, err := jobs.NewDailyReportTask(42, time.Time{})
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Empty(t, notifier.reports)
}

func TestSnapshotHandler_SnapshotsUsersAndServer(t *testing.T) {
	history := &fakeHistory{}
	handler := NewSnapshotHandler(history, testLogger())

	task, err := jobs.NewDailySnapshotTask(42)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, 1, history.snapshotUsers)
	assert.Equal(t, 1, history.snapshotServer)
}
