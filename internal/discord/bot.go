// Package discord connects the gateway to the accrual engine. Handlers run
// on discordgo's event goroutines, so everything they touch downstream is
// concurrency safe.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/arkade-labs/guildxp/internal/engine"
	"github.com/arkade-labs/guildxp/internal/voice"
	"github.com/arkade-labs/guildxp/pkg/config"
	"github.com/arkade-labs/guildxp/pkg/logger"
)

// Bot owns the gateway session and routes events into the engine.
type Bot struct {
	session *discordgo.Session
	engine  *engine.Engine
	tracker *voice.Tracker
	guildID string
	log     *slog.Logger
}

// New creates the gateway bot. The session is not opened yet; wire the
// engine and tracker with Bind, then call Start.
func New(cfg config.DiscordConfig, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		session: session,
		guildID: strconv.FormatInt(cfg.GuildID, 10),
		log:     log,
	}

	session.AddHandler(b.ready)
	session.AddHandler(b.messageCreate)
	session.AddHandler(b.voiceStateUpdate)

	return b, nil
}

// Bind attaches the engine and the voice tracker. The engine needs a role
// provider built over this bot's session, so it cannot exist before the bot
// does; Bind closes the loop. Must be called before Start.
func (b *Bot) Bind(eng *engine.Engine, tracker *voice.Tracker) {
	b.engine = eng
	b.tracker = tracker
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if b.engine == nil || b.tracker == nil {
		return fmt.Errorf("bot started before Bind")
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

// Session exposes the underlying session for the role provider and health
// checks.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) ready(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("discord gateway connected",
		slog.String("username", r.User.Username),
		slog.Int("guilds", len(r.Guilds)),
	)
}

func (b *Bot) messageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != b.guildID {
		return
	}

	userID, err := parseID(m.Author.ID)
	if err != nil {
		b.log.Warn("unparseable author id", slog.String("id", m.Author.ID))
		return
	}

	ctx := logger.WithCorrelationID(context.Background(), uuid.NewString())
	b.engine.RecordMessage(ctx, userID)
}

// voiceStateUpdate maps the gateway's voice transitions onto the tracker: an
// empty channel ID means the user left voice entirely; a non-empty one is a
// join or a channel switch, which the tracker tells apart itself.
func (b *Bot) voiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.GuildID != b.guildID {
		return
	}
	if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
		return
	}

	userID, err := parseID(vs.UserID)
	if err != nil {
		b.log.Warn("unparseable user id", slog.String("id", vs.UserID))
		return
	}

	ctx := logger.WithCorrelationID(context.Background(), uuid.NewString())

	if vs.ChannelID == "" {
		b.tracker.HandleLeave(ctx, userID)
		return
	}

	channelID, err := parseID(vs.ChannelID)
	if err != nil {
		b.log.Warn("unparseable channel id", slog.String("id", vs.ChannelID))
		return
	}

	b.tracker.HandleJoin(ctx, userID, channelID)
}

// InVoice reports whether a user currently sits in any voice channel of the
// guild, answered from the gateway state cache. known is false when the
// guild is not in the cache, which happens briefly after reconnects.
func (b *Bot) InVoice(userID int64) (present bool, known bool) {
	guild, err := b.session.State.Guild(b.guildID)
	if err != nil || guild == nil {
		return false, false
	}

	id := strconv.FormatInt(userID, 10)
	for _, vs := range guild.VoiceStates {
		if vs.UserID == id && vs.ChannelID != "" {
			return true, true
		}
	}

	return false, true
}

func parseID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}
