package eventparser

import (
	"time"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/models"
)

const (
	notificationPlaybackStop     = "PlaybackStop"
	notificationPlaybackProgress = "PlaybackProgress"
	notificationUserDataSaved    = "UserDataSaved"
)

// Parser turns one inbound webhook envelope into zero or more sync
// intents, gated by the configured feature flags and a progress
// debounce window. A Parser is safe for concurrent use.
type Parser struct {
	cfg       *config.SyncConfig
	debouncer *Debouncer
}

// New builds a Parser from the sync feature flags. cfg.ProgressDebounceSecond
// of zero falls back to DefaultDebounceWindow.
func New(cfg *config.SyncConfig) *Parser {
	window := time.Duration(cfg.ProgressDebounceSecond) * time.Second
	return &Parser{cfg: cfg, debouncer: NewDebouncer(window)}
}

// Parse converts env, received from sourcePeer at now, into sync intents.
// Every returned intent shares env's identity fields; only Data and
// EventType vary. An unrecognized NotificationType, a disabled feature,
// or (for UserDataSaved) a save_reason of "Import" all yield no intents.
func (p *Parser) Parse(env *models.WebhookEnvelope, sourcePeer string, now time.Time) []models.SyncIntent {
	switch env.NotificationType {
	case notificationPlaybackStop:
		return p.parsePlaybackStop(env, sourcePeer)
	case notificationPlaybackProgress:
		return p.parsePlaybackProgress(env, sourcePeer, now)
	case notificationUserDataSaved:
		return p.parseUserDataSaved(env, sourcePeer)
	default:
		return nil
	}
}

func (p *Parser) parsePlaybackStop(env *models.WebhookEnvelope, sourcePeer string) []models.SyncIntent {
	if !p.cfg.WatchedStatus || !env.PlayedToCompletion {
		return nil
	}
	intent := p.base(env, sourcePeer, models.EventWatched)
	intent.Data.Played = true
	return []models.SyncIntent{intent}
}

func (p *Parser) parsePlaybackProgress(env *models.WebhookEnvelope, sourcePeer string, now time.Time) []models.SyncIntent {
	if !p.cfg.PlaybackProgress || env.PlaybackPositionTicks == nil {
		return nil
	}
	ticks := *env.PlaybackPositionTicks
	if ticks <= 0 {
		return nil
	}
	if !p.debouncer.Allow(sourcePeer, env.Username, env.ItemID, now) {
		return nil
	}
	intent := p.base(env, sourcePeer, models.EventProgress)
	intent.Data.PositionTicks = ticks
	return []models.SyncIntent{intent}
}

// parseUserDataSaved emits one intent per enabled feature: WATCHED and
// FAVORITE whenever their feature is enabled (their fields are plain
// bools), the others only when their field is present on env. It skips
// the whole envelope when it originated from a bulk library import.
func (p *Parser) parseUserDataSaved(env *models.WebhookEnvelope, sourcePeer string) []models.SyncIntent {
	if env.IsImportSave() {
		return nil
	}

	var intents []models.SyncIntent

	if p.cfg.WatchedStatus {
		in := p.base(env, sourcePeer, models.EventWatched)
		in.Data.Played = env.Played
		intents = append(intents, in)
	}
	if p.cfg.Favorites {
		in := p.base(env, sourcePeer, models.EventFavorite)
		in.Data.IsFavorite = env.IsFavorite
		intents = append(intents, in)
	}
	if p.cfg.Likes && env.Likes != nil {
		in := p.base(env, sourcePeer, models.EventLikes)
		in.Data.Likes = *env.Likes
		intents = append(intents, in)
	}
	if p.cfg.PlayCount && env.PlayCount != nil {
		in := p.base(env, sourcePeer, models.EventPlayCount)
		in.Data.PlayCount = *env.PlayCount
		intents = append(intents, in)
	}
	if p.cfg.LastPlayedDate && env.LastPlayedDate != "" {
		in := p.base(env, sourcePeer, models.EventLastPlayed)
		in.Data.LastPlayed = env.LastPlayedDate
		intents = append(intents, in)
	}
	if p.cfg.AudioStream && env.AudioStreamIndex != nil {
		in := p.base(env, sourcePeer, models.EventAudioStream)
		in.Data.AudioIndex = *env.AudioStreamIndex
		intents = append(intents, in)
	}
	if p.cfg.SubtitleStream && env.SubtitleStreamIndex != nil {
		in := p.base(env, sourcePeer, models.EventSubtitleStream)
		in.Data.SubtitleIndex = *env.SubtitleStreamIndex
		intents = append(intents, in)
	}

	return intents
}

func (p *Parser) base(env *models.WebhookEnvelope, sourcePeer string, eventType models.EventType) models.SyncIntent {
	return models.SyncIntent{
		EventType:    eventType,
		SourcePeer:   sourcePeer,
		Username:     env.Username,
		SourceUserID: env.UserID,
		SourceItemID: env.ItemID,
		ItemName:     env.ItemName,
		ItemPath:     env.ItemPath,
		ProviderImdb: env.ProviderImdb,
		ProviderTmdb: env.ProviderTmdb,
		ProviderTvdb: env.ProviderTvdb,
	}
}
