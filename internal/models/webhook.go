package models

import (
	"strings"

	json "github.com/goccy/go-json"
)

// WebhookEnvelope is the inbound notification posted to
// POST /webhook/{peer_name}. Peers vary in which optional keys they send
// and under which casing, so decoding is tolerant: unknown keys are
// ignored, and a handful of fields accept more than one source key.
type WebhookEnvelope struct {
	NotificationType string `json:"NotificationType"`
	ServerID         string `json:"ServerId"`
	ServerName       string `json:"ServerName"`

	UserID   string `json:"UserId"`
	Username string `json:"NotificationUsername"`

	ItemID   string `json:"ItemId"`
	ItemName string `json:"Name"`
	ItemType string `json:"ItemType"`
	ItemPath string `json:"Path"`

	PlaybackPositionTicks *int64 `json:"PlaybackPositionTicks"`
	PlaybackPosition      string `json:"PlaybackPosition"`
	PlayedToCompletion    bool   `json:"PlayedToCompletion"`

	// IsFavorite is read from either "IsFavorite" or "Favorite"; whichever
	// is present wins, with "IsFavorite" checked first.
	IsFavorite bool
	Played     bool `json:"Played"`

	Likes               *bool  `json:"Likes"`
	PlayCount           *int64 `json:"PlayCount"`
	LastPlayedDate      string `json:"LastPlayedDate"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex"`

	// SaveReason gates bulk-import UserDataSaved events out of the
	// pipeline. Some peers omit it or send it lowercased.
	SaveReason string

	ProviderImdb string `json:"Provider_imdb"`
	ProviderTmdb string `json:"Provider_tmdb"`
	ProviderTvdb string `json:"Provider_tvdb"`
}

// webhookAlias mirrors WebhookEnvelope's plain-tagged fields so the
// default decoder does the bulk of the work; IsFavorite and SaveReason
// are resolved separately from the raw key set below.
type webhookAlias struct {
	NotificationType string `json:"NotificationType"`
	ServerID         string `json:"ServerId"`
	ServerName       string `json:"ServerName"`

	UserID   string `json:"UserId"`
	Username string `json:"NotificationUsername"`

	ItemID   string `json:"ItemId"`
	ItemName string `json:"Name"`
	ItemType string `json:"ItemType"`
	ItemPath string `json:"Path"`

	PlaybackPositionTicks *int64 `json:"PlaybackPositionTicks"`
	PlaybackPosition      string `json:"PlaybackPosition"`
	PlayedToCompletion    bool   `json:"PlayedToCompletion"`

	Played bool `json:"Played"`

	Likes               *bool  `json:"Likes"`
	PlayCount           *int64 `json:"PlayCount"`
	LastPlayedDate      string `json:"LastPlayedDate"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex"`

	ProviderImdb string `json:"Provider_imdb"`
	ProviderTmdb string `json:"Provider_tmdb"`
	ProviderTvdb string `json:"Provider_tvdb"`
}

// UnmarshalJSON decodes the bulk of the envelope normally, then resolves
// the handful of fields whose source key varies by peer implementation.
func (w *WebhookEnvelope) UnmarshalJSON(data []byte) error {
	var alias webhookAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*w = WebhookEnvelope{
		NotificationType:      alias.NotificationType,
		ServerID:              alias.ServerID,
		ServerName:            alias.ServerName,
		UserID:                alias.UserID,
		Username:              alias.Username,
		ItemID:                alias.ItemID,
		ItemName:              alias.ItemName,
		ItemType:              alias.ItemType,
		ItemPath:              alias.ItemPath,
		PlaybackPositionTicks: alias.PlaybackPositionTicks,
		PlaybackPosition:      alias.PlaybackPosition,
		PlayedToCompletion:    alias.PlayedToCompletion,
		Played:                alias.Played,
		Likes:                 alias.Likes,
		PlayCount:             alias.PlayCount,
		LastPlayedDate:        alias.LastPlayedDate,
		AudioStreamIndex:      alias.AudioStreamIndex,
		SubtitleStreamIndex:   alias.SubtitleStreamIndex,
		ProviderImdb:          alias.ProviderImdb,
		ProviderTmdb:          alias.ProviderTmdb,
		ProviderTvdb:          alias.ProviderTvdb,
	}

	w.IsFavorite = decodeBool(raw, "IsFavorite", "Favorite")
	w.SaveReason = decodeSaveReason(raw)

	return nil
}

func decodeBool(raw map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			return b
		}
	}
	return false
}

// decodeSaveReason tolerates "SaveReason" being absent entirely or sent
// under a lowercase key, per the open question in the specification.
func decodeSaveReason(raw map[string]json.RawMessage) string {
	for key, v := range raw {
		if !strings.EqualFold(key, "SaveReason") {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return ""
}

// IsImportSave reports whether this UserDataSaved envelope originated
// from a bulk library import and should be suppressed entirely.
func (w *WebhookEnvelope) IsImportSave() bool {
	return strings.EqualFold(w.SaveReason, "Import")
}
