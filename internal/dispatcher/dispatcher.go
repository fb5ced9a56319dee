package dispatcher

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	json "github.com/goccy/go-json"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/cooldown"
	"github.com/watchbridge/syncd/internal/eventparser"
	"github.com/watchbridge/syncd/internal/logging"
	"github.com/watchbridge/syncd/internal/models"
	"github.com/watchbridge/syncd/internal/peerclient"
	"github.com/watchbridge/syncd/internal/store"
)

const (
	notificationUserCreated = "UserCreated"
	notificationUserDeleted = "UserDeleted"
)

// Dispatcher converts inbound webhooks into durable queue rows (and, for
// user lifecycle events, direct best-effort peer mutations). A
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	cfg       *config.Config
	db        *store.DB
	cooldown  *cooldown.Set
	parser    *eventparser.Parser
	resolvers map[string]*peerclient.Resolver
}

// New builds a Dispatcher. resolvers must contain one entry per
// configured peer, keyed by peer name.
func New(cfg *config.Config, db *store.DB, cd *cooldown.Set, parser *eventparser.Parser, resolvers map[string]*peerclient.Resolver) *Dispatcher {
	return &Dispatcher{cfg: cfg, db: db, cooldown: cd, parser: parser, resolvers: resolvers}
}

// Dispatch handles one inbound webhook from sourcePeer. For ordinary
// playback/user-data notifications it returns the number of durable
// queue rows persisted. UserCreated/UserDeleted are handled as a
// synchronous fan-out and always return 0.
func (d *Dispatcher) Dispatch(ctx context.Context, sourcePeer string, env *models.WebhookEnvelope) (int, error) {
	switch env.NotificationType {
	case notificationUserCreated:
		d.fanOutUserCreated(ctx, sourcePeer, env.Username)
		return 0, nil
	case notificationUserDeleted:
		d.fanOutUserDeleted(ctx, sourcePeer, env.Username)
		return 0, nil
	}

	if env.UserID != "" {
		if err := d.db.UpsertUserMapping(env.Username, sourcePeer, env.UserID); err != nil {
			return 0, err
		}
	}

	if env.ItemPath == "" && env.ItemID != "" && env.UserID != "" {
		d.enrichItemPath(ctx, sourcePeer, env)
	}

	// Cooldown entries expire lazily on Get (internal/cooldown), so there
	// is no separate sweep pass to run here.

	intents := d.parser.Parse(env, sourcePeer, time.Now())

	enqueued := 0
	for _, intent := range intents {
		if d.cooldown.Active(sourcePeer, intent.Username, intent.IdentityKey(), intent.EventType) {
			continue
		}

		eventData, err := json.Marshal(intent.Data)
		if err != nil {
			return enqueued, err
		}

		for _, peer := range d.cfg.OtherPeers(sourcePeer) {
			ev := &models.PendingEvent{
				EventType:       intent.EventType,
				SourcePeer:      sourcePeer,
				TargetPeer:      peer.Name,
				Username:        intent.Username,
				SourceUserID:    intent.SourceUserID,
				SourceItemID:    intent.SourceItemID,
				ItemName:        intent.ItemName,
				ItemPath:        intent.ItemPath,
				ProviderImdb:    intent.ProviderImdb,
				ProviderTmdb:    intent.ProviderTmdb,
				ProviderTvdb:    intent.ProviderTvdb,
				EventData:       string(eventData),
				MaxRetries:      d.cfg.Sync.MaxRetries,
				ItemNotFoundMax: itemNotFoundMax(d.cfg, intent.ItemPath),
			}
			if _, err := d.db.Enqueue(ev); err != nil {
				if err == store.ErrDuplicatePending {
					continue
				}
				return enqueued, err
			}
			enqueued++
		}
	}

	return enqueued, nil
}

// enrichItemPath fills in env.ItemPath and provider ids from the source
// peer's item metadata when the webhook omitted them, so downstream
// identity resolution (cooldown, dedup) has something stable to key on.
func (d *Dispatcher) enrichItemPath(ctx context.Context, sourcePeer string, env *models.WebhookEnvelope) {
	resolver, ok := d.resolvers[sourcePeer]
	if !ok {
		return
	}
	item, err := resolver.Client().GetItemInfo(ctx, env.UserID, env.ItemID)
	if err != nil || item == nil {
		logging.Debug().Err(err).Str("peer", sourcePeer).Str("item_id", env.ItemID).
			Msg("item path enrichment failed, continuing without path")
		return
	}
	env.ItemPath = item.Path
	if env.ProviderImdb == "" {
		env.ProviderImdb = item.ProviderImdb
	}
	if env.ProviderTmdb == "" {
		env.ProviderTmdb = item.ProviderTmdb
	}
	if env.ProviderTvdb == "" {
		env.ProviderTvdb = item.ProviderTvdb
	}
}

func itemNotFoundMax(cfg *config.Config, path string) int {
	policy := cfg.PathPolicy(path)
	if policy == nil {
		return 0
	}
	return policy.AbsentRetryCount
}

// fanOutUserCreated creates username on every other configured peer,
// generating a random password for peers that are not passwordless.
// Best-effort: failures are logged to Sync Log and do not block the
// webhook response.
func (d *Dispatcher) fanOutUserCreated(ctx context.Context, sourcePeer, username string) {
	for _, peer := range d.cfg.OtherPeers(sourcePeer) {
		resolver, ok := d.resolvers[peer.Name]
		if !ok {
			continue
		}

		password := ""
		if !peer.Passwordless {
			var err error
			password, err = randomPassword()
			if err != nil {
				d.logLifecycle(sourcePeer, peer.Name, username, false, "generate password: "+err.Error())
				continue
			}
		}

		if _, err := resolver.Client().CreateUser(ctx, username, password); err != nil {
			d.logLifecycle(sourcePeer, peer.Name, username, false, "create_user: "+err.Error())
			continue
		}
		d.logLifecycle(sourcePeer, peer.Name, username, true, "created")
	}
}

// fanOutUserDeleted deletes username's mapping on every other peer that
// has one, best-effort.
func (d *Dispatcher) fanOutUserDeleted(ctx context.Context, sourcePeer, username string) {
	for _, peer := range d.cfg.OtherPeers(sourcePeer) {
		resolver, ok := d.resolvers[peer.Name]
		if !ok {
			continue
		}

		mapping, err := d.db.GetUserMapping(username, peer.Name)
		if err != nil || mapping == nil {
			continue
		}

		if err := resolver.Client().DeleteUser(ctx, mapping.PeerUserID); err != nil {
			d.logLifecycle(sourcePeer, peer.Name, username, false, "delete_user: "+err.Error())
			continue
		}
		_ = d.db.DeleteUserMapping(username, peer.Name)
		d.logLifecycle(sourcePeer, peer.Name, username, true, "deleted")
	}
}

func (d *Dispatcher) logLifecycle(sourcePeer, targetPeer, username string, success bool, message string) {
	ev := &models.PendingEvent{
		EventType:  models.EventUserLifecycle,
		SourcePeer: sourcePeer,
		TargetPeer: targetPeer,
		Username:   username,
		EventData:  "{}",
	}
	if err := d.db.LogEvent(ev, success, "", message); err != nil {
		logging.Error().Err(err).Str("peer", targetPeer).Msg("failed to log user lifecycle event")
	}
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
