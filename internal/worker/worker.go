package worker

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/cooldown"
	"github.com/watchbridge/syncd/internal/logging"
	"github.com/watchbridge/syncd/internal/models"
	"github.com/watchbridge/syncd/internal/peerclient"
	"github.com/watchbridge/syncd/internal/store"
)

// claimBatchSize bounds how many rows one tick pulls per queue so a
// single slow tick cannot starve the semaphore indefinitely.
const claimBatchSize = 25

// Worker drains the durable queue on a fixed tick, mirroring state onto
// each event's target peer. A Worker is built once per process and run
// until its context is cancelled.
type Worker struct {
	cfg       *config.Config
	db        *store.DB
	cooldown  *cooldown.Set
	resolvers map[string]*peerclient.Resolver
}

// New builds a Worker. resolvers must contain one entry per configured
// peer, keyed by peer name.
func New(cfg *config.Config, db *store.DB, cd *cooldown.Set, resolvers map[string]*peerclient.Resolver) *Worker {
	return &Worker{cfg: cfg, db: db, cooldown: cd, resolvers: resolvers}
}

// Run ticks every WorkerIntervalSeconds until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	interval := time.Duration(w.cfg.Sync.WorkerIntervalSeconds * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				logging.Error().Err(err).Msg("worker tick failed")
			}
		}
	}
}

// Tick runs one pass: stale-processing recovery, then a PENDING batch,
// then a WAITING_FOR_ITEM batch, each dispatched under the configured
// concurrency ceiling.
func (w *Worker) Tick(ctx context.Context) error {
	staleAfter := int64(w.cfg.Sync.StaleProcessingAfter / time.Second)
	if n, err := w.db.ResetStaleProcessing(staleAfter); err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	} else if n > 0 {
		logging.Warn().Int64("count", n).Msg("recovered stale PROCESSING rows")
	}

	pending, err := w.db.ClaimPending(claimBatchSize)
	if err != nil {
		return fmt.Errorf("claim pending: %w", err)
	}
	w.processBatch(ctx, pending)

	waiting, err := w.db.ClaimWaiting(claimBatchSize)
	if err != nil {
		return fmt.Errorf("claim waiting: %w", err)
	}
	w.processBatch(ctx, waiting)

	return nil
}

func (w *Worker) processBatch(ctx context.Context, events []*models.PendingEvent) {
	if len(events) == 0 {
		return
	}

	sem := make(chan struct{}, w.cfg.Sync.MaxConcurrent)
	done := make(chan struct{}, len(events))
	for _, ev := range events {
		ev := ev
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			w.processEvent(ctx, ev)
		}()
	}
	for range events {
		<-done
	}
}

// processEvent runs steps (a)-(e) of event processing for one row. All
// failures are persisted via the store's Fail/MarkWaitingForItem/
// PermanentlyFail methods; this method itself never returns an error to
// its caller, since a single bad row must not stall the batch.
func (w *Worker) processEvent(ctx context.Context, ev *models.PendingEvent) {
	resolver, ok := w.resolvers[ev.TargetPeer]
	if !ok {
		_ = w.db.PermanentlyFail(ev, "unknown target peer "+ev.TargetPeer)
		return
	}
	client := resolver.Client()

	targetUserID, err := w.resolveTargetUser(ctx, resolver, ev)
	if err != nil {
		w.fail(ev, err)
		return
	}
	if targetUserID == "" {
		_ = w.db.Fail(ev, "user not found on target peer")
		return
	}

	var intent models.SyncIntentData
	if err := json.Unmarshal([]byte(ev.EventData), &intent); err != nil {
		_ = w.db.PermanentlyFail(ev, "corrupt event_data: "+err.Error())
		return
	}

	targetItem, err := w.resolveTargetItem(ctx, resolver, targetUserID, ev)
	if err != nil {
		w.fail(ev, err)
		return
	}
	if targetItem == nil {
		w.handleItemNotFound(ev)
		return
	}

	if skip, skippedValue := w.smartSyncSkip(ctx, client, targetUserID, targetItem.ID, ev.EventType, intent); skip {
		_ = w.db.Complete(ev, skippedValue+" (already set)")
		return
	}

	if w.cfg.Sync.DryRun {
		logging.Info().Str("peer", ev.TargetPeer).Str("event", string(ev.EventType)).
			Str("item", targetItem.ID).Msg("dry run: would execute mutation")
		w.onSuccess(ev, "dry-run")
		return
	}

	syncedValue, err := w.executeMutation(ctx, client, targetUserID, targetItem.ID, ev.EventType, intent)
	if err != nil {
		if nf, ok := err.(*peerclient.NotFoundError); ok {
			_ = w.db.InvalidateItemPath(ev.TargetPeer, ev.ItemPath)
			_ = w.db.Fail(ev, nf.Error())
			return
		}
		w.fail(ev, err)
		return
	}
	w.onSuccess(ev, syncedValue)
}

func (w *Worker) onSuccess(ev *models.PendingEvent, syncedValue string) {
	if err := w.db.Complete(ev, syncedValue); err != nil {
		logging.Error().Err(err).Int64("event_id", ev.ID).Msg("failed to complete event")
		return
	}
	w.cooldown.Mark(ev.TargetPeer, ev.Username, ev.IdentityKey(), ev.EventType)
}

// fail classifies err and routes it to the general retry-with-backoff
// path; 404s surface here too when they are not about a cached item id
// (e.g. an unexpected user 404), since those are ordinary transient
// failures per the error taxonomy.
func (w *Worker) fail(ev *models.PendingEvent, err error) {
	if err := w.db.Fail(ev, err.Error()); err != nil {
		logging.Error().Err(err).Int64("event_id", ev.ID).Msg("failed to record event failure")
	}
}

// resolveTargetUser implements step (a): C4 lookup, falling back to a
// peer-side find-by-name and upsert. Returns "" (no error) when the
// user genuinely does not exist on the target peer.
func (w *Worker) resolveTargetUser(ctx context.Context, resolver *peerclient.Resolver, ev *models.PendingEvent) (string, error) {
	mapping, err := w.db.GetUserMapping(ev.Username, ev.TargetPeer)
	if err != nil {
		return "", err
	}
	if mapping != nil {
		return mapping.PeerUserID, nil
	}

	user, err := resolver.Client().FindUserByName(ctx, ev.Username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	if err := w.db.UpsertUserMapping(ev.Username, ev.TargetPeer, user.ID); err != nil {
		return "", err
	}
	return user.ID, nil
}

// resolveTargetItem implements step (b): path lookup (via the shared,
// admin-scoped Item Path Cache resolver) takes precedence over a
// provider-id search scoped to the target user.
func (w *Worker) resolveTargetItem(ctx context.Context, resolver *peerclient.Resolver, targetUserID string, ev *models.PendingEvent) (*peerclient.Item, error) {
	if ev.ItemPath != "" {
		adminID, err := resolver.AdminUserID(ctx)
		if err != nil {
			return nil, err
		}
		return resolver.ItemByPath(ctx, adminID, ev.ItemPath)
	}
	if ev.ProviderImdb == "" && ev.ProviderTmdb == "" && ev.ProviderTvdb == "" {
		return nil, nil
	}
	return resolver.ItemByProviderID(ctx, targetUserID, ev.ProviderImdb, ev.ProviderTmdb, ev.ProviderTvdb)
}

// handleItemNotFound implements the item-not-found branch: a longest-
// prefix Path Policy match decides between permanent failure and
// parking the row in WAITING_FOR_ITEM.
func (w *Worker) handleItemNotFound(ev *models.PendingEvent) {
	policy := w.cfg.PathPolicy(ev.ItemPath)
	if policy == nil || policy.AbsentRetryCount == 0 {
		_ = w.db.PermanentlyFail(ev, "item not found on target peer and no retry policy matched")
		return
	}
	if policy.AbsentRetryCount == -1 || ev.ItemNotFoundCount+1 < policy.AbsentRetryCount {
		if err := w.db.MarkWaitingForItem(ev, policy.AbsentRetryCount, policy.RetryDelaySeconds, "item not found on target peer"); err != nil {
			logging.Error().Err(err).Int64("event_id", ev.ID).Msg("failed to mark event waiting for item")
		}
		return
	}
	_ = w.db.PermanentlyFail(ev, fmt.Sprintf("item not found on target peer after %d attempts", ev.ItemNotFoundCount+1))
}

// smartSyncSkip implements step (c): for comparable event types, fetch
// the target's current user data and decide whether the desired value
// is already in effect. PROGRESS is never skipped, since a user may
// intentionally seek backwards.
func (w *Worker) smartSyncSkip(ctx context.Context, client *peerclient.Client, userID, itemID string, eventType models.EventType, intent models.SyncIntentData) (bool, string) {
	if eventType == models.EventProgress {
		return false, ""
	}

	current, err := client.GetUserData(ctx, userID, itemID)
	if err != nil || current == nil {
		return false, ""
	}

	switch eventType {
	case models.EventWatched:
		return current.Played == intent.Played, fmt.Sprintf("played=%v", intent.Played)
	case models.EventFavorite:
		return current.IsFavorite == intent.IsFavorite, fmt.Sprintf("favorite=%v", intent.IsFavorite)
	case models.EventLikes:
		return current.HasLikes && current.Likes == intent.Likes, fmt.Sprintf("likes=%v", intent.Likes)
	case models.EventRating:
		return current.HasRating && current.Rating == intent.Rating, fmt.Sprintf("rating=%v", intent.Rating)
	case models.EventAudioStream:
		return current.AudioIndex == intent.AudioIndex, fmt.Sprintf("audio_index=%d", intent.AudioIndex)
	case models.EventSubtitleStream:
		return current.SubtitleIndex == intent.SubtitleIndex, fmt.Sprintf("subtitle_index=%d", intent.SubtitleIndex)
	case models.EventPlayCount:
		return current.PlayCount >= intent.PlayCount, fmt.Sprintf("play_count=%d", intent.PlayCount)
	case models.EventLastPlayed:
		return lastPlayedCovers(current.LastPlayed, intent.LastPlayed), fmt.Sprintf("last_played=%s", intent.LastPlayed)
	default:
		return false, ""
	}
}

// lastPlayedCovers reports whether current already reflects a moment at
// or after desired; unparsable timestamps never skip, erring toward
// re-sending the write.
func lastPlayedCovers(current, desired string) bool {
	if current == "" || desired == "" {
		return false
	}
	c, err := time.Parse(time.RFC3339, current)
	if err != nil {
		return false
	}
	d, err := time.Parse(time.RFC3339, desired)
	if err != nil {
		return false
	}
	return !c.Before(d)
}

// executeMutation implements step (d): the single C1 call matching
// eventType, returning a human-readable synced_value for the audit log.
func (w *Worker) executeMutation(ctx context.Context, client *peerclient.Client, userID, itemID string, eventType models.EventType, intent models.SyncIntentData) (string, error) {
	switch eventType {
	case models.EventProgress:
		if err := client.UpdatePlaybackProgress(ctx, userID, itemID, intent.PositionTicks); err != nil {
			return "", err
		}
		return fmt.Sprintf("position_ticks=%d", intent.PositionTicks), nil

	case models.EventWatched:
		var err error
		if intent.Played {
			err = client.MarkPlayed(ctx, userID, itemID)
		} else {
			err = client.MarkUnplayed(ctx, userID, itemID)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("played=%v", intent.Played), nil

	case models.EventFavorite:
		var err error
		if intent.IsFavorite {
			err = client.AddFavorite(ctx, userID, itemID)
		} else {
			err = client.RemoveFavorite(ctx, userID, itemID)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("favorite=%v", intent.IsFavorite), nil

	case models.EventRating:
		if err := client.UpdateRating(ctx, userID, itemID, intent.Rating); err != nil {
			return "", err
		}
		return fmt.Sprintf("rating=%v", intent.Rating), nil

	case models.EventLikes:
		likes := intent.Likes
		if err := client.UpdateUserData(ctx, userID, itemID, peerclient.UserDataUpdate{Likes: &likes}); err != nil {
			return "", err
		}
		return fmt.Sprintf("likes=%v", likes), nil

	case models.EventPlayCount:
		count := intent.PlayCount
		if err := client.UpdateUserData(ctx, userID, itemID, peerclient.UserDataUpdate{PlayCount: &count}); err != nil {
			return "", err
		}
		return fmt.Sprintf("play_count=%d", count), nil

	case models.EventLastPlayed:
		lastPlayed := intent.LastPlayed
		if err := client.UpdateUserData(ctx, userID, itemID, peerclient.UserDataUpdate{LastPlayedDate: &lastPlayed}); err != nil {
			return "", err
		}
		return fmt.Sprintf("last_played=%s", lastPlayed), nil

	case models.EventAudioStream:
		idx := intent.AudioIndex
		if err := client.UpdateUserData(ctx, userID, itemID, peerclient.UserDataUpdate{AudioStreamIndex: &idx}); err != nil {
			return "", err
		}
		return fmt.Sprintf("audio_index=%d", idx), nil

	case models.EventSubtitleStream:
		idx := intent.SubtitleIndex
		if err := client.UpdateUserData(ctx, userID, itemID, peerclient.UserDataUpdate{SubtitleStreamIndex: &idx}); err != nil {
			return "", err
		}
		return fmt.Sprintf("subtitle_index=%d", idx), nil

	default:
		return "", fmt.Errorf("worker: unhandled event type %s", eventType)
	}
}
