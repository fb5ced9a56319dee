package peerclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/metrics"
)

const (
	clientName    = "syncd"
	clientVersion = "1.0.0"
)

// deviceID is stable across process restarts, derived the same way for
// every peer, so a peer's session list never accumulates phantom devices
// from repeated client instantiation.
var deviceID = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("syncd.local")).String()

// User is the subset of a peer's user object this system needs.
type User struct {
	ID      string
	Name    string
	IsAdmin bool
}

// Item is the subset of a peer's item object this system needs.
type Item struct {
	ID           string
	Name         string
	Path         string
	ProviderImdb string
	ProviderTmdb string
	ProviderTvdb string
}

// UserData is a target peer's current per-user state for one item, used
// by the worker's smart-sync comparison.
type UserData struct {
	Played        bool
	IsFavorite    bool
	Likes         bool
	HasLikes      bool
	Rating        float64
	HasRating     bool
	PlayCount     int64
	LastPlayed    string
	AudioIndex    int
	SubtitleIndex int
	PositionTicks int64
}

// UserDataUpdate carries the fields of a combined user-data mutation;
// zero-value pointer fields are omitted from the outbound payload.
type UserDataUpdate struct {
	PlayCount           *int64
	Played              *bool
	LastPlayedDate      *string
	Likes               *bool
	AudioStreamIndex    *int
	SubtitleStreamIndex *int
}

// Client talks to one peer's REST API, protected by a circuit breaker
// and a per-peer rate limiter. A Client is safe for concurrent use.
type Client struct {
	peer       config.PeerConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[any]
}

// New builds a Client for peer. requestsPerSecond bounds outbound calls
// to this peer so a worker tick with a large backlog cannot overwhelm a
// peer that just recovered from an outage; zero or negative falls back
// to 10 req/s.
func New(peer config.PeerConfig, requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}

	metrics.CircuitBreakerState.WithLabelValues(peer.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(peer.Name).Set(0)

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        peer.Name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &Client{
		peer: peer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		breaker: breaker,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Name returns the peer name this client was built for.
func (c *Client) Name() string { return c.peer.Name }

// ---------- user operations ----------

// ListUsers returns every user known to the peer.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var raw []jfUser
	if err := c.call(ctx, http.MethodGet, "/Users", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]User, 0, len(raw))
	for _, u := range raw {
		out = append(out, User{ID: u.ID, Name: u.Name, IsAdmin: u.Policy.IsAdministrator})
	}
	return out, nil
}

// GetAdminUserID returns the id of any user flagged as an administrator,
// used as the browsing context for a full-library refresh. Returns "" if
// none exists.
func (c *Client) GetAdminUserID(ctx context.Context) (string, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.IsAdmin {
			return u.ID, nil
		}
	}
	return "", nil
}

// FindUserByName returns the user matching name case-insensitively, or
// nil if none exists.
func (c *Client) FindUserByName(ctx context.Context, name string) (*User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Name, name) {
			return &users[i], nil
		}
	}
	return nil, nil
}

// CreateUser creates username on the peer, with password left empty on
// passwordless servers, and returns the created user.
func (c *Client) CreateUser(ctx context.Context, username, password string) (*User, error) {
	body := map[string]string{"Name": username, "Password": password}
	var u jfUser
	if err := c.call(ctx, http.MethodPost, "/Users/New", body, &u); err != nil {
		return nil, err
	}
	return &User{ID: u.ID, Name: u.Name}, nil
}

// DeleteUser removes userID from the peer.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.call(ctx, http.MethodDelete, "/Users/"+url.PathEscape(userID), nil, nil)
}

// ---------- item lookup ----------

type itemsResponse struct {
	Items []jfItem `json:"Items"`
}

// FindItemByPath looks up an item by its storage path, scoped to
// userID. Returns nil, nil on a clean miss.
func (c *Client) FindItemByPath(ctx context.Context, userID, path string) (*Item, error) {
	q := url.Values{
		"userId":    {userID},
		"path":      {path},
		"recursive": {"true"},
		"limit":     {"1"},
	}
	var resp itemsResponse
	if err := c.call(ctx, http.MethodGet, "/Items?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return jfItemToItem(resp.Items[0]), nil
}

// FindItemByProviderID looks up an item by imdb, tmdb or tvdb id, tried
// in that order; the first match wins. Returns nil, nil on a clean miss
// across all provided ids.
func (c *Client) FindItemByProviderID(ctx context.Context, userID, imdb, tmdb, tvdb string) (*Item, error) {
	for _, pair := range []struct{ provider, id string }{
		{"Imdb", imdb}, {"Tmdb", tmdb}, {"Tvdb", tvdb},
	} {
		if pair.id == "" {
			continue
		}
		q := url.Values{
			"userId":              {userID},
			"recursive":           {"true"},
			"fields":              {"ProviderIds"},
			"limit":               {"1"},
			"AnyProviderIdEquals": {pair.provider + "." + pair.id},
		}
		var resp itemsResponse
		if err := c.call(ctx, http.MethodGet, "/Items?"+q.Encode(), nil, &resp); err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, err
		}
		if len(resp.Items) > 0 {
			return jfItemToItem(resp.Items[0]), nil
		}
	}
	return nil, nil
}

// GetItemInfo fetches full item metadata, including path and provider
// ids, for the item-not-found enrichment path.
func (c *Client) GetItemInfo(ctx context.Context, userID, itemID string) (*Item, error) {
	path := fmt.Sprintf("/Users/%s/Items/%s?fields=Path,ProviderIds", url.PathEscape(userID), url.PathEscape(itemID))
	var raw jfItem
	if err := c.call(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return jfItemToItem(raw), nil
}

// GetUserData fetches the peer's current per-user state for item, used
// by the worker's smart-sync comparison.
func (c *Client) GetUserData(ctx context.Context, userID, itemID string) (*UserData, error) {
	path := fmt.Sprintf("/Users/%s/Items/%s", url.PathEscape(userID), url.PathEscape(itemID))
	var raw jfItemWithUserData
	if err := c.call(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	ud := &UserData{
		Played:        raw.UserData.Played,
		IsFavorite:    raw.UserData.IsFavorite,
		PlayCount:     raw.UserData.PlayCount,
		LastPlayed:    raw.UserData.LastPlayedDate,
		AudioIndex:    raw.UserData.AudioStreamIndex,
		SubtitleIndex: raw.UserData.SubtitleStreamIndex,
		PositionTicks: raw.UserData.PlaybackPositionTicks,
	}
	if raw.UserData.Likes != nil {
		ud.HasLikes = true
		ud.Likes = *raw.UserData.Likes
	}
	if raw.UserData.Rating != nil {
		ud.HasRating = true
		ud.Rating = *raw.UserData.Rating
	}
	return ud, nil
}

// LibraryPage is one page of a full-library listing, used by the item
// path cache's refresh when a path lookup misses.
type LibraryPage struct {
	Items      []Item
	TotalCount int
}

// libraryPageSize matches the peer REST surface's recommended page size
// for a full library walk (§6).
const libraryPageSize = 500

// ListLibraryPage fetches one page of every media item visible to
// adminUserID, starting at startIndex.
func (c *Client) ListLibraryPage(ctx context.Context, adminUserID string, startIndex int) (*LibraryPage, error) {
	q := url.Values{
		"userId":            {adminUserID},
		"recursive":         {"true"},
		"fields":            {"Path,ProviderIds"},
		"includeItemTypes":  {"Movie,Episode,Video,Audio,MusicVideo"},
		"startIndex":        {strconv.Itoa(startIndex)},
		"limit":             {strconv.Itoa(libraryPageSize)},
	}
	var resp struct {
		Items      []jfItem `json:"Items"`
		TotalCount int      `json:"TotalRecordCount"`
	}
	if err := c.call(ctx, http.MethodGet, "/Items?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(resp.Items))
	for _, raw := range resp.Items {
		items = append(items, *jfItemToItem(raw))
	}
	return &LibraryPage{Items: items, TotalCount: resp.TotalCount}, nil
}

// ---------- state mutations ----------

// UpdatePlaybackProgress sets the playback position for item without
// triggering an active-session side effect on the peer.
func (c *Client) UpdatePlaybackProgress(ctx context.Context, userID, itemID string, positionTicks int64) error {
	body := map[string]int64{"PlaybackPositionTicks": positionTicks}
	return c.call(ctx, http.MethodPost, itemUserDataPath(userID, itemID), body, nil)
}

// MarkPlayed marks item as watched for userID.
func (c *Client) MarkPlayed(ctx context.Context, userID, itemID string) error {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/Users/%s/PlayedItems/%s", url.PathEscape(userID), url.PathEscape(itemID)), nil, nil)
}

// MarkUnplayed clears the watched flag on item for userID.
func (c *Client) MarkUnplayed(ctx context.Context, userID, itemID string) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/Users/%s/PlayedItems/%s", url.PathEscape(userID), url.PathEscape(itemID)), nil, nil)
}

// AddFavorite marks item as a favorite for userID.
func (c *Client) AddFavorite(ctx context.Context, userID, itemID string) error {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/Users/%s/FavoriteItems/%s", url.PathEscape(userID), url.PathEscape(itemID)), nil, nil)
}

// RemoveFavorite clears the favorite flag on item for userID.
func (c *Client) RemoveFavorite(ctx context.Context, userID, itemID string) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/Users/%s/FavoriteItems/%s", url.PathEscape(userID), url.PathEscape(itemID)), nil, nil)
}

// UpdateRating sets a 0-10 rating for item, translated to the peer's
// likes/dislikes model at >= 5.
func (c *Client) UpdateRating(ctx context.Context, userID, itemID string, rating float64) error {
	q := url.Values{"likes": {strconv.FormatBool(rating >= 5)}}
	path := fmt.Sprintf("/Users/%s/Items/%s/Rating?%s", url.PathEscape(userID), url.PathEscape(itemID), q.Encode())
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

// UpdateUserData applies a partial user-data mutation for item. A zero
// value UserDataUpdate is a no-op that still counts as success.
func (c *Client) UpdateUserData(ctx context.Context, userID, itemID string, u UserDataUpdate) error {
	body := map[string]any{}
	if u.PlayCount != nil {
		body["PlayCount"] = *u.PlayCount
	}
	if u.Played != nil {
		body["Played"] = *u.Played
	}
	if u.LastPlayedDate != nil {
		body["LastPlayedDate"] = *u.LastPlayedDate
	}
	if u.Likes != nil {
		body["Likes"] = *u.Likes
	}
	if u.AudioStreamIndex != nil {
		body["AudioStreamIndex"] = *u.AudioStreamIndex
	}
	if u.SubtitleStreamIndex != nil {
		body["SubtitleStreamIndex"] = *u.SubtitleStreamIndex
	}
	if len(body) == 0 {
		return nil
	}
	return c.call(ctx, http.MethodPost, itemUserDataPath(userID, itemID), body, nil)
}

// HealthCheck reports whether the peer is currently reachable, bypassing
// the circuit breaker so a probe can observe recovery before the
// worker's next mutation attempt does.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet, "/System/Info/Public", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode < 500
}

func itemUserDataPath(userID, itemID string) string {
	return fmt.Sprintf("/Users/%s/Items/%s/UserData", url.PathEscape(userID), url.PathEscape(itemID))
}

type jfUser struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Policy struct {
		IsAdministrator bool `json:"IsAdministrator"`
	} `json:"Policy"`
}

type jfItem struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	Path        string `json:"Path"`
	ProviderIds struct {
		Imdb string `json:"Imdb"`
		Tmdb string `json:"Tmdb"`
		Tvdb string `json:"Tvdb"`
	} `json:"ProviderIds"`
}

func jfItemToItem(j jfItem) *Item {
	return &Item{
		ID: j.ID, Name: j.Name, Path: j.Path,
		ProviderImdb: j.ProviderIds.Imdb, ProviderTmdb: j.ProviderIds.Tmdb, ProviderTvdb: j.ProviderIds.Tvdb,
	}
}

type jfUserData struct {
	Played                bool    `json:"Played"`
	IsFavorite            bool    `json:"IsFavorite"`
	Likes                 *bool   `json:"Likes"`
	PlayCount             int64   `json:"PlayCount"`
	LastPlayedDate        string  `json:"LastPlayedDate"`
	AudioStreamIndex      int     `json:"AudioStreamIndex"`
	SubtitleStreamIndex   int     `json:"SubtitleStreamIndex"`
	PlaybackPositionTicks int64   `json:"PlaybackPositionTicks"`
	Rating                *float64 `json:"Rating"`
}

type jfItemWithUserData struct {
	jfItem
	UserData jfUserData `json:"UserData"`
}

// call executes one request through the rate limiter and circuit
// breaker, decoding a JSON response body into out when non-nil.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Peer: c.peer.Name, Err: err}
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, method, path, body, out)
	})
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(c.peer.Name, breakerOutcome(err)).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &TransportError{Peer: c.peer.Name, Err: err}
		}
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.peer.Name, "success").Inc()
	return nil
}

func breakerOutcome(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "rejected"
	}
	return "failure"
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.peer.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}

	auth := fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s", Token="%s"`,
		clientName, clientName, deviceID, clientVersion, c.peer.APIKey)
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return &TransportError{Peer: c.peer.Name, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Peer: c.peer.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Peer: c.peer.Name, Resource: path}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &UnauthorizedError{Peer: c.peer.Name}
	case resp.StatusCode >= 500:
		return &ServerError{Peer: c.peer.Name, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(resp.Body)
		return &TransportError{Peer: c.peer.Name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Peer: c.peer.Name, Err: err}
	}
	return nil
}
