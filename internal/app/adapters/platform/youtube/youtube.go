package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
	"io"
	"log/slog"
	"multichat/internal/app/adapters/source"
	"multichat/internal/app/domain"
	"multichat/internal/app/domain/props"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"net/http"
	"strings"
	"sync"
	"time"
)

var ErrNoLiveStream = errors.New("no live stream found")

var _ source.Dialer = (*YouTube)(nil)

const (
	minPollInterval = 2 * time.Second
	retryDelay      = 5 * time.Second
	maxFailures     = 3

	DefaultPageURL     = "https://www.youtube.com"
	DefaultSearchRetry = 15 * time.Minute

	initialDataMarker = "var ytInitialData = "
)

type Options struct {
	APIKey   string
	Endpoint string
	// PageURL is where channel pages are read from to find the live video.
	PageURL string
	// SearchRetry is the minimum time between two search.list calls. Search
	// is only used when the channel page cannot be read.
	SearchRetry time.Duration
	Now         func() time.Time
}

// YouTube polls the live chat of the stream currently live on the channel
// stored in youtube_id.
type YouTube struct {
	log     logger.Logger
	store   ports.PropertyStore
	svc     *yt.Service
	page    *http.Client
	opts    Options
	minPoll time.Duration

	mu            sync.Mutex
	searchStarted time.Time
}

func New(ctx context.Context, log logger.Logger, store ports.PropertyStore, opts Options, base *http.Client) (*YouTube, error) {
	rt := http.DefaultTransport
	if base != nil && base.Transport != nil {
		rt = base.Transport
	}

	clientOpts := []option.ClientOption{
		option.WithHTTPClient(&http.Client{
			Transport: &transport.APIKey{Key: opts.APIKey, Transport: rt},
			Timeout:   30 * time.Second,
		}),
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := yt.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	if opts.PageURL == "" {
		opts.PageURL = DefaultPageURL
	}
	opts.PageURL = strings.TrimSuffix(opts.PageURL, "/")
	if opts.SearchRetry <= 0 {
		opts.SearchRetry = DefaultSearchRetry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	page := base
	if page == nil {
		page = &http.Client{Timeout: 10 * time.Second}
	}

	return &YouTube{
		log:     log,
		store:   store,
		svc:     svc,
		page:    page,
		opts:    opts,
		minPoll: minPollInterval,
	}, nil
}

func (y *YouTube) Source() domain.Source {
	return domain.SourceYouTube
}

func (y *YouTube) Linkage(ctx context.Context) (string, error) {
	return y.store.ChannelString(ctx, props.YouTubeID)
}

func (y *YouTube) Dial(ctx context.Context, channelID string) (source.Session, error) {
	videoID, err := y.liveVideoID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	resp, err := y.svc.Videos.List([]string{"liveStreamingDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].LiveStreamingDetails == nil || resp.Items[0].LiveStreamingDetails.ActiveLiveChatId == "" {
		return nil, fmt.Errorf("video %s has no active chat: %w", videoID, ErrNoLiveStream)
	}

	return &session{
		log:        y.log,
		svc:        y.svc,
		videoID:    videoID,
		liveChatID: resp.Items[0].LiveStreamingDetails.ActiveLiveChatId,
		minPoll:    y.minPoll,
	}, nil
}

// liveVideoID reads the channel's streams page, which costs no API quota.
// search.list (100 quota units) is the fallback when the page cannot be
// read, and runs at most once per SearchRetry.
func (y *YouTube) liveVideoID(ctx context.Context, channelID string) (string, error) {
	ids, err := y.liveVideosFromPage(ctx, channelID)
	if err == nil {
		if len(ids) == 0 {
			return "", fmt.Errorf("channel %s: %w", channelID, ErrNoLiveStream)
		}
		return ids[0], nil
	}
	y.log.Warn("Channel page lookup failed, falling back to search", slog.String("channel", channelID), slog.String("error", err.Error()))

	if !y.startSearch() {
		return "", fmt.Errorf("channel %s: search cooling down: %w", channelID, ErrNoLiveStream)
	}
	return y.searchLiveVideo(ctx, channelID)
}

// startSearch marks a search as started unless one started less than
// SearchRetry ago. The mark stays even when the search fails.
func (y *YouTube) startSearch() bool {
	now := y.opts.Now()

	y.mu.Lock()
	defer y.mu.Unlock()

	if !y.searchStarted.IsZero() && !now.After(y.searchStarted.Add(y.opts.SearchRetry)) {
		return false
	}
	y.searchStarted = now
	return true
}

func (y *YouTube) searchLiveVideo(ctx context.Context, channelID string) (string, error) {
	resp, err := y.svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("search live video: %w", err)
	}

	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			return item.Id.VideoId, nil
		}
	}
	return "", fmt.Errorf("channel %s: %w", channelID, ErrNoLiveStream)
}

// liveVideosFromPage returns the ids of videos badged LIVE on the channel's
// streams tab. An empty result means the channel is not live.
func (y *YouTube) liveVideosFromPage(ctx context.Context, channelID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.opts.PageURL+"/channel/"+channelID+"/streams", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := y.page.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch channel page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch channel page: status %d", resp.StatusCode)
	}

	data, err := decodeInitialData(resp.Body)
	if err != nil {
		return nil, err
	}
	return liveVideoIDs(data), nil
}

func decodeInitialData(r io.Reader) (any, error) {
	body, err := io.ReadAll(io.LimitReader(r, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read channel page: %w", err)
	}

	idx := bytes.Index(body, []byte(initialDataMarker))
	if idx < 0 {
		return nil, errors.New("ytInitialData not found")
	}

	var data any
	if err := json.NewDecoder(bytes.NewReader(body[idx+len(initialDataMarker):])).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode ytInitialData: %w", err)
	}
	return data, nil
}

// liveVideoIDs walks ytInitialData for videoRenderer entries carrying a LIVE
// time status overlay.
func liveVideoIDs(data any) []string {
	var ids []string

	var walk func(v any)
	walk = func(v any) {
		switch v := v.(type) {
		case map[string]any:
			for k, val := range v {
				if r, ok := val.(map[string]any); ok && k == "videoRenderer" && isLive(r) {
					if id, ok := r["videoId"].(string); ok && id != "" {
						ids = append(ids, id)
					}
				}
				walk(val)
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(data)

	return ids
}

func isLive(renderer map[string]any) bool {
	overlays, _ := renderer["thumbnailOverlays"].([]any)
	for _, o := range overlays {
		m, _ := o.(map[string]any)
		status, _ := m["thumbnailOverlayTimeStatusRenderer"].(map[string]any)
		if style, _ := status["style"].(string); style == "LIVE" {
			return true
		}
	}
	return false
}

type session struct {
	log        logger.Logger
	svc        *yt.Service
	videoID    string
	liveChatID string
	minPoll    time.Duration
}

func (s *session) Link() string {
	return "youtu.be/" + s.videoID
}

func (s *session) Close() error {
	return nil
}

func (s *session) Listen(ctx context.Context, emit func(domain.InboundMessage)) error {
	var pageToken string
	failures := 0

	for {
		call := s.svc.LiveChatMessages.List(s.liveChatID, []string{"snippet", "authorDetails"}).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case chatEnded(err):
			s.log.Info("Live chat ended", slog.String("video", s.videoID))
			return nil
		case err != nil:
			failures++
			if failures >= maxFailures {
				return fmt.Errorf("poll live chat: %w", err)
			}
			s.log.Warn("Fetch error, retrying", slog.String("error", err.Error()), slog.Int("failures", failures))
			if !sleep(ctx, retryDelay) {
				return ctx.Err()
			}
			continue
		}

		failures = 0
		if resp.OfflineAt != "" {
			s.log.Info("Stream over", slog.String("video", s.videoID))
			return nil
		}

		for _, item := range resp.Items {
			if msg, ok := toInbound(item); ok {
				emit(msg)
			}
		}

		pageToken = resp.NextPageToken
		wait := time.Duration(resp.PollingIntervalMillis) * time.Millisecond
		if wait < s.minPoll {
			wait = s.minPoll
		}
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

func toInbound(item *yt.LiveChatMessage) (domain.InboundMessage, bool) {
	if item == nil || item.Snippet == nil || item.AuthorDetails == nil {
		return domain.InboundMessage{}, false
	}

	text := item.Snippet.DisplayMessage
	if text == "" && item.Snippet.TextMessageDetails != nil {
		text = item.Snippet.TextMessageDetails.MessageText
	}
	if text == "" {
		return domain.InboundMessage{}, false
	}

	var ts time.Time
	if item.Snippet.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, item.Snippet.PublishedAt); err == nil {
			ts = t
		}
	}

	return domain.InboundMessage{
		Source: domain.SourceYouTube,
		Chatter: domain.Chatter{
			UserID:        item.AuthorDetails.ChannelId,
			Username:      item.AuthorDetails.DisplayName,
			IsBroadcaster: item.AuthorDetails.IsChatOwner,
			IsMod:         item.AuthorDetails.IsChatModerator,
		},
		Text:      text,
		Timestamp: ts,
	}, true
}

func chatEnded(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	for _, e := range gerr.Errors {
		if e.Reason == "liveChatEnded" || e.Reason == "liveChatNotFound" || e.Reason == "liveChatDisabled" {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
