package snapgrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
	"social_metrics/internal/provider"
)

// Adapter pulls posts and comments from the SnapGrid scrape API. One
// instance is registered per platform; SnapGrid multiplexes platforms
// behind a single paged JSON API.
type Adapter struct {
	platform   domain.Platform
	httpClient *http.Client
	baseURL    string
	apiToken   string
	pageSize   int
	logger     *slog.Logger
}

func New(platform domain.Platform, cfg config.ProviderConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		platform: platform,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		pageSize: cfg.PageSize,
		logger:   logger.With("provider", "snapgrid", "platform", platform),
	}
}

// Platform returns the platform this adapter instance serves.
func (a *Adapter) Platform() domain.Platform {
	return a.platform
}

// ValidateConfig checks the provider settings at registration time.
func (a *Adapter) ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if cfg.APIToken == "" {
		return errors.New("api_token is required")
	}
	if cfg.PageSize < 1 {
		return errors.New("page_size must be positive")
	}
	return nil
}

// Extract looks up the profile snapshot, then returns a stream that pages
// through records lazily. Record pages are only fetched as the stream is
// consumed.
func (a *Adapter) Extract(ctx context.Context, req provider.ExtractRequest) (*provider.Extraction, error) {
	prof, err := a.fetchProfile(ctx, req.Profile.Username)
	if err != nil {
		return nil, err
	}

	return &provider.Extraction{
		RunID: prof.RunID,
		Snapshot: domain.ProfileSnapshot{
			FollowersCount: prof.FollowersCount,
			FollowingCount: prof.FollowingCount,
			ObservedAt:     time.Now().UTC(),
		},
		Records: &stream{
			adapter:  a,
			username: req.Profile.Username,
			maxPosts: req.MaxPosts,
			since:    req.Since,
			comments: req.ExtractComments,
		},
	}, nil
}

func (a *Adapter) fetchProfile(ctx context.Context, username string) (*ProfileResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/profiles/%s", a.baseURL, a.platform, url.PathEscape(username))

	var prof ProfileResponse
	if err := a.doRequest(ctx, endpoint, &prof); err != nil {
		return nil, err
	}
	return &prof, nil
}

func (a *Adapter) fetchRecordsPage(ctx context.Context, username string, page, maxPosts int, since int64, comments bool) (*RecordsResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/profiles/%s/records?pageSize=%d&page=%d&maxPosts=%d&comments=%t",
		a.baseURL, a.platform, url.PathEscape(username), a.pageSize, page, maxPosts, comments)
	if since > 0 {
		endpoint += fmt.Sprintf("&since=%d", since)
	}

	var resp RecordsResponse
	if err := a.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *Adapter) doRequest(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NewExtractError(domain.ErrorTransient, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return domain.NewExtractError(domain.ErrorTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if kind, terminal := classifyStatus(resp.StatusCode); terminal {
		var apiErr ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return domain.NewExtractError(kind, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewExtractError(domain.ErrorTransient, fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// classifyStatus maps an HTTP status to an error kind. The bool reports
// whether the status is a failure at all.
func classifyStatus(status int) (domain.ErrorKind, bool) {
	switch {
	case status == http.StatusOK:
		return "", false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrorAuth, true
	case status == http.StatusNotFound:
		return domain.ErrorNotFound, true
	case status == http.StatusTooManyRequests:
		return domain.ErrorRateLimited, true
	default:
		return domain.ErrorTransient, true
	}
}

// stream pages through SnapGrid records, one API page per buffer refill.
type stream struct {
	adapter  *Adapter
	username string
	maxPosts int
	since    int64
	comments bool

	page    int
	buf     []Item
	current *domain.RawRecord
	skipped int
	done    bool
	err     error
}

func (s *stream) Next(ctx context.Context) bool {
	for {
		if s.err != nil {
			return false
		}
		if len(s.buf) == 0 {
			if s.done {
				return false
			}
			if !s.fetchNext(ctx) {
				return false
			}
		}

		item := s.buf[0]
		s.buf = s.buf[1:]

		record, err := s.transform(item)
		if err != nil {
			s.skipped++
			s.adapter.logger.Warn("skipping malformed record",
				"username", s.username,
				"platform_id", item.ID,
				"error", err,
			)
			continue
		}

		s.current = record
		return true
	}
}

func (s *stream) fetchNext(ctx context.Context) bool {
	resp, err := s.adapter.fetchRecordsPage(ctx, s.username, s.page, s.maxPosts, s.since, s.comments)
	if err != nil {
		s.err = err
		return false
	}

	s.buf = resp.Items
	s.page++
	if s.page >= resp.PageInfo.NumPages || len(resp.Items) == 0 {
		s.done = true
	}
	return len(s.buf) > 0
}

func (s *stream) transform(item Item) (*domain.RawRecord, error) {
	if item.ID == "" {
		return nil, errors.New("missing record id")
	}

	var kind domain.RecordKind
	switch item.Kind {
	case "post":
		kind = domain.RecordKindPost
	case "comment":
		kind = domain.RecordKindComment
	default:
		return nil, fmt.Errorf("unknown record kind %q", item.Kind)
	}

	if kind == domain.RecordKindComment && item.ParentPostID == "" {
		return nil, errors.New("comment missing parent post id")
	}

	publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse publishedAt %q: %w", item.PublishedAt, err)
	}

	contentType := domain.ContentTypeText
	switch item.MediaType {
	case "video":
		contentType = domain.ContentTypeVideo
	case "image":
		contentType = domain.ContentTypeImage
	case "carousel":
		contentType = domain.ContentTypeCarousel
	}

	return &domain.RawRecord{
		Kind:           kind,
		PlatformID:     item.ID,
		ParentPostID:   item.ParentPostID,
		Content:        item.Text,
		ContentType:    contentType,
		LikesCount:     item.LikeCount,
		CommentsCount:  item.CommentCount,
		SharesCount:    item.ShareCount,
		ViewsCount:     item.ViewCount,
		PublishedAt:    publishedAt,
		SentimentScore: item.Sentiment,
	}, nil
}

func (s *stream) Record() *domain.RawRecord {
	return s.current
}

func (s *stream) Skipped() int {
	return s.skipped
}

func (s *stream) Err() error {
	return s.err
}

func (s *stream) Close() error {
	s.buf = nil
	s.done = true
	return nil
}
