package snapgrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
	"social_metrics/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAdapter(serverURL string, pageSize int) *Adapter {
	return New(domain.PlatformInstagram, config.ProviderConfig{
		BaseURL:  serverURL,
		APIToken: "test-token",
		PageSize: pageSize,
		Timeout:  5 * time.Second,
	}, testLogger())
}

func extractRequest() provider.ExtractRequest {
	return provider.ExtractRequest{
		Profile:  &domain.SocialProfile{Username: "testuser", Platform: domain.PlatformInstagram},
		Kind:     domain.JobKindFull,
		MaxPosts: 50,
	}
}

func profileHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(ProfileResponse{
			Username:       "testuser",
			FollowersCount: 1200,
			FollowingCount: 80,
			RunID:          "run-7",
		})
	}
}

func drain(t *testing.T, stream provider.RecordStream) []domain.RawRecord {
	t.Helper()
	defer stream.Close()

	var records []domain.RawRecord
	for stream.Next(context.Background()) {
		records = append(records, *stream.Record())
	}
	require.NoError(t, stream.Err())
	return records
}

func TestExtract_SnapshotAndRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/instagram/profiles/testuser", profileHandler(t))
	mux.HandleFunc("/v1/instagram/profiles/testuser/records", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RecordsResponse{
			PageInfo: PageInfo{Page: 0, NumPages: 1, PageSize: 10, NumEntries: 2},
			Items: []Item{
				{Kind: "post", ID: "p1", Text: "hello", MediaType: "video", LikeCount: 10, ViewCount: 200, PublishedAt: "2026-03-10T09:00:00Z"},
				{Kind: "comment", ID: "c1", ParentPostID: "p1", Text: "nice", LikeCount: 2, PublishedAt: "2026-03-10T10:00:00Z"},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := testAdapter(server.URL, 10)
	extraction, err := adapter.Extract(context.Background(), extractRequest())
	require.NoError(t, err)

	assert.Equal(t, "run-7", extraction.RunID)
	assert.Equal(t, 1200, extraction.Snapshot.FollowersCount)
	assert.Equal(t, 80, extraction.Snapshot.FollowingCount)
	assert.False(t, extraction.Snapshot.ObservedAt.IsZero())

	records := drain(t, extraction.Records)
	require.Len(t, records, 2)

	assert.Equal(t, domain.RecordKindPost, records[0].Kind)
	assert.Equal(t, "p1", records[0].PlatformID)
	assert.Equal(t, domain.ContentTypeVideo, records[0].ContentType)
	assert.Equal(t, 200, records[0].ViewsCount)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), records[0].PublishedAt.UTC())

	assert.Equal(t, domain.RecordKindComment, records[1].Kind)
	assert.Equal(t, "p1", records[1].ParentPostID)
	assert.Equal(t, 0, extraction.Records.Skipped())
}

func TestExtract_MalformedRecordsSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/instagram/profiles/testuser", profileHandler(t))
	mux.HandleFunc("/v1/instagram/profiles/testuser/records", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RecordsResponse{
			PageInfo: PageInfo{NumPages: 1, NumEntries: 5},
			Items: []Item{
				{Kind: "post", ID: "p1", PublishedAt: "2026-03-10T09:00:00Z"},
				{Kind: "post", ID: "", PublishedAt: "2026-03-10T09:00:00Z"},          // missing id
				{Kind: "comment", ID: "c1", PublishedAt: "2026-03-10T09:00:00Z"},    // comment without parent
				{Kind: "mystery", ID: "x1", PublishedAt: "2026-03-10T09:00:00Z"},    // unknown kind
				{Kind: "post", ID: "p2", PublishedAt: "yesterday"},                  // bad timestamp
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := testAdapter(server.URL, 10)
	extraction, err := adapter.Extract(context.Background(), extractRequest())
	require.NoError(t, err)

	records := drain(t, extraction.Records)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].PlatformID)
	assert.Equal(t, 4, extraction.Records.Skipped())
}

func TestExtract_Paging(t *testing.T) {
	pages := [][]Item{
		{{Kind: "post", ID: "p1", PublishedAt: "2026-03-10T09:00:00Z"}, {Kind: "post", ID: "p2", PublishedAt: "2026-03-10T10:00:00Z"}},
		{{Kind: "post", ID: "p3", PublishedAt: "2026-03-10T11:00:00Z"}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/instagram/profiles/testuser", profileHandler(t))
	mux.HandleFunc("/v1/instagram/profiles/testuser/records", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		require.Less(t, page, len(pages))
		json.NewEncoder(w).Encode(RecordsResponse{
			PageInfo: PageInfo{Page: page, NumPages: len(pages), PageSize: 2, NumEntries: 3},
			Items:    pages[page],
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := testAdapter(server.URL, 2)
	extraction, err := adapter.Extract(context.Background(), extractRequest())
	require.NoError(t, err)

	records := drain(t, extraction.Records)
	require.Len(t, records, 3)
	assert.Equal(t, "p3", records[2].PlatformID)
}

func TestExtract_SinceForwarded(t *testing.T) {
	var gotSince string

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/instagram/profiles/testuser", profileHandler(t))
	mux.HandleFunc("/v1/instagram/profiles/testuser/records", func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		json.NewEncoder(w).Encode(RecordsResponse{PageInfo: PageInfo{NumPages: 1}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	req := extractRequest()
	req.Since = 1770000000

	adapter := testAdapter(server.URL, 10)
	extraction, err := adapter.Extract(context.Background(), req)
	require.NoError(t, err)
	drain(t, extraction.Records)

	assert.Equal(t, "1770000000", gotSince)
}

func TestExtract_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.ErrorAuth},
		{http.StatusForbidden, domain.ErrorAuth},
		{http.StatusNotFound, domain.ErrorNotFound},
		{http.StatusTooManyRequests, domain.ErrorRateLimited},
		{http.StatusInternalServerError, domain.ErrorTransient},
		{http.StatusBadGateway, domain.ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "nope", Code: "test"})
			}))
			defer server.Close()

			adapter := testAdapter(server.URL, 10)
			_, err := adapter.Extract(context.Background(), extractRequest())
			require.Error(t, err)

			var ee *domain.ExtractError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.kind, ee.Kind)
		})
	}
}

func TestExtract_StreamErrorSurfacesViaErr(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/instagram/profiles/testuser", profileHandler(t))
	mux.HandleFunc("/v1/instagram/profiles/testuser/records", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := testAdapter(server.URL, 10)
	extraction, err := adapter.Extract(context.Background(), extractRequest())
	require.NoError(t, err)
	defer extraction.Records.Close()

	assert.False(t, extraction.Records.Next(context.Background()))
	require.Error(t, extraction.Records.Err())
	assert.Equal(t, domain.ErrorTransient, domain.ClassifyError(extraction.Records.Err()))
	assert.Equal(t, 1, calls)
}

func TestValidateConfig(t *testing.T) {
	adapter := &Adapter{}

	assert.Error(t, adapter.ValidateConfig(config.ProviderConfig{APIToken: "t", PageSize: 10}))
	assert.Error(t, adapter.ValidateConfig(config.ProviderConfig{BaseURL: "https://api.snapgrid.dev", PageSize: 10}))
	assert.Error(t, adapter.ValidateConfig(config.ProviderConfig{BaseURL: "https://api.snapgrid.dev", APIToken: "t"}))
	assert.NoError(t, adapter.ValidateConfig(config.ProviderConfig{BaseURL: "https://api.snapgrid.dev", APIToken: "t", PageSize: 10}))
}
