package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ReelSage/internal/config"
	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(baseURL string) *GatewayClient {
	return NewGatewayClient(config.InstagramConfig{
		GatewayBaseURL: baseURL,
		Username:       "svc",
		Password:       "secret",
		TimeoutSeconds: 5,
	}).(*GatewayClient)
}

func TestRecentMedia_MapsGatewayPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/chef_daily/medias", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("amount"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"pk":"42","media_type":2,"code":"abc","video_url":"https://cdn/42.mp4","taken_at":1756500000},
			{"pk":"43","media_type":1,"code":"def","taken_at":1756500100},
			{"pk":"44","media_type":8,"code":"ghi","taken_at":1756500200}
		]`))
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	items, err := g.RecentMedia(context.Background(), "chef_daily", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "42", items[0].ID)
	assert.Equal(t, media.TypeVideo, items[0].Type)
	assert.Equal(t, "https://cdn/42.mp4", items[0].VideoURL)
	assert.True(t, items[0].Eligible())
	assert.Equal(t, time.Unix(1756500000, 0), items[0].TakenAt)

	assert.Equal(t, media.TypeImage, items[1].Type)
	assert.False(t, items[1].Eligible())
	assert.Equal(t, media.TypeCarousel, items[2].Type)
	assert.False(t, items[2].Eligible())
}

func TestRecentMedia_AuthRejectedNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	_, err := g.RecentMedia(context.Background(), "chef_daily", 3)
	require.Error(t, err)
	assert.Equal(t, kerr.StageFetch, kerr.StageOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRecentMedia_RetriesOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	items, err := g.RecentMedia(context.Background(), "chef_daily", 3)
	require.NoError(t, err)
	assert.Len(t, items, 0)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDownload_WritesVideoFile(t *testing.T) {
	payload := []byte("fake-mp4-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	dir := t.TempDir()
	item := media.Item{ID: "42", Type: media.TypeVideo, VideoURL: srv.URL + "/video/42.mp4"}

	path, err := g.Download(context.Background(), item, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "42.mp4"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownload_MissingVideoURL(t *testing.T) {
	g := newGateway("http://127.0.0.1:0")
	_, err := g.Download(context.Background(), media.Item{ID: "42"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, kerr.StageDownload, kerr.StageOf(err))
}

func TestDownload_NotFoundNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	dir := t.TempDir()
	item := media.Item{ID: "42", Type: media.TypeVideo, VideoURL: srv.URL + "/gone.mp4"}

	_, err := g.Download(context.Background(), item, dir)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	// 失败下载不留半截文件
	_, statErr := os.Stat(filepath.Join(dir, "42.mp4"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMapMediaType(t *testing.T) {
	assert.Equal(t, media.TypeVideo, mapMediaType(2))
	assert.Equal(t, media.TypeCarousel, mapMediaType(8))
	assert.Equal(t, media.TypeImage, mapMediaType(1))
	assert.Equal(t, media.TypeImage, mapMediaType(0))
}
