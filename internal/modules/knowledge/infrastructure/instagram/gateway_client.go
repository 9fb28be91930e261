package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ReelSage/internal/config"
	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/media"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/pkg/zlog"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// GatewayClient 通过媒体网关（兼容 instagrapi 语义的 HTTP 服务）拉取账号媒体。
// 本服务不直接实现 Instagram 私有协议，网关地址与登录凭证走配置。
type GatewayClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func NewGatewayClient(conf config.InstagramConfig) repository.MediaSource {
	timeout := time.Duration(conf.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GatewayClient{
		baseURL:  strings.TrimRight(conf.GatewayBaseURL, "/"),
		username: conf.Username,
		password: conf.Password,
		client:   &http.Client{Timeout: timeout},
	}
}

// 网关返回的媒体结构，media_type 跟随 Instagram 语义：1=图片 2=视频 8=合集
type gatewayMedia struct {
	Pk        string `json:"pk"`
	MediaType int    `json:"media_type"`
	Code      string `json:"code"`
	VideoURL  string `json:"video_url"`
	TakenAt   int64  `json:"taken_at"`
}

func mapMediaType(t int) media.Type {
	switch t {
	case 2:
		return media.TypeVideo
	case 8:
		return media.TypeCarousel
	default:
		return media.TypeImage
	}
}

func (g *GatewayClient) RecentMedia(ctx context.Context, account string, limit int) ([]media.Item, error) {
	reqURL := fmt.Sprintf("%s/v1/users/%s/medias?amount=%d", g.baseURL, url.PathEscape(account), limit)

	var raw []gatewayMedia
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(g.username, g.password)
		resp, err := g.client.Do(req)
		if err != nil {
			// 网络抖动，可重试
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&raw)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("gateway auth rejected: %s", resp.Status))
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("gateway %s", resp.Status)
		default:
			return backoff.Permanent(fmt.Errorf("gateway %s", resp.Status))
		}
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return nil, kerr.NewStageError(kerr.StageFetch, "", fmt.Errorf("account %s: %w", account, err))
	}

	items := make([]media.Item, 0, len(raw))
	for _, m := range raw {
		items = append(items, media.Item{
			ID:       m.Pk,
			Type:     mapMediaType(m.MediaType),
			Code:     m.Code,
			VideoURL: m.VideoURL,
			TakenAt:  time.Unix(m.TakenAt, 0),
		})
	}
	zlog.Info("拉取账号媒体完成", zap.String("account", account), zap.Int("count", len(items)))
	return items, nil
}

// Download 把视频流式写入 dir/{media_id}.mp4
func (g *GatewayClient) Download(ctx context.Context, item media.Item, dir string) (string, error) {
	if item.VideoURL == "" {
		return "", kerr.NewStageError(kerr.StageDownload, item.ID, fmt.Errorf("media has no video url"))
	}
	dst := filepath.Join(dir, item.ID+".mp4")

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.VideoURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("download %s", resp.Status)
			}
			return backoff.Permanent(fmt.Errorf("download %s", resp.Status))
		}

		f, err := os.Create(dst)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()
		if _, err := io.Copy(f, resp.Body); err != nil {
			// 半截文件不留盘
			_ = os.Remove(dst)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", kerr.NewStageError(kerr.StageDownload, item.ID, err)
	}
	return dst, nil
}

// retryPolicy 外部调用统一的指数退避，最多三次尝试
func retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx)
}
