package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ReelSage/internal/config"
	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/pkg/zlog"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// OpenAITranscriber 调用 OpenAI 兼容的 /audio/transcriptions 接口做语音转写。
// 鉴权失败与配额耗尽视为致命错误直接放弃，网络类失败指数退避重试。
type OpenAITranscriber struct {
	apiKey     string
	baseURL    string
	model      string
	retryTimes int
	client     *http.Client
}

func NewOpenAITranscriber(conf config.AITranscribeConfig) repository.Transcriber {
	apiKey := strings.TrimSpace(conf.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	baseURL := strings.TrimRight(strings.TrimSpace(conf.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(conf.Model)
	if model == "" {
		model = "gpt-4o-transcribe"
	}
	retryTimes := conf.RetryTimes
	if retryTimes <= 0 {
		retryTimes = 3
	}
	timeout := time.Duration(conf.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAITranscriber{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		retryTimes: retryTimes,
		client:     &http.Client{Timeout: timeout},
	}
}

type transcriptionRespond struct {
	Text string `json:"text"`
}

type apiErrorRespond struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	var text string
	attempt := 0

	operation := func() error {
		attempt++
		out, err := t.transcribeOnce(ctx, audioPath)
		if err != nil {
			if Retryable(err) {
				zlog.Warn("转写失败，准备重试",
					zap.String("audio", audioPath),
					zap.Int("attempt", attempt),
					zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		text = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.retryTimes-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return "", kerr.NewStageError(kerr.StageTranscribe, "", err)
	}
	return text, nil
}

func (t *OpenAITranscriber) transcribeOnce(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", kerr.MarkTransient(err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		// 网络错误可重试
		return "", kerr.MarkTransient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyAPIError(resp)
	}

	var out transcriptionRespond
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", kerr.MarkTransient(err)
	}
	return out.Text, nil
}

// classifyAPIError 把非 200 响应分为可重试/致命两类：
// 429 要区分限流（可重试）和配额耗尽（致命），OpenAI 用 error.type 区分。
func classifyAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiErrorRespond
	_ = json.Unmarshal(raw, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	err := fmt.Errorf("transcription api %s: %s", resp.Status, msg)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return err
	case resp.StatusCode == http.StatusTooManyRequests:
		if apiErr.Error.Type == "insufficient_quota" || apiErr.Error.Code == "insufficient_quota" {
			return err
		}
		return kerr.MarkTransient(err)
	case resp.StatusCode >= 500:
		return kerr.MarkTransient(err)
	default:
		return err
	}
}

// Retryable 错误是否值得重试
func Retryable(err error) bool {
	return kerr.IsTransient(err)
}
