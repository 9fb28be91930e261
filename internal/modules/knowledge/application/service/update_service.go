package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"ReelSage/internal/config"
	"ReelSage/internal/modules/knowledge/application/dto/respond"
	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/knowledge"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/internal/modules/knowledge/infrastructure/mq"
	"ReelSage/internal/modules/knowledge/infrastructure/pipeline"
	"ReelSage/pkg/util"
	"ReelSage/pkg/zlog"

	"go.uber.org/zap"
)

// UpdateTask Kafka 上流转的异步摄取任务
type UpdateTask struct {
	RunID   string `json:"run_id"`
	Account string `json:"account"`
	Limit   int    `json:"limit"`
}

type UpdateService interface {
	// Update 同步执行一次批量摄取
	Update(ctx context.Context, limit int) (*respond.UpdateRespond, error)
	// Enqueue 把摄取任务投递到 Kafka，由消费者执行
	Enqueue(ctx context.Context, limit int) (*respond.UpdateRespond, error)
	// RunTask 执行一条队列任务（消费侧调用）
	RunTask(ctx context.Context, task UpdateTask) error
}

type updateService struct {
	conf      *config.Config
	source    repository.MediaSource
	ingest    *pipeline.IngestPipeline
	registry  repository.MediaRegistry
	vs        repository.VectorStore
	publisher mq.Publisher
}

func NewUpdateService(
	conf *config.Config,
	source repository.MediaSource,
	ingest *pipeline.IngestPipeline,
	registry repository.MediaRegistry,
	vs repository.VectorStore,
	publisher mq.Publisher,
) UpdateService {
	return &updateService{
		conf:      conf,
		source:    source,
		ingest:    ingest,
		registry:  registry,
		vs:        vs,
		publisher: publisher,
	}
}

func (s *updateService) normalizeLimit(limit int) int {
	if limit > 0 {
		return limit
	}
	if s.conf.PipelineConfig.DefaultLimit > 0 {
		return s.conf.PipelineConfig.DefaultLimit
	}
	return 5
}

func (s *updateService) Update(ctx context.Context, limit int) (*respond.UpdateRespond, error) {
	return s.run(ctx, util.GenerateShortUUID(), limit)
}

// run 执行一次批量摄取。runID 由调用方给定：
// 异步路径要沿用 Enqueue 返回给调用方的那个 id，否则运行记录对不上号。
func (s *updateService) run(ctx context.Context, runID string, limit int) (*respond.UpdateRespond, error) {
	start := time.Now()

	if err := s.conf.ValidateIngest(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerr.ErrInvalidConfiguration, err)
	}
	if err := os.MkdirAll(s.conf.PipelineConfig.VideoDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create video dir: %v", kerr.ErrInvalidConfiguration, err)
	}
	if err := os.MkdirAll(s.conf.PipelineConfig.TranscriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create transcript dir: %v", kerr.ErrInvalidConfiguration, err)
	}

	limit = s.normalizeLimit(limit)
	account := strings.TrimSpace(s.conf.InstagramConfig.TargetAccount)

	rec := &knowledge.IngestRun{
		RunId:          runID,
		Account:        account,
		RequestedLimit: limit,
		Status:         knowledge.RunStatusRunning,
		StartedAt:      start,
	}
	if err := s.registry.CreateRun(ctx, rec); err != nil {
		return nil, err
	}

	res := &respond.UpdateRespond{RunID: runID, Account: account, Requested: limit}

	items, err := s.source.RecentMedia(ctx, account, limit)
	if err != nil {
		// 拉不到媒体列表整个运行直接失败，没有可隔离的单条
		rec.Status = knowledge.RunStatusFailed
		rec.ErrorMsg = err.Error()
		rec.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
		_ = s.registry.FinishRun(ctx, rec)
		return nil, err
	}

	var lastErr string
	for _, item := range items {
		// 长批次要能被关停打断
		select {
		case <-ctx.Done():
			rec.Status = knowledge.RunStatusFailed
			rec.ErrorMsg = ctx.Err().Error()
			s.finishRun(ctx, rec, res)
			res.Status = rec.Status
			res.DurationMs = time.Since(start).Milliseconds()
			return res, ctx.Err()
		default:
		}

		if !item.Eligible() {
			res.Skipped++
			zlog.Debug("跳过非视频媒体", zap.String("media_id", item.ID), zap.String("type", string(item.Type)))
			continue
		}

		// 单条媒体失败只计数，不中断整批
		if _, err := s.ingest.IngestMedia(ctx, pipeline.IngestRequest{Account: account, Item: item}); err != nil {
			res.Failed++
			lastErr = err.Error()
			zlog.Error("媒体摄取失败",
				zap.String("run_id", runID),
				zap.String("media_id", item.ID),
				zap.String("stage", string(kerr.StageOf(err))),
				zap.Error(err))
			continue
		}
		res.Processed++
	}

	// 整批结束后落盘一次
	if res.Processed > 0 {
		if err := s.vs.Flush(ctx); err != nil {
			zlog.Warn("向量库 flush 失败", zap.String("run_id", runID), zap.Error(err))
		}
	}

	rec.Processed = res.Processed
	rec.Skipped = res.Skipped
	rec.Failed = res.Failed
	rec.Status = knowledge.RunStatusFinished
	rec.ErrorMsg = lastErr
	s.finishRun(ctx, rec, res)

	res.Status = rec.Status
	res.DurationMs = time.Since(start).Milliseconds()
	zlog.Info("批量摄取完成",
		zap.String("run_id", runID),
		zap.String("account", account),
		zap.Int("requested", limit),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int64("ms", res.DurationMs))
	return res, nil
}

func (s *updateService) finishRun(ctx context.Context, run *knowledge.IngestRun, res *respond.UpdateRespond) {
	run.Processed = res.Processed
	run.Skipped = res.Skipped
	run.Failed = res.Failed
	run.FinishedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := s.registry.FinishRun(ctx, run); err != nil {
		zlog.Warn("摄取运行落库失败", zap.String("run_id", run.RunId), zap.Error(err))
	}
}

func (s *updateService) Enqueue(ctx context.Context, limit int) (*respond.UpdateRespond, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("%w: kafka publisher not configured", kerr.ErrInvalidConfiguration)
	}
	if err := s.conf.ValidateIngest(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerr.ErrInvalidConfiguration, err)
	}

	limit = s.normalizeLimit(limit)
	account := strings.TrimSpace(s.conf.InstagramConfig.TargetAccount)
	runID := util.GenerateShortUUID()

	task := UpdateTask{RunID: runID, Account: account, Limit: limit}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	_, err = s.publisher.Publish(ctx, mq.Message{
		Topic: s.conf.KafkaConfig.UpdateTopic,
		Key:   []byte(account),
		Value: payload,
	})
	if err != nil {
		return nil, err
	}

	zlog.Info("摄取任务已入队", zap.String("run_id", runID), zap.String("account", account), zap.Int("limit", limit))
	return &respond.UpdateRespond{
		RunID:     runID,
		Account:   account,
		Requested: limit,
		Status:    knowledge.RunStatusRunning,
		Enqueued:  true,
		Message:   "任务已入队，稍后执行",
	}, nil
}

func (s *updateService) RunTask(ctx context.Context, task UpdateTask) error {
	// 入队时已经把 run_id 发回给了调用方，消费侧必须沿用同一个 id
	runID := strings.TrimSpace(task.RunID)
	if runID == "" {
		runID = util.GenerateShortUUID()
	}
	_, err := s.run(ctx, runID, task.Limit)
	return err
}
