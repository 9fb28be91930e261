package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"ReelSage/internal/modules/knowledge/application/service"
	"ReelSage/internal/modules/knowledge/infrastructure/mq"
	"ReelSage/pkg/zlog"

	"go.uber.org/zap"
)

// UpdateConsumerWorker 消费摄取任务并驱动批量摄取
type UpdateConsumerWorker struct {
	consumer mq.Consumer
	updates  service.UpdateService
}

func NewUpdateConsumerWorker(consumer mq.Consumer, updates service.UpdateService) *UpdateConsumerWorker {
	return &UpdateConsumerWorker{consumer: consumer, updates: updates}
}

func (w *UpdateConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.updates == nil {
		return errors.New("update service is nil")
	}
	return w.consumer.Run(ctx, w)
}

func (w *UpdateConsumerWorker) Handle(ctx context.Context, msg mq.Message) error {
	var task service.UpdateTask
	if err := json.Unmarshal(msg.Value, &task); err != nil || strings.TrimSpace(task.RunID) == "" {
		// 坏消息直接丢弃，重投也没救
		zlog.Warn("摄取任务消息非法，丢弃", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}

	zlog.Info("开始执行队列摄取任务", zap.String("run_id", task.RunID), zap.Int("limit", task.Limit))
	if err := w.updates.RunTask(ctx, task); err != nil {
		zlog.Error("队列摄取任务失败", zap.String("run_id", task.RunID), zap.Error(err))
		return err
	}
	return nil
}
