package queue

import (
	"context"
	"errors"
	"testing"

	"ReelSage/internal/modules/knowledge/application/dto/respond"
	"ReelSage/internal/modules/knowledge/application/service"
	"ReelSage/internal/modules/knowledge/infrastructure/mq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUpdateService struct {
	tasks  []service.UpdateTask
	runErr error
}

func (s *stubUpdateService) Update(ctx context.Context, limit int) (*respond.UpdateRespond, error) {
	return &respond.UpdateRespond{}, nil
}

func (s *stubUpdateService) Enqueue(ctx context.Context, limit int) (*respond.UpdateRespond, error) {
	return &respond.UpdateRespond{}, nil
}

func (s *stubUpdateService) RunTask(ctx context.Context, task service.UpdateTask) error {
	s.tasks = append(s.tasks, task)
	return s.runErr
}

func TestHandle_ValidTask(t *testing.T) {
	svc := &stubUpdateService{}
	w := NewUpdateConsumerWorker(nil, svc)

	err := w.Handle(context.Background(), mq.Message{
		Topic: "knowledge-update",
		Value: []byte(`{"run_id":"r1","account":"chef_daily","limit":3}`),
	})
	require.NoError(t, err)
	require.Len(t, svc.tasks, 1)
	assert.Equal(t, "r1", svc.tasks[0].RunID)
	assert.Equal(t, 3, svc.tasks[0].Limit)
}

func TestHandle_MalformedMessageDropped(t *testing.T) {
	svc := &stubUpdateService{}
	w := NewUpdateConsumerWorker(nil, svc)

	// 坏消息返回 nil，让消费组 Mark 掉，不进入重投循环
	require.NoError(t, w.Handle(context.Background(), mq.Message{Value: []byte("not-json")}))
	require.NoError(t, w.Handle(context.Background(), mq.Message{Value: []byte(`{"limit":3}`)}))
	assert.Len(t, svc.tasks, 0)
}

func TestHandle_TaskFailurePropagates(t *testing.T) {
	svc := &stubUpdateService{runErr: errors.New("gateway down")}
	w := NewUpdateConsumerWorker(nil, svc)

	err := w.Handle(context.Background(), mq.Message{Value: []byte(`{"run_id":"r1","limit":1}`)})
	require.Error(t, err)
}

func TestRun_NilDeps(t *testing.T) {
	var w *UpdateConsumerWorker
	require.Error(t, w.Run(context.Background()))

	w = NewUpdateConsumerWorker(nil, &stubUpdateService{})
	require.Error(t, w.Run(context.Background()))
}
