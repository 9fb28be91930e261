package service

import (
	"context"

	"ReelSage/internal/modules/knowledge/application/dto/request"
	"ReelSage/internal/modules/knowledge/application/dto/respond"
	"ReelSage/internal/modules/knowledge/infrastructure/pipeline"
)

type AnswerService interface {
	Answer(ctx context.Context, req request.QueryRequest) (*respond.QueryRespond, error)
}

type answerService struct {
	p *pipeline.AnswerPipeline
}

func NewAnswerService(p *pipeline.AnswerPipeline) AnswerService {
	return &answerService{p: p}
}

func (s *answerService) Answer(ctx context.Context, req request.QueryRequest) (*respond.QueryRespond, error) {
	res, err := s.p.Answer(ctx, &pipeline.AnswerRequest{Question: req.Question, TopK: req.TopK})
	if err != nil {
		return nil, err
	}
	return &respond.QueryRespond{
		QueryID:  res.QueryID,
		Question: res.Question,
		Answer:   res.Answer,
		Chunks:   res.Chunks,
		Timing: respond.TimingInfo{
			EmbeddingMs: res.EmbeddingMs,
			SearchMs:    res.SearchMs,
			LLMMs:       res.LLMMs,
			TotalMs:     res.DurationMs,
		},
	}, nil
}
