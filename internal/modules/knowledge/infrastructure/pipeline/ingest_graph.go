package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/knowledge"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

type ingestState struct {
	Req *IngestRequest

	VideoPath      string
	AudioPath      string
	Transcript     string
	TranscriptPath string
	Chunks         []string
	Upserted       []string
	Pruned         int

	upsertItems []repository.VectorUpsertItem

	Start time.Time
	Err   error
}

func (p *IngestPipeline) buildGraph(ctx context.Context) (compose.Runnable[*IngestRequest, *IngestResult], error) {
	const (
		Download        = "Download"
		ExtractAudio    = "ExtractAudio"
		Transcribe      = "Transcribe"
		WriteTranscript = "WriteTranscript"
		Chunk           = "Chunk"
		Embed           = "Embed"
		Upsert          = "Upsert"
		Finalize        = "Finalize"
	)

	g := compose.NewGraph[*IngestRequest, *IngestResult]()

	_ = g.AddLambdaNode(Download, compose.InvokableLambdaWithOption(p.downloadNode), compose.WithNodeName(Download))
	_ = g.AddLambdaNode(ExtractAudio, compose.InvokableLambdaWithOption(p.extractAudioNode), compose.WithNodeName(ExtractAudio))
	_ = g.AddLambdaNode(Transcribe, compose.InvokableLambdaWithOption(p.transcribeNode), compose.WithNodeName(Transcribe))
	_ = g.AddLambdaNode(WriteTranscript, compose.InvokableLambdaWithOption(p.writeTranscriptNode), compose.WithNodeName(WriteTranscript))
	_ = g.AddLambdaNode(Chunk, compose.InvokableLambdaWithOption(p.chunkNode), compose.WithNodeName(Chunk))
	_ = g.AddLambdaNode(Embed, compose.InvokableLambdaWithOption(p.embedNode), compose.WithNodeName(Embed))
	_ = g.AddLambdaNode(Upsert, compose.InvokableLambdaWithOption(p.upsertNode), compose.WithNodeName(Upsert))
	_ = g.AddLambdaNode(Finalize, compose.InvokableLambdaWithOption(p.finalizeNode), compose.WithNodeName(Finalize))

	_ = g.AddEdge(compose.START, Download)
	_ = g.AddEdge(Download, ExtractAudio)
	_ = g.AddEdge(ExtractAudio, Transcribe)
	_ = g.AddEdge(Transcribe, WriteTranscript)
	_ = g.AddEdge(WriteTranscript, Chunk)
	_ = g.AddEdge(Chunk, Embed)
	_ = g.AddEdge(Embed, Upsert)
	_ = g.AddEdge(Upsert, Finalize)
	_ = g.AddEdge(Finalize, compose.END)

	return g.Compile(ctx, compose.WithGraphName("KnowledgeIngestPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

func (p *IngestPipeline) downloadNode(ctx context.Context, req *IngestRequest, _ ...any) (*ingestState, error) {
	st := &ingestState{Req: req, Start: time.Now()}
	if req == nil {
		st.Err = fmt.Errorf("nil request")
		return st, nil
	}
	if req.Item.ID == "" {
		st.Err = kerr.NewStageError(kerr.StageDownload, "", fmt.Errorf("media item missing id"))
		return st, nil
	}

	path, err := p.source.Download(ctx, req.Item, p.videoDir)
	if err != nil {
		st.Err = stageWrap(kerr.StageDownload, req.Item.ID, err)
		return st, nil
	}
	st.VideoPath = path
	return st, nil
}

func (p *IngestPipeline) extractAudioNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	audioPath, err := p.extractor.Extract(ctx, st.VideoPath)
	if err != nil {
		st.Err = stageWrap(kerr.StageExtractAudio, st.Req.Item.ID, err)
		return st, nil
	}
	st.AudioPath = audioPath
	return st, nil
}

func (p *IngestPipeline) transcribeNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	text, err := p.transcribe.Transcribe(ctx, st.AudioPath)
	if err != nil {
		st.Err = stageWrap(kerr.StageTranscribe, st.Req.Item.ID, err)
		return st, nil
	}
	st.Transcript = text
	return st, nil
}

func (p *IngestPipeline) writeTranscriptNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	_ = ctx
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	path := filepath.Join(p.transcriptDir, st.Req.Item.ID+".txt")
	if err := os.WriteFile(path, []byte(st.Transcript), 0o644); err != nil {
		st.Err = kerr.NewStageError(kerr.StageWriteTranscript, st.Req.Item.ID, err)
		return st, nil
	}
	st.TranscriptPath = path
	return st, nil
}

func (p *IngestPipeline) chunkNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	_ = ctx
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	// 空转写稿（纯画面视频）产出零个片段，算成功
	st.Chunks = p.chunker.Chunk(st.Transcript)
	return st, nil
}

func (p *IngestPipeline) embedNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil || len(st.Chunks) == 0 {
		return st, nil
	}

	vecs, err := p.embedder.EmbedStrings(ctx, st.Chunks)
	if err != nil {
		st.Err = kerr.NewStageError(kerr.StageEmbed, st.Req.Item.ID, err)
		return st, nil
	}
	if len(vecs) != len(st.Chunks) {
		st.Err = kerr.NewStageError(kerr.StageEmbed, st.Req.Item.ID,
			fmt.Errorf("embedding count mismatch got=%d want=%d", len(vecs), len(st.Chunks)))
		return st, nil
	}

	mediaID := st.Req.Item.ID
	sourceFile := filepath.Base(st.VideoPath)
	items := make([]repository.VectorUpsertItem, 0, len(st.Chunks))
	for i, chunk := range st.Chunks {
		vec64 := vecs[i]
		if len(vec64) != p.vectorDim {
			st.Err = kerr.NewStageError(kerr.StageEmbed, mediaID,
				fmt.Errorf("vector dim mismatch got=%d want=%d", len(vec64), p.vectorDim))
			return st, nil
		}
		vec32 := make([]float32, len(vec64))
		for j := range vec64 {
			vec32[j] = float32(vec64[j])
		}
		items = append(items, repository.VectorUpsertItem{
			ID:             chunkID(mediaID, i),
			Vector:         vec32,
			MediaID:        mediaID,
			SourceFile:     sourceFile,
			ChunkIndex:     int64(i),
			Content:        truncateContent(chunk),
			EmbeddingModel: p.embeddingModel,
			MetadataJSON:   chunkMetadataJSON(sourceFile, i),
		})
	}
	st.upsertItems = items
	return st, nil
}

func (p *IngestPipeline) upsertNode(ctx context.Context, st *ingestState, _ ...any) (*ingestState, error) {
	if st == nil {
		return &ingestState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil || len(st.upsertItems) == 0 {
		return st, nil
	}

	ids, err := p.vs.Upsert(ctx, st.upsertItems)
	if err != nil {
		st.Err = kerr.NewStageError(kerr.StageIndex, st.Req.Item.ID, err)
		return st, nil
	}
	st.Upserted = ids
	return st, nil
}

// finalizeNode 收尾：清理缩容后残留的旧分块，登记媒体与 embedding 空间元数据
func (p *IngestPipeline) finalizeNode(ctx context.Context, st *ingestState, _ ...any) (*IngestResult, error) {
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &IngestResult{}
	if st.Req != nil {
		res.MediaID = st.Req.Item.ID
	}
	res.SourceFile = filepath.Base(st.VideoPath)
	res.TranscriptPath = st.TranscriptPath
	res.Chunks = len(st.Chunks)
	res.VectorsOK = len(st.Upserted)

	if st.Err != nil {
		res.DurationMs = time.Since(st.Start).Milliseconds()
		return res, st.Err
	}

	mediaID := st.Req.Item.ID

	// 上次摄取产出的分块比这次多，多出来的 id 会一直残留在向量库里，要删掉
	prev, err := p.registry.GetMedia(ctx, mediaID)
	if err != nil {
		return res, kerr.NewStageError(kerr.StageIndex, mediaID, err)
	}
	if prev != nil && prev.ChunkCount > len(st.Chunks) {
		stale := make([]string, 0, prev.ChunkCount-len(st.Chunks))
		for i := len(st.Chunks); i < prev.ChunkCount; i++ {
			stale = append(stale, chunkID(mediaID, i))
		}
		if err := p.vs.DeleteByIDs(ctx, stale); err != nil {
			return res, kerr.NewStageError(kerr.StageIndex, mediaID, err)
		}
		st.Pruned = len(stale)
		res.Pruned = st.Pruned
	}

	now := time.Now()
	err = p.registry.UpsertMedia(ctx, &knowledge.KnowledgeMedia{
		MediaId:        mediaID,
		Account:        st.Req.Account,
		SourceFile:     res.SourceFile,
		TranscriptPath: st.TranscriptPath,
		ChunkCount:     len(st.Chunks),
		Status:         1,
		LastIngestedAt: now,
	})
	if err != nil {
		return res, kerr.NewStageError(kerr.StageIndex, mediaID, err)
	}

	if len(st.Chunks) > 0 && p.collection != "" {
		err = p.registry.EnsureIndexMeta(ctx, &knowledge.KnowledgeIndexMeta{
			Collection:        p.collection,
			EmbeddingProvider: p.embeddingProvider,
			EmbeddingModel:    p.embeddingModel,
			Dim:               p.vectorDim,
		})
		if err != nil {
			return res, kerr.NewStageError(kerr.StageIndex, mediaID, err)
		}
	}

	res.DurationMs = time.Since(st.Start).Milliseconds()
	zlog.Info(
		"媒体摄取完成",
		zap.String("media_id", res.MediaID),
		zap.String("source_file", res.SourceFile),
		zap.Int("chunks", res.Chunks),
		zap.Int("ok", res.VectorsOK),
		zap.Int("pruned", res.Pruned),
		zap.Int64("ms", res.DurationMs),
	)
	return res, nil
}

// stageWrap 底层已带阶段信息时不重复包装，只补上媒体 id
func stageWrap(stage kerr.Stage, mediaID string, err error) error {
	var inner *kerr.StageError
	if errors.As(err, &inner) {
		if inner.MediaID == "" {
			inner.MediaID = mediaID
		}
		return err
	}
	return kerr.NewStageError(stage, mediaID, err)
}
