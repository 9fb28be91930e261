package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/media"
	"ReelSage/internal/modules/knowledge/infrastructure/chunking"
	mockembed "ReelSage/internal/modules/knowledge/infrastructure/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "knowledge_chunks_test"

func newTestIngestPipeline(t *testing.T, src *fakeSource, tr *fakeTranscriber, vs *memVectorStore, reg *memRegistry) *IngestPipeline {
	t.Helper()
	p, err := NewIngestPipeline(
		src,
		&fakeExtractor{},
		tr,
		chunking.NewSimpleChunker(10, 0),
		vs,
		reg,
		mockembed.NewMockEmbedder(8),
		"mock", "mock-embedding",
		8,
		testCollection,
		t.TempDir(), t.TempDir(),
	)
	require.NoError(t, err)
	return p
}

func videoItem(id string) media.Item {
	return media.Item{ID: id, Type: media.TypeVideo, VideoURL: "https://cdn.example.com/" + id + ".mp4"}
}

func TestIngestMedia_HappyPath(t *testing.T) {
	src := &fakeSource{}
	tr := &fakeTranscriber{text: strings.Repeat("今天讲三个技巧。", 4)} // 32 字，chunkSize 10 → 4 片
	vs := newMemVectorStore()
	reg := newMemRegistry()
	p := newTestIngestPipeline(t, src, tr, vs, reg)

	res, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "42", res.MediaID)
	assert.Equal(t, "42.mp4", res.SourceFile)
	assert.Equal(t, 4, res.Chunks)
	assert.Equal(t, 4, res.VectorsOK)
	assert.Equal(t, 0, res.Pruned)

	// 向量主键格式 {media_id}_chunk_{i}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("42_chunk_%d", i)
		item, ok := vs.vectors[id]
		require.True(t, ok, "missing vector %s", id)
		assert.Equal(t, "42", item.MediaID)
		assert.Equal(t, int64(i), item.ChunkIndex)
		assert.Equal(t, "42.mp4", item.SourceFile)
		assert.Len(t, item.Vector, 8)
		assert.Contains(t, item.MetadataJSON, `"source_file_name":"42.mp4"`)
	}

	// 转写稿落盘
	data, err := os.ReadFile(res.TranscriptPath)
	require.NoError(t, err)
	assert.Equal(t, tr.text, string(data))
	assert.Equal(t, "42.txt", filepath.Base(res.TranscriptPath))

	// 媒体登记与 embedding 空间元数据
	rec, err := reg.GetMedia(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 4, rec.ChunkCount)
	assert.Equal(t, "chef", rec.Account)

	meta, err := reg.GetIndexMeta(context.Background(), testCollection)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "mock", meta.EmbeddingProvider)
	assert.Equal(t, "mock-embedding", meta.EmbeddingModel)
	assert.Equal(t, 8, meta.Dim)
}

func TestIngestMedia_EmptyTranscript(t *testing.T) {
	// 纯画面视频：零片段算成功，不写向量也不登记 embedding 空间
	src := &fakeSource{}
	tr := &fakeTranscriber{text: ""}
	vs := newMemVectorStore()
	reg := newMemRegistry()
	p := newTestIngestPipeline(t, src, tr, vs, reg)

	res, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("7")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Equal(t, 0, res.VectorsOK)
	assert.Len(t, vs.vectors, 0)

	meta, err := reg.GetIndexMeta(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Nil(t, meta)

	// 媒体本身仍要登记，chunk_count 为 0
	rec, err := reg.GetMedia(context.Background(), "7")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.ChunkCount)
}

func TestIngestMedia_ReingestOverwrites(t *testing.T) {
	src := &fakeSource{}
	tr := &fakeTranscriber{text: strings.Repeat("a", 30)} // 3 片
	vs := newMemVectorStore()
	reg := newMemRegistry()
	p := newTestIngestPipeline(t, src, tr, vs, reg)

	_, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.NoError(t, err)
	require.Len(t, vs.vectors, 3)

	// 同一媒体重复摄取覆盖同名主键，总量不翻倍
	_, err = p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.NoError(t, err)
	assert.Len(t, vs.vectors, 3)
}

func TestIngestMedia_PrunesStaleChunks(t *testing.T) {
	src := &fakeSource{}
	vs := newMemVectorStore()
	reg := newMemRegistry()

	// 第一次摄取产出 5 片
	tr := &fakeTranscriber{text: strings.Repeat("b", 50)}
	p := newTestIngestPipeline(t, src, tr, vs, reg)
	_, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.NoError(t, err)
	require.Len(t, vs.vectors, 5)

	// 第二次转写变短只剩 2 片，多出来的 3 个旧 id 要被删掉
	tr.text = strings.Repeat("b", 20)
	res, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 3, res.Pruned)
	assert.ElementsMatch(t, []string{"42_chunk_2", "42_chunk_3", "42_chunk_4"}, vs.deleted)
	assert.Len(t, vs.vectors, 2)

	rec, err := reg.GetMedia(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ChunkCount)
}

func TestIngestMedia_TranscribeFailureCarriesStage(t *testing.T) {
	src := &fakeSource{}
	tr := &fakeTranscriber{failMedia: map[string]error{"42": fmt.Errorf("quota exhausted")}}
	vs := newMemVectorStore()
	reg := newMemRegistry()
	p := newTestIngestPipeline(t, src, tr, vs, reg)

	_, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.Error(t, err)
	assert.Equal(t, kerr.StageTranscribe, kerr.StageOf(err))

	var se *kerr.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "42", se.MediaID)

	// 失败的媒体不落任何登记
	rec, err := reg.GetMedia(context.Background(), "42")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Len(t, vs.vectors, 0)
}

func TestIngestMedia_DownloadFailureCarriesStage(t *testing.T) {
	src := &fakeSource{downloadErr: fmt.Errorf("cdn 503")}
	tr := &fakeTranscriber{text: "x"}
	vs := newMemVectorStore()
	reg := newMemRegistry()
	p := newTestIngestPipeline(t, src, tr, vs, reg)

	_, err := p.IngestMedia(context.Background(), IngestRequest{Account: "chef", Item: videoItem("42")})
	require.Error(t, err)
	assert.Equal(t, kerr.StageDownload, kerr.StageOf(err))
}

func TestNewIngestPipeline_RejectsNilDeps(t *testing.T) {
	_, err := NewIngestPipeline(nil, nil, nil, nil, nil, nil, nil, "", "", 0, "", "", "")
	require.Error(t, err)
}
