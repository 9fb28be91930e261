package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ReelSage/internal/modules/knowledge/domain/knowledge"
	"ReelSage/internal/modules/knowledge/domain/media"
	"ReelSage/internal/modules/knowledge/domain/repository"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// 测试用内存替身，全部实现 domain/repository 的接口

type fakeSource struct {
	items       []media.Item
	listErr     error
	downloadErr error
}

func (f *fakeSource) RecentMedia(ctx context.Context, account string, limit int) ([]media.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func (f *fakeSource) Download(ctx context.Context, item media.Item, dir string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	dst := filepath.Join(dir, item.ID+".mp4")
	if err := os.WriteFile(dst, []byte("fake-video"), 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return videoPath[:len(videoPath)-len(filepath.Ext(videoPath))] + ".mp3", nil
}

type fakeTranscriber struct {
	text string
	err  error
	// 按音频文件名（不含扩展名）覆盖默认转写结果
	perMedia map[string]string
	// 这些媒体转写直接失败
	failMedia map[string]error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	base := filepath.Base(audioPath)
	id := base[:len(base)-len(filepath.Ext(base))]
	if err, ok := f.failMedia[id]; ok {
		return "", err
	}
	if text, ok := f.perMedia[id]; ok {
		return text, nil
	}
	return f.text, nil
}

type memVectorStore struct {
	mu sync.Mutex

	vectors  map[string]repository.VectorUpsertItem
	hits     []repository.VectorSearchHit
	countOvr *int64

	upsertErr error
	searchErr error

	lastTopK   int
	lastVector []float32
	deleted    []string
	flushed    int
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{vectors: map[string]repository.VectorUpsertItem{}}
}

func (m *memVectorStore) Upsert(ctx context.Context, items []repository.VectorUpsertItem) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		m.vectors[it.ID] = it
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (m *memVectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}

func (m *memVectorStore) Search(ctx context.Context, vector []float32, topK int, expr string) ([]repository.VectorSearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.lastTopK = topK
	m.lastVector = vector
	if topK < len(m.hits) {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

func (m *memVectorStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countOvr != nil {
		return *m.countOvr, nil
	}
	return int64(len(m.vectors)), nil
}

func (m *memVectorStore) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return nil
}

var _ repository.VectorStore = (*memVectorStore)(nil)

type memRegistry struct {
	mu sync.Mutex

	medias map[string]*knowledge.KnowledgeMedia
	runs   map[string]*knowledge.IngestRun
	metas  map[string]*knowledge.KnowledgeIndexMeta
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		medias: map[string]*knowledge.KnowledgeMedia{},
		runs:   map[string]*knowledge.IngestRun{},
		metas:  map[string]*knowledge.KnowledgeIndexMeta{},
	}
}

func (m *memRegistry) GetMedia(ctx context.Context, mediaID string) (*knowledge.KnowledgeMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.medias[mediaID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memRegistry) UpsertMedia(ctx context.Context, rec *knowledge.KnowledgeMedia) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.medias[rec.MediaId] = &cp
	return nil
}

func (m *memRegistry) CreateRun(ctx context.Context, run *knowledge.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.RunId] = &cp
	return nil
}

func (m *memRegistry) FinishRun(ctx context.Context, run *knowledge.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.RunId] = &cp
	return nil
}

func (m *memRegistry) GetIndexMeta(ctx context.Context, collection string) (*knowledge.KnowledgeIndexMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[collection]
	if !ok {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

func (m *memRegistry) EnsureIndexMeta(ctx context.Context, meta *knowledge.KnowledgeIndexMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 首写生效，后续写入不覆盖
	if _, ok := m.metas[meta.Collection]; ok {
		return nil
	}
	cp := *meta
	m.metas[meta.Collection] = &cp
	return nil
}

var _ repository.MediaRegistry = (*memRegistry)(nil)

type fakeChatModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	lastMsgs []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.lastMsgs = input
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

var _ model.BaseChatModel = (*fakeChatModel)(nil)
