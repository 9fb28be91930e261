package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

type UpsertItem struct {
	ID             string
	Vector         []float32
	MediaID        string
	SourceFile     string
	ChunkIndex     int64
	Content        string
	EmbeddingModel string
	MetadataJSON   string
}

type SearchHit struct {
	ID             string
	Score          float32
	MediaID        string
	SourceFile     string
	ChunkIndex     int64
	Content        string
	EmbeddingModel string
	MetadataJSON   string
}

type MilvusStore struct {
	cli         mclient.Client
	collection  string
	vectorField string
	metricType  entity.MetricType
	vectorDim   int
	searchParam entity.SearchParam
}

func NewMilvusStore(cli mclient.Client, collection string, vectorField string, vectorDim int, metricType entity.MetricType) (*MilvusStore, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if strings.TrimSpace(vectorField) == "" {
		return nil, errors.New("vectorField is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	return &MilvusStore{cli: cli, collection: collection, vectorField: vectorField, metricType: metricType, vectorDim: vectorDim, searchParam: sp}, nil
}

func (s *MilvusStore) Upsert(ctx context.Context, items []UpsertItem) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	ids := make([]string, 0, len(items))
	vectors := make([][]float32, 0, len(items))
	mediaIDs := make([]string, 0, len(items))
	sourceFiles := make([]string, 0, len(items))
	chunkIndexes := make([]int64, 0, len(items))
	contents := make([]string, 0, len(items))
	models := make([]string, 0, len(items))
	metas := make([]string, 0, len(items))

	for _, it := range items {
		if it.ID == "" {
			return nil, errors.New("upsert item missing ID")
		}
		if len(it.Vector) != s.vectorDim {
			return nil, fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", it.ID, len(it.Vector), s.vectorDim)
		}
		ids = append(ids, it.ID)
		vectors = append(vectors, it.Vector)
		mediaIDs = append(mediaIDs, it.MediaID)
		sourceFiles = append(sourceFiles, it.SourceFile)
		chunkIndexes = append(chunkIndexes, it.ChunkIndex)
		contents = append(contents, it.Content)
		models = append(models, it.EmbeddingModel)
		metas = append(metas, it.MetadataJSON)
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(s.vectorField, s.vectorDim, vectors),
		entity.NewColumnVarChar("media_id", mediaIDs),
		entity.NewColumnVarChar("source_file", sourceFiles),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("embedding_model", models),
		entity.NewColumnJSONBytes("metadata", stringSliceToJSONBytes(metas)),
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MilvusStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	expr := fmt.Sprintf(`id in ["%s"]`, strings.Join(ids, `","`))
	return s.cli.Delete(ctx, s.collection, "", expr)
}

func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int, expr string) ([]SearchHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.vectorDim)
	}
	if topK <= 0 {
		topK = 5
	}
	res, err := s.cli.Search(
		ctx,
		s.collection,
		[]string{},
		expr,
		[]string{"media_id", "source_file", "chunk_index", "content", "embedding_model", "metadata"},
		[]entity.Vector{entity.FloatVector(vector)},
		s.vectorField,
		s.metricType,
		topK,
		s.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []SearchHit{}, nil
	}
	return parseSearchResult(res[0])
}

// Count 读集合统计信息里的 row_count
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.cli.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, err
	}
	raw, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse row_count %q: %w", raw, err)
	}
	return n, nil
}

func (s *MilvusStore) Flush(ctx context.Context) error {
	return s.cli.Flush(ctx, s.collection, false)
}

func parseSearchResult(sr mclient.SearchResult) ([]SearchHit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]SearchHit, 0, sr.ResultCount)

	idCol := sr.IDs
	mediaIDCol := columnByName(sr.Fields, "media_id")
	sourceFileCol := columnByName(sr.Fields, "source_file")
	chunkIndexCol := columnByName(sr.Fields, "chunk_index")
	contentCol := columnByName(sr.Fields, "content")
	modelCol := columnByName(sr.Fields, "embedding_model")
	metaCol := columnByName(sr.Fields, "metadata")

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := idCol.GetAsString(i)
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}

		h := SearchHit{ID: id, Score: score}
		if mediaIDCol != nil {
			v, _ := mediaIDCol.GetAsString(i)
			h.MediaID = v
		}
		if sourceFileCol != nil {
			v, _ := sourceFileCol.GetAsString(i)
			h.SourceFile = v
		}
		if chunkIndexCol != nil {
			v, _ := chunkIndexCol.GetAsInt64(i)
			h.ChunkIndex = v
		}
		if contentCol != nil {
			v, _ := contentCol.GetAsString(i)
			h.Content = v
		}
		if modelCol != nil {
			v, _ := modelCol.GetAsString(i)
			h.EmbeddingModel = v
		}
		if metaCol != nil {
			v, _ := metaCol.Get(i)
			if bs, ok := v.([]byte); ok {
				h.MetadataJSON = string(bs)
			}
		}
		hits = append(hits, h)
	}

	return hits, nil
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

func stringSliceToJSONBytes(values []string) [][]byte {
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		out = append(out, []byte(v))
	}
	return out
}
