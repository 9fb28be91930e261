package initial

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ReelSage/internal/config"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// ResolveMetricType 把配置字符串解析为 Milvus 度量类型，默认 COSINE。
// 建索引和检索必须用同一个度量，否则 Milvus 直接拒绝查询。
func ResolveMetricType(s string) entity.MetricType {
	if strings.EqualFold(strings.TrimSpace(s), "IP") {
		return entity.IP
	}
	return entity.COSINE
}

// InitMilvus 建立 Milvus 连接，保证库/集合/索引存在，返回客户端、集合名与度量类型
func InitMilvus(ctx context.Context, conf *config.Config) (mclient.Client, string, entity.MetricType, error) {
	addr := strings.TrimSpace(conf.MilvusConfig.Address)
	if addr == "" {
		return nil, "", "", fmt.Errorf("milvus address is empty")
	}
	metricType := ResolveMetricType(conf.MilvusConfig.MetricType)

	dbName := strings.TrimSpace(conf.MilvusConfig.DBName)
	collection := strings.TrimSpace(conf.MilvusConfig.CollectionName)
	if dbName == "" {
		dbName = "reelsage"
	}
	if collection == "" {
		collection = "knowledge_chunks"
	}
	dim := conf.MilvusConfig.VectorDim
	if dim <= 0 {
		dim = 1536
	}

	defaultCli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  addr,
		Username: strings.TrimSpace(conf.MilvusConfig.Username),
		Password: strings.TrimSpace(conf.MilvusConfig.Password),
		DBName:   "default",
	})
	if err != nil {
		return nil, "", "", err
	}

	dbs, err := defaultCli.ListDatabases(ctx)
	if err != nil {
		_ = defaultCli.Close()
		return nil, "", "", err
	}
	exists := false
	for _, db := range dbs {
		if db.Name == dbName {
			exists = true
			break
		}
	}
	if !exists {
		if err := defaultCli.CreateDatabase(ctx, dbName); err != nil {
			_ = defaultCli.Close()
			return nil, "", "", err
		}
	}

	cli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  addr,
		Username: strings.TrimSpace(conf.MilvusConfig.Username),
		Password: strings.TrimSpace(conf.MilvusConfig.Password),
		DBName:   dbName,
	})
	if err != nil {
		_ = defaultCli.Close()
		return nil, "", "", err
	}

	cols, err := cli.ListCollections(ctx)
	if err != nil {
		_ = defaultCli.Close()
		_ = cli.Close()
		return nil, "", "", err
	}
	collExists := false
	for _, c := range cols {
		if c.Name == collection {
			collExists = true
			break
		}
	}

	if !collExists {
		schema := &entity.Schema{
			CollectionName: collection,
			Description:    "ReelSage video transcript chunks",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					TypeParams: map[string]string{"max_length": "128"},
				},
				{
					Name:       "vector",
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{entity.TypeParamDim: fmt.Sprintf("%d", dim)},
				},
				{
					Name:     "media_id",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "64",
					},
				},
				{
					Name:     "source_file",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "255",
					},
				},
				{
					Name:     "chunk_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     "content",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": strconv.Itoa(config.MaxChunkContentLength),
					},
				},
				{
					Name:     "embedding_model",
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "64",
					},
				},
				{
					Name:     "metadata",
					DataType: entity.FieldTypeJSON,
				},
			},
		}

		if err := cli.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			_ = defaultCli.Close()
			_ = cli.Close()
			return nil, "", "", err
		}

		idx, err := entity.NewIndexAUTOINDEX(metricType)
		if err != nil {
			_ = defaultCli.Close()
			_ = cli.Close()
			return nil, "", "", err
		}
		if err := cli.CreateIndex(ctx, collection, "vector", idx, false); err != nil {
			_ = defaultCli.Close()
			_ = cli.Close()
			return nil, "", "", err
		}
	}

	_ = defaultCli.Close()

	_ = cli.LoadCollection(ctx, collection, false)

	return cli, collection, metricType, nil
}
