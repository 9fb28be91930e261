package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	https_server "ReelSage/api/http"
	"ReelSage/internal/config"
	"ReelSage/internal/initial"
	"ReelSage/internal/modules/knowledge/application/service"
	"ReelSage/internal/modules/knowledge/infrastructure/chunking"
	"ReelSage/internal/modules/knowledge/infrastructure/embedding"
	"ReelSage/internal/modules/knowledge/infrastructure/instagram"
	"ReelSage/internal/modules/knowledge/infrastructure/llm"
	mediaInfra "ReelSage/internal/modules/knowledge/infrastructure/media"
	"ReelSage/internal/modules/knowledge/infrastructure/mq"
	"ReelSage/internal/modules/knowledge/infrastructure/mq/kafka"
	"ReelSage/internal/modules/knowledge/infrastructure/persistence"
	"ReelSage/internal/modules/knowledge/infrastructure/pipeline"
	"ReelSage/internal/modules/knowledge/infrastructure/queue"
	"ReelSage/internal/modules/knowledge/infrastructure/transcribe"
	"ReelSage/internal/modules/knowledge/infrastructure/vectordb"
	knowledgeHandler "ReelSage/internal/modules/knowledge/interface/http"
	"ReelSage/pkg/zlog"
)

func main() {
	// 1. 加载配置与日志
	conf := config.GetConfig()
	if conf.LogConfig.LogPath != "" {
		zlog.SetLogPath(conf.LogConfig.LogPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 基础设施：MySQL / Milvus
	db, err := initial.InitGorm(conf)
	if err != nil {
		zlog.Fatal("MySQL 初始化失败: " + err.Error())
	}
	// 建索引与检索共用同一个度量类型，避免度量不一致被 Milvus 拒绝
	milvusCli, collection, metricType, err := initial.InitMilvus(ctx, conf)
	if err != nil {
		zlog.Fatal("Milvus 初始化失败: " + err.Error())
	}
	defer milvusCli.Close()

	vectorDim := conf.MilvusConfig.VectorDim
	if vectorDim <= 0 {
		vectorDim = 1536
	}

	store, err := vectordb.NewMilvusStore(milvusCli, collection, "vector", vectorDim, metricType)
	if err != nil {
		zlog.Fatal("向量库封装初始化失败: " + err.Error())
	}
	vs, err := vectordb.NewMilvusVectorStore(store)
	if err != nil {
		zlog.Fatal("向量库适配初始化失败: " + err.Error())
	}
	registry := persistence.NewMediaRegistry(db)

	// 3. AI 组件：embedding / 生成 / 转写
	embedder, embMeta, err := embedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		zlog.Fatal("embedding 初始化失败: " + err.Error())
	}
	chatModel, cmMeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		zlog.Fatal("chat model 初始化失败: " + err.Error())
	}
	zlog.Info(fmt.Sprintf("AI 组件就绪 embedding=%s/%s dim=%d chat=%s/%s",
		embMeta.Provider, embMeta.Model, embMeta.Dim, cmMeta.Provider, cmMeta.Model))

	source := instagram.NewGatewayClient(conf.InstagramConfig)
	extractor := mediaInfra.NewFFmpegExtractor(conf.PipelineConfig.FFmpegBin, conf.PipelineConfig.TimeoutSeconds)
	transcriber := transcribe.NewOpenAITranscriber(conf.AIConfig.Transcribe)

	var chunker *chunking.SimpleChunker
	if conf.PipelineConfig.UseRecursive {
		chunker = chunking.NewRecursiveChunker(conf.PipelineConfig.ChunkSize, conf.PipelineConfig.ChunkOverlap)
	} else {
		chunker = chunking.NewSimpleChunker(conf.PipelineConfig.ChunkSize, conf.PipelineConfig.ChunkOverlap)
	}

	// 4. 管线
	ingestPipeline, err := pipeline.NewIngestPipeline(
		source, extractor, transcriber, chunker, vs, registry, embedder,
		embMeta.Provider, embMeta.Model, embMeta.Dim, collection,
		conf.PipelineConfig.VideoDir, conf.PipelineConfig.TranscriptDir,
	)
	if err != nil {
		zlog.Fatal("摄取管线初始化失败: " + err.Error())
	}
	answerPipeline, err := pipeline.NewAnswerPipeline(
		vs, registry, embedder, chatModel,
		embMeta.Provider, embMeta.Model, embMeta.Dim, collection,
	)
	if err != nil {
		zlog.Fatal("问答管线初始化失败: " + err.Error())
	}

	// 5. Kafka（可选）：配了 broker 才开异步摄取
	var publisher mq.Publisher
	var consumer mq.Consumer
	if len(conf.KafkaConfig.Brokers) > 0 {
		err = kafka.EnsureTopic(
			kafka.TopicAdminConfig{Brokers: conf.KafkaConfig.Brokers, ClientID: conf.KafkaConfig.ClientID},
			conf.KafkaConfig.UpdateTopic, conf.KafkaConfig.Partitions, conf.KafkaConfig.Replication,
		)
		if err != nil {
			zlog.Fatal("Kafka topic 初始化失败: " + err.Error())
		}
		publisher, err = kafka.NewSaramaPublisher(kafka.PublisherConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("Kafka producer 初始化失败: " + err.Error())
		}
		defer publisher.Close()

		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			GroupID:  conf.KafkaConfig.ConsumerGroupID,
			Topics:   []string{conf.KafkaConfig.UpdateTopic},
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("Kafka consumer 初始化失败: " + err.Error())
		}
		defer consumer.Close()
	}

	// 6. 服务与路由
	updateSvc := service.NewUpdateService(conf, source, ingestPipeline, registry, vs, publisher)
	answerSvc := service.NewAnswerService(answerPipeline)

	healthH := knowledgeHandler.NewHealthHandler(conf.MainConfig.AppName)
	queryH := knowledgeHandler.NewQueryHandler(answerSvc)
	updateH := knowledgeHandler.NewUpdateHandler(updateSvc)

	engine := https_server.NewEngine(conf, healthH, queryH, updateH)

	if consumer != nil {
		worker := queue.NewUpdateConsumerWorker(consumer, updateSvc)
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				zlog.Error("摄取消费者退出: " + err.Error())
			}
		}()
	}

	// 7. 启动 HTTP 服务
	go func() {
		addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
		zlog.Info(fmt.Sprintf("服务器正在启动，监听地址: %s", addr))
		if err := engine.Run(addr); err != nil {
			zlog.Fatal("服务器启动失败: " + err.Error())
			return
		}
	}()

	// 8. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务器...")
	cancel()
	zlog.Sync()
	zlog.Info("服务器已关闭")
}
