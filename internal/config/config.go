package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	VectorDim      int    `toml:"vectorDim"`
	MetricType     string `toml:"metricType"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	UpdateTopic     string   `toml:"updateTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

// InstagramConfig 媒体网关配置。媒体抓取走一个兼容 instagrapi 的
// HTTP 网关服务，本服务不直接实现 Instagram 私有协议。
type InstagramConfig struct {
	GatewayBaseURL string `toml:"gatewayBaseURL"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TargetAccount  string `toml:"targetAccount"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

// MaxChunkContentLength 是向量库 content 字段的 VARCHAR 宽度。
// 切块长度超过它的话写入会被 Milvus 截断或拒绝，拼接上下文就缺字了。
const MaxChunkContentLength = 4096

// PipelineConfig 离线摄取管线配置
type PipelineConfig struct {
	VideoDir       string `toml:"videoDir"`
	TranscriptDir  string `toml:"transcriptDir"`
	ChunkSize      int    `toml:"chunkSize"`
	ChunkOverlap   int    `toml:"chunkOverlap"`
	UseRecursive   bool   `toml:"useRecursive"`
	DefaultLimit   int    `toml:"defaultLimit"`
	FFmpegBin      string `toml:"ffmpegBin"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type AIEmbeddingConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	BaseURL         string `toml:"baseURL"`
	Model           string `toml:"model"`
	Dimensions      int    `toml:"dimensions"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AITranscribeConfig struct {
	APIKey         string `toml:"apiKey"`
	BaseURL        string `toml:"baseURL"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	RetryTimes     int    `toml:"retryTimes"`
}

type AIConfig struct {
	Embedding  AIEmbeddingConfig  `toml:"embedding"`
	ChatModel  AIChatModelConfig  `toml:"chatModel"`
	Transcribe AITranscribeConfig `toml:"transcribe"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	JwtConfig       `toml:"jwtConfig"`
	MilvusConfig    `toml:"milvusConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	InstagramConfig `toml:"instagramConfig"`
	PipelineConfig  `toml:"pipelineConfig"`
	AIConfig        `toml:"aiConfig"`
	LogConfig       `toml:"logConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("REELSAGE_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
	}
	return config
}

// 占位符凭证，出现在任一必填项里则拒绝启动摄取
var placeholderValues = []string{
	"", "changeme", "change-me", "your-api-key", "your-username", "your-password", "xxx", "todo",
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, p := range placeholderValues {
		if v == p {
			return true
		}
	}
	return strings.HasPrefix(v, "your-")
}

// ValidateIngest 校验摄取路径的必填配置。占位符/默认凭证一律视为
// 配置无效，宁可拒绝运行也不要带着假凭证去调外部服务。
func (c *Config) ValidateIngest() error {
	if c == nil {
		return fmt.Errorf("invalid configuration: nil config")
	}
	if isPlaceholder(c.InstagramConfig.GatewayBaseURL) {
		return fmt.Errorf("invalid configuration: instagramConfig.gatewayBaseURL is not set")
	}
	if isPlaceholder(c.InstagramConfig.TargetAccount) {
		return fmt.Errorf("invalid configuration: instagramConfig.targetAccount is not set")
	}
	if isPlaceholder(c.InstagramConfig.Username) || isPlaceholder(c.InstagramConfig.Password) {
		return fmt.Errorf("invalid configuration: instagram credentials are placeholders")
	}
	if isPlaceholder(c.AIConfig.Transcribe.APIKey) && isPlaceholder(os.Getenv("OPENAI_API_KEY")) {
		return fmt.Errorf("invalid configuration: transcribe apiKey is not set")
	}
	if strings.TrimSpace(c.PipelineConfig.VideoDir) == "" || strings.TrimSpace(c.PipelineConfig.TranscriptDir) == "" {
		return fmt.Errorf("invalid configuration: pipeline videoDir/transcriptDir is not set")
	}
	if c.PipelineConfig.ChunkSize <= 0 {
		return fmt.Errorf("invalid configuration: pipeline chunkSize must be > 0, got %d", c.PipelineConfig.ChunkSize)
	}
	if c.PipelineConfig.ChunkSize > MaxChunkContentLength {
		return fmt.Errorf("invalid configuration: pipeline chunkSize must be <= %d (vector store content column width), got %d",
			MaxChunkContentLength, c.PipelineConfig.ChunkSize)
	}
	return nil
}
