//nolint:typecheck
package config

import (
	"evolveai/constant"
	"evolveai/pkg/file"
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	Path = "config"

	OSConfigPath      = "CONFIG_PATH"
	DefaultConfigName = "config.yaml"
	TypeYaml          = "yaml"
	ProjectName       = "evolveai"

	AppLogLevel        = "app.log.level"
	AppLogReportcaller = "app.log.reportcaller"
	AppHost            = "app.host"

	BaseDbXormType            = "base.db.xorm.type"
	BaseDbXormUsername        = "base.db.xorm.username"
	BaseDbXormPassword        = "base.db.xorm.password"
	BaseDbXormHost            = "base.db.xorm.host"
	BaseDbXormPort            = "base.db.xorm.port"
	BaseDbXormName            = "base.db.xorm.name"
	BaseDbXormShowsql         = "base.db.xorm.showsql"
	BaseDbXormMaxOpenConns    = "base.db.xorm.maxOpenConns"
	BaseDbXormMaxIdleConns    = "base.db.xorm.maxIdleConns"
	BaseDbXormConnMaxLifetime = "base.db.xorm.connMaxLifetimeSeconds"

	// 大模型调用配置
	ClientChatModelAddr        = "clients.llmModel.addr"
	ClientChatModelModel       = "clients.llmModel.model"
	ClientChatModelTemperature = "clients.llmModel.temperature"
	ClientChatModelMaxTokens   = "clients.llmModel.maxTokens"
	ClientChatModelTimeout     = "clients.llmModel.timeoutSeconds"
	ClientChatModelMaxRetries  = "clients.llmModel.maxRetries"
	ClientChatModelImageModel  = "clients.llmModel.imageModel"

	// redis 配置
	RedisClientDb       = "clients.redisClient.db"
	RedisClientHost     = "clients.redisClient.host"
	RedisClientPassword = "clients.redisClient.password"

	// 缓存网关配置
	CacheTTLSeconds              = "cache.ttlSeconds"
	CacheBreakerFailureThreshold = "cache.breaker.failureThreshold"
	CacheBreakerRecoveryTimeout  = "cache.breaker.recoveryTimeoutSeconds"
	CacheRetryAttempts           = "cache.retry.attempts"
	CacheRetryBackoffMillis      = "cache.retry.backoffMillis"

	// 配额与订阅配置
	QuotaDailyMessageLimit = "quota.dailyMessageLimit"

	// 记忆系统配置
	// history_limit、summary_threshold、summary_batch_size 三者相互独立，可单独调整
	MemoryHistoryLimit     = "memory.history_limit"
	MemorySummaryThreshold = "memory.summary_threshold"
	MemorySummaryBatchSize = "memory.summary_batch_size"
	MemoryScoreDeltaMin    = "memory.score_delta_min"
	MemoryScoreDeltaMax    = "memory.score_delta_max"

	// 响应编排配置
	LLMMaxIterations = "llm.maxIterations"
	ImageMaxSizeMB   = "image.maxSizeMB"

	// 后台任务配置
	RetentionChatHistoryDays = "retention.chatHistoryDays"
)

// 环境变量里的密钥，不放进 config.yaml
const (
	EnvModelAPIKey   = "MODEL_API_KEY"
	EnvEncryptionKey = "ENCRYPTION_KEY"
)

var instance *config
var once sync.Once

type config struct {
	*viper.Viper
}

func GetInstance() *config {
	once.Do(func() {
		var configPath string

		envConfigPath := os.Getenv(OSConfigPath)
		if strings.EqualFold(envConfigPath, constant.EmptyString) {
			configPath = fmt.Sprintf("./%v", DefaultConfigName)
			if !file.CheckFileIsExist(configPath) {
				path, err := os.Getwd()
				if err != nil {
					panic("get config path error:" + err.Error())
				}
				configPath = fmt.Sprintf("%v/%v", path[:strings.Index(path, ProjectName)+len(ProjectName)], DefaultConfigName)
			}
			log.Infof("use default path %s", configPath)
		} else {
			log.Infof("find success in constant CONFIG_PATH, use %s", envConfigPath)
			configPath = fmt.Sprintf("%v/%v", envConfigPath, DefaultConfigName)
		}

		configInstance := &config{Viper: viper.New()}
		configInstance.SetConfigType(TypeYaml)
		configInstance.SetConfigFile(configPath)
		if err := configInstance.ReadInConfig(); err != nil {
			panic(err)
		}

		configInstance.AutomaticEnv()
		replacer := strings.NewReplacer(".", "_")
		configInstance.SetEnvKeyReplacer(replacer)

		instance = configInstance
	})
	return instance
}

func (c *config) GetString(key string) string {
	return c.Viper.GetString(key)
}

func (c *config) GetStringOrDefault(key string, defaultValue string) string {
	if c.IsSet(key) {
		return c.GetString(key)
	}

	return defaultValue
}

func (c *config) GetInt(key string) int {
	return c.Viper.GetInt(key)
}

func (c *config) GetIntOrDefault(key string, defaultValue int) int {
	if c.IsSet(key) {
		return c.GetInt(key)
	}

	return defaultValue
}

func (c *config) GetBool(key string) bool {
	return c.Viper.GetBool(key)
}

func (c *config) GetBoolOrDefault(key string, defaultValue bool) bool {
	if c.IsSet(key) {
		return c.GetBool(key)
	}

	return defaultValue
}

func (c *config) GetFloat64(key string) float64 {
	return c.Viper.GetFloat64(key)
}

func (c *config) GetFloat64OrDefault(key string, defaultValue float64) float64 {
	if c.IsSet(key) {
		return c.GetFloat64(key)
	}

	return defaultValue
}
