package constant

const (
	EmptyString = ""
)

// 消息角色，与 chat_messages.role 列取值一致
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// 订阅计划
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// 订阅档位对应的天数
var PlanDurationDays = map[string]int{
	"1_month":   30,
	"3_months":  90,
	"6_months":  180,
	"12_months": 365,
}

// 长期记忆事实的分类集合
var FactCategories = []string{
	"preferences", "memories", "work", "family", "pets", "health", "hobbies",
}

// 多段回复的内部分隔符，由传输层拆分
const ReplySegmentDelimiter = "\n\n[NEXT]\n\n"

// 语音标记，核心层原样透传，由外部 TTS 处理
const VoiceMarkerPrefix = "[VOICE]"

// 默认配置值，config.yaml 未配置时使用
const (
	DefaultDailyMessageLimit   = 50
	DefaultHistoryLimit        = 30
	DefaultSummaryThreshold    = 26
	DefaultSummaryBatchSize    = 20
	DefaultScoreDeltaMin       = -5
	DefaultScoreDeltaMax       = 5
	DefaultCacheTTLSeconds     = 600
	DefaultBreakerFailures     = 5
	DefaultBreakerRecoverySecs = 60
	DefaultCacheRetryAttempts  = 3
	DefaultCacheRetryBackoffMs = 50
	DefaultMaxIterations       = 4
	DefaultImageMaxSizeMB      = 5
	DefaultRetentionDays       = 30
	DefaultLLMTimeoutSeconds   = 120
	DefaultLLMMaxRetries       = 3
)
