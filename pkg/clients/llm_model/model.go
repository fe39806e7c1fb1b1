package llm_model

type Config struct {
	Addr        string  `json:"addr"`
	Model       string  `json:"llm_model"`
	ImageModel  string  `json:"image_model"`
	Token       string  `json:"token"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	Timeout     int     `json:"timeoutSeconds"`
	MaxRetries  int     `json:"maxRetries"`
}

// StopReason 模型停止生成的归一化原因
type StopReason string

const (
	StopReasonStop      StopReason = "stop"
	StopReasonToolCalls StopReason = "tool_calls"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonSafety    StopReason = "safety"
	StopReasonOther     StopReason = "other"
)

// ToolCall 模型发起的一次工具调用,Arguments 为原始 JSON 串
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// GenerateResult 一轮补全的归一化结果
type GenerateResult struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
}
