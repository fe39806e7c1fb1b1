package llm_model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"evolveai/config"
	"evolveai/pkg/tools"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const (
	clientNameChatModel = "chat_model"
)

type ClientChatModel struct {
	config *Config
}

var (
	instance *ClientChatModel
	once     sync.Once
)

func GetInstance() *ClientChatModel {
	once.Do(func() {
		conf := &Config{
			Addr:        config.GetInstance().GetString(config.ClientChatModelAddr),
			Model:       config.GetInstance().GetString(config.ClientChatModelModel),
			ImageModel:  config.GetInstance().GetString(config.ClientChatModelImageModel),
			Token:       os.Getenv(config.EnvModelAPIKey),
			Temperature: cast.ToFloat32(config.GetInstance().GetFloat64(config.ClientChatModelTemperature)),
			MaxTokens:   config.GetInstance().GetInt(config.ClientChatModelMaxTokens),
			Timeout:     config.GetInstance().GetIntOrDefault(config.ClientChatModelTimeout, 120),
			MaxRetries:  config.GetInstance().GetIntOrDefault(config.ClientChatModelMaxRetries, 3),
		}
		if conf.Token == "" {
			panic(fmt.Sprintf("environment variable %s is not set", config.EnvModelAPIKey))
		}

		instance = &ClientChatModel{
			config: conf,
		}
	})
	return instance
}

func NewClientChatModel(conf *Config) *ClientChatModel {
	return &ClientChatModel{config: conf}
}

func (zc *ClientChatModel) newClient() *openai.Client {
	defaultReq := openai.DefaultConfig(zc.config.Token)
	defaultReq.BaseURL = zc.config.Addr
	return openai.NewClientWithConfig(defaultReq)
}

// @Description 封装非流式调用,带工具声明,返回归一化结果
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Param toolDefs []openai.Tool
// @Success *GenerateResult
// @Success error
func (zc *ClientChatModel) PostChatCompletionsWithTools(c context.Context, messages []openai.ChatCompletionMessage, toolDefs []openai.Tool) (*GenerateResult, error) {
	client := zc.newClient()

	request := openai.ChatCompletionRequest{
		Model:       zc.config.Model,
		Messages:    messages,
		MaxTokens:   zc.config.MaxTokens,
		Temperature: zc.config.Temperature,
		Tools:       toolDefs,
	}

	// debug 出完整的请求参数，json格式（仅在 debug 级别时序列化）
	if log.GetLevel() == log.DebugLevel {
		requestJson, err := json.MarshalIndent(request, "", "  ")
		if err == nil {
			// 直接输出格式化的 JSON 到标准输出，避免日志系统转义换行符
			if _, err := fmt.Fprintf(os.Stdout, "[DEBUG] %s chat completion request:\n%s\n", clientNameChatModel, string(requestJson)); err != nil {
				log.Warnf("%s failed to write debug output: %v", clientNameChatModel, err)
			}
		}
	}

	var response openai.ChatCompletionResponse
	err := tools.Retry(c, zc.config.MaxRetries, time.Second, func() error {
		ctx, cancel := context.WithTimeout(c, time.Second*time.Duration(zc.config.Timeout))
		defer cancel()

		var innerErr error
		response, innerErr = client.CreateChatCompletion(ctx, request)
		return innerErr
	})
	if err != nil {
		log.Errorf("%s chat completion error: %v", clientNameChatModel, err)
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%s returned empty choices", clientNameChatModel)
	}

	choice := response.Choices[0]
	result := &GenerateResult{
		Content:    choice.Message.Content,
		StopReason: normalizeFinishReason(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return result, nil
}

// @Description 封装非流式调用，只返回响应内容字符串
// @Param c context.Context
// @Param messages []openai.ChatCompletionMessage
// @Success string
// @Success error
func (zc *ClientChatModel) PostChatCompletionsNonStreamContent(c context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	result, err := zc.PostChatCompletionsWithTools(c, messages, nil)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// @Description 文生图,返回 base64 编码的图片数据
// @Param c context.Context
// @Param prompt string
// @Success string
// @Success error
func (zc *ClientChatModel) PostImageGeneration(c context.Context, prompt string) (string, error) {
	client := zc.newClient()

	ctx, cancel := context.WithTimeout(c, time.Second*time.Duration(zc.config.Timeout))
	defer cancel()

	response, err := client.CreateImage(ctx, openai.ImageRequest{
		Model:          zc.config.ImageModel,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		log.Errorf("%s image generation error: %v", clientNameChatModel, err)
		return "", err
	}
	if len(response.Data) == 0 {
		return "", fmt.Errorf("%s image generation returned no data", clientNameChatModel)
	}

	return response.Data[0].B64JSON, nil
}

// 不同后端的结束原因五花八门,统一收敛到少数几类
func normalizeFinishReason(reason openai.FinishReason) StopReason {
	switch reason {
	case openai.FinishReasonStop, "":
		return StopReasonStop
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return StopReasonToolCalls
	case openai.FinishReasonLength:
		return StopReasonMaxTokens
	case openai.FinishReasonContentFilter:
		return StopReasonSafety
	default:
		return StopReasonOther
	}
}
