package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"evolveai/config"
	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/pkg/background"
	"evolveai/pkg/clients/llm_model"
	"evolveai/repository/factory"
	"evolveai/service/gate"
	"evolveai/service/memory"
	"evolveai/service/summary"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

var (
	serviceOnce sync.Once
	instance    *Service
)

// 模型可用的工具名,闭集,列表之外的调用一律拒绝
const (
	toolSaveFact      = "save_fact"
	toolSearchFacts   = "search_facts"
	toolGenerateImage = "generate_image"
)

const summaryJobTimeout = time.Minute * 2

// Provider 编排循环所需的模型能力
type Provider interface {
	PostChatCompletionsWithTools(c context.Context, messages []openai.ChatCompletionMessage, toolDefs []openai.Tool) (*llm_model.GenerateResult, error)
	PostImageGeneration(c context.Context, prompt string) (string, error)
}

// Service 响应编排:配额门禁、上下文组装、工具循环、兜底与落库
type Service struct {
	repositoryFactory factory.Factory
	memoryService     *memory.Service
	gateService       *gate.Service
	summaryService    *summary.Service
	provider          Provider

	maxIterations int
	imageMaxBytes int

	now func() time.Time // 测试时可替换
}

func NewService(repositoryFactory factory.Factory) *Service {
	serviceOnce.Do(func() {
		cfg := config.GetInstance()
		instance = &Service{
			repositoryFactory: repositoryFactory,
			memoryService:     memory.NewService(repositoryFactory),
			gateService:       gate.NewService(repositoryFactory),
			summaryService:    summary.NewService(repositoryFactory),
			provider:          llm_model.GetInstance(),
			maxIterations:     cfg.GetIntOrDefault(config.LLMMaxIterations, constant.DefaultMaxIterations),
			imageMaxBytes:     cfg.GetIntOrDefault(config.ImageMaxSizeMB, constant.DefaultImageMaxSizeMB) * 1024 * 1024,
			now:               time.Now,
		}
	})

	return instance
}

// NewServiceWithDeps 测试用,绕过单例
func NewServiceWithDeps(repositoryFactory factory.Factory, memoryService *memory.Service, gateService *gate.Service, summaryService *summary.Service, provider Provider, maxIterations int) *Service {
	if maxIterations <= 0 {
		maxIterations = constant.DefaultMaxIterations
	}
	return &Service{
		repositoryFactory: repositoryFactory,
		memoryService:     memoryService,
		gateService:       gateService,
		summaryService:    summaryService,
		provider:          provider,
		maxIterations:     maxIterations,
		imageMaxBytes:     constant.DefaultImageMaxSizeMB * 1024 * 1024,
		now:               time.Now,
	}
}

// HandleMessage 处理一条入站消息,任何内部故障都退化为固定文案,
// 不把原始错误漏给用户
func (s *Service) HandleMessage(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, *model.Error) {
	if req == nil || req.UserID <= 0 || strings.TrimSpace(req.Message) == constant.EmptyString {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("chat request requires user id and message"))
	}

	quota, modelErr := s.gateService.CheckQuota(ctx, req.UserID)
	if modelErr != nil {
		return nil, modelErr
	}
	if !quota.Allowed {
		// 未注册或超限:不落任何历史,直接返回门禁文案
		return &model.ChatResponse{ResponseText: quota.Message}, nil
	}

	if req.ImageData != constant.EmptyString {
		if err := s.validateImage(req.ImageData); err != nil {
			log.Warnf("rejected image from user %d: %v", req.UserID, err)
			return nil, model.NewError(model.ErrorParams, err)
		}
	}

	bundle, modelErr := s.memoryService.GetContextBundle(ctx, req.UserID)
	if modelErr != nil {
		return nil, modelErr
	}
	if bundle.Profile == nil {
		return &model.ChatResponse{ResponseText: constant.OnboardingPrompt}, nil
	}

	sentAt := req.Timestamp
	if sentAt.IsZero() {
		sentAt = s.now().UTC()
	}

	if modelErr := s.memoryService.AppendMessage(ctx, req.UserID, constant.RoleUser, req.Message, sentAt); modelErr != nil {
		return nil, modelErr
	}

	response := s.runLoop(ctx, req, bundle)

	// 回复落库失败不影响已生成的回复
	if modelErr := s.memoryService.AppendMessage(ctx, req.UserID, constant.RoleModel, response.ResponseText, s.now().UTC()); modelErr != nil {
		log.Errorf("failed to persist model reply for user %d: %v", req.UserID, modelErr)
	}

	levelUp, modelErr := s.memoryService.CheckLevelUp(ctx, bundle.Profile, s.now().UTC())
	if modelErr != nil {
		log.Errorf("level up check for user %d failed: %v", req.UserID, modelErr)
	} else {
		response.LevelUpInfo = levelUp
	}

	// 摘要在独立协程里跑,带兜底超时,不阻塞响应
	userID := req.UserID
	background.Go("summarize", func() error {
		jobCtx, cancel := context.WithTimeout(context.Background(), summaryJobTimeout)
		defer cancel()
		return s.summaryService.MaybeSummarize(jobCtx, userID)
	})

	return response, nil
}

// runLoop 有界工具循环。模型故障和迭代超限都收敛到固定文案
func (s *Service) runLoop(ctx context.Context, req *model.ChatRequest, bundle *memory.ContextBundle) *model.ChatResponse {
	messages := s.buildMessages(req, bundle)
	response := &model.ChatResponse{}

	for iteration := 0; iteration < s.maxIterations; iteration++ {
		result, err := s.provider.PostChatCompletionsWithTools(ctx, messages, toolDefinitions())
		if err != nil {
			log.Errorf("chat completion for user %d failed: %v", req.UserID, err)
			response.ResponseText = constant.GenericFallback
			return response
		}

		if len(result.ToolCalls) == 0 {
			response.ResponseText = finalText(result)
			return response
		}

		// 模型要调工具:把 assistant 消息原样接回去,再逐个执行
		messages = append(messages, assistantToolMessage(result))
		for _, call := range result.ToolCalls {
			output := s.executeTool(ctx, req.UserID, call, response)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}

	log.Warnf("tool loop for user %d hit iteration limit %d", req.UserID, s.maxIterations)
	response.ResponseText = constant.IterationLimitFallback
	return response
}

// executeTool 执行一次工具调用,返回喂回模型的结果串。
// 未知工具不执行,返回错误说明让模型自行纠正
func (s *Service) executeTool(ctx context.Context, userID int64, call llm_model.ToolCall, response *model.ChatResponse) string {
	switch call.Name {
	case toolSaveFact:
		var args struct {
			Fact      string   `json:"fact"`
			Category  string   `json:"category"`
			Intensity *float32 `json:"intensity"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf(`{"error": "invalid arguments: %v"}`, err)
		}
		result, modelErr := s.memoryService.SaveFact(ctx, userID, args.Fact, args.Category, args.Intensity)
		if modelErr != nil {
			return `{"error": "could not save fact"}`
		}
		encoded, _ := json.Marshal(result)
		return string(encoded)

	case toolSearchFacts:
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf(`{"error": "invalid arguments: %v"}`, err)
		}
		result, modelErr := s.memoryService.SearchFacts(ctx, userID, args.Query)
		if modelErr != nil {
			return `{"error": "could not search facts"}`
		}
		encoded, _ := json.Marshal(result)
		return string(encoded)

	case toolGenerateImage:
		var args struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf(`{"error": "invalid arguments: %v"}`, err)
		}
		imageData, err := s.provider.PostImageGeneration(ctx, args.Prompt)
		if err != nil {
			log.Errorf("image generation for user %d failed: %v", userID, err)
			return `{"error": "image generation failed"}`
		}
		response.ImageBase64 = imageData
		return `{"status": "image generated and attached"}`

	default:
		log.Warnf("model requested unknown tool %q for user %d", call.Name, userID)
		return fmt.Sprintf(`{"error": "unknown tool %s"}`, call.Name)
	}
}

// buildMessages 组装系统提示词、历史和当前消息
func (s *Service) buildMessages(req *model.ChatRequest, bundle *memory.ContextBundle) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.buildSystemPrompt(req, bundle),
	}}

	for _, msg := range bundle.History {
		role := openai.ChatMessageRoleUser
		if msg.Role == constant.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	current := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.ImageData != constant.EmptyString {
		current.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Message},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + req.ImageData,
			}},
		}
	} else {
		current.Content = req.Message
	}
	return append(messages, current)
}

// buildSystemPrompt 人设 + 用户上下文 + 当前用户本地时间 + 摘要
func (s *Service) buildSystemPrompt(req *model.ChatRequest, bundle *memory.ContextBundle) string {
	profile := bundle.Profile
	now := s.now().UTC()

	// 时间戳换算到用户时区,时区名非法时退回 UTC
	localNow := now
	if profile.Timezone != constant.EmptyString {
		if loc, err := time.LoadLocation(profile.Timezone); err == nil {
			localNow = now.In(loc)
		} else {
			log.Warnf("user %d has invalid timezone %q: %v", profile.UserID, profile.Timezone, err)
		}
	}

	userContext := renderUserContext(profile)

	template := constant.BaseSystemPromptTemplate
	if profile.IsPremiumActive(now) {
		template = constant.PremiumSystemPromptTemplate
	}
	prompt := fmt.Sprintf(template, userContext, localNow.Format("2006-01-02 15:04 Monday"))

	if bundle.Summary != nil {
		prompt += fmt.Sprintf(constant.SummaryContextTemplate, bundle.Summary.Summary)
	}
	return prompt
}

func renderUserContext(profile *entity.UserProfile) string {
	var b strings.Builder
	if profile.Name != constant.EmptyString {
		fmt.Fprintf(&b, "Имя: %s\n", profile.Name)
	}
	if profile.Gender != constant.EmptyString {
		fmt.Fprintf(&b, "Пол: %s\n", profile.Gender)
	}

	level, ok := constant.RelationshipLevels[profile.RelationshipLevel]
	if ok {
		fmt.Fprintf(&b, "Уровень отношений: %d (%s). %s\n", profile.RelationshipLevel, level.Name, level.PromptContext)
	}
	fmt.Fprintf(&b, "Очки отношений: %d", profile.RelationshipScore)
	return b.String()
}

// finalText 根据停止原因决定最终文案,空回复一律兜底
func finalText(result *llm_model.GenerateResult) string {
	switch result.StopReason {
	case llm_model.StopReasonMaxTokens:
		return constant.MaxTokensFallback
	case llm_model.StopReasonSafety:
		return constant.SafetyFallback
	case llm_model.StopReasonStop:
		if strings.TrimSpace(result.Content) == constant.EmptyString {
			return constant.GenericFallback
		}
		return result.Content
	default:
		if strings.TrimSpace(result.Content) != constant.EmptyString {
			return result.Content
		}
		return constant.GenericFallback
	}
}

// validateImage 先用编码长度估算大小,超限时连解码都不做
func (s *Service) validateImage(data string) error {
	estimated := len(data) * 3 / 4
	if estimated > s.imageMaxBytes {
		return fmt.Errorf("image size %d exceeds limit %d bytes", estimated, s.imageMaxBytes)
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("image data is not valid base64: %w", err)
	}
	if len(decoded) > s.imageMaxBytes {
		return fmt.Errorf("image size %d exceeds limit %d bytes", len(decoded), s.imageMaxBytes)
	}
	return nil
}

func assistantToolMessage(result *llm_model.GenerateResult) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: result.Content,
	}
	for _, call := range result.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return msg
}

func toolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolSaveFact,
				Description: "Сохранить важный факт о пользователе в долговременную память",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"fact":     map[string]interface{}{"type": "string", "description": "Краткая формулировка факта"},
						"category": map[string]interface{}{"type": "string", "enum": constant.FactCategories},
						"intensity": map[string]interface{}{
							"type":        "number",
							"description": "Эмоциональная значимость от 0 до 1",
						},
					},
					"required": []string{"fact", "category"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolSearchFacts,
				Description: "Найти сохраненные факты о пользователе по ключевым словам",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{"type": "string", "description": "Ключевые слова для поиска"},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolGenerateImage,
				Description: "Сгенерировать изображение (селфи) по описанию",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"prompt": map[string]interface{}{"type": "string", "description": "Описание изображения"},
					},
					"required": []string{"prompt"},
				},
			},
		},
	}
}
