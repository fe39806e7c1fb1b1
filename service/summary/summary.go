package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"evolveai/config"
	"evolveai/constant"
	"evolveai/entity"
	"evolveai/pkg/clients/llm_model"
	"evolveai/pkg/tools"
	"evolveai/repository"
	"evolveai/repository/factory"
	"evolveai/repository/interfaces"
	"evolveai/service/memory"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

var (
	serviceOnce sync.Once
	instance    *Service
)

const applyRetryAttempts = 3

// Completer 摘要生成所需的模型能力
type Completer interface {
	PostChatCompletionsNonStreamContent(c context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// Service 累积摘要引擎:未摘要消息积累到阈值后,
// 取最旧的一批压缩进摘要,同时产出关系分增量
type Service struct {
	repositoryFactory factory.Factory
	memoryService     *memory.Service
	completer         Completer

	threshold     int
	batchSize     int
	scoreDeltaMin int
	scoreDeltaMax int
}

func NewService(repositoryFactory factory.Factory) *Service {
	serviceOnce.Do(func() {
		cfg := config.GetInstance()
		instance = &Service{
			repositoryFactory: repositoryFactory,
			memoryService:     memory.NewService(repositoryFactory),
			completer:         llm_model.GetInstance(),
			threshold:         cfg.GetIntOrDefault(config.MemorySummaryThreshold, constant.DefaultSummaryThreshold),
			batchSize:         cfg.GetIntOrDefault(config.MemorySummaryBatchSize, constant.DefaultSummaryBatchSize),
			scoreDeltaMin:     cfg.GetIntOrDefault(config.MemoryScoreDeltaMin, constant.DefaultScoreDeltaMin),
			scoreDeltaMax:     cfg.GetIntOrDefault(config.MemoryScoreDeltaMax, constant.DefaultScoreDeltaMax),
		}
	})

	return instance
}

// NewServiceWithDeps 测试用,绕过单例
func NewServiceWithDeps(repositoryFactory factory.Factory, memoryService *memory.Service, completer Completer, threshold, batchSize int) *Service {
	return &Service{
		repositoryFactory: repositoryFactory,
		memoryService:     memoryService,
		completer:         completer,
		threshold:         threshold,
		batchSize:         batchSize,
		scoreDeltaMin:     constant.DefaultScoreDeltaMin,
		scoreDeltaMax:     constant.DefaultScoreDeltaMax,
	}
}

// summaryPayload 模型返回的摘要结构
type summaryPayload struct {
	Summary    string `json:"summary"`
	ScoreDelta int    `json:"score_delta"`
}

// MaybeSummarize 阈值检查加一轮摘要。
// 未达阈值直接返回,模型失败时什么都不改,消息留到下一轮
func (s *Service) MaybeSummarize(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("user id must be positive, got %d", userID)
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	summaryRepo := newChatSummaryRepository(s.repositoryFactory, session)
	messageRepo := newChatMessageRepository(s.repositoryFactory, session)

	existing, err := summaryRepo.Get(userID)
	if err != nil {
		return err
	}
	var afterID int64
	if existing != nil {
		afterID = existing.LastMessageID
	}

	count, err := messageRepo.CountUnsummarized(userID, afterID)
	if err != nil {
		return err
	}
	if count < int64(s.threshold) {
		return nil
	}

	// 只取最旧的一批,剩余消息保持在线上下文里
	batch, err := messageRepo.ListUnsummarized(userID, afterID, s.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	payload, err := s.generate(ctx, existing, batch)
	if err != nil {
		return fmt.Errorf("summary generation for user %d failed: %w", userID, err)
	}

	lastID := batch[len(batch)-1].ID
	if err := s.apply(ctx, userID, payload, lastID); err != nil {
		return err
	}

	log.Infof("summarized %d messages for user %d through id %d, score delta %d",
		len(batch), userID, lastID, payload.ScoreDelta)
	return nil
}

// generate 调模型产出摘要,首次和增量用不同提示词
func (s *Service) generate(ctx context.Context, existing *entity.ChatSummary, batch []*entity.ChatMessage) (*summaryPayload, error) {
	dialog := renderDialog(batch)

	var prompt string
	if existing == nil {
		prompt = fmt.Sprintf(constant.InitialSummaryPromptTemplate, dialog, s.scoreDeltaMin, s.scoreDeltaMax)
	} else {
		prompt = fmt.Sprintf(constant.CumulativeSummaryPromptTemplate, existing.Summary, dialog, s.scoreDeltaMin, s.scoreDeltaMax)
	}

	raw, err := s.completer.PostChatCompletionsNonStreamContent(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	payload, err := parseSummaryResponse(raw)
	if err != nil {
		return nil, err
	}

	payload.ScoreDelta = s.clampDelta(payload.ScoreDelta)
	return payload, nil
}

// apply 摘要落库是一个整体:更新摘要行、删除已并入的消息、应用关系分增量。
// 任何一步失败整体回滚,带退避重试几次
func (s *Service) apply(ctx context.Context, userID int64, payload *summaryPayload, lastID int64) error {
	var err error
	for attempt := 1; attempt <= applyRetryAttempts; attempt++ {
		if err = s.applyOnce(ctx, userID, payload, lastID); err == nil {
			break
		}
		log.Warnf("summary apply for user %d attempt %d failed: %v", userID, attempt, err)
		time.Sleep(time.Millisecond * 100 * time.Duration(attempt))
	}
	if err != nil {
		return err
	}

	s.memoryService.InvalidateProfile(ctx, userID)
	return nil
}

func (s *Service) applyOnce(ctx context.Context, userID int64, payload *summaryPayload, lastID int64) error {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	if err := session.Begin(); err != nil {
		return err
	}

	if err := newChatSummaryRepository(s.repositoryFactory, session).Upsert(userID, payload.Summary, lastID); err != nil {
		rollback(session)
		return err
	}
	if err := newChatMessageRepository(s.repositoryFactory, session).DeleteThrough(userID, lastID); err != nil {
		rollback(session)
		return err
	}
	if payload.ScoreDelta != 0 {
		if err := newUserProfileRepository(s.repositoryFactory, session).ApplyScoreDelta(userID, payload.ScoreDelta); err != nil {
			rollback(session)
			return err
		}
	}

	if err := session.Commit(); err != nil {
		rollback(session)
		return err
	}
	return nil
}

func (s *Service) clampDelta(delta int) int {
	if delta < s.scoreDeltaMin {
		return s.scoreDeltaMin
	}
	if delta > s.scoreDeltaMax {
		return s.scoreDeltaMax
	}
	return delta
}

func renderDialog(batch []*entity.ChatMessage) string {
	var b strings.Builder
	for _, msg := range batch {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// parseSummaryResponse 容错解析模型返回:
// 去掉 markdown 代码栅栏,截取最外层花括号之间的内容
func parseSummaryResponse(raw string) (*summaryPayload, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("summary response holds no JSON object: %.80s", raw)
	}
	cleaned = cleaned[start : end+1]

	payload := &summaryPayload{}
	if err := json.Unmarshal([]byte(cleaned), payload); err != nil {
		return nil, fmt.Errorf("summary response is not valid JSON: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, fmt.Errorf("summary response holds an empty summary")
	}
	return payload, nil
}

func rollback(session interfaces.Session) {
	if err := session.Rollback(); err != nil {
		log.Errorf("session rollback error: %v", err)
	}
}

func newUserProfileRepository(repoFactory factory.Factory, session interfaces.Session) repository.UserProfileRepository {
	repo, err := repoFactory.NewUserProfileRepository(session)
	if err != nil {
		panic("failed to create user profile repository: " + err.Error())
	}
	return repo
}

func newChatMessageRepository(repoFactory factory.Factory, session interfaces.Session) repository.ChatMessageRepository {
	repo, err := repoFactory.NewChatMessageRepository(session)
	if err != nil {
		panic("failed to create chat message repository: " + err.Error())
	}
	return repo
}

func newChatSummaryRepository(repoFactory factory.Factory, session interfaces.Session) repository.ChatSummaryRepository {
	repo, err := repoFactory.NewChatSummaryRepository(session)
	if err != nil {
		panic("failed to create chat summary repository: " + err.Error())
	}
	return repo
}
