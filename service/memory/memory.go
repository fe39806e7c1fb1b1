package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evolveai/config"
	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/pkg/cache"
	"evolveai/pkg/clients/redis"
	"evolveai/pkg/crypto"
	"evolveai/pkg/tools"
	"evolveai/repository"
	"evolveai/repository/factory"
	"evolveai/repository/interfaces"

	log "github.com/sirupsen/logrus"
)

var (
	serviceOnce sync.Once
	instance    *Service
)

// Service 分层记忆服务:画像、近期历史、累积摘要、长期事实。
// 画像读路径走 cache-aside,写路径只失效不回填
type Service struct {
	repositoryFactory factory.Factory
	gateway           *cache.Gateway
	cipher            *crypto.Cipher
	historyLimit      int
}

func NewService(repositoryFactory factory.Factory) *Service {
	serviceOnce.Do(func() {
		instance = &Service{
			repositoryFactory: repositoryFactory,
			gateway:           cache.NewGateway(redis.GetInstance().Client),
			cipher:            crypto.GetInstance(),
			historyLimit:      config.GetInstance().GetIntOrDefault(config.MemoryHistoryLimit, constant.DefaultHistoryLimit),
		}
	})

	return instance
}

// NewServiceWithDeps 测试用,绕过单例
func NewServiceWithDeps(repositoryFactory factory.Factory, gateway *cache.Gateway, cipher *crypto.Cipher, historyLimit int) *Service {
	if historyLimit <= 0 {
		historyLimit = constant.DefaultHistoryLimit
	}
	return &Service{
		repositoryFactory: repositoryFactory,
		gateway:           gateway,
		cipher:            cipher,
		historyLimit:      historyLimit,
	}
}

func profileCacheKey(userID int64) string {
	return fmt.Sprintf("profile:%d", userID)
}

// GetProfile 读用户画像,缓存未命中回源数据库并回填。
// 画像不存在返回 (nil, nil),由调用方决定业务语义
func (s *Service) GetProfile(ctx context.Context, userID int64) (*entity.UserProfile, *model.Error) {
	if userID <= 0 {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("user id must be positive, got %d", userID))
	}

	cached := &entity.UserProfile{}
	if s.gateway.Get(ctx, profileCacheKey(userID), cached) {
		cached.Name = s.cipher.Decrypt(cached.Name)
		return cached, nil
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	profile, err := newUserProfileRepository(s.repositoryFactory, session).Get(userID)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if profile == nil {
		return nil, nil
	}

	// 回填缓存存密文,解密只在返回前做
	s.gateway.Set(ctx, profileCacheKey(userID), profile)

	profile.Name = s.cipher.Decrypt(profile.Name)
	return profile, nil
}

// UpdateProfile 创建或更新画像,姓名静态加密后落库,然后失效缓存
func (s *Service) UpdateProfile(ctx context.Context, update *model.ProfileUpdate) *model.Error {
	if update == nil || update.UserID <= 0 {
		return model.NewError(model.ErrorParams, fmt.Errorf("profile update requires a positive user id"))
	}

	encryptedName, err := s.cipher.Encrypt(update.Data.Name)
	if err != nil {
		return model.NewError(model.ErrorDB, fmt.Errorf("failed to encrypt name: %w", err))
	}

	cond := &model.UpsertUserProfileCondition{UserID: update.UserID}
	if update.Data.Name != constant.EmptyString {
		cond.Name = &encryptedName
	}
	if update.Data.Gender != constant.EmptyString {
		cond.Gender = &update.Data.Gender
	}
	if update.Data.Timezone != constant.EmptyString {
		cond.Timezone = &update.Data.Timezone
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	if err := newUserProfileRepository(s.repositoryFactory, session).Upsert(cond); err != nil {
		return model.NewError(model.ErrorDB, err)
	}

	// 只失效不回填,下一次读自然重建
	s.gateway.Delete(ctx, profileCacheKey(update.UserID))
	return nil
}

// AppendMessage 清洗后落一条聊天历史。
// 用户消息同时推进当日计数,两个写动作在同一事务里
func (s *Service) AppendMessage(ctx context.Context, userID int64, role, content string, sentAt time.Time) *model.Error {
	if userID <= 0 {
		return model.NewError(model.ErrorParams, fmt.Errorf("user id must be positive, got %d", userID))
	}

	cleaned := tools.SanitizeUserText(content)
	if cleaned == constant.EmptyString {
		return model.NewError(model.ErrorParams, fmt.Errorf("message content is empty after sanitization"))
	}
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	if err := session.Begin(); err != nil {
		return model.NewError(model.ErrorDB, err)
	}

	msg := &entity.ChatMessage{
		UserID:    userID,
		Role:      role,
		Content:   cleaned,
		Timestamp: sentAt,
	}
	if err := newChatMessageRepository(s.repositoryFactory, session).Insert(msg); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}

	if role == constant.RoleUser {
		if err := newUserProfileRepository(s.repositoryFactory, session).IncrementDailyCount(userID, sentAt); err != nil {
			rollback(session)
			return model.NewError(model.ErrorDB, err)
		}
	}

	if err := session.Commit(); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}

	// 计数变了,画像缓存作废
	if role == constant.RoleUser {
		s.gateway.Delete(ctx, profileCacheKey(userID))
	}
	return nil
}

// SaveFact 幂等保存长期事实:同一用户下完全相同的文本只存一次
func (s *Service) SaveFact(ctx context.Context, userID int64, fact, category string, intensity *float32) (*model.SaveFactResult, *model.Error) {
	if userID <= 0 || fact == constant.EmptyString {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("fact save requires user id and non-empty fact"))
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo := newLongTermFactRepository(s.repositoryFactory, session)

	exists, err := repo.Exists(userID, fact)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if exists {
		return &model.SaveFactResult{
			Status: model.SaveFactSkipped,
			Fact:   fact,
			Reason: "fact already exists",
		}, nil
	}

	err = repo.Insert(&entity.LongTermFact{
		UserID:    userID,
		Fact:      fact,
		Category:  category,
		Intensity: intensity,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}

	return &model.SaveFactResult{Status: model.SaveFactSaved, Fact: fact}, nil
}

// SearchFacts 长期事实检索。
// 非法查询和零命中都是正常业务结果,不作为错误返回
func (s *Service) SearchFacts(ctx context.Context, userID int64, query string) (*model.FactSearchResult, *model.Error) {
	if userID <= 0 {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("user id must be positive, got %d", userID))
	}

	if err := repository.ValidateSearchQuery(query); err != nil {
		log.Warnf("rejected fact search query for user %d: %v", userID, err)
		return &model.FactSearchResult{Invalid: true}, nil
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	facts, err := newLongTermFactRepository(s.repositoryFactory, session).Search(userID, query, 5)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if len(facts) == 0 {
		return &model.FactSearchResult{NoResults: true}, nil
	}

	result := &model.FactSearchResult{}
	for _, fact := range facts {
		result.Items = append(result.Items, model.FactItem{
			Fact:      fact.Fact,
			Category:  fact.Category,
			Timestamp: fact.Timestamp,
		})
	}
	return result, nil
}

// ContextBundle 一次对话所需的全部记忆上下文
type ContextBundle struct {
	Profile *entity.UserProfile
	Summary *entity.ChatSummary
	History []*entity.ChatMessage
}

// GetContextBundle 组装画像、摘要和摘要点之后的近期历史。
// 历史只保留最近 history_limit 条
func (s *Service) GetContextBundle(ctx context.Context, userID int64) (*ContextBundle, *model.Error) {
	profile, modelErr := s.GetProfile(ctx, userID)
	if modelErr != nil {
		return nil, modelErr
	}
	if profile == nil {
		return &ContextBundle{}, nil
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	summary, err := newChatSummaryRepository(s.repositoryFactory, session).Get(userID)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}

	var afterID int64
	if summary != nil {
		afterID = summary.LastMessageID
	}

	history, err := newChatMessageRepository(s.repositoryFactory, session).ListUnsummarized(userID, afterID, 0)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}

	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	return &ContextBundle{
		Profile: profile,
		Summary: summary,
		History: history,
	}, nil
}

// ResetUser 删除用户全部数据:历史、摘要、事实、画像,并失效缓存
func (s *Service) ResetUser(ctx context.Context, userID int64) *model.Error {
	if userID <= 0 {
		return model.NewError(model.ErrorParams, fmt.Errorf("user id must be positive, got %d", userID))
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	if err := session.Begin(); err != nil {
		return model.NewError(model.ErrorDB, err)
	}

	if err := newChatMessageRepository(s.repositoryFactory, session).DeleteByUser(userID); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}
	if err := newChatSummaryRepository(s.repositoryFactory, session).DeleteByUser(userID); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}
	if err := newLongTermFactRepository(s.repositoryFactory, session).DeleteByUser(userID); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}
	if err := newUserProfileRepository(s.repositoryFactory, session).Delete(userID); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}

	if err := session.Commit(); err != nil {
		rollback(session)
		return model.NewError(model.ErrorDB, err)
	}

	s.gateway.Delete(ctx, profileCacheKey(userID))
	return nil
}

// CheckLevelUp 评估是否满足升级条件并落库。
// 分数和停留天数都达标但下一级需要订阅时,不升级,只返回推销标记
func (s *Service) CheckLevelUp(ctx context.Context, profile *entity.UserProfile, now time.Time) (*model.LevelUpInfo, *model.Error) {
	if profile == nil {
		return nil, nil
	}

	next := profile.RelationshipLevel + 1
	if next > constant.MaxRelationshipLevel() {
		return nil, nil
	}

	level, ok := constant.RelationshipLevels[next]
	if !ok {
		return nil, nil
	}
	if profile.RelationshipScore < level.MinScore {
		return nil, nil
	}
	if now.Sub(profile.LevelUnlockedAt) < time.Hour*24*time.Duration(level.MinDays) {
		return nil, nil
	}

	if level.IsPaid && !profile.IsPremiumActive(now) {
		return &model.LevelUpInfo{OfferSubscription: true}, nil
	}

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	if err := newUserProfileRepository(s.repositoryFactory, session).LevelUp(profile.UserID, next, now); err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}

	s.gateway.Delete(ctx, profileCacheKey(profile.UserID))
	log.Infof("user %d leveled up to %d (%s)", profile.UserID, next, level.Name)
	return &model.LevelUpInfo{NewLevelName: level.Name}, nil
}

// CleanupRetention 按保留期清理过老的聊天历史,供调度器调用
func (s *Service) CleanupRetention(ctx context.Context) error {
	retentionDays := config.GetInstance().GetIntOrDefault(config.RetentionChatHistoryDays, constant.DefaultRetentionDays)
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	affected, err := newChatMessageRepository(s.repositoryFactory, session).DeleteOlderThan(cutoff)
	if err != nil {
		return err
	}
	if affected > 0 {
		log.Infof("retention cleanup removed %d chat messages older than %s", affected, cutoff.Format("2006-01-02"))
	}
	return nil
}

// InvalidateProfile 其他服务改完画像后调用
func (s *Service) InvalidateProfile(ctx context.Context, userID int64) {
	s.gateway.Delete(ctx, profileCacheKey(userID))
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

func newLongTermFactRepository(repoFactory factory.Factory, session interfaces.Session) repository.LongTermFactRepository {
	repo, err := repoFactory.NewLongTermFactRepository(session)
	if err != nil {
		panic("failed to create long term fact repository: " + err.Error())
	}
	return repo
}
