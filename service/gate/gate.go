package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evolveai/config"
	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/pkg/tools"
	"evolveai/repository"
	"evolveai/repository/factory"
	"evolveai/repository/interfaces"
	"evolveai/service/memory"

	log "github.com/sirupsen/logrus"
)

var (
	serviceOnce sync.Once
	instance    *Service
)

// Service 配额与订阅门禁。
// 超限、未注册都是正常判定结果,以决策对象返回,不走错误通道
type Service struct {
	repositoryFactory factory.Factory
	memoryService     *memory.Service
	dailyLimit        int

	now func() time.Time // 测试时可替换
}

func NewService(repositoryFactory factory.Factory) *Service {
	serviceOnce.Do(func() {
		instance = &Service{
			repositoryFactory: repositoryFactory,
			memoryService:     memory.NewService(repositoryFactory),
			dailyLimit:        config.GetInstance().GetIntOrDefault(config.QuotaDailyMessageLimit, constant.DefaultDailyMessageLimit),
			now:               time.Now,
		}
	})

	return instance
}

// NewServiceWithDeps 测试用,绕过单例
func NewServiceWithDeps(repositoryFactory factory.Factory, memoryService *memory.Service, dailyLimit int) *Service {
	if dailyLimit <= 0 {
		dailyLimit = constant.DefaultDailyMessageLimit
	}
	return &Service{
		repositoryFactory: repositoryFactory,
		memoryService:     memoryService,
		dailyLimit:        dailyLimit,
		now:               time.Now,
	}
}

// CheckQuota 判定本条消息是否放行。
// premium 不限量;发现已过期的订阅顺手降级(过期自愈)
func (s *Service) CheckQuota(ctx context.Context, userID int64) (*model.QuotaDecision, *model.Error) {
	profile, modelErr := s.memoryService.GetProfile(ctx, userID)
	if modelErr != nil {
		return nil, modelErr
	}
	if profile == nil {
		return &model.QuotaDecision{
			Allowed: false,
			Reason:  model.QuotaReasonProfileNotFound,
			Message: constant.OnboardingPrompt,
			Limit:   s.dailyLimit,
		}, nil
	}

	now := s.now().UTC()

	if profile.IsPremiumActive(now) {
		return &model.QuotaDecision{
			Allowed: true,
			Reason:  model.QuotaReasonPremiumActive,
			Limit:   s.dailyLimit,
		}, nil
	}

	// 订阅已到期但画像还挂着 premium,顺手降级
	if profile.SubscriptionPlan == constant.PlanPremium {
		s.healExpired(ctx, userID, now)
	}

	count := s.countForToday(profile, now)
	if count < s.dailyLimit {
		return &model.QuotaDecision{
			Allowed:      true,
			Reason:       model.QuotaReasonWithinLimit,
			CurrentCount: count,
			Limit:        s.dailyLimit,
		}, nil
	}

	return &model.QuotaDecision{
		Allowed:      false,
		Reason:       model.QuotaReasonLimitExceeded,
		Message:      fmt.Sprintf(constant.QuotaExceededTemplate, s.dailyLimit),
		CurrentCount: count,
		Limit:        s.dailyLimit,
	}, nil
}

// countForToday 计数按天滚动:上次消息不是今天,计数视为 0
func (s *Service) countForToday(profile *entity.UserProfile, now time.Time) int {
	if profile.LastMessageDate == nil {
		return 0
	}
	last := profile.LastMessageDate.UTC()
	if last.Year() == now.Year() && last.YearDay() == now.YearDay() {
		return profile.DailyMessageCount
	}
	return 0
}

func (s *Service) healExpired(ctx context.Context, userID int64, now time.Time) {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	healed, err := newUserProfileRepository(s.repositoryFactory, session).ExpirePremium(userID, now)
	if err != nil {
		log.Errorf("failed to expire premium for user %d: %v", userID, err)
		return
	}
	if healed {
		log.Infof("premium subscription expired for user %d, downgraded to free", userID)
		s.memoryService.InvalidateProfile(ctx, userID)
	}
}

// ActivateSubscription 幂等激活:同一 charge_id 重复提交不会二次顺延,
// 直接返回当前订阅状态
func (s *Service) ActivateSubscription(ctx context.Context, req *model.ActivatePremiumRequest) (*model.SubscriptionInfo, *model.Error) {
	if req == nil || req.UserID <= 0 {
		return nil, model.NewError(model.ErrorParams, fmt.Errorf("activation requires a positive user id"))
	}

	durationDays, ok := constant.PlanDurationDays[req.Plan]
	if !ok {
		return nil, model.NewError(model.ErrorPlanUnknown, fmt.Errorf("unknown subscription plan %q", req.Plan))
	}

	now := s.now().UTC()

	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	applied, err := newUserProfileRepository(s.repositoryFactory, session).ActivatePremium(req.UserID, now, durationDays, req.ChargeID)
	if err != nil {
		return nil, model.NewError(model.ErrorDB, err)
	}
	if applied {
		log.Infof("premium activated for user %d, plan %s, charge %s", req.UserID, req.Plan, req.ChargeID)
		s.memoryService.InvalidateProfile(ctx, req.UserID)
		return s.GetSubscriptionInfo(ctx, req.UserID)
	}

	// 没改到任何行有两种情况:画像不存在,或同一 charge_id 重复提交
	profile, modelErr := s.memoryService.GetProfile(ctx, req.UserID)
	if modelErr != nil {
		return nil, modelErr
	}
	if profile == nil {
		return nil, model.NewError(model.ErrorProfileNotFound, fmt.Errorf("cannot activate premium: profile for user %d not found", req.UserID))
	}

	log.Warnf("duplicate premium activation for user %d, charge %s, no changes applied", req.UserID, req.ChargeID)
	return s.GetSubscriptionInfo(ctx, req.UserID)
}

func (s *Service) GetSubscriptionInfo(ctx context.Context, userID int64) (*model.SubscriptionInfo, *model.Error) {
	profile, modelErr := s.memoryService.GetProfile(ctx, userID)
	if modelErr != nil {
		return nil, modelErr
	}
	if profile == nil {
		return nil, model.NewError(model.ErrorProfileNotFound, fmt.Errorf("profile for user %d not found", userID))
	}

	now := s.now().UTC()

	info := &model.SubscriptionInfo{
		Plan:       profile.SubscriptionPlan,
		Expires:    profile.SubscriptionExpires,
		IsActive:   profile.IsPremiumActive(now),
		DailyCount: s.countForToday(profile, now),
		DailyLimit: s.dailyLimit,
	}
	if info.IsActive {
		info.DaysLeft = int(profile.SubscriptionExpires.Sub(now).Hours() / 24)
	}
	return info, nil
}

// ExpireSweep 周期性兜底:降级所有到期订阅,供调度器调用
func (s *Service) ExpireSweep(ctx context.Context) error {
	session := s.repositoryFactory.NewSession(ctx)
	defer tools.ErrorWithPrintContext(session.Close, "close session")

	repo := newUserProfileRepository(s.repositoryFactory, session)

	affected, err := repo.ExpireAllPremium(s.now().UTC())
	if err != nil {
		return err
	}
	if affected > 0 {
		log.Infof("premium sweep downgraded %d expired subscriptions", affected)
		// 降级后的画像缓存需要失效,逐个处理
		ids, err := repo.ListUserIDs()
		if err != nil {
			log.Warnf("premium sweep could not list users for cache invalidation: %v", err)
			return nil
		}
		for _, id := range ids {
			s.memoryService.InvalidateProfile(ctx, id)
		}
	}
	return nil
}

func newUserProfileRepository(repoFactory factory.Factory, session interfaces.Session) repository.UserProfileRepository {
	repo, err := repoFactory.NewUserProfileRepository(session)
	if err != nil {
		panic("failed to create user profile repository: " + err.Error())
	}
	return repo
}
