package gate

import (
	"context"
	"testing"
	"time"

	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/pkg/cache"
	"evolveai/pkg/crypto"
	"evolveai/repository/repositorytest"
	"evolveai/service/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDailyLimit = 5

func newTestService(t *testing.T) (*Service, *repositorytest.Factory) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gateway := cache.NewGatewayWithOptions(client, cache.NewBreaker(5, time.Minute), time.Minute*10, 2, time.Millisecond)

	cipher, err := crypto.NewCipher("")
	require.NoError(t, err)

	repoFactory := repositorytest.NewFactory()
	memoryService := memory.NewServiceWithDeps(repoFactory, gateway, cipher, 0)
	return NewServiceWithDeps(repoFactory, memoryService, testDailyLimit), repoFactory
}

func day(t time.Time) *time.Time {
	d := t.UTC().Truncate(24 * time.Hour)
	return &d
}

func seedFreeProfile(factory *repositorytest.Factory, userID int64) *entity.UserProfile {
	profile := &entity.UserProfile{
		UserID:            userID,
		RelationshipLevel: 1,
		SubscriptionPlan:  constant.PlanFree,
	}
	factory.Store.Profiles[userID] = profile
	return profile
}

func TestCheckQuotaProfileNotFound(t *testing.T) {
	service, _ := newTestService(t)

	decision, modelErr := service.CheckQuota(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.False(t, decision.Allowed)
	assert.Equal(t, model.QuotaReasonProfileNotFound, decision.Reason)
	assert.Equal(t, constant.OnboardingPrompt, decision.Message)
}

func TestCheckQuotaWithinLimitBoundary(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }

	profile := seedFreeProfile(factory, 42)
	profile.DailyMessageCount = testDailyLimit - 1
	profile.LastMessageDate = day(now)

	// 还差一条到上限:放行
	decision, modelErr := service.CheckQuota(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.True(t, decision.Allowed)
	assert.Equal(t, model.QuotaReasonWithinLimit, decision.Reason)
	assert.Equal(t, testDailyLimit-1, decision.CurrentCount)
}

func TestCheckQuotaLimitExceeded(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }

	profile := seedFreeProfile(factory, 42)
	profile.DailyMessageCount = testDailyLimit
	profile.LastMessageDate = day(now)

	decision, modelErr := service.CheckQuota(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.False(t, decision.Allowed)
	assert.Equal(t, model.QuotaReasonLimitExceeded, decision.Reason)
	assert.Contains(t, decision.Message, "лимит")
}

func TestCheckQuotaResetsOnNewDay(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }

	// 昨天打满了配额,今天重新计数
	profile := seedFreeProfile(factory, 42)
	profile.DailyMessageCount = testDailyLimit
	profile.LastMessageDate = day(now.AddDate(0, 0, -1))

	decision, modelErr := service.CheckQuota(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.CurrentCount)
}

func TestCheckQuotaPremiumUnlimited(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }

	profile := seedFreeProfile(factory, 42)
	expires := now.AddDate(0, 0, 10)
	profile.SubscriptionPlan = constant.PlanPremium
	profile.SubscriptionExpires = &expires
	profile.DailyMessageCount = testDailyLimit * 10
	profile.LastMessageDate = day(now)

	decision, modelErr := service.CheckQuota(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.True(t, decision.Allowed)
	assert.Equal(t, model.QuotaReasonPremiumActive, decision.Reason)
}

func TestCheckQuotaHealsExpiredPremium(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }

	profile := seedFreeProfile(factory, 42)
	expires := now.AddDate(0, 0, -1)
	profile.SubscriptionPlan = constant.PlanPremium
	profile.SubscriptionExpires = &expires

	decision, modelErr := service.CheckQuota(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.True(t, decision.Allowed)
	assert.Equal(t, model.QuotaReasonWithinLimit, decision.Reason)

	// 过期订阅已降级
	assert.Equal(t, constant.PlanFree, factory.Store.Profiles[42].SubscriptionPlan)
	assert.Nil(t, factory.Store.Profiles[42].SubscriptionExpires)
}

func TestActivateSubscription(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }
	seedFreeProfile(factory, 42)

	info, modelErr := service.ActivateSubscription(context.Background(), &model.ActivatePremiumRequest{
		UserID:   42,
		Plan:     "1_month",
		ChargeID: "charge-001",
	})
	require.Nil(t, modelErr)
	assert.True(t, info.IsActive)
	assert.Equal(t, constant.PlanPremium, info.Plan)
	require.NotNil(t, info.Expires)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), *info.Expires, time.Second)
}

func TestActivateSubscriptionIdempotentOnDuplicateCharge(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }
	seedFreeProfile(factory, 42)

	ctx := context.Background()
	req := &model.ActivatePremiumRequest{UserID: 42, Plan: "1_month", ChargeID: "charge-001"}

	first, modelErr := service.ActivateSubscription(ctx, req)
	require.Nil(t, modelErr)

	// 同一 charge_id 重复提交,到期时间不变
	second, modelErr := service.ActivateSubscription(ctx, req)
	require.Nil(t, modelErr)
	assert.Equal(t, first.Expires.Unix(), second.Expires.Unix())
}

func TestActivateSubscriptionExtendsActivePremium(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }
	seedFreeProfile(factory, 42)

	ctx := context.Background()
	_, modelErr := service.ActivateSubscription(ctx, &model.ActivatePremiumRequest{UserID: 42, Plan: "1_month", ChargeID: "charge-001"})
	require.Nil(t, modelErr)

	// 续费从当前到期时间顺延,不从当前时刻重新计
	info, modelErr := service.ActivateSubscription(ctx, &model.ActivatePremiumRequest{UserID: 42, Plan: "3_months", ChargeID: "charge-002"})
	require.Nil(t, modelErr)
	assert.WithinDuration(t, now.AddDate(0, 0, 30+90), *info.Expires, time.Second)
}

func TestActivateSubscriptionUnknownUserReportsNotFound(t *testing.T) {
	service, _ := newTestService(t)

	// 没有画像的首次支付不是重复扣款,要明确报画像不存在
	_, modelErr := service.ActivateSubscription(context.Background(), &model.ActivatePremiumRequest{
		UserID:   404,
		Plan:     "1_month",
		ChargeID: "charge-001",
	})
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorProfileNotFound, modelErr.Code)
}

func TestActivateSubscriptionUnknownPlan(t *testing.T) {
	service, factory := newTestService(t)
	seedFreeProfile(factory, 42)

	_, modelErr := service.ActivateSubscription(context.Background(), &model.ActivatePremiumRequest{
		UserID:   42,
		Plan:     "lifetime",
		ChargeID: "charge-001",
	})
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorPlanUnknown, modelErr.Code)
}

func TestExpireSweepDowngradesExpired(t *testing.T) {
	service, factory := newTestService(t)
	now := time.Now().UTC()
	service.now = func() time.Time { return now }

	expired := seedFreeProfile(factory, 1)
	expiredAt := now.AddDate(0, 0, -2)
	expired.SubscriptionPlan = constant.PlanPremium
	expired.SubscriptionExpires = &expiredAt

	active := seedFreeProfile(factory, 2)
	activeUntil := now.AddDate(0, 0, 5)
	active.SubscriptionPlan = constant.PlanPremium
	active.SubscriptionExpires = &activeUntil

	require.NoError(t, service.ExpireSweep(context.Background()))

	assert.Equal(t, constant.PlanFree, factory.Store.Profiles[1].SubscriptionPlan)
	assert.Equal(t, constant.PlanPremium, factory.Store.Profiles[2].SubscriptionPlan)
}
