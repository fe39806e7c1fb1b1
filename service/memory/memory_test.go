package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/pkg/cache"
	"evolveai/pkg/crypto"
	"evolveai/repository/repositorytest"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, historyLimit int) (*Service, *repositorytest.Factory) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gateway := cache.NewGatewayWithOptions(client, cache.NewBreaker(5, time.Minute), time.Minute*10, 2, time.Millisecond)

	cipher, err := crypto.NewCipher("test-secret-key")
	require.NoError(t, err)

	repoFactory := repositorytest.NewFactory()
	return NewServiceWithDeps(repoFactory, gateway, cipher, historyLimit), repoFactory
}

func seedProfile(factory *repositorytest.Factory, userID int64) *entity.UserProfile {
	profile := &entity.UserProfile{
		UserID:            userID,
		RelationshipLevel: 1,
		SubscriptionPlan:  constant.PlanFree,
		LevelUnlockedAt:   time.Now().UTC().AddDate(0, 0, -30),
	}
	factory.Store.Profiles[userID] = profile
	return profile
}

func TestGetProfileAbsentReturnsNil(t *testing.T) {
	service, _ := newTestService(t, 0)

	profile, modelErr := service.GetProfile(context.Background(), 42)
	require.Nil(t, modelErr)
	assert.Nil(t, profile)
}

func TestGetProfileServedFromCacheAfterFirstRead(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)

	first, modelErr := service.GetProfile(ctx, 42)
	require.Nil(t, modelErr)
	require.NotNil(t, first)

	// 删掉数据库里的行,缓存命中时仍能返回
	delete(factory.Store.Profiles, 42)

	second, modelErr := service.GetProfile(ctx, 42)
	require.Nil(t, modelErr)
	require.NotNil(t, second)
	assert.Equal(t, int64(42), second.UserID)
}

func TestUpdateProfileEncryptsNameAtRest(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()

	modelErr := service.UpdateProfile(ctx, &model.ProfileUpdate{
		UserID: 42,
		Data:   model.ProfileData{Name: "Алиса", Timezone: "Europe/Moscow"},
	})
	require.Nil(t, modelErr)

	// 落库的是密文
	stored := factory.Store.Profiles[42]
	require.NotNil(t, stored)
	assert.NotEqual(t, "Алиса", stored.Name)
	assert.Equal(t, "Europe/Moscow", stored.Timezone)

	// 读路径解密
	profile, modelErr := service.GetProfile(ctx, 42)
	require.Nil(t, modelErr)
	assert.Equal(t, "Алиса", profile.Name)
}

func TestUpdateProfileInvalidatesCache(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)

	_, modelErr := service.GetProfile(ctx, 42)
	require.Nil(t, modelErr)

	modelErr = service.UpdateProfile(ctx, &model.ProfileUpdate{
		UserID: 42,
		Data:   model.ProfileData{Name: "Алиса", Gender: "male"},
	})
	require.Nil(t, modelErr)

	profile, modelErr := service.GetProfile(ctx, 42)
	require.Nil(t, modelErr)
	assert.Equal(t, "male", profile.Gender)
}

func TestAppendMessageCountsOnlyUserMessages(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)
	now := time.Now().UTC()

	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "привет", now))
	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleModel, "привет!", now))
	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "как дела?", now))

	assert.Len(t, factory.Store.Messages, 3)
	assert.Equal(t, 2, factory.Store.Profiles[42].DailyMessageCount)
}

func TestAppendMessageConcurrentCounterIsExact(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)
	now := time.Now().UTC()

	// 并发写同一用户,计数器必须精确等于消息数,不允许丢更新
	const workers = 32
	errCh := make(chan *model.Error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			errCh <- service.AppendMessage(ctx, 42, constant.RoleUser, fmt.Sprintf("сообщение %d", i), now)
		}(i)
	}
	wg.Wait()
	close(errCh)
	for modelErr := range errCh {
		require.Nil(t, modelErr)
	}

	assert.Equal(t, workers, factory.Store.Profiles[42].DailyMessageCount)
	assert.Len(t, factory.Store.Messages, workers)
}

func TestAppendMessageResetsCounterOnNewDay(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)

	day1 := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "привет", day1))
	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "еще тут?", day1))
	require.Equal(t, 2, factory.Store.Profiles[42].DailyMessageCount)

	// 过了午夜,第一条消息把计数器重置为 1
	day2 := day1.Add(time.Hour)
	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "доброе утро", day2))
	assert.Equal(t, 1, factory.Store.Profiles[42].DailyMessageCount)
}

func TestAppendMessageSanitizesContent(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)

	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "<b>привет</b>\x00", time.Now().UTC()))
	assert.Equal(t, "привет", factory.Store.Messages[0].Content)

	// 清洗后为空的消息被拒绝
	modelErr := service.AppendMessage(ctx, 42, constant.RoleUser, "<br>", time.Now().UTC())
	require.NotNil(t, modelErr)
	assert.Equal(t, model.ErrorParams, modelErr.Code)
}

func TestSaveFactIdempotent(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()

	first, modelErr := service.SaveFact(ctx, 42, "любит кофе", "preferences", nil)
	require.Nil(t, modelErr)
	assert.Equal(t, model.SaveFactSaved, first.Status)

	second, modelErr := service.SaveFact(ctx, 42, "любит кофе", "preferences", nil)
	require.Nil(t, modelErr)
	assert.Equal(t, model.SaveFactSkipped, second.Status)

	assert.Len(t, factory.Store.Facts, 1)
}

func TestSearchFactsRejectsInvalidQueryAsResult(t *testing.T) {
	service, _ := newTestService(t, 0)

	result, modelErr := service.SearchFacts(context.Background(), 42, "'; DROP TABLE --")
	require.Nil(t, modelErr)
	assert.True(t, result.Invalid)
	assert.Empty(t, result.Items)
}

func TestSearchFactsNoResults(t *testing.T) {
	service, _ := newTestService(t, 0)

	result, modelErr := service.SearchFacts(context.Background(), 42, "кофе")
	require.Nil(t, modelErr)
	assert.True(t, result.NoResults)
}

func TestGetContextBundleTrimsHistoryToLimit(t *testing.T) {
	service, factory := newTestService(t, 5)
	ctx := context.Background()
	seedProfile(factory, 42)

	for i := 0; i < 8; i++ {
		require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "сообщение", time.Now().UTC()))
	}

	bundle, modelErr := service.GetContextBundle(ctx, 42)
	require.Nil(t, modelErr)
	require.Len(t, bundle.History, 5)
	// 保留的是最近的一段
	assert.Equal(t, int64(4), bundle.History[0].ID)
	assert.Equal(t, int64(8), bundle.History[4].ID)
}

func TestGetContextBundleSkipsSummarizedMessages(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)

	for i := 0; i < 6; i++ {
		require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "сообщение", time.Now().UTC()))
	}
	factory.Store.Summaries[42] = &entity.ChatSummary{UserID: 42, Summary: "сводка", LastMessageID: 4}

	bundle, modelErr := service.GetContextBundle(ctx, 42)
	require.Nil(t, modelErr)
	require.NotNil(t, bundle.Summary)
	require.Len(t, bundle.History, 2)
	assert.Equal(t, int64(5), bundle.History[0].ID)
}

func TestResetUserRemovesAllTiers(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	seedProfile(factory, 42)

	require.Nil(t, service.AppendMessage(ctx, 42, constant.RoleUser, "привет", time.Now().UTC()))
	_, modelErr := service.SaveFact(ctx, 42, "любит кофе", "preferences", nil)
	require.Nil(t, modelErr)
	factory.Store.Summaries[42] = &entity.ChatSummary{UserID: 42, Summary: "сводка", LastMessageID: 1}

	require.Nil(t, service.ResetUser(ctx, 42))

	assert.Empty(t, factory.Store.Messages)
	assert.Empty(t, factory.Store.Facts)
	assert.Empty(t, factory.Store.Summaries)
	assert.Empty(t, factory.Store.Profiles)

	profile, modelErr := service.GetProfile(ctx, 42)
	require.Nil(t, modelErr)
	assert.Nil(t, profile)
}

func TestCheckLevelUpRequiresScoreAndDays(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	profile := seedProfile(factory, 42)
	profile.RelationshipScore = 10

	// 分数不够
	info, modelErr := service.CheckLevelUp(ctx, profile, now)
	require.Nil(t, modelErr)
	assert.Nil(t, info)

	// 分数够但停留天数不足
	profile.RelationshipScore = 60
	profile.LevelUnlockedAt = now.Add(-time.Hour * 12)
	info, modelErr = service.CheckLevelUp(ctx, profile, now)
	require.Nil(t, modelErr)
	assert.Nil(t, info)

	// 都满足,升级
	profile.LevelUnlockedAt = now.AddDate(0, 0, -3)
	info, modelErr = service.CheckLevelUp(ctx, profile, now)
	require.Nil(t, modelErr)
	require.NotNil(t, info)
	assert.Equal(t, constant.RelationshipLevels[2].Name, info.NewLevelName)
	assert.Equal(t, 2, factory.Store.Profiles[42].RelationshipLevel)
}

func TestCheckLevelUpPaidLevelOffersSubscription(t *testing.T) {
	service, factory := newTestService(t, 0)
	ctx := context.Background()
	now := time.Now().UTC()

	profile := seedProfile(factory, 42)
	profile.RelationshipLevel = 3
	profile.RelationshipScore = 400
	profile.LevelUnlockedAt = now.AddDate(0, 0, -10)

	// 免费用户达到付费等级门槛:不升级,推销订阅
	info, modelErr := service.CheckLevelUp(ctx, profile, now)
	require.Nil(t, modelErr)
	require.NotNil(t, info)
	assert.True(t, info.OfferSubscription)
	assert.Empty(t, info.NewLevelName)
	assert.Equal(t, 3, factory.Store.Profiles[42].RelationshipLevel)

	// premium 用户正常升级
	expires := now.AddDate(0, 0, 30)
	profile.SubscriptionPlan = constant.PlanPremium
	profile.SubscriptionExpires = &expires
	info, modelErr = service.CheckLevelUp(ctx, profile, now)
	require.Nil(t, modelErr)
	require.NotNil(t, info)
	assert.Equal(t, constant.RelationshipLevels[4].Name, info.NewLevelName)
	assert.Equal(t, 4, factory.Store.Profiles[42].RelationshipLevel)
}

func TestCheckLevelUpAtMaxLevelDoesNothing(t *testing.T) {
	service, factory := newTestService(t, 0)
	now := time.Now().UTC()

	profile := seedProfile(factory, 42)
	profile.RelationshipLevel = constant.MaxRelationshipLevel()
	profile.RelationshipScore = 10000

	info, modelErr := service.CheckLevelUp(context.Background(), profile, now)
	require.Nil(t, modelErr)
	assert.Nil(t, info)
}
