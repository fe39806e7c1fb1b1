package repository

import (
	"evolveai/entity"
	"evolveai/model"
	"time"
)

type UserProfileRepository interface {
	// Upsert 单条原子语句完成插入或更新，绝不读改写
	Upsert(cond *model.UpsertUserProfileCondition) error
	Get(userID int64) (*entity.UserProfile, error)
	// IncrementDailyCount 单条条件更新：日期变化时计数重置为 1，否则 +1。
	// 并发写同一用户时依赖行级原子性，不存在读改写竞争
	IncrementDailyCount(userID int64, today time.Time) error
	ApplyScoreDelta(userID int64, delta int) error
	LevelUp(userID int64, newLevel int, unlockedAt time.Time) error
	// ActivatePremium 幂等激活：chargeID 与已记录一致时不做任何修改，返回 false
	ActivatePremium(userID int64, now time.Time, durationDays int, chargeID string) (bool, error)
	// ExpirePremium 过期自愈：订阅已过期时降级为 free 并清空过期时间
	ExpirePremium(userID int64, now time.Time) (bool, error)
	// ExpireAllPremium 周期性兜底扫描，处理不活跃用户
	ExpireAllPremium(now time.Time) (int64, error)
	Delete(userID int64) error
	ListUserIDs() ([]int64, error)
}
