package xormimplement

import (
	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/repository"
	"fmt"
	"time"

	"xorm.io/builder"
)

type UserProfileRepository struct {
	session *Session
}

func NewUserProfileRepository(session *Session) repository.UserProfileRepository {
	return &UserProfileRepository{session: session}
}

// Upsert 单条 INSERT ... ON CONFLICT 完成插入或更新，nil 字段保持原值
func (r *UserProfileRepository) Upsert(cond *model.UpsertUserProfileCondition) error {
	if cond == nil {
		return fmt.Errorf("upsert condition cannot be nil")
	}
	if cond.UserID <= 0 {
		return fmt.Errorf("user_profiles user_id must be greater than 0")
	}

	sql := fmt.Sprintf(`INSERT INTO %s
		(user_id, name, gender, timezone, relationship_level, relationship_score, level_unlocked_at, subscription_plan, daily_message_count)
		VALUES (?, ?, ?, ?, 1, 0, ?, ?, 0)
		ON CONFLICT (user_id) DO UPDATE SET
		name = COALESCE(NULLIF(EXCLUDED.name, ''), %s.name),
		gender = COALESCE(NULLIF(EXCLUDED.gender, ''), %s.gender),
		timezone = COALESCE(NULLIF(EXCLUDED.timezone, ''), %s.timezone)`,
		entity.TableNameUserProfile, entity.TableNameUserProfile, entity.TableNameUserProfile, entity.TableNameUserProfile)

	name := constant.EmptyString
	if cond.Name != nil {
		name = *cond.Name
	}
	gender := constant.EmptyString
	if cond.Gender != nil {
		gender = *cond.Gender
	}
	timezone := constant.EmptyString
	if cond.Timezone != nil {
		timezone = *cond.Timezone
	}

	_, err := r.session.Exec(sql, cond.UserID, name, gender, timezone, time.Now().UTC(), constant.PlanFree)
	if err != nil {
		return fmt.Errorf("failed to upsert user_profiles: %w", err)
	}

	return nil
}

func (r *UserProfileRepository) Get(userID int64) (*entity.UserProfile, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user_profiles user_id must be greater than 0")
	}

	profile := &entity.UserProfile{}
	has, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{entity.UserProfileFieldUserID: userID}).
		Get(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to get user_profiles: %w", err)
	}
	if !has {
		return nil, nil
	}

	return profile, nil
}

// IncrementDailyCount 单条条件更新：日期变化则计数重置为 1，否则 +1。
// 依赖行级原子性，不做读改写
func (r *UserProfileRepository) IncrementDailyCount(userID int64, today time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("user_profiles user_id must be greater than 0")
	}

	day := today.Format("2006-01-02")
	sql := fmt.Sprintf(`UPDATE %s SET
		daily_message_count = CASE WHEN last_message_date = ? THEN daily_message_count + 1 ELSE 1 END,
		last_message_date = ?
		WHERE user_id = ?`, entity.TableNameUserProfile)

	res, err := r.session.Exec(sql, day, day, userID)
	if err != nil {
		return fmt.Errorf("failed to increment daily count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user_profiles user %d not found", userID)
	}

	return nil
}

func (r *UserProfileRepository) ApplyScoreDelta(userID int64, delta int) error {
	if userID <= 0 {
		return fmt.Errorf("user_profiles user_id must be greater than 0")
	}
	if delta == 0 {
		return nil
	}

	// 分数不允许降到 0 以下
	sql := fmt.Sprintf(`UPDATE %s SET relationship_score = GREATEST(relationship_score + ?, 0) WHERE user_id = ?`,
		entity.TableNameUserProfile)
	_, err := r.session.Exec(sql, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to apply score delta: %w", err)
	}

	return nil
}

func (r *UserProfileRepository) LevelUp(userID int64, newLevel int, unlockedAt time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("user_profiles user_id must be greater than 0")
	}
	if newLevel <= 0 {
		return fmt.Errorf("user_profiles relationship_level must be greater than 0")
	}

	// 等级只升不降
	sql := fmt.Sprintf(`UPDATE %s SET relationship_level = ?, level_unlocked_at = ? WHERE user_id = ? AND relationship_level < ?`,
		entity.TableNameUserProfile)
	_, err := r.session.Exec(sql, newLevel, unlockedAt, userID, newLevel)
	if err != nil {
		return fmt.Errorf("failed to level up user_profiles: %w", err)
	}

	return nil
}

// ActivatePremium 幂等激活：同一 chargeID 重复提交不改任何字段，返回 false。
// 已有未过期订阅时在现有到期时间上顺延
func (r *UserProfileRepository) ActivatePremium(userID int64, now time.Time, durationDays int, chargeID string) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("user_profiles user_id must be greater than 0")
	}
	if durationDays <= 0 {
		return false, fmt.Errorf("subscription duration must be greater than 0")
	}
	if chargeID == constant.EmptyString {
		return false, fmt.Errorf("charge_id cannot be empty")
	}

	sql := fmt.Sprintf(`UPDATE %s SET
		subscription_plan = ?,
		subscription_expires = GREATEST(COALESCE(subscription_expires, ?), ?) + make_interval(days => ?),
		last_payment_charge_id = ?
		WHERE user_id = ? AND (last_payment_charge_id IS NULL OR last_payment_charge_id <> ?)`,
		entity.TableNameUserProfile)

	res, err := r.session.Exec(sql, constant.PlanPremium, now, now, durationDays, chargeID, userID, chargeID)
	if err != nil {
		return false, fmt.Errorf("failed to activate premium: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// ExpirePremium 单用户过期自愈
func (r *UserProfileRepository) ExpirePremium(userID int64, now time.Time) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("user_profiles user_id must be greater than 0")
	}

	sql := fmt.Sprintf(`UPDATE %s SET subscription_plan = ?, subscription_expires = NULL
		WHERE user_id = ? AND subscription_plan = ? AND subscription_expires IS NOT NULL AND subscription_expires <= ?`,
		entity.TableNameUserProfile)
	res, err := r.session.Exec(sql, constant.PlanFree, userID, constant.PlanPremium, now)
	if err != nil {
		return false, fmt.Errorf("failed to expire premium: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

// ExpireAllPremium 周期性兜底扫描，降级所有到期且不活跃的订阅
func (r *UserProfileRepository) ExpireAllPremium(now time.Time) (int64, error) {
	sql := fmt.Sprintf(`UPDATE %s SET subscription_plan = ?, subscription_expires = NULL
		WHERE subscription_plan = ? AND subscription_expires IS NOT NULL AND subscription_expires <= ?`,
		entity.TableNameUserProfile)
	res, err := r.session.Exec(sql, constant.PlanFree, constant.PlanPremium, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire premium subscriptions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected, nil
}

func (r *UserProfileRepository) Delete(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("user_profiles user_id must be greater than 0")
	}

	_, err := r.session.Table(entity.TableNameUserProfile).
		Where(builder.Eq{entity.UserProfileFieldUserID: userID}).
		Delete(&entity.UserProfile{})
	if err != nil {
		return fmt.Errorf("failed to delete user_profiles: %w", err)
	}

	return nil
}

func (r *UserProfileRepository) ListUserIDs() ([]int64, error) {
	var ids []int64
	err := r.session.Table(entity.TableNameUserProfile).
		Cols(entity.UserProfileFieldUserID).
		Find(&ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list user_profiles ids: %w", err)
	}

	return ids, nil
}
