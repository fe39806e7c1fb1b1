package entity

import "time"

const (
	TableNameUserProfile = "user_profiles"

	UserProfileFieldID                  = "id"
	UserProfileFieldUserID              = "user_id"
	UserProfileFieldName                = "name"
	UserProfileFieldGender              = "gender"
	UserProfileFieldTimezone            = "timezone"
	UserProfileFieldRelationshipLevel   = "relationship_level"
	UserProfileFieldRelationshipScore   = "relationship_score"
	UserProfileFieldLevelUnlockedAt     = "level_unlocked_at"
	UserProfileFieldSubscriptionPlan    = "subscription_plan"
	UserProfileFieldSubscriptionExpires = "subscription_expires"
	UserProfileFieldDailyMessageCount   = "daily_message_count"
	UserProfileFieldLastMessageDate     = "last_message_date"
	UserProfileFieldLastPaymentChargeID = "last_payment_charge_id"
)

type UserProfile struct {
	ID                  int64      `xorm:"pk autoincr id" json:"id"`
	UserID              int64      `xorm:"user_id" json:"user_id"`
	Name                string     `xorm:"name" json:"name"` // 静态加密存储，读取时由 service 层解密
	Gender              string     `xorm:"gender" json:"gender"`
	Timezone            string     `xorm:"timezone" json:"timezone"` // IANA 时区名
	RelationshipLevel   int        `xorm:"relationship_level" json:"relationship_level"`
	RelationshipScore   int        `xorm:"relationship_score" json:"relationship_score"`
	LevelUnlockedAt     time.Time  `xorm:"level_unlocked_at" json:"level_unlocked_at"`
	SubscriptionPlan    string     `xorm:"subscription_plan" json:"subscription_plan"`
	SubscriptionExpires *time.Time `xorm:"subscription_expires" json:"subscription_expires"`
	DailyMessageCount   int        `xorm:"daily_message_count" json:"daily_message_count"`
	LastMessageDate     *time.Time `xorm:"last_message_date" json:"last_message_date"` // 只取日期部分
	LastPaymentChargeID string     `xorm:"last_payment_charge_id" json:"last_payment_charge_id"`
}

func (e *UserProfile) TableName() string {
	return TableNameUserProfile
}

// IsPremiumActive 订阅是否处于有效期内
func (e *UserProfile) IsPremiumActive(now time.Time) bool {
	return e.SubscriptionPlan == "premium" &&
		e.SubscriptionExpires != nil &&
		e.SubscriptionExpires.After(now)
}
