package model

import "time"

// UpsertUserProfileCondition 画像 upsert 条件，nil 字段不参与更新
type UpsertUserProfileCondition struct {
	UserID   int64
	Name     *string // 已加密
	Gender   *string
	Timezone *string
}

// QuotaDecision 配额判定结果。超限是正常业务结果，不是错误
type QuotaDecision struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
	CurrentCount int    `json:"current_count"`
	Limit        int    `json:"limit"`
}

// QuotaDecision.Reason 取值
const (
	QuotaReasonPremiumActive   = "premium_active"
	QuotaReasonWithinLimit     = "within_limit"
	QuotaReasonLimitExceeded   = "daily_limit_exceeded"
	QuotaReasonProfileNotFound = "profile_not_found"
)

// ActivatePremiumRequest 订阅激活请求，ChargeID 用于幂等去重
type ActivatePremiumRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Plan     string `json:"plan" binding:"required"` // 1_month / 3_months / 6_months / 12_months
	ChargeID string `json:"charge_id" binding:"required"`
}

// SubscriptionInfo 订阅状态
type SubscriptionInfo struct {
	Plan       string     `json:"plan"`
	Expires    *time.Time `json:"expires"`
	IsActive   bool       `json:"is_active"`
	DaysLeft   int        `json:"days_left"`
	DailyCount int        `json:"daily_count"`
	DailyLimit int        `json:"daily_limit"`
}
