package model

import "time"

// ChatRequest 入站消息
type ChatRequest struct {
	UserID    int64     `json:"user_id" binding:"required"`
	Message   string    `json:"message" binding:"required"`
	Timestamp time.Time `json:"timestamp"`
	// base64 图片数据，可选
	ImageData string `json:"image_data"`
}

// ChatResponse 最终回复。ResponseText 可能包含多段分隔符，由传输层拆分发送
type ChatResponse struct {
	ResponseText string `json:"response_text"`
	// 模型通过工具生成的图片，base64，可选
	ImageBase64 string `json:"image_base64,omitempty"`
	// 升级信息，可选
	LevelUpInfo *LevelUpInfo `json:"level_up_info,omitempty"`
}

// LevelUpInfo 升级结果
type LevelUpInfo struct {
	NewLevelName      string `json:"new_level_name,omitempty"`
	OfferSubscription bool   `json:"offer_subscription"`
}

// ProfileData 画像的外部可写字段
type ProfileData struct {
	Name     string `json:"name" binding:"required"`
	Gender   string `json:"gender"`
	Timezone string `json:"timezone"`
}

// ProfileUpdate 创建或更新画像请求
type ProfileUpdate struct {
	UserID int64       `json:"user_id" binding:"required"`
	Data   ProfileData `json:"data" binding:"required"`
}
