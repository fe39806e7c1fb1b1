package controller

import (
	"net/http"

	"evolveai/model"
	"evolveai/service/factory"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// GetProfile 读用户画像
func GetProfile(ctx *gin.Context) {
	userID := cast.ToInt64(ctx.Param("user_id"))
	if userID <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
		return
	}

	profile, err := factory.GetServiceFactory().NewMemoryService().GetProfile(ctx, userID)
	if err != nil {
		log.Errorf("GetProfile error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Message})
		return
	}
	if profile == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	ctx.JSON(http.StatusOK, profile)
}

// UpdateProfile 创建或更新用户画像
func UpdateProfile(ctx *gin.Context) {
	var req model.ProfileUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := factory.GetServiceFactory().NewMemoryService().UpdateProfile(ctx, &req); err != nil {
		log.Errorf("UpdateProfile error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteProfile 删除用户全部数据
func DeleteProfile(ctx *gin.Context) {
	userID := cast.ToInt64(ctx.Param("user_id"))
	if userID <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
		return
	}

	if err := factory.GetServiceFactory().NewMemoryService().ResetUser(ctx, userID); err != nil {
		log.Errorf("DeleteProfile error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetQuota 查询配额判定
func GetQuota(ctx *gin.Context) {
	userID := cast.ToInt64(ctx.Param("user_id"))
	if userID <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
		return
	}

	decision, err := factory.GetServiceFactory().NewGateService().CheckQuota(ctx, userID)
	if err != nil {
		log.Errorf("GetQuota error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Message})
		return
	}

	ctx.JSON(http.StatusOK, decision)
}
