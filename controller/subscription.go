package controller

import (
	"net/http"

	"evolveai/model"
	"evolveai/service/factory"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// ActivatePremium 激活订阅,charge_id 保证幂等
func ActivatePremium(ctx *gin.Context) {
	var req model.ActivatePremiumRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := factory.GetServiceFactory().NewGateService().ActivateSubscription(ctx, &req)
	if err != nil {
		log.Errorf("ActivatePremium error: %v", err)
		if err.Code == model.ErrorPlanUnknown {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Message})
			return
		}
		if err.Code == model.ErrorProfileNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Message})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Message})
		return
	}

	ctx.JSON(http.StatusOK, info)
}

// GetSubscription 查询订阅状态
func GetSubscription(ctx *gin.Context) {
	userID := cast.ToInt64(ctx.Param("user_id"))
	if userID <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
		return
	}

	info, err := factory.GetServiceFactory().NewGateService().GetSubscriptionInfo(ctx, userID)
	if err != nil {
		log.Errorf("GetSubscription error: %v", err)
		if err.Code == model.ErrorProfileNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Message})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Message})
		return
	}

	ctx.JSON(http.StatusOK, info)
}
