package controller

import (
	"net/http"

	"evolveai/constant"
	"evolveai/model"
	"evolveai/service/factory"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Chat 聊天接口
func Chat(ctx *gin.Context) {
	var req model.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := factory.GetServiceFactory().NewChatService().HandleMessage(ctx, &req)
	if err != nil {
		log.Errorf("Chat error: %v", err)
		if err.Code == model.ErrorParams {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Message})
			return
		}
		// 内部故障不把细节漏给用户,统一兜底文案
		ctx.JSON(http.StatusOK, &model.ChatResponse{ResponseText: constant.InternalErrorFallback})
		return
	}

	ctx.JSON(http.StatusOK, res)
}
