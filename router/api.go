package router

import (
	"net/http"

	"evolveai/controller"

	"github.com/gin-gonic/gin"
)

func addBasicRouter(engine *gin.Engine) {
	// 健康检查
	engine.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func addApiRouter(engine *gin.Engine) {

	api := engine.Group("/api/v1")
	{
		// 聊天
		api.POST("/chat", controller.Chat)

		// 用户画像
		api.GET("/profile/:user_id", controller.GetProfile)
		api.POST("/profile", controller.UpdateProfile)
		api.DELETE("/profile/:user_id", controller.DeleteProfile)

		// 配额
		api.GET("/quota/:user_id", controller.GetQuota)

		// 订阅
		api.POST("/premium/activate", controller.ActivatePremium)
		api.GET("/premium/:user_id", controller.GetSubscription)
	}
}
