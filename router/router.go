package router

import (
	"sync"

	"evolveai/middleware"

	"github.com/gin-gonic/gin"
)

var once sync.Once
var instance *gin.Engine

func init() {
	once.Do(func() {
		instance = gin.New()
		instance.Use(gin.Recovery())
		instance.Use(middleware.RequestID)
		instance.Use(middleware.Logger)
		addBasicRouter(instance)
		addApiRouter(instance)
	})
}

func GetInstance() *gin.Engine {
	return instance
}
