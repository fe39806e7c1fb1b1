package factory

import (
	"sync"

	"evolveai/repository/factory"
	"evolveai/repository/xormimplement"
	"evolveai/service/chat"
	"evolveai/service/gate"
	"evolveai/service/memory"
	"evolveai/service/summary"
)

var instance *Factory
var once sync.Once

// 创建
type Factory struct {
	repositoryFactory factory.Factory
}

// 实例化instance
func init() {
	once.Do(func() {
		instance = &Factory{repositoryFactory: xormimplement.GetRepositoryFactoryInstance()}
	})
}

// 单例模式，
func GetServiceFactory() *Factory {
	return instance
}

// NewChatService 获取对话编排服务
func (f *Factory) NewChatService() *chat.Service {
	return chat.NewService(f.repositoryFactory)
}

// NewMemoryService 获取记忆服务
func (f *Factory) NewMemoryService() *memory.Service {
	return memory.NewService(f.repositoryFactory)
}

// NewGateService 获取配额订阅服务
func (f *Factory) NewGateService() *gate.Service {
	return gate.NewService(f.repositoryFactory)
}

// NewSummaryService 获取摘要服务
func (f *Factory) NewSummaryService() *summary.Service {
	return summary.NewService(f.repositoryFactory)
}
