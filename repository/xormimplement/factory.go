package xormimplement

import (
	"context"
	"evolveai/config"
	"evolveai/repository"
	"evolveai/repository/factory"
	"evolveai/repository/interfaces"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"

	_ "github.com/lib/pq"
)

var once sync.Once
var instance *Factory

type Factory struct {
	// 连接 pg
	engine *xorm.Engine
}

// 获取一个factory实例
func GetRepositoryFactoryInstance() factory.Factory {
	once.Do(func() {
		instance = &Factory{
			engine: openDB(
				config.GetInstance().GetString(config.BaseDbXormType),
				config.GetInstance().GetString(config.BaseDbXormHost),
				config.GetInstance().GetString(config.BaseDbXormPort),
				config.GetInstance().GetString(config.BaseDbXormUsername),
				config.GetInstance().GetString(config.BaseDbXormName),
				config.GetInstance().GetString(config.BaseDbXormPassword),
				config.GetInstance().GetBool(config.BaseDbXormShowsql),
			),
		}
	})
	return instance
}

// 设置xorm的连接参数，连接池带上限和连接回收期，避免负载下连接无限增长
func openDB(dbType string, host string, port string, userName string, name string, password string, showSql bool) *xorm.Engine {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host,
		userName,
		password,
		name,
		port)
	engine, err := xorm.NewEngine(dbType, dsn)
	if err != nil {
		logrus.Errorf("Database connection failed err: %v. Database name: %s", err, name)
		panic(err)
	}
	engine.ShowSQL(showSql)

	cfg := config.GetInstance()
	engine.SetMaxOpenConns(cfg.GetIntOrDefault(config.BaseDbXormMaxOpenConns, 30))
	engine.SetMaxIdleConns(cfg.GetIntOrDefault(config.BaseDbXormMaxIdleConns, 20))
	engine.SetConnMaxLifetime(time.Second * time.Duration(cfg.GetIntOrDefault(config.BaseDbXormConnMaxLifetime, 1800)))
	return engine
}

// 创建一个会话
func (f *Factory) NewSession(ctx context.Context) interfaces.Session {
	return &Session{Session: f.engine.NewSession().Context(ctx)}
}

// NewUserProfileRepository 创建用户画像仓库
func (f *Factory) NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewUserProfileRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}

// NewChatMessageRepository 创建聊天历史仓库
func (f *Factory) NewChatMessageRepository(session interfaces.Session) (repository.ChatMessageRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewChatMessageRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}

// NewChatSummaryRepository 创建累积摘要仓库
func (f *Factory) NewChatSummaryRepository(session interfaces.Session) (repository.ChatSummaryRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewChatSummaryRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}

// NewLongTermFactRepository 创建长期记忆仓库
func (f *Factory) NewLongTermFactRepository(session interfaces.Session) (repository.LongTermFactRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewLongTermFactRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}
