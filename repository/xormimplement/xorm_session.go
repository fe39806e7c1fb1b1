package xormimplement

import (
	"github.com/pkg/errors"
	"xorm.io/xorm"
)

// Session 包装 xorm 会话以满足 interfaces.Session。
// 追加消息、应用摘要这类多语句单元都跑在同一个会话的事务里
type Session struct {
	*xorm.Session
}

// Begin 开启事务
func (s *Session) Begin() error {
	if err := s.Session.Begin(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Close 归还会话
func (s *Session) Close() error {
	if err := s.Session.Close(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Commit 提交事务
func (s *Session) Commit() error {
	if err := s.Session.Commit(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Rollback 回滚事务
func (s *Session) Rollback() error {
	if err := s.Session.Rollback(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
