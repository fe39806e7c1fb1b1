package repository

import (
	"evolveai/entity"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxSearchQueryLength 检索查询最大长度
const MaxSearchQueryLength = 100

type LongTermFactRepository interface {
	Exists(userID int64, fact string) (bool, error)
	Insert(fact *entity.LongTermFact) error
	// Search 对该用户的事实做全文检索，按相关度和时间排序；
	// 全文检索零命中时退化为子串匹配
	Search(userID int64, query string, limit int) ([]*entity.LongTermFact, error)
	DeleteByUser(userID int64) error
}

// ValidateSearchQuery 在构造任何 SQL 之前校验查询串：
// 超长或含字母/数字/空格/连字符以外的字符一律拒绝
func ValidateSearchQuery(query string) error {
	if query == "" {
		return fmt.Errorf("search query is empty")
	}
	if utf8.RuneCountInString(query) > MaxSearchQueryLength {
		return fmt.Errorf("search query exceeds %d characters", MaxSearchQueryLength)
	}
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' {
			continue
		}
		return fmt.Errorf("search query contains disallowed character %q", r)
	}
	return nil
}
