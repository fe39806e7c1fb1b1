package xormimplement

import (
	"evolveai/entity"
	"evolveai/repository"
	"fmt"

	"xorm.io/builder"
)

type LongTermFactRepository struct {
	session *Session
}

func NewLongTermFactRepository(session *Session) repository.LongTermFactRepository {
	return &LongTermFactRepository{session: session}
}

func (r *LongTermFactRepository) Exists(userID int64, fact string) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("long_term_facts user_id must be greater than 0")
	}
	if fact == "" {
		return false, fmt.Errorf("long_term_facts fact cannot be empty")
	}

	has, err := r.session.Table(entity.TableNameLongTermFact).
		Where(builder.Eq{entity.LongTermFactFieldUserID: userID}).
		And(builder.Eq{entity.LongTermFactFieldFact: fact}).
		Exist(&entity.LongTermFact{})
	if err != nil {
		return false, fmt.Errorf("failed to check long_term_facts: %w", err)
	}

	return has, nil
}

func (r *LongTermFactRepository) Insert(fact *entity.LongTermFact) error {
	if fact == nil {
		return fmt.Errorf("long_term_facts item cannot be nil")
	}
	if fact.UserID <= 0 {
		return fmt.Errorf("long_term_facts user_id must be greater than 0")
	}
	if fact.Fact == "" {
		return fmt.Errorf("long_term_facts fact cannot be empty")
	}

	_, err := r.session.Table(entity.TableNameLongTermFact).Insert(fact)
	if err != nil {
		return fmt.Errorf("failed to insert long_term_facts: %w", err)
	}

	return nil
}

// Search 先走 tsvector 全文检索，零命中时退化为子串匹配。
// 查询串必须先通过 ValidateSearchQuery 校验
func (r *LongTermFactRepository) Search(userID int64, query string, limit int) ([]*entity.LongTermFact, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("long_term_facts user_id must be greater than 0")
	}
	if err := repository.ValidateSearchQuery(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	sql := fmt.Sprintf(`SELECT id, user_id, fact, category, intensity, timestamp FROM %s
		WHERE user_id = ? AND fact_tsv @@ plainto_tsquery('russian', ?)
		ORDER BY ts_rank(fact_tsv, plainto_tsquery('russian', ?)) DESC, timestamp DESC
		LIMIT ?`, entity.TableNameLongTermFact)

	var facts []*entity.LongTermFact
	if err := r.session.SQL(sql, userID, query, query, limit).Find(&facts); err != nil {
		return nil, fmt.Errorf("failed to search long_term_facts: %w", err)
	}
	if len(facts) > 0 {
		return facts, nil
	}

	// 词形不在词典里时全文检索会空手而归，按子串再试一次
	fallback := fmt.Sprintf(`SELECT id, user_id, fact, category, intensity, timestamp FROM %s
		WHERE user_id = ? AND fact ILIKE ?
		ORDER BY timestamp DESC
		LIMIT ?`, entity.TableNameLongTermFact)

	if err := r.session.SQL(fallback, userID, "%"+query+"%", limit).Find(&facts); err != nil {
		return nil, fmt.Errorf("failed to search long_term_facts by substring: %w", err)
	}

	return facts, nil
}

func (r *LongTermFactRepository) DeleteByUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("long_term_facts user_id must be greater than 0")
	}

	_, err := r.session.Table(entity.TableNameLongTermFact).
		Where(builder.Eq{entity.LongTermFactFieldUserID: userID}).
		Delete(&entity.LongTermFact{})
	if err != nil {
		return fmt.Errorf("failed to delete long_term_facts: %w", err)
	}

	return nil
}
