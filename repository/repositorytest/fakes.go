package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"evolveai/constant"
	"evolveai/entity"
	"evolveai/model"
	"evolveai/repository"
	"evolveai/repository/interfaces"
)

// Store 内存版存储,供 service 层测试使用。
// 行为对齐 xormimplement 的 SQL 语义,不带真正的事务
type Store struct {
	mu        sync.Mutex
	Profiles  map[int64]*entity.UserProfile
	Messages  []*entity.ChatMessage
	Summaries map[int64]*entity.ChatSummary
	Facts     []*entity.LongTermFact

	nextMessageID int64
	nextFactID    int64
}

func NewStore() *Store {
	return &Store{
		Profiles:  make(map[int64]*entity.UserProfile),
		Summaries: make(map[int64]*entity.ChatSummary),
	}
}

// Factory 实现 repository/factory.Factory
type Factory struct {
	Store *Store
}

func NewFactory() *Factory {
	return &Factory{Store: NewStore()}
}

func (f *Factory) NewSession(ctx context.Context) interfaces.Session {
	return &fakeSession{}
}

func (f *Factory) NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error) {
	return &userProfileRepo{store: f.Store}, nil
}

func (f *Factory) NewChatMessageRepository(session interfaces.Session) (repository.ChatMessageRepository, error) {
	return &chatMessageRepo{store: f.Store}, nil
}

func (f *Factory) NewChatSummaryRepository(session interfaces.Session) (repository.ChatSummaryRepository, error) {
	return &chatSummaryRepo{store: f.Store}, nil
}

func (f *Factory) NewLongTermFactRepository(session interfaces.Session) (repository.LongTermFactRepository, error) {
	return &longTermFactRepo{store: f.Store}, nil
}

type fakeSession struct{}

func (s *fakeSession) Begin() error    { return nil }
func (s *fakeSession) Close() error    { return nil }
func (s *fakeSession) Commit() error   { return nil }
func (s *fakeSession) Rollback() error { return nil }

// ==================== user_profiles ====================

type userProfileRepo struct {
	store *Store
}

func (r *userProfileRepo) Upsert(cond *model.UpsertUserProfileCondition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	profile, ok := r.store.Profiles[cond.UserID]
	if !ok {
		profile = &entity.UserProfile{
			UserID:            cond.UserID,
			RelationshipLevel: 1,
			SubscriptionPlan:  constant.PlanFree,
			LevelUnlockedAt:   time.Now().UTC(),
		}
		r.store.Profiles[cond.UserID] = profile
	}
	if cond.Name != nil && *cond.Name != "" {
		profile.Name = *cond.Name
	}
	if cond.Gender != nil && *cond.Gender != "" {
		profile.Gender = *cond.Gender
	}
	if cond.Timezone != nil && *cond.Timezone != "" {
		profile.Timezone = *cond.Timezone
	}
	return nil
}

func (r *userProfileRepo) Get(userID int64) (*entity.UserProfile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	profile, ok := r.store.Profiles[userID]
	if !ok {
		return nil, nil
	}
	clone := *profile
	return &clone, nil
}

func (r *userProfileRepo) IncrementDailyCount(userID int64, today time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	profile, ok := r.store.Profiles[userID]
	if !ok {
		return fmt.Errorf("user_profiles user %d not found", userID)
	}
	day := today.UTC().Truncate(24 * time.Hour)
	if profile.LastMessageDate != nil && profile.LastMessageDate.Equal(day) {
		profile.DailyMessageCount++
	} else {
		profile.DailyMessageCount = 1
	}
	profile.LastMessageDate = &day
	return nil
}

func (r *userProfileRepo) ApplyScoreDelta(userID int64, delta int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if profile, ok := r.store.Profiles[userID]; ok {
		profile.RelationshipScore += delta
		if profile.RelationshipScore < 0 {
			profile.RelationshipScore = 0
		}
	}
	return nil
}

func (r *userProfileRepo) LevelUp(userID int64, newLevel int, unlockedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if profile, ok := r.store.Profiles[userID]; ok && profile.RelationshipLevel < newLevel {
		profile.RelationshipLevel = newLevel
		profile.LevelUnlockedAt = unlockedAt
	}
	return nil
}

func (r *userProfileRepo) ActivatePremium(userID int64, now time.Time, durationDays int, chargeID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	profile, ok := r.store.Profiles[userID]
	if !ok {
		return false, nil
	}
	if profile.LastPaymentChargeID == chargeID {
		return false, nil
	}

	base := now
	if profile.SubscriptionExpires != nil && profile.SubscriptionExpires.After(now) {
		base = *profile.SubscriptionExpires
	}
	expires := base.AddDate(0, 0, durationDays)

	profile.SubscriptionPlan = constant.PlanPremium
	profile.SubscriptionExpires = &expires
	profile.LastPaymentChargeID = chargeID
	return true, nil
}

func (r *userProfileRepo) ExpirePremium(userID int64, now time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	profile, ok := r.store.Profiles[userID]
	if !ok {
		return false, nil
	}
	if profile.SubscriptionPlan != constant.PlanPremium || profile.SubscriptionExpires == nil || profile.SubscriptionExpires.After(now) {
		return false, nil
	}
	profile.SubscriptionPlan = constant.PlanFree
	profile.SubscriptionExpires = nil
	return true, nil
}

func (r *userProfileRepo) ExpireAllPremium(now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var affected int64
	for _, profile := range r.store.Profiles {
		if profile.SubscriptionPlan == constant.PlanPremium && profile.SubscriptionExpires != nil && !profile.SubscriptionExpires.After(now) {
			profile.SubscriptionPlan = constant.PlanFree
			profile.SubscriptionExpires = nil
			affected++
		}
	}
	return affected, nil
}

func (r *userProfileRepo) Delete(userID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.Profiles, userID)
	return nil
}

func (r *userProfileRepo) ListUserIDs() ([]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ids := make([]int64, 0, len(r.store.Profiles))
	for id := range r.store.Profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ==================== chat_messages ====================

type chatMessageRepo struct {
	store *Store
}

func (r *chatMessageRepo) Insert(msg *entity.ChatMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextMessageID++
	msg.ID = r.store.nextMessageID
	clone := *msg
	r.store.Messages = append(r.store.Messages, &clone)
	return nil
}

func (r *chatMessageRepo) ListUnsummarized(userID, afterID int64, limit int) ([]*entity.ChatMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []*entity.ChatMessage
	for _, msg := range r.store.Messages {
		if msg.UserID == userID && msg.ID > afterID {
			clone := *msg
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *chatMessageRepo) CountUnsummarized(userID, afterID int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for _, msg := range r.store.Messages {
		if msg.UserID == userID && msg.ID > afterID {
			count++
		}
	}
	return count, nil
}

func (r *chatMessageRepo) DeleteThrough(userID, lastID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.Messages[:0]
	for _, msg := range r.store.Messages {
		if msg.UserID == userID && msg.ID <= lastID {
			continue
		}
		kept = append(kept, msg)
	}
	r.store.Messages = kept
	return nil
}

func (r *chatMessageRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var affected int64
	kept := r.store.Messages[:0]
	for _, msg := range r.store.Messages {
		if msg.Timestamp.Before(cutoff) {
			affected++
			continue
		}
		kept = append(kept, msg)
	}
	r.store.Messages = kept
	return affected, nil
}

func (r *chatMessageRepo) DeleteByUser(userID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.Messages[:0]
	for _, msg := range r.store.Messages {
		if msg.UserID == userID {
			continue
		}
		kept = append(kept, msg)
	}
	r.store.Messages = kept
	return nil
}

// ==================== chat_summaries ====================

type chatSummaryRepo struct {
	store *Store
}

func (r *chatSummaryRepo) Get(userID int64) (*entity.ChatSummary, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	summary, ok := r.store.Summaries[userID]
	if !ok {
		return nil, nil
	}
	clone := *summary
	return &clone, nil
}

func (r *chatSummaryRepo) Upsert(userID int64, text string, lastMessageID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.Summaries[userID]
	if ok && existing.LastMessageID >= lastMessageID {
		// last_message_id 只允许前进
		return nil
	}
	r.store.Summaries[userID] = &entity.ChatSummary{
		UserID:        userID,
		Summary:       text,
		LastMessageID: lastMessageID,
		Timestamp:     time.Now().UTC(),
	}
	return nil
}

func (r *chatSummaryRepo) DeleteByUser(userID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.Summaries, userID)
	return nil
}

// ==================== long_term_facts ====================

type longTermFactRepo struct {
	store *Store
}

func (r *longTermFactRepo) Exists(userID int64, fact string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, item := range r.store.Facts {
		if item.UserID == userID && item.Fact == fact {
			return true, nil
		}
	}
	return false, nil
}

func (r *longTermFactRepo) Insert(fact *entity.LongTermFact) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextFactID++
	fact.ID = r.store.nextFactID
	clone := *fact
	r.store.Facts = append(r.store.Facts, &clone)
	return nil
}

func (r *longTermFactRepo) Search(userID int64, query string, limit int) ([]*entity.LongTermFact, error) {
	if err := repository.ValidateSearchQuery(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	needle := strings.ToLower(query)
	var result []*entity.LongTermFact
	for _, item := range r.store.Facts {
		if item.UserID == userID && strings.Contains(strings.ToLower(item.Fact), needle) {
			clone := *item
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *longTermFactRepo) DeleteByUser(userID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.Facts[:0]
	for _, item := range r.store.Facts {
		if item.UserID == userID {
			continue
		}
		kept = append(kept, item)
	}
	r.store.Facts = kept
	return nil
}
