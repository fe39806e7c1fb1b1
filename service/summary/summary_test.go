package summary

import (
	"context"
	"fmt"
	"testing"
	"time"

	"evolveai/constant"
	"evolveai/entity"
	"evolveai/pkg/cache"
	"evolveai/pkg/crypto"
	"evolveai/repository/repositorytest"
	"evolveai/service/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter 记录收到的提示词并返回预设回复
type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) PostChatCompletionsNonStreamContent(c context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	for _, msg := range messages {
		f.prompts = append(f.prompts, msg.Content)
	}
	return f.response, f.err
}

func newTestService(t *testing.T, completer Completer, threshold, batchSize int) (*Service, *repositorytest.Factory) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gateway := cache.NewGatewayWithOptions(client, cache.NewBreaker(5, time.Minute), time.Minute*10, 2, time.Millisecond)

	cipher, err := crypto.NewCipher("")
	require.NoError(t, err)

	repoFactory := repositorytest.NewFactory()
	memoryService := memory.NewServiceWithDeps(repoFactory, gateway, cipher, 0)
	return NewServiceWithDeps(repoFactory, memoryService, completer, threshold, batchSize), repoFactory
}

func seedMessages(factory *repositorytest.Factory, userID int64, count int) {
	for i := 0; i < count; i++ {
		factory.Store.Messages = append(factory.Store.Messages, &entity.ChatMessage{
			ID:        int64(i + 1),
			UserID:    userID,
			Role:      constant.RoleUser,
			Content:   fmt.Sprintf("сообщение %d", i+1),
			Timestamp: time.Now().UTC(),
		})
	}
	factory.Store.Profiles[userID] = &entity.UserProfile{UserID: userID, RelationshipLevel: 1}
}

func TestMaybeSummarizeBelowThresholdDoesNothing(t *testing.T) {
	completer := &fakeCompleter{response: `{"summary": "сводка", "score_delta": 1}`}
	service, factory := newTestService(t, completer, 26, 20)
	seedMessages(factory, 42, 25)

	require.NoError(t, service.MaybeSummarize(context.Background(), 42))

	assert.Empty(t, completer.prompts)
	assert.Len(t, factory.Store.Messages, 25)
	assert.Empty(t, factory.Store.Summaries)
}

func TestMaybeSummarizeCompressesOldestBatch(t *testing.T) {
	completer := &fakeCompleter{response: `{"summary": "они познакомились", "score_delta": 3}`}
	service, factory := newTestService(t, completer, 26, 20)
	seedMessages(factory, 42, 26)

	require.NoError(t, service.MaybeSummarize(context.Background(), 42))

	// 压缩最旧的 20 条,剩 6 条在线
	assert.Len(t, factory.Store.Messages, 6)
	summary := factory.Store.Summaries[42]
	require.NotNil(t, summary)
	assert.Equal(t, "они познакомились", summary.Summary)
	assert.Equal(t, int64(20), summary.LastMessageID)

	// 关系分增量已应用
	assert.Equal(t, 3, factory.Store.Profiles[42].RelationshipScore)
}

func TestMaybeSummarizeCumulativeUsesPreviousSummary(t *testing.T) {
	completer := &fakeCompleter{response: `{"summary": "обновленная сводка", "score_delta": 0}`}
	service, factory := newTestService(t, completer, 3, 2)
	seedMessages(factory, 42, 3)
	factory.Store.Summaries[42] = &entity.ChatSummary{UserID: 42, Summary: "старая сводка", LastMessageID: 0}

	require.NoError(t, service.MaybeSummarize(context.Background(), 42))

	require.NotEmpty(t, completer.prompts)
	assert.Contains(t, completer.prompts[0], "старая сводка")
	assert.Equal(t, "обновленная сводка", factory.Store.Summaries[42].Summary)
}

func TestMaybeSummarizeModelFailureLeavesEverythingIntact(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model unavailable")}
	service, factory := newTestService(t, completer, 3, 2)
	seedMessages(factory, 42, 5)

	err := service.MaybeSummarize(context.Background(), 42)
	require.Error(t, err)

	// 失败不落任何变更,消息留到下一轮
	assert.Len(t, factory.Store.Messages, 5)
	assert.Empty(t, factory.Store.Summaries)
	assert.Equal(t, 0, factory.Store.Profiles[42].RelationshipScore)
}

func TestMaybeSummarizeClampsScoreDelta(t *testing.T) {
	completer := &fakeCompleter{response: `{"summary": "сводка", "score_delta": 99}`}
	service, factory := newTestService(t, completer, 3, 2)
	seedMessages(factory, 42, 3)

	require.NoError(t, service.MaybeSummarize(context.Background(), 42))
	assert.Equal(t, constant.DefaultScoreDeltaMax, factory.Store.Profiles[42].RelationshipScore)
}

func TestParseSummaryResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		delta   int
		wantErr bool
	}{
		{
			name:  "plain json",
			raw:   `{"summary": "сводка", "score_delta": 2}`,
			want:  "сводка",
			delta: 2,
		},
		{
			name:  "json fenced",
			raw:   "```json\n{\"summary\": \"сводка\", \"score_delta\": -1}\n```",
			want:  "сводка",
			delta: -1,
		},
		{
			name:  "prose around json",
			raw:   "Вот результат:\n{\"summary\": \"сводка\", \"score_delta\": 0}\nГотово!",
			want:  "сводка",
			delta: 0,
		},
		{name: "no json at all", raw: "просто текст без структуры", wantErr: true},
		{name: "broken json", raw: `{"summary": "сводка"`, wantErr: true},
		{name: "empty summary", raw: `{"summary": "  ", "score_delta": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parseSummaryResponse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.Summary)
			assert.Equal(t, tt.delta, payload.ScoreDelta)
		})
	}
}
