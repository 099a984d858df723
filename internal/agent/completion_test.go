package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionClient_Complete(t *testing.T) {
	mock := NewMockChatClient("  the answer  ", nil)
	client := NewCompletionClient(mock, time.Second)

	got := client.Complete(context.Background(), "you are a test", "question", 0.2, 100)
	assert.Equal(t, "the answer", got, "响应内容应去除首尾空白")

	// system + user 两条消息
	messages := mock.GetReceivedMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, "you are a test", messages[0].Content)
	assert.Equal(t, schema.User, messages[1].Role)
	assert.Equal(t, "question", messages[1].Content)
}

func TestCompletionClient_EmptySystemPrompt(t *testing.T) {
	mock := NewMockChatClient("ok", nil)
	client := NewCompletionClient(mock, time.Second)

	got := client.Complete(context.Background(), "", "question", 0.7, 0)
	assert.Equal(t, "ok", got)

	messages := mock.GetReceivedMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, schema.User, messages[0].Role)
}

func TestCompletionClient_FailureReturnsEmpty(t *testing.T) {
	mock := NewMockChatClient("", errors.New("rate limited"))
	client := NewCompletionClient(mock, time.Second)

	// 调用失败降级为空字符串，不向上抛错误
	got := client.Complete(context.Background(), "sys", "question", 0.2, 100)
	assert.Empty(t, got)
}

func TestCompletionClient_SequentialExhaustion(t *testing.T) {
	mock := NewMockChatClientSequential([]MockResponse{{Content: "first"}})
	client := NewCompletionClient(mock, time.Second)

	assert.Equal(t, "first", client.Complete(context.Background(), "", "q1", 0.2, 0))
	assert.Empty(t, client.Complete(context.Background(), "", "q2", 0.2, 0), "响应耗尽后应降级为空")
}
