package agent

import (
	"context"
	"strings"
	"time"

	"resume-match-go/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// CompletionClient 是评估管线使用的窄接口: 一次补全调用返回纯文本。
// 调用失败返回空字符串而不是错误，由上层按"该阶段产出为空"降级处理。
type CompletionClient struct {
	chatModel model.ChatModel
	timeout   time.Duration
}

// NewCompletionClient 包装一个 eino ChatModel。timeout<=0 时默认90秒。
func NewCompletionClient(chatModel model.ChatModel, timeout time.Duration) *CompletionClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &CompletionClient{chatModel: chatModel, timeout: timeout}
}

// Complete 执行单次补全。systemPrompt 可为空。
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []*schema.Message
	if systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	messages = append(messages, schema.UserMessage(userPrompt))

	opts := []model.Option{
		model.WithTemperature(temperature),
	}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	resp, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("LLM补全调用失败")
		return ""
	}
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Content)
}
