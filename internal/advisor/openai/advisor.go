package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/strategy"
)

// OpenAIAdvisor scores trading signals using OpenAI
type OpenAIAdvisor struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdvisor creates a new OpenAI advisor instance
func NewOpenAIAdvisor(apiKey string, model string) *OpenAIAdvisor {
	client := openai.NewClient(apiKey)
	if model == "" {
		model = openai.GPT4 // 默认使用GPT-4
	}
	return &OpenAIAdvisor{
		client: client,
		model:  model,
	}
}

// ScoreSignal implements the Advisor interface
func (a *OpenAIAdvisor) ScoreSignal(ctx context.Context, signal strategy.Signal, snapshot models.MarketData) (float64, error) {
	prompt := fmt.Sprintf(`评估以下交易信号在当前市场条件下的可信度:
交易对: %s
信号方向: %s
信号价格: %.8f
信号依据: %s

当前市场快照:
最新价格: %.8f
买一价: %.8f
卖一价: %.8f
24h成交量: %.2f
24h涨跌幅: %.2f%%

请综合价格动量、买卖价差和成交量情况，给出-1到1之间的分数：
-1表示信号应当放弃
0表示中性
1表示信号高度可信

输出格式为JSON:
{
    "score": float,
    "reason": "简要说明"
}`,
		signal.Symbol, signal.Action, signal.Price, signal.Reason,
		snapshot.Price, snapshot.Bid, snapshot.Ask,
		snapshot.Volume24h, snapshot.PriceChange24h)

	resp, err := a.createChatCompletion(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to score signal: %w", err)
	}

	var verdict struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}

	if err := json.Unmarshal([]byte(extractJSON(resp)), &verdict); err != nil {
		return 0, fmt.Errorf("failed to parse signal score: %w", err)
	}

	if verdict.Score < -1 || verdict.Score > 1 {
		return 0, fmt.Errorf("score %f out of range", verdict.Score)
	}

	return verdict.Score, nil
}

// createChatCompletion is a helper function to make OpenAI API calls
func (a *OpenAIAdvisor) createChatCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "你是一个专业的加密货币交易分析师，擅长评估交易信号与市场状态。请始终以JSON格式返回分析结果。",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.2, // 使用较低的temperature以获得更稳定的输出
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}

// extractJSON strips any prose around the first JSON object in s. Models
// occasionally wrap the payload in markdown fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
