package openai

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/strategy"
)

var apiKey = os.Getenv("OPENAI_API_KEY")

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"score": 0.5}`, `{"score": 0.5}`},
		{"```json\n{\"score\": 0.5}\n```", `{"score": 0.5}`},
		{"The score is:\n{\"score\": -0.2, \"reason\": \"thin book\"}\nhope that helps", `{"score": -0.2, "reason": "thin book"}`},
		{"no json here", "no json here"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, extractJSON(c.in))
	}
}

func TestOpenAIAdvisor_ScoreSignal(t *testing.T) {
	if testing.Short() || apiKey == "" {
		t.Skip("skipping integration test")
	}

	advisor := NewOpenAIAdvisor(apiKey, "")

	signal := strategy.Signal{
		Symbol: "BTCUSDT",
		Action: strategy.ActionBuy,
		Price:  65000,
		Reason: "golden cross, RSI 54",
		Time:   time.Now(),
	}
	snapshot := models.MarketData{
		Symbol:         "BTCUSDT",
		Price:          65010,
		Bid:            65005,
		Ask:            65015,
		Volume24h:      1200000000,
		PriceChange24h: 2.4,
		Timestamp:      time.Now(),
	}

	ctx := context.Background()
	score, err := advisor.ScoreSignal(ctx, signal, snapshot)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, score, -1.0)
	assert.LessOrEqual(t, score, 1.0)
}
