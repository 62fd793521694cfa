package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/daily-movers/internal/domain/ai"
	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeClient) Model() string { return "gpt-4o-mini" }

type fakePrompter struct{}

func (fakePrompter) AgentSystem() string                              { return "system" }
func (fakePrompter) AgentUser(ev *EvidenceSet, feedback string) string { return "user" }
func (fakePrompter) DirectSystem() string                             { return "system" }
func (fakePrompter) DirectUser(ev *EvidenceSet) string                { return "user" }

const goodModelJSON = `{
	"why_it_moved": "Earnings beat lifted the stock. Analysts raised their targets.",
	"sentiment": 0.6,
	"action": "BUY",
	"confidence": 0.82,
	"rules_triggered": ["earnings_beat"]
}`

func TestControllerUsesAgentTierWhenHealthy(t *testing.T) {
	client := &fakeClient{response: goodModelJSON}
	ctrl := Controller{
		Agent:  NewAgentTier(client, fakePrompter{}, 0),
		Direct: NewDirectTier(client, fakePrompter{}),
		Log:    zerolog.Nop(),
	}
	task := taskWith("AAPL", 5.0, 1_000_000, movers.Headline{Title: "t", URL: "https://example.com/t"})

	analysis, degradations := ctrl.Produce(context.Background(), task)
	assert.Empty(t, degradations)
	assert.Equal(t, "agent:gpt-4o-mini", analysis.ModelUsed)
	assert.Equal(t, movers.ActionBuy, analysis.Action)
}

func TestControllerFallsBackToDirectModel(t *testing.T) {
	broken := &fakeClient{err: errors.New("rate limited")}
	working := &fakeClient{response: goodModelJSON}
	ctrl := Controller{
		Agent:  NewAgentTier(broken, fakePrompter{}, 0),
		Direct: NewDirectTier(working, fakePrompter{}),
		Log:    zerolog.Nop(),
	}
	task := taskWith("AAPL", 5.0, 1_000_000, movers.Headline{Title: "t", URL: "https://example.com/t"})

	analysis, degradations := ctrl.Produce(context.Background(), task)
	require.Len(t, degradations, 1)
	assert.Equal(t, "agent_failed", degradations[0].ErrorType)
	assert.True(t, degradations[0].FallbackUsed)
	assert.Equal(t, "openai:gpt-4o-mini", analysis.ModelUsed)
}

func TestControllerUnconfiguredTiersDegradeSilently(t *testing.T) {
	ctrl := Controller{
		Agent:  NewAgentTier(nil, fakePrompter{}, 0),
		Direct: NewDirectTier(nil, fakePrompter{}),
		Log:    zerolog.Nop(),
	}
	task := taskWith("AAPL", 5.0, 1_000_000)

	analysis, degradations := ctrl.Produce(context.Background(), task)
	assert.Empty(t, degradations, "missing credentials must not mark the record as errored")
	assert.Equal(t, ModelHeuristics, analysis.ModelUsed)
	assert.NotEmpty(t, analysis.WhyItMoved)
}

func TestControllerRecordsRealTierFailures(t *testing.T) {
	brokenAgent := &fakeClient{err: errors.New("deadline exceeded")}
	brokenDirect := &fakeClient{response: "not json"}
	ctrl := Controller{
		Agent:  NewAgentTier(brokenAgent, fakePrompter{}, 0),
		Direct: NewDirectTier(brokenDirect, fakePrompter{}),
		Log:    zerolog.Nop(),
	}
	task := taskWith("AAPL", 5.0, 1_000_000)

	analysis, degradations := ctrl.Produce(context.Background(), task)
	require.Len(t, degradations, 2)
	assert.Equal(t, "agent_failed", degradations[0].ErrorType)
	assert.Equal(t, "direct_model_failed", degradations[1].ErrorType)
	assert.Equal(t, ModelHeuristics, analysis.ModelUsed)
}

func TestControllerWithNoTiersStillProduces(t *testing.T) {
	ctrl := Controller{Log: zerolog.Nop()}
	task := movers.TickerTask{Symbol: "EMPTY"}

	analysis, degradations := ctrl.Produce(context.Background(), task)
	assert.Empty(t, degradations)
	assert.Equal(t, ModelHeuristics, analysis.ModelUsed)
}

func TestDirectTierRejectsMalformedOutput(t *testing.T) {
	client := &fakeClient{response: "not json at all"}
	tier := NewDirectTier(client, fakePrompter{})
	task := taskWith("AAPL", 5.0, 1_000_000)

	_, err := tier(context.Background(), task)
	assert.ErrorIs(t, err, ai.ErrMalformedOutput)
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, "agent", TierOf("agent:gpt-4o-mini"))
	assert.Equal(t, "direct_llm", TierOf("openai:gpt-4o-mini"))
	assert.Equal(t, "heuristics", TierOf(ModelHeuristics))
	assert.Equal(t, "heuristics", TierOf(""))
}
