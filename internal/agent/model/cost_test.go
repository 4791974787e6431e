package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestResolvePricing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Pricing{InputPerM: 0.15, OutputPerM: 0.60}, ResolvePricing("openai/gpt-4o-mini"))
	assert.Equal(t, Pricing{InputPerM: 0.30, OutputPerM: 2.50}, ResolvePricing(" Gemini-2.5-Flash "))
	assert.Equal(t, Pricing{}, ResolvePricing("llama3.1"))
}

func TestComputeCost(t *testing.T) {
	t.Parallel()

	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 500_000}, Pricing{InputPerM: 1, OutputPerM: 4})
	assert.InDelta(t, 1.0, in, 1e-9)
	assert.InDelta(t, 2.0, out, 1e-9)
	assert.InDelta(t, 3.0, total, 1e-9)

	in, out, total = ComputeCost(nil, Pricing{InputPerM: 1})
	assert.Zero(t, in+out+total)
}
