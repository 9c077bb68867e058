package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequest_UnmarshalSplitsKnownAndExtra(t *testing.T) {
	raw := `{
		"model": "openai/gpt-4o-mini",
		"messages": [{"role":"user","content":"hi"}],
		"stream": true,
		"tx_hash": "0xabc",
		"temperature": 0.7,
		"max_tokens": 4000
	}`

	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, "openai/gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.True(t, req.Stream)
	assert.Equal(t, "0xabc", req.TxHash)
	assert.True(t, req.HasProof())

	assert.Equal(t, json.RawMessage(`0.7`), req.Extra["temperature"])
	assert.Equal(t, json.RawMessage(`4000`), req.Extra["max_tokens"])
	assert.NotContains(t, req.Extra, "model")
	assert.NotContains(t, req.Extra, "tx_hash")
}

func TestChatRequest_UnmarshalRejectsNonListMessages(t *testing.T) {
	var req ChatRequest
	err := json.Unmarshal([]byte(`{"model":"m","messages":"hi"}`), &req)
	assert.Error(t, err)
}

func TestChatRequest_UpstreamBodyOmitsProof(t *testing.T) {
	req := ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}},
		Stream:   false,
		TxHash:   "0xabc",
		Extra:    map[string]json.RawMessage{"top_p": json.RawMessage(`0.9`)},
	}

	body, err := req.UpstreamBody()
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Contains(t, out, "model")
	assert.Contains(t, out, "messages")
	assert.Contains(t, out, "stream")
	assert.Contains(t, out, "top_p")
	assert.NotContains(t, out, "tx_hash")
}

func TestChatRequest_StructuredContentSurvivesRoundTrip(t *testing.T) {
	content := `[{"type":"text","text":"describe"},{"type":"image_url","image_url":{"url":"https://x/y.png"}}]`
	raw := `{"model":"m","messages":[{"role":"user","content":` + content + `}]}`

	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	body, err := req.UpstreamBody()
	require.NoError(t, err)

	var out struct {
		Messages []ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Messages, 1)
	assert.JSONEq(t, content, string(out.Messages[0].Content))
}

func TestInvalid(t *testing.T) {
	result := Invalid(ReasonWrongRecipient, "expected %s", "0xabc")

	assert.False(t, result.IsValid)
	assert.Equal(t, ReasonWrongRecipient, result.Reason)
	assert.Equal(t, "expected 0xabc", result.Error)
	assert.Nil(t, result.Details)
}

func TestPaymentRequired_JSONShape(t *testing.T) {
	body, err := json.Marshal(PaymentRequired{
		Error: "Payment required",
		Accepts: []PaymentRequirements{{
			Scheme:            SchemeExact,
			Network:           "base-sepolia",
			MaxAmountRequired: "50000",
			Resource:          "http://host/v1/chat/completions",
			Description:       "d",
			PayTo:             "0xrecipient",
			Token:             "PYUSD",
		}},
		X402Version: X402Version,
	})
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, `"scheme":"exact"`)
	assert.Contains(t, s, `"mimeType":""`)
	assert.Contains(t, s, `"x402Version":1`)
	assert.NotContains(t, s, `"details"`)
}
