package adk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMessageFreeText(t *testing.T) {
	msg := NormalizeMessage(json.RawMessage(`"hello there"`))
	assert.Equal(t, Message{Role: "user", Parts: []Part{{Text: "hello there"}}}, msg)
}

func TestNormalizeMessageStructured(t *testing.T) {
	msg := NormalizeMessage(json.RawMessage(`{"role": "model", "parts": [{"text": "hi"}]}`))
	assert.Equal(t, Message{Role: "model", Parts: []Part{{Text: "hi"}}}, msg)
}

func TestNormalizeMessageMissingRoleDefaultsToUser(t *testing.T) {
	msg := NormalizeMessage(json.RawMessage(`{"parts": [{"text": "hi"}]}`))
	assert.Equal(t, "user", msg.Role)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "hi", msg.Parts[0].Text)
}

func TestNormalizeMessageTextWithoutPartsIsWrapped(t *testing.T) {
	msg := NormalizeMessage(json.RawMessage(`{"text": "wrapped"}`))
	assert.Equal(t, Message{Role: "user", Parts: []Part{{Text: "wrapped"}}}, msg)
}

func TestNormalizeMessageUnrecognizableGetsEmptyPart(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"number", `42`},
		{"array", `[1, 2]`},
		{"invalid json", `{broken`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NormalizeMessage(json.RawMessage(tt.raw))
			assert.Equal(t, "user", msg.Role)
			require.Len(t, msg.Parts, 1)
			assert.Equal(t, "", msg.Parts[0].Text)
		})
	}
}

func TestNormalizeMessageEmptyObject(t *testing.T) {
	msg := NormalizeMessage(json.RawMessage(`{}`))
	assert.Equal(t, Message{Role: "user", Parts: []Part{{Text: ""}}}, msg)
}

func TestExtractTextArrayScansNewestFirst(t *testing.T) {
	raw := json.RawMessage(`[
		{"content": {"parts": [{"text": "oldest"}]}},
		{"content": {"parts": [{"text": "middle"}]}},
		{"content": {"parts": [{"text": "newest"}]}}
	]`)
	text, ok := ExtractText(raw)
	require.True(t, ok)
	assert.Equal(t, "newest", text)
}

func TestExtractTextArraySkipsEmptyTrailingMessages(t *testing.T) {
	raw := json.RawMessage(`[
		{"content": {"parts": [{"text": "the answer"}]}},
		{"content": {"parts": [{"text": ""}]}},
		{"content": {"parts": []}}
	]`)
	text, ok := ExtractText(raw)
	require.True(t, ok)
	assert.Equal(t, "the answer", text)
}

func TestExtractTextCandidates(t *testing.T) {
	raw := json.RawMessage(`{"candidates": [{"content": {"parts": [{"text": "from candidate"}]}}]}`)
	text, ok := ExtractText(raw)
	require.True(t, ok)
	assert.Equal(t, "from candidate", text)
}

func TestExtractTextDirectResponseField(t *testing.T) {
	raw := json.RawMessage(`{"response": "direct answer"}`)
	text, ok := ExtractText(raw)
	require.True(t, ok)
	assert.Equal(t, "direct answer", text)
}

func TestExtractTextSingleMessage(t *testing.T) {
	raw := json.RawMessage(`{"content": {"parts": [{"text": "single"}]}}`)
	text, ok := ExtractText(raw)
	require.True(t, ok)
	assert.Equal(t, "single", text)
}

func TestExtractTextCandidatesWinOverResponseField(t *testing.T) {
	raw := json.RawMessage(`{
		"candidates": [{"content": {"parts": [{"text": "candidate"}]}}],
		"response": "direct"
	}`)
	text, ok := ExtractText(raw)
	require.True(t, ok)
	assert.Equal(t, "candidate", text)
}

func TestExtractTextNothingMatches(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"empty array", `[]`},
		{"array with no text", `[{"content": {"parts": [{"text": ""}]}}]`},
		{"unrelated keys", `{"status": "ok"}`},
		{"empty response field", `{"response": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := ExtractText(json.RawMessage(tt.raw))
			assert.False(t, ok)
			assert.Equal(t, "", text)
		})
	}
}
