package adk

import (
	"encoding/json"
)

// Part is one piece of an ADK message.
type Part struct {
	Text string `json:"text"`
}

// Message is the structured message shape the run endpoint accepts.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// looseMessage tolerates the shapes callers actually send: a bare role,
// parts, or a single text field.
type looseMessage struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
	Text  string `json:"text"`
}

// NormalizeMessage converts whatever the caller sent into a valid
// structured message. It is total: free text becomes a user message
// with one text part, objects get missing fields filled in, and
// anything unrecognizable becomes a user message with one empty part.
func NormalizeMessage(raw json.RawMessage) Message {
	if len(raw) > 0 {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return Message{Role: "user", Parts: []Part{{Text: text}}}
		}

		var loose looseMessage
		if err := json.Unmarshal(raw, &loose); err == nil {
			msg := Message{Role: loose.Role, Parts: loose.Parts}
			if msg.Role == "" {
				msg.Role = "user"
			}
			if len(msg.Parts) == 0 {
				msg.Parts = []Part{{Text: loose.Text}}
			}
			return msg
		}
	}

	return Message{Role: "user", Parts: []Part{{Text: ""}}}
}

type responseContent struct {
	Parts []Part `json:"parts"`
}

type responseMessage struct {
	Content responseContent `json:"content"`
}

type candidateList struct {
	Candidates []responseMessage `json:"candidates"`
}

type directResponse struct {
	Response *string `json:"response"`
}

// ExtractText pulls the answer text out of a raw ADK payload. Known
// shapes are tried in priority order: an array of messages scanned
// newest-first, a candidate list, a direct response field, then a
// single message. Returns ok=false when nothing matched; callers
// substitute the fallback text.
func ExtractText(raw json.RawMessage) (string, bool) {
	var messages []responseMessage
	if err := json.Unmarshal(raw, &messages); err == nil {
		for i := len(messages) - 1; i >= 0; i-- {
			for _, part := range messages[i].Content.Parts {
				if part.Text != "" {
					return part.Text, true
				}
			}
		}
		return "", false
	}

	var candidates candidateList
	if err := json.Unmarshal(raw, &candidates); err == nil && len(candidates.Candidates) > 0 {
		if parts := candidates.Candidates[0].Content.Parts; len(parts) > 0 && parts[0].Text != "" {
			return parts[0].Text, true
		}
	}

	var direct directResponse
	if err := json.Unmarshal(raw, &direct); err == nil && direct.Response != nil && *direct.Response != "" {
		return *direct.Response, true
	}

	var single responseMessage
	if err := json.Unmarshal(raw, &single); err == nil {
		if parts := single.Content.Parts; len(parts) > 0 && parts[0].Text != "" {
			return parts[0].Text, true
		}
	}

	return "", false
}
