package model

import (
	"encoding/json"
	"testing"
)

func TestLatestUserText(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantOK   bool
	}{
		{
			name:     "string content",
			body:     `{"messages":[{"role":"user","content":"hello"}]}`,
			wantText: "hello",
			wantOK:   true,
		},
		{
			name:     "parts content",
			body:     `{"messages":[{"role":"user","content":[{"type":"text","text":"from parts"}]}]}`,
			wantText: "from parts",
			wantOK:   true,
		},
		{
			name: "latest user message wins",
			body: `{"messages":[
				{"role":"user","content":"first"},
				{"role":"assistant","content":"reply"},
				{"role":"user","content":"second"}]}`,
			wantText: "second",
			wantOK:   true,
		},
		{
			name:     "skips trailing assistant message",
			body:     `{"messages":[{"role":"user","content":"question"},{"role":"assistant","content":"answer"}]}`,
			wantText: "question",
			wantOK:   true,
		},
		{
			name:     "first text part among mixed parts",
			body:     `{"messages":[{"role":"user","content":[{"type":"image"},{"type":"text","text":"caption"}]}]}`,
			wantText: "caption",
			wantOK:   true,
		},
		{
			name:   "no messages",
			body:   `{"messages":[]}`,
			wantOK: false,
		},
		{
			name:   "no user messages",
			body:   `{"messages":[{"role":"assistant","content":"hi"}]}`,
			wantOK: false,
		},
		{
			name:   "content of unexpected shape",
			body:   `{"messages":[{"role":"user","content":{"weird":true}}]}`,
			wantOK: false,
		},
		{
			name:   "parts without text blocks",
			body:   `{"messages":[{"role":"user","content":[{"type":"image"}]}]}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ChatRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatal(err)
			}
			got, ok := req.LatestUserText()
			if ok != tt.wantOK || got != tt.wantText {
				t.Fatalf("LatestUserText() = (%q, %v), want (%q, %v)", got, ok, tt.wantText, tt.wantOK)
			}
		})
	}
}

func TestMessageContentRoundTrip(t *testing.T) {
	// String form survives marshal/unmarshal as a string.
	in := Message{Role: "user", Content: MessageContent{Text: "plain"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Message
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Content.Text != "plain" || out.Content.Parts != nil {
		t.Fatalf("round trip changed content: %+v", out.Content)
	}

	// Parts form keeps the array shape.
	in = Message{Role: "user", Content: MessageContent{Parts: []ContentPart{{Type: "text", Text: "p"}}}}
	data, err = json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Content.Parts) != 1 || out.Content.Parts[0].Text != "p" {
		t.Fatalf("round trip changed parts: %+v", out.Content)
	}
}
