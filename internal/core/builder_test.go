package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/evsong/Evclaude-proxy/internal/model"
)

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage("你好，世界")

	if !strings.HasPrefix(msg.ID, "msg_preset_") {
		t.Fatalf("id = %q, want msg_preset_ prefix", msg.ID)
	}
	if msg.Type != "message" || msg.Role != "assistant" {
		t.Fatalf("envelope = (%q, %q)", msg.Type, msg.Role)
	}
	if msg.Model != "claude-3-sonnet-20240229" {
		t.Fatalf("model = %q", msg.Model)
	}
	if len(msg.Content) != 1 || msg.Content[0].Type != "text" || msg.Content[0].Text != "你好，世界" {
		t.Fatalf("content = %+v", msg.Content)
	}
	if msg.StopReason == nil || *msg.StopReason != "end_turn" {
		t.Fatalf("stop_reason = %v", msg.StopReason)
	}
	if msg.Usage.InputTokens != 100 {
		t.Fatalf("input_tokens = %d, want fixed 100", msg.Usage.InputTokens)
	}
	// Output tokens count characters, not bytes.
	if msg.Usage.OutputTokens != 5 {
		t.Fatalf("output_tokens = %d, want 5 runes", msg.Usage.OutputTokens)
	}
}

func TestBuildStreamEvents(t *testing.T) {
	events := BuildStreamEvents("hello")

	wantOrder := []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}
	if len(events) != len(wantOrder) {
		t.Fatalf("got %d events, want %d", len(events), len(wantOrder))
	}
	for i, typ := range wantOrder {
		if events[i].Type != typ {
			t.Fatalf("event[%d].type = %q, want %q", i, events[i].Type, typ)
		}
	}

	start := events[0].Message
	if start == nil {
		t.Fatal("message_start must carry the message envelope")
	}
	if start.Usage.InputTokens != 100 || start.Usage.OutputTokens != 0 {
		t.Fatalf("message_start usage = %+v", start.Usage)
	}
	if len(start.Content) != 0 {
		t.Fatalf("message_start content should be empty, got %+v", start.Content)
	}

	// The whole text goes out in the single delta, verbatim.
	var delta model.TextDelta
	if err := json.Unmarshal(events[2].Delta, &delta); err != nil {
		t.Fatal(err)
	}
	if delta.Type != "text_delta" || delta.Text != "hello" {
		t.Fatalf("delta = %+v", delta)
	}

	var md model.MessageDelta
	if err := json.Unmarshal(events[4].Delta, &md); err != nil {
		t.Fatal(err)
	}
	if md.StopReason != "end_turn" {
		t.Fatalf("message_delta stop_reason = %q", md.StopReason)
	}
	if events[4].Usage == nil || events[4].Usage.OutputTokens != 5 {
		t.Fatalf("message_delta usage = %+v", events[4].Usage)
	}
}

func TestBuildStreamEvents_NullStopReasonInStart(t *testing.T) {
	events := BuildStreamEvents("x")

	data, err := json.Marshal(events[0])
	if err != nil {
		t.Fatal(err)
	}
	// The opening envelope carries an explicit null stop_reason.
	if !bytes.Contains(data, []byte(`"stop_reason":null`)) {
		t.Fatalf("message_start should serialize stop_reason as null: %s", data)
	}
}

func TestWriteStream(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStream(&buf, "hi"); err != nil {
		t.Fatal(err)
	}

	// Each event is an "event:" line, a "data:" line, then a blank line.
	scanner := bufio.NewScanner(&buf)
	var eventLines, dataLines int
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLines++
		case strings.HasPrefix(line, "data: "):
			dataLines++
			var ev model.StreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("data line is not valid JSON: %v", err)
			}
		case line != "":
			t.Fatalf("unexpected line %q", line)
		}
	}
	if eventLines != 6 || dataLines != 6 {
		t.Fatalf("got %d event lines and %d data lines, want 6 each", eventLines, dataLines)
	}
}
