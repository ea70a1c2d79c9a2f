package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/evsong/Evclaude-proxy/internal/model"
)

const (
	presetModel       = "claude-3-sonnet-20240229"
	presetInputTokens = 100
	stopReasonEndTurn = "end_turn"
)

// BuildMessage 构造预设命中的非流式响应
func BuildMessage(text string) model.MessagesResponse {
	stop := stopReasonEndTurn
	return model.MessagesResponse{
		ID:         presetMessageID(),
		Type:       "message",
		Role:       "assistant",
		Content:    []model.ContentBlock{{Type: "text", Text: text}},
		Model:      presetModel,
		StopReason: &stop,
		Usage: model.Usage{
			InputTokens:  presetInputTokens,
			OutputTokens: utf8.RuneCountInString(text),
		},
	}
}

// BuildStreamEvents 构造预设命中的流式事件序列。
// 固定六帧，顺序不可变，整段文本在唯一的 content_block_delta 中一次送出，
// 客户端按真实流式响应解析。
func BuildStreamEvents(text string) []model.StreamEvent {
	zero := 0
	outputTokens := utf8.RuneCountInString(text)

	envelope := model.MessagesResponse{
		ID:      presetMessageID(),
		Type:    "message",
		Role:    "assistant",
		Content: []model.ContentBlock{},
		Model:   presetModel,
		Usage:   model.Usage{InputTokens: presetInputTokens, OutputTokens: 0},
	}

	textDelta, _ := json.Marshal(model.TextDelta{Type: "text_delta", Text: text})
	messageDelta, _ := json.Marshal(model.MessageDelta{StopReason: stopReasonEndTurn})

	return []model.StreamEvent{
		{Type: "message_start", Message: &envelope},
		{Type: "content_block_start", Index: &zero, ContentBlock: &model.ContentBlock{Type: "text", Text: ""}},
		{Type: "content_block_delta", Index: &zero, Delta: textDelta},
		{Type: "content_block_stop", Index: &zero},
		{Type: "message_delta", Delta: messageDelta, Usage: &model.DeltaUsage{OutputTokens: outputTokens}},
		{Type: "message_stop"},
	}
}

// WriteStream 按 SSE 帧格式输出六个事件: event 行 + data 行 + 空行
func WriteStream(w io.Writer, text string) error {
	for _, ev := range BuildStreamEvents(text) {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
	}
	return nil
}

func presetMessageID() string {
	return "msg_preset_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}
