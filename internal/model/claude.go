package model

import "encoding/json"

// ChatRequest 入站聊天请求（只解析转发所需的最小视图）
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Message 对话消息，Content 可能是纯文本或多段内容
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ContentPart 多段内容中的一段
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageContent 消息内容的两种形态: Text（纯文本）或 Parts（分段）。
// 解析失败时两者都为空，视为无可提取文本，不报错。
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// UnmarshalJSON 先按字符串解析，再按分段数组解析，形状不符则忽略
func (m *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Text = s
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		m.Parts = parts
	}
	return nil
}

// MarshalJSON 按原形态序列化
func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(m.Parts)
	}
	return json.Marshal(m.Text)
}

// LatestUserText 提取最近一条 user 消息的文本。
// 优先取纯文本内容，其次取第一个 text 类型分段；取不到返回 false。
func (r *ChatRequest) LatestUserText() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		msg := r.Messages[i]
		if msg.Role != "user" {
			continue
		}
		if msg.Content.Text != "" {
			return msg.Content.Text, true
		}
		for _, part := range msg.Content.Parts {
			if part.Type == "text" {
				return part.Text, true
			}
		}
	}
	return "", false
}

// ContentBlock 响应内容块
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage Token 用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessagesResponse 非流式聊天响应
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// StreamEvent SSE 流式事件，Type 同时作为 event: 行的事件名
type StreamEvent struct {
	Type         string            `json:"type"`
	Message      *MessagesResponse `json:"message,omitempty"`
	Index        *int              `json:"index,omitempty"`
	ContentBlock *ContentBlock     `json:"content_block,omitempty"`
	Delta        json.RawMessage   `json:"delta,omitempty"`
	Usage        *DeltaUsage       `json:"usage,omitempty"`
}

// TextDelta content_block_delta 的增量内容
type TextDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MessageDelta message_delta 的结束信息
type MessageDelta struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// DeltaUsage 流式事件中的用量（只含输出）
type DeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}
