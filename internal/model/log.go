package model

import "time"

// RequestLog 单次请求的审计记录（区别于 StatsSnapshot 的聚合计数）
type RequestLog struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	KeyID        string    `json:"key_id,omitempty"`
	PresetHit    bool      `json:"preset_hit"`
	Stream       bool      `json:"stream"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code"`
	LatencyMs    int64     `json:"latency_ms"`
	OutputTokens int       `json:"output_tokens"`
	Error        string    `json:"error,omitempty"`
}

// LogQuery 日志查询条件
type LogQuery struct {
	Success *bool `form:"success"`
	Limit   int   `form:"limit"`
	Offset  int   `form:"offset"`
}
