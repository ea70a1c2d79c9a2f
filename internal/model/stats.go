package model

// HourlyBucket 每小时请求统计
type HourlyBucket struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
}

// EndpointBucket 端点请求统计
type EndpointBucket struct {
	Count  int64 `json:"count"`
	Tokens int64 `json:"tokens"`
}

// KeyBucket 按客户端密钥的请求统计
type KeyBucket struct {
	Requests int64 `json:"requests"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`
}

// StatsSnapshot 流量统计数据
// 不变式: TotalRequests == SuccessfulRequests + FailedRequests，
// TodayRequests <= TotalRequests。
type StatsSnapshot struct {
	TotalRequests      int64 `json:"totalRequests"`
	TotalTokens        int64 `json:"totalTokens"`
	SuccessfulRequests int64 `json:"successfulRequests"`
	FailedRequests     int64 `json:"failedRequests"`

	// 当日计数，LastReset 日期变更时清零
	TodayRequests int64  `json:"todayRequests"`
	TodayTokens   int64  `json:"todayTokens"`
	LastReset     string `json:"lastReset"`

	HourlyStats map[string]*HourlyBucket   `json:"hourlyStats"`
	Endpoints   map[string]*EndpointBucket `json:"endpoints"`
	KeyStats    map[string]*KeyBucket      `json:"keyStats"`

	LastUpdated string `json:"lastUpdated"`
}
