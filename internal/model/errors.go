package model

// ErrorResponse 通用错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ProxyError 上游转发失败的 502 响应体
type ProxyError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
