package model

import "time"

// APIKeyRecord 客户端 API 密钥
// 认证按 Key 精确匹配，管理操作按 ID 定位。
type APIKeyRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}
