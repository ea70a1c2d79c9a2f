package model

// PresetRule 预设问答规则
// 按存储顺序匹配，命中关键词数量达到 MatchCount 即返回 Response。
type PresetRule struct {
	Keywords   []string `json:"keywords"`
	MatchCount int      `json:"matchCount"`
	Response   string   `json:"response"`
}
