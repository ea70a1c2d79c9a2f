package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrPresetNotFound 预设索引越界
var ErrPresetNotFound = errors.New("preset not found")

// PresetStore 预设问答规则存储
type PresetStore struct {
	mu    sync.RWMutex
	rules []model.PresetRule
	file  *store.JSONFile
}

// NewPresetStore 加载 presets.json；文件不存在时写入 seed 规则
func NewPresetStore(file *store.JSONFile, seed *model.PresetRule) (*PresetStore, error) {
	ps := &PresetStore{file: file}

	loaded, err := file.Load(&ps.rules)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	if !loaded {
		if seed != nil {
			ps.rules = []model.PresetRule{*seed}
		}
		if err := file.Save(ps.rules); err != nil {
			logrus.WithError(err).Warn("save seed presets failed")
		}
	}

	return ps, nil
}

// Match 按存储顺序逐条评估，第一条命中关键词数达到阈值的规则胜出。
// 关键词按小写子串包含判定，每个关键词独立计一次；阈值缺省为 1。
// 没有"最优匹配"，并列只看规则顺序。
func (ps *PresetStore) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, rule := range ps.rules {
		matched := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		threshold := rule.MatchCount
		if threshold <= 0 {
			threshold = 1
		}
		if matched >= threshold {
			logrus.Debugf("preset match: %d/%d keywords", matched, len(rule.Keywords))
			return rule.Response, true
		}
	}
	return "", false
}

// List 返回所有规则的副本
func (ps *PresetStore) List() []model.PresetRule {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]model.PresetRule, len(ps.rules))
	copy(out, ps.rules)
	return out
}

// Count 返回规则数量
func (ps *PresetStore) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.rules)
}

// Add 追加规则并落盘
func (ps *PresetStore) Add(rule model.PresetRule) {
	if rule.MatchCount <= 0 {
		rule.MatchCount = 1
	}
	ps.mu.Lock()
	ps.rules = append(ps.rules, rule)
	ps.saveLocked()
	ps.mu.Unlock()
}

// Delete 按索引删除规则
func (ps *PresetStore) Delete(index int) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if index < 0 || index >= len(ps.rules) {
		return ErrPresetNotFound
	}
	ps.rules = append(ps.rules[:index], ps.rules[index+1:]...)
	ps.saveLocked()
	return nil
}

// Reload 重新读取文件，供外部修改后热加载
func (ps *PresetStore) Reload() error {
	var rules []model.PresetRule
	loaded, err := ps.file.Load(&rules)
	if err != nil {
		return err
	}
	if !loaded {
		return nil
	}
	ps.mu.Lock()
	ps.rules = rules
	ps.mu.Unlock()
	return nil
}

func (ps *PresetStore) saveLocked() {
	if err := ps.file.Save(ps.rules); err != nil {
		logrus.WithError(err).Error("save presets failed")
	}
}
