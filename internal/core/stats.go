package core

import (
	"strconv"
	"sync"
	"time"

	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
	"github.com/sirupsen/logrus"
)

// Stats 流量统计聚合器
// 计数在内存中同步更新，落盘走尾沿防抖：每次 Record 重置一个待写定时器，
// 突发流量合并为一次磁盘写入。
type Stats struct {
	mu       sync.Mutex
	snap     model.StatsSnapshot
	file     *store.JSONFile
	debounce time.Duration
	timer    *time.Timer
}

// NewStats 加载 stats.json 并在加载时做跨天清零。
// 跨天判断只在加载时做一次：持久化的 lastReset 与当前日期字符串不同则清零当日计数。
func NewStats(file *store.JSONFile, debounce time.Duration) (*Stats, error) {
	s := &Stats{file: file, debounce: debounce}

	if _, err := file.Load(&s.snap); err != nil {
		return nil, err
	}
	s.ensureMaps()

	today := dayString(time.Now())
	if s.snap.LastReset != today {
		s.snap.TodayRequests = 0
		s.snap.TodayTokens = 0
		s.snap.LastReset = today
	}

	return s, nil
}

func (s *Stats) ensureMaps() {
	if s.snap.HourlyStats == nil {
		s.snap.HourlyStats = make(map[string]*model.HourlyBucket)
	}
	if s.snap.Endpoints == nil {
		s.snap.Endpoints = make(map[string]*model.EndpointBucket)
	}
	if s.snap.KeyStats == nil {
		s.snap.KeyStats = make(map[string]*model.KeyBucket)
	}
}

// Record 记录一次请求结果。keyID 为空表示无密钥归属（如认证失败的请求）。
// 每次调用相对其他调用是原子的。
func (s *Stats) Record(endpoint string, success bool, keyID string, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.TotalRequests++
	s.snap.TodayRequests++
	if success {
		s.snap.SuccessfulRequests++
	} else {
		s.snap.FailedRequests++
	}
	s.snap.TotalTokens += int64(tokens)
	s.snap.TodayTokens += int64(tokens)

	hour := strconv.Itoa(time.Now().Hour())
	hb := s.snap.HourlyStats[hour]
	if hb == nil {
		hb = &model.HourlyBucket{}
		s.snap.HourlyStats[hour] = hb
	}
	hb.Requests++
	hb.Tokens += int64(tokens)

	eb := s.snap.Endpoints[endpoint]
	if eb == nil {
		eb = &model.EndpointBucket{}
		s.snap.Endpoints[endpoint] = eb
	}
	eb.Count++
	eb.Tokens += int64(tokens)

	if keyID != "" {
		kb := s.snap.KeyStats[keyID]
		if kb == nil {
			kb = &model.KeyBucket{}
			s.snap.KeyStats[keyID] = kb
		}
		kb.Requests++
		if success {
			kb.Success++
		} else {
			kb.Failed++
		}
	}

	s.scheduleSaveLocked()
}

// scheduleSaveLocked 重置待写定时器（尾沿防抖）
func (s *Stats) scheduleSaveLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.save)
}

// save 落盘，失败只记日志
func (s *Stats) save() {
	s.mu.Lock()
	s.snap.LastUpdated = time.Now().Format(time.RFC3339)
	snap := s.copyLocked()
	s.mu.Unlock()

	if err := s.file.Save(&snap); err != nil {
		logrus.WithError(err).Error("save stats failed")
	}
}

// Flush 停掉待写定时器并同步写一次，进程退出前调用
func (s *Stats) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.save()
}

// Snapshot 返回统计数据的深拷贝
func (s *Stats) Snapshot() model.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Stats) copyLocked() model.StatsSnapshot {
	out := s.snap
	out.HourlyStats = make(map[string]*model.HourlyBucket, len(s.snap.HourlyStats))
	for k, v := range s.snap.HourlyStats {
		b := *v
		out.HourlyStats[k] = &b
	}
	out.Endpoints = make(map[string]*model.EndpointBucket, len(s.snap.Endpoints))
	for k, v := range s.snap.Endpoints {
		b := *v
		out.Endpoints[k] = &b
	}
	out.KeyStats = make(map[string]*model.KeyBucket, len(s.snap.KeyStats))
	for k, v := range s.snap.KeyStats {
		b := *v
		out.KeyStats[k] = &b
	}
	return out
}

// dayString 日期串，跨天清零按字符串比较
func dayString(t time.Time) string {
	return t.Format("2006-01-02")
}
