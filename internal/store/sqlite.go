package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evsong/Evclaude-proxy/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

// Store 请求审计日志存储
// 与 StatsSnapshot 的聚合计数互补：这里保留逐条请求记录。
type Store struct {
	db *sql.DB
}

// New 创建存储实例
func New(dbPath string) (*Store, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate 数据库迁移
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS request_logs (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		key_id TEXT,
		preset_hit INTEGER,
		stream INTEGER,
		success INTEGER,
		status_code INTEGER,
		latency_ms INTEGER,
		output_tokens INTEGER,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON request_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_endpoint ON request_logs(endpoint);
	CREATE INDEX IF NOT EXISTS idx_logs_key ON request_logs(key_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLog 保存请求日志
func (s *Store) SaveLog(log *model.RequestLog) error {
	_, err := s.db.Exec(`
		INSERT INTO request_logs (id, timestamp, endpoint, method, key_id,
			preset_hit, stream, success, status_code, latency_ms, output_tokens, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.Timestamp, log.Endpoint, log.Method, log.KeyID,
		log.PresetHit, log.Stream, log.Success, log.StatusCode, log.LatencyMs,
		log.OutputTokens, log.Error)
	return err
}

// QueryLogs 查询日志，按时间倒序
func (s *Store) QueryLogs(query *model.LogQuery) ([]*model.RequestLog, error) {
	sqlStr := "SELECT id, timestamp, endpoint, method, key_id, preset_hit, stream, success, status_code, latency_ms, output_tokens, error FROM request_logs WHERE 1=1"
	args := []any{}

	if query.Success != nil {
		sqlStr += " AND success = ?"
		args = append(args, *query.Success)
	}

	sqlStr += " ORDER BY timestamp DESC"

	if query.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", query.Limit)
	} else {
		sqlStr += " LIMIT 100"
	}
	if query.Offset > 0 {
		sqlStr += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.RequestLog
	for rows.Next() {
		var log model.RequestLog
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.Endpoint, &log.Method, &log.KeyID,
			&log.PresetHit, &log.Stream, &log.Success, &log.StatusCode, &log.LatencyMs,
			&log.OutputTokens, &log.Error); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, nil
}

// CleanOldLogs 清理过期日志
func (s *Store) CleanOldLogs(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM request_logs
		WHERE timestamp < date('now', ?)
	`, fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
