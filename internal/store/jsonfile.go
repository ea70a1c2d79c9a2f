package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFile 单个 JSON 文档的持久化句柄
// stats/presets/keys 三份数据各持有一个实例，互不干扰。
type JSONFile struct {
	path string
}

// NewJSONFile 创建持久化句柄，确保父目录存在
func NewJSONFile(path string) (*JSONFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFile{path: path}, nil
}

// Path 返回文件路径
func (f *JSONFile) Path() string {
	return f.path
}

// Load 读取并反序列化文档。文件不存在返回 (false, nil)，由调用方应用默认值。
func (f *JSONFile) Load(v any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return true, nil
}

// Save 序列化并落盘，先写临时文件再改名，避免写一半被读到
func (f *JSONFile) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
