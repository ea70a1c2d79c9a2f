package core

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrKeyNotFound 按 ID 找不到密钥
var ErrKeyNotFound = errors.New("api key not found")

const (
	secretPrefix  = "sk-evc-"
	secretSegLen1 = 8
	secretSegLen2 = 16
	secretCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// KeyStore 客户端密钥存储
// 启动时整体加载进内存，管理操作直接同步落盘（数据量小、改动少，不做防抖）。
type KeyStore struct {
	mu   sync.RWMutex
	keys []model.APIKeyRecord
	file *store.JSONFile
}

// NewKeyStore 加载 keys.json；文件不存在时写入 seeds 作为初始密钥
func NewKeyStore(file *store.JSONFile, seeds []model.APIKeyRecord) (*KeyStore, error) {
	ks := &KeyStore{file: file}

	loaded, err := file.Load(&ks.keys)
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}
	if !loaded {
		ks.keys = append([]model.APIKeyRecord{}, seeds...)
		if len(ks.keys) > 0 {
			if err := file.Save(ks.keys); err != nil {
				logrus.WithError(err).Warn("save seed keys failed")
			}
		}
	}

	return ks, nil
}

// Validate 按密钥串精确匹配，仅 enabled 的密钥有效
func (ks *KeyStore) Validate(secret string) (*model.APIKeyRecord, bool) {
	if secret == "" {
		return nil, false
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	for i := range ks.keys {
		if ks.keys[i].Key == secret && ks.keys[i].Enabled {
			rec := ks.keys[i]
			return &rec, true
		}
	}
	return nil, false
}

// List 返回所有密钥记录的副本
func (ks *KeyStore) List() []model.APIKeyRecord {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	out := make([]model.APIKeyRecord, len(ks.keys))
	copy(out, ks.keys)
	return out
}

// Create 生成新密钥并追加。Name 不要求唯一。
func (ks *KeyStore) Create(name string) (*model.APIKeyRecord, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	rec := model.APIKeyRecord{
		ID:        "key_" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		Name:      name,
		Key:       secret,
		Enabled:   true,
		CreatedAt: time.Now(),
	}

	ks.mu.Lock()
	ks.keys = append(ks.keys, rec)
	ks.saveLocked()
	ks.mu.Unlock()

	return &rec, nil
}

// SetEnabled 启用/禁用密钥
func (ks *KeyStore) SetEnabled(id string, enabled bool) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for i := range ks.keys {
		if ks.keys[i].ID == id {
			ks.keys[i].Enabled = enabled
			ks.saveLocked()
			return nil
		}
	}
	return ErrKeyNotFound
}

// Rename 重命名密钥
func (ks *KeyStore) Rename(id, name string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for i := range ks.keys {
		if ks.keys[i].ID == id {
			ks.keys[i].Name = name
			ks.saveLocked()
			return nil
		}
	}
	return ErrKeyNotFound
}

// Delete 删除密钥
func (ks *KeyStore) Delete(id string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for i := range ks.keys {
		if ks.keys[i].ID == id {
			ks.keys = append(ks.keys[:i], ks.keys[i+1:]...)
			ks.saveLocked()
			return nil
		}
	}
	return ErrKeyNotFound
}

// saveLocked 同步落盘，失败只记日志不影响请求
func (ks *KeyStore) saveLocked() {
	if err := ks.file.Save(ks.keys); err != nil {
		logrus.WithError(err).Error("save keys failed")
	}
}

// generateSecret 生成 sk-evc-<8位>-<16位> 格式的随机密钥
func generateSecret() (string, error) {
	seg1, err := randomSegment(secretSegLen1)
	if err != nil {
		return "", err
	}
	seg2, err := randomSegment(secretSegLen2)
	if err != nil {
		return "", err
	}
	return secretPrefix + seg1 + "-" + seg2, nil
}

func randomSegment(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = secretCharset[int(b[i])%len(secretCharset)]
	}
	return string(b), nil
}
