package api

import (
	"errors"
	"strconv"

	"github.com/evsong/Evclaude-proxy/internal/core"
	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
	"github.com/gin-gonic/gin"
)

// AdminHandler 管理 API 处理器
type AdminHandler struct {
	stats   *core.Stats
	keys    *core.KeyStore
	presets *core.PresetStore
	logs    *store.Store
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(stats *core.Stats, keys *core.KeyStore, presets *core.PresetStore, logs *store.Store) *AdminHandler {
	return &AdminHandler{
		stats:   stats,
		keys:    keys,
		presets: presets,
		logs:    logs,
	}
}

// GetStats 返回完整统计快照
func (h *AdminHandler) GetStats(c *gin.Context) {
	c.JSON(200, h.stats.Snapshot())
}

// === 密钥管理 ===

// ListKeys 列出所有客户端密钥
func (h *AdminHandler) ListKeys(c *gin.Context) {
	c.JSON(200, h.keys.List())
}

// CreateKey 创建密钥
func (h *AdminHandler) CreateKey(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Missing name",
				Type:    "invalid_request_error",
			},
		})
		return
	}

	rec, err := h.keys.Create(req.Name)
	if err != nil {
		c.JSON(500, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: err.Error(),
				Type:    "internal_error",
			},
		})
		return
	}

	c.JSON(201, rec)
}

// UpdateKey 修改密钥的启用状态或名称
func (h *AdminHandler) UpdateKey(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Enabled *bool   `json:"enabled"`
		Name    *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Invalid request: " + err.Error(),
				Type:    "invalid_request_error",
			},
		})
		return
	}

	if req.Enabled != nil {
		if err := h.keys.SetEnabled(id, *req.Enabled); err != nil {
			h.keyError(c, err)
			return
		}
	}
	if req.Name != nil {
		if err := h.keys.Rename(id, *req.Name); err != nil {
			h.keyError(c, err)
			return
		}
	}

	c.JSON(200, gin.H{"success": true})
}

// DeleteKey 删除密钥
func (h *AdminHandler) DeleteKey(c *gin.Context) {
	if err := h.keys.Delete(c.Param("id")); err != nil {
		h.keyError(c, err)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (h *AdminHandler) keyError(c *gin.Context, err error) {
	if errors.Is(err, core.ErrKeyNotFound) {
		c.JSON(404, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "API key not found",
				Type:    "not_found_error",
			},
		})
		return
	}
	c.JSON(500, model.ErrorResponse{
		Error: model.ErrorDetail{
			Message: err.Error(),
			Type:    "internal_error",
		},
	})
}

// === 预设管理 ===

// ListPresets 列出预设规则
func (h *AdminHandler) ListPresets(c *gin.Context) {
	c.JSON(200, h.presets.List())
}

// CreatePreset 创建预设规则，keywords 和 response 必填
func (h *AdminHandler) CreatePreset(c *gin.Context) {
	var rule model.PresetRule
	if err := c.ShouldBindJSON(&rule); err != nil || len(rule.Keywords) == 0 || rule.Response == "" {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Missing keywords or response",
				Type:    "invalid_request_error",
			},
		})
		return
	}

	h.presets.Add(rule)
	c.JSON(200, gin.H{"success": true, "count": h.presets.Count()})
}

// DeletePreset 按索引删除预设规则
func (h *AdminHandler) DeletePreset(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(404, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Preset not found",
				Type:    "not_found_error",
			},
		})
		return
	}

	if err := h.presets.Delete(index); err != nil {
		c.JSON(404, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Preset not found",
				Type:    "not_found_error",
			},
		})
		return
	}

	c.JSON(200, gin.H{"success": true, "count": h.presets.Count()})
}

// === 审计日志 ===

// GetLogs 查询请求审计日志
func (h *AdminHandler) GetLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(200, gin.H{"data": []any{}})
		return
	}

	var query model.LogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Invalid query: " + err.Error(),
				Type:    "invalid_request_error",
			},
		})
		return
	}

	logs, err := h.logs.QueryLogs(&query)
	if err != nil {
		c.JSON(500, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: err.Error(),
				Type:    "internal_error",
			},
		})
		return
	}

	c.JSON(200, gin.H{"data": logs})
}

// Dashboard 管理后台页面
func (h *AdminHandler) Dashboard(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(200, dashboardHTML)
}
