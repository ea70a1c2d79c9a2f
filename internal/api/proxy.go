package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/evsong/Evclaude-proxy/internal/config"
	"github.com/evsong/Evclaude-proxy/internal/core"
	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// sniffLimit 非流式响应参与用量提取的最大字节数
const sniffLimit = 256 * 1024

// hopHeaders 不随请求/响应转发的逐跳头
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyHandler 转发处理器
type ProxyHandler struct {
	cfg     *config.Config
	presets *core.PresetStore
	stats   *core.Stats
	logs    *store.Store
	client  *http.Client
}

// NewProxyHandler 创建转发处理器
func NewProxyHandler(cfg *config.Config, presets *core.PresetStore, stats *core.Stats, logs *store.Store) *ProxyHandler {
	return &ProxyHandler{
		cfg:     cfg,
		presets: presets,
		stats:   stats,
		logs:    logs,
		client: &http.Client{
			// 长超时用于慢速生成和流式响应
			Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
	}
}

// Messages 聊天请求入口：先尝试预设拦截，未命中则转发上游
func (h *ProxyHandler) Messages(c *gin.Context) {
	start := time.Now()
	keyID := keyIDFromContext(c)
	endpoint := c.Request.URL.Path

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Failed to read request body",
				Type:    "invalid_request_error",
			},
		})
		return
	}

	// 解析失败不报错：拿不到文本就当没有预设命中，照常转发
	var req model.ChatRequest
	_ = json.Unmarshal(body, &req)

	if text, ok := req.LatestUserText(); ok {
		if response, hit := h.presets.Match(text); hit {
			h.servePreset(c, response, req.Stream, keyID, endpoint, start)
			return
		}
	}

	h.proxyUpstream(c, bytes.NewReader(body), int64(len(body)), keyID, req.Stream, start)
}

// servePreset 返回预设回复，按 stream 标志选择 JSON 或 SSE 编码
func (h *ProxyHandler) servePreset(c *gin.Context, response string, stream bool, keyID, endpoint string, start time.Time) {
	tokens := utf8.RuneCountInString(response)

	if stream {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(200)
		if err := core.WriteStream(c.Writer, response); err != nil {
			logrus.WithError(err).Warn("write preset stream failed")
		}
		c.Writer.Flush()
	} else {
		c.JSON(200, core.BuildMessage(response))
	}

	h.stats.Record(endpoint, true, keyID, tokens)
	h.saveLog(&model.RequestLog{
		Endpoint:     endpoint,
		Method:       c.Request.Method,
		KeyID:        keyID,
		PresetHit:    true,
		Stream:       stream,
		Success:      true,
		StatusCode:   200,
		LatencyMs:    time.Since(start).Milliseconds(),
		OutputTokens: tokens,
	})
}

// Forward 兜底透传：除已注册路由外的任意路径原样转发，不校验客户端密钥
func (h *ProxyHandler) Forward(c *gin.Context) {
	h.proxyUpstream(c, c.Request.Body, c.Request.ContentLength, "", false, time.Now())
}

// proxyUpstream 转发到固定上游并流式回传响应。
// 出站凭证替换入站凭证；响应不缓冲，逐块写回并刷新。
func (h *ProxyHandler) proxyUpstream(c *gin.Context, body io.Reader, contentLength int64, keyID string, stream bool, start time.Time) {
	endpoint := c.Request.URL.Path

	target := strings.TrimSuffix(h.cfg.Upstream.BaseURL, "/") + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		target += "?" + c.Request.URL.RawQuery
	}

	// 客户端断开时通过请求上下文中止上游请求
	outReq, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, body)
	if err != nil {
		h.failBeforeResponse(c, err, keyID, stream, start)
		return
	}
	outReq.ContentLength = contentLength

	copyHeaders(outReq.Header, c.Request.Header)
	if contentLength > 0 {
		outReq.Header.Set("Content-Type", "application/json")
	}

	// 配置了上游凭证时替换客户端自带凭证，客户端密钥绝不上行
	if h.cfg.Upstream.APIKey != "" {
		outReq.Header.Set("x-api-key", h.cfg.Upstream.APIKey)
		outReq.Header.Set("Authorization", "Bearer "+h.cfg.Upstream.APIKey)
		outReq.Header.Set("anthropic-version", h.cfg.Upstream.AnthropicVersion)
	}

	logrus.Debugf("forward %s %s -> %s", c.Request.Method, c.Request.URL.Path, target)

	resp, err := h.client.Do(outReq)
	if err != nil {
		h.failBeforeResponse(c, err, keyID, stream, start)
		return
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 400

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Writer.WriteHeader(resp.StatusCode)

	var tokens int
	var copyErr error
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		tokens, copyErr = h.relayEventStream(c, resp.Body)
	} else {
		tokens, copyErr = h.relayBody(c, resp.Body)
	}
	if copyErr != nil {
		// 头已经发出，错误只能计入统计
		logrus.WithError(copyErr).Warn("upstream relay interrupted")
		success = false
	}

	h.stats.Record(endpoint, success, keyID, tokens)
	h.saveLog(&model.RequestLog{
		Endpoint:     endpoint,
		Method:       c.Request.Method,
		KeyID:        keyID,
		Stream:       stream,
		Success:      success,
		StatusCode:   resp.StatusCode,
		LatencyMs:    time.Since(start).Milliseconds(),
		OutputTokens: tokens,
		Error:        errString(copyErr),
	})
}

// relayEventStream 逐行转发 SSE 响应，顺带从 data 载荷提取用量
func (h *ProxyHandler) relayEventStream(c *gin.Context, upstream io.Reader) (int, error) {
	reader := bufio.NewReader(upstream)
	inputTokens, outputTokens := 0, 0

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if _, werr := c.Writer.WriteString(line); werr != nil {
				return inputTokens + outputTokens, werr
			}
			c.Writer.Flush()

			if payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
				payload = strings.TrimSpace(payload)
				if v := gjson.Get(payload, "message.usage.input_tokens"); v.Exists() {
					inputTokens = int(v.Int())
				}
				if v := gjson.Get(payload, "usage.output_tokens"); v.Exists() {
					outputTokens = int(v.Int())
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return inputTokens + outputTokens, nil
			}
			return inputTokens + outputTokens, err
		}
	}
}

// relayBody 逐块转发普通响应体，tee 一段前缀用于提取用量
func (h *ProxyHandler) relayBody(c *gin.Context, upstream io.Reader) (int, error) {
	var sniff bytes.Buffer
	buf := make([]byte, 32*1024)
	var copyErr error

	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if sniff.Len() < sniffLimit {
				sniff.Write(buf[:n])
			}
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				copyErr = werr
				break
			}
			c.Writer.Flush()
		}
		if err != nil {
			if err != io.EOF {
				copyErr = err
			}
			break
		}
	}

	tokens := 0
	payload := sniff.String()
	if v := gjson.Get(payload, "usage.input_tokens"); v.Exists() {
		tokens += int(v.Int())
	}
	if v := gjson.Get(payload, "usage.output_tokens"); v.Exists() {
		tokens += int(v.Int())
	}
	return tokens, copyErr
}

// failBeforeResponse 上游传输失败：响应未开始则回 502，否则只计统计
func (h *ProxyHandler) failBeforeResponse(c *gin.Context, err error, keyID string, stream bool, start time.Time) {
	endpoint := c.Request.URL.Path
	logrus.WithError(err).Errorf("proxy error: %s %s", c.Request.Method, endpoint)

	statusCode := 502
	if !c.Writer.Written() {
		c.JSON(502, model.ProxyError{
			Error:   "Proxy Error",
			Message: err.Error(),
		})
	} else {
		statusCode = c.Writer.Status()
	}

	h.stats.Record(endpoint, false, keyID, 0)
	h.saveLog(&model.RequestLog{
		Endpoint:   endpoint,
		Method:     c.Request.Method,
		KeyID:      keyID,
		Stream:     stream,
		Success:    false,
		StatusCode: statusCode,
		LatencyMs:  time.Since(start).Milliseconds(),
		Error:      err.Error(),
	})
}

// saveLog 写审计日志，失败只记日志不影响请求
func (h *ProxyHandler) saveLog(log *model.RequestLog) {
	if h.logs == nil {
		return
	}
	log.ID = uuid.NewString()
	log.Timestamp = time.Now()
	if err := h.logs.SaveLog(log); err != nil {
		logrus.WithError(err).Warn("save request log failed")
	}
}

// copyHeaders 复制头部，跳过逐跳头
func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopHeader(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
