package proxy

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// Proxy Handler
// ============================================================

var forwardedHeaders = []string{"Content-Type", "Accept", "Authorization", "Origin"}

var skippedHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
}

// Proxy пересылает запросы с префиксом в upstream, сохраняя хвост пути и query.
type Proxy struct {
	upstream string
	prefix   string
	client   *resty.Client
	logger   *zap.Logger
}

func New(upstream, prefix string, timeout time.Duration, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		upstream: strings.TrimRight(upstream, "/"),
		prefix:   strings.TrimRight(prefix, "/"),
		client:   resty.New().SetTimeout(timeout),
		logger:   logger,
	}
}

// Target returns the upstream URL for a gateway path and raw query.
func (p *Proxy) Target(path, query string) string {
	rest := strings.TrimPrefix(path, p.prefix)
	if rest == "" {
		rest = "/"
	}
	target := p.upstream + rest
	if query != "" {
		target += "?" + query
	}
	return target
}

// Handler проксирует любой метод.
func (p *Proxy) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c)
	}
}

func (p *Proxy) Forward(c fiber.Ctx) error {
	target := p.Target(c.Path(), string(c.Request().URI().QueryString()))
	p.logger.Debug("proxy request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("target", target),
		zap.Int("content_length", len(c.Body())),
	)

	req := p.client.R()
	for _, h := range forwardedHeaders {
		if v := c.Get(h); v != "" {
			req.SetHeader(h, v)
		}
	}
	if body := c.Body(); len(body) > 0 {
		req.SetBody(body)
	}

	resp, err := req.Execute(c.Method(), target)
	if err != nil {
		p.logger.Warn("upstream unreachable", zap.String("target", target), zap.Error(err))
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}

	for key, values := range resp.Header() {
		if len(values) > 0 && !skippedHeaders[http.CanonicalHeaderKey(key)] {
			c.Set(key, values[0])
		}
	}
	c.Status(resp.StatusCode())
	return c.Send(resp.Body())
}
