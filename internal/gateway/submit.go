package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/webchat/webchat/internal/message"
	"github.com/webchat/webchat/pkg/logger"
	"github.com/webchat/webchat/pkg/metrics"
)

var errBadContentLength = errors.New("invalid Content-Length")

// submit forwards the form fields to the relay and always answers OK once
// the body was read. Delivery is best effort: a failed send is logged and
// counted but never reaches the browser.
func (g *Gateway) submit(c *gin.Context) {
	body, err := readBody(c.Request)
	if err != nil {
		log := logger.Ctx(c.Request.Context())
		log.Warn().Err(err).Msg("rejecting submission")
		c.Data(http.StatusBadRequest, contentTypePlain, []byte("400 Bad Request"))
		return
	}

	msg := parseForm(c, body)
	metrics.GatewaySubmissions.Inc()

	// the browser going away must not abort delivery
	ctx := context.WithoutCancel(c.Request.Context())
	if err := g.sender.Send(ctx, msg); err != nil {
		metrics.GatewayForwards.WithLabelValues(metrics.ResultFailed).Inc()
		log := logger.Ctx(c.Request.Context())
		log.Error().Err(err).Msg("relay send failed")
	} else {
		metrics.GatewayForwards.WithLabelValues(metrics.ResultSent).Inc()
	}

	c.Data(http.StatusOK, contentTypePlain, []byte("OK"))
}

// readBody reads exactly Content-Length bytes (or fewer if the body ends
// early). A missing length means an empty body.
func readBody(r *http.Request) ([]byte, error) {
	n := int64(0)
	if raw := strings.TrimSpace(r.Header.Get("Content-Length")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: %q", errBadContentLength, raw)
		}
		n = v
	} else if r.ContentLength > 0 {
		n = r.ContentLength
	}
	if n == 0 || r.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, n))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// parseForm decodes urlencoded fields, keeping blank values. Undecodable
// pairs are skipped.
func parseForm(c *gin.Context, body []byte) message.ChatMessage {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		log := logger.Ctx(c.Request.Context())
		log.Debug().Err(err).Msg("form contained undecodable pairs")
	}
	return message.ChatMessage{
		Username: form.Get("username"),
		Message:  form.Get("message"),
	}.Trimmed()
}
