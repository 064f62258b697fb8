// Package grading forwards raw student answers to the external grading
// service. The core never inspects or normalizes answer text; it only
// ships it upstream with a signed envelope.
package grading

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/slidecast/core/internal/modules/notify"
	"go.uber.org/zap"
)

const eventUnlockRequest = "UNLOCK_REQUEST"

// Upstream posts submissions to a configured grading endpoint. Delivery is
// fire-and-forget: a failed POST is logged and dropped, matching the
// at-most-once discipline of the notify channel itself.
type Upstream struct {
	url    string
	secret string
	client *http.Client
	logger *zap.Logger
}

// NewUpstream builds a forwarder for the given endpoint. Secret signs each
// payload with HMAC-SHA256.
func NewUpstream(url, secret string, logger *zap.Logger) *Upstream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upstream{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type submissionPayload struct {
	Room       string `json:"room"`
	Slide      int    `json:"slide"`
	Step       int    `json:"step"`
	Answer     string `json:"answer"`
	StudentID  string `json:"studentId,omitempty"`
	ReceivedAt int64  `json:"receivedAt"`
}

// Forward implements notify.Forwarder.
func (u *Upstream) Forward(room string, req notify.UnlockRequest) {
	go u.deliver(room, req)
}

func (u *Upstream) deliver(room string, req notify.UnlockRequest) {
	body, err := json.Marshal(submissionPayload{
		Room:       room,
		Slide:      req.Slide,
		Step:       req.Step,
		Answer:     req.Answer,
		StudentID:  req.StudentID,
		ReceivedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	httpReq, err := http.NewRequest(http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		u.logger.Warn("grading forward failed", zap.String("room", room), zap.Error(err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Slidecast-Event", eventUnlockRequest)
	httpReq.Header.Set("X-Slidecast-Timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	httpReq.Header.Set("X-Slidecast-Signature-256", Sign(u.secret, body))

	resp, err := u.client.Do(httpReq)
	if err != nil {
		u.logger.Warn("grading forward failed", zap.String("room", room), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.logger.Warn("grading upstream rejected submission",
			zap.String("room", room), zap.Int("status", resp.StatusCode))
		return
	}
	u.logger.Debug("submission forwarded", zap.String("room", room), zap.Int("slide", req.Slide))
}

// Sign computes the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
