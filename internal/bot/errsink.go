package bot

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

const (
	// Repeated gateway faults (rate limits, bad upstream) collapse into
	// one alert per window.
	gatewayAlertWindow = 20 * time.Second
	timeoutAlertWindow = time.Minute
)

// ErrorSink classifies transport errors from the Bot API and throttles
// the noisy recurring kinds so the log stays readable during outages.
// The bot token never reaches the log.
type ErrorSink struct {
	mu               sync.Mutex
	token            string
	lastGatewayAlert time.Time
	lastTimeoutAlert time.Time

	now func() time.Time
}

func NewErrorSink(token string) *ErrorSink {
	return &ErrorSink{token: token, now: time.Now}
}

// Handle logs one transport error. op names the Bot API method that
// failed.
func (s *ErrorSink) Handle(op string, err error) {
	if err == nil {
		return
	}
	text := s.redact(err.Error())

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 502:
			if s.shouldAlert(&s.lastGatewayAlert, gatewayAlertWindow) {
				logger.Warn("telegram gateway degraded", "op", op, "code", apiErr.Code, "error", text)
			}
		default:
			logger.Error("telegram api error", "op", op, "code", apiErr.Code, "error", text)
		}
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		if s.shouldAlert(&s.lastTimeoutAlert, timeoutAlertWindow) {
			logger.Warn("telegram request timed out", "op", op, "error", text)
		}
		return
	}

	logger.Error("telegram transport error", "op", op, "kind", fmt.Sprintf("%T", err), "error", text)
}

func (s *ErrorSink) shouldAlert(last *time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(*last) < window {
		return false
	}
	*last = now
	return true
}

func (s *ErrorSink) redact(text string) string {
	if s.token == "" {
		return text
	}
	return strings.ReplaceAll(text, s.token, "<BOT_TOKEN>")
}
