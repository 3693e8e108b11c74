// Package advisory asks an external collaborator to comment on the processes
// a cycle terminated.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/srodi/loadreaper/pkg/session"
)

// ErrAdvisorUnavailable marks an advisor that could not be reached or did not answer.
var ErrAdvisorUnavailable = errors.New("advisor unavailable")

// DefaultTimeout bounds a single advisory call.
const DefaultTimeout = 45 * time.Second

// Advisor returns free-text commentary about the named processes.
type Advisor interface {
	Advise(ctx context.Context, names []string) (string, error)
}

// Client gates advisory calls on the session and enforces a deadline.
type Client struct {
	advisor Advisor
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient wraps advisor. A non-positive timeout uses DefaultTimeout.
func NewClient(advisor Advisor, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{advisor: advisor, timeout: timeout, logger: logger}
}

// Commentary returns the advisor's text for names. It returns "" without
// calling out when the session has failed or names is empty. Any advisor
// error fails the session.
func (c *Client) Commentary(ctx context.Context, sess *session.Session, names []string) string {
	if c == nil || c.advisor == nil || sess.Failed() || len(names) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("requesting process commentary", zap.Strings("processes", names))
	text, err := c.advisor.Advise(ctx, names)
	if err != nil {
		if !errors.Is(err, ErrAdvisorUnavailable) {
			err = fmt.Errorf("%w: %w", ErrAdvisorUnavailable, err)
		}
		c.logger.Error("process commentary failed", zap.Error(err))
		sess.Fail(err)
		return ""
	}
	return Trim(text)
}

// Trim strips leading and trailing line breaks and leaves everything else untouched.
func Trim(text string) string {
	return strings.Trim(text, "\r\n")
}

// None is an Advisor that never has anything to say.
type None struct{}

// Advise returns no commentary.
func (None) Advise(context.Context, []string) (string, error) {
	return "", nil
}
