package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// Channel is the best-effort face of a Notifier: nothing it does returns an
// error, failures are logged and counted through OnFailure.
type Channel struct {
	notifier  Notifier
	timeout   time.Duration
	OnFailure func(notifier string, err error)
}

func NewChannel(n Notifier, timeout time.Duration) *Channel {
	if n == nil {
		n = Nop{}
	}
	return &Channel{notifier: n, timeout: timeout}
}

// Name of the underlying notifier.
func (c *Channel) Name() string {
	return c.notifier.Name()
}

// Text sends a message.
func (c *Channel) Text(ctx context.Context, message string, format Format) {
	c.do(ctx, "text", func(ctx context.Context) error {
		return c.notifier.SendText(ctx, message, format)
	})
}

// Document sends the file at path.
func (c *Channel) Document(ctx context.Context, path, caption string) {
	c.do(ctx, "document", func(ctx context.Context) error {
		return c.notifier.SendDocument(ctx, path, caption)
	})
}

func (c *Channel) do(ctx context.Context, kind string, send func(context.Context) error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError{r}
			}
		}()
		return send(ctx)
	}()
	if err == nil {
		return
	}
	logger.Warn("notification failed",
		zap.String("notifier", c.notifier.Name()),
		zap.String("kind", kind),
		zap.Error(err))
	if c.OnFailure != nil {
		c.OnFailure(c.notifier.Name(), err)
	}
}

type panicError struct{ v any }

func (p panicError) Error() string {
	return fmt.Sprintf("notifier panic: %v", p.v)
}
