// Package console lets the server operator take part in the chat from a local
// text stream. Each non-blank line becomes a message from the server identity
// and reaches every connected client.
package console

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobbychat/internal/core"
)

// Sender is the part of the hub the console needs.
type Sender interface {
	Send(ctx context.Context, msg core.Message, origin *core.Client, serverOrigin bool) (*core.Message, error)
}

// Console reads operator lines and broadcasts them.
type Console struct {
	sender   Sender
	input    io.Reader
	identity string
	session  *core.Client
	maxLine  int
	now      func() time.Time
	log      zerolog.Logger
}

// New builds a console that speaks as identity.
func New(sender Sender, input io.Reader, identity string, logger *zerolog.Logger) *Console {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "console").Str("user_id", identity).Logger()
	}
	return &Console{
		sender:   sender,
		input:    input,
		identity: identity,
		session:  core.NewClient("console"),
		maxLine:  bufio.MaxScanTokenSize,
		now:      time.Now,
		log:      log,
	}
}

// WithMaxLineBytes sets the longest line that becomes a message.
// Longer lines are skipped and reading continues. Non-positive n keeps the default.
func (c *Console) WithMaxLineBytes(n int) *Console {
	if n > 0 {
		c.maxLine = n
	}
	return c
}

// Run consumes input until EOF or ctx cancellation. Send failures are logged and skipped.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.input)
		scanner.Buffer(make([]byte, 0, min(c.maxLine+2, 4096)), c.maxLine+2)
		scanner.Split(boundedLines(c.maxLine, func() {
			c.log.Warn().Int("max_bytes", c.maxLine).Msg("console line too long, skipped")
		}))
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.log.Info().Msg("console input channel ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.log.Info().Msg("console input closed")
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			c.post(ctx, line)
		}
	}
}

func (c *Console) post(ctx context.Context, line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}

	msg := core.Message{
		Text:      text,
		User:      core.Author{UserID: c.identity},
		CreatedAt: c.now(),
	}
	if _, err := c.sender.Send(ctx, msg, c.session, true); err != nil {
		c.log.Error().Err(err).Msg("console message not delivered")
	}
}

// boundedLines splits like bufio.ScanLines but drops lines longer than maxLine
// instead of failing, so one oversized line does not end the input.
func boundedLines(maxLine int, skipped func()) bufio.SplitFunc {
	discarding := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if discarding {
			if i := bytes.IndexByte(data, '\n'); i >= 0 {
				discarding = false
				return i + 1, nil, nil
			}
			return len(data), nil, nil
		}

		advance, token, err := bufio.ScanLines(data, atEOF)
		if err != nil {
			return 0, nil, err
		}
		if advance > 0 || token != nil {
			if len(token) > maxLine {
				skipped()
				return advance, nil, nil
			}
			return advance, token, nil
		}
		if len(data) > maxLine {
			// no line end yet; drop up to the next newline
			discarding = true
			skipped()
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
}
