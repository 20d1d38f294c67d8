// Package notifications fans alerts out to the configured delivery channels.
package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thatsimonsguy/watchpower-monitor/internal/datadog"
	"github.com/thatsimonsguy/watchpower-monitor/internal/model"
)

// Channel delivers one alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert model.Alert) error
}

// Outcome is the delivery result for a single channel.
type Outcome struct {
	Channel string        `json:"channel"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
}

func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{channels: channels, timeout: timeout}
}

func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		names = append(names, c.Name())
	}
	return names
}

// Send delivers the alert on every channel concurrently and waits for all of
// them. A failing channel never stops the others; failures are only logged.
func (d *Dispatcher) Send(ctx context.Context, alert model.Alert) []Outcome {
	if len(d.channels) == 0 {
		log.Warn().Str("kind", string(alert.Kind)).Str("title", alert.Title).Msg("No notification channels configured")
		return nil
	}

	outcomes := make([]Outcome, len(d.channels))
	var grp errgroup.Group
	for i, ch := range d.channels {
		i, ch := i, ch
		grp.Go(func() error {
			outcomes[i] = d.deliver(ctx, ch, alert)
			return nil
		})
	}
	_ = grp.Wait()

	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, alert model.Alert) (out Outcome) {
	out.Channel = ch.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("channel panicked: %v", r)
		}
		out.Elapsed = time.Since(start)
		if out.Err != nil {
			out.Error = out.Err.Error()
			datadog.Incr("notifications.failed", "channel:"+out.Channel)
			log.Error().Err(out.Err).
				Str("channel", out.Channel).
				Str("kind", string(alert.Kind)).
				Msg("Notification delivery failed")
			return
		}
		datadog.Incr("notifications.sent", "channel:"+out.Channel)
		log.Debug().
			Str("channel", out.Channel).
			Str("kind", string(alert.Kind)).
			Dur("elapsed", out.Elapsed).
			Msg("Notification sent successfully")
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	out.Err = ch.Send(sendCtx, alert)
	return out
}

// FormatText renders an alert as plain text: message first, then fields in
// key order.
func FormatText(alert model.Alert) string {
	var b strings.Builder
	b.WriteString(alert.Message)

	keys := make([]string, 0, len(alert.Fields))
	for k := range alert.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, alert.Fields[k])
	}
	return b.String()
}
