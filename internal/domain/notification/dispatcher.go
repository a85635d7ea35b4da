package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"provision/pkg/logger"
)

// Dispatcher fans events out to matching subscriptions.
// Publish is fire-and-forget: it spawns a goroutine and returns immediately,
// so posting transactions never wait on delivery. Failures are logged only.
type Dispatcher struct {
	repo  Repository
	rules *RuleEngine
	sinks []Sink
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(repo Repository, rules *RuleEngine, sinks ...Sink) *Dispatcher {
	return &Dispatcher{repo: repo, rules: rules, sinks: sinks}
}

// Publish dispatches an event asynchronously. The payload keys follow the
// rule engine's declared fields; unknown keys still render into the body.
func (d *Dispatcher) Publish(ctx context.Context, event Event, payload map[string]any) {
	// Detach from the request: the caller's tx or HTTP context may be gone
	// by the time delivery runs.
	bg := context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(bg, "notification dispatch panicked", "event", string(event), "panic", r)
			}
		}()
		d.dispatch(bg, event, payload)
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, event Event, payload map[string]any) {
	settings, err := d.repo.ListEnabledByEvent(ctx, event)
	if err != nil {
		logger.Error(ctx, "load notification settings failed", "event", string(event), "error", err)
		return
	}

	for _, setting := range settings {
		matched, err := d.rules.Matches(setting.Rule, payload)
		if err != nil {
			logger.Warn(ctx, "notification rule evaluation failed",
				"setting", setting.Name, "rule", setting.Rule, "error", err)
			continue
		}
		if !matched {
			continue
		}

		msg := renderMessage(event, setting, payload)
		for _, sink := range d.sinks {
			if err := sink.Send(ctx, msg); err != nil {
				logger.Warn(ctx, "notification delivery failed",
					"setting", setting.Name, "sink", sink.Name(), "error", err)
			}
		}
	}
}

func renderMessage(event Event, setting *Setting, payload map[string]any) Message {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, payload[k])
	}

	return Message{
		Event:      event,
		Subject:    fmt.Sprintf("[provision] %s", subjectFor(event, payload)),
		Body:       b.String(),
		Recipients: setting.Recipients,
		Payload:    payload,
	}
}

func subjectFor(event Event, payload map[string]any) string {
	switch event {
	case EventPriceVariance:
		return fmt.Sprintf("price variance on %v", payload["item_code"])
	case EventNCRCreated:
		return fmt.Sprintf("NCR %v raised", payload["number"])
	case EventTransferPending:
		return fmt.Sprintf("transfer %v awaiting approval", payload["number"])
	case EventPeriodClosed:
		return fmt.Sprintf("period %v closed", payload["period_name"])
	case EventStockBelowMin:
		return fmt.Sprintf("low stock: %v at %v", payload["item_code"], payload["location_code"])
	default:
		return string(event)
	}
}
