package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	subjectTaskPublished     = "tasks.published"
	subjectEnrollmentChanged = "enrollments.changed"
	provisionQueueGroup      = "lingua-provisioner"
)

// NATSDispatcher publishes provisioning events to NATS subjects and, once
// started, queue-subscribes the registered handler so exactly one worker in
// the group processes each delivery. Redelivery is safe because all handler
// writes are idempotent upserts.
type NATSDispatcher struct {
	conn          *nats.Conn
	subjectPrefix string
	handler       Handler
	logger        zerolog.Logger
	subs          []*nats.Subscription
}

// NewNATSDispatcher builds a dispatcher bound to its handler. The handler is
// registered here, at construction, not discovered at runtime.
func NewNATSDispatcher(conn *nats.Conn, subjectPrefix string, handler Handler, logger zerolog.Logger) *NATSDispatcher {
	prefix := strings.TrimSuffix(subjectPrefix, ".")
	if prefix == "" {
		prefix = "lingua"
	}

	return &NATSDispatcher{
		conn:          conn,
		subjectPrefix: prefix,
		handler:       handler,
		logger:        logger.With().Str("component", "event_dispatcher").Logger(),
	}
}

// DispatchTaskPublished publishes the event for asynchronous processing.
func (d *NATSDispatcher) DispatchTaskPublished(_ context.Context, event TaskPublished) error {
	return d.publish(d.subject(subjectTaskPublished), event)
}

// DispatchEnrollmentChanged publishes the event for asynchronous processing.
func (d *NATSDispatcher) DispatchEnrollmentChanged(_ context.Context, event EnrollmentChanged) error {
	return d.publish(d.subject(subjectEnrollmentChanged), event)
}

// Start subscribes the handler to both provisioning subjects. Processing
// errors are logged and the message dropped; the emitting side re-publishes
// on retry, and duplicate deliveries are no-ops.
func (d *NATSDispatcher) Start(ctx context.Context) error {
	taskSub, err := d.conn.QueueSubscribe(d.subject(subjectTaskPublished), provisionQueueGroup, func(msg *nats.Msg) {
		var event TaskPublished
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			d.logger.Error().Err(err).Msg("malformed task published event")
			return
		}
		if err := d.handler.HandleTaskPublished(ctx, event); err != nil {
			d.logger.Error().Err(err).Uint("task_id", event.TaskID).Uint("class_id", event.ClassID).Msg("task published handler failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to task events: %w", err)
	}
	d.subs = append(d.subs, taskSub)

	enrollmentSub, err := d.conn.QueueSubscribe(d.subject(subjectEnrollmentChanged), provisionQueueGroup, func(msg *nats.Msg) {
		var event EnrollmentChanged
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			d.logger.Error().Err(err).Msg("malformed enrollment event")
			return
		}
		if err := d.handler.HandleEnrollmentChanged(ctx, event); err != nil {
			d.logger.Error().Err(err).Uint("student_id", event.StudentID).Uint("class_id", event.ClassID).Msg("enrollment handler failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to enrollment events: %w", err)
	}
	d.subs = append(d.subs, enrollmentSub)

	return nil
}

// Stop drains the subscriptions.
func (d *NATSDispatcher) Stop() {
	for _, sub := range d.subs {
		if err := sub.Drain(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to drain subscription")
		}
	}
	d.subs = nil
}

func (d *NATSDispatcher) subject(suffix string) string {
	return d.subjectPrefix + "." + suffix
}

func (d *NATSDispatcher) publish(subject string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := d.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	return nil
}
