// Package activitymap turns credential activity events into a flat record
// that audit logs and downstream consumers can store as is.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-logger/glog"

	auth "github.com/goliatone/go-credentials"
)

const (
	// MetadataKeyEmail stores the normalized email the event was about.
	MetadataKeyEmail = "email"
	// MetadataKeyReason stores the rejection reason of failure events.
	MetadataKeyReason = "reason"
	// MetadataKeyOutcome stores success or failure.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "credentials"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(auth.ActivityEvent) string
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
// Failed sign ins have no user id, the actor falls back to anonymous.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event has no user id.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink writes every event as one structured log line
func LogSink(logger glog.Logger, opts ...Option) auth.ActivitySink {
	logger = glog.Ensure(logger)

	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		n := Normalize(event, opts...)

		attrs := []any{
			"actor_id", n.ActorID,
			"verb", n.Verb,
			"object_type", n.ObjectType,
			"channel", n.Channel,
			"occurred_at", n.OccurredAt,
		}
		if n.ObjectID != "" {
			attrs = append(attrs, "object_id", n.ObjectID)
		}
		if len(n.Metadata) > 0 {
			attrs = append(attrs, "metadata", n.Metadata)
		}

		logger.WithContext(ctx).Info("activity", attrs...)
		return nil
	})
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event auth.ActivityEvent, resolver func(auth.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if email := strings.TrimSpace(event.Email); email != "" {
		if _, exists := metadata[MetadataKeyEmail]; !exists {
			metadata[MetadataKeyEmail] = email
		}
	}

	if reason := strings.TrimSpace(event.Reason); reason != "" {
		metadata[MetadataKeyReason] = reason
	}

	if outcome := outcomeOf(event.EventType); outcome != "" {
		metadata[MetadataKeyOutcome] = outcome
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func outcomeOf(t auth.ActivityEventType) string {
	switch t {
	case auth.ActivityEventSignInSuccess, auth.ActivityEventSignUpSuccess:
		return "success"
	case auth.ActivityEventSignInFailure, auth.ActivityEventSignUpFailure:
		return "failure"
	default:
		return ""
	}
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
