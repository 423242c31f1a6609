package channel

import (
	"context"

	"smsbridge/pkg/activity"
)

// Adapter bridges one carrier to canonical activities. A single adapter owns a
// single carrier session.
type Adapter interface {
	ServiceName() string
	ServiceID() string
	Connected() bool

	Connect(ctx context.Context) (activity.Confirmation, error)
	Disconnect(ctx context.Context) error

	// Receive streams validated inbound activities until ctx ends.
	Receive(ctx context.Context) (<-chan activity.Activity, error)
	Send(ctx context.Context, doc activity.Activity) (activity.Confirmation, error)

	Users(ctx context.Context) ([]activity.Entity, error)
	Channels(ctx context.Context) ([]activity.Entity, error)
}
