package nexmo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/bus"
	"smsbridge/pkg/carrier"
	"smsbridge/pkg/schema"
)

// ServiceName identifies the carrier in generators and logs.
const ServiceName = "nexmo"

// Client is the single carrier operation the adapter needs.
type Client interface {
	SendSMS(ctx context.Context, params carrier.SendParams) (carrier.SendResponse, error)
}

// ClientFactory builds a carrier client from credentials without network access.
type ClientFactory func(apiKey, apiSecret string) (Client, error)

// Listener is the inbound webhook server started on Connect and stopped on Disconnect.
type Listener interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures an Adapter. Only APIKey/APISecret are checked, and only on Connect.
type Options struct {
	ID        string
	APIKey    string
	APISecret string
	// From is the sender used when a send activity carries no actor.
	From string

	Validator     schema.Validator
	ClientFactory ClientFactory
	// Listener and Bus enable the receive path; Bus also carries adapter events.
	Listener Listener
	Bus      *bus.MessageBus
	Logger   *slog.Logger
}

// session is the mutable connection state exclusively owned by the adapter.
type session struct {
	apiKey    string
	apiSecret string
	connected bool
	listening bool
	client    Client
}

// Adapter is the Nexmo SMS adapter state machine: disconnected <-> connected.
type Adapter struct {
	id        string
	from      string
	validator schema.Validator
	newClient ClientFactory
	listener  Listener
	bus       *bus.MessageBus
	log       *slog.Logger

	mu      sync.Mutex
	session session
}

// NewAdapter builds a disconnected adapter. An empty ID is replaced by a random one.
func NewAdapter(opts Options) (*Adapter, error) {
	if opts.Listener != nil && opts.Bus == nil {
		return nil, errors.New("nexmo: a listener requires a message bus")
	}

	validator := opts.Validator
	if validator == nil {
		jsonValidator, err := schema.NewJSONValidator()
		if err != nil {
			return nil, fmt.Errorf("nexmo: load schemas: %w", err)
		}
		validator = jsonValidator
	}

	newClient := opts.ClientFactory
	if newClient == nil {
		newClient = func(apiKey, apiSecret string) (Client, error) {
			return carrier.NewClient(apiKey, apiSecret)
		}
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		id:        id,
		from:      strings.TrimSpace(opts.From),
		validator: validator,
		newClient: newClient,
		listener:  opts.Listener,
		bus:       opts.Bus,
		log:       log.With("component", "channel.nexmo", "service_id", id),
		session: session{
			apiKey:    strings.TrimSpace(opts.APIKey),
			apiSecret: strings.TrimSpace(opts.APISecret),
		},
	}, nil
}

func (a *Adapter) ServiceName() string {
	return ServiceName
}

func (a *Adapter) ServiceID() string {
	return a.id
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.connected
}

// Connect validates credentials, builds the carrier client and starts the
// listener. Connecting a connected adapter returns the same confirmation.
func (a *Adapter) Connect(ctx context.Context) (activity.Confirmation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.connected {
		return a.connectedConfirmation(), nil
	}

	if a.session.apiKey == "" {
		return activity.Confirmation{}, ErrTokenMissing
	}
	if a.session.apiSecret == "" {
		return activity.Confirmation{}, ErrTokenSecretMissing
	}

	client, err := a.newClient(a.session.apiKey, a.session.apiSecret)
	if err != nil {
		return activity.Confirmation{}, fmt.Errorf("create carrier client: %w", err)
	}

	if a.listener != nil {
		if err := a.listener.Start(ctx); err != nil {
			return activity.Confirmation{}, fmt.Errorf("start webhook listener: %w", err)
		}
		a.session.listening = true
	}

	a.session.client = client
	a.session.connected = true

	a.log.Info("Adapter connected", "listening", a.session.listening)
	a.publish(bus.Event{Type: bus.EventConnected})

	return a.connectedConfirmation(), nil
}

// Disconnect drops the carrier client and stops the listener if it is running.
// The listener's shutdown error, if any, is returned.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	wasConnected := a.session.connected
	listening := a.session.listening
	a.session.connected = false
	a.session.listening = false
	a.session.client = nil
	a.mu.Unlock()

	if wasConnected {
		a.log.Info("Adapter disconnected")
		a.publish(bus.Event{Type: bus.EventDisconnected})
	}

	if !listening {
		return nil
	}
	if err := a.listener.Stop(ctx); err != nil {
		return fmt.Errorf("stop webhook listener: %w", err)
	}
	return nil
}

// Receive starts a stream of validated inbound activities. Records are
// processed one at a time in arrival order; records failing validation are
// logged and dropped. The channel closes when ctx ends or the bus closes.
func (a *Adapter) Receive(ctx context.Context) (<-chan activity.Activity, error) {
	if a.listener == nil {
		return nil, ErrNoListener
	}
	if ctx == nil {
		ctx = context.Background()
	}

	out := make(chan activity.Activity)
	go a.receiveLoop(ctx, out)
	return out, nil
}

func (a *Adapter) receiveLoop(ctx context.Context, out chan<- activity.Activity) {
	defer close(out)

	for {
		rec, ok := a.bus.ConsumeRecord(ctx)
		if !ok {
			return
		}

		doc, err := a.normalizeAndValidate(ctx, rec)
		if err != nil {
			a.log.Warn("Dropped inbound record", "message_id", rec.MessageID, "error", err)
			a.publish(bus.Event{Type: bus.EventDropped, MessageID: rec.MessageID, Error: err.Error()})
			continue
		}

		a.log.Debug("Received message", "message_id", rec.MessageID, "from", doc.Actor.ID)
		a.publish(bus.Event{Type: bus.EventReceived, MessageID: rec.MessageID})

		select {
		case <-ctx.Done():
			return
		case out <- doc:
		}
	}
}

func (a *Adapter) normalizeAndValidate(ctx context.Context, rec activity.RawRecord) (activity.Activity, error) {
	candidate := Normalize(rec, a.generator())
	if err := a.validator.Validate(ctx, candidate, activity.DirectionReceive); err != nil {
		return activity.Activity{}, err
	}
	return candidate, nil
}

// Send validates doc, maps it onto a carrier call and returns the provider
// message ids. Failures at any stage are returned unchanged; nothing is retried.
func (a *Adapter) Send(ctx context.Context, doc activity.Activity) (activity.Confirmation, error) {
	doc = doc.Clone()

	conf, err := a.send(ctx, doc)
	if err != nil {
		a.log.Warn("Send failed", "error", err)
		a.publish(bus.Event{Type: bus.EventSendFailed, Error: err.Error()})
		return activity.Confirmation{}, err
	}

	a.log.Info("Message sent", "ids", strings.Join(conf.IDs, ","))
	a.publish(bus.Event{Type: bus.EventSent, MessageID: strings.Join(conf.IDs, ",")})
	return conf, nil
}

func (a *Adapter) send(ctx context.Context, doc activity.Activity) (activity.Confirmation, error) {
	if typ, ok := unsupportedType(doc); ok {
		a.log.Debug("Rejected send activity", "type", typ, "known_type", activity.IsKnownType(typ))
		return activity.Confirmation{}, ErrOnlyNote
	}

	if err := a.validator.Validate(ctx, doc, activity.DirectionSend); err != nil {
		return activity.Confirmation{}, err
	}

	params, err := ToSendParams(doc, a.defaultFrom())
	if err != nil {
		return activity.Confirmation{}, err
	}

	a.mu.Lock()
	client := a.session.client
	a.mu.Unlock()
	if client == nil {
		return activity.Confirmation{}, ErrNotConnected
	}

	resp, err := client.SendSMS(ctx, params)
	if err != nil {
		return activity.Confirmation{}, err
	}

	return ToConfirmation(a.id, resp), nil
}

// Users is not offered by the carrier.
func (a *Adapter) Users(context.Context) ([]activity.Entity, error) {
	return nil, ErrNotSupported
}

// Channels is not offered by the carrier.
func (a *Adapter) Channels(context.Context) ([]activity.Entity, error) {
	return nil, ErrNotSupported
}

func (a *Adapter) connectedConfirmation() activity.Confirmation {
	return activity.Confirmation{Type: activity.ConfirmationConnected, ServiceID: a.id}
}

func (a *Adapter) generator() activity.Generator {
	return activity.Generator{Name: ServiceName, ID: a.id}
}

func (a *Adapter) defaultFrom() string {
	if a.from != "" {
		return a.from
	}
	return ServiceName
}

func (a *Adapter) publish(event bus.Event) {
	if a.bus == nil {
		return
	}
	event.ServiceID = a.id
	a.bus.PublishEvent(event)
}
