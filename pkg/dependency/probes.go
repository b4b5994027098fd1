package dependency

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
)

const DefaultProbeTimeout = 5 * time.Second

// TemplateInspector reports whether the index template is installed and matches the expected schema.
type TemplateInspector interface {
	TemplateInstalled(ctx context.Context) (bool, error)
}

// Pinger completes a connection handshake with a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type templateProbe struct {
	inspector TemplateInspector
	timeout   time.Duration
}

func NewTemplateProbe(inspector TemplateInspector, timeout time.Duration) Probe {
	return &templateProbe{inspector: inspector, timeout: orDefault(timeout)}
}

func (p *templateProbe) Name() string {
	return "search-index-template"
}

func (p *templateProbe) Check(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	installed, err := p.inspector.TemplateInstalled(ctx)
	if err != nil {
		return false, fmt.Sprintf("Template lookup failed: %v", err)
	}
	if !installed {
		return false, "Index template is missing or does not match the expected schema, run install first"
	}
	return true, "Index template installed"
}

type pingProbe struct {
	name    string
	pinger  Pinger
	timeout time.Duration
}

func NewPingProbe(name string, pinger Pinger, timeout time.Duration) Probe {
	return &pingProbe{name: name, pinger: pinger, timeout: orDefault(timeout)}
}

func (p *pingProbe) Name() string {
	return p.name
}

func (p *pingProbe) Check(ctx context.Context) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pinger.Ping(ctx); err != nil {
		return false, fmt.Sprintf("Connection failed: %v", err)
	}
	return true, "Connection successful"
}

type MessageQueueConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func DefaultMessageQueueConfig() MessageQueueConfig {
	return MessageQueueConfig{
		URL:     natsgo.DefaultURL,
		Timeout: DefaultProbeTimeout,
	}
}

type natsProbe struct {
	config MessageQueueConfig
}

// NewNATSProbe connects to the message queue once, flushes to complete the
// handshake and disconnects. It never reconnects.
func NewNATSProbe(config MessageQueueConfig) Probe {
	config.Timeout = orDefault(config.Timeout)
	return &natsProbe{config: config}
}

func (p *natsProbe) Name() string {
	return "message-queue"
}

func (p *natsProbe) Check(ctx context.Context) (bool, string) {
	timeout := p.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	nc, err := natsgo.Connect(p.config.URL,
		natsgo.Name("watchad-controller-check"),
		natsgo.Timeout(timeout),
		natsgo.NoReconnect(),
	)
	if err != nil {
		return false, fmt.Sprintf("Message queue connection failed: %v", err)
	}
	defer nc.Close()

	if err := nc.FlushTimeout(timeout); err != nil {
		return false, fmt.Sprintf("Message queue handshake failed: %v", err)
	}
	return true, fmt.Sprintf("Message queue connection successful to %s", nc.ConnectedUrlRedacted())
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultProbeTimeout
	}
	return timeout
}
