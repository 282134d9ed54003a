package manager

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// DefaultEventSubject is the NATS subject lifecycle events go to.
const DefaultEventSubject = "inferd.events"

// eventMessage is the JSON body published for each Event.
type eventMessage struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	ModelDir string         `json:"model_dir,omitempty"`
	Time     time.Time      `json:"time"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// NATSPublisher publishes events as JSON on a NATS subject. Publish errors
// are logged and dropped.
type NATSPublisher struct {
	subject string
	publish func(subject string, data []byte) error
	log     zerolog.Logger
	now     func() time.Time
}

// NewNATSPublisher publishes on nc. An empty subject means DefaultEventSubject.
func NewNATSPublisher(nc *nats.Conn, subject string, log zerolog.Logger) *NATSPublisher {
	return newNATSPublisher(nc.Publish, subject, log)
}

func newNATSPublisher(publish func(string, []byte) error, subject string, log zerolog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultEventSubject
	}
	return &NATSPublisher{subject: subject, publish: publish, log: log, now: time.Now}
}

func (p *NATSPublisher) Publish(e Event) {
	msg := eventMessage{
		ID:       ulid.Make().String(),
		Name:     e.Name,
		ModelDir: e.ModelDir,
		Time:     p.now().UTC(),
		Fields:   e.Fields,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn().Err(err).Str("event", e.Name).Msg("encode event")
		return
	}
	if err := p.publish(p.subject, data); err != nil {
		p.log.Warn().Err(err).Str("event", e.Name).Str("subject", p.subject).Msg("publish event")
	}
}

// ConnectNATS dials url with the client name used for inferd connections.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("inferd"), nats.MaxReconnects(-1))
}
