// Package events publishes search lifecycle and progress events over NATS.
package events

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/config"
	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/search"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// DefaultSubjectPrefix namespaces every subject
const DefaultSubjectPrefix = "paramsearch"

// EventType identifies what happened
type EventType string

const (
	EventStarted  EventType = "started"
	EventProgress EventType = "progress"
	EventFinished EventType = "finished"
)

// BestStrategy is the best resident strategy at the time of an event
type BestStrategy struct {
	Rating  float64                  `json:"rating"`
	Config  paramspace.Configuration `json:"config"`
	Metrics selector.Metrics         `json:"metrics"`
}

// Event is the JSON payload published for every lifecycle change
type Event struct {
	ID        uuid.UUID        `json:"id"`
	Type      EventType        `json:"type"`
	SearchID  string           `json:"search_id"`
	Mode      search.Mode      `json:"mode"`
	Progress  *search.Progress `json:"progress,omitempty"`
	Status    string           `json:"status,omitempty"`
	Resident  int              `json:"resident,omitempty"`
	Best      *BestStrategy    `json:"best,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Subject returns "<prefix>.<search_id>.<type>"
func Subject(prefix, searchID string, t EventType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, searchID, t)
}

// Publisher turns observer callbacks into NATS messages. Publish failures
// are logged and never reach the search.
type Publisher struct {
	search.NopObserver

	nc     *nats.Conn
	prefix string
}

var _ search.Observer = (*Publisher)(nil)

// Connect dials NATS with the reconnect policy used by long-running searches
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("paramsearch-optimizer"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher publishes on nc under prefix
func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	log.Info().
		Str("prefix", prefix).
		Msg("Event publisher initialized")

	return &Publisher{nc: nc, prefix: prefix}
}

// SearchStarted implements search.Observer
func (p *Publisher) SearchStarted(id string, mode search.Mode, total int64) {
	p.publish(Event{
		Type:     EventStarted,
		SearchID: id,
		Mode:     mode,
		Progress: &search.Progress{Total: total},
	})
}

// ProgressUpdated implements search.Observer
func (p *Publisher) ProgressUpdated(id string, mode search.Mode, progress search.Progress, best *selector.Strategy) {
	p.publish(Event{
		Type:     EventProgress,
		SearchID: id,
		Mode:     mode,
		Progress: &progress,
		Best:     bestOf(best),
	})
}

// SearchFinished implements search.Observer
func (p *Publisher) SearchFinished(id string, mode search.Mode, status search.Status, resident int) {
	p.publish(Event{
		Type:     EventFinished,
		SearchID: id,
		Mode:     mode,
		Status:   status.String(),
		Resident: resident,
	})
	if err := p.nc.Flush(); err != nil {
		log.Warn().Err(err).Str("search_id", id).Msg("Failed to flush search events")
	}
}

func (p *Publisher) publish(e Event) {
	e.ID = uuid.New()
	e.Timestamp = time.Now()

	data, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Str("search_id", e.SearchID).Msg("Failed to marshal search event")
		return
	}

	subject := Subject(p.prefix, e.SearchID, e.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Warn().
			Err(err).
			Str("subject", subject).
			Msg("Failed to publish search event")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("type", string(e.Type)).
		Msg("Published search event")
}

// Subscribe delivers every event under prefix to handler; malformed
// messages are logged and dropped.
func Subscribe(nc *nats.Conn, prefix string, handler func(Event)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	sub, err := nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping malformed search event")
			return
		}
		handler(e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to search events: %w", err)
	}
	return sub, nil
}

func bestOf(s *selector.Strategy) *BestStrategy {
	if s == nil || isNonFinite(s.Rating()) {
		return nil
	}
	return &BestStrategy{Rating: s.Rating(), Config: s.Config(), Metrics: finite(s.Metrics())}
}

// finite drops NaN and infinite values, which JSON cannot carry
func finite(m selector.Metrics) selector.Metrics {
	out := make(selector.Metrics, len(m))
	for k, v := range m {
		if !isNonFinite(v) {
			out[k] = v
		}
	}
	return out
}

func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
