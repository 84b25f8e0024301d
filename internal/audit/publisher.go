package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"platecheck/internal/domain"
)

// Publisher fans decided outcomes out to interested systems (dashboards,
// downstream compliance). Fail-open: the outcome store append is the
// fail-closed path, publishing is best-effort on top of it.
type Publisher interface {
	Publish(ctx context.Context, outcome domain.AuditOutcome)
	Close()
}

// outcomeEnvelope is the JSON wire shape of a published outcome.
type outcomeEnvelope struct {
	ID          string `json:"id"`
	Plate       string `json:"plate"`
	VehicleName string `json:"vehicle_name,omitempty"`
	DecidedAt   string `json:"decided_at"`
	Result      string `json:"result"`
	Problem     string `json:"problem,omitempty"`
	Auditor     string `json:"auditor"`
}

// KafkaPublisher produces outcome events keyed by plate so per-vehicle
// ordering is preserved within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, outcome domain.AuditOutcome) {
	payload, err := json.Marshal(outcomeEnvelope{
		ID:          outcome.ID,
		Plate:       outcome.Plate,
		VehicleName: outcome.VehicleNameSnapshot,
		DecidedAt:   outcome.Timestamp.UTC().Format(time.RFC3339Nano),
		Result:      string(outcome.Result),
		Problem:     outcome.ProblemDescription,
		Auditor:     outcome.AuditorIdentity,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "encode outcome event", "outcome_id", outcome.ID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(outcome.Plate),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("publish outcome event",
				"outcome_id", outcome.ID,
				"plate", outcome.Plate,
				"error", err,
			)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.AuditOutcome) {}
func (NopPublisher) Close()                                       {}
