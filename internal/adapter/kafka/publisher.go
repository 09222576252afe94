package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/park-access/internal/config"
	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/observability"
	"github.com/couchcryptid/park-access/internal/pipeline"
)

// Record types, sent in the record_type header.
const (
	RecordAreaUnit = "area_unit"
	RecordRegion   = "region"
)

// AreaUnitRecord is the message value for one area unit.
type AreaUnitRecord struct {
	RunID         string    `json:"run_id"`
	BudgetMinutes int       `json:"budget_minutes"`
	GeneratedAt   time.Time `json:"generated_at"`
	AreaID        string    `json:"area_id"`
	Population    float64   `json:"population"`
	domain.CoverageResult
}

// RegionRecord is the message value for one region.
type RegionRecord struct {
	RunID         string    `json:"run_id"`
	BudgetMinutes int       `json:"budget_minutes"`
	GeneratedAt   time.Time `json:"generated_at"`
	Name          string    `json:"name"`
	domain.RegionCoverage
}

// messageWriter is the part of kafkago.Writer the Publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends per-unit and per-region results to a Kafka topic.
// It implements pipeline.Loader.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured results topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// Load publishes every area unit and region of r in a single WriteMessages
// call. Messages are keyed by area ID or region name so results for the same
// item land on the same partition across runs.
func (p *Publisher) Load(ctx context.Context, r *pipeline.Result) error {
	msgs, err := Messages(r)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish results: %w", err)
	}
	p.metrics.ResultsPublished.Add(float64(len(msgs)))
	p.logger.Info("results published", "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Messages serializes the area units and then the regions of r.
func Messages(r *pipeline.Result) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(r.AreaUnits)+len(r.Regions))
	for _, u := range r.AreaUnits {
		rec := AreaUnitRecord{
			RunID:          r.RunID,
			BudgetMinutes:  r.Settings.BudgetMinutes,
			GeneratedAt:    r.GeneratedAt,
			AreaID:         u.Unit.ID,
			Population:     u.Unit.Population,
			CoverageResult: u.CoverageResult,
		}
		msg, err := serializeToMessage(r, RecordAreaUnit, u.Unit.ID, rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, rc := range r.Regions {
		rec := RegionRecord{
			RunID:          r.RunID,
			BudgetMinutes:  r.Settings.BudgetMinutes,
			GeneratedAt:    r.GeneratedAt,
			Name:           rc.Region.Name,
			RegionCoverage: rc,
		}
		msg, err := serializeToMessage(r, RecordRegion, rc.Region.Name, rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func serializeToMessage(r *pipeline.Result, recordType, key string, v any) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s %s: %w", recordType, key, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "run_id", Value: []byte(r.RunID)},
			{Key: "budget_minutes", Value: []byte(strconv.Itoa(r.Settings.BudgetMinutes))},
			{Key: "generated_at", Value: []byte(r.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
