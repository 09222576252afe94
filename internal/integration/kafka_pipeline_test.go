//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/park-access/internal/adapter/kafka"
	"github.com/couchcryptid/park-access/internal/config"
	"github.com/couchcryptid/park-access/internal/observability"
	"github.com/couchcryptid/park-access/internal/pipeline"
	"github.com/couchcryptid/park-access/internal/synth"
)

const testTopic = "test-park-access"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("park-access-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

type publishedMessage struct {
	Key     string
	Value   map[string]any
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from results topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var value map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &value), "unmarshal result message")
	return publishedMessage{Key: string(msg.Key), Value: value, Headers: headers}
}

// TestPipelinePublishesToKafka runs the synthetic city through the pipeline
// with a real broker and reads every area unit and region back.
func TestPipelinePublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	metrics := observability.NewMetricsForTesting()
	publisher := kafka.NewPublisher(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = publisher.Close() })

	city, err := synth.NewCity(synth.DefaultOptions())
	require.NoError(t, err)

	settings := pipeline.DefaultSettings()
	settings.BudgetMinutes = 5
	settings.MaxSnapDistanceM = 200
	p := pipeline.New(settings, discardLogger(), metrics, publisher)

	res, err := p.Run(ctx, pipeline.Inputs{
		Graph:     city.Graph,
		POIs:      city.POIs,
		AreaUnits: city.AreaUnits,
		Regions:   city.Regions,
	})
	require.NoError(t, err)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	want := len(res.AreaUnits) + len(res.Regions)
	counts := map[string]int{}
	keys := map[string]bool{}
	for range want {
		m := readPublished(ctx, t, consumer)
		counts[m.Headers["record_type"]]++
		keys[m.Key] = true

		assert.Equal(t, res.RunID, m.Headers["run_id"])
		assert.Equal(t, "5", m.Headers["budget_minutes"])
		_, err := time.Parse(time.RFC3339, m.Headers["generated_at"])
		assert.NoError(t, err, "generated_at should be valid RFC3339")
		assert.Equal(t, res.RunID, m.Value["run_id"])
	}

	assert.Equal(t, len(res.AreaUnits), counts[kafka.RecordAreaUnit])
	assert.Equal(t, len(res.Regions), counts[kafka.RecordRegion])
	for _, u := range res.AreaUnits {
		assert.True(t, keys[u.Unit.ID], "missing area unit %s", u.Unit.ID)
	}
	for _, rc := range res.Regions {
		assert.True(t, keys[rc.Region.Name], "missing region %s", rc.Region.Name)
	}
}
