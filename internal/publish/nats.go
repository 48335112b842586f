package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/LdDl/sort-go/internal/pipeline"
	"github.com/LdDl/sort-go/mot"
)

// FrameEvent is the message published for every processed frame
type FrameEvent struct {
	RunID  string              `json:"run_id"`
	Frame  int64               `json:"frame"`
	Tracks []mot.TrackedObject `json:"tracks"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes tracker results to NATS subject <prefix>.<run_id>
type NATSSink struct {
	conn    *nats.Conn
	pub     publisher
	prefix  string
	logger  *zap.Logger
	skipped int
}

// Connect opens connection to NATS server and returns sink over it
func Connect(url, prefix string, reconnectWait time.Duration, logger *zap.Logger) (*NATSSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("sorttrack"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	sink := newNATSSink(nc, prefix, logger)
	sink.conn = nc
	return sink, nil
}

func newNATSSink(pub publisher, prefix string, logger *zap.Logger) *NATSSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Subject returns subject for the run
func (sink *NATSSink) Subject(runID string) string {
	return fmt.Sprintf("%s.%s", sink.prefix, runID)
}

// Consume implements pipeline.Sink. Frames without confirmed tracks are not published
func (sink *NATSSink) Consume(ctx context.Context, result pipeline.Result) error {
	if len(result.Objects) == 0 {
		sink.skipped++
		return nil
	}
	payload, err := json.Marshal(FrameEvent{
		RunID:  result.RunID,
		Frame:  result.Frame,
		Tracks: result.Objects,
	})
	if err != nil {
		return fmt.Errorf("marshal frame event: %w", err)
	}
	if err := sink.pub.Publish(sink.Subject(result.RunID), payload); err != nil {
		return fmt.Errorf("publish frame event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes connection
func (sink *NATSSink) Close() error {
	if sink.conn == nil {
		return nil
	}
	if err := sink.conn.Drain(); err != nil {
		sink.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	sink.logger.Debug("nats sink closed", zap.Int("skipped_frames", sink.skipped))
	return nil
}
