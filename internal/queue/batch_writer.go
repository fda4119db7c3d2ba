package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cwyuen/hk-monitor/internal/database"
	"github.com/cwyuen/hk-monitor/internal/protocol"
)

// BatchWriter consumes reading messages from Kafka and batch-writes them to
// the database. Offsets are committed per message after a successful insert,
// so a crash mid-batch replays only unwritten readings.
type BatchWriter struct {
	consumer      *Consumer
	db            *database.DB
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer *Consumer, db *database.DB, batchSize int, flushInterval time.Duration, logger *zap.Logger) *BatchWriter {
	return &BatchWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to database
func (bw *BatchWriter) Start(ctx context.Context) error {
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop stops the batch writer gracefully
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := bw.consumer.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				bw.logger.Warn("consumer error", zap.Error(err))
				continue
			}
			select {
			case msgChan <- msg:
			case <-bw.stopCh:
				return
			}
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			// Flush remaining batch before stopping
			bw.flush(ctx, batch)
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	successCount := 0
	for _, msg := range batch {
		if err := bw.processMessage(msg); err != nil {
			bw.logger.Warn("failed to process message", zap.Error(err))
			continue
		}
		successCount++

		// Commit offset after successful processing
		if err := bw.consumer.Commit(ctx, msg); err != nil {
			bw.logger.Warn("failed to commit offset", zap.Error(err))
		}
	}

	bw.logger.Info("flushed batch to database",
		zap.Int("written", successCount),
		zap.Int("total", len(batch)))
}

func (bw *BatchWriter) processMessage(msg kafka.Message) error {
	readingMsg, err := protocol.DecodeReadingMessage(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	r := readingMsg.Reading
	row := &database.ReadingRow{
		Metric:      string(r.Metric),
		LocationKey: r.LocationKey,
		ObservedAt:  r.ObservedAt,
		ReceivedAt:  readingMsg.ReceivedAt,
	}
	if r.Value != 0 || r.Category == "" {
		value := r.Value
		row.Value = &value
	}
	if r.Category != "" {
		category := r.Category
		row.Category = &category
	}
	if r.Detail != "" {
		detail := r.Detail
		row.Detail = &detail
	}

	if err := bw.db.InsertReading(row); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}
