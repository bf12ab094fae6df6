package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const dlqAttempts = 5

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type deadLetter struct {
	writer messageWriter
	log    *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func newDeadLetter(w messageWriter, log *slog.Logger) *deadLetter {
	return &deadLetter{writer: w, log: log, now: time.Now, sleep: sleepContext}
}

// send copies msg to the DLQ with error context, retrying with exponential backoff.
// It reports whether the copy was written.
func (d *deadLetter) send(ctx context.Context, msg kafka.Message, cause error) bool {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(d.now().UTC().Format(time.RFC3339))},
	)
	dlqMsg := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}

	for attempt := range dlqAttempts {
		err := d.writer.WriteMessages(ctx, dlqMsg)
		if err == nil {
			d.log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		d.log.Warn("DLQ write failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		if err := d.sleep(ctx, backoff); err != nil {
			d.log.Info("context canceled during DLQ retry")
			return false
		}
	}

	d.log.Error("DLQ write exhausted retries, leaving offset uncommitted",
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
