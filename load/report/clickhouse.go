package report

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/wavegen/wavegen/load"
)

const createProgressTable = `
CREATE TABLE IF NOT EXISTS wavegen_progress (
    Timestamp       DateTime64(3),
    Session         String,
    Event           LowCardinality(String),
    CycleIndex      UInt32,
    ElapsedMs       UInt64,
    AgentCount      UInt32,
    CycleProbes     UInt64,
    ProbesAttempted UInt64,
    ProbesSent      UInt64,
    ProbesFailed    UInt64,
    ProbesDropped   UInt64,
    Reason          String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Session, Timestamp);
`

const (
	DefaultClickHouseBuffer   = 1024
	DefaultClickHouseBatch    = 64
	DefaultClickHouseInterval = 5 * time.Second
)

// ClickHouseConfig holds connection settings.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ProgressRow is one row of the wavegen_progress table.
type ProgressRow struct {
	Session  string
	Progress load.Progress
}

// WriteFunc persists a batch of rows.
type WriteFunc func(ctx context.Context, rows []ProgressRow) error

// ClickHouse buffers cycle_end and completed records and writes them in
// batches from a background goroutine. Records arriving while the buffer is
// full are dropped and counted.
type ClickHouse struct {
	session   string
	write     WriteFunc
	batchSize int
	interval  time.Duration

	mu      sync.Mutex
	closed  bool
	records chan load.Progress
	done    chan struct{}
	dropped atomic.Int64
}

// NewClickHouse starts the background writer. Non-positive sizes and interval
// select the defaults.
func NewClickHouse(write WriteFunc, session string, bufferSize, batchSize int, interval time.Duration) *ClickHouse {
	if bufferSize <= 0 {
		bufferSize = DefaultClickHouseBuffer
	}
	if batchSize <= 0 {
		batchSize = DefaultClickHouseBatch
	}
	if interval <= 0 {
		interval = DefaultClickHouseInterval
	}
	c := &ClickHouse{
		session:   session,
		write:     write,
		batchSize: batchSize,
		interval:  interval,
		records:   make(chan load.Progress, bufferSize),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *ClickHouse) Report(p load.Progress) {
	if p.Event != load.EventCycleEnd && p.Event != load.EventCompleted {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.records <- p:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded.
func (c *ClickHouse) Dropped() int64 {
	return c.dropped.Load()
}

// Close flushes buffered records and stops the writer.
func (c *ClickHouse) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.records)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *ClickHouse) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	pending := make([]ProgressRow, 0, c.batchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.write(ctx, pending); err != nil {
			logrus.Warnf("Failed to write %d progress rows to ClickHouse: %v", len(pending), err)
		}
		pending = pending[:0]
	}

	for {
		select {
		case p, ok := <-c.records:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ProgressRow{Session: c.session, Progress: p})
			if len(pending) >= c.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// DialClickHouse connects, ensures the wavegen_progress table exists and
// returns a WriteFunc that inserts through it together with the connection's
// Close.
func DialClickHouse(ctx context.Context, cfg ClickHouseConfig) (WriteFunc, func() error, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, createProgressTable); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create table: %w", err)
	}
	logrus.Infof("Connected to ClickHouse at %s", cfg.Addr)
	return insertRows(conn), conn.Close, nil
}

func insertRows(conn driver.Conn) WriteFunc {
	return func(ctx context.Context, rows []ProgressRow) error {
		batch, err := conn.PrepareBatch(ctx, "INSERT INTO wavegen_progress")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, r := range rows {
			p := r.Progress
			err := batch.Append(
				p.Time,
				r.Session,
				string(p.Event),
				uint32(p.CycleIndex),
				uint64(p.ElapsedInCycle.Milliseconds()),
				uint32(p.AgentCount),
				uint64(p.CycleProbes),
				uint64(p.ProbesAttempted),
				uint64(p.ProbesSent),
				uint64(p.ProbesFailed),
				uint64(p.ProbesDropped),
				string(p.Reason),
			)
			if err != nil {
				return fmt.Errorf("failed to append progress row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		logrus.Debugf("Wrote %d progress rows to ClickHouse", len(rows))
		return nil
	}
}
