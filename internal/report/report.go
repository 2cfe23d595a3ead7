// Package report aggregates the pool event journal into windowed activity
// metrics.
package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom, when set, overrides the saved state and reprocesses
	// events with ts >= RecomputeFrom.
	RecomputeFrom uint64
	// Pool limits the report to one pool. The zero hash means all pools.
	Pool       common.Hash
	StateStore StateStore
}

// Sink receives finished window metrics.
type Sink interface {
	PutWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// WriterSink writes metrics to w as JSON lines. A window that is rebuilt on
// a later run is written again, and the later line supersedes the earlier.
type WriterSink struct {
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) PutWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	for _, m := range metrics {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enc.Encode(m); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// Reporter aggregates journal events into pool window metrics.
type Reporter struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[common.Hash]*Accumulator
}

func NewReporter(cfg Config, sink Sink, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[common.Hash]*Accumulator),
	}
}

// Run aggregates the journal at inputPath. Events are expected in commit
// order; a pool's window is flushed when its next event falls in a later
// window.
func (r *Reporter) Run(ctx context.Context, inputPath string) error {
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if r.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 1000
	}

	startTs, hasStart, err := r.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, r.cfg.BatchSize)
	maxTs := startTs
	var total, windows, skipped, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var event model.PoolEvent
		if err := json.Unmarshal(line, &event); err != nil {
			failed++
			r.logger.Warn("decode pool event", zap.Error(err))
			continue
		}
		if hasStart && event.Timestamp <= startTs {
			skipped++
			continue
		}
		if r.cfg.Pool != (common.Hash{}) && event.PoolID != r.cfg.Pool {
			skipped++
			continue
		}

		start := windowStart(event.Timestamp, r.cfg.WindowSeconds)
		end := start + r.cfg.WindowSeconds

		acc := r.accumulators[event.PoolID]
		if acc == nil {
			acc = NewAccumulator(event, start, end)
			r.accumulators[event.PoolID] = acc
		} else if acc.WindowStart != start {
			batch = append(batch, acc.Metrics(r.cfg.WindowSeconds))
			windows++
			acc = NewAccumulator(event, start, end)
			r.accumulators[event.PoolID] = acc
		}

		if err := acc.AddEvent(event); err != nil {
			failed++
			r.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", event.PoolID.Hex()), zap.String("kind", string(event.Kind)))
			continue
		}

		if event.Timestamp > maxTs {
			maxTs = event.Timestamp
		}

		if len(batch) >= r.cfg.BatchSize {
			if err := r.sink.PutWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := r.saveState(ctx, maxTs, false); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}

	open := make([]*Accumulator, 0, len(r.accumulators))
	for _, acc := range r.accumulators {
		open = append(open, acc)
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].WindowStart != open[j].WindowStart {
			return open[i].WindowStart < open[j].WindowStart
		}
		return bytes.Compare(open[i].PoolID[:], open[j].PoolID[:]) < 0
	})
	for _, acc := range open {
		batch = append(batch, acc.Metrics(r.cfg.WindowSeconds))
		windows++
	}

	if len(batch) > 0 {
		if err := r.sink.PutWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	if err := r.saveState(ctx, maxTs, true); err != nil {
		return err
	}
	r.accumulators = make(map[common.Hash]*Accumulator)

	r.logger.Info("report complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (r *Reporter) loadStartTimestamp(ctx context.Context) (uint64, bool, error) {
	if r.cfg.RecomputeFrom > 0 {
		return r.cfg.RecomputeFrom - 1, true, nil
	}
	if r.cfg.StateStore == nil {
		return 0, false, nil
	}
	return r.cfg.StateStore.Load(ctx)
}

// saveState records the last timestamp whose windows are final, so the next
// run resumes just after it. An accumulator that has not been emitted yet
// holds the state before its window. Once the remaining accumulators are
// emitted, only windows ending after maxTs can still grow; the state stays
// before the earliest of those so a later run rebuilds them whole.
func (r *Reporter) saveState(ctx context.Context, maxTs uint64, emitted bool) error {
	if r.cfg.StateStore == nil {
		return nil
	}
	safeTs := maxTs
	for _, acc := range r.accumulators {
		if emitted && acc.WindowEnd <= maxTs {
			continue
		}
		if acc.WindowStart == 0 {
			// Nothing before the first window is final yet.
			return nil
		}
		if acc.WindowStart-1 < safeTs {
			safeTs = acc.WindowStart - 1
		}
	}
	return r.cfg.StateStore.Save(ctx, safeTs)
}
