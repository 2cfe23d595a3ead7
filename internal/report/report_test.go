package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"ammcore/internal/amm"
	"ammcore/internal/model"
)

var (
	poolX = common.HexToHash("0x01")
	poolY = common.HexToHash("0x02")
)

type memorySink struct {
	metrics []model.PoolWindowMetrics
}

func (s *memorySink) PutWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.metrics = append(s.metrics, metrics...)
	return nil
}

func writeJournal(t *testing.T, events []model.PoolEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, event := range events {
		line, err := json.Marshal(event)
		require.NoError(t, err)
		_, err = w.Write(append(line, '\n'))
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())
	return path
}

func appendJournal(t *testing.T, path string, events ...model.PoolEvent) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer file.Close()
	for _, event := range events {
		line, err := json.Marshal(event)
		require.NoError(t, err)
		_, err = file.Write(append(line, '\n'))
		require.NoError(t, err)
	}
}

func sampleEvents() []model.PoolEvent {
	return []model.PoolEvent{
		{Kind: model.EventPoolCreated, PoolID: poolX, Timestamp: 10},
		{Kind: model.EventDeposit, PoolID: poolX, AmountA: 1000, AmountB: 1000, LPMinted: 1000,
			Pool: amm.Pool{ReserveA: 1000, ReserveB: 1000, LPSupply: 1000}, Timestamp: 20},
		{Kind: model.EventSwap, PoolID: poolX, Direction: "a-to-b", AmountIn: 100, AmountOut: 90,
			Pool: amm.Pool{ReserveA: 1100, ReserveB: 910, LPSupply: 1000}, Timestamp: 30},
		{Kind: model.EventSwap, PoolID: poolX, Direction: "b-to-a", AmountIn: 1000, AmountOut: 575,
			Pool: amm.Pool{ReserveA: 525, ReserveB: 1910, LPSupply: 1000}, Timestamp: 70},
		{Kind: model.EventPoolCreated, PoolID: poolY, Timestamp: 75},
	}
}

func TestFeeRetained(t *testing.T) {
	cases := map[uint64]uint64{
		1:    1,
		100:  1,
		999:  3,
		1000: 3,
		1001: 4,
	}
	for in, want := range cases {
		got, err := FeeRetained(in)
		require.NoError(t, err)
		require.Equal(t, want, got, "amountIn %d", in)
	}
}

func TestRunAggregatesWindows(t *testing.T) {
	path := writeJournal(t, sampleEvents())
	sink := &memorySink{}
	reporter := NewReporter(Config{WindowSeconds: 60}, sink, nil)

	require.NoError(t, reporter.Run(context.Background(), path))
	require.Len(t, sink.metrics, 3)

	first := sink.metrics[0]
	require.Equal(t, poolX, first.PoolID)
	require.Equal(t, uint64(0), first.WindowStart)
	require.Equal(t, uint64(60), first.WindowEnd)
	require.Equal(t, uint64(1), first.DepositCount)
	require.Equal(t, uint64(1), first.SwapCount)
	require.Equal(t, "100", first.VolumeInA)
	require.Equal(t, "90", first.VolumeOutB)
	require.Equal(t, "1", first.FeeA)
	require.Equal(t, "0", first.FeeB)
	require.Equal(t, "1000", first.LPMinted)
	require.Equal(t, amm.Pool{ReserveA: 1100, ReserveB: 910, LPSupply: 1000}, first.Close)

	second := sink.metrics[1]
	require.Equal(t, poolX, second.PoolID)
	require.Equal(t, uint64(60), second.WindowStart)
	require.Equal(t, "1000", second.VolumeInB)
	require.Equal(t, "575", second.VolumeOutA)
	require.Equal(t, "3", second.FeeB)

	third := sink.metrics[2]
	require.Equal(t, poolY, third.PoolID)
	require.Zero(t, third.SwapCount)
}

func TestRunFiltersPool(t *testing.T) {
	path := writeJournal(t, sampleEvents())
	sink := &memorySink{}
	reporter := NewReporter(Config{WindowSeconds: 3600, Pool: poolY}, sink, nil)

	require.NoError(t, reporter.Run(context.Background(), path))
	require.Len(t, sink.metrics, 1)
	require.Equal(t, poolY, sink.metrics[0].PoolID)
}

func TestRunSkipsMalformedLines(t *testing.T) {
	path := writeJournal(t, sampleEvents()[:3])
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = file.WriteString("{not json}\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	sink := &memorySink{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60}, sink, nil).Run(context.Background(), path))
	require.Len(t, sink.metrics, 1)
}

func TestRunResumesFromState(t *testing.T) {
	path := writeJournal(t, sampleEvents())
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "report_state.json")}

	sink := &memorySink{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, sink, nil).Run(context.Background(), path))
	require.Len(t, sink.metrics, 3)

	// Windows at 60 can still grow, so the state stops before them.
	last, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(59), last)

	again := &memorySink{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, again, nil).Run(context.Background(), path))
	require.Equal(t, sink.metrics[1:], again.metrics)
}

func TestRunRebuildsOpenWindowOnRerun(t *testing.T) {
	path := writeJournal(t, sampleEvents())
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "report_state.json")}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, &memorySink{}, nil).Run(context.Background(), path))

	appendJournal(t, path, model.PoolEvent{
		Kind: model.EventSwap, PoolID: poolX, Direction: "a-to-b", AmountIn: 100, AmountOut: 304,
		Pool: amm.Pool{ReserveA: 625, ReserveB: 1606, LPSupply: 1000}, Timestamp: 80,
	})

	sink := &memorySink{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, sink, nil).Run(context.Background(), path))
	require.Len(t, sink.metrics, 2)

	rebuilt := sink.metrics[0]
	require.Equal(t, poolX, rebuilt.PoolID)
	require.Equal(t, uint64(60), rebuilt.WindowStart)
	require.Equal(t, uint64(2), rebuilt.SwapCount)
	require.Equal(t, "100", rebuilt.VolumeInA)
	require.Equal(t, "1000", rebuilt.VolumeInB)
	require.Equal(t, "304", rebuilt.VolumeOutB)
	require.Equal(t, "575", rebuilt.VolumeOutA)
	require.Equal(t, amm.Pool{ReserveA: 625, ReserveB: 1606, LPSupply: 1000}, rebuilt.Close)
	require.Equal(t, poolY, sink.metrics[1].PoolID)
}

func TestRunRebuildsFirstWindowOnRerun(t *testing.T) {
	path := writeJournal(t, sampleEvents()[:3])
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "report_state.json")}

	first := &memorySink{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, first, nil).Run(context.Background(), path))
	require.Len(t, first.metrics, 1)

	// The only window starts at zero, so no state is final yet.
	_, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	appendJournal(t, path, model.PoolEvent{
		Kind: model.EventSwap, PoolID: poolX, Direction: "a-to-b", AmountIn: 100, AmountOut: 75,
		Pool: amm.Pool{ReserveA: 1200, ReserveB: 835, LPSupply: 1000}, Timestamp: 40,
	})

	again := &memorySink{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, again, nil).Run(context.Background(), path))
	require.Len(t, again.metrics, 1)
	window := again.metrics[0]
	require.Equal(t, uint64(0), window.WindowStart)
	require.Equal(t, uint64(1), window.DepositCount)
	require.Equal(t, uint64(2), window.SwapCount)
	require.Equal(t, "200", window.VolumeInA)
	require.Equal(t, "1000", window.LPMinted)
}

func TestRunClosedWindowsAdvanceState(t *testing.T) {
	events := append(sampleEvents()[:4],
		model.PoolEvent{Kind: model.EventPoolCreated, PoolID: poolY, Timestamp: 130})
	path := writeJournal(t, events)
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "report_state.json")}

	require.NoError(t, NewReporter(Config{WindowSeconds: 60, StateStore: state}, &memorySink{}, nil).Run(context.Background(), path))

	// Pool X's window at 60 ended before ts 130 and is final.
	last, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(119), last)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	path := writeJournal(t, sampleEvents())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	err := NewReporter(Config{WindowSeconds: 60}, sink, nil).Run(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, sink.metrics)
}

func TestWriterSinkHonorsContext(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWriterSink(&buf).PutWindowMetrics(ctx, []model.PoolWindowMetrics{{PoolID: poolX}})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, buf.Len())
}

func TestRunRequiresWindow(t *testing.T) {
	err := NewReporter(Config{}, &memorySink{}, nil).Run(context.Background(), "unused")
	require.Error(t, err)
}
