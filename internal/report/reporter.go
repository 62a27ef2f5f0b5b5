package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
)

// Config controls report behavior.
type Config struct {
	WindowSeconds int64
	BatchSize     int
	RecomputeFrom int64
	StateStore    StateStore
}

// MetricsWriter persists finished windows.
type MetricsWriter interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error
}

// EventArchive stores raw journal events alongside the metrics.
type EventArchive interface {
	InsertEvents(ctx context.Context, events []model.VaultEventRecord) error
}

// Reporter turns an instance event journal into per-window metrics.
type Reporter struct {
	cfg          Config
	writer       MetricsWriter
	archive      EventArchive
	logger       *zap.Logger
	positions    map[string]*position
	accumulators map[string]*Accumulator
}

// NewReporter builds a reporter. archive may be nil.
func NewReporter(cfg Config, writer MetricsWriter, archive EventArchive, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		cfg:          cfg,
		writer:       writer,
		archive:      archive,
		logger:       logger,
		positions:    make(map[string]*position),
		accumulators: make(map[string]*Accumulator),
	}
}

// Run reports over an event journal file.
func (r *Reporter) Run(ctx context.Context, inputPath string) error {
	if r.writer == nil {
		return fmt.Errorf("metrics writer is nil")
	}
	if r.cfg.WindowSeconds <= 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 1000
	}

	startTs, err := r.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.VaultWindowMetrics, 0, r.cfg.BatchSize)
	events := make([]model.VaultEventRecord, 0, r.cfg.BatchSize)
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

		if !gjson.ValidBytes(line) {
			failed++
			r.logger.Warn("decode journal line", zap.Int("line", total))
			continue
		}
		record := gjson.ParseBytes(line)
		kind := record.Get("kind").String()
		vault := record.Get("vault").String()
		ts := record.Get("timestamp").Int()
		data := record.Get("data")

		key := vaultKey(vault)
		pos := r.positions[key]
		if pos == nil {
			pos = &position{}
			r.positions[key] = pos
		}

		if ts <= startTs {
			if err := pos.apply(kind, data); err != nil {
				failed++
				r.logger.Warn("replay event", zap.Error(err), zap.String("vault", vault), zap.String("kind", kind))
			}
			skipped++
			continue
		}

		if r.archive != nil {
			events = append(events, model.VaultEventRecord{
				Vault:     vault,
				Seq:       record.Get("seq").Uint(),
				Kind:      kind,
				Timestamp: ts,
				Data:      json.RawMessage(data.Raw),
			})
		}

		if ts > maxTs {
			maxTs = ts
		}
		if !reportable(kind) {
			continue
		}

		start := windowStart(ts, r.cfg.WindowSeconds)
		acc := r.accumulators[key]
		if acc != nil && acc.WindowStart != start {
			batch = append(batch, acc.Metrics(r.cfg.WindowSeconds))
			windows++
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(vault, start, start+r.cfg.WindowSeconds, pos.sharePrice())
			r.accumulators[key] = acc
		}

		if err := pos.apply(kind, data); err != nil {
			failed++
			r.logger.Warn("report event", zap.Error(err), zap.String("vault", vault), zap.String("kind", kind))
			continue
		}
		if err := acc.AddEvent(kind, data); err != nil {
			failed++
			r.logger.Warn("report event", zap.Error(err), zap.String("vault", vault), zap.String("kind", kind))
			continue
		}
		acc.PriceClose = pos.sharePrice()

		if len(batch) >= r.cfg.BatchSize || len(events) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch, events); err != nil {
				return err
			}
			batch = batch[:0]
			events = events[:0]
			if err := r.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range r.accumulators {
		batch = append(batch, acc.Metrics(r.cfg.WindowSeconds))
		windows++
	}
	r.accumulators = make(map[string]*Accumulator)

	if err := r.flush(ctx, batch, events); err != nil {
		return err
	}

	r.cfg.RecomputeFrom = maxTs
	if err := r.saveState(ctx); err != nil {
		return err
	}

	r.logger.Info("report complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (r *Reporter) loadStartTimestamp(ctx context.Context) (int64, error) {
	if r.cfg.RecomputeFrom > 0 {
		return r.cfg.RecomputeFrom - 1, nil
	}
	if r.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := r.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the newest timestamp below every open window, so a
// restart recomputes open windows in full.
func (r *Reporter) saveState(ctx context.Context) error {
	if r.cfg.StateStore == nil {
		return nil
	}
	if len(r.accumulators) == 0 {
		return r.cfg.StateStore.Save(ctx, r.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(r.accumulators)
	if safeTs > 0 {
		safeTs--
	}
	if safeTs == 0 {
		safeTs = r.cfg.RecomputeFrom
	}
	return r.cfg.StateStore.Save(ctx, safeTs)
}

func (r *Reporter) flush(ctx context.Context, batch []model.VaultWindowMetrics, events []model.VaultEventRecord) error {
	if r.archive != nil && len(events) > 0 {
		if err := r.archive.InsertEvents(ctx, events); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := r.writer.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}
