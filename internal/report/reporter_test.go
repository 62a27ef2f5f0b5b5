package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/model"
)

const (
	testVault    = "0x00000000000000000000000000000000005A017a"
	testRegistry = "0x000000000000000000000000000000000000bEEF"
)

type captureWriter struct {
	calls   int
	metrics []model.VaultWindowMetrics
}

func (w *captureWriter) UpsertWindowMetrics(_ context.Context, metrics []model.VaultWindowMetrics) error {
	w.calls++
	w.metrics = append(w.metrics, metrics...)
	return nil
}

type captureArchive struct {
	events []model.VaultEventRecord
}

func (a *captureArchive) InsertEvents(_ context.Context, events []model.VaultEventRecord) error {
	a.events = append(a.events, events...)
	return nil
}

func writeJournal(t *testing.T) string {
	t.Helper()
	events := []model.VaultEvent{
		{Vault: testRegistry, Seq: 1, Kind: model.EventDeployed, Timestamp: 50, Data: model.DeployedData{Deployer: "0x01"}},
		{Vault: testVault, Seq: 2, Kind: model.EventMinted, Timestamp: 100, Data: model.MintedData{Shares: "1000", LiquidityMinted: "1000"}},
		{Vault: testVault, Seq: 3, Kind: model.EventFeesEarned, Timestamp: 200, Data: model.FeesEarnedData{
			Fee0: "10", Fee1: "20", ManagerFee0: "1", ManagerFee1: "2",
		}},
		{Vault: testVault, Seq: 4, Kind: model.EventRebalance, Timestamp: 300, Data: model.RebalanceData{LiquidityBefore: "1000", LiquidityAfter: "1100"}},
		{Vault: testVault, Seq: 5, Kind: model.EventBurned, Timestamp: 3700, Data: model.BurnedData{Shares: "500", LiquidityBurned: "550"}},
		{Vault: testVault, Seq: 6, Kind: model.EventRebalance, Timestamp: 3800, Data: model.RebalanceData{LiquidityBefore: "550", LiquidityAfter: "605"}},
	}

	path := filepath.Join(t.TempDir(), "events.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, ev := range events {
		require.NoError(t, enc.Encode(ev))
		if i == 2 {
			_, err := f.WriteString("not json\n\n")
			require.NoError(t, err)
		}
	}
	return path
}

func TestReporterBuildsWindows(t *testing.T) {
	path := writeJournal(t)
	writer := &captureWriter{}
	archive := &captureArchive{}

	r := NewReporter(Config{WindowSeconds: 3600}, writer, archive, nil)
	require.NoError(t, r.Run(context.Background(), path))

	require.Len(t, writer.metrics, 2)
	first, second := writer.metrics[0], writer.metrics[1]

	assert.Equal(t, testVault, first.Vault)
	assert.Equal(t, int64(0), first.WindowStart.Unix())
	assert.Equal(t, int64(3600), first.WindowEnd.Unix())
	assert.Equal(t, uint64(1), first.MintCount)
	assert.Equal(t, uint64(1), first.RebalanceCount)
	assert.Equal(t, "10", first.Fee0)
	assert.Equal(t, "20", first.Fee1)
	assert.Equal(t, "1", first.ManagerFee0)
	assert.Equal(t, "2", first.ManagerFee1)
	assert.Nil(t, first.SharePriceOpen)
	require.NotNil(t, first.SharePriceClose)
	assert.Equal(t, "1.100000000000000000", *first.SharePriceClose)
	assert.Nil(t, first.APR)

	assert.Equal(t, int64(3600), second.WindowStart.Unix())
	assert.Equal(t, uint64(1), second.BurnCount)
	assert.Equal(t, "0", second.Fee0)
	require.NotNil(t, second.SharePriceOpen)
	assert.Equal(t, "1.100000000000000000", *second.SharePriceOpen)
	assert.Equal(t, "1.210000000000000000", *second.SharePriceClose)
	require.NotNil(t, second.APR)
	assert.Equal(t, "876.000000000000000000", *second.APR)

	assert.Len(t, archive.events, 6)
	assert.Equal(t, model.EventDeployed, archive.events[0].Kind)
	assert.JSONEq(t, `{"shares":"500","liquidity_burned":"550","receiver":"","amount0":"","amount1":""}`, string(archive.events[4].Data))
}

func TestReporterResumesFromState(t *testing.T) {
	path := writeJournal(t)
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "report.json")}

	first := &captureWriter{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 3600, StateStore: state}, first, nil, nil).Run(context.Background(), path))
	ts, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3800), ts)

	second := &captureWriter{}
	require.NoError(t, NewReporter(Config{WindowSeconds: 3600, StateStore: state}, second, nil, nil).Run(context.Background(), path))
	assert.Zero(t, second.calls)
}

func TestReporterRecomputeReplaysEarlierEvents(t *testing.T) {
	path := writeJournal(t)
	writer := &captureWriter{}

	r := NewReporter(Config{WindowSeconds: 3600, RecomputeFrom: 3600}, writer, nil, nil)
	require.NoError(t, r.Run(context.Background(), path))

	require.Len(t, writer.metrics, 1)
	m := writer.metrics[0]
	assert.Equal(t, int64(3600), m.WindowStart.Unix())
	assert.Equal(t, uint64(0), m.MintCount)
	require.NotNil(t, m.SharePriceOpen)
	assert.Equal(t, "1.100000000000000000", *m.SharePriceOpen)
}

func TestReporterRejectsBadConfig(t *testing.T) {
	err := NewReporter(Config{}, &captureWriter{}, nil, nil).Run(context.Background(), "unused")
	require.Error(t, err)

	err = NewReporter(Config{WindowSeconds: 60}, nil, nil, nil).Run(context.Background(), "unused")
	require.Error(t, err)
}

func TestComputeAPR(t *testing.T) {
	assert.Nil(t, computeAPR(nil, nil, 3600))
	zero := decimalFromString(t, "0")
	one := decimalFromString(t, "1")
	assert.Nil(t, computeAPR(&zero, &one, 3600))
	assert.Equal(t, "0.000000000000000000", *computeAPR(&one, &one, 3600))
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
