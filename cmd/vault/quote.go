package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/chain"
	"liquidityVault/internal/config"
	"liquidityVault/internal/dex"
	"liquidityVault/internal/liquidity"
	"liquidityVault/internal/model"
	"liquidityVault/internal/oracle"
)

type quoteOutput struct {
	ChainID   string          `json:"chain_id"`
	Block     uint64          `json:"block"`
	BlockTime string          `json:"block_time"`
	Pool      model.PoolMeta  `json:"pool"`
	Token0    model.TokenMeta `json:"token0"`
	Token1    model.TokenMeta `json:"token1"`
	Position  *positionView   `json:"position,omitempty"`
	Deposit   *depositView    `json:"deposit,omitempty"`
}

type positionView struct {
	Owner     string `json:"owner"`
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Owed0     string `json:"owed0"`
	Owed1     string `json:"owed1"`
}

type depositView struct {
	Liquidity string `json:"liquidity"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("invalid pool address: %q", cfg.Pool)
	}
	if cfg.Owner != "" && !common.IsHexAddress(cfg.Owner) {
		return fmt.Errorf("invalid owner address: %q", cfg.Owner)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	block := cfg.Block
	if block == 0 {
		if block, err = client.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	blockTime, err := client.BlockTimestamp(ctx, block)
	if err != nil {
		return fmt.Errorf("block time: %w", err)
	}
	reader := dex.NewPoolReader(client, common.HexToAddress(cfg.Pool), logger).AtBlock(block)

	meta, err := reader.Meta(ctx)
	if err != nil {
		return fmt.Errorf("read pool: %w", err)
	}
	token0, err := dex.FetchTokenMeta(ctx, client, common.HexToAddress(meta.Token0), logger)
	if err != nil {
		return fmt.Errorf("read token0: %w", err)
	}
	token1, err := dex.FetchTokenMeta(ctx, client, common.HexToAddress(meta.Token1), logger)
	if err != nil {
		return fmt.Errorf("read token1: %w", err)
	}
	if err := liquidity.ValidateRange(cfg.Lower, cfg.Upper, meta.TickSpacing); err != nil {
		return err
	}

	out := quoteOutput{
		ChainID:   chainID.String(),
		Block:     block,
		BlockTime: time.Unix(int64(blockTime), 0).UTC().Format(time.RFC3339),
		Pool:      meta,
		Token0:    token0,
		Token1:    token1,
	}

	if cfg.Owner != "" {
		owner := common.HexToAddress(cfg.Owner)
		h, err := oracle.Value(ctx, reader, owner, cfg.Lower, cfg.Upper)
		if err != nil {
			return fmt.Errorf("value position: %w", err)
		}
		out.Position = &positionView{
			Owner:     owner.Hex(),
			Liquidity: h.Liquidity.ToBig().String(),
			Amount0:   dex.FormatUnits(h.Amount0, token0.Decimals),
			Amount1:   dex.FormatUnits(h.Amount1, token1.Decimals),
			Owed0:     dex.FormatUnits(h.Owed0, token0.Decimals),
			Owed1:     dex.FormatUnits(h.Owed1, token1.Decimals),
		}
	}

	if cfg.Amount0 != "" || cfg.Amount1 != "" {
		max0, err := dex.ParseUnits(cfg.Amount0, token0.Decimals)
		if err != nil {
			return err
		}
		max1, err := dex.ParseUnits(cfg.Amount1, token1.Decimals)
		if err != nil {
			return err
		}
		d, err := oracle.QuoteDeposit(ctx, reader, cfg.Lower, cfg.Upper, max0, max1)
		if err != nil {
			return fmt.Errorf("quote deposit: %w", err)
		}
		out.Deposit = &depositView{
			Liquidity: d.Liquidity.ToBig().String(),
			Amount0:   dex.FormatUnits(d.Amount0, token0.Decimals),
			Amount1:   dex.FormatUnits(d.Amount1, token1.Decimals),
		}
	}

	logger.Info("quote complete",
		zap.String("pool", meta.Address),
		zap.Uint64("block", block),
		zap.Int32("lower", cfg.Lower),
		zap.Int32("upper", cfg.Upper),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
