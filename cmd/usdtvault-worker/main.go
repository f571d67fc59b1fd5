package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usdtvault/internal/config"
	"usdtvault/internal/db"
	"usdtvault/internal/ledger"
	"usdtvault/internal/payment"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.InitSchema(ctx, pool, logger); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	svc := ledger.NewService(pool, logger)
	gateway := payment.NewBSCClient(cfg.BSCNodeURL, cfg.PayoutAPIURL, cfg.ContractAddress, cfg.PaymentTimeout)

	if cfg.RunOnce {
		runSettlement(ctx, logger, svc, gateway)
		runAccrual(ctx, logger, svc, cfg.AccrualWorkers)
		logger.Info("worker run-once completed")
		return
	}

	accrualTicker := time.NewTicker(cfg.AccrualEvery)
	defer accrualTicker.Stop()
	settleTicker := time.NewTicker(cfg.SettleEvery)
	defer settleTicker.Stop()

	logger.Info("worker started",
		"accrual_every", cfg.AccrualEvery.String(),
		"settle_every", cfg.SettleEvery.String(),
		"accrual_workers", cfg.AccrualWorkers)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-accrualTicker.C:
			runAccrual(ctx, logger, svc, cfg.AccrualWorkers)
		case <-settleTicker.C:
			runSettlement(ctx, logger, svc, gateway)
		}
	}
}

func runAccrual(ctx context.Context, logger *slog.Logger, svc *ledger.Service, workers int) {
	report, err := svc.RunAccrualCycle(ctx, workers)
	if err != nil {
		logger.Error("accrual cycle failed", "err", err)
		return
	}
	logger.Info("accrual cycle done", "accrued", report.Accrued, "retired", report.Retired, "failed", report.Failed)
}

func runSettlement(ctx context.Context, logger *slog.Logger, svc *ledger.Service, gateway ledger.PaymentGateway) {
	deposits, err := svc.ConfirmPendingDeposits(ctx, gateway)
	if err != nil {
		logger.Error("deposit confirmation failed", "err", err)
	} else if deposits.Checked > 0 {
		logger.Info("deposit confirmation done", "checked", deposits.Checked, "confirmed", deposits.Confirmed, "rejected", deposits.Rejected)
	}

	withdrawals, err := svc.SettlePendingWithdrawals(ctx, gateway)
	if err != nil {
		logger.Error("withdrawal settlement failed", "err", err)
		return
	}
	if withdrawals.Broadcast > 0 {
		logger.Info("withdrawal settlement done", "broadcast", withdrawals.Broadcast, "completed", withdrawals.Completed, "failed", withdrawals.Failed)
	}
}
