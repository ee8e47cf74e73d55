package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/params"
	"github.com/uhyunpark/ladderbook/pkg/api"
	"github.com/uhyunpark/ladderbook/pkg/app/core/account"
	"github.com/uhyunpark/ladderbook/pkg/app/core/market"
	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/ladderbook/pkg/app/exchange"
	"github.com/uhyunpark/ladderbook/pkg/ingest"
	"github.com/uhyunpark/ladderbook/pkg/report"
	"github.com/uhyunpark/ladderbook/pkg/storage"
	"github.com/uhyunpark/ladderbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	} else {
		logger, err = util.NewLogger(cfg.Node.LogLevel)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("ladderbook_failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// node holds everything built from the config.
type node struct {
	ex       *exchange.Exchange
	accounts *account.Manager
	tape     *storage.Tape
}

func (n *node) Close() error {
	var first error
	if n.tape != nil {
		if err := n.tape.Close(); err != nil {
			first = err
		}
	}
	if err := n.accounts.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func build(cfg params.Config, logger *zap.Logger) (*node, error) {
	n := &node{}

	var accStore *account.Store
	if cfg.Node.DataDir != "" {
		s, err := account.NewStore(filepath.Join(cfg.Node.DataDir, "accounts"))
		if err != nil {
			return nil, err
		}
		accStore = s
	}
	n.accounts = account.NewManager(accStore, logger.Named("accounts"))
	for _, tr := range cfg.Accounts.Traders {
		if err := n.accounts.Register(orderbook.TraderID(tr), cfg.Accounts.InitialCents); err != nil {
			n.Close()
			return nil, err
		}
	}

	sinks := []orderbook.FillSink{exchange.NewLogSink(logger)}
	if cfg.Node.DataDir != "" {
		tape, err := storage.OpenTape(filepath.Join(cfg.Node.DataDir, "tape"), logger.Named("tape"))
		if err != nil {
			n.Close()
			return nil, err
		}
		n.tape = tape
		sinks = append(sinks, tape)
	}

	n.ex = exchange.New(market.NewRegistry(), n.accounts, logger.Named("exchange"), sinks...)
	p := market.Params{
		MinPrice:     orderbook.Price(cfg.Book.MinPrice),
		MaxPrice:     orderbook.Price(cfg.Book.MaxPrice),
		MaxOrderSize: cfg.Book.MaxOrderSize,
		Sparse:       cfg.Book.Sparse,
	}
	for _, sym := range cfg.Book.Instruments {
		if _, err := n.ex.AddInstrument(sym, p); err != nil {
			n.Close()
			return nil, err
		}
	}
	return n, nil
}

func run(ctx context.Context, cfg params.Config, logger *zap.Logger, out io.Writer) error {
	sugar := logger.Sugar()

	n, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	sugar.Infow("node_starting",
		"instruments", cfg.Book.Instruments,
		"traders", len(cfg.Accounts.Traders),
		"min_price", cfg.Book.MinPrice,
		"max_price", cfg.Book.MaxPrice,
		"sparse", cfg.Book.Sparse,
		"data_dir", cfg.Node.DataDir)

	if cfg.Node.OrdersCSV != "" {
		fmt.Fprintf(out, "Loading order data from %q\n", cfg.Node.OrdersCSV)
		count, err := ingest.LoadFile(cfg.Node.OrdersCSV, func(req orderbook.OrderRequest) error {
			_, err := n.ex.Submit(req)
			return err
		})
		if err != nil {
			sugar.Errorw("ingest_failed", "file", cfg.Node.OrdersCSV, "submitted", count, "err", err)
			return fmt.Errorf("ingest %s: %w", cfg.Node.OrdersCSV, err)
		}
		sugar.Infow("ingest_done", "file", cfg.Node.OrdersCSV, "orders", count)
	}

	if err := printState(out, n); err != nil {
		return err
	}

	if cfg.Node.APIAddr == "" {
		return nil
	}

	apiServer := api.NewServer(n.ex, tapeSource(n.tape), logger, cfg.Node.CORSOrigin)
	errc := make(chan error, 1)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		errc <- apiServer.Start(cfg.Node.APIAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sugar.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return apiServer.Shutdown(shutdownCtx)
}

// tapeSource avoids handing the API a typed nil.
func tapeSource(t *storage.Tape) api.TradeSource {
	if t == nil {
		return nil
	}
	return t
}

func printState(out io.Writer, n *node) error {
	for _, inst := range n.ex.Registry().List() {
		snap := inst.Snapshot()
		if err := report.RenderSummary(out, snap); err != nil {
			return err
		}
		if err := report.RenderLadder(out, snap); err != nil {
			return err
		}
	}
	return report.RenderAccounts(out, n.accounts.List(), n.ex.Registry().Symbols())
}
