package exchange

import (
	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// LogSink writes every fill as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("fills")}
}

func (s *LogSink) OnFill(f orderbook.Fill) {
	s.logger.Info("fill",
		zap.String("symbol", f.Symbol),
		zap.String("buyer", string(f.Buyer)),
		zap.String("seller", string(f.Seller)),
		zap.Int64("amount", f.Amount),
		zap.Int64("price", int64(f.Price)),
		zap.String("taker_side", f.TakerSide.String()),
		zap.Int64("maker_remaining", f.MakerRemaining))
}
