package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/pkg/app/core/account"
	"github.com/uhyunpark/ladderbook/pkg/app/core/market"
	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/ladderbook/pkg/app/exchange"
	"github.com/uhyunpark/ladderbook/pkg/storage"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 500
)

// TradeSource serves recorded fills, newest first.
type TradeSource interface {
	Recent(symbol string, limit int) ([]storage.TapeRecord, error)
}

// Server handles REST API and WebSocket connections
type Server struct {
	ex      *exchange.Exchange
	trades  TradeSource // may be nil
	router  *mux.Router
	hub     *Hub
	logger  *zap.Logger
	origins []string
	http    *http.Server
}

// NewServer creates a new API server and subscribes it to exchange updates.
func NewServer(ex *exchange.Exchange, trades TradeSource, logger *zap.Logger, origins []string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	s := &Server{
		ex:      ex,
		trades:  trades,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		logger:  logger,
		origins: origins,
	}

	s.setupRoutes()
	ex.OnUpdate(s.broadcast)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/instruments", s.handleGetInstruments).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/traders/{trader}", s.handleGetTrader).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server_starting", zap.String("addr", addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetInstruments(w http.ResponseWriter, r *http.Request) {
	insts := s.ex.Registry().List()

	response := make([]InstrumentInfo, 0, len(insts))
	for _, inst := range insts {
		snap := inst.Snapshot()
		ladder := "dense"
		if inst.Params.Sparse {
			ladder = "sparse"
		}
		response = append(response, InstrumentInfo{
			Symbol:       inst.Symbol,
			Status:       inst.Status().String(),
			MinPrice:     int64(inst.Params.MinPrice),
			MaxPrice:     int64(inst.Params.MaxPrice),
			MaxOrderSize: inst.Params.MaxOrderSize,
			Ladder:       ladder,
			BestBid:      bestBid(snap),
			BestAsk:      bestAsk(snap),
		})
	}

	respondJSON(w, response)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	snap, err := s.ex.Snapshot(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "instrument not found", err.Error())
		return
	}

	respondJSON(w, bookFromSnapshot(snap))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if !s.ex.Registry().Exists(symbol) {
		respondError(w, http.StatusNotFound, "instrument not found", symbol)
		return
	}

	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	response := []TradeInfo{}
	if s.trades != nil {
		records, err := s.trades.Recent(symbol, limit)
		if err != nil {
			s.logger.Error("trades_read_failed", zap.String("symbol", symbol), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to read trades", err.Error())
			return
		}
		for _, rec := range records {
			response = append(response, TradeInfo{
				Seq:       rec.Seq,
				Symbol:    rec.Symbol,
				Price:     rec.Price,
				Size:      rec.Amount,
				Side:      rec.TakerSide,
				Buyer:     rec.Buyer,
				Seller:    rec.Seller,
				Timestamp: rec.Timestamp.UnixMilli(),
			})
		}
	}

	respondJSON(w, response)
}

func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	trader := mux.Vars(r)["trader"]

	accounts := s.ex.Accounts()
	if accounts == nil {
		respondError(w, http.StatusNotFound, "accounts disabled", "")
		return
	}
	acc, err := accounts.Get(orderbook.TraderID(trader))
	if err != nil {
		respondError(w, http.StatusNotFound, "trader not found", err.Error())
		return
	}

	respondJSON(w, AccountInfo{
		Trader:      string(acc.Trader),
		Balance:     acc.CentsBalance,
		Assets:      acc.Assets,
		Outstanding: acc.Outstanding,
		TradeCount:  acc.TradeCount,
		Volume:      acc.Volume,
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := s.submit(req)
	if err != nil {
		respondError(w, statusFor(err), "order rejected", err.Error())
		return
	}

	s.logger.Debug("order_submitted",
		zap.String("symbol", req.Symbol),
		zap.String("trader", req.TraderID),
		zap.String("status", resp.Status),
		zap.String("order_id", resp.OrderID))
	respondJSON(w, resp)
}

// submit converts req and runs it through the exchange. Shared by REST and WS.
func (s *Server) submit(req SubmitOrderRequest) (*SubmitOrderResponse, error) {
	side, err := orderbook.ParseSide(req.OrderType)
	if err != nil {
		return nil, err
	}
	res, err := s.ex.Submit(orderbook.OrderRequest{
		Side:   side,
		Amount: req.Amount,
		Price:  orderbook.Price(req.Price),
		Trader: orderbook.TraderID(req.TraderID),
		Symbol: req.Symbol,
	})
	if err != nil {
		return nil, err
	}

	resp := &SubmitOrderResponse{
		Filled:    res.Filled(),
		Remaining: res.Remaining,
		Fills:     make([]FillInfo, 0, len(res.Fills)),
	}
	switch {
	case !res.Rested:
		resp.Status = "filled"
	case resp.Filled > 0:
		resp.Status = "partially_filled"
	default:
		resp.Status = "resting"
	}
	if res.Rested {
		resp.OrderID = res.OrderID.String()
	}
	for _, f := range res.Fills {
		resp.Fills = append(resp.Fills, FillInfo{
			Price:        int64(f.Price),
			Size:         f.Amount,
			Buyer:        string(f.Buyer),
			Seller:       string(f.Seller),
			MakerOrderID: f.MakerOrderID.String(),
		})
	}
	return resp, nil
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "missing orderId", "")
		return
	}
	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid orderId", err.Error())
		return
	}

	o, err := s.ex.Cancel(id)
	if err != nil {
		respondError(w, statusFor(err), "cancel rejected", err.Error())
		return
	}

	s.logger.Debug("order_cancelled", zap.String("order_id", req.OrderID), zap.Int64("remaining", o.Remaining))
	respondJSON(w, CancelOrderResponse{
		Status:    "cancelled",
		OrderID:   o.ID.String(),
		Symbol:    o.Symbol,
		Remaining: o.Remaining,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast (called from exchange updates)
// ==============================

func (s *Server) broadcast(u exchange.Update) {
	for _, f := range u.Fills {
		s.hub.BroadcastToChannel("trades:"+u.Symbol, TradeUpdate{
			Type:      "trade",
			Symbol:    f.Symbol,
			Price:     int64(f.Price),
			Size:      f.Amount,
			Side:      f.TakerSide.String(),
			Timestamp: f.Timestamp.UnixMilli(),
		})
	}

	channel := "book:" + u.Symbol
	if !s.hub.HasSubscribers(channel) {
		return
	}
	snap, err := s.ex.Snapshot(u.Symbol)
	if err != nil {
		return
	}
	s.hub.BroadcastToChannel(channel, BookUpdate{Type: "book", BookSnapshot: bookFromSnapshot(snap)})
}

// ==============================
// Helper Functions
// ==============================

func bookFromSnapshot(snap orderbook.Snapshot) BookSnapshot {
	bids := make([]PriceLevel, len(snap.Bids))
	for i, l := range snap.Bids {
		bids[i] = PriceLevel{Price: int64(l.Price), Size: l.Total, Orders: l.Orders}
	}
	asks := make([]PriceLevel, len(snap.Asks))
	for i, l := range snap.Asks {
		asks[i] = PriceLevel{Price: int64(l.Price), Size: l.Total, Orders: l.Orders}
	}
	return BookSnapshot{
		Symbol:    snap.Symbol,
		BestBid:   bestBid(snap),
		BestAsk:   bestAsk(snap),
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	}
}

func bestBid(snap orderbook.Snapshot) *int64 {
	if snap.BestBid == orderbook.NoBid {
		return nil
	}
	p := int64(snap.BestBid)
	return &p
}

func bestAsk(snap orderbook.Snapshot) *int64 {
	if snap.BestAsk == orderbook.NoAsk {
		return nil
	}
	p := int64(snap.BestAsk)
	return &p
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrUnknownInstrument),
		errors.Is(err, account.ErrUnknownTrader),
		errors.Is(err, exchange.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrNotActive):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
