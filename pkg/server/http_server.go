// Package server exposes the order book over a thin HTTP/JSON surface and
// publishes executed trades to the trade feed. The book itself stays free
// of I/O; everything here is a collaborator around it.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/messaging"
	"github.com/erain9/limitbook/pkg/otel"
)

const defaultDepth = 10

// Server serves one book. The book requires a single logical writer, so
// every book call is funneled through the ops token channel; chi handlers
// run concurrently but the book never sees overlapping calls.
type Server struct {
	book    *core.Book
	sender  messaging.TradeSender
	logger  zerolog.Logger
	metrics *otel.BookMetrics

	// ops serializes every book call; the core is single-writer
	ops chan struct{}
}

// NewServer creates a Server around the given book. sender may be nil when
// no trade feed is configured.
func NewServer(book *core.Book, sender messaging.TradeSender, logger zerolog.Logger) *Server {
	s := &Server{
		book:    book,
		sender:  sender,
		logger:  logger,
		metrics: otel.GetBookMetrics(),
		ops:     make(chan struct{}, 1),
	}
	s.ops <- struct{}{}
	return s
}

func (s *Server) lock() {
	<-s.ops
}

func (s *Server) unlock() {
	s.ops <- struct{}{}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", s.handleAddOrder)
	r.Get("/orders/{id}", s.handleGetOrder)
	r.Put("/orders/{id}", s.handleAmendOrder)
	r.Delete("/orders/{id}", s.handleCancelOrder)
	r.Get("/book", s.handleSnapshot)
	r.Get("/stats", s.handleStats)
	r.Post("/match", s.handleMatch)

	return r
}

type addOrderRequest struct {
	ID       uint64 `json:"id"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Match    *bool  `json:"match,omitempty"`
}

type amendOrderRequest struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Match    *bool  `json:"match,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// validationStatus maps core validation errors to HTTP statuses
func validationStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrDuplicateOrderID):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func matchFlag(m *bool) bool {
	if m == nil {
		return true
	}
	return *m
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var req addOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	side, err := core.SideFromString(strings.ToUpper(req.Side))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	quantity, err := fpdecimal.FromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrInvalidQuantity)
		return
	}

	price, err := fpdecimal.FromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrInvalidPrice)
		return
	}

	order, err := core.NewOrder(req.ID, side, quantity, price, 0)
	if err != nil {
		writeError(w, validationStatus(err), err)
		return
	}

	s.lock()
	trades, err := s.book.AddOrder(order, matchFlag(req.Match))
	s.unlock()
	if err != nil {
		writeError(w, validationStatus(err), err)
		return
	}

	s.metrics.RecordOrderAccepted(r.Context(), side.String())
	s.publishTrades(r, trades)

	writeJSON(w, http.StatusCreated, struct {
		Order  *core.Order  `json:"order"`
		Trades []core.Trade `json:"trades"`
	}{Order: order, Trades: trades})
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrInvalidArgument)
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	s.lock()
	order := s.book.GetOrder(id)
	s.unlock()

	if order == nil {
		writeError(w, http.StatusNotFound, core.ErrUnknownOrder)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	s.lock()
	canceled := s.book.CancelOrder(id)
	s.unlock()

	writeJSON(w, http.StatusOK, struct {
		Canceled bool `json:"canceled"`
	}{Canceled: canceled})
}

func (s *Server) handleAmendOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	var req amendOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	quantity, err := fpdecimal.FromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrInvalidQuantity)
		return
	}

	price, err := fpdecimal.FromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrInvalidPrice)
		return
	}

	s.lock()
	amended, trades, err := s.book.AmendOrder(id, price, quantity, matchFlag(req.Match))
	s.unlock()
	if err != nil {
		writeError(w, validationStatus(err), err)
		return
	}

	s.publishTrades(r, trades)

	writeJSON(w, http.StatusOK, struct {
		Amended bool         `json:"amended"`
		Trades  []core.Trade `json:"trades"`
	}{Amended: amended, Trades: trades})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	depth := defaultDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, core.ErrInvalidArgument)
			return
		}
		depth = parsed
	}

	s.lock()
	bids, asks := s.book.Snapshot(depth)
	s.unlock()

	writeJSON(w, http.StatusOK, struct {
		Bids []core.BookLevel `json:"bids"`
		Asks []core.BookLevel `json:"asks"`
	}{Bids: bids, Asks: asks})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.lock()
	stats := s.book.Statistics()
	bestBid := s.book.BestBid()
	bestAsk := s.book.BestAsk()
	spread := s.book.Spread()
	bidLevels := s.book.BidLevels()
	askLevels := s.book.AskLevels()
	s.unlock()

	writeJSON(w, http.StatusOK, struct {
		Stats     core.Stats `json:"stats"`
		BestBid   string     `json:"bestBid"`
		BestAsk   string     `json:"bestAsk"`
		Spread    string     `json:"spread"`
		BidLevels int        `json:"bidLevels"`
		AskLevels int        `json:"askLevels"`
	}{
		Stats:     stats,
		BestBid:   bestBid.String(),
		BestAsk:   bestAsk.String(),
		Spread:    spread.String(),
		BidLevels: bidLevels,
		AskLevels: askLevels,
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	s.lock()
	trades := s.book.MatchOrders()
	s.unlock()

	s.publishTrades(r, trades)

	writeJSON(w, http.StatusOK, struct {
		Trades []core.Trade `json:"trades"`
	}{Trades: trades})
}

// publishTrades forwards executions to the trade feed and records metrics
func (s *Server) publishTrades(r *http.Request, trades []core.Trade) {
	if len(trades) == 0 {
		return
	}

	volume := 0.0
	msgs := make([]messaging.TradeMessage, 0, len(trades))
	now := time.Now().UnixNano()
	for _, trade := range trades {
		msgs = append(msgs, messaging.TradeMessage{
			BuyOrderID:  trade.BuyOrderID,
			SellOrderID: trade.SellOrderID,
			Price:       trade.Price.String(),
			Quantity:    trade.Quantity.String(),
			ExecutedAt:  now,
		})
		if qty, err := strconv.ParseFloat(trade.Quantity.String(), 64); err == nil {
			volume += qty
		}
	}

	s.metrics.RecordTrades(r.Context(), int64(len(trades)), volume)

	if s.sender == nil {
		return
	}

	if err := s.sender.SendTrades(r.Context(), msgs); err != nil {
		s.logger.Error().Err(err).Int("trades", len(msgs)).Msg("failed to publish trades")
	}
}
