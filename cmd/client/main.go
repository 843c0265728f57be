// Command client drives a demo scenario against a running limitbook server
// and renders the book to the console.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/erain9/limitbook/pkg/logging"
)

type orderRequest struct {
	ID       uint64 `json:"id"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type amendRequest struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type bookLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type bookResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

type statsResponse struct {
	Stats struct {
		Trades       uint64 `json:"trades"`
		Volume       string `json:"volume"`
		ActiveOrders int    `json:"activeOrders"`
	} `json:"stats"`
	BestBid   string `json:"bestBid"`
	BestAsk   string `json:"bestAsk"`
	Spread    string `json:"spread"`
	BidLevels int    `json:"bidLevels"`
	AskLevels int    `json:"askLevels"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "limitbook server address")
	depth := flag.Int("depth", 10, "book depth to display")
	flag.Parse()

	logging.Setup(logging.Config{Level: "info", Pretty: true})

	c := &client{base: *addr, http: &http.Client{}}

	// Seed both sides
	log.Info().Msg("Adding initial orders")
	c.add(orderRequest{ID: 1, Side: "BUY", Price: "100.00", Quantity: "1000"})
	c.add(orderRequest{ID: 2, Side: "BUY", Price: "99.50", Quantity: "500"})
	c.add(orderRequest{ID: 3, Side: "BUY", Price: "99.00", Quantity: "750"})
	c.add(orderRequest{ID: 4, Side: "BUY", Price: "100.00", Quantity: "250"})
	c.add(orderRequest{ID: 5, Side: "SELL", Price: "101.00", Quantity: "800"})
	c.add(orderRequest{ID: 6, Side: "SELL", Price: "101.50", Quantity: "600"})
	c.add(orderRequest{ID: 7, Side: "SELL", Price: "102.00", Quantity: "400"})
	c.add(orderRequest{ID: 8, Side: "SELL", Price: "101.00", Quantity: "200"})
	c.printBook(*depth)

	log.Info().Msg("Cancelling order 3")
	c.cancel(3)

	log.Info().Msg("Amending order 1 quantity 1000 -> 1500")
	c.amend(1, amendRequest{Price: "100.00", Quantity: "1500"})

	log.Info().Msg("Amending order 5 price 101.00 -> 100.50")
	c.amend(5, amendRequest{Price: "100.50", Quantity: "800"})
	c.printBook(*depth)

	log.Info().Msg("Adding aggressive sell order")
	c.add(orderRequest{ID: 9, Side: "SELL", Price: "99.00", Quantity: "300"})
	c.printBook(*depth)

	c.printStats()
}

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, path string, body, out interface{}) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode request")
		}
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.Fatal().Int("status", resp.StatusCode).Str("path", path).Msg("Request rejected")
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatal().Err(err).Msg("Failed to decode response")
		}
	}
}

func (c *client) add(req orderRequest) {
	c.do(http.MethodPost, "/orders", req, nil)
}

func (c *client) cancel(id uint64) {
	c.do(http.MethodDelete, "/orders/"+strconv.FormatUint(id, 10), nil, nil)
}

func (c *client) amend(id uint64, req amendRequest) {
	c.do(http.MethodPut, "/orders/"+strconv.FormatUint(id, 10), req, nil)
}

func (c *client) printBook(depth int) {
	var book bookResponse
	c.do(http.MethodGet, "/book?depth="+strconv.Itoa(depth), nil, &book)

	color.NoColor = false
	cyan := color.New(color.FgCyan).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()
	green := color.New(color.FgGreen).SprintfFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "%15s|%15s|%s\n", cyan("Price"), cyan("Quantity"), cyan("Side"))
	fmt.Fprintf(w, "%15s|%15s|%s\n", "---------------", "---------------", "----")

	// Asks print worst first so the best prices meet in the middle
	for i := len(book.Asks) - 1; i >= 0; i-- {
		level := book.Asks[i]
		price, _ := strconv.ParseFloat(level.Price, 64)
		qty, _ := strconv.ParseFloat(level.Quantity, 64)
		fmt.Fprintf(w, "%15.3f|%15.3f|%s\n", price, qty, red("ASK"))
	}

	fmt.Fprintf(w, "%15s|%15s|%s\n", "---------------", "---------------", "----")

	for _, level := range book.Bids {
		price, _ := strconv.ParseFloat(level.Price, 64)
		qty, _ := strconv.ParseFloat(level.Quantity, 64)
		fmt.Fprintf(w, "%15.3f|%15.3f|%s\n", price, qty, green("BID"))
	}

	w.Flush()
}

func (c *client) printStats() {
	var stats statsResponse
	c.do(http.MethodGet, "/stats", nil, &stats)

	log.Info().
		Uint64("trades", stats.Stats.Trades).
		Str("volume", stats.Stats.Volume).
		Int("active_orders", stats.Stats.ActiveOrders).
		Int("bid_levels", stats.BidLevels).
		Int("ask_levels", stats.AskLevels).
		Str("best_bid", stats.BestBid).
		Str("best_ask", stats.BestAsk).
		Str("spread", stats.Spread).
		Msg("Book statistics")
}
