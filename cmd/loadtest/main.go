// Command loadtest fires a stream of random orders at a running limitbook
// server and reports throughput and latency percentiles.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"
)

const (
	numWorkers      = 50
	ordersPerWorker = 2000
	maxReqsPerSec   = 5000
)

type orderRequest struct {
	ID       uint64 `json:"id"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "limitbook server address")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, cleaning up...")
		cancel()
	}()

	limiter := rate.NewLimiter(rate.Limit(maxReqsPerSec), maxReqsPerSec)
	var wg sync.WaitGroup
	errChan := make(chan error, numWorkers*ordersPerWorker)

	// One histogram per worker, merged after the run; 1us to 10s range
	histograms := make([]*hdrhistogram.Histogram, numWorkers)
	for i := range histograms {
		histograms[i] = hdrhistogram.New(1, 10_000_000, 3)
	}

	start := time.Now()
	log.Printf("Starting %d workers, %d orders per worker...", numWorkers, ordersPerWorker)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			hist := histograms[workerID]
			for j := 0; j < ordersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					errChan <- fmt.Errorf("rate limiter error: %v", err)
					return
				}

				order := generateRandomOrder(uint64(workerID*ordersPerWorker + j + 1))
				sent := time.Now()
				if err := postOrder(ctx, client, *addr, order); err != nil {
					errChan <- err
					continue
				}
				_ = hist.RecordValue(time.Since(sent).Microseconds())
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)
	close(errChan)

	var errors []error
	for err := range errChan {
		errors = append(errors, err)
	}

	merged := hdrhistogram.New(1, 10_000_000, 3)
	for _, hist := range histograms {
		merged.Merge(hist)
	}

	total := numWorkers * ordersPerWorker
	log.Printf("Load test completed in %v", duration)
	log.Printf("Total orders attempted: %d", total)
	log.Printf("Errors encountered: %d", len(errors))
	log.Printf("Throughput: %.0f orders/sec", float64(total-len(errors))/duration.Seconds())
	log.Printf("Latency p50: %dus  p90: %dus  p99: %dus  p99.9: %dus  max: %dus",
		merged.ValueAtQuantile(50),
		merged.ValueAtQuantile(90),
		merged.ValueAtQuantile(99),
		merged.ValueAtQuantile(99.9),
		merged.Max())

	if len(errors) > 0 {
		log.Printf("First error: %v", errors[0])
		os.Exit(1)
	}
}

func postOrder(ctx context.Context, client *http.Client, addr string, order orderRequest) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/orders", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create order: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d for order %d", resp.StatusCode, order.ID)
	}
	return nil
}

func generateRandomOrder(id uint64) orderRequest {
	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	side := "BUY"
	if r.Float64() < 0.5 {
		side = "SELL"
	}

	// Narrow price band around 100 for a high matching probability
	price := fmt.Sprintf("%.2f", 99.0+r.Float64()*2.0)
	quantity := fmt.Sprintf("%d", 1+r.Intn(100))

	return orderRequest{
		ID:       id,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
}
