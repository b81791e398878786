// Benchmark tool for testing Harrier against a synthetic population.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -customers 500
//
// This tool:
//  1. Generates a synthetic customer population with known laundering
//     patterns injected (structuring days and a smurfing ring)
//  2. Ingests the population through the HTTP API
//  3. Runs a timed analysis pass over the window
//  4. Compares alerted customers with the injected labels and reports
//     precision, recall, and the confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// synthCustomer is one generated customer with its ground-truth label.
type synthCustomer struct {
	ID        string
	AccountID string
	Income    float64
	Dirty     bool // has an injected laundering pattern
}

// synthTx mirrors the transaction ingestion payload.
type synthTx struct {
	ID            string    `json:"id"`
	SourceAccount string    `json:"sourceAccount"`
	DestAccount   string    `json:"destAccount,omitempty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
	Direction     string    `json:"direction"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // dirty customer alerted
	FalsePositives int64 // clean customer alerted
	TrueNegatives  int64 // clean customer not alerted
	FalseNegatives int64 // dirty customer not alerted

	IngestErrors int64
}

const (
	reportingThreshold = 900_000
	windowID           = "bench"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	customers := flag.Int("customers", 500, "Number of customers to generate")
	dirtyFrac := flag.Float64("dirty", 0.05, "Fraction of customers with injected patterns")
	txPerCustomer := flag.Int("tx", 20, "Baseline transactions per customer")
	workers := flag.Int("workers", 10, "Number of concurrent ingest workers")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         HARRIER BENCHMARK - Synthetic AML Population          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Customers:   %d\n", *customers)
	fmt.Printf("Dirty frac:  %.2f\n", *dirtyFrac)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	rng := rand.New(rand.NewSource(*seed))
	population, txs := generate(rng, *customers, *dirtyFrac, *txPerCustomer)

	dirtyCount := 0
	for _, c := range population {
		if c.Dirty {
			dirtyCount++
		}
	}
	fmt.Printf("✓ Generated %d customers (%d dirty) and %d transactions\n",
		len(population), dirtyCount, len(txs))

	metrics := &Metrics{}

	fmt.Printf("\nIngesting with %d workers...\n", *workers)
	ingestStart := time.Now()
	ingest(population, txs, *baseURL, *workers, metrics)
	ingestDuration := time.Since(ingestStart)
	fmt.Printf("✓ Ingested in %v (%d errors)\n", ingestDuration.Round(time.Millisecond), metrics.IngestErrors)

	fmt.Println("\nRunning analysis pass...")
	analysisStart := time.Now()
	alerted, err := runAnalysis(*baseURL)
	if err != nil {
		fmt.Printf("ERROR: analysis failed: %v\n", err)
		os.Exit(1)
	}
	analysisDuration := time.Since(analysisStart)
	fmt.Printf("✓ Analysis completed in %v, %d customers alerted\n",
		analysisDuration.Round(time.Millisecond), len(alerted))

	score(population, alerted, metrics)
	printResults(metrics, len(txs), ingestDuration, analysisDuration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generate builds the population. Clean customers make modest random
// payments. Dirty customers either split a large movement into
// sub-threshold same-day chunks, or participate in a fan-in ring
// aimed at a shared mule account.
func generate(rng *rand.Rand, n int, dirtyFrac float64, txPerCustomer int) ([]synthCustomer, []synthTx) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	population := make([]synthCustomer, 0, n)
	var txs []synthTx
	txSeq := 0

	nextTxID := func() string {
		txSeq++
		return fmt.Sprintf("BTX-%06d", txSeq)
	}

	for i := 0; i < n; i++ {
		c := synthCustomer{
			ID:        fmt.Sprintf("BCUST-%04d", i),
			AccountID: fmt.Sprintf("BACC-%04d", i),
			Income:    300_000 + rng.Float64()*1_200_000,
			Dirty:     rng.Float64() < dirtyFrac,
		}
		population = append(population, c)
	}

	// Baseline activity for everyone.
	for _, c := range population {
		for j := 0; j < txPerCustomer; j++ {
			day := rng.Intn(28)
			dest := population[rng.Intn(len(population))].AccountID
			if dest == c.AccountID {
				dest = ""
			}
			txs = append(txs, synthTx{
				ID:            nextTxID(),
				SourceAccount: c.AccountID,
				DestAccount:   dest,
				Amount:        500 + rng.Float64()*20_000,
				Currency:      "INR",
				Timestamp:     base.AddDate(0, 0, day).Add(time.Duration(rng.Intn(86400)) * time.Second),
				Direction:     "debit",
			})
		}
	}

	// Injected patterns. Half the dirty customers structure; the other
	// half feed a shared mule account.
	muleAccount := "BACC-MULE"
	population = append(population, synthCustomer{
		ID:        "BCUST-MULE",
		AccountID: muleAccount,
		Income:    400_000,
		Dirty:     true,
	})

	structuring := true
	for _, c := range population {
		if !c.Dirty || c.AccountID == muleAccount {
			continue
		}

		if structuring {
			// Four sub-threshold chunks on each of three days.
			for d := 0; d < 3; d++ {
				day := base.AddDate(0, 0, 3+d*7)
				for k := 0; k < 4; k++ {
					txs = append(txs, synthTx{
						ID:            nextTxID(),
						SourceAccount: c.AccountID,
						Amount:        reportingThreshold * (0.7 + rng.Float64()*0.25),
						Currency:      "INR",
						Timestamp:     day.Add(time.Duration(2+k) * time.Hour),
						Direction:     "debit",
					})
				}
			}
		} else {
			// Repeated transfers into the mule account.
			for k := 0; k < 5; k++ {
				txs = append(txs, synthTx{
					ID:            nextTxID(),
					SourceAccount: c.AccountID,
					DestAccount:   muleAccount,
					Amount:        40_000 + rng.Float64()*60_000,
					Currency:      "INR",
					Timestamp:     base.AddDate(0, 0, 10+k).Add(time.Duration(rng.Intn(86400)) * time.Second),
					Direction:     "debit",
				})
			}
		}
		structuring = !structuring
	}

	return population, txs
}

func ingest(population []synthCustomer, txs []synthTx, baseURL string, numWorkers int, metrics *Metrics) {
	client := &http.Client{Timeout: 10 * time.Second}

	for _, c := range population {
		if err := postJSON(client, baseURL+"/customers", map[string]any{
			"id":             c.ID,
			"name":           c.ID,
			"declaredIncome": c.Income,
			"kycComplete":    true,
			"openedAt":       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			atomic.AddInt64(&metrics.IngestErrors, 1)
		}
		if err := postJSON(client, baseURL+"/accounts", map[string]any{
			"id":         c.AccountID,
			"customerId": c.ID,
		}); err != nil {
			atomic.AddInt64(&metrics.IngestErrors, 1)
		}
	}

	work := make(chan synthTx, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &http.Client{Timeout: 10 * time.Second}
			for tx := range work {
				if err := postJSON(c, baseURL+"/transactions", tx); err != nil {
					atomic.AddInt64(&metrics.IngestErrors, 1)
				}
			}
		}()
	}

	for _, tx := range txs {
		work <- tx
	}
	close(work)
	wg.Wait()
}

func postJSON(client *http.Client, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// runAnalysis triggers a pass and returns the set of alerted customers.
func runAnalysis(baseURL string) (map[string]bool, error) {
	client := &http.Client{Timeout: 5 * time.Minute}

	reqBody, _ := json.Marshal(map[string]any{
		"windowId": windowID,
		"start":    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		"end":      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	resp, err := client.Post(baseURL+"/analysis/run", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		Alerts []struct {
			CustomerID string `json:"customerId"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	alerted := make(map[string]bool)
	for _, a := range result.Alerts {
		alerted[a.CustomerID] = true
	}
	return alerted, nil
}

func score(population []synthCustomer, alerted map[string]bool, m *Metrics) {
	for _, c := range population {
		predicted := alerted[c.ID]
		switch {
		case predicted && c.Dirty:
			m.TruePositives++
		case predicted && !c.Dirty:
			m.FalsePositives++
		case !predicted && !c.Dirty:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}
	}
}

func printResults(m *Metrics, txCount int, ingestDuration, analysisDuration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   Alert      No Alert")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  D  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of alerted customers, how many were dirty)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of dirty customers, how many were alerted)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Ingest:     %v (%d transactions)\n", ingestDuration.Round(time.Millisecond), txCount)
	fmt.Printf("   Analysis:   %v\n", analysisDuration.Round(time.Millisecond))
	if analysisDuration > 0 {
		fmt.Printf("   Throughput: %.0f tx/sec analyzed\n", float64(txCount)/analysisDuration.Seconds())
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most injected patterns")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some patterns")
	} else {
		fmt.Println("   ❌ Poor recall - most injected patterns are being missed")
	}
	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	}

	fmt.Println()
}
