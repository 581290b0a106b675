// Benchmark tool for load testing Harrier's assessment endpoint.
//
// Usage:
//
//	go run ./cmd/benchmark -url http://localhost:8080 -n 5000 -fraud-rate 0.05
//	go run ./cmd/benchmark -csv /path/to/applicants.csv
//
// This tool:
//  1. Generates labelled synthetic applicants, or reads them from a CSV
//  2. Sends each one to POST /v1/assessments
//  3. Compares the fraud recommendation (approve vs review/reject/block) with the label
//  4. Reports precision, recall, F1-score, the confusion matrix and latency percentiles
//
// Synthetic fraud reuses the national ID of an earlier clean applicant and
// submits from a headless browser, the two signals the engine treats as
// strongest evidence.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Applicant is one labelled application.
type Applicant struct {
	ID               string
	NationalID       string
	MonthlyIncome    float64
	EmploymentStatus string
	RequestedAmount  float64
	IPAddress        string
	UserAgent        string
	IsFraud          bool
}

// AssessmentRequest is the Harrier API request format.
type AssessmentRequest struct {
	Entity            map[string]any `json:"entity"`
	RequestedAmount   string         `json:"requested_amount"`
	DeviceFingerprint map[string]any `json:"device_fingerprint,omitempty"`
	IPAddress         string         `json:"ip_address,omitempty"`
}

// AssessmentResponse is the subset of the Harrier response the benchmark reads.
type AssessmentResponse struct {
	AssessmentID string `json:"assessment_id"`
	Score        int    `json:"score"`
	Decision     string `json:"decision"`
	FraudCheck   struct {
		RiskScore      float64  `json:"risk_score"`
		RiskLevel      string   `json:"risk_level"`
		Flags          []string `json:"flags"`
		Recommendation string   `json:"recommendation"`
	} `json:"fraud_check"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // fraud not approved
	FalsePositives int64 // clean applicant not approved
	TrueNegatives  int64 // clean applicant approved
	FalseNegatives int64 // fraud approved

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	Approved    int64
	Conditional int64
	Declined    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) observe(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

func main() {
	csvPath := flag.String("csv", "", "Path to an applicant CSV (default: generate synthetic applicants)")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	partnerID := flag.String("partner", "benchmark", "Partner ID sent in X-Partner-ID")
	count := flag.Int("n", 1000, "Synthetic applicants to generate")
	fraudRate := flag.Float64("fraud-rate", 0.05, "Share of synthetic applicants that are fraudulent (0.0-1.0)")
	seed := flag.Uint64("seed", 1, "Seed for synthetic data")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each assessment result")
	flag.Parse()

	fmt.Println("HARRIER BENCHMARK - assessment load and fraud detection")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Partner ID:  %s\n", *partnerID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run ./cmd/harrier")
		os.Exit(1)
	}
	fmt.Println("Harrier is healthy")

	var applicants []Applicant
	if *csvPath != "" {
		var err error
		applicants, err = readApplicantCSV(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d applicants from %s\n", len(applicants), *csvPath)
	} else {
		runID := strconv.FormatInt(time.Now().Unix(), 36)
		applicants = generateApplicants(*count, *fraudRate, *seed, runID)
		fmt.Printf("Generated %d synthetic applicants\n", len(applicants))
	}
	if len(applicants) == 0 {
		fmt.Println("ERROR: no applicants to send")
		os.Exit(1)
	}

	fraudCount := 0
	for _, a := range applicants {
		if a.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(applicants)))
	fmt.Printf("  - Non-fraud: %d\n", len(applicants)-fraudCount)

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(applicants, *baseURL, *partnerID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
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

var employment = []string{"employed", "employed", "employed", "self_employed", "retired", "student", "unemployed"}

// generateApplicants builds a labelled population. Fraud rows are only
// emitted once at least one clean applicant exists to impersonate.
func generateApplicants(n int, fraudRate float64, seed uint64, runID string) []Applicant {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Applicant, 0, n)
	var clean []Applicant

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("bench-%s-%06d", runID, i)
		ip := fmt.Sprintf("10.%d.%d.%d", rng.IntN(256), rng.IntN(256), 1+rng.IntN(254))

		if len(clean) > 0 && rng.Float64() < fraudRate {
			victim := clean[rng.IntN(len(clean))]
			out = append(out, Applicant{
				ID:               id,
				NationalID:       victim.NationalID,
				MonthlyIncome:    victim.MonthlyIncome,
				EmploymentStatus: "employed",
				RequestedAmount:  float64(20000 + rng.IntN(30000)),
				IPAddress:        ip,
				UserAgent:        "HeadlessChrome/120.0",
				IsFraud:          true,
			})
			continue
		}

		a := Applicant{
			ID:               id,
			NationalID:       fmt.Sprintf("NID-%s-%06d", runID, i),
			MonthlyIncome:    float64(1500 + rng.IntN(12000)),
			EmploymentStatus: employment[rng.IntN(len(employment))],
			RequestedAmount:  float64(1000 + rng.IntN(20000)),
			IPAddress:        ip,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		}
		clean = append(clean, a)
		out = append(out, a)
	}
	return out
}

// readApplicantCSV reads rows with the header
// id,national_id,monthly_income,employment_status,requested_amount,ip_address,user_agent,is_fraud.
func readApplicantCSV(path string) ([]Applicant, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"id", "national_id", "requested_amount", "is_fraud"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	get := func(record []string, col string) string {
		if i, ok := colIndex[col]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	var applicants []Applicant
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		income, _ := strconv.ParseFloat(get(record, "monthly_income"), 64)
		amount, _ := strconv.ParseFloat(get(record, "requested_amount"), 64)
		status := get(record, "employment_status")
		if status == "" {
			status = "employed"
		}
		applicants = append(applicants, Applicant{
			ID:               get(record, "id"),
			NationalID:       get(record, "national_id"),
			MonthlyIncome:    income,
			EmploymentStatus: status,
			RequestedAmount:  amount,
			IPAddress:        get(record, "ip_address"),
			UserAgent:        get(record, "user_agent"),
			IsFraud:          get(record, "is_fraud") == "1",
		})
	}
	return applicants, nil
}

// runBenchmark sends clean applicants first and fraud rows in a second
// wave, so every impersonated identity is on file before it is reused.
func runBenchmark(applicants []Applicant, baseURL, partnerID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	var clean, fraud []Applicant
	for _, a := range applicants {
		if a.IsFraud {
			fraud = append(fraud, a)
		} else {
			clean = append(clean, a)
		}
	}

	runWave(metrics, clean, baseURL, partnerID, numWorkers, verbose)
	runWave(metrics, fraud, baseURL, partnerID, numWorkers, verbose)
	return metrics
}

func runWave(metrics *Metrics, applicants []Applicant, baseURL, partnerID string, numWorkers int, verbose bool) {
	work := make(chan Applicant, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for a := range work {
				start := time.Now()
				result, err := assess(client, baseURL, partnerID, a)
				metrics.observe(time.Since(start))
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", a.ID, err)
					}
					continue
				}
				record(metrics, a, result, verbose)
			}
		}()
	}

	for _, a := range applicants {
		work <- a
	}
	close(work)
	wg.Wait()
}

func record(m *Metrics, a Applicant, result *AssessmentResponse, verbose bool) {
	if a.IsFraud {
		atomic.AddInt64(&m.TotalFraud, 1)
	} else {
		atomic.AddInt64(&m.TotalNonFraud, 1)
	}

	switch result.Decision {
	case "approved":
		atomic.AddInt64(&m.Approved, 1)
	case "conditional":
		atomic.AddInt64(&m.Conditional, 1)
	default:
		atomic.AddInt64(&m.Declined, 1)
	}

	predicted := result.FraudCheck.Recommendation != "approve"
	actual := a.IsFraud
	switch {
	case predicted && actual:
		atomic.AddInt64(&m.TruePositives, 1)
	case predicted && !actual:
		atomic.AddInt64(&m.FalsePositives, 1)
	case !predicted && !actual:
		atomic.AddInt64(&m.TrueNegatives, 1)
	default:
		atomic.AddInt64(&m.FalseNegatives, 1)
	}

	if verbose {
		status := "ok "
		if predicted != actual {
			status = "MISS"
		}
		fmt.Printf("%s %-24s | Fraud: %-5v | Score: %3d | Decision: %-11s | Fraud: %-8s (%.2f)\n",
			status, a.ID, a.IsFraud, result.Score, result.Decision,
			result.FraudCheck.RiskLevel, result.FraudCheck.RiskScore)
	}
}

func assess(client *http.Client, baseURL, partnerID string, a Applicant) (*AssessmentResponse, error) {
	req := AssessmentRequest{
		Entity: map[string]any{
			"type":              "individual",
			"id":                a.ID,
			"updated_at":        time.Now().UTC().Format(time.RFC3339),
			"full_name":         "Applicant " + a.ID,
			"national_id":       a.NationalID,
			"date_of_birth":     "1990-01-01T00:00:00Z",
			"monthly_income":    a.MonthlyIncome,
			"employment_status": a.EmploymentStatus,
		},
		RequestedAmount: strconv.FormatFloat(a.RequestedAmount, 'f', 2, 64),
		IPAddress:       a.IPAddress,
	}
	if a.UserAgent != "" {
		req.DeviceFingerprint = map[string]any{
			"user_agent":        a.UserAgent,
			"screen_resolution": "1920x1080",
			"timezone":          "Africa/Nairobi",
			"language":          "en",
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/v1/assessments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Partner-ID", partnerID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nDECISIONS\n")
	fmt.Printf("   Approved:         %d\n", m.Approved)
	fmt.Printf("   Conditional:      %d\n", m.Conditional)
	fmt.Printf("   Declined:         %d\n", m.Declined)

	fmt.Printf("\nCONFUSION MATRIX (flagged = fraud recommendation other than approve)\n")
	fmt.Println("                     Flagged     Clear")
	fmt.Printf("   Actual  F      %8d  %8d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("          NF      %8d  %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

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
	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f\n", precision)
	fmt.Printf("   Recall:     %.4f\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)
	fmt.Printf("   Accuracy:   %.4f\n", accuracy)

	m.mu.Lock()
	latencies := slices.Clone(m.latencies)
	m.mu.Unlock()
	slices.Sort(latencies)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   Throughput:       %.2f req/sec\n", float64(m.TotalProcessed)/duration.Seconds())
		fmt.Printf("   p50 Latency:      %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
	}
	fmt.Println()
}
