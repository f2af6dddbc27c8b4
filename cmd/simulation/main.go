package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/botfolio/botfolio-api/internal/accounting"
	"github.com/botfolio/botfolio-api/internal/auth"
	"github.com/botfolio/botfolio-api/internal/database"
	"github.com/botfolio/botfolio-api/internal/ledger"
	"github.com/botfolio/botfolio-api/internal/portfolio"
	"github.com/botfolio/botfolio-api/internal/prices"
	"github.com/botfolio/botfolio-api/internal/types"
)

const (
	minFills       = 40
	maxFills       = 300
	numWorkers     = 5
	serverAddress  = "http://localhost:8080"
	simDatabase    = "botfolio-sim.db"
	initialCredits = 1_000_000
	priceDays      = 30
)

var (
	symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the ledger API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"fill":      {name: "Submit Fill"},
			"portfolio": {name: "Get Portfolio"},
			"trades":    {name: "Get Trades"},
			"orders":    {name: "Get Orders"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// submitFill posts a fill to the internal ingestion endpoint
// Returns the committed order ID on success; overselling is reported
// as a conflict by the server and surfaced as an error here
func (sc *simulationClient) submitFill(fill *ledger.FillRequest) (string, bool, error) {
	start := time.Now()
	defer func() {
		sc.stats["fill"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(fill)
	if err != nil {
		return "", false, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/internal/fills", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", false, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Submit fill response")

	if resp.StatusCode == http.StatusConflict {
		// Oversell rejection; the ledger stayed untouched
		return "", true, fmt.Errorf("fill rejected: %s", string(respBody))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", false, fmt.Errorf("submit fill failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool        `json:"success"`
		Data    types.Order `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.OrderID == "" {
		return "", false, fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return result.Data.OrderID, false, nil
}

// getPortfolio retrieves a full portfolio snapshot for an account
func (sc *simulationClient) getPortfolio(accountID string) (*portfolio.Snapshot, error) {
	start := time.Now()
	defer func() {
		sc.stats["portfolio"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/accounts/%s/portfolio", sc.baseURL, accountID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Get portfolio response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get portfolio failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool               `json:"success"`
		Data    portfolio.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getTrades retrieves the closed-trade log for an account
func (sc *simulationClient) getTrades(accountID string) (int, error) {
	start := time.Now()
	defer func() {
		sc.stats["trades"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/accounts/%s/trades", sc.baseURL, accountID),
		nil,
	)
	if err != nil {
		return 0, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get trades failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return len(result.Data), nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// fillResult is one worker's contribution to the summary
type fillResult struct {
	accountID string
	symbol    string
	side      string
	value     float64
}

// main runs the ledger simulation
// It starts a local API server and simulates multiple concurrent bot
// accounts submitting fills, then reads back each portfolio
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of fills to submit
	targetFills := rand.Intn(maxFills-minFills) + minFills
	log.Info().Int("target_fills", targetFills).Msg("Starting simulation")

	resultsChan := make(chan fillResult, targetFills)
	var oversells, failures int64
	var countMu sync.Mutex
	var wg sync.WaitGroup

	// Start worker goroutines, one bot account each
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			submitFillsHTTP(workerID, targetFills/numWorkers, simClient, resultsChan, func(oversell bool) {
				countMu.Lock()
				if oversell {
					oversells++
				} else {
					failures++
				}
				countMu.Unlock()
			})
		}(i)
	}

	// Wait for all fills to be submitted
	wg.Wait()
	close(resultsChan)

	// Collect statistics during processing
	stats := struct {
		TotalFills int
		TotalValue float64
		StartTime  time.Time
		Symbols    map[string]int
		Sides      map[string]int
		Accounts   map[string]bool
	}{
		StartTime: time.Now(),
		Symbols:   make(map[string]int),
		Sides:     make(map[string]int),
		Accounts:  make(map[string]bool),
	}

	for result := range resultsChan {
		stats.TotalFills++
		stats.TotalValue += result.value
		stats.Symbols[result.symbol]++
		stats.Sides[result.side]++
		stats.Accounts[result.accountID] = true
	}

	log.Info().Int("fills_committed", stats.TotalFills).Msg("All fills submitted")

	// Read back every account's portfolio and trades
	for accountID := range stats.Accounts {
		snapshot, err := simClient.getPortfolio(accountID)
		if err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get portfolio")
			continue
		}

		tradeCount, err := simClient.getTrades(accountID)
		if err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get trades")
		}

		log.Info().
			Str("account_id", accountID).
			Str("status", string(snapshot.Status)).
			Float64("cash", snapshot.Cash).
			Float64("total_value", snapshot.TotalValue).
			Float64("pnl", snapshot.Stats.TotalPnL).
			Float64("roi", snapshot.Stats.ROI).
			Float64("win_rate", snapshot.Stats.WinRate).
			Int("positions", len(snapshot.Positions)).
			Int("closed_trades", tradeCount).
			Msg("Portfolio snapshot")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 LEDGER SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Fill Statistics
------------------
Committed Fills:  %d
Oversell Rejects: %d
Failed Fills:     %d
Total Value:      $%.2f
Accounts:         %d
Duration:         %v

📈 Symbol Distribution
--------------------
`, stats.TotalFills, oversells, failures, stats.TotalValue, len(stats.Accounts),
		duration.Round(time.Millisecond))

	// Print symbol distribution with simple ASCII bar chart
	maxSymbolCount := 0
	for _, count := range stats.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}

	for symbol, count := range stats.Symbols {
		barLength := int(float64(count) / float64(maxSymbolCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-6s: %s (%d)\n", symbol, bar, count)
	}

	fmt.Println("\n📉 Side Distribution")
	fmt.Println("------------------")
	for side, count := range stats.Sides {
		barLength := int(float64(count) / float64(stats.TotalFills) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-4s: %s (%d)\n", side, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("committed_fills", stats.TotalFills).
		Int64("oversell_rejects", oversells).
		Int64("failed_fills", failures).
		Float64("total_value", stats.TotalValue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// submitFillsHTTP generates and submits randomized fills for one bot
// account. Buys dominate early so later sells usually have inventory;
// oversell rejections are expected and counted, not fatal.
func submitFillsHTTP(workerID, numFills int, simClient *simulationClient, resultsChan chan<- fillResult, record func(oversell bool)) {
	accountID := fmt.Sprintf("SIM_BOT_%d", workerID)
	base := time.Now().Add(-time.Duration(numFills) * time.Minute)

	for i := 0; i < numFills; i++ {
		side := "buy"
		if i > numFills/4 && rand.Intn(2) == 0 {
			side = "sell"
		}

		fill := &ledger.FillRequest{
			AccountID: accountID,
			Symbol:    symbols[rand.Intn(len(symbols))],
			Side:      accounting.Side(side),
			Quantity:  float64(rand.Intn(20) + 1),
			Price:     float64(rand.Intn(900)+100) + rand.Float64(),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}

		orderID, oversell, err := simClient.submitFill(fill)
		if err != nil {
			if oversell {
				log.Warn().
					Str("account_id", accountID).
					Str("symbol", fill.Symbol).
					Float64("quantity", fill.Quantity).
					Msg("Sell rejected, insufficient position")
			} else {
				log.Error().Err(err).
					Str("account_id", accountID).
					Str("symbol", fill.Symbol).
					Msg("Failed to submit fill")
			}
			record(oversell)
			continue
		}

		resultsChan <- fillResult{
			accountID: accountID,
			symbol:    fill.Symbol,
			side:      side,
			value:     fill.Quantity * fill.Price,
		}
		log.Info().
			Str("account_id", accountID).
			Str("order_id", orderID).
			Str("symbol", fill.Symbol).
			Str("side", side).
			Float64("quantity", fill.Quantity).
			Float64("price", fill.Price).
			Msg("Fill committed")

		// Random sleep between fills
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// seedPrices writes a short daily close history for every simulated
// symbol so portfolio marking has prices to work with
func seedPrices(priceService *prices.Service) error {
	for _, symbol := range symbols {
		price := float64(rand.Intn(900)+100) + rand.Float64()
		for day := priceDays; day > 0; day-- {
			// Random walk, drifting at most 2% a day
			price *= 1 + (rand.Float64()-0.5)*0.04
			date := time.Now().AddDate(0, 0, -day)
			if err := priceService.RecordClose(symbol, price, date); err != nil {
				return err
			}
		}
	}
	return nil
}

// startServer initializes and starts the ledger API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase(simDatabase)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("botfolio-sim-secret")
	ledgerService := ledger.NewService(db, initialCredits)
	priceService := prices.NewService(db)
	portfolioService, err := portfolio.NewService(ledgerService.DB(), priceService, time.Second, initialCredits)
	if err != nil {
		return fmt.Errorf("failed to initialize portfolio service: %w", err)
	}

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Seed price history so snapshots can mark positions
	if err := seedPrices(priceService); err != nil {
		return fmt.Errorf("failed to seed price history: %w", err)
	}

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)

	// Setup routes
	setupRoutes(router, authHandlers, ledgerHandlers, portfolioHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; the simulation skips auth middleware
// so the run exercises the ledger path rather than token validation
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Dashboard read routes
		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:account_id/portfolio", portfolioHandlers.GetPortfolioHandler())
			accounts.GET("/:account_id/trades", portfolioHandlers.GetClosedTradesHandler())
			accounts.GET("/:account_id/orders", ledgerHandlers.GetOrdersHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		{
			internal.POST("/fills", ledgerHandlers.SubmitFillHandler())
		}
	}
}
