package ledger

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/botfolio/botfolio-api/internal/accounting"
	"github.com/botfolio/botfolio-api/internal/database"
)

const testCredits = 1_000_000

var testBase = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return NewService(db, testCredits)
}

func submit(t *testing.T, svc *Service, account, symbol string, side accounting.Side, qty, price float64, offset time.Duration) {
	t.Helper()
	_, err := svc.SubmitFill(FillRequest{
		AccountID: account,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Timestamp: testBase.Add(offset),
	})
	if err != nil {
		t.Fatalf("SubmitFill(%s %s %v@%v) failed: %v", symbol, side, qty, price, err)
	}
}

func accountLots(t *testing.T, svc *Service, account, symbol string) []accounting.Lot {
	t.Helper()
	position, err := svc.DB().GetPosition(account, symbol)
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	lots, err := DecodeLots(position)
	if err != nil {
		t.Fatalf("DecodeLots failed: %v", err)
	}
	return lots
}

func TestSubmitFillLifecycle(t *testing.T) {
	svc := newTestService(t)

	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 10, 100, 0)
	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 5, 110, time.Minute)
	submit(t, svc, "acct-1", "AAPL", accounting.SideSell, 12, 120, 2*time.Minute)

	account, err := svc.DB().GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account == nil {
		t.Fatal("expected account to exist after first fill")
	}

	// -1000 -550 +1440 against the starting balance
	wantCash := testCredits - 10*100.0 - 5*110.0 + 12*120.0
	if math.Abs(account.Cash-wantCash) > accounting.DisplayEpsilon {
		t.Errorf("cash = %v, want %v", account.Cash, wantCash)
	}
	if account.InitialCredits != testCredits {
		t.Errorf("initial credits = %v, want %v", account.InitialCredits, float64(testCredits))
	}

	lots := accountLots(t, svc, "acct-1", "AAPL")
	if len(lots) != 1 {
		t.Fatalf("expected 1 remaining lot, got %d: %+v", len(lots), lots)
	}
	if math.Abs(lots[0].Quantity-3) > accounting.DisplayEpsilon || math.Abs(lots[0].Price-110) > accounting.DisplayEpsilon {
		t.Errorf("remaining lot = %+v, want 3 @ 110", lots[0])
	}

	orders, err := svc.DB().GetOrders("acct-1")
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 order rows, got %d", len(orders))
	}
	for i := 1; i < len(orders); i++ {
		if orders[i].Timestamp.Before(orders[i-1].Timestamp) {
			t.Errorf("order log out of timestamp order at index %d", i)
		}
	}
	for _, order := range orders {
		if order.Status != "filled" {
			t.Errorf("order %s status = %q, want filled", order.OrderID, order.Status)
		}
		if order.OrderType != "market" {
			t.Errorf("order %s type = %q, want market", order.OrderID, order.OrderType)
		}
	}
}

func TestSellWithNoPositionRejected(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SubmitFill(FillRequest{
		AccountID: "acct-1",
		Symbol:    "AAPL",
		Side:      accounting.SideSell,
		Quantity:  1,
		Price:     100,
		Timestamp: testBase,
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}

	// The rejected fill must leave no trace: no order row, and no
	// lazily created account either.
	orders, err := svc.DB().GetOrders("acct-1")
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("expected empty order log after rejection, got %d rows", len(orders))
	}
	account, err := svc.DB().GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account != nil {
		t.Errorf("rejected sell created account %+v, want none", account)
	}

	// A valid buy afterwards still creates the account normally.
	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 1, 100, time.Minute)
	account, err = svc.DB().GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account == nil {
		t.Fatal("expected account after first committed fill")
	}
	if account.InitialCredits != testCredits {
		t.Errorf("initial credits = %v, want %v", account.InitialCredits, float64(testCredits))
	}
}

func TestOversellLeavesLedgerUntouched(t *testing.T) {
	svc := newTestService(t)

	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 5, 100, 0)

	before, err := svc.DB().GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	lotsBefore := accountLots(t, svc, "acct-1", "AAPL")

	_, err = svc.SubmitFill(FillRequest{
		AccountID: "acct-1",
		Symbol:    "AAPL",
		Side:      accounting.SideSell,
		Quantity:  10,
		Price:     120,
		Timestamp: testBase.Add(time.Minute),
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}

	after, err := svc.DB().GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if after.Cash != before.Cash {
		t.Errorf("cash changed across rejected oversell: %v -> %v", before.Cash, after.Cash)
	}

	lotsAfter := accountLots(t, svc, "acct-1", "AAPL")
	if len(lotsAfter) != len(lotsBefore) {
		t.Fatalf("lot count changed across rejected oversell: %d -> %d", len(lotsBefore), len(lotsAfter))
	}
	for i := range lotsBefore {
		if lotsBefore[i] != lotsAfter[i] {
			t.Errorf("lot %d changed across rejected oversell: %+v -> %+v", i, lotsBefore[i], lotsAfter[i])
		}
	}

	orders, err := svc.DB().GetOrders("acct-1")
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("expected only the original buy in the order log, got %d rows", len(orders))
	}
}

// The stored lot document after a sequence of incremental submissions
// must equal a single batch replay of the same fills from empty.
func TestIncrementalMatchesBatchReplay(t *testing.T) {
	svc := newTestService(t)

	type step struct {
		side  accounting.Side
		qty   float64
		price float64
	}
	steps := []step{
		{accounting.SideBuy, 10, 100},
		{accounting.SideBuy, 4, 105},
		{accounting.SideSell, 6, 110},
		{accounting.SideBuy, 2, 95},
		{accounting.SideSell, 7, 115},
	}

	batch := []accounting.Lot{}
	for i, s := range steps {
		offset := time.Duration(i) * time.Minute
		submit(t, svc, "acct-1", "MSFT", s.side, s.qty, s.price, offset)

		var err error
		batch, err = accounting.ApplyFIFO(batch, s.side, s.qty, s.price, testBase.Add(offset))
		if err != nil {
			t.Fatalf("batch ApplyFIFO step %d failed: %v", i, err)
		}
	}

	stored := accountLots(t, svc, "acct-1", "MSFT")
	if len(stored) != len(batch) {
		t.Fatalf("stored lots = %+v, batch replay = %+v", stored, batch)
	}
	for i := range batch {
		if math.Abs(stored[i].Quantity-batch[i].Quantity) > accounting.DisplayEpsilon ||
			math.Abs(stored[i].Price-batch[i].Price) > accounting.DisplayEpsilon {
			t.Errorf("lot %d: stored %+v, batch %+v", i, stored[i], batch[i])
		}
	}
}

func TestPositionDerivedFieldsTrackLots(t *testing.T) {
	svc := newTestService(t)

	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 10, 100, 0)
	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 10, 110, time.Minute)

	position, err := svc.DB().GetPosition("acct-1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if position == nil {
		t.Fatal("expected position to exist")
	}
	if math.Abs(position.Quantity-20) > accounting.DisplayEpsilon {
		t.Errorf("quantity = %v, want 20", position.Quantity)
	}
	if math.Abs(position.AvgPrice-105) > accounting.DisplayEpsilon {
		t.Errorf("avg price = %v, want 105", position.AvgPrice)
	}
}

func TestAccountsAreIsolated(t *testing.T) {
	svc := newTestService(t)

	submit(t, svc, "acct-1", "AAPL", accounting.SideBuy, 10, 100, 0)
	submit(t, svc, "acct-2", "AAPL", accounting.SideBuy, 3, 200, 0)

	// acct-2 cannot sell against acct-1's inventory
	_, err := svc.SubmitFill(FillRequest{
		AccountID: "acct-2",
		Symbol:    "AAPL",
		Side:      accounting.SideSell,
		Quantity:  5,
		Price:     210,
		Timestamp: testBase.Add(time.Minute),
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("expected ErrInsufficientPosition, got %v", err)
	}

	lots := accountLots(t, svc, "acct-1", "AAPL")
	if len(lots) != 1 || lots[0].Quantity != 10 {
		t.Errorf("acct-1 lots disturbed by acct-2's fill: %+v", lots)
	}
}

func TestValidationRejections(t *testing.T) {
	svc := newTestService(t)

	valid := FillRequest{
		AccountID: "acct-1",
		Symbol:    "AAPL",
		Side:      accounting.SideBuy,
		Quantity:  1,
		Price:     100,
		Timestamp: testBase,
	}

	tests := []struct {
		name   string
		mutate func(*FillRequest)
	}{
		{"missing account", func(r *FillRequest) { r.AccountID = "" }},
		{"missing symbol", func(r *FillRequest) { r.Symbol = "" }},
		{"unknown side", func(r *FillRequest) { r.Side = "short" }},
		{"zero quantity", func(r *FillRequest) { r.Quantity = 0 }},
		{"negative quantity", func(r *FillRequest) { r.Quantity = -1 }},
		{"nan quantity", func(r *FillRequest) { r.Quantity = math.NaN() }},
		{"zero price", func(r *FillRequest) { r.Price = 0 }},
		{"infinite price", func(r *FillRequest) { r.Price = math.Inf(1) }},
		{"missing timestamp", func(r *FillRequest) { r.Timestamp = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if _, err := svc.SubmitFill(req); !errors.Is(err, ErrInvalidFill) {
				t.Errorf("expected ErrInvalidFill, got %v", err)
			}
		})
	}

	// None of the rejected requests may have created the account.
	account, err := svc.DB().GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account != nil {
		t.Error("validation rejection created an account")
	}
}

func TestDecodeLotsEmptyDocument(t *testing.T) {
	lots, err := DecodeLots(nil)
	if err != nil {
		t.Fatalf("DecodeLots(nil) failed: %v", err)
	}
	if len(lots) != 0 {
		t.Errorf("DecodeLots(nil) = %+v, want empty", lots)
	}
}
