package service

import (
	"context"
	"errors"
	"testing"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/session"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/store/memory"
)

const testShop = "shop-demo"

func newTestService() (*Service, *memory.Provider, *session.MemoryRegistry) {
	provider := memory.NewSeeded()
	registry := session.NewMemoryRegistry()
	return New(provider, registry, nil), provider, registry
}

func keeperCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		ID:       "keeper-1",
		Username: "keeper",
		Role:     "shopkeeper",
		ShopID:   testShop,
	})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		ID:       "admin-1",
		Username: "admin",
		Role:     "admin",
	})
}

func openSession(t *testing.T, svc *Service, ctx context.Context) domain.Session {
	t.Helper()
	sess, err := svc.OpenSession(ctx, testShop)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return sess
}

func TestSellDecrementsStockAndRecordsTransaction(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	tx, err := svc.Sell(ctx, testShop, domain.SellRequest{
		ProductID: "prod-gtx-06",
		Quantity:  2,
		SessionID: sess.ID,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if tx.TotalPrice != 7000 {
		t.Fatalf("expected total 7000, got %d", tx.TotalPrice)
	}
	if tx.Quantity != 2 || tx.ProductName != "GTX Mesh 0.6ohm" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.PaymentMethod != "cash" {
		t.Fatalf("expected cash default, got %s", tx.PaymentMethod)
	}

	product, err := svc.GetProduct(ctx, testShop, "prod-gtx-06")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Units != 38 {
		t.Fatalf("expected 38 units left, got %d", product.Units)
	}

	got, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.SalesCount != 1 || got.TotalAmount != 7000 {
		t.Fatalf("session counters not updated: %+v", got)
	}
}

func TestSellInsufficientStockLeavesStateUntouched(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	_, err := svc.Sell(ctx, testShop, domain.SellRequest{
		ProductID: "prod-gtx-06",
		Quantity:  41,
		SessionID: sess.ID,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err := svc.GetProduct(ctx, testShop, "prod-gtx-06")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Units != 40 {
		t.Fatalf("stock changed on failed sale: %d", product.Units)
	}
	txs, err := svc.ListSessionTransactions(ctx, testShop, sess.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
	got, _ := svc.GetSession(ctx, sess.ID)
	if got.SalesCount != 0 || got.TotalAmount != 0 {
		t.Fatalf("session counters changed on failed sale: %+v", got)
	}
}

func TestSellRejectsUnknownSession(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Sell(keeperCtx(), testShop, domain.SellRequest{
		ProductID: "prod-gtx-06",
		Quantity:  1,
		SessionID: "sess-nope",
	})
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestPriceOverrideKeepsOriginalPrice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	tx, err := svc.Sell(ctx, testShop, domain.SellRequest{
		ProductID: "prod-gtx-06",
		Quantity:  2,
		Price:     6000,
		SessionID: sess.ID,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if tx.TotalPrice != 6000 || tx.CartPrice != 6000 {
		t.Fatalf("expected overridden total 6000, got %d / %d", tx.TotalPrice, tx.CartPrice)
	}
	if tx.OriginalPrice != 7000 {
		t.Fatalf("expected catalog total 7000 retained, got %d", tx.OriginalPrice)
	}
}

func TestOpenBottleConvertsOneSealedUnit(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()

	bottle, err := svc.OpenBottle(ctx, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}
	if bottle.CapacityMl != 30 || bottle.RemainingMl != 30 {
		t.Fatalf("expected full 30ml bottle, got %+v", bottle)
	}
	if bottle.Status != domain.BottleStatusOpen {
		t.Fatalf("expected open status, got %s", bottle.Status)
	}

	product, err := svc.GetProduct(ctx, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Units != 14 {
		t.Fatalf("expected 14 sealed units, got %d", product.Units)
	}
	if !product.HasOpenedBottle {
		t.Fatal("expected opened-bottle flag set")
	}

	// One open bottle per product at a time.
	if _, err := svc.OpenBottle(ctx, testShop, "prod-mango-30"); !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation on second open, got %v", err)
	}

	// Devices cannot be opened.
	if _, err := svc.OpenBottle(ctx, testShop, "prod-argus-p1"); !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation for device, got %v", err)
	}
}

func TestSellMlProportionalPriceAndDepletion(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	// 60ml bottle at 15000: 10ml is exactly 2500.
	bottle, err := svc.OpenBottle(ctx, testShop, "prod-grape-60")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	tx, err := svc.SellMl(ctx, testShop, domain.MlSellRequest{
		BottleID:  bottle.ID,
		Ml:        10,
		SessionID: sess.ID,
	})
	if err != nil {
		t.Fatalf("sell ml: %v", err)
	}
	if tx.TotalPrice != 2500 {
		t.Fatalf("expected proportional price 2500, got %d", tx.TotalPrice)
	}
	if tx.MlAmount != 10 || tx.Quantity != 0 {
		t.Fatalf("unexpected ml transaction: %+v", tx)
	}

	// Drain the rest; depletion flips the bottle to empty and frees the
	// product for a new open.
	if _, err := svc.SellMl(ctx, testShop, domain.MlSellRequest{BottleID: bottle.ID, Ml: 50, SessionID: sess.ID}); err != nil {
		t.Fatalf("drain: %v", err)
	}

	drained, err := svc.GetOpenedBottle(ctx, testShop, bottle.ID)
	if err != nil {
		t.Fatalf("get bottle: %v", err)
	}
	if drained.Status != domain.BottleStatusEmpty || drained.RemainingMl != 0 {
		t.Fatalf("expected empty bottle, got %+v", drained)
	}
	if len(drained.Sales) != 2 {
		t.Fatalf("expected 2 pours in history, got %d", len(drained.Sales))
	}

	product, _ := svc.GetProduct(ctx, testShop, "prod-grape-60")
	if product.HasOpenedBottle {
		t.Fatal("expected opened-bottle flag cleared after depletion")
	}

	// Selling from an empty bottle is invalid, not insufficient.
	if _, err := svc.SellMl(ctx, testShop, domain.MlSellRequest{BottleID: bottle.ID, Ml: 1, SessionID: sess.ID}); !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation on empty bottle, got %v", err)
	}

	if _, err := svc.OpenBottle(ctx, testShop, "prod-grape-60"); err != nil {
		t.Fatalf("reopen after depletion: %v", err)
	}
}

func TestSellMlInsufficientVolumeLeavesBottleUntouched(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	bottle, err := svc.OpenBottle(ctx, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	_, err = svc.SellMl(ctx, testShop, domain.MlSellRequest{
		BottleID:  bottle.ID,
		Ml:        31,
		SessionID: sess.ID,
	})
	if !errors.Is(err, store.ErrInsufficientVolume) {
		t.Fatalf("expected ErrInsufficientVolume, got %v", err)
	}

	got, _ := svc.GetOpenedBottle(ctx, testShop, bottle.ID)
	if got.RemainingMl != 30 || len(got.Sales) != 0 {
		t.Fatalf("bottle changed on failed pour: %+v", got)
	}
}

// failingLedgerProvider makes every transaction append fail so the
// compensation paths can be exercised.
type failingLedgerProvider struct {
	store.Provider
}

func (p failingLedgerProvider) Shop(ctx context.Context, shopID string) (store.Repository, error) {
	repo, err := p.Provider.Shop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return failingLedgerRepo{Repository: repo}, nil
}

type failingLedgerRepo struct {
	store.Repository
}

func (failingLedgerRepo) AppendTransaction(context.Context, domain.Transaction) (*domain.Transaction, error) {
	return nil, errors.New("ledger unavailable")
}

func TestSellFailedLedgerWriteRestocksUnits(t *testing.T) {
	svc := New(failingLedgerProvider{Provider: memory.NewSeeded()}, session.NewMemoryRegistry(), nil)
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	_, err := svc.Sell(ctx, testShop, domain.SellRequest{
		ProductID: "prod-gtx-06",
		Quantity:  2,
		SessionID: sess.ID,
	})
	if err == nil {
		t.Fatal("expected sell to fail when the transaction write fails")
	}

	product, err := svc.GetProduct(ctx, testShop, "prod-gtx-06")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Units != 40 {
		t.Fatalf("stock not restored after failed sale: %d", product.Units)
	}
	got, _ := svc.GetSession(ctx, sess.ID)
	if got.SalesCount != 0 || got.TotalAmount != 0 {
		t.Fatalf("session counters changed on failed sale: %+v", got)
	}
}

func TestSellMlFailedLedgerWriteRestoresBottle(t *testing.T) {
	svc := New(failingLedgerProvider{Provider: memory.NewSeeded()}, session.NewMemoryRegistry(), nil)
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	bottle, err := svc.OpenBottle(ctx, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	_, err = svc.SellMl(ctx, testShop, domain.MlSellRequest{
		BottleID:  bottle.ID,
		Ml:        10,
		SessionID: sess.ID,
	})
	if err == nil {
		t.Fatal("expected ml sale to fail when the transaction write fails")
	}

	got, err := svc.GetOpenedBottle(ctx, testShop, bottle.ID)
	if err != nil {
		t.Fatalf("get bottle: %v", err)
	}
	if got.RemainingMl != 30 {
		t.Fatalf("volume not restored after failed sale: %d", got.RemainingMl)
	}
	if len(got.Sales) != 0 {
		t.Fatalf("orphan pour left in history: %+v", got.Sales)
	}
	sess2, _ := svc.GetSession(ctx, sess.ID)
	if sess2.SalesCount != 0 || sess2.TotalAmount != 0 {
		t.Fatalf("session counters changed on failed sale: %+v", sess2)
	}
}

func TestSellMlFailedLedgerWriteRevertsEmptyTransition(t *testing.T) {
	svc := New(failingLedgerProvider{Provider: memory.NewSeeded()}, session.NewMemoryRegistry(), nil)
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	bottle, err := svc.OpenBottle(ctx, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	// Draining the whole bottle flips it to empty before the transaction
	// write fails; the restore must re-open it and re-set the product flag.
	_, err = svc.SellMl(ctx, testShop, domain.MlSellRequest{
		BottleID:  bottle.ID,
		Ml:        30,
		SessionID: sess.ID,
	})
	if err == nil {
		t.Fatal("expected ml sale to fail when the transaction write fails")
	}

	got, err := svc.GetOpenedBottle(ctx, testShop, bottle.ID)
	if err != nil {
		t.Fatalf("get bottle: %v", err)
	}
	if got.Status != domain.BottleStatusOpen || got.RemainingMl != 30 {
		t.Fatalf("bottle not restored to open: %+v", got)
	}

	product, _ := svc.GetProduct(ctx, testShop, "prod-mango-30")
	if !product.HasOpenedBottle {
		t.Fatal("expected opened-bottle flag restored after failed sale")
	}
}

func TestMlPriceRoundsToWholeUnit(t *testing.T) {
	svc, _, _ := newTestService()
	admin := adminCtx()
	keeper := keeperCtx()

	product, err := svc.CreateProduct(admin, testShop, domain.ProductCreateRequest{
		Name:       "Rounding Juice 30ml",
		Brand:      "Test",
		Category:   domain.CategoryELiquid,
		Units:      2,
		SellPrice:  1000,
		CostPrice:  600,
		MlCapacity: 30,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	sess := openSession(t, svc, keeper)
	bottle, err := svc.OpenBottle(keeper, testShop, product.ID)
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	// 7/30 of 1000 is 233.33; the charge is a whole unit.
	tx, err := svc.SellMl(keeper, testShop, domain.MlSellRequest{
		BottleID:  bottle.ID,
		Ml:        7,
		SessionID: sess.ID,
	})
	if err != nil {
		t.Fatalf("sell ml: %v", err)
	}
	if tx.TotalPrice != 233 {
		t.Fatalf("expected rounded price 233, got %d", tx.TotalPrice)
	}
}

func TestDuplicateSessionRejected(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()

	openSession(t, svc, ctx)
	if _, err := svc.OpenSession(ctx, testShop); !errors.Is(err, session.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestCloseSessionBuildsReportFromLedger(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	if _, err := svc.Sell(ctx, testShop, domain.SellRequest{ProductID: "prod-gtx-06", Quantity: 1, SessionID: sess.ID}); err != nil {
		t.Fatalf("sell coil: %v", err)
	}
	if _, err := svc.Sell(ctx, testShop, domain.SellRequest{ProductID: "prod-pnp-08", Quantity: 2, SessionID: sess.ID}); err != nil {
		t.Fatalf("sell coils: %v", err)
	}
	bottle, err := svc.OpenBottle(ctx, testShop, "prod-grape-60")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}
	if _, err := svc.SellMl(ctx, testShop, domain.MlSellRequest{BottleID: bottle.ID, Ml: 10, SessionID: sess.ID}); err != nil {
		t.Fatalf("sell ml: %v", err)
	}
	if _, err := svc.RecordSpending(ctx, testShop, domain.SpendingRequest{SessionID: sess.ID, Reason: "window cleaner", Amount: 800}); err != nil {
		t.Fatalf("spending: %v", err)
	}

	report, err := svc.CloseSession(ctx, testShop, sess.ID)
	if err != nil {
		t.Fatalf("close session: %v", err)
	}

	// 3500 + 7600 + 2500 from the ledger, not the registry counters.
	if report.TotalAmount != 13600 {
		t.Fatalf("expected total 13600, got %d", report.TotalAmount)
	}
	if report.TotalItemsSold != 4 {
		t.Fatalf("expected 4 items (3 units + 1 pour), got %d", report.TotalItemsSold)
	}
	if len(report.SoldItems) != 3 || len(report.Spendings) != 1 {
		t.Fatalf("unexpected report contents: %d items, %d spendings", len(report.SoldItems), len(report.Spendings))
	}
	if report.TotalSpending != 800 {
		t.Fatalf("expected spending 800, got %d", report.TotalSpending)
	}
	if report.Reconciliation.CashSubmitted != 0 || report.Reconciliation.RemainingBalance != 13600 {
		t.Fatalf("expected zeroed reconciliation, got %+v", report.Reconciliation)
	}
	if report.Reconciliation.IsReconciled {
		t.Fatal("fresh report must not be reconciled")
	}

	// The session is gone: closing again or selling against it fails.
	if _, err := svc.CloseSession(ctx, testShop, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double close, got %v", err)
	}
	if _, err := svc.Sell(ctx, testShop, domain.SellRequest{ProductID: "prod-gtx-06", Quantity: 1, SessionID: sess.ID}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound selling into closed session, got %v", err)
	}
}

func TestDuplicateReportRejected(t *testing.T) {
	svc, provider, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	if _, err := svc.Sell(ctx, testShop, domain.SellRequest{ProductID: "prod-gtx-06", Quantity: 1, SessionID: sess.ID}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	report, err := svc.CloseSession(ctx, testShop, sess.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	repo, err := provider.Shop(ctx, testShop)
	if err != nil {
		t.Fatalf("shop handle: %v", err)
	}
	_, err = repo.CreateSessionReport(ctx, domain.SessionReport{
		SessionID: report.SessionID,
		StartTime: report.StartTime,
		EndTime:   report.EndTime,
	})
	if !errors.Is(err, store.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}
}

func TestSpendingRequiresOpenSession(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	if _, err := svc.CloseSession(ctx, testShop, sess.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := svc.RecordSpending(ctx, testShop, domain.SpendingRequest{SessionID: sess.ID, Reason: "late taxi", Amount: 500})
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReconciliationIsAbsoluteAndCumulative(t *testing.T) {
	svc, _, _ := newTestService()
	keeper := keeperCtx()
	admin := adminCtx()
	sess := openSession(t, svc, keeper)

	if _, err := svc.Sell(keeper, testShop, domain.SellRequest{ProductID: "prod-argus-p1", Quantity: 1, SessionID: sess.ID}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	report, err := svc.CloseSession(keeper, testShop, sess.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	// Total is 28000.

	// Shopkeepers cannot reconcile.
	if _, err := svc.ApplyReconciliation(keeper, testShop, report.ID, 10000); err == nil {
		t.Fatal("expected role rejection for shopkeeper")
	}

	r1, err := svc.ApplyReconciliation(admin, testShop, report.ID, 10000)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r1.Reconciliation.CashSubmitted != 10000 || r1.Reconciliation.RemainingBalance != 18000 {
		t.Fatalf("unexpected reconciliation: %+v", r1.Reconciliation)
	}
	if r1.Reconciliation.IsReconciled {
		t.Fatal("partial hand-over must not mark reconciled")
	}

	// Absolute, not additive: submitting 10000 again changes nothing.
	r2, err := svc.ApplyReconciliation(admin, testShop, report.ID, 10000)
	if err != nil {
		t.Fatalf("reconcile repeat: %v", err)
	}
	if r2.Reconciliation.CashSubmitted != 10000 {
		t.Fatalf("expected cumulative figure 10000, got %d", r2.Reconciliation.CashSubmitted)
	}

	// Over-submission goes negative and stays reconciled.
	r3, err := svc.ApplyReconciliation(admin, testShop, report.ID, 28500)
	if err != nil {
		t.Fatalf("reconcile over: %v", err)
	}
	if r3.Reconciliation.RemainingBalance != -500 {
		t.Fatalf("expected -500 remaining, got %d", r3.Reconciliation.RemainingBalance)
	}
	if !r3.Reconciliation.IsReconciled || r3.Reconciliation.ReconciledAt == nil {
		t.Fatalf("expected reconciled report, got %+v", r3.Reconciliation)
	}

	// The immutable part of the report never moved.
	if r3.TotalAmount != report.TotalAmount || len(r3.SoldItems) != len(report.SoldItems) {
		t.Fatalf("report snapshot changed during reconciliation")
	}
}

func TestAddCashDepositAccumulates(t *testing.T) {
	svc, _, _ := newTestService()
	keeper := keeperCtx()
	admin := adminCtx()
	sess := openSession(t, svc, keeper)

	if _, err := svc.Sell(keeper, testShop, domain.SellRequest{ProductID: "prod-xros-4", Quantity: 1, SessionID: sess.ID}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	report, err := svc.CloseSession(keeper, testShop, sess.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	// Total is 24000.

	r1, err := svc.AddCashDeposit(admin, testShop, report.ID, 9000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if r1.Reconciliation.CashSubmitted != 9000 || r1.Reconciliation.RemainingBalance != 15000 {
		t.Fatalf("unexpected after first deposit: %+v", r1.Reconciliation)
	}

	r2, err := svc.AddCashDeposit(admin, testShop, report.ID, 15000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if r2.Reconciliation.CashSubmitted != 24000 || r2.Reconciliation.RemainingBalance != 0 {
		t.Fatalf("unexpected after second deposit: %+v", r2.Reconciliation)
	}
	if !r2.Reconciliation.IsReconciled {
		t.Fatal("expected reconciled after full deposit")
	}

	if _, err := svc.AddCashDeposit(admin, testShop, report.ID, 0); !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected rejection of non-positive deposit, got %v", err)
	}
}

func TestBulkSalePartialSuccess(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	bottle, err := svc.OpenBottle(ctx, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	result, err := svc.SellBulk(ctx, testShop, domain.BulkSellRequest{
		SessionID: sess.ID,
		Items: []domain.CartItem{
			{Kind: domain.CartItemProduct, ProductID: "prod-gtx-06", Quantity: 2},
			{Kind: domain.CartItemProduct, ProductID: "prod-argus-p1", Quantity: 99},
			{Kind: domain.CartItemMl, BottleID: bottle.ID, Ml: 5},
			{Kind: domain.CartItemMl, BottleID: "btl-nope", Ml: 5},
			{Kind: "subscription", ProductID: "prod-gtx-06"},
		},
	})
	if err != nil {
		t.Fatalf("bulk sell: %v", err)
	}

	if len(result.SoldItems) != 2 {
		t.Fatalf("expected 2 sold lines, got %d", len(result.SoldItems))
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 line errors, got %d: %+v", len(result.Errors), result.Errors)
	}
	for _, tx := range result.SoldItems {
		if tx.CheckoutID != result.CheckoutID {
			t.Fatalf("sold line missing shared checkout id: %+v", tx)
		}
	}
	// 7000 for the coils + 1500 for 5ml of the 30ml/9000 bottle.
	if result.TotalAmount != 8500 {
		t.Fatalf("expected batch total 8500, got %d", result.TotalAmount)
	}

	// Failed lines left their stock alone.
	device, _ := svc.GetProduct(ctx, testShop, "prod-argus-p1")
	if device.Units != 8 {
		t.Fatalf("failed line moved stock: %d", device.Units)
	}

	// Indexes identify the failed lines.
	failedIdx := map[int]bool{}
	for _, e := range result.Errors {
		failedIdx[e.Index] = true
	}
	if !failedIdx[1] || !failedIdx[3] || !failedIdx[4] {
		t.Fatalf("unexpected failed indexes: %+v", result.Errors)
	}
}

func TestBulkSaleAllFailed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := keeperCtx()
	sess := openSession(t, svc, ctx)

	result, err := svc.SellBulk(ctx, testShop, domain.BulkSellRequest{
		SessionID: sess.ID,
		Items: []domain.CartItem{
			{Kind: domain.CartItemProduct, ProductID: "prod-missing", Quantity: 1},
			{Kind: domain.CartItemMl, BottleID: "btl-missing", Ml: 5},
		},
	})
	if !errors.Is(err, ErrNoItemsSold) {
		t.Fatalf("expected ErrNoItemsSold, got %v", err)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected both lines reported, got %+v", result.Errors)
	}
}

func TestInvestmentAuditTrail(t *testing.T) {
	svc, _, _ := newTestService()
	admin := adminCtx()

	product, err := svc.CreateProduct(admin, testShop, domain.ProductCreateRequest{
		Name:      "Audit Coil",
		Brand:     "Test",
		Category:  domain.CategoryCoil,
		Units:     10,
		SellPrice: 4000,
		CostPrice: 2000,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := svc.RestockProduct(admin, testShop, domain.RestockRequest{ProductID: product.ID, Units: 5}); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := svc.AdjustStock(admin, testShop, domain.StockAdjustRequest{ProductID: product.ID, Units: -3, Note: "damaged box"}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	final, _ := svc.GetProduct(admin, testShop, product.ID)
	if final.Units != 12 {
		t.Fatalf("expected 12 units after restock and deduction, got %d", final.Units)
	}

	invs, err := svc.ListInvestments(admin, testShop, 0)
	if err != nil {
		t.Fatalf("list investments: %v", err)
	}
	var add, restock, deduct *domain.Investment
	for i := range invs {
		if invs[i].ProductID != product.ID {
			continue
		}
		switch invs[i].Type {
		case domain.InvestmentProductAdd:
			add = &invs[i]
		case domain.InvestmentRestock:
			restock = &invs[i]
		case domain.InvestmentDeduction:
			deduct = &invs[i]
		}
	}
	if add == nil || add.TotalAmount != 20000 {
		t.Fatalf("bad product_add investment: %+v", add)
	}
	if restock == nil || restock.TotalAmount != 10000 {
		t.Fatalf("bad restock investment: %+v", restock)
	}
	if deduct == nil || deduct.Units != -3 || deduct.TotalAmount != -6000 {
		t.Fatalf("bad deduction investment: %+v", deduct)
	}

	// Shopkeepers see no investments.
	if _, err := svc.ListInvestments(keeperCtx(), testShop, 0); err == nil {
		t.Fatal("expected role rejection for shopkeeper")
	}
}

func TestDeleteBottleForceRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService()
	keeper := keeperCtx()

	bottle, err := svc.OpenBottle(keeper, testShop, "prod-mango-30")
	if err != nil {
		t.Fatalf("open bottle: %v", err)
	}

	// A bottle with liquid cannot be deleted without force.
	if err := svc.DeleteBottle(keeper, testShop, bottle.ID, false); !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
	if err := svc.DeleteBottle(keeper, testShop, bottle.ID, true); err == nil {
		t.Fatal("expected role rejection for forced delete")
	}

	if err := svc.DeleteBottle(adminCtx(), testShop, bottle.ID, true); err != nil {
		t.Fatalf("forced delete: %v", err)
	}

	// The product is free to open a new bottle again.
	product, _ := svc.GetProduct(keeper, testShop, "prod-mango-30")
	if product.HasOpenedBottle {
		t.Fatal("expected opened-bottle flag cleared after forced delete")
	}
}

func TestShopIsolation(t *testing.T) {
	svc, provider, _ := newTestService()
	admin := adminCtx()

	shop2, err := provider.CreateShop(context.Background(), domain.Shop{Name: "Second Branch"})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}

	if _, err := svc.CreateProduct(admin, shop2.ID, domain.ProductCreateRequest{
		Name:      "Branch Coil",
		Brand:     "Test",
		Category:  domain.CategoryCoil,
		Units:     5,
		SellPrice: 3000,
	}); err != nil {
		t.Fatalf("create product in second shop: %v", err)
	}

	// The demo shop never sees the other branch's product.
	demoProducts, err := svc.ListProducts(admin, testShop)
	if err != nil {
		t.Fatalf("list demo products: %v", err)
	}
	for _, p := range demoProducts {
		if p.Name == "Branch Coil" {
			t.Fatal("product leaked across shops")
		}
	}

	branchProducts, err := svc.ListProducts(admin, shop2.ID)
	if err != nil {
		t.Fatalf("list branch products: %v", err)
	}
	if len(branchProducts) != 1 {
		t.Fatalf("expected 1 product in new shop, got %d", len(branchProducts))
	}
}
