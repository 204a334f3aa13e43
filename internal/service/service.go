package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/events"
	"vapetrack/backend/internal/session"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/xid"
)

// ErrNoItemsSold is returned by SellBulk when every cart line failed.
var ErrNoItemsSold = errors.New("no items sold")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the sales, session and reconciliation core. It owns no state of
// its own: durable rows live behind the per-shop repository, live session
// counters in the registry, and the event hub only observes.
type Service struct {
	provider store.Provider
	registry session.Registry
	hub      *events.Hub
}

func New(provider store.Provider, registry session.Registry, hub *events.Hub) *Service {
	return &Service{
		provider: provider,
		registry: registry,
		hub:      hub,
	}
}

func (s *Service) shop(ctx context.Context, shopID string) (store.Repository, error) {
	if shopID == "" {
		return nil, store.ErrInvalidOperation
	}
	return s.provider.Shop(ctx, shopID)
}

// ---- sessions -------------------------------------------------------------

func (s *Service) OpenSession(ctx context.Context, shopID string) (domain.Session, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return domain.Session{}, fmt.Errorf("authenticated shopkeeper required")
	}
	if _, err := s.shop(ctx, shopID); err != nil {
		return domain.Session{}, err
	}

	sess, err := s.registry.Open(ctx, shopID, actor.ID, actor.Username)
	if err != nil {
		return domain.Session{}, err
	}
	return *sess, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	return *sess, nil
}

func (s *Service) ListOpenSessions(ctx context.Context, shopID string) ([]domain.Session, error) {
	return s.registry.ListOpen(ctx, shopID)
}

func (s *Service) GetOpenSessionForShopkeeper(ctx context.Context, shopkeeperID string) (domain.Session, error) {
	sess, err := s.registry.GetOpenForShopkeeper(ctx, shopkeeperID)
	if err != nil {
		return domain.Session{}, err
	}
	return *sess, nil
}

// ---- sales ----------------------------------------------------------------

func (s *Service) Sell(ctx context.Context, shopID string, req domain.SellRequest) (domain.Transaction, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Transaction{}, err
	}
	sess, err := s.registry.Get(ctx, req.SessionID)
	if err != nil {
		return domain.Transaction{}, err
	}

	item := domain.CartItem{
		Kind:      domain.CartItemProduct,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Price:     req.Price,
	}
	tx, err := s.sellProduct(ctx, repo, sess, "", item, req.Customer, req.PaymentMethod)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.hub.PublishSaleCompleted(events.SaleCompleted{
		ShopID:       shopID,
		SessionID:    sess.ID,
		Transactions: []domain.Transaction{*tx},
		TotalAmount:  tx.TotalPrice,
		At:           tx.CreatedAt,
	})
	return *tx, nil
}

func (s *Service) SellMl(ctx context.Context, shopID string, req domain.MlSellRequest) (domain.Transaction, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Transaction{}, err
	}
	sess, err := s.registry.Get(ctx, req.SessionID)
	if err != nil {
		return domain.Transaction{}, err
	}

	item := domain.CartItem{
		Kind:     domain.CartItemMl,
		BottleID: req.BottleID,
		Ml:       req.Ml,
		Price:    req.Price,
	}
	tx, err := s.sellMl(ctx, repo, shopID, sess, "", item, req.Customer, req.PaymentMethod)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.hub.PublishSaleCompleted(events.SaleCompleted{
		ShopID:       shopID,
		SessionID:    sess.ID,
		Transactions: []domain.Transaction{*tx},
		TotalAmount:  tx.TotalPrice,
		At:           tx.CreatedAt,
	})
	return *tx, nil
}

// SellBulk processes a mixed cart under one checkout id. Lines fail
// independently: successes stay committed, failures come back per line, and
// only a fully failed cart is an error.
func (s *Service) SellBulk(ctx context.Context, shopID string, req domain.BulkSellRequest) (domain.BulkSellResult, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.BulkSellResult{}, err
	}
	if len(req.Items) == 0 {
		return domain.BulkSellResult{}, store.ErrInvalidOperation
	}
	sess, err := s.registry.Get(ctx, req.SessionID)
	if err != nil {
		return domain.BulkSellResult{}, err
	}

	result := domain.BulkSellResult{
		CheckoutID: xid.New("chk"),
		SoldItems:  make([]domain.Transaction, 0, len(req.Items)),
	}

	for i, item := range req.Items {
		var (
			tx      *domain.Transaction
			sellErr error
			ref     string
		)
		switch item.Kind {
		case domain.CartItemProduct:
			ref = item.ProductID
			tx, sellErr = s.sellProduct(ctx, repo, sess, result.CheckoutID, item, req.Customer, req.PaymentMethod)
		case domain.CartItemMl:
			ref = item.BottleID
			tx, sellErr = s.sellMl(ctx, repo, shopID, sess, result.CheckoutID, item, req.Customer, req.PaymentMethod)
		default:
			ref = item.ProductID
			sellErr = fmt.Errorf("%w: unknown cart item kind %q", store.ErrInvalidOperation, item.Kind)
		}

		if sellErr != nil {
			result.Errors = append(result.Errors, domain.BulkSellError{
				Index:   i,
				Kind:    item.Kind,
				Ref:     ref,
				Message: sellErr.Error(),
			})
			continue
		}
		result.SoldItems = append(result.SoldItems, *tx)
		result.TotalAmount += tx.TotalPrice
	}

	if len(result.SoldItems) == 0 {
		return result, ErrNoItemsSold
	}

	s.hub.PublishSaleCompleted(events.SaleCompleted{
		ShopID:       shopID,
		SessionID:    sess.ID,
		CheckoutID:   result.CheckoutID,
		Transactions: result.SoldItems,
		TotalAmount:  result.TotalAmount,
		At:           time.Now().UTC(),
	})
	return result, nil
}

// sellProduct is the whole-unit sale path. The conditional decrement comes
// first so a rejected sale leaves no trace.
func (s *Service) sellProduct(ctx context.Context, repo store.Repository, sess *domain.Session, checkoutID string, item domain.CartItem, customer domain.CustomerInfo, payment string) (*domain.Transaction, error) {
	if item.ProductID == "" || item.Quantity < 1 || item.Price < 0 {
		return nil, store.ErrInvalidOperation
	}

	product, err := repo.DecrementUnits(ctx, item.ProductID, item.Quantity)
	if err != nil {
		return nil, err
	}

	originalPrice := product.SellPrice * int64(item.Quantity)
	cartPrice := originalPrice
	if item.Price > 0 {
		cartPrice = item.Price
	}

	sellerID, sellerName := sellerIdentity(ctx, sess)
	tx := domain.Transaction{
		ID:            xid.New("tx"),
		ProductID:     product.ID,
		ProductName:   product.Name,
		Quantity:      item.Quantity,
		UnitPrice:     product.SellPrice,
		TotalPrice:    cartPrice,
		CostPrice:     product.CostPrice * int64(item.Quantity),
		OriginalPrice: originalPrice,
		CartPrice:     cartPrice,
		CheckoutID:    checkoutID,
		SellerID:      sellerID,
		SellerName:    sellerName,
		SessionID:     sess.ID,
		Customer:      customer,
		PaymentMethod: payment,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := repo.AppendTransaction(ctx, tx)
	if err != nil {
		// The decrement already happened; put the units back so the failed
		// sale leaves stock untouched.
		if _, restockErr := repo.IncrementUnits(ctx, item.ProductID, item.Quantity); restockErr != nil {
			log.Printf("[service] WARN: restock after failed transaction append: %v", restockErr)
		}
		return nil, err
	}

	s.record(ctx, sess.ID, created.TotalPrice)
	s.hub.PublishStockUpdated(events.StockUpdated{
		ShopID:    sess.ShopID,
		ProductID: product.ID,
		Units:     product.Units,
		At:        created.CreatedAt,
	})
	return created, nil
}

// sellMl is the fractional sale path. The price of a pour is the
// ml-proportional share of the bottle's catalog price, rounded to a whole
// currency unit at this point.
func (s *Service) sellMl(ctx context.Context, repo store.Repository, shopID string, sess *domain.Session, checkoutID string, item domain.CartItem, customer domain.CustomerInfo, payment string) (*domain.Transaction, error) {
	if item.BottleID == "" || item.Ml < 1 || item.Price < 0 {
		return nil, store.ErrInvalidOperation
	}

	bottle, err := repo.GetOpenedBottle(ctx, item.BottleID)
	if err != nil {
		return nil, err
	}
	product, err := repo.GetProduct(ctx, bottle.ProductID)
	if err != nil {
		return nil, err
	}

	originalPrice := proportional(product.SellPrice, item.Ml, bottle.CapacityMl)
	price := originalPrice
	if item.Price > 0 {
		price = item.Price
	}
	cost := proportional(product.CostPrice, item.Ml, bottle.CapacityMl)

	sellerID, sellerName := sellerIdentity(ctx, sess)
	updated, err := repo.RecordBottleSale(ctx, item.BottleID, domain.BottleSale{
		Ml:         item.Ml,
		Price:      price,
		SellerID:   sellerID,
		SellerName: sellerName,
		SoldAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	tx := domain.Transaction{
		ID:            xid.New("tx"),
		ProductID:     bottle.ProductID,
		ProductName:   fmt.Sprintf("%s (%dml)", bottle.ProductName, item.Ml),
		MlAmount:      item.Ml,
		UnitPrice:     product.SellPrice,
		TotalPrice:    price,
		CostPrice:     cost,
		OriginalPrice: originalPrice,
		CartPrice:     price,
		CheckoutID:    checkoutID,
		SellerID:      sellerID,
		SellerName:    sellerName,
		SessionID:     sess.ID,
		Customer:      customer,
		PaymentMethod: payment,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := repo.AppendTransaction(ctx, tx)
	if err != nil {
		// The pour already happened; put the ml back so the failed sale
		// leaves the bottle untouched.
		if revertErr := repo.RevertBottleSale(ctx, item.BottleID, item.Ml); revertErr != nil {
			log.Printf("[service] WARN: bottle restore after failed transaction append: %v", revertErr)
		}
		return nil, err
	}

	s.record(ctx, sess.ID, created.TotalPrice)
	s.hub.PublishStockUpdated(events.StockUpdated{
		ShopID:      shopID,
		ProductID:   bottle.ProductID,
		BottleID:    updated.ID,
		RemainingMl: updated.RemainingMl,
		At:          created.CreatedAt,
	})
	return created, nil
}

// record updates the registry's running counters. Registry failures are
// logged, never surfaced: the transaction is already durable and the close
// path recomputes totals from the ledger anyway.
func (s *Service) record(ctx context.Context, sessionID string, amount int64) {
	if err := s.registry.Record(ctx, sessionID, amount); err != nil {
		log.Printf("[service] WARN: session counter update failed for %s: %v", sessionID, err)
	}
}

func sellerIdentity(ctx context.Context, sess *domain.Session) (string, string) {
	if actor, ok := ActorFromContext(ctx); ok && actor.ID != "" {
		return actor.ID, actor.Username
	}
	return sess.ShopkeeperID, sess.Username
}

func proportional(price int64, ml, capacity int) int64 {
	if capacity < 1 {
		return 0
	}
	return int64(math.Round(float64(price) * float64(ml) / float64(capacity)))
}

// ---- opened bottles -------------------------------------------------------

func (s *Service) OpenBottle(ctx context.Context, shopID string, productID string) (domain.OpenedBottle, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.OpenedBottle{}, err
	}

	bottle, err := repo.OpenBottle(ctx, productID, domain.OpenedBottle{})
	if err != nil {
		return domain.OpenedBottle{}, err
	}

	if product, err := repo.GetProduct(ctx, productID); err == nil {
		s.hub.PublishStockUpdated(events.StockUpdated{
			ShopID:      shopID,
			ProductID:   productID,
			Units:       product.Units,
			BottleID:    bottle.ID,
			RemainingMl: bottle.RemainingMl,
			At:          bottle.OpenedAt,
		})
	}
	return *bottle, nil
}

func (s *Service) GetOpenedBottle(ctx context.Context, shopID string, bottleID string) (domain.OpenedBottle, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.OpenedBottle{}, err
	}
	bottle, err := repo.GetOpenedBottle(ctx, bottleID)
	if err != nil {
		return domain.OpenedBottle{}, err
	}
	return *bottle, nil
}

func (s *Service) ListOpenedBottles(ctx context.Context, shopID string, includeEmpty bool) ([]domain.OpenedBottle, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return repo.ListOpenedBottles(ctx, includeEmpty)
}

// DeleteBottle removes an opened bottle. Deleting one that still holds
// liquid requires force and the admin role.
func (s *Service) DeleteBottle(ctx context.Context, shopID string, bottleID string, force bool) error {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return err
	}
	if force {
		actor, ok := ActorFromContext(ctx)
		if !ok || actor.Role != "admin" {
			return fmt.Errorf("force delete requires admin role")
		}
	}
	return repo.DeleteOpenedBottle(ctx, bottleID, force)
}

// ---- spendings ------------------------------------------------------------

func (s *Service) RecordSpending(ctx context.Context, shopID string, req domain.SpendingRequest) (domain.Spending, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Spending{}, err
	}
	if strings.TrimSpace(req.Reason) == "" || req.Amount < 0 {
		return domain.Spending{}, store.ErrInvalidOperation
	}
	sess, err := s.registry.Get(ctx, req.SessionID)
	if err != nil {
		return domain.Spending{}, err
	}

	spending, err := repo.AppendSpending(ctx, domain.Spending{
		ID:           xid.New("sp"),
		SessionID:    sess.ID,
		ShopkeeperID: sess.ShopkeeperID,
		Username:     sess.Username,
		Reason:       strings.TrimSpace(req.Reason),
		Amount:       req.Amount,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.Spending{}, err
	}
	return *spending, nil
}

// ---- session close and reports --------------------------------------------

// CloseSession ends the session and snapshots it into a report. Totals are
// recomputed from the transaction and spending ledgers rather than taken
// from the registry counters, so the report stays consistent even after a
// registry restart.
func (s *Service) CloseSession(ctx context.Context, shopID string, sessionID string) (domain.SessionReport, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	final, err := s.registry.End(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	txs, err := repo.ListSessionTransactions(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	spends, err := repo.ListSessionSpendings(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	var totalAmount, totalSpending int64
	var totalItems int
	for _, tx := range txs {
		totalAmount += tx.TotalPrice
		if tx.Quantity > 0 {
			totalItems += tx.Quantity
		} else {
			totalItems++
		}
	}
	for _, sp := range spends {
		totalSpending += sp.Amount
	}

	report := domain.SessionReport{
		ID:             xid.New("rpt"),
		SessionID:      final.ID,
		ShopkeeperID:   final.ShopkeeperID,
		Username:       final.Username,
		StartTime:      final.StartTime,
		EndTime:        *final.EndTime,
		SoldItems:      txs,
		TotalAmount:    totalAmount,
		TotalItemsSold: totalItems,
		Spendings:      spends,
		TotalSpending:  totalSpending,
		Reconciliation: domain.Reconciliation{
			RemainingBalance: totalAmount,
		},
		CreatedAt: time.Now().UTC(),
	}

	created, err := repo.CreateSessionReport(ctx, report)
	if err != nil {
		return domain.SessionReport{}, err
	}

	s.hub.PublishSessionEnded(events.SessionEnded{
		ShopID:   shopID,
		ReportID: created.ID,
		Session:  *final,
		At:       created.EndTime,
	})
	return *created, nil
}

func (s *Service) GetSessionReport(ctx context.Context, shopID string, reportID string) (domain.SessionReport, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	report, err := repo.GetSessionReport(ctx, reportID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	return *report, nil
}

func (s *Service) GetSessionReportBySession(ctx context.Context, shopID string, sessionID string) (domain.SessionReport, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	report, err := repo.GetSessionReportBySession(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	return *report, nil
}

func (s *Service) ListSessionReports(ctx context.Context, shopID string, limit int) ([]domain.SessionReport, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return repo.ListSessionReports(ctx, limit)
}

func (s *Service) ListSessionTransactions(ctx context.Context, shopID string, sessionID string) ([]domain.Transaction, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return repo.ListSessionTransactions(ctx, sessionID)
}

// ---- reconciliation -------------------------------------------------------

// ApplyReconciliation writes the cumulative cash figure for a report. The
// amount is absolute, not a delta: submitting 5000 twice still means 5000
// total. Lowering the figure is allowed, to correct a typo.
func (s *Service) ApplyReconciliation(ctx context.Context, shopID string, reportID string, cashSubmitted int64) (domain.SessionReport, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.SessionReport{}, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	report, err := repo.SetReconciliation(ctx, reportID, cashSubmitted)
	if err != nil {
		return domain.SessionReport{}, err
	}
	return *report, nil
}

// AddCashDeposit is the delta variant: each call hands over a further
// amount, accumulated store-side so concurrent deposits both count.
func (s *Service) AddCashDeposit(ctx context.Context, shopID string, reportID string, amount int64) (domain.SessionReport, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.SessionReport{}, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	report, err := repo.AddCashDeposit(ctx, reportID, amount)
	if err != nil {
		return domain.SessionReport{}, err
	}
	return *report, nil
}

// ---- catalog and investments ----------------------------------------------

func (s *Service) CreateProduct(ctx context.Context, shopID string, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Brand = strings.TrimSpace(req.Brand)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))

	product, err := repo.CreateProduct(ctx, domain.Product{
		Name:       req.Name,
		Brand:      req.Brand,
		Category:   req.Category,
		Units:      req.Units,
		SellPrice:  req.SellPrice,
		CostPrice:  req.CostPrice,
		MlCapacity: req.MlCapacity,
		Barcodes:   req.Barcodes,
	})
	if err != nil {
		return domain.Product{}, err
	}

	if product.Units > 0 {
		s.invest(ctx, repo, domain.Investment{
			Type:        domain.InvestmentProductAdd,
			ProductID:   product.ID,
			ProductName: product.Name,
			Units:       product.Units,
			CostPrice:   product.CostPrice,
			TotalAmount: int64(product.Units) * product.CostPrice,
			CreatedBy:   actor.Username,
		})
	}
	return *product, nil
}

func (s *Service) RestockProduct(ctx context.Context, shopID string, req domain.RestockRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Product{}, err
	}
	if req.Units < 1 {
		return domain.Product{}, store.ErrInvalidOperation
	}

	product, err := repo.IncrementUnits(ctx, req.ProductID, req.Units)
	if err != nil {
		return domain.Product{}, err
	}

	costPrice := product.CostPrice
	if req.CostPrice > 0 {
		costPrice = req.CostPrice
	}
	s.invest(ctx, repo, domain.Investment{
		Type:        domain.InvestmentRestock,
		ProductID:   product.ID,
		ProductName: product.Name,
		Units:       req.Units,
		CostPrice:   costPrice,
		TotalAmount: int64(req.Units) * costPrice,
		CreatedBy:   actor.Username,
		Note:        req.Note,
	})

	s.hub.PublishStockUpdated(events.StockUpdated{
		ShopID:    shopID,
		ProductID: product.ID,
		Units:     product.Units,
		At:        time.Now().UTC(),
	})
	return *product, nil
}

// AdjustStock applies a signed manual correction. Positive corrections are
// recorded as adjustment investments, negative ones as deductions with a
// negative total.
func (s *Service) AdjustStock(ctx context.Context, shopID string, req domain.StockAdjustRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Product{}, err
	}
	if req.Units == 0 {
		return domain.Product{}, store.ErrInvalidOperation
	}

	var product *domain.Product
	invType := domain.InvestmentAdjustment
	if req.Units > 0 {
		product, err = repo.IncrementUnits(ctx, req.ProductID, req.Units)
	} else {
		invType = domain.InvestmentDeduction
		product, err = repo.DecrementUnits(ctx, req.ProductID, -req.Units)
	}
	if err != nil {
		return domain.Product{}, err
	}

	s.invest(ctx, repo, domain.Investment{
		Type:        invType,
		ProductID:   product.ID,
		ProductName: product.Name,
		Units:       req.Units,
		CostPrice:   product.CostPrice,
		TotalAmount: int64(req.Units) * product.CostPrice,
		CreatedBy:   actor.Username,
		Note:        req.Note,
	})

	s.hub.PublishStockUpdated(events.StockUpdated{
		ShopID:    shopID,
		ProductID: product.ID,
		Units:     product.Units,
		At:        time.Now().UTC(),
	})
	return *product, nil
}

// invest appends an audit record. Failures are logged, not surfaced: the
// stock mutation already happened and the audit trail is secondary.
func (s *Service) invest(ctx context.Context, repo store.Repository, inv domain.Investment) {
	if _, err := repo.AppendInvestment(ctx, inv); err != nil {
		log.Printf("[service] WARN: investment append failed for %s: %v", inv.ProductID, err)
	}
}

func (s *Service) GetProduct(ctx context.Context, shopID string, productID string) (domain.Product, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) FindProductByBarcode(ctx context.Context, shopID string, barcode string) (domain.Product, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return repo.ListProducts(ctx)
}

func (s *Service) UpdateProductPrices(ctx context.Context, shopID string, productID string, req domain.ProductPriceUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := repo.UpdateProductPrices(ctx, productID, req.SellPrice, req.CostPrice)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, shopID string, productID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return err
	}
	return repo.DeleteProduct(ctx, productID)
}

func (s *Service) ListInvestments(ctx context.Context, shopID string, limit int) ([]domain.Investment, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	repo, err := s.shop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return repo.ListInvestments(ctx, limit)
}

// ---- shops ----------------------------------------------------------------

func (s *Service) CreateShop(ctx context.Context, shop domain.Shop) (domain.Shop, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Shop{}, fmt.Errorf("admin role required")
	}
	if strings.TrimSpace(shop.Name) == "" {
		return domain.Shop{}, fmt.Errorf("%w: shop name required", store.ErrInvalidOperation)
	}
	created, err := s.provider.CreateShop(ctx, shop)
	if err != nil {
		return domain.Shop{}, err
	}
	return *created, nil
}

func (s *Service) ListShops(ctx context.Context) ([]domain.Shop, error) {
	return s.provider.ListShops(ctx)
}
