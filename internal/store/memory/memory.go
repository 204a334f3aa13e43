package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/xid"
)

// Provider keeps every shop's data in process memory. Dev mode and tests
// only; production uses the postgres provider.
type Provider struct {
	mu          sync.RWMutex
	shops       map[string]domain.Shop
	stores      map[string]*Store
	shopkeepers map[string]domain.ShopkeeperAccount
}

func NewProvider() *Provider {
	return &Provider{
		shops:       make(map[string]domain.Shop),
		stores:      make(map[string]*Store),
		shopkeepers: make(map[string]domain.ShopkeeperAccount),
	}
}

// seedAccounts builds the initial accounts for dev/demo mode. Credentials
// come from SEED_ADMIN_PASSWORD and SEED_KEEPER_PASSWORD; hardcoded dev
// defaults are used with a warning when unset. Never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedAccounts(shopID string) map[string]domain.ShopkeeperAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	keeperPwd := envOr("SEED_KEEPER_PASSWORD", "keeper123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_KEEPER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_KEEPER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	accounts := map[string]domain.ShopkeeperAccount{}
	for _, a := range []struct {
		username string
		password string
		role     string
		shopID   string
	}{
		{"admin", adminPwd, "admin", ""},
		{"keeper", keeperPwd, "shopkeeper", shopID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", a.username, err)
		}
		accounts[a.username] = domain.ShopkeeperAccount{
			ID:        xid.New("usr"),
			Username:  a.username,
			Password:  string(hash),
			Role:      a.role,
			ShopID:    a.shopID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return accounts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a provider with one demo shop, a starter catalog and
// dev accounts.
func NewSeeded() *Provider {
	now := time.Now().UTC()
	shopID := "shop-demo"

	products := []domain.Product{
		{ID: "prod-argus-p1", Name: "Argus P1", Brand: "Voopoo", Category: domain.CategoryDevice, Units: 8, SellPrice: 28000, CostPrice: 19000},
		{ID: "prod-xros-4", Name: "Xros 4", Brand: "Vaporesso", Category: domain.CategoryDevice, Units: 12, SellPrice: 24000, CostPrice: 16500},
		{ID: "prod-gtx-06", Name: "GTX Mesh 0.6ohm", Brand: "Vaporesso", Category: domain.CategoryCoil, Units: 40, SellPrice: 3500, CostPrice: 1800},
		{ID: "prod-pnp-08", Name: "PnP-TW08", Brand: "Voopoo", Category: domain.CategoryCoil, Units: 35, SellPrice: 3800, CostPrice: 2000},
		{ID: "prod-mango-30", Name: "Mango Ice 30ml", Brand: "Juice Head", Category: domain.CategoryELiquid, Units: 15, SellPrice: 9000, CostPrice: 5500, MlCapacity: 30, Barcodes: []string{"8901234500017"}},
		{ID: "prod-grape-60", Name: "Grape Burst 60ml", Brand: "Nasty", Category: domain.CategoryELiquid, Units: 10, SellPrice: 15000, CostPrice: 9000, MlCapacity: 60, Barcodes: []string{"8901234500024"}},
		{ID: "prod-tobacco-30", Name: "Cream Tobacco 30ml", Brand: "Emkay", Category: domain.CategoryELiquid, Units: 20, SellPrice: 8500, CostPrice: 5000, MlCapacity: 30},
	}

	st := newStore(shopID)
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		st.products[p.ID] = p
	}

	return &Provider{
		shops: map[string]domain.Shop{
			shopID: {ID: shopID, Name: "Demo Vape Store", CreatedAt: now},
		},
		stores:      map[string]*Store{shopID: st},
		shopkeepers: seedAccounts(shopID),
	}
}

func (p *Provider) Shop(_ context.Context, shopID string) (store.Repository, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st, ok := p.stores[shopID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return st, nil
}

func (p *Provider) ListShops(_ context.Context) ([]domain.Shop, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	shops := make([]domain.Shop, 0, len(p.shops))
	for _, sh := range p.shops {
		shops = append(shops, sh)
	}
	slices.SortFunc(shops, func(a, b domain.Shop) int {
		return strings.Compare(a.ID, b.ID)
	})
	return shops, nil
}

func (p *Provider) CreateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	if strings.TrimSpace(shop.Name) == "" {
		return nil, store.ErrInvalidOperation
	}
	if shop.ID == "" {
		shop.ID = xid.New("shop")
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.shops[shop.ID]; exists {
		return nil, store.ErrInvalidOperation
	}
	p.shops[shop.ID] = shop
	p.stores[shop.ID] = newStore(shop.ID)
	created := shop
	return &created, nil
}

func (p *Provider) CreateShopkeeper(_ context.Context, account domain.ShopkeeperAccount) error {
	if account.Username == "" || account.Password == "" {
		return store.ErrInvalidOperation
	}
	if account.ID == "" {
		account.ID = xid.New("usr")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.shopkeepers[account.Username]; exists {
		return store.ErrInvalidOperation
	}
	p.shopkeepers[account.Username] = account
	return nil
}

func (p *Provider) FindShopkeeper(_ context.Context, username string) (*domain.ShopkeeperAccount, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	account, ok := p.shopkeepers[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyAccount := account
	return &copyAccount, nil
}

func (p *Provider) ListShopkeepers(_ context.Context) ([]domain.ShopkeeperAccount, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	accounts := make([]domain.ShopkeeperAccount, 0, len(p.shopkeepers))
	for _, a := range p.shopkeepers {
		accounts = append(accounts, a)
	}
	slices.SortFunc(accounts, func(a, b domain.ShopkeeperAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return accounts, nil
}

func (p *Provider) Close() {}

// Store holds one shop's rows behind a single mutex. The mutex is what makes
// the conditional mutations (DecrementUnits, RecordBottleSale) atomic here;
// postgres gets the same guarantee from conditional UPDATEs.
type Store struct {
	mu              sync.RWMutex
	shopID          string
	products        map[string]domain.Product
	bottles         map[string]domain.OpenedBottle
	transactions    []domain.Transaction
	spendings       []domain.Spending
	reports         map[string]domain.SessionReport
	reportBySession map[string]string
	investments     []domain.Investment
}

func newStore(shopID string) *Store {
	return &Store{
		shopID:          shopID,
		products:        make(map[string]domain.Product),
		bottles:         make(map[string]domain.OpenedBottle),
		transactions:    make([]domain.Transaction, 0, 128),
		spendings:       make([]domain.Spending, 0, 32),
		reports:         make(map[string]domain.SessionReport),
		reportBySession: make(map[string]string),
		investments:     make([]domain.Investment, 0, 32),
	}
}

func validCategory(category string) bool {
	switch category {
	case domain.CategoryDevice, domain.CategoryCoil, domain.CategoryELiquid:
		return true
	}
	return false
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || !validCategory(product.Category) {
		return nil, store.ErrInvalidOperation
	}
	if product.Units < 0 || product.SellPrice < 1 || product.CostPrice < 0 {
		return nil, store.ErrInvalidOperation
	}
	if product.Category == domain.CategoryELiquid && product.MlCapacity < 1 {
		return nil, store.ErrInvalidOperation
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidOperation
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if slices.Contains(product.Barcodes, barcode) {
			copyProduct := cloneProduct(product)
			return &copyProduct, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) UpdateProductPrices(_ context.Context, productID string, sellPrice, costPrice *int64) (*domain.Product, error) {
	if sellPrice == nil && costPrice == nil {
		return nil, store.ErrInvalidOperation
	}
	if sellPrice != nil && *sellPrice < 1 {
		return nil, store.ErrInvalidOperation
	}
	if costPrice != nil && *costPrice < 0 {
		return nil, store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sellPrice != nil {
		product.SellPrice = *sellPrice
	}
	if costPrice != nil {
		product.CostPrice = *costPrice
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	if product.HasOpenedBottle {
		return store.ErrInvalidOperation
	}
	delete(s.products, productID)
	return nil
}

func (s *Store) DecrementUnits(_ context.Context, productID string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Units < qty {
		return nil, store.ErrInsufficientStock
	}
	product.Units -= qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) IncrementUnits(_ context.Context, productID string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Units += qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) OpenBottle(_ context.Context, productID string, bottle domain.OpenedBottle) (*domain.OpenedBottle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Category != domain.CategoryELiquid || product.MlCapacity < 1 {
		return nil, store.ErrInvalidOperation
	}
	if product.HasOpenedBottle {
		return nil, store.ErrInvalidOperation
	}
	if product.Units < 1 {
		return nil, store.ErrInsufficientStock
	}

	if bottle.ID == "" {
		bottle.ID = xid.New("btl")
	}
	bottle.ProductID = product.ID
	bottle.ProductName = product.Name
	bottle.CapacityMl = product.MlCapacity
	bottle.RemainingMl = product.MlCapacity
	bottle.Status = domain.BottleStatusOpen
	bottle.Sales = []domain.BottleSale{}
	if bottle.OpenedAt.IsZero() {
		bottle.OpenedAt = time.Now().UTC()
	}

	product.Units--
	product.HasOpenedBottle = true
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	s.bottles[bottle.ID] = bottle

	created := cloneBottle(bottle)
	return &created, nil
}

func (s *Store) GetOpenedBottle(_ context.Context, bottleID string) (*domain.OpenedBottle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bottle, exists := s.bottles[bottleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyBottle := cloneBottle(bottle)
	return &copyBottle, nil
}

func (s *Store) ListOpenedBottles(_ context.Context, includeEmpty bool) ([]domain.OpenedBottle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bottles := make([]domain.OpenedBottle, 0, len(s.bottles))
	for _, b := range s.bottles {
		if !includeEmpty && b.Status != domain.BottleStatusOpen {
			continue
		}
		bottles = append(bottles, cloneBottle(b))
	}
	slices.SortFunc(bottles, func(a, b domain.OpenedBottle) int {
		if a.OpenedAt.Equal(b.OpenedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.OpenedAt.Before(b.OpenedAt) {
			return -1
		}
		return 1
	})
	return bottles, nil
}

func (s *Store) RecordBottleSale(_ context.Context, bottleID string, sale domain.BottleSale) (*domain.OpenedBottle, error) {
	if sale.Ml < 1 {
		return nil, store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bottle, exists := s.bottles[bottleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if bottle.Status != domain.BottleStatusOpen {
		return nil, store.ErrInvalidOperation
	}
	if bottle.RemainingMl < sale.Ml {
		return nil, store.ErrInsufficientVolume
	}

	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}
	bottle.RemainingMl -= sale.Ml
	bottle.Sales = append(bottle.Sales, sale)
	if bottle.RemainingMl == 0 {
		bottle.Status = domain.BottleStatusEmpty
		if product, ok := s.products[bottle.ProductID]; ok {
			product.HasOpenedBottle = false
			product.UpdatedAt = time.Now().UTC()
			s.products[bottle.ProductID] = product
		}
	}
	s.bottles[bottleID] = bottle

	updated := cloneBottle(bottle)
	return &updated, nil
}

func (s *Store) RevertBottleSale(_ context.Context, bottleID string, ml int) error {
	if ml < 1 {
		return store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bottle, exists := s.bottles[bottleID]
	if !exists {
		return store.ErrNotFound
	}

	last := -1
	for i := len(bottle.Sales) - 1; i >= 0; i-- {
		if bottle.Sales[i].Ml == ml {
			last = i
			break
		}
	}
	if last < 0 || bottle.RemainingMl+ml > bottle.CapacityMl {
		return store.ErrInvalidOperation
	}

	bottle.Sales = append(bottle.Sales[:last:last], bottle.Sales[last+1:]...)
	bottle.RemainingMl += ml
	if bottle.Status == domain.BottleStatusEmpty {
		bottle.Status = domain.BottleStatusOpen
		if product, ok := s.products[bottle.ProductID]; ok {
			product.HasOpenedBottle = true
			product.UpdatedAt = time.Now().UTC()
			s.products[bottle.ProductID] = product
		}
	}
	s.bottles[bottleID] = bottle
	return nil
}

func (s *Store) DeleteOpenedBottle(_ context.Context, bottleID string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bottle, exists := s.bottles[bottleID]
	if !exists {
		return store.ErrNotFound
	}
	if bottle.Status == domain.BottleStatusOpen && !force {
		return store.ErrInvalidOperation
	}

	if bottle.Status == domain.BottleStatusOpen {
		if product, ok := s.products[bottle.ProductID]; ok {
			product.HasOpenedBottle = false
			product.UpdatedAt = time.Now().UTC()
			s.products[bottle.ProductID] = product
		}
	}
	delete(s.bottles, bottleID)
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.SessionID == "" || tx.ProductID == "" {
		return nil, store.ErrInvalidOperation
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.PaymentMethod == "" {
		tx.PaymentMethod = domain.PaymentCash
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, tx)
	created := tx
	return &created, nil
}

func (s *Store) ListSessionTransactions(_ context.Context, sessionID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 16)
	for _, tx := range s.transactions {
		if tx.SessionID == sessionID {
			result = append(result, tx)
		}
	}
	sortTransactions(result)
	return result, nil
}

func (s *Store) ListCheckoutTransactions(_ context.Context, checkoutID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 8)
	for _, tx := range s.transactions {
		if tx.CheckoutID == checkoutID {
			result = append(result, tx)
		}
	}
	sortTransactions(result)
	return result, nil
}

func (s *Store) AppendSpending(_ context.Context, spending domain.Spending) (*domain.Spending, error) {
	if spending.SessionID == "" || spending.Amount < 0 || strings.TrimSpace(spending.Reason) == "" {
		return nil, store.ErrInvalidOperation
	}
	if spending.ID == "" {
		spending.ID = xid.New("sp")
	}
	if spending.CreatedAt.IsZero() {
		spending.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.spendings = append(s.spendings, spending)
	created := spending
	return &created, nil
}

func (s *Store) ListSessionSpendings(_ context.Context, sessionID string) ([]domain.Spending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Spending, 0, 8)
	for _, sp := range s.spendings {
		if sp.SessionID == sessionID {
			result = append(result, sp)
		}
	}
	slices.SortFunc(result, func(a, b domain.Spending) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateSessionReport(_ context.Context, report domain.SessionReport) (*domain.SessionReport, error) {
	if report.SessionID == "" {
		return nil, store.ErrInvalidOperation
	}
	if report.ID == "" {
		report.ID = xid.New("rpt")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reportBySession[report.SessionID]; exists {
		return nil, store.ErrDuplicateReport
	}
	s.reports[report.ID] = report
	s.reportBySession[report.SessionID] = report.ID
	created := cloneReport(report)
	return &created, nil
}

func (s *Store) GetSessionReport(_ context.Context, reportID string) (*domain.SessionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[reportID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyReport := cloneReport(report)
	return &copyReport, nil
}

func (s *Store) GetSessionReportBySession(_ context.Context, sessionID string) (*domain.SessionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.reportBySession[sessionID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyReport := cloneReport(s.reports[id])
	return &copyReport, nil
}

func (s *Store) ListSessionReports(_ context.Context, limit int) ([]domain.SessionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.SessionReport, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, cloneReport(r))
	}
	slices.SortFunc(reports, func(a, b domain.SessionReport) int {
		if a.EndTime.Equal(b.EndTime) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.EndTime.After(b.EndTime) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *Store) SetReconciliation(_ context.Context, reportID string, cashSubmitted int64) (*domain.SessionReport, error) {
	if cashSubmitted < 0 {
		return nil, store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, exists := s.reports[reportID]
	if !exists {
		return nil, store.ErrNotFound
	}
	report.Reconciliation = reconcile(report, cashSubmitted)
	s.reports[reportID] = report
	updated := cloneReport(report)
	return &updated, nil
}

func (s *Store) AddCashDeposit(_ context.Context, reportID string, amount int64) (*domain.SessionReport, error) {
	if amount < 1 {
		return nil, store.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, exists := s.reports[reportID]
	if !exists {
		return nil, store.ErrNotFound
	}
	report.Reconciliation = reconcile(report, report.Reconciliation.CashSubmitted+amount)
	s.reports[reportID] = report
	updated := cloneReport(report)
	return &updated, nil
}

func (s *Store) AppendInvestment(_ context.Context, inv domain.Investment) (*domain.Investment, error) {
	if inv.ProductID == "" || inv.Type == "" {
		return nil, store.ErrInvalidOperation
	}
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.investments = append(s.investments, inv)
	created := inv
	return &created, nil
}

func (s *Store) ListInvestments(_ context.Context, limit int) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Investment, len(s.investments))
	copy(result, s.investments)
	slices.SortFunc(result, func(a, b domain.Investment) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// reconcile recomputes the reconciliation block against the report's fixed
// expected total. Over-submission drives the remaining balance negative.
func reconcile(report domain.SessionReport, cashSubmitted int64) domain.Reconciliation {
	now := time.Now().UTC()
	remaining := report.TotalAmount - cashSubmitted
	return domain.Reconciliation{
		CashSubmitted:    cashSubmitted,
		RemainingBalance: remaining,
		IsReconciled:     remaining <= 0,
		ReconciledAt:     &now,
	}
}

func sortTransactions(txs []domain.Transaction) {
	slices.SortFunc(txs, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
}

func cloneProduct(p domain.Product) domain.Product {
	out := p
	out.Barcodes = slices.Clone(p.Barcodes)
	return out
}

func cloneBottle(b domain.OpenedBottle) domain.OpenedBottle {
	out := b
	out.Sales = slices.Clone(b.Sales)
	return out
}

func cloneReport(r domain.SessionReport) domain.SessionReport {
	out := r
	out.SoldItems = slices.Clone(r.SoldItems)
	out.Spendings = slices.Clone(r.Spendings)
	if r.Reconciliation.ReconciledAt != nil {
		t := *r.Reconciliation.ReconciledAt
		out.Reconciliation.ReconciledAt = &t
	}
	return out
}
