package store

import (
	"context"
	"errors"

	"vapetrack/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientVolume = errors.New("insufficient volume")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrDuplicateReport    = errors.New("duplicate session report")
)

// Provider hands out isolated per-shop repositories. A Repository obtained
// for one shop can never observe another shop's rows. Shopkeeper accounts
// live at provider level because authentication happens before a shop is
// known.
type Provider interface {
	Shop(ctx context.Context, shopID string) (Repository, error)
	ListShops(ctx context.Context) ([]domain.Shop, error)
	CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)
	CreateShopkeeper(ctx context.Context, account domain.ShopkeeperAccount) error
	FindShopkeeper(ctx context.Context, username string) (*domain.ShopkeeperAccount, error)
	ListShopkeepers(ctx context.Context) ([]domain.ShopkeeperAccount, error)
	Close()
}

// Repository is the durable store of one shop. DecrementUnits and
// RecordBottleSale are the conditional mutations the sales core relies on:
// they must check and apply atomically so stock and remaining volume can
// never go negative under concurrent sales.
type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProductPrices(ctx context.Context, productID string, sellPrice, costPrice *int64) (*domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error

	// DecrementUnits subtracts qty only when current units >= qty and returns
	// the updated product, or ErrInsufficientStock without changing anything.
	DecrementUnits(ctx context.Context, productID string, qty int) (*domain.Product, error)
	IncrementUnits(ctx context.Context, productID string, qty int) (*domain.Product, error)

	// OpenBottle converts one sealed unit into an opened bottle: decrements
	// the product by one unit and sets its opened flag in the same indivisible
	// operation. ErrInvalidOperation when the product already has an open
	// bottle or is not an e-liquid.
	OpenBottle(ctx context.Context, productID string, bottle domain.OpenedBottle) (*domain.OpenedBottle, error)
	GetOpenedBottle(ctx context.Context, bottleID string) (*domain.OpenedBottle, error)
	ListOpenedBottles(ctx context.Context, includeEmpty bool) ([]domain.OpenedBottle, error)
	// RecordBottleSale subtracts ml from the bottle only when it is open and
	// remaining >= ml, appending the sale to the bottle history. A bottle
	// reaching zero flips to empty and clears the product's opened flag.
	RecordBottleSale(ctx context.Context, bottleID string, sale domain.BottleSale) (*domain.OpenedBottle, error)
	// RevertBottleSale undoes the most recent pour of ml from the bottle:
	// restores the volume, drops the matching history entry, and re-opens a
	// bottle the pour had emptied. Counterpart of IncrementUnits for unwinding
	// a pour whose transaction write failed.
	RevertBottleSale(ctx context.Context, bottleID string, ml int) error
	DeleteOpenedBottle(ctx context.Context, bottleID string, force bool) error

	AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	ListSessionTransactions(ctx context.Context, sessionID string) ([]domain.Transaction, error)
	ListCheckoutTransactions(ctx context.Context, checkoutID string) ([]domain.Transaction, error)

	AppendSpending(ctx context.Context, spending domain.Spending) (*domain.Spending, error)
	ListSessionSpendings(ctx context.Context, sessionID string) ([]domain.Spending, error)

	// CreateSessionReport persists the closing snapshot. At most one report
	// may ever exist per session id; a second attempt is ErrDuplicateReport.
	CreateSessionReport(ctx context.Context, report domain.SessionReport) (*domain.SessionReport, error)
	GetSessionReport(ctx context.Context, reportID string) (*domain.SessionReport, error)
	GetSessionReportBySession(ctx context.Context, sessionID string) (*domain.SessionReport, error)
	ListSessionReports(ctx context.Context, limit int) ([]domain.SessionReport, error)
	// SetReconciliation overwrites the report's reconciliation with the given
	// cumulative cash figure and the recomputed remaining balance.
	SetReconciliation(ctx context.Context, reportID string, cashSubmitted int64) (*domain.SessionReport, error)
	// AddCashDeposit atomically adds amount onto the already-submitted cash.
	AddCashDeposit(ctx context.Context, reportID string, amount int64) (*domain.SessionReport, error)

	AppendInvestment(ctx context.Context, inv domain.Investment) (*domain.Investment, error)
	ListInvestments(ctx context.Context, limit int) ([]domain.Investment, error)
}
