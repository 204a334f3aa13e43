package domain

import "time"

// All monetary amounts are whole currency units. Computed amounts (price x
// quantity, ml-proportional prices) are rounded to whole units at the point
// of computation so fractional drift never accumulates across transactions.

const (
	CategoryDevice  = "device"
	CategoryCoil    = "coil"
	CategoryELiquid = "e-liquid"
)

const (
	BottleStatusOpen  = "open"
	BottleStatusEmpty = "empty"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

const (
	InvestmentProductAdd = "product_add"
	InvestmentRestock    = "restock"
	InvestmentAdjustment = "adjustment"
	InvestmentDeduction  = "deduction"
)

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Category  string `json:"category"`
	Units     int    `json:"units"`
	SellPrice int64  `json:"sell_price"`
	CostPrice int64  `json:"cost_price"`
	// MlCapacity is set only for e-liquid products and is the volume of one
	// sealed unit.
	MlCapacity      int       `json:"ml_capacity,omitempty"`
	HasOpenedBottle bool      `json:"has_opened_bottle"`
	Barcodes        []string  `json:"barcodes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name       string   `json:"name"`
	Brand      string   `json:"brand"`
	Category   string   `json:"category"`
	Units      int      `json:"units"`
	SellPrice  int64    `json:"sell_price"`
	CostPrice  int64    `json:"cost_price"`
	MlCapacity int      `json:"ml_capacity,omitempty"`
	Barcodes   []string `json:"barcodes,omitempty"`
}

type ProductPriceUpdateRequest struct {
	SellPrice *int64 `json:"sell_price,omitempty"`
	CostPrice *int64 `json:"cost_price,omitempty"`
}

type BottleSale struct {
	Ml         int       `json:"ml"`
	Price      int64     `json:"price"`
	SellerID   string    `json:"seller_id"`
	SellerName string    `json:"seller_name"`
	SoldAt     time.Time `json:"sold_at"`
}

// OpenedBottle is one sealed e-liquid unit converted into fractional (ml)
// sale mode. Capacity is snapshot from the product at open time; Sales is an
// append-only log of every pour.
type OpenedBottle struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	CapacityMl  int          `json:"capacity_ml"`
	RemainingMl int          `json:"remaining_ml"`
	Status      string       `json:"status"`
	Sales       []BottleSale `json:"sales"`
	OpenedAt    time.Time    `json:"opened_at"`
}

// Session is the live working period of one shopkeeper, owned by the session
// registry until ended. Its ID survives on transactions, spendings and the
// session report after the registry entry is gone.
type Session struct {
	ID           string     `json:"id"`
	ShopID       string     `json:"shop_id"`
	ShopkeeperID string     `json:"shopkeeper_id"`
	Username     string     `json:"username"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	SalesCount   int        `json:"sales_count"`
	TotalAmount  int64      `json:"total_amount"`
}

type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Transaction is the immutable record of one sale line. OriginalPrice is the
// undiscounted catalog total and CartPrice the as-sold total; both are kept
// so point-of-sale discounts stay auditable.
type Transaction struct {
	ID            string       `json:"id"`
	ProductID     string       `json:"product_id"`
	ProductName   string       `json:"product_name"`
	Quantity      int          `json:"quantity"`
	MlAmount      int          `json:"ml_amount,omitempty"`
	UnitPrice     int64        `json:"unit_price"`
	TotalPrice    int64        `json:"total_price"`
	CostPrice     int64        `json:"cost_price"`
	OriginalPrice int64        `json:"original_price"`
	CartPrice     int64        `json:"cart_price"`
	CheckoutID    string       `json:"checkout_id,omitempty"`
	SellerID      string       `json:"seller_id"`
	SellerName    string       `json:"seller_name"`
	SessionID     string       `json:"session_id"`
	Customer      CustomerInfo `json:"customer"`
	PaymentMethod string       `json:"payment_method"`
	CreatedAt     time.Time    `json:"created_at"`
}

type Spending struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	ShopkeeperID string    `json:"shopkeeper_id"`
	Username     string    `json:"username"`
	Reason       string    `json:"reason"`
	Amount       int64     `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reconciliation is the only mutable part of a session report. CashSubmitted
// is cumulative; RemainingBalance may go negative on over-submission and is
// deliberately not clamped.
type Reconciliation struct {
	CashSubmitted    int64      `json:"cash_submitted"`
	RemainingBalance int64      `json:"remaining_balance"`
	IsReconciled     bool       `json:"is_reconciled"`
	ReconciledAt     *time.Time `json:"reconciled_at,omitempty"`
}

// SessionReport is the durable snapshot of a closed session. Every field
// except Reconciliation is write-once.
type SessionReport struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	ShopkeeperID   string         `json:"shopkeeper_id"`
	Username       string         `json:"username"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	SoldItems      []Transaction  `json:"sold_items"`
	TotalAmount    int64          `json:"total_amount"`
	TotalItemsSold int            `json:"total_items_sold"`
	Spendings      []Spending     `json:"spendings"`
	TotalSpending  int64          `json:"total_spending"`
	Reconciliation Reconciliation `json:"reconciliation"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Investment struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Units       int       `json:"units"`
	CostPrice   int64     `json:"cost_price"`
	TotalAmount int64     `json:"total_amount"`
	CreatedBy   string    `json:"created_by"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	CartItemProduct = "product"
	CartItemMl      = "ml"
)

// CartItem is one line of a multi-item checkout: either a whole-unit product
// sale or an ml pour from an opened bottle. Kind selects the variant and the
// bulk-sale processor switches on it exhaustively. Price, when positive,
// overrides the catalog price for this line.
type CartItem struct {
	Kind      string `json:"kind"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	BottleID  string `json:"bottle_id,omitempty"`
	Ml        int    `json:"ml,omitempty"`
	Price     int64  `json:"price,omitempty"`
}

type SellRequest struct {
	ProductID     string       `json:"product_id"`
	Quantity      int          `json:"quantity"`
	Price         int64        `json:"price,omitempty"`
	SessionID     string       `json:"session_id"`
	Customer      CustomerInfo `json:"customer"`
	PaymentMethod string       `json:"payment_method,omitempty"`
}

type BulkSellRequest struct {
	SessionID     string       `json:"session_id"`
	Items         []CartItem   `json:"items"`
	Customer      CustomerInfo `json:"customer"`
	PaymentMethod string       `json:"payment_method,omitempty"`
}

type BulkSellError struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

type BulkSellResult struct {
	CheckoutID  string          `json:"checkout_id"`
	SoldItems   []Transaction   `json:"sold_items"`
	TotalAmount int64           `json:"total_amount"`
	Errors      []BulkSellError `json:"errors,omitempty"`
}

type MlSellRequest struct {
	BottleID      string       `json:"bottle_id"`
	Ml            int          `json:"ml"`
	Price         int64        `json:"price,omitempty"`
	SessionID     string       `json:"session_id"`
	Customer      CustomerInfo `json:"customer"`
	PaymentMethod string       `json:"payment_method,omitempty"`
}

type SpendingRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Amount    int64  `json:"amount"`
}

type RestockRequest struct {
	ProductID string `json:"product_id"`
	Units     int    `json:"units"`
	CostPrice int64  `json:"cost_price,omitempty"`
	Note      string `json:"note,omitempty"`
}

type StockAdjustRequest struct {
	ProductID string `json:"product_id"`
	// Units is signed: positive corrections are recorded as adjustments,
	// negative ones as deductions.
	Units int    `json:"units"`
	Note  string `json:"note,omitempty"`
}

type ReconcileRequest struct {
	CashSubmitted int64 `json:"cash_submitted"`
}

type DepositRequest struct {
	Amount int64 `json:"amount"`
}

// Actor identifies the authenticated caller. It travels in the request
// context; Role is either "admin" or "shopkeeper".
type Actor struct {
	ID       string
	Username string
	Role     string
	ShopID   string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ShopID      string `json:"shop_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type Shop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ShopkeeperAccount is the persistence model for auth credentials. Password
// holds the bcrypt hash and never serializes.
type ShopkeeperAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	ShopID    string    `json:"shop_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type ShopkeeperCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ShopID   string `json:"shop_id"`
}
