package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/xid"
)

// Provider is the postgres-backed store. Every shop's rows share one
// database and carry a shop_id column; the per-shop Repository binds the
// column so callers can never cross shops. Schema is managed externally.
type Provider struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Provider, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Provider{db: db}, nil
}

func (p *Provider) Close() {
	_ = p.db.Close()
}

func (p *Provider) Shop(ctx context.Context, shopID string) (store.Repository, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `SELECT id FROM shops WHERE id = $1`, shopID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &Store{db: p.db, shopID: shopID}, nil
}

func (p *Provider) ListShops(ctx context.Context) ([]domain.Shop, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, created_at FROM shops ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := make([]domain.Shop, 0, 8)
	for rows.Next() {
		var sh domain.Shop
		if err := rows.Scan(&sh.ID, &sh.Name, &sh.CreatedAt); err != nil {
			return nil, err
		}
		sh.CreatedAt = sh.CreatedAt.UTC()
		shops = append(shops, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shops, nil
}

func (p *Provider) CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	if strings.TrimSpace(shop.Name) == "" {
		return nil, store.ErrInvalidOperation
	}
	if shop.ID == "" {
		shop.ID = xid.New("shop")
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO shops (id, name, created_at)
		VALUES ($1,$2,$3)
	`, shop.ID, shop.Name, shop.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := shop
	return &created, nil
}

func (p *Provider) CreateShopkeeper(ctx context.Context, account domain.ShopkeeperAccount) error {
	if account.Username == "" || account.Password == "" {
		return store.ErrInvalidOperation
	}
	if account.ID == "" {
		account.ID = xid.New("usr")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO shopkeepers (id, username, password, role, shop_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, account.ID, account.Username, account.Password, account.Role, nullIfEmpty(account.ShopID), account.Active, account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidOperation
		}
		return err
	}
	return nil
}

func (p *Provider) FindShopkeeper(ctx context.Context, username string) (*domain.ShopkeeperAccount, error) {
	var account domain.ShopkeeperAccount
	var shopID sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, shop_id, active, created_at
		FROM shopkeepers
		WHERE username = $1
	`, username).Scan(&account.ID, &account.Username, &account.Password, &account.Role, &shopID, &account.Active, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	account.ShopID = shopID.String
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func (p *Provider) ListShopkeepers(ctx context.Context) ([]domain.ShopkeeperAccount, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, username, password, role, shop_id, active, created_at
		FROM shopkeepers
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.ShopkeeperAccount, 0, 16)
	for rows.Next() {
		var account domain.ShopkeeperAccount
		var shopID sql.NullString
		if err := rows.Scan(&account.ID, &account.Username, &account.Password, &account.Role, &shopID, &account.Active, &account.CreatedAt); err != nil {
			return nil, err
		}
		account.ShopID = shopID.String
		account.CreatedAt = account.CreatedAt.UTC()
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Store is the repository of one shop. All queries carry s.shopID.
type Store struct {
	db     *sql.DB
	shopID string
}

func validCategory(category string) bool {
	switch category {
	case domain.CategoryDevice, domain.CategoryCoil, domain.CategoryELiquid:
		return true
	}
	return false
}

const productColumns = `id, name, brand, category, units, sell_price, cost_price, ml_capacity, has_opened_bottle, barcodes, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var barcodesRaw []byte
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Units, &p.SellPrice, &p.CostPrice, &p.MlCapacity, &p.HasOpenedBottle, &barcodesRaw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(barcodesRaw) > 0 {
		if err := json.Unmarshal(barcodesRaw, &p.Barcodes); err != nil {
			return nil, err
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
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
	product.CreatedAt = now
	product.UpdatedAt = now

	barcodesJSON, err := json.Marshal(product.Barcodes)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, shop_id, name, brand, category, units, sell_price, cost_price, ml_capacity, has_opened_bottle, barcodes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false,$10,$11,$11)
	`, product.ID, s.shopID, product.Name, product.Brand, product.Category, product.Units, product.SellPrice, product.CostPrice, product.MlCapacity, barcodesJSON, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE shop_id = $1 AND id = $2
	`, s.shopID, productID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE shop_id = $1 AND barcodes ? $2
		LIMIT 1
	`, s.shopID, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE shop_id = $1
		ORDER BY category, name
	`, s.shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProductPrices(ctx context.Context, productID string, sellPrice, costPrice *int64) (*domain.Product, error) {
	if sellPrice == nil && costPrice == nil {
		return nil, store.ErrInvalidOperation
	}
	if sellPrice != nil && *sellPrice < 1 {
		return nil, store.ErrInvalidOperation
	}
	if costPrice != nil && *costPrice < 0 {
		return nil, store.ErrInvalidOperation
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET sell_price = COALESCE($3, sell_price),
		    cost_price = COALESCE($4, cost_price),
		    updated_at = now()
		WHERE shop_id = $1 AND id = $2
		RETURNING `+productColumns+`
	`, s.shopID, productID, sellPrice, costPrice)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products
		WHERE shop_id = $1 AND id = $2 AND has_opened_bottle = false
	`, s.shopID, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either missing or blocked by an open bottle.
		if _, err := s.GetProduct(ctx, productID); err != nil {
			return err
		}
		return store.ErrInvalidOperation
	}
	return nil
}

// DecrementUnits is a single conditional UPDATE: the units >= qty predicate
// and the subtraction are one atomic round trip, which is the whole
// concurrency story for stock.
func (s *Store) DecrementUnits(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, store.ErrInvalidOperation
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET units = units - $3, updated_at = now()
		WHERE shop_id = $1 AND id = $2 AND units >= $3
		RETURNING `+productColumns+`
	`, s.shopID, productID, qty)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetProduct(ctx, productID); getErr != nil {
				return nil, getErr
			}
			return nil, store.ErrInsufficientStock
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) IncrementUnits(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	if qty < 1 {
		return nil, store.ErrInvalidOperation
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET units = units + $3, updated_at = now()
		WHERE shop_id = $1 AND id = $2
		RETURNING `+productColumns+`
	`, s.shopID, productID, qty)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) OpenBottle(ctx context.Context, productID string, bottle domain.OpenedBottle) (*domain.OpenedBottle, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		name            string
		category        string
		units           int
		mlCapacity      int
		hasOpenedBottle bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT name, category, units, ml_capacity, has_opened_bottle
		FROM products
		WHERE shop_id = $1 AND id = $2
		FOR UPDATE
	`, s.shopID, productID).Scan(&name, &category, &units, &mlCapacity, &hasOpenedBottle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if category != domain.CategoryELiquid || mlCapacity < 1 {
		return nil, store.ErrInvalidOperation
	}
	if hasOpenedBottle {
		return nil, store.ErrInvalidOperation
	}
	if units < 1 {
		return nil, store.ErrInsufficientStock
	}

	if bottle.ID == "" {
		bottle.ID = xid.New("btl")
	}
	bottle.ProductID = productID
	bottle.ProductName = name
	bottle.CapacityMl = mlCapacity
	bottle.RemainingMl = mlCapacity
	bottle.Status = domain.BottleStatusOpen
	bottle.Sales = []domain.BottleSale{}
	if bottle.OpenedAt.IsZero() {
		bottle.OpenedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO opened_bottles (id, shop_id, product_id, product_name, capacity_ml, remaining_ml, status, sales, opened_at)
		VALUES ($1,$2,$3,$4,$5,$5,$6,'[]'::jsonb,$7)
	`, bottle.ID, s.shopID, bottle.ProductID, bottle.ProductName, bottle.CapacityMl, bottle.Status, bottle.OpenedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET units = units - 1, has_opened_bottle = true, updated_at = now()
		WHERE shop_id = $1 AND id = $2
	`, s.shopID, productID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := bottle
	return &created, nil
}

const bottleColumns = `id, product_id, product_name, capacity_ml, remaining_ml, status, sales, opened_at`

func scanBottle(row interface{ Scan(...any) error }) (*domain.OpenedBottle, error) {
	var b domain.OpenedBottle
	var salesRaw []byte
	err := row.Scan(&b.ID, &b.ProductID, &b.ProductName, &b.CapacityMl, &b.RemainingMl, &b.Status, &salesRaw, &b.OpenedAt)
	if err != nil {
		return nil, err
	}
	if len(salesRaw) > 0 {
		if err := json.Unmarshal(salesRaw, &b.Sales); err != nil {
			return nil, err
		}
	}
	if b.Sales == nil {
		b.Sales = []domain.BottleSale{}
	}
	b.OpenedAt = b.OpenedAt.UTC()
	return &b, nil
}

func (s *Store) GetOpenedBottle(ctx context.Context, bottleID string) (*domain.OpenedBottle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bottleColumns+`
		FROM opened_bottles
		WHERE shop_id = $1 AND id = $2
	`, s.shopID, bottleID)
	bottle, err := scanBottle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return bottle, nil
}

func (s *Store) ListOpenedBottles(ctx context.Context, includeEmpty bool) ([]domain.OpenedBottle, error) {
	query := `
		SELECT ` + bottleColumns + `
		FROM opened_bottles
		WHERE shop_id = $1
	`
	if !includeEmpty {
		query += ` AND status = 'open'`
	}
	query += ` ORDER BY opened_at DESC`

	rows, err := s.db.QueryContext(ctx, query, s.shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bottles := make([]domain.OpenedBottle, 0, 16)
	for rows.Next() {
		b, err := scanBottle(rows)
		if err != nil {
			return nil, err
		}
		bottles = append(bottles, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bottles, nil
}

func (s *Store) RecordBottleSale(ctx context.Context, bottleID string, sale domain.BottleSale) (*domain.OpenedBottle, error) {
	if sale.Ml < 1 {
		return nil, store.ErrInvalidOperation
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+bottleColumns+`
		FROM opened_bottles
		WHERE shop_id = $1 AND id = $2
		FOR UPDATE
	`, s.shopID, bottleID)
	bottle, err := scanBottle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if bottle.Status != domain.BottleStatusOpen {
		return nil, store.ErrInvalidOperation
	}
	if bottle.RemainingMl < sale.Ml {
		return nil, store.ErrInsufficientVolume
	}

	bottle.RemainingMl -= sale.Ml
	bottle.Sales = append(bottle.Sales, sale)
	if bottle.RemainingMl == 0 {
		bottle.Status = domain.BottleStatusEmpty
	}

	salesJSON, err := json.Marshal(bottle.Sales)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE opened_bottles
		SET remaining_ml = $3, status = $4, sales = $5
		WHERE shop_id = $1 AND id = $2
	`, s.shopID, bottleID, bottle.RemainingMl, bottle.Status, salesJSON)
	if err != nil {
		return nil, err
	}

	if bottle.Status == domain.BottleStatusEmpty {
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET has_opened_bottle = false, updated_at = now()
			WHERE shop_id = $1 AND id = $2
		`, s.shopID, bottle.ProductID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return bottle, nil
}

func (s *Store) RevertBottleSale(ctx context.Context, bottleID string, ml int) error {
	if ml < 1 {
		return store.ErrInvalidOperation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+bottleColumns+`
		FROM opened_bottles
		WHERE shop_id = $1 AND id = $2
		FOR UPDATE
	`, s.shopID, bottleID)
	bottle, err := scanBottle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
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

	wasEmpty := bottle.Status == domain.BottleStatusEmpty
	bottle.Sales = append(bottle.Sales[:last], bottle.Sales[last+1:]...)
	bottle.RemainingMl += ml
	bottle.Status = domain.BottleStatusOpen

	salesJSON, err := json.Marshal(bottle.Sales)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE opened_bottles
		SET remaining_ml = $3, status = $4, sales = $5
		WHERE shop_id = $1 AND id = $2
	`, s.shopID, bottleID, bottle.RemainingMl, bottle.Status, salesJSON)
	if err != nil {
		return err
	}

	if wasEmpty {
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET has_opened_bottle = true, updated_at = now()
			WHERE shop_id = $1 AND id = $2
		`, s.shopID, bottle.ProductID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteOpenedBottle(ctx context.Context, bottleID string, force bool) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var productID, status string
	err = tx.QueryRowContext(ctx, `
		SELECT product_id, status
		FROM opened_bottles
		WHERE shop_id = $1 AND id = $2
		FOR UPDATE
	`, s.shopID, bottleID).Scan(&productID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if status == domain.BottleStatusOpen && !force {
		return store.ErrInvalidOperation
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM opened_bottles WHERE shop_id = $1 AND id = $2`, s.shopID, bottleID); err != nil {
		return err
	}
	if status == domain.BottleStatusOpen {
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET has_opened_bottle = false, updated_at = now()
			WHERE shop_id = $1 AND id = $2
		`, s.shopID, productID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) AppendTransaction(ctx context.Context, txn domain.Transaction) (*domain.Transaction, error) {
	if txn.SessionID == "" || txn.ProductID == "" {
		return nil, store.ErrInvalidOperation
	}
	if txn.ID == "" {
		txn.ID = xid.New("tx")
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if txn.PaymentMethod == "" {
		txn.PaymentMethod = domain.PaymentCash
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, shop_id, product_id, product_name, quantity, ml_amount, unit_price, total_price, cost_price, original_price, cart_price, checkout_id, seller_id, seller_name, session_id, customer_name, customer_phone, customer_email, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, txn.ID, s.shopID, txn.ProductID, txn.ProductName, txn.Quantity, txn.MlAmount, txn.UnitPrice, txn.TotalPrice, txn.CostPrice, txn.OriginalPrice, txn.CartPrice, nullIfEmpty(txn.CheckoutID), txn.SellerID, txn.SellerName, txn.SessionID, nullIfEmpty(txn.Customer.Name), nullIfEmpty(txn.Customer.Phone), nullIfEmpty(txn.Customer.Email), txn.PaymentMethod, txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := txn
	return &created, nil
}

const transactionColumns = `id, product_id, product_name, quantity, ml_amount, unit_price, total_price, cost_price, original_price, cart_price, checkout_id, seller_id, seller_name, session_id, customer_name, customer_phone, customer_email, payment_method, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*domain.Transaction, error) {
	var t domain.Transaction
	var checkoutID, custName, custPhone, custEmail sql.NullString
	err := row.Scan(&t.ID, &t.ProductID, &t.ProductName, &t.Quantity, &t.MlAmount, &t.UnitPrice, &t.TotalPrice, &t.CostPrice, &t.OriginalPrice, &t.CartPrice, &checkoutID, &t.SellerID, &t.SellerName, &t.SessionID, &custName, &custPhone, &custEmail, &t.PaymentMethod, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.CheckoutID = checkoutID.String
	t.Customer = domain.CustomerInfo{Name: custName.String, Phone: custPhone.String, Email: custEmail.String}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (s *Store) listTransactions(ctx context.Context, where string, arg string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE shop_id = $1 AND `+where+` = $2
		ORDER BY created_at, id
	`, s.shopID, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, 32)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListSessionTransactions(ctx context.Context, sessionID string) ([]domain.Transaction, error) {
	return s.listTransactions(ctx, "session_id", sessionID)
}

func (s *Store) ListCheckoutTransactions(ctx context.Context, checkoutID string) ([]domain.Transaction, error) {
	return s.listTransactions(ctx, "checkout_id", checkoutID)
}

func (s *Store) AppendSpending(ctx context.Context, spending domain.Spending) (*domain.Spending, error) {
	if spending.SessionID == "" || spending.Amount < 0 || strings.TrimSpace(spending.Reason) == "" {
		return nil, store.ErrInvalidOperation
	}
	if spending.ID == "" {
		spending.ID = xid.New("sp")
	}
	if spending.CreatedAt.IsZero() {
		spending.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spendings (id, shop_id, session_id, shopkeeper_id, username, reason, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, spending.ID, s.shopID, spending.SessionID, spending.ShopkeeperID, spending.Username, spending.Reason, spending.Amount, spending.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := spending
	return &created, nil
}

func (s *Store) ListSessionSpendings(ctx context.Context, sessionID string) ([]domain.Spending, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, shopkeeper_id, username, reason, amount, created_at
		FROM spendings
		WHERE shop_id = $1 AND session_id = $2
		ORDER BY created_at, id
	`, s.shopID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Spending, 0, 8)
	for rows.Next() {
		var sp domain.Spending
		if err := rows.Scan(&sp.ID, &sp.SessionID, &sp.ShopkeeperID, &sp.Username, &sp.Reason, &sp.Amount, &sp.CreatedAt); err != nil {
			return nil, err
		}
		sp.CreatedAt = sp.CreatedAt.UTC()
		result = append(result, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateSessionReport(ctx context.Context, report domain.SessionReport) (*domain.SessionReport, error) {
	if report.SessionID == "" {
		return nil, store.ErrInvalidOperation
	}
	if report.ID == "" {
		report.ID = xid.New("rpt")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	soldJSON, err := json.Marshal(report.SoldItems)
	if err != nil {
		return nil, err
	}
	spendJSON, err := json.Marshal(report.Spendings)
	if err != nil {
		return nil, err
	}

	// session_id carries a unique index; the violation is how a concurrent
	// double close loses.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_reports (id, shop_id, session_id, shopkeeper_id, username, start_time, end_time, sold_items, total_amount, total_items_sold, spendings, total_spending, cash_submitted, remaining_balance, is_reconciled, reconciled_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, report.ID, s.shopID, report.SessionID, report.ShopkeeperID, report.Username, report.StartTime, report.EndTime, soldJSON, report.TotalAmount, report.TotalItemsSold, spendJSON, report.TotalSpending, report.Reconciliation.CashSubmitted, report.Reconciliation.RemainingBalance, report.Reconciliation.IsReconciled, nullTime(report.Reconciliation.ReconciledAt), report.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateReport
		}
		return nil, err
	}
	created := report
	return &created, nil
}

const reportColumns = `id, session_id, shopkeeper_id, username, start_time, end_time, sold_items, total_amount, total_items_sold, spendings, total_spending, cash_submitted, remaining_balance, is_reconciled, reconciled_at, created_at`

func scanReport(row interface{ Scan(...any) error }) (*domain.SessionReport, error) {
	var r domain.SessionReport
	var soldRaw, spendRaw []byte
	var reconciledAt sql.NullTime
	err := row.Scan(&r.ID, &r.SessionID, &r.ShopkeeperID, &r.Username, &r.StartTime, &r.EndTime, &soldRaw, &r.TotalAmount, &r.TotalItemsSold, &spendRaw, &r.TotalSpending, &r.Reconciliation.CashSubmitted, &r.Reconciliation.RemainingBalance, &r.Reconciliation.IsReconciled, &reconciledAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(soldRaw) > 0 {
		if err := json.Unmarshal(soldRaw, &r.SoldItems); err != nil {
			return nil, err
		}
	}
	if len(spendRaw) > 0 {
		if err := json.Unmarshal(spendRaw, &r.Spendings); err != nil {
			return nil, err
		}
	}
	if r.SoldItems == nil {
		r.SoldItems = []domain.Transaction{}
	}
	if r.Spendings == nil {
		r.Spendings = []domain.Spending{}
	}
	if reconciledAt.Valid {
		t := reconciledAt.Time.UTC()
		r.Reconciliation.ReconciledAt = &t
	}
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *Store) GetSessionReport(ctx context.Context, reportID string) (*domain.SessionReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM session_reports
		WHERE shop_id = $1 AND id = $2
	`, s.shopID, reportID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

func (s *Store) GetSessionReportBySession(ctx context.Context, sessionID string) (*domain.SessionReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM session_reports
		WHERE shop_id = $1 AND session_id = $2
	`, s.shopID, sessionID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

func (s *Store) ListSessionReports(ctx context.Context, limit int) ([]domain.SessionReport, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM session_reports
		WHERE shop_id = $1
		ORDER BY end_time DESC, id
		LIMIT $2
	`, s.shopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.SessionReport, 0, limit)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Store) SetReconciliation(ctx context.Context, reportID string, cashSubmitted int64) (*domain.SessionReport, error) {
	if cashSubmitted < 0 {
		return nil, store.ErrInvalidOperation
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE session_reports
		SET cash_submitted = $3,
		    remaining_balance = total_amount - $3,
		    is_reconciled = (total_amount - $3) <= 0,
		    reconciled_at = now()
		WHERE shop_id = $1 AND id = $2
		RETURNING `+reportColumns+`
	`, s.shopID, reportID, cashSubmitted)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// AddCashDeposit folds a partial hand-over into the cumulative figure in one
// UPDATE; column references on the right-hand side read the pre-update row.
func (s *Store) AddCashDeposit(ctx context.Context, reportID string, amount int64) (*domain.SessionReport, error) {
	if amount < 1 {
		return nil, store.ErrInvalidOperation
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE session_reports
		SET cash_submitted = cash_submitted + $3,
		    remaining_balance = total_amount - (cash_submitted + $3),
		    is_reconciled = (total_amount - (cash_submitted + $3)) <= 0,
		    reconciled_at = now()
		WHERE shop_id = $1 AND id = $2
		RETURNING `+reportColumns+`
	`, s.shopID, reportID, amount)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

func (s *Store) AppendInvestment(ctx context.Context, inv domain.Investment) (*domain.Investment, error) {
	if inv.ProductID == "" || inv.Type == "" {
		return nil, store.ErrInvalidOperation
	}
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, shop_id, type, product_id, product_name, units, cost_price, total_amount, created_by, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, inv.ID, s.shopID, inv.Type, inv.ProductID, inv.ProductName, inv.Units, inv.CostPrice, inv.TotalAmount, inv.CreatedBy, nullIfEmpty(inv.Note), inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := inv
	return &created, nil
}

func (s *Store) ListInvestments(ctx context.Context, limit int) ([]domain.Investment, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, product_id, product_name, units, cost_price, total_amount, created_by, note, created_at
		FROM investments
		WHERE shop_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, s.shopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Investment, 0, limit)
	for rows.Next() {
		var inv domain.Investment
		var note sql.NullString
		if err := rows.Scan(&inv.ID, &inv.Type, &inv.ProductID, &inv.ProductName, &inv.Units, &inv.CostPrice, &inv.TotalAmount, &inv.CreatedBy, &note, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Note = note.String
		inv.CreatedAt = inv.CreatedAt.UTC()
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
