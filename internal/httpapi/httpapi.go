package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/service"
	"vapetrack/backend/internal/session"
	"vapetrack/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "shopkeeper", "admin"))

	mux.HandleFunc("/api/v1/sell", a.requireAuth(a.handleSell, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/sell/ml", a.requireAuth(a.handleSellMl, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/sell/bulk", a.requireAuth(a.handleSellBulk, "shopkeeper", "admin"))

	mux.HandleFunc("/api/v1/bottles", a.requireAuth(a.handleBottles, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/bottles/", a.requireAuth(a.handleBottleActions, "shopkeeper", "admin"))

	mux.HandleFunc("/api/v1/spendings", a.requireAuth(a.handleSpendings, "shopkeeper", "admin"))

	mux.HandleFunc("/api/v1/sessions", a.requireAuth(a.handleSessions, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/sessions/open", a.requireAuth(a.handleSessionOpen, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/sessions/close", a.requireAuth(a.handleSessionClose, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/sessions/", a.requireAuth(a.handleSessionActions, "shopkeeper", "admin"))

	mux.HandleFunc("/api/v1/reports", a.requireAuth(a.handleReports, "shopkeeper", "admin"))
	mux.HandleFunc("/api/v1/reports/", a.requireAuth(a.handleReportActions, "shopkeeper", "admin"))

	mux.HandleFunc("/api/v1/investments", a.requireAuth(a.handleInvestments, "admin"))
	mux.HandleFunc("/api/v1/shops", a.requireAuth(a.handleShops, "admin"))
	mux.HandleFunc("/api/v1/users/shopkeepers", a.requireAuth(a.handleShopkeepers, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// shopFor resolves the shop a request operates on. Shopkeepers are pinned to
// their own shop; admins may target any shop with ?shop_id=.
func shopFor(r *http.Request) string {
	actor, _ := service.ActorFromContext(r.Context())
	if q := strings.TrimSpace(r.URL.Query().Get("shop_id")); q != "" && actor.Role == "admin" {
		return q
	}
	return actor.ShopID
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, actor, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	// A shopkeeper logging in starts their work session right away; a second
	// login while one is open resumes it instead of failing.
	if actor.Role == "shopkeeper" && actor.ShopID != "" {
		ctx := service.WithActor(r.Context(), actor)
		sess, err := a.service.OpenSession(ctx, actor.ShopID)
		if errors.Is(err, session.ErrDuplicateSession) {
			sess, err = a.service.GetOpenSessionForShopkeeper(ctx, actor.ID)
		}
		if err != nil {
			log.Printf("[httpapi] WARN: open session on login for %s: %v", actor.Username, err)
		} else {
			resp.SessionID = sess.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if barcode := strings.TrimSpace(r.URL.Query().Get("barcode")); barcode != "" {
			product, err := a.service.FindProductByBarcode(r.Context(), shopFor(r), barcode)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"product": product})
			return
		}
		products, err := a.service.ListProducts(r.Context(), shopFor(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), shopFor(r), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/products/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	if strings.HasSuffix(tail, "/restock") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.RestockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.ProductID = strings.Trim(strings.TrimSuffix(tail, "/restock"), "/")
		product, err := a.service.RestockProduct(r.Context(), shopFor(r), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
		return
	}

	if strings.HasSuffix(tail, "/adjust") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.StockAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.ProductID = strings.Trim(strings.TrimSuffix(tail, "/adjust"), "/")
		product, err := a.service.AdjustStock(r.Context(), shopFor(r), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), shopFor(r), tail)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductPriceUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProductPrices(r.Context(), shopFor(r), tail, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), shopFor(r), tail); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.service.Sell(r.Context(), shopFor(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleSellMl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.MlSellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.service.SellMl(r.Context(), shopFor(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleSellBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.BulkSellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.SellBulk(r.Context(), shopFor(r), req)
	if err != nil {
		// Every line failed: the caller still gets the per-line errors.
		if errors.Is(err, service.ErrNoItemsSold) {
			writeJSON(w, http.StatusConflict, result)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleBottles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeEmpty := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("include_empty")), "true")
		bottles, err := a.service.ListOpenedBottles(r.Context(), shopFor(r), includeEmpty)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bottles": bottles})
	case http.MethodPost:
		var req struct {
			ProductID string `json:"product_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		bottle, err := a.service.OpenBottle(r.Context(), shopFor(r), req.ProductID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"bottle": bottle})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBottleActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/bottles/"
	bottleID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if bottleID == "" {
		writeError(w, http.StatusBadRequest, errors.New("bottle id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		bottle, err := a.service.GetOpenedBottle(r.Context(), shopFor(r), bottleID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bottle": bottle})
	case http.MethodDelete:
		force := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("force")), "true")
		if err := a.service.DeleteBottle(r.Context(), shopFor(r), bottleID, force); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSpendings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SpendingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	spending, err := a.service.RecordSpending(r.Context(), shopFor(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"spending": spending})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sessions, err := a.service.ListOpenSessions(r.Context(), shopFor(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (a *API) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	sess, err := a.service.OpenSession(r.Context(), shopFor(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (a *API) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := a.service.CloseSession(r.Context(), shopFor(r), req.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (a *API) handleSessionActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/sessions/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("session id required"))
		return
	}

	if strings.HasSuffix(tail, "/transactions") {
		sessionID := strings.Trim(strings.TrimSuffix(tail, "/transactions"), "/")
		transactions, err := a.service.ListSessionTransactions(r.Context(), shopFor(r), sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
		return
	}

	sess, err := a.service.GetSession(r.Context(), tail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	reports, err := a.service.ListSessionReports(r.Context(), shopFor(r), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (a *API) handleReportActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/reports/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("report id required"))
		return
	}

	if sessionID, ok := strings.CutPrefix(tail, "by-session/"); ok {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		report, err := a.service.GetSessionReportBySession(r.Context(), shopFor(r), strings.Trim(sessionID, "/"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": report})
		return
	}

	if strings.HasSuffix(tail, "/reconcile") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.ReconcileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		reportID := strings.Trim(strings.TrimSuffix(tail, "/reconcile"), "/")
		report, err := a.service.ApplyReconciliation(r.Context(), shopFor(r), reportID, req.CashSubmitted)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": report})
		return
	}

	if strings.HasSuffix(tail, "/deposit") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.DepositRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		reportID := strings.Trim(strings.TrimSuffix(tail, "/deposit"), "/")
		report, err := a.service.AddCashDeposit(r.Context(), shopFor(r), reportID, req.Amount)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": report})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	report, err := a.service.GetSessionReport(r.Context(), shopFor(r), tail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (a *API) handleInvestments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	investments, err := a.service.ListInvestments(r.Context(), shopFor(r), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"investments": investments})
}

func (a *API) handleShops(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		shops, err := a.service.ListShops(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shops": shops})
	case http.MethodPost:
		var shop domain.Shop
		if err := decodeJSON(r, &shop); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreateShop(r.Context(), shop)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"shop": created})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleShopkeepers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := a.auth.ListShopkeepers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shopkeepers": accounts})
	case http.MethodPost:
		var req domain.ShopkeeperCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		account, err := a.auth.CreateShopkeeper(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"shopkeeper": account})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusForError maps the service's sentinel errors onto HTTP statuses.
// Conflicts (oversell, duplicate report, duplicate session) are 409 so
// clients can distinguish them from malformed requests.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInsufficientVolume),
		errors.Is(err, store.ErrDuplicateReport),
		errors.Is(err, session.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidOperation):
		return http.StatusBadRequest
	}
	if strings.Contains(strings.ToLower(err.Error()), "admin role") {
		return http.StatusForbidden
	}
	return http.StatusUnprocessableEntity
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internal details (SQL
	// errors, file paths) never reach clients. 4xx are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
