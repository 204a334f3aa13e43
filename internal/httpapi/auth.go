package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/xid"
)

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	accounts store.Provider
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
	ShopID   string `json:"shop_id,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, accounts store.Provider) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		accounts: accounts,
	}
}

// Login verifies credentials against the shopkeeper accounts in the store and
// returns a signed token plus the authenticated actor. Session opening is the
// caller's concern.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, domain.Actor, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return domain.LoginResponse{}, domain.Actor{}, errors.New("invalid credentials")
	}

	account, err := a.accounts.FindShopkeeper(ctx, username)
	if err != nil {
		return domain.LoginResponse{}, domain.Actor{}, errors.New("invalid credentials")
	}
	if !verifyPassword(account.Password, req.Password) {
		return domain.LoginResponse{}, domain.Actor{}, errors.New("invalid credentials")
	}
	if !account.Active {
		return domain.LoginResponse{}, domain.Actor{}, errors.New("account is inactive")
	}

	actor := domain.Actor{
		ID:       account.ID,
		Username: account.Username,
		Role:     account.Role,
		ShopID:   account.ShopID,
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(actor, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, domain.Actor{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        actor.Role,
		ShopID:      actor.ShopID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, actor, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		ID:       sub,
		Username: claims.Username,
		Role:     claims.Role,
		ShopID:   claims.ShopID,
	}, nil
}

func (a *AuthManager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "vapetrack",
		},
		Username: actor.Username,
		Role:     actor.Role,
		ShopID:   actor.ShopID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateShopkeeper registers a new shopkeeper account bound to one shop.
func (a *AuthManager) CreateShopkeeper(ctx context.Context, req domain.ShopkeeperCreateRequest) (domain.ShopkeeperAccount, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.ShopkeeperAccount{}, fmt.Errorf("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.ShopkeeperAccount{}, fmt.Errorf("username must not contain spaces")
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return domain.ShopkeeperAccount{}, fmt.Errorf("password must be at least 6 characters")
	}
	shopID := strings.TrimSpace(req.ShopID)
	if shopID == "" {
		return domain.ShopkeeperAccount{}, fmt.Errorf("shop id required")
	}
	if _, err := a.accounts.Shop(ctx, shopID); err != nil {
		return domain.ShopkeeperAccount{}, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.ShopkeeperAccount{}, fmt.Errorf("failed to hash password")
	}

	account := domain.ShopkeeperAccount{
		ID:        xid.New("keeper"),
		Username:  username,
		Password:  passwordHash,
		Role:      "shopkeeper",
		ShopID:    shopID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.accounts.CreateShopkeeper(ctx, account); err != nil {
		return domain.ShopkeeperAccount{}, err
	}

	account.Password = ""
	return account, nil
}

func (a *AuthManager) ListShopkeepers(ctx context.Context) ([]domain.ShopkeeperAccount, error) {
	accounts, err := a.accounts.ListShopkeepers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].Password = ""
	}
	return accounts, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
