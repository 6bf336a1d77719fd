package fakeshop

import (
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"boutique/backoffice/internal/domain"
)

type authority struct {
	mu       sync.RWMutex
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	users    map[string]credential
	nextID   int
}

type credential struct {
	id       int
	password string
	email    string
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	UserID int `json:"user_id"`
}

func newAuthority(secret string, tokenTTL time.Duration, now func() time.Time) *authority {
	if secret == "" {
		secret = "fakeshop-secret"
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &authority{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      now,
		users:    make(map[string]credential),
		nextID:   1,
	}
}

func (a *authority) addUser(username string, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[strings.TrimSpace(username)] = credential{id: a.nextID, password: string(hash), email: username + "@boutique.test"}
	a.nextID++
	return nil
}

func (a *authority) login(req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(cred.password), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, errors.New("Identifiants invalides")
	}

	now := a.now().UTC()
	access, err := a.sign(username, cred.id, now, now.Add(a.tokenTTL))
	if err != nil {
		return domain.LoginResponse{}, err
	}
	refresh, err := a.sign(username, cred.id, now, now.Add(24*time.Hour))
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		Access:  access,
		Refresh: refresh,
		User:    domain.UserProfile{ID: cred.id, Username: username, Email: cred.email},
	}, nil
}

func (a *authority) parse(tokenStr string) (domain.UserProfile, error) {
	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.UserProfile{}, errors.New("Given token not valid for any token type")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.UserProfile{}, errors.New("invalid token subject")
	}
	a.mu.RLock()
	cred, ok := a.users[sub]
	a.mu.RUnlock()
	if !ok {
		return domain.UserProfile{}, errors.New("User not found")
	}
	return domain.UserProfile{ID: claims.UserID, Username: sub, Email: cred.email}, nil
}

func (a *authority) sign(username string, userID int, issued time.Time, expiresAt time.Time) (string, error) {
	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(issued),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "fakeshop",
		},
		UserID: userID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
