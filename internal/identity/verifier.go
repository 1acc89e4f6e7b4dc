package identity

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrNotConfigured is returned when no verification method is set up.
	ErrNotConfigured = errors.New("identity: token verification not configured")
)

const (
	jwksTTL = time.Hour
	// jwksMissBackoff bounds refetches triggered by kids absent from the set.
	jwksMissBackoff = time.Minute
)

// CognitoConfig holds the user pool used for RS256 tokens.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	// IssuerURL overrides the issuer derived from Region and UserPoolID.
	IssuerURL string
}

func (c CognitoConfig) issuer() string {
	if c.IssuerURL != "" {
		return strings.TrimRight(c.IssuerURL, "/")
	}
	if c.Region == "" || c.UserPoolID == "" {
		return ""
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// CognitoClaims are the claims read from a Cognito ID or access token.
type CognitoClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	TokenUse      string `json:"token_use"`
	ClientID      string `json:"client_id"`
}

// AdminClaims are carried by the legacy HMAC admin token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Verifier validates either Cognito RS256 tokens or HMAC admin tokens.
type Verifier struct {
	cognito     CognitoConfig
	adminSecret []byte
	httpClient  *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expires   time.Time
	fetchedAt time.Time
	now       func() time.Time
}

func NewVerifier(cognito CognitoConfig, adminSecret string) *Verifier {
	return &Verifier{
		cognito:     cognito,
		adminSecret: []byte(adminSecret),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

// Verify returns the session carried by tokenString.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Session, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if looksLikeCognito(tokenString) {
		return v.verifyCognito(ctx, tokenString)
	}
	return v.verifyAdmin(tokenString)
}

// looksLikeCognito checks for the RS256 + kid header Cognito always sets.
func looksLikeCognito(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var header map[string]interface{}
	if json.Unmarshal(headerBytes, &header) != nil {
		return false
	}
	alg, _ := header["alg"].(string)
	_, hasKid := header["kid"]
	return alg == "RS256" && hasKid
}

func (v *Verifier) verifyAdmin(tokenString string) (*Session, error) {
	if len(v.adminSecret) == 0 {
		return nil, ErrNotConfigured
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.adminSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	return newSession(tokenString, claims.Email, claims.RegisteredClaims, "admin-token"), nil
}

func (v *Verifier) verifyCognito(ctx context.Context, tokenString string) (*Session, error) {
	issuer := v.cognito.issuer()
	if issuer == "" {
		return nil, ErrNotConfigured
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, &CognitoClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	pubKey, err := v.publicKey(ctx, issuer, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &CognitoClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pubKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	cid := v.cognito.ClientID
	switch claims.TokenUse {
	case "id":
		if cid != "" {
			aud, _ := claims.GetAudience()
			if !contains(aud, cid) {
				return nil, fmt.Errorf("%w: invalid audience", ErrInvalidToken)
			}
		}
	case "access":
		if cid != "" && claims.ClientID != cid {
			return nil, fmt.Errorf("%w: invalid client_id", ErrInvalidToken)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected token_use %q", ErrInvalidToken, claims.TokenUse)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim, use an ID token", ErrInvalidToken)
	}
	// Admin access is an email match, so the address must be proven.
	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}
	return newSession(tokenString, claims.Email, claims.RegisteredClaims, "cognito"), nil
}

func newSession(tokenString, email string, claims jwt.RegisteredClaims, provider string) *Session {
	s := &Session{
		Email:    email,
		Subject:  claims.Subject,
		TokenID:  claims.ID,
		Provider: provider,
	}
	if s.TokenID == "" {
		sum := sha256.Sum256([]byte(tokenString))
		s.TokenID = hex.EncodeToString(sum[:])
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}

// publicKey serves kid from the cached JWKS. The set is refetched when stale,
// or when kid is unknown and the last fetch is older than jwksMissBackoff.
func (v *Verifier) publicKey(ctx context.Context, issuer, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, errors.New("missing key id in token")
	}
	now := v.now()
	v.mu.RLock()
	fresh := now.Before(v.expires)
	key, ok := v.keys[kid]
	recent := now.Sub(v.fetchedAt) < jwksMissBackoff
	v.mu.RUnlock()
	if fresh && ok {
		return key, nil
	}
	if fresh && recent {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}

	keys, err := v.fetchJWKS(ctx, issuer+"/.well-known/jwks.json")
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = now
	v.expires = now.Add(jwksTTL)
	v.mu.Unlock()

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}
	return key, nil
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *Verifier) fetchJWKS(ctx context.Context, url string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS request failed with status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			continue
		}
		keys[key.Kid] = pubKey
	}
	if len(keys) == 0 {
		return nil, errors.New("no valid RSA keys found in JWKS")
	}
	return keys, nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
