package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "password123", false},
		{"empty password", "", false},
		{"long password", strings.Repeat("a", 72), false}, // bcrypt max is 72 bytes
		{"too long password", strings.Repeat("a", 73), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("HashPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && hash == "" {
				t.Error("HashPassword() returned empty hash")
			}
		})
	}
}

func TestHashPassword_DifferentHashes(t *testing.T) {
	hash1, _ := HashPassword("testpassword")
	hash2, _ := HashPassword("testpassword")

	if hash1 == hash2 {
		t.Error("HashPassword() should produce different hashes for same password")
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "testpassword123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"correct password", hash, password, true},
		{"wrong password", hash, "wrongpassword", false},
		{"empty password", hash, "", false},
		{"invalid hash", "invalidhash", password, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	secret := "test-secret-key"
	userID := uint(42)

	token, err := GenerateToken(userID, secret, time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	zeroUser, _ := GenerateToken(0, secret, time.Now(), time.Hour)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantUID uint
		wantErr bool
	}{
		{"valid token", token, secret, userID, false},
		{"wrong secret", token, "wrong-secret", 0, true},
		{"invalid token", "invalid.token.here", secret, 0, true},
		{"empty token", "", secret, 0, true},
		{"zero user id", zeroUser, secret, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && claims.UserID != tt.wantUID {
				t.Errorf("ParseToken() UserID = %v, want %v", claims.UserID, tt.wantUID)
			}
		})
	}
}

func TestParseToken_Expired(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateToken(1, secret, time.Now().Add(-25*time.Hour), 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, secret)
	if err == nil {
		t.Error("ParseToken() should return error for expired token")
	}
	if claims != nil {
		t.Error("ParseToken() should return nil claims for expired token")
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := ParseToken(token, "secret"); err == nil {
		t.Error("ParseToken() should reject HS512 tokens")
	}
}

func TestIssuer_IssueVerify(t *testing.T) {
	fixed := time.Now().Truncate(time.Second)
	iss := NewIssuer("secret", 24*time.Hour)
	iss.now = func() time.Time { return fixed }

	tok, exp, err := iss.Issue(7)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !exp.Equal(fixed.Add(24 * time.Hour)) {
		t.Errorf("Issue() expiry = %v, want %v", exp, fixed.Add(24*time.Hour))
	}
	id, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.UserID != 7 {
		t.Errorf("Verify() UserID = %d, want 7", id.UserID)
	}
	if _, err := iss.Verify(""); err == nil {
		t.Error("Verify() should reject empty token")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := NewIssuer("secret", time.Hour)
	valid, _, _ := iss.Issue(3)
	expired, _ := GenerateToken(3, "secret", time.Now().Add(-2*time.Hour), time.Hour)

	r := gin.New()
	r.GET("/me", Middleware(iss, "jwt"), func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": id.UserID})
	})

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   int
	}{
		{"no cookie", nil, http.StatusUnauthorized},
		{"empty cookie", &http.Cookie{Name: "jwt", Value: ""}, http.StatusUnauthorized},
		{"garbage", &http.Cookie{Name: "jwt", Value: "abc"}, http.StatusUnauthorized},
		{"expired", &http.Cookie{Name: "jwt", Value: expired}, http.StatusUnauthorized},
		{"wrong cookie name", &http.Cookie{Name: "session", Value: valid}, http.StatusUnauthorized},
		{"valid", &http.Cookie{Name: "jwt", Value: valid}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetSessionCookie(c, "jwt", "tok", 24*time.Hour)
	ClearSessionCookie(c, "jwt")

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("got %d cookies, want 2", len(cookies))
	}
	set, cleared := cookies[0], cookies[1]
	if set.Value != "tok" || !set.HttpOnly || !set.Secure || set.SameSite != http.SameSiteNoneMode {
		t.Errorf("session cookie attributes wrong: %+v", set)
	}
	if set.MaxAge != 24*60*60 {
		t.Errorf("session cookie MaxAge = %d, want %d", set.MaxAge, 24*60*60)
	}
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("cleared cookie = %+v, want empty value and expired", cleared)
	}
}
