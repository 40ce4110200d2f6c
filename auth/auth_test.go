package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSigner = NewSigner([]byte("unit_test_secret_key_2026"))

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)

	token, err := testSigner.GenerateToken("alice", []string{"user"}, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := testSigner.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
	req.Equal("market-chat", claims.Issuer)
}

func TestValidateToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := testSigner.GenerateToken("alice", nil, -time.Minute)
	req.NoError(err)

	_, err = testSigner.ValidateToken(token)
	req.Error(err)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	req := require.New(t)

	other := NewSigner([]byte("a_completely_different_secret"))
	token, err := other.GenerateToken("alice", nil, time.Hour)
	req.NoError(err)

	_, err = testSigner.ValidateToken(token)
	req.Error(err)
}

func TestSelfIssuedTokenSourceReusesToken(t *testing.T) {
	req := require.New(t)

	source := NewSelfIssuedTokenSource(testSigner, "alice", time.Hour)

	first, err := source.Token(t.Context())
	req.NoError(err)
	second, err := source.Token(t.Context())
	req.NoError(err)
	req.Equal(first, second)

	claims, err := testSigner.ValidateToken(first)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
}

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestRequireAuthMiddleware(t *testing.T) {
	req := require.New(t)

	var gotUserID string
	handler := RequireAuth(testSigner, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// Missing header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	req.Equal(http.StatusUnauthorized, rec.Code)

	// Garbage token
	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	handler.ServeHTTP(rec, r)
	req.Equal(http.StatusUnauthorized, rec.Code)

	// Valid token passes identity through
	token, err := testSigner.GenerateToken("alice", []string{"user"}, time.Hour)
	req.NoError(err)
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, r)
	req.Equal(http.StatusNoContent, rec.Code)
	req.Equal("alice", gotUserID)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
