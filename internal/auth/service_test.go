package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("secret", "press-backend", time.Hour)

	token, err := svc.GenerateToken("scheduler", "train")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "scheduler", claims.Subject)
	assert.Equal(t, "train", claims.Scope)
	assert.Equal(t, "press-backend", claims.Issuer)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := NewService("secret", "press-backend", time.Hour)
	good, err := svc.GenerateToken("scheduler", "")
	require.NoError(t, err)

	expiredSvc := NewService("secret", "press-backend", time.Hour)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.GenerateToken("scheduler", "")
	require.NoError(t, err)

	otherIssuer, err := NewService("secret", "someone-else", time.Hour).GenerateToken("scheduler", "")
	require.NoError(t, err)

	wrongSecret, err := NewService("other", "press-backend", time.Hour).GenerateToken("scheduler", "")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: "press-backend"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"expired", expired, ErrExpiredToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"wrong secret", wrongSecret, ErrInvalidToken},
		{"unsigned", none, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = svc.ValidateToken(good)
	assert.NoError(t, err)
}
