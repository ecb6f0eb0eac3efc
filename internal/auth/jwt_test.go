package auth

import (
	"testing"
	"time"
)

func newTestService() *JWTService {
	return NewJWTService("test-secret-key", 15*time.Minute, 7*24*time.Hour, "bazar-test")
}

func TestJWTService_GenerateToken(t *testing.T) {
	service := newTestService()

	tests := []struct {
		name     string
		userID   string
		username string
		userType string
	}{
		{name: "seller token", userID: "1", username: "alice", userType: "seller"},
		{name: "buyer token", userID: "2", username: "bob", userType: "buyer"},
		{name: "empty type", userID: "3", username: "carol", userType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := service.GenerateToken(tt.userID, tt.username, tt.userType)
			if err != nil {
				t.Errorf("GenerateToken() error = %v", err)
				return
			}
			if token == "" {
				t.Error("GenerateToken() returned empty token")
			}
		})
	}
}

func TestJWTService_ValidateToken(t *testing.T) {
	service := newTestService()

	token, err := service.GenerateToken("42", "alice", "seller")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name      string
		token     string
		wantErr   error
		checkData bool
	}{
		{name: "valid token", token: token, wantErr: nil, checkData: true},
		{name: "empty token", token: "", wantErr: ErrTokenMissing},
		{name: "invalid token", token: "invalid.token.here", wantErr: ErrTokenInvalid},
		{name: "malformed token", token: "not-a-jwt-token", wantErr: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			if err != tt.wantErr {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.checkData {
				if claims == nil {
					t.Error("ValidateToken() returned nil claims")
					return
				}
				if claims.UserID != "42" {
					t.Errorf("ValidateToken() userID = %v, want 42", claims.UserID)
				}
				if claims.Username != "alice" {
					t.Errorf("ValidateToken() username = %v, want alice", claims.Username)
				}
				if claims.UserType != "seller" {
					t.Errorf("ValidateToken() userType = %v, want seller", claims.UserType)
				}
			}
		})
	}
}

func TestJWTService_TokenExpiration(t *testing.T) {
	service := NewJWTService("test-secret-key", 1*time.Millisecond, 1*time.Millisecond, "bazar-test")

	token, err := service.GenerateToken("42", "alice", "seller")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	_, err = service.ValidateToken(token)
	if err != ErrTokenExpired && err != ErrTokenInvalid {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired or ErrTokenInvalid", err)
	}
}

func TestJWTService_ValidateRefreshToken(t *testing.T) {
	service := newTestService()

	refreshToken, err := service.GenerateRefreshToken("42")
	if err != nil {
		t.Fatalf("Failed to generate refresh token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
		wantID  string
	}{
		{name: "valid refresh token", token: refreshToken, wantErr: nil, wantID: "42"},
		{name: "empty token", token: "", wantErr: ErrTokenMissing},
		{name: "invalid token", token: "invalid.token.here", wantErr: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := service.ValidateRefreshToken(tt.token)
			if err != tt.wantErr {
				t.Errorf("ValidateRefreshToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr == nil && id != tt.wantID {
				t.Errorf("ValidateRefreshToken() id = %v, want %v", id, tt.wantID)
			}
		})
	}
}

func TestJWTService_RefreshToken(t *testing.T) {
	service := newTestService()

	refreshToken, err := service.GenerateRefreshToken("42")
	if err != nil {
		t.Fatalf("Failed to generate refresh token: %v", err)
	}

	newToken, newRefreshToken, err := service.RefreshToken(refreshToken, "alice", "seller")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if newToken == "" || newRefreshToken == "" {
		t.Fatal("RefreshToken() returned empty tokens")
	}

	claims, err := service.ValidateToken(newToken)
	if err != nil {
		t.Errorf("New token validation failed: %v", err)
	}
	if claims.Username != "alice" || claims.UserType != "seller" {
		t.Errorf("New token claims = %v/%v, want alice/seller", claims.Username, claims.UserType)
	}

	userID, err := service.ValidateRefreshToken(newRefreshToken)
	if err != nil {
		t.Errorf("New refresh token validation failed: %v", err)
	}
	if userID != "42" {
		t.Errorf("New refresh token userID = %v, want 42", userID)
	}

	if _, _, err := service.RefreshToken("invalid.token", "alice", "seller"); err == nil {
		t.Error("RefreshToken() should fail for invalid refresh token")
	}
}

func TestJWTService_DifferentSecrets(t *testing.T) {
	service1 := NewJWTService("secret-1", 15*time.Minute, 7*24*time.Hour, "bazar-test")
	service2 := NewJWTService("secret-2", 15*time.Minute, 7*24*time.Hour, "bazar-test")

	token, err := service1.GenerateToken("42", "alice", "seller")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service2.ValidateToken(token); err == nil {
		t.Error("ValidateToken() should fail with different secret")
	}
}
