package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/barrinalo/CATMAID/internal/domain"
)

// UserStore defines the user data access interface consumed by AuthService.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Upsert(ctx context.Context, user domain.User) (*domain.User, error)
}

// AuthConfig holds OAuth configuration.
type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	JWTSecret          string
	FrontendURL        string
}

// oauthProvider pairs an OAuth config with its user info fetcher.
type oauthProvider struct {
	config    *oauth2.Config
	fetchUser func(ctx context.Context, accessToken string) (domain.User, error)
}

// AuthService handles authentication logic.
type AuthService struct {
	users     UserStore
	jwtSecret []byte
	providers map[domain.AuthProvider]oauthProvider
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(cfg.JWTSecret),
		providers: map[domain.AuthProvider]oauthProvider{
			domain.AuthProviderGoogle: {
				config: &oauth2.Config{
					ClientID:     cfg.GoogleClientID,
					ClientSecret: cfg.GoogleClientSecret,
					Endpoint:     googleOAuth.Endpoint,
					Scopes:       []string{"openid", "profile", "email"},
					RedirectURL:  cfg.FrontendURL + "/auth/google/callback",
				},
				fetchUser: fetchGoogleUser,
			},
			domain.AuthProviderGitHub: {
				config: &oauth2.Config{
					ClientID:     cfg.GitHubClientID,
					ClientSecret: cfg.GitHubClientSecret,
					Endpoint:     github.Endpoint,
					Scopes:       []string{"user:email"},
					RedirectURL:  cfg.FrontendURL + "/auth/github/callback",
				},
				fetchUser: fetchGitHubUser,
			},
		},
	}
}

// AuthURL returns the provider's OAuth authorization URL.
func (s *AuthService) AuthURL(provider domain.AuthProvider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	return p.config.AuthCodeURL(state), nil
}

// TokenPair holds an access token and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Callback exchanges the authorization code with the provider, upserts the
// user, and returns a JWT pair.
func (s *AuthService) Callback(ctx context.Context, provider domain.AuthProvider, code string) (*domain.User, *TokenPair, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%s token exchange: %w", provider, err)
	}

	info, err := p.fetchUser(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s user info: %w", provider, err)
	}
	info.Provider = provider

	user, err := s.users.Upsert(ctx, info)
	if err != nil {
		return nil, nil, fmt.Errorf("upsert %s user: %w", provider, err)
	}

	pair, err := s.generateTokenPair(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// ValidateToken validates a JWT access token and returns the user ID.
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	return s.validateToken(tokenString, "access")
}

// RefreshAccessToken generates a new token pair from a refresh token.
func (s *AuthService) RefreshAccessToken(refreshToken string) (*TokenPair, error) {
	userID, err := s.validateToken(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(userID)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) validateToken(tokenString, wantType string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, domain.ErrUnauthorized
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != wantType {
		return 0, domain.ErrUnauthorized
	}

	userIDFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, domain.ErrUnauthorized
	}

	return int64(userIDFloat), nil
}

func (s *AuthService) generateTokenPair(userID int64) (*TokenPair, error) {
	now := time.Now()

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(15 * time.Minute).Unix(),
	})
	accessStr, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"type": "refresh",
		"iat":  now.Unix(),
		"exp":  now.Add(7 * 24 * time.Hour).Unix(),
	})
	refreshStr, err := refreshToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
	}, nil
}

func fetchGoogleUser(ctx context.Context, accessToken string) (domain.User, error) {
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON(ctx, "https://www.googleapis.com/oauth2/v2/userinfo", accessToken, &info); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ProviderID:  info.ID,
		Email:       info.Email,
		DisplayName: info.Name,
		AvatarURL:   strPtr(info.Picture),
	}, nil
}

func fetchGitHubUser(ctx context.Context, accessToken string) (domain.User, error) {
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := fetchJSON(ctx, "https://api.github.com/user", accessToken, &info); err != nil {
		return domain.User{}, err
	}

	if info.Email == "" {
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := fetchJSON(ctx, "https://api.github.com/user/emails", accessToken, &emails); err != nil {
			return domain.User{}, err
		}
		for _, e := range emails {
			if e.Primary {
				info.Email = e.Email
				break
			}
		}
	}

	return domain.User{
		ProviderID:  fmt.Sprintf("%d", info.ID),
		Email:       info.Email,
		DisplayName: info.Login,
		AvatarURL:   strPtr(info.AvatarURL),
	}, nil
}

func fetchJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
