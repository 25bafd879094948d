package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/urbanwoods/api/internal/platform/config"
)

// TokenVerifier validates a bearer credential and returns the caller identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// FirebaseVerifier validates Firebase ID tokens using the Admin SDK.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier initialises the Firebase app and auth client.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: strings.TrimSpace(cfg.ProjectID)}, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// VerifyToken validates the ID token and maps the claims onto an Identity.
func (v *FirebaseVerifier) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("auth: verifier not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("auth: token is required")
	}
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("auth: verify token: %w", err)
	}

	identity := &Identity{UID: decoded.UID}
	if email, ok := decoded.Claims["email"].(string); ok {
		identity.Email = strings.TrimSpace(email)
	}
	if admin, ok := decoded.Claims["admin"].(bool); ok {
		identity.Admin = admin
	}
	return identity, nil
}
