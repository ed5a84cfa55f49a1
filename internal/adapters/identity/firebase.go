// Package identity adapts the identity provider to the domain port.
package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// FirebaseIdentity implements domain.Identity over Firebase Auth.
type FirebaseIdentity struct {
	auth *auth.Client
}

func NewFirebase(ctx context.Context, projectID string) (*FirebaseIdentity, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth: %w", err)
	}
	return &FirebaseIdentity{auth: client}, nil
}

func (f *FirebaseIdentity) VerifyToken(ctx context.Context, idToken string) (*domain.User, error) {
	tok, err := f.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verifying id token: %w", err)
	}
	return f.GetUser(ctx, domain.UserID(tok.UID))
}

func (f *FirebaseIdentity) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	u, err := f.auth.GetUser(ctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return toUser(u), nil
}

func (f *FirebaseIdentity) UpdateDisplayName(ctx context.Context, id domain.UserID, name string) (*domain.User, error) {
	params := (&auth.UserToUpdate{}).DisplayName(name)
	u, err := f.auth.UpdateUser(ctx, string(id), params)
	if err != nil {
		return nil, fmt.Errorf("updating display name: %w", err)
	}
	return toUser(u), nil
}

func (f *FirebaseIdentity) EmailVerificationLink(ctx context.Context, email string) (string, error) {
	link, err := f.auth.EmailVerificationLink(ctx, email)
	if err != nil {
		return "", fmt.Errorf("creating verification link: %w", err)
	}
	return link, nil
}

func toUser(u *auth.UserRecord) *domain.User {
	return &domain.User{
		ID:            domain.UserID(u.UID),
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}
}
