package services

import (
	"context"
	"log"
	"strings"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/models"
)

// UserService handles sign-up, sign-in and the admin customer list
type UserService struct {
	backend backend.Client
}

// NewUserService creates a new user service
func NewUserService(client backend.Client) *UserService {
	return &UserService{backend: client}
}

func (s *UserService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	return s.backend.SignUp(ctx, email, password)
}

func (s *UserService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] signed in: user_id=%s", session.User.ID)
	return session, nil
}

func (s *UserService) SignOut(ctx context.Context, token string) error {
	return s.backend.SignOut(ctx, token)
}

// CurrentUser returns the user behind token
func (s *UserService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	return s.backend.CurrentUser(ctx, token)
}

// ListCustomers returns customers whose email contains query, ignoring case.
// An empty query returns everyone.
func (s *UserService) ListCustomers(ctx context.Context, token, query string) ([]models.Customer, error) {
	customers, err := s.backend.ListCustomers(ctx, token)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return customers, nil
	}
	out := []models.Customer{}
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Email), query) {
			out = append(out, c)
		}
	}
	return out, nil
}
