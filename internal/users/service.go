package users

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
)

// Service looks up and authenticates users
type Service struct {
	repo   repository.Repository[User]
	crud   *resource.Handler[User, *User]
	logger *zap.Logger
}

func NewService(repo repository.Repository[User], logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo: repo,
		crud: resource.NewHandler[User, *User](repo, resource.Options[User]{
			Filters:    []string{"role", "status", "username"},
			Validate:   Validate,
			BeforeSave: HashPassword,
		}, logger),
		logger: logger,
	}
}

// FindByUsername returns the user with the given username.
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	page, err := s.repo.List(ctx, repository.Query{PageSize: 1}.WithFilter("username", username))
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if strings.EqualFold(page.Items[i].Username, username) {
			return &page.Items[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Status != StatusActive {
		s.logger.Warn("login attempt on disabled account", zap.String("username", u.Username))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap administrator when no user exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	page, err := s.repo.List(ctx, repository.Query{PageSize: 1})
	if err != nil {
		return err
	}
	if page.Total > 0 {
		return nil
	}
	admin := &User{Username: username, FullName: "Administrator", Role: RoleAdmin, Status: StatusActive, Password: password}
	if err := HashPassword(ctx, admin, nil); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap administrator created", zap.String("username", username))
	return nil
}

// RegisterRoutes mounts /users behind the given middleware.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	s.crud.RegisterRoutes(rg, "/users", middleware...)
}
