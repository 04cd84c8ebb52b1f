package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"taskboard/internal/auth"
	"taskboard/internal/model"
	"taskboard/internal/repository"
)

const minPasswordLength = 6

// SignupInput represents data required to register an account.
type SignupInput struct {
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	Role      model.Role `json:"role"`
	AdminType string     `json:"adminType"`
	Admin     *uint      `json:"admin"`
}

// UserService manages accounts and the admin directory.
type UserService struct {
	users       *repository.UserRepository
	adminEmails map[string]string
	logger      *slog.Logger
}

// NewUserService builds the service. adminEmails, when non-empty, restricts each
// admin seat to one email address; keys are lower-case admin types.
func NewUserService(users *repository.UserRepository, adminEmails map[string]string, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UserService{users: users, adminEmails: adminEmails, logger: logger}
}

// ActorFor returns the actor identity for user.
func ActorFor(user *model.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

// Signup validates in and creates the account.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, invalidf("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, invalidf("a valid email is required")
	case len(in.Password) < minPasswordLength:
		return nil, invalidf("password must be at least %d characters", minPasswordLength)
	case in.Role != model.RoleAdmin && in.Role != model.RoleUser:
		return nil, invalidf("role must be admin or user")
	}

	user := model.User{Name: name, Email: email, Role: in.Role}
	if in.Role == model.RoleAdmin {
		if err := s.checkAdminSeat(ctx, in.AdminType, email); err != nil {
			return nil, err
		}
		user.AdminType = in.AdminType
	} else {
		if in.Admin == nil {
			return nil, invalidf("user must be assigned to an admin")
		}
		admin, err := s.users.FindByID(ctx, *in.Admin)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if err != nil || !admin.IsAdmin() {
			return nil, invalidf("admin %d does not exist", *in.Admin)
		}
		adminID := admin.ID
		user.AdminID = &adminID
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, conflictf("user already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	if err := s.users.Create(ctx, &user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

func (s *UserService) checkAdminSeat(ctx context.Context, adminType, email string) error {
	if !model.ValidAdminType(adminType) {
		return invalidf("admin type must be one of %s", strings.Join(model.AdminTypes, ", "))
	}
	if len(s.adminEmails) > 0 && normalizeEmail(s.adminEmails[strings.ToLower(adminType)]) != email {
		return forbiddenf("you are not authorized to register as %s", adminType)
	}
	_, err := s.users.FindAdminByType(ctx, adminType)
	switch {
	case err == nil:
		return conflictf("%s is already taken", adminType)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Authenticate returns the user matching the credentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("user %d not found", id)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("user %s not found", email)
		}
		return nil, err
	}
	return user, nil
}

// ListAdmins returns the admins users can sign up under.
func (s *UserService) ListAdmins(ctx context.Context) ([]model.User, error) {
	return s.users.ListAdmins(ctx)
}

// ListUsersUnderAdmin returns the users registered under actor.
func (s *UserService) ListUsersUnderAdmin(ctx context.Context, actor Actor) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenf("only admins can list their users")
	}
	return s.users.ListByAdmin(ctx, actor.ID)
}

// IssueLinkCode creates a one-time code the Telegram bot accepts with /link.
func (s *UserService) IssueLinkCode(ctx context.Context, actor Actor) (string, error) {
	code := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if err := s.users.SetTelegramLinkCode(ctx, actor.ID, code); err != nil {
		return "", err
	}
	return code, nil
}

// LinkTelegram binds chatID to the account holding code.
func (s *UserService) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalidf("link code is required")
	}
	user, err := s.users.LinkTelegram(ctx, code, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("link code not recognised")
		}
		return nil, err
	}
	s.logger.Info("telegram linked", "user_id", user.ID)
	return user, nil
}

func (s *UserService) FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := s.users.FindByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundf("chat is not linked to an account")
		}
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
