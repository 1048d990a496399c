package service

import (
	"context"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// UserService handles accounts: registration, login checks, profiles and
// the staff flag.
type UserService struct {
	users repository.UserRepository
}

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// ProfileInput carries writable profile fields; nil means unchanged.
type ProfileInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Avatar    *string
	Bio       *string
	Website   *string
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Register validates and creates a regular account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewFieldValidationError("username", err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewFieldValidationError("email", err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewFieldValidationError("password", err.Error())
	}
	if err := s.ensureFree(ctx, 0, username, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{Username: username, Email: email, Password: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ensureFree rejects a username or email held by a user other than selfID.
func (s *UserService) ensureFree(ctx context.Context, selfID uint, username, email string) error {
	if username != "" {
		u, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if u != nil && u.ID != selfID {
			return models.NewConflictError("Username already taken")
		}
	}
	if email != "" {
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u != nil && u.ID != selfID {
			return models.NewConflictError("Email already registered")
		}
	}
	return nil
}

// Authenticate checks a username-or-email and password pair.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies a partial profile update for user id.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var newUsername, newEmail string
	if in.Username != nil {
		newUsername = strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(newUsername); err != nil {
			return nil, models.NewFieldValidationError("username", err.Error())
		}
	}
	if in.Email != nil {
		newEmail = strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validation.ValidateEmail(newEmail); err != nil {
			return nil, models.NewFieldValidationError("email", err.Error())
		}
	}
	if err := s.ensureFree(ctx, user.ID, newUsername, newEmail); err != nil {
		return nil, err
	}
	if newUsername != "" {
		user.Username = newUsername
	}
	if newEmail != "" {
		user.Email = newEmail
	}

	if in.FirstName != nil {
		v, err := optionalText("first_name", strings.TrimSpace(*in.FirstName), 150)
		if err != nil {
			return nil, err
		}
		user.FirstName = v
	}
	if in.LastName != nil {
		v, err := optionalText("last_name", strings.TrimSpace(*in.LastName), 150)
		if err != nil {
			return nil, err
		}
		user.LastName = v
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Bio != nil {
		bio, err := validation.CleanBio(strings.TrimSpace(*in.Bio))
		if err != nil {
			return nil, models.NewFieldValidationError("bio", err.Error())
		}
		user.Bio = bio
	}
	if in.Website != nil {
		site := strings.TrimSpace(*in.Website)
		if err := validation.ValidateOptionalURL(site); err != nil {
			return nil, models.NewFieldValidationError("website", err.Error())
		}
		user.Website = site
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetStaff grants or revokes admin rights for the user named by login.
func (s *UserService) SetStaff(ctx context.Context, login string, staff bool) (*models.User, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", login)
	}
	if err := s.users.SetStaff(ctx, user.ID, staff); err != nil {
		return nil, err
	}
	user.IsStaff = staff
	return user, nil
}

// GetByLogin resolves a username or email.
func (s *UserService) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", login)
	}
	return user, nil
}

func (s *UserService) ListStaff(ctx context.Context) ([]models.User, error) {
	return s.users.ListStaff(ctx)
}

// EnsureAdmin creates a staff account, or promotes the existing account with
// the same username. It reports whether a new user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, in RegisterInput) (*models.User, bool, error) {
	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !existing.IsStaff {
			if err := s.users.SetStaff(ctx, existing.ID, true); err != nil {
				return nil, false, err
			}
			existing.IsStaff = true
		}
		return existing, false, nil
	}
	user, err := s.Register(ctx, in)
	if err != nil {
		return nil, false, err
	}
	if err := s.users.SetStaff(ctx, user.ID, true); err != nil {
		return nil, false, err
	}
	user.IsStaff = true
	return user, true, nil
}
