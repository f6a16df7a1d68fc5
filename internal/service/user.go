package service

import (
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLen — минимальная длина пароля.
const MinPasswordLen = 6

// bcryptCost переопределяется в тестах.
var bcryptCost = 12

// RegisterInput — данные регистрации.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
}

type UserService struct {
	repo repo.UserRepository
}

func NewUserService(r repo.UserRepository) *UserService {
	return &UserService{repo: r}
}

// Register создаёт пользователя. Email хранится в нижнем регистре.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if len(in.Password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}

	if err := s.ensureFree(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		Role:     model.RoleUser,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		u.Phone = &phone
	}

	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		// параллельная регистрация с тем же email/username упирается в уникальный индекс
		if conflict := s.ensureFree(ctx, in.Email, in.Username); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *UserService) ensureFree(ctx context.Context, email, username string) error {
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	return nil
}

// Login проверяет email и пароль. Неизвестный email и неверный пароль неразличимы.
func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// GetByID — пользователь по id или ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// UpdateProfile меняет имя и аватар.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, username, profileImage string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, newError(ErrValidation, "Username is required")
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if username != current.Username {
		if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
			return nil, ErrUsernameTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check username: %w", err)
		}
	}

	if err := s.repo.UpdateProfile(ctx, id, username, profileImage); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	current.Username = username
	current.ProfileImage = profileImage
	return current, nil
}

// ChangePassword проверяет текущий пароль и сохраняет новый хеш.
// Отзыв токена делает вызывающая сторона.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < MinPasswordLen {
		return newError(ErrValidation, "New password must be at least 6 characters")
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
