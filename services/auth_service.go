package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	stderrors "errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Signup(username, password, profilePicture string) (domain.Profile, Token, error)
	Signin(username, password string) (Token, error)
	Lookup(username string) (domain.Profile, error)
}

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{log: log, userRepository: repo, tokens: tokens}
}

// Signup validates and stores a new account, then issues its first token.
// profilePicture is an optional PNG/JPEG data URL.
func (s *AuthService) Signup(username, password, profilePicture string) (domain.Profile, Token, error) {
	username = auth.NormalizeUsername(username)

	// Business rules first, before any expensive cryptographic operation.
	if err := auth.ValidateSignup(auth.SignupRequest{Username: username, Password: password}); err != nil {
		return domain.Profile{}, "", err
	}

	var picture []byte
	if profilePicture != "" {
		var err error
		if picture, err = DecodeProfilePicture(profilePicture); err != nil {
			return domain.Profile{}, "", err
		}
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.Profile{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, hashedPassword, picture)
	if err != nil {
		return domain.Profile{}, "", err
	}
	s.log.Info("Account created", "username", user.Username, "user_id", user.ID)

	token, err := s.tokens.GenerateToken(user.ID, user.Username, user.Roles)
	if err != nil {
		return domain.Profile{}, "", errors.ErrTokenGeneration
	}
	return toProfile(user), Token(token), nil
}

// Signin checks the password and issues a token for the relay handshake.
func (s *AuthService) Signin(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(auth.NormalizeUsername(username))
	if err != nil {
		if !stderrors.Is(err, errors.ErrUserNotFound) {
			s.log.Error("Account lookup failed", "error", err)
		}
		// Same answer for unknown user and wrong password
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Lookup(username string) (domain.Profile, error) {
	user, err := s.userRepository.GetUserByUsername(auth.NormalizeUsername(username))
	if err != nil {
		return domain.Profile{}, err
	}
	return toProfile(user), nil
}

func toProfile(user repositories.User) domain.Profile {
	return domain.Profile{
		ID:             user.ID,
		Username:       user.Username,
		ProfilePicture: user.ProfilePicture,
	}
}
