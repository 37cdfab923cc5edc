package service

import (
	"context"

	"collector/internal/model"
	"collector/internal/repository"
)

// UserResponse is the caller's profile without anything sensitive.
type UserResponse struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	AdministrationID   string `json:"administration_id"`
	AdministrationName string `json:"administration_name,omitempty"`
	Level              int    `json:"level"`
	Privileged         bool   `json:"privileged"`
	CreatedAt          string `json:"created_at"`
}

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*UserResponse, error)
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	id, err := parseID("user id", userID)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user", id)
	}
	return mapToResponse(user), nil
}

func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:               user.ID.String(),
		Username:         user.Username,
		Email:            user.Email,
		Role:             user.Role,
		AdministrationID: user.AdministrationID.String(),
		Privileged:       user.IsPrivileged(),
		CreatedAt:        formatTime(user.CreatedAt),
	}
	if user.Administration != nil {
		res.AdministrationName = user.Administration.Name
		res.Level = int(user.Administration.Level)
	}
	return res
}
