package auth

import (
	"context"
	"crypto/subtle"

	"github.com/modaboutique/backoffice/internal/shared"
)

// Repository looks up operators.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Operator, error)
}

// StaticRepository serves the single operator configured through the
// environment.
type StaticRepository struct {
	operator Operator
}

// NewStaticRepository builds a repository holding one operator. An empty
// hash disables login.
func NewStaticRepository(username, passwordHash string) *StaticRepository {
	return &StaticRepository{operator: Operator{
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     username != "" && passwordHash != "",
	}}
}

// FindByUsername returns the operator when the username matches.
func (r *StaticRepository) FindByUsername(_ context.Context, username string) (*Operator, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(r.operator.Username)) != 1 {
		return nil, shared.ErrNotFound
	}
	op := r.operator
	return &op, nil
}

var _ Repository = (*StaticRepository)(nil)
