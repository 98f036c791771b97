package app

import (
	"context"
	"errors"
	"time"

	"teamline/internal/domain"
	"teamline/internal/repo"
)

// EnsureActor makes sure the acting user exists in the directory, seeding a
// minimal admin record on first use of a fresh workspace. Local CLI usage
// should never fail just because nobody ran `tl user add` yet.
func EnsureActor(ctx context.Context, r repo.Repo, actorID string) (domain.User, error) {
	if actorID == "" {
		actorID = "local-admin"
	}
	u, err := r.GetUser(ctx, actorID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u = domain.User{
		ID:        actorID,
		Name:      actorID,
		Role:      "admin",
		Status:    "active",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
