// Package directory loads the user directory seed file.
package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/repository"
)

// Entry is one seeded user. Password is plaintext and hashed on load.
type Entry struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name"`
	StudentID  string      `yaml:"student_id"`
	Department string      `yaml:"department"`
	Email      string      `yaml:"email"`
	Role       domain.Role `yaml:"role"`
	Password   string      `yaml:"password"`
}

type file struct {
	Users []Entry `yaml:"users"`
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) ([]Entry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Users))
	for i, e := range f.Users {
		switch {
		case strings.TrimSpace(e.ID) == "":
			return nil, fmt.Errorf("seed entry %d: id is required", i)
		case strings.TrimSpace(e.Email) == "":
			return nil, fmt.Errorf("seed entry %s: email is required", e.ID)
		case !e.Role.Valid():
			return nil, fmt.Errorf("seed entry %s: unknown role %q", e.ID, e.Role)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("seed entry %s: duplicate id", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return f.Users, nil
}

// Seed inserts every entry of the file at path that is not already present. A missing
// file seeds nothing.
func Seed(ctx context.Context, users repository.UserRepository, path string, bcryptCost int, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("directory seed file not found", zap.String("path", path))
			return 0, nil
		}
		return 0, err
	}
	defer fh.Close()

	entries, err := Parse(fh)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	created := 0
	for _, e := range entries {
		hash, err := auth.HashPassword(e.Password, bcryptCost)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", e.ID, err)
		}
		user := &domain.User{
			ID:           e.ID,
			Name:         e.Name,
			StudentID:    e.StudentID,
			Department:   e.Department,
			Email:        e.Email,
			Role:         e.Role,
			PasswordHash: hash,
		}
		err = users.Create(ctx, user)
		if errors.Is(err, repository.ErrDuplicateID) || errors.Is(err, repository.ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed user %s: %w", e.ID, err)
		}
		created++
	}
	logger.Info("directory seeded", zap.Int("created", created), zap.Int("entries", len(entries)))
	return created, nil
}
