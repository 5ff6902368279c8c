// Package seed loads departments and users from a YAML file into storage.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/internal/services/auth"
	"github.com/anything-ai/anything-ai/internal/services/storage"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File is the seed document
type File struct {
	Departments []Department `yaml:"departments"`
	Users       []User       `yaml:"users"`
}

type Department struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	AccessCode        string `yaml:"accessCode"`
	SystemInstruction string `yaml:"systemInstruction"`
}

type User struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Department string `yaml:"department"`
	Role       string `yaml:"role"`
}

// Result counts what Apply changed
type Result struct {
	Departments  int
	UsersCreated int
	UsersSkipped int
}

// Load reads a seed file from disk
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a seed document and checks it for obvious mistakes
func Decode(r io.Reader) (*File, error) {
	var file File
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	known := make(map[string]bool, len(file.Departments))
	for _, d := range file.Departments {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("department %q needs both id and name", d.ID)
		}
		if d.AccessCode != "" && !auth.ValidAccessCodeFormat(d.AccessCode) {
			return nil, fmt.Errorf("department %s: %w", d.ID, auth.ErrInvalidAccessCode)
		}
		known[d.ID] = true
	}
	for _, u := range file.Users {
		if u.Username == "" || u.Password == "" {
			return nil, fmt.Errorf("user %q needs both username and password", u.Username)
		}
		if !known[u.Department] {
			return nil, fmt.Errorf("user %s references unknown department %q", u.Username, u.Department)
		}
	}
	return &file, nil
}

// Apply upserts every department and creates the users that do not exist
// yet. Running it twice leaves storage unchanged.
func Apply(ctx context.Context, store storage.Storage, file *File, logger *logrus.Logger) (*Result, error) {
	result := &Result{}

	for _, d := range file.Departments {
		dept := &models.Department{
			ID:                d.ID,
			Name:              d.Name,
			SystemInstruction: d.SystemInstruction,
		}
		if existing, err := store.GetDepartment(ctx, d.ID); err == nil {
			dept.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if d.AccessCode != "" {
			hash, err := auth.HashAccessCode(d.AccessCode)
			if err != nil {
				return nil, err
			}
			dept.AccessCodeHash = hash
		}
		if err := store.SaveDepartment(ctx, dept); err != nil {
			return nil, fmt.Errorf("save department %s: %w", d.ID, err)
		}
		result.Departments++
	}

	for _, u := range file.Users {
		if _, err := store.GetUserByUsername(ctx, u.Username); err == nil {
			logger.WithField("username", u.Username).Debug("User exists, skipping")
			result.UsersSkipped++
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		role := u.Role
		if role == "" {
			role = "user"
		}
		user := &models.User{
			Username:     u.Username,
			PasswordHash: hash,
			DepartmentID: u.Department,
			Role:         role,
		}
		if err := store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user %s: %w", u.Username, err)
		}
		result.UsersCreated++
	}

	logger.WithFields(logrus.Fields{
		"departments":   result.Departments,
		"users_created": result.UsersCreated,
		"users_skipped": result.UsersSkipped,
	}).Info("Seed applied")
	return result, nil
}
