// Copyright 2026 The GridGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// User represents an actor account. Superuser and Disabled are the only
// flags the access-control core ever consults.
type User struct {
	ID        string
	Username  string
	Email     string
	Superuser bool
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// AccountUpdate is a partial update of a user record. Nil pointers mean
// "leave unchanged"; FieldNames reports exactly the fields present, in
// payload order, for the field-restricted update validator.
type AccountUpdate struct {
	Username  *string
	Email     *string
	Superuser *bool
	Disabled  *bool
}

// FieldNames lists the fields carried by the update.
func (u *AccountUpdate) FieldNames() []string {
	var fields []string
	if u.Username != nil {
		fields = append(fields, "username")
	}
	if u.Email != nil {
		fields = append(fields, "email")
	}
	if u.Superuser != nil {
		fields = append(fields, "superuser")
	}
	if u.Disabled != nil {
		fields = append(fields, "disabled")
	}
	return fields
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// CreateWithCredentials persists the account and its credentials
	// atomically. A username collision reports ErrUserAlreadyExists.
	CreateWithCredentials(ctx context.Context, user *User, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update updates user information
	Update(ctx context.Context, user *User) error

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// UpdatePassword updates user password
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
