// Package identity manages application users and login token issuance.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the app_user table. DoctorID links clinician accounts to
// their doctor record; prescription creation checks it.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         string     `db:"role" json:"role"`
	DoctorID     *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
