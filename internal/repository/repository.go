package repository

import (
	"github.com/prperemyshlev/tasklane/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User       UserRepository
	Session    SessionRepository
	MagicLink  MagicLinkRepository
	DeviceCode DeviceCodeRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Session:    NewSessionRepository(db),
		MagicLink:  NewMagicLinkRepository(db),
		DeviceCode: NewDeviceCodeRepository(db),
	}
}
