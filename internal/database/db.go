package database

import (
	"resellerportal/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Config is shared by the postgres connection and the sqlite test databases.
// TranslateError maps unique violations to gorm.ErrDuplicatedKey.
func Config() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// Migrate creates or updates every table. Roles precede accounts so the
// accounts.role_id foreign key can be created.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Role{},
		&model.Account{},
		&model.Invite{},
		&model.PasswordResetToken{},
		&model.Device{},
		&model.DeviceAssignment{},
		&model.Notification{},
		&model.AuditLog{},
	)
}
