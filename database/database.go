package database

import (
	"timeclock/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(dsn string) error {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	if err := Migrate(DB); err != nil {
		return err
	}

	// Seed default admin if not exists
	if err := seedDefaultAdmin(); err != nil {
		return err
	}

	return nil
}

// Migrate applies the schema. Exposed separately so tests can run it against
// their own database handle.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.SubTask{},
		&models.TimeLogEntry{},
	); err != nil {
		return err
	}

	// At most one open time log per user, enforced by the storage engine.
	// Transactions serialize on the user row before touching logs; this index
	// backstops any writer that reaches the table some other way.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_time_log_entries_open_user
		ON time_log_entries (user_id) WHERE end_time IS NULL`).Error
}

func seedDefaultAdmin() error {
	var count int64
	DB.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:           "admin",
		FullName:           "Administrator",
		PasswordHash:       string(hashedPassword),
		Role:               models.RoleAdmin,
		MustChangePassword: true,
		Active:             true,
	}

	if result := DB.Create(&admin); result.Error != nil {
		return result.Error
	}

	logrus.Info("Default admin user created (username: admin, password: admin)")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}
