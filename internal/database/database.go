package database

import (
	"log"
	"os"
	"time"

	"hackreg/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) {
	var err error

	// Configure GORM logger
	customLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: customLogger,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established.")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migrated successfully.")
}

// Migrate runs the schema migrations and seeds the singleton settings
// row when it does not exist yet.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Team{}, &models.Settings{}); err != nil {
		return err
	}

	var count int64
	if err := db.Model(&models.Settings{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		year := int64(365 * 24 * time.Hour / time.Millisecond)
		now := time.Now().UnixMilli()
		seed := models.Settings{
			TimeOpen:           0,
			TimeClose:          now + year,
			TimeCloseSpecial:   now + year,
			TimeConfirm:        now + year,
			TimeConfirmSpecial: now + year,
			TimeTR:             now + year,
			Reimbursement: models.ReimbursementAmounts{
				Finland:      20,
				Baltics:      40,
				Nordics:      60,
				Europe:       80,
				RestOfWorld:  150,
				GoldenTicket: 200,
			},
		}
		if err := db.Create(&seed).Error; err != nil {
			return err
		}
	}
	return nil
}
