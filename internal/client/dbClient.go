package client

import (
	"log"
	"time"

	"waifuhospital/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func InitMysqlClient(databaseURL string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		log.Fatal(err)
	}

	return db
}

// Migrate applies the schema; shared with the SQLite test databases.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Character{},
		&model.CharacterLike{},
		&model.Chat{},
		&model.Message{},
		&model.Merchandise{},
		&model.MerchandiseVariant{},
		&model.Purchase{},
		&model.PurchaseItem{},
		&model.CreatorPayout{},
		&model.WebhookEvent{},
	)
}
