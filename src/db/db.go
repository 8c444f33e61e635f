package db

import (
	"log"
	"staylog/src/config"
	"staylog/src/models"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	db   *gorm.DB
	dbMu sync.Mutex
)

func GetDb() *gorm.DB {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db != nil {
		return db
	}
	_db, err := gorm.Open(postgres.Open(config.GetDSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Printf("Error connecting to database: %s\n", err.Error())
		panic(err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Fatalf("Error establishing connection to database: %s\n", err.Error())
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	db = _db
	return _db
}

func NewDB(newdb *gorm.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	db = newdb
}

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&models.Booking{},
		&models.Payment{},
		&models.Coupon{},
		&models.Notification{},
	}
}

func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(Models()...)
}
