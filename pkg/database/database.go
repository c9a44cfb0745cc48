package database

import (
	"clubnet_backend/internal/config"
	"clubnet_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// Models is every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Course{},
		&model.Club{},
		&model.Membership{},
		&model.ClubInvite{},
		&model.ClubEvent{},
		&model.ClubPost{},
		&model.FriendRequest{},
		&model.Thread{},
		&model.Participant{},
		&model.Message{},
		&model.Notification{},
	}
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func dsnFor(cfg *config.DatabaseConfig, host string, port int, user, password string) string {
	switch cfg.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			host, port, user, password, cfg.DBName)
	case "sqlite":
		return cfg.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			user, password, host, port, cfg.DBName, cfg.Charset, cfg.ParseTime)
	}
}

// Open connects without migrating. TranslateError maps driver unique violations to
// gorm.ErrDuplicatedKey.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	return gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dsn := dsnFor(cfg, cfg.Host, cfg.Port, cfg.User, cfg.Password)

	db, err := Open(cfg.Driver, dsn, logger.Warn)
	if err != nil {
		return nil, err
	}
	log.Println("Database connection established")

	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, r := range cfg.Replicas {
			d, err := dialector(cfg.Driver, dsnFor(cfg, r.Host, r.Port, r.User, r.Password))
			if err != nil {
				return nil, err
			}
			replicas = append(replicas, d)
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, err
		}
		log.Printf("Registered %d read replicas", len(replicas))
	}

	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	return db, nil
}
