package model

import (
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the data layer of the application. All aggregates are owner
// scoped; every query must filter on owner_id.
type Store struct {
	db     *gorm.DB
	Config *Config
}

// Config is read from config.toml at startup.
type Config struct {
	Basedir                  string
	CookieSecret             string
	DocumentDir              string
	MailAPIKey               string
	MailSecret               string
	MailFrom                 string
	Mode                     string
	Port                     int
	PublishingServerAddress  string
	PublishingServerUsername string
	RegistrationAllowed      bool
	SchedulerHour            int
	Servers                  map[string]server
	Timezone                 string
}

type server struct {
	Database   string
	DBName     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBLogger   string
}

// shared helper for GORM logger
func gormConfigFor(cfg *Config, svr server) *gorm.Config {
	gormConfig := &gorm.Config{TranslateError: true}
	switch svr.DBLogger {
	case "info":
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	case "silent":
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	default:
		if cfg.Mode == "development" {
			gormConfig.Logger = logger.Default.LogMode(logger.Info)
		} else {
			gormConfig.Logger = logger.Default.LogMode(logger.Silent)
		}
	}
	return gormConfig
}

// OpenStore wraps an already opened gorm connection and migrates the
// schema. The test fixtures use it with an in-memory database.
func OpenStore(db *gorm.DB, cfg *Config) (*Store, error) {
	s := &Store{db: db, Config: cfg}
	if err := s.autoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) autoMigrate() error {
	var err error
	if err = s.db.AutoMigrate(&User{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&SellerProfile{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&Client{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&InvoiceTemplate{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&TemplateLineItem{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&Invoice{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&InvoiceLineItem{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&EmailLog{}); err != nil {
		return err
	}
	if err = s.db.AutoMigrate(&APIToken{}); err != nil {
		return err
	}
	// One invoice per template and period. This index is the idempotency
	// guarantee of the whole generation pipeline; manual invoices have a
	// NULL template_id and stay out of it.
	s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_template_period
         ON invoices(template_id, invoice_month, invoice_year)`)
	// Numbers are unique per owner. Backstop for the numbering allocation.
	s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_owner_number
         ON invoices(owner_id, number)`)
	return nil
}
