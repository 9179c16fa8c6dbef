// Package sqlstore loads the master table into a relational database through
// gorm and reads it back for reporting.
package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

const insertBatchSize = 500

// Destination is one master row as stored in the destinations table.
type Destination struct {
	ID           uint      `gorm:"primaryKey"`
	RunID        string    `gorm:"column:run_id;size:36;index"`
	GeneratedAt  time.Time `gorm:"column:generated_at"`
	Position     int       `gorm:"column:position"`
	CityID       *int      `gorm:"column:city_id"`
	City         string    `gorm:"column:city;size:128;index"`
	HotelName    string    `gorm:"column:hotel_name;size:512"`
	URL          *string   `gorm:"column:url;size:2048"`
	Score        *float64  `gorm:"column:score"`
	ScoreText    string    `gorm:"column:score_text;size:16"`
	Description  *string   `gorm:"column:description;type:text"`
	HotelLat     *float64  `gorm:"column:hotel_lat"`
	HotelLon     *float64  `gorm:"column:hotel_lon"`
	WeatherScore *float64  `gorm:"column:weather_score"`
	ClimateIndex *float64  `gorm:"column:climate_index"`
	AvgTemp      *float64  `gorm:"column:avg_temp"`
	TotalRainMM  *float64  `gorm:"column:total_rain_mm"`
	Latitude     *float64  `gorm:"column:latitude"`
	Longitude    *float64  `gorm:"column:longitude"`
}

// Store writes and reads the destinations table.
type Store struct {
	db     *gorm.DB
	table  string
	logger *slog.Logger
}

// Open connects with the named driver (sqlite, postgres or mysql) and makes
// sure the table exists.
func Open(ctx context.Context, driver, dsn, table string, logger *slog.Logger) (*Store, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	s := New(db, table, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("sql sink connected", "driver", driver, "table", table)
	return s, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// New wraps an open gorm connection.
func New(db *gorm.DB, table string, logger *slog.Logger) *Store {
	return &Store{db: db, table: table, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sql" }

// Migrate creates or updates the table schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&Destination{}); err != nil {
		return fmt.Errorf("migrate table %s: %w", s.table, err)
	}
	return nil
}

// Replace swaps the table contents for rows in one transaction, so readers
// see either the previous run or this one.
func (s *Store) Replace(ctx context.Context, rows []domain.MasterRow, runID string, generatedAt time.Time) error {
	records := make([]Destination, len(rows))
	for i, r := range rows {
		records[i] = toRecord(r, i+1, runID, generatedAt)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.table).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Destination{}).Error; err != nil {
			return fmt.Errorf("clear table: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Table(s.table).CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", s.table, err)
	}
	s.logger.Info("sql table replaced", "table", s.table, "rows", len(records), "run_id", runID)
	return nil
}

// Publish replaces the table with one run's rows.
func (s *Store) Publish(ctx context.Context, rows []domain.MasterRow, runID string, generatedAt time.Time) error {
	return s.Replace(ctx, rows, runID, generatedAt)
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Table(s.table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// LoadRows reads the stored master table in ranking order.
func (s *Store) LoadRows(ctx context.Context) ([]domain.MasterRow, error) {
	var records []Destination
	if err := s.db.WithContext(ctx).Table(s.table).Order("position").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", s.table, err)
	}
	rows := make([]domain.MasterRow, len(records))
	for i, rec := range records {
		rows[i] = rec.toRow()
	}
	return rows, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(r domain.MasterRow, position int, runID string, generatedAt time.Time) Destination {
	d := Destination{
		RunID:       runID,
		GeneratedAt: generatedAt.UTC(),
		Position:    position,
		CityID:      r.CityID,
		City:        r.Listing.City,
		HotelName:   r.Listing.HotelName,
		URL:         r.Listing.URL,
		Score:       r.Score,
		ScoreText:   r.Listing.Score,
		Description: r.Listing.Description,
		HotelLat:    r.Listing.HotelLat,
		HotelLon:    r.Listing.HotelLon,
	}
	if w := r.Weather; w != nil {
		d.WeatherScore = &w.WeatherScore
		d.ClimateIndex = &w.ClimateIndex
		d.AvgTemp = &w.AvgTemp
		d.TotalRainMM = &w.TotalRainMM
		d.Latitude = &w.Latitude
		d.Longitude = &w.Longitude
	}
	return d
}

func (d Destination) toRow() domain.MasterRow {
	r := domain.MasterRow{
		CityID: d.CityID,
		Listing: domain.HotelListing{
			City:        d.City,
			HotelName:   d.HotelName,
			URL:         d.URL,
			Score:       d.ScoreText,
			Description: d.Description,
			HotelLat:    d.HotelLat,
			HotelLon:    d.HotelLon,
		},
		Score: d.Score,
	}
	if d.WeatherScore != nil {
		r.Weather = &domain.CityWeatherSummary{
			City:         d.City,
			WeatherScore: *d.WeatherScore,
			ClimateIndex: deref(d.ClimateIndex),
			AvgTemp:      deref(d.AvgTemp),
			TotalRainMM:  deref(d.TotalRainMM),
			Latitude:     deref(d.Latitude),
			Longitude:    deref(d.Longitude),
		}
	}
	return r
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
