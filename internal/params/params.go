package params

import (
	"errors"
	"strconv"
	"time"

	"plura/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Accessor is the read-only configuration view injected into the core.
// Lookups fall back to the given default when the parameter is absent or
// cannot be parsed.
type Accessor interface {
	GetString(name, def string) string
	GetFloat(name string, def float64) float64
	GetInt(name string, def int) int
}

// Service reads and writes parameters stored in the database
type Service struct {
	db *gorm.DB
}

// NewService returns a parameter service backed by db
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetString returns the raw parameter value, or def if it does not exist
func (s *Service) GetString(name, def string) string {
	var p domain.Parameter
	if err := s.db.Where("name = ?", name).First(&p).Error; err != nil {
		return def
	}
	return p.Value
}

// GetFloat returns the parameter parsed as float64, or def
func (s *Service) GetFloat(name string, def float64) float64 {
	return ParseFloat(s.GetString(name, ""), def)
}

// GetInt returns the parameter parsed as int, or def
func (s *Service) GetInt(name string, def int) int {
	return ParseInt(s.GetString(name, ""), def)
}

// All returns every parameter ordered by name
func (s *Service) All() ([]domain.Parameter, error) {
	var ps []domain.Parameter
	if err := s.db.Order("name asc").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// Set updates a parameter, creating it if absent
func (s *Service) Set(name, value string) (domain.Parameter, error) {
	var p domain.Parameter
	err := s.db.Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = domain.Parameter{Name: name, Value: value, LastUpdated: time.Now()}
		return p, s.db.Create(&p).Error
	}
	if err != nil {
		return domain.Parameter{}, err
	}
	p.Value = value
	p.LastUpdated = time.Now()
	return p, s.db.Save(&p).Error
}

// Fixed is a map-backed Accessor with fixed values, used in tests
type Fixed map[string]string

// GetString returns the mapped value, or def if the key is absent
func (f Fixed) GetString(name, def string) string {
	if v, ok := f[name]; ok {
		return v
	}
	return def
}

// GetFloat returns the mapped value parsed as float64, or def
func (f Fixed) GetFloat(name string, def float64) float64 {
	return ParseFloat(f.GetString(name, ""), def)
}

// GetInt returns the mapped value parsed as int, or def
func (f Fixed) GetInt(name string, def int) int {
	return ParseInt(f.GetString(name, ""), def)
}

// ParseFloat parses s as float64, falling back to def on empty or bad input
func ParseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// ParseInt parses s as int, falling back to def on empty or bad input
func ParseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
