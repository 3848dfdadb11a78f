package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Demand   DemandConfig   `yaml:"demand"`
	Log      LogConfig      `yaml:"log"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerDir  string   `yaml:"swagger_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	// Driver is "postgres", "sqlite" or "memory". The memory driver makes the
	// app seed the catalog and run the demand simulator itself.
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"ssl_mode"`
	SQLitePath string `yaml:"sqlite_path"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	PNRLength          int     `yaml:"pnr_length"`
	PNRMaxAttempts     int     `yaml:"pnr_max_attempts"`
	MaxConflictRetries int     `yaml:"max_conflict_retries"`
	RefundRate         float64 `yaml:"refund_rate"`
	FlightsCacheTTL    int     `yaml:"flights_cache_ttl_seconds"`
}

// PricingTier maps a lower bound (exclusive for occupancy ratios, inclusive
// for days until departure) to a multiplier.
type PricingTier struct {
	Above      float64 `yaml:"above"`
	Multiplier float64 `yaml:"multiplier"`
}

type PricingConfig struct {
	OccupancyTiers    []PricingTier `yaml:"occupancy_tiers"`
	OccupancyFloor    float64       `yaml:"occupancy_floor"`
	OccupancyMin      float64       `yaml:"occupancy_min"`
	OccupancyMax      float64       `yaml:"occupancy_max"`
	DepartureTiers    []PricingTier `yaml:"departure_tiers"`
	DepartureFloor    float64       `yaml:"departure_floor"`
	UndatedMultiplier float64       `yaml:"undated_multiplier"`
}

type DemandConfig struct {
	IntervalMinutes int     `yaml:"interval_minutes"`
	StepMin         float64 `yaml:"step_min"`
	StepMax         float64 `yaml:"step_max"`
	FactorMin       float64 `yaml:"factor_min"`
	FactorMax       float64 `yaml:"factor_max"`
	LockTTLSeconds  int     `yaml:"lock_ttl_seconds"`
}

func (d DemandConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes) * time.Minute
}

func (d DemandConfig) LockTTL() time.Duration {
	return time.Duration(d.LockTTLSeconds) * time.Second
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every zero engine parameter with its documented default.
func (c *Config) ApplyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "skyline.db"
	}

	// An unset ${VAR} in the broker list leaves an empty entry behind.
	brokers := c.Kafka.Brokers[:0]
	for _, broker := range c.Kafka.Brokers {
		if broker != "" {
			brokers = append(brokers, broker)
		}
	}
	c.Kafka.Brokers = brokers

	b := &c.Booking
	if b.PNRLength == 0 {
		b.PNRLength = 6
	}
	if b.PNRMaxAttempts == 0 {
		b.PNRMaxAttempts = 5
	}
	if b.MaxConflictRetries == 0 {
		b.MaxConflictRetries = 3
	}
	if b.RefundRate == 0 {
		b.RefundRate = 1.0
	}
	if b.FlightsCacheTTL == 0 {
		b.FlightsCacheTTL = 30
	}

	p := &c.Pricing
	if len(p.OccupancyTiers) == 0 {
		p.OccupancyTiers = []PricingTier{
			{Above: 0.75, Multiplier: 0.95},
			{Above: 0.50, Multiplier: 1.00},
			{Above: 0.25, Multiplier: 1.15},
		}
	}
	if p.OccupancyFloor == 0 {
		p.OccupancyFloor = 1.30
	}
	if p.OccupancyMin == 0 {
		p.OccupancyMin = 0.95
	}
	if p.OccupancyMax == 0 {
		p.OccupancyMax = 2.0
	}
	if len(p.DepartureTiers) == 0 {
		p.DepartureTiers = []PricingTier{
			{Above: 30, Multiplier: 1.00},
			{Above: 7, Multiplier: 1.05},
			{Above: 2, Multiplier: 1.15},
		}
	}
	if p.DepartureFloor == 0 {
		p.DepartureFloor = 1.30
	}
	if p.UndatedMultiplier == 0 {
		p.UndatedMultiplier = 1.05
	}

	d := &c.Demand
	if d.IntervalMinutes == 0 {
		d.IntervalMinutes = 5
	}
	if d.StepMin == 0 {
		d.StepMin = 0.9
	}
	if d.StepMax == 0 {
		d.StepMax = 1.1
	}
	if d.FactorMin == 0 {
		d.FactorMin = 0.5
	}
	if d.FactorMax == 0 {
		d.FactorMax = 3.0
	}
	if d.LockTTLSeconds == 0 {
		d.LockTTLSeconds = 60
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = "catalog.yaml"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}
