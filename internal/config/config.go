package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type GoogleConfig struct {
	VisionAPIKey string
	MapsAPIKey   string
}

// CadastreConfig holds the registry and map-service endpoints used for parcel
// enumeration and imagery.
type CadastreConfig struct {
	BaseURL     string
	CommunesURL string
	WMSURL      string
	WMTSURL     string
	OrthoWMSURL string
}

type MatchingConfig struct {
	DefaultCountry     string
	MatchWorkers       int
	GeocodeWorkers     int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
	MaxRadiusMeters    float64
	ScoringWeightsFile string
}

type R2Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

type Config struct {
	Environment   string
	PublicBaseURL string
	HTTP          HTTPConfig
	DB            DBConfig
	Auth          AuthConfig
	Google        GoogleConfig
	Cadastre      CadastreConfig
	Matching      MatchingConfig
	R2            R2Config
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment:   v.GetString("APP_ENV"),
		PublicBaseURL: v.GetString("PUBLIC_BASE_URL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Google: GoogleConfig{
			VisionAPIKey: v.GetString("GOOGLE_VISION_API_KEY"),
			MapsAPIKey:   v.GetString("GOOGLE_MAPS_API_KEY"),
		},
		Cadastre: CadastreConfig{
			BaseURL:     v.GetString("CADASTRE_BASE_URL"),
			CommunesURL: v.GetString("COMMUNES_BASE_URL"),
			WMSURL:      v.GetString("CADASTRE_WMS_URL"),
			WMTSURL:     v.GetString("CADASTRE_WMTS_URL"),
			OrthoWMSURL: v.GetString("ORTHO_WMS_URL"),
		},
		Matching: MatchingConfig{
			DefaultCountry:     v.GetString("DEFAULT_COUNTRY"),
			MatchWorkers:       v.GetInt("MATCH_WORKERS"),
			GeocodeWorkers:     v.GetInt("GEOCODE_WORKERS"),
			RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
			HTTPTimeout:        v.GetDuration("HTTP_CLIENT_TIMEOUT"),
			MaxRadiusMeters:    v.GetFloat64("MAX_RADIUS_METERS"),
			ScoringWeightsFile: v.GetString("SCORING_WEIGHTS_FILE"),
		},
		R2: R2Config{
			Endpoint:      v.GetString("R2_ENDPOINT"),
			AccessKey:     v.GetString("R2_ACCESS_KEY_ID"),
			SecretKey:     v.GetString("R2_SECRET_ACCESS_KEY"),
			Bucket:        v.GetString("R2_BUCKET"),
			Region:        v.GetString("R2_REGION"),
			PublicBaseURL: v.GetString("R2_PUBLIC_BASE_URL"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Cadastre.BaseURL == "" {
		cfg.Cadastre.BaseURL = "https://apicarto.ign.fr/api/cadastre"
	}
	if cfg.Cadastre.CommunesURL == "" {
		cfg.Cadastre.CommunesURL = "https://geo.api.gouv.fr"
	}
	if cfg.Cadastre.WMSURL == "" {
		cfg.Cadastre.WMSURL = "https://data.geopf.fr/wms-v/ows"
	}
	if cfg.Cadastre.WMTSURL == "" {
		cfg.Cadastre.WMTSURL = "https://data.geopf.fr/wmts"
	}
	if cfg.Cadastre.OrthoWMSURL == "" {
		cfg.Cadastre.OrthoWMSURL = "https://data.geopf.fr/wms-r/wms"
	}
	if cfg.Matching.DefaultCountry == "" {
		cfg.Matching.DefaultCountry = "FR"
	}
	if cfg.Matching.MatchWorkers == 0 {
		cfg.Matching.MatchWorkers = 8
	}
	if cfg.Matching.GeocodeWorkers == 0 {
		cfg.Matching.GeocodeWorkers = 4
	}
	if cfg.Matching.RequestTimeout == 0 {
		cfg.Matching.RequestTimeout = 45 * time.Second
	}
	if cfg.Matching.HTTPTimeout == 0 {
		cfg.Matching.HTTPTimeout = 10 * time.Second
	}
	if cfg.Matching.MaxRadiusMeters == 0 {
		cfg.Matching.MaxRadiusMeters = 2000
	}
	if cfg.R2.Region == "" {
		cfg.R2.Region = "auto"
	}
}

func validate(cfg *Config) error {
	if cfg.Matching.MatchWorkers < 0 || cfg.Matching.GeocodeWorkers < 0 {
		return fmt.Errorf("MATCH_WORKERS and GEOCODE_WORKERS must be positive")
	}
	if cfg.Matching.MaxRadiusMeters < 0 {
		return fmt.Errorf("MAX_RADIUS_METERS must be positive")
	}
	if len(cfg.Matching.DefaultCountry) != 2 {
		return fmt.Errorf("DEFAULT_COUNTRY must be an ISO 3166-1 alpha-2 code")
	}
	return nil
}

// ValidateServer checks settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}
