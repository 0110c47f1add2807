package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	InternalToken   string        `envconfig:"INTERNAL_TOKEN" required:"true"`
	CORSAllowOrigin string        `envconfig:"CORS_ALLOW_ORIGIN" default:"*"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	SheetsEndpoint    string `envconfig:"SHEETS_ENDPOINT" required:"true"`
	SheetsContainerID string `envconfig:"SHEETS_CONTAINER_ID" required:"true"`
	LedgerSheet       string `envconfig:"LEDGER_SHEET" default:"Quotations"`
	CustomerSheet     string `envconfig:"CUSTOMER_SHEET" default:"Customers"`
	StatusSheet       string `envconfig:"STATUS_SHEET"`
	ImageFolderID     string `envconfig:"IMAGE_FOLDER_ID"`
	DocumentFolderID  string `envconfig:"DOCUMENT_FOLDER_ID"`

	// DatabaseURL enables serial reservation when set.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	ThumbnailSize    int    `envconfig:"THUMBNAIL_SIZE" default:"400"`
	ThumbnailBaseURL string `envconfig:"THUMBNAIL_BASE_URL" default:"https://drive.google.com/thumbnail"`
	AltImageBaseURL  string `envconfig:"ALT_IMAGE_BASE_URL" default:"https://lh3.googleusercontent.com/d/"`
	DownloadBaseURL  string `envconfig:"DOWNLOAD_BASE_URL" default:"https://drive.google.com/uc?export=download&id="`
	FontDir          string `envconfig:"FONT_DIR"`

	Company

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Company is the letterhead printed on quotation documents.
type Company struct {
	Name     string `envconfig:"COMPANY_NAME"`
	Address  string `envconfig:"COMPANY_ADDRESS"`
	Phone    string `envconfig:"COMPANY_PHONE"`
	Email    string `envconfig:"COMPANY_EMAIL"`
	Currency string `envconfig:"COMPANY_CURRENCY"`
	Footer   string `envconfig:"COMPANY_FOOTER"`
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, errors.Wrap(err, "load .env")
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config")
	}
	return cfg, nil
}
