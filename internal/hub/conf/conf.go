package conf

import (
	"github.com/orcidhub/hub/pkg/cache"
	"github.com/orcidhub/hub/pkg/conf"
	"github.com/orcidhub/hub/pkg/database"
	"github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/log"
)

// Orcid holds the registry endpoints and the hub's own redirect entry point.
type Orcid struct {
	AuthorizeURL string `mapstructure:"authorizeUrl"`
	TokenURL     string `mapstructure:"tokenUrl"`
	APIBaseURL   string `mapstructure:"apiBaseUrl"`
	RedirectURI  string `mapstructure:"redirectUri"`
}

// Hub holds portal-level settings.
type Hub struct {
	ExternalURL      string `mapstructure:"externalUrl"`
	SecretKey        string `mapstructure:"secretKey"`
	InvitationSecret string `mapstructure:"invitationSecret"`
}

type AppConfig struct {
	Log      log.Conf          `mapstructure:"log"`
	Http     http.Http         `mapstructure:"http"`
	Database database.Database `mapstructure:"database"`
	Redis    cache.Redis       `mapstructure:"redis"`
	Orcid    Orcid             `mapstructure:"orcid"`
	Hub      Hub               `mapstructure:"hub"`
}

// NewConf loads the application configuration from the given directory.
func NewConf(confDir string) (*AppConfig, error) {
	var appConf AppConfig
	if _, err := conf.LoadConfigFile(confDir, &appConf); err != nil {
		return nil, err
	}
	if appConf.Orcid.AuthorizeURL == "" {
		appConf.Orcid.AuthorizeURL = "https://orcid.org/oauth/authorize"
	}
	if appConf.Orcid.TokenURL == "" {
		appConf.Orcid.TokenURL = "https://orcid.org/oauth/token"
	}
	if appConf.Orcid.APIBaseURL == "" {
		appConf.Orcid.APIBaseURL = "https://api.orcid.org/v2.0"
	}
	return &appConf, nil
}
