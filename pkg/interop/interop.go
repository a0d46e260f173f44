// Package interop wires configuration, logging and the pipeline's external
// collaborators into one bundle the entry points consume.
package interop

import (
	"fmt"
	"os"
	"time"

	"github.com/opencatalog/github-entity-sync/internal/catalog"
	"github.com/opencatalog/github-entity-sync/internal/github"
	"github.com/opencatalog/github-entity-sync/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Interop struct {
	Logger          *log.Logger
	App             *github.App
	Store           store.Store
	Sink            catalog.Sink
	ListenAddr      string
	SyncConcurrency int
	SyncTimeout     time.Duration
}

func NewInteroperability() (*Interop, error) {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)

	viper.SetConfigName("config")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	setupLogging(logger)

	app, err := newGithubApp(logger)
	if err != nil {
		return nil, err
	}

	catalogApiUrl := viper.GetString("catalog.apiUrl")
	if catalogApiUrl == "" {
		return nil, fmt.Errorf("missing catalog API URL")
	}

	catalogApiKey := viper.GetString("catalog.apiKey")
	if catalogApiKey == "" {
		catalogApiKey = os.Getenv("CATALOG_API_KEY")
		if catalogApiKey == "" {
			return nil, fmt.Errorf("missing catalog API key")
		}
	}

	integrationStore, err := store.FromConfig()
	if err != nil {
		return nil, err
	}

	listenAddr := viper.GetString("listenAddress")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	concurrency := viper.GetInt("sync.concurrency")
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Interop{
		Logger:          logger,
		App:             app,
		Store:           integrationStore,
		Sink:            catalog.NewHTTPSink(catalogApiUrl, catalogApiKey),
		ListenAddr:      listenAddr,
		SyncConcurrency: concurrency,
		SyncTimeout:     viper.GetDuration("sync.timeout"),
	}, nil
}

// newGithubApp builds the provider client from config, falling back to the
// environment for secrets. Returns nil (not an error) when no credentials
// are configured at all: the webhook endpoint then reports itself
// unavailable instead of the whole process refusing to start.
func newGithubApp(logger *log.Logger) (*github.App, error) {
	appId := viper.GetString("github.appId")
	if appId == "" {
		appId = os.Getenv("GITHUB_APP_ID")
	}

	privateKey := viper.GetString("github.privateKey")
	if privateKey == "" {
		privateKey = os.Getenv("GITHUB_APP_PRIVATE_KEY")
	}

	if appId == "" && privateKey == "" {
		logger.Warn("no github app credentials configured")
		return nil, nil
	}

	webhookSecret := viper.GetString("github.webhookSecret")
	if webhookSecret == "" {
		webhookSecret = os.Getenv("GITHUB_WEBHOOK_SECRET")
	}

	return github.NewApp(github.Config{
		APIURL:        viper.GetString("github.apiUrl"),
		AppID:         appId,
		PrivateKey:    []byte(privateKey),
		WebhookSecret: webhookSecret,
		PageSize:      viper.GetInt("github.pageSize"),
	}, logger)
}

func setupLogging(logger *log.Logger) {
	logLevel := viper.GetString("log.level")
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			log.Infof("failed to parse log level, default will be used: %s", err)
		} else {
			logger.SetLevel(level)
		}
	}

	if viper.IsSet("log.fileName") {
		file, err := os.OpenFile(
			viper.GetString("log.fileName"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0666,
		)
		if err != nil {
			log.Infof("failed to log to file, using default stderr: %s", err)
		} else {
			logger.Out = file
		}
	}
}
