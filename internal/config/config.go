package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	infisical "github.com/infisical/go-sdk"

	"github.com/web3-frozen/defi-overview/internal/llama"
)

type Config struct {
	Port           string
	FrontendOrigin string
	PreviewOrigin  string
	DatabaseURL    string
	RedisURL       string
	RedisPassword  string

	Endpoints            llama.Endpoints
	MetadataProtocolsURL string
	MetadataChainsURL    string
	MetadataRefresh      time.Duration

	CacheTTL            time.Duration
	HTTPTimeout         time.Duration
	GovernanceProposals bool
}

func Load() Config {
	def := llama.DefaultEndpoints()
	cfg := Config{
		Port:           envOr("PORT", "8080"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		PreviewOrigin:  os.Getenv("CORS_PREVIEW_ORIGIN"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),

		Endpoints: llama.Endpoints{
			Llama:              envOr("LLAMA_API_URL", def.Llama),
			Yields:             envOr("YIELDS_API_URL", def.Yields),
			FECache:            envOr("FE_CACHE_URL", def.FECache),
			DevMetrics:         envOr("DEV_METRICS_URL", def.DevMetrics),
			NFT:                envOr("NFT_API_URL", def.NFT),
			Articles:           envOr("ARTICLES_API_URL", def.Articles),
			Bridges:            envOr("BRIDGES_API_URL", def.Bridges),
			GovernanceSnapshot: envOr("GOVERNANCE_SNAPSHOT_URL", def.GovernanceSnapshot),
			GovernanceCompound: envOr("GOVERNANCE_COMPOUND_URL", def.GovernanceCompound),
			GovernanceTally:    envOr("GOVERNANCE_TALLY_URL", def.GovernanceTally),
		},
		MetadataProtocolsURL: envOr("METADATA_PROTOCOLS_URL", "https://api.llama.fi/config/smol/appMetadata-protocols.json"),
		MetadataChainsURL:    envOr("METADATA_CHAINS_URL", "https://api.llama.fi/config/smol/appMetadata-chains.json"),
		MetadataRefresh:      durationOr("METADATA_REFRESH", 10*time.Minute),

		CacheTTL:            durationOr("CACHE_TTL", 5*time.Minute),
		HTTPTimeout:         durationOr("HTTP_TIMEOUT", 30*time.Second),
		GovernanceProposals: boolOr("GOVERNANCE_PROPOSALS", false),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"DATABASE_URL":   &cfg.DatabaseURL,
		"REDIS_PASSWORD": &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationOr parses a Go duration such as "90s"; invalid values fall back.
func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return d
}

func boolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean, using default", "key", key, "value", v)
		return fallback
	}
	return b
}
