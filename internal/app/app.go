// Package app assembles the chat and order services from process config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	goredis "github.com/redis/go-redis/v9"

	"store-assistant/internal/auth"
	"store-assistant/internal/commerce"
	"store-assistant/internal/config"
	"store-assistant/internal/integrations/openai"
	"store-assistant/internal/integrations/paramstore"
	"store-assistant/internal/repository"
	"store-assistant/internal/settings"
	"store-assistant/internal/usecase"
	logx "store-assistant/pkg/logger"
)

// App holds everything the transport layer needs.
type App struct {
	Chat     *usecase.ChatService
	Orders   *usecase.OrderService
	Settings usecase.SettingsProvider
	Signer   *auth.Signer

	db    *sql.DB
	redis *goredis.Client
}

// New connects to every backend named by cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}
	if err := a.wire(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg config.Config) error {
	var (
		ssmClient    *awsssm.Client
		dynamoClient *awsdynamodb.Client
	)
	if cfg.NeedsAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("app: load AWS config: %w", err)
		}
		ssmClient = awsssm.NewFromConfig(awsCfg)
		dynamoClient = awsdynamodb.NewFromConfig(awsCfg)
	}

	signer, err := auth.NewSigner(cfg.NonceSecret)
	if err != nil {
		return err
	}
	a.Signer = signer

	load, err := settingsLoader(cfg, ssmClient)
	if err != nil {
		return err
	}
	provider, err := settings.NewProvider(load, cfg.SettingsTTL)
	if err != nil {
		return err
	}
	a.Settings = provider

	dialect, err := commerce.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	a.db, err = commerce.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := commerce.Migrate(ctx, a.db, dialect); err != nil {
		return err
	}
	catalog, err := commerce.NewCatalog(a.db, dialect)
	if err != nil {
		return err
	}
	knowledge, err := commerce.NewKnowledgeBase(a.db, dialect)
	if err != nil {
		return err
	}
	ledger, err := commerce.NewLedger(a.db, dialect)
	if err != nil {
		return err
	}

	drafts, err := a.draftStore(ctx, cfg, dynamoClient)
	if err != nil {
		return err
	}

	materializer, err := usecase.NewMaterializer(catalog, ledger)
	if err != nil {
		return err
	}
	a.Orders, err = usecase.NewOrderService(provider, materializer, ledger)
	if err != nil {
		return err
	}

	var modelOpts []openai.Option
	if cfg.OpenAIBaseURL != "" {
		modelOpts = append(modelOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	a.Chat, err = usecase.NewChatService(usecase.ChatDependencies{
		Settings:  provider,
		Knowledge: knowledge,
		Catalog:   catalog,
		Model:     openai.NewClient(modelOpts...),
		Drafts:    drafts,
		Orders:    a.Orders,
		Shipping:  a.Orders.QuoteShipping,
	})
	if err != nil {
		return err
	}

	logx.Info().
		Str("settings_source", cfg.SettingsSource).
		Str("draft_store", cfg.DraftStore).
		Str("database", string(dialect)).
		Msg("store assistant wired")
	return nil
}

func settingsLoader(cfg config.Config, ssmClient *awsssm.Client) (settings.Loader, error) {
	if !strings.EqualFold(cfg.SettingsSource, config.SettingsFromSSM) {
		return settings.FileSource(cfg.SettingsFile, cfg.OpenAIKey), nil
	}
	store, err := paramstore.New(ssmClient)
	if err != nil {
		return nil, err
	}
	return settings.SSMSource(store, cfg.ParamPrefix)
}

func (a *App) draftStore(ctx context.Context, cfg config.Config, dynamoClient *awsdynamodb.Client) (repository.DraftStore, error) {
	kind := repository.StoreType(strings.ToLower(cfg.DraftStore))
	opts := []repository.StoreOption{repository.WithTTL(cfg.DraftTTL)}
	switch kind {
	case repository.StoreTypeRedis:
		client, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: connect redis: %w", err)
		}
		a.redis = client
		opts = append(opts, repository.WithRedisClient(client))
	case repository.StoreTypeDynamoDB:
		opts = append(opts, repository.WithDynamoDB(dynamoClient, cfg.DraftTable))
	}
	return repository.NewDraftStore(kind, opts...)
}

// Close releases database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
