package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/app"
	"github.com/idilsaglam/cloudtodo/internal/auth"
	"github.com/idilsaglam/cloudtodo/internal/config"
	"github.com/idilsaglam/cloudtodo/internal/i18n"
	"github.com/idilsaglam/cloudtodo/internal/listsync"
	"github.com/idilsaglam/cloudtodo/internal/session"
	"github.com/idilsaglam/cloudtodo/internal/store"
	"github.com/idilsaglam/cloudtodo/internal/store/dynamostore"
	"github.com/idilsaglam/cloudtodo/internal/store/jsonstore"
	"github.com/idilsaglam/cloudtodo/internal/store/memstore"
)

// New builds a Runner on the process streams from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	id := cfg.Identity
	parser, err := auth.NewTokenParser(id.SecretKey, id.PublicKeyPEM, id.Issuer, id.Audience)
	if err != nil {
		return nil, fmt.Errorf("token parser: %w", err)
	}
	tokens := auth.TokenStore{Dir: id.CredsDir, EnvVar: id.TokenEnv}
	hosted := auth.HostedUI{
		Domain:      id.Domain,
		ClientID:    id.ClientID,
		RedirectURI: id.RedirectURI,
		LogoutURI:   id.LogoutURI,
		Scopes:      id.Scopes,
	}
	idp := auth.NewTokenProvider(tokens, parser, hosted, nil, logger.Named("auth"))

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("locales: %w", err)
	}

	r := Stdio()
	r.Tokens = tokens
	r.Parser = parser
	r.App = app.Deps{
		IDP:             idp,
		Resolver:        session.NewResolver(idp, logger.Named("session")),
		Backend:         backend,
		Sync:            listsync.New(listsync.DefaultRetryPolicy, logger.Named("listsync")),
		Text:            catalog.For(cfg.Locale),
		Provider:        auth.ProviderConfig{Custom: id.Provider},
		MutationTimeout: cfg.MutationTimeout,
		Logger:          logger.Named("app"),
	}
	return r, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(), nil

	case config.BackendJSON:
		s, err := jsonstore.New(cfg.DataPath, logger.Named("jsonstore"))
		if err != nil {
			return nil, err
		}
		logger.Info("using json backend", zap.String("path", s.Path()))
		return s, nil

	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("unable to load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			}
		})
		logger.Info("using dynamodb backend",
			zap.String("table", cfg.TodoTable),
			zap.String("region", cfg.AWSRegion),
			zap.Duration("poll_interval", cfg.PollInterval))
		return dynamostore.NewBackend(client, cfg.TodoTable, cfg.PollInterval, logger.Named("dynamostore")), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
