// Package bootstrap wires configuration into the services shared by the API,
// the worker and the operator CLI.
package bootstrap

import (
	"context"
	"errors"

	"cmo/internal/adapter/repo"
	"cmo/internal/contentplan"
	"cmo/internal/http/handlers"
	"cmo/internal/infra"
	"cmo/internal/infra/credentials"
	"cmo/internal/providers/bigquery"
	"cmo/internal/providers/exa"
	"cmo/internal/providers/llm"
	"cmo/internal/providers/n8n"
	"cmo/internal/social"
)

// Services holds every configured collaborator. Integrations without
// credentials are left nil.
type Services struct {
	Credentials *credentials.Store
	Content     *repo.ContentRepositoryPG
	Keywords    *repo.KeywordRepositoryPG
	Batches     *repo.BatchRepositoryPG

	N8N       *n8n.Client
	Exa       *exa.Client
	Analytics *bigquery.Analytics
	Completer llm.Completer

	Social  *social.BatchService
	Planner *contentplan.Synthesizer

	logger *infra.Logger
}

// New builds the services. Missing optional integrations are logged and
// skipped; a broken lane file or analytics setup is an error.
func New(ctx context.Context, cfg *infra.Config, sql infra.SQLExecutor, logger *infra.Logger) (*Services, error) {
	logger = infra.LoggerOrDiscard(logger)
	s := &Services{
		Credentials: credentials.NewStore(sql),
		Content:     repo.NewContentRepository(sql),
		Keywords:    repo.NewKeywordRepository(sql),
		Batches:     repo.NewBatchRepository(sql),
		logger:      logger,
	}

	if cfg.N8NBaseURL != "" {
		key := s.resolve(ctx, credentials.ProviderN8N, cfg.N8NAPIKey)
		client, err := n8n.NewClient(n8n.Options{
			BaseURL:           cfg.N8NBaseURL,
			APIKey:            key,
			KeywordPath:       cfg.N8NKeywordPath,
			KeywordStatusPath: cfg.N8NKeywordStatusPath,
			ArticlePath:       cfg.N8NArticlePath,
			ArticleStatusPath: cfg.N8NArticleStatusPath,
			RequestTimeout:    cfg.N8NRequestTimeout,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		s.N8N = client
	} else {
		logger.Warn().Msg("N8N_BASE_URL not set; keyword and article tools disabled")
	}

	if key := s.resolve(ctx, credentials.ProviderExa, cfg.ExaAPIKey); key != "" {
		client, err := exa.NewClient(exa.Options{APIKey: key, BaseURL: cfg.ExaBaseURL, Logger: logger})
		if err != nil {
			return nil, err
		}
		s.Exa = client
	}

	if cfg.BigQueryProjectID != "" {
		analytics, err := bigquery.NewAnalytics(ctx, bigquery.Options{
			ProjectID:       cfg.BigQueryProjectID,
			Dataset:         cfg.BigQueryDataset,
			CredentialsFile: cfg.BigQueryCredentialsFile,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		s.Analytics = analytics
	}

	completer, err := s.newCompleter(ctx, cfg)
	switch {
	case errors.Is(err, errNoTextKey):
		logger.Warn().Str("provider", cfg.TextProvider).Msg("no text generation key; content plan and social tools disabled")
	case err != nil:
		s.Close()
		return nil, err
	default:
		s.Completer = completer
	}

	if s.Completer != nil {
		lanes, err := social.LoadLaneDefinitions(cfg.SocialLanesFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		posts := social.NewLLMPostGenerator(s.Completer, logger)
		builder := social.NewBatchBuilder(lanes, social.NewGenerator(social.NewPostLaneGenerator(posts), logger), logger)
		s.Social = social.NewBatchService(s.Batches, s.Content, s.Content, builder, logger)
		s.Planner = contentplan.NewSynthesizer(s.planSources(), s.Completer, logger)
	}
	return s, nil
}

var errNoTextKey = errors.New("text generation key missing")

func (s *Services) newCompleter(ctx context.Context, cfg *infra.Config) (llm.Completer, error) {
	opts := llm.Options{
		Provider:       cfg.TextProvider,
		RequestTimeout: cfg.TextRequestTimeout,
		Logger:         s.logger,
	}
	switch cfg.TextProvider {
	case llm.ProviderGemini:
		opts.APIKey = s.resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
		opts.Model = cfg.GeminiModel
		opts.BaseURL = cfg.GeminiBaseURL
	case llm.ProviderAnthropic:
		opts.APIKey = s.resolve(ctx, credentials.ProviderAnthropic, cfg.AnthropicAPIKey)
		opts.Model = cfg.AnthropicModel
	default:
		opts.APIKey = s.resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
		opts.Model = cfg.OpenAIModel
		opts.BaseURL = cfg.OpenAIBaseURL
		opts.Organization = cfg.OpenAIOrg
	}
	if opts.APIKey == "" {
		return nil, errNoTextKey
	}
	return llm.New(opts)
}

// planSources keeps nil clients out of the source interfaces.
func (s *Services) planSources() contentplan.Sources {
	sources := contentplan.Sources{Posts: s.Content, Keywords: s.Keywords}
	if s.Exa != nil {
		sources.Community = s.Exa
	}
	if s.Analytics != nil {
		sources.Opportunities = s.Analytics
		sources.Decay = s.Analytics
	}
	return sources
}

// resolve returns the configured key, or the stored one when configured is
// empty. A failed lookup is logged and treated as no key.
func (s *Services) resolve(ctx context.Context, provider, configured string) string {
	key, err := s.Credentials.Resolve(ctx, provider, configured)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider).Msg("stored credential lookup failed")
		return ""
	}
	return key
}

// App returns the HTTP handler container. Disabled integrations stay nil
// interfaces so their tools answer 503.
func (s *Services) App(defaultLanguage string) *handlers.App {
	app := &handlers.App{
		KeywordStore:    s.Keywords,
		Logger:          s.logger,
		DefaultLanguage: defaultLanguage,
	}
	if s.N8N != nil {
		app.Keywords = s.N8N
		app.Articles = s.N8N
	}
	if s.Planner != nil {
		app.Planner = s.Planner
	}
	if s.Social != nil {
		app.Social = s.Social
	}
	return app
}

// Close releases clients holding connections.
func (s *Services) Close() error {
	return s.Analytics.Close()
}
