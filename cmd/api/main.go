package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/khalidfrds/ikea-bistro-backend/internal/di"
	"github.com/khalidfrds/ikea-bistro-backend/internal/domain"
	"github.com/khalidfrds/ikea-bistro-backend/internal/handlers"
	"github.com/khalidfrds/ikea-bistro-backend/internal/notify"
	"github.com/khalidfrds/ikea-bistro-backend/internal/payments"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/auth"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/config"
	pfirestore "github.com/khalidfrds/ikea-bistro-backend/internal/platform/firestore"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/jobs"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/observability"
	"github.com/khalidfrds/ikea-bistro-backend/internal/platform/secrets"
	"github.com/khalidfrds/ikea-bistro-backend/internal/repositories"
	firestoreRepo "github.com/khalidfrds/ikea-bistro-backend/internal/repositories/firestore"
	"github.com/khalidfrds/ikea-bistro-backend/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	healthRepo, err := newHealthRepository(firestoreClient, fetcher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider,
		firestoreRepo.WithRegistryCounterOptions(
			firestoreRepo.WithCounterStart(services.OrderNumberCounterID, 10),
		),
		firestoreRepo.WithRegistryHealth(healthRepo),
	)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	gateway, err := newPaymentGateway(logger.Named("payments"), cfg)
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	sender := notify.NewTelegramSender(notify.TelegramSenderConfig{
		BotToken: cfg.Telegram.BotToken,
		APIBase:  cfg.Telegram.APIBase,
		Logger:   logger.Named("telegram"),
	})
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		logger.Warn("telegram bot token not configured; receipts and pickup notices will not be delivered")
	}

	var publisher services.OrderEventPublisher
	if topicID := strings.TrimSpace(cfg.Events.TopicID); topicID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(topicID)
		defer func() {
			topic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err = jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.Dependencies{
		Gateway: gateway,
		Sender:  sender,
		Events:  publisher,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to assemble services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	orderHandlers, err := handlers.NewOrderHandlers(handlers.OrderHandlersDeps{
		Orders: container.Services.Orders,
		Upsell: container.Services.Upsell,
	})
	if err != nil {
		logger.Fatal("failed to initialise order handlers", zap.Error(err))
	}
	meHandlers, err := handlers.NewMeHandlers(container.Services.Users)
	if err != nil {
		logger.Fatal("failed to initialise user handlers", zap.Error(err))
	}
	webhookHandlers, err := handlers.NewWebhookHandlers(container.Services.Orders)
	if err != nil {
		logger.Fatal("failed to initialise webhook handlers", zap.Error(err))
	}
	internalHandlers, err := handlers.NewInternalHandlers(container.Services.Orders)
	if err != nil {
		logger.Fatal("failed to initialise internal handlers", zap.Error(err))
	}
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceHeaderMiddleware(""),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Register),
		handlers.WithMeRoutes(meHandlers.Register),
		handlers.WithMeMiddlewares(auth.RequireUser(auth.DefaultUserHeader)),
		handlers.WithWebhookRoutes(webhookHandlers.Register),
		handlers.WithInternalRoutes(internalHandlers.Register),
	}
	if hmacMiddleware := buildHMACMiddleware(logger.Named("auth"), cfg); hmacMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(hmacMiddleware))
	} else if cfg.Security.Environment != "local" {
		logger.Fatal("hmac secrets are required outside local environments")
	} else {
		logger.Warn("internal routes are unauthenticated; configure BISTRO_SECURITY_HMAC_SECRETS")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("bistro api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["BISTRO_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["BISTRO_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newPaymentGateway(logger *zap.Logger, cfg config.Config) (*payments.Gateway, error) {
	providers := map[domain.PaymentMethod]payments.Provider{
		domain.PaymentMethodCard:  unconfiguredProvider{method: domain.PaymentMethodCard},
		domain.PaymentMethodSwish: unconfiguredProvider{method: domain.PaymentMethodSwish},
	}

	if strings.TrimSpace(cfg.PSP.StripeAPIKey) != "" {
		stripe, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.PSP.StripeAPIKey,
			WebhookSecret: cfg.PSP.StripeWebhookSecret,
			SuccessURL:    cfg.PSP.SuccessURL,
			CancelURL:     cfg.PSP.CancelURL,
			Logger:        observability.EventLogger(logger.Named("stripe")),
			Clock:         time.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("stripe provider: %w", err)
		}
		providers[domain.PaymentMethodCard] = stripe
	} else {
		logger.Warn("stripe not configured; card orders will be rejected")
	}

	if strings.TrimSpace(cfg.Swish.BaseURL) != "" {
		swish, err := payments.NewSwishProvider(payments.SwishProviderConfig{
			BaseURL:       cfg.Swish.BaseURL,
			PayeeAlias:    cfg.Swish.PayeeAlias,
			CallbackURL:   cfg.Swish.CallbackURL,
			Currency:      cfg.Swish.Currency,
			ClientCertPEM: []byte(cfg.Swish.ClientCertPEM),
			ClientKeyPEM:  []byte(cfg.Swish.ClientKeyPEM),
			RootCAPEM:     []byte(cfg.Swish.RootCAPEM),
			Logger:        observability.EventLogger(logger.Named("swish")),
			Clock:         time.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("swish provider: %w", err)
		}
		providers[domain.PaymentMethodSwish] = swish
	} else {
		logger.Warn("swish not configured; swish orders will be rejected")
	}

	return payments.NewGateway(providers)
}

// unconfiguredProvider keeps a payment method routable when its credentials
// are absent so the service layer can reject orders without half-creating them.
type unconfiguredProvider struct {
	method domain.PaymentMethod
}

func (p unconfiguredProvider) CreateSession(context.Context, payments.SessionRequest) (payments.Session, error) {
	return payments.Session{}, fmt.Errorf("%w: %s", payments.ErrProviderUnconfigured, p.method)
}

func (p unconfiguredProvider) VerifyCallback(context.Context, []byte, string) (payments.CallbackEvent, error) {
	return payments.CallbackEvent{}, fmt.Errorf("%w: %s", payments.ErrProviderUnconfigured, p.method)
}

func newHealthRepository(client *firestore.Client, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func buildHMACMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	hmacSecrets := make(map[string]string)
	for key, value := range cfg.Security.HMAC.Secrets {
		if strings.TrimSpace(value) == "" {
			continue
		}
		hmacSecrets[strings.ToLower(key)] = value
	}
	if len(hmacSecrets) == 0 {
		return nil
	}

	secretName := "internal"
	if _, ok := hmacSecrets[secretName]; !ok {
		for _, key := range sortedKeys(hmacSecrets) {
			secretName = key
			break
		}
	}

	validator := auth.NewHMACValidator(
		staticSecretProvider{secrets: hmacSecrets},
		auth.NewInMemoryNonceStore(),
		auth.WithHMACLogger(zapPrintfLogger{logger: logger.Sugar()}),
		auth.WithHMACHeaders(cfg.Security.HMAC.SignatureHeader, cfg.Security.HMAC.TimestampHeader, cfg.Security.HMAC.NonceHeader),
		auth.WithHMACClockSkew(cfg.Security.HMAC.ClockSkew),
		auth.WithHMACNonceTTL(cfg.Security.HMAC.NonceTTL),
	)

	return validator.RequireHMAC(secretName)
}

type staticSecretProvider struct {
	secrets map[string]string
}

func (p staticSecretProvider) GetSecret(_ context.Context, name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", errors.New("auth: secret name required")
	}
	if secret, ok := p.secrets[key]; ok && secret != "" {
		return secret, nil
	}
	return "", errors.New("auth: secret not found")
}

type zapPrintfLogger struct {
	logger *zap.SugaredLogger
}

func (l zapPrintfLogger) Printf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Infof(format, args...)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("BISTRO_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("BISTRO_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("BISTRO_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("BISTRO_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("BISTRO_SECRET_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames(env map[string]string) []string {
	var required []string
	if env == nil {
		return required
	}

	if strings.TrimSpace(env["BISTRO_PSP_STRIPE_API_KEY"]) != "" {
		required = append(required, "PSP.StripeAPIKey", "PSP.StripeWebhookSecret")
	}
	if strings.TrimSpace(env["BISTRO_SWISH_BASE_URL"]) != "" {
		required = append(required, "Swish.ClientCertPEM", "Swish.ClientKeyPEM", "Swish.RootCAPEM")
	}
	for _, key := range parseHMACSecretKeys(strings.TrimSpace(env["BISTRO_SECURITY_HMAC_SECRETS"])) {
		required = append(required, fmt.Sprintf("Security.HMAC.Secrets[%s]", key))
	}

	return uniqueStrings(required)
}

func parseHMACSecretKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	keys := make([]string, 0, 2)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		if key == "" || strings.TrimSpace(parts[1]) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
