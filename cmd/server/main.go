package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/httpapi"
	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonio/internal/task"
	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

const (
	commandUseName                       = "server"
	commandShortDescription              = "Run the testimonial widget server"
	commandLongDescription               = "Serve embeddable testimonial widgets, public submissions and the key-authenticated API"
	missingConfigurationMessage          = "missing required configuration"
	loggerCreationErrorMessage           = "logger"
	logEventListening                    = "listening"
	logEventShutdown                     = "shutdown_requested"
	logEventStopped                      = "stopped"
	logFieldAddress                      = "addr"
	logFieldServeMode                    = "serve_mode"
	flagNameApplicationAddress           = "app-addr"
	flagNameDatabaseDriverName           = "db-driver"
	flagNameDatabaseDataSourceName       = "db-dsn"
	flagNamePublicBaseURL                = "public-base-url"
	flagNameStripeWebhookSecret          = "stripe-webhook-secret"
	flagNameStripeProPriceIDs            = "stripe-pro-price-ids"
	flagNameStripeBusinessPriceIDs       = "stripe-business-price-ids"
	flagNameViewFlushInterval            = "view-flush-interval"
	flagNameWidgetLocale                 = "widget-locale"
	flagNameServeMode                    = "serve-mode"
	flagNameTrustedProxies               = "trusted-proxies"
	flagUsageApplicationAddress          = "address for the HTTP server to listen on"
	flagUsageDatabaseDriverName          = "database driver name"
	flagUsageDatabaseDataSourceName      = "database connection string"
	flagUsagePublicBaseURL               = "public base URL used in embed snippets (defaults to the request host)"
	flagUsageStripeWebhookSecret         = "signing secret for payment webhooks (webhooks are rejected when empty)"
	flagUsageStripeProPriceIDs           = "comma-separated price identifiers granting the PRO plan"
	flagUsageStripeBusinessPriceIDs      = "comma-separated price identifiers granting the BUSINESS plan"
	flagUsageViewFlushInterval           = "interval between widget view count flushes"
	flagUsageWidgetLocale                = "locale for widget strings (es or en)"
	flagUsageServeMode                   = "route groups to serve: monolith, embed or api"
	flagUsageTrustedProxies              = "comma-separated proxy IPs or CIDRs whose forwarding headers identify the client (none by default)"
	environmentKeyApplicationAddress     = "APP_ADDR"
	environmentKeyDatabaseDriverName     = "DB_DRIVER"
	environmentKeyDatabaseDataSource     = "DB_DSN"
	environmentKeyPublicBaseURL          = "PUBLIC_BASE_URL"
	environmentKeyStripeWebhookSecret    = "STRIPE_WEBHOOK_SECRET"
	environmentKeyStripeProPriceIDs      = "STRIPE_PRO_PRICE_IDS"
	environmentKeyStripeBusinessPriceIDs = "STRIPE_BUSINESS_PRICE_IDS"
	environmentKeyViewFlushInterval      = "VIEW_FLUSH_INTERVAL"
	environmentKeyWidgetLocale           = "WIDGET_LOCALE"
	environmentKeyServeMode              = "SERVE_MODE"
	environmentKeyTrustedProxies         = "TRUSTED_PROXIES"
	defaultApplicationAddress            = ":8080"
	listSeparator                        = ","
	loggerContextOpenDatabase            = "open_db"
	loggerContextAutoMigrate             = "migrate"
	loggerContextServer                  = "server"
	readHeaderTimeoutSeconds             = 5
	shutdownTimeoutSeconds               = 10
	unexpectedArgumentsMessage           = "unexpected command arguments"
	invalidViewFlushIntervalMessage      = "view flush interval must be positive"
	commandInitializationFailure         = "failed to configure command"
	flagNotDefinedMessage                = "flag %s not defined"
	environmentConfigurationError        = "failed to apply environment configuration"
	defaultDatabaseDriverName            = storage.DriverNameSQLite
	defaultServeMode                     = string(ServeModeMonolith)
	defaultViewFlushInterval             = task.DefaultSchedulerInterval
	defaultWidgetLocale                  = widget.LocaleSpanish
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	DatabaseDriverName     string
	DatabaseDataSourceName string
	PublicBaseURL          string
	StripeWebhookSecret    string
	StripeProPriceIDs      []string
	StripeBusinessPriceIDs []string
	ViewFlushInterval      time.Duration
	WidgetLocale           string
	ServeMode              ServeMode
	TrustedProxies         []string
}

// DatabaseOpener opens a database connection using the provided storage configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

type configurationBinding struct {
	environmentKey string
	flagName       string
}

var configurationBindings = []configurationBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyDatabaseDriverName, flagName: flagNameDatabaseDriverName},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyPublicBaseURL, flagName: flagNamePublicBaseURL},
	{environmentKey: environmentKeyStripeWebhookSecret, flagName: flagNameStripeWebhookSecret},
	{environmentKey: environmentKeyStripeProPriceIDs, flagName: flagNameStripeProPriceIDs},
	{environmentKey: environmentKeyStripeBusinessPriceIDs, flagName: flagNameStripeBusinessPriceIDs},
	{environmentKey: environmentKeyViewFlushInterval, flagName: flagNameViewFlushInterval},
	{environmentKey: environmentKeyWidgetLocale, flagName: flagNameWidgetLocale},
	{environmentKey: environmentKeyServeMode, flagName: flagNameServeMode},
	{environmentKey: environmentKeyTrustedProxies, flagName: flagNameTrustedProxies},
}

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDriverName, defaultDatabaseDriverName)
	application.configurationLoader.SetDefault(environmentKeyDatabaseDataSource, "")
	application.configurationLoader.SetDefault(environmentKeyViewFlushInterval, defaultViewFlushInterval)
	application.configurationLoader.SetDefault(environmentKeyWidgetLocale, defaultWidgetLocale)
	application.configurationLoader.SetDefault(environmentKeyServeMode, defaultServeMode)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDriverName, defaultDatabaseDriverName, flagUsageDatabaseDriverName)
	commandFlags.String(flagNameDatabaseDataSourceName, "", flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNamePublicBaseURL, "", flagUsagePublicBaseURL)
	commandFlags.String(flagNameStripeWebhookSecret, "", flagUsageStripeWebhookSecret)
	commandFlags.String(flagNameStripeProPriceIDs, "", flagUsageStripeProPriceIDs)
	commandFlags.String(flagNameStripeBusinessPriceIDs, "", flagUsageStripeBusinessPriceIDs)
	commandFlags.Duration(flagNameViewFlushInterval, defaultViewFlushInterval, flagUsageViewFlushInterval)
	commandFlags.String(flagNameWidgetLocale, defaultWidgetLocale, flagUsageWidgetLocale)
	commandFlags.String(flagNameServeMode, defaultServeMode, flagUsageServeMode)
	commandFlags.String(flagNameTrustedProxies, "", flagUsageTrustedProxies)

	for _, binding := range configurationBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range configurationBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameDatabaseDataSourceName); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() (ServerConfig, error) {
	serveMode, serveModeErr := ParseServeMode(application.configurationLoader.GetString(environmentKeyServeMode))
	if serveModeErr != nil {
		return ServerConfig{}, serveModeErr
	}

	return ServerConfig{
		ApplicationAddress:     strings.TrimSpace(application.configurationLoader.GetString(environmentKeyApplicationAddress)),
		DatabaseDriverName:     strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDriverName)),
		DatabaseDataSourceName: strings.TrimSpace(application.configurationLoader.GetString(environmentKeyDatabaseDataSource)),
		PublicBaseURL:          strings.TrimSpace(application.configurationLoader.GetString(environmentKeyPublicBaseURL)),
		StripeWebhookSecret:    strings.TrimSpace(application.configurationLoader.GetString(environmentKeyStripeWebhookSecret)),
		StripeProPriceIDs:      splitList(application.configurationLoader.GetString(environmentKeyStripeProPriceIDs)),
		StripeBusinessPriceIDs: splitList(application.configurationLoader.GetString(environmentKeyStripeBusinessPriceIDs)),
		ViewFlushInterval:      application.configurationLoader.GetDuration(environmentKeyViewFlushInterval),
		WidgetLocale:           widget.ResolveLocale(application.configurationLoader.GetString(environmentKeyWidgetLocale)),
		ServeMode:              serveMode,
		TrustedProxies:         splitList(application.configurationLoader.GetString(environmentKeyTrustedProxies)),
	}, nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configErr := application.loadServerConfig()
	if configErr != nil {
		return configErr
	}

	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriverName,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return databaseErr
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return migrateErr
	}

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	return serve(signalContext, serverConfig, database, logger)
}

// serve runs the HTTP server until the context ends, then drains requests and flushes pending view counts.
func serve(ctx context.Context, serverConfig ServerConfig, database *gorm.DB, logger *zap.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	viewCounter := task.NewViewCounter()
	router, routerErr := buildRouter(serverComponents{
		database:      database,
		logger:        logger,
		metrics:       httpapi.NewMetrics(),
		viewCounter:   viewCounter,
		configuration: serverConfig,
	})
	if routerErr != nil {
		return routerErr
	}

	flushJob := task.NewViewFlushJob(database, viewCounter, logger)
	scheduler := task.NewScheduler(serverConfig.ViewFlushInterval, flushJob.Runner())
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening,
			zap.String(logFieldAddress, serverConfig.ApplicationAddress),
			zap.String(logFieldServeMode, string(serverConfig.ServeMode)),
		)
		serveErrors <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info(logEventShutdown)
	case serveErr = <-serveErrors:
	}

	shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancelShutdown()

	if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
		logger.Warn(loggerContextServer, zap.Error(shutdownErr))
	}
	scheduler.Stop(shutdownContext)
	logger.Info(logEventStopped)

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}
	return nil
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.DatabaseDriverName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDriverName)
	}

	if len(missingParameters) > 0 {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
	}

	if configuration.ViewFlushInterval <= 0 {
		return errors.New(invalidViewFlushIntervalMessage)
	}

	return nil
}

func splitList(rawValue string) []string {
	var values []string
	for _, candidate := range strings.Split(rawValue, listSeparator) {
		trimmed := strings.TrimSpace(candidate)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
