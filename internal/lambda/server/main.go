package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/savaki/release-pipeline/internal/auth"
	"github.com/savaki/release-pipeline/internal/di"
	"github.com/savaki/release-pipeline/internal/services"
)

//go:embed docroot
var docroot embed.FS

//go:embed graphiql.html
var graphiqlHTML string

type Handler struct {
	dbService     *services.DynamoDBService
	authenticator *auth.Authenticator
	schema        *graphql.Schema
}

// statusRecorder captures the status code a handler wrote so the access
// log can include it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// withAccessLog injects the logger into the request context and emits
// one line per completed request.
func withAccessLog(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r = r.WithContext(logger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

// withStageStripped removes the /{env} prefix API Gateway stages put in
// front of request paths.
func withStageStripped(env string, next http.Handler) http.Handler {
	if env == "" {
		return next
	}

	prefix := "/" + env
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}

		next.ServeHTTP(w, r)
	})
}

func NewHandler(container di.Container) *Handler {
	return &Handler{
		dbService:     di.MustGet[*services.DynamoDBService](container),
		authenticator: di.MustGet[*auth.Authenticator](container),
		schema:        di.MustGet[*graphql.Schema](container),
	}
}

func setupContainer(env, callbackURL string, disableAuth bool) (di.Container, error) {
	return di.New(env,
		di.WithCallbackURL(callbackURL),
		di.WithDisableAuth(disableAuth),
		di.WithProviders(
			di.ProvideSessionKeyService,
			di.ProvideSessionKeys,
			di.ProvideAuthenticator,
			di.ProvideAuthorizer,
			di.ProvideGraphQL,
		),
	)
}

// handleGraphQL serves the GraphQL API
func (h *Handler) handleGraphQL() http.Handler {
	return &relay.Handler{Schema: h.schema}
}

// handleGraphiQL serves the GraphiQL interface
func (h *Handler) handleGraphiQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(graphiqlHTML))
}

// handleStatic serves the embedded docroot. Unknown paths fall back to
// index.html so client-side routes resolve.
func (h *Handler) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "index.html"
	}

	content, err := docroot.ReadFile(filepath.Join("docroot", name))
	if err != nil {
		name = "index.html"
		if content, err = docroot.ReadFile("docroot/index.html"); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// setupRouter configures all HTTP routes
func (h *Handler) setupRouter() http.Handler {
	mux := http.NewServeMux()

	// Auth routes (no authentication required)
	mux.HandleFunc("GET /login", h.authenticator.HandleLogin)
	mux.HandleFunc("GET /logout", h.authenticator.HandleLogout)
	mux.HandleFunc("GET /oauth/callback", h.authenticator.HandleCallback)

	// GraphQL endpoints return 403 on auth failure; documents redirect
	// to /login instead
	requireAuthAPI := h.authenticator.RequireAuth(false)
	mux.Handle("GET /graphql", requireAuthAPI(http.HandlerFunc(h.handleGraphiQL)))
	mux.Handle("POST /graphql", requireAuthAPI(h.handleGraphQL()))

	requireAuth := h.authenticator.RequireAuth(true)
	mux.Handle("/", requireAuth(http.HandlerFunc(h.handleStatic)))

	return mux
}

// buildCallbackURL constructs the OAuth callback URL based on environment
func buildCallbackURL(env string, customDomain string, apiGatewayID string, port string) string {
	if port != "" {
		return fmt.Sprintf("http://localhost:%s/oauth/callback", port)
	}

	if customDomain != "" {
		return fmt.Sprintf("https://%s/oauth/callback", customDomain)
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	if apiGatewayID != "" && env != "" {
		return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s/oauth/callback", apiGatewayID, region, env)
	}

	return "http://localhost:8080/oauth/callback"
}

// serveAction starts a local HTTP server for testing
func serveAction(c *cli.Context) error {
	port := c.String("port")
	addr := fmt.Sprintf(":%s", port)
	env := c.String("env")
	disableAuth := c.Bool("disable-auth")

	callbackURL := buildCallbackURL(env, "", "", port)

	container, err := setupContainer(env, callbackURL, disableAuth)
	if err != nil {
		return fmt.Errorf("failed to setup DI container: %w", err)
	}

	logger := di.MustGet[zerolog.Logger](container)

	if disableAuth {
		logger.Warn().Msg("Authentication is DISABLED - this should only be used for development")
	}

	handler := NewHandler(container)
	router := handler.setupRouter()

	logger.Info().
		Str("addr", addr).
		Str("callback_url", callbackURL).
		Bool("disable_auth", disableAuth).
		Msg("Starting HTTP server")

	server := &http.Server{
		Addr:    addr,
		Handler: withAccessLog(logger, withStageStripped(env, router)),
	}

	return server.ListenAndServe()
}

// listRunsAction lists release runs for a repository
func listRunsAction(c *cli.Context) error {
	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	dbService := di.MustGet[*services.DynamoDBService](container)

	runs, err := dbService.QueryRunsByRepo(context.Background(), c.String("owner"), c.String("repo"))
	if err != nil {
		return fmt.Errorf("failed to query runs: %w", err)
	}

	jsonData, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

// getRunAction gets a specific release run
func getRunAction(c *cli.Context) error {
	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	dbService := di.MustGet[*services.DynamoDBService](container)

	run, err := dbService.GetRun(context.Background(), c.String("owner"), c.String("repo"), c.String("ksuid"))
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	jsonData, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "server").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = os.Getenv("ENVIRONMENT")
		}
		if env == "" {
			logger.Error().Msg("ENV or ENVIRONMENT variable is required")
			os.Exit(1)
		}

		disableAuth := os.Getenv("DISABLE_AUTH") == "true"

		ctx := context.Background()
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load AWS config")
			os.Exit(1)
		}

		var paramStore services.ParameterStore
		if os.Getenv("DISABLE_SSM") == "true" {
			paramStore = services.NewEnvParameterStore(env)
		} else {
			ssmClient := di.ProvideSSMClient(cfg)
			paramStore = services.NewSSMParameterStore(ssmClient, env)
		}

		appConfig, err := paramStore.GetConfig(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load configuration")
			os.Exit(1)
		}

		callbackURL := buildCallbackURL(env, appConfig.CustomDomain, appConfig.APIGatewayID, "")

		logger.Info().
			Str("env", env).
			Str("callback_url", callbackURL).
			Bool("disable_auth", disableAuth).
			Msg("Initializing Lambda handler")

		if disableAuth {
			logger.Warn().Msg("Authentication is DISABLED - this should only be used for development")
		}

		container, err := setupContainer(env, callbackURL, disableAuth)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to setup DI container")
			os.Exit(1)
		}

		handler := NewHandler(container)
		httpHandler := withAccessLog(logger, withStageStripped(env, handler.setupRouter()))

		lambda.Start(httpadapter.NewV2(httpHandler).ProxyWithContext)
		return
	}

	app := &cli.App{
		Name:  "server",
		Usage: "Release pipeline management console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (for stripping path prefix)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start local HTTP server for testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on",
						Value: "8080",
					},
					&cli.BoolFlag{
						Name:    "disable-auth",
						Usage:   "Disable authentication (for local development only)",
						EnvVars: []string{"DISABLE_AUTH"},
					},
					&cli.BoolFlag{
						Name:    "disable-ssm",
						Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
						EnvVars: []string{"DISABLE_SSM"},
					},
				},
				Action: serveAction,
			},
			{
				Name:  "list-runs",
				Usage: "List release runs for a repository",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Repository owner",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "repo",
						Usage:    "Repository name",
						Required: true,
					},
				},
				Action: listRunsAction,
			},
			{
				Name:  "get-run",
				Usage: "Get a specific release run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Repository owner",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "repo",
						Usage:    "Repository name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "ksuid",
						Usage:    "Run KSUID",
						Required: true,
					},
				},
				Action: getRunAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
