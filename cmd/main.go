package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"

	"oldschool-site/handler"
	"oldschool-site/internal/config"
	"oldschool-site/internal/content"
	"oldschool-site/internal/integrations/openai"
	"oldschool-site/internal/integrations/paramstore"
	"oldschool-site/internal/repository"
	"oldschool-site/internal/site"
	"oldschool-site/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()
	inLambda := os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv("OLDSCHOOL_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	setupLogging(cfg, inLambda)

	// ---- Content ----
	siteContent, err := loadContent(cfg.ContentFile)
	if err != nil {
		slog.Error("failed to load site content", "err", err)
		os.Exit(1)
	}
	renderer, err := site.NewRenderer(siteContent)
	if err != nil {
		slog.Error("failed to create renderer", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	// Interface-typed so that an unconfigured client stays a true nil.
	var (
		params   usecase.ParamGetter
		getter   openai.Getter
		recorder usecase.ExchangeRecorder
	)
	if cfg.ParamPrefix != "" || cfg.StateTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		if cfg.ParamPrefix != "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				slog.Error("failed to create SSM client", "err", err)
				os.Exit(1)
			}
			params, getter = ssmClient, ssmClient
		}
		if cfg.StateTable != "" {
			stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
			if err != nil {
				slog.Error("failed to create state client", "err", err)
				os.Exit(1)
			}
			recorder = stateClient
		}
	}

	openaiOpts := []openai.Option{openai.WithBaseURL(cfg.OpenAI.BaseURL)}
	if cfg.OpenAI.APIKey != "" {
		openaiOpts = append(openaiOpts, openai.WithAPIKey(cfg.OpenAI.APIKey))
	}
	openaiClient, err := openai.NewClient(getter, cfg.ParamPrefix, openaiOpts...)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	chatService, err := usecase.NewChatService(params, openaiClient, recorder, usecase.Settings{
		ParamPrefix:      cfg.ParamPrefix,
		Model:            cfg.OpenAI.Model,
		MaxTokens:        cfg.Chat.MaxTokens,
		Temperature:      cfg.Chat.Temperature,
		MaxHistory:       cfg.Chat.MaxHistory,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
	})
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService, renderer, handler.Options{
		Assets:         site.Assets(),
		MediaDir:       cfg.AssetsDir,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.Chat.MaxBodyBytes,
		RequestTimeout: cfg.Chat.RequestTimeout,
	})
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if inLambda {
		// Requires a function URL with InvokeMode RESPONSE_STREAM.
		lambdaurl.Start(h)
		return
	}

	if err := serve(ctx, cfg.Addr, h); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config, inLambda bool) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if inLambda || cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func loadContent(path string) (*content.Site, error) {
	if path == "" {
		return content.Default()
	}
	return content.LoadFile(path)
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests.
func serve(ctx context.Context, addr string, h http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
