package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gotd/td/tg"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/biz/usecase"
	"github.com/bizdev-tools/tg-digest/internal/conf"
	"github.com/bizdev-tools/tg-digest/internal/data"
	"github.com/bizdev-tools/tg-digest/internal/infra/feishu"
	"github.com/bizdev-tools/tg-digest/internal/infra/openai"
	"github.com/bizdev-tools/tg-digest/internal/infra/rabbitmq"
	"github.com/bizdev-tools/tg-digest/internal/infra/s3"
	"github.com/bizdev-tools/tg-digest/internal/infra/telegram"
	"github.com/bizdev-tools/tg-digest/internal/logger"
	"github.com/bizdev-tools/tg-digest/internal/service"
)

func main() {
	// Load .env file
	conf.LoadDotEnv()

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	lg := logger.Component("main")

	rules, err := conf.LoadRulesConfig(cfg.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, rules)
	stop()
	if err != nil {
		lg.Error().Err(err).Msg("Run failed")
		// a run that could not connect still reports its empty aggregates
		printReport(os.Stdout, &domain.RunReport{}, cfg.Output.CSVFile)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *conf.Config, rules *conf.RulesConfig) error {
	lg := logger.Component("main")

	// Optional integrations stay nil interfaces when disabled
	opts := data.Options{
		DBFile:     cfg.Output.DBFile,
		MessageDir: cfg.Output.MessageDir,
		CSVFile:    cfg.Output.CSVFile,
	}
	if cfg.S3.Enabled() {
		uploader, err := s3.NewClient(s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return fmt.Errorf("create s3 client: %w", err)
		}
		opts.Uploader = uploader
		lg.Info().Str("bucket", cfg.S3.Bucket).Msg("Transcript mirror enabled")
	}
	if cfg.RabbitMQ.Enabled() {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer publisher.Close()
		opts.Publisher = publisher
		lg.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("Record publishing enabled")
	}

	repos, err := data.NewRepositories(opts)
	if err != nil {
		return fmt.Errorf("create repositories: %w", err)
	}
	defer repos.Close()

	var notifier repo.Notifier
	if cfg.Feishu.Enabled() {
		notifier = data.NewFeishuNotifier(feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret), cfg.Feishu.ReportChatID)
		lg.Info().Msg("Feishu run report enabled")
	}

	completer := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	summarizer := data.NewSummaryRepo(completer, rules.ToSummaryConfig(cfg.OpenAI.MaxTokens))

	client := telegram.NewClient(cfg.Telegram.AppID, cfg.Telegram.AppHash, cfg.Telegram.SessionFile)
	return client.Run(ctx, func(ctx context.Context, api *tg.Client, self *tg.User) error {
		source := data.NewTelegramSource(api, self)
		fetcher := usecase.NewHistoryFetcher(source, cfg.ToFetchConfig())
		dialogUC := usecase.NewDialogUsecase(fetcher, repos.Chats, summarizer, repos.Transcripts, rules.ToRules())
		pipeline := service.NewPipeline(source, dialogUC, repos.Records...)
		if notifier != nil {
			pipeline.WithNotifier(notifier)
		}

		if cfg.RunInterval > 0 {
			lg.Info().Dur("interval", cfg.RunInterval).Msg("Polling mode")
			return service.NewRunner(pipeline, cfg.RunInterval).
				OnReport(func(report *domain.RunReport) { printReport(os.Stdout, report, cfg.Output.CSVFile) }).
				Run(ctx)
		}

		report, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}
		printReport(os.Stdout, report, cfg.Output.CSVFile)
		return nil
	})
}

func printReport(w io.Writer, report *domain.RunReport, csvFile string) {
	fmt.Fprintf(w, "Exported %d chats to %s\n", report.Processed(), csvFile)
	fmt.Fprintf(w, "Private unread: %d, Group unread: %d\n", report.Unread.Private, report.Unread.Group)
}
