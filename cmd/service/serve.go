package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nikitkaralius/pollmate/internal/config"
	"github.com/nikitkaralius/pollmate/internal/handlers"
	"github.com/nikitkaralius/pollmate/internal/httpapi"
)

// maxConcurrentUpdates bounds how many Telegram updates are handled at once in long-polling mode.
const maxConcurrentUpdates = 16

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Telegram bot",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("mode", config.ModeLongPolling, "Bot update mode: long-polling or webhook")
	serveCmd.Flags().String("webhook-url", "", "Telegram webhook public URL (required for webhook mode)")
	_ = settings.BindPFlag("http.addr", serveCmd.Flags().Lookup("http-addr"))
	_ = settings.BindPFlag("mode", serveCmd.Flags().Lookup("mode"))
	_ = settings.BindPFlag("telegram.webhook_url", serveCmd.Flags().Lookup("webhook-url"))
}

func printBanner() {
	fmt.Println(color.YellowString(" ___  ___  _ _ __  __       _\n| _ \\/ _ \\| | |  \\/  |__ _| |_ ___\n|  _/ (_) | | | |\\/| / _` |  _/ -_)\n|_|  \\___/|_|_|_|  |_\\__,_|\\__\\___|"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("pollmate"), AppVersion)
	fmt.Printf("Polls you can talk to\n")
	color.HiBlack("=====================================================\n")
}

func runServe(cmd *cobra.Command, _ []string) error {
	printBanner()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var (
		bot     *tgbotapi.BotAPI
		tgBot   *handlers.Bot
		webhook httpapi.UpdateHandler
	)
	if cfg.Telegram.Enabled {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		bot.Debug = cfg.Verbose
		log.Info().Str("account", bot.Self.UserName).Msg("Authorized on telegram")

		tgBot = handlers.NewBot(bot, st.orchestrator, st.dispatcher, st.sessions, cfg.Telegram.IsAdmin, log.Logger)
		if cfg.Mode == config.ModeWebhook {
			if err := setWebhook(bot, cfg.Telegram.WebhookURL); err != nil {
				return err
			}
			webhook = tgBot
		}
	}

	server := httpapi.NewServer(st.orchestrator, st.sessions, webhook, log.Logger)
	if st.history != nil {
		server.WithHistory(st.history)
	}

	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if _, err := quartz.AddFunc(cfg.Session.SweepSchedule, func() {
		if n := st.sessions.Sweep(cfg.Session.IdleTTL); n > 0 {
			log.Info().Int("sessions", n).Msg("Evicted idle sessions")
		}
	}); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	quartz.Start()
	defer quartz.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if st.river != nil {
		if err := st.river.Start(ctx); err != nil {
			return fmt.Errorf("start river: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := st.river.Stop(stopCtx); err != nil {
				log.Warn().Err(err).Msg("River did not stop cleanly")
			}
		}()
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Service listening")
		return server.Listen(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if tgBot != nil && cfg.Mode == config.ModeLongPolling {
		g.Go(func() error {
			return pollUpdates(ctx, bot, tgBot)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func setWebhook(bot *tgbotapi.BotAPI, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	if info, err := bot.GetWebhookInfo(); err == nil {
		log.Info().Int("pending", info.PendingUpdateCount).Msg("Webhook set")
	}
	return nil
}

// pollUpdates receives updates until ctx is done. Updates are handled concurrently; messages of
// one session still run one at a time because the orchestrator serializes them.
func pollUpdates(ctx context.Context, bot *tgbotapi.BotAPI, tgBot *handlers.Bot) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn().Err(err).Msg("Failed to remove webhook, continuing")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)
	log.Info().Int("timeout", u.Timeout).Msg("Started long polling")

	var handling errgroup.Group
	handling.SetLimit(maxConcurrentUpdates)
	defer func() { _ = handling.Wait() }()

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handling.Go(func() error {
				tgBot.HandleUpdate(ctx, update)
				return nil
			})
		}
	}
}
