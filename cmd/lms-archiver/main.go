package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/411A/lms-archiver"
	"github.com/411A/lms-archiver/async"
	"github.com/411A/lms-archiver/generic"
	"github.com/411A/lms-archiver/internal/ledger"
	"github.com/411A/lms-archiver/internal/moodle"
	"github.com/411A/lms-archiver/internal/pipeline"
	"github.com/411A/lms-archiver/internal/unrar"
)

func main() {
	cfg, err := lms_archiver.ConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "lms-archiver",
		Usage: "download and extract offline lecture recordings from the LMS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "username",
				Usage: "LMS username (overrides LMS_USERNAME)",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "LMS password (overrides LMS_PASSWORD)",
			},
			&cli.StringFlag{
				Name:  "course-id",
				Usage: "process only the course with `ID`",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "LMS base `URL`",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "save extracted videos to `DIR`",
			},
			&cli.StringFlag{
				Name:  "downloads",
				Usage: "keep downloaded archives in `DIR`",
			},
			&cli.StringFlag{
				Name:  "state",
				Value: ledger.DefaultPath,
				Usage: "track completed work in `FILE`",
			},
		},
		Action: func(c *cli.Context) error {
			applyFlags(&cfg, c)
			return run(ctx, cfg, c.String("course-id"), c.String("state"))
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		if err = <-result; err != nil {
			logger.Fatal(err.Error())
		}
	}
}

func applyFlags(cfg *lms_archiver.Config, c *cli.Context) {
	if v := c.String("username"); v != "" {
		cfg.Credentials.Username = v
	}
	if v := c.String("password"); v != "" {
		cfg.Credentials.Password = v
	}
	if v := c.String("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v := c.String("output"); v != "" {
		cfg.OutputDir = v
	}
	if v := c.String("downloads"); v != "" {
		cfg.DownloadsDir = v
	}
}

func run(ctx context.Context, cfg lms_archiver.Config, courseID string, statePath string) error {
	logger := zap.S()

	if err := promptCredentials(&cfg.Credentials); err != nil {
		return err
	}

	led, err := ledger.Load(statePath)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	bar := progressbar.DefaultBytes(1, "downloading")
	nav, err := moodle.New(cfg.BaseURL, cfg.PageLoadTimeout, moodle.WithProgress(func(downloaded, expected int64) {
		if expected > 0 && bar.GetMax() != int(expected) {
			bar.ChangeMax(int(expected))
		}
		generic.Unwrap_(bar.Set(int(downloaded)))
	}))
	if err != nil {
		return err
	}

	if err := nav.Login(ctx, cfg.Credentials); err != nil {
		return err
	}

	orchestrator := pipeline.NewOrchestrator(nav, unrar.New(), led, pipeline.Config{
		DownloadsDir:    cfg.DownloadsDir,
		OutputDir:       cfg.OutputDir,
		DownloadTimeout: cfg.DownloadTimeout,
	})
	summaries, err := orchestrator.Run(ctx, courseID)
	for _, s := range summaries {
		logger.Infof("%s: %d recordings, %d downloaded, %d extracted, %d skipped, %d failed",
			s.Course.Key(), s.Recordings, s.Downloaded, s.Extracted, s.Skipped, s.Failed)
	}
	if err != nil {
		return err
	}

	failures := 0
	for _, s := range summaries {
		failures += s.Failed
	}
	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d recordings failed", failures), 1)
	}
	logger.Info("all downloads and extractions completed")
	return nil
}

func promptCredentials(creds *lms_archiver.Credentials) error {
	reader := bufio.NewReader(os.Stdin)
	var err error
	if creds.Username == "" {
		fmt.Print("Enter your LMS username: ")
		if creds.Username, err = readLine(reader); err != nil {
			return err
		}
	}
	if creds.Password == "" {
		fmt.Print("Enter your LMS password: ")
		if creds.Password, err = readLine(reader); err != nil {
			return err
		}
	}
	return nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
