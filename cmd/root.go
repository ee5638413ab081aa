// Package cmd wires the CLI to the download pipeline.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clickgrab/clickgrab/internal/browser"
	"github.com/clickgrab/clickgrab/internal/report"
	"github.com/clickgrab/clickgrab/internal/run"
	"github.com/clickgrab/clickgrab/internal/scrape"
)

var (
	pageURL         string
	inputTxt        string
	outputDir       string
	execPath        string
	headless        bool
	noImageBlock    bool
	maxWait         time.Duration
	downloadWait    time.Duration
	pollInterval    time.Duration
	sessionRefresh  int
	delayBetween    time.Duration
	filterDownloads bool
	resolveNames    bool
	tempExts        []string
)

var rootCmd = &cobra.Command{
	Use:   "clickgrab",
	Short: "Click download buttons on web pages and verify the files land on disk",
	Long: `clickgrab visits a list of pages, finds the most likely download
trigger on each, clicks it, and watches the download directory until the
browser has finished writing the file. Targets whose files already exist
are skipped, so re-running the tool resumes an interrupted batch.`,
}

// Execute runs the root command with the given context and logger.
func Execute(ctx context.Context, logger *zap.Logger) error {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runRoot(ctx, logger)
	}
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&pageURL, "url", "u", "", "Main page URL to scrape for download links")
	flags.StringVarP(&inputTxt, "input-txt", "i", "", "Text file of URLs, one per line ('#' comments ignored)")
	flags.StringVarP(&outputDir, "output", "o", "", "Download directory (required)")
	flags.StringVar(&execPath, "exec", "", "Browser executable (auto-detect if empty)")
	flags.BoolVar(&headless, "headless", false, "Run the browser headless")
	flags.BoolVar(&noImageBlock, "no-image-block", false, "Do not block images (some pages need them to render)")
	flags.DurationVar(&maxWait, "max-wait", 20*time.Second, "Max wait for page elements")
	flags.DurationVar(&downloadWait, "download-wait", 150*time.Second, "Max wait for a download to complete")
	flags.DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "Download directory poll interval")
	flags.IntVar(&sessionRefresh, "session-refresh", 10, "Restart the browser after this many successful downloads")
	flags.DurationVar(&delayBetween, "delay-between", 2*time.Second, "Delay between targets")
	flags.BoolVar(&filterDownloads, "filter-downloads", false, "Keep only links that look like download pages")
	flags.BoolVar(&resolveNames, "resolve-names", true, "Ask the server (HEAD) for filenames the URL does not reveal")
	flags.StringSliceVar(&tempExts, "temp-ext", []string{".crdownload", ".part", ".tmp"}, "In-progress download marker suffixes")
	rootCmd.MarkFlagRequired("output")
}

func runRoot(ctx context.Context, logger *zap.Logger) error {
	if pageURL == "" && inputTxt == "" {
		return errors.New("nothing to do: provide --url and/or --input-txt")
	}

	downloadDir, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	browserExec := execPath
	if browserExec == "" {
		browserExec = browser.DetectBrowser()
		if browserExec == "" {
			return errors.New("could not find Chrome/Chromium; install one or pass --exec")
		}
		logger.Info("auto-detected browser", zap.String("exec", browserExec))
	}

	cfg := browser.DefaultConfig()
	cfg.ExecPath = browserExec
	cfg.DownloadDir = downloadDir
	cfg.Headless = headless
	cfg.BlockImages = !noImageBlock
	cfg.Log = logger

	mgr := browser.NewManager(cfg, sessionRefresh)
	defer mgr.Close()

	targets, err := gatherTargets(ctx, mgr, logger)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no target URLs found")
	}

	logger.Info("processing targets",
		zap.Int("count", len(targets)),
		zap.String("download_dir", downloadDir))

	bar := progressbar.NewOptions(len(targets),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("file"),
		progressbar.OptionShowIts(),
	)

	stats := report.New(downloadDir)
	runner := run.New(run.Config{
		DownloadDir:  downloadDir,
		ElementWait:  maxWait,
		DownloadWait: downloadWait,
		PollInterval: pollInterval,
		Delay:        delayBetween,
		TempExts:     tempExts,
		ResolveNames: resolveNames,
	}, sessionPool{mgr}, barSink{bar}, stats, logger)

	runErr := runner.Process(ctx, targets)
	bar.Finish()
	stats.Print()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// gatherTargets combines list-file URLs with links scraped from the main
// page, list first, deduplicated in first-seen order.
func gatherTargets(ctx context.Context, mgr *browser.Manager, logger *zap.Logger) ([]scrape.Target, error) {
	var lists [][]scrape.Target

	if inputTxt != "" {
		fromFile, err := scrape.FromFile(inputTxt)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded url list",
			zap.String("path", inputTxt), zap.Int("count", len(fromFile)))
		lists = append(lists, fromFile)
	}

	if pageURL != "" {
		sess, err := mgr.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if err := sess.Navigate(ctx, pageURL); err != nil {
			return nil, fmt.Errorf("open main page: %w", err)
		}
		scraped, err := scrape.Anchors(ctx, sess, logger)
		if err != nil {
			return nil, err
		}
		lists = append(lists, scraped)
	}

	targets := scrape.Merge(lists...)
	if filterDownloads {
		targets = scrape.Filter(targets)
	}
	return targets, nil
}

// sessionPool adapts browser.Manager to the orchestrator's Pool interface.
type sessionPool struct {
	mgr *browser.Manager
}

func (p sessionPool) Acquire(ctx context.Context) (run.Session, error) {
	return p.mgr.Acquire(ctx)
}

func (p sessionPool) RecordSuccess(ctx context.Context) error {
	return p.mgr.RecordSuccess(ctx)
}

func (p sessionPool) Restart(ctx context.Context) (run.Session, error) {
	return p.mgr.Restart(ctx)
}

// barSink advances the progress bar as attempts resolve.
type barSink struct {
	bar *progressbar.ProgressBar
}

func (s barSink) Attempt(run.Result) {
	s.bar.Add(1)
}
