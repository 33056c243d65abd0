package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"shiftbook/internal/capture"
	"shiftbook/internal/config"
	appLog "shiftbook/internal/log"
	"shiftbook/internal/session"
	"shiftbook/internal/shiftapi"
	"shiftbook/internal/timefmt"
	"shiftbook/internal/web"
)

type flagConfig struct {
	configPath  string
	envFile     string
	listen      string
	api         string
	city        string
	once        bool
	capturePath string
	capturePage string
}

func main() {
	flags := parseFlags()

	if loaded, err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "path", loaded)
		os.Exit(1)
	} else if loaded != "" {
		appLog.Debug("env file loaded", "path", loaded)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.Getenv)

	// CLI flags override file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.api != "" {
		conf.APIBaseURL = strings.TrimRight(flags.api, "/")
	}
	if flags.city != "" {
		conf.DefaultCity = flags.city
	}

	if lvl, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(lvl)
	} else {
		appLog.Warn("unknown log level; keeping info", "log_level", conf.LogLevel)
	}

	appLog.Info("shiftbook starting", "version", "0.1.0")

	loc, err := conf.Location()
	if err != nil {
		appLog.Warn("unknown timezone; using local time", "timezone", conf.Timezone)
	}
	rule, ok := timefmt.ParseTomorrowRule(conf.TomorrowRule)
	if !ok {
		appLog.Warn("unknown tomorrow rule; using day_of_month", "tomorrow_rule", conf.TomorrowRule)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"api", conf.APIBaseURL,
		"timezone", loc.String(),
		"tomorrow_rule", string(rule),
		"cities", strings.Join(conf.Cities, ","),
		"default_city", conf.DefaultCity,
		"refresh", conf.RefreshCron,
		"once", flags.once,
		"capture", flags.capturePath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	client := shiftapi.NewClient(conf.APIBaseURL, conf.RequestTimeout())
	sess := session.New(client, session.Options{
		Formatter: timefmt.Formatter{
			Location:   loc,
			DateLayout: conf.DateLayout,
			TimeLayout: conf.TimeLayout,
			Tomorrow:   rule,
		},
		Cities: conf.Cities,
		City:   conf.DefaultCity,
	})

	if err := sess.Load(ctx); err != nil {
		if flags.once {
			os.Exit(1)
		}
		appLog.Warn("initial load failed; pages will retry on open")
	}

	if flags.once {
		mine := sess.MyShiftsView()
		avail := sess.AvailableView()
		appLog.Info("snapshot summary",
			"shifts", len(sess.Snapshot()),
			"my_groups", len(mine.Groups),
			"city", avail.City,
			"available_groups", len(avail.Groups),
		)
		return
	}

	srv, err := web.NewServer(conf, sess)
	if err != nil {
		appLog.Error("failed to build web server", err)
		os.Exit(1)
	}

	if flags.capturePath != "" {
		if err := runCapture(ctx, srv, conf, flags); err != nil {
			appLog.Error("capture failed", err, "path", flags.capturePath)
			os.Exit(1)
		}
		return
	}

	stopRefresh, err := startRefresh(ctx, sess, conf.RefreshCron)
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	defer stopRefresh()

	if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
		appLog.Error("HTTP server error", err)
		os.Exit(1)
	}
	appLog.Info("shiftbook exiting")
}

// startRefresh schedules background snapshot loads. An empty spec disables
// it.
func startRefresh(ctx context.Context, sess *session.Session, spec string) (func(), error) {
	if spec == "" {
		return func() {}, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := sess.Load(ctx); err != nil {
			return
		}
		appLog.Debug("background refresh done", "count", len(sess.Snapshot()))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("background refresh scheduled", "refresh", spec)

	return func() {
		<-c.Stop().Done()
	}, nil
}

// runCapture serves the UI for the duration of one screenshot.
func runCapture(ctx context.Context, srv *web.Server, conf *config.Config, flags flagConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	base := "http://" + conf.Listen
	if err := waitHealthy(ctx, base+"/health", 5*time.Second); err != nil {
		return err
	}

	target, err := capture.PageURL(base, flags.capturePage, conf.DefaultCity)
	if err != nil {
		return err
	}
	if err := capture.PagePNG(ctx, capture.Options{URL: target, OutputPath: flags.capturePath}); err != nil {
		return err
	}
	appLog.Info("capture written", "url", target, "path", flags.capturePath)

	cancel()
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func waitHealthy(ctx context.Context, url string, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			if err == nil {
				err = context.DeadlineExceeded
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/shiftbook/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional .env file with SHIFTBOOK_* variables")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.api, "api", "", "Shift Source base URL (overrides config if set)")
	flag.StringVar(&cfg.city, "city", "", "Initially selected city (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load one snapshot, log a summary and exit")
	flag.StringVar(&cfg.capturePath, "capture", "", "Write a PNG of a page to this path and exit")
	flag.StringVar(&cfg.capturePage, "capture-page", "mine", "Page to capture: mine or available")

	flag.Parse()

	return cfg
}
