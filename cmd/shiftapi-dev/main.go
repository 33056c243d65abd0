// Command shiftapi-dev serves an in-memory Shift Source for local work on
// shiftbook. Shifts are seeded from an ICS file or generated per city.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shiftbook/internal/devapi"
	"shiftbook/internal/ics"
	appLog "shiftbook/internal/log"
	"shiftbook/internal/model"
)

type flagConfig struct {
	listen   string
	seed     string
	days     int
	cities   string
	timezone string
}

func main() {
	// Missing .env is fine; real env vars win.
	_ = godotenv.Load()

	flags := parseFlags()

	loc, err := time.LoadLocation(flags.timezone)
	if err != nil {
		appLog.Warn("unknown timezone; using local time", "timezone", flags.timezone)
		loc = time.Local
	}

	now := time.Now().In(loc)
	shifts, err := seedShifts(flags, now, loc)
	if err != nil {
		appLog.Error("failed to seed shifts", err, "seed", flags.seed)
		os.Exit(1)
	}
	appLog.Info("dev shift source seeded", "shifts", len(shifts), "seed", flags.seed)

	srv := &http.Server{
		Addr:              flags.listen,
		Handler:           devapi.NewRouter(devapi.NewStore(shifts, nil)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("dev shift source listening", "listen", "http://"+flags.listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("HTTP server error", err)
		os.Exit(1)
	}
}

func seedShifts(flags flagConfig, now time.Time, loc *time.Location) ([]model.Shift, error) {
	if flags.seed == "" {
		return devapi.Generate(devapi.GenerateConfig{
			Cities:   splitCities(flags.cities),
			From:     now,
			Days:     flags.days,
			Location: loc,
		})
	}

	body, err := os.ReadFile(flags.seed)
	if err != nil {
		return nil, err
	}
	events, err := ics.ParseSeed(body)
	if err != nil {
		return nil, err
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	res, err := ics.ExpandShifts(events, ics.ExpandConfig{
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, flags.days),
	})
	if err != nil {
		return nil, err
	}
	return res.Shifts, nil
}

func splitCities(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.listen, "listen", envOr("SHIFTAPI_LISTEN", "127.0.0.1:5000"), "HTTP listen address")
	flag.StringVar(&cfg.seed, "seed", os.Getenv("SHIFTAPI_SEED"), "ICS file to seed shifts from (generated if empty)")
	flag.IntVar(&cfg.days, "days", 7, "Number of days to seed")
	flag.StringVar(&cfg.cities, "cities", "Helsinki,Tampere,Turku", "Comma-separated cities for generated shifts")
	flag.StringVar(&cfg.timezone, "timezone", envOr("SHIFTAPI_TIMEZONE", "Europe/Helsinki"), "IANA timezone for generated shifts")

	flag.Parse()

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
