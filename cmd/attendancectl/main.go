// Command attendancectl runs operator tasks against the attendance store
// and prints the result as JSON:
//
//	attendancectl -task repair -business 7 -from 2024-06-01T00:00:00Z -to 2024-06-02T00:00:00Z
//	attendancectl -task sweep  -business 7
//	attendancectl -task rollup -business 7 -from-date 2024-06-01 -to-date 2024-06-07 -dense
//	attendancectl -task token  -business 7 -staff 3 -role MANAGER
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/app"
	"github.com/iliyamo/venue-attendance/internal/businessday"
	"github.com/iliyamo/venue-attendance/internal/config"
	"github.com/iliyamo/venue-attendance/internal/logger"
	"github.com/iliyamo/venue-attendance/internal/repair"
	"github.com/iliyamo/venue-attendance/internal/reporting"
	"github.com/iliyamo/venue-attendance/internal/utils"
)

type options struct {
	task     string
	business uint64
	from, to string
	fromDate string
	toDate   string
	dense    bool
	staff    uint64
	role     string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("attendancectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.task, "task", "", "repair | sweep | rollup | token")
	fs.Uint64Var(&o.business, "business", 0, "business (tenant) id")
	fs.StringVar(&o.from, "from", "", "repair window start, RFC3339")
	fs.StringVar(&o.to, "to", "", "repair window end, RFC3339 (exclusive)")
	fs.StringVar(&o.fromDate, "from-date", "", "first business day, YYYY-MM-DD")
	fs.StringVar(&o.toDate, "to-date", "", "last business day, YYYY-MM-DD (default: from-date)")
	fs.BoolVar(&o.dense, "dense", false, "include empty days in rollups")
	fs.Uint64Var(&o.staff, "staff", 0, "staff id for minted tokens")
	fs.StringVar(&o.role, "role", utils.RoleStaff, "STAFF or MANAGER")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch o.task {
	case "repair", "sweep", "rollup", "token":
	default:
		return o, fmt.Errorf("unknown -task %q", o.task)
	}
	if o.business == 0 {
		return o, errors.New("-business is required")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("attendancectl: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, "console", "attendancectl")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := run(ctx, o, cfg, zl)
	if err != nil {
		zl.Error("task failed", zap.String("task", o.task), zap.Uint64("business_id", o.business), zap.Error(err))
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func run(ctx context.Context, o options, cfg config.Config, zl *zap.Logger) (any, error) {
	if o.task == "token" {
		return utils.NewAccessToken(cfg.JWTSecret, o.staff, o.business, o.role,
			time.Duration(cfg.AccessTTLMin)*time.Minute, time.Now())
	}

	a, err := app.New(ctx, cfg, zl, app.Options{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	switch o.task {
	case "repair":
		from, err := time.Parse(time.RFC3339, o.from)
		if err != nil {
			return nil, fmt.Errorf("-from: %w", err)
		}
		to, err := time.Parse(time.RFC3339, o.to)
		if err != nil {
			return nil, fmt.Errorf("-to: %w", err)
		}
		return a.Repair.Run(ctx, o.business, repair.Window{From: from, To: to})
	case "sweep":
		return a.Lifecycle.SweepNoShows(ctx, o.business)
	default: // rollup
		from, err := businessday.ParseDate(o.fromDate)
		if err != nil {
			return nil, fmt.Errorf("-from-date: %w", err)
		}
		to := from
		if o.toDate != "" {
			if to, err = businessday.ParseDate(o.toDate); err != nil {
				return nil, fmt.Errorf("-to-date: %w", err)
			}
		}
		return a.Aggregator.Rollup(ctx, o.business, reporting.Period{From: from, To: to}, o.dense)
	}
}
