package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-sql/civil"
	"golang.org/x/sync/errgroup"

	"github.com/vmarket/vmarket/internal/config"
	"github.com/vmarket/vmarket/internal/domain"
	"github.com/vmarket/vmarket/internal/scheduler"
	"github.com/vmarket/vmarket/internal/server"
	"github.com/vmarket/vmarket/internal/server/handler"
	"github.com/vmarket/vmarket/internal/server/ws"
	"github.com/vmarket/vmarket/internal/service"
)

const shutdownTimeout = 15 * time.Second

// services are the domain services shared by every mode.
type services struct {
	schedule   *service.ScheduleService
	creator    *service.MarketCreator
	resolver   *service.MarketResolver
	roles      *service.RoleService
	query      *service.MarketQueryService
	claims     *service.ClaimService
	authorizer *service.Authorizer
	loc        *time.Location
	leagues    []domain.League
}

func newServices(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	schedule := service.NewScheduleService(deps.Providers, deps.GameStore, loc, logger)

	creator := service.NewMarketCreator(deps.GameStore, deps.MarketStore, deps.RuleStore, deps.AuditStore, deps.Contracts, logger)
	creator.SetLockManager(deps.LockManager, cfg.Redis.LockTTL.Duration)
	creator.SetEventBus(deps.EventBus)

	resolver := service.NewMarketResolver(deps.GameStore, deps.MarketStore, deps.AuditStore, deps.Contracts, schedule, loc, logger)
	resolver.SetLockManager(deps.LockManager, cfg.Redis.LockTTL.Duration)
	resolver.SetMarketInfoCache(deps.MarketInfoCache)
	resolver.SetEventBus(deps.EventBus)

	if deps.Exporter != nil {
		schedule.SetExporter(deps.Exporter)
		creator.SetExporter(deps.Exporter)
	}

	return &services{
		schedule:   schedule,
		creator:    creator,
		resolver:   resolver,
		roles:      service.NewRoleService(deps.Contracts, deps.AuditStore, logger),
		query:      service.NewMarketQueryService(deps.MarketStore, deps.RuleStore, deps.Contracts, deps.MarketInfoCache, logger),
		claims:     service.NewClaimService(deps.MarketStore, deps.AuditStore, deps.Contracts, deps.Operator, logger),
		authorizer: service.NewAuthorizer(deps.Contracts, logger),
		loc:        loc,
		leagues:    deps.Providers.Leagues(),
	}, nil
}

// ServerMode serves the HTTP API and websocket stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *services) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// SchedulerMode runs the cron jobs.
func (a *App) SchedulerMode(ctx context.Context, deps *Dependencies, svc *services) error {
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScheduler(ctx, g, deps, svc); err != nil {
		return err
	}
	return g.Wait()
}

// FullMode runs the HTTP API and the cron jobs in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *services) error {
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScheduler(ctx, g, deps, svc); err != nil {
		return err
	}
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// startHTTPServer adds the server and websocket hub to g. The server is shut
// down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	defaultRoom := domain.Room(a.cfg.Server.DefaultRoom)

	pingers := make(map[string]handler.Pinger, len(deps.Pingers))
	for name, p := range deps.Pingers {
		pingers[name] = p
	}

	hub := ws.NewHub(deps.EventBus, a.cfg.Server.CORSOrigins, a.logger)
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(pingers, a.logger),
		Status: &handler.StatusHandler{
			Mode:     a.cfg.Mode,
			Rooms:    deps.Contracts.Rooms(),
			Leagues:  svc.leagues,
			Timezone: svc.loc.String(),
		},
		Admin:   handler.NewAdminHandler(svc.schedule, svc.creator, svc.resolver, svc.roles, svc.query, defaultRoom, a.logger),
		Markets: handler.NewMarketHandler(svc.query, deps.EventBus, defaultRoom, a.logger),
	}
	srvDeps := server.Deps{Authorizer: svc.authorizer}
	if a.cfg.Server.RateLimitPerMinute > 0 {
		srvDeps.Limiter = deps.RateLimiter
	}
	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
		DefaultRoom:        defaultRoom,
	}, handlers, srvDeps, hub, a.logger)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) error {
	runner := scheduler.NewRunner(svc.loc, a.logger)
	jobs := scheduler.NewJobs(svc.schedule, svc.creator, svc.resolver, svc.claims, svc.leagues, a.rooms(), svc.loc, a.logger)
	jobs.SetReporter(deps.Notifier)

	sc := a.cfg.Scheduler
	if err := jobs.Register(runner, sc.CreateCron, sc.ResolveCron, sc.ClaimCron); err != nil {
		return err
	}
	if runner.Jobs() == 0 {
		return errors.New("app: scheduler: no jobs configured")
	}
	g.Go(func() error {
		return runner.Run(ctx)
	})
	return nil
}

// FetchMode refreshes the stored schedule once.
func (a *App) FetchMode(ctx context.Context, svc *services) error {
	date := a.date(svc.loc)
	var errs []error
	for _, league := range a.leagues(svc) {
		rep, err := svc.schedule.Fetch(ctx, league, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch %s: %w", league, err))
			continue
		}
		a.print(rep)
	}
	return errors.Join(errs...)
}

// CreateMode creates markets once for the requested leagues and rooms.
func (a *App) CreateMode(ctx context.Context, deps *Dependencies, svc *services) error {
	date := a.date(svc.loc)
	var errs []error
	for _, room := range a.rooms() {
		for _, league := range a.leagues(svc) {
			rep, err := svc.creator.CreateMarkets(ctx, room, league, date)
			if err != nil {
				errs = append(errs, a.jobFailed(ctx, deps, fmt.Sprintf("create %s %s", room, league), err))
				continue
			}
			a.print(rep)
			a.delivered(deps.Notifier.CreateRun(ctx, rep))
		}
	}
	return errors.Join(errs...)
}

// ResolveMode resolves ended markets once.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies, svc *services) error {
	date := a.date(svc.loc)
	var errs []error
	for _, room := range a.rooms() {
		rep, err := svc.resolver.ResolveMarkets(ctx, room, date, a.args.League)
		if err != nil {
			errs = append(errs, a.jobFailed(ctx, deps, "resolve "+string(room), err))
			continue
		}
		a.print(rep)
		a.delivered(deps.Notifier.ResolveRun(ctx, rep))
	}
	return errors.Join(errs...)
}

// ClaimMode claims winnings once.
func (a *App) ClaimMode(ctx context.Context, deps *Dependencies, svc *services) error {
	var errs []error
	for _, room := range a.rooms() {
		rep, err := svc.claims.Claim(ctx, room, a.args.MarketID)
		if err != nil {
			errs = append(errs, a.jobFailed(ctx, deps, "claim "+string(room), err))
			continue
		}
		a.print(rep)
		a.delivered(deps.Notifier.ClaimRun(ctx, rep))
	}
	return errors.Join(errs...)
}

// date is the requested date or today in loc.
func (a *App) date(loc *time.Location) civil.Date {
	if a.args.Date.IsValid() {
		return a.args.Date
	}
	return civil.DateOf(time.Now().In(loc))
}

func (a *App) leagues(svc *services) []domain.League {
	if a.args.League != "" {
		return []domain.League{a.args.League}
	}
	return svc.leagues
}

// rooms is the requested room, the scheduler rooms, or every configured room.
func (a *App) rooms() []domain.Room {
	if a.args.Room != "" {
		return []domain.Room{a.args.Room}
	}
	names := a.cfg.Scheduler.Rooms
	if len(names) == 0 {
		names = a.cfg.RoomNames()
	}
	out := make([]domain.Room, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Room(n))
	}
	return out
}

// print writes a run report to stdout for the operator.
func (a *App) print(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		a.logger.Warn("write report", slog.String("error", err.Error()))
	}
}

func (a *App) jobFailed(ctx context.Context, deps *Dependencies, job string, err error) error {
	err = fmt.Errorf("%s: %w", job, err)
	a.delivered(deps.Notifier.Error(ctx, job, err))
	return err
}

func (a *App) delivered(err error) {
	if err != nil {
		a.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
