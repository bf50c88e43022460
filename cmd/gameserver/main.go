// Package main runs the ability engine: the tick driver, Lua hooks, optional
// Postgres persistence and the Telnet admin console.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/S3OPS/ACOTAR-sub002/internal/config"
	"github.com/S3OPS/ACOTAR-sub002/internal/frontend/telnet"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ability"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/cast"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/inventory"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/ruleset"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/session"
	"github.com/S3OPS/ACOTAR-sub002/internal/gameserver"
	"github.com/S3OPS/ACOTAR-sub002/internal/observability"
	"github.com/S3OPS/ACOTAR-sub002/internal/scripting"
	"github.com/S3OPS/ACOTAR-sub002/internal/server"
	"github.com/S3OPS/ACOTAR-sub002/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	migrationsDir := flag.String("migrations", "migrations", "schema migrations applied at startup when the database is enabled")
	noColor := flag.Bool("no-color", false, "disable ANSI colour on the console")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "gameserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server", zap.String("console_addr", cfg.Console.Addr()))

	// Content
	catalog := ability.DefaultCatalog()
	if cfg.Content.Abilities != "" {
		catalog, err = ability.LoadDirectory(cfg.Content.Abilities)
		if err != nil {
			logger.Fatal("loading ability definitions", zap.Error(err))
		}
	}
	policy, err := ruleset.LoadPolicy(cfg.Content.Classes)
	if err != nil {
		logger.Fatal("loading classes", zap.Error(err))
	}
	items := inventory.NewRegistry()
	if cfg.Content.Equipment != "" {
		items, err = inventory.LoadRegistry(cfg.Content.Equipment)
		if err != nil {
			logger.Fatal("loading equipment", zap.Error(err))
		}
	}
	logger.Info("content loaded",
		zap.Int("abilities", catalog.Len()),
		zap.Int("classes", len(policy.Classes())),
		zap.Int("items", len(items.AllItems())),
	)

	// Event sinks
	roster := session.NewManager()
	bus := event.NewBus()
	stats := gameserver.NewEventStats(bus, cfg.Engine.HookQueueSize, logger)
	sinks := event.Fanout{event.NewLogSink(logger), roster, bus}

	var hooks *scripting.HookSink
	var scripts *scripting.Manager
	if cfg.Content.Scripts != "" {
		scripts = scripting.NewManager(cfg.Engine.ScriptInstructionLimit, logger)
		scripts.LookupAbility = func(t string) (scripting.AbilityInfo, bool) {
			def, ok := catalog.Lookup(ability.Type(t))
			if !ok {
				return scripting.AbilityInfo{}, false
			}
			return scripting.AbilityInfo{Type: string(def.Type), Name: def.Name, ManaCost: def.ManaCost, Cooldown: def.CooldownSeconds}, true
		}
		if err := scripts.Load(cfg.Content.Scripts); err != nil {
			logger.Fatal("loading scripts", zap.Error(err))
		}
		hooks = scripting.NewHookSink(scripts, catalog, cfg.Engine.HookQueueSize, logger)
		sinks = append(sinks, hooks)
	}

	engine := cast.NewEngine(catalog, policy, sinks, logger)

	// Persistence
	var store gameserver.Store
	var pool *postgres.Pool
	if cfg.Database.Enabled {
		if err := postgres.MigrateUp(cfg.Database.DSN(), *migrationsDir); err != nil {
			logger.Fatal("applying migrations", zap.Error(err))
		}
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewCharacterRepository(pool.DB())
	} else {
		logger.Info("database disabled; progression is kept in memory")
	}

	game := gameserver.NewGame(gameserver.GameConfig{
		Engine:            engine,
		Roster:            roster,
		Items:             items,
		Store:             store,
		Logger:            logger,
		Curve:             cfg.Engine.Curve(),
		Growth:            cfg.Engine.Growth,
		ManaPerMagicPower: cfg.Engine.ManaPerMagicPower,
		RegenPerTick:      cfg.Engine.RegenPerTick,
	})

	ticks := gameserver.NewTickManager(cfg.Engine.TickInterval, engine, roster, logger)
	if game.Persistent() && cfg.Database.AutosaveInterval > 0 {
		every := uint64(cfg.Database.AutosaveInterval / cfg.Engine.TickInterval)
		if every < 1 {
			every = 1
		}
		ticks.RegisterTick("autosave", func() {
			if (ticks.Ticks()+1)%every != 0 {
				return
			}
			saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			n, err := game.SaveAll(saveCtx)
			if err != nil {
				logger.Warn("autosave incomplete", zap.Int("saved", n), zap.Error(err))
				return
			}
			logger.Debug("autosave complete", zap.Int("saved", n))
		})
	}

	handler := gameserver.NewConsoleHandler(game, ticks, !*noColor, logger)
	handler.SetStats(stats)
	acceptor := telnet.NewAcceptor(cfg.Console, handler, logger)

	// Services stop in reverse order: console first, database last.
	lifecycle := server.NewLifecycle(logger)

	if pool != nil {
		dbStop := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				<-dbStop
				return nil
			},
			StopFn: func() {
				saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				n, err := game.SaveAll(saveCtx)
				if err != nil {
					logger.Error("final save incomplete", zap.Int("saved", n), zap.Error(err))
				} else {
					logger.Info("final save complete", zap.Int("saved", n))
				}
				pool.Close()
				close(dbStop)
			},
		})
	}

	statsCtx, statsCancel := context.WithCancel(ctx)
	lifecycle.Add("event-stats", &server.FuncService{
		StartFn: func() error { return stats.Run(statsCtx) },
		StopFn:  statsCancel,
	})

	if hooks != nil {
		hookCtx, hookCancel := context.WithCancel(ctx)
		hooks.Start(hookCtx)
		lifecycle.Add("lua-hooks", &server.FuncService{
			StartFn: func() error {
				<-hookCtx.Done()
				return nil
			},
			StopFn: func() {
				hookCancel()
				hooks.Wait()
				scripts.Close()
			},
		})
	}

	tickCtx, tickCancel := context.WithCancel(ctx)
	lifecycle.Add("ticks", &server.FuncService{
		StartFn: func() error { return ticks.Run(tickCtx) },
		StopFn:  tickCancel,
	})

	lifecycle.Add("console", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("game server ready",
		zap.String("console_addr", cfg.Console.Addr()),
		zap.Bool("persistent", game.Persistent()),
		zap.Bool("scripting", hooks != nil),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}
