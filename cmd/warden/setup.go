package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/veilcampus/warden/moderation"
	"github.com/veilcampus/warden/moderation/audit"
	"github.com/veilcampus/warden/moderation/cachestore"
	"github.com/veilcampus/warden/moderation/countstore"
	"github.com/veilcampus/warden/moderation/dominion"
	"github.com/veilcampus/warden/moderation/flagstore"
	"github.com/veilcampus/warden/moderation/keylock"
	"github.com/veilcampus/warden/moderation/ladder"
	"github.com/veilcampus/warden/moderation/store"
	"github.com/veilcampus/warden/util/cliutil"

	cli "github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func setupDatabase(cctx *cli.Context) (*gorm.DB, error) {
	return cliutil.SetupDatabase(cctx.String("database-url"), cliutil.DatabaseOptions{
		MaxConnections: cctx.Int("max-db-connections"),
		Tracing:        cctx.Bool("db-tracing"),
	})
}

// setupEngine wires an engine from the global flags: gorm for durable state, redis (when
// configured) for shared counters, flags, caches and locks.
func setupEngine(cctx *cli.Context, logger *slog.Logger) (*moderation.Engine, error) {
	db, err := setupDatabase(cctx)
	if err != nil {
		return nil, err
	}

	st := store.NewGormStore(db)
	if err := st.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	dir := dominion.NewGormDirectory(db)
	if err := dir.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrating territories: %w", err)
	}
	if p := cctx.String("territories-file"); p != "" {
		src := dominion.NewStaticDirectory()
		if err := src.LoadFromFileJSON(p); err != nil {
			return nil, err
		}
		if err := dir.Import(cctx.Context, src); err != nil {
			return nil, err
		}
		logger.Info("imported territory assignments", "file", p, "dominions", len(src.Dominions()))
	}

	overrides, err := ladder.ParseDurations(cctx.String("ladder-durations"))
	if err != nil {
		return nil, err
	}
	policy, err := ladder.NewPolicy(overrides)
	if err != nil {
		return nil, err
	}
	logger.Info("punishment ladder configured", "durations", policy.String())

	eng := &moderation.Engine{
		Logger:            logger,
		Store:             st,
		Dominions:         dominion.NewCacheDirectory(dir, 10_000, 5*time.Minute),
		Ladder:            policy,
		Clock:             &audit.MonotonicClock{},
		PermanentBanQuota: 10,
	}

	if ru := cctx.String("redis-url"); ru != "" {
		cnt, err := countstore.NewRedisCountStore(ru)
		if err != nil {
			return nil, err
		}
		flg, err := flagstore.NewRedisFlagStore(ru)
		if err != nil {
			return nil, err
		}
		csh, err := cachestore.NewRedisCacheStore(ru, 30*time.Minute)
		if err != nil {
			return nil, err
		}
		lk, err := keylock.NewRedisLocker(ru, 30*time.Second)
		if err != nil {
			return nil, err
		}
		eng.Counters, eng.Flags, eng.Cache, eng.Locks = cnt, flg, csh, lk
	} else {
		eng.Counters = countstore.NewMemCountStore()
		eng.Flags = flagstore.NewMemFlagStore()
		eng.Cache = cachestore.NewMemCacheStore(50_000, 30*time.Minute)
		eng.Locks = keylock.NewMemLocker()
	}
	return eng, nil
}
