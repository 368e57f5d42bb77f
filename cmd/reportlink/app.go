package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/reportlink/internal/config"
	"github.com/ehr/reportlink/internal/domain/linkage"
	"github.com/ehr/reportlink/internal/domain/patient"
	"github.com/ehr/reportlink/internal/domain/report"
	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/db"
	"github.com/ehr/reportlink/internal/platform/lock"
	"github.com/ehr/reportlink/internal/platform/pdftext"
)

// ingestLockKey is the Redis key shared by every process writing the store.
const ingestLockKey = "reportlink:patients:lock"

// app holds everything a command needs. close releases the pool and the
// Redis client.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	patients *patient.Service
	linkage  *linkage.Service
	users    *auth.UserStore
	tokens   *auth.TokenIssuer
	checks   []db.Check
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// matchConfig turns the MATCH_* and DOB_ORDER settings into a matcher
// configuration.
func matchConfig(cfg *config.Config) (linkage.MatchConfig, error) {
	sim, err := linkage.SimilarityFor(cfg.MatchSimilarity)
	if err != nil {
		return linkage.MatchConfig{}, err
	}
	dob, err := linkage.ParseDOBPolicy(cfg.DOBOrder)
	if err != nil {
		return linkage.MatchConfig{}, err
	}
	return linkage.MatchConfig{
		Weights: linkage.Weights{
			MRN:  cfg.MatchWeightMRN,
			Name: cfg.MatchWeightName,
			DOB:  cfg.MatchWeightDOB,
		},
		AcceptFloor:    cfg.MatchAcceptFloor,
		HighConfidence: cfg.MatchHighConfidence,
		Similarity:     sim,
		DOB:            dob,
		Renormalize:    cfg.MatchRenormalize,
	}, nil
}

func parseOptions(cfg *config.Config) report.Options {
	return report.Options{
		LegacyOBXGuard: cfg.HL7LegacyOBXGuard,
		IDs:            report.IDGeneratorFor(cfg.ReportIDMode),
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg, logger: newLogger(cfg)}

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.checks = append(a.checks, db.Check{Name: "store", Pinger: repo})

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	mc, err := matchConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	matcher, err := linkage.NewMatcher(mc)
	if err != nil {
		a.close()
		return nil, err
	}

	// A nil interface, not a nil *Extractor, so the PDF parser reports the
	// missing dependency.
	var extractor report.TextExtractor
	if ex, err := pdftext.New(cfg.UnidocLicenseKey); err == nil {
		extractor = ex
	} else if !errors.Is(err, pdftext.ErrNoLicense) {
		a.logger.Warn().Err(err).Msg("pdf extraction disabled")
	}

	a.patients = patient.NewService(repo, locker, a.logger.With().Str("component", "patient").Logger())
	a.linkage = linkage.NewService(repo, matcher, locker, extractor, parseOptions(cfg),
		a.logger.With().Str("component", "linkage").Logger())
	a.users = auth.NewUserStore(cfg.UsersFile(), cfg.SessionLogFile())
	a.tokens = auth.NewTokenIssuer([]byte(cfg.AuthSigningKey), cfg.AuthTokenTTL)
	return a, nil
}

func (a *app) openRepository(ctx context.Context) (patient.Repository, error) {
	if a.cfg.Store != "postgres" {
		return patient.NewJSONRepo(a.cfg.PatientsFile()), nil
	}
	pool, err := openPool(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	return patient.NewPGRepo(pool), nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

func (a *app) openLocker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.RedisURL == "" {
		return lock.NewMutexLocker(), nil
	}
	client, err := lock.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { client.Close() })
	a.checks = append(a.checks, db.Check{Name: "redis", Pinger: redisPinger{client}})
	return lock.NewRedisLocker(client, ingestLockKey, 30*time.Second), nil
}

type redisPinger struct{ client *redis.Client }

func (r redisPinger) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// session verifies the --token flag, falling back to REPORTLINK_TOKEN.
func (a *app) session(token string) (auth.Session, error) {
	if token == "" {
		token = os.Getenv("REPORTLINK_TOKEN")
	}
	if token == "" {
		return auth.Session{}, fmt.Errorf("%w: run 'reportlink login' and pass --token or set REPORTLINK_TOKEN", auth.ErrUnauthenticated)
	}
	sess, err := a.tokens.Verify(token)
	if err != nil {
		return auth.Session{}, fmt.Errorf("%w: %v", auth.ErrUnauthenticated, err)
	}
	return sess, nil
}
