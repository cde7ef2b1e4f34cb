package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"redpen/internal/adapters/scm"
	"redpen/internal/modkit"
	"redpen/internal/modkit/module"
	"redpen/internal/modkit/repokit"
	"redpen/internal/platform/config"
	"redpen/internal/platform/logger"
	"redpen/internal/platform/store"

	analysisdom "redpen/internal/services/analysis/domain"
	analysismod "redpen/internal/services/analysis/module"
	batchdom "redpen/internal/services/batch/domain"
	batchmod "redpen/internal/services/batch/module"
	learningmod "redpen/internal/services/learning/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

// readSubjects merges -subjects CSV with an optional one-per-line file
func readSubjects(csv, path string) ([]string, error) {
	var out []string
	for s := range strings.SplitSeq(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if s := strings.TrimSpace(sc.Text()); s != "" && !strings.HasPrefix(s, "#") {
				out = append(out, s)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()
	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", false),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "redpen",
			ClientTag:  "batch",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	repokit.MustGuard(context.Background(), st)
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fSubjects = flag.String("subjects", "", "comma-separated subject ids to analyze")
		fFile     = flag.String("file", "", "path to a file with one subject id per line")
		fConc     = flag.Int("concurrency", 0, "per-job item concurrency (0 = CPU cores)")
		fDryRun   = flag.Bool("dryrun", false, "analyze without posting findings or summaries")
		fPoll     = flag.Duration("poll", 2*time.Second, "status poll interval")
	)
	flag.Parse()

	subjects, err := readSubjects(*fSubjects, *fFile)
	if err != nil {
		l.Panic().Err(err).Msg("reading subjects failed")
	}
	if len(subjects) == 0 {
		l.Panic().Msg("must provide -subjects or -file")
	}

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	// Surface knobs to modules that read FromConfig
	if *fConc > 0 {
		mustSetEnv("CORE_BATCH_ITEM_CONCURRENCY", strconv.Itoa(*fConc))
	}
	if *fDryRun {
		mustSetEnv("CORE_ANALYSIS_DRY_RUN", "true")
	}

	learning := learningmod.New(deps)
	lports := learning.Ports().(learningmod.Ports)
	changes := scm.NewClient(scm.FromConfig(deps.Cfg))

	analysis := analysismod.New(deps, modkit.WithPorts(analysisdom.Ports{
		Changes:  changes,
		Filter:   lports.Filter,
		Recorder: lports.Recorder,
	}))
	runner := analysis.Ports().(analysismod.Ports).Runner

	bm := batchmod.New(deps, runner)
	module.Register(learning.Name(), learning.Ports())
	module.Register(analysis.Name(), analysis.Ports())
	module.Register(bm.Name(), bm.Ports())

	ctx := context.Background()
	engine := bm.Engine()
	if err := engine.Start(ctx); err != nil {
		l.Panic().Err(err).Msg("batch engine start failed")
	}
	defer engine.Stop()

	jobID, err := engine.Submit(ctx, subjects)
	if err != nil {
		l.Fatal().Err(err).Msg("batch submit failed")
	}
	l.Info().Str("job", jobID).Int("subjects", len(subjects)).Msg("batch job submitted")

	for {
		time.Sleep(*fPoll)
		j, err := engine.Status(ctx, jobID)
		if err != nil {
			l.Fatal().Err(err).Str("job", jobID).Msg("batch status failed")
		}
		l.Info().
			Str("job", jobID).
			Str("status", string(j.Status)).
			Int("processed", j.Processed).
			Int("succeeded", j.Succeeded).
			Int("failed", j.Failed).
			Msg("batch progress")
		if !j.Status.Terminal() {
			continue
		}
		if j.Status == batchdom.StatusFailed {
			l.Fatal().Str("job", jobID).Str("err", j.ErrorMessage).Msg("batch job failed")
		}
		return
	}
}
