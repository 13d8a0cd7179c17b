package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/bracketsim/bracket"
	"github.com/domino14/bracketsim/checkpoint"
	"github.com/domino14/bracketsim/config"
	"github.com/domino14/bracketsim/optimizer"
	"github.com/domino14/bracketsim/outcomes"
	"github.com/domino14/bracketsim/report"
	"github.com/domino14/bracketsim/standings"
	"github.com/domino14/bracketsim/tourney"
)

var errNoPool = errors.New("no pool loaded; use load <pool.yaml>")

// settable lists the keys set may change and how to parse them.
var settable = map[string]func(string) (any, error){
	config.ConfigCrossProductLimit: parseInt,
	config.ConfigSampleBudget:      parseInt,
	config.ConfigSeed: func(s string) (any, error) {
		return strconv.ParseUint(s, 10, 64)
	},
	config.ConfigParallelDepth: parseInt,
	config.ConfigMergeOthers: func(s string) (any, error) {
		return strconv.ParseBool(s)
	},
	config.ConfigThreads:    parseInt,
	config.ConfigReplicates: parseInt,
	config.ConfigConfidence: func(s string) (any, error) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && (f <= 0 || f >= 100) {
			return nil, errors.New("confidence must be between 0 and 100")
		}
		return f, err
	},
	config.ConfigOptimizeLog: func(s string) (any, error) { return s, nil },
}

func parseInt(s string) (any, error) {
	return strconv.Atoi(s)
}

func (sc *ShellController) help(cmd *shellcmd) (*Response, error) {
	var sb strings.Builder
	if cmd.args == nil {
		usage(&sb)
	} else {
		usageTopic(&sb, cmd.args[0])
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) loadPool(path string) error {
	pool, err := tourney.LoadPool(path)
	if err != nil {
		return err
	}
	sc.pool = pool
	sc.poolPath = path
	sc.lastDist = nil
	log.Info().Str("path", path).Int("entries", len(pool.Entries)).
		Int("undecided", len(pool.Bracket.Undecided())).Msg("loaded-pool")
	return nil
}

func (sc *ShellController) load(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: load <pool.yaml>")
	}
	if err := sc.loadPool(cmd.args[0]); err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("loaded %d entries, %d games left to play",
		len(sc.pool.Entries), len(sc.pool.Bracket.Undecided()))), nil
}

func (sc *ShellController) engine(opts ...outcomes.Option) (*outcomes.Engine, error) {
	if sc.pool == nil {
		return nil, errNoPool
	}
	opts = append(sc.config.EngineOptions(), opts...)
	return outcomes.NewEngine(sc.pool.Bracket, sc.pool.Table, sc.pool.Entries, opts...)
}

func gameOption(cmd *shellcmd, def int) (int, error) {
	g, err := cmd.options.IntDefault("game", def)
	if err != nil {
		return 0, err
	}
	if g < 0 || g >= bracket.NumGames {
		return 0, fmt.Errorf("game %d out of range", g)
	}
	return g, nil
}

func (sc *ShellController) odds(ctx context.Context, cmd *shellcmd) (*Response, error) {
	game, err := gameOption(cmd, bracket.NumGames-1)
	if err != nil {
		return nil, err
	}
	replicates, err := cmd.options.IntDefault("replicates", sc.config.GetInt(config.ConfigReplicates))
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	if replicates > 1 {
		base := sc.config.GetUint64(config.ConfigSeed)
		est, err := standings.Replicate(ctx, replicates, sc.config.GetInt(config.ConfigThreads), func(ctx context.Context, run int) (*standings.Standings, error) {
			e, err := sc.engine(outcomes.WithSeed(base + uint64(run) + 1))
			if err != nil {
				return nil, err
			}
			d, err := e.Compute(ctx, game)
			if err != nil {
				return nil, err
			}
			if run == 0 {
				sc.lastDist = d
			}
			return standings.Aggregate(d, sc.pool.Entries), nil
		})
		if err != nil {
			return nil, err
		}
		report.Estimates(&sb, est, sc.config.GetFloat64(config.ConfigConfidence))
	} else {
		e, err := sc.engine()
		if err != nil {
			return nil, err
		}
		d, err := e.Compute(ctx, game)
		if err != nil {
			return nil, err
		}
		sc.lastDist = d
		report.Standings(&sb, standings.Aggregate(d, sc.pool.Entries))
	}
	if cmd.options.Bool("histogram") {
		if err := report.MarginHistogram(&sb, standings.Margins(sc.lastDist), 10, 40); err != nil {
			return nil, err
		}
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) game(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: game <index>")
	}
	g, err := strconv.Atoi(cmd.args[0])
	if err != nil {
		return nil, err
	}
	if g < 0 || g >= bracket.NumGames {
		return nil, fmt.Errorf("game %d out of range", g)
	}
	top, err := cmd.options.IntDefault("top", 3)
	if err != nil {
		return nil, err
	}
	e, err := sc.engine()
	if err != nil {
		return nil, err
	}
	d, err := e.Compute(ctx, g)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	report.Distribution(&sb, sc.pool.Bracket, d, top)
	report.Standings(&sb, standings.Aggregate(d, sc.pool.Entries))
	return msg(sb.String()), nil
}

func (sc *ShellController) margins(cmd *shellcmd) (*Response, error) {
	if sc.lastDist == nil {
		return nil, errors.New("run odds first")
	}
	bins, err := cmd.options.IntDefault("bins", 10)
	if err != nil {
		return nil, err
	}
	width, err := cmd.options.IntDefault("width", 40)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, m := range standings.Margins(sc.lastDist) {
		fmt.Fprintf(&sb, "%4d %8.3f%%\n", m.Points, 100*m.Prob)
	}
	if err := report.MarginHistogram(&sb, standings.Margins(sc.lastDist), bins, width); err != nil {
		return nil, err
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) entryIndex(arg string) (int, error) {
	for i, e := range sc.pool.Entries {
		if strings.EqualFold(e.Name, arg) {
			return i, nil
		}
	}
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(sc.pool.Entries) {
		return 0, fmt.Errorf("no entry %q", arg)
	}
	return i, nil
}

func (sc *ShellController) checkpointStore() (*checkpoint.Store, error) {
	if sc.store != nil {
		return sc.store, nil
	}
	s, err := checkpoint.Open(sc.config.GetString(config.ConfigCheckpointPath))
	if err != nil {
		return nil, err
	}
	sc.store = s
	return s, nil
}

func (sc *ShellController) optimize(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if sc.pool == nil {
		return nil, errNoPool
	}
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: optimize <entry> [-strategy single|double|enum]")
	}
	target, err := sc.entryIndex(cmd.args[0])
	if err != nil {
		return nil, err
	}
	threads, err := cmd.options.IntDefault("threads", sc.config.GetInt(config.ConfigThreads))
	if err != nil {
		return nil, err
	}
	obj := optimizer.NewObjective(sc.pool.Bracket, sc.pool.Table, sc.pool.Entries, sc.config.EngineOptions()...)
	obj.Seed = sc.config.GetUint64(config.ConfigSeed)
	name := sc.pool.Entries[target].Name

	strategy := optimizer.Strategy(cmd.options.String("strategy"))
	if strategy == "" {
		strategy = optimizer.StrategySingle
	}
	var sb strings.Builder
	switch strategy {
	case optimizer.StrategySingle, optimizer.StrategyDouble:
		opt := &optimizer.Optimizer{Objective: obj, Threads: threads}
		var res *optimizer.Result
		if strategy == optimizer.StrategySingle {
			res, err = opt.SingleFlip(ctx, target)
		} else {
			res, err = opt.DoubleFlip(ctx, target)
		}
		if err != nil {
			return nil, err
		}
		report.Optimization(&sb, sc.pool.Bracket, name, res)
	case optimizer.StrategyEnum:
		best, err := sc.enumerate(ctx, obj, target, name, cmd.options.Bool("resume"))
		if best != nil {
			report.Candidate(&sb, sc.pool.Bracket, best)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) enumerate(ctx context.Context, obj *optimizer.Objective, target int,
	name string, resume bool) (*optimizer.Candidate, error) {

	logger := zerolog.Ctx(ctx)
	store, err := sc.checkpointStore()
	if err != nil {
		return nil, err
	}
	enum, err := optimizer.NewEnumerator(obj, target)
	if err != nil {
		return nil, err
	}
	var runID int64
	if resume {
		id, ok, err := store.LatestRun(name, string(optimizer.StrategyEnum), enum.Space())
		if err != nil {
			return nil, err
		}
		if ok {
			pos, err := store.LastPosition(id)
			if err != nil {
				return nil, err
			}
			runID = id
			enum.Seek(pos)
			logger.Info().Int64("run", id).Uint64("position", pos).Msg("resuming-enumeration")
		} else {
			logger.Info().Str("entry", name).Msg("no-matching-run-starting-fresh")
		}
	}
	if runID == 0 {
		if runID, err = store.StartRun(name, string(optimizer.StrategyEnum), enum.Space()); err != nil {
			return nil, err
		}
	}
	sinks := optimizer.MultiSink{optimizer.LogSink{}, &checkpoint.RunSink{Store: store, RunID: runID}}
	if path := sc.config.GetString(config.ConfigOptimizeLog); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		ys := optimizer.NewYAMLSink(f, sc.pool.Bracket)
		defer ys.Close()
		sinks = append(sinks, ys)
	}
	best, err := optimizer.SearchBest(ctx, enum, sinks)
	// A resumed run's best may have been found before the resume point.
	stored, serr := store.Best(runID)
	if serr != nil {
		logger.Err(serr).Int64("run", runID).Msg("reading-stored-best")
	} else if stored != nil && (best == nil || stored.Prob > best.Prob) {
		best = &optimizer.Candidate{
			Position: stored.Position,
			Choices:  stored.Choices,
			Picks:    optimizer.PicksFromChoices(sc.pool.Bracket, stored.Choices),
			Prob:     stored.Prob,
		}
	}
	return best, err
}

func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		keys := make([]string, 0, len(settable))
		for k := range settable {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&sb, "%-22s %v\n", k, sc.config.Get(k))
		}
		return msg(sb.String()), nil
	}
	key := cmd.args[0]
	parse, ok := settable[key]
	if !ok {
		return nil, fmt.Errorf("unknown setting %q", key)
	}
	if len(cmd.args) == 1 {
		return msg(fmt.Sprintf("%v", sc.config.Get(key))), nil
	}
	val, err := parse(cmd.args[1])
	if err != nil {
		return nil, err
	}
	sc.config.Set(key, val)
	return msg(fmt.Sprintf("set %s to %v", key, val)), nil
}
