package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/domino14/bracketsim/checkpoint"
	"github.com/domino14/bracketsim/config"
	"github.com/domino14/bracketsim/outcomes"
	"github.com/domino14/bracketsim/tourney"
)

type ShellController struct {
	l          *readline.Instance
	out        io.Writer
	config     *config.Config
	gitVersion string

	pool     *tourney.Pool
	poolPath string
	lastDist *outcomes.Distribution
	store    *checkpoint.Store

	// cancel stops whatever command is running.
	mu     sync.Mutex
	cancel context.CancelFunc
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func newController(cfg *config.Config, gitVersion string, out io.Writer) *ShellController {
	return &ShellController{
		out:        out,
		config:     cfg,
		gitVersion: gitVersion,
	}
}

func NewShellController(cfg *config.Config, gitVersion string) *ShellController {
	sc := newController(cfg, gitVersion, os.Stdout)
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mbracketsim>\033[0m ",
		HistoryFile:     "/tmp/bracketsim-readline.tmp",
		AutoComplete:    NewShellCompleter(sc),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	sc.l = l
	sc.out = l.Stdout()
	if p := cfg.GetString(config.ConfigPoolPath); p != "" {
		if err := sc.loadPool(p); err != nil {
			log.Err(err).Str("path", p).Msg("could-not-load-pool")
		}
	}
	return sc
}

func (sc *ShellController) showMessage(m string) {
	io.WriteString(sc.out, m)
	if !strings.HasSuffix(m, "\n") {
		io.WriteString(sc.out, "\n")
	}
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

// commandContext makes a context the next Interrupt cancels.
func (sc *ShellController) commandContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = log.Logger.WithContext(ctx)
	sc.mu.Lock()
	sc.cancel = cancel
	sc.mu.Unlock()
	return ctx, func() {
		sc.mu.Lock()
		sc.cancel = nil
		sc.mu.Unlock()
		cancel()
	}
}

// Interrupt cancels the running command. It reports false if nothing was
// running.
func (sc *ShellController) Interrupt() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.cancel == nil {
		return false
	}
	sc.cancel()
	sc.cancel = nil
	return true
}

func (sc *ShellController) dispatch(ctx context.Context, cmd *shellcmd) (*Response, error) {
	switch cmd.cmd {
	case "exit":
		return nil, errExit
	case "help":
		return sc.help(cmd)
	case "load":
		return sc.load(cmd)
	case "odds":
		return sc.odds(ctx, cmd)
	case "game":
		return sc.game(ctx, cmd)
	case "margins":
		return sc.margins(cmd)
	case "optimize":
		return sc.optimize(ctx, cmd)
	case "set":
		return sc.set(cmd)
	default:
		return nil, fmt.Errorf("unknown command %q; try help", cmd.cmd)
	}
}

// executeLine runs one command and prints its result. It reports whether
// the shell should quit.
func (sc *ShellController) executeLine(line string) bool {
	cmd, err := extractFields(line)
	if errors.Is(err, errNoData) {
		return false
	}
	if err != nil {
		sc.showError(err)
		return false
	}
	ctx, done := sc.commandContext()
	defer done()
	resp, err := sc.dispatch(ctx, cmd)
	if errors.Is(err, errExit) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		sc.showMessage("stopped")
	} else if err != nil {
		sc.showError(err)
	}
	if resp != nil && resp.message != "" {
		sc.showMessage(resp.message)
	}
	return false
}

// Execute runs a single command line non-interactively.
func (sc *ShellController) Execute(sig chan os.Signal, line string) {
	sc.executeLine(line)
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()
	io.WriteString(sc.out, "bracketsim "+sc.gitVersion+"; type help for commands\n")
	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		if sc.executeLine(strings.TrimSpace(line)) {
			sig <- syscall.SIGINT
			break
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

func (sc *ShellController) Cleanup() {
	sc.Interrupt()
	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			log.Err(err).Msg("closing-checkpoint-store")
		}
	}
}
