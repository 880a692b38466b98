package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/console"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/logging"
	"github.com/conorfennell/knolstudy/internal/playback"
	"github.com/conorfennell/knolstudy/internal/remote"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/study"
	ksync "github.com/conorfennell/knolstudy/internal/sync"
	"github.com/conorfennell/knolstudy/internal/videoquiz"
	"github.com/conorfennell/knolstudy/internal/web"
)

const usage = `Usage: knolstudy <command> [flags]

Commands:
  serve               Run the HTTP API
  sync                Reconcile the database with every source
  add-source <path>   Register a local directory or git URL
  sources             List registered sources
  study --deck ID     Study a deck's due cards in the terminal
  watch --lesson ID   Play a lesson with its quizzes in the terminal

Run 'knolstudy <command> --help' for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type env struct {
	cfg *config.Config
	log *zap.Logger
	in  io.Reader
	out io.Writer
}

type command struct {
	flags func(*pflag.FlagSet)
	run   func(ctx context.Context, e env, flags *pflag.FlagSet) error
}

var commands = map[string]command{
	"serve":      {flags: serveFlags, run: runServe},
	"sync":       {flags: syncFlags, run: runSync},
	"add-source": {flags: syncFlags, run: runAddSource},
	"sources":    {run: runSources},
	"study":      {flags: studyFlags, run: runStudy},
	"watch":      {flags: watchFlags, run: runWatch},
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	flags := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	flags.SetOutput(out)
	config.RegisterFlags(flags)
	if cmd.flags != nil {
		cmd.flags(flags)
	}
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	return cmd.run(ctx, env{cfg: cfg, log: log, in: in, out: out}, flags)
}

func serveFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "Address for the HTTP API to listen on")
	flags.String("repos-dir", "", "Directory for git source checkouts")
	flags.Bool("sync", false, "Sync every source before serving")
}

func syncFlags(flags *pflag.FlagSet) {
	flags.String("repos-dir", "", "Directory for git source checkouts")
}

func clientFlags(flags *pflag.FlagSet) {
	flags.String("base-url", "", "Base URL of the knolstudy API")
	flags.Duration("timeout", 0, "Timeout for API requests")
}

func studyFlags(flags *pflag.FlagSet) {
	clientFlags(flags)
	flags.String("deck", "", "ID of the deck to study")
}

func watchFlags(flags *pflag.FlagSet) {
	clientFlags(flags)
	flags.String("lesson", "", "ID of the lesson to watch")
	flags.Duration("duration", 2*time.Minute, "Length of the lesson video")
	flags.Float64("speed", 1, "Playback speed")
	flags.Duration("tick", 250*time.Millisecond, "Interval between playback time updates")
	flags.Float64("trigger-window", 0, "Seconds after its timestamp a quiz can still trigger")
}

func openStore(e env) (*storage.DB, *ksync.Syncer, error) {
	db, err := storage.Open(e.cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.log.Debug("database opened", zap.String("path", e.cfg.DB))
	syncer := ksync.New(db, gitsource.New(e.log, nil), e.cfg.ReposDir, e.log)
	return db, syncer, nil
}

func runServe(ctx context.Context, e env, flags *pflag.FlagSet) error {
	db, syncer, err := openStore(e)
	if err != nil {
		return err
	}
	defer db.Close()

	if doSync, _ := flags.GetBool("sync"); doSync {
		if _, err := syncer.RunSync(ctx); err != nil {
			return err
		}
	}

	handler := web.NewServer(db, syncer,
		web.WithLogger(e.log),
		web.WithSchedule(e.cfg.Schedule),
		web.WithAllowedOrigins(e.cfg.Server.AllowedOrigins),
	)
	srv := &http.Server{
		Addr:              e.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		e.log.Info("server starting", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	e.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func runSync(ctx context.Context, e env, flags *pflag.FlagSet) error {
	db, syncer, err := openStore(e)
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := syncer.RunSync(ctx)
	if err != nil {
		return err
	}
	for _, r := range reports {
		fmt.Fprintf(e.out, "%s: %d cards (%d new, %d removed), %d quizzes (%d removed), %d errors\n",
			r.Path, r.Cards, r.CardsAdded, r.CardsDeleted, r.Quizzes, r.QuizzesDeleted, len(r.Errors))
		for _, perr := range r.Errors {
			fmt.Fprintf(e.out, "  - %v\n", perr)
		}
	}
	return nil
}

func runAddSource(ctx context.Context, e env, flags *pflag.FlagSet) error {
	if flags.NArg() != 1 {
		return errors.New("add-source takes exactly one path or git URL")
	}
	db, syncer, err := openStore(e)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := syncer.AddSource(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Source %d added. Run 'knolstudy sync' to import it.\n", id)
	return nil
}

func runSources(ctx context.Context, e env, flags *pflag.FlagSet) error {
	db, err := storage.Open(e.cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return err
	}
	for _, s := range sources {
		scanned := "never"
		if s.LastScanned.Valid {
			scanned = s.LastScanned.Time.Local().Format(time.DateTime)
		}
		fmt.Fprintf(e.out, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
	}
	return nil
}

func runStudy(ctx context.Context, e env, flags *pflag.FlagSet) error {
	deckID, _ := flags.GetString("deck")
	if deckID == "" {
		return errors.New("--deck is required")
	}
	client := remote.New(e.cfg.Client.BaseURL, e.cfg.Client.Timeout, e.log)
	engine := study.NewEngine(client, study.WithLogger(e.log))
	_, err := console.Study(ctx, engine, deckID, e.in, e.out)
	return err
}

func runWatch(ctx context.Context, e env, flags *pflag.FlagSet) error {
	lessonID, _ := flags.GetString("lesson")
	if lessonID == "" {
		return errors.New("--lesson is required")
	}
	duration, _ := flags.GetDuration("duration")
	speed, _ := flags.GetFloat64("speed")
	tick, _ := flags.GetDuration("tick")
	if duration <= 0 || tick <= 0 {
		return errors.New("--duration and --tick must be positive")
	}

	client := remote.New(e.cfg.Client.BaseURL, e.cfg.Client.Timeout, e.log)
	player := playback.New(duration.Seconds(), playback.WithSpeed(speed))
	engine := videoquiz.NewEngine(client, player,
		videoquiz.WithLogger(e.log),
		videoquiz.WithTriggerWindow(e.cfg.Quiz.TriggerWindow),
		videoquiz.OnQuizTriggered(func(q domain.VideoQuiz) {
			e.log.Debug("quiz shown", zap.String("quiz", q.ID), zap.Float64("timestamp", q.Timestamp))
		}),
	)
	_, err := console.Watch(ctx, engine, player, lessonID, tick, e.in, e.out)
	return err
}
