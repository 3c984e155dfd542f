package commands

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/simuwork/internal/app"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/demo"
	"github.com/dotcommander/simuwork/internal/session"
)

// speedUpFactor is what the s key applies.
const speedUpFactor = 5.0

// NewPlayCmd creates the play command.
func NewPlayCmd() *cobra.Command {
	var (
		flags     playbackFlags
		colorMode string
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the demo in real time in the terminal",
		Long: `Play the demo in real time. Type a key and press Enter:
  s  speed up 5x
  n  skip to the next narration
  p  pause / resume
  r  restart
  q  quit
  ?<question>  ask the code assistant about the code`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd.Flags(), &flags)
			if err != nil {
				return cmdErr(err)
			}
			if cmd.Flags().Changed("color") {
				s.Color = colorMode
			}
			if noColor {
				s.Color = string(demo.ColorNever)
			}
			mode, err := demo.ParseColorMode(s.Color)
			if err != nil {
				return cmdErr(err)
			}
			return runPlay(cmd.Context(), s, mode, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&colorMode, "color", "", "Colour output: auto, always, never (default: config color)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colour output")
	return cmd
}

// playLogger keeps info-level lifecycle logs off the terminal the demo is
// drawing on. Debug and trace still go through.
func playLogger(level string) *slog.Logger {
	lvl := parseLevel(level)
	if lvl >= slog.LevelInfo {
		lvl = slog.LevelWarn
	}
	return newLogger(lvl, os.Stderr)
}

func runPlay(ctx context.Context, s app.Settings, mode demo.ColorMode, in io.Reader, out io.Writer) error {
	rt := clock.NewRealtime()
	opts, err := sessionOptions(s, rt, playLogger(s.LogLevel))
	if err != nil {
		return cmdErr(err)
	}
	sess := session.New(opts)
	defer sess.Close()

	r := demo.NewRenderer(out, mode)
	detach := r.Attach(sess.Store, sess.Guide, sess.Bus)
	defer detach()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	if f, ok := in.(*os.File); !ok || isatty.IsTerminal(f.Fd()) {
		go readLines(in, lines, ctx.Done())
	}
	restarted := make(chan struct{}, 1)

	// The loop is not running yet, so starting here is still single-threaded.
	r.PrintBanner("SimuWork: Payment API incident")
	r.PrintKeys()
	sess.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := rt.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					lines = nil
					continue
				}
				if keyOf(line) == 'q' {
					cancel()
					return nil
				}
				rt.Do(func() { handleInput(line, sess, r, restarted) })
			}
		}
	})
	g.Go(func() error {
		for {
			done := sess.Done()
			select {
			case <-gctx.Done():
				return nil
			case <-restarted:
				continue
			case <-done:
				printed := make(chan struct{})
				rt.Do(func() {
					r.PrintReport(sess.Report())
					close(printed)
				})
				select {
				case <-printed:
				case <-gctx.Done():
				}
				cancel()
				return nil
			}
		}
	})
	return g.Wait()
}

// readLines sends every non-empty input line, trimmed, until EOF or done.
func readLines(in io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-done:
			return
		}
	}
}

// keyOf returns the lowercased first letter of an input line.
func keyOf(line string) rune {
	c, _ := utf8.DecodeRuneInString(line)
	if c == utf8.RuneError {
		return 0
	}
	return unicode.ToLower(c)
}

// handleInput routes one input line: "?question" goes to the code
// assistant, anything else is a key. It runs on the clock loop.
func handleInput(line string, sess *session.Session, r *demo.Renderer, restarted chan<- struct{}) {
	if question, ok := strings.CutPrefix(line, "?"); ok {
		question = strings.TrimSpace(question)
		if question == "" {
			r.PrintKeys()
			return
		}
		sess.AskCodeQuestion(question)
		return
	}
	handleKey(keyOf(line), sess, r, restarted)
}

// handleKey applies one interactive command. It runs on the clock loop.
func handleKey(k rune, sess *session.Session, r *demo.Renderer, restarted chan<- struct{}) {
	switch k {
	case 's':
		sess.Timeline.SpeedUp(speedUpFactor)
		r.PrintProgress(sess.Timeline.Progress())
	case 'n':
		if !sess.Timeline.SkipToNextNarration() {
			r.PrintProgress(sess.Timeline.Progress())
		}
	case 'p':
		sess.TogglePause()
		r.PrintProgress(sess.Timeline.Progress())
	case 'r':
		sess.Restart()
		select {
		case restarted <- struct{}{}:
		default:
		}
		r.PrintBanner("Restarted")
	default:
		r.PrintKeys()
	}
}
