package crouton

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// ArgParser is a trivial positional/flag argument cursor (§6): `first()`
// peeks, `popFirst()` consumes, `popFlag()` consumes iff the head begins
// with "-". Unlike a full flag library, it makes no assumption about flag
// shape beyond the leading dash, matching §6's "trivial sequence".
type ArgParser struct {
	args []string
}

// NewArgParser wraps args (conventionally os.Args[1:]) for sequential
// consumption.
func NewArgParser(args []string) *ArgParser {
	cp := make([]string, len(args))
	copy(cp, args)
	return &ArgParser{args: cp}
}

// First returns the next unconsumed argument without consuming it, and
// whether one remains.
func (p *ArgParser) First() (string, bool) {
	if len(p.args) == 0 {
		return "", false
	}
	return p.args[0], true
}

// PopFirst consumes and returns the next argument, if any.
func (p *ArgParser) PopFirst() (string, bool) {
	v, ok := p.First()
	if ok {
		p.args = p.args[1:]
	}
	return v, ok
}

// PopFlag consumes and returns the next argument iff it begins with "-".
func (p *ArgParser) PopFlag() (string, bool) {
	v, ok := p.First()
	if !ok || !strings.HasPrefix(v, "-") {
		return "", false
	}
	p.args = p.args[1:]
	return v, true
}

// Remaining returns every argument not yet consumed.
func (p *ArgParser) Remaining() []string {
	return p.args
}

// Result is what a Main entry function returns: either a resolved exit
// code (via a Future) or a detached Task that runs the loop until
// something else stops it (§6's "runs forever or until stopped").
type Result struct {
	exitCode *Future[int]
	task     *Task
}

// ExitCode wraps a Future[int] whose resolved value becomes the process's
// exit status; an error instead logs and exits 1.
func ExitCode(f *Future[int]) Result { return Result{exitCode: f} }

// RunForever wraps a detached Task; the process keeps running the loop
// until SIGINT or SIGTERM cancels Main's signal context.
func RunForever(t *Task) Result { return Result{task: t} }

// Main is the process entry point (§6): it constructs a Scheduler,
// installs SIGINT/SIGTERM-triggered graceful shutdown, configures logging
// from the environment (log level per logger name, CLICOLOR_FORCE, TERM),
// runs fn as a suspendable function, and drives the scheduler to
// completion, returning the process exit code.
//
// fn receives the running Scheduler's first TaskContext and the parsed
// arguments, and returns a Result describing how the process should end.
func Main(args []string, fn func(tc *TaskContext, args *ArgParser) Result) int {
	log := loggerFromEnvironment()

	sched, err := New(WithLogger(log))
	if err != nil {
		log.Err().Log("failed to construct scheduler: " + err.Error())
		return 1
	}
	defer sched.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resultCh := make(chan Result, 1)
	NewTask(sched, func(tc *TaskContext) error {
		resultCh <- fn(tc, NewArgParser(args))
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	result := <-resultCh

	if result.exitCode == nil {
		// RunForever: the loop keeps going until ctx is cancelled
		// (SIGINT/SIGTERM) or something calls Shutdown; running out of
		// work does not stop it.
		<-done
		return 0
	}

	// ExitCode: once the Future settles, request a graceful shutdown so
	// the loop stops driving further work, then read the result.
	exitCh := make(chan int, 1)
	NewTask(sched, func(tc *TaskContext) error {
		v, err := result.exitCode.Await(tc)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = sched.Shutdown(shutdownCtx)
		if err != nil {
			log.Err().Log(err.Error())
			exitCh <- 1
		} else {
			exitCh <- v
		}
		return nil
	})

	<-done
	select {
	case v := <-exitCh:
		return v
	default:
		return 1
	}
}

const shutdownGrace = 5 * time.Second

// logLevelEnvVar is the variable holding the "name1=level1,name2=level2"
// overrides, the Go-idiomatic stand-in for the original's SPDLOG_LEVEL
// (read via spdlog::cfg::load_env_levels() in Logging.cc). Crouton's own
// logger is a single process-wide instance, so it is addressed under the
// fixed name loggerName rather than one of several named sub-loggers.
const logLevelEnvVar = "CROUTON_LOG_LEVEL"

// loggerName is the name under which loggerFromEnvironment's own level is
// looked up in logLevelEnvVar's overrides (e.g. CROUTON_LOG_LEVEL=crouton=debug).
const loggerName = "crouton"

// loggerFromEnvironment builds a logiface logger configured from the
// process environment, grounded on the original's Logging.cc: a log-level
// variable of the form "name1=level1,name2=level2" (per-logger-name
// overrides) selects the logger's Level, and CLICOLOR_FORCE/TERM select
// whether stumpy's output is colorized.
func loggerFromEnvironment() *logiface.Logger[*stumpy.Event] {
	opts := []logiface.Option[*stumpy.Event]{
		stumpy.WithStumpy(stumpy.WithWriter(writerFromEnvironment())),
	}
	if levels := parseLogLevels(os.Getenv(logLevelEnvVar)); levels != nil {
		if spec, ok := levels[loggerName]; ok {
			if level, ok := parseLevel(spec); ok {
				opts = append(opts, logiface.WithLevel[*stumpy.Event](level))
			}
		}
	}
	return stumpy.L.New(opts...)
}

// writerFromEnvironment picks stumpy's output writer based on colorEnabled:
// stderr directly, or stderr wrapped in a colorWriter, since stumpy itself
// has no notion of color (it only ever emits plain JSON lines).
func writerFromEnvironment() io.Writer {
	if !colorEnabled() {
		return os.Stderr
	}
	return &colorWriter{out: os.Stderr}
}

// colorEnabled reports whether output should be colorized per
// CLICOLOR_FORCE/TERM (§6's consumed environment variables).
func colorEnabled() bool {
	color := os.Getenv("TERM") != "" && os.Getenv("TERM") != "dumb"
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			color = b
		}
	}
	return color
}

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
	ansiReset  = "\x1b[0m"
)

// colorWriter wraps an io.Writer, bracketing each write in an ANSI color
// selected by the level field stumpy embedded in it, the same
// err/warn/debug color split the original's Logger::_writeHeader applies
// via io::TTY::err, adapted here as a decorating Writer instead of
// per-call color selection at the log call site.
type colorWriter struct {
	out io.Writer
}

func (w *colorWriter) Write(p []byte) (int, error) {
	color := levelColor(p)
	if color == "" {
		return w.out.Write(p)
	}
	if _, err := io.WriteString(w.out, color); err != nil {
		return 0, err
	}
	n, err := w.out.Write(p)
	if err != nil {
		return n, err
	}
	_, err = io.WriteString(w.out, ansiReset)
	return n, err
}

func levelColor(line []byte) string {
	switch {
	case bytes.Contains(line, []byte(`"lvl":"emerg"`)),
		bytes.Contains(line, []byte(`"lvl":"alert"`)),
		bytes.Contains(line, []byte(`"lvl":"crit"`)),
		bytes.Contains(line, []byte(`"lvl":"err"`)):
		return ansiRed
	case bytes.Contains(line, []byte(`"lvl":"warning"`)):
		return ansiYellow
	case bytes.Contains(line, []byte(`"lvl":"debug"`)),
		bytes.Contains(line, []byte(`"lvl":"trace"`)):
		return ansiDim
	default:
		return ""
	}
}

// parseLevel maps a level spec from logLevelEnvVar (syslog keyword, plus
// the common aliases used by other logging libraries in the corpus) to a
// logiface.Level.
func parseLevel(spec string) (logiface.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "emerg", "emergency", "panic":
		return logiface.LevelEmergency, true
	case "alert", "fatal":
		return logiface.LevelAlert, true
	case "crit", "critical":
		return logiface.LevelCritical, true
	case "err", "error":
		return logiface.LevelError, true
	case "warning", "warn":
		return logiface.LevelWarning, true
	case "notice":
		return logiface.LevelNotice, true
	case "info", "informational":
		return logiface.LevelInformational, true
	case "debug":
		return logiface.LevelDebug, true
	case "trace":
		return logiface.LevelTrace, true
	case "disabled", "off", "none":
		return logiface.LevelDisabled, true
	default:
		return 0, false
	}
}

// parseLogLevels parses the "name1=level1,name2=level2" shape named in §6
// and the original's Logging.cc into a name -> level-string map.
func parseLogLevels(spec string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, level, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(level)
	}
	return out
}
