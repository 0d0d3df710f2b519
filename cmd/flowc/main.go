// flowc is the FlowScript command line: it compiles, decompiles,
// disassembles and runs FlowScript modules, and builds whole projects
// described by a flowscript.toml manifest.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// command is one flowc subcommand.
type command struct {
	name    string
	summary string
	run     func(env *env, args []string) error
}

var commands = []command{
	{"compile", "compile a source file to a module", runCompile},
	{"decompile", "print the source of a compiled module", runDecompile},
	{"disasm", "print the instructions of a compiled module", runDisasm},
	{"run", "execute a source file or module", runRun},
	{"build", "compile every source file of the current project", runBuild},
	{"lib", "convert a function library between TOML and binary form", runLib},
	{"cache", "inspect or prune the compile cache", runCache},
}

// env carries the output streams of one invocation.
type env struct {
	stdout io.Writer
	stderr io.Writer
	log    commonlog.Logger
}

// usageError marks errors caused by bad command lines.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes a flowc command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("flowc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Int("v", 0, "Log verbosity (-1 quiet, 0 notices, 1 info, 2 debug)")
	logPath := fs.String("log", "", "Write logs to this file instead of stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: flowc [options] <command> [arguments]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-10s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  flowc compile -lib host.toml door.flow   # Writes door.fsb\n")
		fmt.Fprintf(stderr, "  flowc decompile door.fsb                 # Prints recovered source\n")
		fmt.Fprintf(stderr, "  flowc run -steps 10000 door.flow         # Runs main, prints host calls\n")
		fmt.Fprintf(stderr, "  flowc build                              # Builds the project in flowscript.toml\n")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	commonlog.Initialize(*verbose, *logPath)
	e := &env{stdout: stdout, stderr: stderr, log: commonlog.GetLogger("flowc")}

	name, rest := fs.Arg(0), fs.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(e, rest)
		switch {
		case err == nil:
			return exitOK
		case err == flag.ErrHelp:
			return exitOK
		}
		if ue, ok := err.(usageError); ok {
			fmt.Fprintf(stderr, "flowc %s: %s\n", name, ue.msg)
			return exitUsage
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n", name)
	fs.Usage()
	return exitUsage
}

// newFlags returns a flag set for a subcommand that reports errors
// instead of exiting.
func (e *env) newFlags(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: flowc %s [options] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and wraps flag errors as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return usageError{err.Error()}
	}
	return nil
}

// listFlag collects a repeatable or comma-separated string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*l = append(*l, p)
		}
	}
	return nil
}
