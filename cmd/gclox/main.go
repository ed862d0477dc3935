// Command gclox is the gclox language's CLI: run a script file, or start
// an interactive REPL with no arguments. gclox has no on-disk bytecode
// format, so there is no compile/disassemble-to-a-file subcommand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/gclox/gclox/internal/panicerr"
	"github.com/gclox/gclox/pkg/vm"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gclox", flag.ContinueOnError)
	gcStress := fs.Bool("gc-stress", false, "run a full garbage collection before every allocation")
	trace := fs.Bool("trace", false, "print each instruction before it executes")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return 64
	}

	if *showVersion {
		fmt.Printf("gclox %s\n", version)
		return 0
	}

	machine := vm.New()
	machine.GC().StressGC = *gcStress
	machine.TraceExecution = *trace

	switch fs.NArg() {
	case 0:
		runREPL(machine, *trace)
		return 0
	case 1:
		return runFile(machine, fs.Arg(0), *trace)
	default:
		fmt.Fprintln(os.Stderr, "Usage: gclox [options] [script]")
		return 64
	}
}

// reportPanic prints a recovered panic's message, and its stack trace too
// when verbose is set - the -trace flag doing double duty as "also show me
// where a fatal error actually came from".
func reportPanic(err error, verbose bool) {
	fmt.Fprintln(os.Stderr, err)
	if verbose && panicerr.IsPanic(err) {
		fmt.Fprintln(os.Stderr, panicerr.PanicStack(err))
	}
}

// runFile executes a script file, recovering a GC allocation-failure
// panic (see bytecode.GC.MaxHeapBytes) the way clox's own main exits
// non-zero on a fatal VM error rather than letting the panic reach the
// Go runtime's own crash reporter - grounded on jcorbin/gothird's
// internal/panicerr pattern for turning a recovered panic into a proper
// error value at exactly one place.
func runFile(machine *vm.VM, path string, verbose bool) (exitCode int) {
	defer func() {
		if err := panicerr.Recover("gclox"); err != nil {
			reportPanic(err, verbose)
			exitCode = 70
		}
	}()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gclox: %v\n", err)
		return 74
	}

	result, err := machine.Interpret(string(source))
	switch result {
	case vm.InterpretCompileError:
		fmt.Fprintln(os.Stderr, err)
		return 65
	case vm.InterpretRuntimeError:
		fmt.Fprintln(os.Stderr, err)
		return 70
	default:
		return 0
	}
}

// runREPL reads one line at a time, compiling and running each against
// the same VM so declarations accumulate across lines.
func runREPL(machine *vm.VM, verbose bool) {
	fmt.Printf("gclox %s\n", version)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if err := panicerr.Recover("gclox"); err != nil {
					reportPanic(err, verbose)
				}
			}()
			if _, err := machine.Interpret(line); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}()
	}
}
