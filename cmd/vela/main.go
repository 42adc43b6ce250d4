// cmd/vela/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"vela/internal/builtins"
	"vela/internal/config"
	"vela/internal/diagnostics"
	"vela/internal/fixtures"
	"vela/internal/ir"
	"vela/internal/lower"
	"vela/internal/parser"
	"vela/internal/typecheck"
	"vela/internal/value"
	"vela/internal/vm"
)

const configPath = "vela.yaml"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "run":
		if len(args) < 2 {
			log.Fatal("run requires a fixture file")
		}
		runFixture(args[1], args[2:])
	case "check":
		if len(args) < 2 {
			log.Fatal("check requires a fixture file")
		}
		checkFixture(args[1])
	case "--version", "-v", "version":
		fmt.Println("vela", runID())
	case "--help", "-h", "help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("vela - typed-AST fixture runner")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vela run <fixture.yaml> [entry] [args...]   Typecheck, lower and run a fixture")
	fmt.Println("  vela check <fixture.yaml>                   Typecheck a fixture and report diagnostics")
	fmt.Println("  vela version                                Print a tagged run id")
}

// pipeline carries the fixture file, its decoded Program and the reporter
// built against its text, since diagnostics need the original source lines.
type pipeline struct {
	path     string
	program  *parser.Program
	reporter *diagnostics.Reporter
}

func loadPipeline(path string) *pipeline {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("could not read fixture: %v", err)
	}
	prog, err := fixtures.LoadProgram(data)
	if err != nil {
		log.Fatalf("could not decode fixture: %v", err)
	}
	return &pipeline{
		path:     path,
		program:  prog,
		reporter: diagnostics.NewReporter(path, string(data)),
	}
}

// checkProgram runs the checker and returns it; the caller decides whether
// diagnostics are fatal (strict exhaustiveness flips warnings to errors).
func (p *pipeline) checkProgram(cfg config.Config) *typecheck.Checker {
	c := typecheck.New()
	c.StrictExhaustiveness = cfg.StrictExhaustiveness
	c.CheckProgram(p.program)
	return c
}

func checkFixture(path string) {
	p := loadPipeline(path)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("could not load %s: %v", configPath, err)
	}
	c := p.checkProgram(cfg)
	if len(c.Diagnostics) == 0 {
		fmt.Printf("%s: no issues found\n", path)
		return
	}
	errCount := 0
	for _, d := range c.Diagnostics {
		fmt.Fprint(os.Stderr, p.reporter.Format(d))
		if string(d.Severity) == "error" {
			errCount++
		}
	}
	if errCount > 0 {
		os.Exit(1)
	}
}

func runFixture(path string, rest []string) {
	entry := "main"
	var cliArgs []string
	if len(rest) > 0 {
		entry = rest[0]
		cliArgs = rest[1:]
	}

	p := loadPipeline(path)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("could not load %s: %v", configPath, err)
	}

	c := p.checkProgram(cfg)
	errCount := 0
	for _, d := range c.Diagnostics {
		fmt.Fprint(os.Stderr, p.reporter.Format(d))
		if string(d.Severity) == "error" {
			errCount++
		}
	}
	if errCount > 0 {
		log.Fatalf("%s: %d error(s), aborting", path, errCount)
	}

	names := builtins.Names()
	var compiled []*ir.CompiledFunction
	for _, fn := range p.program.Funcs {
		l := lower.New(c.Tables, names, nil)
		compiled = append(compiled, l.LowerFunction(fn))
	}

	vmInst := vm.New(cfg.MaxRecursionDepth, cfg.ParallelCollections)
	builtins.RegisterAll(vmInst)
	vmInst.LoadFunctions(compiled)

	callArgs := make([]value.Value, len(cliArgs))
	for i, a := range cliArgs {
		callArgs[i] = parseArg(a)
	}

	id := runID()
	result, rerr := vmInst.CallFunction(entry, callArgs)
	if rerr != nil {
		fmt.Fprintf(os.Stderr, "[%s] runtime error: %s\n", id, rerr.Message)
		os.Exit(1)
	}
	fmt.Printf("[%s] %s\n", id, value.String_(result))
}

// parseArg converts a bare CLI token into the Value it looks like: an int,
// a float, true/false, or else a plain string.
func parseArg(a string) value.Value {
	if n, err := strconv.ParseInt(a, 10, 64); err == nil {
		return value.Int(n)
	}
	if f, err := strconv.ParseFloat(a, 64); err == nil {
		return value.Float(f)
	}
	switch strings.ToLower(a) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}
	return value.String(a)
}

// runID tags a CLI invocation for log correlation; spec components don't
// need identity, but a CLI wrapping them does.
func runID() string {
	return uuid.New().String()[:8]
}
