// nufsctl inspects and edits nufs images without mounting them.
//
// Usage:
//
//	nufsctl [flags] <command> [args]
//
// The image and its geometry come from --config (a YAML file), overridden by
// --image, --capacity and --max-inodes. An image that does not exist yet is
// created and formatted on first use.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/config"
	"github.com/mit-pdos/go-nufs/storage"
	"github.com/mit-pdos/go-nufs/util"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "nufsctl: %v (%v)\n", err, storage.Errno(err))
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
}

type command struct {
	usage    string
	min, max int
	run      func(e *env, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"mkfs":     {"mkfs", 0, 0, cmdMkfs},
		"ls":       {"ls [path]", 0, 1, withStorage(cmdLs)},
		"stat":     {"stat <path>", 1, 1, withStorage(cmdStat)},
		"cat":      {"cat <path>", 1, 1, withStorage(cmdCat)},
		"put":      {"put <path> [src]", 1, 2, withStorage(cmdPut)},
		"mkdir":    {"mkdir <path> [mode]", 1, 2, withStorage(cmdMkdir)},
		"mknod":    {"mknod <path> [mode]", 1, 2, withStorage(cmdMknod)},
		"rm":       {"rm <path>", 1, 1, withStorage(cmdRm)},
		"rmdir":    {"rmdir <path>", 1, 1, withStorage(cmdRmdir)},
		"mv":       {"mv <from> <to>", 2, 2, withStorage(cmdMv)},
		"ln":       {"ln <from> <to>", 2, 2, withStorage(cmdLn)},
		"truncate": {"truncate <path> <size>", 2, 2, withStorage(cmdTruncate)},
		"chmod":    {"chmod <mode> <path>", 2, 2, withStorage(cmdChmod)},
		"df":       {"df", 0, 0, withStorage(cmdDf)},
		"check":    {"check", 0, 0, withStorage(cmdCheck)},
		"export":   {"export <file>", 1, 1, cmdExport},
		"import":   {"import <file>", 1, 1, cmdImport},
		"dump":     {"dump <file> [none|lz4|zstd]", 1, 2, cmdDump},
		"restore":  {"restore <file>", 1, 1, cmdRestore},
		"sum":      {"sum", 0, 0, cmdSum},
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var configPath, image string
	var capacity, maxInodes, debug uint64

	flagSet := pflag.NewFlagSet("nufsctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringVarP(&image, "image", "i", "", "backing file of the image")
	flagSet.Uint64Var(&capacity, "capacity", 0, "image size in bytes")
	flagSet.Uint64Var(&maxInodes, "max-inodes", 0, "number of inode slots")
	flagSet.Uint64VarP(&debug, "debug", "d", 0, "debug print level")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}

	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if flagSet.Changed("image") {
		cfg.Image = image
	}
	if flagSet.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if flagSet.Changed("max-inodes") {
		cfg.MaxInodes = maxInodes
	}
	if flagSet.Changed("debug") {
		cfg.Debug = debug
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	util.SetDebug(cfg.Debug)

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stdout, flagSet)
		return fmt.Errorf("no command: %w", common.ErrInvalid)
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", rest[0], common.ErrInvalid)
	}
	cargs := rest[1:]
	if len(cargs) < cmd.min || len(cargs) > cmd.max {
		return fmt.Errorf("usage: nufsctl %s: %w", cmd.usage, common.ErrInvalid)
	}
	return cmd.run(&env{cfg: cfg, stdin: stdin, stdout: stdout}, cargs)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage:\n  nufsctl [flags] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
	flagSet.SetOutput(io.Discard)
}

func withStorage(f func(st *storage.Storage, e *env, args []string) error) func(*env, []string) error {
	return func(e *env, args []string) error {
		st, err := storage.OpenFile(e.cfg.Image, e.cfg.Capacity, e.cfg.MaxInodes)
		if err != nil {
			return err
		}
		if err := f(st, e, args); err != nil {
			st.Close()
			return err
		}
		return st.Close()
	}
}

func parseMode(s string) (uint32, error) {
	m, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("mode %q: %w", s, common.ErrInvalid)
	}
	return uint32(m), nil
}

func optMode(args []string, def uint32) (uint32, error) {
	if len(args) < 2 {
		return def, nil
	}
	return parseMode(args[1])
}
