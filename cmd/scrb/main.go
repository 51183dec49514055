package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/japaniel/scrb/pkg/store"
)

// rootEnv overrides the default dictionary root for every subcommand.
const rootEnv = "SCRB_DICTIONARY_ROOT"

const usage = `usage: scrb <command> [flags]

Builders (run them one after another; each merges into the same tree):
  build-colors     index single-word names from a color table
  build-roughness  rough/smooth bands and polished metals
  build-scale      size bands from molecular to universal
  build-metallic   metallic and reflectance for metal words

Queries:
  lookup           print the modifiers of one or more words
  describe         resolve a spawn command such as "big red ball"
  serve            serve lookups over HTTP

Maintenance:
  migrate          rewrite legacy records in the current encoding
  sync-sqlite      copy the record tree into a SQLite database

Run "scrb <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "build-colors":
		buildColors(ctx, args)
	case "build-roughness", "build-scale", "build-metallic":
		buildBands(ctx, cmd, args)
	case "lookup":
		lookup(ctx, args)
	case "describe":
		describe(ctx, args)
	case "serve":
		serve(ctx, args)
	case "migrate":
		migrate(ctx, args)
	case "sync-sqlite":
		syncSQLite(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

// newFlagSet returns a FlagSet carrying the -root flag every command shares.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	def := store.DefaultRoot
	if v := os.Getenv(rootEnv); v != "" {
		def = v
	}
	root := fs.String("root", def, "Dictionary root directory (env "+rootEnv+")")
	return fs, root
}

func parse(fs *flag.FlagSet, args []string) {
	// ExitOnError: Parse exits on its own
	_ = fs.Parse(args)
}

func logger() *log.Logger {
	return log.New(os.Stderr, "scrb: ", log.LstdFlags)
}
