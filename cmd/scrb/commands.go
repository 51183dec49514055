package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/japaniel/scrb/pkg/builder"
	"github.com/japaniel/scrb/pkg/db"
	"github.com/japaniel/scrb/pkg/dictionary"
	"github.com/japaniel/scrb/pkg/ingest"
	"github.com/japaniel/scrb/pkg/phrase"
	"github.com/japaniel/scrb/pkg/server"
	"github.com/japaniel/scrb/pkg/store"
)

func buildColors(ctx context.Context, args []string) {
	fs, root := newFlagSet("build-colors")
	tableFlag := fs.String("table", "colornames.json", "Path to a JSON color table ([{name,hex}])")
	urlFlag := fs.String("url", dictionary.DefaultColorTableURL, "Where to download the table when it is missing")
	offlineFlag := fs.Bool("offline", false, "Never download the color table")
	htmlFlag := fs.String("html", "", "Read named colors from a saved web page instead of a table")
	pageURLFlag := fs.String("page-url", "https://example.com/", "Original URL of the -html page")
	dbFlag := fs.String("db", "", "Record the build in this SQLite database")
	parse(fs, args)

	var names []dictionary.ColorName
	if *htmlFlag != "" {
		f, err := os.Open(*htmlFlag)
		if err != nil {
			log.Fatalf("Failed to open page: %v", err)
		}
		names, err = dictionary.LoadColorTableHTML(f, *pageURLFlag)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to read colors from page: %v", err)
		}
	} else {
		if !*offlineFlag {
			if err := dictionary.EnsureColorTable(ctx, *tableFlag, *urlFlag); err != nil {
				log.Fatalf("Failed to fetch color table: %v", err)
			}
		}
		var err error
		names, err = dictionary.LoadColorTable(*tableFlag)
		if err != nil {
			log.Fatalf("Failed to load color table: %v", err)
		}
	}
	fmt.Printf("Loaded %d color names.\n", len(names))

	skipped := 0
	p := builder.ColorPipeline(names, func(string) { skipped++ })
	runPipeline(ctx, p, *root, *dbFlag)
	if skipped > 0 {
		fmt.Printf("Skipped %d names that are not single storable words.\n", skipped)
	}
}

func buildBands(ctx context.Context, cmd string, args []string) {
	fs, root := newFlagSet(cmd)
	dbFlag := fs.String("db", "", "Record the build in this SQLite database")
	parse(fs, args)

	var p builder.Pipeline
	switch cmd {
	case "build-roughness":
		p = builder.RoughnessPipeline()
	case "build-scale":
		p = builder.ScalePipeline()
	case "build-metallic":
		p = builder.MetallicPipeline()
	}
	runPipeline(ctx, p, *root, *dbFlag)
}

func runPipeline(ctx context.Context, p builder.Pipeline, root, dbPath string) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		log.Fatalf("Failed to create dictionary root: %v", err)
	}

	start := time.Now()
	n, err := p.Run(ctx, store.NewDirStore(root))
	if err != nil {
		// the tree may hold part of this run; re-running is safe since export merges
		log.Fatalf("Build failed after %d records: %v", n, err)
	}
	fmt.Printf("%s: merged %d records into %s in %v (formula v%d)\n",
		p.Name, n, root, time.Since(start).Round(time.Millisecond), builder.FormulaVersion)

	if dbPath == "" {
		return
	}
	conn, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	id, err := db.RecordBuild(ctx, conn, p.Name, builder.FormulaVersion, n)
	if err != nil {
		log.Fatalf("Failed to record build: %v", err)
	}
	fmt.Printf("Build %d recorded in %s\n", id, dbPath)
}

// recordSource is where lookups read records from: the directory tree, or
// the SQLite copy written by sync-sqlite when -db is given.
type recordSource struct {
	store store.Store
	words func(ctx context.Context) ([]string, error)
	close func()
	name  string
}

func openSource(root, dbPath string) recordSource {
	if dbPath == "" {
		return recordSource{
			store: store.NewDirStore(root),
			words: func(context.Context) ([]string, error) { return scanWords(root) },
			close: func() {},
			name:  root,
		}
	}
	conn, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return recordSource{
		store: db.NewStore(conn),
		words: func(ctx context.Context) ([]string, error) { return db.ListWords(ctx, conn) },
		close: func() { conn.Close() },
		name:  dbPath,
	}
}

// scanWords lists every word stored under root.
func scanWords(root string) ([]string, error) {
	files, err := store.NewDirStore(root).Scan()
	if err != nil {
		return nil, err
	}
	words := make([]string, len(files))
	for i, f := range files {
		words[i] = f.Word
	}
	return words, nil
}

// warm loads every word of src into dict.
func warm(ctx context.Context, dict *dictionary.Dictionary, src recordSource) (loaded, total int) {
	words, err := src.words(ctx)
	if err != nil {
		log.Fatalf("Failed to list words in %s: %v", src.name, err)
	}
	n, err := dict.Warm(ctx, words)
	if err != nil {
		log.Fatalf("Failed to load dictionary: %v", err)
	}
	return n, len(words)
}

func lookup(ctx context.Context, args []string) {
	fs, root := newFlagSet("lookup")
	suggestFlag := fs.Bool("suggest", false, "Load every record to suggest near matches for misses")
	dbFlag := fs.String("db", "", "Read records from this SQLite database instead of the tree")
	parse(fs, args)
	if fs.NArg() == 0 {
		log.Fatal("Please provide one or more words")
	}

	src := openSource(*root, *dbFlag)
	defer src.close()
	dict := dictionary.New(src.store, dictionary.WithLogger(logger()))
	if *suggestFlag {
		warm(ctx, dict, src)
	}

	missing := 0
	for _, w := range fs.Args() {
		entries, err := dict.Search(ctx, w)
		if err != nil {
			log.Fatalf("Lookup of %q failed: %v", w, err)
		}
		if len(entries) == 0 {
			missing++
			line := fmt.Sprintf("%s: not found", w)
			if s := dict.Suggest(w, 3); len(s) > 0 {
				line += " (did you mean " + strings.Join(s, ", ") + "?)"
			}
			fmt.Println(line)
			continue
		}
		var parts []string
		for _, m := range entries[0].Modifiers {
			parts = append(parts, m.String())
		}
		fmt.Printf("%s: %s\n", entries[0].Word, strings.Join(parts, " "))
	}
	if missing > 0 {
		src.close()
		os.Exit(1)
	}
}

func newAnalyzer(japanese bool) *phrase.Analyzer {
	if !japanese {
		return nil
	}
	a, err := phrase.NewAnalyzer()
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}
	return a
}

func describe(ctx context.Context, args []string) {
	fs, root := newFlagSet("describe")
	jaFlag := fs.Bool("ja", false, "Segment Japanese commands with kagome")
	dbFlag := fs.String("db", "", "Read records from this SQLite database instead of the tree")
	parse(fs, args)

	command := strings.Join(fs.Args(), " ")
	if c, ok := phrase.ParseConsole(command); ok {
		fmt.Printf("console command %q (not a spawn)\n", c.Name)
		return
	}

	src := openSource(*root, *dbFlag)
	defer src.close()
	r := &phrase.Resolver{
		Analyzer: newAnalyzer(*jaFlag),
		Words:    dictionary.New(src.store, dictionary.WithLogger(logger())),
	}
	app, err := r.Resolve(ctx, command)
	if errors.Is(err, phrase.ErrEmptyCommand) {
		log.Fatal("Please provide a command such as \"big red ball\"")
	}
	if err != nil {
		log.Fatalf("Describe failed: %v", err)
	}
	out, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode appearance: %v", err)
	}
	fmt.Println(string(out))
}

func serve(ctx context.Context, args []string) {
	fs, root := newFlagSet("serve")
	addrFlag := fs.String("addr", ":8080", "Listen address")
	warmFlag := fs.Bool("warm", true, "Load every record at startup so 404s can suggest words")
	jaFlag := fs.Bool("ja", false, "Segment Japanese commands with kagome")
	quietFlag := fs.Bool("quiet", false, "Do not log requests")
	dbFlag := fs.String("db", "", "Serve records from this SQLite database instead of the tree")
	parse(fs, args)

	l := logger()
	src := openSource(*root, *dbFlag)
	defer src.close()
	dict := dictionary.New(src.store, dictionary.WithLogger(l))
	if *warmFlag {
		n, total := warm(ctx, dict, src)
		fmt.Printf("Loaded %d of %d records from %s\n", n, total, src.name)
	}

	var reqLog *log.Logger
	if !*quietFlag {
		reqLog = l
	}
	srv := &http.Server{
		Addr:              *addrFlag,
		Handler:           server.NewHandler(dict, newAnalyzer(*jaFlag)).Routes(reqLog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Printf("Listening on %s\n", *addrFlag)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
	fmt.Println("Server stopped.")
}

func migrate(ctx context.Context, args []string) {
	fs, root := newFlagSet("migrate")
	workersFlag := fs.Int("workers", 4, "Concurrent record rewrites")
	parse(fs, args)

	res, err := ingest.Migrate(ctx, *root, *workersFlag, logger())
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Printf("Scanned %d records: %d rewritten, %d malformed, %d misplaced.\n",
		res.Scanned, res.Rewritten, res.Malformed, res.Misplaced)
}

func syncSQLite(ctx context.Context, args []string) {
	fs, root := newFlagSet("sync-sqlite")
	dbFlag := fs.String("db", "scrb.db", "Path to SQLite database")
	workersFlag := fs.Int("workers", 4, "Concurrent record decoders")
	batchFlag := fs.Int("batch", 50, "Records per transaction")
	parse(fs, args)

	conn, err := db.Open(*dbFlag)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	fmt.Printf("Database initialized at %s\n", *dbFlag)

	ig := ingest.NewIngester(conn)
	ig.Workers = *workersFlag
	ig.BatchSize = *batchFlag
	ig.Logger = logger()
	ig.OnProgress = func(current, total int) {
		fmt.Printf("\rDecoded %d/%d records", current, total)
		if current == total {
			fmt.Println()
		}
	}

	res, err := ig.Ingest(ctx, *root)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}
	fmt.Printf("Sync complete. %d records merged, %d malformed skipped.\n", res.Records, res.Malformed)
}
