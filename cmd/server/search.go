package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/rodaine/table"
)

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cfgPath, debug := commonFlags(fs)
	query := fs.String("q", "", "name or fragment to look up (e.g. \"j. bell\")")
	version := fs.String("version", "", "dataset version (default: config version)")
	limit := fs.Int("limit", 0, "maximum results (default: config default_limit)")
	wait := fs.Duration("wait", 2*time.Minute, "how long to wait for the directory to load")
	asJSON := fs.Bool("json", false, "print results as JSON")
	fs.Parse(args)

	if *query == "" {
		*query = strings.Join(fs.Args(), " ")
	}
	if *query == "" {
		return errors.New("missing query: use -q")
	}

	logger := newLogger(*debug)
	cfg, err := loadConfig(*cfgPath, logger)
	if err != nil {
		return err
	}
	v := *version
	if v == "" {
		v = cfg.Version
	}
	n := *limit
	if n <= 0 {
		n = cfg.Search.DefaultLimit
	}
	if cfg.Search.MaxLimit > 0 {
		n = min(n, cfg.Search.MaxLimit)
	}

	st, err := openStack(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()
	status := st.cache.Warm(v).Wait(ctx)
	if status.LastError != "" {
		logger.Warn("directory load incomplete", "version", v, "loaded", status.LoadedCount, "error", status.LastError)
	}
	if !status.Loaded && status.LoadedCount == 0 {
		return fmt.Errorf("directory %s unavailable", v)
	}

	results := st.cache.Search(v, *query, n)
	if *asJSON {
		if results == nil {
			results = []directory.Result{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Printf("no players match %q in %s\n", *query, v)
		return nil
	}
	tbl := table.New("Name", "Positions", "OVR", "Age", "Nation", "ID").WithWriter(os.Stdout)
	for _, r := range results {
		tbl.AddRow(r.ShortName, r.Positions, r.Overall, r.Age, r.Nationality, r.ID)
	}
	tbl.Print()
	return nil
}
