package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/hazyhaar/playerdex/pkg/importer"
	"github.com/hazyhaar/playerdex/pkg/kvstore"
	"github.com/rodaine/table"
)

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath, debug := commonFlags(fs)
	source := fs.String("source", "", "player export to import: path or URL (.csv, .tsv, .json, .zip)")
	version := fs.String("version", "", "dataset version to tag records with (default: config version)")
	adapter := fs.String("adapter", "", "force a dataset format (see -list)")
	list := fs.Bool("list", false, "list formats and past imports, then exit")
	fs.Parse(args)

	logger := newLogger(*debug)
	cfg, err := loadConfig(*cfgPath, logger)
	if err != nil {
		return err
	}
	if cfg.CatalogDB == "" && cfg.BundleDir == "" {
		return errors.New("config sets neither catalog_db nor bundle_dir; nothing to import into")
	}

	var cat *importer.Catalog
	if cfg.CatalogDB != "" {
		if err := ensureParent(cfg.CatalogDB); err != nil {
			return err
		}
		cat, err = importer.OpenCatalog(cfg.CatalogDB)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()
	}

	var snapshots *kvstore.SQLite
	if cfg.SnapshotDB != "" {
		if err := ensureParent(cfg.SnapshotDB); err != nil {
			return err
		}
		snapshots, err = kvstore.OpenSQLite(cfg.SnapshotDB)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer snapshots.Close()
	}

	if *list || *source == "" {
		return listImports(cat, snapshots)
	}

	v := *version
	if v == "" {
		v = cfg.Version
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	opts := importer.Options{
		Source:    *source,
		Version:   v,
		Adapter:   *adapter,
		BundleDir: cfg.BundleDir,
	}
	if snapshots != nil {
		opts.Snapshots = directory.NewSnapshotStore(snapshots, logger)
	}
	report, err := importer.Run(ctx, opts, cat, logger)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] %d players via %s (%d new, %d updated)\n",
		report.Version, report.Records, report.Adapter, report.Created, report.Updated)
	if report.Previous > 0 {
		fmt.Printf("[%s] replaced an import of %d players\n", report.Version, report.Previous)
	}
	if report.BundlePath != "" {
		fmt.Printf("[%s] bundle -> %s\n", report.Version, report.BundlePath)
	}
	return nil
}

func listImports(cat *importer.Catalog, snapshots *kvstore.SQLite) error {
	fmt.Println("Formats:")
	formats := table.New("ID", "Description").WithWriter(os.Stdout)
	for _, a := range importer.All() {
		formats.AddRow(a.ID(), a.Description())
	}
	formats.Print()

	if snapshots != nil {
		entries, err := snapshots.List(context.Background(), directory.SnapshotPrefix)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println("Snapshots:")
		saved := table.New("Version", "Bytes", "Saved").WithWriter(os.Stdout)
		for _, e := range entries {
			saved.AddRow(strings.TrimPrefix(e.Key, directory.SnapshotPrefix), e.Size, e.UpdatedAt.Format(time.DateTime))
		}
		saved.Print()
	}

	if cat == nil {
		return nil
	}
	sources, err := cat.ListSources(context.Background())
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Imports:")
	imports := table.New("Version", "Format", "Records", "Imported", "Check", "Source").WithWriter(os.Stdout)
	for _, s := range sources {
		check := "-"
		if s.LastStatus != nil {
			check = fmt.Sprint(*s.LastStatus)
		}
		imports.AddRow(s.Version, s.AdapterID, s.Records, time.Unix(s.ImportedAt, 0).Format(time.DateTime), check, s.Location)
	}
	imports.Print()

	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  playerdex import -source <path|url> [-version FC26] [-adapter csv]")
	return nil
}
