package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/polkiloo/plotcatalog/internal/adapter/featuresource"
	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/domain/model"
	"github.com/polkiloo/plotcatalog/internal/server/http/dto"
	"github.com/polkiloo/plotcatalog/internal/storage"
	"github.com/polkiloo/plotcatalog/internal/usecase"
)

type options struct {
	file        string
	dataset     string
	crs         string
	prefix      string
	databaseURI string
	defaults    model.Location
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("plotimport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", "-", "GeoJSON FeatureCollection to import, - for stdin")
	fs.StringVar(&o.dataset, "dataset", "", "Dataset name")
	fs.StringVar(&o.crs, "crs", "", "Source CRS, e.g. EPSG:21037")
	fs.StringVar(&o.prefix, "prefix", "", "Plot code prefix")
	fs.StringVar(&o.databaseURI, "d", "", "Catalog database, overrides DATABASE_URI")
	fs.StringVar(&o.defaults.District, "district", "", "District for features without one")
	fs.StringVar(&o.defaults.Ward, "ward", "", "Ward for features without one")
	fs.StringVar(&o.defaults.Village, "village", "", "Village for features without one")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.dataset == "" {
		return o, errors.New("-dataset is required")
	}
	return o, nil
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return 2
	}

	if opts.databaseURI != "" {
		if err := os.Setenv("DATABASE_URI", opts.databaseURI); err != nil {
			fmt.Fprintf(stderr, "set database uri: %v\n", err)
			return 1
		}
	}
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	payload, err := readPayload(opts.file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", opts.file, err)
		return 1
	}
	collection, err := featuresource.Decode(payload)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var imports *usecase.ImportUseCase
	app := fx.New(
		fx.NopLogger,
		// stdout carries the summary, so logs go to stderr.
		fx.Supply(cfg, slog.New(slog.NewJSONHandler(stderr, nil))),
		fx.Provide(func() context.Context { return ctx }),
		storage.Module,
		usecase.Module,
		fx.Populate(&imports),
	)
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "failed to start: %v\n", err)
		return 1
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			fmt.Fprintf(stderr, "failed to stop: %v\n", err)
		}
	}()

	crs := opts.crs
	if crs == "" {
		crs = collection.CRS
	}
	record, err := imports.Import(ctx, usecase.ImportRequest{
		Dataset:    opts.dataset,
		SourceCRS:  crs,
		CodePrefix: opts.prefix,
		SourceHash: collection.Hash,
		Defaults:   opts.defaults,
		Features:   collection.Features,
	})
	if record != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(dto.NewImportResponse(*record))
	}
	if err != nil {
		fmt.Fprintf(stderr, "import %s: %v\n", opts.dataset, err)
		return 1
	}
	return 0
}
