package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/shortcode"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logger"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const usage = "expected 'export', 'import' or 'sweep' subcommands"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	// Logs go to stderr so export output stays clean JSON.
	logger.InitWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer store.Close()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := doExport(ctx, store, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		file, err := os.Open(*importFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open file")
		}
		defer file.Close()
		imported, skipped, err := doImport(ctx, store, file)
		if err != nil {
			log.Fatal().Err(err).Msg("import failed")
		}
		log.Info().Int("imported", imported).Int("skipped", skipped).Msg("import finished")
	case "sweep":
		sweepCmd.Parse(os.Args[2:])
		opts := services.DefaultOptions()
		opts.StoreTimeout = cfg.StoreTimeout
		svc := services.NewLinkService(store, shortcode.NewRandom(), domain.RealClock{}, opts)
		n, err := svc.DeactivateExpired(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		log.Info().Int64("deactivated", n).Msg("sweep finished")
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

// doExport writes every stored link, active or not, as a JSON array.
func doExport(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(links), "encode links")
}

// doImport inserts links from an export. Codes already present in the store
// are skipped so the import can be re-run. Record ids are reassigned.
func doImport(ctx context.Context, repo ports.LinkRepository, r io.Reader) (imported, skipped int, err error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, 0, errors.Wrap(err, "decode links")
	}

	for i := range links {
		l := &links[i]
		if l.ShortCode == "" || l.OriginalURL == "" {
			log.Warn().Int("index", i).Msg("skipping record without short code or url")
			skipped++
			continue
		}

		err := repo.InsertUnique(ctx, l)
		switch {
		case err == nil:
			imported++
		case errors.Is(err, domain.ErrDuplicateCode):
			log.Info().Str("short_code", l.ShortCode).Msg("skipping existing code")
			skipped++
		default:
			return imported, skipped, errors.Wrapf(err, "import %s", l.ShortCode)
		}
	}
	return imported, skipped, nil
}
