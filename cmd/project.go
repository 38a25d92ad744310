package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/extract"
	"github.com/withglyph/glitch/internal/flags"
	"github.com/withglyph/glitch/internal/infrastructure/sqlite"
	"github.com/withglyph/glitch/internal/log"
	"github.com/withglyph/glitch/internal/manifest"
	"github.com/withglyph/glitch/internal/paths"
	"github.com/withglyph/glitch/internal/sessions"
)

func sourceFilter() paths.Filter {
	return paths.Filter{Extensions: cfg.Extensions, Exclude: cfg.Exclude}
}

func featureFlags() *flags.Registry {
	return flags.New(cfg.Flags)
}

func newExtractor() *extract.Extractor {
	return extract.New(extract.Config{
		Marker:  cfg.Marker,
		Workers: cfg.Workers,
		Tracer:  provider.Tracer(),
	})
}

// relToRoot converts a command-line path to a slash-separated path relative
// to the project root.
func relToRoot(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	rel, err := filepath.Rel(cfg.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the project root %s", p, cfg.Root)
	}
	return filepath.ToSlash(rel), nil
}

// sourceFiles discovers the project's source files, narrowed to the given
// command-line paths.
func sourceFiles(args []string) ([]string, error) {
	files, err := paths.Discover(cfg.Root, sourceFilter())
	if err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}
	if len(args) == 0 {
		return files, nil
	}
	under := make([]string, 0, len(args))
	for _, a := range args {
		rel, err := relToRoot(a)
		if err != nil {
			return nil, err
		}
		under = append(under, rel)
	}
	return paths.Narrow(files, under), nil
}

// openStore opens the session database and a recorder for this project.
func openStore() (*sqlite.DB, *sessions.Recorder, error) {
	db, err := sqlite.NewDB(cfg.Resolve(cfg.Store.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	return db, sessions.NewRecorder(db.SessionRepository(), cfg.Root, cfg.Store.Keep), nil
}

func storeExists() bool {
	_, err := os.Stat(cfg.Resolve(cfg.Store.Path))
	return err == nil
}

type registrySource struct {
	manifest string
	session  string
}

// loadRegistry returns the artifacts to rewrite against: a manifest when
// given, otherwise a stored session (the named one or the latest), otherwise
// a fresh extraction of the whole project.
func loadRegistry(ctx context.Context, src registrySource) (*artifact.Registry, error) {
	if src.manifest != "" {
		reg, err := manifest.LoadFile(src.manifest)
		if err != nil {
			return nil, fmt.Errorf("loading manifest: %w", err)
		}
		log.Info(log.CatRegistry, "registry loaded from manifest", "path", src.manifest, "artifacts", reg.Len())
		return reg, nil
	}

	if src.session != "" || storeExists() {
		reg, found, err := sessionRegistry(ctx, src.session)
		if err != nil {
			return nil, err
		}
		if found {
			return reg, nil
		}
	}

	files, err := sourceFiles(nil)
	if err != nil {
		return nil, err
	}
	res, err := newExtractor().Extract(ctx, os.DirFS(cfg.Root), files)
	if err != nil {
		return nil, fmt.Errorf("extracting artifacts: %w", err)
	}
	log.Info(log.CatRegistry, "registry extracted", "files", len(files), "artifacts", res.Registry.Len())
	return res.Registry, nil
}

func sessionRegistry(ctx context.Context, id string) (*artifact.Registry, bool, error) {
	db, rec, err := openStore()
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = db.Close() }()

	if id != "" {
		repo := db.SessionRepository()
		session, err := repo.FindByID(ctx, cfg.Root, id)
		if err != nil {
			return nil, false, err
		}
		reg, err := repo.Artifacts(ctx, session.ID())
		if err != nil {
			return nil, false, fmt.Errorf("loading session %s: %w", id, err)
		}
		log.Info(log.CatRegistry, "registry loaded from session", "session", id, "artifacts", reg.Len())
		return reg, true, nil
	}

	reg, session, ok, err := rec.Latest(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	log.Info(log.CatRegistry, "registry loaded from latest session", "session", session.ID(), "artifacts", reg.Len())
	return reg, true, nil
}
