// sercha-indexd maintains a permission-aware retrieval index over remote
// document corpora.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed"
	changefeedgoogle "github.com/custodia-labs/sercha-indexd/internal/adapters/driven/changefeed/google"
	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/config/file"
	directorygoogle "github.com/custodia-labs/sercha-indexd/internal/adapters/driven/directory/google"
	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/directory/static"
	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-indexd/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-indexd/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-indexd/internal/core/domain"
	"github.com/custodia-labs/sercha-indexd/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-indexd/internal/core/services"
	"github.com/custodia-labs/sercha-indexd/internal/logger"
	"github.com/custodia-labs/sercha-indexd/internal/normalisers"
	"github.com/custodia-labs/sercha-indexd/internal/postprocessors/chunker"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore(os.Getenv("SERCHA_INDEXD_CONFIG_DIR"))
	if err != nil {
		return err
	}
	settings := file.NewSettings(configStore)

	store, err := sqlite.NewStore(os.Getenv("SERCHA_INDEXD_DATA_DIR"))
	if err != nil {
		return err
	}
	defer store.Close()

	registry := changefeed.NewRegistry(store.SourceStore())
	defer registry.Close()

	directory, err := buildDirectory(configStore, settings)
	if err != nil {
		return err
	}

	materializer := services.NewMaterializerService(
		store.GrantStore(),
		directory,
		store.AccessStore(),
		services.WithGroupDepth(settings.GroupDepth()),
		services.WithOrganizationGroup(settings.OrganizationGroup()),
	)

	svcs := cli.Services{
		Materializer:    materializer,
		Sources:         store.SourceStore(),
		SyncStates:      store.SyncStateStore(),
		Config:          configStore,
		RebuildInterval: settings.RebuildInterval(),
		Version:         version,
	}

	// Commands that embed or ingest need an embedding backend; the rest
	// of the CLI works without one.
	if apiKey := settings.EmbeddingAPIKey(); apiKey != "" {
		embedder, err := openai.NewEmbeddingService(openai.Config{
			APIKey:     apiKey,
			BaseURL:    settings.EmbeddingBaseURL(),
			Model:      settings.EmbeddingModel(),
			Dimensions: settings.EmbeddingDimensions(),
		})
		if err != nil {
			return err
		}
		defer embedder.Close()

		gate := services.NewEmbedGate(embedder)

		splitter := chunker.New(
			chunker.WithSize(settings.ChunkSize()),
			chunker.WithOverlap(settings.ChunkOverlap()),
			chunker.WithMinWords(settings.MinWords()),
		)

		extractor := normalisers.NewExtractor(registry, normalisers.NewRegistry())

		svcs.Reconciler = services.NewReconcilerService(
			store.SourceStore(),
			store.SyncStateStore(),
			store.DocumentStore(),
			store.GrantStore(),
			registry,
			extractor,
			splitter,
			gate,
			materializer,
			services.WithWorkers(settings.Workers()),
			services.WithExtensions(settings.Extensions()),
		)

		svcs.Search = services.NewSearchService(
			store.DocumentStore(),
			store.AccessStore(),
			gate,
			services.WithMaxK(settings.SearchMaxK()),
			services.WithMinScore(settings.SearchMinScore()),
			services.WithAnonymousAccess(settings.AnonymousAccess()),
		)
	}

	cli.Configure(svcs)
	return cli.Execute()
}

// buildDirectory selects the group directory backend from configuration.
func buildDirectory(configStore driven.ConfigStore, settings *file.Settings) (driven.Directory, error) {
	if settings.DirectoryKind() == "google" {
		creds := changefeedgoogle.Credentials{
			ClientID:     configStore.GetString("google.client_id"),
			ClientSecret: configStore.GetString("google.client_secret"),
			RefreshToken: configStore.GetString("google.refresh_token"),
		}
		return directorygoogle.New(context.Background(), creds)
	}

	groups := make(map[string]domain.GroupMembers)
	for name, users := range settings.StaticGroups() {
		groups[name] = domain.GroupMembers{Users: users}
	}
	return static.New(groups), nil
}
