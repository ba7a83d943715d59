package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/estate-atlas/pkg/server"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers"
	costanalyzer "github.com/de-tools/estate-atlas/pkg/services/analyzers/cost"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers/naming"
	"github.com/de-tools/estate-atlas/pkg/services/analyzers/tagging"
	"github.com/de-tools/estate-atlas/pkg/services/assessment"
	"github.com/de-tools/estate-atlas/pkg/services/config"
	"github.com/de-tools/estate-atlas/pkg/services/credential"
	"github.com/de-tools/estate-atlas/pkg/services/inventory"
	"github.com/de-tools/estate-atlas/pkg/services/license"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/assessment"
	credentialstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/credential"
	environmentstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/environment"
	findingstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/finding"
	licensestore "github.com/de-tools/estate-atlas/pkg/store/duckdb/license"
	resourcestore "github.com/de-tools/estate-atlas/pkg/store/duckdb/resource"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the Estate Atlas assessment engine",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the engine config file (YAML); omit to use defaults and environment variables")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("failed to create DuckDB instance: %w", err)
	}

	assessments, err := assessmentstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create assessment store: %w", err)
	}
	findings, err := findingstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create finding store: %w", err)
	}
	resources, err := resourcestore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create resource store: %w", err)
	}
	environments, err := environmentstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create environment store: %w", err)
	}
	credentials, err := credentialstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create credential store: %w", err)
	}
	plans, err := licensestore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create license store: %w", err)
	}

	refresher := credential.NewOAuthRefresher(cfg.OAuthConfig())
	prober := inventory.NewAccessProber(inventory.NewGraphClient)
	vault, err := credential.NewVault(credentials, refresher, prober, credential.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to create credential vault: %w", err)
	}

	registry, err := analyzers.NewRegistry(
		naming.NewAnalyzer(),
		tagging.NewAnalyzer(),
		costanalyzer.NewAnalyzer(),
	)
	if err != nil {
		return fmt.Errorf("failed to create analyzer registry: %w", err)
	}

	azureProfile := cfg.AzureProfile
	orchestrator, err := assessment.NewOrchestrator(assessment.Deps{
		DB:           db,
		Assessments:  assessments,
		Findings:     findings,
		Resources:    resources,
		Environments: environments,
		Vault:        vault,
		Gate:         license.NewGate(plans),
		Registry:     registry,
		GraphFactory: inventory.NewGraphClient,
		CostFactory:  inventory.NewCostCollector,
		Platform: func() (inventory.GraphClient, inventory.CostCollector, error) {
			cred, err := credential.PlatformCredential(azureProfile)
			if err != nil {
				return nil, nil, err
			}
			graph, err := inventory.NewGraphClient(cred)
			if err != nil {
				return nil, nil, err
			}
			collector, err := inventory.NewCostCollector(cred)
			if err != nil {
				return nil, nil, err
			}
			return graph, collector, nil
		},
		FetchOptions: cfg.FetchOptions(),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	mux := server.ConfigureRouter(server.Config{
		Dependencies: server.Dependencies{
			Orchestrator: orchestrator,
			Logger:       logger,
		},
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	logger.Info().Msgf("starting server on %s", addr)

	return http.ListenAndServe(addr, mux)
}
