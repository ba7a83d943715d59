package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
	environmentstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/environment"
	findingstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/finding"
	licensestore "github.com/de-tools/estate-atlas/pkg/store/duckdb/license"
)

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "atlas",
		Short: "Estate Atlas administration CLI",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "estate-atlas.db", "Path to the engine database")

	rootCmd.AddCommand(envAddCmd(), planSetCmd(), findingsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envAddCmd() *cobra.Command {
	var (
		orgID    string
		clientID string
		name     string
		tenantID string
		subs     []string
	)

	cmd := &cobra.Command{
		Use:   "env-add",
		Short: "Register an environment for an organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
			if err != nil {
				return err
			}
			defer db.Close()

			envs, err := environmentstore.NewStore(db)
			if err != nil {
				return err
			}

			env := store.Environment{
				ID:              uuid.NewString(),
				OrgID:           orgID,
				Name:            name,
				TenantID:        tenantID,
				SubscriptionIDs: subs,
			}
			if clientID != "" {
				env.ClientID = &clientID
			}
			if err := envs.Upsert(cmd.Context(), env); err != nil {
				return err
			}

			fmt.Printf("environment %s created\n", env.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&clientID, "client", "", "Client ID (optional)")
	cmd.Flags().StringVar(&name, "name", "", "Environment name")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Azure tenant ID")
	cmd.Flags().StringSliceVar(&subs, "subscriptions", nil, "Subscription IDs")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("subscriptions")

	return cmd
}

func planSetCmd() *cobra.Command {
	var (
		orgID          string
		name           string
		maxAssessments int
		maxSubs        int
	)

	cmd := &cobra.Command{
		Use:   "plan-set",
		Short: "Set an organization's plan limits (0 means unlimited)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
			if err != nil {
				return err
			}
			defer db.Close()

			plans, err := licensestore.NewStore(db)
			if err != nil {
				return err
			}

			plan := store.Plan{OrgID: orgID, Name: name}
			if maxAssessments > 0 {
				plan.MaxAssessmentsPerMonth = &maxAssessments
			}
			if maxSubs > 0 {
				plan.MaxSubscriptions = &maxSubs
			}
			if err := plans.UpsertPlan(cmd.Context(), plan); err != nil {
				return err
			}

			fmt.Printf("plan for %s updated\n", orgID)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&name, "name", "team", "Plan name")
	cmd.Flags().IntVar(&maxAssessments, "max-assessments", 0, "Max assessments per month")
	cmd.Flags().IntVar(&maxSubs, "max-subscriptions", 0, "Max subscriptions per assessment")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func findingsCmd() *cobra.Command {
	var (
		assessmentID string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Print the findings of an assessment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
			if err != nil {
				return err
			}
			defer db.Close()

			findings, err := findingstore.NewStore(db)
			if err != nil {
				return err
			}

			records, err := findings.List(cmd.Context(), assessmentID, 0, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEVERITY\tCATEGORY\tRESOURCE\tISSUE")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.Severity, rec.Category, rec.ResourceName, rec.Issue)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&assessmentID, "assessment", "", "Assessment ID")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max findings to print")
	_ = cmd.MarkFlagRequired("assessment")

	return cmd
}
