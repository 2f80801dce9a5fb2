package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caredata/migrator/internal/audit"
	"github.com/caredata/migrator/pkg/database"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest run recorded in the audit store",
		RunE: func(c *cobra.Command, args []string) error {
			return runStatus()
		},
	}
	return cmd
}

func runStatus() error {
	uri := os.Getenv("AUDIT_MONGO_URI")
	if uri == "" {
		return fmt.Errorf("%w: AUDIT_MONGO_URI is not set", errConfig)
	}

	client, err := database.ConnectMongo(uri)
	if err != nil {
		return err
	}
	sink := audit.NewMongoSink(client)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	defer sink.Close(context.Background())

	events, err := sink.LatestRun(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No migration runs recorded.")
		return nil
	}

	fmt.Printf("Run %s\n", events[0].RunID)
	for _, e := range events {
		line := fmt.Sprintf("%s  %-28s", e.Timestamp.Format(time.RFC3339), e.Type)
		if e.Table != "" {
			line += fmt.Sprintf("  %s/%s", e.Service, e.Table)
		}
		if v, ok := e.Details["migratedRecords"]; ok {
			line += fmt.Sprintf("  migrated=%v failed=%v", v, e.Details["failedRecords"])
		}
		fmt.Println(line)
	}
	return nil
}
