package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caredata/migrator/internal/recommend"
	"github.com/caredata/migrator/pkg/models"
)

type recommendOptions struct {
	InputFile    string
	PatternsFile string
}

func newRecommendCmd() *cobra.Command {
	opts := &recommendOptions{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate field-mapping recommendations from sampled records",
		RunE: func(c *cobra.Command, args []string) error {
			return runRecommend(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "JSON file with sampled source records")
	cmd.Flags().StringVarP(&opts.PatternsFile, "patterns", "p", "", "Optional pattern-library snapshot to load")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runRecommend(opts *recommendOptions) error {
	raw, err := os.ReadFile(opts.InputFile)
	if err != nil {
		return fmt.Errorf("%w: read samples: %v", errConfig, err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%w: samples must be a JSON array of objects: %v", errConfig, err)
	}
	samples := make([]models.Row, 0, len(decoded))
	for _, m := range decoded {
		samples = append(samples, models.RowFromAny(m))
	}

	store := recommend.NewStore()
	if opts.PatternsFile != "" {
		snap, err := os.ReadFile(opts.PatternsFile)
		if err != nil {
			return fmt.Errorf("%w: read pattern snapshot: %v", errConfig, err)
		}
		if err := store.Restore(snap); err != nil {
			return fmt.Errorf("%w: %v", errConfig, err)
		}
	}

	recommender := recommend.NewRecommender(store)
	recs, err := recommender.GenerateMappings(samples)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
