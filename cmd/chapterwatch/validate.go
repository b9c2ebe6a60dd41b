package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/use-agent/chapterwatch/store"
	"github.com/use-agent/chapterwatch/tracker"
)

var flagWrite bool

func init() {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Report unusable series URLs and duplicate entries",
		Long: "Lists series whose URL is truncated or not http(s) and merges entries that\n" +
			"point at the same page, keeping the highest chapter. Nothing is written\n" +
			"unless --write is given.",
		RunE: runValidate,
	}
	validateCmd.Flags().BoolVar(&flagWrite, "write", false, "save the deduplicated store")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	s := store.NewYAMLStore(cfg.Tracker.SeriesFile)
	records, err := s.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	invalid := store.InvalidRecords(records)
	for _, r := range invalid {
		fmt.Fprintf(out, "invalid  %s: %q\n", r.Name, r.URL)
	}
	for _, r := range records {
		if store.IsTruncated(r.URL) {
			continue
		}
		if err := tracker.ValidateURL(r.URL); err != nil {
			fmt.Fprintf(out, "warning  %s: %v\n", r.Name, err)
		}
	}

	deduped, removed := store.Dedupe(records)
	fmt.Fprintf(out, "%d series, %d invalid, %d duplicates\n", len(records), len(invalid), removed)

	if !flagWrite {
		if removed > 0 {
			fmt.Fprintln(out, "run with --write to save the deduplicated store")
		}
		return nil
	}
	if removed == 0 {
		return nil
	}
	if err := s.Save(deduped); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %d series to %s\n", len(deduped), cfg.Tracker.SeriesFile)
	return nil
}
