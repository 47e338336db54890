package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/places-catalog/internal/api"
	"github.com/sells-group/places-catalog/internal/places"
)

var (
	searchType     string
	searchLocation string
	searchPage     int
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search, upsert the results and print a page of the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "search")
		if err != nil {
			return err
		}
		defer env.Close()

		return runSearch(cmd.Context(), env.Pipeline, places.SearchRequest{
			Type:     searchType,
			Location: searchLocation,
			Page:     searchPage,
			Limit:    searchLimit,
		}, cmd.OutOrStdout())
	},
}

// runSearch runs req and writes the resulting page to out as indented JSON.
func runSearch(ctx context.Context, search api.Searcher, req places.SearchRequest, out io.Writer) error {
	res, err := search.Run(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	searchCmd.Flags().StringVar(&searchType, "type", "", "business type, e.g. cafe")
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "location, e.g. \"Austin, TX\"")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "page of the catalog to print")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "page size")
	_ = searchCmd.MarkFlagRequired("type")
	_ = searchCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(searchCmd)
}
