package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localrecos/recos-engine/internal/enrichment"
	"github.com/localrecos/recos-engine/internal/search"
	"github.com/localrecos/recos-engine/internal/synthesis"
)

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var (
		city   string
		filter string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search restaurants by food and city",
		Long: `Search classifies the query, filters restaurants by cuisine and
qualifiers, falls back to a text match and, when a city is given and
nothing matches, synthesizes plausible restaurants.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			start := time.Now()
			resp, err := application.Service.Search(ctx, search.Request{
				Query:  strings.Join(args, " "),
				City:   city,
				Filter: filter,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if outputJSON {
				return ui.JSON(resp)
			}
			printResponse(resp, time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city to search in")
	cmd.Flags().StringVar(&filter, "filter", "", "result filter: under15, highlyRated or open")

	return cmd
}

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Search with a free-form question",
		Long: `Ask sends the question to the configured language model to extract a
city and food type, then searches with them. Without a model the whole
question is used as the query.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			start := time.Now()
			stop := ui.Spinner("Understanding your question...")
			resp, err := application.Service.SearchNatural(ctx, strings.Join(args, " "), filter)
			stop()
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if outputJSON {
				return ui.JSON(resp)
			}

			ui.Section("Understood")
			city := "any"
			if resp.Extraction.City != nil {
				city = *resp.Extraction.City
			}
			ui.KeyValue("City", city)
			ui.KeyValue("Food", resp.Extraction.FoodType)
			if resp.Extraction.Fallback {
				ui.Warning("Could not interpret the question; searched for it verbatim")
			}
			printResponse(resp.Response, time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "result filter: under15, highlyRated or open")

	return cmd
}

// newClassifyCmd creates the classify subcommand.
func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <query>",
		Short: "Show the cuisine and qualifier tags a query triggers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			application, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			cls := application.Service.Classify(query)
			if outputJSON {
				return ui.JSON(map[string]interface{}{"query": query, "classification": cls})
			}

			ui.Section("Classification")
			ui.KeyValue("Query", query)
			ui.KeyValue("Cuisines", joinOrNone(cls.Cuisines))
			ui.KeyValue("Qualifiers", joinOrNone(cls.Qualifiers))
			if cls.IsGeneric() {
				ui.Info("Generic query: every restaurant in the city is a candidate")
			}
			return nil
		},
	}
}

// newSentimentCmd creates the sentiment subcommand.
func newSentimentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment <text>",
		Short: "Score the sentiment of a community comment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			stop := ui.Spinner("Analyzing...")
			sentiment, err := application.Service.AnalyzeSentiment(ctx, strings.Join(args, " "))
			stop()
			if err != nil {
				return fmt.Errorf("sentiment analysis failed: %w", err)
			}

			if outputJSON {
				return ui.JSON(sentiment)
			}
			ui.Section("Sentiment")
			ui.KeyValue("Score", fmt.Sprintf("%.2f", sentiment.Score))
			ui.KeyValue("Summary", sentiment.Summary)
			return nil
		},
	}
}

// newGenerateCmd creates the generate subcommand.
func newGenerateCmd() *cobra.Command {
	var (
		city string
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "generate <query>",
		Short: "Preview synthetic restaurants for a query without storing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if city == "" {
				return fmt.Errorf("--city is required")
			}
			query := strings.Join(args, " ")

			var opts []synthesis.Option
			if seed != 0 {
				opts = append(opts, synthesis.WithSeed(seed))
			}
			drafts := synthesis.NewGenerator(opts...).Generate(query, city)

			if outputJSON {
				return ui.JSON(drafts)
			}

			ui.Section("Synthetic preview")
			ui.KeyValue("Food type", synthesis.FoodType(query, city))
			ui.KeyValue("City", city)
			fmt.Println()

			rows := make([][]string, 0, len(drafts))
			for _, d := range drafts {
				rows = append(rows, []string{
					d.Name,
					formatRating(d.GoogleRating),
					d.PriceRange.Label(),
					strings.Join(d.Categories, ", "),
				})
			}
			ui.Table([]string{"Name", "Rating", "Price", "Categories"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city the drafts belong to (required)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for a reproducible preview")

	return cmd
}

// newShowCmd creates the show subcommand.
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one restaurant with its community recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid restaurant id %q", args[0])
			}

			application, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			r, err := application.Service.Restaurant(cmd.Context(), id)
			if err != nil {
				return err
			}
			if outputJSON {
				return ui.JSON(r)
			}

			ui.Section(r.Name)
			ui.KeyValue("City", r.City)
			ui.KeyValue("Address", r.Address)
			ui.KeyValue("Rating", formatRating(r.GoogleRating))
			ui.KeyValue("Price", r.PriceRange.Label())
			ui.KeyValue("Categories", strings.Join(r.Categories, ", "))
			if r.SentimentSummary != nil {
				ui.KeyValue("Community", *r.SentimentSummary)
			}
			for _, rec := range r.Recommendations {
				ui.Info("%s: %s", rec.Subreddit, rec.Content)
			}
			return nil
		},
	}
}

// newCitiesCmd creates the cities subcommand.
func newCitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "List the popular cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			cities := application.Service.Cities()
			if outputJSON {
				return ui.JSON(cities)
			}
			rows := make([][]string, 0, len(cities))
			for _, c := range cities {
				rows = append(rows, []string{c.ID, c.Name})
			}
			ui.Table([]string{"ID", "Name"}, rows)
			return nil
		},
	}
}

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			entries, err := application.Service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if outputJSON {
				return ui.JSON(entries)
			}
			if len(entries) == 0 {
				ui.Info("No searches yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				city := "-"
				if e.City != nil {
					city = *e.City
				}
				rows = append(rows, []string{e.CreatedAt.Format(time.RFC3339), e.Query, city})
			}
			ui.Table([]string{"When", "Query", "City"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (default from config)")

	return cmd
}

func printResponse(resp *search.Response, elapsed time.Duration) {
	ui.Section("Results")
	ui.KeyValue("Query", resp.Query)
	if resp.City != "" {
		ui.KeyValue("City", resp.City)
	}
	ui.KeyValue("Stage", resp.Stage)
	if resp.Filter != enrichment.FilterNone {
		ui.KeyValue("Filter", resp.Filter)
	}
	ui.KeyValue("Took", FormatDuration(elapsed))
	if resp.Cached {
		ui.Info("Served from cache")
	}
	if resp.Synthesized > 0 {
		ui.Warning("%d restaurants were synthesized; no community data backs them yet", resp.Synthesized)
	}
	fmt.Println()

	if len(resp.Results) == 0 {
		ui.Info("No restaurants found")
		return
	}
	ui.Table([]string{"ID", "Name", "Rating", "Price", "Categories", "Sentiment"}, resultRows(resp.Results))
}

func resultRows(results []enrichment.EnrichedRestaurant) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		sentiment := "-"
		if r.SentimentScore != nil {
			sentiment = fmt.Sprintf("%.0f%%", *r.SentimentScore*100)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			formatRating(r.GoogleRating),
			string(r.PriceRange),
			strings.Join(r.Categories, ", "),
			sentiment,
		})
	}
	return rows
}

func formatRating(rating *float64) string {
	if rating == nil {
		return "-"
	}
	return strconv.FormatFloat(*rating, 'f', 1, 64)
}

func joinOrNone[T ~string](tags []T) string {
	if len(tags) == 0 {
		return "none"
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
