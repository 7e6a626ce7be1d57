package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobtailor/internal/scraping"
)

var (
	scrapeSearchTerm string
	scrapeLocation   string
	scrapeSites      []string
	scrapeResults    int
	scrapeHoursOld   int
	scrapeRemote     bool
	scrapeExperience string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Search the supported job boards and print results as JSON",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeSearchTerm, "search-term", "s", "", "Search term (required)")
	scrapeCmd.Flags().StringVarP(&scrapeLocation, "location", "l", "", "Location filter")
	scrapeCmd.Flags().StringSliceVar(&scrapeSites, "sites", []string{"indeed", "linkedin"}, "Job boards to search")
	scrapeCmd.Flags().IntVar(&scrapeResults, "results", 20, "Maximum number of results")
	scrapeCmd.Flags().IntVar(&scrapeHoursOld, "hours-old", 0, "Only include listings newer than this many hours")
	scrapeCmd.Flags().BoolVar(&scrapeRemote, "remote", false, "Only include remote listings")
	scrapeCmd.Flags().StringVar(&scrapeExperience, "experience", "", "Experience level filter (e.g. entry)")
	_ = scrapeCmd.MarkFlagRequired("search-term")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(_ *cobra.Command, _ []string) error {
	jobs, err := scraping.New(nil).Scrape(context.Background(), scraping.Params{
		Sites:           scrapeSites,
		SearchTerm:      scrapeSearchTerm,
		Location:        scrapeLocation,
		ResultsWanted:   scrapeResults,
		HoursOld:        scrapeHoursOld,
		IsRemote:        scrapeRemote,
		ExperienceLevel: scrapeExperience,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(jobs)
}
