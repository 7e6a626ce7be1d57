package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobtailor/internal/config"
	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
	"github.com/jonathan/jobtailor/internal/pdfgen"
	"github.com/jonathan/jobtailor/internal/tailor"
)

var (
	tailorConfigPath string
	tailorJobTitle   string
	tailorCompany    string
	tailorJobFile    string
	tailorCVFile     string
	tailorOutDir     string
)

var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Generate a tailored CV and cover letter for one job posting",
	Long: `Reads a job description from a file, tailors the CV with the configured
AI provider and writes both documents as PDFs to the output directory.`,
	RunE: runTailor,
}

func init() {
	tailorCmd.Flags().StringVar(&tailorConfigPath, "config", "", "Path to config.json")
	tailorCmd.Flags().StringVarP(&tailorJobTitle, "job-title", "j", "", "Job title (required)")
	tailorCmd.Flags().StringVarP(&tailorCompany, "company", "c", "", "Company name")
	tailorCmd.Flags().StringVarP(&tailorJobFile, "job-file", "f", "", "Path to job description text file (required)")
	tailorCmd.Flags().StringVar(&tailorCVFile, "cv-file", "", "Path to CV text file (optional, a built-in template is used otherwise)")
	tailorCmd.Flags().StringVarP(&tailorOutDir, "out", "o", ".", "Output directory for the generated PDFs")
	_ = tailorCmd.MarkFlagRequired("job-title")
	_ = tailorCmd.MarkFlagRequired("job-file")
	rootCmd.AddCommand(tailorCmd)
}

func runTailor(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := config.Load(tailorConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	description, err := os.ReadFile(tailorJobFile)
	if err != nil {
		return fmt.Errorf("failed to read job description: %w", err)
	}

	var cvTemplate string
	if tailorCVFile != "" {
		cv, err := os.ReadFile(tailorCVFile)
		if err != nil {
			return fmt.Errorf("failed to read CV file: %w", err)
		}
		cvTemplate = string(cv)
	}

	svc, err := newTailorService(cfg)
	if err != nil {
		return err
	}

	result, err := svc.Tailor(ctx, tailor.Request{
		JobTitle:    tailorJobTitle,
		Company:     tailorCompany,
		Description: string(description),
		CVTemplate:  cvTemplate,
	})
	if err != nil {
		return fmt.Errorf("tailoring failed: %w", err)
	}

	cvPath := filepath.Join(tailorOutDir, "tailored_cv.pdf")
	clPath := filepath.Join(tailorOutDir, "cover_letter.pdf")
	if err := os.WriteFile(cvPath, result.CVPDF, 0o644); err != nil {
		return fmt.Errorf("failed to write CV PDF: %w", err)
	}
	if err := os.WriteFile(clPath, result.CoverLetterPDF, 0o644); err != nil {
		return fmt.Errorf("failed to write cover letter PDF: %w", err)
	}

	fmt.Printf("Wrote %s and %s (key %s, %d attempt(s))\n", cvPath, clPath, result.KeyUsed, result.Attempts)
	return nil
}

func newTailorService(cfg *config.Config) (*tailor.Service, error) {
	pool, err := keypool.New(cfg.APIKeyList(),
		keypool.WithCooldown(cfg.Cooldown()),
		keypool.WithFailureThreshold(cfg.FailureThreshold),
	)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.Provider, llm.Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	return tailor.NewService(pool, client, pdfgen.NewChromeRenderer()), nil
}
