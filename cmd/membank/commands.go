package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/membank"
	"github.com/poiesic/membank/archive"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/ingestion"
	"github.com/poiesic/membank/prompts"
	"github.com/poiesic/membank/reembed"
	"github.com/poiesic/membank/search"
	"github.com/urfave/cli/v2"
)

// unsupportedLabel groups manifest files with no known category.
const unsupportedLabel = "unsupported"

// openBank opens the bank selected by the shared bank flags.
func openBank(c *cli.Context) (*membank.Bank, error) {
	opts := []membank.BankOption{membank.WithAIConfig(aiConfig(c))}
	if url := c.String("database-url"); url != "" {
		opts = append(opts, membank.WithPostgres(url))
	}

	bank, err := membank.Open(c.String("base-dir"), c.String("bank"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory bank: %w", err)
	}
	return bank, nil
}

// buildManifest groups files by category, keeping their order within a group.
func buildManifest(files []string) core.Manifest {
	groups := make(map[string][]string)
	for _, file := range files {
		label := unsupportedLabel
		if category, ok := core.Classify(file); ok {
			label = string(category)
		}
		groups[label] = append(groups[label], file)
	}
	return core.ManifestFromMap(groups)
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	files := c.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("at least one file is required")
	}

	policy, err := ingestion.ParseDeletePolicy(c.String("delete-policy"))
	if err != nil {
		return err
	}
	session := c.String("session")
	opts := []ingestion.Option{ingestion.WithDeletePolicy(policy)}

	if bucket := c.String("s3-bucket"); bucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:         bucket,
			Prefix:         c.String("s3-prefix"),
			Region:         c.String("s3-region"),
			Endpoint:       c.String("s3-endpoint"),
			ForcePathStyle: c.Bool("s3-path-style"),
			AccessKey:      c.String("aws-access-key-id"),
			SecretKey:      c.String("aws-secret-access-key"),
		}, session)
		if err != nil {
			return fmt.Errorf("failed to create archiver: %w", err)
		}
		opts = append(opts, ingestion.WithArchiver(archiver))
	}

	bank, err := openBank(c)
	if err != nil {
		return err
	}
	defer bank.Close()

	orchestrator, err := bank.NewSession(ctx, session, opts...)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session, err)
	}

	report, runErr := orchestrator.Run(ctx, buildManifest(files))
	if report != nil {
		printReport(c.App.Writer, report)
	}
	if runErr != nil {
		return fmt.Errorf("ingestion finished with errors: %w", runErr)
	}
	return nil
}

func printReport(w io.Writer, report *ingestion.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tRECORDS\tDELETED\tARCHIVE")
	for _, f := range report.Files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", f.Path, f.Status, f.Records, f.Deleted, f.Archive)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d files, %d records, %d deleted\n", len(report.Files), report.Records, report.Deleted())
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	bank, err := openBank(c)
	if err != nil {
		return err
	}
	defer bank.Close()

	searcher, err := bank.Searcher(ctx, c.String("session"),
		search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return err
	}

	results, err := searcher.FindSimilar(ctx, query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for i, result := range results {
		fmt.Fprintf(c.App.Writer, "%d. [%.3f] %v\n%s\n\n", i+1, result.Score,
			result.Record.Metadata[core.MetaFileName], result.Record.Text)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	// Create reembedding config
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Workers:        c.Int("workers"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	if reembedConfig.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}

	bank, err := openBank(c)
	if err != nil {
		return err
	}
	defer bank.Close()

	reembedder, err := bank.Reembedder(ctx, c.String("session"), reembedConfig, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Bank: %s\n", bank.Name())
	fmt.Fprintf(os.Stderr, "Session: %s\n", c.String("session"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func promptCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		for _, n := range prompts.Names() {
			fmt.Fprintln(c.App.Writer, n)
		}
		return nil
	}

	tmpl, err := prompts.Lookup(name)
	if err != nil {
		return err
	}

	document, err := readDocument(c.String("document"))
	if err != nil {
		return err
	}

	var rendered string
	if name == prompts.NameClientBriefClarification {
		rendered = prompts.RenderClientBrief(document, c.StringSlice("outlet"))
	} else {
		rendered = prompts.Render(tmpl, document)
	}
	fmt.Fprint(c.App.Writer, rendered)
	return nil
}

// readDocument returns the contents of path, stdin for "-", or "" when path is empty.
func readDocument(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return "", nil
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}
