// Command resolve runs one company resolution against a saved page, a live
// URL or a bare company name and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"companylens/internal/candidates"
	"companylens/internal/config"
	"companylens/internal/mapping"
	"companylens/internal/models"
	"companylens/internal/normalize"
	"companylens/internal/pages"
	"companylens/internal/storage"
)

func main() {
	var (
		file     = flag.String("file", "", "HTML file to resolve")
		pageURL  = flag.String("url", "", "job page URL to fetch and resolve")
		name     = flag.String("name", "", "company name to normalize without a page")
		withJob  = flag.Bool("job", false, "include the job description as Markdown")
		timeout  = flag.Duration("timeout", 30*time.Second, "overall timeout")
		allowLAN = flag.Bool("allow-private", false, "allow fetching from private addresses")
	)
	flag.Parse()

	cfg := config.Load()
	heuristics, err := config.LoadHeuristics(cfg.HeuristicsFile)
	if err != nil {
		log.Fatalf("load heuristics failed: %v", err)
	}

	if *name != "" {
		info := normalize.Analyze(*name)
		printJSON(models.NormalizeResponse{Company: info, Candidates: candidates.ForCompany(info)})
		return
	}

	var html string
	switch {
	case *file != "":
		raw, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read %s failed: %v", *file, err)
		}
		html = string(raw)
	case *pageURL == "":
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fetchOpts := []pages.FetcherOption{
		pages.WithTimeout(cfg.FetchTimeout),
		pages.WithMaxBytes(cfg.FetchMaxBytes),
	}
	if *allowLAN || cfg.AllowPrivateIPs {
		fetchOpts = append(fetchOpts, pages.AllowPrivateAddresses())
	}

	registry := pages.NewRegistry(pages.Config{
		Heuristics:     heuristics,
		Mappings:       mapping.New(storage.NewMemory()),
		Fetcher:        pages.NewFetcher(fetchOpts...),
		ProfileBaseURL: cfg.ProfileBaseURL,
	})
	defer registry.CloseAll()

	p, err := registry.Open(ctx, *pageURL, html)
	if err != nil {
		log.Fatalf("resolve failed: %v", err)
	}

	out := struct {
		Page models.PageResponse   `json:"page"`
		Job  *models.JobDescription `json:"job,omitempty"`
	}{Page: p.Response()}

	if *withJob {
		job, err := p.JobDescription()
		if err != nil {
			log.Printf("job description unavailable: %v", err)
		} else {
			out.Job = &job
		}
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output failed: %v", err)
	}
}
