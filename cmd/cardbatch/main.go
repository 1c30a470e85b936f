// Command cardbatch runs the business card pipeline over a local directory
// and writes the records as CSV or XLSX.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cardscan-backend/internal/bootstrap"
	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/export"
	"cardscan-backend/internal/extraction"
	"cardscan-backend/internal/shared/config"
	"cardscan-backend/internal/shared/util"
)

func main() {
	cfg := config.Load()

	dir := flag.String("dir", cfg.LocalStoreDir, "Directory of card images (jpg, jpeg, png)")
	outPath := flag.String("out", "", "Output file (defaults to business_cards.<format> in the current directory)")
	formatFlag := flag.String("format", "csv", "Output format: csv or xlsx")
	rawPath := flag.String("raw", "", "Path to write the decoded replies as JSON (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider: openai or gemini")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	flag.Parse()

	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		exitErr(err.Error())
	}

	images, err := listImages(*dir)
	if err != nil {
		exitErr(fmt.Sprintf("list images: %v", err))
	}

	if cfg.ClassifierModel == "" || cfg.ClassifierModel == cfg.LLMModel {
		cfg.ClassifierModel = *model
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(*provider))
	cfg.LLMModel = *model
	ctx := context.Background()
	classifierModel, extractorModel, err := bootstrap.BuildVisionModels(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}

	pipeline := extraction.Pipeline{
		Classifier:   cards.NewClassifier(classifierModel),
		Extractor:    cards.NewExtractor(extractorModel),
		MaxImageEdge: cfg.MaxImageEdge,
		Load: func(ctx context.Context, name string) ([]byte, error) {
			_ = ctx
			return os.ReadFile(filepath.Join(*dir, name))
		},
		LogFields: map[string]any{"dir": *dir},
	}

	res, err := pipeline.Run(ctx, images)
	if err != nil {
		if errors.Is(err, extraction.ErrNoImages) {
			exitErr("No images found to process.")
		}
		exitErr(err.Error())
	}

	for _, n := range res.Notices {
		line := fmt.Sprintf("[%s] %s", n.Level, n.Message)
		if n.Cause != "" {
			line += ": " + n.Cause
		}
		_, _ = fmt.Fprintln(os.Stderr, line)
	}

	data, err := export.Render(format, res.Records)
	if err != nil {
		exitErr(fmt.Sprintf("render %s: %v", format, err))
	}
	target := *outPath
	if strings.TrimSpace(target) == "" {
		target = format.FileName()
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		exitErr(fmt.Sprintf("write output: %v", err))
	}

	if *rawPath != "" {
		pretty, err := prettyJSON(res.Archive)
		if err != nil {
			exitErr(fmt.Sprintf("format json: %v", err))
		}
		if err := os.WriteFile(*rawPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write raw output: %v", err))
		}
	}

	fmt.Printf("processed=%d skipped=%d failed=%d records=%d -> %s\n", res.Processed, res.Skipped, res.Failed, len(res.Records), target)
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && util.IsImageName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func prettyJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
