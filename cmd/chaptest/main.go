// Command chaptest prints the metadata and chapter marks of one audio file.
// Handy for checking how a specific file parses without running a scan.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/audiofolio/audiofolio-server/internal/scanner"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: chaptest <audio_file>")
	}

	path := os.Args[1]
	fmt.Printf("Testing: %s\n\n", path)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	analyzer := scanner.NewAnalyzer(logger, []string{"eng"})

	meta, err := analyzer.Analyze(ctx, path)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	if meta == nil {
		log.Fatal("File is not a parsable audio container")
	}

	fmt.Printf("Format: %s\n", meta.Format)
	fmt.Printf("Duration: %s\n", meta.Duration)
	fmt.Printf("Album: %s\n", meta.Album)
	fmt.Printf("Title: %s\n", meta.Title)
	fmt.Printf("Artist: %s\n", meta.Artist)
	if meta.Narrator != "" {
		fmt.Printf("Narrator: %s\n", meta.Narrator)
	}
	if meta.Series != "" {
		fmt.Printf("Series: %s (part %s)\n", meta.Series, meta.Part)
	}
	fmt.Println()

	fmt.Printf("Chapters: %d\n", len(meta.Chapters))
	for i, mark := range meta.Chapters {
		if i >= 10 {
			fmt.Printf("  ... and %d more chapters\n", len(meta.Chapters)-10)
			break
		}
		fmt.Printf("  [%d] %s (%.1f sec)\n", i, mark.Name, mark.Start.Seconds())
	}

	for _, warning := range meta.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
}
