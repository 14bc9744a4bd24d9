package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kbrag/config"
	"kbrag/internal/adapter/embedding"
	"kbrag/internal/adapter/retriever"
	"kbrag/internal/adapter/store"
)

func main() {
	dir := flag.String("dir", ".", "Knowledge-base directory holding .kbrag")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of chunk matches")
	expect := flag.String("expect", "", "Comma-separated titles the query should retrieve")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./kb -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (endpoint connection, vector store)")
		fmt.Println("  2. Semantic similarity (query vs stored chunks)")
		fmt.Println("  3. Document aggregation (boosted relevance, threshold)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(config.StoreDBPath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := embedding.New(cfg, cfg.APIKey())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	if err != nil || stats.TotalRecords == 0 {
		fmt.Fprintln(os.Stderr, "No vectors stored - run 'kbrag ingest' first")
		os.Exit(1)
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Vectors stored: %d (%d documents)\n", stats.TotalRecords, stats.TotalDocuments)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", stats.Dimension)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	queryVec, err := embedder.Embed(ctx, *query, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	embedTime := time.Since(start)
	fmt.Printf("Query embedded: %d dimensions in %s\n\n", len(queryVec), embedTime.Round(time.Millisecond))

	start = time.Now()
	records, err := st.GetAllVectors(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		os.Exit(1)
	}
	ranked := retriever.Rank(queryVec, records, cfg.Search.Threshold)
	rankTime := time.Since(start)
	results := retriever.TopK(ranked, *topK)

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := []rune(r.Record.Content)
		text := string(preview)
		if len(preview) > 150 {
			text = string(preview[:150]) + "..."
		}
		text = strings.ReplaceAll(text, "\n", " ")

		similarity := r.Relevance
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s part %d/%d\n", i+1, rating, similarity, r.Record.Title, r.Record.ChunkIndex+1, r.Record.TotalChunks)
		fmt.Printf("   %s\n\n", text)
	}

	docs := retriever.AggregateAll(retriever.TopK(ranked, retriever.CandidateLimit(stats.TotalDocuments)), cfg.Search.Threshold)
	fmt.Println("Document aggregation:")
	for _, d := range docs {
		marker := "kept"
		if d.BelowThreshold {
			marker = "dropped"
		}
		fmt.Printf("  %-7s %.3f (max %.3f, %d blocks) %s\n", marker, d.Relevance, d.MaxRelevance, d.BlockCount, d.Title)
	}
	fmt.Println()

	kept := retriever.Aggregate(retriever.TopK(ranked, retriever.CandidateLimit(stats.TotalDocuments)), cfg.Search.Threshold, cfg.Search.MaxResults)

	avgScore := 0.0
	if len(results) > 0 {
		avgScore = totalScore / float64(len(results))
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	if len(results) > 0 {
		fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Relevance)
	}
	fmt.Printf("  Ranking time:       %s for %d vectors\n", rankTime.Round(time.Microsecond), len(records))
	if *expect != "" {
		var expected []string
		for _, title := range strings.Split(*expect, ",") {
			if title = strings.TrimSpace(title); title != "" {
				expected = append(expected, title)
			}
		}
		ev := retriever.Evaluate(kept, expected)
		fmt.Printf("  Precision:          %.3f\n", ev.Precision)
		fmt.Printf("  Recall:             %.3f\n", ev.Recall)
		fmt.Printf("  Reciprocal rank:    %.3f\n", ev.ReciprocalRank)
	}

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a different embedding model or re-ingestion")
	}
}
