// Command cachectl exercises a cache configured from the environment:
// it runs the live self-test against every enabled tier, performs a
// short fetch workload and prints the composed statistics. Useful for
// verifying a deployment's Redis connectivity and strategy settings.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tiercache"
	"tiercache/config"
)

func main() {
	workload := flag.Int("n", 20, "number of demo fetches to run")
	key := flag.String("key", "cachectl:demo", "key used by the demo workload")
	flag.Parse()

	config.LoadDotenv()
	cfg := config.Load()

	cache, err := tiercache.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := cache.Test(ctx)
	fmt.Printf("Self-test: memory=%v remote=%v traffic=%v overall=%v\n",
		report.Memory, report.Remote, report.Traffic, report.Overall)

	for i := 0; i < *workload; i++ {
		_, err := cache.Fetch(ctx, *key, func(ctx context.Context) (interface{}, error) {
			return map[string]interface{}{"produced_at": time.Now().Format(time.RFC3339)}, nil
		}, tiercache.TTL(time.Minute))
		if err != nil {
			log.Fatalf("Fetch failed: %v", err)
		}
	}

	stats, err := json.MarshalIndent(cache.Stats(), "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode stats: %v", err)
	}
	fmt.Println(string(stats))

	if !report.Overall {
		os.Exit(1)
	}
}
