/*
File: main.go
Version: 1.7.0
Description: Entry point. Loads configuration and models, then assesses one
             URL or a batch from a file and prints verdicts as JSON lines.
*/

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	urlArg := flag.String("url", "", "Single URL to assess")
	filePath := flag.String("file", "", "File with one URL per line to assess as a batch")
	noNetwork := flag.Bool("no-network", false, "Skip network probes for this run")
	pretty := flag.Bool("pretty", false, "Indent JSON output")
	flag.Parse()

	var opts []AssessOption
	if *noNetwork {
		opts = append(opts, WithNetworkProbes(false))
	}

	var cfg *Config
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = DefaultConfig()
	}

	if err := InitLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer ShutdownLogger()

	detector, err := NewDetector(cfg)
	if err != nil {
		LogFatal("[MAIN] Startup failed: %v", err)
	}

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	switch {
	case *urlArg != "":
		verdict, err := detector.Assess(ctx, *urlArg, opts...)
		if err != nil {
			LogError("[MAIN] %s: %v", *urlArg, err)
			os.Exit(2)
		}
		enc.Encode(verdict)

	case *filePath != "":
		urls, err := readURLFile(*filePath)
		if err != nil {
			LogFatal("[MAIN] Cannot read %s: %v", *filePath, err)
		}
		failures := 0
		for i, res := range detector.AssessMany(ctx, urls, opts...) {
			if res.Err != nil {
				LogError("[MAIN] %s: %v", urls[i], res.Err)
				failures++
				continue
			}
			enc.Encode(res.Verdict)
		}
		if failures > 0 {
			os.Exit(2)
		}

	default:
		flag.Usage()
		os.Exit(1)
	}
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
