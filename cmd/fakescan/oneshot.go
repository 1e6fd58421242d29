package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/straja-ai/fakescan/internal/media"
)

func oneShot(name string, args []string) (*app, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "fakescan.yaml", "Path to fakescan config file")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return nil, "", errors.New("expected exactly one file argument")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return nil, "", err
	}
	a, err := newApp(context.Background(), cfg, false)
	if err != nil {
		return nil, "", err
	}
	return a, fs.Arg(0), nil
}

func runAnalyze(args []string) error {
	a, path, err := oneShot("analyze", args)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := a.analyzer.AnalyzeFile(context.Background(), filepath.Base(path), data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Body())
}

func runAudio(args []string) error {
	a, path, err := oneShot("audio", args)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Println(a.audio.CheckTool(context.Background(), data))
	return nil
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	configPath := fs.String("config", "fakescan.yaml", "Path to fakescan config file")
	n := fs.Int("n", 50, "number of iterations")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("expected an image argument")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// Single session so queueing does not skew the numbers.
	cfg.Models.Image.Sessions = 1

	a, err := newApp(context.Background(), cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	img, err := media.Decode(data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	// Warmup also triggers the lazy model load.
	for i := 0; i < 3; i++ {
		if _, err := a.analyzer.ScoreImage(ctx, img); err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}
	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if _, err := a.analyzer.ScoreImage(ctx, img); err != nil {
			return err
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations)-1)*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f size=%dx%d model=%s\n",
		len(durations),
		avg,
		p50,
		p95,
		img.Width,
		img.Height,
		cfg.Models.Image.Path,
	)
	return nil
}
