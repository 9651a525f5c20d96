package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/setanarut/pixelpress/fetch"
	"github.com/setanarut/pixelpress/grid"
	"github.com/setanarut/pixelpress/job"
	"github.com/setanarut/pixelpress/palette"
	"github.com/setanarut/pixelpress/replay"
	"github.com/setanarut/pixelpress/server"
)

var log = logrus.New()

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, using environment defaults")
	}
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		addr     = flag.String("addr", env("PIXELPRESS_ADDR", ":8080"), "listen address")
		siteURL  = flag.String("site", env("PIXELPRESS_SITE_URL", "https://place.example.com/draw"), "target canvas site URL")
		genURL   = flag.String("generator", env("PIXELPRESS_GENERATOR_URL", "https://image.pollinations.ai/prompt"), "free generator base URL")
		policy   = flag.String("policy", env("PIXELPRESS_POLICY", "dark-background"), "background policy: dark-background or light-background")
		suggest  = flag.String("suggest", "", "extract a candidate palette from an image file and exit")
		suggestK = flag.Int("k", 12, "palette size for -suggest")
	)
	flag.Parse()

	if *suggest != "" {
		suggestPalette(*suggest, *suggestK)
		return
	}

	var pol grid.Policy
	switch *policy {
	case "light-background":
		pol = grid.PolicyLightBackground
	case "dark-background":
		pol = grid.PolicyDarkBackground
	default:
		log.Fatalf("unknown policy %q", *policy)
	}

	var source fetch.Source
	if apiKey := os.Getenv("PIXELPRESS_API_KEY"); apiKey != "" {
		source = fetch.NewAPISource(env("PIXELPRESS_API_URL", "https://api.openai.com/v1/images/generations"), apiKey)
		log.Info("using paid generation API")
	} else {
		source = fetch.NewURLSource(*genURL)
		log.WithField("url", *genURL).Info("using free generator endpoint")
	}

	engine := replay.NewEngine(replay.DefaultSite(*siteURL), log)
	jobs := job.NewMemStore(nil)
	srv := server.New(source, engine, jobs, palette.Default(), pol, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartSweeper(ctx, 5*time.Minute)

	log.WithFields(logrus.Fields{"addr": *addr, "policy": pol.String()}).Info("pixelpress listening")
	if err := http.ListenAndServe(*addr, srv.Router()); err != nil {
		log.Fatal(err)
	}
}

// suggestPalette prints a candidate palette extracted from an image so
// the fixed site palette can be tuned against real generator output.
func suggestPalette(path string, k int) {
	buf, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	img, err := fetch.Decode(buf)
	if err != nil {
		log.Fatal(err)
	}
	for i, e := range palette.FromImage(img, k, palette.MethodKMeans) {
		fmt.Printf("%2d %s\n", i, e.Name)
	}
}
