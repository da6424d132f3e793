package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/stdr"
	"github.com/lintang-b-s/songmap/pkg/clustering"
	"github.com/lintang-b-s/songmap/pkg/engine/lod"
	"github.com/lintang-b-s/songmap/pkg/kv"
	"github.com/lintang-b-s/songmap/pkg/server/rest"
	"github.com/lintang-b-s/songmap/pkg/server/rest/service"
	"github.com/lintang-b-s/songmap/pkg/snap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listenAddr    = flag.String("listenaddr", ":5000", "server listen address")
	dbDir         = flag.String("db", "./songmap.db", "badger directory written by the preprocessing binary")
	canvasSize    = flag.Float64("canvas", lod.DefaultCanvasSize, "size of the canvas the unit square is scaled onto")
	searchRadius  = flag.Float64("radius", clustering.DefaultSearchRadius, "maximum distance between two points merged into one cluster")
	minPoints     = flag.Int("minpoints", clustering.DefaultMinPoints, "stop building levels when a level has fewer points")
	maxLevels     = flag.Int("maxlevels", 0, "maximum number of levels above level 0, 0 means no limit")
	strategy      = flag.String("strategy", "greedy", "clustering strategy, greedy or advanced")
	defaultPoints = flag.Int("points", 500, "number of points shown on screen at the default level")
	snapRadius    = flag.Float64("snapradius", 200, "pointer snapping radius")
	compressLevel = flag.Int("compress", 5, "response compression level")
	verbosity     = flag.Int("v", 0, "log verbosity")
	memprofile    = flag.String("memprofile", "", "write memory profile to this file")
)

func main() {
	flag.Parse()

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("songmap")

	clusterStrategy, err := clustering.ParseStrategy(*strategy)
	if err != nil {
		log.Fatal(err)
	}

	kvDB, err := kv.OpenKVDB(*dbDir, logger.WithName("kv"))
	if err != nil {
		log.Fatal(err)
	}
	defer kvDB.Close()

	coords, err := kvDB.GetPcaCoordinates(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	recordMemProfile(memprofile, "load_pca_data")

	cfg := lod.DefaultConfig()
	cfg.SearchRadius = *searchRadius
	cfg.MinPoints = *minPoints
	cfg.MaxLevels = *maxLevels
	cfg.Strategy = clusterStrategy

	manager, err := lod.NewSongPointManagerFromCoordinates(coords, *canvasSize, cfg, logger.WithName("lod"))
	if err != nil {
		log.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := rest.NewMetrics(reg)

	start := time.Now()
	if err := manager.Cluster(); err != nil {
		log.Fatal(err)
	}
	m.ObserveCluster(time.Since(start), manager.MaxLevel(), manager.Len())
	m.SetLevel(manager.SetDefaultLevel(*defaultPoints))
	recordMemProfile(memprofile, "cluster_levels")

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(rest.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(rest.NewCompressor(*compressLevel).Handler)

	r.Mount("/debug", middleware.Profiler())

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	snapper := snap.NewPointSnapper(manager, *snapRadius)
	songMapSvc := service.NewSongMapService(manager, snapper, logger.WithName("service"))

	rest.SongMapRouter(r, songMapSvc, m, logger.WithName("rest"))

	fmt.Printf("\n%d songs on %d levels, showing level %d\n", manager.Len(), manager.MaxLevel()+1, manager.Level())
	fmt.Printf("server started at %s\n", *listenAddr)

	log.Fatal(http.ListenAndServe(*listenAddr, r))
}

func recordMemProfile(memprofile *string, name string) {
	if *memprofile != "" {
		*memprofile = strings.Replace(*memprofile, ".mprof", fmt.Sprintf("%s.mprof", name), -1)
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
