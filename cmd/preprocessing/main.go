package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/go-logr/stdr"
	"github.com/lintang-b-s/songmap/pkg/kv"
	"github.com/lintang-b-s/songmap/pkg/pcaparser"
)

var (
	pcaFile    = flag.String("f", "pca.csv", "csv file with one id,x,y row per track, x and y in [0, 1]")
	dbDir      = flag.String("db", "./songmap.db", "badger directory the coordinates are stored in")
	clearDB    = flag.Bool("clear", false, "remove every stored coordinate before loading")
	verbosity  = flag.Int("v", 0, "log verbosity")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()

		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("preprocessing")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coords, err := pcaparser.NewPcaParser(logger.WithName("parser")).ParseFile(ctx, *pcaFile)
	if err != nil {
		log.Fatal(err)
	}
	recordMemProfile(memprofile, "parsing_pca_data")

	kvDB, err := kv.OpenKVDB(*dbDir, logger.WithName("kv"))
	if err != nil {
		log.Fatal(err)
	}
	defer kvDB.Close()

	if *clearDB {
		if err := kvDB.ClearPcaData(); err != nil {
			log.Fatal(err)
		}
	}

	if err := kvDB.InsertPcaCoordinates(ctx, coords); err != nil {
		log.Fatal(err)
	}

	count, err := kvDB.GetPcaDataCount()
	if err != nil {
		log.Fatal(err)
	}
	recordMemProfile(memprofile, "saving_pca_data")

	fmt.Printf("\n%d tracks stored in %s\n", count, *dbDir)
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
