package pcaparser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
)

var (
	ErrMalformedRecord = errors.New("malformed pca record")
	ErrDuplicateTrack  = errors.New("duplicate track id")
)

const (
	reportEvery = 100000
)

// PcaParser reads the output of the projection stage: one "id,x,y" row per track, x and y in [0, 1].
// a header row is skipped.
type PcaParser struct {
	log logr.Logger
}

func NewPcaParser(log logr.Logger) *PcaParser {
	return &PcaParser{log: log}
}

func (p *PcaParser) ParseFile(ctx context.Context, path string) ([]datastructure.PcaCoordinate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p.log.Info("reading pca file", "path", path)
	return p.Parse(ctx, f)
}

func (p *PcaParser) Parse(ctx context.Context, r io.Reader) ([]datastructure.PcaCoordinate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	coords := make([]datastructure.PcaCoordinate, 0)
	seen := make(map[int]struct{})
	for line := 1; ; line++ {
		if line%reportEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			p.log.V(1).Info("parsing pca file", "line", line)
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}

		if line == 1 && isHeader(record) {
			continue
		}

		c, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		if !c.Valid() {
			p.log.Info("skipping track outside the unit square", "id", c.ID, "x", c.X, "y", c.Y)
			continue
		}
		if _, ok := seen[c.ID]; ok {
			return nil, fmt.Errorf("%w: %d on line %d", ErrDuplicateTrack, c.ID, line)
		}
		seen[c.ID] = struct{}{}
		coords = append(coords, c)
	}

	p.log.Info("pca file parsed", "tracks", len(coords))
	return coords, nil
}

func isHeader(record []string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(record[0]))
	return err != nil
}

func parseRecord(record []string) (datastructure.PcaCoordinate, error) {
	id, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return datastructure.PcaCoordinate{}, fmt.Errorf("id %q", record[0])
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return datastructure.PcaCoordinate{}, fmt.Errorf("x %q", record[1])
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return datastructure.PcaCoordinate{}, fmt.Errorf("y %q", record[2])
	}
	return datastructure.NewPcaCoordinate(id, x, y), nil
}
