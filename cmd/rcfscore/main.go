// Command rcfscore reads comma-delimited rows from stdin, scores each one
// against a Random Cut Forest, updates the forest with it, and prints the
// score. This is the same read/score/update loop as the original
// streaming-scoring example, re-expressed with kong-driven flags in place
// of the original's hand-rolled argument parsing.
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/elee1766/rcforest/pkg/rcf"
	"github.com/elee1766/rcforest/pkg/rcf/config"
)

// CLI is the root command structure.
type CLI struct {
	LogLevel string `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`

	Score ScoreCmd `cmd:"" default:"1" help:"Score stdin rows against a Random Cut Forest and update it with each row"`
}

// ScoreCmd scores a streamed CSV against a forest, one row at a time.
type ScoreCmd struct {
	Dimension         int     `short:"d" required:"" help:"Dimensionality of each input row"`
	NumTrees          int     `short:"n" default:"50" help:"Number of trees in the forest"`
	SampleSize        int     `short:"s" default:"256" help:"Number of samples retained per tree"`
	TimeDecay         float64 `short:"t" default:"0.000390625" help:"Time-decay parameter for reservoir sampling"`
	IgnoreFirstColumn bool    `help:"Ignore the first column of input (e.g. a timestamp)"`
}

func (c *ScoreCmd) Run(cli *CLI) error {
	logger := makeLogger(cli.LogLevel)

	cfg := config.New()
	cfg.Dimension = c.Dimension
	cfg.NumTrees = c.NumTrees
	cfg.SampleSize = c.SampleSize
	cfg.TimeDecay = c.TimeDecay

	f, err := rcf.NewForest(cfg)
	if err != nil {
		return fmt.Errorf("create forest: %w", err)
	}
	logger.Info("forest created", "id", f.ID(), "dimension", cfg.Dimension, "num_trees", cfg.NumTrees)

	startIndex := 0
	if c.IgnoreFirstColumn {
		startIndex = 1
	}

	reader := csv.NewReader(bufio.NewReader(os.Stdin))
	reader.FieldsPerRecord = -1

	var rows, parseErrors int
	var sumScore, minScore, maxScore float64
	minScore = -1

	var timestamp int64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}

		point := make([]float32, c.Dimension)
		ok := true
		for i := 0; i < c.Dimension; i++ {
			idx := startIndex + i
			if idx >= len(record) {
				ok = false
				break
			}
			value, err := strconv.ParseFloat(record[idx], 32)
			if err != nil {
				ok = false
				break
			}
			point[i] = float32(value)
		}
		if !ok {
			parseErrors++
			logger.Warn("skipping unparseable row", "row", rows)
			continue
		}

		score, err := f.Score(point)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		if err := f.Update(point, timestamp); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		timestamp++

		fmt.Println(score)

		rows++
		sumScore += score
		if minScore < 0 || score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}

	printSummary(rows, parseErrors, sumScore, minScore, maxScore, f)
	return nil
}

func printSummary(rows, parseErrors int, sumScore, minScore, maxScore float64, f *rcf.Forest) {
	mean := 0.0
	if rows > 0 {
		mean = sumScore / float64(rows)
	}
	if minScore < 0 {
		minScore = 0
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stderr)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Run Summary")
	t.AppendRow(table.Row{"Rows scored", rows})
	t.AppendRow(table.Row{"Rows skipped", parseErrors})
	t.AppendRow(table.Row{"Mean score", fmt.Sprintf("%.4f", mean)})
	t.AppendRow(table.Row{"Min score", fmt.Sprintf("%.4f", minScore)})
	t.AppendRow(table.Row{"Max score", fmt.Sprintf("%.4f", maxScore)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Entries seen", f.EntriesSeen()})
	t.AppendRow(table.Row{"Point store size", f.PointStoreSize()})
	t.AppendRow(table.Row{"Total size", humanize.IBytes(uint64(f.TotalSizeBytes()))})
	t.Render()
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("rcfscore"),
		kong.Description("Random Cut Forest streaming anomaly scorer"),
		kong.UsageOnError(),
	)
	err := ctx.Run(cli)
	ctx.FatalIfErrorf(err)
}

func makeLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
