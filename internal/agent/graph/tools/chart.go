package tools

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const (
	// UnsupportedChartType is returned as the tool value, not as an error,
	// when the chart type is neither bar nor line.
	UnsupportedChartType = "Unsupported chart type"

	// ChartPathPrefix is the public relative directory of chart images.
	ChartPathPrefix = "charts"
)

func chartTool(dir string) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolPlotChart,
			Description: "Draw a chart (bar or line) from x and y values and return path to image file.",
			Params: []Param{
				{Name: "type", Type: schema.String, Desc: "Chart type: bar or line.", Required: true},
				{Name: "x", Type: schema.Array, Items: schema.String, Desc: "Category labels for the x axis.", Required: true},
				{Name: "y", Type: schema.Array, Items: schema.Number, Desc: "Values, one per x label.", Required: true},
				{Name: "title", Type: schema.String, Desc: "Chart title.", Default: "Chart"},
			},
		},
		fn: func(ctx context.Context, args Args) (Result, error) {
			return renderChart(dir, args.String("type"), args.Strings("x"), args.Floats("y"), args.String("title"))
		},
	}
}

func renderChart(dir, typ string, x []string, y []float64, title string) (Result, error) {
	if typ != "bar" && typ != "line" {
		return Result{Value: UnsupportedChartType}, nil
	}
	if len(x) == 0 || len(x) != len(y) {
		return Result{}, fmt.Errorf("%w: x and y must be non-empty and equal length (got %d and %d)", errx.ErrInvalidInput, len(x), len(y))
	}

	p := plot.New()
	p.Title.Text = title
	switch typ {
	case "bar":
		bars, err := plotter.NewBarChart(plotter.Values(y), vg.Points(24))
		if err != nil {
			return Result{}, fmt.Errorf("build bar chart: %w", err)
		}
		p.Add(bars)
	case "line":
		pts := make(plotter.XYs, len(y))
		for i, v := range y {
			pts[i].X = float64(i)
			pts[i].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return Result{}, fmt.Errorf("build line chart: %w", err)
		}
		p.Add(line, plotter.NewGrid())
	}
	p.NominalX(x...)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create charts dir: %w", err)
	}
	id := uuid.New()
	name := hex.EncodeToString(id[:]) + ".png"
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filepath.Join(dir, name)); err != nil {
		return Result{}, fmt.Errorf("save chart: %w", err)
	}

	rel := path.Join(ChartPathPrefix, name)
	logx.Debug().Str("path", rel).Str("type", typ).Int("points", len(y)).Msg("chart rendered")
	return Result{Value: rel, Artifacts: []model.Artifact{{Kind: model.ArtifactImage, Path: rel}}}, nil
}
