package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

func reportTool(dir string) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolWriteReport,
			Description: "Write an HTML file to disk. Use this tool whenever someone asks for a report.",
			Params: []Param{
				{Name: "filename", Type: schema.String, Desc: "File name of the report, e.g. churn.html.", Required: true},
				{Name: "html", Type: schema.String, Desc: "Full HTML content.", Required: true},
			},
		},
		fn: func(ctx context.Context, args Args) (Result, error) {
			return writeReport(dir, args.String("filename"), args.String("html"))
		},
	}
}

// writeReport stores html verbatim under dir. The filename is not sanitized:
// a name containing ".." escapes the reports directory.
func writeReport(dir, filename, html string) (Result, error) {
	if filename == "" {
		return Result{}, fmt.Errorf("%w: filename is empty", errx.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create reports dir: %w", err)
	}
	target := filepath.Join(dir, filename)
	if err := os.WriteFile(target, []byte(html), 0o644); err != nil {
		return Result{}, fmt.Errorf("write report: %w", err)
	}
	logx.Info().Str("path", target).Int("bytes", len(html)).Msg("report written")
	return Result{
		Value:     html,
		Artifacts: []model.Artifact{{Kind: model.ArtifactReport, Path: filepath.ToSlash(target)}},
	}, nil
}
