package reply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-analytics/server/internal/agent/model"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ngrok.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractChartPath(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "image path line", text: "Done.\nImage Path: charts/3f2a_b-1.png", want: "charts/3f2a_b-1.png"},
		{name: "first of many", text: "charts/a.png and charts/b.png", want: "charts/a.png"},
		{name: "wrong extension", text: "charts/a.jpg"},
		{name: "nested dir", text: "charts/x/a.png"},
		{name: "plain text", text: "no chart here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractChartPath(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != "", ok)
		})
	}
}

func TestNgrokLogResolver(t *testing.T) {
	log := "t=2024 lvl=info msg=\"starting\"\n" +
		"t=2024 lvl=info msg=\"started tunnel\" obj=tunnels name=command_line addr=http://localhost:8000 url=https://ab12-34.ngrok-free.app\x00\n" +
		"t=2024 lvl=info url=https://later.ngrok-free.app\n"

	base, err := NgrokLogResolver{Path: writeLog(t, log)}.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://ab12-34.ngrok-free.app", base)
}

func TestNgrokLogResolverStripsNulBytes(t *testing.T) {
	log := "url=https://ab\x00cd.ngrok-free.app\n"

	base, err := NgrokLogResolver{Path: writeLog(t, log)}.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://abcd.ngrok-free.app", base)
}

func TestNgrokLogResolverNotFound(t *testing.T) {
	_, err := NgrokLogResolver{Path: writeLog(t, "lvl=info msg=starting\n")}.BaseURL(context.Background())
	assert.ErrorIs(t, err, ErrNoPublicURL)

	_, err = NgrokLogResolver{Path: filepath.Join(t.TempDir(), "missing.log")}.BaseURL(context.Background())
	assert.ErrorIs(t, err, ErrNoPublicURL)
}

func TestChainResolver(t *testing.T) {
	ctx := context.Background()

	base, err := ChainResolver{StaticResolver(""), StaticResolver("https://example.com/")}.BaseURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", base)

	_, err = ChainResolver{StaticResolver(" ")}.BaseURL(ctx)
	assert.ErrorIs(t, err, ErrNoPublicURL)

	_, err = ChainResolver{}.BaseURL(ctx)
	assert.ErrorIs(t, err, ErrNoPublicURL)
}

type failingResolver struct{}

func (failingResolver) BaseURL(context.Context) (string, error) {
	return "", errors.New("tunnel down")
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	ok := NewBuilder(StaticResolver("https://example.com"))

	tests := []struct {
		name    string
		builder *Builder
		result  *model.TurnResult
		want    model.OutboundMessage
	}{
		{
			name:    "plain text",
			builder: ok,
			result:  &model.TurnResult{Answer: schema.AssistantMessage("Top customers: 1, 2, 3", nil)},
			want:    model.TextMessage("Top customers: 1, 2, 3"),
		},
		{
			name:    "path in text",
			builder: ok,
			result:  &model.TurnResult{Answer: schema.AssistantMessage("Image Path: charts/abc.png", nil)},
			want:    model.ImageMessage("https://example.com/charts/abc.png"),
		},
		{
			name:    "text path wins over artifact",
			builder: ok,
			result: &model.TurnResult{
				Answer:    schema.AssistantMessage("Image Path: charts/abc.png", nil),
				Artifacts: []model.Artifact{{Kind: model.ArtifactImage, Path: "charts/other.png"}},
			},
			want: model.ImageMessage("https://example.com/charts/abc.png"),
		},
		{
			name:    "artifact fallback",
			builder: ok,
			result: &model.TurnResult{
				Answer: schema.AssistantMessage("Here is your chart.", nil),
				Artifacts: []model.Artifact{
					{Kind: model.ArtifactImage, Path: "charts/first.png"},
					{Kind: model.ArtifactImage, Path: "charts/last.png"},
					{Kind: model.ArtifactReport, Path: "reports/r.html"},
				},
			},
			want: model.ImageMessage("https://example.com/charts/last.png"),
		},
		{
			name:    "report artifact only",
			builder: ok,
			result: &model.TurnResult{
				Answer:    schema.AssistantMessage("Saved.", nil),
				Artifacts: []model.Artifact{{Kind: model.ArtifactReport, Path: "reports/r.html"}},
			},
			want: model.TextMessage("Saved."),
		},
		{
			name:    "resolution failure",
			builder: NewBuilder(failingResolver{}),
			result:  &model.TurnResult{Answer: schema.AssistantMessage("Image Path: charts/abc.png", nil)},
			want:    model.TextMessage(PlotErrorText),
		},
		{
			name:    "no resolver",
			builder: NewBuilder(nil),
			result:  &model.TurnResult{Answer: schema.AssistantMessage("Image Path: charts/abc.png", nil)},
			want:    model.TextMessage(PlotErrorText),
		},
		{
			name:    "non text answer",
			builder: ok,
			result: &model.TurnResult{Answer: &schema.Message{
				Role: schema.Assistant,
				MultiContent: []schema.ChatMessagePart{
					{Type: schema.ChatMessagePartTypeText, Text: "part one"},
					{Type: schema.ChatMessagePartTypeText, Text: "part two"},
				},
			}},
			want: model.TextMessage("part one\npart two"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.builder.Build(ctx, "s1", tt.result))
		})
	}
}
