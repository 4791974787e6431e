// Package reply turns a finished agent turn into the message shipped back to
// the user.
package reply

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

// PlotErrorText replaces a chart that could not be attached.
const PlotErrorText = "Error generating plots !"

var chartPathPattern = regexp.MustCompile(`charts/[a-zA-Z0-9_\-]+\.png`)

// ExtractChartPath returns the first chart path embedded in text.
func ExtractChartPath(text string) (string, bool) {
	p := chartPathPattern.FindString(text)
	return p, p != ""
}

// Builder packages turn results.
type Builder struct {
	resolver BaseURLResolver
}

func NewBuilder(resolver BaseURLResolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build chooses the outbound message for a turn. A chart path in the answer
// text wins; otherwise the last image artifact of the turn is attached. When
// no public URL can be found the user gets a plain text notice.
func (b *Builder) Build(ctx context.Context, sessionID string, res *model.TurnResult) model.OutboundMessage {
	if res == nil || res.Answer == nil {
		return model.TextMessage("")
	}
	text := answerText(res.Answer)

	path, ok := ExtractChartPath(text)
	if !ok {
		path, ok = lastImage(res.Artifacts)
	}
	if !ok {
		return model.TextMessage(text)
	}

	url, err := b.resolve(ctx, path)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Str("path", path).Msg("chart could not be attached")
		return model.TextMessage(PlotErrorText)
	}
	logx.Debug().Str("session_id", sessionID).Str("url", url).Msg("attaching chart")
	return model.ImageMessage(url)
}

func (b *Builder) resolve(ctx context.Context, path string) (string, error) {
	if b.resolver == nil {
		return "", &errx.ArtifactResolutionError{Path: path, Err: ErrNoPublicURL}
	}
	base, err := b.resolver.BaseURL(ctx)
	if err != nil {
		return "", &errx.ArtifactResolutionError{Path: path, Err: err}
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func lastImage(artifacts []model.Artifact) (string, bool) {
	for i := len(artifacts) - 1; i >= 0; i-- {
		if artifacts[i].Kind == model.ArtifactImage && artifacts[i].Path != "" {
			return artifacts[i].Path, true
		}
	}
	return "", false
}

// answerText stringifies non-text answers.
func answerText(msg *schema.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	var parts []string
	for _, p := range msg.MultiContent {
		if p.Type == schema.ChatMessagePartTypeText {
			parts = append(parts, p.Text)
			continue
		}
		if s, err := sonic.MarshalString(p); err == nil {
			parts = append(parts, s)
		} else {
			parts = append(parts, fmt.Sprintf("%v", p))
		}
	}
	return strings.Join(parts, "\n")
}
