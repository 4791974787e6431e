package reply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrNoPublicURL means no resolver could discover a base URL.
	ErrNoPublicURL = errors.New("public base URL not found")

	ngrokURLPattern = regexp.MustCompile(`url=(https://[a-zA-Z0-9\-]+\.ngrok-free.app)`)
)

// BaseURLResolver discovers the externally reachable base URL of the chart
// directory.
type BaseURLResolver interface {
	BaseURL(ctx context.Context) (string, error)
}

// StaticResolver returns a configured base URL.
type StaticResolver string

func (s StaticResolver) BaseURL(context.Context) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(string(s)), "/")
	if base == "" {
		return "", ErrNoPublicURL
	}
	return base, nil
}

// NgrokLogResolver reads the tunnel URL from an ngrok log file. The file is
// re-read on every call because the tunnel may restart.
type NgrokLogResolver struct {
	Path string
}

func (r NgrokLogResolver) BaseURL(context.Context) (string, error) {
	raw, err := os.ReadFile(r.Path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrNoPublicURL, r.Path, err)
	}
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	for _, line := range strings.Split(string(raw), "\n") {
		if m := ngrokURLPattern.FindStringSubmatch(line); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: no tunnel url in %s", ErrNoPublicURL, r.Path)
}

// ChainResolver returns the first base URL any of its resolvers finds.
type ChainResolver []BaseURLResolver

func (c ChainResolver) BaseURL(ctx context.Context) (string, error) {
	errs := make([]error, 0, len(c))
	for _, r := range c {
		base, err := r.BaseURL(ctx)
		if err == nil {
			return base, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoPublicURL
	}
	return "", errors.Join(errs...)
}
