package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemRender(t *testing.T) {
	t.Parallel()

	out, err := NewSystem([]string{"customer_data", "raw_transactions"}, "").Render(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out, "The database has tables of: customer_data, raw_transactions")
	assert.Contains(t, out, "'describe_tables'")
	assert.Contains(t, out, "Image Path: <path_to_image>")
	assert.Contains(t, out, "'run_sqlite_query' must be printed out")
	assert.NotContains(t, out, "{{")
}

func TestSystemRenderExtra(t *testing.T) {
	t.Parallel()

	out, err := NewSystem(nil, "  Answer in Thai.  ").Render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "\n\nAnswer in Thai.")
}
