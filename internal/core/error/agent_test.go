package errx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("%w: zero variance in income", ErrDegenerateData)

	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"schema", &SchemaValidationError{Tool: "x", Fields: []FieldError{{Name: "k", Reason: "required"}}}, ErrSchemaValidation},
		{"tool", &ToolExecutionError{Tool: "x", Err: cause}, ErrToolExecution},
		{"artifact", &ArtifactResolutionError{Path: "charts/a.png", Err: errors.New("no url")}, ErrArtifactResolution},
		{"turn", &UnhandledTurnError{SessionID: "s", Err: context.DeadlineExceeded}, ErrUnhandledTurn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
		})
	}

	toolErr := &ToolExecutionError{Tool: "discover_churn_factors", Err: cause}
	assert.ErrorIs(t, toolErr, ErrDegenerateData)
	assert.Contains(t, toolErr.Error(), "discover_churn_factors")
}

func TestSchemaValidationErrorMessage(t *testing.T) {
	t.Parallel()

	err := &SchemaValidationError{Tool: "plot_chart", Fields: []FieldError{
		{Name: "type", Reason: "required"},
		{Name: "colour", Reason: "unknown field"},
	}}
	assert.Equal(t, "tool arguments violate schema: plot_chart: type: required; colour: unknown field", err.Error())
}

func TestWrapRedisAndSQLite(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapRedis(nil))
	assert.Nil(t, WrapSQLite(nil))

	notFound := WrapRedis(redis.Nil)
	var appErr *AppError
	require.ErrorAs(t, notFound, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.ErrorIs(t, notFound, redis.Nil)

	assert.Equal(t, http.StatusBadGateway, StatusOf(WrapRedis(errors.New("dial tcp")), 0))
	assert.Equal(t, http.StatusNotFound, StatusOf(WrapSQLite(sql.ErrNoRows), 0))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(WrapSQLite(errors.New("disk I/O")), 0))
	assert.Equal(t, http.StatusTeapot, StatusOf(errors.New("plain"), http.StatusTeapot))
}
