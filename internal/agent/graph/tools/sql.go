package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
)

func listTablesTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolListTables,
			Description: "List the tables available in the SQLite database.",
		},
		fn: func(ctx context.Context, _ Args) (Result, error) {
			names, err := src.ListTables(ctx)
			if err != nil {
				return Result{}, err
			}
			return Result{Value: strings.Join(names, "\n")}, nil
		},
	}
}

func describeTablesTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolDescribeTables,
			Description: "Given a list of table names, returns the schema of those tables.",
			Params: []Param{
				{Name: "tables_names", Type: schema.Array, Items: schema.String, Desc: "Table names to describe.", Required: true},
			},
		},
		fn: func(ctx context.Context, args Args) (Result, error) {
			ddl, err := src.DescribeTables(ctx, args.Strings("tables_names"))
			if err != nil {
				return Result{}, err
			}
			return Result{Value: ddl}, nil
		},
	}
}

func queryTool(src DataSource, limit int) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolRunSQLiteQuery,
			Description: "Run a read-only SQLite query. Only SELECT, WITH and EXPLAIN statements are accepted.",
			Params: []Param{
				{Name: "query", Type: schema.String, Desc: "A single SQL statement.", Required: true},
			},
		},
		fn: func(ctx context.Context, args Args) (Result, error) {
			res, err := src.Query(ctx, args.String("query"), limit)
			if err != nil {
				return Result{}, err
			}
			return Result{Value: res}, nil
		},
	}
}
