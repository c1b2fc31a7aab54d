package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/ezql/internal/cli/config"
	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/spf13/cobra"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <sql>|-",
		Short: "Extract the lineage of one SQL statement",
		Long: `Extract the lineage of one standalone INSERT, REPLACE, UPDATE, DELETE,
CREATE TABLE, DROP TABLE or TRUNCATE statement and print it as JSON.

Pass "-" to read the statement from stdin. Use --output text or markdown
for a human readable rendering.`,
		Example: `  ezql extract "INSERT INTO dwh.fact (id) SELECT id FROM stg.orders"
  echo "TRUNCATE stg.orders;" | ezql extract -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readStatement(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runExtract(cmd, sql)
		},
	}
}

func readStatement(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		args = []string{string(data)}
	}
	sql := strings.TrimSpace(strings.Join(args, " "))
	if sql == "" {
		return "", errors.New("empty statement")
	}
	return sql, nil
}

func runExtract(cmd *cobra.Command, sql string) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := engine.New(cfg.EngineConfig(logger))
	if err != nil {
		return err
	}

	mode := cfg.OutputMode()
	if mode == output.ModeAuto {
		mode = output.ModeJSON
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	stmt, ok, err := eng.Extract(sql)
	if err != nil {
		return err
	}
	if !ok {
		r.Warnf("statement carries no table lineage and was discarded")
		return nil
	}
	return r.Statement(stmt)
}
