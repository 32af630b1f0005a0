// Command unisql executes SQL scripts against any configured backend
// through the unisql engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/engine"
	"github.com/unisql-project/unisql/pkg/executor"
	"github.com/unisql-project/unisql/pkg/log"
	"github.com/unisql-project/unisql/pkg/pool"
	"github.com/unisql-project/unisql/pkg/registry"
	"github.com/unisql-project/unisql/pkg/result"
	"github.com/unisql-project/unisql/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("unisql", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		// Target selection
		profilesPath = fs.String("profiles", "", "Path to connection profiles JSON file")
		profileName  = fs.String("profile", "", "Named profile to connect with")
		backend      = fs.String("backend", "", "Backend kind (postgres, mysql, sqlserver, oracle, sqlite)")
		host         = fs.String("host", "", "Database host")
		port         = fs.Int("port", 0, "Database port (0 = backend default)")
		database     = fs.String("database", "", "Database name (file path for sqlite)")
		credEnv      = fs.String("cred-env", "UNISQL_CREDENTIALS", "Environment variable holding user:secret")

		// Execution
		scriptFile = fs.String("f", "", "SQL script file (default: stdin)")
		timeout    = fs.Duration("timeout", 30*time.Second, "Overall batch deadline")
		pageSize   = fs.Int("page-size", 50, "Rows per page when printing results")
		showSchema = fs.Bool("schema", false, "Print the schema snapshot instead of executing a script")

		// Logging
		logLevel  = fs.String("log-level", "warn", "Log level (debug, info, warn, error, off)")
		logFormat = fs.String("log-format", "text", "Log format (text, json)")
		logSQL    = fs.Bool("log-sql", false, "Log statement text to the audit category")
		verFlag   = fs.Bool("version", false, "Print version and exit")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *verFlag {
		fmt.Fprintln(stdout, version.Full())
		return 0
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	format := log.FormatText
	if strings.EqualFold(*logFormat, "json") {
		format = log.FormatJSON
	}
	logger := log.New(log.Config{DefaultLevel: level, Output: stderr, Format: format})

	desc, err := buildDescriptor(*profilesPath, *profileName, *backend, *host, *port, *database, *credEnv, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	eng := engine.New(engine.Config{
		Logger:        logger,
		PageSize:      *pageSize,
		LogStatements: *logSQL,
	})
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	handle, err := eng.Acquire(ctx, desc)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer eng.Release(handle)

	if *showSchema {
		return printSchema(ctx, eng, handle, stdout, stderr)
	}

	script, err := readScript(*scriptFile, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	batch, err := eng.RunBatch(ctx, handle, script)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	printBatch(batch, stdout, *pageSize)

	if batch.Summary().Failed > 0 {
		return 1
	}
	return 0
}

func buildDescriptor(profilesPath, profileName, backend, host string, port int, database, credEnv string, logger *log.Logger) (dialect.Descriptor, error) {
	if profilesPath != "" {
		reg, err := registry.Load(profilesPath, logger)
		if err != nil {
			return dialect.Descriptor{}, err
		}
		if profileName == "" {
			return dialect.Descriptor{}, fmt.Errorf("-profile is required with -profiles")
		}
		return reg.Descriptor(profileName)
	}

	if backend == "" {
		return dialect.Descriptor{}, fmt.Errorf("either -profiles/-profile or -backend is required")
	}

	creds, err := registry.EnvResolver(credEnv)
	if err != nil && dialect.Kind(backend) != dialect.KindSQLite {
		return dialect.Descriptor{}, err
	}

	return dialect.Descriptor{
		Kind:        dialect.Kind(backend),
		Host:        host,
		Port:        port,
		Database:    database,
		Credentials: creds,
	}, nil
}

func readScript(path string, stdin io.Reader) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printBatch(batch *executor.BatchResult, out io.Writer, pageSize int) {
	for _, r := range batch.Reports {
		fmt.Fprintf(out, "-- statement %d (%s): ", r.Statement.Position+1, r.Class)
		switch {
		case !r.Success:
			fmt.Fprintf(out, "FAILED: %v\n", r.Err)
		case r.Rows != nil:
			fmt.Fprintf(out, "%d row(s)\n", r.Rows.Len())
			printPage(r.Rows, out, pageSize)
		case r.RowsAffected != nil:
			fmt.Fprintf(out, "OK, %d row(s) affected\n", *r.RowsAffected)
		default:
			fmt.Fprintln(out, "OK")
		}
	}

	s := batch.Summary()
	fmt.Fprintf(out, "\n%d of %d statement(s) succeeded", s.Succeeded, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(out, ", %d failed", s.Failed)
	}
	fmt.Fprintln(out)
}

func printPage(rs *result.RowSet, out io.Writer, pageSize int) {
	view, err := result.Page(rs, 0, pageSize)
	if err != nil {
		return
	}

	fmt.Fprintln(out, strings.Join(rs.ColumnNames(), "\t"))
	for _, row := range view.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	if view.TotalPages > 1 {
		fmt.Fprintf(out, "(page 1 of %d, %d rows total)\n", view.TotalPages, view.TotalRows)
	}
}

func printSchema(ctx context.Context, eng *engine.Engine, handle *pool.Handle, out, stderr io.Writer) int {
	schema, err := eng.Describe(ctx, handle)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	names := schema.TableNames()
	sort.Strings(names)
	for _, name := range names {
		table := schema.Tables[name]
		fmt.Fprintf(out, "%s\n", name)
		for _, col := range table.Columns {
			attrs := []string{col.DeclaredType}
			if !col.Nullable {
				attrs = append(attrs, "NOT NULL")
			}
			if col.PrimaryKey {
				attrs = append(attrs, "PRIMARY KEY")
			}
			if col.ForeignKey != nil {
				attrs = append(attrs, fmt.Sprintf("REFERENCES %s(%s)", col.ForeignKey.Table, col.ForeignKey.Column))
			}
			fmt.Fprintf(out, "  %s %s\n", col.Name, strings.Join(attrs, " "))
		}
		for _, idx := range table.Indexes {
			kind := "INDEX"
			if idx.Unique {
				kind = "UNIQUE INDEX"
			}
			fmt.Fprintf(out, "  %s %s (%s)\n", kind, idx.Name, strings.Join(idx.Columns, ", "))
		}
	}
	return 0
}
