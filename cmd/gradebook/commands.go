package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/okian/gradebook/internal/adapters/export"
	app "github.com/okian/gradebook/internal/app"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
)

// cliEnv is what every command runs against.
type cliEnv struct {
	cfg *config.Config
	svc *app.Service
	out io.Writer
}

type command struct {
	usage  string
	server bool
	run    func(ctx context.Context, env *cliEnv, args []string) error
}

//nolint:gochecknoglobals // command table
var commands = map[string]command{
	"serve":          {usage: "", server: true, run: runServe},
	"add-student":    {usage: "NAME", run: runAddStudent},
	"remove-student": {usage: "NAME", run: runRemoveStudent},
	"record":         {usage: "NAME SUBJECT SCORE", run: runRecord},
	"remove-score":   {usage: "NAME INDEX", run: runRemoveScore},
	"average":        {usage: "NAME [SUBJECT]", run: runAverage},
	"averages":       {usage: "[-subject S]", run: runAverages},
	"stats":          {usage: "[-subject S]", run: runStats},
	"students":       {usage: "", run: runStudents},
	"subjects":       {usage: "", run: runSubjects},
	"show":           {usage: "NAME", run: runShow},
	"rank":           {usage: "[-subject S] [-where EXPR] [-limit N]", run: runRank},
	"export":         {usage: "[-o FILE]", run: runExport},
	"import":         {usage: "[-create] FILE|-", run: runImport},
}

//nolint:gochecknoglobals // help output order
var commandOrder = []string{
	"serve", "add-student", "remove-student", "record", "remove-score",
	"average", "averages", "stats", "students", "subjects", "show", "rank", "export", "import",
}

// errRejected reports an import that skipped some rows.
var errRejected = errors.New("rows rejected")

func exactArgs(args []string, n int) error {
	if len(args) != n {
		return errUsage
	}
	return nil
}

// subcommandFlags returns a silent flag set; parse errors surface as errUsage.
func subcommandFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return errUsage
	}
	return nil
}

func runAddStudent(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	if err := env.svc.AddStudent(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "added student %s\n", model.NormalizeName(args[0]))
	return nil
}

func runRemoveStudent(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	if err := env.svc.RemoveStudent(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "removed student %s\n", model.NormalizeName(args[0]))
	return nil
}

func runRecord(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 3); err != nil {
		return err
	}
	sc, err := env.svc.RecordScore(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "recorded %s %s for %s\n", sc.Subject, model.FormatValue(sc.Value), model.NormalizeName(args[0]))
	return nil
}

func runRemoveScore(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: %q", records.ErrInvalidIndex, args[1])
	}
	if err := env.svc.RemoveScore(ctx, args[0], index); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "removed score %d from %s\n", index, model.NormalizeName(args[0]))
	return nil
}

func runAverage(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	subject := ""
	if len(args) == 2 {
		subject = args[1]
	}
	avg, err := env.svc.Average(ctx, args[0], subject)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, model.FormatValue(avg))
	return nil
}

func runAverages(ctx context.Context, env *cliEnv, args []string) error {
	fs := subcommandFlags("averages")
	subject := fs.String("subject", "", "restrict to one subject")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	all, err := env.svc.AllAverages(ctx, *subject)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	slices.Sort(names)
	tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, model.FormatValue(all[name]))
	}
	return tw.Flush()
}

func runStats(ctx context.Context, env *cliEnv, args []string) error {
	fs := subcommandFlags("stats")
	subject := fs.String("subject", "", "restrict to one subject")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := env.svc.Statistics(ctx, *subject)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "count\t%d\n", s.Count)
	fmt.Fprintf(tw, "mean\t%s\n", model.FormatValue(s.Mean))
	fmt.Fprintf(tw, "median\t%s\n", model.FormatValue(s.Median))
	fmt.Fprintf(tw, "mode\t%s\n", model.FormatValue(s.Mode))
	fmt.Fprintf(tw, "std_dev\t%s\n", model.FormatValue(s.StdDev))
	fmt.Fprintf(tw, "min\t%s\n", model.FormatValue(s.Min))
	fmt.Fprintf(tw, "max\t%s\n", model.FormatValue(s.Max))
	return tw.Flush()
}

func runStudents(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 0); err != nil {
		return err
	}
	names, err := env.svc.Students(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(env.out, name)
	}
	return nil
}

func runSubjects(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 0); err != nil {
		return err
	}
	subjects, err := env.svc.Subjects(ctx)
	if err != nil {
		return err
	}
	for _, s := range subjects {
		fmt.Fprintln(env.out, s)
	}
	return nil
}

func runShow(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	st, err := env.svc.Student(ctx, args[0])
	if err != nil {
		return err
	}
	avg, err := env.svc.Average(ctx, st.Name, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, st.Name)
	tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	for i, sc := range st.Scores {
		fmt.Fprintf(tw, "  [%d]\t%s\t%s\n", i, sc.Subject, model.FormatValue(sc.Value))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "average: %s\n", model.FormatValue(avg))
	return nil
}

func runRank(ctx context.Context, env *cliEnv, args []string) error {
	fs := subcommandFlags("rank")
	subject := fs.String("subject", "", "rank by one subject")
	where := fs.String("where", "", "filter expression over name, average, count, subject")
	limit := fs.Int("limit", 0, "show at most N entries (0 = all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	entries, err := env.svc.Ranking(ctx, records.RankQuery{Subject: *subject, Where: *where, Limit: *limit})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", e.Rank, e.Name, model.FormatValue(e.Average), e.Count)
	}
	return tw.Flush()
}

func runExport(ctx context.Context, env *cliEnv, args []string) error {
	fs := subcommandFlags("export")
	path := fs.String("o", "", "write to FILE instead of stdout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rows, err := env.svc.ExportRows(ctx)
	if err != nil {
		return err
	}
	if *path == "" {
		return export.WriteCSV(env.out, rows)
	}
	f, err := os.Create(*path)
	if err != nil {
		return fmt.Errorf("create %s: %w", *path, err)
	}
	if err := export.WriteCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *path, err)
	}
	fmt.Fprintf(env.out, "exported to %s\n", *path)
	return nil
}

func runImport(ctx context.Context, env *cliEnv, args []string) error {
	fs := subcommandFlags("import")
	create := fs.Bool("create", false, "register students missing from the gradebook")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}

	var in io.Reader = os.Stdin
	if path := fs.Arg(0); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	report, err := env.svc.Import(ctx, in, *create)
	fmt.Fprintf(env.out, "imported %d scores\n", report.Applied)
	for _, f := range report.Failures {
		fmt.Fprintf(env.out, "rejected %v\n", f.Err)
	}
	if err != nil {
		return err
	}
	if n := len(report.Failures); n > 0 {
		return fmt.Errorf("%d %w", n, errRejected)
	}
	return nil
}
