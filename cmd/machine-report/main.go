package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/agrof66/machine-dashboard/internal/config"
	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/internal/logging"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/internal/source"
	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/output"
	"github.com/agrof66/machine-dashboard/pkg/validation"
	"go.uber.org/zap"
)

type reportOptions struct {
	Branch string
	All    bool
	Sort   string
	Worst  string
	Size   int
	Share  float64
}

func main() {
	configLocation := flag.String("config", "", "path to configuration file (defaults apply when empty)")
	file := flag.String("file", "", "workbook to read (xlsx, xls, csv); defaults to data.path")
	branch := flag.String("branch", "", "restrict the report to one branch")
	all := flag.Bool("all", false, "include machines without cost and revenue")
	sortKey := flag.String("sort", string(dashboard.ByDB), "top list measure: db, revenue, margin, cost")
	worstKey := flag.String("worst", string(dashboard.ByDB), "worst list measure: db, revenue, margin, cost")
	size := flag.Int("top", constants.DefaultRankingSize, "length of the top and worst lists")
	share := flag.Float64("share", constants.ParetoShare, "cost share of the 80/20 analysis")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	path := *file
	if path == "" {
		path = conf.Data.Path
	}
	ds, err := source.FileSource{Path: path}.Load(context.Background())
	if err != nil {
		logger.Fatal("failed to load workbook",
			zap.String("op", "main"),
			zap.String("file", path),
			zap.Error(err),
		)
	}
	for _, d := range dashboard.CheckConsistency(ds, constants.ConsistencyTolerance) {
		logger.Warn("monthly figures do not add up to YTD",
			zap.String("op", "main"),
			zap.String("vhNr", d.VHNr),
			zap.String("measure", d.Measure),
			zap.Float64("monthlySum", d.MonthlySum),
			zap.Float64("ytd", d.YTD),
		)
	}

	report, err := buildReport(ds, reportOptions{
		Branch: *branch,
		All:    *all,
		Sort:   *sortKey,
		Worst:  *worstKey,
		Size:   *size,
		Share:  *share,
	})
	if err != nil {
		logger.Fatal("invalid report options",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	writeReport(os.Stdout, outputFormat, report)
}

func buildReport(ds *sheet.Dataset, opts reportOptions) (output.Report, error) {
	keys := make([]string, len(dashboard.RankingKeys))
	for i, k := range dashboard.RankingKeys {
		keys[i] = string(k)
	}
	if opts.Worst == "" {
		opts.Worst = string(dashboard.ByDB)
	}
	for _, key := range []string{opts.Sort, opts.Worst} {
		if err := validation.ValidateSortKey(key, keys...); err != nil {
			return output.Report{}, err
		}
	}
	if err := validation.ValidateRankingSize(opts.Size); err != nil {
		return output.Report{}, err
	}
	if err := validation.ValidateShare(opts.Share); err != nil {
		return output.Report{}, err
	}

	name := constants.BranchAll
	filter := dashboard.Filter{ActiveOnly: !opts.All}
	if opts.Branch != "" && opts.Branch != constants.BranchAll {
		branch, ok := dashboard.NormalizeBranch(opts.Branch, dashboard.Branches(ds.Machines))
		if !ok {
			return output.Report{}, fmt.Errorf("unknown branch %q", opts.Branch)
		}
		filter.Branch = branch
		name = branch
	}

	machines := filter.Apply(ds.Machines)
	monthly := dashboard.Monthly(ds.Months, machines)
	return output.Report{
		Title:    "Maschinen-Report " + name,
		Months:   ds.Months,
		Totals:   dashboard.Overview(machines),
		Monthly:  monthly,
		Insights: dashboard.Insights(monthly),
		Top:      dashboard.Top(machines, dashboard.SortKey(opts.Sort), opts.Size),
		Worst:    dashboard.Worst(machines, dashboard.SortKey(opts.Worst), opts.Size),
		Pareto:   dashboard.Pareto(machines, opts.Share),
	}, nil
}

func writeReport(w io.Writer, format string, report output.Report) {
	switch format {
	case constants.OutputFormatPretty:
		output.PrettyFormat(w, report)
	case constants.OutputFormatCSV:
		output.CsvFormat(w, report)
	}
}
