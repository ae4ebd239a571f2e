package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"Acta/internal/calc/protocol"
	"Acta/internal/calc/report"
	"Acta/internal/calc/table"
	"Acta/internal/config"
	"Acta/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose bool
	envFile string
	labFile string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "acta",
	Short: "Concrete test certificates from press and scale exports",
	Long: `acta turns the measurement export of a concrete testing press into a
certificate table and writes it as a spreadsheet with live formulas or as a PDF.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile, labFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, "console")
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List the supported test protocols",
	Args:  cobra.NoArgs,
	RunE:  runProtocols,
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the certificate table for a measurement export as JSON",
	Args:  cobra.NoArgs,
	RunE:  runTable,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the certificate in the requested formats",
	Long: `Validates the request, builds the table from the measurement export and
writes every requested format. Nothing is written when any step fails.

Example:
  acta generate --protocol cube_compression_testing --source press_data.csv \
    --client "Alfa Beton" --concrete-class C25/30 --sampling-date 01.09.2026 \
    --set-id S-12 --set-size 3 --format PDF --format Excel`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file")
	rootCmd.PersistentFlags().StringVar(&labFile, "lab", "acta.yaml", "Laboratory settings file")

	sourceFlags(tableCmd)
	sourceFlags(generateCmd)
	requestFlags(generateCmd)

	rootCmd.AddCommand(protocolsCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(generateCmd)
}

func sourceFlags(c *cobra.Command) {
	c.Flags().String("protocol", "", "Protocol id (see acta protocols)")
	c.Flags().String("source", "", "Measurement export, .csv or .xlsx")
	c.MarkFlagRequired("protocol")
	c.MarkFlagRequired("source")
}

func requestFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("client", "", "Client name")
	f.String("concrete-class", "", "Concrete class, e.g. C25/30")
	f.String("sampling-date", "", "Sampling date, DD.MM.YYYY")
	f.String("testing-date", "", "Testing date, DD.MM.YYYY (default today)")
	f.String("sampling-location", "", "Sampling location")
	f.String("project", "", "Project name")
	f.String("set-id", "", "Set identifier")
	f.Int("set-size", 0, "Number of specimens in the set (default: the protocol's)")
	f.Bool("print", false, "Mark the certificate for printing")
	f.StringSlice("format", []string{"PDF"}, "Output format: PDF, Excel or Word; repeatable")
	f.String("out", "", "Reports directory (default from ACTA_REPORTS_DIR)")
}

func runProtocols(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSPECIMENS\tQUANTITIES")
	for _, id := range protocol.IDs() {
		spec, err := protocol.Resolve(id)
		if err != nil {
			return err
		}
		names := make([]string, len(spec.Quantities))
		for i, q := range spec.Quantities {
			names[i] = q.Name
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", id, spec.SpecimenCount, strings.Join(names, ", "))
	}
	return tw.Flush()
}

func runTable(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("protocol")
	path, _ := cmd.Flags().GetString("source")

	src, closeSrc, err := openSource(path)
	if err != nil {
		return err
	}
	defer closeSrc()

	tbl, err := generator("").Preview(protocol.ID(id), src)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tbl)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	id, _ := f.GetString("protocol")
	path, _ := f.GetString("source")
	out, _ := f.GetString("out")
	formats, _ := f.GetStringSlice("format")

	req := report.Request{Protocol: protocol.ID(id)}
	req.Client, _ = f.GetString("client")
	req.ConcreteClass, _ = f.GetString("concrete-class")
	req.SamplingDate, _ = f.GetString("sampling-date")
	req.TestingDate, _ = f.GetString("testing-date")
	req.SamplingLocation, _ = f.GetString("sampling-location")
	req.ProjectName, _ = f.GetString("project")
	req.SetID, _ = f.GetString("set-id")
	req.SetSize, _ = f.GetInt("set-size")
	req.ShouldPrint, _ = f.GetBool("print")
	for _, s := range formats {
		format, err := report.ParseFormat(s)
		if err != nil {
			return err
		}
		req.OutputFormat = append(req.OutputFormat, format)
	}
	if req.SetSize == 0 {
		if spec, err := protocol.Resolve(req.Protocol); err == nil {
			req.SetSize = spec.SpecimenCount
		}
	}

	src, closeSrc, err := openSource(path)
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := generator(out).Generate(ctx, req, src)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "report %s (sample age %d days)\n", res.ID, res.SampleAge)
	for _, format := range req.OutputFormat {
		if p, ok := res.Files[format]; ok {
			fmt.Fprintf(w, "  %-5s %s\n", format, p)
		}
	}
	if res.Print {
		fmt.Fprintln(w, "  marked for printing")
	}
	return nil
}

func generator(dir string) *report.Generator {
	if dir == "" {
		dir = cfg.ReportsDir
	}
	return &report.Generator{
		Dir:   dir,
		Table: table.Options{Instrument: cfg.Lab.Instrument, Caption: cfg.Lab.Caption},
		Log:   logger,
	}
}

func openSource(path string) (report.Source, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return report.Source{}, nil, fmt.Errorf("open measurement source: %w", err)
	}
	return report.Source{Name: path, Body: f}, func() { f.Close() }, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
