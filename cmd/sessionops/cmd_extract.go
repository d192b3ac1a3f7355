package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sessionops/internal/cookie"
	"sessionops/internal/export"
	"sessionops/internal/extract"
	"sessionops/internal/profile"
	"sessionops/internal/tactile"
)

var (
	extractMethod   string
	extractDomain   string
	extractFormat   string
	extractSave     bool
	extractHost     string
	extractOS       string
	extractBrowser  string
	extractAssembly string
	extractDryRun   bool

	detectHost string
	detectOS   string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Parse or run cookie extraction tools",
}

var extractParseCmd = &cobra.Command{
	Use:   "parse [file...]",
	Short: "Parse captured tool output (stdin when no file or -)",
	RunE:  runExtractParse,
}

var extractRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an extraction tool through the local executor and parse its output",
	RunE:  runExtractRun,
}

var extractDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect installed and running browsers",
	RunE:  runExtractDetect,
}

func init() {
	for _, c := range []*cobra.Command{extractParseCmd, extractRunCmd} {
		c.Flags().StringVarP(&extractMethod, "method", "m", string(extract.MethodSharpChromium), "Extraction method (sharp_chromium, sharp_dpapi, cookie_monster, manual_shell)")
		c.Flags().StringVarP(&extractDomain, "domain", "d", "", "Keep cookies whose domain contains this")
		c.Flags().StringVarP(&extractFormat, "format", "f", "", "Render as an export format instead of a table")
		c.Flags().BoolVar(&extractSave, "save", false, "Save parsed cookies to the capture store")
	}
	extractRunCmd.Flags().StringVar(&extractHost, "host", "", "Host label recorded with the capture")
	extractRunCmd.Flags().StringVar(&extractOS, "os", "windows", "Target OS (windows, linux)")
	extractRunCmd.Flags().StringVarP(&extractBrowser, "browser", "b", string(profile.Chrome), "Browser (chrome, edge, firefox)")
	extractRunCmd.Flags().StringVar(&extractAssembly, "assembly", "", "Override the tool path")
	extractRunCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "Print the command without running it")
	extractDetectCmd.Flags().StringVar(&detectHost, "host", "", "Host label")
	extractDetectCmd.Flags().StringVar(&detectOS, "os", "linux", "Target OS (windows, linux)")

	extractCmd.AddCommand(extractParseCmd)
	extractCmd.AddCommand(extractRunCmd)
	extractCmd.AddCommand(extractDetectCmd)
}

type parsedInput struct {
	source string
	result extract.Result
}

func runExtractParse(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"-"}
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	method := extract.Method(extractMethod)

	inputs := make([]parsedInput, len(args))
	var g errgroup.Group
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			raw, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			res, err := extract.ParseOutput(method, raw, extractDomain)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			inputs[i] = parsedInput{source: sourceLabel(path), result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var all []cookie.Cookie
	for _, in := range inputs {
		logger.Info("Parsed capture", zap.String("source", in.source), zap.Int("cookies", in.result.Count))
		all = append(all, in.result.Cookies...)
		if extractSave {
			if err := saveCookies(ctx, in.source, in.result.Cookies); err != nil {
				return err
			}
		}
	}
	return emitCookies(cmd.OutOrStdout(), all)
}

func runExtractRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	ex := extract.New(tactile.NewLocalExecutor(), cfg.ExtractorOptions()...)
	req := extract.Request{
		Host:         extractHost,
		OS:           profile.NormalizeOS(extractOS),
		Browser:      profile.Browser(extractBrowser),
		Method:       extract.Method(extractMethod),
		TargetDomain: extractDomain,
		AssemblyPath: extractAssembly,
	}

	if extractDryRun {
		task, err := ex.Command(req)
		if err != nil {
			return err
		}
		if task.Assembly != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", task.Assembly, task.Args)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), task.Command)
		}
		return nil
	}

	logger.Info("Running extraction", zap.String("method", extractMethod), zap.String("host", extractHost))
	res, err := ex.Extract(ctx, req)
	if err != nil {
		return err
	}
	if extractSave {
		source := extractHost
		if source == "" {
			source = "localhost"
		}
		if err := saveCookies(ctx, source, res.Cookies); err != nil {
			return err
		}
	}
	return emitCookies(cmd.OutOrStdout(), res.Cookies)
}

func runExtractDetect(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	ex := extract.New(tactile.NewLocalExecutor())
	found, err := ex.DetectBrowsers(ctx, detectHost, profile.NormalizeOS(detectOS))
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), found)
	}
	renderBrowsers(cmd.OutOrStdout(), found)
	return nil
}

func emitCookies(w io.Writer, cookies []cookie.Cookie) error {
	if extractFormat != "" {
		doc := export.Export(cookies, export.Format(extractFormat), "")
		_, err := io.WriteString(w, doc.Content)
		return err
	}
	if jsonOut {
		return printJSON(w, cookies)
	}
	renderCookies(w, cookies)
	return nil
}

func saveCookies(ctx context.Context, source string, cookies []cookie.Cookie) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.Save(ctx, source, cookies)
	if err != nil {
		return err
	}
	logger.Info("Saved capture", zap.String("source", source), zap.Int("records", len(ids)))
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sourceLabel(path string) string {
	switch path {
	case "", "-":
		return "stdin"
	}
	return filepath.Base(path)
}
