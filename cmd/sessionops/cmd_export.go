package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sessionops/internal/cookie"
	"sessionops/internal/export"
	"sessionops/internal/store"
)

var (
	exportFormat    string
	exportDomain    string
	exportOut       string
	exportFromStore bool
)

var exportCmd = &cobra.Command{
	Use:   "export [cookies.json...]",
	Short: "Render cookies in a browser or tool import format",
	Long: `Reads cookie JSON (an array of cookies or an extraction result) from files,
stdin, or the capture store, and renders it as netscape, json, editthiscookie
or header. Unknown formats fall back to netscape.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatNetscape), "Output format")
	exportCmd.Flags().StringVarP(&exportDomain, "domain", "d", "", "Keep cookies whose domain contains this")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file, or into a directory using the format's file name")
	exportCmd.Flags().BoolVar(&exportFromStore, "from-store", false, "Export cookies from the capture store")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cookies, err := loadCookies(ctx, cmd.InOrStdin(), args, exportFromStore, exportDomain)
	if err != nil {
		return err
	}

	doc := export.Export(cookies, export.Format(exportFormat), exportDomain)
	if doc.Format != export.Format(exportFormat) {
		logger.Warn("Unknown export format, using netscape", zap.String("format", exportFormat))
	}

	if exportOut == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), doc.Content)
		return err
	}

	path := exportOut
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, doc.Filename)
	}
	if err := os.WriteFile(path, []byte(doc.Content), 0600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	logger.Info("Exported cookies", zap.String("path", path), zap.Int("count", doc.Count), zap.String("format", string(doc.Format)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d cookies -> %s\n", okStyle.Render("exported"), doc.Count, path)
	return nil
}

// loadCookies gathers cookies from the capture store or from JSON inputs.
func loadCookies(ctx context.Context, stdin io.Reader, paths []string, fromStore bool, domain string) ([]cookie.Cookie, error) {
	if fromStore {
		s, err := openStore()
		if err != nil {
			return nil, err
		}
		defer s.Close()
		records, err := s.List(ctx, domain)
		if err != nil {
			return nil, err
		}
		return store.Cookies(records), nil
	}

	if len(paths) == 0 {
		paths = []string{"-"}
	}
	var all []cookie.Cookie
	for _, p := range paths {
		raw, err := readInput(stdin, p)
		if err != nil {
			return nil, err
		}
		cookies, err := decodeCookies([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sourceLabel(p), err)
		}
		all = append(all, cookies...)
	}
	return all, nil
}

// decodeCookies accepts a JSON array of cookies or an object with a
// "cookies" array such as an extraction result.
func decodeCookies(data []byte) ([]cookie.Cookie, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	var cookies []cookie.Cookie
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &cookies); err != nil {
			return nil, fmt.Errorf("decode cookies: %w", err)
		}
		return cookies, nil
	}
	var wrapped struct {
		Cookies []cookie.Cookie `json:"cookies"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	return wrapped.Cookies, nil
}
