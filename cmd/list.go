package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/smol/internal/site"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the pages of the site",
	Long: `List every page the build would produce, with its output path and the
headers declared at the top of text documents.

Examples:
  smol list                       # Table output
  smol list -o json               # Output as JSON
  smol list -o yaml               # Output as YAML`,
	RunE: runList,
}

var listFlags *OutputFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddOutputFlags(listCmd.Flags(), "table")
}

// PageInfo describes one page for listing.
type PageInfo struct {
	Path    string            `json:"path" yaml:"path"`
	Output  string            `json:"output" yaml:"output"`
	Text    bool              `json:"text" yaml:"text"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	builder, err := newBuilder(afero.NewOsFs(), cfg, logger)
	if err != nil {
		return err
	}

	pages, err := collectPages(builder)
	if err != nil {
		return err
	}
	return printPages(cmd.OutOrStdout(), pages, listFlags.Format)
}

// collectPages loads every page through the builder's cache.
func collectPages(builder *site.Builder) ([]PageInfo, error) {
	pages, err := builder.Pages()
	if err != nil {
		return nil, err
	}

	infos := make([]PageInfo, 0, len(pages))
	for _, page := range pages {
		file, err := builder.Cache().Get(page.Source)
		if err != nil {
			return nil, err
		}
		infos = append(infos, PageInfo{
			Path:    page.Source,
			Output:  page.Dest,
			Text:    file.IsText,
			Headers: file.Headers,
		})
	}
	return infos, nil
}

func printPages(w io.Writer, pages []PageInfo, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(pages)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(pages)
	case "table":
		return printPageTable(w, pages)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printPageTable(w io.Writer, pages []PageInfo) error {
	if len(pages) == 0 {
		_, err := fmt.Fprintln(w, "No pages found.")
		return err
	}

	title := cases.Title(language.English)
	columns := []string{"path", "output", "headers"}
	for i, c := range columns {
		columns[i] = title.String(c)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, page := range pages {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", page.Path, page.Output, formatHeaders(page.Headers))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nTotal: %d page(s)\n", len(pages))
	return err
}

// formatHeaders writes headers as key=value pairs in key order.
func formatHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + headers[k]
	}
	return strings.Join(pairs, " ")
}
