package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/export"
	"github.com/vladislavdragonenkov/pos/internal/remotecatalog"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

type catalogFlags struct {
	server    string
	remote    string
	catalogID string
	timeout   time.Duration
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the product catalog",
	}

	var flags catalogFlags
	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Show products that differ between the local and the remote catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			return runCatalogDiff(ctx, flags, http.DefaultClient, cmd.OutOrStdout())
		},
	}
	f := diffCmd.Flags()
	f.StringVar(&flags.server, "server", "http://localhost:8080", "POS server base URL")
	f.StringVar(&flags.remote, "remote", "", "Remote catalog endpoint URL")
	f.StringVar(&flags.catalogID, "catalog", "", "Remote catalog id")
	f.DurationVar(&flags.timeout, "timeout", 30*time.Second, "Overall timeout")
	_ = diffCmd.MarkFlagRequired("remote")
	_ = diffCmd.MarkFlagRequired("catalog")

	cmd.AddCommand(diffCmd)
	return cmd
}

func runCatalogDiff(ctx context.Context, flags catalogFlags, client *http.Client, out io.Writer) error {
	local, err := fetchLocalProducts(ctx, client, flags.server)
	if err != nil {
		return err
	}

	remote := remotecatalog.New(remotecatalog.DefaultConfig(flags.remote), remotecatalog.WithHTTPClient(client))
	remoteProducts, err := remote.GetProducts(ctx, flags.catalogID)
	if err != nil {
		return fmt.Errorf("fetch remote catalog: %w", err)
	}

	diff := diffCatalogs(local, remoteProducts)
	if diff == "" {
		_, err = fmt.Fprintf(out, "catalogs are identical (%d products)\n", len(local))
		return err
	}
	_, err = io.WriteString(out, diff)
	return err
}

// fetchLocalProducts читает каталог из HTTP API сервера.
func fetchLocalProducts(ctx context.Context, client *http.Client, server string) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/api/v1/products", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch local catalog: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data  []domain.Product `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode local catalog: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("local catalog: %s: %s", body.Error.Code, body.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local catalog: unexpected status %d", resp.StatusCode)
	}
	return body.Data, nil
}

// diffCatalogs сравнивает каталоги построчно; "-" — только локально, "+" — только удалённо.
func diffCatalogs(local, remote []domain.Product) string {
	before := catalogText(local)
	after := catalogText(remote)
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out.WriteString(prefix + line + "\n")
		}
	}
	return out.String()
}

func catalogText(products []domain.Product) string {
	sorted := append([]domain.Product(nil), products...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	text := string(export.ProductsTXT(sorted))
	if text == "" {
		return ""
	}
	return text + "\n"
}
