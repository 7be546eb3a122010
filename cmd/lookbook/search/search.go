// Package searchcmder provides the search command for text-to-image search
// over the index.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	apisearch "github.com/papercomputeco/lookbook/api/search"
	"github.com/papercomputeco/lookbook/cmd/lookbook/backends"
	"github.com/papercomputeco/lookbook/pkg/config"
	"github.com/papercomputeco/lookbook/pkg/search"
	"github.com/papercomputeco/lookbook/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	fileStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	captionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query   string
	filter  string
	topK    int
	keyword bool
	asJSON  bool
	quiet   bool

	apiTarget  string
	images     string
	table      string
	provider   string
	target     string
	model      string
	dimensions uint

	cfg    *config.Config
	logger *slog.Logger
}

const searchLongDesc string = `Search the image index with a natural-language query.

The query is embedded into the same space as the images and the nearest
images are returned, best first, with a similarity score between -1 and 1.

Use --filter to only consider images whose caption contains the given text
(case-sensitive). Use --keyword to run a full-text search over the captions
instead of a vector search.

By default the index is searched in-process. Pass --api-target to query a
running lookbook server instead.

Examples:
  lookbook search "red leather jacket"
  lookbook search "summer dress" --filter floral --top 10
  lookbook search "wool" --keyword
  lookbook search "denim" --json
  lookbook search "denim" --api-target http://localhost:8090`

const searchShortDesc string = "Search images by text"

var searchFlags = []string{
	config.FlagImages,
	config.FlagTable,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = backends.LoadConfig(cmd, searchFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.logger, err = backends.NewLogger(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.filter, "filter", "f", "", "Only match images whose caption contains this text (case-sensitive)")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", search.DefaultK, "Number of results to return")
	cmd.Flags().BoolVar(&cmder.keyword, "keyword", false, "Full-text search over captions instead of vector search")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only image paths, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", "", "Query a running lookbook server instead of the local index")

	config.AddStringFlag(cmd, config.Flags, config.FlagImages, &cmder.images)
	config.AddStringFlag(cmd, config.Flags, config.FlagTable, &cmder.table)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dimensions)

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	if c.topK <= 0 {
		return search.ErrInvalidK
	}

	var (
		output *apisearch.SearchOutput
		err    error
	)
	if c.apiTarget != "" {
		output, err = SearchAPI(ctx, c.apiTarget, c.query, c.filter, c.topK, c.keyword)
	} else {
		output, err = c.searchLocal(ctx)
	}
	if err != nil {
		return err
	}

	return c.print(w, output)
}

func (c *searchCommander) searchLocal(ctx context.Context) (*apisearch.SearchOutput, error) {
	store, err := backends.NewStore(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	provider := backends.NewModels(c.cfg, c.logger)
	defer provider.Close()

	engine, err := search.NewEngine(search.Config{
		Store:     store,
		Models:    provider,
		Table:     c.cfg.VectorStore.Table,
		ImageRoot: c.cfg.Images.Root,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, err
	}

	searcher := apisearch.NewSearcher(engine, c.logger)
	if c.keyword {
		return searcher.Keyword(ctx, c.query, c.topK)
	}
	return searcher.Search(ctx, apisearch.SearchInput{
		Query:  c.query,
		Filter: c.filter,
		TopK:   c.topK,
	})
}

func (c *searchCommander) print(w io.Writer, output *apisearch.SearchOutput) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	if c.quiet {
		for _, r := range output.Results {
			fmt.Fprintln(w, r.Path)
		}
		return nil
	}

	if output.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s",
		headerStyle.Render("Search Results for:"),
		fileStyle.Render(fmt.Sprintf("%q", output.Query)),
	)
	if output.Filter != "" {
		fmt.Fprintf(w, " %s", dimStyle.Render(fmt.Sprintf("(caption contains %q)", output.Filter)))
	}
	fmt.Fprint(w, "\n\n")

	for i, r := range output.Results {
		printResult(w, i+1, r)
	}

	return nil
}

func printResult(w io.Writer, rank int, r search.Result) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
		fileStyle.Render(r.Filename),
	)

	caption := utils.Truncate(strings.ReplaceAll(r.Caption, "\n", " "), 97)
	fmt.Fprintf(w, "  %s\n", captionStyle.Render(caption))
	fmt.Fprintf(w, "  %s\n\n", dimStyle.Render(r.Path))
}

// SearchAPI calls a lookbook server's /v1/search endpoint, or /v1/keyword
// when keyword is set, and returns the parsed response.
func SearchAPI(ctx context.Context, apiTarget, query, filter string, topK int, keyword bool) (*apisearch.SearchOutput, error) {
	endpoint := "/v1/search"
	if keyword {
		endpoint = "/v1/keyword"
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("top_k", strconv.Itoa(topK))
	if filter != "" && !keyword {
		params.Set("filter", filter)
	}

	searchURL := strings.TrimRight(apiTarget, "/") + endpoint + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API server at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("search failed: %s", errResp.Error)
		}
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var output apisearch.SearchOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &output, nil
}
