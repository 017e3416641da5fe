package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Pablo751/dentcb/internal/assistant"
	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/locale"
)

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var (
		sourceURL string
		question  string
		country   string
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer one question from the catalog",
		Example: `  dentcb ask --url https://www.dentaly.org/en/ --question "How long do dental implants last?"
  dentcb ask --country Spain --question "¿Cuánto cuesta un implante?" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
			defer cancel()

			c, err := parseCountryFlag(country)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			oracle, err := a.oracle()
			if err != nil {
				return err
			}

			stop := ui.Spinner("Thinking...")
			ans, err := a.assistant(oracle).Ask(ctx, assistant.Request{
				SourceURL: sourceURL,
				Question:  question,
				Country:   c,
			})
			stop()
			if err != nil {
				ui.Error("%s", domain.UserMessage(err))
				return err
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(ans)
			}
			printAnswer(ans)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceURL, "url", "u", "", "page the question was asked on (selects the country)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "the question")
	cmd.Flags().StringVar(&country, "country", "", "country override (France, US, UK, Germany, Spain, Italy)")
	_ = cmd.MarkFlagRequired("question")

	return cmd
}

func printAnswer(ans *assistant.Answer) {
	ui.Section("Answer")
	switch ans.Outcome {
	case domain.OutcomeAnswered:
		ui.Success("%s", ans.Text)
	default:
		ui.Warning("%s", ans.Text)
	}

	ui.Section("Details")
	ui.KeyValue("Country", fmt.Sprintf("%s (%s)", ans.Locale.Country, locale.LanguageName(ans.Locale.LanguageCode)))
	ui.KeyValue("Keywords", strings.Join(ans.Keywords, ", "))
	ui.KeyValue("Strategy", ans.Strategy)
	ui.KeyValue("Candidates", ans.Candidates)
	if ans.ChosenURL != "" {
		ui.KeyValue("Chosen URL", ans.ChosenURL)
	}
	ui.KeyValue("Latency", FormatDuration(ans.Latency))

	if len(ans.Related) > 0 {
		ui.Section("Related")
		for _, r := range ans.Related {
			ui.Info("%s (%s)", r.Title, r.URL)
		}
	}
}

// batchQuestion is one line of a batch input file.
type batchQuestion struct {
	Line     int
	URL      string
	Question string
	Country  string
}

// batchResult is one NDJSON output line.
type batchResult struct {
	Line     int               `json:"line"`
	URL      string            `json:"url"`
	Question string            `json:"question"`
	Answer   *assistant.Answer `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// newBatchCmd creates the batch subcommand.
func newBatchCmd() *cobra.Command {
	var (
		input   string
		output  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Answer every question of a CSV file",
		Long: `Batch reads a CSV file with the columns url and question (and optionally
country) and writes one JSON result per line. All questions share one catalog
session, so a catalog file that changes mid-run does not mix versions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()

			questions, err := readBatchInput(f)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if output != "" && output != "-" {
				of, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer of.Close()
				out = of
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			oracle, err := a.oracle()
			if err != nil {
				return err
			}

			bar := ui.ProgressBar(int64(len(questions)), "Answering")
			results := runBatch(ctx, a.assistant(oracle), catalog.NewSession("", a.store), questions, workers, cfg.Server.RequestTimeout, func() {
				_ = bar.Add(1)
			})
			_ = bar.Finish()

			failed, err := writeBatchResults(out, results)
			if err != nil {
				return err
			}

			if output != "" && output != "-" {
				ui.Success("Wrote %d results to %s (%d failed)", len(results), output, failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file with url,question columns")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "NDJSON output file (- for stdout)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 2, "questions answered concurrently")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// readBatchInput parses a batch CSV. The header must name url and question.
func readBatchInput(r io.Reader) ([]batchQuestion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ValidationError("batch input is empty", nil)
		}
		return nil, domain.IOError("read batch header", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	urlCol, okURL := cols["url"]
	questionCol, okQuestion := cols["question"]
	if !okURL || !okQuestion {
		return nil, domain.ValidationError("batch input needs url and question columns", nil)
	}
	countryCol, hasCountry := cols["country"]

	field := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var out []batchQuestion
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("read batch line %d", line), err)
		}

		q := batchQuestion{
			Line:     line,
			URL:      field(rec, urlCol),
			Question: field(rec, questionCol),
		}
		if hasCountry {
			q.Country = field(rec, countryCol)
		}
		if q.URL == "" && q.Question == "" {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// runBatch answers questions with up to workers in flight. Results keep input order.
func runBatch(ctx context.Context, a *assistant.Assistant, session *catalog.Session, questions []batchQuestion, workers int, timeout time.Duration, done func()) []batchResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]batchResult, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			defer done()
			results[i] = answerOne(gctx, a, session, q, timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func answerOne(ctx context.Context, a *assistant.Assistant, session *catalog.Session, q batchQuestion, timeout time.Duration) batchResult {
	res := batchResult{Line: q.Line, URL: q.URL, Question: q.Question}

	country, err := parseCountryFlag(q.Country)
	if err != nil {
		res.Error = string(domain.TypeOf(err))
		res.Message = err.Error()
		return res
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ans, err := a.Ask(ctx, assistant.Request{
		SourceURL: q.URL,
		Question:  q.Question,
		Country:   country,
		Catalog:   session,
		SessionID: session.ID(),
	})
	if err != nil {
		res.Error = string(domain.TypeOf(err))
		if res.Error == "" {
			res.Error = "internal"
		}
		res.Message = domain.UserMessage(err)
		return res
	}
	res.Answer = ans
	return res
}

// writeBatchResults writes one JSON document per line and returns the failure count.
func writeBatchResults(w io.Writer, results []batchResult) (int, error) {
	enc := json.NewEncoder(w)
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			return failed, fmt.Errorf("write result: %w", err)
		}
	}
	return failed, nil
}
