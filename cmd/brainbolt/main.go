package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"brainbolt/internal/domain"
	"brainbolt/internal/generation/gemini"
	"brainbolt/internal/processor"
	"brainbolt/internal/server"
	"brainbolt/internal/service"
	"brainbolt/internal/tui"
)

var (
	cfgPath string
	verbose bool
	asJSON  bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "brainbolt",
		Short:         "Summaries, quizzes and answers from your study material",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yaml or ~/.config/brainbolt/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	root.AddCommand(summarizeCMD(), quizCMD(), askCMD(), queryCMD(), tuiCMD(), serveCMD(), modelsCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, assembles the components and closes them after fn.
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func process(cmd *cobra.Command, req service.Request) error {
	return withApp(cmd.Context(), func(a *app) error {
		res, err := a.svc.Process(cmd.Context(), req)
		if err != nil {
			return err
		}
		_ = a.svc.Close(res.SessionID)
		if asJSON {
			return printJSON(res)
		}
		printResult(res)
		return nil
	})
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printResult(res service.Result) {
	fmt.Println(dimStyle.Render(fmt.Sprintf("indexed %d text and %d image fragments (%d skipped)",
		res.Ingest.IndexedTextFragments, res.Ingest.IndexedImageFragments, res.Ingest.Skipped)))
	switch {
	case res.Summary != nil:
		fmt.Println(titleStyle.Render("Summary (" + res.Summary.Style + ")"))
		fmt.Println(res.Summary.Text)
	case res.Quiz != nil:
		fmt.Println(titleStyle.Render("Quiz (" + res.Quiz.Difficulty + ")"))
		for i, q := range res.Quiz.Questions {
			fmt.Printf("\n%d. %s\n", i+1, q.Question)
			for _, o := range q.Options {
				fmt.Printf("   - %s\n", o)
			}
			fmt.Println(dimStyle.Render("   answer: " + q.CorrectAnswer))
		}
	case res.Answer != nil:
		fmt.Println(titleStyle.Render("Answer"))
		fmt.Println(res.Answer.Text)
	}
	t := res.Trace
	fmt.Println(dimStyle.Render(fmt.Sprintf("\ningest %.0fms  retrieval %.0fms  generation %.0fms  total %.0fms",
		t.IngestMS, t.RetrievalMS, t.GenerationMS, t.TotalMS)))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func summarizeCMD() *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "summarize <source>...",
		Short: "Summarize files, URLs or raw text",
		Long:  "Summarize files, URLs or raw text.\n\nStyles: " + strings.Join(processor.Styles(), ", "),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return process(cmd, service.Request{Sources: args, Mode: service.ModeSummarize, SummaryType: style})
		},
	}
	cmd.Flags().StringVarP(&style, "style", "s", processor.DefaultStyle, "summary style")
	return cmd
}

func quizCMD() *cobra.Command {
	var n int
	var difficulty string
	cmd := &cobra.Command{
		Use:   "quiz <source>...",
		Short: "Generate a multiple-choice quiz",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return process(cmd, service.Request{Sources: args, Mode: service.ModeQuiz, NumQuestions: n, Difficulty: difficulty})
		},
	}
	cmd.Flags().IntVarP(&n, "questions", "n", 5, "number of questions")
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "Medium", "Easy, Medium or Hard")
	return cmd
}

func askCMD() *cobra.Command {
	var question string
	var k int
	cmd := &cobra.Command{
		Use:   "ask <source>...",
		Short: "Answer a question from the material",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("--question is required")
			}
			return process(cmd, service.Request{Sources: args, Mode: service.ModeAnswer, Question: question, TopK: k})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer")
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "fragments to retrieve (default from config)")
	return cmd
}

func queryCMD() *cobra.Command {
	var question string
	var k, maxImages int
	cmd := &cobra.Command{
		Use:   "query <source>...",
		Short: "Show the ranked context retrieved for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				sess, _, err := a.svc.Open(ctx, args)
				if err != nil {
					return err
				}
				defer a.svc.Close(sess.ID())
				if k <= 0 {
					k = a.topK
				}
				bundle, err := sess.Query(ctx, question, k, domain.QueryOptions{MaxImages: maxImages})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(bundle)
				}
				printBundle(bundle)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "query text")
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "fragments to retrieve (default from config)")
	cmd.Flags().IntVar(&maxImages, "max-images", 0, "cap on returned images (0 = no cap)")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func printBundle(b domain.ContextBundle) {
	texts := map[int]domain.TextExcerpt{}
	for _, t := range b.Texts {
		texts[t.Rank] = t
	}
	images := map[int]domain.ImageRef{}
	for _, img := range b.Images {
		images[img.Rank] = img
	}
	for _, h := range b.Hits {
		head := titleStyle.Render(fmt.Sprintf("#%d %s page %d", h.Rank, h.Kind, h.Page)) + dimStyle.Render(fmt.Sprintf("  score=%.3f", h.Score))
		fmt.Println(head)
		if h.Kind == domain.KindImage {
			fmt.Printf("  [image %s]\n", images[h.Rank].ID)
			continue
		}
		fmt.Printf("  %s\n", texts[h.Rank].Text)
	}
	if len(b.Hits) == 0 {
		fmt.Println(dimStyle.Render("no matches"))
	}
}

func tuiCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "tui <source>...",
		Short: "Index sources and search them interactively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				sess, res, err := a.svc.Open(ctx, args)
				if err != nil {
					return fmt.Errorf("ingest failed: %w", err)
				}
				defer a.svc.Close(sess.ID())
				summary := fmt.Sprintf("%d text and %d image fragments indexed from %d source(s)",
					res.IndexedTextFragments, res.IndexedImageFragments, len(args))
				_, err = tea.NewProgram(tui.New(sess, a.topK, summary)).Run()
				return err
			})
		},
	}
}

func serveCMD() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			verbose = true
			return withApp(ctx, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				go a.manager.Run(ctx, time.Duration(a.cfg.Session.SweepSecs)*time.Second)
				srv := server.New(a.svc, server.Config{
					UploadDir:   a.cfg.Server.UploadDir,
					MaxUploadMB: a.cfg.Server.MaxUploadMB,
					Metrics:     a.prom.Handler(),
				}, newLogger("server"))
				errc := make(chan error, 1)
				go func() { errc <- srv.Start(addr) }()
				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func modelsCMD() *cobra.Command {
	var keyEnv string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List Gemini models that support content generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := gemini.New(cmd.Context(), gemini.Config{APIKeyEnv: keyEnv})
			if err != nil {
				return err
			}
			defer client.Close()
			names, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyEnv, "api-key-env", "GOOGLE_API_KEY", "environment variable holding the API key")
	return cmd
}
