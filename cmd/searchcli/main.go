package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/neuralscholar/search-proxy/internal/ingest"
	"github.com/neuralscholar/search-proxy/internal/threads"
)

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "threads.json"
	}
	return filepath.Join(home, ".searchcli", "threads.json")
}

func main() {
	cmd := &cli.Command{
		Name:  "searchcli",
		Usage: "stream answers from a search proxy and keep local threads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Value: "http://localhost:8080",
				Usage: "proxy base URL",
			},
			&cli.StringFlag{
				Name:  "user",
				Value: "cli",
				Usage: "user ID sent for quota accounting",
			},
			&cli.StringFlag{
				Name:  "store",
				Value: defaultStorePath(),
				Usage: "thread store file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "ask a question and stream the answer",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Value: "search",
						Usage: "search or academic",
					},
					&cli.StringFlag{
						Name:  "agent",
						Usage: "tutoring mode for academic questions",
					},
					&cli.StringFlag{
						Name:  "thread",
						Usage: "continue an existing thread by ID",
					},
				},
				Action: askAction,
			},
			{
				Name:   "threads",
				Usage:  "list saved threads",
				Action: listAction,
			},
			{
				Name:      "show",
				Usage:     "print one thread",
				ArgsUsage: "<thread-id>",
				Action:    showAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a thread",
				ArgsUsage: "<thread-id>",
				Action:    deleteAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore(cmd *cli.Command) (*threads.Store, error) {
	return threads.NewStore(cmd.String("store"))
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	var thread threads.Thread
	var history []ingest.Turn
	if id := cmd.String("thread"); id != "" {
		existing, ok := store.Get(id)
		if !ok {
			return fmt.Errorf("thread %s not found", id)
		}
		thread = existing
		for _, m := range thread.Messages {
			if m.Error == "" {
				history = append(history, ingest.Turn{Role: m.Role, Content: m.Content})
			}
		}
	}

	client := ingest.NewClient(cmd.String("server"), cmd.String("user"))

	var printed int
	var lastStatus string
	var final ingest.Snapshot
	err = client.Search(ctx, ingest.Request{
		Query:   question,
		Mode:    cmd.String("mode"),
		SubMode: cmd.String("agent"),
		History: history,
	}, func(s ingest.Snapshot) {
		if s.ThoughtText != "" && s.ThoughtText != lastStatus {
			lastStatus = s.ThoughtText
			fmt.Fprintf(os.Stderr, "· %s\n", lastStatus)
		}
		if len(s.AnswerText) > printed {
			fmt.Print(s.AnswerText[printed:])
			printed = len(s.AnswerText)
		}
		if s.Done {
			final = s
		}
	})
	if err != nil {
		return err
	}
	fmt.Println()

	body, related := ingest.SplitAnswer(final.AnswerText)
	if len(related) > 0 {
		fmt.Println("\nRelated questions:")
		for _, q := range related {
			fmt.Println("  -", q)
		}
	}
	if len(final.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range final.Sources {
			fmt.Printf("  - %s (%s)\n", src.Web.Title, src.Web.URI)
		}
	}
	if final.Media != nil {
		for _, v := range final.Media.Videos {
			fmt.Printf("  ▶ %s %s\n", v.Title, v.Link)
		}
	}

	answer := threads.Message{Role: "model", Content: body, Thoughts: final.ThoughtText,
		Sources: final.Sources, Media: final.Media}
	if final.Err != nil {
		answer.Error = final.Err.Error()
	}
	thread.Messages = append(thread.Messages,
		threads.Message{Role: "user", Content: question}, answer)
	thread.Mode = cmd.String("mode")

	saved, err := store.Upsert(thread)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nsaved thread %s\n", saved.ID)
	return nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	for _, t := range store.List() {
		fmt.Printf("%s  %s  %s\n", t.ID, t.UpdatedAt.Format("2006-01-02 15:04"), t.Title)
	}
	return nil
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	t, ok := store.Get(cmd.Args().First())
	if !ok {
		return fmt.Errorf("thread not found")
	}
	fmt.Printf("# %s\n\n", t.Title)
	for _, m := range t.Messages {
		fmt.Printf("[%s] %s\n\n", m.Role, m.Content)
	}
	return nil
}

func deleteAction(ctx context.Context, cmd *cli.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	return store.Delete(cmd.Args().First())
}
