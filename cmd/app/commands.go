package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/taskboard/internal"
	"github.com/starford/taskboard/internal/boardservice"
	"github.com/starford/taskboard/internal/models"
)

// withBoard opens the configured board for a one-shot command. Logs go to
// stderr so stdout only carries the command output.
func withBoard(fn func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := internal.NewLogger(os.Stderr, slog.LevelWarn)
		board, err := internal.OpenBoard(cfg, logger)
		if err != nil {
			return err
		}
		defer board.Close()
		return fn(ctx, cmd, board.Service)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireID(cmd *cli.Command) (string, error) {
	id := cmd.Args().First()
	if id == "" {
		return "", fmt.Errorf("task id is required")
	}
	return id, nil
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the board files that do not exist yet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "agent-file",
				Usage: "Append the task management section to this file (e.g. CLAUDE.md)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			board, err := internal.OpenBoard(cfg, internal.NewLogger(os.Stderr, slog.LevelWarn))
			if err != nil {
				return err
			}
			defer board.Close()

			agent := ""
			if name := cmd.String("agent-file"); name != "" {
				agent = cfg.Board.AgentFile(name)
			}
			res, err := board.Service.Init(ctx, agent)
			if err != nil {
				return err
			}
			for _, name := range res.Created {
				fmt.Printf("created %s\n", name)
			}
			for _, name := range res.Skipped {
				fmt.Printf("exists  %s\n", name)
			}
			if res.Agent != "" {
				fmt.Printf("updated %s\n", res.Agent)
			}
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check both ledger files and report every problem",
		Action: withBoard(func(ctx context.Context, _ *cli.Command, svc *boardservice.Service) error {
			report, err := svc.Validate(ctx)
			if err != nil {
				return err
			}
			if report.Valid {
				fmt.Println("board is valid")
				return nil
			}
			for _, p := range report.Problems {
				loc := p.File
				if p.Line > 0 {
					loc = fmt.Sprintf("%s:%d", p.File, p.Line)
				}
				fmt.Printf("%s: %s\n", loc, p.Message)
			}
			return cli.Exit(fmt.Sprintf("%d problem(s) found", len(report.Problems)), 1)
		}),
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the board, or one task when an id is given",
		ArgsUsage: "[id]",
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error {
			if id := cmd.Args().First(); id != "" {
				task, err := svc.GetTask(ctx, id)
				if err != nil {
					return err
				}
				fmt.Print(task.Markdown)
				return nil
			}
			board, err := svc.Board(ctx)
			if err != nil {
				return err
			}
			return printJSON(board)
		}),
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a task with the next id",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "section", Aliases: []string{"s"}, Value: "todo", Usage: "Target section"},
			&cli.IntFlag{Name: "position", Value: -1, Usage: "Zero-based position, -1 appends"},
			&cli.StringSliceFlag{Name: "attr", Usage: "Metadata as Key=Value, repeatable"},
			&cli.StringFlag{Name: "body", Usage: "Description text"},
			&cli.StringSliceFlag{Name: "subtask", Usage: "Checklist item, repeatable"},
		},
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error {
			title := strings.Join(cmd.Args().Slice(), " ")
			attrs, err := parseAttributes(cmd.StringSlice("attr"))
			if err != nil {
				return err
			}
			res, err := svc.CreateTask(ctx, boardservice.CreateInput{
				Section:    cmd.String("section"),
				Position:   int(cmd.Int("position")),
				Title:      title,
				Attributes: attrs,
				Body:       cmd.String("body"),
				Subtasks:   cmd.StringSlice("subtask"),
			}, "")
			if err != nil {
				return err
			}
			fmt.Println(res.ID)
			return nil
		}),
	}
}

func parseAttributes(pairs []string) ([]models.Attribute, error) {
	attrs := make([]models.Attribute, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid attribute %q, want Key=Value", pair)
		}
		attrs = append(attrs, models.Attribute{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return attrs, nil
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move a task to another section",
		ArgsUsage: "<id> <section>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "position", Value: -1, Usage: "Zero-based position, -1 appends"},
		},
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error {
			id, err := requireID(cmd)
			if err != nil {
				return err
			}
			section := cmd.Args().Get(1)
			if section == "" {
				return fmt.Errorf("target section is required")
			}
			if _, err := svc.MoveTask(ctx, id, section, int(cmd.Int("position")), ""); err != nil {
				return err
			}
			fmt.Printf("moved %s -> %s\n", id, section)
			return nil
		}),
	}
}

func dateFlag() cli.Flag {
	return &cli.StringFlag{Name: "date", Usage: "Date as YYYY-MM-DD, defaults to today"}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Stamp the Started date of a task",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{dateFlag()},
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error {
			id, err := requireID(cmd)
			if err != nil {
				return err
			}
			if _, err := svc.StartTask(ctx, id, cmd.String("date"), ""); err != nil {
				return err
			}
			fmt.Printf("started %s\n", id)
			return nil
		}),
	}
}

func finishCommand() *cli.Command {
	return &cli.Command{
		Name:      "finish",
		Usage:     "Stamp the Finished date of a task",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{dateFlag()},
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error {
			id, err := requireID(cmd)
			if err != nil {
				return err
			}
			if _, err := svc.FinishTask(ctx, id, cmd.String("date"), ""); err != nil {
				return err
			}
			fmt.Printf("finished %s\n", id)
			return nil
		}),
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Move a finished task into the archive",
		ArgsUsage: "<id>",
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, svc *boardservice.Service) error {
			id, err := requireID(cmd)
			if err != nil {
				return err
			}
			if _, err := svc.ArchiveTask(ctx, id, ""); err != nil {
				return err
			}
			fmt.Printf("archived %s\n", id)
			return nil
		}),
	}
}
