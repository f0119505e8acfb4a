package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/services"
)

type memberView struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"full_name"`
	BranchName string    `json:"branch_name,omitempty"`
	ParentID   *int64    `json:"parent_id"`
	Gender     string    `json:"gender,omitempty"`
	BirthYear  *int      `json:"birth_year,omitempty"`
	DeathYear  *int      `json:"death_year,omitempty"`
	IsAlive    bool      `json:"is_alive"`
	CreatedAt  time.Time `json:"created_at"`
}

func toView(m member.Member) memberView {
	p := m.Profile()
	v := memberView{
		ID:         m.ID(),
		FullName:   m.FullName(),
		BranchName: m.BranchName(),
		Gender:     string(p.Gender),
		BirthYear:  p.BirthYear,
		DeathYear:  p.DeathYear,
		IsAlive:    p.IsAlive,
		CreatedAt:  m.CreatedAt(),
	}
	if parentID, ok := m.ParentID(); ok {
		v.ParentID = &parentID
	}
	return v
}

func writeMembers(out io.Writer, members []member.Member) error {
	for _, m := range members {
		if err := writeJSONLine(out, toView(m)); err != nil {
			return err
		}
	}
	return nil
}

// withTree opens the store without migrating and hands a TreeService to fn.
func withTree(ctx context.Context, app *cliApp, fn func(*services.TreeService) error) error {
	store, err := openStore(ctx, app.conf, false)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return withCode(exitDB, fmt.Errorf("store unreachable: %w", err))
	}
	return fn(services.NewTreeService(store))
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, withCode(exitUsage, fmt.Errorf("invalid member id %q", arg))
	}
	return id, nil
}

func newLineageCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <id>",
		Short: "Print a member's ancestors, root first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withTree(cmd.Context(), app, func(tree *services.TreeService) error {
				chain, err := tree.Lineage(cmd.Context(), id)
				if err != nil {
					return serviceError(err)
				}
				return writeMembers(cmd.OutOrStdout(), chain)
			})
		},
	}
}

func newChildrenCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "children <id>",
		Short: "Print a member's direct children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withTree(cmd.Context(), app, func(tree *services.TreeService) error {
				kids, err := tree.Children(cmd.Context(), id)
				if err != nil {
					return serviceError(err)
				}
				return writeMembers(cmd.OutOrStdout(), kids)
			})
		},
	}
}

func newRootsCmd(app *cliApp) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "roots",
		Short: "Print members without a parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd.Context(), app, func(tree *services.TreeService) error {
				roots, err := tree.Roots(cmd.Context(), limit)
				if err != nil {
					return serviceError(err)
				}
				return writeMembers(cmd.OutOrStdout(), roots)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (0 means all)")
	return cmd
}

func newSearchCmd(app *cliApp) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy search members by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd.Context(), app, func(tree *services.TreeService) error {
				found, err := tree.Search(cmd.Context(), args[0], limit)
				if err != nil {
					return serviceError(err)
				}
				return writeMembers(cmd.OutOrStdout(), found)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", services.DefaultSearchLimit, "Maximum results")
	return cmd
}

func newStatsCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print registry totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTree(cmd.Context(), app, func(tree *services.TreeService) error {
				stats, err := tree.Stats(cmd.Context())
				if err != nil {
					return serviceError(err)
				}
				return writeJSONLine(cmd.OutOrStdout(), stats)
			})
		},
	}
}
