package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crumbset/pkg/types"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entity",
	}
	cmd.AddCommand(newAddCrumbCmd(), newAddTrailCmd(), newAddLinkCmd())
	return cmd
}

func newAddCrumbCmd() *cobra.Command {
	var (
		name  string
		state string
		props []string
	)
	cmd := &cobra.Command{
		Use:   "crumb",
		Short: "Add a crumb",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name: %w", types.ErrInvalidName)
			}
			now := time.Now().UTC()
			c := &types.Crumb{Name: name, CreatedAt: now, UpdatedAt: now}
			if err := c.SetState(state); err != nil {
				return fmt.Errorf("--state %q: %w", state, err)
			}
			for _, p := range props {
				k, v, err := splitAssignment(p)
				if err != nil {
					return err
				}
				if err := c.SetProperty(k, v); err != nil {
					return fmt.Errorf("--prop %q: %w", p, err)
				}
			}
			return addEntity(cmd, types.CrumbsTable, c)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "crumb name (required)")
	cmd.Flags().StringVar(&state, "state", types.CrumbStateDraft, "initial state")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "property as name=value (repeatable)")
	return cmd
}

func newAddTrailCmd() *cobra.Command {
	var start bool
	cmd := &cobra.Command{
		Use:   "trail",
		Short: "Add a trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &types.Trail{State: types.TrailStateDraft, CreatedAt: time.Now().UTC()}
			if start {
				if err := t.Start(); err != nil {
					return err
				}
			}
			return addEntity(cmd, types.TrailsTable, t)
		},
	}
	cmd.Flags().BoolVar(&start, "start", false, "create the trail active")
	return cmd
}

func newAddLinkCmd() *cobra.Command {
	var linkType, from, to string
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Add a link between two entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := types.NewLink(linkType, from, to)
			if err != nil {
				return err
			}
			return addEntity(cmd, types.LinksTable, l)
		},
	}
	cmd.Flags().StringVar(&linkType, "type", types.LinkTypeBelongsTo, "link type")
	cmd.Flags().StringVar(&from, "from", "", "source entity ID")
	cmd.Flags().StringVar(&to, "to", "", "target entity ID")
	return cmd
}

// addEntity tracks e as Added in table and commits. The new ID is printed
// after a save.
func addEntity(cmd *cobra.Command, table string, e types.Entity) error {
	return withWorkspace(cmd, func(ws *workspace) error {
		set, err := ws.load(table)
		if err != nil {
			return err
		}
		if err := set.add(e); err != nil {
			return err
		}
		wrote, err := ws.commit(cmd.Context())
		if err != nil {
			return err
		}
		if wrote {
			fmt.Fprintln(ws.out, e.EntityID())
		}
		return nil
	})
}

// splitAssignment parses "name=value".
func splitAssignment(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("%w: expected name=value, got %q", types.ErrInvalidName, s)
	}
	return k, v, nil
}
