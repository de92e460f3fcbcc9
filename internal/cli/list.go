package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/solvermatrix/internal/matrix"
	"github.com/roach88/solvermatrix/internal/scenario"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Categories []string
}

// ContainerInfo describes one container in list output.
type ContainerInfo struct {
	Name       string     `json:"name"`
	Model      string     `json:"model"`
	Categories []string   `json:"categories,omitempty"`
	Units      []UnitInfo `json:"units"`
}

// UnitInfo describes one unit in list output.
type UnitInfo struct {
	Name      string       `json:"name"`
	Solver    string       `json:"solver"`
	Interface string       `json:"interface"`
	Labels    string       `json:"labels"`
	Class     matrix.Class `json:"class"`
	Message   string       `json:"message,omitempty"`
}

// ListOutput is the JSON payload of the list command.
type ListOutput struct {
	Containers []ContainerInfo `json:"containers"`
	Units      int             `json:"units"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <registry>",
		Short: "List containers and units without running them",
		Long: `Build the test matrix from a scenario registry and print its containers
and units. No model is generated and no solver is invoked.

Examples:
  solvermatrix list registry.yaml
  solvermatrix list registry.cue --category nonlinear --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMatrix(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "only list models tagged with one of these categories")

	return cmd
}

func listMatrix(opts *ListOptions, registryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	reg, err := scenario.LoadFile(registryPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeRegistryInvalid, "failed to load registry", err)
	}

	builder := &matrix.Builder{
		Categories: opts.Categories,
		Logger:     newLogger(opts.RootOptions, formatter.GetErrWriter()),
	}
	m, err := builder.Build(reg)
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeRegistryInvalid, "failed to build matrix", err)
	}

	out := describe(m)
	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	writeList(formatter.Writer, out)
	return nil
}

func describe(m *matrix.Matrix) ListOutput {
	out := ListOutput{Containers: []ContainerInfo{}, Units: m.Len()}
	for _, c := range m.Containers() {
		info := ContainerInfo{
			Name:       c.Name(),
			Model:      c.Model(),
			Categories: c.Categories(),
			Units:      []UnitInfo{},
		}
		for _, u := range c.Units() {
			s := u.Scenario()
			unit := UnitInfo{
				Name:      u.Name(),
				Solver:    s.Solver,
				Interface: s.Interface,
				Labels:    u.Labels().String(),
				Class:     u.Class(),
			}
			if u.Class() != matrix.ClassRunnable {
				unit.Message = s.Message
			}
			info.Units = append(info.Units, unit)
		}
		out.Containers = append(out.Containers, info)
	}
	return out
}

func writeList(w io.Writer, out ListOutput) {
	for _, c := range out.Containers {
		if len(c.Categories) > 0 {
			fmt.Fprintf(w, "%s [%s]\n", c.Name, strings.Join(c.Categories, ", "))
		} else {
			fmt.Fprintln(w, c.Name)
		}
		for _, u := range c.Units {
			if u.Message != "" {
				fmt.Fprintf(w, "  %s (%s: %s)\n", u.Name, u.Class, u.Message)
			} else {
				fmt.Fprintf(w, "  %s (%s)\n", u.Name, u.Class)
			}
		}
	}
	fmt.Fprintf(w, "\n%d container(s), %d unit(s)\n", len(out.Containers), out.Units)
}
