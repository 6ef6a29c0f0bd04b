// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/postroj/postroj/internal/distro"
)

// distroView is the JSON form of a catalog entry.
type distroView struct {
	distro.Distribution
	FullName  string           `json:"fullname"`
	Machine   string           `json:"machine"`
	ImageKind distro.ImageKind `json:"image_kind"`
}

func newDistrosCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "distros",
		Short: "List the distributions postroj knows how to boot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return writeDistrosJSON(app.stdout, distro.All())
			}
			writeDistrosTable(app.stdout, distro.All())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

func writeDistrosJSON(w io.Writer, distros []distro.Distribution) error {
	views := make([]distroView, 0, len(distros))
	for _, d := range distros {
		views = append(views, distroView{
			Distribution: d,
			FullName:     d.FullName(),
			Machine:      d.MachineName(),
			ImageKind:    d.ImageKind(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(views); err != nil {
		return fmt.Errorf("encode distributions: %w", err)
	}
	return nil
}

func writeDistrosTable(w io.Writer, distros []distro.Distribution) {
	header := []string{"NAME", "RELEASE", "KIND", "IMAGE"}
	rows := make([][]string, 0, len(distros))
	for _, d := range distros {
		rows = append(rows, []string{d.FullName(), d.Release, string(d.ImageKind()), d.Image})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	render := func(style lipgloss.Style, cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = style.UnsetPaddingRight().Render(cell)
				continue
			}
			parts[i] = style.Width(widths[i] + style.GetPaddingRight()).Render(cell)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	fmt.Fprintln(w, render(tableHeaderStyle, header))
	for _, row := range rows {
		fmt.Fprintln(w, render(tableCellStyle, row))
	}
}
