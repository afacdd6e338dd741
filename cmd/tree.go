package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/heywhy/bucket/pkg/bucket"
)

var treeCmd = &cobra.Command{
	Use:   "tree ID",
	Short: "Show the dependency tree of a component",
	Long: `Expand the dependency tree of a component without constructing it.
Manifests of unknown dependencies are loaded along the way.

Example:
  bucket tree App`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBucket()
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		root, err := b.Tree(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTree(root).String())
		return err
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

var (
	treeRootStyle = lipgloss.NewStyle().Bold(true)
	treeEnumStyle = lipgloss.NewStyle().Faint(true).MarginRight(1)
)

// renderTree mirrors node as a lipgloss tree, labelling components that
// have a display name with it.
func renderTree(node *bucket.Node) *tree.Tree {
	t := tree.Root(nodeLabel(node)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(treeEnumStyle).
		RootStyle(treeRootStyle)
	for _, child := range node.Children {
		if len(child.Children) == 0 {
			t.Child(nodeLabel(child))
			continue
		}
		t.Child(renderTree(child))
	}
	return t
}

func nodeLabel(node *bucket.Node) string {
	if node.Definition != nil && node.Definition.Name != "" {
		return fmt.Sprintf("%s (%s)", node.ID, node.Definition.Name)
	}
	return node.ID
}
