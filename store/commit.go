package store

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/tree"
)

// CommitStats counts the operations a Commit delegated.
type CommitStats struct {
	GroupsWritten   int
	DatasetsWritten int
	Skipped         int
	Deleted         int
}

// Commit walks an overlay and delegates every change it records to c.
// Removed children are unlinked, groups are written when new or when
// their attributes changed, and datasets are written when any category
// changed. Unchanged children are skipped.
func Commit(c Container, g *tree.MutableGroup) (CommitStats, error) {
	var st CommitStats
	err := commitGroup(c, g, &st)
	return st, err
}

func commitGroup(c Container, g *tree.MutableGroup, st *CommitStats) error {
	if g.IsNew() || g.AttributesMutated() {
		if err := c.WriteGroup(g); err != nil {
			return fmt.Errorf("writing group %s: %w", g.Name(), err)
		}
		st.GroupsWritten++
	}

	for _, name := range g.RemovedDatasets() {
		if err := c.DeleteLink(tree.Join(g.Name(), name)); err != nil {
			return fmt.Errorf("deleting %s: %w", tree.Join(g.Name(), name), err)
		}
		st.Deleted++
	}
	for _, name := range g.RemovedGroups() {
		if err := c.DeleteLink(tree.Join(g.Name(), name)); err != nil {
			return fmt.Errorf("deleting %s: %w", tree.Join(g.Name(), name), err)
		}
		st.Deleted++
	}

	for _, child := range sortedGroups(g) {
		if mg, ok := child.(*tree.MutableGroup); ok {
			if err := commitGroup(c, mg, st); err != nil {
				return err
			}
		}
	}

	for _, ds := range sortedDatasets(g) {
		md, ok := ds.(*tree.MutableDataset)
		if !ok || !md.IsMutated() {
			st.Skipped++
			continue
		}
		if err := c.WriteDataset(md); err != nil {
			return fmt.Errorf("writing dataset %s: %w", md.Name(), err)
		}
		st.DatasetsWritten++
	}
	return nil
}

func sortedGroups(g tree.Group) []tree.Group {
	children := g.Groups()
	out := make([]tree.Group, 0, len(children))
	for _, name := range sortedNames(children) {
		out = append(out, children[name])
	}
	return out
}

func sortedDatasets(g tree.Group) []tree.Dataset {
	children := g.Datasets()
	out := make([]tree.Dataset, 0, len(children))
	for _, name := range sortedNames(children) {
		out = append(out, children[name])
	}
	return out
}
