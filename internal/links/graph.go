package links

import "github.com/starford/kenaz-notebook/internal/models"

// Node is a note in the link graph.
type Node struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FolderID string `json:"folder_id"`
}

// Edge is a resolved wiki-link from Source to Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Dangling is a link label of a note that matches no title.
type Dangling struct {
	Source string `json:"source"`
	Label  string `json:"label"`
}

// Graph is the derived link graph of a set of notes.
type Graph struct {
	Nodes    []Node     `json:"nodes"`
	Edges    []Edge     `json:"edges"`
	Dangling []Dangling `json:"dangling"`
}

// BuildGraph resolves every forward link of every note against all, using
// the first title match in order. Self links are dropped, and labels that
// differ only in case yield a single edge.
func BuildGraph(all []models.NoteRef) Graph {
	g := Graph{
		Nodes:    make([]Node, 0, len(all)),
		Edges:    []Edge{},
		Dangling: []Dangling{},
	}
	for _, r := range all {
		g.Nodes = append(g.Nodes, Node{ID: r.Note.ID, Title: r.Note.Title, FolderID: r.FolderID})
	}
	type pair struct{ src, dst string }
	seen := make(map[pair]struct{})
	for _, r := range all {
		for _, label := range ForwardLinks(r.Note) {
			target, ok := Find(label, all)
			switch {
			case !ok:
				g.Dangling = append(g.Dangling, Dangling{Source: r.Note.ID, Label: label})
			case target.Note.ID != r.Note.ID:
				p := pair{r.Note.ID, target.Note.ID}
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				g.Edges = append(g.Edges, Edge{Source: r.Note.ID, Target: target.Note.ID, Label: label})
			}
		}
	}
	return g
}
