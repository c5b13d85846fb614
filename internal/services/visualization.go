package services

import (
	"fmt"
	"strings"
)

// Graph is the node-link shape the UI renders. Links reference node ids.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

type GraphNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

const (
	flatNameLimit       = 50
	provenanceNameLimit = 80
)

// nodeTypeLexicon is checked in order against a node's first label; the
// first substring hit decides the display type, anything else renders as
// a concept.
var nodeTypeLexicon = []struct {
	substr string
	typ    string
}{
	{"document", "document"},
	{"source", "document"},
	{"person", "person"},
	{"org", "organization"},
	{"company", "organization"},
	{"location", "location"},
	{"place", "location"},
	{"chunk", "chunk"},
	{"entity", "entity"},
}

// labelTypes maps the lexical graph's own labels onto display types the
// lexicon does not spell out.
var labelTypes = map[string]string{
	"statement": "entity",
	"fact":      "entity",
}

func nodeType(labels []string, name string) string {
	haystack := name
	if len(labels) > 0 {
		haystack = labels[0]
	}
	haystack = strings.ToLower(haystack)
	if t, ok := labelTypes[haystack]; ok {
		return t
	}
	for _, e := range nodeTypeLexicon {
		if strings.Contains(haystack, e.substr) {
			return e.typ
		}
	}
	return "concept"
}

func truncateName(name string, limit int) string {
	name = strings.TrimSpace(name)
	runes := []rune(name)
	if len(runes) <= limit {
		return name
	}
	return string(runes[:limit]) + "..."
}

// GraphFromRows builds the exploration view from flat neighborhood rows.
// Nodes deduplicate on id with the first occurrence winning; the node set
// is capped at limit; a link is kept only when both of its endpoints made
// the cut.
func GraphFromRows(rows []map[string]any, limit int) Graph {
	g := Graph{Nodes: []GraphNode{}, Links: []GraphLink{}}
	seen := map[string]bool{}

	addNode := func(id, name string, labels []string) {
		if id == "" || seen[id] {
			return
		}
		if limit > 0 && len(g.Nodes) >= limit {
			return
		}
		if name == "" {
			name = id
		}
		seen[id] = true
		g.Nodes = append(g.Nodes, GraphNode{
			ID:   id,
			Name: truncateName(name, flatNameLimit),
			Type: nodeType(labels, name),
		})
	}

	type pendingLink struct{ source, target, typ string }
	var links []pendingLink

	for _, row := range rows {
		srcID := stringValue(row["source_node_id"])
		addNode(srcID, stringValue(row["source_name"]), stringsValue(row["source_labels"]))

		tgtID := stringValue(row["target_node_id"])
		addNode(tgtID, stringValue(row["target_name"]), stringsValue(row["target_labels"]))

		if rel := stringValue(row["rel_type"]); rel != "" && srcID != "" && tgtID != "" {
			links = append(links, pendingLink{source: srcID, target: tgtID, typ: rel})
		}
	}

	for _, l := range links {
		if seen[l.source] && seen[l.target] {
			g.Links = append(g.Links, GraphLink{Source: l.source, Target: l.target, Type: l.typ})
		}
	}
	return g
}

// ProvenanceSource is one document's traversed neighborhood, nested the
// way the traversal discovered it.
type ProvenanceSource struct {
	SourceID string
	FileName string
	Topics   []ProvenanceTopic
}

type ProvenanceTopic struct {
	Topic      string
	Statements []ProvenanceStatement
}

type ProvenanceStatement struct {
	Statement string
	Facts     []string
}

// GraphFromProvenance renders a traversal's provenance trees as a graph.
// Child node ids are synthesized from the parent id so the same statement
// under two topics stays two distinct nodes in the drawing.
func GraphFromProvenance(sources []ProvenanceSource) Graph {
	g := Graph{Nodes: []GraphNode{}, Links: []GraphLink{}}

	for _, src := range sources {
		name := src.FileName
		if name == "" {
			name = src.SourceID
		}
		g.Nodes = append(g.Nodes, GraphNode{
			ID:   src.SourceID,
			Name: truncateName(name, provenanceNameLimit),
			Type: "document",
		})

		for ti, topic := range src.Topics {
			topicID := fmt.Sprintf("%s_topic_%d", src.SourceID, ti)
			g.Nodes = append(g.Nodes, GraphNode{
				ID:   topicID,
				Name: truncateName(topic.Topic, provenanceNameLimit),
				Type: "concept",
			})
			g.Links = append(g.Links, GraphLink{Source: src.SourceID, Target: topicID, Type: "HAS_TOPIC"})

			for si, st := range topic.Statements {
				stID := fmt.Sprintf("%s_statement_%d", topicID, si)
				g.Nodes = append(g.Nodes, GraphNode{
					ID:   stID,
					Name: truncateName(st.Statement, provenanceNameLimit),
					Type: "entity",
				})
				g.Links = append(g.Links, GraphLink{Source: topicID, Target: stID, Type: "HAS_STATEMENT"})

				for fi, fact := range st.Facts {
					factID := fmt.Sprintf("%s_fact_%d", stID, fi)
					g.Nodes = append(g.Nodes, GraphNode{
						ID:   factID,
						Name: truncateName(fact, provenanceNameLimit),
						Type: "entity",
					})
					g.Links = append(g.Links, GraphLink{Source: stID, Target: factID, Type: "SUPPORTS"})
				}
			}
		}
	}
	return g
}

func stringsValue(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
