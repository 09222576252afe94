// Package geojson reads the run inputs and writes the run outputs as files:
// a node-link JSON street graph in, GeoJSON feature collections both ways.
package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/park-access/internal/domain"
)

// nodeLink is the networkx node-link layout. Some exporters nest it under
// "graph" and some call the edge list "edges" instead of "links".
type nodeLink struct {
	Nodes []jsonNode `json:"nodes"`
	Links []jsonEdge `json:"links"`
	Edges []jsonEdge `json:"edges"`
	Graph *nodeLink  `json:"graph"`
}

type jsonNode struct {
	ID json.Number `json:"id"`
	X  *float64    `json:"x"`
	Y  *float64    `json:"y"`
}

type jsonEdge struct {
	Source json.Number `json:"source"`
	Target json.Number `json:"target"`
	Length *float64    `json:"length"`
}

// LoadStreetGraph reads a node-link JSON street graph from path.
func LoadStreetGraph(path string) (*domain.StreetGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open street graph: %w", err)
	}
	defer f.Close()

	g, err := ReadStreetGraph(f)
	if err != nil {
		return nil, fmt.Errorf("street graph %s: %w", path, err)
	}
	return g, nil
}

// ReadStreetGraph decodes a node-link street graph. Node IDs may be numbers or
// numeric strings; x is longitude and y latitude. An edge without a length
// is given the great-circle distance between its endpoints.
func ReadStreetGraph(r io.Reader) (*domain.StreetGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc nodeLink
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode node-link json: %w", domain.ErrInvalidGraph, err)
	}
	if len(doc.Nodes) == 0 && doc.Graph != nil && len(doc.Graph.Nodes) > 0 {
		doc = *doc.Graph
	}
	if len(doc.Nodes) == 0 {
		return nil, domain.ErrEmptyGraph
	}

	nodes := make([]domain.Node, 0, len(doc.Nodes))
	points := make(map[int64]orb.Point, len(doc.Nodes))
	for i, n := range doc.Nodes {
		id, err := parseID(n.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d id: %w", domain.ErrInvalidGraph, i, err)
		}
		if n.X == nil || n.Y == nil {
			return nil, fmt.Errorf("%w: node %d has no x/y coordinates", domain.ErrMissingField, id)
		}
		p := orb.Point{*n.X, *n.Y}
		nodes = append(nodes, domain.Node{ID: id, Point: p})
		points[id] = p
	}

	links := doc.Links
	if len(links) == 0 {
		links = doc.Edges
	}
	edges := make([]domain.Edge, 0, len(links))
	for i, l := range links {
		from, err := parseID(l.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d source: %w", domain.ErrInvalidGraph, i, err)
		}
		to, err := parseID(l.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %d target: %w", domain.ErrInvalidGraph, i, err)
		}
		e := domain.Edge{From: from, To: to}
		if l.Length != nil {
			e.Length = *l.Length
		} else {
			e.Length = geo.Distance(points[from], points[to])
		}
		edges = append(edges, e)
	}

	return domain.NewStreetGraph(nodes, edges)
}

func parseID(n json.Number) (int64, error) {
	if n == "" {
		return 0, errors.New("missing")
	}
	if id, err := n.Int64(); err == nil {
		return id, nil
	}
	// Some exporters write integral IDs as floats.
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not an integer", n)
	}
	return int64(f), nil
}

type outNode struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type outEdge struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Length float64 `json:"length"`
}

// WriteStreetGraph encodes g in the node-link layout ReadStreetGraph reads.
func WriteStreetGraph(w io.Writer, g *domain.StreetGraph) error {
	doc := struct {
		Directed   bool      `json:"directed"`
		Multigraph bool      `json:"multigraph"`
		Nodes      []outNode `json:"nodes"`
		Links      []outEdge `json:"links"`
	}{Directed: true, Multigraph: true}

	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, outNode{ID: n.ID, X: n.Point[0], Y: n.Point[1]})
	}
	for _, e := range g.Edges() {
		doc.Links = append(doc.Links, outEdge{Source: e.From, Target: e.To, Length: e.Length})
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode street graph: %w", err)
	}
	return nil
}
