package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func names(vs []*Variable) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.name
	}
	return out
}

func testNodes(ns ...string) ([]*Variable, map[string]*Variable) {
	byName := make(map[string]*Variable)
	nodes := make([]*Variable, len(ns))
	for i, n := range ns {
		nodes[i] = &Variable{name: n, id: i + 1}
		byName[n] = nodes[i]
	}
	return nodes, byName
}

func TestCircular(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  []string
	}{
		{"dag", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}}, nil},
		{"self loop", []string{"a", "b"}, [][2]string{{"a", "a"}, {"a", "b"}}, []string{"a"}},
		{"two cycle", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}}, []string{"a", "b"}},
		{"three cycle", []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"d", "a"}}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, by := testNodes(tt.nodes...)
			out := make(edges)
			for _, e := range tt.edges {
				out[by[e[0]]] = append(out[by[e[0]]], by[e[1]])
			}

			cyclic := circular(nodes, out)
			var got []string
			for _, v := range nodes {
				if cyclic[v] {
					got = append(got, v.name)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopoOrder(t *testing.T) {
	nodes, by := testNodes("c", "b", "a", "d")
	out := edges{
		by["a"]: {by["b"]},
		by["b"]: {by["c"]},
	}

	order := topoOrder(nodes, out)
	assert.Equal(t, []string{"a", "d", "b", "c"}, names(order))
}
