// Package patchgraph: aktif net patch'leri üzerinde yönlü graph ve
// feedback loop tespiti.
//
// Node'lar net ID'leridir, edge'ler aktif patch'lerdir. Çift yönlü bir patch
// iki ayrı yönlü edge olarak eklenir (A→B ve B→A).
//
// Yeni bir patch (source → dest) eklenmeden önce dest'in mevcut graph'ta
// source'a ulaşıp ulaşmadığına bakılır. Ulaşıyorsa yeni edge bir cycle kapatır:
// ses source'tan dest'e, oradan tekrar source'a döner.
//
// Bu kontrol 2-hop ters patch (A→B varken B→A) durumunu kapsar ve
// 3+ node'lu cycle'ları da (A→B, B→C varken C→A) yakalar.
package patchgraph

import (
	"fmt"
	"strings"

	"github.com/akinalp/nexus/models"
)

// Loop sebepleri; PatchCheckResult.Reason alanına yazılır.
const (
	ReasonSelfLoop      = "self_loop"
	ReasonBidirectional = "bidirectional"
	ReasonReverse       = "reverse_of_active_patch"
	ReasonCycle         = "cycle"
)

// Graph, net'ler arası yönlü adjacency listesi.
type Graph struct {
	edges map[string]map[string]bool
}

// New, verilen patch'lerden sadece aktif olanlarla graph kurar.
func New(patches []models.NetPatch) *Graph {
	g := &Graph{edges: make(map[string]map[string]bool)}
	for _, p := range patches {
		if p.Status != models.PatchStatusActive {
			continue
		}
		g.AddEdge(p.SourceNetID, p.DestinationNetID)
		if p.IsBidirectional {
			g.AddEdge(p.DestinationNetID, p.SourceNetID)
		}
	}
	return g
}

// AddEdge, from → to yönlü edge ekler.
func (g *Graph) AddEdge(from, to string) {
	if _, ok := g.edges[from]; !ok {
		g.edges[from] = make(map[string]bool)
	}
	g.edges[from][to] = true
}

// HasEdge, from → to edge'inin var olup olmadığını döner.
func (g *Graph) HasEdge(from, to string) bool {
	return g.edges[from][to]
}

// Path, from'dan to'ya bir yol varsa yolu (from ve to dahil) döner.
// BFS kullanılır; dönen yol en kısa yoldur.
func (g *Graph) Path(from, to string) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}

	prev := map[string]string{from: ""}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for next := range g.edges[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				return buildPath(prev, from, to), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func buildPath(prev map[string]string, from, to string) []string {
	var path []string
	for cur := to; cur != from; cur = prev[cur] {
		path = append(path, cur)
	}
	path = append(path, from)

	// ters çevir
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Result, loop kontrolünün sonucu.
type Result struct {
	Loop   bool
	Reason string
	// Path, cycle tespit edildiğinde dest → ... → source yolunu taşır.
	Path []string
}

// Detail, log ve UI için okunabilir açıklama döner.
func (r Result) Detail() string {
	if !r.Loop {
		return ""
	}
	if len(r.Path) > 0 {
		return fmt.Sprintf("%s: %s", r.Reason, strings.Join(r.Path, " -> "))
	}
	return r.Reason
}

// WouldCreateLoop, source → dest patch'inin aktif patch'lerle birlikte
// feedback loop oluşturup oluşturmayacağını kontrol eder.
//
// Kurallar sırasıyla:
//  1. source == dest → loop (net kendine patch'lenemez)
//  2. bidirectional öneri → her zaman loop. Çift yönlü patch tek başına
//     A→B→A döngüsüdür; bu politika korunur.
//  3. Mevcut aktif bir patch önerinin tam tersi ise → loop
//  4. dest, mevcut graph'ta source'a ulaşıyorsa → loop
func WouldCreateLoop(active []models.NetPatch, source, dest string, bidirectional bool) Result {
	if source == dest {
		return Result{Loop: true, Reason: ReasonSelfLoop}
	}
	if bidirectional {
		return Result{Loop: true, Reason: ReasonBidirectional}
	}

	g := New(active)
	if g.HasEdge(dest, source) {
		return Result{Loop: true, Reason: ReasonReverse, Path: []string{dest, source}}
	}
	if path, ok := g.Path(dest, source); ok {
		return Result{Loop: true, Reason: ReasonCycle, Path: path}
	}
	return Result{}
}
