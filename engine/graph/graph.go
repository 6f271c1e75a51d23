// Package graph maintains the page link graph in Neo4j. Ingestion records
// which pages link to which; retrieval uses it to surface related pages
// alongside an answer.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
)

// LinkGraph provides link-graph operations over a Neo4j driver.
type LinkGraph struct {
	driver neo4j.DriverWithContext
}

// New creates a LinkGraph.
func New(driver neo4j.DriverWithContext) *LinkGraph {
	return &LinkGraph{driver: driver}
}

// SavePage creates or updates the node for a fetched page.
func (g *LinkGraph) SavePage(ctx context.Context, page domain.Page) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (p:Page {url: $url}) SET p.title = $title, p.meta = $meta`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"url":   page.URL,
		"title": page.Title,
		"meta":  page.Meta,
	})
	if err != nil {
		return fmt.Errorf("graph: save page %s: %w", page.URL, err)
	}
	return nil
}

// SaveLinks records LINKS_TO edges from a page to its internal link targets.
// Target nodes are merged so edges can be written before the target page is
// ever fetched.
func (g *LinkGraph) SaveLinks(ctx context.Context, fromURL string, targets []string) error {
	if len(targets) == 0 {
		return nil
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (a:Page {url: $from})
	           UNWIND $targets AS target
	           MERGE (b:Page {url: target})
	           MERGE (a)-[:LINKS_TO]->(b)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"from":    fromURL,
		"targets": targets,
	})
	if err != nil {
		return fmt.Errorf("graph: save links from %s: %w", fromURL, err)
	}
	return nil
}

// RelatedPages returns URLs reachable from the given page within two hops,
// nearest first.
func (g *LinkGraph) RelatedPages(ctx context.Context, pageURL string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (p:Page {url: $url})-[:LINKS_TO*1..2]-(q:Page)
	           WHERE q.url <> $url
	           RETURN DISTINCT q.url AS url LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"url":   pageURL,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("graph: related pages for %s: %w", pageURL, err)
	}

	var urls []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("url"); ok {
			if s, ok := v.(string); ok {
				urls = append(urls, s)
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: related pages for %s: %w", pageURL, err)
	}
	return urls, nil
}

// DeletePage removes a page node and its edges, used when a source is purged
// permanently rather than re-ingested.
func (g *LinkGraph) DeletePage(ctx context.Context, pageURL string) error {
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (p:Page {url: $url}) DETACH DELETE p`, map[string]any{"url": pageURL})
	if err != nil {
		return fmt.Errorf("graph: delete page %s: %w", pageURL, err)
	}
	return nil
}
