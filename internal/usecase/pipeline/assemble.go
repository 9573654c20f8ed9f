package pipeline

import (
	"github.com/verity-rag/verity/internal/domain"
	"github.com/verity-rag/verity/internal/metrics"
)

// assemble packages filter survivors into the final evidence set. It
// preserves the filter's ordering, enforces the total text budget by
// dropping whole documents from the lowest-ranked end (the top entries are
// never cut mid-document), and builds the deduplicated citation list.
func assemble(kept []domain.Evidence, maxContextBytes int, m *domain.PipelineMetrics) ([]domain.Evidence, []domain.Citation) {
	entries := kept
	if maxContextBytes > 0 {
		total := 0
		for i := range kept {
			doc := kept[i].Document()
			total += len(doc.Text())
			if total > maxContextBytes {
				entries = kept[:i]
				m.Truncated = true
				metrics.PipelineContextTruncated.Inc()
				break
			}
		}
	}

	return entries, citations(entries)
}

// citations returns unique sources in rank order. The first (highest-ranked)
// occurrence of a source decides its locator.
func citations(entries []domain.Evidence) []domain.Citation {
	var out []domain.Citation
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		doc := entries[i].Document()
		if _, ok := seen[doc.Source()]; ok {
			continue
		}
		seen[doc.Source()] = struct{}{}
		out = append(out, domain.Citation{Source: doc.Source(), Locator: doc.Locator()})
	}
	return out
}
