package services

import "github.com/custodia-labs/harvester/internal/core/domain"

// CollapseByIdentity removes duplicate records within one harvest.
// A page fetched twice, or a listing moving between pages mid-walk,
// yields the same identity more than once; the later occurrence wins
// since it is the fresher fetch. Relative order of first appearance is
// preserved so the index receives records in feed order.
func CollapseByIdentity(records []domain.NormalizedRecord) []domain.NormalizedRecord {
	if len(records) < 2 {
		return records
	}

	position := make(map[string]int, len(records))
	out := make([]domain.NormalizedRecord, 0, len(records))
	for _, rec := range records {
		if at, seen := position[rec.Identity]; seen {
			out[at] = rec
			continue
		}
		position[rec.Identity] = len(out)
		out = append(out, rec)
	}
	return out
}
