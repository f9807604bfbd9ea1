package mutation

// Collapse reduces queued updates to last-write-wins before transmission.
//
// Update records are grouped by (Resource, RecordID) and only the record with
// the greatest CreatedAt survives each group. A later record replaces the
// current winner only when its CreatedAt is strictly greater, so among equal
// timestamps the first one scanned wins. Create and Delete records always
// pass through.
//
// The result is a stable filter of records: relative order is unchanged, so
// a Create stays ahead of any surviving Update for the same entity. The input
// slice is not modified.
func Collapse(records []Record) []Record {
	kept, _ := CollapseWithSuperseded(records)
	return kept
}

// CollapseWithSuperseded is Collapse that also reports, keyed by the ID of
// each surviving update, the IDs of the updates it superseded in scan order.
// Winners without losers are absent from the map.
func CollapseWithSuperseded(records []Record) ([]Record, map[int64][]int64) {
	winners := make(map[EntityKey]int, len(records))
	for i, r := range records {
		if r.Operation != OpUpdate {
			continue
		}
		key := r.Entity()
		w, ok := winners[key]
		if !ok || r.CreatedAt.After(records[w].CreatedAt) {
			winners[key] = i
		}
	}

	kept := make([]Record, 0, len(records))
	superseded := make(map[int64][]int64)
	for i, r := range records {
		if r.Operation != OpUpdate {
			kept = append(kept, r)
			continue
		}
		w := winners[r.Entity()]
		if w == i {
			kept = append(kept, r)
			continue
		}
		winnerID := records[w].ID
		superseded[winnerID] = append(superseded[winnerID], r.ID)
	}
	return kept, superseded
}
