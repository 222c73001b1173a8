package syncer

import (
	"sort"

	"github.com/lwoollett/FrameHub/internal/changelog"
	"github.com/lwoollett/FrameHub/internal/docstore"
)

// Document fields written by the sync engine.
const (
	FieldMastered          = "mastered"
	FieldPartiallyMastered = "partiallyMastered"
)

// BuildBatch converts drained change-log entries into the four operations of
// one atomic batch, always in this order:
//
//  1. merge of every changed scalar field
//  2. addToSet of newly mastered items
//  3. removeFromSet of newly unmastered items
//  4. merge of partiallyMastered, with Delete for cleared ranks
//
// Item names are sorted so equal logs produce equal batches. An item never
// appears in both set operations because the log holds one entry per item.
func BuildBatch(entries []changelog.Entry) []docstore.WriteOp {
	fields := make(map[string]any)
	partial := make(map[string]any)
	var add, remove []string

	for _, e := range entries {
		switch e.Kind {
		case changelog.KindField:
			fields[e.Key] = e.New
		case changelog.KindItem:
			if mastered, _ := e.New.(bool); mastered {
				add = append(add, e.Key)
			} else {
				remove = append(remove, e.Key)
			}
		case changelog.KindPartial:
			if rank, _ := e.New.(int); rank > 0 {
				partial[e.Key] = rank
			} else {
				partial[e.Key] = docstore.Delete
			}
		}
	}

	sort.Strings(add)
	sort.Strings(remove)

	return []docstore.WriteOp{
		docstore.MergeFields(fields),
		docstore.AddToSet(FieldMastered, add...),
		docstore.RemoveFromSet(FieldMastered, remove...),
		docstore.MergeFields(map[string]any{FieldPartiallyMastered: partial}),
	}
}
