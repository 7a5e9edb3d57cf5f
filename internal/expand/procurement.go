package expand

import (
	"lakeload/internal/flatten"
	"lakeload/pkg/records"
)

// Procurement explodes an OCDS-style release document into two separate
// record streams: one release-level summary per release, and one item-level
// record per line item nested under each award. The streams land in separate
// artifacts and are never interleaved.
//
// The input is either an envelope object carrying a "releases" field (native
// list or JSON-encoded string list) or an already-unwrapped release list.
// Identifier fallback order everywhere: explicit "id" field, explicit
// secondary field ("ocid"), content hash — the explicit field always wins
// when both are present.
func Procurement(docs []map[string]any, ctx Context, emitRelease, emitItem Emit) error {
	releases := unwrapReleases(docs, ctx)

	for _, rel := range releases {
		relID := identifierOf(rel, "id", "ocid")

		if err := emitRelease(finish(ctx, releaseRecord(rel, relID))); err != nil {
			return err
		}

		awards, _ := CoerceArray(rel["awards"])
		for _, rawAward := range awards {
			award, ok := rawAward.(map[string]any)
			if !ok {
				continue
			}
			awardID := identifierOf(award, "id", "")

			items, _ := CoerceArray(award["items"])
			for _, rawItem := range items {
				item, ok := rawItem.(map[string]any)
				if !ok {
					continue
				}
				if err := emitItem(finish(ctx, itemRecord(rel, award, item, relID, awardID))); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// unwrapReleases resolves the document shape down to the release list.
func unwrapReleases(docs []map[string]any, ctx Context) []map[string]any {
	if len(docs) == 1 {
		if raw, present := docs[0]["releases"]; present {
			arr, ok := CoerceArray(raw)
			if !ok {
				ctx.degrade("procurement: releases field is not a usable list")
				return nil
			}
			out := make([]map[string]any, 0, len(arr))
			for _, el := range arr {
				if m, ok := el.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out
		}
	}
	return docs
}

func releaseRecord(rel map[string]any, relID string) *records.Record {
	r := records.New(8)
	r.Set("release_id", relID)
	r.Set("ocid", stringOf(rel["ocid"]))
	r.Set("date", stringOf(rel["date"]))

	if buyer, ok := rel["buyer"].(map[string]any); ok {
		r.Set("buyer_id", stringOf(buyer["id"]))
		r.Set("buyer_name", stringOf(buyer["name"]))
	} else {
		r.Set("buyer_id", nil)
		r.Set("buyer_name", nil)
	}

	if tender, ok := rel["tender"].(map[string]any); ok {
		r.Set("tender_title", stringOf(tender["title"]))
	}

	// Remaining top-level scalars ride along as summary context.
	for _, kv := range topLevelScalars(rel) {
		switch kv.key {
		case "id", "ocid", "date":
			continue
		}
		r.Set(kv.key, kv.val)
	}
	return r
}

func itemRecord(rel, award, item map[string]any, relID, awardID string) *records.Record {
	r := records.New(8)
	r.Set("release_id", relID)
	r.Set("award_id", awardID)
	r.Set("item_id", identifierOf(item, "id", ""))
	r.Set("description", stringOf(item["description"]))
	r.Set("quantity", item["quantity"])
	r.Set("unit_value", unitValue(item))
	return r
}

// unitValue pulls the unit price from the nested unit object when present.
func unitValue(item map[string]any) any {
	unit, ok := item["unit"].(map[string]any)
	if !ok {
		return nil
	}
	if val, ok := unit["value"].(map[string]any); ok {
		return val["amount"]
	}
	return unit["value"]
}

// identifierOf derives a stable identifier for a sub-document: the explicit
// primary field, then the secondary field, then a content hash of the
// flattened document.
func identifierOf(obj map[string]any, primary, secondary string) string {
	if primary != "" {
		if id := stringOf(obj[primary]); id != "" {
			return id
		}
	}
	if secondary != "" {
		if id := stringOf(obj[secondary]); id != "" {
			return id
		}
	}
	return records.Identify(flatten.Flatten(obj))
}
