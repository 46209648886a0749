package dnp3app

import "github.com/rob-gra/rvpf-protocol-core/dnp3obj"

// applicationHeaderOverhead is the control byte, function code, and IIN
// bytes every response fragment carries ahead of its items.
const applicationHeaderOverhead = 4

// splitItemsForResponse packs items into one or more groups, each of
// which fits within maxFragmentSize once encoded as a response fragment
// (spec.md §4.3, §8 scenario 3: a large class-0 read must span multiple
// application fragments). An item too large to fit on its own has its
// instances divided across sub-items with a narrowed header range.
func splitItemsForResponse(items []dnp3obj.Item, maxFragmentSize int) [][]dnp3obj.Item {
	budget := maxFragmentSize - applicationHeaderOverhead
	if budget <= 0 {
		budget = maxFragmentSize
	}

	var groups [][]dnp3obj.Item
	var current []dnp3obj.Item
	size := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			size = 0
		}
	}

	for _, item := range items {
		encoded, err := dnp3obj.EncodeItem(item, false)
		if err == nil && size+len(encoded) <= budget {
			current = append(current, item)
			size += len(encoded)
			continue
		}
		flush()
		if err == nil && len(encoded) <= budget {
			current = append(current, item)
			size = len(encoded)
			continue
		}
		for _, sub := range splitOversizedItem(item, budget) {
			groups = append(groups, []dnp3obj.Item{sub})
		}
	}
	flush()

	if len(groups) == 0 {
		groups = append(groups, nil) // always send at least an empty response
	}
	return groups
}

// splitOversizedItem divides one item's instances across as many
// sub-items as needed to stay within budget, narrowing each sub-item's
// header range to the slice of instances it actually carries.
func splitOversizedItem(item dnp3obj.Item, budget int) []dnp3obj.Item {
	if len(item.Instances) == 0 {
		return []dnp3obj.Item{item}
	}
	layout, known := dnp3obj.LookupLayout(item.Header.Group, item.Header.Variation)
	if !known {
		return []dnp3obj.Item{item} // opaque payload, cannot subdivide safely
	}
	hdrBytes, err := item.Header.Encode()
	if err != nil {
		return []dnp3obj.Item{item}
	}

	var out []dnp3obj.Item
	offset := 0
	for offset < len(item.Instances) {
		size := len(hdrBytes)
		n := 0
		for offset+n < len(item.Instances) {
			encoded, err := dnp3obj.EncodeInstance(layout, item.Instances[offset+n])
			if err != nil {
				break
			}
			if n > 0 && size+len(encoded) > budget {
				break
			}
			size += len(encoded)
			n++
		}
		if n == 0 {
			n = 1 // always make progress, even if one instance alone exceeds budget
		}
		out = append(out, dnp3obj.Item{
			Header:    item.Header.SplitRange(offset, n),
			Instances: item.Instances[offset : offset+n],
		})
		offset += n
	}
	return out
}
