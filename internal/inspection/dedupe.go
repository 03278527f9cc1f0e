package inspection

import "strings"

type panelGate struct {
	serial string
	gate   Gate
}

// KeepEarliest reduces events to one per (panel serial, gate), keeping the row
// with the earliest InspectedAt. Serials are compared and returned upper-cased.
// On equal timestamps the first row seen wins. Output follows the order in
// which each key first appeared; dropped is the number of rows discarded.
func KeepEarliest(events []Event) (kept []Event, dropped int) {
	index := make(map[panelGate]int, len(events))
	for _, e := range events {
		e.PanelSerial = strings.ToUpper(strings.TrimSpace(e.PanelSerial))
		key := panelGate{serial: e.PanelSerial, gate: e.Gate}

		i, seen := index[key]
		if !seen {
			index[key] = len(kept)
			kept = append(kept, e)
			continue
		}
		dropped++
		if e.InspectedAt.Before(kept[i].InspectedAt) {
			kept[i] = e
		}
	}
	return kept, dropped
}
