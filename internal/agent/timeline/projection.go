package timeline

import (
	"github.com/getpaseo/paseod/internal/agent"
)

// SeqRange is an inclusive [first, last] canonical seq range.
type SeqRange [2]int64

// Entry is one row of a read-view (canonical or projected) returned by
// Fetch.
type Entry struct {
	Type            agent.ItemType
	Item            agent.Item
	Status          agent.ToolStatus
	SourceSeqRanges []SeqRange
}

func (e Entry) firstSeq() int64 {
	if len(e.SourceSeqRanges) == 0 {
		return 0
	}
	return e.SourceSeqRanges[0][0]
}

func (e Entry) lastSeq() int64 {
	if len(e.SourceSeqRanges) == 0 {
		return 0
	}
	return e.SourceSeqRanges[len(e.SourceSeqRanges)-1][1]
}

// Canonical returns rows verbatim as Entries, one per row.
func Canonical(rows []agent.TimelineRow) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			Type:            r.Item.Type,
			Item:            r.Item,
			Status:          r.Item.Status,
			SourceSeqRanges: []SeqRange{{r.Seq, r.Seq}},
		})
	}
	return out
}

// Projected merges consecutive assistant_message rows with no intervening
// non-assistant row into one entry, and collapses every tool_call row
// sharing a callId into a single entry carrying the latest status.
func Projected(rows []agent.TimelineRow) []Entry {
	out := make([]Entry, 0, len(rows))
	toolIndex := make(map[string]int)

	for _, r := range rows {
		item := r.Item
		switch item.Type {
		case agent.ItemAssistantMessage:
			if n := len(out); n > 0 && out[n-1].Type == agent.ItemAssistantMessage {
				out[n-1].Item.Text += item.Text
				out[n-1].SourceSeqRanges = appendSeq(out[n-1].SourceSeqRanges, r.Seq)
				continue
			}
			out = append(out, Entry{
				Type:            item.Type,
				Item:            item,
				SourceSeqRanges: []SeqRange{{r.Seq, r.Seq}},
			})

		case agent.ItemToolCall:
			if idx, ok := toolIndex[item.CallID]; ok {
				out[idx].Item = item
				out[idx].Status = item.Status
				out[idx].SourceSeqRanges = appendSeq(out[idx].SourceSeqRanges, r.Seq)
				continue
			}
			toolIndex[item.CallID] = len(out)
			out = append(out, Entry{
				Type:            item.Type,
				Item:            item,
				Status:          item.Status,
				SourceSeqRanges: []SeqRange{{r.Seq, r.Seq}},
			})

		default:
			out = append(out, Entry{
				Type:            item.Type,
				Item:            item,
				SourceSeqRanges: []SeqRange{{r.Seq, r.Seq}},
			})
		}
	}
	return out
}

func appendSeq(ranges []SeqRange, seq int64) []SeqRange {
	if n := len(ranges); n > 0 && ranges[n-1][1] == seq-1 {
		ranges[n-1][1] = seq
		return ranges
	}
	return append(ranges, SeqRange{seq, seq})
}

// Direction selects the window FetchTimeline slices out of the read-view.
type Direction string

const (
	DirectionHead   Direction = "head"
	DirectionTail   Direction = "tail"
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

// Mode selects canonical or projected rendering.
type Mode string

const (
	ModeCanonical Mode = "canonical"
	ModeProjected Mode = "projected"
)

// FetchParams mirrors the FetchTimeline operation's request shape.
type FetchParams struct {
	Direction             Direction
	Cursor                int64 // canonical seq; meaningful for before/after
	Limit                 int
	Mode                  Mode
	CollapseToolLifecycle bool // not read by Fetch; projected mode always collapses tool_call rows by callId
}

// FetchResult mirrors the FetchTimeline operation's response shape.
type FetchResult struct {
	Entries     []Entry
	StartCursor int64
	EndCursor   int64
	HasOlder    bool
	HasNewer    bool
}

// Fetch windows rows (assumed to already contain every row the caller wants
// considered, e.g. the full loaded prefix/suffix from the store) according
// to p. The entry count returned for direction=tail is exactly
// min(limit, total).
func Fetch(rows []agent.TimelineRow, p FetchParams) FetchResult {
	var entries []Entry
	if p.Mode == ModeProjected {
		entries = Projected(rows)
	} else {
		entries = Canonical(rows)
	}

	total := len(entries)
	limit := p.Limit
	if limit <= 0 {
		limit = total
	}

	var start, end int
	switch p.Direction {
	case DirectionHead:
		start, end = 0, min(limit, total)
	case DirectionAfter:
		idx := indexAfter(entries, p.Cursor)
		start, end = idx, min(idx+limit, total)
	case DirectionBefore:
		idx := indexBefore(entries, p.Cursor)
		end = idx
		start = max(0, end-limit)
	default: // DirectionTail
		end = total
		start = max(0, total-limit)
	}
	if start > end {
		start = end
	}

	window := entries[start:end]
	res := FetchResult{
		Entries:  window,
		HasOlder: start > 0,
		HasNewer: end < total,
	}
	if len(window) > 0 {
		res.StartCursor = window[0].firstSeq()
		res.EndCursor = window[len(window)-1].lastSeq()
	} else if total > 0 {
		res.EndCursor = entries[total-1].lastSeq()
	}
	return res
}

func indexAfter(entries []Entry, cursor int64) int {
	for i, e := range entries {
		if e.firstSeq() > cursor {
			return i
		}
	}
	return len(entries)
}

func indexBefore(entries []Entry, cursor int64) int {
	for i, e := range entries {
		if e.firstSeq() >= cursor {
			return i
		}
	}
	return len(entries)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
