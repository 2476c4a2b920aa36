package domain

// Unread accumulates unread counts split by dialog kind.
// Each dialog produces its own Unread; the orchestrator merges them.
type Unread struct {
	Private int
	Group   int
}

// UnreadFor returns the contribution of a single dialog
func UnreadFor(d Dialog) Unread {
	if d.IsGroup {
		return Unread{Group: d.UnreadCount}
	}
	return Unread{Private: d.UnreadCount}
}

// Merge returns the sum of two accumulators
func (u Unread) Merge(other Unread) Unread {
	return Unread{
		Private: u.Private + other.Private,
		Group:   u.Group + other.Group,
	}
}

// SkippedDialog is a dialog that failed and was left out of the export
type SkippedDialog struct {
	ChatID int64
	Name   string
	Err    error
}

// RunReport is the transient result of one pipeline run
type RunReport struct {
	Unread  Unread
	Records []ExportRecord
	Skipped []SkippedDialog
}

// Processed returns the number of exported dialogs
func (r *RunReport) Processed() int {
	return len(r.Records)
}
