package texture

import "fmt"

// Status is the load state of one panorama image.
type Status int

const (
	Unknown Status = iota
	Pending
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{Unknown, Pending, Ready, Failed} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown texture status %q", text)
}

// Info describes a decoded panorama.
type Info struct {
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Entry is what the Table knows about one image reference.
type Entry struct {
	Status Status
	Info   Info
	Err    error
}

// Table tracks the load status of every image reference seen so far. It has a single owner and no locking.
type Table struct {
	entries map[string]Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Get returns the entry for ref; references never seen are Unknown.
func (t *Table) Get(ref string) Entry {
	return t.entries[ref]
}

// NeedsLoad reports whether a load should be started for ref: it was never requested, or the last attempt failed.
func (t *Table) NeedsLoad(ref string) bool {
	switch t.entries[ref].Status {
	case Unknown, Failed:
		return true
	}
	return false
}

// MarkPending records that a load for ref is in flight.
func (t *Table) MarkPending(ref string) {
	t.entries[ref] = Entry{Status: Pending}
}

// Complete records the result of a load: Ready with info when err is nil, Failed otherwise.
func (t *Table) Complete(ref string, info Info, err error) Entry {
	e := Entry{Status: Ready, Info: info}
	if err != nil {
		e = Entry{Status: Failed, Err: err}
	}
	t.entries[ref] = e
	return e
}
