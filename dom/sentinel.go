package dom

// Sentinel marks a kind of field absence in materialized records. Sentinels
// compare by identity; only the two package values below exist.
type Sentinel struct{ name string }

func (s *Sentinel) String() string { return s.name }

var (
	// NotLoaded marks a field that was never fetched. Projection omits the
	// field from the output entirely.
	NotLoaded = &Sentinel{"not_loaded"}

	// Forbidden marks a field the caller may not read. Projection emits an
	// explicit null for it.
	Forbidden = &Sentinel{"forbidden"}
)
