package extract

// Set accumulates normalized addresses and remembers insertion order. The
// zero value is not usable; call NewSet.
type Set struct {
	items map[string]struct{}
	order []string
}

func NewSet() *Set {
	return &Set{items: make(map[string]struct{})}
}

// Add inserts email and reports whether it was new.
func (s *Set) Add(email string) bool {
	email = Normalize(email)
	if email == "" {
		return false
	}
	if _, ok := s.items[email]; ok {
		return false
	}
	s.items[email] = struct{}{}
	s.order = append(s.order, email)
	return true
}

// Merge adds every address and returns the ones that were not present before.
// Merging the same batch twice returns an empty delta the second time.
func (s *Set) Merge(emails []string) []string {
	var delta []string
	for _, e := range emails {
		if s.Add(e) {
			delta = append(delta, Normalize(e))
		}
	}
	return delta
}

func (s *Set) Contains(email string) bool {
	_, ok := s.items[Normalize(email)]
	return ok
}

func (s *Set) Len() int { return len(s.order) }

// Slice returns the addresses in insertion order.
func (s *Set) Slice() []string {
	return append([]string(nil), s.order...)
}
