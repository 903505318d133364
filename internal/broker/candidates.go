package broker

// CandidateSet es la colección ordenada y sin duplicados de brokers conocidos.
// Se construye una vez al iniciar el proceso y no se modifica después.
type CandidateSet struct {
	items   []Candidate
	byAppID map[string][]int
	seen    map[string]struct{}
}

// Candidate es una entrada del CandidateSet.
type Candidate struct {
	Identity

	// Debug marca builds de prueba; solo son confiables si trust_debug_brokers está activo.
	Debug bool
}

// NewCandidateSet preserva el orden de llegada y descarta duplicados
// (misma app + mismo fingerprint).
func NewCandidateSet(candidates ...Candidate) *CandidateSet {
	s := &CandidateSet{
		byAppID: make(map[string][]int),
		seen:    make(map[string]struct{}),
	}
	for _, c := range candidates {
		s.add(c)
	}
	return s
}

func (s *CandidateSet) add(c Candidate) {
	if c.IsZero() {
		return
	}
	if _, dup := s.seen[c.Key()]; dup {
		return
	}
	s.seen[c.Key()] = struct{}{}
	idx := len(s.items)
	s.items = append(s.items, c)
	norm := NormalizeAppID(c.ApplicationID)
	s.byAppID[norm] = append(s.byAppID[norm], idx)
}

// Len cantidad de candidatas.
func (s *CandidateSet) Len() int { return len(s.items) }

// All devuelve una copia en el orden configurado.
func (s *CandidateSet) All() []Candidate {
	out := make([]Candidate, len(s.items))
	copy(out, s.items)
	return out
}

// Identities devuelve solo las identidades, en orden.
func (s *CandidateSet) Identities() []Identity {
	out := make([]Identity, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c.Identity)
	}
	return out
}

// Contains verifica pertenencia estructural.
func (s *CandidateSet) Contains(id Identity) bool {
	_, ok := s.seen[id.Key()]
	return ok
}

// Lookup devuelve las candidatas cuyo application id coincide (trim + case-insensitive).
// Una misma app puede figurar con varios fingerprints (release y debug).
func (s *CandidateSet) Lookup(appID string) []Candidate {
	idxs := s.byAppID[NormalizeAppID(appID)]
	out := make([]Candidate, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.items[i])
	}
	return out
}

// Production devuelve solo las candidatas no-debug.
func (s *CandidateSet) Production() []Candidate {
	var out []Candidate
	for _, c := range s.items {
		if !c.Debug {
			out = append(out, c)
		}
	}
	return out
}

// Filter devuelve un nuevo set sin las candidatas debug cuando trustDebug es false.
func (s *CandidateSet) Filter(trustDebug bool) *CandidateSet {
	if trustDebug {
		return NewCandidateSet(s.items...)
	}
	return NewCandidateSet(s.Production()...)
}
