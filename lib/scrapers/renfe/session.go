package renfe

// session holds the per-scrape mutable identifiers. A fresh session is
// cheap and avoids stale-token failures, so one is created per scrape
// and discarded with it, never reused across invocations.
type session struct {
	searchID        string
	batch           int
	token           string
	scriptSessionID string
}

func newSession() (*session, error) {
	id, err := newSearchID()
	if err != nil {
		return nil, err
	}
	return &session{searchID: id}, nil
}

// nextBatchID yields 0, 1, 2, ... with no repeats or gaps. Every
// encoded call consumes exactly one value; a batch id is never reused
// within a session.
func (s *session) nextBatchID() int {
	id := s.batch
	s.batch++
	return id
}
