package lib

import (
	"math/rand"
	"sync"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixMilli())
}

// Sequence generates the unique identifiers attached to new messages.
// Next returns a value strictly greater than everything it returned before,
// Last returns the most recently issued value (0 before the first call).
type Sequence interface {
	Next() uint32
	Last() uint32
}

// UIDSequence is the default Sequence: a mutex-protected counter, safe to
// share between concurrent deliveries. Identifiers are never reused, even
// after the message they were assigned to is gone.
type UIDSequence struct {
	mutex sync.Mutex
	last  uint32
}

func NewUIDSequence() *UIDSequence {
	return &UIDSequence{}
}

func (s *UIDSequence) Next() uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.last++
	return s.last
}

func (s *UIDSequence) Last() uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.last
}

// NewUIDValidity picks the token identifying this incarnation of the UID
// namespace. It only needs to differ between two runs of the process.
func NewUIDValidity() uint32 {
	validity := rand.Uint32()
	for validity == 0 {
		validity = rand.Uint32()
	}
	return validity
}
