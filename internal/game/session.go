package game

import (
	"sync"
	"time"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/types"
)

const mailboxSize = 64

// session is the per-game actor. Its goroutine is the single writer of the
// live state: client answers, bot answers, and timer deliveries all funnel
// through the mailbox, so mutations never race. The state blob is
// checkpointed to the live store after every mutation.
type session struct {
	id           string
	mode         types.GameMode
	state        *live.State
	participants []database.Participant
	handler      modeHandler

	mailbox chan func()
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	timers map[*time.Timer]struct{}

	// owned by the actor goroutine
	finished bool
}

func newSession(id string, mode types.GameMode, state *live.State, participants []database.Participant) *session {
	s := &session{
		id:           id,
		mode:         mode,
		state:        state,
		participants: participants,
		mailbox:      make(chan func(), mailboxSize),
		done:         make(chan struct{}),
		timers:       make(map[*time.Timer]struct{}),
	}
	go s.run()
	return s
}

func (s *session) run() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.mailbox:
			fn()
		}
	}
}

// post enqueues a mutation onto the actor. Posts to a closed session are
// dropped, which is what makes stray bot answers and late timers harmless.
func (s *session) post(fn func()) {
	select {
	case <-s.done:
	case s.mailbox <- fn:
	}
}

// later runs fn on the actor after d. The underlying timer is session-scoped:
// closing the session stops every pending delayed call.
func (s *session) later(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.post(fn)
	})
	s.timers[t] = struct{}{}
}

// close stops the actor and every pending delayed call
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		for t := range s.timers {
			t.Stop()
		}
		s.timers = nil
		s.mu.Unlock()
	})
}

// participant returns the participant with the given id, or nil
func (s *session) participant(id string) *database.Participant {
	for i := range s.participants {
		if s.participants[i].ID == id {
			return &s.participants[i]
		}
	}
	return nil
}

// humans returns the non-bot participants
func (s *session) humans() []database.Participant {
	var out []database.Participant
	for _, p := range s.participants {
		if !p.IsBot {
			out = append(out, p)
		}
	}
	return out
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
