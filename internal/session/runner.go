package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-arena/internal/answer"
)

const sinkTimeout = 5 * time.Second

// ErrClosed is returned for player actions sent after the runner stopped.
var ErrClosed = errors.New("session runner stopped")

// Sink receives finalized results. It is the persistence collaborator; a
// failing sink never changes the result.
type Sink interface {
	SaveResult(ctx context.Context, result Result) error
}

// Hooks observe a running session. They run on the runner goroutine and
// must not block.
type Hooks struct {
	OnState    func(State)
	OnAnswer   func(answer.QuestionResult)
	OnEdgeCase func(EdgeCaseEvent)
	OnFinalize func(Result)
	OnDiscard  func(State)
}

// ChainHooks returns hooks that call each of hs in order.
func ChainHooks(hs ...Hooks) Hooks {
	return Hooks{
		OnState: func(s State) {
			for _, h := range hs {
				if h.OnState != nil {
					h.OnState(s)
				}
			}
		},
		OnAnswer: func(r answer.QuestionResult) {
			for _, h := range hs {
				if h.OnAnswer != nil {
					h.OnAnswer(r)
				}
			}
		},
		OnEdgeCase: func(e EdgeCaseEvent) {
			for _, h := range hs {
				if h.OnEdgeCase != nil {
					h.OnEdgeCase(e)
				}
			}
		},
		OnFinalize: func(r Result) {
			for _, h := range hs {
				if h.OnFinalize != nil {
					h.OnFinalize(r)
				}
			}
		},
		OnDiscard: func(s State) {
			for _, h := range hs {
				if h.OnDiscard != nil {
					h.OnDiscard(s)
				}
			}
		},
	}
}

// RunnerConfig holds dependencies for a Runner.
type RunnerConfig struct {
	Config       Config
	SessionID    string // generated when empty
	PlayerID     string
	SessionCount int
	Clock        Clock // SystemClock when nil
	Rand         Rand  // seeded from the session ID when nil
	Sink         Sink
	Hooks        Hooks
}

type command struct {
	ev    Event
	reply chan commandReply
}

type commandReply struct {
	state State
	err   error
}

// Runner drives one session on a single goroutine. Clock ticks and player
// actions are applied strictly one at a time.
type Runner struct {
	id        string
	cfg       Config
	clock     Clock
	rng       Rand
	sink      Sink
	hooks     Hooks
	commands  chan command
	done      chan struct{}
	runOnce   sync.Once
	startedAt time.Time

	mu     sync.RWMutex
	state  State
	result *Result
}

// NewRunner validates the configuration and prepares a session in its intro.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = seededRand(id)
	}

	return &Runner{
		id:       id,
		cfg:      cfg.Config,
		clock:    clock,
		rng:      rng,
		sink:     cfg.Sink,
		hooks:    cfg.Hooks,
		commands: make(chan command),
		done:     make(chan struct{}),
		state:    NewState(id, cfg.PlayerID, cfg.SessionCount),
	}, nil
}

// ID returns the session ID.
func (r *Runner) ID() string {
	return r.id
}

// Snapshot returns the latest state.
func (r *Runner) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.clone()
}

// Done is closed once the session is finalized or discarded.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Run starts the session and blocks until it is finalized, returning the
// result. If ctx is cancelled first the session is discarded and Run returns
// ctx.Err() with no result. Run may only be called once.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := false
	r.runOnce.Do(func() { started = true })
	if !started {
		return nil, errors.New("session runner already started")
	}
	defer close(r.done)

	r.startedAt = r.clock.Now()
	if err := r.apply(Start{}); err != nil {
		return nil, err
	}
	slog.Info("session started",
		"session_id", r.ID(),
		"player_id", r.Snapshot().PlayerID,
		"competency_id", r.cfg.CompetencyID,
	)

	ticker := r.clock.NewTicker(r.cfg.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = r.apply(Cancel{})
			slog.Info("session discarded", "session_id", r.ID(), "reason", ctx.Err())
			if r.hooks.OnDiscard != nil {
				r.hooks.OnDiscard(r.Snapshot())
			}
			return nil, ctx.Err()

		case <-ticker.C():
			if err := r.apply(Tick{Elapsed: r.elapsed()}); err != nil {
				slog.Warn("tick rejected", "session_id", r.ID(), "error", err)
			}

		case cmd := <-r.commands:
			if s, ok := cmd.ev.(Submit); ok && s.Elapsed == 0 {
				cmd.ev = Submit{Elapsed: r.elapsed()}
			}
			err := r.apply(cmd.ev)
			cmd.reply <- commandReply{state: r.Snapshot(), err: err}
		}

		if res := r.finishedResult(); res != nil {
			r.persist(ctx, *res)
			return res, nil
		}
	}
}

// Answer submits a player answer and returns its verdict.
func (r *Runner) Answer(ctx context.Context, questionID, text string) (answer.QuestionResult, error) {
	st, err := r.send(ctx, Answer{QuestionID: questionID, Text: text})
	if err != nil {
		return answer.QuestionResult{}, err
	}
	return st.Answers[questionID], nil
}

// RespondEdgeCase records the player's reaction to the edge case.
func (r *Runner) RespondEdgeCase(ctx context.Context, action string) (State, error) {
	return r.send(ctx, EdgeCaseResponse{Action: action})
}

// Resume returns from the edge-case interstitial to play.
func (r *Runner) Resume(ctx context.Context) (State, error) {
	return r.send(ctx, Resume{})
}

// Submit ends the session early. The result is returned by Run.
func (r *Runner) Submit(ctx context.Context) (State, error) {
	return r.send(ctx, Submit{})
}

func (r *Runner) send(ctx context.Context, ev Event) (State, error) {
	cmd := command{ev: ev, reply: make(chan commandReply, 1)}
	select {
	case r.commands <- cmd:
	case <-r.done:
		return r.Snapshot(), ErrClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	rep := <-cmd.reply
	return rep.state, rep.err
}

// apply runs one event through the state machine and fires hooks for what
// changed.
func (r *Runner) apply(ev Event) error {
	r.mu.RLock()
	prev := r.state
	r.mu.RUnlock()

	next, err := Apply(r.cfg, prev, ev, r.rng)
	if err != nil {
		return err
	}

	if next.Result != nil && prev.Result == nil {
		next.Result.StartedAt = r.startedAt
		next.Result.FinishedAt = r.startedAt.Add(next.Elapsed)
	}

	r.mu.Lock()
	r.state = next
	r.mu.Unlock()

	if a, ok := ev.(Answer); ok && r.hooks.OnAnswer != nil {
		r.hooks.OnAnswer(next.Answers[a.QuestionID])
	}
	if prev.EdgeCase == nil && next.EdgeCase != nil {
		slog.Info("edge case triggered",
			"session_id", next.SessionID,
			"elapsed", next.Elapsed,
			"interstitial", next.Status == StatusInterstitial,
		)
		if r.hooks.OnEdgeCase != nil {
			r.hooks.OnEdgeCase(*next.EdgeCase)
		}
	}
	if r.hooks.OnState != nil {
		r.hooks.OnState(next.clone())
	}
	return nil
}

func (r *Runner) finishedResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status != StatusFinalized || r.result != nil {
		return nil
	}
	res := *r.state.Result
	r.result = &res
	return &res
}

// persist hands the result to the sink. Storage runs after finalization and
// its failure is only logged.
func (r *Runner) persist(ctx context.Context, res Result) {
	slog.Info("session finalized",
		"session_id", res.SessionID,
		"level", res.Level.String(),
		"accuracy", res.Metrics.Accuracy,
		"elapsed_seconds", res.Metrics.ElapsedSeconds,
		"timed_out", res.Metrics.TimedOut,
	)
	if r.hooks.OnFinalize != nil {
		r.hooks.OnFinalize(res)
	}
	if r.sink == nil {
		return
	}
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if err := r.sink.SaveResult(sinkCtx, res); err != nil {
		slog.Error("failed to save session result", "session_id", res.SessionID, "error", err)
	}
}

func (r *Runner) elapsed() time.Duration {
	return r.clock.Now().Sub(r.startedAt)
}

// seededRand derives a deterministic noise source from the session ID.
func seededRand(id string) Rand {
	u, err := uuid.Parse(id)
	if err != nil {
		u = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	}
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(u[i])
		lo = lo<<8 | uint64(u[i+8])
	}
	return rand.New(rand.NewPCG(hi, lo))
}
