package arbiter

import (
	"testing"
	"time"

	"github.com/friendsincode/playgate/internal/sabnzbd"
)

func boolPtr(b bool) *bool { return &b }

func running() sabnzbd.QueueState {
	return sabnzbd.QueueState{Paused: boolPtr(false), SpeedLimitPct: 100}
}

func paused() sabnzbd.QueueState {
	return sabnzbd.QueueState{Paused: boolPtr(true), SpeedLimitPct: 100}
}

func unknown() sabnzbd.QueueState {
	return sabnzbd.FailureState()
}

func TestActivePlaybackPausesRunningQueue(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	d := e.Decide(true, running())
	if d.Action != ActionPause {
		t.Fatalf("expected pause, got %s", d.Action)
	}
	if s := e.Snapshot(); s.IdleAccumSeconds != 0 {
		t.Fatalf("active tick must reset idle accumulator, got %d", s.IdleAccumSeconds)
	}
	if e.Snapshot().LastCommanded != CommandedPaused {
		t.Fatal("pause must be remembered as last commanded state")
	}
}

func TestActivePlaybackAlreadyPausedEmitsNothing(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	if d := e.Decide(true, paused()); d.Action != ActionNone {
		t.Fatalf("known-paused queue must not be re-paused, got %s", d.Action)
	}
}

func TestActivePlaybackUnknownQueuePausesOnce(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	// First tick: unknown queue state, no prior command, pause fires.
	if d := e.Decide(true, unknown()); d.Action != ActionPause {
		t.Fatalf("unknown queue without prior pause must pause, got %s", d.Action)
	}
	// Second tick: still unknown, but we already commanded pause.
	if d := e.Decide(true, unknown()); d.Action != ActionNone {
		t.Fatalf("unknown queue after our own pause must stay quiet, got %s", d.Action)
	}
}

func TestActivePlaybackUnknownQueueRepausesAfterResume(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	// Reach the resumed state first.
	e.Decide(false, paused())
	if d := e.Decide(false, paused()); d.Action != ActionResume {
		t.Fatalf("expected resume after cooldown, got %s", d.Action)
	}
	// Playback starts while the queue state is unreadable: last command
	// was resume, so the pause must fire again.
	if d := e.Decide(true, unknown()); d.Action != ActionPause {
		t.Fatalf("unknown queue after resume must pause, got %s", d.Action)
	}
}

func TestOverrideSuppressesPause(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	q := running()
	q.SpeedLimitPct = 80

	d := e.Decide(true, q)
	if d.Action != ActionNone || !d.Override {
		t.Fatalf("manual throttle must suppress actuation, got %+v", d)
	}
	if e.Snapshot().IdleAccumSeconds != 0 {
		t.Fatal("override tick must reset idle accumulator")
	}
	if e.Snapshot().LastCommanded != CommandedUnknown {
		t.Fatal("override tick must not commit a commanded state")
	}
}

func TestOverrideRequiresActivePlayback(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	// Throttled but idle: the idle branch runs as usual.
	q := paused()
	q.SpeedLimitPct = 50

	e.Decide(false, q)
	if d := e.Decide(false, q); d.Action != ActionResume {
		t.Fatalf("throttle without playback must not block resume, got %s", d.Action)
	}
}

func TestIdleAccumulationGatesResume(t *testing.T) {
	e := NewEngine(30*time.Second, 90*time.Second)

	if d := e.Decide(false, paused()); d.Action != ActionNone || d.IdleSeconds != 30 {
		t.Fatalf("tick 1: %+v", d)
	}
	if d := e.Decide(false, paused()); d.Action != ActionNone || d.IdleSeconds != 60 {
		t.Fatalf("tick 2: %+v", d)
	}
	d := e.Decide(false, paused())
	if d.Action != ActionResume || d.IdleSeconds != 90 {
		t.Fatalf("tick 3 must resume at threshold: %+v", d)
	}
	if e.Snapshot().LastCommanded != CommandedRunning {
		t.Fatal("resume must be remembered as last commanded state")
	}
}

func TestResumeDoesNotResetAccumulator(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	e.Decide(false, paused())
	e.Decide(false, paused()) // resume fires here
	if s := e.Snapshot(); s.IdleAccumSeconds < 60 {
		t.Fatalf("accumulator must stay saturated after resume, got %d", s.IdleAccumSeconds)
	}

	// Queue now confirmed running: no more commands.
	if d := e.Decide(false, running()); d.Action != ActionNone {
		t.Fatalf("confirmed-running queue must stay quiet, got %s", d.Action)
	}
}

func TestResumeRefiresWhileQueueUnknown(t *testing.T) {
	e := NewEngine(30*time.Second, 60*time.Second)

	e.Decide(false, unknown())
	if d := e.Decide(false, unknown()); d.Action != ActionResume {
		t.Fatalf("expected first resume, got %s", d.Action)
	}
	// Downstream still unreadable: resume re-fires to self-heal, matching
	// the asymmetric unknown handling of the pause branch.
	if d := e.Decide(false, unknown()); d.Action != ActionResume {
		t.Fatalf("unknown queue past cooldown must keep resuming, got %s", d.Action)
	}
}

func TestActivityResetsAccumulatorMidCooldown(t *testing.T) {
	e := NewEngine(30*time.Second, 90*time.Second)

	e.Decide(false, paused())
	e.Decide(false, paused())
	e.Decide(true, paused()) // playback returns before threshold
	if s := e.Snapshot(); s.IdleAccumSeconds != 0 {
		t.Fatalf("active tick must reset the accumulator, got %d", s.IdleAccumSeconds)
	}
	if d := e.Decide(false, paused()); d.Action != ActionNone || d.IdleSeconds != 30 {
		t.Fatalf("cooldown must restart from zero: %+v", d)
	}
}

func TestScenarioPauseThenResumeSequence(t *testing.T) {
	// interval=30s cooldown=60s, activity [true false false false],
	// queue starts running and reflects our commands one tick later.
	e := NewEngine(30*time.Second, 60*time.Second)

	if d := e.Decide(true, running()); d.Action != ActionPause {
		t.Fatalf("tick 1: expected pause, got %s", d.Action)
	}
	if d := e.Decide(false, paused()); d.Action != ActionNone || d.IdleSeconds != 30 {
		t.Fatalf("tick 2: %+v", d)
	}
	if d := e.Decide(false, paused()); d.Action != ActionResume || d.IdleSeconds != 60 {
		t.Fatalf("tick 3: expected resume at 60s, got %+v", d)
	}
	if d := e.Decide(false, running()); d.Action != ActionNone {
		t.Fatalf("tick 4: queue confirmed running, expected no action, got %s", d.Action)
	}
}

func TestUpstreamOutageStillResumes(t *testing.T) {
	// Jellyfin failing every tick reads as inactive, so the cooldown
	// elapses and resume fires regardless of the downstream's readability.
	e := NewEngine(30*time.Second, 60*time.Second)

	e.Decide(false, unknown())
	if d := e.Decide(false, unknown()); d.Action != ActionResume {
		t.Fatalf("expected resume despite unknown downstream, got %s", d.Action)
	}
}
