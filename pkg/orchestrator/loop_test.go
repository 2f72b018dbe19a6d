package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/brain"
	"github.com/teslashibe/go-g1/pkg/ears"
	"github.com/teslashibe/go-g1/pkg/idle"
	"github.com/teslashibe/go-g1/pkg/interrupt"
	"github.com/teslashibe/go-g1/pkg/journal"
	"github.com/teslashibe/go-g1/pkg/llm"
	"github.com/teslashibe/go-g1/pkg/robot"
	"github.com/teslashibe/go-g1/pkg/speech"
)

type thinkerFunc func(ctx context.Context, text string) brain.Thought

func (f thinkerFunc) Think(ctx context.Context, text string) brain.Thought { return f(ctx, text) }

type countingThinker struct {
	mu    sync.Mutex
	texts []string
	out   brain.Thought
}

func (c *countingThinker) Think(ctx context.Context, text string) brain.Thought {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return c.out
}

func (c *countingThinker) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

type recorder struct {
	mu    sync.Mutex
	turns []journal.Turn
}

func (r *recorder) Record(ctx context.Context, t journal.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
	return nil
}

type fixture struct {
	loop      *Loop
	transport *robot.Mock
	speech    *speech.Queue
	ears      *ears.Buffer
	sig       *interrupt.Signal
}

func newFixture(t *testing.T, th Thinker, sc *idle.Scheduler, opts ...func(*Config)) *fixture {
	t.Helper()
	sig := interrupt.New(5 * time.Millisecond)
	tr := robot.NewMock()
	q := speech.New(tr, sig, speech.WithEstimate(0, 0), speech.WithLogger(log.Discard()))
	buf := ears.NewBuffer(8)
	cfg := Config{
		InterruptKeywords: []string{"停下", "stop"},
		Logger:            log.Discard(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	l, err := New(cfg, Deps{
		Shared:    Shared{Interrupt: sig, Idle: sc},
		Transport: tr,
		Speech:    q,
		Thinker:   th,
		Ears:      buf,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.pool.Close)
	return &fixture{loop: l, transport: tr, speech: q, ears: buf, sig: sig}
}

func (f *fixture) runSpeech(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.speech.Run(ctx)
}

func waitQuiet(t *testing.T, q *speech.Queue) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for q.IsSpeaking() {
		if time.Now().After(deadline) {
			t.Fatal("speech queue never drained")
		}
		time.Sleep(time.Millisecond)
	}
}

func callsTo(m *robot.Mock, method string) []robot.MockCall {
	var out []robot.MockCall
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Error("expected error without deps")
	}
}

func TestCommandBeforeUtterance(t *testing.T) {
	th := &countingThinker{out: brain.Thought{Reply: "嗨"}}
	f := newFixture(t, th, nil)
	f.runSpeech(t)

	f.ears.Push("你好")
	if err := f.loop.Submit(Speak("hello")); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	f.loop.Tick(ctx)
	if n := len(th.Texts()); n != 0 {
		t.Fatalf("utterance handled in the command's tick (%d thoughts)", n)
	}
	if f.ears.Len() != 1 {
		t.Fatalf("utterance should still be buffered, len=%d", f.ears.Len())
	}

	waitQuiet(t, f.speech)
	f.loop.Tick(ctx)
	if got := th.Texts(); len(got) != 1 || got[0] != "你好" {
		t.Fatalf("thoughts: %q", got)
	}

	waitQuiet(t, f.speech)
	spoken := callsTo(f.transport, "Speak")
	if len(spoken) != 2 || spoken[0].Text != "hello" || spoken[1].Text != "嗨" {
		t.Errorf("spoken: %+v", spoken)
	}
}

func TestCommandClearsBufferWhileSpeaking(t *testing.T) {
	th := &countingThinker{}
	f := newFixture(t, th, nil)

	// Without a worker the item stays queued, so the robot counts as speaking.
	f.speech.Enqueue("我正在说话")
	f.ears.Push("我正在说话")
	_ = f.loop.Submit(Speak("下一句"))

	f.loop.Tick(context.Background())
	if f.ears.Len() != 0 {
		t.Errorf("echo left in buffer: %d", f.ears.Len())
	}
}

func TestInterruptKeyword(t *testing.T) {
	th := &countingThinker{out: brain.Thought{Reply: "不该说"}}
	f := newFixture(t, th, nil)

	f.ears.Push("快停下")
	f.loop.Tick(context.Background())

	if !f.sig.IsSet() {
		t.Error("interrupt not raised")
	}
	if f.speech.Len() != 0 {
		t.Errorf("speech queue len %d", f.speech.Len())
	}
	if n := len(th.Texts()); n != 0 {
		t.Errorf("thinker ran %d times", n)
	}
	if len(callsTo(f.transport, "Stop")) != 1 {
		t.Error("executor stop not sent")
	}
	acts := callsTo(f.transport, "Action")
	if len(acts) != 1 || acts[0].Action.Group != actions.GroupLoco || acts[0].Action.ID == nil || *acts[0].Action.ID != actions.LocoDamp {
		t.Errorf("damp not issued: %+v", acts)
	}
}

func TestSelfEchoDropped(t *testing.T) {
	th := &countingThinker{}
	f := newFixture(t, th, nil)

	f.speech.Enqueue("我是机器人")
	f.ears.Push("我是机器人")
	f.loop.Tick(context.Background())

	if n := len(th.Texts()); n != 0 {
		t.Errorf("echo reached the thinker")
	}
	if f.ears.Len() != 0 {
		t.Error("echo not consumed")
	}
}

func TestUnknownClassificationStillSpeaks(t *testing.T) {
	model := &llm.Mock{CompleteFunc: func(ctx context.Context, msgs []llm.Message, temp float64) (string, error) {
		if temp == brain.ClassifyTemperature {
			return "42", nil
		}
		return "我听到了", nil
	}}
	th := brain.New(model, brain.WithLogger(log.Discard()))
	f := newFixture(t, th, nil)
	f.runSpeech(t)

	f.ears.Push("飞起来")
	f.loop.Tick(context.Background())
	waitQuiet(t, f.speech)
	f.loop.pool.Close()

	if spoken := callsTo(f.transport, "Speak"); len(spoken) != 1 || spoken[0].Text != "我听到了" {
		t.Errorf("spoken: %+v", spoken)
	}
	if acts := callsTo(f.transport, "Action"); len(acts) != 0 {
		t.Errorf("unexpected actions: %+v", acts)
	}
}

func TestUnknownActionIDDoesNotStopLoop(t *testing.T) {
	f := newFixture(t, &countingThinker{}, nil)
	f.runSpeech(t)

	var failures atomic.Int32
	f.transport.ActionFunc = func(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error) {
		r, err := actions.Resolve(desc)
		if errors.Is(err, actions.ErrUnknownID) {
			failures.Add(1)
		}
		return r, err
	}

	_ = f.loop.Submit(Act(actions.ByID(actions.GroupArm, 99)))
	_ = f.loop.Submit(Speak("还在"))
	ctx := context.Background()
	f.loop.Tick(ctx)
	f.loop.Tick(ctx)
	waitQuiet(t, f.speech)
	f.loop.pool.Close()

	if failures.Load() != 1 {
		t.Errorf("unknown id failures: %d", failures.Load())
	}
	if spoken := callsTo(f.transport, "Speak"); len(spoken) != 1 {
		t.Errorf("spoken: %+v", spoken)
	}
}

func TestThoughtDispatchesIntentAndRecords(t *testing.T) {
	in := actions.DefaultCatalog[1]
	th := &countingThinker{out: brain.Thought{Intent: &in, Reply: "来握手"}}
	f := newFixture(t, th, nil)
	rec := &recorder{}
	f.loop.deps.Journal = rec

	f.ears.Push("握个手")
	f.loop.Tick(context.Background())
	f.loop.pool.Close()

	acts := callsTo(f.transport, "Action")
	if len(acts) != 1 || acts[0].Action.Name != "shake hand" {
		t.Errorf("actions: %+v", acts)
	}
	if f.speech.Len() != 1 {
		t.Errorf("reply not queued")
	}
	if len(rec.turns) != 1 || rec.turns[0].User != "握个手" || rec.turns[0].ActionName != "shake hand" {
		t.Errorf("journal: %+v", rec.turns)
	}
}

func TestStreamedReplyNotRequeued(t *testing.T) {
	th := &countingThinker{out: brain.Thought{Reply: "已经说过了", Streamed: true}}
	f := newFixture(t, th, nil)

	f.ears.Push("你好")
	f.loop.Tick(context.Background())
	if f.speech.Len() != 0 {
		t.Error("streamed reply was enqueued again")
	}
}

func TestInterruptWhileThinkingDropsResult(t *testing.T) {
	var f *fixture
	th := thinkerFunc(func(ctx context.Context, text string) brain.Thought {
		f.speech.StopAll()
		in := actions.DefaultCatalog[5]
		return brain.Thought{Intent: &in, Reply: "太晚了"}
	})
	f = newFixture(t, th, nil)

	f.ears.Push("鼓掌")
	f.loop.Tick(context.Background())
	f.loop.pool.Close()

	if f.speech.Len() != 0 || len(callsTo(f.transport, "Action")) != 0 {
		t.Error("result of an interrupted thought was used")
	}
}

func TestAcceptedWorkClearsLatch(t *testing.T) {
	f := newFixture(t, &countingThinker{}, nil)
	f.sig.Raise()
	_ = f.loop.Submit(Speak("继续"))
	f.loop.Tick(context.Background())
	if f.sig.IsSet() {
		t.Error("latch still set after accepted command")
	}
}

func TestDirectorModeSkipsAutonomy(t *testing.T) {
	th := &countingThinker{}
	f := newFixture(t, th, nil)
	f.loop.SetMode(ModeDirector)

	f.ears.Push("你好")
	f.loop.Tick(context.Background())
	if len(th.Texts()) != 0 {
		t.Error("utterance processed in director mode")
	}

	_ = f.loop.Submit(Speak("导演说"))
	f.loop.Tick(context.Background())
	if f.speech.Len() != 1 {
		t.Error("command ignored in director mode")
	}
	if st := f.loop.Status(); st.Mode != ModeDirector || !st.Speaking {
		t.Errorf("status: %+v", st)
	}
}

type idleFunc func(ctx context.Context) brain.Suggestion

func (f idleFunc) Idle(ctx context.Context) brain.Suggestion { return f(ctx) }

func TestIdleFires(t *testing.T) {
	in := actions.DefaultCatalog[15]
	sc := idle.New(idleFunc(func(context.Context) brain.Suggestion {
		return brain.Suggestion{Text: "无聊", Intent: &in}
	}), idle.WithBounds(time.Nanosecond, time.Nanosecond), idle.WithLogger(log.Discard()))
	f := newFixture(t, &countingThinker{}, sc)
	rec := &recorder{}
	f.loop.deps.Journal = rec

	time.Sleep(time.Millisecond)
	f.loop.Tick(context.Background())
	f.loop.pool.Close()

	if f.speech.Len() != 1 {
		t.Error("idle text not queued")
	}
	if acts := callsTo(f.transport, "Action"); len(acts) != 1 || acts[0].Action.Name != "move rotate" {
		t.Errorf("actions: %+v", acts)
	}
	if len(rec.turns) != 1 || rec.turns[0].Source != journal.SourceIdle {
		t.Errorf("journal: %+v", rec.turns)
	}
}

func TestIdleNotDueAfterCommand(t *testing.T) {
	var fired atomic.Int32
	sc := idle.New(idleFunc(func(context.Context) brain.Suggestion {
		fired.Add(1)
		return brain.Suggestion{}
	}), idle.WithBounds(time.Hour, time.Hour), idle.WithLogger(log.Discard()))
	f := newFixture(t, &countingThinker{}, sc)

	for i := 0; i < 5; i++ {
		f.loop.Tick(context.Background())
	}
	if fired.Load() != 0 {
		t.Error("idle fired before its threshold")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	th := thinkerFunc(func(ctx context.Context, text string) brain.Thought {
		panic("boom")
	})
	f := newFixture(t, th, nil)
	f.ears.Push("你好")
	f.loop.Tick(context.Background())

	_ = f.loop.Submit(Speak("还活着"))
	f.loop.Tick(context.Background())
	if f.speech.Len() != 1 {
		t.Error("loop did not continue after panic")
	}
}

func TestSubmit(t *testing.T) {
	sig := interrupt.New(0)
	tr := robot.NewMock()
	l, err := New(Config{CommandQueue: 1, Logger: log.Discard()}, Deps{
		Shared:    Shared{Interrupt: sig},
		Transport: tr,
		Speech:    speech.New(tr, sig, speech.WithLogger(log.Discard())),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer l.pool.Close()

	if err := l.Submit(Speak("  ")); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty: %v", err)
	}
	if err := l.Submit(Speak("a")); err != nil {
		t.Fatal(err)
	}
	if err := l.Submit(Speak("b")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("full: %v", err)
	}
	if st := l.Status(); st.Pending != 1 {
		t.Errorf("pending %d", st.Pending)
	}
}

func TestPlayUploadsRobotFormat(t *testing.T) {
	f := newFixture(t, &countingThinker{}, nil)
	var (
		mu   sync.Mutex
		name string
		body []byte
	)
	f.transport.UploadFunc = func(ctx context.Context, n string, wav []byte) error {
		mu.Lock()
		defer mu.Unlock()
		name, body = n, wav
		return nil
	}

	src := &audioio.WAV{SampleRate: 48000, Channels: 2, BitsPerSample: 16, Data: make([]byte, 48000*4/10)}
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, audioio.Encode(src), 0o644); err != nil {
		t.Fatal(err)
	}

	_ = f.loop.Submit(Play(path))
	f.loop.Tick(context.Background())
	f.loop.pool.Close()

	mu.Lock()
	defer mu.Unlock()
	if name != "clip.wav" {
		t.Errorf("name %q", name)
	}
	w, err := audioio.ReadWAV(bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if !w.IsRobotFormat() {
		t.Errorf("uploaded %d Hz x%d", w.SampleRate, w.Channels)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Director "); err != nil || m != ModeDirector {
		t.Errorf("got %v %v", m, err)
	}
	if _, err := ParseMode("manual"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("got %v", err)
	}
}

func TestPoolDropsWhenFull(t *testing.T) {
	p := NewPool(1, 1, log.Discard())
	release := make(chan struct{})
	started := make(chan struct{})
	p.Submit("block", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started
	if !p.Submit("queued", func(ctx context.Context) {}) {
		t.Fatal("second job should queue")
	}
	if p.Submit("dropped", func(ctx context.Context) {}) {
		t.Error("third job should be dropped")
	}
	close(release)
	p.Close()
	if p.Submit("late", func(ctx context.Context) {}) {
		t.Error("closed pool accepted a job")
	}
}

func TestStopAllCancelsQueuedActions(t *testing.T) {
	f := newFixture(t, nil, nil, func(c *Config) { c.ActionWorkers = 1 })

	started := make(chan struct{})
	release := make(chan struct{})
	f.transport.ActionFunc = func(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error) {
		if desc.Name == "clap" {
			close(started)
			<-release
		}
		return actions.Resolved{Group: desc.Group, Name: desc.Name}, nil
	}

	ctx := context.Background()
	_ = f.loop.Submit(Act(actions.ByName(actions.GroupArm, "clap")))
	f.loop.Tick(ctx)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first action never started")
	}

	_ = f.loop.Submit(Act(actions.ByName(actions.GroupArm, "hug")))
	f.loop.Tick(ctx)

	f.loop.StopAll(ctx)
	close(release)
	f.loop.pool.Close()

	damped := false
	for _, c := range callsTo(f.transport, "Action") {
		if c.Action.Name == "hug" {
			t.Errorf("queued action ran after stop: %+v", c)
		}
		if c.Action.Group == actions.GroupLoco && c.Action.ID != nil && *c.Action.ID == actions.LocoDamp {
			damped = true
		}
	}
	if !damped {
		t.Error("damp not issued")
	}
}

func TestStopAllDropsPendingInput(t *testing.T) {
	th := &countingThinker{out: brain.Thought{Reply: "不该说"}}
	f := newFixture(t, th, nil)

	f.speech.Enqueue("我正在说话")
	f.ears.Push("帮我拿杯水")
	_ = f.loop.Submit(Speak("下一句"))

	ctx := context.Background()
	f.loop.StopAll(ctx)
	if f.ears.Len() != 0 {
		t.Errorf("recognition buffer len %d after stop", f.ears.Len())
	}
	if st := f.loop.Status(); st.Pending != 0 {
		t.Errorf("pending %d after stop", st.Pending)
	}

	f.loop.Tick(ctx)
	if n := len(th.Texts()); n != 0 {
		t.Errorf("thinker ran %d times after stop", n)
	}
	if len(callsTo(f.transport, "Speak")) != 0 {
		t.Error("dropped command was spoken")
	}
}

func wakeGated(window time.Duration) func(*Config) {
	return func(c *Config) {
		c.WakeWords = []string{"你好", "guixiaozhi"}
		c.WakeWindow = window
	}
}

func TestWakeWordGatesConversation(t *testing.T) {
	th := &countingThinker{out: brain.Thought{Reply: "好的"}}
	f := newFixture(t, th, nil, wakeGated(time.Minute))
	f.runSpeech(t)
	ctx := context.Background()

	f.ears.Push("今天天气怎么样")
	f.loop.Tick(ctx)
	if n := len(th.Texts()); n != 0 {
		t.Fatalf("thinker ran %d times before wake word", n)
	}

	f.ears.Push("你好")
	f.loop.Tick(ctx)
	if !f.loop.Status().Armed {
		t.Fatal("wake word did not arm the loop")
	}
	if n := len(th.Texts()); n != 0 {
		t.Fatalf("wake word reached the thinker (%d)", n)
	}
	waitQuiet(t, f.speech)
	spoken := callsTo(f.transport, "Speak")
	if len(spoken) != 1 || spoken[0].Text != DefaultWakeAck {
		t.Fatalf("ack: %+v", spoken)
	}

	f.ears.Push("今天天气怎么样")
	f.loop.Tick(ctx)
	if got := th.Texts(); len(got) != 1 || got[0] != "今天天气怎么样" {
		t.Fatalf("thoughts: %q", got)
	}
	if f.loop.Status().Armed {
		t.Error("loop still armed after handling a request")
	}

	waitQuiet(t, f.speech)
	f.ears.Push("再说一遍")
	f.loop.Tick(ctx)
	if n := len(th.Texts()); n != 1 {
		t.Errorf("second request passed the gate (%d thoughts)", n)
	}
}

func TestWakeWindowExpires(t *testing.T) {
	th := &countingThinker{}
	f := newFixture(t, th, nil, wakeGated(20*time.Millisecond))
	f.runSpeech(t)
	ctx := context.Background()

	f.ears.Push("Guixiaozhi")
	f.loop.Tick(ctx)
	waitQuiet(t, f.speech)
	time.Sleep(30 * time.Millisecond)

	if f.loop.Status().Armed {
		t.Fatal("still armed after the window")
	}
	f.ears.Push("跳个舞")
	f.loop.Tick(ctx)
	if n := len(th.Texts()); n != 0 {
		t.Errorf("request after expiry reached the thinker (%d)", n)
	}
}

func TestStopAllDisarms(t *testing.T) {
	th := &countingThinker{}
	f := newFixture(t, th, nil, wakeGated(time.Minute))
	f.runSpeech(t)
	ctx := context.Background()

	f.ears.Push("你好")
	f.loop.Tick(ctx)
	waitQuiet(t, f.speech)
	f.loop.StopAll(ctx)
	if f.loop.Status().Armed {
		t.Error("stop left the loop armed")
	}
}
