package messenger

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/Iron-Ham/wormhole/internal/dispatch"
	"github.com/Iron-Ham/wormhole/internal/session"
	"github.com/Iron-Ham/wormhole/internal/signal"
	"github.com/Iron-Ham/wormhole/internal/testutil"
	"github.com/Iron-Ham/wormhole/internal/transport"
)

// newTestMessenger builds a file-backed messenger with an in-process bus and
// inline dispatch, so listeners run before PassMessage returns.
func newTestMessenger(t *testing.T, kind transport.Kind, opts ...Option) (*Messenger, *container.Resolver) {
	t.Helper()
	resolver, _ := testutil.SetupGroup(t, testutil.TestGroup)
	base := []Option{
		WithContainer(resolver),
		WithCenter(signal.NewBus()),
		WithDispatcher(dispatch.Inline),
	}
	m, err := New(Config{GroupIdentifier: testutil.TestGroup, Directory: "messenger", Kind: kind}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, resolver
}

func TestMessenger_PassAndRead(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	payload := map[string]any{"buttonTitle": "Today-One"}
	if got := m.PassMessage(payload, "button"); got != transport.OutcomePersisted {
		t.Fatalf("PassMessage() = %v, want persisted", got)
	}

	got, ok := m.MessageForIdentifier("button")
	if !ok {
		t.Fatal("MessageForIdentifier() reported absent")
	}
	if !reflect.DeepEqual(got, payload) {
		t.Errorf("MessageForIdentifier() = %#v, want %#v", got, payload)
	}
}

func TestMessenger_ListenerFires(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindCoordinatedFile)

	var got any
	m.ListenForMessage("button", func(payload any) { got = payload })

	m.PassMessage(map[string]any{"buttonTitle": "Go"}, "button")

	if !reflect.DeepEqual(got, map[string]any{"buttonTitle": "Go"}) {
		t.Errorf("listener received %#v", got)
	}
	if !m.IsListening("button") {
		t.Error("IsListening() should be true")
	}
}

func TestMessenger_LastListenerWins(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	var first, second int
	m.ListenForMessage("x", func(any) { first++ })
	m.ListenForMessage("x", func(any) { second++ })

	m.PassMessage("v", "x")
	m.PassMessage("v", "x")

	if first != 0 {
		t.Errorf("replaced listener fired %d times", first)
	}
	if second != 2 {
		t.Errorf("current listener fired %d times, want 2", second)
	}
}

func TestMessenger_StopListening(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	calls := 0
	m.ListenForMessage("x", func(any) { calls++ })
	m.StopListeningForMessage("x")
	m.PassMessage("v", "x")

	if calls != 0 {
		t.Errorf("listener fired %d times after StopListeningForMessage", calls)
	}
	if m.IsListening("x") {
		t.Error("IsListening() should be false")
	}

	// Stopping an identifier nobody listens to is a no-op.
	m.StopListeningForMessage("never")
	m.StopListeningForMessage("")
}

func TestMessenger_ListenersAreKeyedByIdentifier(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	var a, b int
	m.ListenForMessage("a", func(any) { a++ })
	m.ListenForMessage("b", func(any) { b++ })

	m.PassMessage("v", "a")

	if a != 1 || b != 0 {
		t.Errorf("a=%d b=%d, want only a to fire", a, b)
	}
}

func TestMessenger_EmptyIdentifier(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	m.ListenForMessage("", func(any) { t.Error("listener for empty identifier should never be registered") })
	if got := m.PassMessage("v", ""); got != transport.OutcomeFailed {
		t.Errorf("PassMessage with empty identifier = %v", got)
	}
	if _, ok := m.MessageForIdentifier(""); ok {
		t.Error("MessageForIdentifier(\"\") should be absent")
	}
	m.ClearMessageContents("")
}

func TestMessenger_NoSignalOnFailedWrite(t *testing.T) {
	bus := signal.NewBus()
	m, _ := newTestMessenger(t, transport.KindFile, WithCenter(bus))

	posted := 0
	bus.Observe("x", func(string) { posted++ })

	m.PassMessage(nil, "x")
	m.PassMessage(func() {}, "x")

	if posted != 0 {
		t.Errorf("failed writes posted %d signals", posted)
	}
}

func TestMessenger_Clear(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	m.PassMessage("a", "a")
	m.PassMessage("b", "b")

	m.ClearMessageContents("a")
	if _, ok := m.MessageForIdentifier("a"); ok {
		t.Error("cleared message should be absent")
	}
	if _, ok := m.MessageForIdentifier("b"); !ok {
		t.Error("other message should survive ClearMessageContents")
	}

	m.ClearAllMessageContents()
	if _, ok := m.MessageForIdentifier("b"); ok {
		t.Error("ClearAllMessageContents should remove every message")
	}
}

func TestMessenger_NotifyListenerDirect(t *testing.T) {
	m, _ := newTestMessenger(t, transport.KindFile)

	var got any
	m.ListenForMessage("pushed", func(payload any) { got = payload })

	m.NotifyListenerForMessage("pushed", "hello")
	if got != "hello" {
		t.Errorf("listener received %v", got)
	}

	got = nil
	m.NotifyListenerForMessage("pushed", nil)
	m.NotifyListenerForMessage("nobody", "x")
	if got != nil {
		t.Errorf("nil payload should not be delivered, got %v", got)
	}
}

func TestMessenger_ListenerRunsOnDispatcher(t *testing.T) {
	var dispatched atomic.Int32
	d := dispatch.Func(func(fn func()) {
		dispatched.Add(1)
		fn()
	})
	m, _ := newTestMessenger(t, transport.KindFile, WithDispatcher(d))

	m.ListenForMessage("x", func(any) {})
	m.PassMessage("v", "x")

	if dispatched.Load() != 1 {
		t.Errorf("dispatcher used %d times, want 1", dispatched.Load())
	}
}

func TestMessenger_ReplacedListenerNotCalledFromPendingDispatch(t *testing.T) {
	var pending []func()
	d := dispatch.Func(func(fn func()) { pending = append(pending, fn) })
	m, _ := newTestMessenger(t, transport.KindFile, WithDispatcher(d))

	var first, second int
	m.ListenForMessage("x", func(any) { first++ })
	m.PassMessage("v", "x")
	m.ListenForMessage("x", func(any) { second++ })

	for _, fn := range pending {
		fn()
	}
	if first != 0 {
		t.Errorf("replaced listener ran from a pending dispatch")
	}
	if second != 1 {
		t.Errorf("current listener ran %d times, want 1", second)
	}
}

func TestMessenger_CloseRemovesListeners(t *testing.T) {
	bus := signal.NewBus()
	m, _ := newTestMessenger(t, transport.KindFile, WithCenter(bus))

	m.ListenForMessage("a", func(any) {})
	m.ListenForMessage("b", func(any) {})
	if bus.SubscriptionCount() != 2 {
		t.Fatalf("SubscriptionCount() = %d, want 2", bus.SubscriptionCount())
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("Close should cancel every subscription, %d left", bus.SubscriptionCount())
	}

	m.ListenForMessage("c", func(any) {})
	if bus.SubscriptionCount() != 0 {
		t.Error("ListenForMessage after Close should be ignored")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMessenger_CloseFromListener(t *testing.T) {
	// A nil dispatcher gives the messenger its own queue.
	m, _ := newTestMessenger(t, transport.KindFile, WithDispatcher(nil))

	closed := make(chan error, 1)
	m.ListenForMessage("once", func(any) { closed <- m.Close() })
	m.PassMessage(map[string]any{"n": 1}, "once")

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close() from listener error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() called from a listener did not return")
	}
	if m.IsListening("once") {
		t.Error("listener should be removed after Close")
	}
}

func TestMessenger_SessionKindRequiresSession(t *testing.T) {
	resolver, _ := testutil.SetupGroup(t, testutil.TestGroup)
	_, err := New(Config{GroupIdentifier: testutil.TestGroup, Kind: transport.KindSessionMessage},
		WithContainer(resolver), WithCenter(signal.NewBus()))
	if err == nil {
		t.Fatal("New() with a session kind and no session should fail")
	}
}

func TestMessenger_SessionContextScenario(t *testing.T) {
	local, remote := session.Pair()
	defer local.Close()
	defer remote.Close()
	if err := local.Activate(); err != nil {
		t.Fatal(err)
	}

	m, _ := newTestMessenger(t, transport.KindSessionContext, WithSession(local))

	if got := m.PassMessage(map[string]any{"selectedCell": "Row 1"}, "selection"); got != transport.OutcomeQueued {
		t.Fatalf("PassMessage() = %v, want queued", got)
	}
	if _, ok := m.MessageForIdentifier("selection"); !ok {
		t.Fatal("context value should be readable")
	}

	m.ClearMessageContents("selection")
	if _, ok := m.MessageForIdentifier("selection"); ok {
		t.Error("MessageForIdentifier() after clear should be absent")
	}
	if _, ok := local.ApplicationContext()["selection"]; ok {
		t.Error("pushed context should no longer contain the key")
	}
}

func TestMessenger_SessionMessageUnreachable(t *testing.T) {
	local, remote := session.Pair()
	defer local.Close()
	defer remote.Close()
	_ = local.Activate()

	received := 0
	var mu sync.Mutex
	remote.SetDelegate(&countingDelegate{mu: &mu, n: &received})
	_ = remote.Activate()
	local.SetReachable(false)

	m, _ := newTestMessenger(t, transport.KindSessionMessage, WithSession(local))

	outcome := m.PassMessage(map[string]any{"buttonTitle": "Go"}, "button")
	if !outcome.Accepted() || outcome != transport.OutcomeDropped {
		t.Errorf("PassMessage() = %v, want accepted but dropped", outcome)
	}
	testutil.Never(t, 50*time.Millisecond, "dropped message arrived", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received > 0
	})
}

type countingDelegate struct {
	session.NopDelegate
	mu *sync.Mutex
	n  *int
}

func (d *countingDelegate) DidReceiveMessage(map[string][]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.n++
}

func TestMessenger_CrossProcessSignals(t *testing.T) {
	resolver, _ := testutil.SetupGroup(t, testutil.TestGroup)
	cfg := Config{GroupIdentifier: testutil.TestGroup, Directory: "messenger"}

	// Two messengers with default file-backed centers stand in for two processes.
	host, err := New(cfg, WithContainer(resolver))
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()
	widget, err := New(cfg, WithContainer(resolver))
	if err != nil {
		t.Fatal(err)
	}
	defer widget.Close()

	var got atomic.Value
	widget.ListenForMessage("button", func(payload any) { got.Store(payload) })

	host.PassMessage(map[string]any{"buttonTitle": "Today-One"}, "button")

	testutil.Eventually(t, 3*time.Second, "widget listener fires", func() bool { return got.Load() != nil })
	if !reflect.DeepEqual(got.Load(), map[string]any{"buttonTitle": "Today-One"}) {
		t.Errorf("widget received %#v", got.Load())
	}
}

func TestMessenger_InjectedTransport(t *testing.T) {
	resolver, _ := testutil.SetupGroup(t, testutil.TestGroup)
	tr := transport.NewFileTransport(transport.Config{GroupIdentifier: testutil.TestGroup, Directory: "x"},
		transport.WithContainer(resolver))

	m, err := New(Config{GroupIdentifier: testutil.TestGroup, Kind: transport.KindSessionFile},
		WithTransport(tr), WithContainer(resolver), WithCenter(signal.NewBus()), WithDispatcher(dispatch.Inline))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Transport() != transport.Transport(tr) {
		t.Error("Transport() should return the injected transport")
	}
	if m.Transport().Kind() != transport.KindFile {
		t.Errorf("Kind() = %v", m.Transport().Kind())
	}
	if m.Config().Directory != "" {
		t.Errorf("Config() = %+v", m.Config())
	}
}
