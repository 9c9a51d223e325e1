package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/token"
	"github.com/xraph/stokvel/types"
)

type recordingPlugin struct {
	name string
	mu   sync.Mutex
	seen []string
	fail bool
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) record(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, s)
	if p.fail {
		return errors.New("boom")
	}
	return nil
}

func (p *recordingPlugin) OnGenesis(_ context.Context, _ *token.Metadata) error {
	return p.record("genesis")
}

func (p *recordingPlugin) OnTransfer(_ context.Context, _ *event.Event) error {
	return p.record("transfer")
}

func (p *recordingPlugin) OnApproval(_ context.Context, _ *event.Event) error {
	return p.record("approval")
}

func (p *recordingPlugin) OnSupplierPaid(_ context.Context, _ *event.Event) error {
	return p.record("supplier_paid")
}

func (p *recordingPlugin) OnRejected(_ context.Context, r *Rejection) error {
	return p.record("rejected:" + r.Operation)
}

type nameOnly struct{ name string }

func (p nameOnly) Name() string { return p.name }

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnTransfer(ctx context.Context, _ *event.Event) error {
	<-ctx.Done()
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterDuplicate(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(nameOnly{"a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(nameOnly{"a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count: got %d, want 1", r.Count())
	}
	if r.Get("a") == nil {
		t.Error("Get(a) returned nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}

func TestEmitEventsPreservesOrder(t *testing.T) {
	r := quietRegistry()
	p := &recordingPlugin{name: "rec"}
	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}

	a := types.BytesToAddress([]byte{1})
	b := types.BytesToAddress([]byte{2})
	events := []*event.Event{
		event.NewSupplierPaid(b, types.Tokens(1)),
		event.NewTransfer(a, b, types.Tokens(1)),
		event.NewApproval(a, b, types.Tokens(2)),
	}

	r.EmitEvents(context.Background(), events)

	want := []string{"supplier_paid", "transfer", "approval"}
	if len(p.seen) != len(want) {
		t.Fatalf("got %v, want %v", p.seen, want)
	}
	for i := range want {
		if p.seen[i] != want[i] {
			t.Errorf("seen[%d]: got %q, want %q", i, p.seen[i], want[i])
		}
	}
}

func TestHookFailureDoesNotStopDispatch(t *testing.T) {
	r := quietRegistry()
	failing := &recordingPlugin{name: "failing", fail: true}
	ok := &recordingPlugin{name: "ok"}
	_ = r.Register(failing)
	_ = r.Register(ok)

	r.EmitGenesis(context.Background(), &token.Metadata{})
	r.EmitRejected(context.Background(), &Rejection{Operation: "transfer"})

	if len(ok.seen) != 2 || ok.seen[1] != "rejected:transfer" {
		t.Errorf("second plugin: got %v", ok.seen)
	}
	if len(failing.seen) != 2 {
		t.Errorf("failing plugin: got %v", failing.seen)
	}
}

func TestHookTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	_ = r.Register(slowPlugin{})

	err := r.callWithTimeout(context.Background(), "slow", func() error {
		time.Sleep(time.Second)
		return nil
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}

	start := time.Now()
	r.EmitEvents(context.Background(), []*event.Event{event.NewTransfer(types.ZeroAddress, types.ZeroAddress, types.Amount{})})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("EmitEvents blocked for %v", elapsed)
	}
}
