package runtime

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingConnection struct {
	*fakeConnection
	mu        sync.Mutex
	delivered []domain.Message
}

func newRecordingConnection(username string) *recordingConnection {
	return &recordingConnection{fakeConnection: newFakeConnection(username)}
}

func (r *recordingConnection) Deliver(_ context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, msg)
	return nil
}

func (r *recordingConnection) messages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.delivered...)
}

type upperFilter struct{}

func (upperFilter) Censor(content string) string { return strings.ToUpper(content) }

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRelay(t *testing.T, deliveryTimeout time.Duration) (*Relay, *Registry, *observability.RelayMonitor, *clock.FakeClock) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry(log)
	monitor := observability.NewRelayMonitor(log)
	clk := clock.Fake(epoch)
	return NewRelay(log, registry, monitor, clk, 128, deliveryTimeout), registry, monitor, clk
}

func TestRelay_BroadcastReachesEveryoneIncludingSender(t *testing.T) {
	req := require.New(t)
	relay, registry, monitor, _ := newTestRelay(t, 0)
	alice, bob, carol := newRecordingConnection("alice"), newRecordingConnection("bob"), newRecordingConnection("carol")
	for _, c := range []*recordingConnection{alice, bob, carol} {
		req.NoError(registry.Register(c))
	}

	// When alice says hi
	delivered := relay.Broadcast(context.Background(), domain.Message{Sender: "alice", Content: "hi", Timestamp: epoch})

	// Then all three connections, alice's included, got exactly one copy
	req.Equal(3, delivered)
	for _, c := range []*recordingConnection{alice, bob, carol} {
		req.Len(c.messages(), 1)
		req.Equal("alice", c.messages()[0].Sender)
		req.Equal("hi", c.messages()[0].Content)
	}
	stats := monitor.GetLatest()
	req.EqualValues(1, stats.MessagesRelayed)
	req.EqualValues(3, stats.Deliveries)
}

func TestRelay_EmptyRegistry(t *testing.T) {
	relay, _, _, _ := newTestRelay(t, 0)
	require.Zero(t, relay.Broadcast(context.Background(), domain.Message{Sender: "ghost", Content: "anyone?"}))
}

func TestRelay_FailedDeliveryIsContained(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	relay, registry, monitor, _ := newTestRelay(t, 0)

	broken := mocks.NewMockConnection(ctrl)
	broken.EXPECT().ID().Return(domain.NewConnectionID()).AnyTimes()
	broken.EXPECT().Username().Return("bob").AnyTimes()
	broken.EXPECT().State().Return(domain.Open).AnyTimes()
	broken.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(fmt.Errorf("%w: queue full", errors.ErrDeliveryFailure))

	panicky := mocks.NewMockConnection(ctrl)
	panicky.EXPECT().ID().Return(domain.NewConnectionID()).AnyTimes()
	panicky.EXPECT().Username().Return("dave").AnyTimes()
	panicky.EXPECT().State().Return(domain.Open).AnyTimes()
	panicky.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, domain.Message) error {
		panic("socket exploded")
	})

	alice, carol := newRecordingConnection("alice"), newRecordingConnection("carol")
	req.NoError(registry.Register(alice))
	req.NoError(registry.Register(broken))
	req.NoError(registry.Register(panicky))
	req.NoError(registry.Register(carol))

	delivered := relay.Broadcast(context.Background(), domain.Message{Sender: "alice", Content: "hi"})

	// Then the healthy targets after the broken ones still got the message
	req.Equal(2, delivered)
	req.Len(alice.messages(), 1)
	req.Len(carol.messages(), 1)
	req.EqualValues(2, monitor.GetLatest().DeliveryFailures)

	// And nothing was unregistered
	req.Equal(4, registry.Len())
}

func TestRelay_SkipsClosingConnections(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	relay, registry, _, _ := newTestRelay(t, 0)

	closing := mocks.NewMockConnection(ctrl)
	closing.EXPECT().ID().Return(domain.NewConnectionID()).AnyTimes()
	closing.EXPECT().Username().Return("bob").AnyTimes()
	closing.EXPECT().State().Return(domain.Closing).AnyTimes()
	closing.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(0)
	req.NoError(registry.Register(closing))

	req.Zero(relay.Broadcast(context.Background(), domain.Message{Sender: "alice", Content: "hi"}))
}

func TestRelay_DeliveryTimeoutBoundsEachTarget(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	relay, registry, _, _ := newTestRelay(t, 50*time.Millisecond)

	slow := mocks.NewMockConnection(ctrl)
	slow.EXPECT().ID().Return(domain.NewConnectionID()).AnyTimes()
	slow.EXPECT().Username().Return("bob").AnyTimes()
	slow.EXPECT().State().Return(domain.Open).AnyTimes()
	slow.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ domain.Message) error {
		_, ok := ctx.Deadline()
		req.True(ok, "delivery should be bounded")
		<-ctx.Done()
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, ctx.Err())
	})
	req.NoError(registry.Register(slow))
	fast := newRecordingConnection("carol")
	req.NoError(registry.Register(fast))

	start := time.Now()
	delivered := relay.Broadcast(context.Background(), domain.Message{Sender: "alice", Content: "hi"})

	req.Equal(1, delivered)
	req.Less(time.Since(start), time.Second)
	req.Len(fast.messages(), 1)
}

func TestRelay_PublishStampsSenderAndTime(t *testing.T) {
	req := require.New(t)
	relay, registry, _, clk := newTestRelay(t, 0)
	alice, bob := newRecordingConnection("alice"), newRecordingConnection("bob")
	req.NoError(registry.Register(alice))
	req.NoError(registry.Register(bob))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	clk.Advance(1500 * time.Millisecond)
	req.NoError(relay.Publish(ctx, alice, "hi"))

	req.Eventually(func() bool { return len(bob.messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := bob.messages()[0]
	req.Equal("alice", msg.Sender)
	req.Equal("hi", msg.Content)
	req.True(msg.Timestamp.Equal(epoch.Add(1500*time.Millisecond)))
	req.Equal("2026-03-01T12:00:01.500Z", msg.ToOutbound().Timestamp)
}

func TestRelay_PreservesReceiveOrder(t *testing.T) {
	req := require.New(t)
	relay, registry, _, _ := newTestRelay(t, 0)
	alice, bob := newRecordingConnection("alice"), newRecordingConnection("bob")
	req.NoError(registry.Register(alice))
	req.NoError(registry.Register(bob))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	const count = 200
	for i := 0; i < count; i++ {
		sender := alice
		if i%2 == 1 {
			sender = bob
		}
		req.NoError(relay.Publish(ctx, sender, fmt.Sprintf("m%03d", i)))
	}

	req.Eventually(func() bool {
		return len(alice.messages()) == count && len(bob.messages()) == count
	}, 2*time.Second, 5*time.Millisecond)

	// Every recipient observes the same sequence, in publish order
	for i, msg := range bob.messages() {
		req.Equal(fmt.Sprintf("m%03d", i), msg.Content)
	}
	req.Equal(alice.messages(), bob.messages())
}

func TestRelay_FilterRewritesContent(t *testing.T) {
	req := require.New(t)
	relay, registry, _, _ := newTestRelay(t, 0)
	relay.WithFilter(upperFilter{})
	bob := newRecordingConnection("bob")
	req.NoError(registry.Register(bob))

	relay.Broadcast(context.Background(), domain.Message{Sender: "alice", Content: "quiet"})

	req.Equal("QUIET", bob.messages()[0].Content)
}

func TestRelay_PublishHonoursContext(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	// An intake of one slot and no worker draining it
	relay := NewRelay(log, NewRegistry(log), observability.NewRelayMonitor(log), clock.Fake(epoch), 1, 0)
	alice := newRecordingConnection("alice")
	require.NoError(t, relay.Publish(context.Background(), alice, "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, relay.Publish(ctx, alice, "second"), context.DeadlineExceeded)
}
