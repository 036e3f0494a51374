package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/sheet-messaging/internal/cache"
	"github.com/LeventeLantos/sheet-messaging/internal/client"
	"github.com/LeventeLantos/sheet-messaging/internal/phone"
)

type sendCall struct {
	Phone     string
	Template  string
	Broadcast string
	Params    []client.Parameter
}

type fakeGateway struct {
	mu sync.Mutex

	missing   map[string]bool
	lookupErr map[string]error
	upsertErr map[string]error
	sendErr   map[string]error
	rejected  map[string]bool

	calls   []string
	lookups []string
	upserts []string
	sends   []sendCall
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		missing:   map[string]bool{},
		lookupErr: map[string]error{},
		upsertErr: map[string]error{},
		sendErr:   map[string]error{},
		rejected:  map[string]bool{},
	}
}

func (g *fakeGateway) LookupContact(ctx context.Context, phone string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, "lookup:"+phone)
	g.lookups = append(g.lookups, phone)
	if err := g.lookupErr[phone]; err != nil {
		return false, err
	}
	return !g.missing[phone], nil
}

func (g *fakeGateway) UpsertContact(ctx context.Context, phone, name string, allowBroadcast bool) (client.UpsertResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, "upsert:"+phone)
	g.upserts = append(g.upserts, phone)
	if err := g.upsertErr[phone]; err != nil {
		return client.UpsertResult{}, err
	}
	if g.rejected[phone] {
		return client.UpsertResult{StatusCode: 400, Body: `{"result":false}`}, nil
	}
	return client.UpsertResult{Accepted: true, StatusCode: 200}, nil
}

func (g *fakeGateway) SendTemplateMessage(ctx context.Context, phone, template, broadcast string, params []client.Parameter) (client.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, "send:"+phone)
	g.sends = append(g.sends, sendCall{Phone: phone, Template: template, Broadcast: broadcast, Params: params})
	if err := g.sendErr[phone]; err != nil {
		return client.SendResult{}, err
	}
	return client.SendResult{Success: true, StatusCode: 200, Body: `{"result":true}`}, nil
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type countingPacer struct {
	waits atomic.Int32
}

func (p *countingPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.waits.Add(1)
	return nil
}

type fakeReceipts struct {
	mu       sync.Mutex
	receipts []cache.Receipt
	err      error
}

func (f *fakeReceipts) StoreReceipt(ctx context.Context, r cache.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.receipts = append(f.receipts, r)
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	contacts map[string]int
	messages map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{contacts: map[string]int{}, messages: map[string]int{}}
}

func (r *fakeRecorder) Contact(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[outcome]++
}

func (r *fakeRecorder) Message(table, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[table+"/"+outcome]++
}

var hongKong = time.FixedZone("HKT", 8*3600)

// fixedNow returns 2024-05-01 10:00:00 in Hong Kong.
func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
}

func prefixPlus(t *testing.T) *phone.Normalizer {
	t.Helper()
	n, err := phone.NewNormalizer(phone.PrefixPlus, "")
	require.NoError(t, err)
	return n
}
