package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

type serviceCall struct {
	Domain, Service string
	Data            map[string]any
}

type fakeServiceCaller struct {
	mu    sync.Mutex
	calls []serviceCall
	fail  map[string]error // keyed by entity_id
}

func (f *fakeServiceCaller) CallService(_ context.Context, dom, service string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, serviceCall{dom, service, data})
	if id, ok := data["entity_id"].(string); ok && f.fail != nil {
		if err, ok := f.fail[id]; ok {
			return err
		}
	}
	return nil
}

func TestDispatcher_SkipsUnauthorizedCommand(t *testing.T) {
	svc := &fakeServiceCaller{}
	d := NewDispatcher(svc, domain.DefaultActionTable())

	cmds := []domain.Command{
		{EntityID: "light.kitchen", Action: "turn_on"},
		{EntityID: "lock.front_door", Action: "unlock"}, // domain not whitelisted
		{EntityID: "switch.fan", Action: "turn_off"},
	}
	succeeded, total := d.Dispatch(context.Background(), cmds)

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 3, total)
	require.Len(t, svc.calls, 2)
	assert.Equal(t, "light", svc.calls[0].Domain)
	assert.Equal(t, "switch", svc.calls[1].Domain)
}

func TestDispatcher_FailedCallDoesNotAbortSiblings(t *testing.T) {
	svc := &fakeServiceCaller{fail: map[string]error{
		"light.kitchen": errors.New("service unavailable"),
	}}
	d := NewDispatcher(svc, domain.DefaultActionTable())

	cmds := []domain.Command{
		{EntityID: "light.kitchen", Action: "turn_on"},
		{EntityID: "light.hall", Action: "turn_off"},
	}
	succeeded, total := d.Dispatch(context.Background(), cmds)

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, total)
	assert.Len(t, svc.calls, 2, "the failure must not stop dispatch")
}

func TestDispatcher_MergesServiceParams(t *testing.T) {
	svc := &fakeServiceCaller{}
	d := NewDispatcher(svc, domain.DefaultActionTable())

	cmds := []domain.Command{{
		EntityID:      "climate.living",
		Action:        "set_temperature",
		ServiceParams: map[string]any{"temperature": 21.5},
	}}
	succeeded, _ := d.Dispatch(context.Background(), cmds)

	require.Equal(t, 1, succeeded)
	require.Len(t, svc.calls, 1)
	call := svc.calls[0]
	assert.Equal(t, "climate", call.Domain)
	assert.Equal(t, "set_temperature", call.Service)
	assert.Equal(t, "climate.living", call.Data["entity_id"])
	assert.Equal(t, 21.5, call.Data["temperature"])
}

func TestDispatcher_EmptyList(t *testing.T) {
	svc := &fakeServiceCaller{}
	d := NewDispatcher(svc, domain.DefaultActionTable())

	succeeded, total := d.Dispatch(context.Background(), nil)
	assert.Zero(t, succeeded)
	assert.Zero(t, total)
	assert.Empty(t, svc.calls)
}

func TestDispatcher_MalformedEntityID(t *testing.T) {
	svc := &fakeServiceCaller{}
	d := NewDispatcher(svc, domain.DefaultActionTable())

	succeeded, total := d.Dispatch(context.Background(), []domain.Command{
		{EntityID: "nodot", Action: "turn_on"},
	})
	assert.Zero(t, succeeded)
	assert.Equal(t, 1, total)
	assert.Empty(t, svc.calls)
}
