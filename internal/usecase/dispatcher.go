package usecase

import (
	"context"
	"log/slog"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/observability"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

// Dispatcher maps validated commands onto Home Assistant service calls.
// Commands run sequentially to preserve user-visible ordering; a rejected or
// failed command is logged and skipped, never aborting its siblings, and
// there is no rollback of already-applied commands.
type Dispatcher struct {
	svc   domain.ServiceCaller
	table domain.ActionTable
}

// NewDispatcher builds a dispatcher over the given service caller and
// whitelist.
func NewDispatcher(svc domain.ServiceCaller, table domain.ActionTable) *Dispatcher {
	return &Dispatcher{svc: svc, table: table}
}

// Dispatch executes the commands in order and returns the success tally.
// Every command is re-checked against the whitelist here; this is the last
// gate before the service bus regardless of what earlier validation saw.
func (d *Dispatcher) Dispatch(ctx context.Context, cmds []domain.Command) (succeeded, total int) {
	total = len(cmds)
	for _, cmd := range cmds {
		dom, _, ok := domain.SplitEntityID(cmd.EntityID)
		if !ok || !d.table.IsAllowed(cmd.EntityID, cmd.Action) {
			slog.Warn("command rejected by action whitelist",
				slog.String("entity_id", cmd.EntityID),
				slog.String("action", cmd.Action))
			observability.CommandsDispatchedTotal.WithLabelValues(dom, "rejected").Inc()
			continue
		}

		data := map[string]any{"entity_id": cmd.EntityID}
		for k, v := range cmd.ServiceParams {
			data[k] = v
		}

		if err := d.svc.CallService(ctx, dom, cmd.Action, data); err != nil {
			slog.Error("service call failed",
				slog.String("entity_id", cmd.EntityID),
				slog.String("action", cmd.Action),
				slog.Any("error", err))
			observability.CommandsDispatchedTotal.WithLabelValues(dom, "failed").Inc()
			continue
		}
		slog.Info("command executed",
			slog.String("entity_id", cmd.EntityID),
			slog.String("action", cmd.Action))
		observability.CommandsDispatchedTotal.WithLabelValues(dom, "succeeded").Inc()
		succeeded++
	}

	slog.Info("command dispatch complete",
		slog.Int("succeeded", succeeded),
		slog.Int("total", total))
	return succeeded, total
}
