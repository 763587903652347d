package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"plannr/internal/challenge"
	"plannr/internal/mail"
	"plannr/internal/models"
	"plannr/internal/queue"
)

type LoginEventPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type AccountChecker interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Processor executes stream tasks inside the worker.
type Processor struct {
	sender    mail.Mailer
	events    LoginEventPruner
	pending   *challenge.Store
	accounts  map[models.Role]AccountChecker
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewProcessor(
	sender mail.Mailer,
	events LoginEventPruner,
	pending *challenge.Store,
	accounts map[models.Role]AccountChecker,
	retention time.Duration,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		sender:    sender,
		events:    events,
		pending:   pending,
		accounts:  accounts,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskEmail:
		return p.handleEmail(ctx, task.Payload)
	case queue.TaskPruneLoginEvents:
		return p.handlePrune(ctx)
	case queue.TaskReconcilePending:
		return p.handleReconcile(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleEmail(ctx context.Context, payload json.RawMessage) error {
	var msg mail.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		p.logger.Error().Err(err).Msg("drop undecodable email task")
		return nil
	}
	if msg.To == "" {
		p.logger.Warn().Str("subject", msg.Subject).Msg("drop email without recipient")
		return nil
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	p.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email delivered")
	return nil
}

func (p *Processor) handlePrune(ctx context.Context) error {
	if p.retention <= 0 {
		return nil
	}
	cutoff := p.now().Add(-p.retention)
	pruned, err := p.events.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune login events: %w", err)
	}
	p.logger.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("login events pruned")
	return nil
}

// handleReconcile drops pending registrations whose account already exists.
// They are left behind when the pending entry could not be deleted after the
// account was persisted.
func (p *Processor) handleReconcile(ctx context.Context) error {
	var removed int
	err := p.pending.Scan(ctx, challenge.PurposeRegistration, func(key challenge.Key) error {
		accounts, ok := p.accounts[key.Role]
		if !ok {
			return nil
		}
		exists, err := accounts.ExistsByEmail(ctx, key.Email)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		deleted, err := p.pending.Delete(ctx, key)
		if err != nil {
			return err
		}
		if deleted {
			removed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile pending registrations: %w", err)
	}
	p.logger.Info().Int("removed", removed).Msg("pending registrations reconciled")
	return nil
}
