package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/fallback"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Service drives the POS session lifecycle on the ERP.
type Service struct {
	deps     pos.Deps
	configID int64
	now      func() time.Time
}

// NewService constructs the session orchestrator. configID may be zero, in
// which case the first POS config on the ERP is used.
func NewService(deps pos.Deps, configID int64) *Service {
	return &Service{deps: deps, configID: configID, now: time.Now}
}

func (s *Service) find(ctx context.Context, domain erp.Domain) (*Session, error) {
	sess, ok, err := erp.First[Session](ctx, s.deps.ERP, pos.ModelSession, domain,
		erp.SearchOptions{Fields: sessionFields, Order: "id desc"})
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *Service) scoped(field, op string, value any) erp.Domain {
	d := erp.Where(field, op, value)
	if s.configID > 0 {
		d = d.And("config_id", "=", s.configID)
	}
	return d
}

// Get loads a session by id.
func (s *Service) Get(ctx context.Context, id int64) (*Session, error) {
	sess, err := erp.Get[Session](ctx, s.deps.ERP, pos.ModelSession, id, sessionFields)
	if err != nil {
		return nil, pos.NotFound(err, "session", id)
	}
	return &sess, nil
}

// List returns recent sessions, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 || limit > shared.MaxPerPage {
		limit = 20
	}
	var domain erp.Domain
	if s.configID > 0 {
		domain = erp.Where("config_id", "=", s.configID)
	}
	return erp.SearchRead[Session](ctx, s.deps.ERP, pos.ModelSession, domain,
		erp.SearchOptions{Fields: sessionFields, Order: "id desc", Limit: limit})
}

// Active returns the most recent opened session. A session still in opening
// control is activated on the way; ErrNoActiveSession when neither exists.
func (s *Service) Active(ctx context.Context) (*Session, error) {
	sess, err := s.find(ctx, s.scoped("state", "=", string(StateOpened)))
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	pending, err := s.find(ctx, s.scoped("state", "=", string(StateOpeningControl)))
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrNoActiveSession
	}
	s.deps.Log().InfoContext(ctx, "auto-activating pos session", slog.Int64("session_id", pending.ID))
	return s.activate(ctx, pending)
}

// Open reuses any non-closed session or creates a new one.
func (s *Service) Open(ctx context.Context) (*OpenResult, error) {
	var result *OpenResult
	err := s.deps.Locker.WithLock(ctx, shared.SessionLockKey("open"), func(ctx context.Context) error {
		// Another replica may have opened a session while we waited.
		existing, err := s.find(ctx, s.scoped("state", "!=", string(StateClosed)))
		if err != nil {
			return err
		}
		if existing != nil {
			sess, err := s.ensureOpened(ctx, existing)
			if err != nil {
				return err
			}
			result = &OpenResult{Session: sess, Reused: true}
			return nil
		}

		configID, err := s.resolveConfig(ctx)
		if err != nil {
			return err
		}
		res, err := fallback.Run(ctx, s.deps.Chain("session.open"),
			fallback.Strategy[*Session]{Name: "open_session_cb", Run: s.viaConfigAction(configID, "open_session_cb")},
			fallback.Strategy[*Session]{Name: "open_ui", Run: s.viaConfigAction(configID, "open_ui")},
			fallback.Strategy[*Session]{Name: "direct_create", Run: func(ctx context.Context) (*Session, error) {
				id, err := erp.Create(ctx, s.deps.ERP, pos.ModelSession, map[string]any{
					"config_id": configID,
					"state":     string(StateOpeningControl),
				})
				if err != nil {
					return nil, err
				}
				return s.Get(ctx, id)
			}},
		)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}
		sess, err := s.ensureOpened(ctx, res.Value)
		if err != nil {
			return err
		}
		result = &OpenResult{Session: sess, Strategy: res.Strategy}
		s.deps.Record(ctx, "session.open", pos.ModelSession, sess.ID, map[string]any{"strategy": res.Strategy})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) viaConfigAction(configID int64, method string) func(context.Context) (*Session, error) {
	return func(ctx context.Context) (*Session, error) {
		if err := erp.Execute(ctx, s.deps.ERP, pos.ModelConfig, method, []int64{configID}, nil); err != nil {
			return nil, err
		}
		sess, err := s.find(ctx, erp.Where("config_id", "=", configID).And("state", "!=", string(StateClosed)))
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("%s returned without creating a session", method)
		}
		return sess, nil
	}
}

func (s *Service) resolveConfig(ctx context.Context) (int64, error) {
	if s.configID > 0 {
		return s.configID, nil
	}
	ids, err := erp.Search(ctx, s.deps.ERP, pos.ModelConfig, nil, erp.SearchOptions{Limit: 1, Order: "id"})
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no POS configuration on the ERP", shared.ErrNotFound)
	}
	return ids[0], nil
}

func (s *Service) ensureOpened(ctx context.Context, sess *Session) (*Session, error) {
	switch sess.State {
	case StateOpeningControl:
		return s.activate(ctx, sess)
	case StateOpened, StateClosingControl:
		return sess, nil
	}
	return nil, fmt.Errorf("%w: session %d is %s", shared.ErrConflict, sess.ID, sess.State)
}

// Activate moves a session from opening control to opened. Without an id the
// most recent session in opening control is used.
func (s *Service) Activate(ctx context.Context, id *int64) (*Session, error) {
	var target *Session
	var err error
	if id != nil {
		target, err = s.Get(ctx, *id)
	} else {
		target, err = s.find(ctx, s.scoped("state", "=", string(StateOpeningControl)))
		if err == nil && target == nil {
			return nil, fmt.Errorf("%w: no session awaiting activation", shared.ErrNotFound)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.activate(ctx, target)
}

func (s *Service) activate(ctx context.Context, target *Session) (*Session, error) {
	var out *Session
	err := s.deps.Locker.WithLock(ctx, shared.SessionLockKey(strconv.FormatInt(target.ID, 10)), func(ctx context.Context) error {
		current, err := s.Get(ctx, target.ID)
		if err != nil {
			return err
		}
		if current.State == StateOpened {
			out = current
			return nil
		}
		if current.State != StateOpeningControl {
			return fmt.Errorf("%w: session %d is %s, expected %s", shared.ErrConflict, current.ID, current.State, StateOpeningControl)
		}
		ids := []int64{current.ID}
		strategy, err := fallback.Do(ctx, s.deps.Chain("session.activate"),
			fallback.Step("direct_write", func(ctx context.Context) error {
				return erp.Write(ctx, s.deps.ERP, pos.ModelSession, ids, map[string]any{
					"state":    string(StateOpened),
					"start_at": erp.FormatTime(s.now()),
				})
			}),
			fallback.Step("set_opening_control", func(ctx context.Context) error {
				return erp.Execute(ctx, s.deps.ERP, pos.ModelSession, "set_opening_control", ids,
					map[string]any{"cashbox_value": 0, "notes": ""})
			}),
		)
		if err != nil {
			return fmt.Errorf("activate session %d: %w", current.ID, err)
		}
		out, err = s.Get(ctx, current.ID)
		if err != nil {
			return err
		}
		if out.State != StateOpened {
			return fmt.Errorf("activate session %d: still %s after %s", out.ID, out.State, strategy)
		}
		s.deps.Record(ctx, "session.activate", pos.ModelSession, out.ID, map[string]any{"strategy": strategy})
		return nil
	})
	return out, err
}

// Close closes a session once it has no draft orders. Without an id the
// current opened session is closed.
func (s *Service) Close(ctx context.Context, id *int64) (*Session, error) {
	var target *Session
	var err error
	if id != nil {
		target, err = s.Get(ctx, *id)
	} else {
		target, err = s.find(ctx, s.scoped("state", "in", []string{string(StateOpened), string(StateClosingControl), string(StateOpeningControl)}))
		if err == nil && target == nil {
			return nil, ErrNoActiveSession
		}
	}
	if err != nil {
		return nil, err
	}

	var out *Session
	err = s.deps.Locker.WithLock(ctx, shared.SessionLockKey(strconv.FormatInt(target.ID, 10)), func(ctx context.Context) error {
		current, err := s.Get(ctx, target.ID)
		if err != nil {
			return err
		}
		if current.State == StateClosed {
			return fmt.Errorf("%w: session %d is already closed", shared.ErrConflict, current.ID)
		}
		drafts, err := s.draftOrders(ctx, current.ID)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return fmt.Errorf("%w (%d)", ErrOpenOrders, drafts)
		}
		ids := []int64{current.ID}
		strategy, err := fallback.Do(ctx, s.deps.Chain("session.close"),
			fallback.Step("standard_close", func(ctx context.Context) error {
				return s.standardClose(ctx, current)
			}),
			fallback.Step("direct_write", func(ctx context.Context) error {
				// Orders may have been created since the first check.
				if n, err := s.draftOrders(ctx, current.ID); err != nil || n > 0 {
					if err == nil {
						err = fmt.Errorf("%w (%d)", ErrOpenOrders, n)
					}
					return fallback.Stop(err)
				}
				return erp.Write(ctx, s.deps.ERP, pos.ModelSession, ids, map[string]any{
					"state":   string(StateClosed),
					"stop_at": erp.FormatTime(s.now()),
				})
			}),
		)
		if err != nil {
			if errors.Is(err, ErrOpenOrders) {
				return ErrOpenOrders
			}
			return fmt.Errorf("close session %d: %w", current.ID, err)
		}
		out, err = s.Get(ctx, current.ID)
		if err != nil {
			return err
		}
		s.deps.Record(ctx, "session.close", pos.ModelSession, out.ID, map[string]any{"strategy": strategy})
		return nil
	})
	return out, err
}

func (s *Service) draftOrders(ctx context.Context, sessionID int64) (int, error) {
	return erp.SearchCount(ctx, s.deps.ERP, pos.ModelOrder,
		erp.Where("session_id", "=", sessionID).And("state", "=", "draft"))
}

func (s *Service) standardClose(ctx context.Context, sess *Session) error {
	ids := []int64{sess.ID}
	if sess.State != StateClosingControl {
		if err := erp.Execute(ctx, s.deps.ERP, pos.ModelSession, "action_pos_session_closing_control", ids, nil); err != nil {
			return err
		}
	}
	if err := erp.Execute(ctx, s.deps.ERP, pos.ModelSession, "action_pos_session_close", ids, nil); err != nil {
		return err
	}
	after, err := s.Get(ctx, sess.ID)
	if err != nil {
		return err
	}
	if after.State != StateClosed {
		return fmt.Errorf("session %d still %s after closing", after.ID, after.State)
	}
	return nil
}

// ForceClose closes every non-closed session, ignoring draft orders. It
// tries one bulk write first, then the standard transition per session.
func (s *Service) ForceClose(ctx context.Context) (*ForceCloseResult, error) {
	ids, err := erp.Search(ctx, s.deps.ERP, pos.ModelSession, erp.Where("state", "!=", string(StateClosed)), erp.SearchOptions{})
	if err != nil {
		return nil, err
	}
	result := &ForceCloseResult{}
	if len(ids) == 0 {
		return result, nil
	}
	err = erp.Write(ctx, s.deps.ERP, pos.ModelSession, ids, map[string]any{
		"state":   string(StateClosed),
		"stop_at": erp.FormatTime(s.now()),
	})
	if err == nil {
		result.Closed = len(ids)
		s.deps.Log().WarnContext(ctx, "force-closed pos sessions", slog.Int("count", len(ids)))
	} else {
		s.deps.Log().WarnContext(ctx, "bulk session close failed, closing one by one", slog.Any("error", err))
		s.closeEach(ctx, ids, result)
	}
	s.deps.Record(ctx, "session.force_close", pos.ModelSession, 0, map[string]any{"closed": result.Closed, "failed": result.Failed})
	return result, nil
}

func (s *Service) closeEach(ctx context.Context, ids []int64, result *ForceCloseResult) {
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err == nil {
			err = s.standardClose(ctx, sess)
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("session %d: %v", id, err))
			continue
		}
		result.Closed++
	}
}
