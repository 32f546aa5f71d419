package intent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskwire/taskwire/internal/clock"
	twerrors "github.com/taskwire/taskwire/internal/errors"
	"github.com/taskwire/taskwire/internal/history"
	"github.com/taskwire/taskwire/internal/task"
)

// handlers maps each intent to its executor. AvailableIntents derives the
// advertised verb set from this table, so adding an entry is all it takes
// to expose a new intent on every surface. The table is populated in init
// rather than a composite literal because handleBatch re-enters process,
// which consults the table; a literal would be an initialization cycle.
var handlers map[Intent]func(*Engine, context.Context, Request) *Response

func init() {
	handlers = map[Intent]func(*Engine, context.Context, Request) *Response{
		IntentContext:   (*Engine).handleContext,
		IntentResume:    (*Engine).handleResume,
		IntentCreate:    (*Engine).handleCreate,
		IntentDecompose: (*Engine).handleDecompose,
		IntentDefine:    (*Engine).handleDefine,
		IntentVerify:    (*Engine).handleVerify,
		IntentDone:      (*Engine).handleDone,
		IntentProgress:  (*Engine).handleProgress,
		IntentNote:      (*Engine).handleNote,
		IntentBlock:     (*Engine).handleBlock,
		IntentDelete:    (*Engine).handleDelete,
		IntentComplete:  (*Engine).handleComplete,
		IntentBatch:     (*Engine).handleBatch,
		IntentUndo:      (*Engine).handleUndo,
		IntentRedo:      (*Engine).handleRedo,
		IntentHistory:   (*Engine).handleHistory,
		IntentStorage:   (*Engine).handleStorage,
		IntentMigrate:   (*Engine).handleMigrate,
	}
}

// Config assembles an Engine. Store is required; everything else has a
// usable zero value.
type Config struct {
	// Store is the task persistence layer.
	Store task.Store

	// History is the operation log; nil disables undo/redo.
	History *history.Log

	// Cache memoizes keyed modifying responses; nil gets a default cache.
	Cache *Cache

	// Clock supplies envelope timestamps; nil means wall clock.
	Clock clock.Clock

	// HistoryEnabled gates history recording without tearing down the log.
	HistoryEnabled bool

	// GlobalRoot, LocalDir and WorkDir describe the storage layout for the
	// storage and migrate intents.
	GlobalRoot string
	LocalDir   string
	WorkDir    string
}

// Engine executes intent requests against a task store. One engine serves
// one storage directory; requests are serialized on an internal mutex, so
// a single engine is safe for concurrent use.
type Engine struct {
	store          task.Store
	history        *history.Log
	cache          *Cache
	clk            clock.Clock
	historyEnabled bool
	globalRoot     string
	localDir       string
	workDir        string

	mu sync.Mutex
}

// NewEngine creates an engine from cfg. Returns an error when the store is
// missing.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, twerrors.Wrap(twerrors.ErrEmptyValue, "store is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(DefaultIdempotencyTTL, DefaultCacheMaxEntries, DefaultCacheEvictBatch, clk)
	}
	return &Engine{
		store:          cfg.Store,
		history:        cfg.History,
		cache:          cache,
		clk:            clk,
		historyEnabled: cfg.HistoryEnabled && cfg.History != nil,
		globalRoot:     cfg.GlobalRoot,
		localDir:       cfg.LocalDir,
		workDir:        cfg.WorkDir,
	}, nil
}

// Store returns the engine's task store.
func (e *Engine) Store() task.Store {
	return e.store
}

// Process executes one intent request end to end: routing, idempotent
// replay, dry-run preflight, history capture, dispatch, and enrichment.
// It never returns nil and never panics; handler panics become
// INTERNAL_ERROR envelopes.
func (e *Engine) Process(ctx context.Context, req Request) *Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process(ctx, req, true)
}

// process is Process without the mutex, so batch can run sub-operations
// while already holding it. recordHistory is false for those sub-operations:
// the batch snapshots affected files itself.
func (e *Engine) process(ctx context.Context, req Request, recordHistory bool) *Response {
	in := req.Intent()
	if in == "" {
		return e.fail(Intent("unknown"), &ErrorDetail{
			Code:        CodeMissingIntent,
			Message:     "request has no 'intent' field",
			Recoverable: true,
			Field:       "intent",
			Expected:    strings.Join(AvailableIntents(), ", "),
			Recovery: &Recovery{
				Action: "context",
				Hint:   map[string]any{"intent": "context"},
			},
		})
	}
	if _, ok := handlers[in]; !ok {
		return e.fail(in, &ErrorDetail{
			Code:        CodeUnknownIntent,
			Message:     fmt.Sprintf("unknown intent '%s'", in),
			Recoverable: true,
			Field:       "intent",
			Expected:    strings.Join(AvailableIntents(), ", "),
			Got:         string(in),
			Recovery: &Recovery{
				Action: "context",
				Hint:   map[string]any{"intent": "context"},
			},
		})
	}

	modifying := in.Modifying()
	key := strings.TrimSpace(req.String("idempotency_key"))

	if modifying && key != "" {
		if cached, ok := e.cache.Check(key); ok {
			replay := *cached
			replay.Idempotency = &IdempotencyInfo{Key: key, Cached: true}
			return &replay
		}
	}

	if modifying && req.BoolOr("dry_run", false) {
		return e.preflight(ctx, in, req)
	}

	if recordHistory && e.historyEnabled && modifying && in != IntentCreate {
		if taskID := req.TaskID(); taskID != "" {
			if _, err := e.history.Record(ctx, string(in), taskID, map[string]any(req)); err != nil {
				// The operation proceeds; only undo coverage is lost.
				zerolog.Ctx(ctx).Warn().Err(err).
					Str("intent", string(in)).
					Str("task", taskID).
					Msg("history record failed")
			}
		}
	}

	resp := e.dispatch(ctx, in, req)

	// Creates get their ID from the store, so they enter history afterwards.
	if recordHistory && e.historyEnabled && in == IntentCreate && resp.Success {
		if newID, ok := resp.Result["task_id"].(string); ok && newID != "" {
			if _, err := e.history.Record(ctx, string(in), newID, map[string]any(req)); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).
					Str("intent", string(in)).
					Str("task", newID).
					Msg("history record failed")
			}
		}
	}

	e.enrich(ctx, req, resp)

	if resp.Success && modifying && key != "" {
		resp.Idempotency = &IdempotencyInfo{Key: key, Cached: false}
		stored := *resp
		e.cache.Store(key, &stored)
	}
	return resp
}

// dispatch runs the handler for in, converting panics into INTERNAL_ERROR.
func (e *Engine) dispatch(ctx context.Context, in Intent, req Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Interface("panic", r).
				Str("intent", string(in)).
				Msg("intent handler panicked")
			resp = e.fail(in, &ErrorDetail{
				Code:        CodeInternalError,
				Message:     fmt.Sprintf("internal error: %v", r),
				Recoverable: false,
			})
		}
	}()
	return handlers[in](e, ctx, req)
}

// enrich fills in state, hints, meta, and summary on envelopes that do not
// already carry them. Failures are enriched too, so the agent sees where
// the task stands after a rejected request.
func (e *Engine) enrich(ctx context.Context, req Request, resp *Response) {
	taskID := req.TaskID()
	if taskID == "" {
		if resp.Hints == nil {
			if tasks, err := e.store.ListTasks(ctx); err == nil {
				resp.Hints = hintsWithoutTask(tasks)
			}
		}
		e.fillSummary(resp)
		return
	}

	t, err := e.store.LoadTask(ctx, taskID)
	if err != nil {
		e.fillSummary(resp)
		return
	}
	if resp.Meta == nil {
		resp.Meta = buildMeta(t)
	}
	if resp.State == nil {
		resp.State = TaskStateFromTask(t)
	}
	if resp.Hints == nil {
		resp.Hints = hintsForTask(taskID, t)
	}
	e.fillSummary(resp)
}

// fillSummary generates the one-line summary for successful envelopes that
// lack one. Failures keep the error message as their narrative.
func (e *Engine) fillSummary(resp *Response) {
	if resp.Success && resp.Summary == "" {
		resp.Summary = generateSummary(resp.Intent, resp.Result, resp.State)
	}
}
