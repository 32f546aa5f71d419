package intent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// MaxBatchOperations caps a batch before and after path expansion.
const MaxBatchOperations = 1000

// handleBatch runs a list of operations sequentially, stopping at the first
// failure. In atomic mode (the default) every affected task file is
// snapshotted up front and restored when any operation fails; otherwise the
// completed prefix stands and the error carries the remaining operations as
// a ready-to-send retry.
func (e *Engine) handleBatch(ctx context.Context, req Request) *Response {
	rawOps := req.Slice("operations")
	if len(rawOps) == 0 {
		return e.fail(IntentBatch, &ErrorDetail{
			Code:        CodeMissingOps,
			Message:     "request has no 'operations'",
			Recoverable: true,
			Field:       "operations",
			Recovery: &Recovery{
				Action: "batch",
				Hint: map[string]any{
					"operations": []any{map[string]any{"intent": "context"}},
				},
			},
		})
	}
	if len(rawOps) > MaxBatchOperations {
		return e.fail(IntentBatch, &ErrorDetail{
			Code:        CodeTooManyOps,
			Message:     fmt.Sprintf("batch has %d operations, the cap is %d", len(rawOps), MaxBatchOperations),
			Recoverable: true,
			Field:       "operations",
		})
	}

	ops, expandResp := e.expandOperations(rawOps)
	if expandResp != nil {
		return expandResp
	}
	if len(ops) > MaxBatchOperations {
		return e.fail(IntentBatch, &ErrorDetail{
			Code:        CodeTooManyOpsAfter,
			Message:     fmt.Sprintf("path expansion produced %d operations, the cap is %d", len(ops), MaxBatchOperations),
			Recoverable: true,
			Field:       "operations",
		})
	}

	// Batch-level task/domain defaults flow into operations that lack them.
	for _, op := range ops {
		for _, key := range []string{"task", "domain", "phase", "component"} {
			if op.Has(key) {
				continue
			}
			if v, has := req[key]; has {
				op[key] = v
			}
		}
	}

	atomic := req.BoolOr("atomic", true)
	var backups map[string][]byte
	var absent []string
	if atomic {
		backups, absent = e.backupAffected(ctx, ops)
	}

	results := make([]map[string]any, 0, len(ops))
	completedCount := 0
	failedIdx := -1
	var firstErr *ErrorDetail
	for i, op := range ops {
		sub := e.process(ctx, op, false)
		entry := map[string]any{
			"index":   i,
			"intent":  string(op.Intent()),
			"success": sub.Success,
		}
		if sub.Success {
			entry["result"] = sub.Result
			completedCount++
		} else {
			entry["error"] = sub.Error
			firstErr = sub.Error
		}
		results = append(results, entry)
		if !sub.Success {
			failedIdx = i
			break
		}
	}

	rolledBack := false
	if failedIdx >= 0 && atomic {
		e.rollback(ctx, backups, absent)
		rolledBack = true
	}

	result := map[string]any{
		"atomic":      atomic,
		"rolled_back": rolledBack,
		"operations":  results,
		"completed":   completedCount,
		"total":       len(ops),
	}
	if failedIdx < 0 {
		return e.ok(IntentBatch, result)
	}

	detail := "operation failed"
	if firstErr != nil {
		detail = firstErr.Message
	}
	var resp *Response
	if atomic {
		resp = e.fail(IntentBatch, &ErrorDetail{
			Code:        CodeBatchFailed,
			Message:     fmt.Sprintf("operation %d (%s) failed: %s; all changes rolled back", failedIdx, ops[failedIdx].Intent(), detail),
			Recoverable: true,
			Field:       "operations",
		})
	} else {
		remaining := make([]any, 0, len(ops)-failedIdx)
		for _, op := range ops[failedIdx:] {
			remaining = append(remaining, map[string]any(op))
		}
		resp = e.fail(IntentBatch, &ErrorDetail{
			Code:        CodeBatchPartial,
			Message:     fmt.Sprintf("operation %d (%s) failed: %s; %d of %d completed", failedIdx, ops[failedIdx].Intent(), detail, completedCount, len(ops)),
			Recoverable: true,
			Field:       "operations",
			Recovery: &Recovery{
				Action: "batch",
				Hint: map[string]any{
					"operations": remaining,
					"atomic":     false,
				},
			},
		})
	}
	resp.Result = result
	return resp
}

// expandOperations checks shape and fans out multi-path operations into one
// operation per path. An empty paths list drops the operation.
func (e *Engine) expandOperations(rawOps []any) ([]Request, *Response) {
	ops := make([]Request, 0, len(rawOps))
	for i, el := range rawOps {
		m, isObject := el.(map[string]any)
		if !isObject {
			return nil, e.fail(IntentBatch, &ErrorDetail{
				Code:        CodeValidationError,
				Message:     fmt.Sprintf("operations[%d] must be an object", i),
				Recoverable: true,
				Field:       "operations",
			})
		}
		pathsRaw, fanOut := m["paths"]
		if !fanOut {
			ops = append(ops, Request(m))
			continue
		}
		paths, _ := pathsRaw.([]any)
		for _, p := range paths {
			clone := make(map[string]any, len(m))
			for k, v := range m {
				if k == "paths" {
					continue
				}
				clone[k] = v
			}
			clone["path"] = p
			ops = append(ops, Request(clone))
		}
	}
	return ops, nil
}

// backupAffected snapshots the on-disk bytes of every task the batch names.
// Referenced IDs with no file yet are remembered so rollback can delete
// files an earlier operation created under them.
func (e *Engine) backupAffected(ctx context.Context, ops []Request) (map[string][]byte, []string) {
	backups := make(map[string][]byte)
	var absent []string
	seen := map[string]bool{}
	for _, op := range ops {
		taskID := op.TaskID()
		if taskID == "" || seen[taskID] {
			continue
		}
		seen[taskID] = true
		rel, err := e.store.FindTaskFile(taskID)
		if err != nil {
			absent = append(absent, taskID)
			continue
		}
		data, readErr := e.store.ReadRaw(ctx, rel)
		if readErr != nil {
			zerolog.Ctx(ctx).Warn().Err(readErr).Str("task", taskID).Msg("batch backup read failed")
			continue
		}
		backups[rel] = data
	}
	return backups, absent
}

// rollback restores backed-up task files and removes files that appeared
// under IDs that had none when the batch started.
func (e *Engine) rollback(ctx context.Context, backups map[string][]byte, absent []string) {
	for rel, data := range backups {
		if err := e.store.WriteRaw(ctx, rel, data); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("file", rel).Msg("batch rollback write failed")
		}
	}
	for _, taskID := range absent {
		rel, err := e.store.FindTaskFile(taskID)
		if err != nil {
			continue
		}
		if removeErr := e.store.RemoveRaw(ctx, rel); removeErr != nil {
			zerolog.Ctx(ctx).Error().Err(removeErr).Str("task", taskID).Msg("batch rollback remove failed")
		}
	}
}
