// Package tasks defines the task engine contract and a default runner that
// executes tasks in dependency order.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// RunMode selects which tasks around the roots take part in a run
type RunMode string

const (
	// RunModeSingle runs only the roots
	RunModeSingle RunMode = "single"
	// RunModeAfter runs the roots and every task that depends on them
	RunModeAfter RunMode = "after"
	// RunModeBefore runs the roots and everything they depend on
	RunModeBefore RunMode = "before"
	// RunModeAll runs both directions
	RunModeAll RunMode = "all"
)

var (
	ErrInvalidGraph = errors.New("invalid task graph")
	ErrCycleFound   = errors.New("cycle detected")
	ErrUnknownTask  = errors.New("unknown task")
)

// ParseRunMode maps a flag value to a RunMode. The empty string selects before.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case "":
		return RunModeBefore, nil
	case RunModeSingle, RunModeAfter, RunModeBefore, RunModeAll:
		return RunMode(s), nil
	default:
		return "", fmt.Errorf("unknown run mode %q", s)
	}
}

// TaskConfig is one task record of the evaluated task configuration
type TaskConfig struct {
	Name           string         `json:"name"`
	Command        *string        `json:"command,omitempty"`
	Status         *string        `json:"status,omitempty"`
	After          []string       `json:"after,omitempty"`
	Before         []string       `json:"before,omitempty"`
	Cwd            *string        `json:"cwd,omitempty"`
	// ExecIfModified skips the task when the matching files are unchanged
	// since its last successful run
	ExecIfModified []string       `json:"exec_if_modified,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
}

// Config is a run specification handed to an Engine
type Config struct {
	Roots   []string     `json:"roots"`
	Tasks   []TaskConfig `json:"tasks"`
	RunMode RunMode      `json:"run_mode"`
}

// Status counts tasks by final state
type Status struct {
	Pending          int `json:"pending"`
	Running          int `json:"running"`
	Skipped          int `json:"skipped"`
	Succeeded        int `json:"succeeded"`
	Failed           int `json:"failed"`
	DependencyFailed int `json:"dependency_failed"`
	Cancelled        int `json:"cancelled"`
}

// Outputs maps a task name to the JSON it wrote to its output file
type Outputs map[string]json.RawMessage

// Engine executes a run specification
type Engine interface {
	Run(ctx context.Context, cfg Config) (Status, Outputs, error)
}

// State is the final state of one task
type State string

const (
	StatePending          State = "pending"
	StateRunning          State = "running"
	StateSucceeded        State = "succeeded"
	StateSkipped          State = "skipped"
	StateFailed           State = "failed"
	StateDependencyFailed State = "dependency_failed"
	StateCancelled        State = "cancelled"
)

func (s State) terminal() bool {
	return s != StatePending && s != StateRunning
}

func (s State) successful() bool {
	return s == StateSucceeded || s == StateSkipped
}

func (s *Status) add(state State) {
	switch state {
	case StatePending:
		s.Pending++
	case StateRunning:
		s.Running++
	case StateSucceeded:
		s.Succeeded++
	case StateSkipped:
		s.Skipped++
	case StateFailed:
		s.Failed++
	case StateDependencyFailed:
		s.DependencyFailed++
	case StateCancelled:
		s.Cancelled++
	}
}
