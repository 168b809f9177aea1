package devenv

import (
	"errors"
	"fmt"

	"github.com/devenvgo/devenv/pkg/process"
)

// Sentinel errors for orchestrator operations, checked with errors.Is
var (
	// ErrMissingEnvironmentDescription indicates the project has no devenv.nix
	ErrMissingEnvironmentDescription = errors.New("File devenv.nix does not exist. To get started, run:\n\n    $ devenv init")

	// ErrInvalidOption indicates a malformed --option key
	ErrInvalidOption = errors.New("invalid option format")

	// ErrUnsupportedOptionType indicates an --option type that cannot be rendered
	ErrUnsupportedOptionType = errors.New("unsupported option type")

	// ErrNotRunning indicates no service group is tracked
	ErrNotRunning = process.ErrNotRunning

	// ErrProcessNotFound indicates the tracked service group is gone
	ErrProcessNotFound = process.ErrProcessNotFound

	// ErrContainerOperationFailed indicates a container script exited non-zero
	ErrContainerOperationFailed = errors.New("container operation failed")

	// ErrUnsupportedPlatform indicates containers cannot be built on this OS
	ErrUnsupportedPlatform = errors.New("Containers are not supported on macOS yet: https://github.com/cachix/devenv/issues/430")

	// ErrParse indicates malformed output from the backend
	ErrParse = errors.New("failed to parse backend output")

	// ErrNoProcesses indicates the environment defines no processes
	ErrNoProcesses = errors.New("No processes defined")

	// ErrTasksFailed indicates at least one task failed
	ErrTasksFailed = errors.New("Some tasks failed")

	// ErrTestsFailed indicates the test script exited non-zero
	ErrTestsFailed = errors.New("Tests failed")

	// ErrNoTasks indicates tasks run was called without roots
	ErrNoTasks = errors.New("No tasks specified.")
)

// OptionError reports the --option token that could not be rendered
type OptionError struct {
	Token string
	Err   error
}

func (e *OptionError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedOptionType) {
		return fmt.Sprintf("Unsupported type: '%s'. Supported types: %s", e.Token, supportedTypesList())
	}
	return fmt.Sprintf("Invalid option format: '%s'. Must include type, e.g. 'languages.rust.version:string'. Supported types: %s",
		e.Token, supportedTypesList())
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

// ContainerError names the pipeline stage that failed
type ContainerError struct {
	Stage string
	Name  string
	Err   error
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("Failed to %s container %s: %v", e.Stage, e.Name, e.Err)
}

func (e *ContainerError) Unwrap() []error {
	return []error{ErrContainerOperationFailed, e.Err}
}

// ParseError reports which backend output could not be decoded
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Failed to parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
