package errors

import "errors"

var (
	ErrStateMachineARNRequired = errors.New("STATE_MACHINE_ARN environment variable is required")
	ErrNotReleaseTag           = errors.New("ref is not a release tag")
	ErrInvalidVersionFormat    = errors.New("invalid version format")
	ErrPatternNotFound         = errors.New("bump pattern not found in file")
	ErrRunNotFound             = errors.New("release run not found")
	ErrLockHeld                = errors.New("release lock held by another run")
	ErrNoBumpTargets           = errors.New("release config has no bump targets")
	ErrInvalidSignature        = errors.New("webhook signature verification failed")
)
