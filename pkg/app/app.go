// Package app defines the contract shared by the process runners started from
// cmd/purgatory (indexer, reaper and query API).
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
