// Package staging owns session workspaces: private scratch directories that
// hold an extracted archive while a session runs.
//
// Each workspace carries a flock-guarded lock file for the session lifetime so
// the stale sweeper can tell live workspaces from abandoned ones.
package staging
