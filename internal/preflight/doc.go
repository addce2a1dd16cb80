// Package preflight provides readiness checks for the directories, schema,
// records database, and output store the service depends on.
//
// These checks run in two contexts:
//   - The serve command calls RunAll before listening and refuses to start
//     when a check fails.
//   - The CLI "templatefiller status" command renders every result.
package preflight
