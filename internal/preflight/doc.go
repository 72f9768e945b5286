// Package preflight provides readiness checks for the tools, directories,
// and broker reelpull depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure; nothing
//     blocks on them because a missing broker only means direct processing.
//   - The status API and CLI report the same results so operators can see
//     why jobs fail before submitting more.
package preflight
