// Package preflight provides readiness checks for the filesystem paths and
// executables a conversion batch depends on.
//
// These checks run in two contexts:
//   - "hlsmerge convert" calls ForBatch before starting a batch so a
//     read-only or nearly full output volume is reported up front.
//   - "hlsmerge deps" calls RunAll to display environment health.
package preflight
