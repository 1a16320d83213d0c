// Package branches prunes local branches.
//
// Service removes branches already merged into HEAD with a safe deletion and,
// after a pruning fetch, force-removes branches whose upstream is gone. The
// current branch and the protected names in PruneConfiguration are kept.
package branches
