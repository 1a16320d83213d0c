// Package pullrequests checks forge pull requests out as local branches named
// PR/<number>/<author>-<branch>, recreating the branch from its base on every run.
package pullrequests
