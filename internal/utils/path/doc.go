// Package pathutils expands home-directory shortcuts and resolves the
// repository directory pr-tool operates on.
package pathutils
