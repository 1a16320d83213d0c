// Package forge reads pull request metadata from the Gitea-compatible REST API
// of projects.blender.org and builds the repository URLs git pulls from.
package forge
