// Package services provides the shared error taxonomy and context annotation
// helpers used by pipeline components that drive external tools.
package services
