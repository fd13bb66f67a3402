// Package service holds the application use cases of the generation
// pipeline: accepting submissions, tracking session progress, validating
// credentials and reviewing results. Services depend on store interfaces
// and on small local interfaces for their collaborators, never on
// concrete infrastructure.
package service
