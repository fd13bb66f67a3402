// Package generation defines the boundary between the batch executor and an
// external image generation provider. Provider implementations live under
// internal/platform; this package holds the shared request, image, and error
// types plus the placeholder substituted for a failed variation.
package generation
