// Package stageexec runs one named pipeline stage for one track with uniform
// logging and journaling.
package stageexec
