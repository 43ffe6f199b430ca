// Package project inspects a scaffolded project directory and produces the
// point-in-time state snapshot the planner reconciles against.
package project
