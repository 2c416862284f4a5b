// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the snipcheck pipeline:
// documents and their fenced code blocks, classification strategies,
// execution results, and configuration.
//
// See docs/ARCHITECTURE.md § Pipeline Interface, § Data Structures.
package types
