// Package events carries engine notifications to listeners without the
// engine knowing who listens.
//
// The Bus keeps a bounded, sequenced history so pollers can resume from the
// last sequence they saw, and fans each event out to channel subscribers.
package events
