// Package triage provides the Triage Orchestrator: it pulls a bounded batch
// of untriaged signals, obtains a decision for each from the Classifier
// Gateway, and applies the decision to the signal's lifecycle state in the
// primary store. It also owns the Prometheus metrics for the pipeline.
package triage
