// Package monitor observes a whole tree of pipelines through its root.
//
// A Monitor attaches lazily: whenever a monitored pipeline is about to start
// a child, the monitor subscribes to the child's events and, when the child
// is a pipeline itself, monitors it too. Trees assembled after monitoring
// began are therefore covered without further calls.
package monitor
