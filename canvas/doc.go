// Package canvas models a multi-phase agent workflow and converts it to and
// from YAML for import and export.
//
// A [Workflow] declares its phases in order and a set of agents, each placed
// in one phase and optionally depending on other agents. [Validate] rejects
// duplicate ids, unknown phases, dangling dependencies and dependency
// cycles. The document database stores the canonical copy; this package only
// moves it in and out of YAML.
package canvas
