// Package templates provides the embedded starter files written by init.
package templates

import "embed"

//go:embed files
var filesFS embed.FS

// Active returns the starter active board.
func Active() ([]byte, error) { return filesFS.ReadFile("files/kanban.md") }

// Archive returns the starter archive.
func Archive() ([]byte, error) { return filesFS.ReadFile("files/archive.md") }

// AgentSection returns the block appended to an agent instruction file.
func AgentSection() ([]byte, error) { return filesFS.ReadFile("files/agent.md") }

// AgentMarker identifies an agent file that already carries the section.
const AgentMarker = "<!-- taskboard:agent-section -->"
